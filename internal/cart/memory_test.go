package cart

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/swiftcart/backend/internal/catalog"
)

func newFixture(t *testing.T) (*catalog.MemoryRepo, *MemoryStore) {
	t.Helper()
	cat := catalog.NewMemoryRepo(
		catalog.Product{ID: "p1", Name: "Paperback", Price: decimal.NewFromInt(250), Stock: 2},
		catalog.Product{ID: "p2", Name: "Headphones", Price: decimal.NewFromInt(1500), Stock: 10},
	)
	return cat, NewMemoryStore(cat)
}

func TestGetUnknownCustomerReturnsEmptyCart(t *testing.T) {
	_, store := newFixture(t)

	c, removed, err := store.Get(context.Background(), "cust")
	require.NoError(t, err)
	require.Empty(t, removed)
	require.Equal(t, "cust", c.CustomerID)
	require.Empty(t, c.Items)
}

func TestAddItemAccumulates(t *testing.T) {
	_, store := newFixture(t)
	ctx := context.Background()

	_, err := store.AddItem(ctx, "cust", "p2", 2)
	require.NoError(t, err)
	c, err := store.AddItem(ctx, "cust", "p2", 3)
	require.NoError(t, err)

	require.Len(t, c.Items, 1)
	require.Equal(t, 5, c.Items[0].Quantity)
}

func TestAddItemRejectsNonPositiveQuantity(t *testing.T) {
	_, store := newFixture(t)

	_, err := store.AddItem(context.Background(), "cust", "p1", 0)
	require.ErrorIs(t, err, ErrInvalidQuantity)
	_, err = store.AddItem(context.Background(), "cust", "p1", -4)
	require.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestIncreaseBoundedByStock(t *testing.T) {
	_, store := newFixture(t)
	ctx := context.Background()

	_, err := store.AddItem(ctx, "cust", "p1", 1)
	require.NoError(t, err)

	c, err := store.Increase(ctx, "cust", "p1")
	require.NoError(t, err)
	require.Equal(t, 2, c.Items[0].Quantity)

	// p1 stock is 2; the third unit must be refused and the cart unchanged
	c, err = store.Increase(ctx, "cust", "p1")
	require.ErrorIs(t, err, ErrOutOfStock)
	require.Equal(t, 2, c.Items[0].Quantity)
}

func TestIncreaseMissingLine(t *testing.T) {
	_, store := newFixture(t)

	_, err := store.Increase(context.Background(), "cust", "p1")
	require.ErrorIs(t, err, ErrLineNotFound)
}

func TestDecreaseToZeroRemovesLine(t *testing.T) {
	_, store := newFixture(t)
	ctx := context.Background()

	_, err := store.AddItem(ctx, "cust", "p1", 1)
	require.NoError(t, err)

	c, err := store.Decrease(ctx, "cust", "p1")
	require.NoError(t, err)
	require.Empty(t, c.Items)

	_, err = store.Decrease(ctx, "cust", "p1")
	require.ErrorIs(t, err, ErrLineNotFound)
}

func TestDeletedProductPrunedOnRead(t *testing.T) {
	cat, store := newFixture(t)
	ctx := context.Background()

	_, err := store.AddItem(ctx, "cust", "p1", 1)
	require.NoError(t, err)
	_, err = store.AddItem(ctx, "cust", "p2", 1)
	require.NoError(t, err)

	cat.Delete("p1")

	c, removed, err := store.Get(ctx, "cust")
	require.NoError(t, err)
	require.Equal(t, []string{"p1"}, removed)
	require.Len(t, c.Items, 1)
	require.Equal(t, "p2", c.Items[0].Product.ID)
}

func TestIncreaseOnDeletedProductPrunesLine(t *testing.T) {
	cat, store := newFixture(t)
	ctx := context.Background()

	_, err := store.AddItem(ctx, "cust", "p1", 1)
	require.NoError(t, err)
	cat.Delete("p1")

	c, err := store.Increase(ctx, "cust", "p1")
	require.ErrorIs(t, err, ErrProductGone)
	require.Empty(t, c.Items)
}

func TestClear(t *testing.T) {
	_, store := newFixture(t)
	ctx := context.Background()

	_, err := store.AddItem(ctx, "cust", "p1", 1)
	require.NoError(t, err)
	require.NoError(t, store.Clear(ctx, "cust"))

	c, _, err := store.Get(ctx, "cust")
	require.NoError(t, err)
	require.Empty(t, c.Items)
}

// Shopping scenario: add two units at the stock bound, bounce off the bound,
// then decrease the line away.
func TestShoppingScenario(t *testing.T) {
	_, store := newFixture(t)
	ctx := context.Background()

	c, err := store.AddItem(ctx, "cust", "p1", 2)
	require.NoError(t, err)
	require.Len(t, c.Items, 1)
	require.Equal(t, 2, c.Items[0].Quantity)

	c, err = store.Increase(ctx, "cust", "p1")
	require.ErrorIs(t, err, ErrOutOfStock)
	require.Equal(t, 2, c.Items[0].Quantity)

	c, err = store.Decrease(ctx, "cust", "p1")
	require.NoError(t, err)
	require.Equal(t, 1, c.Items[0].Quantity)

	c, err = store.Decrease(ctx, "cust", "p1")
	require.NoError(t, err)
	require.Empty(t, c.Items)
}
