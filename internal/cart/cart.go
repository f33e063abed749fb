package cart

import (
	"context"
	"errors"

	"github.com/swiftcart/backend/internal/catalog"
)

var (
	ErrInvalidQuantity = errors.New("cart: quantity must be greater than zero")
	ErrOutOfStock      = errors.New("cart: quantity exceeds available stock")
	ErrLineNotFound    = errors.New("cart: product not in cart")
	ErrProductGone     = errors.New("cart: product no longer exists, removed from cart")
)

// Item is one cart line with its product details resolved.
type Item struct {
	Product  catalog.Product `json:"product"`
	Quantity int             `json:"quantity"`
}

type Cart struct {
	CustomerID string `json:"customer_id"`
	Items      []Item `json:"items"`
}

// Store holds one cart per customer. Every operation returns the resolved
// cart so callers never need a second read.
//
// Get prunes lines whose product vanished from the catalog and reports
// their ids. Increase may return ErrProductGone together with the already
// pruned cart; on ErrOutOfStock the cart comes back unchanged.
type Store interface {
	Get(ctx context.Context, customerID string) (Cart, []string, error)
	AddItem(ctx context.Context, customerID, productID string, quantity int) (Cart, error)
	Increase(ctx context.Context, customerID, productID string) (Cart, error)
	Decrease(ctx context.Context, customerID, productID string) (Cart, error)
	Clear(ctx context.Context, customerID string) error
}
