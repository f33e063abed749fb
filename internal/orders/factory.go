package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/swiftcart/backend/internal/catalog"
)

type ItemInput struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type CreateRequest struct {
	CustomerID      string
	Items           []ItemInput
	ShippingAddress ShippingAddress
	TotalPrice      decimal.Decimal
}

// Factory validates a checkout request against the catalog and turns it
// into a persisted order with both lifecycles at Pending.
type Factory struct {
	Catalog catalog.Repo
	Repo    Repo
}

// CreateOrder recomputes the total from catalog unit prices and rejects a
// client total that does not match. Stock is reserved by Repo.Create in the
// same transaction that writes the order, so a failed checkout persists
// nothing.
func (f *Factory) CreateOrder(ctx context.Context, req CreateRequest) (Order, error) {
	if len(req.Items) == 0 {
		return Order{}, ErrEmptyOrder
	}
	if err := req.ShippingAddress.Validate(); err != nil {
		return Order{}, err
	}

	merged, err := mergeItems(req.Items)
	if err != nil {
		return Order{}, err
	}

	items := make([]LineItem, 0, len(merged))
	total := decimal.Zero
	for _, in := range merged {
		p, err := f.Catalog.Get(ctx, in.ProductID)
		if errors.Is(err, catalog.ErrNotFound) {
			return Order{}, fmt.Errorf("%w: product not found: %s", ErrInvalidInput, in.ProductID)
		}
		if err != nil {
			return Order{}, err
		}
		items = append(items, LineItem{ProductID: p.ID, Quantity: in.Quantity, UnitPrice: p.Price})
		total = total.Add(p.Price.Mul(decimal.NewFromInt(int64(in.Quantity))))
	}
	if !total.Equal(req.TotalPrice) {
		return Order{}, ErrTotalMismatch
	}

	now := time.Now().UTC()
	o := Order{
		ID:              uuid.NewString(),
		CustomerID:      req.CustomerID,
		Items:           items,
		ShippingAddress: req.ShippingAddress,
		TotalPrice:      total,
		Status:          StatusPending,
		PaymentStatus:   PaymentPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := f.Repo.Create(ctx, &o); err != nil {
		return Order{}, err
	}
	return o, nil
}

// mergeItems folds repeated product ids into one line so the stock check
// downstream sees the combined quantity. Line order follows first
// appearance.
func mergeItems(items []ItemInput) ([]ItemInput, error) {
	merged := make([]ItemInput, 0, len(items))
	index := make(map[string]int, len(items))
	for _, in := range items {
		if in.Quantity <= 0 {
			return nil, fmt.Errorf("%w: invalid quantity %d for product %s", ErrInvalidInput, in.Quantity, in.ProductID)
		}
		if i, ok := index[in.ProductID]; ok {
			merged[i].Quantity += in.Quantity
			continue
		}
		index[in.ProductID] = len(merged)
		merged = append(merged, in)
	}
	return merged, nil
}
