package orders

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound       = errors.New("orders: order not found")
	ErrEmptyOrder     = errors.New("orders: no line items")
	ErrTotalMismatch  = errors.New("orders: total does not match catalog prices")
	ErrInvalidInput   = errors.New("orders: invalid input")
	ErrPaymentSettled = errors.New("orders: payment already settled")
)

// LineItem is the point-in-time snapshot captured at checkout. UnitPrice is
// the catalog price at creation; later catalog edits do not touch it.
type LineItem struct {
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type ShippingAddress struct {
	Name         string `json:"name"`
	Phone        string `json:"phone"`
	AddressLine1 string `json:"address_line1"`
	AddressLine2 string `json:"address_line2,omitempty"`
	City         string `json:"city"`
	State        string `json:"state"`
	PostalCode   string `json:"postal_code"`
}

// Validate checks the required fields; address line 2 is the only optional
// one.
func (a ShippingAddress) Validate() error {
	required := []struct{ field, value string }{
		{"name", a.Name},
		{"phone", a.Phone},
		{"address_line1", a.AddressLine1},
		{"city", a.City},
		{"state", a.State},
		{"postal_code", a.PostalCode},
	}
	for _, f := range required {
		if f.value == "" {
			return fmt.Errorf("%w: shipping address missing %s", ErrInvalidInput, f.field)
		}
	}
	return nil
}

type Order struct {
	ID               string          `json:"id"`
	CustomerID       string          `json:"customer_id"`
	Items            []LineItem      `json:"items"`
	ShippingAddress  ShippingAddress `json:"shipping_address"`
	TotalPrice       decimal.Decimal `json:"total_price"`
	Status           Status          `json:"status"`
	PaymentStatus    PaymentStatus   `json:"payment_status"`
	GatewayOrderID   string          `json:"gateway_order_id,omitempty"`
	GatewayPaymentID string          `json:"gateway_payment_id,omitempty"`
	GatewaySignature string          `json:"gateway_signature,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// StockShortage reports one line the stock reservation could not cover.
type StockShortage struct {
	ProductID string `json:"product_id"`
	Requested int    `json:"requested"`
	Available int    `json:"available"`
}

type InsufficientStockError struct {
	Shortages []StockShortage
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("orders: insufficient stock for %d line(s)", len(e.Shortages))
}
