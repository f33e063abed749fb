package orders

import "context"

// Repo persists orders and owns the stock reservations taken at checkout.
//
// Create reserves stock for every line in the same transaction that writes
// the order; on shortage nothing is persisted and *InsufficientStockError
// is returned. MarkPaid/MarkFailed transition payment status keyed by the
// gateway order reference; applied reports whether this call performed the
// transition, so repeated callbacks converge without double effects.
type Repo interface {
	Create(ctx context.Context, o *Order) error
	Get(ctx context.Context, id string) (Order, error)
	ListByCustomer(ctx context.Context, customerID string) ([]Order, error)
	ListAll(ctx context.Context) ([]Order, error)

	UpdateFulfillment(ctx context.Context, id string, to Status) (Order, error)

	AttachGatewayOrder(ctx context.Context, orderID, gatewayOrderID string) error
	MarkPaid(ctx context.Context, gatewayOrderID, gatewayPaymentID, signature string) (o Order, applied bool, err error)
	MarkFailed(ctx context.Context, gatewayOrderID, reason string) (o Order, applied bool, err error)

	ReleaseReservations(ctx context.Context, orderID string) error
	ConsumeReservations(ctx context.Context, orderID string) error
}
