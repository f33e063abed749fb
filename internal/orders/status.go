package orders

import "errors"

// Fulfillment and payment are two independent machines on the same order.
// Fulfillment moves forward under operator action; payment moves once, on a
// verified gateway callback.

type Status string

const (
	StatusPending   Status = "Pending"
	StatusShipped   Status = "Shipped"
	StatusDelivered Status = "Delivered"
)

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "Pending"
	PaymentPaid    PaymentStatus = "Paid"
	PaymentFailed  PaymentStatus = "Failed"
)

var (
	ErrInvalidTransition  = errors.New("orders: invalid fulfillment transition")
	ErrPaymentNotCaptured = errors.New("orders: cannot ship before payment is captured")
)

var fulfillmentNext = map[Status]map[Status]bool{
	StatusPending:   {StatusShipped: true},
	StatusShipped:   {StatusDelivered: true},
	StatusDelivered: {},
}

func ValidStatus(s Status) bool {
	_, ok := fulfillmentNext[s]
	return ok
}

// ValidateTransition rejects backward or skipping moves, and refuses to ship
// an order whose payment is not captured.
func ValidateTransition(from Status, payment PaymentStatus, to Status) error {
	if !fulfillmentNext[from][to] {
		return ErrInvalidTransition
	}
	if to == StatusShipped && payment != PaymentPaid {
		return ErrPaymentNotCaptured
	}
	return nil
}

// Payment is terminal once Paid or Failed.
func paymentTerminal(s PaymentStatus) bool {
	return s == PaymentPaid || s == PaymentFailed
}
