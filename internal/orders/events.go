package orders

import (
	"encoding/json"
	"time"
)

const (
	TopicOrderCreated    = "order.created"
	TopicPaymentCaptured = "order.payment.captured"
	TopicPaymentFailed   = "order.payment.failed"
)

const (
	EventOrderCreated    = "OrderCreated"
	EventPaymentCaptured = "PaymentCaptured"
	EventPaymentFailed   = "PaymentFailed"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order id
	Payload       json.RawMessage `json:"payload"`
}

type OrderCreatedPayload struct {
	OrderID    string     `json:"order_id"`
	CustomerID string     `json:"customer_id"`
	Items      []LineItem `json:"items"`
	TotalPrice string     `json:"total_price"`
}

type PaymentCapturedPayload struct {
	OrderID          string `json:"order_id"`
	CustomerID       string `json:"customer_id"`
	GatewayOrderID   string `json:"gateway_order_id"`
	GatewayPaymentID string `json:"gateway_payment_id"`
}

type PaymentFailedPayload struct {
	OrderID        string `json:"order_id"`
	CustomerID     string `json:"customer_id"`
	GatewayOrderID string `json:"gateway_order_id"`
	Reason         string `json:"reason"`
}

// Partition key = order id so every event for one order keeps its ordering.
func PartitionKey(orderID string) []byte { return []byte(orderID) }
