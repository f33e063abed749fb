package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/shopspring/decimal"
	"github.com/swiftcart/backend/internal/auth"
	"github.com/swiftcart/backend/internal/orders"
	"github.com/swiftcart/backend/internal/payment"
)

type createIntentReq struct {
	OrderID  string          `json:"order_id"`
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

// createPaymentIntent opens the two-phase handshake: create the intent with
// the gateway, then persist its reference on the order so the later callback
// can be tied back to it.
func (s *Server) createPaymentIntent(w http.ResponseWriter, r *http.Request) {
	subject, _ := auth.SubjectFrom(r.Context())

	var req createIntentReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.OrderID == "" {
		writeError(w, http.StatusBadRequest, "order_id required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 12*time.Second)
	defer cancel()

	o, err := s.Orders.Get(ctx, req.OrderID)
	if errors.Is(err, orders.ErrNotFound) {
		writeError(w, http.StatusNotFound, "order not found")
		return
	}
	if err != nil {
		s.Log.Error().Err(err).Str("order", req.OrderID).Msg("load order for intent")
		storeError(w)
		return
	}
	if o.CustomerID != subject.ID {
		writeError(w, http.StatusNotFound, "order not found")
		return
	}
	if o.PaymentStatus != orders.PaymentPending {
		writeError(w, http.StatusConflict, "payment already settled")
		return
	}
	// the stored total is authoritative; a client amount only has to agree
	if !req.Amount.IsZero() && !req.Amount.Equal(o.TotalPrice) {
		writeError(w, http.StatusBadRequest, "amount does not match order total")
		return
	}

	currency := req.Currency
	if currency == "" {
		currency = s.Currency
	}

	intent, err := s.Gateway.CreateIntent(ctx, o.TotalPrice, currency)
	if errors.Is(err, payment.ErrInvalidAmount) {
		writeError(w, http.StatusBadRequest, "invalid amount")
		return
	}
	var gwErr *payment.GatewayError
	if errors.As(err, &gwErr) {
		s.Log.Error().Err(err).Str("order", o.ID).Msg("gateway intent creation failed")
		writeError(w, http.StatusBadGateway, "payment gateway unavailable")
		return
	}
	if err != nil {
		s.Log.Error().Err(err).Str("order", o.ID).Msg("create intent")
		storeError(w)
		return
	}

	if err := s.Orders.AttachGatewayOrder(ctx, o.ID, intent.ID); err != nil {
		// a callback may settle the payment between the pre-check above and
		// the attach
		if errors.Is(err, orders.ErrPaymentSettled) {
			writeError(w, http.StatusConflict, "payment already settled")
			return
		}
		s.Log.Error().Err(err).Str("order", o.ID).Str("intent", intent.ID).Msg("attach gateway order")
		storeError(w)
		return
	}
	s.invalidateOrderCache(ctx, o.ID)

	writeJSON(w, http.StatusOK, map[string]any{"order_id": o.ID, "intent": intent})
}

type verifyPaymentReq struct {
	GatewayOrderID   string `json:"gateway_order_id"`
	GatewayPaymentID string `json:"gateway_payment_id"`
	Signature        string `json:"signature"`
}

// verifyPayment is the trust boundary with the gateway. The HMAC decides;
// transport success or HTTP status never do. The status flip is a
// conditional update keyed by the stored intent reference, so redelivered
// callbacks converge without double effects.
func (s *Server) verifyPayment(w http.ResponseWriter, r *http.Request) {
	var req verifyPaymentReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	err := s.Verifier.Verify(req.GatewayOrderID, req.GatewayPaymentID, req.Signature)
	switch {
	case errors.Is(err, payment.ErrMissingFields):
		writeError(w, http.StatusBadRequest, "missing verification fields")
		return
	case errors.Is(err, payment.ErrSignatureMismatch):
		s.countVerification("rejected")
		s.failPayment(ctx, r, req.GatewayOrderID)
		writeJSON(w, http.StatusBadRequest, map[string]any{"verified": false, "error": "signature verification failed"})
		return
	case err != nil:
		storeError(w)
		return
	}

	o, applied, err := s.Orders.MarkPaid(ctx, req.GatewayOrderID, req.GatewayPaymentID, req.Signature)
	if errors.Is(err, orders.ErrNotFound) {
		// valid signature for an intent we never issued; reject without
		// touching any order
		s.countVerification("rejected")
		writeJSON(w, http.StatusBadRequest, map[string]any{"verified": false, "error": "unknown payment reference"})
		return
	}
	if err != nil {
		s.Log.Error().Err(err).Str("gateway_order", req.GatewayOrderID).Msg("mark paid")
		storeError(w)
		return
	}

	s.countVerification("verified")
	if applied {
		s.invalidateOrderCache(ctx, o.ID)
		s.publish(orders.TopicPaymentCaptured, orders.EventPaymentCaptured, o.ID, orders.PaymentCapturedPayload{
			OrderID:          o.ID,
			CustomerID:       o.CustomerID,
			GatewayOrderID:   req.GatewayOrderID,
			GatewayPaymentID: req.GatewayPaymentID,
		}, middleware.GetReqID(r.Context()))
	}
	writeJSON(w, http.StatusOK, map[string]any{"verified": true, "payment_status": o.PaymentStatus})
}

// failPayment flips a pending order to Failed when a callback for its intent
// fails verification. Unknown references are ignored.
func (s *Server) failPayment(ctx context.Context, r *http.Request, gatewayOrderID string) {
	if gatewayOrderID == "" {
		return
	}
	o, applied, err := s.Orders.MarkFailed(ctx, gatewayOrderID, "signature verification failed")
	if errors.Is(err, orders.ErrNotFound) {
		return
	}
	if err != nil {
		s.Log.Error().Err(err).Str("gateway_order", gatewayOrderID).Msg("mark failed")
		return
	}
	if applied {
		s.invalidateOrderCache(ctx, o.ID)
		s.publish(orders.TopicPaymentFailed, orders.EventPaymentFailed, o.ID, orders.PaymentFailedPayload{
			OrderID:        o.ID,
			CustomerID:     o.CustomerID,
			GatewayOrderID: gatewayOrderID,
			Reason:         "signature verification failed",
		}, middleware.GetReqID(r.Context()))
	}
}

func (s *Server) countVerification(result string) {
	if s.Metrics != nil {
		s.Metrics.PaymentsVerified.WithLabelValues(result).Inc()
	}
}
