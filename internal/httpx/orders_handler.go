package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/shopspring/decimal"
	"github.com/swiftcart/backend/internal/auth"
	"github.com/swiftcart/backend/internal/orders"
	"github.com/swiftcart/backend/internal/redisx"
)

type createOrderReq struct {
	Items           []orders.ItemInput     `json:"items"`
	ShippingAddress orders.ShippingAddress `json:"shipping_address"`
	TotalPrice      decimal.Decimal        `json:"total_price"`
}

func (s *Server) createOrder(w http.ResponseWriter, r *http.Request) {
	subject, _ := auth.SubjectFrom(r.Context())

	var req createOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := s.Factory.CreateOrder(ctx, orders.CreateRequest{
		CustomerID:      subject.ID,
		Items:           req.Items,
		ShippingAddress: req.ShippingAddress,
		TotalPrice:      req.TotalPrice,
	})
	if err != nil {
		s.rejectCheckout(w, err)
		return
	}

	if s.Metrics != nil {
		s.Metrics.OrdersCreated.Inc()
	}
	s.publish(orders.TopicOrderCreated, orders.EventOrderCreated, o.ID, orders.OrderCreatedPayload{
		OrderID:    o.ID,
		CustomerID: o.CustomerID,
		Items:      o.Items,
		TotalPrice: o.TotalPrice.String(),
	}, middleware.GetReqID(r.Context()))

	writeJSON(w, http.StatusCreated, o)
}

func (s *Server) rejectCheckout(w http.ResponseWriter, err error) {
	var stockErr *orders.InsufficientStockError
	switch {
	case errors.As(err, &stockErr):
		s.countRejection("out_of_stock")
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":     "insufficient stock",
			"shortages": stockErr.Shortages,
		})
	case errors.Is(err, orders.ErrEmptyOrder):
		s.countRejection("empty_order")
		writeError(w, http.StatusBadRequest, "no items in order")
	case errors.Is(err, orders.ErrTotalMismatch):
		s.countRejection("total_mismatch")
		writeError(w, http.StatusBadRequest, "total does not match current prices")
	case errors.Is(err, orders.ErrInvalidInput):
		s.countRejection("invalid_input")
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.Log.Error().Err(err).Msg("create order")
		storeError(w)
	}
}

func (s *Server) countRejection(reason string) {
	if s.Metrics != nil {
		s.Metrics.CheckoutRejected.WithLabelValues(reason).Inc()
	}
}

func (s *Server) myOrders(w http.ResponseWriter, r *http.Request) {
	subject, _ := auth.SubjectFrom(r.Context())
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	list, err := s.Orders.ListByCustomer(ctx, subject.ID)
	if err != nil {
		s.Log.Error().Err(err).Str("customer", subject.ID).Msg("list orders")
		storeError(w)
		return
	}
	if list == nil {
		list = []orders.Order{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": list})
}

func (s *Server) allOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	list, err := s.Orders.ListAll(ctx)
	if err != nil {
		s.Log.Error().Err(err).Msg("list all orders")
		storeError(w)
		return
	}
	if list == nil {
		list = []orders.Order{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": list})
}

func (s *Server) getOrder(w http.ResponseWriter, r *http.Request) {
	subject, _ := auth.SubjectFrom(r.Context())
	orderID := chi.URLParam(r, "id")

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if o, ok := s.cachedOrder(ctx, orderID); ok {
		if o.CustomerID != subject.ID && !subject.IsAdmin() {
			writeError(w, http.StatusNotFound, "order not found")
			return
		}
		writeJSON(w, http.StatusOK, o)
		return
	}

	o, err := s.Orders.Get(ctx, orderID)
	if errors.Is(err, orders.ErrNotFound) {
		writeError(w, http.StatusNotFound, "order not found")
		return
	}
	if err != nil {
		s.Log.Error().Err(err).Str("order", orderID).Msg("get order")
		storeError(w)
		return
	}
	if o.CustomerID != subject.ID && !subject.IsAdmin() {
		writeError(w, http.StatusNotFound, "order not found")
		return
	}
	s.cacheOrder(ctx, o)
	writeJSON(w, http.StatusOK, o)
}

type updateStatusReq struct {
	Status orders.Status `json:"status"`
}

func (s *Server) updateOrderStatus(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")

	var req updateStatusReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if !orders.ValidStatus(req.Status) {
		writeError(w, http.StatusBadRequest, "unknown status")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := s.Orders.UpdateFulfillment(ctx, orderID, req.Status)
	switch {
	case err == nil:
		s.invalidateOrderCache(ctx, orderID)
		writeJSON(w, http.StatusOK, o)
	case errors.Is(err, orders.ErrNotFound):
		writeError(w, http.StatusNotFound, "order not found")
	case errors.Is(err, orders.ErrInvalidTransition), errors.Is(err, orders.ErrPaymentNotCaptured):
		writeError(w, http.StatusConflict, err.Error())
	default:
		s.Log.Error().Err(err).Str("order", orderID).Msg("update order status")
		storeError(w)
	}
}

func (s *Server) cachedOrder(ctx context.Context, orderID string) (orders.Order, bool) {
	if s.Redis == nil {
		return orders.Order{}, false
	}
	key := fmt.Sprintf(redisx.KeyOrderStatus, orderID)
	raw, err := s.Redis.Get(ctx, key).Result()
	if err != nil || raw == "" {
		return orders.Order{}, false
	}
	var o orders.Order
	if err := json.Unmarshal([]byte(raw), &o); err != nil {
		return orders.Order{}, false
	}
	return o, true
}

func (s *Server) cacheOrder(ctx context.Context, o orders.Order) {
	if s.Redis == nil {
		return
	}
	raw, err := json.Marshal(o)
	if err != nil {
		return
	}
	key := fmt.Sprintf(redisx.KeyOrderStatus, o.ID)
	_ = s.Redis.Set(ctx, key, raw, redisx.TTLStatusCache).Err()
}

func (s *Server) invalidateOrderCache(ctx context.Context, orderID string) {
	if s.Redis == nil {
		return
	}
	_ = s.Redis.Del(ctx, fmt.Sprintf(redisx.KeyOrderStatus, orderID)).Err()
}
