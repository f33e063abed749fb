package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/swiftcart/backend/internal/auth"
	"github.com/swiftcart/backend/internal/cart"
)

type addToCartReq struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type updateQuantityReq struct {
	ProductID string `json:"product_id"`
	Action    string `json:"action"` // increase | decrease
}

// cartResp carries the resolved cart plus the ids of lines that were dropped
// because their product vanished from the catalog, so the UI can explain the
// removal.
type cartResp struct {
	Cart    cart.Cart `json:"cart"`
	Removed []string  `json:"removed_products,omitempty"`
	Error   string    `json:"error,omitempty"`
}

func (s *Server) getCart(w http.ResponseWriter, r *http.Request) {
	subject, _ := auth.SubjectFrom(r.Context())
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	c, removed, err := s.Cart.Get(ctx, subject.ID)
	if err != nil {
		s.Log.Error().Err(err).Str("customer", subject.ID).Msg("get cart")
		storeError(w)
		return
	}
	writeJSON(w, http.StatusOK, cartResp{Cart: c, Removed: removed})
}

func (s *Server) addToCart(w http.ResponseWriter, r *http.Request) {
	subject, _ := auth.SubjectFrom(r.Context())

	var req addToCartReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.ProductID == "" || req.Quantity <= 0 {
		writeError(w, http.StatusBadRequest, "product_id and positive quantity required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	c, err := s.Cart.AddItem(ctx, subject.ID, req.ProductID, req.Quantity)
	if err != nil {
		s.Log.Error().Err(err).Str("customer", subject.ID).Msg("add to cart")
		storeError(w)
		return
	}
	if s.Metrics != nil {
		s.Metrics.CartMutations.WithLabelValues("add").Inc()
	}
	writeJSON(w, http.StatusOK, cartResp{Cart: c})
}

func (s *Server) updateCartQuantity(w http.ResponseWriter, r *http.Request) {
	subject, _ := auth.SubjectFrom(r.Context())

	var req updateQuantityReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.ProductID == "" || req.Action == "" {
		writeError(w, http.StatusBadRequest, "product_id and action required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	var (
		c   cart.Cart
		err error
	)
	switch req.Action {
	case "increase":
		c, err = s.Cart.Increase(ctx, subject.ID, req.ProductID)
	case "decrease":
		c, err = s.Cart.Decrease(ctx, subject.ID, req.ProductID)
	default:
		writeError(w, http.StatusBadRequest, `action must be "increase" or "decrease"`)
		return
	}

	switch {
	case err == nil:
		if s.Metrics != nil {
			s.Metrics.CartMutations.WithLabelValues(req.Action).Inc()
		}
		writeJSON(w, http.StatusOK, cartResp{Cart: c})
	case errors.Is(err, cart.ErrLineNotFound):
		writeError(w, http.StatusNotFound, "product not in cart")
	case errors.Is(err, cart.ErrProductGone):
		// line already pruned; hand back the corrected cart
		writeJSON(w, http.StatusNotFound, cartResp{Cart: c, Removed: []string{req.ProductID}, Error: "product no longer exists, removed from cart"})
	case errors.Is(err, cart.ErrOutOfStock):
		writeJSON(w, http.StatusBadRequest, cartResp{Cart: c, Error: "cannot increase quantity beyond available stock"})
	default:
		s.Log.Error().Err(err).Str("customer", subject.ID).Msg("update cart quantity")
		storeError(w)
	}
}
