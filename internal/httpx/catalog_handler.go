package httpx

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/swiftcart/backend/internal/catalog"
)

func (s *Server) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	products, err := s.Catalog.List(ctx)
	if err != nil {
		s.Log.Error().Err(err).Msg("list products")
		storeError(w)
		return
	}
	if products == nil {
		products = []catalog.Product{}
	}
	writeJSON(w, http.StatusOK, products)
}

func (s *Server) searchProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	products, err := s.Catalog.Search(ctx, r.URL.Query().Get("q"))
	if err != nil {
		s.Log.Error().Err(err).Msg("search products")
		storeError(w)
		return
	}
	if products == nil {
		products = []catalog.Product{}
	}
	writeJSON(w, http.StatusOK, products)
}

func (s *Server) getProduct(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	p, err := s.Catalog.Get(ctx, chi.URLParam(r, "id"))
	if errors.Is(err, catalog.ErrNotFound) {
		writeError(w, http.StatusNotFound, "product not found")
		return
	}
	if err != nil {
		s.Log.Error().Err(err).Msg("get product")
		storeError(w)
		return
	}
	writeJSON(w, http.StatusOK, p)
}
