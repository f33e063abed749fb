package catalog

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// MemoryRepo is a mutex-guarded in-memory catalog used by tests and local
// development.
type MemoryRepo struct {
	mu       sync.RWMutex
	products map[string]Product
}

func NewMemoryRepo(products ...Product) *MemoryRepo {
	m := &MemoryRepo{products: make(map[string]Product, len(products))}
	for _, p := range products {
		m.products[p.ID] = p
	}
	return m
}

func (r *MemoryRepo) List(_ context.Context) ([]Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Product, 0, len(r.products))
	for _, p := range r.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *MemoryRepo) Search(_ context.Context, query string) ([]Product, error) {
	q := strings.ToLower(query)
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Product
	for _, p := range r.products {
		if strings.Contains(strings.ToLower(p.Name), q) ||
			strings.Contains(strings.ToLower(p.Description), q) ||
			strings.Contains(strings.ToLower(p.Category), q) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *MemoryRepo) Get(_ context.Context, id string) (Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.products[id]
	if !ok {
		return Product{}, ErrNotFound
	}
	return p, nil
}

// Put upserts a product; SetStock rewrites the live stock count. Both exist
// so tests can move the catalog under a cart.
func (r *MemoryRepo) Put(p Product) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.products[p.ID] = p
}

func (r *MemoryRepo) SetStock(id string, stock int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.products[id]; ok {
		p.Stock = stock
		r.products[id] = p
	}
}

func (r *MemoryRepo) Delete(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.products, id)
}

// AdjustStock applies a delta and reports whether the product exists.
func (r *MemoryRepo) AdjustStock(id string, delta int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[id]
	if !ok {
		return false
	}
	p.Stock += delta
	r.products[id] = p
	return true
}
