package cart

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/swiftcart/backend/internal/catalog"
)

// MemoryStore keeps carts in a mutex-guarded map and resolves lines against
// the catalog repo. It mirrors the postgres store's semantics and backs the
// tests and local development.
type MemoryStore struct {
	mu      sync.Mutex
	catalog catalog.Repo
	lines   map[string]map[string]int // customer -> product -> quantity
}

func NewMemoryStore(cat catalog.Repo) *MemoryStore {
	return &MemoryStore{catalog: cat, lines: make(map[string]map[string]int)}
}

func (s *MemoryStore) Get(ctx context.Context, customerID string) (Cart, []string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := s.pruneLocked(ctx, customerID)
	c, err := s.resolveLocked(ctx, customerID)
	return c, removed, err
}

func (s *MemoryStore) AddItem(ctx context.Context, customerID, productID string, quantity int) (Cart, error) {
	if quantity <= 0 {
		return Cart{}, ErrInvalidQuantity
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cust := s.lines[customerID]
	if cust == nil {
		cust = make(map[string]int)
		s.lines[customerID] = cust
	}
	cust[productID] += quantity
	return s.resolveLocked(ctx, customerID)
}

func (s *MemoryStore) Increase(ctx context.Context, customerID, productID string) (Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cust := s.lines[customerID]
	qty, ok := cust[productID]
	if !ok {
		return Cart{}, ErrLineNotFound
	}
	p, err := s.catalog.Get(ctx, productID)
	if errors.Is(err, catalog.ErrNotFound) {
		delete(cust, productID)
		c, rerr := s.resolveLocked(ctx, customerID)
		if rerr != nil {
			return Cart{}, rerr
		}
		return c, ErrProductGone
	}
	if err != nil {
		return Cart{}, err
	}
	if qty >= p.Stock {
		c, rerr := s.resolveLocked(ctx, customerID)
		if rerr != nil {
			return Cart{}, rerr
		}
		return c, ErrOutOfStock
	}
	cust[productID] = qty + 1
	return s.resolveLocked(ctx, customerID)
}

func (s *MemoryStore) Decrease(ctx context.Context, customerID, productID string) (Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cust := s.lines[customerID]
	qty, ok := cust[productID]
	if !ok {
		return Cart{}, ErrLineNotFound
	}
	if qty > 1 {
		cust[productID] = qty - 1
	} else {
		delete(cust, productID)
	}
	return s.resolveLocked(ctx, customerID)
}

func (s *MemoryStore) Clear(_ context.Context, customerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.lines, customerID)
	return nil
}

func (s *MemoryStore) pruneLocked(ctx context.Context, customerID string) []string {
	var removed []string
	for productID := range s.lines[customerID] {
		if _, err := s.catalog.Get(ctx, productID); errors.Is(err, catalog.ErrNotFound) {
			delete(s.lines[customerID], productID)
			removed = append(removed, productID)
		}
	}
	return removed
}

func (s *MemoryStore) resolveLocked(ctx context.Context, customerID string) (Cart, error) {
	c := Cart{CustomerID: customerID, Items: []Item{}}
	for productID, qty := range s.lines[customerID] {
		p, err := s.catalog.Get(ctx, productID)
		if errors.Is(err, catalog.ErrNotFound) {
			continue
		}
		if err != nil {
			return Cart{}, err
		}
		c.Items = append(c.Items, Item{Product: p, Quantity: qty})
	}
	sort.Slice(c.Items, func(i, j int) bool { return c.Items[i].Product.Name < c.Items[j].Product.Name })
	return c, nil
}
