package orders

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/swiftcart/backend/internal/catalog"
)

type reservation struct {
	productID string
	quantity  int
	status    string
}

// MemoryRepo mirrors the postgres repo's semantics against an in-memory
// catalog. Tests and local development only.
type MemoryRepo struct {
	mu           sync.Mutex
	catalog      *catalog.MemoryRepo
	orders       map[string]*Order
	reservations map[string][]reservation
}

func NewMemoryRepo(cat *catalog.MemoryRepo) *MemoryRepo {
	return &MemoryRepo{
		catalog:      cat,
		orders:       make(map[string]*Order),
		reservations: make(map[string][]reservation),
	}
}

func (r *MemoryRepo) Create(ctx context.Context, o *Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var shortages []StockShortage
	for _, it := range o.Items {
		p, err := r.catalog.Get(ctx, it.ProductID)
		if errors.Is(err, catalog.ErrNotFound) {
			shortages = append(shortages, StockShortage{ProductID: it.ProductID, Requested: it.Quantity})
			continue
		}
		if err != nil {
			return err
		}
		if p.Stock < it.Quantity {
			shortages = append(shortages, StockShortage{ProductID: it.ProductID, Requested: it.Quantity, Available: p.Stock})
		}
	}
	if len(shortages) > 0 {
		return &InsufficientStockError{Shortages: shortages}
	}

	for _, it := range o.Items {
		r.catalog.AdjustStock(it.ProductID, -it.Quantity)
		r.reservations[o.ID] = append(r.reservations[o.ID], reservation{it.ProductID, it.Quantity, "RESERVED"})
	}
	cp := *o
	cp.Items = append([]LineItem(nil), o.Items...)
	r.orders[o.ID] = &cp
	return nil
}

func (r *MemoryRepo) Get(_ context.Context, id string) (Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return Order{}, ErrNotFound
	}
	return clone(o), nil
}

func (r *MemoryRepo) ListByCustomer(_ context.Context, customerID string) ([]Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Order
	for _, o := range r.orders {
		if o.CustomerID == customerID {
			out = append(out, clone(o))
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func (r *MemoryRepo) ListAll(_ context.Context) ([]Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Order, 0, len(r.orders))
	for _, o := range r.orders {
		out = append(out, clone(o))
	}
	sortNewestFirst(out)
	return out, nil
}

func (r *MemoryRepo) UpdateFulfillment(_ context.Context, id string, to Status) (Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return Order{}, ErrNotFound
	}
	if err := ValidateTransition(o.Status, o.PaymentStatus, to); err != nil {
		return Order{}, err
	}
	o.Status = to
	o.UpdatedAt = time.Now().UTC()
	return clone(o), nil
}

func (r *MemoryRepo) AttachGatewayOrder(_ context.Context, orderID, gatewayOrderID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[orderID]
	if !ok {
		return ErrNotFound
	}
	if paymentTerminal(o.PaymentStatus) {
		return fmt.Errorf("%w: order %s", ErrPaymentSettled, orderID)
	}
	o.GatewayOrderID = gatewayOrderID
	o.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *MemoryRepo) MarkPaid(_ context.Context, gatewayOrderID, gatewayPaymentID, signature string) (Order, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o := r.byGatewayLocked(gatewayOrderID)
	if o == nil {
		return Order{}, false, ErrNotFound
	}
	if o.PaymentStatus != PaymentPending {
		return clone(o), false, nil
	}
	o.PaymentStatus = PaymentPaid
	o.GatewayPaymentID = gatewayPaymentID
	o.GatewaySignature = signature
	o.UpdatedAt = time.Now().UTC()
	return clone(o), true, nil
}

func (r *MemoryRepo) MarkFailed(_ context.Context, gatewayOrderID, _ string) (Order, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o := r.byGatewayLocked(gatewayOrderID)
	if o == nil {
		return Order{}, false, ErrNotFound
	}
	if o.PaymentStatus != PaymentPending {
		return clone(o), false, nil
	}
	o.PaymentStatus = PaymentFailed
	o.UpdatedAt = time.Now().UTC()
	return clone(o), true, nil
}

func (r *MemoryRepo) ReleaseReservations(_ context.Context, orderID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, res := range r.reservations[orderID] {
		if res.status == "RESERVED" {
			r.catalog.AdjustStock(res.productID, res.quantity)
			r.reservations[orderID][i].status = "RELEASED"
		}
	}
	return nil
}

func (r *MemoryRepo) ConsumeReservations(_ context.Context, orderID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, res := range r.reservations[orderID] {
		if res.status == "RESERVED" {
			r.reservations[orderID][i].status = "CONSUMED"
		}
	}
	return nil
}

func (r *MemoryRepo) byGatewayLocked(gatewayOrderID string) *Order {
	if gatewayOrderID == "" {
		return nil
	}
	for _, o := range r.orders {
		if o.GatewayOrderID == gatewayOrderID {
			return o
		}
	}
	return nil
}

func clone(o *Order) Order {
	cp := *o
	cp.Items = append([]LineItem(nil), o.Items...)
	return cp
}

func sortNewestFirst(out []Order) {
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
}
