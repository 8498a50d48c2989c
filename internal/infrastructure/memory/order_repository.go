package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	domain "github.com/latrastienda/tienda/internal/domain/order"
)

type OrderRepository struct {
	mu       sync.RWMutex
	orders   map[int64]*domain.Order
	returns  *ReturnRepository
	nextID   int64
	nextLine int64
}

func NewOrderRepository() *OrderRepository {
	return &OrderRepository{
		orders: make(map[int64]*domain.Order),
	}
}

// CascadeTo makes Delete also drop the returns filed against the order.
func (r *OrderRepository) CascadeTo(returns *ReturnRepository) *OrderRepository {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.returns = returns
	return r
}

func (r *OrderRepository) Insert(ctx context.Context, order *domain.Order) error {
	_ = ctx
	if order == nil {
		return fmt.Errorf("order repository: order is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if order.ID != 0 {
		if _, exists := r.orders[order.ID]; exists {
			return domain.ErrConflict
		}
	} else {
		r.nextID++
		order.ID = r.nextID
	}
	if order.ID > r.nextID {
		r.nextID = order.ID
	}
	for i := range order.Lines {
		r.nextLine++
		order.Lines[i].ID = r.nextLine
		order.Lines[i].OrderID = order.ID
	}

	r.orders[order.ID] = order.Clone()
	return nil
}

func (r *OrderRepository) Get(ctx context.Context, id int64) (*domain.Order, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	order, ok := r.orders[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return order.Clone(), nil
}

// Update replaces the order header. Lines are immutable once placed.
func (r *OrderRepository) Update(ctx context.Context, order *domain.Order) error {
	_ = ctx
	if order == nil || order.ID == 0 {
		return fmt.Errorf("order repository: id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	current, exists := r.orders[order.ID]
	if !exists {
		return domain.ErrNotFound
	}
	next := order.Clone()
	next.Lines = current.Lines
	r.orders[order.ID] = next
	return nil
}

// Delete removes the order, its lines and, when cascading, its returns.
func (r *OrderRepository) Delete(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.orders[id]; !ok {
		return domain.ErrNotFound
	}
	if r.returns != nil {
		r.returns.DeleteByOrder(ctx, id)
	}
	delete(r.orders, id)
	return nil
}

func (r *OrderRepository) List(ctx context.Context, filter domain.ListFilter) ([]*domain.Order, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*domain.Order, 0, len(r.orders))
	for _, o := range r.orders {
		if filter.Paid != nil && o.Paid != *filter.Paid {
			continue
		}
		if filter.Shipped != nil && o.Shipped != *filter.Shipped {
			continue
		}
		if filter.CustomerID != "" && o.CustomerID != filter.CustomerID {
			continue
		}
		out = append(out, o.Clone())
	}
	// newest first
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}
