package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	domain "github.com/latrastienda/tienda/internal/domain/returns"
)

type ReturnRepository struct {
	mu       sync.RWMutex
	returns  map[int64]*domain.Return
	nextID   int64
	nextLine int64
}

func NewReturnRepository() *ReturnRepository {
	return &ReturnRepository{returns: make(map[int64]*domain.Return)}
}

func (r *ReturnRepository) Insert(ctx context.Context, ret *domain.Return) error {
	_ = ctx
	if ret == nil {
		return fmt.Errorf("return repository: return is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	ret.ID = r.nextID
	for i := range ret.Lines {
		r.nextLine++
		ret.Lines[i].ID = r.nextLine
		ret.Lines[i].ReturnID = ret.ID
	}
	r.returns[ret.ID] = ret.Clone()
	return nil
}

func (r *ReturnRepository) Get(ctx context.Context, id int64) (*domain.Return, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	ret, ok := r.returns[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return ret.Clone(), nil
}

func (r *ReturnRepository) Update(ctx context.Context, ret *domain.Return) error {
	_ = ctx
	if ret == nil || ret.ID == 0 {
		return fmt.Errorf("return repository: id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.returns[ret.ID]; !ok {
		return domain.ErrNotFound
	}
	r.returns[ret.ID] = ret.Clone()
	return nil
}

func (r *ReturnRepository) ListByOrder(ctx context.Context, orderID int64) ([]*domain.Return, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*domain.Return
	for _, ret := range r.returns {
		if ret.OrderID == orderID {
			out = append(out, ret.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// DeleteByOrder drops every return filed against orderID and reports how
// many were removed.
func (r *ReturnRepository) DeleteByOrder(ctx context.Context, orderID int64) int {
	_ = ctx

	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for id, ret := range r.returns {
		if ret.OrderID == orderID {
			delete(r.returns, id)
			n++
		}
	}
	return n
}
