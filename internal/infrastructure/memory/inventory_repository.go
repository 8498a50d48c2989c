package memory

import (
	"context"
	"sort"
	"sync"

	domain "github.com/latrastienda/tienda/internal/domain/inventory"
)

type InventoryRepository struct {
	mu    sync.RWMutex
	items map[string]*domain.Item
}

// NewInventoryRepository optionally seeds the catalogue.
func NewInventoryRepository(seed ...*domain.Item) *InventoryRepository {
	r := &InventoryRepository{
		items: make(map[string]*domain.Item, len(seed)),
	}
	for _, it := range seed {
		r.items[it.ProductID] = cloneItem(it)
	}
	return r
}

func (r *InventoryRepository) Get(ctx context.Context, productID string) (*domain.Item, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	item, ok := r.items[productID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneItem(item), nil
}

func (r *InventoryRepository) Save(ctx context.Context, item *domain.Item) error {
	_ = ctx
	if item == nil {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.items[item.ProductID] = cloneItem(item)
	return nil
}

func (r *InventoryRepository) List(ctx context.Context) ([]*domain.Item, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*domain.Item, 0, len(r.items))
	for _, it := range r.items {
		out = append(out, cloneItem(it))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out, nil
}

func cloneItem(item *domain.Item) *domain.Item {
	if item == nil {
		return nil
	}
	clone := *item
	return &clone
}
