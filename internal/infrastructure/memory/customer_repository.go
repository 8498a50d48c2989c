package memory

import (
	"context"
	"sync"

	domain "github.com/latrastienda/tienda/internal/domain/customer"
)

type CustomerRepository struct {
	mu        sync.RWMutex
	customers map[string]domain.Customer
}

func NewCustomerRepository(seed ...domain.Customer) *CustomerRepository {
	r := &CustomerRepository{customers: make(map[string]domain.Customer, len(seed))}
	for _, c := range seed {
		r.customers[c.ID] = c
	}
	return r
}

func (r *CustomerRepository) Get(ctx context.Context, id string) (*domain.Customer, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.customers[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &c, nil
}

func (r *CustomerRepository) Save(ctx context.Context, c *domain.Customer) error {
	_ = ctx
	if c == nil {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.customers[c.ID] = *c
	return nil
}
