package order

import "context"

// ListFilter narrows List results. Zero values mean no filter.
type ListFilter struct {
	Paid       *bool
	Shipped    *bool
	CustomerID string
}

type Repository interface {
	// Insert assigns the order and line ids.
	Insert(ctx context.Context, order *Order) error
	Get(ctx context.Context, id int64) (*Order, error)
	Update(ctx context.Context, order *Order) error
	// Delete removes the order together with its lines and the returns filed
	// against it.
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, filter ListFilter) ([]*Order, error)
}
