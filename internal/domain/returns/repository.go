package returns

import "context"

type Repository interface {
	// Insert assigns the return and line ids.
	Insert(ctx context.Context, r *Return) error
	Get(ctx context.Context, id int64) (*Return, error)
	Update(ctx context.Context, r *Return) error
	ListByOrder(ctx context.Context, orderID int64) ([]*Return, error)
}
