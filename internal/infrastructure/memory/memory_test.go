package memory

import (
	"context"
	"testing"
	"time"

	"github.com/latrastienda/tienda/internal/domain/inventory"
	"github.com/latrastienda/tienda/internal/domain/order"
	"github.com/latrastienda/tienda/internal/domain/returns"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newOrder(t *testing.T, customer string) *order.Order {
	t.Helper()
	o, err := order.New(customer, order.PaymentCard, []order.Line{
		{ProductID: "a", ProductName: "A", UnitPrice: decimal.NewFromInt(5), Quantity: 1},
		{ProductID: "b", ProductName: "B", UnitPrice: decimal.NewFromInt(7), Quantity: 3},
	}, decimal.Zero, false, time.Now())
	require.NoError(t, err)
	return o
}

func TestOrderRepositoryLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := NewOrderRepository()

	o := newOrder(t, "c1")
	require.NoError(t, repo.Insert(ctx, o))
	assert.Equal(t, int64(1), o.ID)
	assert.Equal(t, int64(1), o.Lines[0].ID)
	assert.Equal(t, int64(2), o.Lines[1].ID)
	assert.Equal(t, o.ID, o.Lines[1].OrderID)

	got, err := repo.Get(ctx, o.ID)
	require.NoError(t, err)
	got.Lines[0].Quantity = 99
	again, err := repo.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, again.Lines[0].Quantity, "stored order must not alias callers")

	again.MarkPaid(order.PaymentTrace{AuthorizationCode: "x"})
	require.NoError(t, repo.Update(ctx, again))

	paid := true
	list, err := repo.List(ctx, order.ListFilter{Paid: &paid})
	require.NoError(t, err)
	require.Len(t, list, 1)

	require.NoError(t, repo.Delete(ctx, o.ID))
	_, err = repo.Get(ctx, o.ID)
	assert.ErrorIs(t, err, order.ErrNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, o.ID), order.ErrNotFound)
	assert.ErrorIs(t, repo.Update(ctx, again), order.ErrNotFound)
}

func TestOrderRepositoryListOrdersNewestFirst(t *testing.T) {
	ctx := context.Background()
	repo := NewOrderRepository()
	for _, c := range []string{"c1", "c2", "c1"} {
		require.NoError(t, repo.Insert(ctx, newOrder(t, c)))
	}

	list, err := repo.List(ctx, order.ListFilter{CustomerID: "c1"})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, int64(3), list[0].ID)
	assert.Equal(t, int64(1), list[1].ID)
}

func TestOrderDeleteCascadesToReturns(t *testing.T) {
	ctx := context.Background()
	rets := NewReturnRepository()
	orders := NewOrderRepository().CascadeTo(rets)

	kept, gone := newOrder(t, "c1"), newOrder(t, "c2")
	require.NoError(t, orders.Insert(ctx, kept))
	require.NoError(t, orders.Insert(ctx, gone))
	for _, o := range []*order.Order{kept, gone} {
		line, err := returns.NewLine(o.Lines[0], 1, returns.ReasonDefective)
		require.NoError(t, err)
		ret, err := returns.New(o.ID, "", []returns.Line{line}, time.Now())
		require.NoError(t, err)
		require.NoError(t, rets.Insert(ctx, ret))
	}

	require.NoError(t, orders.Delete(ctx, gone.ID))

	left, err := rets.ListByOrder(ctx, gone.ID)
	require.NoError(t, err)
	assert.Empty(t, left)
	other, err := rets.ListByOrder(ctx, kept.ID)
	require.NoError(t, err)
	assert.Len(t, other, 1)
}

func TestInventoryRepository(t *testing.T) {
	ctx := context.Background()
	item, err := inventory.NewItem("rosa", "Rosa", decimal.NewFromInt(3), 10)
	require.NoError(t, err)
	repo := NewInventoryRepository(item)

	got, err := repo.Get(ctx, "rosa")
	require.NoError(t, err)
	require.NoError(t, got.Deduct(4))
	require.NoError(t, repo.Save(ctx, got))

	again, err := repo.Get(ctx, "rosa")
	require.NoError(t, err)
	assert.Equal(t, 6, again.Quantity)

	_, err = repo.Get(ctx, "tulipan")
	assert.ErrorIs(t, err, inventory.ErrNotFound)

	all, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestReturnRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewReturnRepository()

	o := newOrder(t, "c1")
	o.ID = 9
	o.Lines[0].ID = 1
	line, err := returns.NewLine(o.Lines[0], 1, returns.ReasonOther)
	require.NoError(t, err)
	ret, err := returns.New(o.ID, "", []returns.Line{line}, time.Now())
	require.NoError(t, err)

	require.NoError(t, repo.Insert(ctx, ret))
	assert.Equal(t, int64(1), ret.ID)
	assert.Equal(t, ret.ID, ret.Lines[0].ReturnID)

	require.NoError(t, ret.Approve())
	require.NoError(t, repo.Update(ctx, ret))

	got, err := repo.Get(ctx, ret.ID)
	require.NoError(t, err)
	assert.Equal(t, returns.StatusApproved, got.Status)

	byOrder, err := repo.ListByOrder(ctx, 9)
	require.NoError(t, err)
	assert.Len(t, byOrder, 1)

	_, err = repo.Get(ctx, 77)
	assert.ErrorIs(t, err, returns.ErrNotFound)
}
