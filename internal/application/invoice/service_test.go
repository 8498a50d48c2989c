package invoice

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	domcustomer "github.com/latrastienda/tienda/internal/domain/customer"
	dominvoice "github.com/latrastienda/tienda/internal/domain/invoice"
	domorder "github.com/latrastienda/tienda/internal/domain/order"
	domreturns "github.com/latrastienda/tienda/internal/domain/returns"
	"github.com/latrastienda/tienda/internal/infrastructure/memory"
	"github.com/latrastienda/tienda/internal/infrastructure/pdf"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureRenderer struct {
	docs []dominvoice.Document
	err  error
}

func (c *captureRenderer) Render(doc dominvoice.Document) ([]byte, error) {
	c.docs = append(c.docs, doc)
	if c.err != nil {
		return nil, c.err
	}
	return []byte("%PDF-fake"), nil
}

func seed(t *testing.T) (*memory.OrderRepository, *memory.ReturnRepository, *domorder.Order, *domreturns.Return) {
	t.Helper()
	ctx := context.Background()
	orders := memory.NewOrderRepository()
	rets := memory.NewReturnRepository()

	o, err := domorder.New("ana", domorder.PaymentCard, []domorder.Line{
		{ProductID: "rosa", ProductName: "Rosa", UnitPrice: decimal.RequireFromString("10.00"), Quantity: 2},
	}, decimal.RequireFromString("5.95"), false, time.Now())
	require.NoError(t, err)
	require.NoError(t, orders.Insert(ctx, o))

	line, err := domreturns.NewLine(o.Lines[0], 1, domreturns.ReasonDefective)
	require.NoError(t, err)
	ret, err := domreturns.New(o.ID, "Llegó rota", []domreturns.Line{line}, time.Now())
	require.NoError(t, err)
	require.NoError(t, rets.Insert(ctx, ret))
	return orders, rets, o, ret
}

func TestOrderInvoiceUsesCustomerAsBuyer(t *testing.T) {
	orders, rets, o, _ := seed(t)
	customers := memory.NewCustomerRepository(domcustomer.Customer{ID: "ana", Name: "Ana Pérez", Email: "ana@example.com"})
	r := &captureRenderer{}
	svc := NewService(orders, rets, customers, r, dominvoice.DefaultSeller(), nil)

	f, err := svc.OrderInvoice(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, "factura_1.pdf", f.Filename)
	assert.Equal(t, ContentType, f.ContentType)
	require.Len(t, r.docs, 1)
	assert.Equal(t, "Ana Pérez", r.docs[0].Buyer[0])
}

func TestReturnInvoiceRendersRealPDF(t *testing.T) {
	orders, rets, _, ret := seed(t)
	svc := NewService(orders, rets, nil, pdf.NewRenderer(), dominvoice.DefaultSeller(), nil)

	f, err := svc.ReturnInvoice(context.Background(), ret.ID)
	require.NoError(t, err)
	assert.Equal(t, "factura_devolucion_1.pdf", f.Filename)
	assert.True(t, bytes.HasPrefix(f.Content, []byte("%PDF")))
}

func TestInvoiceErrors(t *testing.T) {
	orders, rets, o, _ := seed(t)
	ctx := context.Background()

	svc := NewService(orders, rets, nil, &captureRenderer{}, dominvoice.DefaultSeller(), nil)
	_, err := svc.OrderInvoice(ctx, 404)
	assert.ErrorIs(t, err, ErrOrderNotFound)
	_, err = svc.ReturnInvoice(ctx, 404)
	assert.ErrorIs(t, err, ErrReturnNotFound)

	failing := NewService(orders, rets, nil, &captureRenderer{err: errors.New("boom")}, dominvoice.DefaultSeller(), nil)
	_, err = failing.OrderInvoice(ctx, o.ID)
	assert.ErrorIs(t, err, ErrRender)
}
