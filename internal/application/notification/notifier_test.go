package notification

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	appinvoice "github.com/latrastienda/tienda/internal/application/invoice"
	domcustomer "github.com/latrastienda/tienda/internal/domain/customer"
	dominv "github.com/latrastienda/tienda/internal/domain/inventory"
	dominvoice "github.com/latrastienda/tienda/internal/domain/invoice"
	domorder "github.com/latrastienda/tienda/internal/domain/order"
	domreturns "github.com/latrastienda/tienda/internal/domain/returns"
	"github.com/latrastienda/tienda/internal/infrastructure/memory"
	"github.com/latrastienda/tienda/internal/infrastructure/outbox"
	"github.com/latrastienda/tienda/internal/infrastructure/pdf"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type fakeMailer struct {
	mu   sync.Mutex
	sent []Message
	err  error
}

func (m *fakeMailer) Send(_ context.Context, msg Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *fakeMailer) messages() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Message(nil), m.sent...)
}

type fixture struct {
	orders   *memory.OrderRepository
	returns  *memory.ReturnRepository
	mailer   *fakeMailer
	notifier *Notifier
	order    *domorder.Order
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	orders := memory.NewOrderRepository()
	rets := memory.NewReturnRepository()
	customers := memory.NewCustomerRepository(
		domcustomer.Customer{ID: "ana", Name: "Ana", Email: "ana@example.com"},
		domcustomer.Customer{ID: "mudo", Name: "Sin correo"},
	)

	o, err := domorder.New("ana", domorder.PaymentBizum, []domorder.Line{
		{ProductID: "rosa", ProductName: "Rosa", UnitPrice: decimal.RequireFromString("10.00"), Quantity: 2},
	}, decimal.RequireFromString("5.95"), false, time.Now())
	require.NoError(t, err)
	o.GiftMessage = "Para mamá <3"
	require.NoError(t, orders.Insert(context.Background(), o))

	seller := dominvoice.DefaultSeller()
	invoices := appinvoice.NewService(orders, rets, customers, pdf.NewRenderer(), seller, nil)
	mailer := &fakeMailer{}
	return fixture{
		orders:   orders,
		returns:  rets,
		mailer:   mailer,
		notifier: NewNotifier(orders, customers, invoices, mailer, seller, "almacen@latrastienda.es", nil),
		order:    o,
	}
}

func (f fixture) pay(t *testing.T) {
	t.Helper()
	f.order.MarkPaid(domorder.PaymentTrace{AuthorizationCode: "1"})
	require.NoError(t, f.orders.Update(context.Background(), f.order))
}

func TestOrderConfirmationAttachesInvoice(t *testing.T) {
	f := newFixture(t)
	f.pay(t)

	require.NoError(t, f.notifier.OrderConfirmation(context.Background(), f.order.ID))

	sent := f.mailer.messages()
	require.Len(t, sent, 1)
	msg := sent[0]
	assert.Equal(t, []string{"ana@example.com"}, msg.To)
	assert.Equal(t, "contabilidad@latrastienda.es", msg.ReplyTo)
	assert.Equal(t, "✅ Confirmación de Pedido #1 - LA TRASTIENDA S.L.", msg.Subject)
	assert.Contains(t, msg.HTML, "¡Gracias por tu compra, Ana!")
	assert.Contains(t, msg.HTML, "25.95 €")
	assert.Contains(t, msg.HTML, "Bizum")
	assert.Contains(t, msg.HTML, "Para mamá &lt;3", "gift message is escaped")
	require.Len(t, msg.Attachments, 1)
	assert.Equal(t, "factura_1.pdf", msg.Attachments[0].Filename)
	assert.Equal(t, "application/pdf", msg.Attachments[0].ContentType)
}

func TestOrderConfirmationRequiresPaidOrder(t *testing.T) {
	f := newFixture(t)

	err := f.notifier.OrderConfirmation(context.Background(), f.order.ID)
	assert.ErrorIs(t, err, ErrNotPaid)
	assert.Empty(t, f.mailer.messages())

	err = f.notifier.OrderConfirmation(context.Background(), 999)
	assert.ErrorIs(t, err, domorder.ErrNotFound)
}

func TestOrderConfirmationWithoutEmail(t *testing.T) {
	f := newFixture(t)
	f.order.CustomerID = "mudo"
	f.order.MarkPaid(domorder.PaymentTrace{})
	require.NoError(t, f.orders.Update(context.Background(), f.order))

	err := f.notifier.OrderConfirmation(context.Background(), f.order.ID)
	assert.ErrorIs(t, err, ErrNoRecipient)
}

func TestReturnCompletedEmail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	line, err := domreturns.NewLine(f.order.Lines[0], 1, domreturns.ReasonDefective)
	require.NoError(t, err)
	ret, err := domreturns.New(f.order.ID, "Llegó rota", []domreturns.Line{line}, time.Now())
	require.NoError(t, err)
	require.NoError(t, f.returns.Insert(ctx, ret))
	require.NoError(t, ret.Approve())
	ret.Recalculate(f.order)
	require.NoError(t, ret.Complete(time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)))

	require.NoError(t, f.notifier.ReturnCompleted(ctx, f.order, ret, nil))

	sent := f.mailer.messages()
	require.Len(t, sent, 1)
	assert.Equal(t, "✅ Devolución Completada - Pedido 1 - LA TRASTIENDA S.L.", sent[0].Subject)
	assert.Contains(t, sent[0].HTML, "DEV-1")
	assert.Contains(t, sent[0].HTML, "-10.00 €")
	assert.Contains(t, sent[0].HTML, "04/05/2026 10:00")
	assert.Equal(t, "factura_devolucion_1.pdf", sent[0].Attachments[0].Filename)
}

func TestMailerFailureIsReported(t *testing.T) {
	f := newFixture(t)
	f.pay(t)
	f.mailer.err = errors.New("smtp down")

	err := f.notifier.OrderConfirmation(context.Background(), f.order.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "smtp down")
}

func TestWorkerSendsOnEvents(t *testing.T) {
	defer goleak.VerifyNone(t)

	f := newFixture(t)
	f.pay(t)

	bus := outbox.NewBus(nil)
	NewWorker(bus, f.notifier, nil).Start()
	bus.Start(context.Background())

	ctx := context.Background()
	require.NoError(t, bus.Publish(ctx, domorder.NewOrderPaidEvent(f.order, "evt-1")))
	require.NoError(t, bus.Publish(ctx, dominv.StockShortfallEvent{OrderID: f.order.ID, ProductID: "rosa", Name: "Rosa", InStock: 1, Requested: 2}))

	require.Eventually(t, func() bool { return len(f.mailer.messages()) == 2 }, 2*time.Second, 10*time.Millisecond)

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	bus.Stop(stopCtx)

	var alert *Message
	for _, m := range f.mailer.messages() {
		if m.To[0] == "almacen@latrastienda.es" {
			alert = &m
		}
	}
	require.NotNil(t, alert)
	assert.Contains(t, alert.HTML, "stock 1, solicitado 2")
}
