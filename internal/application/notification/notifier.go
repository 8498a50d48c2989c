// Package notification composes the customer and staff emails and hands them
// to a Mailer.
package notification

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"strconv"
	"time"

	"github.com/latrastienda/tienda/internal/application"
	appinvoice "github.com/latrastienda/tienda/internal/application/invoice"
	domcustomer "github.com/latrastienda/tienda/internal/domain/customer"
	dominv "github.com/latrastienda/tienda/internal/domain/inventory"
	dominvoice "github.com/latrastienda/tienda/internal/domain/invoice"
	"github.com/latrastienda/tienda/internal/domain/money"
	domorder "github.com/latrastienda/tienda/internal/domain/order"
	domreturns "github.com/latrastienda/tienda/internal/domain/returns"
	"github.com/latrastienda/tienda/internal/observability"

	"go.opentelemetry.io/otel/attribute"
)

const (
	notificationService    = "notification-service"
	useCaseOrderConfirmed  = "notification.order_confirmed"
	useCaseReturnCompleted = "notification.return_completed"
	useCaseStockAlert      = "notification.stock_alert"
	mailPeer               = "smtp"
	dateLayout             = "02/01/2006 15:04"
)

var (
	ErrNoRecipient = errors.New("notification: customer has no email address")
	ErrNotPaid     = domorder.ErrNotPaid
	ErrRepository  = errors.New("notification: repository failure")
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

type Attachment struct {
	Filename    string
	ContentType string
	Content     []byte
}

type Message struct {
	To          []string
	ReplyTo     string
	Subject     string
	HTML        string
	Attachments []Attachment
}

// Mailer is the outbound port for email delivery.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// InvoiceRenderer renders the PDFs attached to the emails.
type InvoiceRenderer interface {
	RenderOrder(ctx context.Context, o *domorder.Order) (*appinvoice.File, error)
	RenderReturn(ctx context.Context, o *domorder.Order, ret *domreturns.Return) (*appinvoice.File, error)
}

type Notifier struct {
	orders     domorder.Repository
	customers  domcustomer.Repository
	invoices   InvoiceRenderer
	mailer     Mailer
	seller     dominvoice.Seller
	staffEmail string
	now        func() time.Time
	obs        application.Instruments
}

func NewNotifier(
	orders domorder.Repository,
	customers domcustomer.Repository,
	invoices InvoiceRenderer,
	mailer Mailer,
	seller dominvoice.Seller,
	staffEmail string,
	tel observability.Observability,
) *Notifier {
	return &Notifier{
		orders:     orders,
		customers:  customers,
		invoices:   invoices,
		mailer:     mailer,
		seller:     seller,
		staffEmail: staffEmail,
		now:        time.Now,
		obs:        application.NewInstruments(tel, notificationService),
	}
}

type orderConfirmedView struct {
	CustomerName  string
	OrderID       int64
	Date          string
	PaymentMethod string
	Total         string
	Paid          bool
	GiftMessage   string
	SellerName    string
	SellerEmail   string
	SellerPhone   string
}

// OrderConfirmation emails the customer the confirmation with factura_{id}.pdf
// attached. Only paid orders are confirmed.
func (n *Notifier) OrderConfirmation(ctx context.Context, orderID int64) (err error) {
	ctx, run := n.obs.Begin(ctx, useCaseOrderConfirmed, "OrderConfirmation", attribute.Int64("order.id", orderID))
	defer func() { run.End(ctx, err) }()
	run.Field("order_id", orderID)

	o, gerr := n.orders.Get(ctx, orderID)
	if gerr != nil {
		if errors.Is(gerr, domorder.ErrNotFound) {
			run.Fail("ORDER_NOT_FOUND")
			return domorder.ErrNotFound
		}
		run.Fail("REPO_GET_FAILED")
		return fmt.Errorf("%w: %w", ErrRepository, gerr)
	}
	if !o.Paid {
		run.Fail("ORDER_NOT_PAID")
		return ErrNotPaid
	}
	c, cerr := n.customer(ctx, o.CustomerID)
	if cerr != nil {
		run.Fail("CUSTOMER_UNAVAILABLE")
		return cerr
	}

	file, rerr := n.invoices.RenderOrder(ctx, o)
	if rerr != nil {
		run.Fail("INVOICE_RENDER_FAILED")
		return fmt.Errorf("notification: invoice: %w", rerr)
	}

	html, terr := render("order_confirmed.html", orderConfirmedView{
		CustomerName:  c.Name,
		OrderID:       o.ID,
		Date:          o.CreatedAt.Format(dateLayout),
		PaymentMethod: o.PaymentMethod.Label(),
		Total:         money.Format(o.Total()),
		Paid:          o.Paid,
		GiftMessage:   o.GiftMessage,
		SellerName:    n.seller.Name,
		SellerEmail:   n.seller.Email,
		SellerPhone:   n.seller.Phone,
	})
	if terr != nil {
		run.Fail("TEMPLATE_FAILED")
		return terr
	}

	if serr := n.send(ctx, "order_confirmed", Message{
		To:          []string{c.Email},
		ReplyTo:     n.seller.Email,
		Subject:     fmt.Sprintf("✅ Confirmación de Pedido #%d - %s", o.ID, n.seller.Name),
		HTML:        html,
		Attachments: []Attachment{attachment(file)},
	}); serr != nil {
		run.Fail("MAIL_SEND_FAILED")
		return serr
	}
	return nil
}

type returnCompletedView struct {
	CustomerName string
	OrderID      int64
	ReturnID     int64
	Date         string
	Total        string
	Reason       string
	SellerName   string
	SellerEmail  string
	SellerPhone  string
}

// ReturnCompleted emails the customer the negative invoice of a completed
// return. file may be nil, in which case it is rendered here.
func (n *Notifier) ReturnCompleted(ctx context.Context, o *domorder.Order, ret *domreturns.Return, file *appinvoice.File) (err error) {
	ctx, run := n.obs.Begin(ctx, useCaseReturnCompleted, "ReturnCompleted",
		attribute.Int64("return.id", ret.ID),
		attribute.Int64("order.id", o.ID),
	)
	defer func() { run.End(ctx, err) }()
	run.Field("return_id", ret.ID)

	c, cerr := n.customer(ctx, o.CustomerID)
	if cerr != nil {
		run.Fail("CUSTOMER_UNAVAILABLE")
		return cerr
	}
	if file == nil {
		f, rerr := n.invoices.RenderReturn(ctx, o, ret)
		if rerr != nil {
			run.Fail("INVOICE_RENDER_FAILED")
			return fmt.Errorf("notification: invoice: %w", rerr)
		}
		file = f
	}

	processed := n.now()
	if ret.ProcessedAt != nil {
		processed = *ret.ProcessedAt
	}
	html, terr := render("return_completed.html", returnCompletedView{
		CustomerName: c.Name,
		OrderID:      o.ID,
		ReturnID:     ret.ID,
		Date:         processed.Format(dateLayout),
		Total:        money.FormatNegative(ret.Total),
		Reason:       ret.Reason,
		SellerName:   n.seller.Name,
		SellerEmail:  n.seller.Email,
		SellerPhone:  n.seller.Phone,
	})
	if terr != nil {
		run.Fail("TEMPLATE_FAILED")
		return terr
	}

	if serr := n.send(ctx, "return_completed", Message{
		To:          []string{c.Email},
		ReplyTo:     n.seller.Email,
		Subject:     fmt.Sprintf("✅ Devolución Completada - Pedido %d - %s", o.ID, n.seller.Name),
		HTML:        html,
		Attachments: []Attachment{attachment(file)},
	}); serr != nil {
		run.Fail("MAIL_SEND_FAILED")
		return serr
	}
	return nil
}

// StockAlert tells staff that a paid order could not take its units from stock.
// Without a staff address the alert is only logged.
func (n *Notifier) StockAlert(ctx context.Context, evt dominv.StockShortfallEvent) (err error) {
	ctx, run := n.obs.Begin(ctx, useCaseStockAlert, "StockAlert",
		attribute.Int64("order.id", evt.OrderID),
		attribute.String("product.id", evt.ProductID),
	)
	defer func() { run.End(ctx, err) }()
	run.Field("order_id", evt.OrderID)
	run.Field("product_id", evt.ProductID)

	if n.staffEmail == "" {
		run.Status("NO_STAFF_ADDRESS")
		return nil
	}
	html, terr := render("stock_alert.html", evt)
	if terr != nil {
		run.Fail("TEMPLATE_FAILED")
		return terr
	}
	if serr := n.send(ctx, "stock_alert", Message{
		To:      []string{n.staffEmail},
		Subject: "Stock insuficiente - Pedido " + strconv.FormatInt(evt.OrderID, 10),
		HTML:    html,
	}); serr != nil {
		run.Fail("MAIL_SEND_FAILED")
		return serr
	}
	return nil
}

func (n *Notifier) customer(ctx context.Context, id string) (*domcustomer.Customer, error) {
	c, err := n.customers.Get(ctx, id)
	if err != nil {
		if errors.Is(err, domcustomer.ErrNotFound) {
			return nil, ErrNoRecipient
		}
		return nil, fmt.Errorf("%w: %w", ErrRepository, err)
	}
	if c.Email == "" {
		return nil, ErrNoRecipient
	}
	return c, nil
}

func (n *Notifier) send(ctx context.Context, endpoint string, msg Message) error {
	start := time.Now()
	err := n.mailer.Send(ctx, msg)
	n.obs.External(mailPeer, endpoint, start, err)
	if err != nil {
		return fmt.Errorf("notification: send %s: %w", endpoint, err)
	}
	return nil
}

func render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("notification: template %s: %w", name, err)
	}
	return buf.String(), nil
}

func attachment(f *appinvoice.File) Attachment {
	return Attachment{Filename: f.Filename, ContentType: f.ContentType, Content: f.Content}
}
