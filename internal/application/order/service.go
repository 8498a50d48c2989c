// Package order holds the back-office operations on placed orders.
package order

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/latrastienda/tienda/internal/application"
	domcustomer "github.com/latrastienda/tienda/internal/domain/customer"
	domain "github.com/latrastienda/tienda/internal/domain/order"
	"github.com/latrastienda/tienda/internal/observability"
	"github.com/shopspring/decimal"

	"go.opentelemetry.io/otel/attribute"
)

const (
	adminService     = "order-admin"
	useCaseMarkShip  = "order.mark_shipped"
	useCaseResend    = "order.resend_confirmation"
	useCaseExportCSV = "order.export_csv"
	useCaseDelete    = "order.delete"
	csvDateLayout    = "02/01/2006 15:04"
)

var (
	ErrNotFound   = domain.ErrNotFound
	ErrNotPaid    = domain.ErrNotPaid
	ErrRepository = errors.New("order: repository failure")
)

// CSVHeader is the column set of the order export.
var CSVHeader = []string{
	"ID Pedido", "Fecha Pedido", "Método Pago", "Pagado", "Enviado",
	"Gastos Envío", "Envío Gratis", "Base Imponible", "IVA Total", "Total",
	"Cliente ID", "Nombre Cliente", "Email", "Teléfono", "CIF/DNI",
	"Dirección", "Localidad", "Provincia", "Código Postal",
	"Destinatario", "Dirección Envío", "Dedicatoria",
	"Código Autorización", "Fecha Pago", "Hora Pago", "País Tarjeta",
	"Código Comercio", "Código Respuesta", "Descripción Error",
}

type Service struct {
	orders        domain.Repository
	customers     domcustomer.Repository
	confirmations ConfirmationSender
	now           func() time.Time
	obs           application.Instruments
}

func NewService(
	orders domain.Repository,
	customers domcustomer.Repository,
	confirmations ConfirmationSender,
	tel observability.Observability,
) *Service {
	return &Service{
		orders:        orders,
		customers:     customers,
		confirmations: confirmations,
		now:           time.Now,
		obs:           application.NewInstruments(tel, adminService),
	}
}

func (s *Service) Get(ctx context.Context, id int64) (*domain.Order, error) {
	if id <= 0 {
		return nil, application.NewValidation("order id is required")
	}
	o, err := s.orders.Get(ctx, id)
	if err != nil {
		return nil, wrapRepositoryError(err)
	}
	return o, nil
}

// List returns orders newest first.
func (s *Service) List(ctx context.Context, filter domain.ListFilter) ([]*domain.Order, error) {
	out, err := s.orders.List(ctx, filter)
	if err != nil {
		return nil, wrapRepositoryError(err)
	}
	return out, nil
}

type ShipResult struct {
	Shipped  []int64
	NotFound []int64
}

// MarkShipped flags every listed order as shipped with the current time.
// Unknown ids are reported, not fatal.
func (s *Service) MarkShipped(ctx context.Context, ids []int64) (_ *ShipResult, err error) {
	ctx, run := s.obs.Begin(ctx, useCaseMarkShip, "MarkShipped", attribute.Int("orders.count", len(ids)))
	defer func() { run.End(ctx, err) }()

	if len(ids) == 0 {
		run.Fail("IDS_REQUIRED")
		return nil, application.NewValidation("at least one order id is required")
	}

	now := s.now()
	res := &ShipResult{}
	for _, id := range ids {
		o, gerr := s.orders.Get(ctx, id)
		if errors.Is(gerr, domain.ErrNotFound) {
			res.NotFound = append(res.NotFound, id)
			continue
		}
		if gerr != nil {
			run.Fail("REPO_GET_FAILED")
			return res, wrapRepositoryError(gerr)
		}
		o.MarkShipped(now)
		if uerr := s.orders.Update(ctx, o); uerr != nil {
			run.Fail("REPO_UPDATE_FAILED")
			return res, wrapRepositoryError(uerr)
		}
		res.Shipped = append(res.Shipped, id)
	}
	run.Field("shipped", len(res.Shipped))
	if len(res.NotFound) > 0 {
		run.Status("PARTIAL_NOT_FOUND")
		run.Field("not_found", res.NotFound)
	}
	return res, nil
}

// ResendConfirmation sends the confirmation email again. Unpaid orders are refused.
func (s *Service) ResendConfirmation(ctx context.Context, id int64) (err error) {
	ctx, run := s.obs.Begin(ctx, useCaseResend, "ResendConfirmation", attribute.Int64("order.id", id))
	defer func() { run.End(ctx, err) }()
	run.Field("order_id", id)

	o, gerr := s.Get(ctx, id)
	if gerr != nil {
		run.Fail("ORDER_LOOKUP_FAILED")
		return gerr
	}
	if !o.Paid {
		run.Fail("ORDER_NOT_PAID")
		return ErrNotPaid
	}
	if s.confirmations == nil {
		run.Fail("NO_SENDER")
		return errors.New("order: confirmation sender not configured")
	}
	if serr := s.confirmations.OrderConfirmation(ctx, o.ID); serr != nil {
		run.Fail("SEND_FAILED")
		return serr
	}
	return nil
}

// Delete removes the order with its lines and every return filed against it.
func (s *Service) Delete(ctx context.Context, id int64) (err error) {
	ctx, run := s.obs.Begin(ctx, useCaseDelete, "Delete", attribute.Int64("order.id", id))
	defer func() { run.End(ctx, err) }()
	run.Field("order_id", id)

	if id <= 0 {
		run.Fail("ID_REQUIRED")
		return application.NewValidation("order id is required")
	}
	if derr := s.orders.Delete(ctx, id); derr != nil {
		run.Fail("REPO_DELETE_FAILED")
		return wrapRepositoryError(derr)
	}
	return nil
}

// ExportCSV writes the filtered orders with their customer and payment
// columns. It returns the number of data rows written.
func (s *Service) ExportCSV(ctx context.Context, w io.Writer, filter domain.ListFilter) (rows int, err error) {
	ctx, run := s.obs.Begin(ctx, useCaseExportCSV, "ExportCSV")
	defer func() { run.End(ctx, err) }()

	orders, lerr := s.List(ctx, filter)
	if lerr != nil {
		run.Fail("REPO_LIST_FAILED")
		return 0, lerr
	}

	cw := csv.NewWriter(w)
	if werr := cw.Write(CSVHeader); werr != nil {
		run.Fail("WRITE_FAILED")
		return 0, fmt.Errorf("order: csv: %w", werr)
	}

	customers := make(map[string]*domcustomer.Customer)
	for _, o := range orders {
		c, ok := customers[o.CustomerID]
		if !ok {
			var cerr error
			c, cerr = s.customers.Get(ctx, o.CustomerID)
			if cerr != nil && !errors.Is(cerr, domcustomer.ErrNotFound) {
				run.Fail("CUSTOMER_LOOKUP_FAILED")
				return rows, fmt.Errorf("%w: %w", ErrRepository, cerr)
			}
			customers[o.CustomerID] = c
		}
		if werr := cw.Write(csvRow(o, c)); werr != nil {
			run.Fail("WRITE_FAILED")
			return rows, fmt.Errorf("order: csv: %w", werr)
		}
		rows++
	}
	cw.Flush()
	if ferr := cw.Error(); ferr != nil {
		run.Fail("WRITE_FAILED")
		return rows, fmt.Errorf("order: csv: %w", ferr)
	}
	run.Field("rows", rows)
	return rows, nil
}

func csvRow(o *domain.Order, c *domcustomer.Customer) []string {
	b := o.Breakdown().Rounded()
	if c == nil {
		c = &domcustomer.Customer{ID: o.CustomerID}
	}
	r := o.Recipient
	return []string{
		strconv.FormatInt(o.ID, 10),
		o.CreatedAt.Format(csvDateLayout),
		o.PaymentMethod.Label(),
		yesNo(o.Paid),
		yesNo(o.Shipped),
		euros(o.ShippingCost),
		yesNo(o.FreeShipping),
		euros(b.Net),
		euros(b.Tax),
		euros(o.Total()),
		c.ID,
		c.Name,
		c.Email,
		c.Phone,
		c.TaxID,
		c.Address,
		c.City,
		c.Province,
		c.PostalCode,
		r.Name,
		joinNonEmpty(r.Address, r.PostalCode, r.City, r.Province),
		o.GiftMessage,
		o.Payment.AuthorizationCode,
		o.Payment.PaidDate,
		o.Payment.PaidTime,
		o.Payment.CardCountry,
		o.Payment.MerchantCode,
		o.Payment.ResponseCode,
		o.Payment.ErrorDescription,
	}
}

func yesNo(v bool) string {
	if v {
		return "Sí"
	}
	return "No"
}

func euros(d decimal.Decimal) string { return d.StringFixed(2) + "€" }

func joinNonEmpty(parts ...string) string {
	out := ""
	for _, p := range parts {
		if p == "" {
			continue
		}
		if out != "" {
			out += ", "
		}
		out += p
	}
	return out
}

func wrapRepositoryError(err error) error {
	if errors.Is(err, domain.ErrNotFound) {
		return ErrNotFound
	}
	return fmt.Errorf("%w: %w", ErrRepository, err)
}
