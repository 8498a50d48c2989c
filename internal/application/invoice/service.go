package invoice

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/latrastienda/tienda/internal/application"
	domcustomer "github.com/latrastienda/tienda/internal/domain/customer"
	dominvoice "github.com/latrastienda/tienda/internal/domain/invoice"
	domorder "github.com/latrastienda/tienda/internal/domain/order"
	domreturns "github.com/latrastienda/tienda/internal/domain/returns"
	"github.com/latrastienda/tienda/internal/observability"

	"go.opentelemetry.io/otel/attribute"
)

const (
	invoiceService       = "invoice-service"
	useCaseOrderInvoice  = "invoice.order"
	useCaseReturnInvoice = "invoice.return"
	renderPeer           = "pdf"
	ContentType          = "application/pdf"
)

var (
	ErrOrderNotFound  = domorder.ErrNotFound
	ErrReturnNotFound = domreturns.ErrNotFound
	ErrRepository     = errors.New("invoice: repository failure")
	ErrRender         = errors.New("invoice: render failed")
)

type Renderer interface {
	Render(doc dominvoice.Document) ([]byte, error)
}

// File is a rendered document ready to be downloaded or attached.
type File struct {
	Filename    string
	ContentType string
	Content     []byte
}

type Service struct {
	orders    domorder.Repository
	returns   domreturns.Repository
	customers domcustomer.Repository
	renderer  Renderer
	seller    dominvoice.Seller
	now       func() time.Time
	obs       application.Instruments
}

func NewService(
	orders domorder.Repository,
	returns domreturns.Repository,
	customers domcustomer.Repository,
	renderer Renderer,
	seller dominvoice.Seller,
	tel observability.Observability,
) *Service {
	return &Service{
		orders:    orders,
		returns:   returns,
		customers: customers,
		renderer:  renderer,
		seller:    seller,
		now:       time.Now,
		obs:       application.NewInstruments(tel, invoiceService),
	}
}

// OrderInvoice renders factura_{id}.pdf for the order.
func (s *Service) OrderInvoice(ctx context.Context, orderID int64) (_ *File, err error) {
	ctx, run := s.obs.Begin(ctx, useCaseOrderInvoice, "OrderInvoice", attribute.Int64("order.id", orderID))
	defer func() { run.End(ctx, err) }()
	run.Field("order_id", orderID)

	o, gerr := s.orders.Get(ctx, orderID)
	if gerr != nil {
		if errors.Is(gerr, domorder.ErrNotFound) {
			run.Fail("ORDER_NOT_FOUND")
			return nil, ErrOrderNotFound
		}
		run.Fail("REPO_GET_FAILED")
		return nil, fmt.Errorf("%w: %w", ErrRepository, gerr)
	}
	f, rerr := s.RenderOrder(ctx, o)
	if rerr != nil {
		run.Fail("RENDER_FAILED")
		return nil, rerr
	}
	return f, nil
}

// ReturnInvoice renders the negative invoice for a return.
func (s *Service) ReturnInvoice(ctx context.Context, returnID int64) (_ *File, err error) {
	ctx, run := s.obs.Begin(ctx, useCaseReturnInvoice, "ReturnInvoice", attribute.Int64("return.id", returnID))
	defer func() { run.End(ctx, err) }()
	run.Field("return_id", returnID)

	ret, gerr := s.returns.Get(ctx, returnID)
	if gerr != nil {
		if errors.Is(gerr, domreturns.ErrNotFound) {
			run.Fail("RETURN_NOT_FOUND")
			return nil, ErrReturnNotFound
		}
		run.Fail("REPO_GET_FAILED")
		return nil, fmt.Errorf("%w: %w", ErrRepository, gerr)
	}
	o, gerr := s.orders.Get(ctx, ret.OrderID)
	if gerr != nil {
		if errors.Is(gerr, domorder.ErrNotFound) {
			run.Fail("ORDER_NOT_FOUND")
			return nil, ErrOrderNotFound
		}
		run.Fail("REPO_GET_FAILED")
		return nil, fmt.Errorf("%w: %w", ErrRepository, gerr)
	}
	f, rerr := s.RenderReturn(ctx, o, ret)
	if rerr != nil {
		run.Fail("RENDER_FAILED")
		return nil, rerr
	}
	return f, nil
}

func (s *Service) RenderOrder(ctx context.Context, o *domorder.Order) (*File, error) {
	return s.render(ctx, "invoice", dominvoice.Build(o, nil, s.seller, s.buyer(ctx, o), s.now()))
}

func (s *Service) RenderReturn(ctx context.Context, o *domorder.Order, ret *domreturns.Return) (*File, error) {
	return s.render(ctx, "return", dominvoice.Build(o, ret, s.seller, s.buyer(ctx, o), s.now()))
}

func (s *Service) render(ctx context.Context, endpoint string, doc dominvoice.Document) (*File, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()
	content, err := s.renderer.Render(doc)
	s.obs.External(renderPeer, endpoint, start, err)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRender, err)
	}
	return &File{Filename: doc.Filename, ContentType: ContentType, Content: content}, nil
}

// buyer is the customer record; the delivery snapshot stands in when the
// customer can no longer be found.
func (s *Service) buyer(ctx context.Context, o *domorder.Order) dominvoice.Buyer {
	if s.customers != nil {
		if c, err := s.customers.Get(ctx, o.CustomerID); err == nil {
			return dominvoice.Buyer{
				Name:       c.Name,
				Address:    c.Address,
				PostalCode: c.PostalCode,
				City:       c.City,
				Province:   c.Province,
				Phone:      c.Phone,
				Email:      c.Email,
				TaxID:      c.TaxID,
			}
		}
	}
	r := o.Recipient
	return dominvoice.Buyer{
		Name:       r.Name,
		Address:    r.Address,
		PostalCode: r.PostalCode,
		City:       r.City,
		Province:   r.Province,
		Phone:      r.Phone,
	}
}
