package returns

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/latrastienda/tienda/internal/application"
	appinvoice "github.com/latrastienda/tienda/internal/application/invoice"
	domorder "github.com/latrastienda/tienda/internal/domain/order"
	domain "github.com/latrastienda/tienda/internal/domain/returns"
	"github.com/latrastienda/tienda/internal/observability"
	"github.com/shopspring/decimal"

	"go.opentelemetry.io/otel/attribute"
)

const (
	returnsService        = "returns-service"
	useCaseCreate         = "returns.create"
	useCaseApprove        = "returns.approve"
	useCaseReject         = "returns.reject"
	useCaseProcess        = "returns.process"
	useCaseAdjustShipping = "returns.adjust_shipping"
	useCaseComplete       = "returns.complete"
)

var (
	ErrNotFound      = domain.ErrNotFound
	ErrOrderNotFound = domorder.ErrNotFound
	ErrRepository    = errors.New("returns: repository failure")
)

// StockRestocker puts returned units back into stock.
type StockRestocker interface {
	RestockReturn(ctx context.Context, ret *domain.Return) (int, error)
}

type InvoiceRenderer interface {
	RenderReturn(ctx context.Context, o *domorder.Order, ret *domain.Return) (*appinvoice.File, error)
}

type Notifier interface {
	ReturnCompleted(ctx context.Context, o *domorder.Order, ret *domain.Return, file *appinvoice.File) error
}

type Service struct {
	returns  domain.Repository
	orders   domorder.Repository
	stock    StockRestocker
	invoices InvoiceRenderer
	notifier Notifier
	now      func() time.Time
	obs      application.Instruments
}

func NewService(
	returns domain.Repository,
	orders domorder.Repository,
	stock StockRestocker,
	invoices InvoiceRenderer,
	notifier Notifier,
	tel observability.Observability,
) *Service {
	return &Service{
		returns:  returns,
		orders:   orders,
		stock:    stock,
		invoices: invoices,
		notifier: notifier,
		now:      time.Now,
		obs:      application.NewInstruments(tel, returnsService),
	}
}

type LineInput struct {
	OrderLineID int64
	Quantity    int
	ReasonCode  string
}

type CreateInput struct {
	OrderID       int64
	Reason        string
	InternalNotes string
	// Lines with a zero quantity are treated as not selected.
	Lines            []LineInput
	ShippingOverride *decimal.Decimal
}

// Create files a return in the requested state with its totals computed.
func (s *Service) Create(ctx context.Context, cmd CreateInput) (_ *domain.Return, err error) {
	ctx, run := s.obs.Begin(ctx, useCaseCreate, "CreateReturn", attribute.Int64("order.id", cmd.OrderID))
	defer func() { run.End(ctx, err) }()
	run.Field("order_id", cmd.OrderID)

	if cmd.OrderID <= 0 {
		run.Fail("ORDER_ID_REQUIRED")
		return nil, application.NewValidation("order id is required")
	}
	o, gerr := s.orders.Get(ctx, cmd.OrderID)
	if gerr != nil {
		run.Fail("ORDER_LOOKUP_FAILED")
		return nil, s.orderError(gerr)
	}

	lines := make([]domain.Line, 0, len(cmd.Lines))
	for _, in := range cmd.Lines {
		if in.Quantity == 0 {
			continue
		}
		src, ok := o.Line(in.OrderLineID)
		if !ok {
			run.Fail("ORDER_LINE_UNKNOWN")
			return nil, fmt.Errorf("%w: %d", domain.ErrUnknownOrderLine, in.OrderLineID)
		}
		l, lerr := domain.NewLine(src, in.Quantity, domain.ReasonCode(in.ReasonCode))
		if lerr != nil {
			run.Fail("LINE_INVALID")
			return nil, lerr
		}
		lines = append(lines, l)
	}

	ret, nerr := domain.New(o.ID, cmd.Reason, lines, s.now())
	if nerr != nil {
		run.Fail("RETURN_EMPTY")
		return nil, nerr
	}
	ret.InternalNotes = cmd.InternalNotes
	if serr := ret.SetShippingOverride(cmd.ShippingOverride); serr != nil {
		run.Fail("SHIPPING_OVERRIDE_INVALID")
		return nil, serr
	}
	ret.Recalculate(o)

	if ierr := s.returns.Insert(ctx, ret); ierr != nil {
		run.Fail("REPO_INSERT_FAILED")
		return nil, fmt.Errorf("%w: %w", ErrRepository, ierr)
	}
	run.Field("return_id", ret.ID)
	run.Field("total", ret.Total.StringFixed(2))
	return ret, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*domain.Return, error) {
	ret, err := s.returns.Get(ctx, id)
	if err != nil {
		return nil, s.returnError(err)
	}
	return ret, nil
}

func (s *Service) ListByOrder(ctx context.Context, orderID int64) ([]*domain.Return, error) {
	out, err := s.returns.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRepository, err)
	}
	return out, nil
}

// Approve accepts a requested return and refreshes its totals.
func (s *Service) Approve(ctx context.Context, id int64) (*domain.Return, error) {
	return s.transition(ctx, id, useCaseApprove, "ApproveReturn", func(ret *domain.Return, o *domorder.Order) error {
		if err := ret.Approve(); err != nil {
			return err
		}
		ret.Recalculate(o)
		return nil
	})
}

func (s *Service) Reject(ctx context.Context, id int64) (*domain.Return, error) {
	return s.transition(ctx, id, useCaseReject, "RejectReturn", func(ret *domain.Return, _ *domorder.Order) error {
		return ret.Reject()
	})
}

// Process moves an approved return to processed. No stock moves and no
// invoice is issued; completion is the step that does that.
func (s *Service) Process(ctx context.Context, id int64) (*domain.Return, error) {
	return s.transition(ctx, id, useCaseProcess, "ProcessReturn", func(ret *domain.Return, _ *domorder.Order) error {
		return ret.Process()
	})
}

// AdjustShippingRefund sets or clears the staff shipping amount for a partial
// return and recomputes the totals. Closed returns cannot be adjusted.
func (s *Service) AdjustShippingRefund(ctx context.Context, id int64, amount *decimal.Decimal) (*domain.Return, error) {
	return s.transition(ctx, id, useCaseAdjustShipping, "AdjustShippingRefund", func(ret *domain.Return, o *domorder.Order) error {
		switch ret.Status {
		case domain.StatusCompleted, domain.StatusRejected, domain.StatusProcessed:
			return domain.ErrInvalidStateTransition
		}
		if err := ret.SetShippingOverride(amount); err != nil {
			return err
		}
		ret.Recalculate(o)
		return nil
	})
}

func (s *Service) transition(ctx context.Context, id int64, useCase, spanName string, apply func(*domain.Return, *domorder.Order) error) (_ *domain.Return, err error) {
	ctx, run := s.obs.Begin(ctx, useCase, spanName, attribute.Int64("return.id", id))
	defer func() { run.End(ctx, err) }()
	run.Field("return_id", id)

	ret, o, lerr := s.load(ctx, id)
	if lerr != nil {
		run.Fail("LOAD_FAILED")
		return nil, lerr
	}
	from := ret.Status
	if aerr := apply(ret, o); aerr != nil {
		run.Fail("TRANSITION_REJECTED")
		run.Field("from", string(from))
		return nil, aerr
	}
	if uerr := s.returns.Update(ctx, ret); uerr != nil {
		run.Fail("REPO_UPDATE_FAILED")
		return nil, fmt.Errorf("%w: %w", ErrRepository, uerr)
	}
	run.Field("from", string(from))
	run.Field("to", string(ret.Status))
	return ret, nil
}

// CompleteResult reports the side effects of completing a return. Each one is
// attempted independently; failures show up as warnings.
type CompleteResult struct {
	Return    *domain.Return
	Restocked int
	Invoice   *appinvoice.File
	EmailSent bool
	Warnings  []string
}

// Complete closes an approved return: status and totals are saved first, then
// stock is restocked, the negative invoice rendered and the customer emailed.
func (s *Service) Complete(ctx context.Context, id int64) (_ *CompleteResult, err error) {
	ctx, run := s.obs.Begin(ctx, useCaseComplete, "CompleteReturn", attribute.Int64("return.id", id))
	defer func() { run.End(ctx, err) }()
	run.Field("return_id", id)

	ret, o, lerr := s.load(ctx, id)
	if lerr != nil {
		run.Fail("LOAD_FAILED")
		return nil, lerr
	}
	if cerr := ret.Complete(s.now()); cerr != nil {
		run.Fail("TRANSITION_REJECTED")
		return nil, cerr
	}
	ret.Recalculate(o)
	if uerr := s.returns.Update(ctx, ret); uerr != nil {
		run.Fail("REPO_UPDATE_FAILED")
		return nil, fmt.Errorf("%w: %w", ErrRepository, uerr)
	}

	result := &CompleteResult{Return: ret}
	warn := func(step string, err error) {
		result.Warnings = append(result.Warnings, fmt.Sprintf("%s: %v", step, err))
		run.Logger.Warn("return_completion_step_failed",
			observability.F("return_id", ret.ID),
			observability.F("step", step),
			observability.F("error", err.Error()),
		)
	}

	if s.stock != nil {
		n, serr := s.stock.RestockReturn(ctx, ret)
		result.Restocked = n
		if serr != nil {
			warn("stock", serr)
		}
	}
	if s.invoices != nil {
		f, ierr := s.invoices.RenderReturn(ctx, o, ret)
		if ierr != nil {
			warn("invoice", ierr)
		} else {
			result.Invoice = f
		}
	}
	if s.notifier != nil && result.Invoice != nil {
		if nerr := s.notifier.ReturnCompleted(ctx, o, ret, result.Invoice); nerr != nil {
			warn("email", nerr)
		} else {
			result.EmailSent = true
		}
	}

	if len(result.Warnings) > 0 {
		run.Status("COMPLETED_WITH_WARNINGS")
		run.Field("warnings", len(result.Warnings))
	}
	return result, nil
}

func (s *Service) load(ctx context.Context, id int64) (*domain.Return, *domorder.Order, error) {
	if id <= 0 {
		return nil, nil, application.NewValidation("return id is required")
	}
	ret, err := s.returns.Get(ctx, id)
	if err != nil {
		return nil, nil, s.returnError(err)
	}
	o, err := s.orders.Get(ctx, ret.OrderID)
	if err != nil {
		return nil, nil, s.orderError(err)
	}
	return ret, o, nil
}

func (s *Service) returnError(err error) error {
	if errors.Is(err, domain.ErrNotFound) {
		return ErrNotFound
	}
	return fmt.Errorf("%w: %w", ErrRepository, err)
}

func (s *Service) orderError(err error) error {
	if errors.Is(err, domorder.ErrNotFound) {
		return ErrOrderNotFound
	}
	return fmt.Errorf("%w: %w", ErrRepository, err)
}
