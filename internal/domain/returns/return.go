package returns

import (
	"errors"
	"time"

	"github.com/latrastienda/tienda/internal/domain/money"
	"github.com/latrastienda/tienda/internal/domain/order"
	"github.com/shopspring/decimal"
)

var (
	ErrNotFound               = errors.New("return: not found")
	ErrEmptyReturn            = errors.New("return: no lines selected")
	ErrInvalidQuantity        = errors.New("return: quantity must be greater than zero")
	ErrInvalidReason          = errors.New("return: unknown reason code")
	ErrUnknownOrderLine       = errors.New("return: line does not belong to the order")
	ErrInvalidStateTransition = errors.New("return: invalid state transition")
	ErrNegativeShipping       = errors.New("return: shipping refund must be zero or greater")
)

type Status string

const (
	StatusRequested Status = "solicitada"
	StatusApproved  Status = "aprobada"
	StatusRejected  Status = "rechazada"
	StatusProcessed Status = "procesada"
	StatusCompleted Status = "completada"
)

func (s Status) Valid() bool {
	switch s {
	case StatusRequested, StatusApproved, StatusRejected, StatusProcessed, StatusCompleted:
		return true
	}
	return false
}

type ReasonCode string

const (
	ReasonDefective     ReasonCode = "defectuoso"
	ReasonNotSatisfied  ReasonCode = "no_satisfaccion"
	ReasonShippingError ReasonCode = "error_envio"
	ReasonSizeChange    ReasonCode = "cambio_talla"
	ReasonOther         ReasonCode = "otro"
)

func (r ReasonCode) Valid() bool {
	switch r {
	case ReasonDefective, ReasonNotSatisfied, ReasonShippingError, ReasonSizeChange, ReasonOther:
		return true
	}
	return false
}

// Label is the customer-facing text for the reason.
func (r ReasonCode) Label() string {
	switch r {
	case ReasonDefective:
		return "Producto defectuoso"
	case ReasonNotSatisfied:
		return "No satisfecho con el producto"
	case ReasonShippingError:
		return "Error en el envío"
	case ReasonSizeChange:
		return "Cambio de talla"
	case ReasonOther:
		return "Otro motivo"
	}
	return string(r)
}

type Line struct {
	ID          int64
	ReturnID    int64
	OrderLineID int64
	ProductID   string
	ProductName string
	Quantity    int
	// UnitPrice is copied from the order line when the return is created.
	UnitPrice  decimal.Decimal
	ReasonCode ReasonCode
}

func (l Line) Gross() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

func (l Line) UnitBreakdown() money.Breakdown { return money.Split(l.UnitPrice) }

func (l Line) Breakdown() money.Breakdown { return money.Split(l.Gross()) }

// NewLine copies product and price from the order line being returned.
func NewLine(src order.Line, quantity int, reason ReasonCode) (Line, error) {
	if quantity <= 0 {
		return Line{}, ErrInvalidQuantity
	}
	if !reason.Valid() {
		return Line{}, ErrInvalidReason
	}
	return Line{
		OrderLineID: src.ID,
		ProductID:   src.ProductID,
		ProductName: src.ProductName,
		Quantity:    quantity,
		UnitPrice:   src.UnitPrice,
		ReasonCode:  reason,
	}, nil
}

type Return struct {
	ID            int64
	OrderID       int64
	Status        Status
	RequestedAt   time.Time
	ProcessedAt   *time.Time
	Reason        string
	InternalNotes string
	// ShippingOverride is the amount staff chose to refund for shipping on a
	// partial return. Nil means no override.
	ShippingOverride *decimal.Decimal
	ShippingRefund   decimal.Decimal
	Base             decimal.Decimal
	Tax              decimal.Decimal
	Total            decimal.Decimal
	Lines            []Line

	state State
}

func New(orderID int64, reason string, lines []Line, now time.Time) (*Return, error) {
	if len(lines) == 0 {
		return nil, ErrEmptyReturn
	}
	return &Return{
		OrderID:     orderID,
		Status:      StatusRequested,
		RequestedAt: now.UTC(),
		Reason:      reason,
		Lines:       append([]Line(nil), lines...),
	}, nil
}

func (r *Return) TotalQuantity() int {
	n := 0
	for _, l := range r.Lines {
		n += l.Quantity
	}
	return n
}

// IsTotal reports whether every unit of the order is being returned.
func (r *Return) IsTotal(o *order.Order) bool {
	return r.TotalQuantity() >= o.TotalQuantity()
}

// SetShippingOverride records the shipping amount staff want refunded on a
// partial return. Nil clears it.
func (r *Return) SetShippingOverride(amount *decimal.Decimal) error {
	if amount == nil {
		r.ShippingOverride = nil
		return nil
	}
	if amount.IsNegative() {
		return ErrNegativeShipping
	}
	v := *amount
	r.ShippingOverride = &v
	return nil
}

// Recalculate derives the shipping refund and the tax breakdown. A total
// return refunds the whole shipping cost. A partial one refunds the staff
// override, capped at the shipping paid, or nothing.
func (r *Return) Recalculate(o *order.Order) {
	switch {
	case r.IsTotal(o):
		r.ShippingRefund = o.ShippingCost
	case r.ShippingOverride != nil:
		r.ShippingRefund = decimal.Min(*r.ShippingOverride, o.ShippingCost)
	default:
		r.ShippingRefund = decimal.Zero
	}

	var b money.Breakdown
	for _, l := range r.Lines {
		b = b.Add(l.Breakdown())
	}
	if r.ShippingRefund.IsPositive() {
		b = b.Add(money.Split(r.ShippingRefund))
	}
	b = b.Rounded()
	r.Base, r.Tax, r.Total = b.Net, b.Tax, b.Gross
}

func (r *Return) Breakdown() money.Breakdown {
	return money.Breakdown{Net: r.Base, Tax: r.Tax, Gross: r.Total}
}

func (r *Return) currentState() State {
	if r.state == nil || r.state.Status() != r.Status {
		r.state = stateFor(r.Status)
	}
	return r.state
}

func (r *Return) apply(next State, err error) error {
	if err != nil {
		return err
	}
	r.state = next
	r.Status = next.Status()
	return nil
}

// NextStatuses lists the statuses the return can move to from where it is.
func (r *Return) NextStatuses() []Status {
	return nextStatuses(r.currentState())
}

func (r *Return) Approve() error {
	return r.apply(r.currentState().Approve(r))
}

func (r *Return) Reject() error {
	return r.apply(r.currentState().Reject(r))
}

func (r *Return) Process() error {
	return r.apply(r.currentState().Process(r))
}

// Complete requires at least one line and an approved return. It stamps the
// processed time.
func (r *Return) Complete(at time.Time) error {
	if len(r.Lines) == 0 {
		return ErrEmptyReturn
	}
	if err := r.apply(r.currentState().Complete(r)); err != nil {
		return err
	}
	at = at.UTC()
	r.ProcessedAt = &at
	return nil
}

func (r *Return) Clone() *Return {
	if r == nil {
		return nil
	}
	c := *r
	c.Lines = append([]Line(nil), r.Lines...)
	if r.ProcessedAt != nil {
		t := *r.ProcessedAt
		c.ProcessedAt = &t
	}
	if r.ShippingOverride != nil {
		v := *r.ShippingOverride
		c.ShippingOverride = &v
	}
	c.state = nil
	return &c
}
