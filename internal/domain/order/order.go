package order

import (
	"errors"
	"time"

	"github.com/latrastienda/tienda/internal/domain/money"
	"github.com/shopspring/decimal"
)

var (
	ErrNotFound        = errors.New("order: not found")
	ErrConflict        = errors.New("order: conflict")
	ErrInvalidQuantity = errors.New("order: quantity must be greater than zero")
	ErrInvalidPrice    = errors.New("order: unit price must be zero or greater")
	ErrNoLines         = errors.New("order: at least one line is required")
	ErrInvalidMethod   = errors.New("order: unknown payment method")
	ErrNotPaid         = errors.New("order: not paid")
)

type PaymentMethod string

const (
	PaymentCard  PaymentMethod = "tarjeta"
	PaymentBizum PaymentMethod = "bizum"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCard, PaymentBizum:
		return true
	}
	return false
}

func (m PaymentMethod) Label() string {
	switch m {
	case PaymentCard:
		return "Tarjeta de crédito/débito"
	case PaymentBizum:
		return "Bizum"
	}
	return string(m)
}

// Recipient is the delivery address captured when the order is placed.
type Recipient struct {
	Name       string
	Address    string
	PostalCode string
	City       string
	Province   string
	Phone      string
}

// PaymentTrace keeps what the gateway reported about the last payment attempt.
type PaymentTrace struct {
	AuthorizationCode string
	ResponseCode      string
	ErrorDescription  string
	PaidDate          string
	PaidTime          string
	CardCountry       string
	MerchantCode      string
	AttemptedAt       *time.Time
}

type Line struct {
	ID          int64
	OrderID     int64
	ProductID   string
	ProductName string
	// UnitPrice is the tax-inclusive price at checkout time.
	UnitPrice decimal.Decimal
	Quantity  int
}

func (l Line) Gross() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

func (l Line) UnitBreakdown() money.Breakdown { return money.Split(l.UnitPrice) }

func (l Line) Breakdown() money.Breakdown { return money.Split(l.Gross()) }

type Order struct {
	ID            int64
	CustomerID    string
	CreatedAt     time.Time
	Paid          bool
	PaymentMethod PaymentMethod
	Shipped       bool
	ShippedAt     *time.Time
	ShippingCost  decimal.Decimal
	FreeShipping  bool
	Payment       PaymentTrace
	Recipient     Recipient
	GiftMessage   string
	Lines         []Line
}

// New builds an unpaid order. Stock is not touched here.
func New(customerID string, method PaymentMethod, lines []Line, shippingCost decimal.Decimal, free bool, now time.Time) (*Order, error) {
	if !method.Valid() {
		return nil, ErrInvalidMethod
	}
	if len(lines) == 0 {
		return nil, ErrNoLines
	}
	for _, l := range lines {
		if l.Quantity <= 0 {
			return nil, ErrInvalidQuantity
		}
		if l.UnitPrice.IsNegative() {
			return nil, ErrInvalidPrice
		}
	}
	return &Order{
		CustomerID:    customerID,
		CreatedAt:     now.UTC(),
		PaymentMethod: method,
		ShippingCost:  shippingCost,
		FreeShipping:  free,
		Lines:         append([]Line(nil), lines...),
	}, nil
}

func (o *Order) Subtotal() decimal.Decimal {
	total := decimal.Zero
	for _, l := range o.Lines {
		total = total.Add(l.Gross())
	}
	return total
}

// Total is Σ unit price × quantity plus shipping.
func (o *Order) Total() decimal.Decimal {
	return o.Subtotal().Add(o.ShippingCost)
}

func (o *Order) ShippingBreakdown() money.Breakdown {
	return money.Split(o.ShippingCost)
}

// Breakdown is the sum of the line breakdowns and the shipping breakdown.
func (o *Order) Breakdown() money.Breakdown {
	var b money.Breakdown
	for _, l := range o.Lines {
		b = b.Add(l.Breakdown())
	}
	if o.ShippingCost.IsPositive() {
		b = b.Add(o.ShippingBreakdown())
	}
	return b
}

func (o *Order) TotalQuantity() int {
	n := 0
	for _, l := range o.Lines {
		n += l.Quantity
	}
	return n
}

func (o *Order) Line(id int64) (Line, bool) {
	for _, l := range o.Lines {
		if l.ID == id {
			return l, true
		}
	}
	return Line{}, false
}

// MarkPaid records a successful gateway confirmation. A repeated confirmation
// overwrites the trace.
func (o *Order) MarkPaid(trace PaymentTrace) {
	o.Paid = true
	trace.ErrorDescription = ""
	o.Payment = trace
}

// RecordDecline stores why the gateway refused the payment. The paid flag is untouched.
func (o *Order) RecordDecline(code, description string, at time.Time) {
	at = at.UTC()
	o.Payment.ResponseCode = code
	o.Payment.ErrorDescription = description
	o.Payment.AttemptedAt = &at
}

func (o *Order) MarkShipped(at time.Time) {
	at = at.UTC()
	o.Shipped = true
	o.ShippedAt = &at
}

func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	c := *o
	c.Lines = append([]Line(nil), o.Lines...)
	if o.ShippedAt != nil {
		t := *o.ShippedAt
		c.ShippedAt = &t
	}
	if o.Payment.AttemptedAt != nil {
		t := *o.Payment.AttemptedAt
		c.Payment.AttemptedAt = &t
	}
	return &c
}
