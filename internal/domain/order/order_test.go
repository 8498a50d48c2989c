package order

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func sampleOrder(t *testing.T) *Order {
	t.Helper()
	o, err := New("cust-1", PaymentCard, []Line{
		{ProductID: "rosa-roja", ProductName: "Ramo de rosas", UnitPrice: dec("10.00"), Quantity: 2},
	}, dec("5.95"), false, time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	return o
}

func TestOrderTotals(t *testing.T) {
	o := sampleOrder(t)

	assert.Equal(t, "20.00", o.Subtotal().StringFixed(2))
	assert.Equal(t, "25.95", o.Total().StringFixed(2))
	assert.Equal(t, 2, o.TotalQuantity())

	b := o.Breakdown()
	assert.True(t, b.Gross.Equal(o.Total()))
	r := b.Rounded()
	assert.Equal(t, "21.45", r.Net.StringFixed(2))
	assert.Equal(t, "4.50", r.Tax.StringFixed(2))
}

func TestOrderBreakdownWithoutShipping(t *testing.T) {
	o, err := New("cust-1", PaymentBizum, []Line{
		{ProductID: "p", UnitPrice: dec("150.00"), Quantity: 2},
	}, decimal.Zero, true, time.Now())
	require.NoError(t, err)

	assert.True(t, o.Breakdown().Gross.Equal(dec("300.00")))
	assert.True(t, o.ShippingBreakdown().Gross.IsZero())
}

func TestNewValidates(t *testing.T) {
	_, err := New("c", PaymentMethod("cheque"), []Line{{Quantity: 1}}, decimal.Zero, false, time.Now())
	assert.ErrorIs(t, err, ErrInvalidMethod)

	_, err = New("c", PaymentCard, nil, decimal.Zero, false, time.Now())
	assert.ErrorIs(t, err, ErrNoLines)

	_, err = New("c", PaymentCard, []Line{{Quantity: 0}}, decimal.Zero, false, time.Now())
	assert.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = New("c", PaymentCard, []Line{{Quantity: 1, UnitPrice: dec("-1")}}, decimal.Zero, false, time.Now())
	assert.ErrorIs(t, err, ErrInvalidPrice)
}

func TestMarkPaidAndDecline(t *testing.T) {
	o := sampleOrder(t)
	at := time.Date(2025, 3, 1, 11, 0, 0, 0, time.UTC)

	o.RecordDecline("0184", "Tarjeta denegada", at)
	assert.False(t, o.Paid)
	assert.Equal(t, "Tarjeta denegada", o.Payment.ErrorDescription)
	require.NotNil(t, o.Payment.AttemptedAt)
	assert.Equal(t, at, *o.Payment.AttemptedAt)

	o.MarkPaid(PaymentTrace{AuthorizationCode: "123456", ResponseCode: "0000", CardCountry: "724"})
	assert.True(t, o.Paid)
	assert.Equal(t, "123456", o.Payment.AuthorizationCode)
	assert.Empty(t, o.Payment.ErrorDescription)
}

func TestCloneIsDeep(t *testing.T) {
	o := sampleOrder(t)
	o.MarkShipped(time.Now())
	c := o.Clone()

	c.Lines[0].Quantity = 9
	*c.ShippedAt = time.Time{}

	assert.Equal(t, 2, o.Lines[0].Quantity)
	assert.False(t, o.ShippedAt.IsZero())
}
