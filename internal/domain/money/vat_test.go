package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestSplitPartsSumToGross(t *testing.T) {
	for _, g := range []string{"0", "0.01", "5.95", "10.00", "25.95", "299.99", "300.00", "1234.56"} {
		t.Run(g, func(t *testing.T) {
			b := Split(d(g))
			assert.True(t, b.Net.Add(b.Tax).Equal(d(g)), "net+tax must equal gross")

			r := b.Rounded()
			assert.True(t, r.Net.Add(r.Tax).Equal(d(g)), "rounded net+tax must equal gross")
			assert.True(t, r.Net.Equal(r.Net.Round(2)), "net must be a cent value")
		})
	}
}

func TestSplitScenario(t *testing.T) {
	r := Split(d("25.95")).Rounded()
	assert.Equal(t, "21.45", r.Net.StringFixed(2))
	assert.Equal(t, "4.50", r.Tax.StringFixed(2))
	assert.Equal(t, "25.95", r.Gross.StringFixed(2))
}

func TestBreakdownArithmetic(t *testing.T) {
	two := Split(d("10.00")).Add(Split(d("10.00")))
	require.True(t, two.Gross.Equal(d("20.00")))

	sum := two.Add(Split(d("5.95")))
	assert.True(t, sum.Gross.Equal(d("25.95")))
	assert.True(t, sum.Net.Add(sum.Tax).Equal(d("25.95")))

	neg := sum.Neg()
	assert.True(t, neg.Gross.Equal(d("-25.95")))
}

func TestMinorUnits(t *testing.T) {
	assert.Equal(t, int64(2595), MinorUnits(d("25.95")))
	assert.Equal(t, int64(30000), MinorUnits(d("300")))
	assert.Equal(t, int64(1), MinorUnits(d("0.005")))
	assert.True(t, FromMinorUnits(2595).Equal(d("25.95")))
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "25.95 €", Format(d("25.95")))
	assert.Equal(t, "5.00 €", Format(d("5")))
	assert.Equal(t, "-5.95 €", FormatNegative(d("5.95")))
	assert.Equal(t, "-5.95 €", FormatNegative(d("-5.95")))
}
