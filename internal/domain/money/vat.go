// Package money holds the single VAT decomposition used by orders, shipping
// and returns. Nothing else in the module divides by the VAT factor.
package money

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// VATRate is the only tax rate the shop applies.
var VATRate = decimal.RequireFromString("0.21")

var (
	vatFactor = decimal.NewFromInt(1).Add(VATRate)
	hundred   = decimal.NewFromInt(100)
)

// Breakdown splits a tax-inclusive amount into its net and tax parts.
type Breakdown struct {
	Net   decimal.Decimal
	Tax   decimal.Decimal
	Gross decimal.Decimal
}

// Split decomposes gross as net = gross / 1.21 and tax = gross - net.
func Split(gross decimal.Decimal) Breakdown {
	net := gross.Div(vatFactor)
	return Breakdown{Net: net, Tax: gross.Sub(net), Gross: gross}
}

func (b Breakdown) Add(o Breakdown) Breakdown {
	return Breakdown{
		Net:   b.Net.Add(o.Net),
		Tax:   b.Tax.Add(o.Tax),
		Gross: b.Gross.Add(o.Gross),
	}
}

func (b Breakdown) Neg() Breakdown {
	return Breakdown{Net: b.Net.Neg(), Tax: b.Tax.Neg(), Gross: b.Gross.Neg()}
}

// Rounded returns the breakdown at cent precision. Net is rounded half-up and
// tax absorbs the remainder so that Net + Tax == Gross still holds.
func (b Breakdown) Rounded() Breakdown {
	gross := b.Gross.Round(2)
	net := b.Net.Round(2)
	return Breakdown{Net: net, Tax: gross.Sub(net), Gross: gross}
}

// MinorUnits converts euros to cents.
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(hundred).Round(0).IntPart()
}

// FromMinorUnits converts cents back to euros.
func FromMinorUnits(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}

// Format renders an amount the way invoices and emails print it, e.g. "25.95 €".
func Format(amount decimal.Decimal) string {
	return fmt.Sprintf("%s €", amount.StringFixed(2))
}

// FormatNegative renders amount with a leading minus sign regardless of its sign.
func FormatNegative(amount decimal.Decimal) string {
	return "-" + Format(amount.Abs())
}
