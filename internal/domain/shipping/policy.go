package shipping

import "github.com/shopspring/decimal"

var (
	DefaultFreeThreshold = decimal.RequireFromString("300.00")
	DefaultFlatFee       = decimal.RequireFromString("5.95")
)

// Policy charges a flat fee below the free-shipping threshold.
type Policy struct {
	FreeThreshold decimal.Decimal
	FlatFee       decimal.Decimal
}

type Quote struct {
	Cost decimal.Decimal
	Free bool
}

func DefaultPolicy() Policy {
	return Policy{FreeThreshold: DefaultFreeThreshold, FlatFee: DefaultFlatFee}
}

// Quote prices shipping for a cart subtotal. Reaching the threshold exactly is free.
func (p Policy) Quote(subtotal decimal.Decimal) Quote {
	if subtotal.GreaterThanOrEqual(p.FreeThreshold) {
		return Quote{Cost: decimal.Zero, Free: true}
	}
	return Quote{Cost: p.FlatFee, Free: false}
}
