package cart

import "github.com/shopspring/decimal"

// PricingPolicy computes a line subtotal. It is chosen per cart through
// Config so discount schemes do not require a different Item type.
type PricingPolicy interface {
	Subtotal(it Item) decimal.Decimal
}

// UnitPricing charges price × quantity.
type UnitPricing struct{}

func (UnitPricing) Subtotal(it Item) decimal.Decimal { return it.Subtotal() }

// VolumeDiscount charges the first unit at full price and every further unit
// of the same product at price × (1 − Rate).
type VolumeDiscount struct {
	Rate decimal.Decimal
}

func (v VolumeDiscount) Subtotal(it Item) decimal.Decimal {
	if it.Quantity <= 1 {
		return it.Subtotal()
	}
	rest := decimal.NewFromInt(int64(it.Quantity - 1))
	discounted := it.Price.Mul(decimal.NewFromInt(1).Sub(v.Rate)).Mul(rest)
	return it.Price.Add(discounted)
}
