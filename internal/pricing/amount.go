// Package pricing computes cart and order totals: code based discounts,
// category auto-discounts and the resulting final amounts.
package pricing

import (
	"github.com/shopspring/decimal"

	"storefront/internal/models"
)

var hundred = decimal.NewFromInt(100)

// Money converts a stored float amount into a decimal.
func Money(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v)
}

// Float converts a decimal amount back to the stored representation, rounded to cents.
func Float(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}

// DiscountAmount returns what d takes off base. Percentage discounts are
// clamped to MaxDiscountAmount when set; no discount exceeds base.
func DiscountAmount(d *models.Discount, base decimal.Decimal) decimal.Decimal {
	if d == nil || !base.IsPositive() {
		return decimal.Zero
	}

	var amount decimal.Decimal
	switch d.Type {
	case models.DiscountPercentage:
		amount = base.Mul(Money(d.Value)).Div(hundred)
		if d.MaxDiscountAmount != nil {
			amount = decimal.Min(amount, Money(*d.MaxDiscountAmount))
		}
	case models.DiscountFixed:
		amount = Money(d.Value)
	default:
		return decimal.Zero
	}

	if amount.IsNegative() {
		return decimal.Zero
	}
	return decimal.Min(amount, base).Round(2)
}

// lineDiscount scales a discount to a cart line. Fixed discounts apply per unit.
func lineDiscount(d *models.Discount, unitPrice decimal.Decimal, quantity int) decimal.Decimal {
	qty := decimal.NewFromInt(int64(quantity))
	lineTotal := unitPrice.Mul(qty)
	if d.Type == models.DiscountFixed {
		return decimal.Min(Money(d.Value).Mul(qty), lineTotal).Round(2)
	}
	return DiscountAmount(d, lineTotal)
}

// Subtract returns a − b floored at zero.
func Subtract(a, b decimal.Decimal) decimal.Decimal {
	out := a.Sub(b)
	if out.IsNegative() {
		return decimal.Zero
	}
	return out
}
