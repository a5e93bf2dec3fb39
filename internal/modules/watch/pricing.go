package watch

import (
	"github.com/georgemunganga/watchdealer-backend/internal/pkg/apperr"
	"github.com/shopspring/decimal"
)

// RetailMarkup is applied to the cost price when no retail price is given.
var RetailMarkup = decimal.NewFromFloat(1.5)

var hundred = decimal.NewFromInt(100)

// DerivePrices fills in missing trade (= cost) and retail (= cost × 1.5) prices.
func DerivePrices(cost decimal.Decimal, trade, retail *decimal.Decimal) (decimal.Decimal, decimal.Decimal, decimal.Decimal, error) {
	if cost.IsNegative() {
		return decimal.Zero, decimal.Zero, decimal.Zero, apperr.Validation("cost_price cannot be negative")
	}
	t := cost
	if trade != nil {
		t = *trade
	}
	r := cost.Mul(RetailMarkup).Round(2)
	if retail != nil {
		r = *retail
	}
	if t.IsNegative() || r.IsNegative() {
		return decimal.Zero, decimal.Zero, decimal.Zero, apperr.Validation("prices cannot be negative")
	}
	return cost.Round(2), t.Round(2), r.Round(2), nil
}

// Margin is retail price minus trade price.
func Margin(w *Watch) decimal.Decimal {
	return w.RetailPrice.Sub(w.TradePrice)
}

// MarginPercentage is Margin as a percentage of the trade price, rounded to two
// places. It is zero when the trade price is zero.
func MarginPercentage(w *Watch) decimal.Decimal {
	if w.TradePrice.IsZero() {
		return decimal.Zero
	}
	return Margin(w).Div(w.TradePrice).Mul(hundred).Round(2)
}
