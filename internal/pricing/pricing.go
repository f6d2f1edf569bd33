// Package pricing computes cart and order totals.
package pricing

import (
	"github.com/jogardn/safety-storefront/pkg/models"
	"github.com/shopspring/decimal"
)

var (
	TaxRate               = decimal.RequireFromString("0.18")
	FreeShippingThreshold = decimal.NewFromInt(1000)
	FlatShipping          = decimal.NewFromInt(50)
)

// Compute recomputes totals from scratch. Amounts are rounded to two places
// so repeated recalculation over the same items yields identical results.
// Shipping is free only when the subtotal is strictly above the threshold.
func Compute(items []models.LineItem) models.Totals {
	subtotal := decimal.Zero
	for _, item := range items {
		line := decimal.NewFromFloat(item.Price).Mul(decimal.NewFromInt(int64(item.Qty)))
		subtotal = subtotal.Add(line)
	}
	subtotal = subtotal.Round(2)

	tax := subtotal.Mul(TaxRate).Round(2)

	shipping := FlatShipping
	if subtotal.GreaterThan(FreeShippingThreshold) {
		shipping = decimal.Zero
	}

	t := models.Totals{
		Subtotal: subtotal.InexactFloat64(),
		Tax:      tax.InexactFloat64(),
		Shipping: shipping.InexactFloat64(),
	}
	// Grand is summed from the returned fields so clients adding them up
	// get exactly the same number.
	t.Grand = t.Subtotal + t.Tax + t.Shipping
	return t
}

// Consistent reports whether grand equals subtotal + tax + shipping.
func Consistent(t models.Totals) bool {
	return t.Grand == t.Subtotal+t.Tax+t.Shipping
}
