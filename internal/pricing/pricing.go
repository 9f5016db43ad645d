// Package pricing computes product prices and order-level discounts.
// All amounts are minor currency units.
package pricing

import (
	"math"
	"time"

	"github.com/Folau1/WebApp/internal/entity"
)

// DiscountInfo describes the reduction applied to a product price.
// Percentage is relative to the base price, rounded half up.
type DiscountInfo struct {
	Amount     int64 `json:"amount"`
	Percentage int64 `json:"percentage"`
}

// Result is the outcome of pricing a single product.
type Result struct {
	FinalPrice int64         `json:"final_price"`
	Discount   *DiscountInfo `json:"discount"`
}

// PriceProduct picks the single best discount for a product: the manual
// compare-at difference or the largest automatic discount. Discounts never stack.
//
// The base price of a product with a compare-at price is already marked down,
// so when the compare-at difference wins it is reported but the price stays at
// base. An automatic discount lowers the price. On equal amounts the automatic
// discount wins, and among automatic discounts the earliest in ds.
//
// FinalPrice is therefore not monotonic in compareAt: once the compare-at
// difference exceeds the best automatic discount, the price goes back up to base.
func PriceProduct(basePrice int64, compareAt *int64, ds []entity.Discount) Result {
	var manual int64
	if compareAt != nil && *compareAt > basePrice {
		manual = *compareAt - basePrice
	}

	var best int64
	for _, d := range ds {
		if cur := discountAmount(basePrice, d); cur > best {
			best = cur
		}
	}

	switch {
	case best > 0 && best >= manual:
		return Result{
			FinalPrice: max(0, basePrice-best),
			Discount:   &DiscountInfo{Amount: best, Percentage: percentOf(best, basePrice)},
		}
	case manual > 0:
		return Result{
			FinalPrice: basePrice,
			Discount:   &DiscountInfo{Amount: manual, Percentage: percentOf(manual, basePrice)},
		}
	default:
		return Result{FinalPrice: basePrice}
	}
}

// ApplyOrderDiscount returns the amount to subtract from an order subtotal.
// The result always lies in [0, subtotal].
func ApplyOrderDiscount(subtotal int64, d *entity.Discount) int64 {
	if d == nil || subtotal <= 0 {
		return 0
	}
	var amount int64
	switch d.Type {
	case entity.DiscountPercent:
		amount = percentFloor(subtotal, d.Value)
	case entity.DiscountFixed:
		amount = d.Value
	}
	return max(0, min(amount, subtotal))
}

// ApplicableDiscounts returns the discounts in ds that apply at now.
func ApplicableDiscounts(ds []entity.Discount, now time.Time) []entity.Discount {
	out := make([]entity.Discount, 0, len(ds))
	for _, d := range ds {
		if d.ApplicableAt(now) {
			out = append(out, d)
		}
	}
	return out
}

// PriceAt prices p using only the discounts applicable at now.
func PriceAt(p entity.Product, now time.Time) Result {
	return PriceProduct(p.Price, p.CompareAt, ApplicableDiscounts(p.Discounts, now))
}

func discountAmount(basePrice int64, d entity.Discount) int64 {
	switch d.Type {
	case entity.DiscountPercent:
		return percentFloor(basePrice, d.Value)
	case entity.DiscountFixed:
		return d.Value
	default:
		return 0
	}
}

// percentFloor is floor(amount * pct / 100) without overflowing for large amounts.
func percentFloor(amount, pct int64) int64 {
	return amount/100*pct + amount%100*pct/100
}

// percentOf is round(part / whole * 100); zero when whole is zero.
func percentOf(part, whole int64) int64 {
	if whole <= 0 {
		return 0
	}
	if part > (math.MaxInt64-whole)/200 || whole > math.MaxInt64/2 {
		return int64(math.Round(float64(part) / float64(whole) * 100))
	}
	return (200*part + whole) / (2 * whole)
}
