package pricing

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/Folau1/WebApp/internal/entity"
)

func genDiscount() gopter.Gen {
	return gopter.CombineGens(
		gen.Bool(),
		gen.Int64Range(1, 100),
		gen.Int64Range(1, 10_000_000),
	).Map(func(vals []interface{}) entity.Discount {
		if vals[0].(bool) {
			return entity.Discount{Type: entity.DiscountPercent, Value: vals[1].(int64), Active: true}
		}
		return entity.Discount{Type: entity.DiscountFixed, Value: vals[2].(int64), Active: true}
	})
}

func TestPriceProductProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 500
	properties := gopter.NewProperties(parameters)

	properties.Property("final price stays within [0, base]", prop.ForAll(
		func(base, compareAt int64, useCompareAt bool, ds []entity.Discount) bool {
			var ca *int64
			if useCompareAt {
				ca = &compareAt
			}
			r := PriceProduct(base, ca, ds)
			return r.FinalPrice >= 0 && r.FinalPrice <= base
		},
		gen.Int64Range(0, 100_000_000),
		gen.Int64Range(0, 200_000_000),
		gen.Bool(),
		gen.SliceOf(genDiscount()),
	))

	properties.Property("compare-at alone never changes the price", prop.ForAll(
		func(base, markup int64) bool {
			compareAt := base + markup
			r := PriceProduct(base, &compareAt, nil)
			return r.FinalPrice == base && r.Discount != nil && r.Discount.Amount == markup
		},
		gen.Int64Range(0, 100_000_000),
		gen.Int64Range(1, 100_000_000),
	))

	properties.Property("automatic discounts lower the price by the reported amount", prop.ForAll(
		func(base int64, ds []entity.Discount) bool {
			r := PriceProduct(base, nil, ds)
			if r.Discount == nil {
				return r.FinalPrice == base
			}
			return r.Discount.Amount > 0 && r.FinalPrice == max(0, base-r.Discount.Amount)
		},
		gen.Int64Range(0, 100_000_000),
		gen.SliceOf(genDiscount()),
	))

	properties.Property("order discount stays within [0, subtotal]", prop.ForAll(
		func(subtotal int64, d entity.Discount) bool {
			amount := ApplyOrderDiscount(subtotal, &d)
			return amount >= 0 && amount <= subtotal
		},
		gen.Int64Range(0, 1_000_000_000),
		genDiscount(),
	))

	properties.TestingRun(t)
}
