package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Folau1/WebApp/internal/entity"
	"github.com/Folau1/WebApp/internal/repository"
)

func newCatalogFixture(t *testing.T) *CatalogService {
	t.Helper()
	of := newOrderFixture(t, entity.PaymentWorkflow)
	compareAt := int64(120000)
	of.products.products = append(of.products.products, entity.Product{
		ID: "p-3", Slug: "lamp", Title: "Lamp", Price: 100000, CompareAt: &compareAt, Active: true,
		Discounts: []entity.Discount{{ID: "auto-10", Type: entity.DiscountPercent, Value: 10, Active: true}},
	})
	svc := NewCatalogService(of.products, of.discounts)
	svc.now = func() time.Time { return fixedNow }
	return svc
}

func TestCatalog_ListProductsIsPriced(t *testing.T) {
	svc := newCatalogFixture(t)

	page, err := svc.ListProducts(context.Background(), repository.ProductQuery{})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 20, page.Limit)
	require.Len(t, page.Products, 3)

	byID := map[string]PricedProduct{}
	for _, p := range page.Products {
		byID[p.ID] = p
	}

	mug := byID["p-1"]
	assert.Equal(t, int64(90000), mug.FinalPrice)
	require.NotNil(t, mug.Discount)
	assert.Equal(t, int64(10000), mug.Discount.Amount)
	assert.Equal(t, int64(10), mug.Discount.Percentage)

	tee := byID["p-2"]
	assert.Equal(t, int64(30000), tee.FinalPrice)
	assert.Nil(t, tee.Discount)

	lamp := byID["p-3"]
	assert.Equal(t, int64(100000), lamp.FinalPrice)
	require.NotNil(t, lamp.Discount)
	assert.Equal(t, int64(20000), lamp.Discount.Amount)
	assert.Equal(t, int64(20), lamp.Discount.Percentage)
}

func TestCatalog_GetProduct(t *testing.T) {
	svc := newCatalogFixture(t)

	p, err := svc.GetProduct(context.Background(), "mug")
	require.NoError(t, err)
	assert.Equal(t, int64(90000), p.FinalPrice)

	_, err = svc.GetProduct(context.Background(), "old")
	assert.Equal(t, KindNotFound, KindOf(err))
}

func TestCatalog_ValidateDiscountCode(t *testing.T) {
	svc := newCatalogFixture(t)
	ctx := context.Background()

	check, err := svc.ValidateDiscountCode(ctx, " spring")
	require.NoError(t, err)
	assert.Equal(t, "SPRING", check.Code)
	assert.Equal(t, entity.DiscountFixed, check.Type)
	assert.Equal(t, int64(5000), check.Value)

	tests := []struct {
		code string
		want Kind
	}{
		{"", KindValidation},
		{"NOPE", KindNotFound},
		{"DISABLE", KindNotFound},
		{"LATER", KindValidation},
		{"OLD", KindValidation},
	}
	for _, tt := range tests {
		_, err := svc.ValidateDiscountCode(ctx, tt.code)
		assert.Equal(t, tt.want, KindOf(err), "code %q", tt.code)
	}
}

func TestErrors_KindAndMessage(t *testing.T) {
	err := GatewayError(assert.AnError, "payment provider unavailable")
	assert.Equal(t, KindGateway, KindOf(err))
	assert.Equal(t, "payment provider unavailable", MessageOf(err))
	assert.ErrorIs(t, err, assert.AnError)

	assert.Equal(t, KindInternal, KindOf(assert.AnError))
	assert.Equal(t, "internal error", MessageOf(assert.AnError))
	assert.Equal(t, "not_found", KindNotFound.String())
}
