package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Folau1/WebApp/internal/entity"
	"github.com/Folau1/WebApp/internal/pricing"
	"github.com/Folau1/WebApp/internal/repository"
)

// PricedProduct is a catalog product with its current selling price.
type PricedProduct struct {
	entity.Product
	FinalPrice int64                 `json:"final_price"`
	Discount   *pricing.DiscountInfo `json:"discount"`
}

// ProductPage is one page of the catalog.
type ProductPage struct {
	Products []PricedProduct `json:"products"`
	Total    int             `json:"total"`
	Page     int             `json:"page"`
	Limit    int             `json:"limit"`
}

// CodeCheck is the outcome of validating a discount code.
type CodeCheck struct {
	Code  string              `json:"code"`
	Type  entity.DiscountType `json:"type"`
	Value int64               `json:"value"`
}

// CatalogService serves the public catalog with prices computed at read time.
type CatalogService struct {
	productRepo  repository.ProductRepository
	discountRepo repository.DiscountRepository
	now          func() time.Time
}

func NewCatalogService(productRepo repository.ProductRepository, discountRepo repository.DiscountRepository) *CatalogService {
	return &CatalogService{productRepo: productRepo, discountRepo: discountRepo, now: time.Now}
}

func (s *CatalogService) ListProducts(ctx context.Context, q repository.ProductQuery) (*ProductPage, error) {
	if q.Page <= 0 {
		q.Page = 1
	}
	if q.Limit <= 0 || q.Limit > 100 {
		q.Limit = 20
	}
	products, total, err := s.productRepo.List(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}

	now := s.now()
	page := &ProductPage{Products: make([]PricedProduct, 0, len(products)), Total: total, Page: q.Page, Limit: q.Limit}
	for _, p := range products {
		page.Products = append(page.Products, priced(p, now))
	}
	return page, nil
}

func (s *CatalogService) GetProduct(ctx context.Context, slug string) (*PricedProduct, error) {
	p, err := s.productRepo.FindBySlug(ctx, slug)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, NotFoundError("product not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product %s: %w", slug, err)
	}
	pp := priced(*p, s.now())
	return &pp, nil
}

func (s *CatalogService) ListCategories(ctx context.Context) ([]entity.Category, error) {
	categories, err := s.productRepo.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	return categories, nil
}

// ValidateDiscountCode tells a customer whether a code can be used now.
func (s *CatalogService) ValidateDiscountCode(ctx context.Context, code string) (*CodeCheck, error) {
	code = entity.NormalizeCode(code)
	if code == "" {
		return nil, ValidationError("discount code is required")
	}

	d, err := s.discountRepo.FindByCode(ctx, code)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, NotFoundError("discount code not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up discount code: %w", err)
	}
	if !d.Active {
		return nil, NotFoundError("discount code not found")
	}

	now := s.now()
	if d.StartsAt != nil && now.Before(*d.StartsAt) {
		return nil, ValidationError("discount code is not active yet")
	}
	if d.EndsAt != nil && now.After(*d.EndsAt) {
		return nil, ValidationError("discount code has expired")
	}
	return &CodeCheck{Code: code, Type: d.Type, Value: d.Value}, nil
}

func priced(p entity.Product, now time.Time) PricedProduct {
	r := pricing.PriceAt(p, now)
	return PricedProduct{Product: p, FinalPrice: r.FinalPrice, Discount: r.Discount}
}
