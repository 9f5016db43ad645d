package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/Folau1/WebApp/internal/entity"
	"github.com/Folau1/WebApp/internal/repository"
)

const productColumns = "id, slug, title, description, price, compare_at, active, stock, category_id, created_at"

const (
	queryActiveProductsByIDs = "SELECT " + productColumns + " FROM products WHERE id = ANY($1) AND active = TRUE"
	queryProductBySlug       = "SELECT " + productColumns + " FROM products WHERE slug = $1 AND active = TRUE"

	// Automatic discounts reach a product directly or through its category.
	queryAttachedDiscounts = `
		SELECT pd.product_id, d.id, d.code, d.type, d.value, d.starts_at, d.ends_at, d.active
		FROM product_discounts pd
		JOIN discounts d ON d.id = pd.discount_id
		WHERE pd.product_id = ANY($1) AND d.code IS NULL
		UNION ALL
		SELECT p.id, d.id, d.code, d.type, d.value, d.starts_at, d.ends_at, d.active
		FROM products p
		JOIN category_discounts cd ON cd.category_id = p.category_id
		JOIN discounts d ON d.id = cd.discount_id
		WHERE p.id = ANY($1) AND d.code IS NULL
		ORDER BY 1, 2`

	queryMedia = "SELECT product_id, id, kind, url, sort_order FROM media WHERE product_id = ANY($1) ORDER BY product_id, sort_order"

	queryCategories = `
		SELECT c.id, c.name, c.slug, COUNT(p.id)
		FROM categories c
		LEFT JOIN products p ON p.category_id = c.id AND p.active = TRUE
		GROUP BY c.id, c.name, c.slug
		ORDER BY c.name`
)

var productSorts = map[string]string{
	"price_asc":    "price ASC",
	"price_desc":   "price DESC",
	"created_asc":  "created_at ASC",
	"created_desc": "created_at DESC",
}

type productRepository struct {
	db *sql.DB
}

// NewProductRepository creates a new ProductRepository backed by Postgres.
func NewProductRepository(db *sql.DB) repository.ProductRepository {
	return &productRepository{db: db}
}

func (r *productRepository) FindActiveByIDs(ctx context.Context, ids []string) ([]entity.Product, error) {
	rows, err := r.db.QueryContext(ctx, queryActiveProductsByIDs, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	products, err := scanProducts(rows)
	if err != nil {
		return nil, err
	}
	if err := r.loadRelations(ctx, products); err != nil {
		return nil, err
	}
	return products, nil
}

func (r *productRepository) FindBySlug(ctx context.Context, slug string) (*entity.Product, error) {
	rows, err := r.db.QueryContext(ctx, queryProductBySlug, slug)
	if err != nil {
		return nil, fmt.Errorf("failed to query product %s: %w", slug, err)
	}
	products, err := scanProducts(rows)
	if err != nil {
		return nil, err
	}
	if len(products) == 0 {
		return nil, repository.ErrNotFound
	}
	if err := r.loadRelations(ctx, products); err != nil {
		return nil, err
	}
	return &products[0], nil
}

func (r *productRepository) List(ctx context.Context, q repository.ProductQuery) ([]entity.Product, int, error) {
	where := []string{"active = TRUE"}
	var args []any
	if q.Search != "" {
		args = append(args, "%"+q.Search+"%")
		where = append(where, fmt.Sprintf("(title ILIKE $%d OR description ILIKE $%d)", len(args), len(args)))
	}
	if q.CategoryID != "" {
		args = append(args, q.CategoryID)
		where = append(where, fmt.Sprintf("category_id = $%d", len(args)))
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM products WHERE "+cond, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count products: %w", err)
	}

	order, ok := productSorts[q.Sort]
	if !ok {
		order = productSorts["created_desc"]
	}
	limit, offset := pageBounds(q.Page, q.Limit)
	args = append(args, limit, offset)
	query := fmt.Sprintf("SELECT %s FROM products WHERE %s ORDER BY %s LIMIT $%d OFFSET $%d",
		productColumns, cond, order, len(args)-1, len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query products: %w", err)
	}
	products, err := scanProducts(rows)
	if err != nil {
		return nil, 0, err
	}
	if err := r.loadRelations(ctx, products); err != nil {
		return nil, 0, err
	}
	return products, total, nil
}

func (r *productRepository) ListCategories(ctx context.Context) ([]entity.Category, error) {
	rows, err := r.db.QueryContext(ctx, queryCategories)
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer rows.Close()

	var categories []entity.Category
	for rows.Next() {
		var c entity.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Slug, &c.ProductCount); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// loadRelations fills media and attached discounts in place.
func (r *productRepository) loadRelations(ctx context.Context, products []entity.Product) error {
	if len(products) == 0 {
		return nil
	}
	ids := make([]string, len(products))
	index := make(map[string]int, len(products))
	for i, p := range products {
		ids[i] = p.ID
		index[p.ID] = i
	}

	rows, err := r.db.QueryContext(ctx, queryAttachedDiscounts, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("failed to query product discounts: %w", err)
	}
	for rows.Next() {
		var productID string
		d, err := scanDiscount(rows, &productID)
		if err != nil {
			rows.Close()
			return err
		}
		if i, ok := index[productID]; ok {
			products[i].Discounts = append(products[i].Discounts, d)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating product discounts: %w", err)
	}

	mediaRows, err := r.db.QueryContext(ctx, queryMedia, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("failed to query media: %w", err)
	}
	defer mediaRows.Close()
	for mediaRows.Next() {
		var productID string
		var m entity.Media
		if err := mediaRows.Scan(&productID, &m.ID, &m.Kind, &m.URL, &m.Order); err != nil {
			return fmt.Errorf("failed to scan media: %w", err)
		}
		if i, ok := index[productID]; ok {
			products[i].Media = append(products[i].Media, m)
		}
	}
	return mediaRows.Err()
}

func scanProducts(rows *sql.Rows) ([]entity.Product, error) {
	defer rows.Close()

	var products []entity.Product
	for rows.Next() {
		var p entity.Product
		var compareAt sql.NullInt64
		if err := rows.Scan(&p.ID, &p.Slug, &p.Title, &p.Description, &p.Price, &compareAt, &p.Active, &p.Stock, &p.CategoryID, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		if compareAt.Valid {
			p.CompareAt = &compareAt.Int64
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating product rows: %w", err)
	}
	return products, nil
}

type scanner interface {
	Scan(dest ...any) error
}

// scanDiscount reads the discount columns; prefix receives any leading columns.
func scanDiscount(s scanner, prefix ...any) (entity.Discount, error) {
	var d entity.Discount
	var code sql.NullString
	var startsAt, endsAt sql.NullTime
	dest := append(prefix, &d.ID, &code, &d.Type, &d.Value, &startsAt, &endsAt, &d.Active)
	if err := s.Scan(dest...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return d, repository.ErrNotFound
		}
		return d, fmt.Errorf("failed to scan discount: %w", err)
	}
	if code.Valid {
		d.Code = &code.String
	}
	if startsAt.Valid {
		d.StartsAt = &startsAt.Time
	}
	if endsAt.Valid {
		d.EndsAt = &endsAt.Time
	}
	return d, nil
}

// pageBounds turns a 1-based page and a limit into LIMIT/OFFSET values.
func pageBounds(page, limit int) (int, int) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if page <= 0 {
		page = 1
	}
	return limit, (page - 1) * limit
}
