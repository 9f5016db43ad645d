package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

type seedProduct struct {
	id, slug, title, description, categoryID, imageURL string
	price                                               int64
	compareAt                                           *int64
	stock                                               int
}

func kopecks(rub int64) *int64 {
	v := rub * 100
	return &v
}

// SeedCatalog fills an empty catalog with demo data. It is a no-op once any
// product exists.
func SeedCatalog(ctx context.Context, db *sql.DB) error {
	var count int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM products").Scan(&count); err != nil {
		return fmt.Errorf("failed to count products: %w", err)
	}
	if count > 0 {
		return nil
	}

	categories := [][3]string{
		{"cat-electronics", "Electronics", "electronics"},
		{"cat-home", "Home", "home"},
		{"cat-accessories", "Accessories", "accessories"},
	}
	products := []seedProduct{
		{id: "prod-001", slug: "wireless-headphones", title: "Wireless Noise-Cancelling Headphones", description: "Over-ear headphones with active noise cancellation and 30-hour battery life.", categoryID: "cat-electronics", imageURL: "https://images.unsplash.com/photo-1505740420928-5e560c06d30e?w=400", price: 2499000, compareAt: kopecks(29990), stock: 50},
		{id: "prod-002", slug: "mechanical-keyboard", title: "Mechanical Keyboard RGB", description: "Hot-swap switches with per-key RGB lighting and aluminum frame.", categoryID: "cat-electronics", imageURL: "https://images.unsplash.com/photo-1618384887929-16ec33fab9ef?w=400", price: 1299000, stock: 120},
		{id: "prod-003", slug: "smart-desk-lamp", title: "Smart LED Desk Lamp", description: "Adjustable color temperature with a USB charging port.", categoryID: "cat-home", imageURL: "https://images.unsplash.com/photo-1507473885765-e6ed057ab6fe?w=400", price: 349000, stock: 200},
		{id: "prod-004", slug: "laptop-backpack", title: "Laptop Backpack", description: "Water-resistant 17\" laptop compartment with anti-theft design.", categoryID: "cat-accessories", imageURL: "https://images.unsplash.com/photo-1553062407-98eeb64c6a62?w=400", price: 459000, stock: 80},
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, c := range categories {
		if _, err := tx.ExecContext(ctx, "INSERT INTO categories (id, name, slug) VALUES ($1, $2, $3)", c[0], c[1], c[2]); err != nil {
			return fmt.Errorf("failed to seed category %s: %w", c[0], err)
		}
	}
	for _, p := range products {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO products (id, slug, title, description, price, compare_at, stock, category_id) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)",
			p.id, p.slug, p.title, p.description, p.price, p.compareAt, p.stock, p.categoryID,
		)
		if err != nil {
			return fmt.Errorf("failed to seed product %s: %w", p.id, err)
		}
		_, err = tx.ExecContext(ctx,
			"INSERT INTO media (id, product_id, url, sort_order) VALUES ($1, $2, $3, 0)",
			"media-"+p.id, p.id, p.imageURL,
		)
		if err != nil {
			return fmt.Errorf("failed to seed media for %s: %w", p.id, err)
		}
	}

	seedDiscounts := []string{
		"INSERT INTO discounts (id, code, type, value) VALUES ('disc-home-10', NULL, 'PERCENT', 10)",
		"INSERT INTO category_discounts (category_id, discount_id) VALUES ('cat-home', 'disc-home-10')",
		"INSERT INTO discounts (id, code, type, value) VALUES ('disc-welcome', 'WELCOME', 'FIXED', 50000)",
	}
	for _, stmt := range seedDiscounts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to seed discounts: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	slog.Info("Seeded catalog", "categories", len(categories), "products", len(products))
	return nil
}
