package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq"
)

// InitDB opens the connection pool, pings it and applies the schema.
func InitDB(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := migrateDB(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	slog.Info("Database connected and migrated")
	return db, nil
}

func migrateDB(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, schema)
	return err
}

const schema = `
	CREATE TABLE IF NOT EXISTS categories (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		slug TEXT NOT NULL UNIQUE
	);

	CREATE TABLE IF NOT EXISTS products (
		id TEXT PRIMARY KEY,
		slug TEXT NOT NULL UNIQUE,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		price BIGINT NOT NULL CHECK (price >= 0),
		compare_at BIGINT CHECK (compare_at IS NULL OR compare_at > price),
		active BOOLEAN NOT NULL DEFAULT TRUE,
		stock INT NOT NULL DEFAULT 0 CHECK (stock >= 0),
		category_id TEXT NOT NULL REFERENCES categories(id),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS media (
		id TEXT PRIMARY KEY,
		product_id TEXT NOT NULL REFERENCES products(id) ON DELETE CASCADE,
		kind TEXT NOT NULL DEFAULT 'IMAGE',
		url TEXT NOT NULL,
		sort_order INT NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS discounts (
		id TEXT PRIMARY KEY,
		code TEXT UNIQUE,
		type TEXT NOT NULL CHECK (type IN ('PERCENT', 'FIXED')),
		value BIGINT NOT NULL CHECK (value > 0),
		starts_at TIMESTAMPTZ,
		ends_at TIMESTAMPTZ,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		CHECK (type <> 'PERCENT' OR value <= 100)
	);

	CREATE TABLE IF NOT EXISTS product_discounts (
		product_id TEXT NOT NULL REFERENCES products(id) ON DELETE CASCADE,
		discount_id TEXT NOT NULL REFERENCES discounts(id) ON DELETE CASCADE,
		PRIMARY KEY (product_id, discount_id)
	);

	CREATE TABLE IF NOT EXISTS category_discounts (
		category_id TEXT NOT NULL REFERENCES categories(id) ON DELETE CASCADE,
		discount_id TEXT NOT NULL REFERENCES discounts(id) ON DELETE CASCADE,
		PRIMARY KEY (category_id, discount_id)
	);

	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		tg_id TEXT NOT NULL UNIQUE,
		first_name TEXT NOT NULL DEFAULT '',
		last_name TEXT NOT NULL DEFAULT '',
		username TEXT NOT NULL DEFAULT ''
	);

	CREATE SEQUENCE IF NOT EXISTS order_number_seq;

	CREATE TABLE IF NOT EXISTS orders (
		id TEXT PRIMARY KEY,
		number BIGINT NOT NULL UNIQUE DEFAULT nextval('order_number_seq'),
		user_id TEXT REFERENCES users(id),
		subtotal BIGINT NOT NULL,
		discount_total BIGINT NOT NULL DEFAULT 0,
		total_amount BIGINT NOT NULL CHECK (total_amount >= 0),
		discount_id TEXT REFERENCES discounts(id),
		status TEXT NOT NULL DEFAULT 'PENDING',
		yk_payment_id TEXT,
		address JSONB,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS orders_yk_payment_id_idx ON orders (yk_payment_id);
	CREATE INDEX IF NOT EXISTS orders_user_id_idx ON orders (user_id);

	CREATE TABLE IF NOT EXISTS order_items (
		id SERIAL PRIMARY KEY,
		order_id TEXT NOT NULL REFERENCES orders(id),
		product_id TEXT NOT NULL REFERENCES products(id),
		title TEXT NOT NULL,
		unit_price BIGINT NOT NULL,
		qty INT NOT NULL CHECK (qty > 0),
		subtotal BIGINT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS events (
		id TEXT PRIMARY KEY,
		stream_id TEXT NOT NULL,
		stream_type TEXT NOT NULL,
		version INT NOT NULL,
		event_type TEXT NOT NULL,
		payload JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (stream_id, version)
	);
`
