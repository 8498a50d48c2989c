// Package postgres stores orders, returns, products and customers with pgx.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

type DB struct {
	pool *pgxpool.Pool
}

func Open(ctx context.Context, connString string) (*DB, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse connection string: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 1
	config.MaxConnLifetime = time.Hour
	config.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("postgres: create pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}

	return &DB{pool: pool}, nil
}

func (db *DB) Close() {
	db.pool.Close()
}

func (db *DB) Ping(ctx context.Context) error {
	return db.pool.Ping(ctx)
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS customers (
		id          TEXT PRIMARY KEY,
		name        TEXT NOT NULL DEFAULT '',
		email       TEXT NOT NULL DEFAULT '',
		tax_id      TEXT NOT NULL DEFAULT '',
		phone       TEXT NOT NULL DEFAULT '',
		address     TEXT NOT NULL DEFAULT '',
		postal_code TEXT NOT NULL DEFAULT '',
		city        TEXT NOT NULL DEFAULT '',
		province    TEXT NOT NULL DEFAULT ''
	)`,

	`CREATE TABLE IF NOT EXISTS products (
		product_id TEXT PRIMARY KEY,
		name       TEXT NOT NULL,
		price      NUMERIC(10,2) NOT NULL,
		quantity   INTEGER NOT NULL CHECK (quantity >= 0),
		updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS orders (
		id                    BIGSERIAL PRIMARY KEY,
		customer_id           TEXT NOT NULL,
		created_at            TIMESTAMP WITH TIME ZONE NOT NULL,
		paid                  BOOLEAN NOT NULL DEFAULT false,
		payment_method        TEXT NOT NULL,
		shipped               BOOLEAN NOT NULL DEFAULT false,
		shipped_at            TIMESTAMP WITH TIME ZONE,
		shipping_cost         NUMERIC(10,2) NOT NULL DEFAULT 0,
		free_shipping         BOOLEAN NOT NULL DEFAULT false,
		authorization_code    TEXT NOT NULL DEFAULT '',
		response_code         TEXT NOT NULL DEFAULT '',
		error_description     TEXT NOT NULL DEFAULT '',
		paid_date             TEXT NOT NULL DEFAULT '',
		paid_time             TEXT NOT NULL DEFAULT '',
		card_country          TEXT NOT NULL DEFAULT '',
		merchant_code         TEXT NOT NULL DEFAULT '',
		attempted_at          TIMESTAMP WITH TIME ZONE,
		recipient_name        TEXT NOT NULL DEFAULT '',
		recipient_address     TEXT NOT NULL DEFAULT '',
		recipient_postal_code TEXT NOT NULL DEFAULT '',
		recipient_city        TEXT NOT NULL DEFAULT '',
		recipient_province    TEXT NOT NULL DEFAULT '',
		recipient_phone       TEXT NOT NULL DEFAULT '',
		gift_message          TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS idx_orders_customer_id ON orders(customer_id)`,

	`CREATE TABLE IF NOT EXISTS order_lines (
		id           BIGSERIAL PRIMARY KEY,
		order_id     BIGINT NOT NULL REFERENCES orders(id),
		product_id   TEXT NOT NULL,
		product_name TEXT NOT NULL DEFAULT '',
		unit_price   NUMERIC(10,2) NOT NULL,
		quantity     INTEGER NOT NULL CHECK (quantity >= 1)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_order_lines_order_id ON order_lines(order_id)`,

	`CREATE TABLE IF NOT EXISTS returns (
		id                BIGSERIAL PRIMARY KEY,
		order_id          BIGINT NOT NULL REFERENCES orders(id),
		status            TEXT NOT NULL,
		requested_at      TIMESTAMP WITH TIME ZONE NOT NULL,
		processed_at      TIMESTAMP WITH TIME ZONE,
		reason            TEXT NOT NULL DEFAULT '',
		internal_notes    TEXT NOT NULL DEFAULT '',
		shipping_override NUMERIC(10,2),
		shipping_refund   NUMERIC(10,2) NOT NULL DEFAULT 0,
		base              NUMERIC(10,2) NOT NULL DEFAULT 0,
		tax               NUMERIC(10,2) NOT NULL DEFAULT 0,
		total             NUMERIC(10,2) NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS idx_returns_order_id ON returns(order_id)`,

	// order_line_id is a weak reference: no foreign key.
	`CREATE TABLE IF NOT EXISTS return_lines (
		id            BIGSERIAL PRIMARY KEY,
		return_id     BIGINT NOT NULL REFERENCES returns(id),
		order_line_id BIGINT NOT NULL,
		product_id    TEXT NOT NULL,
		product_name  TEXT NOT NULL DEFAULT '',
		quantity      INTEGER NOT NULL CHECK (quantity >= 1),
		unit_price    NUMERIC(10,2) NOT NULL,
		reason_code   TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_return_lines_return_id ON return_lines(return_id)`,
}

func (db *DB) Migrate(ctx context.Context) error {
	for _, migration := range migrations {
		if _, err := db.pool.Exec(ctx, migration); err != nil {
			return fmt.Errorf("postgres: migrate: %w", err)
		}
	}
	return nil
}
