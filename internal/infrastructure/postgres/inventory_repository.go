package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	domain "github.com/latrastienda/tienda/internal/domain/inventory"
)

type InventoryRepository struct {
	db *DB
}

func NewInventoryRepository(db *DB) *InventoryRepository {
	return &InventoryRepository{db: db}
}

func (r *InventoryRepository) Get(ctx context.Context, productID string) (*domain.Item, error) {
	var item domain.Item
	err := r.db.pool.QueryRow(ctx, `
		SELECT product_id, name, price, quantity, updated_at
		FROM products WHERE product_id = $1`, productID,
	).Scan(&item.ProductID, &item.Name, &item.Price, &item.Quantity, &item.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("inventory: get: %w", err)
	}
	return &item, nil
}

func (r *InventoryRepository) Save(ctx context.Context, item *domain.Item) error {
	if item == nil {
		return nil
	}
	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO products (product_id, name, price, quantity, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (product_id) DO UPDATE
		SET name = EXCLUDED.name, price = EXCLUDED.price,
			quantity = EXCLUDED.quantity, updated_at = EXCLUDED.updated_at`,
		item.ProductID, item.Name, item.Price, item.Quantity, item.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("inventory: save: %w", err)
	}
	return nil
}

func (r *InventoryRepository) List(ctx context.Context) ([]*domain.Item, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT product_id, name, price, quantity, updated_at
		FROM products ORDER BY product_id`)
	if err != nil {
		return nil, fmt.Errorf("inventory: list: %w", err)
	}
	defer rows.Close()

	var out []*domain.Item
	for rows.Next() {
		var item domain.Item
		if err := rows.Scan(&item.ProductID, &item.Name, &item.Price, &item.Quantity, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("inventory: list scan: %w", err)
		}
		out = append(out, &item)
	}
	return out, rows.Err()
}
