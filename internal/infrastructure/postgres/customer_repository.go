package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	domain "github.com/latrastienda/tienda/internal/domain/customer"
)

type CustomerRepository struct {
	db *DB
}

func NewCustomerRepository(db *DB) *CustomerRepository {
	return &CustomerRepository{db: db}
}

func (r *CustomerRepository) Get(ctx context.Context, id string) (*domain.Customer, error) {
	var c domain.Customer
	err := r.db.pool.QueryRow(ctx, `
		SELECT id, name, email, tax_id, phone, address, postal_code, city, province
		FROM customers WHERE id = $1`, id,
	).Scan(&c.ID, &c.Name, &c.Email, &c.TaxID, &c.Phone, &c.Address, &c.PostalCode, &c.City, &c.Province)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("customer: get: %w", err)
	}
	return &c, nil
}

func (r *CustomerRepository) Save(ctx context.Context, c *domain.Customer) error {
	if c == nil {
		return nil
	}
	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO customers (id, name, email, tax_id, phone, address, postal_code, city, province)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name, email = EXCLUDED.email, tax_id = EXCLUDED.tax_id,
			phone = EXCLUDED.phone, address = EXCLUDED.address, postal_code = EXCLUDED.postal_code,
			city = EXCLUDED.city, province = EXCLUDED.province`,
		c.ID, c.Name, c.Email, c.TaxID, c.Phone, c.Address, c.PostalCode, c.City, c.Province,
	)
	if err != nil {
		return fmt.Errorf("customer: save: %w", err)
	}
	return nil
}
