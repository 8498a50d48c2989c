package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	domain "github.com/latrastienda/tienda/internal/domain/order"
)

type OrderRepository struct {
	db *DB
}

func NewOrderRepository(db *DB) *OrderRepository {
	return &OrderRepository{db: db}
}

const orderColumns = `id, customer_id, created_at, paid, payment_method, shipped, shipped_at,
	shipping_cost, free_shipping, authorization_code, response_code, error_description,
	paid_date, paid_time, card_country, merchant_code, attempted_at,
	recipient_name, recipient_address, recipient_postal_code, recipient_city,
	recipient_province, recipient_phone, gift_message`

func (r *OrderRepository) Insert(ctx context.Context, o *domain.Order) error {
	tx, err := r.db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("order: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	err = tx.QueryRow(ctx, `
		INSERT INTO orders (customer_id, created_at, paid, payment_method, shipped, shipped_at,
			shipping_cost, free_shipping, recipient_name, recipient_address, recipient_postal_code,
			recipient_city, recipient_province, recipient_phone, gift_message)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING id`,
		o.CustomerID, o.CreatedAt, o.Paid, string(o.PaymentMethod), o.Shipped, o.ShippedAt,
		o.ShippingCost, o.FreeShipping, o.Recipient.Name, o.Recipient.Address, o.Recipient.PostalCode,
		o.Recipient.City, o.Recipient.Province, o.Recipient.Phone, o.GiftMessage,
	).Scan(&o.ID)
	if err != nil {
		return fmt.Errorf("order: insert: %w", err)
	}

	for i := range o.Lines {
		l := &o.Lines[i]
		l.OrderID = o.ID
		err := tx.QueryRow(ctx, `
			INSERT INTO order_lines (order_id, product_id, product_name, unit_price, quantity)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id`,
			o.ID, l.ProductID, l.ProductName, l.UnitPrice, l.Quantity,
		).Scan(&l.ID)
		if err != nil {
			return fmt.Errorf("order: insert line: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("order: commit: %w", err)
	}
	return nil
}

func (r *OrderRepository) Get(ctx context.Context, id int64) (*domain.Order, error) {
	o, err := scanOrder(r.db.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("order: get: %w", err)
	}
	lines, err := r.lines(ctx, []int64{id})
	if err != nil {
		return nil, err
	}
	o.Lines = lines[id]
	return o, nil
}

// Update writes the header and payment trace. Lines never change after checkout.
func (r *OrderRepository) Update(ctx context.Context, o *domain.Order) error {
	tag, err := r.db.pool.Exec(ctx, `
		UPDATE orders SET paid = $2, payment_method = $3, shipped = $4, shipped_at = $5,
			shipping_cost = $6, free_shipping = $7, authorization_code = $8, response_code = $9,
			error_description = $10, paid_date = $11, paid_time = $12, card_country = $13,
			merchant_code = $14, attempted_at = $15, gift_message = $16
		WHERE id = $1`,
		o.ID, o.Paid, string(o.PaymentMethod), o.Shipped, o.ShippedAt,
		o.ShippingCost, o.FreeShipping, o.Payment.AuthorizationCode, o.Payment.ResponseCode,
		o.Payment.ErrorDescription, o.Payment.PaidDate, o.Payment.PaidTime, o.Payment.CardCountry,
		o.Payment.MerchantCode, o.Payment.AttemptedAt, o.GiftMessage,
	)
	if err != nil {
		return fmt.Errorf("order: update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Delete removes the order, its lines and any returns filed against it.
func (r *OrderRepository) Delete(ctx context.Context, id int64) error {
	tx, err := r.db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("order: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	stmts := []string{
		`DELETE FROM return_lines WHERE return_id IN (SELECT id FROM returns WHERE order_id = $1)`,
		`DELETE FROM returns WHERE order_id = $1`,
		`DELETE FROM order_lines WHERE order_id = $1`,
	}
	for _, stmt := range stmts {
		if _, err := tx.Exec(ctx, stmt, id); err != nil {
			return fmt.Errorf("order: delete: %w", err)
		}
	}
	tag, err := tx.Exec(ctx, `DELETE FROM orders WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("order: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("order: commit: %w", err)
	}
	return nil
}

func (r *OrderRepository) List(ctx context.Context, filter domain.ListFilter) ([]*domain.Order, error) {
	var (
		where []string
		args  []any
	)
	if filter.Paid != nil {
		args = append(args, *filter.Paid)
		where = append(where, fmt.Sprintf("paid = $%d", len(args)))
	}
	if filter.Shipped != nil {
		args = append(args, *filter.Shipped)
		where = append(where, fmt.Sprintf("shipped = $%d", len(args)))
	}
	if filter.CustomerID != "" {
		args = append(args, filter.CustomerID)
		where = append(where, fmt.Sprintf("customer_id = $%d", len(args)))
	}
	query := `SELECT ` + orderColumns + ` FROM orders`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY id DESC`

	rows, err := r.db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("order: list: %w", err)
	}
	defer rows.Close()

	var (
		out []*domain.Order
		ids []int64
	)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("order: list scan: %w", err)
		}
		out = append(out, o)
		ids = append(ids, o.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("order: list: %w", err)
	}
	if len(ids) == 0 {
		return out, nil
	}

	lines, err := r.lines(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, o := range out {
		o.Lines = lines[o.ID]
	}
	return out, nil
}

func (r *OrderRepository) lines(ctx context.Context, orderIDs []int64) (map[int64][]domain.Line, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT id, order_id, product_id, product_name, unit_price, quantity
		FROM order_lines WHERE order_id = ANY($1) ORDER BY id`, orderIDs)
	if err != nil {
		return nil, fmt.Errorf("order: lines: %w", err)
	}
	defer rows.Close()

	out := make(map[int64][]domain.Line, len(orderIDs))
	for rows.Next() {
		var l domain.Line
		if err := rows.Scan(&l.ID, &l.OrderID, &l.ProductID, &l.ProductName, &l.UnitPrice, &l.Quantity); err != nil {
			return nil, fmt.Errorf("order: lines scan: %w", err)
		}
		out[l.OrderID] = append(out[l.OrderID], l)
	}
	return out, rows.Err()
}

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var (
		o      domain.Order
		method string
	)
	err := row.Scan(
		&o.ID, &o.CustomerID, &o.CreatedAt, &o.Paid, &method, &o.Shipped, &o.ShippedAt,
		&o.ShippingCost, &o.FreeShipping, &o.Payment.AuthorizationCode, &o.Payment.ResponseCode,
		&o.Payment.ErrorDescription, &o.Payment.PaidDate, &o.Payment.PaidTime, &o.Payment.CardCountry,
		&o.Payment.MerchantCode, &o.Payment.AttemptedAt,
		&o.Recipient.Name, &o.Recipient.Address, &o.Recipient.PostalCode, &o.Recipient.City,
		&o.Recipient.Province, &o.Recipient.Phone, &o.GiftMessage,
	)
	if err != nil {
		return nil, err
	}
	o.PaymentMethod = domain.PaymentMethod(method)
	return &o, nil
}
