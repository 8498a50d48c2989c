package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	domain "github.com/latrastienda/tienda/internal/domain/returns"
	"github.com/shopspring/decimal"
)

type ReturnRepository struct {
	db *DB
}

func NewReturnRepository(db *DB) *ReturnRepository {
	return &ReturnRepository{db: db}
}

const returnColumns = `id, order_id, status, requested_at, processed_at, reason, internal_notes,
	shipping_override, shipping_refund, base, tax, total`

func (r *ReturnRepository) Insert(ctx context.Context, ret *domain.Return) error {
	tx, err := r.db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("return: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	err = tx.QueryRow(ctx, `
		INSERT INTO returns (order_id, status, requested_at, processed_at, reason, internal_notes,
			shipping_override, shipping_refund, base, tax, total)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id`,
		ret.OrderID, string(ret.Status), ret.RequestedAt, ret.ProcessedAt, ret.Reason, ret.InternalNotes,
		nullDecimal(ret.ShippingOverride), ret.ShippingRefund, ret.Base, ret.Tax, ret.Total,
	).Scan(&ret.ID)
	if err != nil {
		return fmt.Errorf("return: insert: %w", err)
	}

	for i := range ret.Lines {
		l := &ret.Lines[i]
		l.ReturnID = ret.ID
		err := tx.QueryRow(ctx, `
			INSERT INTO return_lines (return_id, order_line_id, product_id, product_name, quantity, unit_price, reason_code)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id`,
			ret.ID, l.OrderLineID, l.ProductID, l.ProductName, l.Quantity, l.UnitPrice, string(l.ReasonCode),
		).Scan(&l.ID)
		if err != nil {
			return fmt.Errorf("return: insert line: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("return: commit: %w", err)
	}
	return nil
}

func (r *ReturnRepository) Get(ctx context.Context, id int64) (*domain.Return, error) {
	ret, err := scanReturn(r.db.pool.QueryRow(ctx, `SELECT `+returnColumns+` FROM returns WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("return: get: %w", err)
	}
	lines, err := r.lines(ctx, []int64{id})
	if err != nil {
		return nil, err
	}
	ret.Lines = lines[id]
	return ret, nil
}

func (r *ReturnRepository) Update(ctx context.Context, ret *domain.Return) error {
	tag, err := r.db.pool.Exec(ctx, `
		UPDATE returns SET status = $2, processed_at = $3, reason = $4, internal_notes = $5,
			shipping_override = $6, shipping_refund = $7, base = $8, tax = $9, total = $10
		WHERE id = $1`,
		ret.ID, string(ret.Status), ret.ProcessedAt, ret.Reason, ret.InternalNotes,
		nullDecimal(ret.ShippingOverride), ret.ShippingRefund, ret.Base, ret.Tax, ret.Total,
	)
	if err != nil {
		return fmt.Errorf("return: update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *ReturnRepository) ListByOrder(ctx context.Context, orderID int64) ([]*domain.Return, error) {
	rows, err := r.db.pool.Query(ctx, `SELECT `+returnColumns+` FROM returns WHERE order_id = $1 ORDER BY id`, orderID)
	if err != nil {
		return nil, fmt.Errorf("return: list: %w", err)
	}
	defer rows.Close()

	var (
		out []*domain.Return
		ids []int64
	)
	for rows.Next() {
		ret, err := scanReturn(rows)
		if err != nil {
			return nil, fmt.Errorf("return: list scan: %w", err)
		}
		out = append(out, ret)
		ids = append(ids, ret.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("return: list: %w", err)
	}
	if len(ids) == 0 {
		return out, nil
	}

	lines, err := r.lines(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, ret := range out {
		ret.Lines = lines[ret.ID]
	}
	return out, nil
}

func (r *ReturnRepository) lines(ctx context.Context, returnIDs []int64) (map[int64][]domain.Line, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT id, return_id, order_line_id, product_id, product_name, quantity, unit_price, reason_code
		FROM return_lines WHERE return_id = ANY($1) ORDER BY id`, returnIDs)
	if err != nil {
		return nil, fmt.Errorf("return: lines: %w", err)
	}
	defer rows.Close()

	out := make(map[int64][]domain.Line, len(returnIDs))
	for rows.Next() {
		var (
			l      domain.Line
			reason string
		)
		if err := rows.Scan(&l.ID, &l.ReturnID, &l.OrderLineID, &l.ProductID, &l.ProductName, &l.Quantity, &l.UnitPrice, &reason); err != nil {
			return nil, fmt.Errorf("return: lines scan: %w", err)
		}
		l.ReasonCode = domain.ReasonCode(reason)
		out[l.ReturnID] = append(out[l.ReturnID], l)
	}
	return out, rows.Err()
}

func scanReturn(row pgx.Row) (*domain.Return, error) {
	var (
		ret      domain.Return
		status   string
		override decimal.NullDecimal
	)
	err := row.Scan(
		&ret.ID, &ret.OrderID, &status, &ret.RequestedAt, &ret.ProcessedAt, &ret.Reason, &ret.InternalNotes,
		&override, &ret.ShippingRefund, &ret.Base, &ret.Tax, &ret.Total,
	)
	if err != nil {
		return nil, err
	}
	ret.Status = domain.Status(status)
	if override.Valid {
		v := override.Decimal
		ret.ShippingOverride = &v
	}
	return &ret, nil
}

func nullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *d, Valid: true}
}
