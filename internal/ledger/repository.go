package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/odyssey-erp/unistock/internal/platform/db"
)

// ErrInconsistentSign is returned for rows whose quantity sign contradicts the kind.
var ErrInconsistentSign = errors.New("ledger: quantity sign does not match kind")

// Store appends and reads movement rows. There is no update or delete.
type Store struct {
	q db.Querier
}

// NewStore binds the store to a pool or transaction.
func NewStore(q db.Querier) *Store {
	return &Store{q: q}
}

// Append inserts a row and sets its id and timestamp.
func (s *Store) Append(ctx context.Context, row *Row) error {
	if !row.SignConsistent() {
		return fmt.Errorf("%w: %s %d", ErrInconsistentSign, row.Kind, row.Quantity)
	}
	return s.q.QueryRow(ctx, `INSERT INTO stock_movements (unit_id, product_id, kind, quantity, unit_price, reference, voucher_id, created_by, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,NOW()) RETURNING id, created_at`,
		row.UnitID, row.ProductID, string(row.Kind), row.Quantity, row.UnitPrice, row.Reference, row.VoucherID, row.CreatedBy).
		Scan(&row.ID, &row.CreatedAt)
}

// Sum is the authoritative stock figure of a consumable-natured product.
func (s *Store) Sum(ctx context.Context, productID int64) (int64, error) {
	var total int64
	err := s.q.QueryRow(ctx, `SELECT COALESCE(SUM(quantity), 0) FROM stock_movements WHERE product_id=$1`, productID).Scan(&total)
	return total, err
}

// SumBefore returns the balance carried into the filter window.
func (s *Store) SumBefore(ctx context.Context, productID int64, before time.Time) (int64, error) {
	if before.IsZero() {
		return 0, nil
	}
	var total int64
	err := s.q.QueryRow(ctx, `SELECT COALESCE(SUM(quantity), 0) FROM stock_movements WHERE product_id=$1 AND created_at < $2`, productID, before).Scan(&total)
	return total, err
}

// List returns rows of a product in chronological order.
func (s *Store) List(ctx context.Context, filter Filter) ([]Row, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 200
	}
	rows, err := s.q.Query(ctx, `SELECT id, unit_id, product_id, kind, quantity, unit_price, reference, voucher_id, created_by, created_at
FROM stock_movements
WHERE product_id=$1 AND created_at BETWEEN COALESCE($2, '-infinity'::timestamptz) AND COALESCE($3, 'infinity'::timestamptz)
ORDER BY created_at ASC, id ASC
LIMIT $4`, filter.ProductID, nullTime(filter.From), nullTime(filter.To), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Row{}
	for rows.Next() {
		var r Row
		if err := rows.Scan(&r.ID, &r.UnitID, &r.ProductID, &r.Kind, &r.Quantity, &r.UnitPrice, &r.Reference, &r.VoucherID, &r.CreatedBy, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
