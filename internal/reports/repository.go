package reports

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Repository runs the aggregate queries against PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) AssetsByState(ctx context.Context, unitID *int64) (map[string]int64, error) {
	return r.countBy(ctx, `SELECT state, COUNT(*) FROM asset_items
WHERE ($1::bigint IS NULL OR unit_id=$1) GROUP BY state`, unitID)
}

// AssetValue sums purchase prices of items that physically exist in stock or in use.
func (r *Repository) AssetValue(ctx context.Context, unitID *int64) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(purchase_price), 0) FROM asset_items
WHERE state IN ('available', 'assigned', 'maintenance') AND ($1::bigint IS NULL OR unit_id=$1)`, unitID).Scan(&total)
	return total, err
}

func (r *Repository) ConfirmedVouchersSince(ctx context.Context, unitID *int64, since time.Time) (map[string]int64, error) {
	return r.countBy(ctx, `SELECT kind, COUNT(*) FROM vouchers
WHERE status='confirmed' AND confirmed_at >= $2 AND ($1::bigint IS NULL OR unit_id=$1) GROUP BY kind`, unitID, since)
}

// LowStock compares the ledger balance, not the cached counter, with min stock.
func (r *Repository) LowStock(ctx context.Context, unitID *int64) ([]LowStockItem, error) {
	rows, err := r.pool.Query(ctx, `SELECT p.id, p.unit_id, p.code, p.name, COALESCE(SUM(m.quantity), 0) AS stock, p.min_stock
FROM products p
LEFT JOIN stock_movements m ON m.product_id = p.id
WHERE p.nature='consumable' AND p.active AND ($1::bigint IS NULL OR p.unit_id=$1)
GROUP BY p.id
HAVING COALESCE(SUM(m.quantity), 0) <= p.min_stock
ORDER BY p.code`, unitID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []LowStockItem{}
	for rows.Next() {
		var item LowStockItem
		if err := rows.Scan(&item.ProductID, &item.UnitID, &item.Code, &item.Name, &item.Stock, &item.MinStock); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r *Repository) countBy(ctx context.Context, query string, args ...any) (map[string]int64, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]int64{}
	for rows.Next() {
		var (
			key   string
			count int64
		)
		if err := rows.Scan(&key, &count); err != nil {
			return nil, err
		}
		out[key] = count
	}
	return out, rows.Err()
}
