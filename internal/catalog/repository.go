package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/odyssey-erp/unistock/internal/platform/db"
	"github.com/odyssey-erp/unistock/internal/shared"
)

const productColumns = `id, unit_id, code, name, nature, uom, unit_price, min_stock, stock_quantity, active, updated_at`

// Store persists products. It runs against a pool or inside a transaction.
type Store struct {
	q db.Querier
}

// NewStore binds the store to a pool or transaction.
func NewStore(q db.Querier) *Store {
	return &Store{q: q}
}

// Get loads a product by id.
func (s *Store) Get(ctx context.Context, id int64) (Product, error) {
	row := s.q.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id=$1`, id)
	p, err := scanProduct(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, fmt.Errorf("product %d: %w", id, shared.ErrNotFound)
	}
	return p, err
}

// GetForUpdate loads and row-locks a product.
func (s *Store) GetForUpdate(ctx context.Context, id int64) (Product, error) {
	row := s.q.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id=$1 FOR UPDATE`, id)
	p, err := scanProduct(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, fmt.Errorf("product %d: %w", id, shared.ErrNotFound)
	}
	return p, err
}

// GetMany loads products of one unit keyed by id. Missing ids are absent from the map.
func (s *Store) GetMany(ctx context.Context, unitID int64, ids []int64) (map[int64]Product, error) {
	return s.getMany(ctx, `SELECT `+productColumns+` FROM products WHERE unit_id=$1 AND id = ANY($2) ORDER BY id`, unitID, ids)
}

// LockMany row-locks products in ascending id order so concurrent
// confirmations touching the same products queue instead of deadlocking.
func (s *Store) LockMany(ctx context.Context, ids []int64) (map[int64]Product, error) {
	sorted := append([]int64(nil), ids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	return s.getMany(ctx, `SELECT `+productColumns+` FROM products WHERE id = ANY($1) ORDER BY id FOR UPDATE`, sorted)
}

// SetStockQuantity overwrites the cached stock figure.
func (s *Store) SetStockQuantity(ctx context.Context, id, qty int64) error {
	tag, err := s.q.Exec(ctx, `UPDATE products SET stock_quantity=$2, updated_at=NOW() WHERE id=$1`, id, qty)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("product %d: %w", id, shared.ErrNotFound)
	}
	return nil
}

// List returns products matching the filter with the total count.
func (s *Store) List(ctx context.Context, filter ListFilter) ([]Product, int, error) {
	where, args := listWhere(filter)
	var total int
	if err := s.q.QueryRow(ctx, `SELECT COUNT(*) FROM products`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit, filter.Offset)
	query := fmt.Sprintf(`SELECT %s FROM products%s ORDER BY code LIMIT $%d OFFSET $%d`, productColumns, where, len(args)-1, len(args))
	rows, err := s.q.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	products := []Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, 0, err
		}
		products = append(products, p)
	}
	return products, total, rows.Err()
}

// IDs lists product ids matching the unit and nature, ordered by id.
func (s *Store) IDs(ctx context.Context, unitID *int64, nature Nature) ([]int64, error) {
	where, args := listWhere(ListFilter{UnitID: unitID, Nature: nature})
	rows, err := s.q.Query(ctx, `SELECT id FROM products`+where+` ORDER BY id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *Store) getMany(ctx context.Context, query string, args ...any) (map[int64]Product, error) {
	rows, err := s.q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[int64]Product)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out[p.ID] = p
	}
	return out, rows.Err()
}

func listWhere(filter ListFilter) (string, []any) {
	clauses := []string{}
	args := []any{}
	if filter.UnitID != nil {
		args = append(args, *filter.UnitID)
		clauses = append(clauses, fmt.Sprintf("unit_id=$%d", len(args)))
	}
	if filter.Nature != "" {
		args = append(args, string(filter.Nature))
		clauses = append(clauses, fmt.Sprintf("nature=$%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		clauses = append(clauses, fmt.Sprintf("(code ILIKE $%d OR name ILIKE $%d)", len(args), len(args)))
	}
	if len(clauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.UnitID, &p.Code, &p.Name, &p.Nature, &p.UOM, &p.UnitPrice, &p.MinStock, &p.StockQuantity, &p.Active, &p.UpdatedAt)
	return p, err
}
