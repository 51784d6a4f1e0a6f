package assets

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

// UniqueNumberConstraint is the (unit_id, inventory_number) unique index.
const UniqueNumberConstraint = "asset_items_unit_number_key"

const itemColumns = `id, unit_id, product_id, inventory_number, COALESCE(serial_number, ''), state, condition,
purchase_date, purchase_price, department_id, COALESCE(location, ''), COALESCE(notes, ''), updated_at`

// Store persists asset items against a pool or transaction.
type Store struct {
	q db.Querier
}

// NewStore binds the store to a pool or transaction.
func NewStore(q db.Querier) *Store {
	return &Store{q: q}
}

// Get loads an item by id.
func (s *Store) Get(ctx context.Context, id int64) (Item, error) {
	item, err := scanItem(s.q.QueryRow(ctx, `SELECT `+itemColumns+` FROM asset_items WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Item{}, fmt.Errorf("asset %d: %w", id, shared.ErrNotFound)
	}
	return item, err
}

// GetMany loads items keyed by id.
func (s *Store) GetMany(ctx context.Context, ids []int64) (map[int64]Item, error) {
	return s.collect(ctx, `SELECT `+itemColumns+` FROM asset_items WHERE id = ANY($1)`, ids)
}

// LockMany row-locks items in ascending id order.
func (s *Store) LockMany(ctx context.Context, ids []int64) (map[int64]Item, error) {
	sorted := append([]int64(nil), ids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	return s.collect(ctx, `SELECT `+itemColumns+` FROM asset_items WHERE id = ANY($1) ORDER BY id FOR UPDATE`, sorted)
}

// NumberTaken reports whether the unit already holds the inventory number.
func (s *Store) NumberTaken(ctx context.Context, unitID int64, number string) (bool, error) {
	var exists bool
	err := s.q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM asset_items WHERE unit_id=$1 AND inventory_number=$2)`, unitID, number).Scan(&exists)
	return exists, err
}

// Insert stores a new item and sets its id. A duplicate inventory number
// yields ErrDuplicateNumber.
func (s *Store) Insert(ctx context.Context, item *Item) error {
	err := s.q.QueryRow(ctx, `INSERT INTO asset_items (unit_id, product_id, inventory_number, serial_number, state, condition,
purchase_date, purchase_price, department_id, location, notes, created_at, updated_at)
VALUES ($1,$2,$3,NULLIF($4,''),$5,$6,$7,$8,$9,NULLIF($10,''),NULLIF($11,''),NOW(),NOW()) RETURNING id, updated_at`,
		item.UnitID, item.ProductID, item.InventoryNumber, item.SerialNumber, string(item.State), string(item.Condition),
		item.PurchaseDate, item.PurchasePrice, item.DepartmentID, item.Location, item.Notes).Scan(&item.ID, &item.UpdatedAt)
	if db.IsUniqueViolation(err, UniqueNumberConstraint) {
		return fmt.Errorf("%w: %s", ErrDuplicateNumber, item.InventoryNumber)
	}
	return err
}

// Update persists the mutable lifecycle fields.
func (s *Store) Update(ctx context.Context, item Item) error {
	tag, err := s.q.Exec(ctx, `UPDATE asset_items SET state=$2, condition=$3, department_id=$4, updated_at=NOW() WHERE id=$1`,
		item.ID, string(item.State), string(item.Condition), item.DepartmentID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("asset %d: %w", item.ID, shared.ErrNotFound)
	}
	return nil
}

// CountAvailable is the authoritative stock figure of an asset-natured product.
func (s *Store) CountAvailable(ctx context.Context, productID int64) (int64, error) {
	var count int64
	err := s.q.QueryRow(ctx, `SELECT COUNT(*) FROM asset_items WHERE product_id=$1 AND state='available'`, productID).Scan(&count)
	return count, err
}

// List returns items matching the filter and the total count.
func (s *Store) List(ctx context.Context, filter ListFilter) ([]Item, int, error) {
	clauses := []string{}
	args := []any{}
	if filter.UnitID != nil {
		args = append(args, *filter.UnitID)
		clauses = append(clauses, fmt.Sprintf("unit_id=$%d", len(args)))
	}
	if filter.ProductID != 0 {
		args = append(args, filter.ProductID)
		clauses = append(clauses, fmt.Sprintf("product_id=$%d", len(args)))
	}
	if filter.State != "" {
		args = append(args, string(filter.State))
		clauses = append(clauses, fmt.Sprintf("state=$%d", len(args)))
	}
	where := ""
	if len(clauses) > 0 {
		where = " WHERE " + strings.Join(clauses, " AND ")
	}
	var total int
	if err := s.q.QueryRow(ctx, `SELECT COUNT(*) FROM asset_items`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit, filter.Offset)
	rows, err := s.q.Query(ctx, fmt.Sprintf(`SELECT %s FROM asset_items%s ORDER BY inventory_number LIMIT $%d OFFSET $%d`, itemColumns, where, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	items := []Item{}
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, item)
	}
	return items, total, rows.Err()
}

func (s *Store) collect(ctx context.Context, query string, ids []int64) (map[int64]Item, error) {
	rows, err := s.q.Query(ctx, query, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[int64]Item, len(ids))
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		out[item.ID] = item
	}
	return out, rows.Err()
}

func scanItem(row pgx.Row) (Item, error) {
	var item Item
	err := row.Scan(&item.ID, &item.UnitID, &item.ProductID, &item.InventoryNumber, &item.SerialNumber, &item.State, &item.Condition,
		&item.PurchaseDate, &item.PurchasePrice, &item.DepartmentID, &item.Location, &item.Notes, &item.UpdatedAt)
	return item, err
}
