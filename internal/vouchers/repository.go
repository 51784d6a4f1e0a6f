package vouchers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/unistock/internal/assets"
	"github.com/odyssey-erp/unistock/internal/catalog"
	"github.com/odyssey-erp/unistock/internal/ledger"
	"github.com/odyssey-erp/unistock/internal/platform/db"
	"github.com/odyssey-erp/unistock/internal/shared"
	"github.com/odyssey-erp/unistock/internal/tenancy"
)

// UniqueNumberConstraint is the (unit_id, number) unique index on vouchers.
const UniqueNumberConstraint = "vouchers_unit_number_key"

const voucherColumns = `id, unit_id, kind, number, date, status, COALESCE(notes, ''),
COALESCE(supplier, ''), COALESCE(invoice_number, ''), invoice_date,
department_id, COALESCE(recipient_name, ''), COALESCE(return_reason, ''), original_exit_id,
COALESCE(disposal_reason, ''), COALESCE(committee, ''), disposal_date, COALESCE(disposal_details, ''),
created_by, confirmed_by, confirmed_at, cancelled_at, created_at, updated_at`

// Repository is the PostgreSQL implementation of RepositoryPort.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, newTxRepository(tx))
	})
}

// VoucherUnit returns the owning unit of a voucher.
func (r *Repository) VoucherUnit(ctx context.Context, id int64) (int64, error) {
	var unitID int64
	err := r.pool.QueryRow(ctx, `SELECT unit_id FROM vouchers WHERE id=$1`, id).Scan(&unitID)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("voucher %d: %w", id, shared.ErrNotFound)
	}
	return unitID, err
}

// Get loads a voucher with lines.
func (r *Repository) Get(ctx context.Context, id int64) (Voucher, error) {
	return loadVoucher(ctx, r.pool, id, false)
}

// List returns voucher headers matching the filter with the total count.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Voucher, int, error) {
	clauses := []string{}
	args := []any{}
	if filter.UnitID != nil {
		args = append(args, *filter.UnitID)
		clauses = append(clauses, fmt.Sprintf("unit_id=$%d", len(args)))
	}
	if filter.Kind != "" {
		args = append(args, string(filter.Kind))
		clauses = append(clauses, fmt.Sprintf("kind=$%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		clauses = append(clauses, fmt.Sprintf("status=$%d", len(args)))
	}
	where := ""
	if len(clauses) > 0 {
		where = " WHERE " + strings.Join(clauses, " AND ")
	}
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM vouchers`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	args = append(args, limit, filter.Offset)
	rows, err := r.pool.Query(ctx, `SELECT `+voucherColumns+` FROM vouchers`+where+
		fmt.Sprintf(" ORDER BY date DESC, id DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []Voucher
	for rows.Next() {
		v, err := scanVoucher(rows)
		if err != nil {
			return nil, 0, err
		}
		v.Lines = []Line{}
		out = append(out, v)
	}
	return out, total, rows.Err()
}

type txRepository struct {
	tx       pgx.Tx
	units    *tenancy.Store
	products *catalog.Store
	items    *assets.Store
	ledger   *ledger.Store
}

func newTxRepository(tx pgx.Tx) *txRepository {
	return &txRepository{
		tx:       tx,
		units:    tenancy.NewStore(tx),
		products: catalog.NewStore(tx),
		items:    assets.NewStore(tx),
		ledger:   ledger.NewStore(tx),
	}
}

func (t *txRepository) GetUnit(ctx context.Context, id int64) (tenancy.Unit, error) {
	return t.units.GetUnit(ctx, id)
}

func (t *txRepository) DepartmentInUnit(ctx context.Context, unitID, departmentID int64) (bool, error) {
	return t.units.DepartmentInUnit(ctx, unitID, departmentID)
}

func (t *txRepository) GetProducts(ctx context.Context, unitID int64, ids []int64) (map[int64]catalog.Product, error) {
	return t.products.GetMany(ctx, unitID, ids)
}

func (t *txRepository) LockProducts(ctx context.Context, ids []int64) (map[int64]catalog.Product, error) {
	return t.products.LockMany(ctx, ids)
}

func (t *txRepository) SetStockQuantity(ctx context.Context, productID, qty int64) error {
	return t.products.SetStockQuantity(ctx, productID, qty)
}

func (t *txRepository) InventoryNumberTaken(ctx context.Context, unitID int64, number string) (bool, error) {
	return t.items.NumberTaken(ctx, unitID, number)
}

func (t *txRepository) InsertAsset(ctx context.Context, item *assets.Item) error {
	return t.items.Insert(ctx, item)
}

func (t *txRepository) GetAssets(ctx context.Context, ids []int64) (map[int64]assets.Item, error) {
	return t.items.GetMany(ctx, ids)
}

func (t *txRepository) LockAssets(ctx context.Context, ids []int64) (map[int64]assets.Item, error) {
	return t.items.LockMany(ctx, ids)
}

func (t *txRepository) UpdateAsset(ctx context.Context, item assets.Item) error {
	return t.items.Update(ctx, item)
}

func (t *txRepository) CountAvailable(ctx context.Context, productID int64) (int64, error) {
	return t.items.CountAvailable(ctx, productID)
}

func (t *txRepository) AppendMovement(ctx context.Context, row *ledger.Row) error {
	return t.ledger.Append(ctx, row)
}

func (t *txRepository) NextSequence(ctx context.Context, unitID int64, kind Kind, year int) (int64, error) {
	var next int64
	err := t.tx.QueryRow(ctx, `INSERT INTO voucher_sequences (unit_id, kind, year, last_value) VALUES ($1, $2, $3, 1)
ON CONFLICT (unit_id, kind, year) DO UPDATE SET last_value = voucher_sequences.last_value + 1
RETURNING last_value`, unitID, string(kind), year).Scan(&next)
	return next, err
}

func (t *txRepository) InsertVoucher(ctx context.Context, v *Voucher) error {
	err := t.tx.QueryRow(ctx, `INSERT INTO vouchers (unit_id, kind, number, date, status, notes,
supplier, invoice_number, invoice_date, department_id, recipient_name, return_reason, original_exit_id,
disposal_reason, committee, disposal_date, disposal_details, created_by, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,NULLIF($6,''),NULLIF($7,''),NULLIF($8,''),$9,$10,NULLIF($11,''),NULLIF($12,''),$13,
NULLIF($14,''),NULLIF($15,''),$16,NULLIF($17,''),$18,NOW(),NOW())
RETURNING id, created_at, updated_at`,
		v.UnitID, string(v.Kind), v.Number, v.Date, string(v.Status), v.Notes,
		v.Supplier, v.InvoiceNumber, v.InvoiceDate, v.DepartmentID, v.RecipientName, v.ReturnReason, v.OriginalExitID,
		string(v.DisposalReason), v.Committee, v.DisposalDate, v.DisposalDetails, v.CreatedBy).
		Scan(&v.ID, &v.CreatedAt, &v.UpdatedAt)
	if db.IsUniqueViolation(err, UniqueNumberConstraint) {
		return fmt.Errorf("%w: %s", ErrNumberConflict, v.Number)
	}
	return err
}

func (t *txRepository) InsertLine(ctx context.Context, voucherID int64, line *Line) error {
	line.VoucherID = voucherID
	return t.tx.QueryRow(ctx, `INSERT INTO voucher_lines (voucher_id, product_id, quantity, unit_price, condition, damage_description)
VALUES ($1,$2,$3,$4,NULLIF($5,''),NULLIF($6,'')) RETURNING id`,
		voucherID, line.ProductID, line.Quantity, line.UnitPrice, string(line.Condition), line.DamageDescription).Scan(&line.ID)
}

func (t *txRepository) LinkAssets(ctx context.Context, lineID int64, assetIDs []int64) error {
	if len(assetIDs) == 0 {
		return nil
	}
	rows := make([][]any, 0, len(assetIDs))
	for _, id := range assetIDs {
		rows = append(rows, []any{lineID, id})
	}
	_, err := t.tx.CopyFrom(ctx, pgx.Identifier{"voucher_line_assets"}, []string{"line_id", "asset_item_id"}, pgx.CopyFromRows(rows))
	return err
}

func (t *txRepository) GetVoucher(ctx context.Context, id int64) (Voucher, error) {
	return loadVoucher(ctx, t.tx, id, false)
}

func (t *txRepository) LockVoucher(ctx context.Context, id int64) (Voucher, error) {
	return loadVoucher(ctx, t.tx, id, true)
}

func (t *txRepository) MarkConfirmed(ctx context.Context, id, actorID int64, at time.Time) error {
	tag, err := t.tx.Exec(ctx, `UPDATE vouchers SET status='confirmed', confirmed_by=$2, confirmed_at=$3, updated_at=NOW()
WHERE id=$1 AND status='draft'`, id, actorID, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: voucher %d is no longer draft", shared.ErrInvalidState, id)
	}
	return nil
}

func (t *txRepository) MarkCancelled(ctx context.Context, id int64, at time.Time) error {
	tag, err := t.tx.Exec(ctx, `UPDATE vouchers SET status='cancelled', cancelled_at=$2, updated_at=NOW()
WHERE id=$1 AND status='draft'`, id, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: voucher %d is no longer draft", shared.ErrInvalidState, id)
	}
	return nil
}

func (t *txRepository) LastExitForAsset(ctx context.Context, assetID int64) (int64, bool, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `SELECT v.id FROM voucher_line_assets la
JOIN voucher_lines l ON l.id = la.line_id
JOIN vouchers v ON v.id = l.voucher_id
WHERE la.asset_item_id=$1 AND v.kind='exit' AND v.status='confirmed'
ORDER BY v.confirmed_at DESC, v.id DESC LIMIT 1`, assetID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return id, true, nil
}

func (t *txRepository) IssuedQuantity(ctx context.Context, exitID, productID int64) (int64, error) {
	var qty int64
	err := t.tx.QueryRow(ctx, `SELECT COALESCE(SUM(quantity), 0) FROM voucher_lines WHERE voucher_id=$1 AND product_id=$2`,
		exitID, productID).Scan(&qty)
	return qty, err
}

func (t *txRepository) ReturnedQuantity(ctx context.Context, exitID, productID, excludeVoucherID int64) (int64, error) {
	var qty int64
	err := t.tx.QueryRow(ctx, `SELECT COALESCE(SUM(l.quantity), 0) FROM voucher_lines l
JOIN vouchers v ON v.id = l.voucher_id
WHERE v.kind='return' AND v.status='confirmed' AND v.original_exit_id=$1 AND l.product_id=$2 AND v.id<>$3`,
		exitID, productID, excludeVoucherID).Scan(&qty)
	return qty, err
}

func loadVoucher(ctx context.Context, q db.Querier, id int64, lock bool) (Voucher, error) {
	query := `SELECT ` + voucherColumns + ` FROM vouchers WHERE id=$1`
	if lock {
		query += ` FOR UPDATE`
	}
	v, err := scanVoucher(q.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Voucher{}, fmt.Errorf("voucher %d: %w", id, shared.ErrNotFound)
	}
	if err != nil {
		return Voucher{}, err
	}
	v.Lines, err = loadLines(ctx, q, id)
	if err != nil {
		return Voucher{}, err
	}
	return v, nil
}

func loadLines(ctx context.Context, q db.Querier, voucherID int64) ([]Line, error) {
	rows, err := q.Query(ctx, `SELECT id, voucher_id, product_id, quantity, unit_price, COALESCE(condition, ''), COALESCE(damage_description, '')
FROM voucher_lines WHERE voucher_id=$1 ORDER BY id`, voucherID)
	if err != nil {
		return nil, err
	}
	lines := []Line{}
	index := make(map[int64]int)
	for rows.Next() {
		var line Line
		var condition string
		if err := rows.Scan(&line.ID, &line.VoucherID, &line.ProductID, &line.Quantity, &line.UnitPrice, &condition, &line.DamageDescription); err != nil {
			rows.Close()
			return nil, err
		}
		line.Condition = assets.Condition(condition)
		index[line.ID] = len(lines)
		lines = append(lines, line)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return lines, nil
	}

	links, err := q.Query(ctx, `SELECT la.line_id, la.asset_item_id FROM voucher_line_assets la
JOIN voucher_lines l ON l.id = la.line_id WHERE l.voucher_id=$1 ORDER BY la.line_id, la.asset_item_id`, voucherID)
	if err != nil {
		return nil, err
	}
	defer links.Close()
	for links.Next() {
		var lineID, assetID int64
		if err := links.Scan(&lineID, &assetID); err != nil {
			return nil, err
		}
		if i, ok := index[lineID]; ok {
			lines[i].AssetIDs = append(lines[i].AssetIDs, assetID)
		}
	}
	return lines, links.Err()
}

func scanVoucher(row pgx.Row) (Voucher, error) {
	var (
		v              Voucher
		kind, status   string
		disposalReason string
	)
	err := row.Scan(&v.ID, &v.UnitID, &kind, &v.Number, &v.Date, &status, &v.Notes,
		&v.Supplier, &v.InvoiceNumber, &v.InvoiceDate,
		&v.DepartmentID, &v.RecipientName, &v.ReturnReason, &v.OriginalExitID,
		&disposalReason, &v.Committee, &v.DisposalDate, &v.DisposalDetails,
		&v.CreatedBy, &v.ConfirmedBy, &v.ConfirmedAt, &v.CancelledAt, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		return Voucher{}, err
	}
	v.Kind = Kind(kind)
	v.Status = Status(status)
	v.DisposalReason = DisposalReason(disposalReason)
	return v, nil
}
