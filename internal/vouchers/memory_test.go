package vouchers

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/odyssey-erp/unistock/internal/assets"
	"github.com/odyssey-erp/unistock/internal/catalog"
	"github.com/odyssey-erp/unistock/internal/ledger"
	"github.com/odyssey-erp/unistock/internal/platform/db"
	"github.com/odyssey-erp/unistock/internal/shared"
	"github.com/odyssey-erp/unistock/internal/tenancy"
)

// memoryStore is an in-memory RepositoryPort. WithTx restores a snapshot when
// the callback fails so tests can assert that nothing leaked.
type memoryStore struct {
	units       map[int64]tenancy.Unit
	departments map[int64]int64
	products    map[int64]catalog.Product
	items       map[int64]assets.Item
	movements   []ledger.Row
	vouchers    map[int64]Voucher
	sequences   map[string]int64
	nextID      int64

	// failInserts makes the next n InsertAsset calls report a duplicate number.
	failInserts int
	// failCommits makes the next n transactions lose a serialization race.
	failCommits int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		units: map[int64]tenancy.Unit{
			1: {ID: 1, Code: "FT", Name: "Faculty of Engineering", Kind: tenancy.UnitFaculty, Active: true},
			2: {ID: 2, Code: "FK", Name: "Faculty of Medicine", Kind: tenancy.UnitFaculty, Active: true},
		},
		departments: map[int64]int64{11: 1, 21: 2},
		products:    map[int64]catalog.Product{},
		items:       map[int64]assets.Item{},
		vouchers:    map[int64]Voucher{},
		sequences:   map[string]int64{},
		nextID:      1000,
	}
}

func (m *memoryStore) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *memoryStore) snapshot() *memoryStore {
	c := *m
	c.units = cloneMap(m.units)
	c.departments = cloneMap(m.departments)
	c.products = cloneMap(m.products)
	c.items = cloneMap(m.items)
	c.movements = append([]ledger.Row(nil), m.movements...)
	c.sequences = cloneMap(m.sequences)
	c.vouchers = make(map[int64]Voucher, len(m.vouchers))
	for id, v := range m.vouchers {
		c.vouchers[id] = cloneVoucher(v)
	}
	return &c
}

func cloneMap[K comparable, V any](in map[K]V) map[K]V {
	out := make(map[K]V, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func cloneVoucher(v Voucher) Voucher {
	lines := make([]Line, len(v.Lines))
	for i, line := range v.Lines {
		line.AssetIDs = append([]int64(nil), line.AssetIDs...)
		lines[i] = line
	}
	v.Lines = lines
	return v
}

func (m *memoryStore) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	saved := m.snapshot()
	err := fn(ctx, &memoryTx{m: m})
	if err == nil && m.failCommits > 0 {
		m.failCommits--
		err = fmt.Errorf("%w: %w", db.ErrSerialization, &pgconn.PgError{Code: "40001"})
	}
	if err != nil {
		failInserts, failCommits := m.failInserts, m.failCommits
		*m = *saved
		m.failInserts, m.failCommits = failInserts, failCommits
		return err
	}
	return nil
}

func (m *memoryStore) VoucherUnit(ctx context.Context, id int64) (int64, error) {
	v, ok := m.vouchers[id]
	if !ok {
		return 0, fmt.Errorf("voucher %d: %w", id, shared.ErrNotFound)
	}
	return v.UnitID, nil
}

func (m *memoryStore) Get(ctx context.Context, id int64) (Voucher, error) {
	v, ok := m.vouchers[id]
	if !ok {
		return Voucher{}, fmt.Errorf("voucher %d: %w", id, shared.ErrNotFound)
	}
	return cloneVoucher(v), nil
}

func (m *memoryStore) List(ctx context.Context, filter ListFilter) ([]Voucher, int, error) {
	out := []Voucher{}
	for _, v := range m.vouchers {
		if filter.UnitID != nil && v.UnitID != *filter.UnitID {
			continue
		}
		if filter.Kind != "" && v.Kind != filter.Kind {
			continue
		}
		if filter.Status != "" && v.Status != filter.Status {
			continue
		}
		out = append(out, cloneVoucher(v))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, len(out), nil
}

func (m *memoryStore) addProduct(p catalog.Product) catalog.Product {
	if p.ID == 0 {
		p.ID = m.id()
	}
	if p.UnitID == 0 {
		p.UnitID = 1
	}
	p.Active = true
	m.products[p.ID] = p
	return p
}

func (m *memoryStore) addItem(item assets.Item) assets.Item {
	item.ID = m.id()
	if item.UnitID == 0 {
		item.UnitID = 1
	}
	m.items[item.ID] = item
	return item
}

func (m *memoryStore) movementsFor(productID int64) []ledger.Row {
	var rows []ledger.Row
	for _, row := range m.movements {
		if row.ProductID == productID {
			rows = append(rows, row)
		}
	}
	return rows
}

type memoryTx struct {
	m *memoryStore
}

func (t *memoryTx) GetUnit(ctx context.Context, id int64) (tenancy.Unit, error) {
	u, ok := t.m.units[id]
	if !ok {
		return tenancy.Unit{}, fmt.Errorf("unit %d: %w", id, shared.ErrNotFound)
	}
	return u, nil
}

func (t *memoryTx) DepartmentInUnit(ctx context.Context, unitID, departmentID int64) (bool, error) {
	owner, ok := t.m.departments[departmentID]
	return ok && owner == unitID, nil
}

func (t *memoryTx) GetProducts(ctx context.Context, unitID int64, ids []int64) (map[int64]catalog.Product, error) {
	out := map[int64]catalog.Product{}
	for _, id := range ids {
		if p, ok := t.m.products[id]; ok && p.UnitID == unitID {
			out[id] = p
		}
	}
	return out, nil
}

func (t *memoryTx) LockProducts(ctx context.Context, ids []int64) (map[int64]catalog.Product, error) {
	out := map[int64]catalog.Product{}
	for _, id := range ids {
		if p, ok := t.m.products[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (t *memoryTx) SetStockQuantity(ctx context.Context, productID, qty int64) error {
	p, ok := t.m.products[productID]
	if !ok {
		return shared.ErrNotFound
	}
	p.StockQuantity = qty
	t.m.products[productID] = p
	return nil
}

func (t *memoryTx) InventoryNumberTaken(ctx context.Context, unitID int64, number string) (bool, error) {
	for _, item := range t.m.items {
		if item.UnitID == unitID && item.InventoryNumber == number {
			return true, nil
		}
	}
	return false, nil
}

func (t *memoryTx) InsertAsset(ctx context.Context, item *assets.Item) error {
	if t.m.failInserts > 0 {
		t.m.failInserts--
		return fmt.Errorf("%w: %s", assets.ErrDuplicateNumber, item.InventoryNumber)
	}
	taken, _ := t.InventoryNumberTaken(ctx, item.UnitID, item.InventoryNumber)
	if taken {
		return fmt.Errorf("%w: %s", assets.ErrDuplicateNumber, item.InventoryNumber)
	}
	item.ID = t.m.id()
	t.m.items[item.ID] = *item
	return nil
}

func (t *memoryTx) GetAssets(ctx context.Context, ids []int64) (map[int64]assets.Item, error) {
	out := map[int64]assets.Item{}
	for _, id := range ids {
		if item, ok := t.m.items[id]; ok {
			out[id] = item
		}
	}
	return out, nil
}

func (t *memoryTx) LockAssets(ctx context.Context, ids []int64) (map[int64]assets.Item, error) {
	return t.GetAssets(ctx, ids)
}

func (t *memoryTx) UpdateAsset(ctx context.Context, item assets.Item) error {
	if _, ok := t.m.items[item.ID]; !ok {
		return shared.ErrNotFound
	}
	t.m.items[item.ID] = item
	return nil
}

func (t *memoryTx) CountAvailable(ctx context.Context, productID int64) (int64, error) {
	var n int64
	for _, item := range t.m.items {
		if item.ProductID == productID && item.State == assets.StateAvailable {
			n++
		}
	}
	return n, nil
}

func (t *memoryTx) AppendMovement(ctx context.Context, row *ledger.Row) error {
	if !row.SignConsistent() {
		return ledger.ErrInconsistentSign
	}
	row.ID = t.m.id()
	t.m.movements = append(t.m.movements, *row)
	return nil
}

func (t *memoryTx) NextSequence(ctx context.Context, unitID int64, kind Kind, year int) (int64, error) {
	key := fmt.Sprintf("%d/%s/%d", unitID, kind, year)
	t.m.sequences[key]++
	return t.m.sequences[key], nil
}

func (t *memoryTx) InsertVoucher(ctx context.Context, v *Voucher) error {
	for _, existing := range t.m.vouchers {
		if existing.UnitID == v.UnitID && existing.Number == v.Number {
			return fmt.Errorf("%w: %s", ErrNumberConflict, v.Number)
		}
	}
	v.ID = t.m.id()
	t.m.vouchers[v.ID] = cloneVoucher(*v)
	return nil
}

func (t *memoryTx) InsertLine(ctx context.Context, voucherID int64, line *Line) error {
	v := t.m.vouchers[voucherID]
	line.ID = t.m.id()
	line.VoucherID = voucherID
	v.Lines = append(v.Lines, *line)
	t.m.vouchers[voucherID] = v
	return nil
}

func (t *memoryTx) LinkAssets(ctx context.Context, lineID int64, assetIDs []int64) error {
	for id, v := range t.m.vouchers {
		for i := range v.Lines {
			if v.Lines[i].ID == lineID {
				v.Lines[i].AssetIDs = append(v.Lines[i].AssetIDs, assetIDs...)
				t.m.vouchers[id] = v
				return nil
			}
		}
	}
	return shared.ErrNotFound
}

func (t *memoryTx) GetVoucher(ctx context.Context, id int64) (Voucher, error) {
	return t.m.Get(ctx, id)
}

func (t *memoryTx) LockVoucher(ctx context.Context, id int64) (Voucher, error) {
	return t.m.Get(ctx, id)
}

func (t *memoryTx) MarkConfirmed(ctx context.Context, id, actorID int64, at time.Time) error {
	v := t.m.vouchers[id]
	if v.Status != StatusDraft {
		return shared.ErrInvalidState
	}
	v.Status = StatusConfirmed
	v.ConfirmedBy = &actorID
	v.ConfirmedAt = &at
	t.m.vouchers[id] = v
	return nil
}

func (t *memoryTx) MarkCancelled(ctx context.Context, id int64, at time.Time) error {
	v := t.m.vouchers[id]
	if v.Status != StatusDraft {
		return shared.ErrInvalidState
	}
	v.Status = StatusCancelled
	v.CancelledAt = &at
	t.m.vouchers[id] = v
	return nil
}

func (t *memoryTx) LastExitForAsset(ctx context.Context, assetID int64) (int64, bool, error) {
	var (
		best  Voucher
		found bool
	)
	for _, v := range t.m.vouchers {
		if v.Kind != KindExit || v.Status != StatusConfirmed {
			continue
		}
		for _, id := range v.AssetIDs() {
			if id == assetID && (!found || v.ConfirmedAt.After(*best.ConfirmedAt) || (v.ConfirmedAt.Equal(*best.ConfirmedAt) && v.ID > best.ID)) {
				best, found = v, true
			}
		}
	}
	return best.ID, found, nil
}

func (t *memoryTx) IssuedQuantity(ctx context.Context, exitID, productID int64) (int64, error) {
	var qty int64
	for _, line := range t.m.vouchers[exitID].Lines {
		if line.ProductID == productID {
			qty += line.Quantity
		}
	}
	return qty, nil
}

func (t *memoryTx) ReturnedQuantity(ctx context.Context, exitID, productID, excludeVoucherID int64) (int64, error) {
	var qty int64
	for _, v := range t.m.vouchers {
		if v.Kind != KindReturn || v.Status != StatusConfirmed || v.ID == excludeVoucherID {
			continue
		}
		if v.OriginalExitID == nil || *v.OriginalExitID != exitID {
			continue
		}
		for _, line := range v.Lines {
			if line.ProductID == productID {
				qty += line.Quantity
			}
		}
	}
	return qty, nil
}

type memoryIdempotency struct {
	keys map[string]string
}

func (m *memoryIdempotency) CheckAndInsert(ctx context.Context, key, module string) error {
	if _, ok := m.keys[key]; ok {
		return shared.ErrIdempotencyConflict
	}
	m.keys[key] = module
	return nil
}

func (m *memoryIdempotency) Delete(ctx context.Context, key string) error {
	delete(m.keys, key)
	return nil
}

type recordingAudit struct {
	logs []shared.AuditLog
}

func (r *recordingAudit) Record(ctx context.Context, log shared.AuditLog) error {
	r.logs = append(r.logs, log)
	return nil
}

type recordingNotifier struct {
	units []int64
}

func (r *recordingNotifier) StockChanged(ctx context.Context, unitID int64) error {
	r.units = append(r.units, unitID)
	return nil
}

type busyLocker struct{}

func (busyLocker) Acquire(ctx context.Context, key string) (func(context.Context), error) {
	return nil, fmt.Errorf("%w: %s", shared.ErrConflict, key)
}
