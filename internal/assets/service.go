package assets

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/unistock/internal/catalog"
	"github.com/odyssey-erp/unistock/internal/platform/db"
	"github.com/odyssey-erp/unistock/internal/shared"
	"github.com/odyssey-erp/unistock/internal/tenancy"
)

// TxRepository exposes the transactional operations used by maintenance moves.
type TxRepository interface {
	LockItem(ctx context.Context, id int64) (Item, error)
	UpdateItem(ctx context.Context, item Item) error
	CountAvailable(ctx context.Context, productID int64) (int64, error)
	SetProductStock(ctx context.Context, productID, qty int64) error
}

// RepositoryPort abstracts persistence for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (Item, error)
	List(ctx context.Context, filter ListFilter) ([]Item, int, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service exposes scoped asset reads and maintenance moves.
type Service struct {
	repo   RepositoryPort
	audit  AuditPort
	logger *slog.Logger
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, logger: logger}
}

// Get returns an item visible to the principal.
func (s *Service) Get(ctx context.Context, p tenancy.Principal, id int64) (Item, error) {
	item, err := s.repo.Get(ctx, id)
	if err != nil {
		return Item{}, err
	}
	if err := tenancy.Authorize(p, item.UnitID); err != nil {
		return Item{}, err
	}
	return item, nil
}

// ListRequest carries listing parameters from the transport.
type ListRequest struct {
	ProductID int64
	State     State
	Page      int
	PerPage   int
}

// List returns items in the principal's scope.
func (s *Service) List(ctx context.Context, p tenancy.Principal, req ListRequest) ([]Item, shared.Pagination, error) {
	page, perPage := shared.NormalizePage(req.Page, req.PerPage)
	items, total, err := s.repo.List(ctx, ListFilter{
		UnitID:    tenancy.CurrentUnit(p).UnitFilter(),
		ProductID: req.ProductID,
		State:     req.State,
		Limit:     perPage,
		Offset:    (page - 1) * perPage,
	})
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return items, shared.NewPagination(page, perPage, total), nil
}

// SetMaintenance moves an item between available and maintenance and
// refreshes the product's cached stock in the same transaction.
func (s *Service) SetMaintenance(ctx context.Context, p tenancy.Principal, id int64, inMaintenance bool) (Item, error) {
	if err := tenancy.RequireManage(p); err != nil {
		return Item{}, err
	}
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return Item{}, err
	}
	if err := tenancy.Authorize(p, current.UnitID); err != nil {
		return Item{}, err
	}
	target := StateAvailable
	if inMaintenance {
		target = StateMaintenance
	}
	var updated Item
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		item, err := tx.LockItem(ctx, id)
		if err != nil {
			return err
		}
		if err := item.Transition(target); err != nil {
			return err
		}
		if err := tx.UpdateItem(ctx, item); err != nil {
			return err
		}
		count, err := tx.CountAvailable(ctx, item.ProductID)
		if err != nil {
			return err
		}
		if err := tx.SetProductStock(ctx, item.ProductID, count); err != nil {
			return err
		}
		updated = item
		return nil
	})
	if err != nil {
		return Item{}, err
	}
	s.recordAudit(ctx, p, updated)
	return updated, nil
}

func (s *Service) recordAudit(ctx context.Context, p tenancy.Principal, item Item) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  p.UserID,
		UnitID:   item.UnitID,
		Action:   shared.AuditActionUpdate,
		Entity:   "asset_item",
		EntityID: fmt.Sprintf("%d", item.ID),
		Meta:     map[string]any{"state": string(item.State), "inventory_number": item.InventoryNumber},
	})
	if err != nil {
		s.logger.Warn("audit asset update", slog.Int64("asset_id", item.ID), slog.Any("error", err))
	}
}

// Repository is the PostgreSQL implementation of RepositoryPort.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepository struct {
	items    *Store
	products *catalog.Store
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{items: NewStore(tx), products: catalog.NewStore(tx)})
	})
}

func (r *Repository) Get(ctx context.Context, id int64) (Item, error) {
	return NewStore(r.pool).Get(ctx, id)
}

func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Item, int, error) {
	return NewStore(r.pool).List(ctx, filter)
}

func (t *txRepository) LockItem(ctx context.Context, id int64) (Item, error) {
	items, err := t.items.LockMany(ctx, []int64{id})
	if err != nil {
		return Item{}, err
	}
	item, ok := items[id]
	if !ok {
		return Item{}, fmt.Errorf("asset %d: %w", id, shared.ErrNotFound)
	}
	return item, nil
}

func (t *txRepository) UpdateItem(ctx context.Context, item Item) error {
	return t.items.Update(ctx, item)
}

func (t *txRepository) CountAvailable(ctx context.Context, productID int64) (int64, error) {
	return t.items.CountAvailable(ctx, productID)
}

func (t *txRepository) SetProductStock(ctx context.Context, productID, qty int64) error {
	return t.products.SetStockQuantity(ctx, productID, qty)
}
