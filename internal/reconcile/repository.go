package reconcile

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/unistock/internal/assets"
	"github.com/odyssey-erp/unistock/internal/catalog"
	"github.com/odyssey-erp/unistock/internal/ledger"
	"github.com/odyssey-erp/unistock/internal/platform/db"
	"github.com/odyssey-erp/unistock/internal/shared"
)

// Repository is the PostgreSQL implementation of RepositoryPort.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepository struct {
	products *catalog.Store
	items    *assets.Store
	ledger   *ledger.Store
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{
			products: catalog.NewStore(tx),
			items:    assets.NewStore(tx),
			ledger:   ledger.NewStore(tx),
		})
	})
}

func (r *Repository) ProductUnit(ctx context.Context, id int64) (int64, error) {
	product, err := catalog.NewStore(r.pool).Get(ctx, id)
	if err != nil {
		return 0, err
	}
	return product.UnitID, nil
}

func (r *Repository) ProductIDs(ctx context.Context, unitID *int64, nature catalog.Nature) ([]int64, error) {
	return catalog.NewStore(r.pool).IDs(ctx, unitID, nature)
}

func (t *txRepository) LockProduct(ctx context.Context, id int64) (catalog.Product, error) {
	products, err := t.products.LockMany(ctx, []int64{id})
	if err != nil {
		return catalog.Product{}, err
	}
	product, ok := products[id]
	if !ok {
		return catalog.Product{}, fmt.Errorf("product %d: %w", id, shared.ErrNotFound)
	}
	return product, nil
}

func (t *txRepository) CountAvailable(ctx context.Context, productID int64) (int64, error) {
	return t.items.CountAvailable(ctx, productID)
}

func (t *txRepository) LedgerSum(ctx context.Context, productID int64) (int64, error) {
	return t.ledger.Sum(ctx, productID)
}

func (t *txRepository) SetStockQuantity(ctx context.Context, productID, qty int64) error {
	return t.products.SetStockQuantity(ctx, productID, qty)
}
