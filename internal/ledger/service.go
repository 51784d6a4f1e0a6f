package ledger

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/unistock/internal/catalog"
	"github.com/odyssey-erp/unistock/internal/tenancy"
)

// RepositoryPort abstracts movement reads.
type RepositoryPort interface {
	List(ctx context.Context, filter Filter) ([]Row, error)
	SumBefore(ctx context.Context, productID int64, before time.Time) (int64, error)
}

// ProductReader resolves the owning unit of a product.
type ProductReader interface {
	Get(ctx context.Context, id int64) (catalog.Product, error)
}

// Service builds stock cards.
type Service struct {
	repo     RepositoryPort
	products ProductReader
}

// NewService builds Service.
func NewService(repo RepositoryPort, products ProductReader) *Service {
	return &Service{repo: repo, products: products}
}

// NewPoolService wires the service to PostgreSQL.
func NewPoolService(pool *pgxpool.Pool) *Service {
	return NewService(NewStore(pool), catalog.NewStore(pool))
}

// StockCard lists a product's movements with the running balance.
func (s *Service) StockCard(ctx context.Context, p tenancy.Principal, filter Filter) ([]CardEntry, error) {
	product, err := s.products.Get(ctx, filter.ProductID)
	if err != nil {
		return nil, err
	}
	if err := tenancy.Authorize(p, product.UnitID); err != nil {
		return nil, err
	}
	rows, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	balance, err := s.repo.SumBefore(ctx, filter.ProductID, filter.From)
	if err != nil {
		return nil, err
	}
	card := make([]CardEntry, 0, len(rows))
	for _, row := range rows {
		balance += row.Quantity
		card = append(card, CardEntry{Row: row, Balance: balance})
	}
	return card, nil
}
