package reports

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/unistock/internal/tenancy"
)

// RepositoryPort provides the aggregate queries. A nil unit covers all units.
type RepositoryPort interface {
	AssetsByState(ctx context.Context, unitID *int64) (map[string]int64, error)
	AssetValue(ctx context.Context, unitID *int64) (decimal.Decimal, error)
	ConfirmedVouchersSince(ctx context.Context, unitID *int64, since time.Time) (map[string]int64, error)
	LowStock(ctx context.Context, unitID *int64) ([]LowStockItem, error)
}

// Service assembles and caches reports.
type Service struct {
	repo  RepositoryPort
	cache *Cache
	now   func() time.Time
}

// NewService builds Service. cache may be nil.
func NewService(repo RepositoryPort, cache *Cache) *Service {
	return &Service{repo: repo, cache: cache, now: func() time.Time { return time.Now().UTC() }}
}

// Dashboard returns the summary for the principal's scope.
func (s *Service) Dashboard(ctx context.Context, p tenancy.Principal) (Dashboard, error) {
	unitID := tenancy.CurrentUnit(p).UnitFilter()
	scope := "all"
	if unitID != nil {
		scope = fmt.Sprintf("%d", *unitID)
	}
	key, err := s.cache.BuildKey(ctx, "reports", "dashboard", scope)
	if err != nil {
		return Dashboard{}, err
	}
	var out Dashboard
	err = s.cache.FetchJSON(ctx, key, &out, func(ctx context.Context) (any, error) {
		return s.buildDashboard(ctx, unitID)
	})
	return out, err
}

func (s *Service) buildDashboard(ctx context.Context, unitID *int64) (Dashboard, error) {
	now := s.now()
	d := Dashboard{GeneratedAt: now, WindowStartedAt: now.Add(-Window)}
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		d.AssetsByState, err = s.repo.AssetsByState(ctx, unitID)
		return err
	})
	g.Go(func() error {
		var err error
		d.AssetValue, err = s.repo.AssetValue(ctx, unitID)
		return err
	})
	g.Go(func() error {
		var err error
		d.RecentVouchers, err = s.repo.ConfirmedVouchersSince(ctx, unitID, d.WindowStartedAt)
		return err
	})
	g.Go(func() error {
		var err error
		d.LowStock, err = s.repo.LowStock(ctx, unitID)
		return err
	})
	if err := g.Wait(); err != nil {
		return Dashboard{}, err
	}
	if d.LowStock == nil {
		d.LowStock = []LowStockItem{}
	}
	return d, nil
}
