package reports

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/unistock/internal/tenancy"
)

type stubRepo struct {
	loads  atomic.Int32
	units  []*int64
	since  time.Time
	lowErr error
	value  decimal.Decimal
}

func (s *stubRepo) AssetsByState(ctx context.Context, unitID *int64) (map[string]int64, error) {
	s.loads.Add(1)
	s.units = append(s.units, unitID)
	return map[string]int64{"available": 4, "assigned": 2}, nil
}

func (s *stubRepo) AssetValue(ctx context.Context, unitID *int64) (decimal.Decimal, error) {
	return s.value, nil
}

func (s *stubRepo) ConfirmedVouchersSince(ctx context.Context, unitID *int64, since time.Time) (map[string]int64, error) {
	s.since = since
	return map[string]int64{"entry": 3}, nil
}

func (s *stubRepo) LowStock(ctx context.Context, unitID *int64) ([]LowStockItem, error) {
	if s.lowErr != nil {
		return nil, s.lowErr
	}
	return []LowStockItem{{ProductID: 1, Code: "PPR", Stock: 2, MinStock: 5}}, nil
}

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCache(client, time.Minute)
}

func TestDashboardIsCachedUntilStockChanges(t *testing.T) {
	repo := &stubRepo{value: decimal.RequireFromString("23000000.50")}
	cache := newTestCache(t)
	svc := NewService(repo, cache)
	now := time.Date(2026, 10, 18, 8, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }
	ctx := context.Background()
	p := tenancy.Principal{UserID: 1, UnitID: 3, Role: tenancy.RoleViewer}

	d, err := svc.Dashboard(ctx, p)
	require.NoError(t, err)
	require.Equal(t, int64(4), d.AssetsByState["available"])
	require.True(t, d.AssetValue.Equal(decimal.RequireFromString("23000000.50")))
	require.Equal(t, int64(3), d.RecentVouchers["entry"])
	require.Len(t, d.LowStock, 1)
	require.Equal(t, now.Add(-Window), repo.since)
	require.Equal(t, int64(3), *repo.units[0])

	_, err = svc.Dashboard(ctx, p)
	require.NoError(t, err)
	require.Equal(t, int32(1), repo.loads.Load())

	require.NoError(t, cache.StockChanged(ctx, 3))
	_, err = svc.Dashboard(ctx, p)
	require.NoError(t, err)
	require.Equal(t, int32(2), repo.loads.Load())
}

func TestDashboardScopesByUnit(t *testing.T) {
	repo := &stubRepo{}
	svc := NewService(repo, newTestCache(t))
	ctx := context.Background()

	_, err := svc.Dashboard(ctx, tenancy.Principal{UserID: 1, UnitID: 3, Role: tenancy.RoleViewer})
	require.NoError(t, err)
	_, err = svc.Dashboard(ctx, tenancy.Principal{UserID: 2, Role: tenancy.RoleSuperAdmin})
	require.NoError(t, err)

	require.Equal(t, int32(2), repo.loads.Load())
	require.Nil(t, repo.units[1], "super admins see every unit")
}

func TestDashboardWithoutCache(t *testing.T) {
	repo := &stubRepo{}
	svc := NewService(repo, nil)
	p := tenancy.Principal{UserID: 1, UnitID: 3, Role: tenancy.RoleViewer}

	_, err := svc.Dashboard(context.Background(), p)
	require.NoError(t, err)
	_, err = svc.Dashboard(context.Background(), p)
	require.NoError(t, err)
	require.Equal(t, int32(2), repo.loads.Load())

	repo.lowErr = errors.New("query failed")
	_, err = svc.Dashboard(context.Background(), p)
	require.EqualError(t, err, "query failed")
}

func TestCacheVersionStartsAtOne(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	key, err := cache.BuildKey(ctx, "reports", "dashboard", "all")
	require.NoError(t, err)
	require.Equal(t, "reports:dashboard:all:v1", key)

	require.NoError(t, cache.Bump(ctx))
	key, err = cache.BuildKey(ctx, "reports", "dashboard", "all")
	require.NoError(t, err)
	require.Equal(t, "reports:dashboard:all:v2", key)
}
