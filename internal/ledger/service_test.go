package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/unistock/internal/catalog"
	"github.com/odyssey-erp/unistock/internal/shared"
	"github.com/odyssey-erp/unistock/internal/tenancy"
)

type memoryRepo struct {
	rows []Row
}

func (r *memoryRepo) List(ctx context.Context, filter Filter) ([]Row, error) {
	out := []Row{}
	for _, row := range r.rows {
		if row.ProductID != filter.ProductID {
			continue
		}
		if !filter.From.IsZero() && row.CreatedAt.Before(filter.From) {
			continue
		}
		out = append(out, row)
	}
	return out, nil
}

func (r *memoryRepo) SumBefore(ctx context.Context, productID int64, before time.Time) (int64, error) {
	var total int64
	for _, row := range r.rows {
		if row.ProductID == productID && !before.IsZero() && row.CreatedAt.Before(before) {
			total += row.Quantity
		}
	}
	return total, nil
}

type productReader map[int64]catalog.Product

func (p productReader) Get(ctx context.Context, id int64) (catalog.Product, error) {
	product, ok := p[id]
	if !ok {
		return catalog.Product{}, shared.ErrNotFound
	}
	return product, nil
}

func TestStockCardRunningBalance(t *testing.T) {
	day := func(d int) time.Time { return time.Date(2025, 1, d, 9, 0, 0, 0, time.UTC) }
	repo := &memoryRepo{rows: []Row{
		{ID: 1, ProductID: 7, Kind: KindIn, Quantity: 50, CreatedAt: day(1)},
		{ID: 2, ProductID: 7, Kind: KindOut, Quantity: -20, CreatedAt: day(2)},
		{ID: 3, ProductID: 7, Kind: KindReturn, Quantity: 5, CreatedAt: day(3)},
		{ID: 4, ProductID: 7, Kind: KindAdjust, Quantity: -3, CreatedAt: day(4)},
	}}
	svc := NewService(repo, productReader{7: {ID: 7, UnitID: 1, Nature: catalog.NatureConsumable}})
	staff := tenancy.Principal{UserID: 1, UnitID: 1, Role: tenancy.RoleStaff}

	card, err := svc.StockCard(context.Background(), staff, Filter{ProductID: 7})
	require.NoError(t, err)
	require.Len(t, card, 4)
	require.Equal(t, []int64{50, 30, 35, 32}, []int64{card[0].Balance, card[1].Balance, card[2].Balance, card[3].Balance})

	card, err = svc.StockCard(context.Background(), staff, Filter{ProductID: 7, From: day(3)})
	require.NoError(t, err)
	require.Len(t, card, 2)
	require.Equal(t, int64(35), card[0].Balance)

	_, err = svc.StockCard(context.Background(), tenancy.Principal{UserID: 2, UnitID: 9, Role: tenancy.RoleStaff}, Filter{ProductID: 7})
	require.ErrorIs(t, err, shared.ErrCrossTenant)
}

func TestSignConsistent(t *testing.T) {
	require.True(t, Row{Kind: KindIn, Quantity: 1}.SignConsistent())
	require.False(t, Row{Kind: KindOut, Quantity: 1}.SignConsistent())
	require.True(t, Row{Kind: KindAdjust, Quantity: -4}.SignConsistent())
	require.False(t, Row{Kind: KindAdjust, Quantity: 0}.SignConsistent())
}
