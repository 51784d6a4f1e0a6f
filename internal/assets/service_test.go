package assets

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/unistock/internal/shared"
	"github.com/odyssey-erp/unistock/internal/tenancy"
)

type memoryRepo struct {
	items map[int64]Item
	stock map[int64]int64
}

type memoryTx struct {
	repo *memoryRepo
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryTx{repo: r})
}

func (r *memoryRepo) Get(ctx context.Context, id int64) (Item, error) {
	item, ok := r.items[id]
	if !ok {
		return Item{}, shared.ErrNotFound
	}
	return item, nil
}

func (r *memoryRepo) List(ctx context.Context, filter ListFilter) ([]Item, int, error) {
	out := []Item{}
	for _, item := range r.items {
		if filter.UnitID != nil && item.UnitID != *filter.UnitID {
			continue
		}
		if filter.State != "" && item.State != filter.State {
			continue
		}
		out = append(out, item)
	}
	return out, len(out), nil
}

func (t *memoryTx) LockItem(ctx context.Context, id int64) (Item, error) {
	return t.repo.Get(ctx, id)
}

func (t *memoryTx) UpdateItem(ctx context.Context, item Item) error {
	t.repo.items[item.ID] = item
	return nil
}

func (t *memoryTx) CountAvailable(ctx context.Context, productID int64) (int64, error) {
	var n int64
	for _, item := range t.repo.items {
		if item.ProductID == productID && item.State == StateAvailable {
			n++
		}
	}
	return n, nil
}

func (t *memoryTx) SetProductStock(ctx context.Context, productID, qty int64) error {
	t.repo.stock[productID] = qty
	return nil
}

func TestSetMaintenanceRefreshesStock(t *testing.T) {
	repo := &memoryRepo{
		items: map[int64]Item{
			1: {ID: 1, UnitID: 10, ProductID: 5, InventoryNumber: "INV-A", State: StateAvailable},
			2: {ID: 2, UnitID: 10, ProductID: 5, InventoryNumber: "INV-B", State: StateAvailable},
		},
		stock: map[int64]int64{5: 2},
	}
	svc := NewService(repo, nil, nil)
	manager := tenancy.Principal{UserID: 1, UnitID: 10, Role: tenancy.RoleManager}

	item, err := svc.SetMaintenance(context.Background(), manager, 1, true)
	require.NoError(t, err)
	require.Equal(t, StateMaintenance, item.State)
	require.Equal(t, int64(1), repo.stock[5])

	_, err = svc.SetMaintenance(context.Background(), manager, 1, true)
	require.ErrorIs(t, err, shared.ErrInvalidState)

	_, err = svc.SetMaintenance(context.Background(), manager, 1, false)
	require.NoError(t, err)
	require.Equal(t, int64(2), repo.stock[5])
}

func TestSetMaintenanceScope(t *testing.T) {
	repo := &memoryRepo{
		items: map[int64]Item{1: {ID: 1, UnitID: 10, ProductID: 5, State: StateAvailable}},
		stock: map[int64]int64{},
	}
	svc := NewService(repo, nil, nil)

	_, err := svc.SetMaintenance(context.Background(), tenancy.Principal{UserID: 1, UnitID: 11, Role: tenancy.RoleAdmin}, 1, true)
	require.ErrorIs(t, err, shared.ErrCrossTenant)

	_, err = svc.SetMaintenance(context.Background(), tenancy.Principal{UserID: 1, UnitID: 10, Role: tenancy.RoleStaff}, 1, true)
	require.ErrorIs(t, err, shared.ErrForbidden)
	require.Equal(t, StateAvailable, repo.items[1].State)
}
