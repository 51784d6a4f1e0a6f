package tenancy

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/odyssey-erp/unistock/internal/platform/db"
	"github.com/odyssey-erp/unistock/internal/shared"
)

// Store reads units and departments.
type Store struct {
	q db.Querier
}

// NewStore binds the store to a pool or transaction.
func NewStore(q db.Querier) *Store {
	return &Store{q: q}
}

// GetUnit loads a unit by id.
func (s *Store) GetUnit(ctx context.Context, id int64) (Unit, error) {
	var u Unit
	err := s.q.QueryRow(ctx, `SELECT id, code, name, kind, active, created_at FROM units WHERE id=$1`, id).
		Scan(&u.ID, &u.Code, &u.Name, &u.Kind, &u.Active, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Unit{}, fmt.Errorf("unit %d: %w", id, shared.ErrNotFound)
	}
	return u, err
}

// DepartmentInUnit reports whether the department belongs to the unit.
func (s *Store) DepartmentInUnit(ctx context.Context, unitID, departmentID int64) (bool, error) {
	var exists bool
	err := s.q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM departments WHERE id=$1 AND unit_id=$2)`, departmentID, unitID).Scan(&exists)
	return exists, err
}
