package tenancy

import (
	"fmt"

	"github.com/odyssey-erp/unistock/internal/shared"
)

// CurrentUnit yields the visible scope for p. Super administrators span all units.
func CurrentUnit(p Principal) Scope {
	if p.Role == RoleSuperAdmin {
		return Scope{UnitID: p.UnitID, All: true}
	}
	return Scope{UnitID: p.UnitID}
}

// Authorize rejects access to a record owned by unitID outside p's scope.
func Authorize(p Principal, unitID int64) error {
	if !CurrentUnit(p).Allows(unitID) {
		return fmt.Errorf("%w: unit %d", shared.ErrCrossTenant, unitID)
	}
	return nil
}

// WriteUnit resolves the owning unit for a new record. Only all-units
// principals may target a unit other than their own, and they must name one.
func WriteUnit(p Principal, requested int64) (int64, error) {
	scope := CurrentUnit(p)
	if requested == 0 {
		if p.UnitID == 0 {
			return 0, fmt.Errorf("%w: unit required", shared.ErrValidation)
		}
		return p.UnitID, nil
	}
	if !scope.Allows(requested) {
		return 0, fmt.Errorf("%w: unit %d", shared.ErrCrossTenant, requested)
	}
	return requested, nil
}

// RequireEdit rejects principals that cannot create drafts.
func RequireEdit(p Principal) error {
	if !p.Role.CanEdit() {
		return fmt.Errorf("%w: role %s cannot edit", shared.ErrForbidden, p.Role)
	}
	return nil
}

// RequireManage rejects principals that cannot confirm or cancel.
func RequireManage(p Principal) error {
	if !p.Role.CanManage() {
		return fmt.Errorf("%w: role %s cannot manage", shared.ErrForbidden, p.Role)
	}
	return nil
}
