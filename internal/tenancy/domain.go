// Package tenancy resolves which organizational unit a principal may see and write.
package tenancy

import "time"

// Role is the principal's role within its unit.
type Role string

const (
	RoleSuperAdmin Role = "super_admin"
	RoleAdmin      Role = "admin"
	RoleManager    Role = "manager"
	RoleStaff      Role = "staff"
	RoleViewer     Role = "viewer"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleSuperAdmin, RoleAdmin, RoleManager, RoleStaff, RoleViewer:
		return true
	}
	return false
}

// CanManage reports whether the role may confirm or cancel vouchers.
func (r Role) CanManage() bool {
	return r == RoleSuperAdmin || r == RoleAdmin || r == RoleManager
}

// CanEdit reports whether the role may create drafts.
func (r Role) CanEdit() bool {
	return r.CanManage() || r == RoleStaff
}

// UnitKind classifies organizational units.
type UnitKind string

const (
	UnitCentral    UnitKind = "central"
	UnitFaculty    UnitKind = "faculty"
	UnitInstitute  UnitKind = "institute"
	UnitDepartment UnitKind = "department"
)

// Valid reports whether k is a known unit kind.
func (k UnitKind) Valid() bool {
	switch k {
	case UnitCentral, UnitFaculty, UnitInstitute, UnitDepartment:
		return true
	}
	return false
}

// Unit is an organizational unit owning inventory records.
type Unit struct {
	ID        int64
	Code      string
	Name      string
	Kind      UnitKind
	Active    bool
	CreatedAt time.Time
}

// Department is a receiving department inside a unit.
type Department struct {
	ID     int64
	UnitID int64
	Name   string
}

// Principal identifies the acting user of a request.
type Principal struct {
	UserID int64
	UnitID int64
	Role   Role
}

// Scope is the set of units a principal can see.
type Scope struct {
	UnitID int64
	All    bool
}

// Allows reports whether unitID is inside the scope.
func (s Scope) Allows(unitID int64) bool {
	return s.All || (s.UnitID != 0 && s.UnitID == unitID)
}

// UnitFilter returns the unit restriction for queries, nil meaning all units.
func (s Scope) UnitFilter() *int64 {
	if s.All {
		return nil
	}
	id := s.UnitID
	return &id
}
