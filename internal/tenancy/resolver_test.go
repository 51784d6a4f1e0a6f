package tenancy

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/unistock/internal/shared"
)

func TestCurrentUnitScopes(t *testing.T) {
	staff := Principal{UserID: 1, UnitID: 10, Role: RoleStaff}
	scope := CurrentUnit(staff)
	require.False(t, scope.All)
	require.True(t, scope.Allows(10))
	require.False(t, scope.Allows(11))
	require.Equal(t, int64(10), *scope.UnitFilter())

	super := Principal{UserID: 2, Role: RoleSuperAdmin}
	scope = CurrentUnit(super)
	require.True(t, scope.All)
	require.True(t, scope.Allows(11))
	require.Nil(t, scope.UnitFilter())
}

func TestAuthorizeCrossTenant(t *testing.T) {
	err := Authorize(Principal{UserID: 1, UnitID: 10, Role: RoleAdmin}, 11)
	require.ErrorIs(t, err, shared.ErrCrossTenant)
	require.NoError(t, Authorize(Principal{UserID: 1, UnitID: 10, Role: RoleAdmin}, 10))
}

func TestWriteUnit(t *testing.T) {
	unit, err := WriteUnit(Principal{UserID: 1, UnitID: 10, Role: RoleStaff}, 0)
	require.NoError(t, err)
	require.Equal(t, int64(10), unit)

	_, err = WriteUnit(Principal{UserID: 1, UnitID: 10, Role: RoleStaff}, 12)
	require.ErrorIs(t, err, shared.ErrCrossTenant)

	_, err = WriteUnit(Principal{UserID: 2, Role: RoleSuperAdmin}, 0)
	require.ErrorIs(t, err, shared.ErrValidation)

	unit, err = WriteUnit(Principal{UserID: 2, Role: RoleSuperAdmin}, 12)
	require.NoError(t, err)
	require.Equal(t, int64(12), unit)
}

func TestRoleChecks(t *testing.T) {
	require.ErrorIs(t, RequireEdit(Principal{Role: RoleViewer}), shared.ErrForbidden)
	require.NoError(t, RequireEdit(Principal{Role: RoleStaff}))
	require.ErrorIs(t, RequireManage(Principal{Role: RoleStaff}), shared.ErrForbidden)
	require.NoError(t, RequireManage(Principal{Role: RoleManager}))
}

func TestMiddlewareAuthenticate(t *testing.T) {
	m := Middleware{}
	var got Principal
	handler := m.Authenticate(m.RequireManage(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = PrincipalFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})))

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set(HeaderUserID, "5")
	req.Header.Set(HeaderUnitID, "3")
	req.Header.Set(HeaderRole, string(RoleStaff))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)

	req.Header.Set(HeaderRole, string(RoleManager))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, Principal{UserID: 5, UnitID: 3, Role: RoleManager}, got)
}
