package tenancy

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/odyssey-erp/unistock/internal/platform/httpx"
	"github.com/odyssey-erp/unistock/internal/shared"
)

// Headers set by the authenticating gateway in front of the service.
const (
	HeaderUserID = "X-User-ID"
	HeaderUnitID = "X-Unit-ID"
	HeaderRole   = "X-User-Role"
)

// Middleware loads the principal from gateway headers.
type Middleware struct {
	Logger *slog.Logger
}

// Authenticate rejects requests without a well-formed principal.
func (m Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, err := principalFromHeaders(r)
		if err != nil {
			if m.Logger != nil {
				m.Logger.Warn("reject request without principal", slog.String("path", r.URL.Path), slog.Any("error", err))
			}
			httpx.RespondError(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(ContextWithPrincipal(r.Context(), p)))
	})
}

// RequireEdit allows only roles that can create drafts.
func (m Middleware) RequireEdit(next http.Handler) http.Handler {
	return m.require(RequireEdit, next)
}

// RequireManage allows only roles that can confirm or cancel.
func (m Middleware) RequireManage(next http.Handler) http.Handler {
	return m.require(RequireManage, next)
}

func (m Middleware) require(check func(Principal) error, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := PrincipalFromContext(r.Context())
		if !ok {
			httpx.RespondError(w, shared.ErrUnauthenticated)
			return
		}
		if err := check(p); err != nil {
			httpx.RespondError(w, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func principalFromHeaders(r *http.Request) (Principal, error) {
	userID, err := strconv.ParseInt(r.Header.Get(HeaderUserID), 10, 64)
	if err != nil || userID <= 0 {
		return Principal{}, fmt.Errorf("%w: missing user", shared.ErrUnauthenticated)
	}
	role := Role(r.Header.Get(HeaderRole))
	if !role.Valid() {
		return Principal{}, fmt.Errorf("%w: unknown role", shared.ErrUnauthenticated)
	}
	var unitID int64
	if raw := r.Header.Get(HeaderUnitID); raw != "" {
		unitID, err = strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return Principal{}, fmt.Errorf("%w: malformed unit", shared.ErrUnauthenticated)
		}
	}
	if unitID == 0 && role != RoleSuperAdmin {
		return Principal{}, fmt.Errorf("%w: unit required for role %s", shared.ErrUnauthenticated, role)
	}
	return Principal{UserID: userID, UnitID: unitID, Role: role}, nil
}
