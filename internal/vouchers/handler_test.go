package vouchers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/unistock/internal/tenancy"
)

func newTestRouter(f *fixture) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mw := tenancy.Middleware{Logger: logger}
	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Use(mw.Authenticate)
		NewHandler(logger, f.svc, mw).MountRoutes(r)
	})
	return r
}

func doRequest(t *testing.T, h http.Handler, method, path, role string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if role != "" {
		req.Header.Set(tenancy.HeaderUserID, "7")
		req.Header.Set(tenancy.HeaderUnitID, "1")
		req.Header.Set(tenancy.HeaderRole, role)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandlerCreateAndConfirm(t *testing.T) {
	f := newFixture(t)
	h := newTestRouter(f)

	rec := doRequest(t, h, http.MethodPost, "/api/vouchers/entry", "staff", map[string]any{
		"date":     "2026-10-01",
		"supplier": "CV Sumber Kertas",
		"lines":    []map[string]any{{"product_id": f.paper.ID, "quantity": 12, "unit_price": "45000"}},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created Voucher
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.Equal(t, "ENT-FT-2026-00001", created.Number)
	require.Equal(t, StatusDraft, created.Status)

	rec = doRequest(t, h, http.MethodPost, fmt.Sprintf("/api/vouchers/%d/confirm", created.ID), "staff", nil)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = doRequest(t, h, http.MethodPost, fmt.Sprintf("/api/vouchers/%d/confirm", created.ID), "manager", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, int64(12), f.stock(f.paper.ID))

	rec = doRequest(t, h, http.MethodPost, fmt.Sprintf("/api/vouchers/%d/confirm", created.ID), "manager", nil)
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = doRequest(t, h, http.MethodGet, fmt.Sprintf("/api/vouchers/%d", created.ID), "viewer", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestHandlerMapsErrors(t *testing.T) {
	f := newFixture(t)
	h := newTestRouter(f)

	rec := doRequest(t, h, http.MethodGet, "/api/vouchers", "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doRequest(t, h, http.MethodPost, "/api/vouchers/transfer", "manager", map[string]any{})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, h, http.MethodPost, "/api/vouchers/exit", "manager", map[string]any{
		"lines": []map[string]any{{"product_id": f.paper.ID, "quantity": 1}},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))

	rec = doRequest(t, h, http.MethodPost, "/api/vouchers/entry", "manager", map[string]any{
		"date": "18/10/2026",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, h, http.MethodPost, "/api/vouchers/exit", "manager", map[string]any{
		"department_id":  11,
		"recipient_name": "Budi",
		"lines":          []map[string]any{{"product_id": f.paper.ID, "quantity": 3}},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var exit Voucher
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &exit))

	rec = doRequest(t, h, http.MethodPost, fmt.Sprintf("/api/vouchers/%d/confirm", exit.ID), "manager", nil)
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Contains(t, rec.Body.String(), "PPR")

	rec = doRequest(t, h, http.MethodGet, "/api/vouchers/999999", "manager", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlerListsVouchersOfTheUnit(t *testing.T) {
	f := newFixture(t)
	f.create(t, CreateInput{Kind: KindEntry})
	f.create(t, CreateInput{Kind: KindExit, DepartmentID: 11, RecipientName: "Budi"})
	h := newTestRouter(f)

	rec := doRequest(t, h, http.MethodGet, "/api/vouchers?kind=exit", "viewer", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Data []Voucher `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Data, 1)
	require.Equal(t, KindExit, body.Data[0].Kind)

	rec = doRequest(t, h, http.MethodGet, "/api/vouchers?kind=transfer", "viewer", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
