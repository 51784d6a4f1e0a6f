package observability

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	jobmetrics "github.com/odyssey-erp/unistock/internal/jobs"
)

func TestMetricsHandlerExposesJobCounters(t *testing.T) {
	metrics := NewMetrics()
	jobs := jobmetrics.NewMetrics(metrics.Registerer())
	_ = jobs.Track("inventory:stock_reconcile").End(nil)
	_ = jobs.Track("inventory:stock_reconcile").End(errors.New("boom"))
	jobs.AddReconciled(12, 2)

	rr := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	require.Contains(t, body, `unistock_jobs_total{job="inventory:stock_reconcile",status="failure"} 1`)
	require.Contains(t, body, `unistock_reconciled_products_total{outcome="corrected"} 2`)
}

func serveRoute(t *testing.T, metrics *Metrics, method, pattern, target string, h http.HandlerFunc) *httptest.ResponseRecorder {
	t.Helper()
	routeCtx := chi.NewRouteContext()
	routeCtx.RoutePatterns = append(routeCtx.RoutePatterns, pattern)
	req := httptest.NewRequest(method, target, nil)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))

	rr := httptest.NewRecorder()
	metrics.Middleware(h).ServeHTTP(rr, req)
	return rr
}

func scrape(t *testing.T, metrics *Metrics) string {
	t.Helper()
	rr := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	return rr.Body.String()
}

func TestMetricsMiddlewareRecordsRequest(t *testing.T) {
	metrics := NewMetrics()

	rr := serveRoute(t, metrics, http.MethodGet, "/api/vouchers/{id}", "/api/vouchers/12", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	require.Equal(t, http.StatusTeapot, rr.Code)

	body := scrape(t, metrics)
	require.True(t, strings.Contains(body, `unistock_http_requests_total{code="418",method="GET",route="/api/vouchers/{id}"} 1`), body)
	require.Contains(t, body, `unistock_http_request_duration_seconds_bucket{method="GET",route="/api/vouchers/{id}"`)
	require.Contains(t, body, `unistock_http_requests_in_flight 0`)
	require.Contains(t, body, `go_goroutines`)
}

func TestMetricsMiddlewareSeparatesMethodsAndCountsConflicts(t *testing.T) {
	metrics := NewMetrics()
	confirm := func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}
	serveRoute(t, metrics, http.MethodPost, "/api/vouchers/{id}/confirm", "/api/vouchers/3/confirm", confirm)
	serveRoute(t, metrics, http.MethodPost, "/api/vouchers/{id}/confirm", "/api/vouchers/4/confirm", confirm)
	serveRoute(t, metrics, http.MethodGet, "/api/vouchers/{id}", "/api/vouchers/3", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	})

	body := scrape(t, metrics)
	require.Contains(t, body, `unistock_http_requests_total{code="409",method="POST",route="/api/vouchers/{id}/confirm"} 2`)
	require.Contains(t, body, `unistock_http_requests_total{code="200",method="GET",route="/api/vouchers/{id}"} 1`)
	require.Contains(t, body, `unistock_http_conflicts_total{route="/api/vouchers/{id}/confirm"} 2`)
	require.NotContains(t, body, `unistock_http_conflicts_total{route="/api/vouchers/{id}"}`)
}

func TestStatusRecorderKeepsFirstStatus(t *testing.T) {
	rec := &statusRecorder{ResponseWriter: httptest.NewRecorder()}
	require.Equal(t, http.StatusOK, rec.Status())

	_, err := rec.Write([]byte("ok"))
	require.NoError(t, err)
	rec.WriteHeader(http.StatusInternalServerError)
	require.Equal(t, http.StatusOK, rec.Status())
	require.NotNil(t, rec.Unwrap())
}

func TestNilMetricsAreSafe(t *testing.T) {
	var metrics *Metrics
	require.NotNil(t, metrics.Registerer())
	rr := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
}
