package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/facturia/facturia/internal/authz"
	jobmetrics "github.com/facturia/facturia/internal/jobs"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	return rr.Body.String()
}

func TestMetricsHandlerExposesJobMetrics(t *testing.T) {
	metrics := NewMetrics()
	jobs := jobmetrics.NewMetrics(metrics.Registerer())
	require.NoError(t, jobs.Track("audit_suspicious_scan").End(nil))

	require.Contains(t, scrape(t, metrics), `facturia_jobs_total{job="audit_suspicious_scan",status="success"} 1`)
}

func TestMetricsMiddlewareRecordsRequest(t *testing.T) {
	metrics := NewMetrics()

	handler := metrics.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	routeCtx := chi.NewRouteContext()
	routeCtx.RoutePatterns = append(routeCtx.RoutePatterns, "/test")

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusTeapot, rr.Code)

	body := scrape(t, metrics)
	require.Contains(t, body, `facturia_http_requests_total{code="418",route="/test"} 1`)
	require.Contains(t, body, `facturia_http_request_duration_seconds_bucket{route="/test"`)
}

func TestMetricsObserveAuthzDecisions(t *testing.T) {
	metrics := NewMetrics()
	engine := authz.NewEngine(authz.WithObserver(metrics))
	admin := &authz.Actor{ID: 1, Role: authz.RoleAdmin}

	require.True(t, engine.Can(admin, "create", "user", nil))
	require.False(t, engine.Can(admin, "delete", "user", &authz.Resource{ID: 1, Role: authz.RoleAdmin}))
	require.False(t, engine.Can(admin, "archive", "user", nil))

	body := scrape(t, metrics)
	require.Contains(t, body, `facturia_authz_decisions_total{ability="create",allowed="true",resource="user"} 1`)
	require.Contains(t, body, `facturia_authz_decisions_total{ability="delete",allowed="false",resource="user"} 1`)
	require.Contains(t, body, `facturia_authz_decisions_total{ability="archive",allowed="false",resource="user"} 1`)
}
