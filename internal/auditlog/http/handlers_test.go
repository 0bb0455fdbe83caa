package audithttp

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/facturia/facturia/internal/auditlog"
	"github.com/facturia/facturia/internal/authz"
	"github.com/facturia/facturia/internal/shared"
)

var testNow = time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

func writeDay(t *testing.T, dir, date string, lines ...string) {
	t.Helper()
	content := strings.Join(lines, "\n") + "\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, date+".log"), []byte(content), 0o600))
}

func failedLogin(ip string) string {
	return fmt.Sprintf(`[2024-03-15 08:00:00] [WARNING] Login failed {"ip_address":"%s","attempted_username":"x"}`, ip)
}

func newTestRouter(t *testing.T, actor *authz.Actor) http.Handler {
	t.Helper()
	dir := t.TempDir()
	writeDay(t, dir, "2024-03-14",
		`[2024-03-14 09:00:00] [INFO] User created {"action":"USER_CREATED","actor_user_id":1,"actor_username":"admin","target_user_id":5,"target_email":"new@example.com"}`,
	)
	lines := []string{
		`[2024-03-15 10:00:00] [INFO] User updated {"action":"USER_UPDATED","actor_user_id":1,"actor_username":"admin","target_user_id":5,"target_email":"new@example.com"}`,
	}
	for i := 0; i < 6; i++ {
		lines = append(lines, failedLogin("203.0.113.7"))
	}
	lines = append(lines, failedLogin("198.51.100.1"))
	writeDay(t, dir, "2024-03-15", lines...)

	analyzer, err := auditlog.NewAnalyzer(dir, auditlog.WithClock(func() time.Time { return testNow }))
	require.NoError(t, err)
	handler := NewHandler(nil, analyzer, auditlog.NewExporter(), authz.NewEngine())
	handler.now = func() time.Time { return testNow }

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if actor != nil {
				req = req.WithContext(shared.ContextWithActor(req.Context(), actor))
			}
			next.ServeHTTP(w, req)
		})
	})
	r.Route("/audit", handler.MountRoutes)
	return r
}

var admin = &authz.Actor{ID: 1, Role: authz.RoleAdmin}

func get(router http.Handler, path string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
	return rr
}

func TestAuditRoutesRequireAdminPanel(t *testing.T) {
	rr := get(newTestRouter(t, nil), "/audit/report")
	require.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = get(newTestRouter(t, &authz.Actor{ID: 2, Role: authz.RoleFacturador}), "/audit/report")
	require.Equal(t, http.StatusForbidden, rr.Code)
}

func TestReportDefaultsToLastSevenDays(t *testing.T) {
	rr := get(newTestRouter(t, admin), "/audit/report")
	require.Equal(t, http.StatusOK, rr.Code)

	var report auditlog.Report
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &report))
	require.Equal(t, auditlog.Period{Start: "2024-03-08", End: "2024-03-15"}, report.Period)
	require.Equal(t, 2, report.TotalEvents)
	require.Equal(t, 7, report.FailedAttempts)
	require.Equal(t, 1, report.Modifications)
	require.Len(t, report.TopUsers, 1)
	require.Equal(t, 2, report.TopUsers[0].Count)
}

func TestReportRangeValidation(t *testing.T) {
	router := newTestRouter(t, admin)
	for _, q := range []string{
		"?from=2024-03-16&to=2024-03-15",
		"?from=2023-01-01&to=2024-03-15",
		"?from=2024-13-01",
		"?to=yesterday",
	} {
		rr := get(router, "/audit/report"+q)
		require.Equal(t, http.StatusBadRequest, rr.Code, q)
	}
}

func TestUserActionsEndpoint(t *testing.T) {
	router := newTestRouter(t, admin)
	rr := get(router, "/audit/users/1/actions?date=2024-03-14")
	require.Equal(t, http.StatusOK, rr.Code)

	var body eventsResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Equal(t, "2024-03-14", body.Date)
	require.Len(t, body.Events, 1)
	require.Equal(t, auditlog.ActionUserCreated, body.Events[0].Action())

	rr = get(router, "/audit/users/1/actions")
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Equal(t, "2024-03-15", body.Date)
	require.Len(t, body.Events, 1)

	rr = get(router, "/audit/users/abc/actions")
	require.Equal(t, http.StatusBadRequest, rr.Code)
	rr = get(router, "/audit/users/1/actions?date=14-03-2024")
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestUserHistoryEndpoint(t *testing.T) {
	rr := get(newTestRouter(t, admin), "/audit/users/5/history?from=2024-03-14&to=2024-03-15")
	require.Equal(t, http.StatusOK, rr.Code)

	var body eventsResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Len(t, body.Events, 2)
	require.Equal(t, auditlog.ActionUserCreated, body.Events[0].Action())
	require.Equal(t, auditlog.ActionUserUpdated, body.Events[1].Action())
}

func TestSuspiciousEndpoint(t *testing.T) {
	rr := get(newTestRouter(t, admin), "/audit/suspicious")
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `{"date":"2024-03-15","threshold":5,"ips":{"203.0.113.7":6}}`, rr.Body.String())
}

func TestReportXLSXExport(t *testing.T) {
	rr := get(newTestRouter(t, admin), "/audit/report.xlsx?from=2024-03-14&to=2024-03-15")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Header().Get("Content-Disposition"), "audit-report-2024-03-14-2024-03-15.xlsx")

	f, err := excelize.OpenReader(bytes.NewReader(rr.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	require.Contains(t, f.GetSheetList(), "Recent Events")
}

func TestReportCSVExport(t *testing.T) {
	rr := get(newTestRouter(t, admin), "/audit/report.csv?from=2024-03-14&to=2024-03-15")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "text/csv; charset=utf-8", rr.Header().Get("Content-Type"))
	require.Contains(t, rr.Body.String(), "USER_UPDATED")
}

func TestExportRateLimited(t *testing.T) {
	router := newTestRouter(t, admin)
	var code int
	for i := 0; i < rateLimit+1; i++ {
		code = get(router, "/audit/report.csv?from=2024-03-14&to=2024-03-15").Code
	}
	require.Equal(t, http.StatusTooManyRequests, code)
}
