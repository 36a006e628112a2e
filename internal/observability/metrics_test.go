package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMiddlewareRecordsRequests(t *testing.T) {
	m := NewMetrics()
	handler := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodGet, "/rbac/check", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	require.Equal(t, http.StatusTeapot, res.Code)

	metricsRes := httptest.NewRecorder()
	m.Handler().ServeHTTP(metricsRes, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := metricsRes.Body.String()
	require.True(t, strings.Contains(body, "depot_http_requests_total"))
	require.True(t, strings.Contains(body, `code="418"`))
}

func TestRBACCollectors(t *testing.T) {
	m := NewMetrics()
	m.ObserveAccessCheck("allowed")
	m.ObserveAccessCheck("denied")
	m.ObserveCascade("grant", "applied")
	m.ObserveInconsistency("cycle")

	res := httptest.NewRecorder()
	m.Handler().ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := res.Body.String()
	require.Contains(t, body, `depot_rbac_access_checks_total{outcome="allowed"} 1`)
	require.Contains(t, body, `depot_rbac_cascade_batches_total{action="grant",result="applied"} 1`)
	require.Contains(t, body, `depot_rbac_data_inconsistencies_total{kind="cycle"} 1`)
}

func TestNilMetricsSafe(t *testing.T) {
	var m *Metrics
	m.ObserveAccessCheck("allowed")
	m.ObserveCascade("revoke", "failed")
	m.ObserveInconsistency("missing_parent")
	require.NotNil(t, m.Handler())
}
