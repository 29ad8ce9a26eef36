package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordAllocation(t *testing.T) {
	m := New()
	m.RecordAllocation("add_users", OutcomeRejected)
	m.RecordAllocation("add_users", OutcomeRejected)
	m.RecordAllocation("create", OutcomeAccepted)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.allocations.WithLabelValues("add_users", OutcomeRejected)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.allocations.WithLabelValues("create", OutcomeAccepted)))
}

func TestHandlerExposesBookingMetrics(t *testing.T) {
	m := New()
	m.ObserveSlotLockWait(3 * time.Millisecond)
	m.ObserveHTTPRequest(http.MethodGet, "/api/fields", 200, 10*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "booking_slot_lock_wait_seconds_count 1")
	assert.Contains(t, rec.Body.String(), `http_requests_total{method="GET",path="/api/fields",status="200"} 1`)
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.RecordAllocation("create", OutcomeAccepted)
	m.ObserveSlotLockWait(time.Second)
	m.RecordCacheLookup(true)
	m.RecordRateLimited()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
