package metrics

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordOutcome(t *testing.T) {
	m := New()

	m.RecordOutcome("rate_limit", true)
	m.RecordOutcome("rate_limit", true)
	m.RecordOutcome("rate_limit", false)
	m.RecordOutcome("question_data_integrity", false)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.guardOutcomes.WithLabelValues("rate_limit", "pass")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.guardOutcomes.WithLabelValues("rate_limit", "fail")))

	snap := m.Snapshot()
	assert.Equal(t, []GuardStats{
		{Guard: "question_data_integrity", Passed: 0, Failed: 1},
		{Guard: "rate_limit", Passed: 2, Failed: 1},
	}, snap.Guards)
}

func TestRecordOutcomeConcurrently(t *testing.T) {
	m := New()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				m.RecordOutcome("ownership", j%2 == 0)
			}
		}()
	}
	wg.Wait()

	snap := m.Snapshot()
	require.Len(t, snap.Guards, 1)
	assert.Equal(t, int64(2500), snap.Guards[0].Passed)
	assert.Equal(t, int64(2500), snap.Guards[0].Failed)
}

func TestAuditDrops(t *testing.T) {
	m := New()
	m.RecordAuditDrop()
	m.RecordAuditDrop()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.auditDropped))
	assert.Equal(t, int64(2), m.Snapshot().AuditEventsDropped)
}

func TestHandlerExposesCounters(t *testing.T) {
	m := New()
	m.RecordOutcome("security_context", false)
	m.TrackStateSize("question_guard_rate_limit_buckets", "Users holding a rate-limit bucket", func() int { return 7 })

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body := rec.Body.String()
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, body, `question_guard_outcomes_total{guard="security_context",outcome="fail"} 1`)
	assert.Contains(t, body, "question_guard_rate_limit_buckets 7")
}

func TestGinMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := New()

	r := gin.New()
	r.Use(m.GinMiddleware())
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nope", nil))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues("GET", "/health", "204")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues("GET", "unmatched", "404")))

	count, err := testutil.GatherAndCount(m.Registry(), "http_request_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}
