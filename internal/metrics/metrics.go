// Package metrics exposes guard-chain outcomes to prometheus and to the
// admin JSON endpoint.
package metrics

import (
	"net/http"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	outcomePass = "pass"
	outcomeFail = "fail"
)

// PipelineMetrics counts per-guard outcomes and audit drops.
type PipelineMetrics struct {
	guardOutcomes *prometheus.CounterVec
	auditDropped  prometheus.Counter

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	registry *prometheus.Registry

	// local mirrors the counters so Snapshot does not have to gather the registry.
	local   sync.Map // guard name -> *guardCounts
	dropped atomic.Int64
}

type guardCounts struct {
	passed atomic.Int64
	failed atomic.Int64
}

// GuardStats is the pass/fail tally of one guard.
type GuardStats struct {
	Guard  string `json:"guard"`
	Passed int64  `json:"passed"`
	Failed int64  `json:"failed"`
}

// Snapshot is a point-in-time copy of the pipeline counters.
type Snapshot struct {
	Guards             []GuardStats `json:"guards"`
	AuditEventsDropped int64        `json:"audit_events_dropped"`
	TakenAt            time.Time    `json:"taken_at"`
}

// New creates PipelineMetrics on a private registry.
func New() *PipelineMetrics {
	registry := prometheus.NewRegistry()

	m := &PipelineMetrics{
		guardOutcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "question_guard_outcomes_total",
				Help: "Question upsert guard results by guard and outcome",
			},
			[]string{"guard", "outcome"},
		),

		auditDropped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "security_audit_events_dropped_total",
				Help: "Security events discarded because the audit queue was full or closed",
			},
		),

		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status_code"},
		),

		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),

		registry: registry,
	}

	registry.MustRegister(
		m.guardOutcomes,
		m.auditDropped,
		m.httpRequestsTotal,
		m.httpRequestDuration,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)

	return m
}

// RecordOutcome counts one guard result.
func (m *PipelineMetrics) RecordOutcome(guardName string, passed bool) {
	v, _ := m.local.LoadOrStore(guardName, &guardCounts{})
	counts := v.(*guardCounts)

	if passed {
		counts.passed.Add(1)
		m.guardOutcomes.WithLabelValues(guardName, outcomePass).Inc()
		return
	}
	counts.failed.Add(1)
	m.guardOutcomes.WithLabelValues(guardName, outcomeFail).Inc()
}

// RecordAuditDrop counts one discarded security event.
func (m *PipelineMetrics) RecordAuditDrop() {
	m.dropped.Add(1)
	m.auditDropped.Inc()
}

// TrackStateSize exposes a gauge read from fn at scrape time, e.g. the number
// of users holding a rate-limit bucket.
func (m *PipelineMetrics) TrackStateSize(name, help string, fn func() int) {
	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{Name: name, Help: help},
		func() float64 { return float64(fn()) },
	))
}

// Snapshot returns the current counters, guards sorted by name.
func (m *PipelineMetrics) Snapshot() Snapshot {
	s := Snapshot{
		AuditEventsDropped: m.dropped.Load(),
		TakenAt:            time.Now(),
	}
	m.local.Range(func(k, v any) bool {
		c := v.(*guardCounts)
		s.Guards = append(s.Guards, GuardStats{
			Guard:  k.(string),
			Passed: c.passed.Load(),
			Failed: c.failed.Load(),
		})
		return true
	})
	sort.Slice(s.Guards, func(i, j int) bool { return s.Guards[i].Guard < s.Guards[j].Guard })
	return s
}

// Handler returns the Prometheus metrics HTTP handler
func (m *PipelineMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *PipelineMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// GinMiddleware records request counts and latency per matched route.
func (m *PipelineMetrics) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.httpRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.httpRequestDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}
