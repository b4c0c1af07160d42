package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-cms/internal/metrics"
)

// SnapshotSource provides pipeline counters.
type SnapshotSource interface {
	Snapshot() metrics.Snapshot
}

// MetricsReporter periodically logs the pipeline's pass/fail counters.
type MetricsReporter struct {
	source   SnapshotSource
	interval time.Duration
	log      zerolog.Logger
}

func NewMetricsReporter(source SnapshotSource, interval time.Duration, log zerolog.Logger) *MetricsReporter {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &MetricsReporter{
		source:   source,
		interval: interval,
		log:      log.With().Str("component", "metrics_reporter").Logger(),
	}
}

func (r *MetricsReporter) Start(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.report()
			return
		case <-ticker.C:
			r.report()
		}
	}
}

func (r *MetricsReporter) report() {
	snap := r.source.Snapshot()

	guards := zerolog.Dict()
	var passed, failed int64
	for _, g := range snap.Guards {
		guards.Dict(g.Guard, zerolog.Dict().Int64("passed", g.Passed).Int64("failed", g.Failed))
		passed += g.Passed
		failed += g.Failed
	}

	r.log.Info().
		Dict("guards", guards).
		Int64("passed", passed).
		Int64("failed", failed).
		Int64("audit_events_dropped", snap.AuditEventsDropped).
		Msg("Question pipeline metrics")
}
