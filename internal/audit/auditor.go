// Package audit delivers security events off the request path. Emission never
// blocks: events go onto a bounded queue and a background worker hands them
// to a Store in batches.
package audit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-cms/internal/model"
)

const (
	DefaultQueueSize     = 1024
	DefaultBatchSize     = 50
	DefaultFlushInterval = time.Second
	storeTimeout         = 5 * time.Second
)

// Store persists or forwards a batch of events.
type Store interface {
	Store(ctx context.Context, events []model.SecurityEvent) error
}

// Config sizes the queue and the batches handed to the store.
type Config struct {
	QueueSize     int
	BatchSize     int
	FlushInterval time.Duration
}

// Auditor is a non-blocking guard.AuditSink. When the queue is full the new
// event is dropped and counted.
type Auditor struct {
	events        chan model.SecurityEvent
	store         Store
	batchSize     int
	flushInterval time.Duration
	onDrop        func()
	log           zerolog.Logger

	dropped atomic.Int64

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

// Option customises an Auditor.
type Option func(*Auditor)

// WithDropHook calls fn for every dropped event, e.g. to bump a prometheus counter.
func WithDropHook(fn func()) Option {
	return func(a *Auditor) { a.onDrop = fn }
}

// New starts an Auditor draining into store.
func New(cfg Config, store Store, log zerolog.Logger, opts ...Option) *Auditor {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = DefaultFlushInterval
	}

	a := &Auditor{
		events:        make(chan model.SecurityEvent, cfg.QueueSize),
		store:         store,
		batchSize:     cfg.BatchSize,
		flushInterval: cfg.FlushInterval,
		onDrop:        func() {},
		log:           log.With().Str("component", "auditor").Logger(),
		done:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(a)
	}

	go a.run()
	return a
}

// EmitAsync queues e without blocking.
func (a *Auditor) EmitAsync(e model.SecurityEvent) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.closed {
		a.drop(e, "auditor closed")
		return
	}

	select {
	case a.events <- e:
	default:
		a.drop(e, "audit queue full")
	}
}

func (a *Auditor) drop(e model.SecurityEvent, reason string) {
	n := a.dropped.Add(1)
	a.onDrop()
	a.log.Warn().
		Str("event_type", string(e.Type)).
		Int64("user_id", e.UserID).
		Int64("dropped_total", n).
		Msg("Security event dropped: " + reason)
}

// Dropped returns how many events were discarded since start.
func (a *Auditor) Dropped() int64 {
	return a.dropped.Load()
}

// Pending returns the number of queued events not yet handed to the store.
func (a *Auditor) Pending() int {
	return len(a.events)
}

// Close stops accepting events and waits for the queue to drain, or for ctx.
func (a *Auditor) Close(ctx context.Context) error {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.events)
	}
	a.mu.Unlock()

	select {
	case <-a.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *Auditor) run() {
	defer close(a.done)

	ticker := time.NewTicker(a.flushInterval)
	defer ticker.Stop()

	batch := make([]model.SecurityEvent, 0, a.batchSize)
	for {
		select {
		case e, ok := <-a.events:
			if !ok {
				a.flush(batch)
				a.log.Info().Msg("Auditor drained")
				return
			}
			batch = append(batch, e)
			if len(batch) >= a.batchSize {
				a.flush(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				a.flush(batch)
				batch = batch[:0]
			}
		}
	}
}

func (a *Auditor) flush(batch []model.SecurityEvent) {
	if len(batch) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	if err := a.store.Store(ctx, batch); err != nil {
		a.log.Error().Err(err).Int("count", len(batch)).Msg("Failed to store security events")
	}
}
