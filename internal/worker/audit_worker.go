package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-cms/internal/config"
	"github.com/stemsi/exstem-cms/internal/model"
)

const (
	BatchSize    = 50
	BatchTimeout = 2 * time.Second
	PollTimeout  = 1 * time.Second // Must be >= 1s to satisfy Redis
)

// EventWriter persists security events.
type EventWriter interface {
	InsertBatch(ctx context.Context, events []model.SecurityEvent) (int64, error)
	Insert(ctx context.Context, e model.SecurityEvent) error
}

// eventQueue is the list the audit sink pushes onto. Pop returns redis.Nil
// when nothing arrived within timeout.
type eventQueue interface {
	Pop(ctx context.Context, timeout time.Duration) (string, error)
	Push(ctx context.Context, payloads [][]byte) error
}

type redisQueue struct {
	rdb *redis.Client
	key string
}

func (q *redisQueue) Pop(ctx context.Context, timeout time.Duration) (string, error) {
	result, err := q.rdb.BLPop(ctx, timeout, q.key).Result()
	if err != nil {
		return "", err
	}
	if len(result) < 2 {
		return "", redis.Nil
	}
	return result[1], nil
}

func (q *redisQueue) Push(ctx context.Context, payloads [][]byte) error {
	pipe := q.rdb.Pipeline()
	for _, p := range payloads {
		pipe.RPush(ctx, q.key, p)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// AuditWorker moves security events from the Redis audit queue into Postgres.
type AuditWorker struct {
	store EventWriter
	queue eventQueue
	log   zerolog.Logger

	// errorBackoff and requeueBackoff slow the loop down while a backend is failing.
	errorBackoff   time.Duration
	requeueBackoff time.Duration
}

func NewAuditWorker(store EventWriter, rdb *redis.Client, log zerolog.Logger) *AuditWorker {
	return &AuditWorker{
		store:          store,
		queue:          &redisQueue{rdb: rdb, key: config.WorkerKey.PersistSecurityEventsQueue},
		log:            log.With().Str("component", "audit_worker").Logger(),
		errorBackoff:   3 * time.Second,
		requeueBackoff: 2 * time.Second,
	}
}

func (w *AuditWorker) Start(ctx context.Context) {
	w.log.Info().Msg("AuditWorker started")

	buffer := make([]model.SecurityEvent, 0, BatchSize)
	lastFlushTime := time.Now()

	for {
		if len(buffer) > 0 {
			if len(buffer) >= BatchSize || time.Since(lastFlushTime) >= BatchTimeout {
				w.flushSafe(ctx, buffer)
				buffer = buffer[:0]
				lastFlushTime = time.Now()
			}
		}

		select {
		case <-ctx.Done():
			w.shutdown(buffer)
			return
		default:
		}

		raw, err := w.queue.Pop(ctx, PollTimeout)
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if ctx.Err() != nil {
				w.shutdown(buffer)
				return
			}
			w.log.Error().Err(err).Dur("backoff", w.errorBackoff).Msg("Redis connection error")
			sleepCtx(ctx, w.errorBackoff)
			continue
		}

		var e model.SecurityEvent
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			// Malformed entries can never succeed.
			w.log.Error().Err(err).Str("data", raw).Msg("Discarding malformed security event")
			continue
		}

		buffer = append(buffer, e)
	}
}

// flushSafe attempts a bulk copy, then row-by-row inserts, then requeues.
func (w *AuditWorker) flushSafe(ctx context.Context, batch []model.SecurityEvent) {
	n, err := w.store.InsertBatch(ctx, batch)
	if err == nil {
		w.log.Debug().Int64("count", n).Msg("Security events persisted")
		return
	}
	w.log.Warn().Err(err).Int("count", len(batch)).Msg("Bulk insert failed, attempting row-by-row recovery")
	w.fallbackInsert(ctx, batch)
}

func (w *AuditWorker) fallbackInsert(ctx context.Context, batch []model.SecurityEvent) {
	requeueList := make([]model.SecurityEvent, 0)

	for _, e := range batch {
		err := w.store.Insert(ctx, e)
		if err == nil {
			continue
		}

		// The server rejected the row itself; retrying would loop forever.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			w.log.Error().Err(err).
				Str("event_id", e.ID.String()).
				Str("sqlstate", pgErr.Code).
				Msg("Dropping security event rejected by database")
			continue
		}

		w.log.Error().Err(err).Str("event_id", e.ID.String()).Msg("Insert failed, requeueing")
		requeueList = append(requeueList, e)
	}

	if len(requeueList) > 0 {
		w.requeue(ctx, requeueList)
	}
}

func (w *AuditWorker) requeue(ctx context.Context, items []model.SecurityEvent) {
	payloads := make([][]byte, 0, len(items))
	for _, e := range items {
		data, err := json.Marshal(e)
		if err != nil {
			continue
		}
		payloads = append(payloads, data)
	}

	// Requeue must survive shutdown cancellation.
	pushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if err := w.queue.Push(pushCtx, payloads); err != nil {
		w.log.Error().Err(err).Int("count", len(items)).Msg("CRITICAL: Failed to requeue security events. Data loss occurred.")
		return
	}
	w.log.Info().Int("count", len(items)).Msg("Requeued failed security events")
	sleepCtx(ctx, w.requeueBackoff)
}

func (w *AuditWorker) shutdown(buffer []model.SecurityEvent) {
	w.log.Info().Msg("AuditWorker stopping, flushing remaining buffer...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if len(buffer) > 0 {
		w.flushSafe(shutdownCtx, buffer)
	}
}

// sleepCtx sleeps for d or until ctx ends.
func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
