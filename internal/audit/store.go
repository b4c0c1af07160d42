package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-cms/internal/config"
	"github.com/stemsi/exstem-cms/internal/model"
)

// RedisStore pushes events onto the persistence queue consumed by the audit
// worker and publishes them on the live security feed.
type RedisStore struct {
	rdb     *redis.Client
	queue   string
	channel string
}

func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{
		rdb:     rdb,
		queue:   config.WorkerKey.PersistSecurityEventsQueue,
		channel: config.CacheKey.SecurityFeedChannel(),
	}
}

func (s *RedisStore) Store(ctx context.Context, events []model.SecurityEvent) error {
	pipe := s.rdb.Pipeline()
	for _, e := range events {
		data, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("encode security event %s: %w", e.ID, err)
		}
		pipe.RPush(ctx, s.queue, data)
		pipe.Publish(ctx, s.channel, data)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("push %d security events: %w", len(events), err)
	}
	return nil
}

// LogStore writes each event to the log, at a level matching its severity.
type LogStore struct {
	log zerolog.Logger
}

func NewLogStore(log zerolog.Logger) *LogStore {
	return &LogStore{log: log.With().Str("component", "security_audit").Logger()}
}

func (s *LogStore) Store(_ context.Context, events []model.SecurityEvent) error {
	for _, e := range events {
		var evt *zerolog.Event
		switch e.Severity {
		case model.SeverityCritical:
			evt = s.log.Error()
		case model.SeverityWarning:
			evt = s.log.Warn()
		default:
			evt = s.log.Info()
		}

		details := zerolog.Dict()
		for k, v := range e.Details {
			details = details.Str(k, v)
		}

		evt.Str("event_id", e.ID.String()).
			Str("event_type", string(e.Type)).
			Str("severity", string(e.Severity)).
			Int64("user_id", e.UserID).
			Str("session_id", e.SessionID).
			Time("occurred_at", e.OccurredAt).
			Dict("details", details).
			Msg("Security event")
	}
	return nil
}

// MultiStore fans a batch out to every store and joins their errors.
type MultiStore []Store

func (m MultiStore) Store(ctx context.Context, events []model.SecurityEvent) error {
	var errs []error
	for _, s := range m {
		if err := s.Store(ctx, events); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
