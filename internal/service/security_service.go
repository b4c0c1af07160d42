package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-cms/internal/metrics"
	"github.com/stemsi/exstem-cms/internal/model"
	"github.com/stemsi/exstem-cms/internal/repository"
	"golang.org/x/sync/errgroup"
)

// SecurityEventReader reads persisted security events.
type SecurityEventReader interface {
	ListRecent(ctx context.Context, userID *int64, limit int) ([]model.SecurityEvent, error)
	CountByType(ctx context.Context, since time.Time) (map[model.SecurityEventType]int64, error)
}

// SessionIndex lists the fingerprints recorded for an author.
type SessionIndex interface {
	ListByUser(ctx context.Context, userID int64) ([]string, error)
	Get(ctx context.Context, sessionID string) (*model.SessionContext, error)
}

// SecurityOverview is the admin view of pipeline health and recent events.
// ActiveSessions is only filled when the overview is scoped to one author.
type SecurityOverview struct {
	Pipeline       metrics.Snapshot                  `json:"pipeline"`
	EventCounts    map[model.SecurityEventType]int64 `json:"event_counts_24h"`
	RecentEvents   []model.SecurityEvent             `json:"recent_events"`
	ActiveSessions []model.SessionContext            `json:"active_sessions,omitempty"`
}

// SecurityService assembles the security dashboard.
type SecurityService struct {
	events   SecurityEventReader
	sessions SessionIndex
	metrics  *metrics.PipelineMetrics
	log      zerolog.Logger
}

// NewSecurityService creates a new SecurityService. sessions may be nil, in
// which case per-author overviews carry no session list.
func NewSecurityService(events SecurityEventReader, sessions SessionIndex, m *metrics.PipelineMetrics, log zerolog.Logger) *SecurityService {
	return &SecurityService{
		events:   events,
		sessions: sessions,
		metrics:  m,
		log:      log.With().Str("component", "security_service").Logger(),
	}
}

// Overview fetches event counts, recent events and, for a single author,
// their live sessions concurrently. Recent events are required; the rest is
// best-effort.
func (s *SecurityService) Overview(ctx context.Context, userID *int64, limit int) (*SecurityOverview, error) {
	if limit < 1 || limit > 200 {
		limit = 50
	}

	overview := &SecurityOverview{
		Pipeline:    s.metrics.Snapshot(),
		EventCounts: make(map[model.SecurityEventType]int64),
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		events, err := s.events.ListRecent(gctx, userID, limit)
		if err != nil {
			return err
		}
		overview.RecentEvents = events
		return nil
	})

	g.Go(func() error {
		counts, err := s.events.CountByType(gctx, time.Now().Add(-24*time.Hour))
		if err != nil {
			s.log.Warn().Err(err).Msg("Security event counts unavailable")
			return nil
		}
		overview.EventCounts = counts
		return nil
	})

	if userID != nil && s.sessions != nil {
		g.Go(func() error {
			active, err := s.activeSessions(gctx, *userID)
			if err != nil {
				s.log.Warn().Err(err).Int64("user_id", *userID).Msg("Active sessions unavailable")
				return nil
			}
			overview.ActiveSessions = active
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if overview.RecentEvents == nil {
		overview.RecentEvents = []model.SecurityEvent{}
	}
	return overview, nil
}

// activeSessions resolves the author's session index to fingerprints. The
// index can outlive individual fingerprints, so ids whose fingerprint already
// expired are skipped.
func (s *SecurityService) activeSessions(ctx context.Context, userID int64) ([]model.SessionContext, error) {
	ids, err := s.sessions.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	active := make([]model.SessionContext, 0, len(ids))
	for _, id := range ids {
		sess, err := s.sessions.Get(ctx, id)
		if errors.Is(err, repository.ErrSessionNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		active = append(active, *sess)
	}
	return active, nil
}
