package guard

import (
	"context"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-cms/internal/model"
	"github.com/stemsi/exstem-cms/internal/response"
)

const ConcurrentSessionGuardName = "concurrent_session"

// ConcurrentSessionConfig caps simultaneous sessions per user.
type ConcurrentSessionConfig struct {
	Limit int
	// TTL is how long a session may stay idle before it stops counting.
	TTL    time.Duration
	Shards int
}

// ConcurrentSessionValidator tracks the active session ids of every user and
// rejects a new session once the user is at the limit.
type ConcurrentSessionValidator struct {
	sessions *shardedMap[int64, map[string]*activeSession]
	limit    int
	ttl      time.Duration
	audit    AuditSink
	now      func() time.Time
	log      zerolog.Logger
}

type activeSession struct {
	firstSeen time.Time
	lastSeen  time.Time
}

func NewConcurrentSessionValidator(cfg ConcurrentSessionConfig, audit AuditSink, log zerolog.Logger) *ConcurrentSessionValidator {
	if cfg.Limit <= 0 {
		cfg.Limit = 3
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 30 * time.Minute
	}
	if audit == nil {
		audit = NopAuditSink{}
	}
	return &ConcurrentSessionValidator{
		sessions: newShardedMap[int64, map[string]*activeSession](cfg.Shards, hashUserID),
		limit:    cfg.Limit,
		ttl:      cfg.TTL,
		audit:    audit,
		now:      time.Now,
		log:      log.With().Str("component", "concurrent_session_guard").Logger(),
	}
}

func (v *ConcurrentSessionValidator) Name() string { return ConcurrentSessionGuardName }

// Validate registers the request's session id under the token subject. Known
// sessions are refreshed; a new one is admitted only while the subject is below
// the limit. Callers without a token or session id are left to later guards.
func (v *ConcurrentSessionValidator) Validate(ctx context.Context, req *Request) error {
	if err := requireCommand(req); err != nil {
		return err
	}
	if req.SessionID == "" || !req.Identity.Present {
		return nil
	}

	userID := req.Identity.UserID
	now := v.now()
	admitted := false
	active := 0

	v.sessions.with(userID, func(m map[int64]map[string]*activeSession) {
		set, ok := m[userID]
		if !ok {
			set = make(map[string]*activeSession)
			m[userID] = set
		}

		for id, s := range set {
			if now.Sub(s.lastSeen) >= v.ttl {
				delete(set, id)
			}
		}

		if s, known := set[req.SessionID]; known {
			s.lastSeen = now
			admitted = true
		} else if len(set) < v.limit {
			set[req.SessionID] = &activeSession{firstSeen: now, lastSeen: now}
			admitted = true
		}
		active = len(set)

		if len(set) == 0 {
			delete(m, userID)
		}
	})

	if admitted {
		return nil
	}

	v.audit.EmitAsync(model.NewSecurityEvent(
		model.EventConcurrentSessionViolation, model.SeverityCritical, userID, req.SessionID,
		map[string]string{
			"violationType":  "CONCURRENT_SESSION_LIMIT",
			"activeSessions": strconv.Itoa(active),
			"limit":          strconv.Itoa(v.limit),
			"clientIp":       req.ClientIP,
		},
	))

	return fail(v.Name(), response.ErrSessionSecurityViolation,
		"user already has %d active sessions (limit %d)", active, v.limit)
}

// Remove forgets a session, e.g. on logout. It reports whether it was tracked.
func (v *ConcurrentSessionValidator) Remove(userID int64, sessionID string) bool {
	removed := false
	v.sessions.with(userID, func(m map[int64]map[string]*activeSession) {
		set, ok := m[userID]
		if !ok {
			return
		}
		if _, ok := set[sessionID]; ok {
			delete(set, sessionID)
			removed = true
		}
		if len(set) == 0 {
			delete(m, userID)
		}
	})
	return removed
}

// ActiveSessions returns the number of live sessions tracked for userID.
func (v *ConcurrentSessionValidator) ActiveSessions(userID int64) int {
	n := 0
	now := v.now()
	v.sessions.with(userID, func(m map[int64]map[string]*activeSession) {
		for _, s := range m[userID] {
			if now.Sub(s.lastSeen) < v.ttl {
				n++
			}
		}
	})
	return n
}

// TrackedUsers returns how many users hold at least one session entry.
func (v *ConcurrentSessionValidator) TrackedUsers() int {
	return v.sessions.size()
}

// Sweep expires idle sessions and drops users left with none.
// Returns the number of sessions removed.
func (v *ConcurrentSessionValidator) Sweep(now time.Time) int {
	removed := 0
	v.sessions.sweep(func(_ int64, set map[string]*activeSession) bool {
		for id, s := range set {
			if now.Sub(s.lastSeen) >= v.ttl {
				delete(set, id)
				removed++
			}
		}
		return len(set) == 0
	})
	return removed
}

// Run sweeps periodically until ctx is cancelled.
func (v *ConcurrentSessionValidator) Run(ctx context.Context, interval time.Duration) {
	runSweeper(ctx, interval, func(now time.Time) {
		if n := v.Sweep(now); n > 0 {
			v.log.Debug().Int("expired", n).Msg("Swept idle sessions")
		}
	})
}
