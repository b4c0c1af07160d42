package guard

import (
	"context"
	"hash/maphash"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-cms/internal/model"
	"github.com/stemsi/exstem-cms/internal/response"
	"golang.org/x/time/rate"
)

const RateLimitGuardName = "rate_limit"

// RateLimitConfig bounds how many upserts one user may issue per window.
type RateLimitConfig struct {
	// Burst is the number of requests allowed back to back.
	Burst int
	// Window is the time it takes to refill a full burst.
	Window time.Duration
	Shards int
}

// RateLimitValidator implements a token bucket rate limiter per caller.
// Authenticated callers spend the budget of their token subject; callers
// without a token share one budget per client address.
type RateLimitValidator struct {
	buckets *shardedMap[rateKey, *bucket]
	burst   int
	refill  rate.Limit
	window  time.Duration
	audit   AuditSink
	now     func() time.Time
	log     zerolog.Logger
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// rateKey names whose budget a request spends. Exactly one field is set.
type rateKey struct {
	userID   int64
	clientIP string
}

var clientIPSeed = maphash.MakeSeed()

func rateKeyFor(req *Request) rateKey {
	if req.Identity.Present {
		return rateKey{userID: req.Identity.UserID}
	}
	return rateKey{clientIP: req.ClientIP}
}

func hashRateKey(k rateKey) uint64 {
	if k.clientIP != "" {
		return maphash.String(clientIPSeed, k.clientIP)
	}
	return hashUserID(k.userID)
}

// NewRateLimitValidator creates a RateLimitValidator (e.g., 30 requests per minute).
func NewRateLimitValidator(cfg RateLimitConfig, audit AuditSink, log zerolog.Logger) *RateLimitValidator {
	if cfg.Burst <= 0 {
		cfg.Burst = 30
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	if audit == nil {
		audit = NopAuditSink{}
	}
	return &RateLimitValidator{
		buckets: newShardedMap[rateKey, *bucket](cfg.Shards, hashRateKey),
		burst:   cfg.Burst,
		refill:  rate.Limit(float64(cfg.Burst) / cfg.Window.Seconds()),
		window:  cfg.Window,
		audit:   audit,
		now:     time.Now,
		log:     log.With().Str("component", "rate_limit_guard").Logger(),
	}
}

func (v *RateLimitValidator) Name() string { return RateLimitGuardName }

// Validate takes one token from the caller's bucket. The user named by the
// command is never charged for someone else's requests.
func (v *RateLimitValidator) Validate(ctx context.Context, req *Request) error {
	if err := requireCommand(req); err != nil {
		return err
	}

	key := rateKeyFor(req)
	if v.take(key) {
		return nil
	}

	v.audit.EmitAsync(model.NewSecurityEvent(
		model.EventRateLimitExceeded, model.SeverityWarning, key.userID, req.SessionID,
		map[string]string{
			"limit":        strconv.Itoa(v.burst),
			"window":       v.window.String(),
			"clientIp":     req.ClientIP,
			"targetUserId": strconv.FormatInt(req.Command.UserID, 10),
		},
	))

	return fail(v.Name(), response.ErrRateLimitExceeded,
		"more than %d question updates within %s", v.burst, v.window)
}

func (v *RateLimitValidator) take(key rateKey) bool {
	allowed := false
	now := v.now()

	v.buckets.with(key, func(m map[rateKey]*bucket) {
		b, ok := m[key]
		if !ok {
			b = &bucket{limiter: rate.NewLimiter(v.refill, v.burst)}
			m[key] = b
		}
		b.lastSeen = now
		allowed = b.limiter.AllowN(now, 1)
	})

	return allowed
}

// Sweep drops buckets untouched for a whole window; they would be full again
// on the next request anyway. Returns the number of buckets removed.
func (v *RateLimitValidator) Sweep(now time.Time) int {
	return v.buckets.sweep(func(_ rateKey, b *bucket) bool {
		return now.Sub(b.lastSeen) >= v.window
	})
}

// Run sweeps periodically until ctx is cancelled.
func (v *RateLimitValidator) Run(ctx context.Context, interval time.Duration) {
	runSweeper(ctx, interval, func(now time.Time) {
		if n := v.Sweep(now); n > 0 {
			v.log.Debug().Int("evicted", n).Msg("Swept idle rate limit buckets")
		}
	})
}

// Tracked returns how many callers currently hold a bucket.
func (v *RateLimitValidator) Tracked() int {
	return v.buckets.size()
}

func runSweeper(ctx context.Context, interval time.Duration, sweep func(now time.Time)) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			sweep(now)
		}
	}
}
