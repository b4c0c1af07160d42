package guard

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrRetriesExhausted wraps the last transient error once every attempt failed.
var ErrRetriesExhausted = errors.New("retries exhausted")

// jitterFactor is the share of each delay that is randomized either way.
const jitterFactor = 0.25

// Retrier re-invokes op on transient failure. Implementations decide which
// errors are transient; definitive answers must be returned untouched.
type Retrier interface {
	Do(ctx context.Context, op func(ctx context.Context) error) error
}

// RetryConfig defines retry behavior for repository lookups.
type RetryConfig struct {
	// MaxAttempts counts the first call; 1 disables retries.
	MaxAttempts int
	// InitialBackoff is the delay before the second attempt.
	InitialBackoff time.Duration
	// MaxBackoff caps the delay between attempts before jitter is applied.
	MaxBackoff time.Duration
	// BackoffMultiplier is the factor by which backoff increases.
	BackoffMultiplier float64
	// Jitter moves each delay by up to 25% either way to avoid synchronized retries.
	Jitter bool
}

// DefaultRetryConfig returns sensible defaults for repository retries.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    50 * time.Millisecond,
		MaxBackoff:        time.Second,
		BackoffMultiplier: 2.0,
		Jitter:            true,
	}
}

// BackoffRetrier retries transient errors with exponential backoff.
type BackoffRetrier struct {
	config      RetryConfig
	isTransient func(error) bool
	// notify, when set, observes every failed attempt that will be retried.
	notify backoff.Notify
}

// NewBackoffRetrier creates a retrier, filling zero config fields with defaults.
func NewBackoffRetrier(config RetryConfig) *BackoffRetrier {
	def := DefaultRetryConfig()
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = def.MaxAttempts
	}
	if config.InitialBackoff <= 0 {
		config.InitialBackoff = def.InitialBackoff
	}
	if config.MaxBackoff <= 0 {
		config.MaxBackoff = def.MaxBackoff
	}
	if config.BackoffMultiplier <= 0 {
		config.BackoffMultiplier = def.BackoffMultiplier
	}
	return &BackoffRetrier{
		config:      config,
		isTransient: IsTransient,
	}
}

// Config returns a copy of the retry configuration.
func (r *BackoffRetrier) Config() RetryConfig {
	return r.config
}

// Do runs op until it succeeds, returns a non-transient error, the attempts run
// out, or ctx ends.
func (r *BackoffRetrier) Do(ctx context.Context, op func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	attempts := 0
	var lastErr error
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempts++
		lastErr = op(ctx)
		if lastErr != nil && !r.isTransient(lastErr) {
			return struct{}{}, backoff.Permanent(lastErr)
		}
		return struct{}{}, lastErr
	}, r.options()...)
	if err == nil {
		return nil
	}

	// Definitive answers go back exactly as the repository produced them.
	if lastErr != nil && !r.isTransient(lastErr) {
		return lastErr
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%w: %v", ctxErr, lastErr)
	}
	return fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, attempts, lastErr)
}

func (r *BackoffRetrier) options() []backoff.RetryOption {
	opts := []backoff.RetryOption{
		backoff.WithBackOff(r.newBackOff()),
		backoff.WithMaxTries(uint(r.config.MaxAttempts)),
		// Attempts and ctx bound the loop; no wall-clock budget on top.
		backoff.WithMaxElapsedTime(0),
	}
	if r.notify != nil {
		opts = append(opts, backoff.WithNotify(r.notify))
	}
	return opts
}

// newBackOff builds a fresh schedule per call; ExponentialBackOff keeps state
// and is not safe for concurrent use.
func (r *BackoffRetrier) newBackOff() *backoff.ExponentialBackOff {
	b := &backoff.ExponentialBackOff{
		InitialInterval: r.config.InitialBackoff,
		Multiplier:      r.config.BackoffMultiplier,
		MaxInterval:     r.config.MaxBackoff,
	}
	if r.config.Jitter {
		b.RandomizationFactor = jitterFactor
	}
	return b
}

// NoRetry calls op exactly once.
type NoRetry struct{}

func (NoRetry) Do(ctx context.Context, op func(ctx context.Context) error) error {
	return op(ctx)
}

// transientError marks an error as safe to retry.
type transientError struct{ err error }

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

// Transient marks err as retryable. Repositories use it for failures the
// classifier cannot recognise on its own.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

// IsTransient reports whether err is worth retrying: connection resets,
// refused connections, timeouts, and pgx errors that never reached the server.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var te *transientError
	if errors.As(err, &te) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.EPIPE) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	return pgconn.SafeToRetry(err)
}

// retryValue runs a value-returning lookup through r.
func retryValue[T any](ctx context.Context, r Retrier, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := r.Do(ctx, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}
