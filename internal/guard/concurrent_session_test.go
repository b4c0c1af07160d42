package guard

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stemsi/exstem-cms/internal/model"
	"github.com/stemsi/exstem-cms/internal/response"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSessions(limit int, sink AuditSink, clock *fakeClock) *ConcurrentSessionValidator {
	v := NewConcurrentSessionValidator(ConcurrentSessionConfig{Limit: limit, TTL: 30 * time.Minute}, sink, testLog)
	v.now = clock.Now
	return v
}

func sessionRequest(userID int64, sessionID string) *Request {
	req := requestFor(userID)
	req.SessionID = sessionID
	return req
}

func TestConcurrentSessionRejectsFourthSession(t *testing.T) {
	sink := &recordingSink{}
	v := newTestSessions(3, sink, newFakeClock())
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		require.NoError(t, v.Validate(ctx, sessionRequest(42, fmt.Sprintf("s%d", i))))
	}
	assert.Equal(t, 3, v.ActiveSessions(42))

	err := v.Validate(ctx, sessionRequest(42, "s4"))
	ve, ok := AsValidationError(err)
	require.True(t, ok)
	assert.Equal(t, response.ErrSessionSecurityViolation, ve.Code)

	events := sink.Events()
	require.Len(t, events, 1)
	assert.Equal(t, model.EventConcurrentSessionViolation, events[0].Type)
	assert.Equal(t, model.SeverityCritical, events[0].Severity)
	assert.Equal(t, "CONCURRENT_SESSION_LIMIT", events[0].Details["violationType"])
	assert.Equal(t, "3", events[0].Details["activeSessions"])
}

func TestConcurrentSessionKnownSessionStaysAdmitted(t *testing.T) {
	v := newTestSessions(1, nil, newFakeClock())
	ctx := context.Background()

	require.NoError(t, v.Validate(ctx, sessionRequest(42, "only")))
	for i := 0; i < 5; i++ {
		assert.NoError(t, v.Validate(ctx, sessionRequest(42, "only")))
	}
	assert.Equal(t, 1, v.ActiveSessions(42))
}

func TestConcurrentSessionRemoveFreesSlot(t *testing.T) {
	v := newTestSessions(1, nil, newFakeClock())
	ctx := context.Background()

	require.NoError(t, v.Validate(ctx, sessionRequest(42, "a")))
	require.Error(t, v.Validate(ctx, sessionRequest(42, "b")))

	assert.True(t, v.Remove(42, "a"))
	assert.False(t, v.Remove(42, "a"))
	assert.NoError(t, v.Validate(ctx, sessionRequest(42, "b")))
}

func TestConcurrentSessionIdleSessionsExpire(t *testing.T) {
	clock := newFakeClock()
	v := newTestSessions(2, nil, clock)
	ctx := context.Background()

	require.NoError(t, v.Validate(ctx, sessionRequest(42, "a")))
	clock.Advance(20 * time.Minute)
	require.NoError(t, v.Validate(ctx, sessionRequest(42, "b")))

	// "a" is now idle past the TTL; "b" is not.
	clock.Advance(15 * time.Minute)
	assert.Equal(t, 1, v.ActiveSessions(42))
	assert.NoError(t, v.Validate(ctx, sessionRequest(42, "c")))

	assert.Equal(t, 2, v.Sweep(clock.Now().Add(time.Hour)))
	assert.Zero(t, v.ActiveSessions(42))
}

func TestConcurrentSessionIsPerUser(t *testing.T) {
	v := newTestSessions(1, nil, newFakeClock())
	ctx := context.Background()

	require.NoError(t, v.Validate(ctx, sessionRequest(1, "x")))
	assert.NoError(t, v.Validate(ctx, sessionRequest(2, "y")))
}

func TestConcurrentSessionSkipsSessionlessRequests(t *testing.T) {
	v := newTestSessions(1, nil, newFakeClock())
	ctx := context.Background()

	require.NoError(t, v.Validate(ctx, sessionRequest(42, "a")))
	assert.NoError(t, v.Validate(ctx, sessionRequest(42, "")))
	assert.Equal(t, 1, v.ActiveSessions(42))
}

func TestConcurrentSessionForeignTokenCannotFillAuthorSet(t *testing.T) {
	v := newTestSessions(3, nil, newFakeClock())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		req := sessionRequest(42, fmt.Sprintf("attacker-%d", i))
		req.Identity.UserID = 99
		require.NoError(t, v.Validate(ctx, req))
	}
	assert.Zero(t, v.ActiveSessions(42))
	assert.Equal(t, 3, v.ActiveSessions(99))

	for i := 1; i <= 3; i++ {
		assert.NoError(t, v.Validate(ctx, sessionRequest(42, fmt.Sprintf("own-%d", i))))
	}
}

func TestConcurrentSessionIgnoresAnonymousSessionIDs(t *testing.T) {
	v := newTestSessions(1, nil, newFakeClock())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		req := sessionRequest(42, fmt.Sprintf("forged-%d", i))
		req.Identity = Identity{}
		require.NoError(t, v.Validate(ctx, req))
	}
	assert.Zero(t, v.TrackedUsers())
	assert.NoError(t, v.Validate(ctx, sessionRequest(42, "own")))
}
