package guard

import (
	"context"
	"testing"

	"github.com/stemsi/exstem-cms/internal/model"
	"github.com/stemsi/exstem-cms/internal/response"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionManagement(t *testing.T) {
	tests := []struct {
		name       string
		policy     HijackPolicy
		mutate     func(r *Request)
		wantCode   response.ErrCode
		wantEvents []string
		wantSev    model.Severity
	}{
		{
			name:   "matching fingerprint passes",
			policy: DefaultHijackPolicy(),
			mutate: func(r *Request) {},
		},
		{
			name:   "no recorded session passes",
			policy: DefaultHijackPolicy(),
			mutate: func(r *Request) {
				r.Session = nil
				r.ClientIP = "10.0.0.50"
			},
		},
		{
			name:       "ip mismatch blocks",
			policy:     DefaultHijackPolicy(),
			mutate:     func(r *Request) { r.ClientIP = "10.0.0.50" },
			wantCode:   response.ErrSessionSecurityViolation,
			wantEvents: []string{"IP_MISMATCH"},
			wantSev:    model.SeverityCritical,
		},
		{
			name:       "user agent mismatch blocks",
			policy:     DefaultHijackPolicy(),
			mutate:     func(r *Request) { r.UserAgent = "curl/7.64.1" },
			wantCode:   response.ErrSessionSecurityViolation,
			wantEvents: []string{"USER_AGENT_MISMATCH"},
			wantSev:    model.SeverityCritical,
		},
		{
			name:   "both mismatches are reported",
			policy: DefaultHijackPolicy(),
			mutate: func(r *Request) {
				r.ClientIP = "10.0.0.50"
				r.UserAgent = "curl/7.64.1"
			},
			wantCode:   response.ErrSessionSecurityViolation,
			wantEvents: []string{"IP_MISMATCH", "USER_AGENT_MISMATCH"},
			wantSev:    model.SeverityCritical,
		},
		{
			name:       "log-only policy lets the request through",
			policy:     HijackPolicy{IPMismatch: MismatchLogOnly, UserAgentMismatch: MismatchLogOnly},
			mutate:     func(r *Request) { r.ClientIP = "10.0.0.50" },
			wantEvents: []string{"IP_MISMATCH"},
			wantSev:    model.SeverityWarning,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := &recordingSink{}
			v := NewSessionManagementValidator(tt.policy, 0, sink, testLog)
			req := validRequest()
			tt.mutate(req)

			err := v.Validate(context.Background(), req)
			if tt.wantCode == "" {
				assert.NoError(t, err)
			} else {
				ve, ok := AsValidationError(err)
				require.True(t, ok, "want *ValidationError, got %v", err)
				assert.Equal(t, tt.wantCode, ve.Code)
				assert.Equal(t, SessionManagementGuardName, ve.Guard)
			}

			events := sink.Events()
			require.Len(t, events, len(tt.wantEvents))
			for i, e := range events {
				assert.Equal(t, model.EventSessionHijackingAttempt, e.Type)
				assert.Equal(t, tt.wantSev, e.Severity)
				assert.Equal(t, tt.wantEvents[i], e.Details["violationType"])
				assert.Equal(t, "sess-1", e.SessionID)
			}
		})
	}
}

func TestSessionManagementMixedPolicy(t *testing.T) {
	sink := &recordingSink{}
	v := NewSessionManagementValidator(
		HijackPolicy{IPMismatch: MismatchLogOnly, UserAgentMismatch: MismatchBlock}, 0, sink, testLog)

	req := validRequest()
	req.ClientIP = "10.0.0.50"
	require.NoError(t, v.Validate(context.Background(), req))

	req.UserAgent = "curl/7.64.1"
	err := v.Validate(context.Background(), req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "USER_AGENT_MISMATCH")
	assert.NotContains(t, err.Error(), "IP_MISMATCH")

	events := sink.Events()
	require.Len(t, events, 3)
	assert.Equal(t, "10.0.0.50", events[0].Details["requestIp"])
	assert.Equal(t, "192.168.1.100", events[0].Details["sessionIp"])
	assert.Equal(t, "curl/7.64.1", events[2].Details["requestUserAgent"])
}

func TestParseMismatchAction(t *testing.T) {
	assert.Equal(t, MismatchLogOnly, ParseMismatchAction(" LOG "))
	assert.Equal(t, MismatchBlock, ParseMismatchAction("block"))
	assert.Equal(t, MismatchBlock, ParseMismatchAction(""))
	assert.Equal(t, MismatchBlock, ParseMismatchAction("whatever"))
}
