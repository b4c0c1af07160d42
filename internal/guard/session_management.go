package guard

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-cms/internal/model"
	"github.com/stemsi/exstem-cms/internal/response"
)

const SessionManagementGuardName = "session_management"

// MismatchAction decides what a fingerprint mismatch does to the request.
type MismatchAction string

const (
	// MismatchBlock rejects the request and emits a CRITICAL event.
	MismatchBlock MismatchAction = "block"
	// MismatchLogOnly emits a WARNING event and lets the request through.
	MismatchLogOnly MismatchAction = "log"
)

// ParseMismatchAction maps a config value to an action, defaulting to block.
func ParseMismatchAction(s string) MismatchAction {
	if MismatchAction(strings.ToLower(strings.TrimSpace(s))) == MismatchLogOnly {
		return MismatchLogOnly
	}
	return MismatchBlock
}

// HijackPolicy names the action taken for each kind of fingerprint mismatch.
type HijackPolicy struct {
	IPMismatch        MismatchAction
	UserAgentMismatch MismatchAction
}

// DefaultHijackPolicy blocks on either mismatch.
func DefaultHijackPolicy() HijackPolicy {
	return HijackPolicy{IPMismatch: MismatchBlock, UserAgentMismatch: MismatchBlock}
}

// SessionManagementValidator detects a session being reused from an origin
// other than the one that established it.
type SessionManagementValidator struct {
	policy HijackPolicy
	budget time.Duration
	audit  AuditSink
	log    zerolog.Logger
}

func NewSessionManagementValidator(policy HijackPolicy, budget time.Duration, audit AuditSink, log zerolog.Logger) *SessionManagementValidator {
	if policy.IPMismatch == "" {
		policy.IPMismatch = MismatchBlock
	}
	if policy.UserAgentMismatch == "" {
		policy.UserAgentMismatch = MismatchBlock
	}
	if budget <= 0 {
		budget = 25 * time.Millisecond
	}
	if audit == nil {
		audit = NopAuditSink{}
	}
	return &SessionManagementValidator{
		policy: policy,
		budget: budget,
		audit:  audit,
		log:    log.With().Str("component", "session_management_guard").Logger(),
	}
}

func (v *SessionManagementValidator) Name() string { return SessionManagementGuardName }

type fingerprintMismatch struct {
	violationType string
	action        MismatchAction
	details       map[string]string
}

// Validate compares the recorded fingerprint with the observed IP and
// user-agent. Both comparisons always run and each mismatch is reported.
func (v *SessionManagementValidator) Validate(ctx context.Context, req *Request) error {
	if err := requireCommand(req); err != nil {
		return err
	}
	sess := req.Session
	if sess == nil {
		return nil
	}

	start := time.Now()
	defer func() {
		if elapsed := time.Since(start); elapsed > v.budget {
			v.log.Warn().
				Dur("elapsed", elapsed).
				Dur("budget", v.budget).
				Str("session_id", sess.SessionID).
				Msg("Session fingerprint check exceeded its budget")
		}
	}()

	var mismatches []fingerprintMismatch
	if sess.ClientIP != req.ClientIP {
		mismatches = append(mismatches, fingerprintMismatch{
			violationType: "IP_MISMATCH",
			action:        v.policy.IPMismatch,
			details: map[string]string{
				"sessionIp": sess.ClientIP,
				"requestIp": req.ClientIP,
			},
		})
	}
	if sess.UserAgent != req.UserAgent {
		mismatches = append(mismatches, fingerprintMismatch{
			violationType: "USER_AGENT_MISMATCH",
			action:        v.policy.UserAgentMismatch,
			details: map[string]string{
				"sessionUserAgent": sess.UserAgent,
				"requestUserAgent": req.UserAgent,
			},
		})
	}

	var blocked []string
	for _, mm := range mismatches {
		severity := model.SeverityWarning
		if mm.action == MismatchBlock {
			severity = model.SeverityCritical
			blocked = append(blocked, mm.violationType)
		}

		details := mm.details
		details["violationType"] = mm.violationType
		details["action"] = string(mm.action)

		v.audit.EmitAsync(model.NewSecurityEvent(
			model.EventSessionHijackingAttempt, severity, req.Command.UserID, sess.SessionID, details,
		))
	}

	if len(blocked) == 0 {
		return nil
	}

	return fail(v.Name(), response.ErrSessionSecurityViolation,
		"session %s used from an unexpected origin: %s", sess.SessionID, strings.Join(blocked, ", "))
}
