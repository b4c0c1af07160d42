package model

import (
	"time"

	"github.com/google/uuid"
)

type SecurityEventType string

const (
	EventRateLimitExceeded          SecurityEventType = "rate-limit-exceeded"
	EventConcurrentSessionViolation SecurityEventType = "concurrent-session-violation"
	EventSessionHijackingAttempt    SecurityEventType = "session-hijacking-attempt"
	EventUnauthorizedAccessAttempt  SecurityEventType = "unauthorized-access-attempt"
	EventPathParameterManipulation  SecurityEventType = "path-parameter-manipulation"
	EventTokenPrivilegeEscalation   SecurityEventType = "token-privilege-escalation"
)

type Severity string

const (
	SeverityInfo     Severity = "INFO"
	SeverityWarning  Severity = "WARNING"
	SeverityCritical Severity = "CRITICAL"
)

// SecurityEvent records a security-relevant pipeline outcome. The pipeline
// never stores it; ownership passes to the audit sink on emission.
type SecurityEvent struct {
	ID         uuid.UUID         `json:"id"`
	Type       SecurityEventType `json:"type"`
	Severity   Severity          `json:"severity"`
	UserID     int64             `json:"user_id"`
	SessionID  string            `json:"session_id,omitempty"`
	Details    map[string]string `json:"details,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
}

// NewSecurityEvent stamps a fresh event with an id and the current time.
func NewSecurityEvent(typ SecurityEventType, severity Severity, userID int64, sessionID string, details map[string]string) SecurityEvent {
	return SecurityEvent{
		ID:         uuid.New(),
		Type:       typ,
		Severity:   severity,
		UserID:     userID,
		SessionID:  sessionID,
		Details:    details,
		OccurredAt: time.Now().UTC(),
	}
}
