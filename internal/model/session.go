package model

import "time"

// SessionContext is the fingerprint recorded when a session was established.
// It is compared with every later request to detect reuse from another origin.
type SessionContext struct {
	SessionID string    `json:"session_id"`
	UserID    int64     `json:"user_id"`
	ClientIP  string    `json:"client_ip"`
	UserAgent string    `json:"user_agent"`
	CreatedAt time.Time `json:"created_at"`
}
