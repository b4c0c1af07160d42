package websocket

import "github.com/stemsi/exstem-cms/internal/model"

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionPing Action = "ping"
	// ActionFilter narrows the feed to one author; user_id 0 clears the filter.
	ActionFilter Action = "filter"
)

// RequestEnvelope is the only client message shape the feed accepts.
type RequestEnvelope struct {
	Action Action `json:"action"`
	UserID int64  `json:"user_id,omitempty"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventError    Event = "error"
	EventSecurity Event = "security_event"
	EventFiltered Event = "filtered"
	EventPong     Event = "pong"
)

// SecurityEventMessage carries one audited security event.
type SecurityEventMessage struct {
	Event Event               `json:"event"`
	Data  model.SecurityEvent `json:"data"`
}

type FilterResponse struct {
	Event  Event `json:"event"`
	UserID int64 `json:"user_id"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
