// Package guard implements the fail-fast validation pipeline every question
// upsert passes before it is persisted.
package guard

import (
	"context"
	"errors"
	"fmt"

	"github.com/stemsi/exstem-cms/internal/model"
	"github.com/stemsi/exstem-cms/internal/response"
)

// ErrNilCommand is a programming-contract violation: the orchestration layer
// handed the pipeline a request without a command.
var ErrNilCommand = errors.New("guard: request has no command")

// Guard is one stage of the pipeline. Validate returns nil to let the request
// continue to the next guard, a *ValidationError for an expected denial, or
// ErrNilCommand.
type Guard interface {
	Name() string
	Validate(ctx context.Context, req *Request) error
}

// AuditSink receives security events. Implementations must not block.
type AuditSink interface {
	EmitAsync(event model.SecurityEvent)
}

// MetricsRecorder counts per-guard outcomes.
type MetricsRecorder interface {
	RecordOutcome(guardName string, passed bool)
}

// Identity is the authenticated subject extracted from the caller's token.
type Identity struct {
	Present bool
	UserID  int64
}

// Request is what the chain inspects: the command plus the transport facts
// observed for the call that produced it.
type Request struct {
	Command *model.UpsertQuestionCommand

	// Session is the fingerprint recorded at login; nil when none is tracked.
	Session *model.SessionContext
	// SessionID is the token's session id (jti); empty for sessionless callers.
	SessionID string

	ClientIP  string
	UserAgent string

	Identity Identity
	// PathUserID is the user id taken from the route; 0 when the route has none.
	PathUserID int64
}

// ValidationError is the typed failure a guard returns for expected conditions.
type ValidationError struct {
	Guard   string
	Code    response.ErrCode
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Guard, e.Code, e.Message)
}

// AsValidationError unwraps err into a *ValidationError if it is one.
func AsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

func fail(guardName string, code response.ErrCode, format string, args ...any) *ValidationError {
	return &ValidationError{
		Guard:   guardName,
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

func requireCommand(req *Request) error {
	if req == nil || req.Command == nil {
		return ErrNilCommand
	}
	return nil
}

// NopAuditSink discards events.
type NopAuditSink struct{}

func (NopAuditSink) EmitAsync(model.SecurityEvent) {}

// NopRecorder discards outcomes.
type NopRecorder struct{}

func (NopRecorder) RecordOutcome(string, bool) {}
