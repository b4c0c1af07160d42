package guard

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// Chain runs guards in order and stops at the first failure. Guards after a
// failing one never execute, so their repository calls and audit events never
// happen either.
//
// Build the chain fully before serving traffic; Then is not safe to call
// concurrently with Validate.
type Chain struct {
	guards   []Guard
	recorder MetricsRecorder
	log      zerolog.Logger
}

// NewChain creates a chain over guards in the given order.
func NewChain(recorder MetricsRecorder, log zerolog.Logger, guards ...Guard) *Chain {
	if recorder == nil {
		recorder = NopRecorder{}
	}
	c := &Chain{
		recorder: recorder,
		log:      log.With().Str("component", "guard_chain").Logger(),
	}
	for _, g := range guards {
		c.Then(g)
	}
	return c
}

// Then appends g and returns the chain for further chaining.
func (c *Chain) Then(g Guard) *Chain {
	if g != nil {
		c.guards = append(c.guards, g)
	}
	return c
}

// Names lists guard names in execution order.
func (c *Chain) Names() []string {
	names := make([]string, len(c.guards))
	for i, g := range c.guards {
		names[i] = g.Name()
	}
	return names
}

// Validate passes req through every guard. It returns nil when all guards pass,
// the first guard's *ValidationError otherwise, ErrNilCommand for a request
// without a command, or the context error if ctx ends between guards.
func (c *Chain) Validate(ctx context.Context, req *Request) error {
	if err := requireCommand(req); err != nil {
		return err
	}

	for _, g := range c.guards {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("guard chain interrupted before %s: %w", g.Name(), err)
		}

		err := g.Validate(ctx, req)
		if err == nil {
			c.recorder.RecordOutcome(g.Name(), true)
			continue
		}

		c.recorder.RecordOutcome(g.Name(), false)

		evt := c.log.Debug().
			Str("guard", g.Name()).
			Int64("user_id", req.Command.UserID).
			Int64("question_bank_id", req.Command.QuestionBankID)
		if ve, ok := AsValidationError(err); ok {
			evt = evt.Str("code", string(ve.Code))
		}
		evt.Err(err).Msg("Question upsert rejected")

		return err
	}

	return nil
}
