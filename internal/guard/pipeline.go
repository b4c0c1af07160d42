package guard

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Deps carries everything the question-upsert chain needs.
type Deps struct {
	RateLimit         RateLimitConfig
	ConcurrentSession ConcurrentSessionConfig
	HijackPolicy      HijackPolicy
	// SessionCheckBudget is the time the fingerprint comparison may take before
	// a warning is logged.
	SessionCheckBudget time.Duration

	Ownership OwnershipRepository
	Taxonomy  TaxonomyRepository
	Retrier   Retrier

	Audit   AuditSink
	Metrics MetricsRecorder
	Log     zerolog.Logger
}

// QuestionUpsertPipeline is the assembled chain plus handles to the stateful
// guards that need eviction from outside the request path.
type QuestionUpsertPipeline struct {
	*Chain
	RateLimit         *RateLimitValidator
	ConcurrentSession *ConcurrentSessionValidator
}

// NewQuestionUpsertPipeline wires the guards in their fixed order: in-memory
// checks first, identity checks next, repository-backed checks last.
func NewQuestionUpsertPipeline(d Deps) *QuestionUpsertPipeline {
	rateLimit := NewRateLimitValidator(d.RateLimit, d.Audit, d.Log)
	sessions := NewConcurrentSessionValidator(d.ConcurrentSession, d.Audit, d.Log)

	chain := NewChain(d.Metrics, d.Log).
		Then(rateLimit).
		Then(sessions).
		Then(NewSessionManagementValidator(d.HijackPolicy, d.SessionCheckBudget, d.Audit, d.Log)).
		Then(NewSecurityContextValidator(d.Audit)).
		Then(NewQuestionBankOwnershipValidator(d.Ownership, d.Retrier, d.Audit, d.Log)).
		Then(NewTaxonomyReferenceValidator(d.Taxonomy, d.Retrier, d.Log)).
		Then(NewQuestionDataIntegrityValidator())

	return &QuestionUpsertPipeline{
		Chain:             chain,
		RateLimit:         rateLimit,
		ConcurrentSession: sessions,
	}
}

// EndSession evicts a session from the concurrent-session cap.
func (p *QuestionUpsertPipeline) EndSession(userID int64, sessionID string) bool {
	return p.ConcurrentSession.Remove(userID, sessionID)
}

// RunSweepers reclaims idle limiter buckets and expired sessions until ctx ends.
func (p *QuestionUpsertPipeline) RunSweepers(ctx context.Context, interval time.Duration) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		p.ConcurrentSession.Run(ctx, interval)
	}()
	p.RateLimit.Run(ctx, interval)
	<-done
}
