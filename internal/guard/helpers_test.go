package guard

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-cms/internal/model"
)

var testLog = zerolog.Nop()

type recordingSink struct {
	mu     sync.Mutex
	events []model.SecurityEvent
}

func (s *recordingSink) EmitAsync(e model.SecurityEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
}

func (s *recordingSink) Events() []model.SecurityEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.SecurityEvent(nil), s.events...)
}

type outcome struct {
	guard  string
	passed bool
}

type recordingMetrics struct {
	mu       sync.Mutex
	outcomes []outcome
}

func (r *recordingMetrics) RecordOutcome(name string, passed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, outcome{name, passed})
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakeOwnership struct {
	mu          sync.Mutex
	owned       bool
	active      bool
	ownErrs     []error
	activeErr   error
	ownCalls    int
	activeCalls int
}

func (f *fakeOwnership) ValidateOwnership(ctx context.Context, userID, bankID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ownCalls++
	if len(f.ownErrs) > 0 {
		err := f.ownErrs[0]
		f.ownErrs = f.ownErrs[1:]
		return false, err
	}
	return f.owned, nil
}

func (f *fakeOwnership) IsActive(ctx context.Context, userID, bankID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.activeCalls++
	if f.activeErr != nil {
		return false, f.activeErr
	}
	return f.active, nil
}

type fakeTaxonomy struct {
	mu         sync.Mutex
	known      map[string]bool
	existErr   error
	invalidErr error
	calls      int
}

func newFakeTaxonomy(ids ...string) *fakeTaxonomy {
	known := make(map[string]bool, len(ids))
	for _, id := range ids {
		known[id] = true
	}
	return &fakeTaxonomy{known: known}
}

func (f *fakeTaxonomy) ReferencesExist(ctx context.Context, userID, bankID int64, ids []string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.existErr != nil {
		return false, f.existErr
	}
	for _, id := range ids {
		if !f.known[id] {
			return false, nil
		}
	}
	return true, nil
}

func (f *fakeTaxonomy) FindInvalid(ctx context.Context, userID, bankID int64, ids []string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.invalidErr != nil {
		return nil, f.invalidErr
	}
	var invalid []string
	for _, id := range ids {
		if !f.known[id] {
			invalid = append(invalid, id)
		}
	}
	return invalid, nil
}

func intPtr(v int) *int { return &v }

func strPtr(v string) *string { return &v }

func mcqOptions(n, correct int) []model.MCQOption {
	opts := make([]model.MCQOption, n)
	for i := range opts {
		opts[i] = model.MCQOption{Text: "option", Correct: i < correct}
	}
	return opts
}

func validMCQCommand() *model.UpsertQuestionCommand {
	return &model.UpsertQuestionCommand{
		UserID:           42,
		QuestionBankID:   7,
		SourceQuestionID: "src-001",
		QuestionType:     model.QuestionTypeMCQ,
		Title:            "Capital of France",
		Content:          "Which city is the capital of France?",
		Points:           intPtr(10),
		Status:           strPtr(model.QuestionStatusDraft),
		MCQData: &model.MCQData{
			Options: []model.MCQOption{
				{Text: "Paris", Correct: true},
				{Text: "Lyon"},
				{Text: "Nice"},
			},
			TimeLimitSeconds: intPtr(60),
		},
		Taxonomy: model.TaxonomyRefs{
			CategoryIDs:       []string{"geo"},
			DifficultyLevelID: "easy",
		},
	}
}

// validRequest is a request every guard accepts with the stock fakes.
func validRequest() *Request {
	return &Request{
		Command:   validMCQCommand(),
		SessionID: "sess-1",
		Session: &model.SessionContext{
			SessionID: "sess-1",
			UserID:    42,
			ClientIP:  "192.168.1.100",
			UserAgent: "Mozilla/5.0 (X11; Linux x86_64)",
			CreatedAt: time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC),
		},
		ClientIP:   "192.168.1.100",
		UserAgent:  "Mozilla/5.0 (X11; Linux x86_64)",
		Identity:   Identity{Present: true, UserID: 42},
		PathUserID: 42,
	}
}
