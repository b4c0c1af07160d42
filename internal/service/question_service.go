package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-cms/internal/guard"
	"github.com/stemsi/exstem-cms/internal/model"
)

// Validator is the guard chain a command must pass before it is stored.
type Validator interface {
	Validate(ctx context.Context, req *guard.Request) error
}

// QuestionStore persists questions.
type QuestionStore interface {
	Upsert(ctx context.Context, q *model.Question) (bool, error)
}

// QuestionService runs the guard pipeline and stores accepted questions.
type QuestionService struct {
	pipeline Validator
	store    QuestionStore
	log      zerolog.Logger
}

// NewQuestionService creates a new QuestionService.
func NewQuestionService(pipeline Validator, store QuestionStore, log zerolog.Logger) *QuestionService {
	return &QuestionService{
		pipeline: pipeline,
		store:    store,
		log:      log.With().Str("component", "question_service").Logger(),
	}
}

// Upsert validates req and, when every guard passes, creates or replaces the
// question. Guard denials are returned unchanged as *guard.ValidationError.
func (s *QuestionService) Upsert(ctx context.Context, req *guard.Request) (*model.Question, bool, error) {
	if err := s.pipeline.Validate(ctx, req); err != nil {
		return nil, false, err
	}

	q, err := buildQuestion(req.Command)
	if err != nil {
		return nil, false, err
	}

	created, err := s.store.Upsert(ctx, q)
	if err != nil {
		return nil, false, err
	}

	s.log.Info().
		Str("question_id", q.ID.String()).
		Int64("question_bank_id", q.QuestionBankID).
		Str("source_question_id", q.SourceQuestionID).
		Bool("created", created).
		Msg("Question upserted")

	return q, created, nil
}

func buildQuestion(cmd *model.UpsertQuestionCommand) (*model.Question, error) {
	var payload any
	switch cmd.QuestionType {
	case model.QuestionTypeMCQ:
		payload = cmd.MCQData
	case model.QuestionTypeEssay:
		payload = cmd.EssayData
	case model.QuestionTypeTrueFalse:
		payload = cmd.TrueFalseData
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", cmd.QuestionType, err)
	}

	q := &model.Question{
		QuestionBankID:   cmd.QuestionBankID,
		SourceQuestionID: cmd.SourceQuestionID,
		QuestionType:     cmd.QuestionType,
		Title:            cmd.Title,
		Content:          cmd.Content,
		Points:           1,
		Status:           model.QuestionStatusDraft,
		Payload:          raw,
		Attachments:      cmd.Attachments,
		TaxonomyIDs:      cmd.TaxonomyIDs(),
		CreatedBy:        cmd.UserID,
	}
	if cmd.Points != nil {
		q.Points = *cmd.Points
	}
	if cmd.Status != nil {
		q.Status = *cmd.Status
	}
	if cmd.DisplayOrder != nil {
		q.DisplayOrder = *cmd.DisplayOrder
	}
	if q.Attachments == nil {
		q.Attachments = []model.Attachment{}
	}
	return q, nil
}
