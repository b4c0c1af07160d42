package guard

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/stemsi/exstem-cms/internal/model"
	"github.com/stemsi/exstem-cms/internal/response"
)

const DataIntegrityGuardName = "question_data_integrity"

const (
	MaxTitleLength       = 500
	MaxContentLength     = 10000
	MaxExplanationLength = 10000
	MaxPoints            = 1000
	MinMCQOptions        = 2
	MaxMCQOptions        = 10
	MaxTimeLimitSeconds  = 3600
	MaxAttachments       = 10
)

// QuestionDataIntegrityValidator is the terminal guard: field, payload and
// cross-field rules of the question itself. Its failures are ordinary
// validation errors and are not audited.
type QuestionDataIntegrityValidator struct{}

func NewQuestionDataIntegrityValidator() *QuestionDataIntegrityValidator {
	return &QuestionDataIntegrityValidator{}
}

func (v *QuestionDataIntegrityValidator) Name() string { return DataIntegrityGuardName }

func (v *QuestionDataIntegrityValidator) Validate(ctx context.Context, req *Request) error {
	if err := requireCommand(req); err != nil {
		return err
	}
	cmd := req.Command

	checks := []func(*model.UpsertQuestionCommand) *ValidationError{
		v.checkRequired,
		v.checkConstraints,
		v.checkPayload,
		v.checkCrossField,
	}
	for _, check := range checks {
		if ve := check(cmd); ve != nil {
			return ve
		}
	}
	return nil
}

func (v *QuestionDataIntegrityValidator) checkRequired(cmd *model.UpsertQuestionCommand) *ValidationError {
	switch {
	case strings.TrimSpace(cmd.SourceQuestionID) == "":
		return fail(v.Name(), response.ErrMissingRequiredField, "source question id is required")
	case cmd.QuestionType == "":
		return fail(v.Name(), response.ErrMissingRequiredField, "question type is required")
	case strings.TrimSpace(cmd.Title) == "":
		return fail(v.Name(), response.ErrMissingRequiredField, "title is required")
	case strings.TrimSpace(cmd.Content) == "":
		return fail(v.Name(), response.ErrMissingRequiredField, "content is required")
	}
	return nil
}

func (v *QuestionDataIntegrityValidator) checkConstraints(cmd *model.UpsertQuestionCommand) *ValidationError {
	if !cmd.QuestionType.Valid() {
		return fail(v.Name(), response.ErrTypeDataMismatch, "unsupported question type %q", cmd.QuestionType)
	}
	if n := utf8.RuneCountInString(cmd.Title); n > MaxTitleLength {
		return fail(v.Name(), response.ErrTypeDataMismatch, "title is %d characters, maximum is %d", n, MaxTitleLength)
	}
	if n := utf8.RuneCountInString(cmd.Content); n > MaxContentLength {
		return fail(v.Name(), response.ErrTypeDataMismatch, "content is %d characters, maximum is %d", n, MaxContentLength)
	}
	if cmd.Points != nil && (*cmd.Points < 0 || *cmd.Points > MaxPoints) {
		return fail(v.Name(), response.ErrTypeDataMismatch, "points must be between 0 and %d", MaxPoints)
	}
	if cmd.Status != nil {
		switch *cmd.Status {
		case model.QuestionStatusDraft, model.QuestionStatusPublished, model.QuestionStatusArchived:
		default:
			return fail(v.Name(), response.ErrTypeDataMismatch, "status %q is not one of draft, published, archived", *cmd.Status)
		}
	}
	return nil
}

func (v *QuestionDataIntegrityValidator) checkPayload(cmd *model.UpsertQuestionCommand) *ValidationError {
	switch cmd.QuestionType {
	case model.QuestionTypeMCQ:
		return v.checkMCQ(cmd.MCQData)
	case model.QuestionTypeEssay:
		return v.checkEssay(cmd.EssayData)
	case model.QuestionTypeTrueFalse:
		return v.checkTrueFalse(cmd.TrueFalseData)
	}
	return nil
}

func (v *QuestionDataIntegrityValidator) checkMCQ(d *model.MCQData) *ValidationError {
	if d == nil {
		return fail(v.Name(), response.ErrTypeDataMismatch, "MCQ question requires mcq data")
	}

	n := len(d.Options)
	if n < MinMCQOptions {
		return fail(v.Name(), response.ErrMCQInsufficientOptions, "MCQ has %d options, minimum is %d", n, MinMCQOptions)
	}
	if n > MaxMCQOptions {
		return fail(v.Name(), response.ErrMCQTooManyOptions, "MCQ has %d options, maximum is %d", n, MaxMCQOptions)
	}

	correct := model.CountCorrect(d.Options)
	if correct == 0 {
		return fail(v.Name(), response.ErrTypeDataMismatch, "MCQ must have at least one correct answer")
	}
	if !d.AllowMultipleCorrect && correct > 1 {
		return fail(v.Name(), response.ErrMCQMultipleCorrectNotAllowed,
			"MCQ has %d correct options but multiple correct answers are not allowed", correct)
	}

	for i, o := range d.Options {
		if strings.TrimSpace(o.Text) == "" {
			return fail(v.Name(), response.ErrTypeDataMismatch, "MCQ option %d has no text", i+1)
		}
	}

	if d.TimeLimitSeconds != nil {
		if *d.TimeLimitSeconds <= 0 {
			return fail(v.Name(), response.ErrMCQInvalidTimeLimit, "time limit must be positive, got %d", *d.TimeLimitSeconds)
		}
		if *d.TimeLimitSeconds > MaxTimeLimitSeconds {
			return fail(v.Name(), response.ErrMCQTimeLimitTooLong,
				"time limit is %d seconds, maximum is %d", *d.TimeLimitSeconds, MaxTimeLimitSeconds)
		}
	}
	return nil
}

func (v *QuestionDataIntegrityValidator) checkEssay(d *model.EssayData) *ValidationError {
	if d == nil {
		return fail(v.Name(), response.ErrTypeDataMismatch, "ESSAY question requires essay data")
	}

	if d.Rubric != nil {
		if len(d.Rubric.Criteria) == 0 {
			return fail(v.Name(), response.ErrTypeDataMismatch, "essay rubric must list at least one criterion")
		}
		if d.Rubric.MaxPoints <= 0 {
			return fail(v.Name(), response.ErrTypeDataMismatch, "essay rubric max points must be positive")
		}
	}

	if d.MinWords != nil && *d.MinWords < 0 {
		return fail(v.Name(), response.ErrTypeDataMismatch, "minimum word count cannot be negative")
	}
	if d.MaxWords != nil && *d.MaxWords < 0 {
		return fail(v.Name(), response.ErrTypeDataMismatch, "maximum word count cannot be negative")
	}
	if d.MinWords != nil && d.MaxWords != nil && *d.MinWords > *d.MaxWords {
		return fail(v.Name(), response.ErrTypeDataMismatch,
			"minimum word count %d exceeds maximum %d", *d.MinWords, *d.MaxWords)
	}
	return nil
}

func (v *QuestionDataIntegrityValidator) checkTrueFalse(d *model.TrueFalseData) *ValidationError {
	if d == nil {
		return fail(v.Name(), response.ErrTypeDataMismatch, "TRUE_FALSE question requires true_false data")
	}
	if d.TimeLimitSeconds != nil && *d.TimeLimitSeconds <= 0 {
		return fail(v.Name(), response.ErrTypeDataMismatch, "time limit must be positive, got %d", *d.TimeLimitSeconds)
	}
	if n := utf8.RuneCountInString(d.Explanation); n > MaxExplanationLength {
		return fail(v.Name(), response.ErrTypeDataMismatch,
			"explanation is %d characters, maximum is %d", n, MaxExplanationLength)
	}
	return nil
}

func (v *QuestionDataIntegrityValidator) checkCrossField(cmd *model.UpsertQuestionCommand) *ValidationError {
	if cmd.DisplayOrder != nil && *cmd.DisplayOrder < 0 {
		return fail(v.Name(), response.ErrTypeDataMismatch, "display order cannot be negative")
	}
	if len(cmd.Attachments) > MaxAttachments {
		return fail(v.Name(), response.ErrTypeDataMismatch,
			"%d attachments, maximum is %d", len(cmd.Attachments), MaxAttachments)
	}
	if n := cmd.PayloadCount(); n != 1 {
		return fail(v.Name(), response.ErrDataIntegrityValidation,
			"exactly one type-specific payload must be set, found %d", n)
	}
	return nil
}
