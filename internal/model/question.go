package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Question is a persisted question row. Payload holds the JSON encoding of
// whichever type-specific data the question carries.
type Question struct {
	ID               uuid.UUID       `json:"id"`
	QuestionBankID   int64           `json:"question_bank_id"`
	SourceQuestionID string          `json:"source_question_id"`
	QuestionType     QuestionType    `json:"question_type"`
	Title            string          `json:"title"`
	Content          string          `json:"content"`
	Points           int             `json:"points"`
	Status           string          `json:"status"`
	DisplayOrder     int             `json:"display_order"`
	Payload          json.RawMessage `json:"payload"`
	Attachments      []Attachment    `json:"attachments"`
	TaxonomyIDs      []string        `json:"taxonomy_ids"`
	CreatedBy        int64           `json:"created_by"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// UpsertQuestionRequest is the HTTP payload for creating or replacing a question
// identified by its source id. Structural checks live here; business rules are
// enforced by the guard pipeline.
type UpsertQuestionRequest struct {
	SourceQuestionID string         `json:"source_question_id" binding:"required,max=255"`
	QuestionType     string         `json:"question_type" binding:"required,question_type"`
	Title            string         `json:"title" binding:"required"`
	Content          string         `json:"content" binding:"required"`
	Points           *int           `json:"points" binding:"omitempty"`
	Status           *string        `json:"status" binding:"omitempty,question_status"`
	DisplayOrder     *int           `json:"display_order" binding:"omitempty"`
	Attachments      []Attachment   `json:"attachments" binding:"omitempty,dive"`
	MCQ              *MCQData       `json:"mcq"`
	Essay            *EssayData     `json:"essay"`
	TrueFalse        *TrueFalseData `json:"true_false"`
	Taxonomy         TaxonomyRefs   `json:"taxonomy"`
}

// ToCommand builds the pipeline command for the given author and bank.
func (r *UpsertQuestionRequest) ToCommand(userID, questionBankID int64) *UpsertQuestionCommand {
	return &UpsertQuestionCommand{
		UserID:           userID,
		QuestionBankID:   questionBankID,
		SourceQuestionID: r.SourceQuestionID,
		QuestionType:     QuestionType(r.QuestionType),
		Title:            r.Title,
		Content:          r.Content,
		Points:           r.Points,
		Status:           r.Status,
		DisplayOrder:     r.DisplayOrder,
		Attachments:      r.Attachments,
		MCQData:          r.MCQ,
		EssayData:        r.Essay,
		TrueFalseData:    r.TrueFalse,
		Taxonomy:         r.Taxonomy,
	}
}
