package model

import (
	"errors"
	"strings"
)

type QuestionType string

const (
	QuestionTypeMCQ       QuestionType = "MCQ"
	QuestionTypeEssay     QuestionType = "ESSAY"
	QuestionTypeTrueFalse QuestionType = "TRUE_FALSE"
)

// Valid reports whether t is one of the supported question types.
func (t QuestionType) Valid() bool {
	switch t {
	case QuestionTypeMCQ, QuestionTypeEssay, QuestionTypeTrueFalse:
		return true
	}
	return false
}

const (
	QuestionStatusDraft     = "draft"
	QuestionStatusPublished = "published"
	QuestionStatusArchived  = "archived"
)

// ErrNoCorrectOption is returned by NewMCQData when no option is marked correct.
var ErrNoCorrectOption = errors.New("mcq must have at least one correct answer")

// UpsertQuestionCommand is the inbound request every pipeline guard inspects.
// It is built once per request and never mutated afterwards.
type UpsertQuestionCommand struct {
	UserID           int64
	QuestionBankID   int64
	SourceQuestionID string
	QuestionType     QuestionType
	Title            string
	Content          string
	Points           *int
	Status           *string
	DisplayOrder     *int
	Attachments      []Attachment

	MCQData       *MCQData
	EssayData     *EssayData
	TrueFalseData *TrueFalseData

	Taxonomy TaxonomyRefs
}

// PayloadCount returns how many type-specific payloads are populated.
func (c *UpsertQuestionCommand) PayloadCount() int {
	n := 0
	if c.MCQData != nil {
		n++
	}
	if c.EssayData != nil {
		n++
	}
	if c.TrueFalseData != nil {
		n++
	}
	return n
}

// TaxonomyIDs returns the flattened taxonomy reference list.
func (c *UpsertQuestionCommand) TaxonomyIDs() []string {
	return c.Taxonomy.Flatten()
}

// TaxonomyRefs groups the taxonomy ids a question cites.
type TaxonomyRefs struct {
	CategoryIDs       []string `json:"category_ids"`
	TagIDs            []string `json:"tag_ids"`
	QuizIDs           []string `json:"quiz_ids"`
	DifficultyLevelID string   `json:"difficulty_level_id"`
}

// Flatten returns every referenced id once, in category, tag, quiz, difficulty
// order, skipping blanks.
func (t TaxonomyRefs) Flatten() []string {
	seen := make(map[string]struct{})
	ids := make([]string, 0, len(t.CategoryIDs)+len(t.TagIDs)+len(t.QuizIDs)+1)

	add := func(id string) {
		id = strings.TrimSpace(id)
		if id == "" {
			return
		}
		if _, dup := seen[id]; dup {
			return
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}

	for _, id := range t.CategoryIDs {
		add(id)
	}
	for _, id := range t.TagIDs {
		add(id)
	}
	for _, id := range t.QuizIDs {
		add(id)
	}
	add(t.DifficultyLevelID)

	return ids
}

// Attachment references an uploaded media file.
type Attachment struct {
	URL       string `json:"url" binding:"required,url,max=2048"`
	MediaType string `json:"media_type" binding:"omitempty,max=100"`
}

// MCQOption is one answer choice of a multiple-choice question.
type MCQOption struct {
	Text        string `json:"text"`
	Correct     bool   `json:"correct"`
	Explanation string `json:"explanation,omitempty"`
}

// MCQData is the multiple-choice payload.
type MCQData struct {
	Options              []MCQOption `json:"options"`
	AllowMultipleCorrect bool        `json:"allow_multiple_correct"`
	TimeLimitSeconds     *int        `json:"time_limit_seconds,omitempty"`
	ShuffleOptions       bool        `json:"shuffle_options"`
}

// NewMCQData builds an MCQ payload, rejecting option sets without a correct answer.
// Remaining rules (option counts, time limits) are enforced by the data integrity guard.
func NewMCQData(options []MCQOption, allowMultipleCorrect bool, timeLimitSeconds *int) (*MCQData, error) {
	if CountCorrect(options) == 0 {
		return nil, ErrNoCorrectOption
	}
	return &MCQData{
		Options:              options,
		AllowMultipleCorrect: allowMultipleCorrect,
		TimeLimitSeconds:     timeLimitSeconds,
	}, nil
}

// CountCorrect returns the number of options marked correct.
func CountCorrect(options []MCQOption) int {
	n := 0
	for _, o := range options {
		if o.Correct {
			n++
		}
	}
	return n
}

// RubricCriterion is a single scoring line of an essay rubric.
type RubricCriterion struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Points      int    `json:"points"`
}

// Rubric describes how an essay answer is scored.
type Rubric struct {
	Criteria  []RubricCriterion `json:"criteria"`
	MaxPoints int               `json:"max_points"`
}

// EssayData is the essay payload.
type EssayData struct {
	MinWords     *int    `json:"min_words,omitempty"`
	MaxWords     *int    `json:"max_words,omitempty"`
	Rubric       *Rubric `json:"rubric,omitempty"`
	SampleAnswer string  `json:"sample_answer,omitempty"`
}

// TrueFalseData is the true/false payload.
type TrueFalseData struct {
	CorrectAnswer    bool   `json:"correct_answer"`
	TimeLimitSeconds *int   `json:"time_limit_seconds,omitempty"`
	Explanation      string `json:"explanation,omitempty"`
}
