package model

import "time"

// QuestionBank represents a collection of questions owned by one author.
type QuestionBank struct {
	ID          int64     `json:"id"`
	AuthorID    int64     `json:"author_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type TaxonomyKind string

const (
	TaxonomyCategory   TaxonomyKind = "CATEGORY"
	TaxonomyTag        TaxonomyKind = "TAG"
	TaxonomyQuiz       TaxonomyKind = "QUIZ"
	TaxonomyDifficulty TaxonomyKind = "DIFFICULTY_LEVEL"
)

// Taxonomy is a category, tag, quiz or difficulty level an author defined
// for a question bank.
type Taxonomy struct {
	ID             string       `json:"id"`
	AuthorID       int64        `json:"author_id"`
	QuestionBankID int64        `json:"question_bank_id"`
	Kind           TaxonomyKind `json:"kind"`
	Name           string       `json:"name"`
}
