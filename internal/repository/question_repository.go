package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-cms/internal/model"
)

// QuestionRepository handles question data access.
type QuestionRepository struct {
	pool *pgxpool.Pool
}

// NewQuestionRepository creates a new QuestionRepository.
func NewQuestionRepository(pool *pgxpool.Pool) *QuestionRepository {
	return &QuestionRepository{pool: pool}
}

// Upsert inserts q or replaces the question with the same source id in the
// same bank. It fills q's id and timestamps and reports whether a new row
// was created.
func (r *QuestionRepository) Upsert(ctx context.Context, q *model.Question) (bool, error) {
	var created bool
	err := r.pool.QueryRow(ctx,
		`INSERT INTO questions (
			question_bank_id, source_question_id, question_type, title, content,
			points, status, display_order, payload, attachments, taxonomy_ids, created_by
		 ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 ON CONFLICT (question_bank_id, source_question_id) DO UPDATE SET
			question_type = EXCLUDED.question_type,
			title         = EXCLUDED.title,
			content       = EXCLUDED.content,
			points        = EXCLUDED.points,
			status        = EXCLUDED.status,
			display_order = EXCLUDED.display_order,
			payload       = EXCLUDED.payload,
			attachments   = EXCLUDED.attachments,
			taxonomy_ids  = EXCLUDED.taxonomy_ids,
			updated_at    = NOW()
		 RETURNING id, created_at, updated_at, (xmax = 0)`,
		q.QuestionBankID, q.SourceQuestionID, q.QuestionType, q.Title, q.Content,
		q.Points, q.Status, q.DisplayOrder, q.Payload, q.Attachments, q.TaxonomyIDs, q.CreatedBy,
	).Scan(&q.ID, &q.CreatedAt, &q.UpdatedAt, &created)
	if err != nil {
		return false, fmt.Errorf("upsert question %s: %w", q.SourceQuestionID, err)
	}
	return created, nil
}

// GetBySource retrieves a question by its bank and source id.
func (r *QuestionRepository) GetBySource(ctx context.Context, bankID int64, sourceID string) (*model.Question, error) {
	q := &model.Question{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, question_bank_id, source_question_id, question_type, title, content,
			points, status, display_order, payload, attachments, taxonomy_ids, created_by,
			created_at, updated_at
		 FROM questions WHERE question_bank_id = $1 AND source_question_id = $2`,
		bankID, sourceID,
	).Scan(&q.ID, &q.QuestionBankID, &q.SourceQuestionID, &q.QuestionType, &q.Title, &q.Content,
		&q.Points, &q.Status, &q.DisplayOrder, &q.Payload, &q.Attachments, &q.TaxonomyIDs, &q.CreatedBy,
		&q.CreatedAt, &q.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return q, nil
}
