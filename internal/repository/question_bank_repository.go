package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-cms/internal/model"
)

// QuestionBankRepository answers ownership questions about question banks.
type QuestionBankRepository struct {
	pool *pgxpool.Pool
}

// NewQuestionBankRepository creates a new QuestionBankRepository.
func NewQuestionBankRepository(pool *pgxpool.Pool) *QuestionBankRepository {
	return &QuestionBankRepository{pool: pool}
}

// ValidateOwnership reports whether bankID exists and belongs to userID.
func (r *QuestionBankRepository) ValidateOwnership(ctx context.Context, userID, bankID int64) (bool, error) {
	var owned bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM question_banks WHERE id = $1 AND author_id = $2
		 )`, bankID, userID,
	).Scan(&owned)
	if err != nil {
		return false, fmt.Errorf("query question bank ownership: %w", err)
	}
	return owned, nil
}

// IsActive reports whether the user's bank is accepting changes. A bank the
// user does not own is reported inactive.
func (r *QuestionBankRepository) IsActive(ctx context.Context, userID, bankID int64) (bool, error) {
	var active bool
	err := r.pool.QueryRow(ctx,
		`SELECT is_active FROM question_banks WHERE id = $1 AND author_id = $2`,
		bankID, userID,
	).Scan(&active)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query question bank status: %w", err)
	}
	return active, nil
}

// GetByID retrieves a question bank by ID.
func (r *QuestionBankRepository) GetByID(ctx context.Context, id int64) (*model.QuestionBank, error) {
	qb := &model.QuestionBank{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, author_id, name, description, is_active, created_at, updated_at
		 FROM question_banks WHERE id = $1`, id,
	).Scan(&qb.ID, &qb.AuthorID, &qb.Name, &qb.Description, &qb.IsActive, &qb.CreatedAt, &qb.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return qb, nil
}

// Create inserts a new question bank.
func (r *QuestionBankRepository) Create(ctx context.Context, qb *model.QuestionBank) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO question_banks (author_id, name, description, is_active)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at, updated_at`,
		qb.AuthorID, qb.Name, qb.Description, qb.IsActive,
	).Scan(&qb.ID, &qb.CreatedAt, &qb.UpdatedAt)
}
