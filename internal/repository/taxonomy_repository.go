package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-cms/internal/model"
)

// TaxonomyRepository looks up the categories, tags, quizzes and difficulty
// levels an author defined for a question bank.
type TaxonomyRepository struct {
	pool *pgxpool.Pool
}

// NewTaxonomyRepository creates a new TaxonomyRepository.
func NewTaxonomyRepository(pool *pgxpool.Pool) *TaxonomyRepository {
	return &TaxonomyRepository{pool: pool}
}

// ReferencesExist reports whether every id in ids is a taxonomy of the bank.
// ids must already be de-duplicated.
func (r *TaxonomyRepository) ReferencesExist(ctx context.Context, userID, bankID int64, ids []string) (bool, error) {
	if len(ids) == 0 {
		return true, nil
	}

	var found int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(DISTINCT id) FROM taxonomies
		 WHERE question_bank_id = $1 AND author_id = $2 AND id = ANY($3)`,
		bankID, userID, ids,
	).Scan(&found)
	if err != nil {
		return false, fmt.Errorf("count taxonomy references: %w", err)
	}
	return found == len(ids), nil
}

// FindInvalid returns the ids that are not taxonomies of the bank, in the
// order they were given.
func (r *TaxonomyRepository) FindInvalid(ctx context.Context, userID, bankID int64, ids []string) ([]string, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT ref.id
		 FROM unnest($3::text[]) WITH ORDINALITY AS ref(id, pos)
		 WHERE NOT EXISTS (
			SELECT 1 FROM taxonomies t
			WHERE t.id = ref.id AND t.question_bank_id = $1 AND t.author_id = $2
		 )
		 ORDER BY ref.pos`,
		bankID, userID, ids,
	)
	if err != nil {
		return nil, fmt.Errorf("find invalid taxonomy references: %w", err)
	}
	defer rows.Close()

	var invalid []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		invalid = append(invalid, id)
	}
	return invalid, rows.Err()
}

// ListByBank retrieves all taxonomies of a question bank.
func (r *TaxonomyRepository) ListByBank(ctx context.Context, bankID int64) ([]model.Taxonomy, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, author_id, question_bank_id, kind, name
		 FROM taxonomies WHERE question_bank_id = $1
		 ORDER BY kind, name`, bankID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var taxonomies []model.Taxonomy
	for rows.Next() {
		var t model.Taxonomy
		if err := rows.Scan(&t.ID, &t.AuthorID, &t.QuestionBankID, &t.Kind, &t.Name); err != nil {
			return nil, err
		}
		taxonomies = append(taxonomies, t)
	}
	return taxonomies, rows.Err()
}
