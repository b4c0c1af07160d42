package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-cms/internal/model"
)

// SecurityEventRepository persists audited security events.
type SecurityEventRepository struct {
	pool *pgxpool.Pool
}

// NewSecurityEventRepository creates a new SecurityEventRepository.
func NewSecurityEventRepository(pool *pgxpool.Pool) *SecurityEventRepository {
	return &SecurityEventRepository{pool: pool}
}

var securityEventColumns = []string{
	"id", "event_type", "severity", "user_id", "session_id", "details", "occurred_at",
}

func detailsOf(e model.SecurityEvent) map[string]string {
	if e.Details == nil {
		return map[string]string{}
	}
	return e.Details
}

// InsertBatch bulk-loads events with COPY. Duplicate ids fail the whole batch.
func (r *SecurityEventRepository) InsertBatch(ctx context.Context, events []model.SecurityEvent) (int64, error) {
	rows := make([][]interface{}, 0, len(events))
	for _, e := range events {
		rows = append(rows, []interface{}{
			e.ID, string(e.Type), string(e.Severity), e.UserID, e.SessionID, detailsOf(e), e.OccurredAt,
		})
	}

	return r.pool.CopyFrom(
		ctx,
		pgx.Identifier{"security_events"},
		securityEventColumns,
		pgx.CopyFromRows(rows),
	)
}

// Insert stores one event, ignoring an id that is already stored so that a
// requeued event is not recorded twice.
func (r *SecurityEventRepository) Insert(ctx context.Context, e model.SecurityEvent) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO security_events (id, event_type, severity, user_id, session_id, details, occurred_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (id) DO NOTHING`,
		e.ID, string(e.Type), string(e.Severity), e.UserID, e.SessionID, detailsOf(e), e.OccurredAt,
	)
	return err
}

// ListRecent returns the newest events, optionally only for one user.
func (r *SecurityEventRepository) ListRecent(ctx context.Context, userID *int64, limit int) ([]model.SecurityEvent, error) {
	query := `SELECT id, event_type, severity, user_id, session_id, details, occurred_at
		 FROM security_events`
	args := []interface{}{limit}
	if userID != nil {
		query += ` WHERE user_id = $2`
		args = append(args, *userID)
	}
	query += ` ORDER BY occurred_at DESC LIMIT $1`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := make([]model.SecurityEvent, 0, limit)
	for rows.Next() {
		var e model.SecurityEvent
		if err := rows.Scan(&e.ID, &e.Type, &e.Severity, &e.UserID, &e.SessionID, &e.Details, &e.OccurredAt); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// CountByType returns how many events of each type occurred since the given time.
func (r *SecurityEventRepository) CountByType(ctx context.Context, since time.Time) (map[model.SecurityEventType]int64, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT event_type, COUNT(*)
		 FROM security_events
		 WHERE occurred_at >= $1
		 GROUP BY event_type`,
		since,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[model.SecurityEventType]int64)
	for rows.Next() {
		var typ string
		var count int64
		if err := rows.Scan(&typ, &count); err != nil {
			return nil, err
		}
		counts[model.SecurityEventType(typ)] = count
	}

	return counts, rows.Err()
}
