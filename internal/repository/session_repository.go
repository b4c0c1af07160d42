package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stemsi/exstem-cms/internal/config"
	"github.com/stemsi/exstem-cms/internal/model"
)

// ErrSessionNotFound is returned when no fingerprint is stored for a session.
var ErrSessionNotFound = errors.New("session not found")

// SessionRepository keeps session fingerprints in Redis hashes that expire
// with the token they belong to.
type SessionRepository struct {
	rdb *redis.Client
}

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(rdb *redis.Client) *SessionRepository {
	return &SessionRepository{rdb: rdb}
}

// Save stores s and indexes it under its user.
func (r *SessionRepository) Save(ctx context.Context, s *model.SessionContext, ttl time.Duration) error {
	key := config.CacheKey.SessionFingerprintKey(s.SessionID)
	userKey := config.CacheKey.AuthorSessionsKey(s.UserID)

	pipe := r.rdb.TxPipeline()
	pipe.HSet(ctx, key, map[string]interface{}{
		"user_id":    s.UserID,
		"client_ip":  s.ClientIP,
		"user_agent": s.UserAgent,
		"created_at": s.CreatedAt.Unix(),
	})
	pipe.Expire(ctx, key, ttl)
	pipe.SAdd(ctx, userKey, s.SessionID)
	pipe.Expire(ctx, userKey, ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save session %s: %w", s.SessionID, err)
	}
	return nil
}

// Get loads the fingerprint of sessionID.
func (r *SessionRepository) Get(ctx context.Context, sessionID string) (*model.SessionContext, error) {
	vals, err := r.rdb.HGetAll(ctx, config.CacheKey.SessionFingerprintKey(sessionID)).Result()
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", sessionID, err)
	}
	if len(vals) == 0 {
		return nil, ErrSessionNotFound
	}

	userID, err := strconv.ParseInt(vals["user_id"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("session %s has corrupt user id: %w", sessionID, err)
	}
	createdAt, _ := strconv.ParseInt(vals["created_at"], 10, 64)

	return &model.SessionContext{
		SessionID: sessionID,
		UserID:    userID,
		ClientIP:  vals["client_ip"],
		UserAgent: vals["user_agent"],
		CreatedAt: time.Unix(createdAt, 0).UTC(),
	}, nil
}

// Delete removes the fingerprint and its index entry.
func (r *SessionRepository) Delete(ctx context.Context, userID int64, sessionID string) error {
	pipe := r.rdb.TxPipeline()
	pipe.Del(ctx, config.CacheKey.SessionFingerprintKey(sessionID))
	pipe.SRem(ctx, config.CacheKey.AuthorSessionsKey(userID), sessionID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("delete session %s: %w", sessionID, err)
	}
	return nil
}

// ListByUser returns the session ids recorded for a user.
func (r *SessionRepository) ListByUser(ctx context.Context, userID int64) ([]string, error) {
	return r.rdb.SMembers(ctx, config.CacheKey.AuthorSessionsKey(userID)).Result()
}
