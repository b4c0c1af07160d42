package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stemsi/exstem-cms/internal/config"
	"github.com/stemsi/exstem-cms/internal/model"
	"github.com/stemsi/exstem-cms/internal/repository"
	"golang.org/x/crypto/bcrypt"
)

// Common auth errors.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
)

// Claims extends JWT standard claims with app-specific fields. The registered
// ID (jti) doubles as the session id.
type Claims struct {
	jwt.RegisteredClaims
	UserID int64            `json:"user_id"`
	Role   model.AuthorRole `json:"role"`
}

// SessionID returns the session the token was issued for.
func (c *Claims) SessionID() string {
	return c.ID
}

// AuthorLookup finds authors by login email.
type AuthorLookup interface {
	GetByEmail(ctx context.Context, email string) (*model.Author, error)
}

// SessionStore persists the fingerprint recorded at login.
type SessionStore interface {
	Save(ctx context.Context, s *model.SessionContext, ttl time.Duration) error
	Get(ctx context.Context, sessionID string) (*model.SessionContext, error)
	Delete(ctx context.Context, userID int64, sessionID string) error
}

// SessionEvictor forgets a session held by in-memory session limits.
type SessionEvictor interface {
	EndSession(userID int64, sessionID string) bool
}

// LoginResult is returned after a successful login.
type LoginResult struct {
	Token     string        `json:"token"`
	ExpiresAt time.Time     `json:"expires_at"`
	Author    *model.Author `json:"author"`
}

// AuthService handles authentication, JWT, and session fingerprints.
type AuthService struct {
	cfg      *config.Config
	authors  AuthorLookup
	sessions SessionStore
	evictor  SessionEvictor
	now      func() time.Time
}

// NewAuthService creates a new AuthService.
func NewAuthService(cfg *config.Config, authors AuthorLookup, sessions SessionStore, evictor SessionEvictor) *AuthService {
	return &AuthService{
		cfg:      cfg,
		authors:  authors,
		sessions: sessions,
		evictor:  evictor,
		now:      time.Now,
	}
}

// HashPassword hashes a password with the configured bcrypt cost.
func (s *AuthService) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cfg.BcryptCost)
	return string(hash), err
}

// CheckPassword compares a plaintext password against a bcrypt hash.
func (s *AuthService) CheckPassword(hash, password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

// Login authenticates an author, issues a token and records the fingerprint
// (client IP and user agent) the session was established from.
func (s *AuthService) Login(ctx context.Context, email, password, clientIP, userAgent string) (*LoginResult, error) {
	author, err := s.authors.GetByEmail(ctx, email)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("lookup author: %w", err)
	}
	if err := s.CheckPassword(author.PasswordHash, password); err != nil {
		return nil, err
	}

	jti := uuid.New().String()
	now := s.now()
	expiresAt := now.Add(s.cfg.JWTExpiry)

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   strconv.FormatInt(author.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		UserID: author.ID,
		Role:   author.Role,
	}
	if claims.Role == "" {
		claims.Role = model.RoleAuthor
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}

	// Fingerprint lives exactly as long as the token.
	sess := &model.SessionContext{
		SessionID: jti,
		UserID:    author.ID,
		ClientIP:  clientIP,
		UserAgent: userAgent,
		CreatedAt: now.UTC(),
	}
	if err := s.sessions.Save(ctx, sess, s.cfg.JWTExpiry); err != nil {
		return nil, fmt.Errorf("store session: %w", err)
	}

	return &LoginResult{Token: signed, ExpiresAt: expiresAt, Author: author}, nil
}

// ValidateToken parses and validates a JWT, returning the claims.
func (s *AuthService) ValidateToken(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.cfg.JWTSecret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID <= 0 {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// LookupSession returns the recorded fingerprint, or nil when none is stored.
func (s *AuthService) LookupSession(ctx context.Context, sessionID string) (*model.SessionContext, error) {
	if sessionID == "" {
		return nil, nil
	}
	sess, err := s.sessions.Get(ctx, sessionID)
	if errors.Is(err, repository.ErrSessionNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return sess, nil
}

// Logout ends the session: the fingerprint is deleted and the session stops
// counting toward the concurrent-session limit.
func (s *AuthService) Logout(ctx context.Context, claims *Claims) error {
	if err := s.sessions.Delete(ctx, claims.UserID, claims.SessionID()); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if s.evictor != nil {
		s.evictor.EndSession(claims.UserID, claims.SessionID())
	}
	return nil
}
