package model

import "time"

// AuthorRole decides which surfaces an author may use beyond their own banks.
type AuthorRole string

const (
	RoleAuthor AuthorRole = "AUTHOR"
	// RoleAdmin may read the security dashboard and the live event feed.
	RoleAdmin AuthorRole = "ADMIN"
)

// Author is a content author allowed to manage question banks.
type Author struct {
	ID           int64      `json:"id"`
	Email        string     `json:"email"`
	Name         string     `json:"name"`
	Role         AuthorRole `json:"role"`
	PasswordHash string     `json:"-"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// LoginRequest is the payload for author authentication.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email,max=255"`
	Password string `json:"password" binding:"required,min=6,max=128"`
}
