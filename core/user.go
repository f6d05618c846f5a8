package core

import (
	"context"
	"time"
)

type (
	// User is an account holder. Emails are stored lowercased and are
	// unique. PasswordHash is empty for users provisioned through an
	// OAuth provider (OAuth=true). Recents is the bounded,
	// most-recent-first list of visited board ids maintained by
	// VisitRecent.
	User struct {
		ID           string    `json:"id"`
		Name         string    `json:"name"`
		Email        string    `json:"email"`
		PasswordHash string    `json:"-"`
		OAuth        bool      `json:"oauth,omitempty"`
		AvatarURL    string    `json:"avatarUrl,omitempty"`
		Recents      []string  `json:"recents"`
		CreatedAt    time.Time `json:"createdAt"`
		UpdatedAt    time.Time `json:"updatedAt"`
	}

	// UserStore defines the persistence layer for users.
	// GetUserByEmail matches case-insensitively. CreateUser returns
	// ErrEmailTaken for a duplicate email.
	UserStore interface {
		GetUser(ctx context.Context, id string) (*User, error)
		GetUserByEmail(ctx context.Context, email string) (*User, error)
		CreateUser(ctx context.Context, user *User) error
		SaveUser(ctx context.Context, user *User) error
	}
)
