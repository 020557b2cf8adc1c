package core

import (
	"context"
	"errors"
	"time"
)

type Session struct {
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

var (
	ErrBadCredentials  = errors.New("invalid credentials")
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrUnauthorized    = errors.New("unauthorized")
)

type AuthStore interface {
	// NewSession authenticates the credentials and issues a session token.
	NewSession(ctx context.Context, username, password string) (session *Session, err error)

	// DestroySession invalidates the session's token.
	DestroySession(ctx context.Context, session Session) error

	// Session verifies a token and returns the session it represents, or
	// ErrUnauthenticated for an expired, invalid or revoked token.
	Session(ctx context.Context, token string) (session *Session, err error)
}
