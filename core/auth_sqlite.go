package core

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/putto11262002/simpchat/pkg/token"
)

// SQLiteAuthStore issues JWT session tokens and tracks revoked tokens in a
// blacklist table. Tokens stay valid until expiry or revocation.
type SQLiteAuthStore struct {
	tokenExp time.Duration
	secret   []byte
	users    UserStore
	db       *sql.DB
}

type AuthOption func(*SQLiteAuthStore)

func WithTokenExp(exp time.Duration) AuthOption {
	return func(a *SQLiteAuthStore) {
		a.tokenExp = exp
	}
}

func NewSQLiteAuthStore(db *sql.DB, users UserStore, secret []byte, opts ...AuthOption) *SQLiteAuthStore {
	auth := &SQLiteAuthStore{
		tokenExp: time.Hour * 24,
		secret:   secret,
		users:    users,
		db:       db,
	}
	for _, opt := range opts {
		opt(auth)
	}
	return auth
}

func (a *SQLiteAuthStore) NewSession(ctx context.Context, username, password string) (*Session, error) {
	user, err := a.users.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("GetUserByUsername: %w", err)
	}
	if user == nil {
		return nil, ErrBadCredentials
	}

	ok, err := a.users.ComparePassword(ctx, username, password)
	if err != nil {
		return nil, fmt.Errorf("ComparePassword: %w", err)
	}
	if !ok {
		return nil, ErrBadCredentials
	}

	t, exp, err := token.New(user.ID, user.Username, a.tokenExp, a.secret)
	if err != nil {
		return nil, fmt.Errorf("creating token: %w", err)
	}

	if err := a.unblacklistToken(ctx, t); err != nil {
		return nil, fmt.Errorf("unblacklisting token: %w", err)
	}

	return &Session{
		UserID:    user.ID,
		Username:  user.Username,
		Token:     t,
		ExpiresAt: exp,
	}, nil
}

func (a *SQLiteAuthStore) DestroySession(ctx context.Context, session Session) error {
	if err := a.blacklistToken(ctx, session.Token); err != nil {
		return fmt.Errorf("blacklisting token: %w", err)
	}
	return nil
}

func (a *SQLiteAuthStore) unblacklistToken(ctx context.Context, t string) error {
	_, err := a.db.ExecContext(ctx, "DELETE FROM blacklists WHERE token = @token", sql.Named("token", t))
	return err
}

func (a *SQLiteAuthStore) blacklistToken(ctx context.Context, t string) error {
	_, err := a.db.ExecContext(ctx,
		"INSERT INTO blacklists (token) VALUES (@token) ON CONFLICT DO NOTHING",
		sql.Named("token", t))
	return err
}

func (a *SQLiteAuthStore) isBlacklisted(ctx context.Context, t string) (bool, error) {
	row := a.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM blacklists WHERE token = @token", sql.Named("token", t))
	var count int
	if err := row.Scan(&count); err != nil {
		return false, fmt.Errorf("scanning count: %w", err)
	}
	return count > 0, nil
}

func (a *SQLiteAuthStore) Session(ctx context.Context, t string) (*Session, error) {
	var claims token.AuthClaims
	if err := token.Verify(t, &claims, a.secret); err != nil {
		if errors.Is(err, token.ErrTokenExpired) || errors.Is(err, token.ErrTokenInvalid) {
			return nil, ErrUnauthenticated
		}
		return nil, fmt.Errorf("verifying token: %w", err)
	}

	blacklisted, err := a.isBlacklisted(ctx, t)
	if err != nil {
		return nil, fmt.Errorf("checking blacklist: %w", err)
	}
	if blacklisted {
		return nil, ErrUnauthenticated
	}

	return &Session{
		UserID:   claims.UserID,
		Username: claims.Username,
		Token:    t,
	}, nil
}
