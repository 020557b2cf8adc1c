package core

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

type SQLitePermissionStore struct {
	db *sql.DB
}

func NewSQLitePermissionStore(db *sql.DB) *SQLitePermissionStore {
	return &SQLitePermissionStore{db: db}
}

func (s *SQLitePermissionStore) HasGrant(ctx context.Context, chatID, userID string, p Permission) (bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM chat_permissions
		 WHERE chat_id = @chat_id AND user_id = @user_id AND permission = @permission`,
		sql.Named("chat_id", chatID), sql.Named("user_id", userID),
		sql.Named("permission", string(p)))

	var count int
	if err := row.Scan(&count); err != nil {
		return false, fmt.Errorf("scanning count: %w", err)
	}
	return count > 0, nil
}

func (s *SQLitePermissionStore) CreateGrant(ctx context.Context, chatID, userID string, p Permission) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO chat_permissions (chat_id, user_id, permission, granted_at)
		 VALUES (@chat_id, @user_id, @permission, @granted_at)
		 ON CONFLICT DO NOTHING`,
		sql.Named("chat_id", chatID), sql.Named("user_id", userID),
		sql.Named("permission", string(p)), sql.Named("granted_at", time.Now().UTC()))
	if err != nil {
		return fmt.Errorf("ExecContext(insert chat_permissions): %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("RowsAffected: %w", err)
	}
	if n == 0 {
		return ErrAlreadyGranted
	}
	return nil
}

func (s *SQLitePermissionStore) DeleteGrant(ctx context.Context, chatID, userID string, p Permission) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM chat_permissions
		 WHERE chat_id = @chat_id AND user_id = @user_id AND permission = @permission`,
		sql.Named("chat_id", chatID), sql.Named("user_id", userID),
		sql.Named("permission", string(p)))
	if err != nil {
		return fmt.Errorf("ExecContext(delete chat_permissions): %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("RowsAffected: %w", err)
	}
	if n == 0 {
		return ErrGrantNotFound
	}
	return nil
}

func (s *SQLitePermissionStore) DeleteGrants(ctx context.Context, chatID, userID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM chat_permissions WHERE chat_id = @chat_id AND user_id = @user_id`,
		sql.Named("chat_id", chatID), sql.Named("user_id", userID))
	if err != nil {
		return fmt.Errorf("ExecContext(delete chat_permissions): %w", err)
	}
	return nil
}

func (s *SQLitePermissionStore) ListGrants(ctx context.Context, chatID, userID string) ([]Grant, error) {
	return s.queryGrants(ctx,
		`SELECT chat_id, user_id, permission, granted_at FROM chat_permissions
		 WHERE chat_id = @chat_id AND user_id = @user_id ORDER BY permission`,
		sql.Named("chat_id", chatID), sql.Named("user_id", userID))
}

func (s *SQLitePermissionStore) ListChatGrants(ctx context.Context, chatID string) ([]Grant, error) {
	return s.queryGrants(ctx,
		`SELECT chat_id, user_id, permission, granted_at FROM chat_permissions
		 WHERE chat_id = @chat_id ORDER BY user_id, permission`,
		sql.Named("chat_id", chatID))
}

func (s *SQLitePermissionStore) queryGrants(ctx context.Context, query string, args ...any) ([]Grant, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("QueryContext: %w", err)
	}
	defer rows.Close()

	var grants []Grant
	for rows.Next() {
		var grant Grant
		var p string
		if err := rows.Scan(&grant.ChatID, &grant.UserID, &p, &grant.GrantedAt); err != nil {
			return nil, fmt.Errorf("scanning grant: %w", err)
		}
		grant.Permission = Permission(p)
		grants = append(grants, grant)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows.Err: %w", err)
	}
	return grants, nil
}
