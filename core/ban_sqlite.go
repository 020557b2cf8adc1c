package core

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

type SQLiteChatBanStore struct {
	db *sql.DB
}

func NewSQLiteChatBanStore(db *sql.DB) *SQLiteChatBanStore {
	return &SQLiteChatBanStore{db: db}
}

func (s *SQLiteChatBanStore) IsBanned(ctx context.Context, chatID, userID string) (bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM chat_bans WHERE chat_id = @chat_id AND user_id = @user_id`,
		sql.Named("chat_id", chatID), sql.Named("user_id", userID))

	var count int
	if err := row.Scan(&count); err != nil {
		return false, fmt.Errorf("scanning count: %w", err)
	}
	return count > 0, nil
}

func (s *SQLiteChatBanStore) CreateBan(ctx context.Context, chatID, userID string) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO chat_bans (chat_id, user_id, banned_at) VALUES (@chat_id, @user_id, @banned_at)
		 ON CONFLICT DO NOTHING`,
		sql.Named("chat_id", chatID), sql.Named("user_id", userID),
		sql.Named("banned_at", time.Now().UTC()))
	if err != nil {
		return fmt.Errorf("ExecContext(insert chat_bans): %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("RowsAffected: %w", err)
	}
	if n == 0 {
		return ErrAlreadyBanned
	}
	return nil
}

func (s *SQLiteChatBanStore) DeleteBan(ctx context.Context, chatID, userID string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM chat_bans WHERE chat_id = @chat_id AND user_id = @user_id`,
		sql.Named("chat_id", chatID), sql.Named("user_id", userID))
	if err != nil {
		return fmt.Errorf("ExecContext(delete chat_bans): %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("RowsAffected: %w", err)
	}
	if n == 0 {
		return ErrBanNotFound
	}
	return nil
}

func (s *SQLiteChatBanStore) ListBans(ctx context.Context, chatID string) ([]ChatBan, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT chat_id, user_id, banned_at FROM chat_bans WHERE chat_id = @chat_id ORDER BY banned_at DESC`,
		sql.Named("chat_id", chatID))
	if err != nil {
		return nil, fmt.Errorf("QueryContext: %w", err)
	}
	defer rows.Close()

	var bans []ChatBan
	for rows.Next() {
		var ban ChatBan
		if err := rows.Scan(&ban.ChatID, &ban.UserID, &ban.BannedAt); err != nil {
			return nil, fmt.Errorf("scanning ban: %w", err)
		}
		bans = append(bans, ban)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows.Err: %w", err)
	}
	return bans, nil
}

type SQLiteUserBanStore struct {
	db *sql.DB
}

func NewSQLiteUserBanStore(db *sql.DB) *SQLiteUserBanStore {
	return &SQLiteUserBanStore{db: db}
}

func (s *SQLiteUserBanStore) IsBlocked(ctx context.Context, blockerID, blockedID string) (bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM user_bans WHERE blocker_id = @blocker_id AND blocked_id = @blocked_id`,
		sql.Named("blocker_id", blockerID), sql.Named("blocked_id", blockedID))

	var count int
	if err := row.Scan(&count); err != nil {
		return false, fmt.Errorf("scanning count: %w", err)
	}
	return count > 0, nil
}

func (s *SQLiteUserBanStore) CreateBlock(ctx context.Context, blockerID, blockedID string) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO user_bans (blocker_id, blocked_id, banned_at) VALUES (@blocker_id, @blocked_id, @banned_at)
		 ON CONFLICT DO NOTHING`,
		sql.Named("blocker_id", blockerID), sql.Named("blocked_id", blockedID),
		sql.Named("banned_at", time.Now().UTC()))
	if err != nil {
		return fmt.Errorf("ExecContext(insert user_bans): %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("RowsAffected: %w", err)
	}
	if n == 0 {
		return ErrAlreadyBlocked
	}
	return nil
}

func (s *SQLiteUserBanStore) DeleteBlock(ctx context.Context, blockerID, blockedID string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM user_bans WHERE blocker_id = @blocker_id AND blocked_id = @blocked_id`,
		sql.Named("blocker_id", blockerID), sql.Named("blocked_id", blockedID))
	if err != nil {
		return fmt.Errorf("ExecContext(delete user_bans): %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("RowsAffected: %w", err)
	}
	if n == 0 {
		return ErrBlockNotFound
	}
	return nil
}

func (s *SQLiteUserBanStore) ListBlocked(ctx context.Context, blockerID string) ([]UserBlock, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT blocker_id, blocked_id, banned_at FROM user_bans WHERE blocker_id = @blocker_id ORDER BY banned_at DESC`,
		sql.Named("blocker_id", blockerID))
	if err != nil {
		return nil, fmt.Errorf("QueryContext: %w", err)
	}
	defer rows.Close()

	var blocks []UserBlock
	for rows.Next() {
		var block UserBlock
		if err := rows.Scan(&block.BlockerID, &block.BlockedID, &block.BannedAt); err != nil {
			return nil, fmt.Errorf("scanning block: %w", err)
		}
		blocks = append(blocks, block)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows.Err: %w", err)
	}
	return blocks, nil
}
