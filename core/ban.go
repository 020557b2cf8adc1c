package core

import (
	"context"
	"time"
)

// ChatBan prevents a user from being a member of, or acting in, a specific
// chat until it is removed. Unique per (chat, user).
type ChatBan struct {
	ChatID   string    `json:"chat_id"`
	UserID   string    `json:"user_id"`
	BannedAt time.Time `json:"banned_at"`
}

type ChatBanStore interface {
	IsBanned(ctx context.Context, chatID, userID string) (bool, error)

	// CreateBan inserts a ban. It returns ErrAlreadyBanned when the user is
	// already banned from the chat.
	CreateBan(ctx context.Context, chatID, userID string) error

	// DeleteBan removes a ban. It returns ErrBanNotFound when no ban exists.
	DeleteBan(ctx context.Context, chatID, userID string) error

	ListBans(ctx context.Context, chatID string) ([]ChatBan, error)
}

// UserBlock is a directional user-to-user ban. Messaging between the two
// users is disallowed in either direction until the blocker removes it.
// It is deliberately kept distinct from ChatBan: the two relations have
// different invariants (only chat bans have an unbannable owner).
type UserBlock struct {
	BlockerID string    `json:"blocker_id"`
	BlockedID string    `json:"blocked_id"`
	BannedAt  time.Time `json:"banned_at"`
}

type UserBanStore interface {
	// IsBlocked reports whether blockerID has blocked blockedID.
	IsBlocked(ctx context.Context, blockerID, blockedID string) (bool, error)

	// CreateBlock inserts a block. It returns ErrAlreadyBlocked when the
	// blocker has already blocked the user.
	CreateBlock(ctx context.Context, blockerID, blockedID string) error

	// DeleteBlock removes a block. It returns ErrBlockNotFound when no
	// block exists.
	DeleteBlock(ctx context.Context, blockerID, blockedID string) error

	ListBlocked(ctx context.Context, blockerID string) ([]UserBlock, error)
}
