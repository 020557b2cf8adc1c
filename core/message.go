package core

import (
	"context"
	"time"
)

// MaxPinnedMessages bounds the number of pinned messages per chat.
// Pin attempts beyond the bound are rejected, not queued.
const MaxPinnedMessages = 50

// Message belongs to a chat. Content and FileURL are both optional but at
// least one must be set. Pin state is orthogonal to edits.
type Message struct {
	ID       string    `json:"id"`
	ChatID   string    `json:"chat_id"`
	SenderID string    `json:"sender_id"`
	Content  string    `json:"content,omitempty"`
	FileURL  string    `json:"file_url,omitempty"`
	ReplyID  string    `json:"reply_id,omitempty"`
	SentAt   time.Time `json:"sent_at"`

	IsSeen bool      `json:"is_seen"`
	SeenAt time.Time `json:"seen_at,omitempty"`

	IsPinned   bool      `json:"is_pinned"`
	PinnedAt   time.Time `json:"pinned_at,omitempty"`
	PinnedByID string    `json:"pinned_by_id,omitempty"`
}

// Notification is the durable per-recipient record of a message event,
// used for unseen-count tracking. Delivery over live connections is
// best-effort; this record is the fallback.
type Notification struct {
	ID         string    `json:"id"`
	MessageID  string    `json:"message_id"`
	ReceiverID string    `json:"receiver_id"`
	IsSeen     bool      `json:"is_seen"`
	CreatedAt  time.Time `json:"created_at"`
}

// Reaction is a keyword reaction to a message, unique per
// (message, user, keyword).
type Reaction struct {
	MessageID string    `json:"message_id"`
	UserID    string    `json:"user_id"`
	Keyword   string    `json:"keyword"`
	ReactedAt time.Time `json:"reacted_at"`
}

type MessageStore interface {
	CreateMessage(ctx context.Context, m *Message) error

	// UpdateMessage overwrites content, file URL and reply of an existing
	// message.
	UpdateMessage(ctx context.Context, m *Message) error

	DeleteMessage(ctx context.Context, messageID string) error

	// GetMessage returns nil, nil when the message does not exist.
	GetMessage(ctx context.Context, messageID string) (*Message, error)

	// ChatMessages returns messages of a chat in descending sent order.
	// A zero limit defaults to 100.
	ChatMessages(ctx context.Context, chatID string, offset, limit int) ([]Message, error)

	PinnedMessages(ctx context.Context, chatID string) ([]Message, error)

	CountPinned(ctx context.Context, chatID string) (int, error)

	// SetPinned flips the pin state of a message.
	SetPinned(ctx context.Context, messageID, pinnedByID string, pinned bool, at time.Time) error

	UnseenMessages(ctx context.Context, chatID, userID string) ([]Message, error)

	// MarkSeenBatch marks every unseen message of the chat not sent by the
	// user as seen with a shared timestamp, and flips the matching
	// notification records in the same transaction. Both updates use the
	// same snapshot of unseen message IDs, which is returned.
	MarkSeenBatch(ctx context.Context, chatID, userID string) ([]string, time.Time, error)

	// CreateNotifications inserts one notification record per receiver for
	// the message.
	CreateNotifications(ctx context.Context, messageID string, receiverIDs []string) error

	UnseenNotifications(ctx context.Context, userID string) ([]Notification, error)

	// AddReaction inserts a reaction. It returns ErrAlreadyReacted when the
	// (message, user, keyword) triple already exists.
	AddReaction(ctx context.Context, messageID, userID, keyword string) error

	// RemoveReaction removes a reaction. It returns ErrReactionNotFound
	// when the triple does not exist.
	RemoveReaction(ctx context.Context, messageID, userID, keyword string) error

	ListReactions(ctx context.Context, messageID string) ([]Reaction, error)
}
