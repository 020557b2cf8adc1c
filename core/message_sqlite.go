package core

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type SQLiteMessageStore struct {
	db *sql.DB
}

func NewSQLiteMessageStore(db *sql.DB) *SQLiteMessageStore {
	return &SQLiteMessageStore{db: db}
}

const messageColumns = `id, chat_id, sender_id, COALESCE(content, ''), COALESCE(file_url, ''),
	COALESCE(reply_id, ''), sent_at, is_seen, seen_at, is_pinned, pinned_at, COALESCE(pinned_by, '')`

func (s *SQLiteMessageStore) CreateMessage(ctx context.Context, m *Message) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.SentAt.IsZero() {
		m.SentAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (id, chat_id, sender_id, content, file_url, reply_id, sent_at, is_seen, is_pinned)
		 VALUES (@id, @chat_id, @sender_id, @content, @file_url, @reply_id, @sent_at, 0, 0)`,
		sql.Named("id", m.ID), sql.Named("chat_id", m.ChatID), sql.Named("sender_id", m.SenderID),
		sql.Named("content", m.Content), sql.Named("file_url", m.FileURL),
		sql.Named("reply_id", nullable(m.ReplyID)), sql.Named("sent_at", m.SentAt))
	if err != nil {
		return fmt.Errorf("ExecContext(insert message): %w", err)
	}
	return nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func (s *SQLiteMessageStore) UpdateMessage(ctx context.Context, m *Message) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE messages SET content = @content, file_url = @file_url, reply_id = @reply_id WHERE id = @id`,
		sql.Named("content", m.Content), sql.Named("file_url", m.FileURL),
		sql.Named("reply_id", nullable(m.ReplyID)), sql.Named("id", m.ID))
	if err != nil {
		return fmt.Errorf("ExecContext(update message): %w", err)
	}
	return nil
}

// DeleteMessage removes the message row. Its notifications and reactions
// cascade with it, and any message replying to it has its reply reference
// set to null.
func (s *SQLiteMessageStore) DeleteMessage(ctx context.Context, messageID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE id = @id`, sql.Named("id", messageID)); err != nil {
		return fmt.Errorf("ExecContext(delete message): %w", err)
	}
	return nil
}

func (s *SQLiteMessageStore) GetMessage(ctx context.Context, messageID string) (*Message, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+messageColumns+` FROM messages WHERE id = @id`,
		sql.Named("id", messageID))

	m, err := scanMessage(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return m, nil
}

func scanMessage(scan func(...any) error) (*Message, error) {
	var m Message
	var seenAt, pinnedAt sql.NullTime
	if err := scan(&m.ID, &m.ChatID, &m.SenderID, &m.Content, &m.FileURL, &m.ReplyID,
		&m.SentAt, &m.IsSeen, &seenAt, &m.IsPinned, &pinnedAt, &m.PinnedByID); err != nil {
		return nil, err
	}
	m.SeenAt = seenAt.Time
	m.PinnedAt = pinnedAt.Time
	return &m, nil
}

func (s *SQLiteMessageStore) queryMessages(ctx context.Context, query string, args ...any) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("QueryContext: %w", err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		m, err := scanMessage(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		messages = append(messages, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows.Err: %w", err)
	}
	return messages, nil
}

func (s *SQLiteMessageStore) ChatMessages(ctx context.Context, chatID string, offset, limit int) ([]Message, error) {
	if limit == 0 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return s.queryMessages(ctx,
		`SELECT `+messageColumns+` FROM messages WHERE chat_id = @chat_id
		 ORDER BY sent_at DESC LIMIT @limit OFFSET @offset`,
		sql.Named("chat_id", chatID), sql.Named("limit", limit), sql.Named("offset", offset))
}

func (s *SQLiteMessageStore) PinnedMessages(ctx context.Context, chatID string) ([]Message, error) {
	return s.queryMessages(ctx,
		`SELECT `+messageColumns+` FROM messages WHERE chat_id = @chat_id AND is_pinned = 1
		 ORDER BY pinned_at DESC`,
		sql.Named("chat_id", chatID))
}

func (s *SQLiteMessageStore) CountPinned(ctx context.Context, chatID string) (int, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM messages WHERE chat_id = @chat_id AND is_pinned = 1`,
		sql.Named("chat_id", chatID))

	var count int
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("scanning count: %w", err)
	}
	return count, nil
}

func (s *SQLiteMessageStore) SetPinned(ctx context.Context, messageID, pinnedByID string, pinned bool, at time.Time) error {
	var err error
	if pinned {
		_, err = s.db.ExecContext(ctx,
			`UPDATE messages SET is_pinned = 1, pinned_at = @at, pinned_by = @pinned_by WHERE id = @id`,
			sql.Named("at", at), sql.Named("pinned_by", pinnedByID), sql.Named("id", messageID))
	} else {
		_, err = s.db.ExecContext(ctx,
			`UPDATE messages SET is_pinned = 0, pinned_at = NULL, pinned_by = NULL WHERE id = @id`,
			sql.Named("id", messageID))
	}
	if err != nil {
		return fmt.Errorf("ExecContext(set pinned): %w", err)
	}
	return nil
}

func (s *SQLiteMessageStore) UnseenMessages(ctx context.Context, chatID, userID string) ([]Message, error) {
	return s.queryMessages(ctx,
		`SELECT `+messageColumns+` FROM messages
		 WHERE chat_id = @chat_id AND sender_id != @user_id AND is_seen = 0
		 ORDER BY sent_at ASC`,
		sql.Named("chat_id", chatID), sql.Named("user_id", userID))
}

// MarkSeenBatch takes one snapshot of the unseen message IDs, then updates
// the messages and the matching notification records from that same
// snapshot inside a single transaction.
func (s *SQLiteMessageStore) MarkSeenBatch(ctx context.Context, chatID, userID string) ([]string, time.Time, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("BeginTx: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx,
		`SELECT id FROM messages WHERE chat_id = @chat_id AND sender_id != @user_id AND is_seen = 0`,
		sql.Named("chat_id", chatID), sql.Named("user_id", userID))
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("QueryContext(unseen ids): %w", err)
	}

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, time.Time{}, fmt.Errorf("scanning message id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, time.Time{}, fmt.Errorf("rows.Err: %w", err)
	}
	rows.Close()

	seenAt := time.Now().UTC()
	if len(ids) == 0 {
		return nil, seenAt, nil
	}

	placeholders := strings.Repeat("?,", len(ids)-1) + "?"
	args := make([]any, 0, len(ids)+1)
	args = append(args, seenAt)
	for _, id := range ids {
		args = append(args, id)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE messages SET is_seen = 1, seen_at = ? WHERE id IN (`+placeholders+`)`,
		args...); err != nil {
		return nil, time.Time{}, fmt.Errorf("ExecContext(mark messages seen): %w", err)
	}

	notifArgs := make([]any, 0, len(ids)+1)
	for _, id := range ids {
		notifArgs = append(notifArgs, id)
	}
	notifArgs = append(notifArgs, userID)

	if _, err := tx.ExecContext(ctx,
		`UPDATE notifications SET is_seen = 1 WHERE message_id IN (`+placeholders+`) AND receiver_id = ?`,
		notifArgs...); err != nil {
		return nil, time.Time{}, fmt.Errorf("ExecContext(mark notifications seen): %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, time.Time{}, fmt.Errorf("Commit: %w", err)
	}

	return ids, seenAt, nil
}

func (s *SQLiteMessageStore) CreateNotifications(ctx context.Context, messageID string, receiverIDs []string) error {
	if len(receiverIDs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("BeginTx: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	for _, receiverID := range receiverIDs {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO notifications (id, message_id, receiver_id, is_seen, created_at)
			 VALUES (@id, @message_id, @receiver_id, 0, @created_at)
			 ON CONFLICT DO NOTHING`,
			sql.Named("id", uuid.New().String()), sql.Named("message_id", messageID),
			sql.Named("receiver_id", receiverID), sql.Named("created_at", now))
		if err != nil {
			return fmt.Errorf("ExecContext(insert notification): %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("Commit: %w", err)
	}
	return nil
}

func (s *SQLiteMessageStore) UnseenNotifications(ctx context.Context, userID string) ([]Notification, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, message_id, receiver_id, is_seen, created_at FROM notifications
		 WHERE receiver_id = @receiver_id AND is_seen = 0 ORDER BY created_at DESC`,
		sql.Named("receiver_id", userID))
	if err != nil {
		return nil, fmt.Errorf("QueryContext: %w", err)
	}
	defer rows.Close()

	var notifs []Notification
	for rows.Next() {
		var n Notification
		if err := rows.Scan(&n.ID, &n.MessageID, &n.ReceiverID, &n.IsSeen, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning notification: %w", err)
		}
		notifs = append(notifs, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows.Err: %w", err)
	}
	return notifs, nil
}

func (s *SQLiteMessageStore) AddReaction(ctx context.Context, messageID, userID, keyword string) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO message_reactions (message_id, user_id, keyword, reacted_at)
		 VALUES (@message_id, @user_id, @keyword, @reacted_at)
		 ON CONFLICT DO NOTHING`,
		sql.Named("message_id", messageID), sql.Named("user_id", userID),
		sql.Named("keyword", keyword), sql.Named("reacted_at", time.Now().UTC()))
	if err != nil {
		return fmt.Errorf("ExecContext(insert reaction): %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("RowsAffected: %w", err)
	}
	if n == 0 {
		return ErrAlreadyReacted
	}
	return nil
}

func (s *SQLiteMessageStore) RemoveReaction(ctx context.Context, messageID, userID, keyword string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM message_reactions
		 WHERE message_id = @message_id AND user_id = @user_id AND keyword = @keyword`,
		sql.Named("message_id", messageID), sql.Named("user_id", userID),
		sql.Named("keyword", keyword))
	if err != nil {
		return fmt.Errorf("ExecContext(delete reaction): %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("RowsAffected: %w", err)
	}
	if n == 0 {
		return ErrReactionNotFound
	}
	return nil
}

func (s *SQLiteMessageStore) ListReactions(ctx context.Context, messageID string) ([]Reaction, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT message_id, user_id, keyword, reacted_at FROM message_reactions
		 WHERE message_id = @message_id ORDER BY reacted_at ASC`,
		sql.Named("message_id", messageID))
	if err != nil {
		return nil, fmt.Errorf("QueryContext: %w", err)
	}
	defer rows.Close()

	var reactions []Reaction
	for rows.Next() {
		var r Reaction
		if err := rows.Scan(&r.MessageID, &r.UserID, &r.Keyword, &r.ReactedAt); err != nil {
			return nil, fmt.Errorf("scanning reaction: %w", err)
		}
		reactions = append(reactions, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows.Err: %w", err)
	}
	return reactions, nil
}
