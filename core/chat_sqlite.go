package core

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SQLiteChatStore implements ChatStore, MembershipStore and
// PresenceRelationSource over a single database handle.
type SQLiteChatStore struct {
	db *sql.DB
}

func NewSQLiteChatStore(db *sql.DB) *SQLiteChatStore {
	return &SQLiteChatStore{db: db}
}

func (s *SQLiteChatStore) CreateChat(ctx context.Context, kind ChatKind, privacy Privacy) (*Chat, error) {
	chat := &Chat{
		ID:        uuid.New().String(),
		Kind:      kind,
		Privacy:   privacy,
		CreatedAt: time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chats (id, kind, privacy, created_at) VALUES (@id, @kind, @privacy, @created_at)`,
		sql.Named("id", chat.ID), sql.Named("kind", int(chat.Kind)),
		sql.Named("privacy", int(chat.Privacy)), sql.Named("created_at", chat.CreatedAt))
	if err != nil {
		return nil, fmt.Errorf("ExecContext(insert chat): %w", err)
	}
	return chat, nil
}

func (s *SQLiteChatStore) GetChat(ctx context.Context, chatID string) (*Chat, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, kind, privacy, created_at FROM chats WHERE id = @id`,
		sql.Named("id", chatID))

	var chat Chat
	var kind, privacy int
	if err := row.Scan(&chat.ID, &kind, &privacy, &chat.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scanning chat: %w", err)
	}
	chat.Kind = ChatKind(kind)
	chat.Privacy = Privacy(privacy)
	return &chat, nil
}

func (s *SQLiteChatStore) UpdatePrivacy(ctx context.Context, chatID string, privacy Privacy) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE chats SET privacy = @privacy WHERE id = @id`,
		sql.Named("privacy", int(privacy)), sql.Named("id", chatID))
	if err != nil {
		return fmt.Errorf("ExecContext(update privacy): %w", err)
	}
	return nil
}

func (s *SQLiteChatStore) CreateConversation(ctx context.Context, userID1, userID2 string) (*ConversationInfo, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("BeginTx: %w", err)
	}
	defer tx.Rollback()

	id := uuid.New().String()
	_, err = tx.ExecContext(ctx,
		`INSERT INTO chats (id, kind, privacy, created_at) VALUES (@id, @kind, @privacy, @created_at)`,
		sql.Named("id", id), sql.Named("kind", int(Conversation)),
		sql.Named("privacy", int(Private)), sql.Named("created_at", time.Now().UTC()))
	if err != nil {
		return nil, fmt.Errorf("ExecContext(insert chat): %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO conversations (id, user_id_1, user_id_2) VALUES (@id, @user_id_1, @user_id_2)`,
		sql.Named("id", id), sql.Named("user_id_1", userID1), sql.Named("user_id_2", userID2))
	if err != nil {
		return nil, fmt.Errorf("ExecContext(insert conversation): %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("Commit: %w", err)
	}

	return &ConversationInfo{ID: id, UserID1: userID1, UserID2: userID2}, nil
}

func (s *SQLiteChatStore) GetConversation(ctx context.Context, chatID string) (*ConversationInfo, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_id_1, user_id_2 FROM conversations WHERE id = @id`,
		sql.Named("id", chatID))
	return scanConversation(row)
}

func (s *SQLiteChatStore) GetConversationBetween(ctx context.Context, userA, userB string) (*ConversationInfo, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_id_1, user_id_2 FROM conversations
		 WHERE (user_id_1 = @a AND user_id_2 = @b) OR (user_id_1 = @b AND user_id_2 = @a)`,
		sql.Named("a", userA), sql.Named("b", userB))
	return scanConversation(row)
}

func scanConversation(row *sql.Row) (*ConversationInfo, error) {
	var conv ConversationInfo
	if err := row.Scan(&conv.ID, &conv.UserID1, &conv.UserID2); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scanning conversation: %w", err)
	}
	return &conv, nil
}

// DeleteConversation removes the chat row. The conversation row, its
// messages with their notifications and reactions, and any chat-scoped ban
// or permission rows cascade with it.
func (s *SQLiteChatStore) DeleteConversation(ctx context.Context, chatID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM chats WHERE id = @id`, sql.Named("id", chatID))
	if err != nil {
		return fmt.Errorf("ExecContext(delete chat): %w", err)
	}
	return nil
}

func (s *SQLiteChatStore) UserConversations(ctx context.Context, userID string) ([]ConversationInfo, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id_1, user_id_2 FROM conversations
		 WHERE user_id_1 = @user_id OR user_id_2 = @user_id`,
		sql.Named("user_id", userID))
	if err != nil {
		return nil, fmt.Errorf("QueryContext: %w", err)
	}
	defer rows.Close()

	var convs []ConversationInfo
	for rows.Next() {
		var conv ConversationInfo
		if err := rows.Scan(&conv.ID, &conv.UserID1, &conv.UserID2); err != nil {
			return nil, fmt.Errorf("scanning conversation: %w", err)
		}
		convs = append(convs, conv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows.Err: %w", err)
	}
	return convs, nil
}

func (s *SQLiteChatStore) CreateGroup(ctx context.Context, name, description, createdByID string, privacy Privacy) (*GroupInfo, error) {
	id, members, err := s.createOwnedChat(ctx, Group, "groups", "group_members", name, description, createdByID, privacy)
	if err != nil {
		return nil, err
	}
	return &GroupInfo{
		ID: id, Name: name, Description: description,
		CreatedByID: createdByID, Members: members,
	}, nil
}

func (s *SQLiteChatStore) CreateChannel(ctx context.Context, name, description, createdByID string, privacy Privacy) (*ChannelInfo, error) {
	id, subscribers, err := s.createOwnedChat(ctx, Channel, "channels", "channel_subscribers", name, description, createdByID, privacy)
	if err != nil {
		return nil, err
	}
	return &ChannelInfo{
		ID: id, Name: name, Description: description,
		CreatedByID: createdByID, Subscribers: subscribers,
	}, nil
}

// createOwnedChat creates the chat identity, the group/channel row and the
// owner's membership row in one transaction.
func (s *SQLiteChatStore) createOwnedChat(ctx context.Context, kind ChatKind, table, memberTable, name, description, createdByID string, privacy Privacy) (string, []Member, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", nil, fmt.Errorf("BeginTx: %w", err)
	}
	defer tx.Rollback()

	id := uuid.New().String()
	now := time.Now().UTC()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO chats (id, kind, privacy, created_at) VALUES (@id, @kind, @privacy, @created_at)`,
		sql.Named("id", id), sql.Named("kind", int(kind)),
		sql.Named("privacy", int(privacy)), sql.Named("created_at", now))
	if err != nil {
		return "", nil, fmt.Errorf("ExecContext(insert chat): %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO `+table+` (id, name, description, created_by) VALUES (@id, @name, @description, @created_by)`,
		sql.Named("id", id), sql.Named("name", name),
		sql.Named("description", description), sql.Named("created_by", createdByID))
	if err != nil {
		return "", nil, fmt.Errorf("ExecContext(insert %s): %w", table, err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO `+memberTable+` (chat_id, user_id, joined_at) VALUES (@chat_id, @user_id, @joined_at)`,
		sql.Named("chat_id", id), sql.Named("user_id", createdByID), sql.Named("joined_at", now))
	if err != nil {
		return "", nil, fmt.Errorf("ExecContext(insert %s): %w", memberTable, err)
	}

	if err := tx.Commit(); err != nil {
		return "", nil, fmt.Errorf("Commit: %w", err)
	}

	return id, []Member{{UserID: createdByID, JoinedAt: now}}, nil
}

func (s *SQLiteChatStore) GetGroup(ctx context.Context, chatID string) (*GroupInfo, error) {
	id, name, description, avatarURL, createdBy, members, err := s.getOwnedChat(ctx, "groups", "group_members", chatID)
	if err != nil || id == "" {
		return nil, err
	}
	return &GroupInfo{
		ID: id, Name: name, Description: description, AvatarURL: avatarURL,
		CreatedByID: createdBy, Members: members,
	}, nil
}

func (s *SQLiteChatStore) GetChannel(ctx context.Context, chatID string) (*ChannelInfo, error) {
	id, name, description, avatarURL, createdBy, subscribers, err := s.getOwnedChat(ctx, "channels", "channel_subscribers", chatID)
	if err != nil || id == "" {
		return nil, err
	}
	return &ChannelInfo{
		ID: id, Name: name, Description: description, AvatarURL: avatarURL,
		CreatedByID: createdBy, Subscribers: subscribers,
	}, nil
}

func (s *SQLiteChatStore) getOwnedChat(ctx context.Context, table, memberTable, chatID string) (id, name, description, avatarURL, createdBy string, members []Member, err error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT g.id, g.name, g.description, COALESCE(g.avatar_url, ''), g.created_by, m.user_id, m.joined_at
		 FROM `+table+` AS g
		 LEFT JOIN `+memberTable+` AS m ON g.id = m.chat_id
		 WHERE g.id = @id`,
		sql.Named("id", chatID))
	if err != nil {
		err = fmt.Errorf("QueryContext: %w", err)
		return
	}
	defer rows.Close()

	for rows.Next() {
		var userID sql.NullString
		var joinedAt sql.NullTime
		if err = rows.Scan(&id, &name, &description, &avatarURL, &createdBy, &userID, &joinedAt); err != nil {
			err = fmt.Errorf("scanning %s: %w", table, err)
			return
		}
		if userID.Valid {
			members = append(members, Member{UserID: userID.String, JoinedAt: joinedAt.Time})
		}
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		err = fmt.Errorf("rows.Err: %w", rowsErr)
	}
	return
}

func (s *SQLiteChatStore) AddMember(ctx context.Context, chatID, userID string) error {
	return s.addMemberRow(ctx, "group_members", chatID, userID)
}

func (s *SQLiteChatStore) AddSubscriber(ctx context.Context, chatID, userID string) error {
	return s.addMemberRow(ctx, "channel_subscribers", chatID, userID)
}

func (s *SQLiteChatStore) addMemberRow(ctx context.Context, memberTable, chatID, userID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO `+memberTable+` (chat_id, user_id, joined_at) VALUES (@chat_id, @user_id, @joined_at)
		 ON CONFLICT DO NOTHING`,
		sql.Named("chat_id", chatID), sql.Named("user_id", userID),
		sql.Named("joined_at", time.Now().UTC()))
	if err != nil {
		return fmt.Errorf("ExecContext(insert %s): %w", memberTable, err)
	}
	return nil
}

func (s *SQLiteChatStore) RemoveMember(ctx context.Context, chatID, userID string) error {
	return s.removeMemberRow(ctx, "group_members", chatID, userID)
}

func (s *SQLiteChatStore) RemoveSubscriber(ctx context.Context, chatID, userID string) error {
	return s.removeMemberRow(ctx, "channel_subscribers", chatID, userID)
}

func (s *SQLiteChatStore) removeMemberRow(ctx context.Context, memberTable, chatID, userID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM `+memberTable+` WHERE chat_id = @chat_id AND user_id = @user_id`,
		sql.Named("chat_id", chatID), sql.Named("user_id", userID))
	if err != nil {
		return fmt.Errorf("ExecContext(delete %s): %w", memberTable, err)
	}
	return nil
}

func (s *SQLiteChatStore) UserGroups(ctx context.Context, userID string) ([]GroupInfo, error) {
	ids, err := s.memberChatIDs(ctx, "group_members", userID)
	if err != nil {
		return nil, err
	}
	groups := make([]GroupInfo, 0, len(ids))
	for _, id := range ids {
		group, err := s.GetGroup(ctx, id)
		if err != nil {
			return nil, err
		}
		if group != nil {
			groups = append(groups, *group)
		}
	}
	return groups, nil
}

func (s *SQLiteChatStore) UserChannels(ctx context.Context, userID string) ([]ChannelInfo, error) {
	ids, err := s.memberChatIDs(ctx, "channel_subscribers", userID)
	if err != nil {
		return nil, err
	}
	channels := make([]ChannelInfo, 0, len(ids))
	for _, id := range ids {
		channel, err := s.GetChannel(ctx, id)
		if err != nil {
			return nil, err
		}
		if channel != nil {
			channels = append(channels, *channel)
		}
	}
	return channels, nil
}

func (s *SQLiteChatStore) memberChatIDs(ctx context.Context, memberTable, userID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT chat_id FROM `+memberTable+` WHERE user_id = @user_id`,
		sql.Named("user_id", userID))
	if err != nil {
		return nil, fmt.Errorf("QueryContext: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning chat id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows.Err: %w", err)
	}
	return ids, nil
}

// RelatedUserIDs unions conversation partners, fellow group members plus
// group owners, and fellow channel subscribers plus channel owners. It is
// evaluated against the live tables on every call.
func (s *SQLiteChatStore) RelatedUserIDs(ctx context.Context, userID string) ([]string, error) {
	related := make(map[string]struct{})

	convs, err := s.UserConversations(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("UserConversations: %w", err)
	}
	for _, conv := range convs {
		related[conv.Other(userID)] = struct{}{}
	}

	groups, err := s.UserGroups(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("UserGroups: %w", err)
	}
	for _, group := range groups {
		for _, m := range group.Members {
			related[m.UserID] = struct{}{}
		}
		related[group.CreatedByID] = struct{}{}
	}

	channels, err := s.UserChannels(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("UserChannels: %w", err)
	}
	for _, channel := range channels {
		for _, sub := range channel.Subscribers {
			related[sub.UserID] = struct{}{}
		}
		related[channel.CreatedByID] = struct{}{}
	}

	delete(related, userID)

	ids := make([]string, 0, len(related))
	for id := range related {
		ids = append(ids, id)
	}
	return ids, nil
}
