package core

import (
	"context"
	"fmt"
	"time"
)

// MessageSendInput is the payload of a send. Exactly one of ChatID and
// ReceiverID must be set: ChatID targets an existing chat, ReceiverID targets
// a user and finds or creates the conversation between the two.
type MessageSendInput struct {
	ChatID     string `json:"chat_id,omitempty"`
	ReceiverID string `json:"receiver_id,omitempty"`
	Content    string `json:"content,omitempty" validate:"required_without=FileURL,omitempty,max=4096"`
	FileURL    string `json:"file_url,omitempty" validate:"required_without=Content,omitempty,url"`
	ReplyID    string `json:"reply_id,omitempty"`
}

func (in *MessageSendInput) Validate() error {
	if (in.ChatID == "") == (in.ReceiverID == "") {
		return NewError(KindInvalidState, "exactly one of chat_id and receiver_id must be set")
	}
	if err := validate.Struct(in); err != nil {
		return NewError(KindInvalidState, err.Error())
	}
	return nil
}

// SendResult carries the created message plus the conversation when the send
// was a first contact and created one.
type SendResult struct {
	Message         *Message          `json:"message"`
	Conversation    *ConversationInfo `json:"conversation,omitempty"`
	NewConversation bool              `json:"new_conversation"`
}

// MessageLifecycle orchestrates sending, editing, pinning, seen tracking and
// reactions. Every mutation is authorized through the guard and announced
// through the fanout.
type MessageLifecycle struct {
	chats       ChatStore
	memberships MembershipStore
	messages    MessageStore
	users       UserStore
	guard       *MembershipGuard
	resolver    *PermissionResolver
	fanout      *NotificationFanout
}

func NewMessageLifecycle(
	chats ChatStore,
	memberships MembershipStore,
	messages MessageStore,
	users UserStore,
	guard *MembershipGuard,
	resolver *PermissionResolver,
	fanout *NotificationFanout,
) *MessageLifecycle {
	return &MessageLifecycle{
		chats:       chats,
		memberships: memberships,
		messages:    messages,
		users:       users,
		guard:       guard,
		resolver:    resolver,
		fanout:      fanout,
	}
}

// Send delivers a message into a chat. When the input targets a user instead
// of a chat, the conversation between sender and receiver is looked up and
// created on first contact. The block relation is checked before any
// conversation is created, so a blocked first contact leaves nothing behind.
func (l *MessageLifecycle) Send(ctx context.Context, senderID string, in *MessageSendInput) (*SendResult, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	var chat *Chat
	var conv *ConversationInfo
	newConversation := false

	if in.ReceiverID != "" {
		var err error
		chat, conv, newConversation, err = l.resolveConversation(ctx, senderID, in.ReceiverID)
		if err != nil {
			return nil, err
		}
	} else {
		var err error
		chat, err = l.guard.Chat(ctx, in.ChatID)
		if err != nil {
			return nil, err
		}
		if err := l.guard.CanSendMessage(ctx, chat, senderID); err != nil {
			return nil, err
		}
	}

	if in.ReplyID != "" {
		reply, err := l.messages.GetMessage(ctx, in.ReplyID)
		if err != nil {
			return nil, fmt.Errorf("GetMessage(reply): %w", err)
		}
		if reply == nil || reply.ChatID != chat.ID {
			return nil, ErrMessageNotFound
		}
	}

	m := &Message{
		ChatID:   chat.ID,
		SenderID: senderID,
		Content:  in.Content,
		FileURL:  in.FileURL,
		ReplyID:  in.ReplyID,
	}
	if err := l.messages.CreateMessage(ctx, m); err != nil {
		return nil, fmt.Errorf("CreateMessage: %w", err)
	}

	recipients, err := l.fanout.RecipientsFor(ctx, chat, senderID)
	if err != nil {
		return nil, err
	}
	if err := l.messages.CreateNotifications(ctx, m.ID, recipients); err != nil {
		return nil, fmt.Errorf("CreateNotifications: %w", err)
	}

	if newConversation {
		l.fanout.Dispatch(EventConversationCreated, conv, recipients)
	}
	l.fanout.Dispatch(EventMessageSent, m, recipients)

	return &SendResult{Message: m, Conversation: conv, NewConversation: newConversation}, nil
}

// resolveConversation finds or creates the conversation between sender and
// receiver. Block checks come first: a receiver-side block denies, a
// sender-side block demands an unblock, and neither leaves a conversation
// behind on first contact.
func (l *MessageLifecycle) resolveConversation(ctx context.Context, senderID, receiverID string) (*Chat, *ConversationInfo, bool, error) {
	if senderID == receiverID {
		return nil, nil, false, ErrSelfAction
	}

	receiver, err := l.users.GetUserByID(ctx, receiverID)
	if err != nil {
		return nil, nil, false, fmt.Errorf("GetUserByID: %w", err)
	}
	if receiver == nil {
		return nil, nil, false, ErrUserNotFound
	}

	if err := l.guard.checkBlocks(ctx, senderID, receiverID); err != nil {
		return nil, nil, false, err
	}

	conv, err := l.memberships.GetConversationBetween(ctx, senderID, receiverID)
	if err != nil {
		return nil, nil, false, fmt.Errorf("GetConversationBetween: %w", err)
	}

	created := false
	if conv == nil {
		conv, err = l.memberships.CreateConversation(ctx, senderID, receiverID)
		if err != nil {
			return nil, nil, false, fmt.Errorf("CreateConversation: %w", err)
		}
		created = true
	}

	chat, err := l.guard.Chat(ctx, conv.ID)
	if err != nil {
		return nil, nil, false, err
	}
	return chat, conv, created, nil
}

func (l *MessageLifecycle) message(ctx context.Context, messageID string) (*Message, *Chat, error) {
	m, err := l.messages.GetMessage(ctx, messageID)
	if err != nil {
		return nil, nil, fmt.Errorf("GetMessage: %w", err)
	}
	if m == nil {
		return nil, nil, ErrMessageNotFound
	}
	chat, err := l.guard.Chat(ctx, m.ChatID)
	if err != nil {
		return nil, nil, err
	}
	return m, chat, nil
}

// Edit overwrites a message's content, file and reply. Only the sender or a
// ManageMessages grant holder may edit. An empty replyID clears the reply;
// a non-empty one must name a message in the same chat.
func (l *MessageLifecycle) Edit(ctx context.Context, actorID, messageID, content, fileURL, replyID string) (*Message, error) {
	m, chat, err := l.message(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if err := l.guard.CanManageMessages(ctx, chat, actorID, m); err != nil {
		return nil, err
	}
	if content == "" && fileURL == "" {
		return nil, NewError(KindInvalidState, "a message needs content or a file")
	}
	if replyID != "" && replyID != m.ReplyID {
		reply, err := l.messages.GetMessage(ctx, replyID)
		if err != nil {
			return nil, fmt.Errorf("GetMessage(reply): %w", err)
		}
		if reply == nil || reply.ChatID != chat.ID || reply.ID == m.ID {
			return nil, ErrMessageNotFound
		}
	}

	m.Content = content
	m.FileURL = fileURL
	m.ReplyID = replyID
	if err := l.messages.UpdateMessage(ctx, m); err != nil {
		return nil, fmt.Errorf("UpdateMessage: %w", err)
	}

	if err := l.fanout.DispatchToChat(ctx, chat, actorID, EventMessageEdited, m); err != nil {
		return nil, err
	}
	return m, nil
}

// Delete removes a message together with its notifications and reactions.
func (l *MessageLifecycle) Delete(ctx context.Context, actorID, messageID string) error {
	m, chat, err := l.message(ctx, messageID)
	if err != nil {
		return err
	}
	if err := l.guard.CanManageMessages(ctx, chat, actorID, m); err != nil {
		return err
	}
	if err := l.messages.DeleteMessage(ctx, m.ID); err != nil {
		return fmt.Errorf("DeleteMessage: %w", err)
	}
	return l.fanout.DispatchToChat(ctx, chat, actorID, EventMessageDeleted, m)
}

// Pin pins a message. The per-chat pin count is bounded; pins beyond the
// bound are rejected.
func (l *MessageLifecycle) Pin(ctx context.Context, actorID, messageID string) (*Message, error) {
	m, chat, err := l.message(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if err := l.guard.CanPinMessage(ctx, chat, actorID); err != nil {
		return nil, err
	}
	if m.IsPinned {
		return nil, ErrAlreadyPinned
	}

	count, err := l.messages.CountPinned(ctx, chat.ID)
	if err != nil {
		return nil, fmt.Errorf("CountPinned: %w", err)
	}
	if count >= MaxPinnedMessages {
		return nil, ErrPinLimitReached
	}

	now := time.Now().UTC()
	if err := l.messages.SetPinned(ctx, m.ID, actorID, true, now); err != nil {
		return nil, fmt.Errorf("SetPinned: %w", err)
	}
	m.IsPinned = true
	m.PinnedAt = now
	m.PinnedByID = actorID

	if err := l.fanout.DispatchToChat(ctx, chat, actorID, EventMessagePinned, m); err != nil {
		return nil, err
	}
	return m, nil
}

func (l *MessageLifecycle) Unpin(ctx context.Context, actorID, messageID string) (*Message, error) {
	m, chat, err := l.message(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if err := l.guard.CanPinMessage(ctx, chat, actorID); err != nil {
		return nil, err
	}
	if !m.IsPinned {
		return nil, ErrNotPinned
	}

	if err := l.messages.SetPinned(ctx, m.ID, "", false, time.Time{}); err != nil {
		return nil, fmt.Errorf("SetPinned: %w", err)
	}
	m.IsPinned = false
	m.PinnedAt = time.Time{}
	m.PinnedByID = ""

	if err := l.fanout.DispatchToChat(ctx, chat, actorID, EventMessageUnpinned, m); err != nil {
		return nil, err
	}
	return m, nil
}

// SeenReceipt is the payload of a messages_seen event.
type SeenReceipt struct {
	ChatID     string    `json:"chat_id"`
	UserID     string    `json:"user_id"`
	MessageIDs []string  `json:"message_ids"`
	SeenAt     time.Time `json:"seen_at"`
}

// MarkSeen marks every unseen message in the chat as seen by the user and
// tells the other members. Membership is the only requirement.
func (l *MessageLifecycle) MarkSeen(ctx context.Context, userID, chatID string) (*SeenReceipt, error) {
	chat, err := l.guard.Chat(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if err := l.guard.CanViewChat(ctx, chat, userID); err != nil {
		return nil, err
	}

	ids, seenAt, err := l.messages.MarkSeenBatch(ctx, chat.ID, userID)
	if err != nil {
		return nil, fmt.Errorf("MarkSeenBatch: %w", err)
	}

	receipt := &SeenReceipt{ChatID: chat.ID, UserID: userID, MessageIDs: ids, SeenAt: seenAt}
	if len(ids) > 0 {
		if err := l.fanout.DispatchToChat(ctx, chat, userID, EventMessagesSeen, receipt); err != nil {
			return nil, err
		}
	}
	return receipt, nil
}

// React adds a keyword reaction. Any member of the chat may react.
func (l *MessageLifecycle) React(ctx context.Context, actorID, messageID, keyword string) error {
	if keyword == "" {
		return NewError(KindInvalidState, "reaction keyword is required")
	}
	m, chat, err := l.message(ctx, messageID)
	if err != nil {
		return err
	}
	if err := l.guard.CanViewChat(ctx, chat, actorID); err != nil {
		return err
	}
	if err := l.messages.AddReaction(ctx, m.ID, actorID, keyword); err != nil {
		return fmt.Errorf("AddReaction: %w", err)
	}
	return l.fanout.DispatchToChat(ctx, chat, actorID, EventMessageReacted,
		&Reaction{MessageID: m.ID, UserID: actorID, Keyword: keyword})
}

func (l *MessageLifecycle) Unreact(ctx context.Context, actorID, messageID, keyword string) error {
	m, chat, err := l.message(ctx, messageID)
	if err != nil {
		return err
	}
	if err := l.messages.RemoveReaction(ctx, m.ID, actorID, keyword); err != nil {
		return fmt.Errorf("RemoveReaction: %w", err)
	}
	return l.fanout.DispatchToChat(ctx, chat, actorID, EventMessageUnreacted,
		&Reaction{MessageID: m.ID, UserID: actorID, Keyword: keyword})
}

// Messages lists a chat's messages for a member, newest first.
func (l *MessageLifecycle) Messages(ctx context.Context, userID, chatID string, offset, limit int) ([]Message, error) {
	chat, err := l.guard.Chat(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if err := l.guard.CanViewChat(ctx, chat, userID); err != nil {
		return nil, err
	}
	return l.messages.ChatMessages(ctx, chat.ID, offset, limit)
}

func (l *MessageLifecycle) Pinned(ctx context.Context, userID, chatID string) ([]Message, error) {
	chat, err := l.guard.Chat(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if err := l.guard.CanViewChat(ctx, chat, userID); err != nil {
		return nil, err
	}
	return l.messages.PinnedMessages(ctx, chat.ID)
}

func (l *MessageLifecycle) UnseenNotifications(ctx context.Context, userID string) ([]Notification, error) {
	return l.messages.UnseenNotifications(ctx, userID)
}

func (l *MessageLifecycle) Reactions(ctx context.Context, userID, messageID string) ([]Reaction, error) {
	m, chat, err := l.message(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if err := l.guard.CanViewChat(ctx, chat, userID); err != nil {
		return nil, err
	}
	return l.messages.ListReactions(ctx, m.ID)
}
