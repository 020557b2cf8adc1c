package core

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	// Conversation is a two-party chat. There is no ownership or permission
	// grant concept; both participants have symmetric rights, gated only by
	// the user-to-user block relation.
	Conversation ChatKind = iota + 1
	// Group is a many-party chat with a distinguished owner and per-user
	// permission grants.
	Group
	// Channel is like a group but its members are called subscribers.
	Channel
)

// ChatKind is the closed set of chat variants. A chat's kind is immutable.
type ChatKind int

func (k ChatKind) String() string {
	switch k {
	case Conversation:
		return "conversation"
	case Group:
		return "group"
	case Channel:
		return "channel"
	default:
		return "unknown"
	}
}

const (
	Public Privacy = iota
	Private
)

// Privacy controls whether a group or channel can be joined without an
// invitation. Mutable by the owner or a ManageChatInfo grant holder.
type Privacy int

// Chat is the kind-independent identity of a conversation, group or channel.
type Chat struct {
	ID        string    `json:"id"`
	Kind      ChatKind  `json:"kind"`
	Privacy   Privacy   `json:"privacy"`
	CreatedAt time.Time `json:"created_at"`
}

// ConversationInfo holds the two participants of a conversation chat.
// Its ID is the chat ID.
type ConversationInfo struct {
	ID      string `json:"id"`
	UserID1 string `json:"user_id_1"`
	UserID2 string `json:"user_id_2"`
}

// Other returns the participant that is not userID.
func (c *ConversationInfo) Other(userID string) string {
	if c.UserID1 == userID {
		return c.UserID2
	}
	return c.UserID1
}

// Has reports whether userID is one of the two participants.
func (c *ConversationInfo) Has(userID string) bool {
	return c.UserID1 == userID || c.UserID2 == userID
}

// Member is a membership row of a group or channel.
type Member struct {
	UserID   string    `json:"user_id"`
	JoinedAt time.Time `json:"joined_at"`
}

// GroupInfo is the group-specific half of a chat. Its ID is the chat ID.
type GroupInfo struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	AvatarURL   string   `json:"avatar_url"`
	CreatedByID string   `json:"created_by_id"`
	Members     []Member `json:"members"`
}

func (g *GroupInfo) IsOwner(userID string) bool {
	return g.CreatedByID == userID
}

func (g *GroupInfo) IsMember(userID string) bool {
	for _, m := range g.Members {
		if m.UserID == userID {
			return true
		}
	}
	return false
}

// ChannelInfo is the channel-specific half of a chat. Its ID is the chat ID.
type ChannelInfo struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	AvatarURL   string   `json:"avatar_url"`
	CreatedByID string   `json:"created_by_id"`
	Subscribers []Member `json:"subscribers"`
}

func (c *ChannelInfo) IsOwner(userID string) bool {
	return c.CreatedByID == userID
}

func (c *ChannelInfo) IsSubscriber(userID string) bool {
	for _, s := range c.Subscribers {
		if s.UserID == userID {
			return true
		}
	}
	return false
}

var validate = validator.New()

// ChatStore persists the kind-independent chat identities.
// Lookups return nil, nil when the chat does not exist.
type ChatStore interface {
	// CreateChat inserts a chat identity and returns it with a fresh ID.
	CreateChat(ctx context.Context, kind ChatKind, privacy Privacy) (*Chat, error)

	GetChat(ctx context.Context, chatID string) (*Chat, error)

	UpdatePrivacy(ctx context.Context, chatID string, privacy Privacy) error
}

// MembershipStore persists the kind-specific membership facts of chats.
// Per-kind lookups return nil, nil when the entity does not exist.
type MembershipStore interface {
	// CreateConversation creates the chat identity and the conversation row
	// atomically and returns the new conversation.
	CreateConversation(ctx context.Context, userID1, userID2 string) (*ConversationInfo, error)

	GetConversation(ctx context.Context, chatID string) (*ConversationInfo, error)

	// GetConversationBetween finds the conversation between two users in
	// either participant order.
	GetConversationBetween(ctx context.Context, userA, userB string) (*ConversationInfo, error)

	// DeleteConversation removes the conversation and its chat identity.
	DeleteConversation(ctx context.Context, chatID string) error

	UserConversations(ctx context.Context, userID string) ([]ConversationInfo, error)

	// CreateGroup creates the chat identity, the group row and the owner's
	// membership row atomically and returns the new group.
	CreateGroup(ctx context.Context, name, description, createdByID string, privacy Privacy) (*GroupInfo, error)

	GetGroup(ctx context.Context, chatID string) (*GroupInfo, error)

	AddMember(ctx context.Context, chatID, userID string) error

	RemoveMember(ctx context.Context, chatID, userID string) error

	UserGroups(ctx context.Context, userID string) ([]GroupInfo, error)

	// CreateChannel is the channel counterpart of CreateGroup.
	CreateChannel(ctx context.Context, name, description, createdByID string, privacy Privacy) (*ChannelInfo, error)

	GetChannel(ctx context.Context, chatID string) (*ChannelInfo, error)

	AddSubscriber(ctx context.Context, chatID, userID string) error

	RemoveSubscriber(ctx context.Context, chatID, userID string) error

	UserChannels(ctx context.Context, userID string) ([]ChannelInfo, error)
}

// PresenceRelationSource supplies the raw membership lists that
// PresenceRegistry.RelatedUserIDs traverses. It is intentionally re-queried
// on every call so that a user who just joined a group is immediately
// visible to its members.
type PresenceRelationSource interface {
	// RelatedUserIDs returns the union of: the other party of every
	// conversation the user belongs to, every fellow member of every group
	// the user belongs to plus that group's owner, and every fellow
	// subscriber of every channel the user belongs to plus that channel's
	// owner. The user itself is never included.
	RelatedUserIDs(ctx context.Context, userID string) ([]string, error)
}
