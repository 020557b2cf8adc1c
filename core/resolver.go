package core

import (
	"context"
	"fmt"
)

// MembershipSource is the kind-specific view of who belongs to a chat.
// Implementations never return an error for mere absence; an absent chat is
// reported as not-a-member, not-an-owner, no members.
type MembershipSource interface {
	Kind() ChatKind

	IsMember(ctx context.Context, chatID, userID string) (bool, error)

	// IsOwner reports ownership. Conversations have no owner.
	IsOwner(ctx context.Context, chatID, userID string) (bool, error)

	// MemberIDs returns every user belonging to the chat, owner included.
	MemberIDs(ctx context.Context, chatID string) ([]string, error)

	// RemoveMember removes the user's membership in the way appropriate for
	// the kind. For a conversation this deletes the whole conversation, since
	// a one-party conversation cannot exist.
	RemoveMember(ctx context.Context, chatID, userID string) error
}

type conversationSource struct {
	memberships MembershipStore
}

func (s *conversationSource) Kind() ChatKind { return Conversation }

func (s *conversationSource) IsMember(ctx context.Context, chatID, userID string) (bool, error) {
	conv, err := s.memberships.GetConversation(ctx, chatID)
	if err != nil {
		return false, fmt.Errorf("GetConversation: %w", err)
	}
	if conv == nil {
		return false, nil
	}
	return conv.Has(userID), nil
}

func (s *conversationSource) IsOwner(ctx context.Context, chatID, userID string) (bool, error) {
	return false, nil
}

func (s *conversationSource) MemberIDs(ctx context.Context, chatID string) ([]string, error) {
	conv, err := s.memberships.GetConversation(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("GetConversation: %w", err)
	}
	if conv == nil {
		return nil, nil
	}
	return []string{conv.UserID1, conv.UserID2}, nil
}

func (s *conversationSource) RemoveMember(ctx context.Context, chatID, userID string) error {
	return s.memberships.DeleteConversation(ctx, chatID)
}

type groupSource struct {
	memberships MembershipStore
}

func (s *groupSource) Kind() ChatKind { return Group }

func (s *groupSource) IsMember(ctx context.Context, chatID, userID string) (bool, error) {
	group, err := s.memberships.GetGroup(ctx, chatID)
	if err != nil {
		return false, fmt.Errorf("GetGroup: %w", err)
	}
	if group == nil {
		return false, nil
	}
	return group.IsMember(userID), nil
}

func (s *groupSource) IsOwner(ctx context.Context, chatID, userID string) (bool, error) {
	group, err := s.memberships.GetGroup(ctx, chatID)
	if err != nil {
		return false, fmt.Errorf("GetGroup: %w", err)
	}
	if group == nil {
		return false, nil
	}
	return group.IsOwner(userID), nil
}

func (s *groupSource) MemberIDs(ctx context.Context, chatID string) ([]string, error) {
	group, err := s.memberships.GetGroup(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("GetGroup: %w", err)
	}
	if group == nil {
		return nil, nil
	}
	ids := make([]string, 0, len(group.Members))
	for _, m := range group.Members {
		ids = append(ids, m.UserID)
	}
	return ids, nil
}

func (s *groupSource) RemoveMember(ctx context.Context, chatID, userID string) error {
	return s.memberships.RemoveMember(ctx, chatID, userID)
}

type channelSource struct {
	memberships MembershipStore
}

func (s *channelSource) Kind() ChatKind { return Channel }

func (s *channelSource) IsMember(ctx context.Context, chatID, userID string) (bool, error) {
	channel, err := s.memberships.GetChannel(ctx, chatID)
	if err != nil {
		return false, fmt.Errorf("GetChannel: %w", err)
	}
	if channel == nil {
		return false, nil
	}
	return channel.IsSubscriber(userID), nil
}

func (s *channelSource) IsOwner(ctx context.Context, chatID, userID string) (bool, error) {
	channel, err := s.memberships.GetChannel(ctx, chatID)
	if err != nil {
		return false, fmt.Errorf("GetChannel: %w", err)
	}
	if channel == nil {
		return false, nil
	}
	return channel.IsOwner(userID), nil
}

func (s *channelSource) MemberIDs(ctx context.Context, chatID string) ([]string, error) {
	channel, err := s.memberships.GetChannel(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("GetChannel: %w", err)
	}
	if channel == nil {
		return nil, nil
	}
	ids := make([]string, 0, len(channel.Subscribers))
	for _, m := range channel.Subscribers {
		ids = append(ids, m.UserID)
	}
	return ids, nil
}

func (s *channelSource) RemoveMember(ctx context.Context, chatID, userID string) error {
	return s.memberships.RemoveSubscriber(ctx, chatID, userID)
}

// PermissionResolver answers membership and capability questions uniformly
// across chat kinds. It only reports facts; turning a negative answer into a
// typed denial is MembershipGuard's job.
type PermissionResolver struct {
	chats   ChatStore
	sources map[ChatKind]MembershipSource
	bans    ChatBanStore
	grants  PermissionStore
}

func NewPermissionResolver(chats ChatStore, memberships MembershipStore, bans ChatBanStore, grants PermissionStore) *PermissionResolver {
	return &PermissionResolver{
		chats: chats,
		sources: map[ChatKind]MembershipSource{
			Conversation: &conversationSource{memberships: memberships},
			Group:        &groupSource{memberships: memberships},
			Channel:      &channelSource{memberships: memberships},
		},
		bans:   bans,
		grants: grants,
	}
}

// Source returns the membership source for the kind. The kind set is closed;
// an unknown kind is a programming error.
func (r *PermissionResolver) Source(kind ChatKind) MembershipSource {
	src, ok := r.sources[kind]
	if !ok {
		panic(fmt.Sprintf("no membership source for chat kind %d", kind))
	}
	return src
}

func (r *PermissionResolver) IsMember(ctx context.Context, chat *Chat, userID string) (bool, error) {
	return r.Source(chat.Kind).IsMember(ctx, chat.ID, userID)
}

func (r *PermissionResolver) IsOwner(ctx context.Context, chat *Chat, userID string) (bool, error) {
	return r.Source(chat.Kind).IsOwner(ctx, chat.ID, userID)
}

func (r *PermissionResolver) IsBanned(ctx context.Context, chatID, userID string) (bool, error) {
	return r.bans.IsBanned(ctx, chatID, userID)
}

// CanAct reports whether the user may perform the action the permission names
// in the chat. In a conversation every participant can act. In a group or
// channel the owner can always act, and a non-owner can act only with an
// explicit grant of the same permission. A banned user can never act.
func (r *PermissionResolver) CanAct(ctx context.Context, chat *Chat, userID string, p Permission) (bool, error) {
	banned, err := r.bans.IsBanned(ctx, chat.ID, userID)
	if err != nil {
		return false, fmt.Errorf("IsBanned: %w", err)
	}
	if banned {
		return false, nil
	}

	if chat.Kind == Conversation {
		return r.IsMember(ctx, chat, userID)
	}

	owner, err := r.IsOwner(ctx, chat, userID)
	if err != nil {
		return false, err
	}
	if owner {
		return true, nil
	}

	ok, err := r.grants.HasGrant(ctx, chat.ID, userID, p)
	if err != nil {
		return false, fmt.Errorf("HasGrant: %w", err)
	}
	return ok, nil
}
