package core

import (
	"context"
	"fmt"
)

// MembershipGuard authorizes actions against a chat. Every method returns nil
// when the action is allowed and a typed error otherwise: ErrChatNotFound
// when the chat does not exist, ErrDeniedBanned when a ban or an incoming
// block forbids the action, ErrMustUnblock when the actor's own block stands
// in the way, and ErrDeniedPermission for a plain capability failure.
type MembershipGuard struct {
	chats       ChatStore
	memberships MembershipStore
	resolver    *PermissionResolver
	blocks      UserBanStore
}

func NewMembershipGuard(chats ChatStore, memberships MembershipStore, resolver *PermissionResolver, blocks UserBanStore) *MembershipGuard {
	return &MembershipGuard{chats: chats, memberships: memberships, resolver: resolver, blocks: blocks}
}

// Chat loads the chat or returns ErrChatNotFound.
func (g *MembershipGuard) Chat(ctx context.Context, chatID string) (*Chat, error) {
	chat, err := g.chats.GetChat(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("GetChat: %w", err)
	}
	if chat == nil {
		return nil, ErrChatNotFound
	}
	return chat, nil
}

// CanSendMessage authorizes sending into an existing chat. In a conversation
// the gate is the block relation between the two participants; in a group or
// channel it is the chat ban followed by the SendMessage capability.
func (g *MembershipGuard) CanSendMessage(ctx context.Context, chat *Chat, userID string) error {
	if chat.Kind == Conversation {
		conv, err := g.memberships.GetConversation(ctx, chat.ID)
		if err != nil {
			return fmt.Errorf("GetConversation: %w", err)
		}
		if conv == nil || !conv.Has(userID) {
			return ErrDeniedPermission
		}
		return g.checkBlocks(ctx, userID, conv.Other(userID))
	}

	banned, err := g.resolver.IsBanned(ctx, chat.ID, userID)
	if err != nil {
		return fmt.Errorf("IsBanned: %w", err)
	}
	if banned {
		return ErrDeniedBanned
	}

	return g.requirePermission(ctx, chat, userID, PermSendMessage)
}

// checkBlocks enforces the two directions of the user block relation with
// their distinct errors: a block held by the receiver denies outright, a
// block held by the sender must be lifted by the sender first.
func (g *MembershipGuard) checkBlocks(ctx context.Context, senderID, receiverID string) error {
	blocked, err := g.blocks.IsBlocked(ctx, receiverID, senderID)
	if err != nil {
		return fmt.Errorf("IsBlocked: %w", err)
	}
	if blocked {
		return ErrDeniedBanned
	}

	blocked, err = g.blocks.IsBlocked(ctx, senderID, receiverID)
	if err != nil {
		return fmt.Errorf("IsBlocked: %w", err)
	}
	if blocked {
		return ErrMustUnblock
	}
	return nil
}

func (g *MembershipGuard) requirePermission(ctx context.Context, chat *Chat, userID string, p Permission) error {
	ok, err := g.resolver.CanAct(ctx, chat, userID, p)
	if err != nil {
		return err
	}
	if !ok {
		return ErrDeniedPermission
	}
	return nil
}

func (g *MembershipGuard) CanManageChatInfo(ctx context.Context, chat *Chat, userID string) error {
	return g.requirePermission(ctx, chat, userID, PermManageChatInfo)
}

func (g *MembershipGuard) CanManageUsers(ctx context.Context, chat *Chat, userID string) error {
	return g.requirePermission(ctx, chat, userID, PermManageUsers)
}

func (g *MembershipGuard) CanAddUsers(ctx context.Context, chat *Chat, userID string) error {
	return g.requirePermission(ctx, chat, userID, PermAddUsers)
}

// CanManageMessages authorizes editing or deleting a message. The sender of
// the message may always alter it; anyone else needs the ManageMessages
// capability.
func (g *MembershipGuard) CanManageMessages(ctx context.Context, chat *Chat, userID string, m *Message) error {
	if m.SenderID == userID {
		return nil
	}
	return g.requirePermission(ctx, chat, userID, PermManageMessages)
}

// CanRemoveMember authorizes removing a member. A user may always remove
// themselves; removing someone else needs the ManageUsers capability.
func (g *MembershipGuard) CanRemoveMember(ctx context.Context, chat *Chat, actorID, targetID string) error {
	if actorID == targetID {
		return nil
	}
	return g.requirePermission(ctx, chat, actorID, PermManageUsers)
}

// CanViewPermissions authorizes reading a user's grant list. A user may
// always inspect their own grants; inspecting someone else's needs the
// ManageUsers capability.
func (g *MembershipGuard) CanViewPermissions(ctx context.Context, chat *Chat, actorID, targetID string) error {
	if actorID == targetID {
		return nil
	}
	return g.requirePermission(ctx, chat, actorID, PermManageUsers)
}

func (g *MembershipGuard) CanGrantPermission(ctx context.Context, chat *Chat, actorID string) error {
	return g.requirePermission(ctx, chat, actorID, PermManageUsers)
}

// CanPinMessage authorizes pinning and unpinning. In a conversation either
// participant may pin; in a group or channel the owner or a PinMessages
// grant holder may.
func (g *MembershipGuard) CanPinMessage(ctx context.Context, chat *Chat, userID string) error {
	if chat.Kind == Conversation {
		member, err := g.resolver.IsMember(ctx, chat, userID)
		if err != nil {
			return err
		}
		if !member {
			return ErrDeniedPermission
		}
		return nil
	}
	return g.requirePermission(ctx, chat, userID, PermPinMessages)
}

// CanBanUser authorizes banning a user from a chat. Self-bans are rejected,
// the owner can never be banned, and the actor needs the ManageBans
// capability. In a conversation either participant can ban the other, which
// removes the conversation itself.
func (g *MembershipGuard) CanBanUser(ctx context.Context, chat *Chat, actorID, targetID string) error {
	if actorID == targetID {
		return ErrSelfAction
	}

	owner, err := g.resolver.IsOwner(ctx, chat, targetID)
	if err != nil {
		return err
	}
	if owner {
		return ErrOwnerUnbannable
	}

	return g.requirePermission(ctx, chat, actorID, PermManageBans)
}

// CanViewChat authorizes reading a chat's messages, reacting and marking
// them seen, all of which only require membership.
func (g *MembershipGuard) CanViewChat(ctx context.Context, chat *Chat, userID string) error {
	member, err := g.resolver.IsMember(ctx, chat, userID)
	if err != nil {
		return err
	}
	if !member {
		return ErrDeniedPermission
	}
	return nil
}
