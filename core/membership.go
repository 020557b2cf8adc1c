package core

import (
	"context"
	"errors"
	"fmt"
)

// MembershipService orchestrates joining, leaving, banning, blocking and
// permission grants across the three chat kinds. Authorization goes through
// the guard; the service only sequences the store mutations and their side
// effects.
type MembershipService struct {
	chats       ChatStore
	memberships MembershipStore
	users       UserStore
	bans        ChatBanStore
	blocks      UserBanStore
	grants      PermissionStore
	resolver    *PermissionResolver
	guard       *MembershipGuard
}

func NewMembershipService(
	chats ChatStore,
	memberships MembershipStore,
	users UserStore,
	bans ChatBanStore,
	blocks UserBanStore,
	grants PermissionStore,
	resolver *PermissionResolver,
	guard *MembershipGuard,
) *MembershipService {
	return &MembershipService{
		chats:       chats,
		memberships: memberships,
		users:       users,
		bans:        bans,
		blocks:      blocks,
		grants:      grants,
		resolver:    resolver,
		guard:       guard,
	}
}

func (s *MembershipService) CreateGroup(ctx context.Context, name, description, ownerID string, privacy Privacy) (*GroupInfo, error) {
	if err := s.requireUser(ctx, ownerID); err != nil {
		return nil, err
	}
	group, err := s.memberships.CreateGroup(ctx, name, description, ownerID, privacy)
	if err != nil {
		return nil, fmt.Errorf("CreateGroup: %w", err)
	}
	return group, nil
}

func (s *MembershipService) CreateChannel(ctx context.Context, name, description, ownerID string, privacy Privacy) (*ChannelInfo, error) {
	if err := s.requireUser(ctx, ownerID); err != nil {
		return nil, err
	}
	channel, err := s.memberships.CreateChannel(ctx, name, description, ownerID, privacy)
	if err != nil {
		return nil, fmt.Errorf("CreateChannel: %w", err)
	}
	return channel, nil
}

func (s *MembershipService) requireUser(ctx context.Context, userID string) error {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("GetUserByID: %w", err)
	}
	if user == nil {
		return ErrUserNotFound
	}
	return nil
}

// Join adds the acting user to a public group or channel. Private chats
// reject self-joins; members must be added by someone holding AddUsers.
func (s *MembershipService) Join(ctx context.Context, chatID, userID string) error {
	chat, err := s.guard.Chat(ctx, chatID)
	if err != nil {
		return err
	}
	if chat.Privacy == Private {
		return ErrPrivateChat
	}
	return s.admit(ctx, chat, userID)
}

// AddMember adds the target to a group or channel on the actor's behalf.
// The actor needs the AddUsers capability.
func (s *MembershipService) AddMember(ctx context.Context, chatID, actorID, targetID string) error {
	chat, err := s.guard.Chat(ctx, chatID)
	if err != nil {
		return err
	}
	if err := s.guard.CanAddUsers(ctx, chat, actorID); err != nil {
		return err
	}
	if err := s.requireUser(ctx, targetID); err != nil {
		return err
	}
	return s.admit(ctx, chat, targetID)
}

// admit performs the shared join path: a banned user is turned away, a
// current member is reported as such, then the membership row and the
// default grant bundle are created.
func (s *MembershipService) admit(ctx context.Context, chat *Chat, userID string) error {
	banned, err := s.bans.IsBanned(ctx, chat.ID, userID)
	if err != nil {
		return fmt.Errorf("IsBanned: %w", err)
	}
	if banned {
		return ErrDeniedBanned
	}

	member, err := s.resolver.IsMember(ctx, chat, userID)
	if err != nil {
		return err
	}
	if member {
		return ErrAlreadyMember
	}

	switch chat.Kind {
	case Group:
		err = s.memberships.AddMember(ctx, chat.ID, userID)
	case Channel:
		err = s.memberships.AddSubscriber(ctx, chat.ID, userID)
	default:
		return ErrDeniedPermission
	}
	if err != nil {
		return fmt.Errorf("adding member: %w", err)
	}

	return s.GrantDefaultPermissions(ctx, chat.ID, userID)
}

// GrantDefaultPermissions grants the join-time permission bundle. Grants that
// already exist are left alone.
func (s *MembershipService) GrantDefaultPermissions(ctx context.Context, chatID, userID string) error {
	for _, p := range DefaultMemberPermissions {
		err := s.grants.CreateGrant(ctx, chatID, userID, p)
		if err != nil && !errors.Is(err, ErrAlreadyGranted) {
			return fmt.Errorf("CreateGrant(%s): %w", p, err)
		}
	}
	return nil
}

// Leave removes the acting user's own membership and revokes their grants.
func (s *MembershipService) Leave(ctx context.Context, chatID, userID string) error {
	return s.RemoveMember(ctx, chatID, userID, userID)
}

// RemoveMember removes the target's membership. Self-removal is always
// allowed; removing someone else needs the ManageUsers capability. The
// target's grants go with the membership.
func (s *MembershipService) RemoveMember(ctx context.Context, chatID, actorID, targetID string) error {
	chat, err := s.guard.Chat(ctx, chatID)
	if err != nil {
		return err
	}
	if err := s.guard.CanRemoveMember(ctx, chat, actorID, targetID); err != nil {
		return err
	}

	member, err := s.resolver.IsMember(ctx, chat, targetID)
	if err != nil {
		return err
	}
	if !member {
		return ErrUserNotFound
	}

	if err := s.resolver.Source(chat.Kind).RemoveMember(ctx, chat.ID, targetID); err != nil {
		return fmt.Errorf("removing member: %w", err)
	}
	if err := s.grants.DeleteGrants(ctx, chat.ID, targetID); err != nil {
		return fmt.Errorf("DeleteGrants: %w", err)
	}
	return nil
}

// BanUser bans the target from the chat and removes whatever membership they
// hold there. For a conversation the removal deletes the conversation itself.
func (s *MembershipService) BanUser(ctx context.Context, chatID, actorID, targetID string) error {
	chat, err := s.guard.Chat(ctx, chatID)
	if err != nil {
		return err
	}
	if err := s.guard.CanBanUser(ctx, chat, actorID, targetID); err != nil {
		return err
	}
	if err := s.requireUser(ctx, targetID); err != nil {
		return err
	}

	if err := s.bans.CreateBan(ctx, chat.ID, targetID); err != nil {
		return fmt.Errorf("CreateBan: %w", err)
	}

	member, err := s.resolver.IsMember(ctx, chat, targetID)
	if err != nil {
		return err
	}
	if member {
		if err := s.resolver.Source(chat.Kind).RemoveMember(ctx, chat.ID, targetID); err != nil {
			return fmt.Errorf("removing banned member: %w", err)
		}
		if err := s.grants.DeleteGrants(ctx, chat.ID, targetID); err != nil {
			return fmt.Errorf("DeleteGrants: %w", err)
		}
	}
	return nil
}

func (s *MembershipService) UnbanUser(ctx context.Context, chatID, actorID, targetID string) error {
	chat, err := s.guard.Chat(ctx, chatID)
	if err != nil {
		return err
	}
	if err := s.guard.requirePermission(ctx, chat, actorID, PermManageBans); err != nil {
		return err
	}
	if err := s.bans.DeleteBan(ctx, chat.ID, targetID); err != nil {
		return fmt.Errorf("DeleteBan: %w", err)
	}
	return nil
}

func (s *MembershipService) ChatBans(ctx context.Context, chatID, actorID string) ([]ChatBan, error) {
	chat, err := s.guard.Chat(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if err := s.guard.requirePermission(ctx, chat, actorID, PermManageBans); err != nil {
		return nil, err
	}
	bans, err := s.bans.ListBans(ctx, chat.ID)
	if err != nil {
		return nil, fmt.Errorf("ListBans: %w", err)
	}
	return bans, nil
}

// BlockUser creates a directional user-to-user block. Self-blocks are
// rejected.
func (s *MembershipService) BlockUser(ctx context.Context, blockerID, blockedID string) error {
	if blockerID == blockedID {
		return ErrSelfAction
	}
	if err := s.requireUser(ctx, blockedID); err != nil {
		return err
	}
	if err := s.blocks.CreateBlock(ctx, blockerID, blockedID); err != nil {
		return fmt.Errorf("CreateBlock: %w", err)
	}
	return nil
}

func (s *MembershipService) UnblockUser(ctx context.Context, blockerID, blockedID string) error {
	if blockerID == blockedID {
		return ErrSelfAction
	}
	if err := s.blocks.DeleteBlock(ctx, blockerID, blockedID); err != nil {
		return fmt.Errorf("DeleteBlock: %w", err)
	}
	return nil
}

func (s *MembershipService) BlockedUsers(ctx context.Context, blockerID string) ([]UserBlock, error) {
	blocked, err := s.blocks.ListBlocked(ctx, blockerID)
	if err != nil {
		return nil, fmt.Errorf("ListBlocked: %w", err)
	}
	return blocked, nil
}

// Grant gives the target a permission in the chat. The actor needs the
// ManageUsers capability and the target must be a member.
func (s *MembershipService) Grant(ctx context.Context, chatID, actorID, targetID string, p Permission) error {
	if !p.Valid() {
		return ErrInvalidPermission
	}
	chat, err := s.guard.Chat(ctx, chatID)
	if err != nil {
		return err
	}
	if err := s.guard.CanGrantPermission(ctx, chat, actorID); err != nil {
		return err
	}

	member, err := s.resolver.IsMember(ctx, chat, targetID)
	if err != nil {
		return err
	}
	if !member {
		return ErrUserNotFound
	}

	if err := s.grants.CreateGrant(ctx, chat.ID, targetID, p); err != nil {
		return fmt.Errorf("CreateGrant: %w", err)
	}
	return nil
}

func (s *MembershipService) Revoke(ctx context.Context, chatID, actorID, targetID string, p Permission) error {
	if !p.Valid() {
		return ErrInvalidPermission
	}
	chat, err := s.guard.Chat(ctx, chatID)
	if err != nil {
		return err
	}
	if err := s.guard.CanGrantPermission(ctx, chat, actorID); err != nil {
		return err
	}
	if err := s.grants.DeleteGrant(ctx, chat.ID, targetID, p); err != nil {
		return fmt.Errorf("DeleteGrant: %w", err)
	}
	return nil
}

// UserPermissions lists the target's grants in the chat. Self-inspection is
// always allowed; inspecting another user needs the ManageUsers capability.
func (s *MembershipService) UserPermissions(ctx context.Context, chatID, actorID, targetID string) ([]Grant, error) {
	chat, err := s.guard.Chat(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if err := s.guard.CanViewPermissions(ctx, chat, actorID, targetID); err != nil {
		return nil, err
	}
	grants, err := s.grants.ListGrants(ctx, chat.ID, targetID)
	if err != nil {
		return nil, fmt.Errorf("ListGrants: %w", err)
	}
	return grants, nil
}

func (s *MembershipService) ChatPermissions(ctx context.Context, chatID, actorID string) ([]Grant, error) {
	chat, err := s.guard.Chat(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if err := s.guard.CanManageUsers(ctx, chat, actorID); err != nil {
		return nil, err
	}
	grants, err := s.grants.ListChatGrants(ctx, chat.ID)
	if err != nil {
		return nil, fmt.Errorf("ListChatGrants: %w", err)
	}
	return grants, nil
}

// UpdatePrivacy flips a group or channel between public and private.
func (s *MembershipService) UpdatePrivacy(ctx context.Context, chatID, actorID string, privacy Privacy) error {
	chat, err := s.guard.Chat(ctx, chatID)
	if err != nil {
		return err
	}
	if chat.Kind == Conversation {
		return ErrDeniedPermission
	}
	if err := s.guard.CanManageChatInfo(ctx, chat, actorID); err != nil {
		return err
	}
	if err := s.chats.UpdatePrivacy(ctx, chat.ID, privacy); err != nil {
		return fmt.Errorf("UpdatePrivacy: %w", err)
	}
	return nil
}
