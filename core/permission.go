package core

import (
	"context"
	"time"
)

const (
	PermSendMessage    Permission = "SendMessage"
	PermManageMessages Permission = "ManageMessages"
	PermManageUsers    Permission = "ManageUsers"
	PermAddUsers       Permission = "AddUsers"
	PermManageChatInfo Permission = "ManageChatInfo"
	PermManageBans     Permission = "ManageBans"
	PermPinMessages    Permission = "PinMessages"
)

// Permission names one capability of the fixed enumerated set. The owner of
// a group or channel implicitly holds every permission; explicit grants are
// superfluous for the owner but may coexist without conflict.
type Permission string

func (p Permission) Valid() bool {
	switch p {
	case PermSendMessage, PermManageMessages, PermManageUsers, PermAddUsers,
		PermManageChatInfo, PermManageBans, PermPinMessages:
		return true
	default:
		return false
	}
}

// DefaultMemberPermissions are granted to every new group member and channel
// subscriber at join time. The permission checks never special-case new
// members; they always re-read grants.
var DefaultMemberPermissions = []Permission{PermSendMessage, PermAddUsers}

// Grant is an explicit (chat, user, permission) capability row.
// At most one row exists per triple.
type Grant struct {
	ChatID     string     `json:"chat_id"`
	UserID     string     `json:"user_id"`
	Permission Permission `json:"permission"`
	GrantedAt  time.Time  `json:"granted_at"`
}

type PermissionStore interface {
	// HasGrant reports whether the (chat, user, permission) grant exists.
	HasGrant(ctx context.Context, chatID, userID string, p Permission) (bool, error)

	// CreateGrant inserts a grant. It returns ErrAlreadyGranted when the
	// triple already exists; the grant set is unchanged in that case.
	CreateGrant(ctx context.Context, chatID, userID string, p Permission) error

	// DeleteGrant removes a grant. It returns ErrGrantNotFound when the
	// triple does not exist.
	DeleteGrant(ctx context.Context, chatID, userID string, p Permission) error

	// DeleteGrants removes every grant the user holds in the chat.
	DeleteGrants(ctx context.Context, chatID, userID string) error

	ListGrants(ctx context.Context, chatID, userID string) ([]Grant, error)

	ListChatGrants(ctx context.Context, chatID string) ([]Grant, error)
}
