package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGuardSendMessage(t *testing.T) {
	f := newFixture(t)
	defer f.tearDown()
	ids := f.seedUsers(alice, bob, carol)

	t.Run("group member with default grant can send", func(t *testing.T) {
		group := f.seedGroup(ids["alice"], ids["bob"])
		chat, err := f.chats.GetChat(f.ctx, group.ID)
		require.NoError(t, err)

		assert.NoError(t, f.guard.CanSendMessage(f.ctx, chat, ids["bob"]))
	})

	t.Run("member stripped of the grant cannot send", func(t *testing.T) {
		group := f.seedGroup(ids["alice"], ids["bob"])
		chat, err := f.chats.GetChat(f.ctx, group.ID)
		require.NoError(t, err)

		require.NoError(t, f.permissions.DeleteGrant(f.ctx, chat.ID, ids["bob"], PermSendMessage))
		assert.ErrorIs(t, f.guard.CanSendMessage(f.ctx, chat, ids["bob"]), ErrDeniedPermission)
	})

	t.Run("banned member is turned away before permissions", func(t *testing.T) {
		group := f.seedGroup(ids["alice"], ids["bob"])
		chat, err := f.chats.GetChat(f.ctx, group.ID)
		require.NoError(t, err)

		require.NoError(t, f.chatBans.CreateBan(f.ctx, chat.ID, ids["bob"]))
		assert.ErrorIs(t, f.guard.CanSendMessage(f.ctx, chat, ids["bob"]), ErrDeniedBanned)
	})

	t.Run("conversation blocks cut both directions with distinct errors", func(t *testing.T) {
		conv, err := f.chats.CreateConversation(f.ctx, ids["alice"], ids["carol"])
		require.NoError(t, err)
		chat, err := f.chats.GetChat(f.ctx, conv.ID)
		require.NoError(t, err)

		assert.NoError(t, f.guard.CanSendMessage(f.ctx, chat, ids["alice"]))

		// carol blocks alice: alice is refused outright
		require.NoError(t, f.userBans.CreateBlock(f.ctx, ids["carol"], ids["alice"]))
		assert.ErrorIs(t, f.guard.CanSendMessage(f.ctx, chat, ids["alice"]), ErrDeniedBanned)

		// carol, the blocker, must lift her own block first
		assert.ErrorIs(t, f.guard.CanSendMessage(f.ctx, chat, ids["carol"]), ErrMustUnblock)

		require.NoError(t, f.userBans.DeleteBlock(f.ctx, ids["carol"], ids["alice"]))
		assert.NoError(t, f.guard.CanSendMessage(f.ctx, chat, ids["alice"]))
	})
}

func TestGuardManageMessages(t *testing.T) {
	f := newFixture(t)
	defer f.tearDown()
	ids := f.seedUsers(alice, bob, carol)

	group := f.seedGroup(ids["alice"], ids["bob"], ids["carol"])
	chat, err := f.chats.GetChat(f.ctx, group.ID)
	require.NoError(t, err)

	m := &Message{ChatID: chat.ID, SenderID: ids["bob"], Content: "hi"}

	t.Run("sender may always manage their message", func(t *testing.T) {
		assert.NoError(t, f.guard.CanManageMessages(f.ctx, chat, ids["bob"], m))
	})

	t.Run("others need the grant", func(t *testing.T) {
		assert.ErrorIs(t, f.guard.CanManageMessages(f.ctx, chat, ids["carol"], m), ErrDeniedPermission)

		require.NoError(t, f.permissions.CreateGrant(f.ctx, chat.ID, ids["carol"], PermManageMessages))
		assert.NoError(t, f.guard.CanManageMessages(f.ctx, chat, ids["carol"], m))
	})

	t.Run("owner needs no grant", func(t *testing.T) {
		assert.NoError(t, f.guard.CanManageMessages(f.ctx, chat, ids["alice"], m))
	})
}

func TestGuardSelfBypasses(t *testing.T) {
	f := newFixture(t)
	defer f.tearDown()
	ids := f.seedUsers(alice, bob, carol)

	group := f.seedGroup(ids["alice"], ids["bob"], ids["carol"])
	chat, err := f.chats.GetChat(f.ctx, group.ID)
	require.NoError(t, err)

	t.Run("members may remove themselves", func(t *testing.T) {
		assert.NoError(t, f.guard.CanRemoveMember(f.ctx, chat, ids["bob"], ids["bob"]))
		assert.ErrorIs(t, f.guard.CanRemoveMember(f.ctx, chat, ids["bob"], ids["carol"]), ErrDeniedPermission)
	})

	t.Run("members may inspect their own grants", func(t *testing.T) {
		assert.NoError(t, f.guard.CanViewPermissions(f.ctx, chat, ids["bob"], ids["bob"]))
		assert.ErrorIs(t, f.guard.CanViewPermissions(f.ctx, chat, ids["bob"], ids["carol"]), ErrDeniedPermission)
	})
}

func TestGuardBanUser(t *testing.T) {
	f := newFixture(t)
	defer f.tearDown()
	ids := f.seedUsers(alice, bob, carol)

	group := f.seedGroup(ids["alice"], ids["bob"], ids["carol"])
	chat, err := f.chats.GetChat(f.ctx, group.ID)
	require.NoError(t, err)

	t.Run("self ban is rejected", func(t *testing.T) {
		assert.ErrorIs(t, f.guard.CanBanUser(f.ctx, chat, ids["bob"], ids["bob"]), ErrSelfAction)
	})

	t.Run("owner is unbannable", func(t *testing.T) {
		assert.ErrorIs(t, f.guard.CanBanUser(f.ctx, chat, ids["bob"], ids["alice"]), ErrOwnerUnbannable)
	})

	t.Run("ManageBans gates the action", func(t *testing.T) {
		assert.ErrorIs(t, f.guard.CanBanUser(f.ctx, chat, ids["bob"], ids["carol"]), ErrDeniedPermission)

		require.NoError(t, f.permissions.CreateGrant(f.ctx, chat.ID, ids["bob"], PermManageBans))
		assert.NoError(t, f.guard.CanBanUser(f.ctx, chat, ids["bob"], ids["carol"]))
	})

	t.Run("owner can always ban", func(t *testing.T) {
		assert.NoError(t, f.guard.CanBanUser(f.ctx, chat, ids["alice"], ids["carol"]))
	})
}

func TestGuardPinMessage(t *testing.T) {
	f := newFixture(t)
	defer f.tearDown()
	ids := f.seedUsers(alice, bob, carol)

	t.Run("either conversation participant may pin", func(t *testing.T) {
		conv, err := f.chats.CreateConversation(f.ctx, ids["alice"], ids["bob"])
		require.NoError(t, err)
		chat, err := f.chats.GetChat(f.ctx, conv.ID)
		require.NoError(t, err)

		assert.NoError(t, f.guard.CanPinMessage(f.ctx, chat, ids["alice"]))
		assert.NoError(t, f.guard.CanPinMessage(f.ctx, chat, ids["bob"]))
		assert.ErrorIs(t, f.guard.CanPinMessage(f.ctx, chat, ids["carol"]), ErrDeniedPermission)
	})

	t.Run("group pinning needs ownership or PinMessages", func(t *testing.T) {
		group := f.seedGroup(ids["alice"], ids["bob"])
		chat, err := f.chats.GetChat(f.ctx, group.ID)
		require.NoError(t, err)

		assert.NoError(t, f.guard.CanPinMessage(f.ctx, chat, ids["alice"]))
		assert.ErrorIs(t, f.guard.CanPinMessage(f.ctx, chat, ids["bob"]), ErrDeniedPermission)

		require.NoError(t, f.permissions.CreateGrant(f.ctx, chat.ID, ids["bob"], PermPinMessages))
		assert.NoError(t, f.guard.CanPinMessage(f.ctx, chat, ids["bob"]))
	})
}

func TestGuardChatNotFound(t *testing.T) {
	f := newFixture(t)
	defer f.tearDown()

	_, err := f.guard.Chat(f.ctx, "no-such-chat")
	assert.ErrorIs(t, err, ErrChatNotFound)
}
