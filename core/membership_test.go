package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJoinGrantsDefaults(t *testing.T) {
	f := newFixture(t)
	defer f.tearDown()
	ids := f.seedUsers(alice, bob)

	group, err := f.membership.CreateGroup(f.ctx, "readers", "", ids["alice"], Public)
	require.NoError(t, err)

	require.NoError(t, f.membership.Join(f.ctx, group.ID, ids["bob"]))

	grants, err := f.permissions.ListGrants(f.ctx, group.ID, ids["bob"])
	require.NoError(t, err)

	var perms []Permission
	for _, g := range grants {
		perms = append(perms, g.Permission)
	}
	assert.ElementsMatch(t, DefaultMemberPermissions, perms)
}

func TestJoinRejections(t *testing.T) {
	f := newFixture(t)
	defer f.tearDown()
	ids := f.seedUsers(alice, bob)

	t.Run("private chat rejects self joins", func(t *testing.T) {
		group, err := f.membership.CreateGroup(f.ctx, "private", "", ids["alice"], Private)
		require.NoError(t, err)

		assert.ErrorIs(t, f.membership.Join(f.ctx, group.ID, ids["bob"]), ErrPrivateChat)
	})

	t.Run("banned user cannot rejoin", func(t *testing.T) {
		group, err := f.membership.CreateGroup(f.ctx, "public", "", ids["alice"], Public)
		require.NoError(t, err)
		require.NoError(t, f.chatBans.CreateBan(f.ctx, group.ID, ids["bob"]))

		assert.ErrorIs(t, f.membership.Join(f.ctx, group.ID, ids["bob"]), ErrDeniedBanned)
	})

	t.Run("joining twice reports the conflict", func(t *testing.T) {
		group, err := f.membership.CreateGroup(f.ctx, "twice", "", ids["alice"], Public)
		require.NoError(t, err)

		require.NoError(t, f.membership.Join(f.ctx, group.ID, ids["bob"]))
		assert.ErrorIs(t, f.membership.Join(f.ctx, group.ID, ids["bob"]), ErrAlreadyMember)
	})

	t.Run("unknown chat", func(t *testing.T) {
		assert.ErrorIs(t, f.membership.Join(f.ctx, "no-such-chat", ids["bob"]), ErrChatNotFound)
	})
}

func TestAddMemberAuthorization(t *testing.T) {
	f := newFixture(t)
	defer f.tearDown()
	ids := f.seedUsers(alice, bob, carol, dave)

	// private group: members can still invite because joining grants AddUsers
	group, err := f.membership.CreateGroup(f.ctx, "invite only", "", ids["alice"], Private)
	require.NoError(t, err)

	require.NoError(t, f.membership.AddMember(f.ctx, group.ID, ids["alice"], ids["bob"]))
	require.NoError(t, f.membership.AddMember(f.ctx, group.ID, ids["bob"], ids["carol"]))

	// a stranger cannot invite
	assert.ErrorIs(t, f.membership.AddMember(f.ctx, group.ID, ids["dave"], ids["dave"]), ErrDeniedPermission)

	// a member stripped of AddUsers cannot invite
	require.NoError(t, f.permissions.DeleteGrant(f.ctx, group.ID, ids["carol"], PermAddUsers))
	assert.ErrorIs(t, f.membership.AddMember(f.ctx, group.ID, ids["carol"], ids["dave"]), ErrDeniedPermission)
}

func TestRemoveMemberRevokesGrants(t *testing.T) {
	f := newFixture(t)
	defer f.tearDown()
	ids := f.seedUsers(alice, bob)

	group := f.seedGroup(ids["alice"], ids["bob"])

	require.NoError(t, f.membership.Leave(f.ctx, group.ID, ids["bob"]))

	got, err := f.chats.GetGroup(f.ctx, group.ID)
	require.NoError(t, err)
	assert.False(t, got.IsMember(ids["bob"]))

	grants, err := f.permissions.ListGrants(f.ctx, group.ID, ids["bob"])
	require.NoError(t, err)
	assert.Empty(t, grants)
}

func TestBanRemovesMembershipPerKind(t *testing.T) {
	f := newFixture(t)
	defer f.tearDown()
	ids := f.seedUsers(alice, bob)

	t.Run("group ban removes the member row", func(t *testing.T) {
		group := f.seedGroup(ids["alice"], ids["bob"])

		require.NoError(t, f.membership.BanUser(f.ctx, group.ID, ids["alice"], ids["bob"]))

		got, err := f.chats.GetGroup(f.ctx, group.ID)
		require.NoError(t, err)
		assert.False(t, got.IsMember(ids["bob"]))

		banned, err := f.chatBans.IsBanned(f.ctx, group.ID, ids["bob"])
		require.NoError(t, err)
		assert.True(t, banned)
	})

	t.Run("channel ban removes the subscriber row", func(t *testing.T) {
		channel := f.seedChannel(ids["alice"], ids["bob"])

		require.NoError(t, f.membership.BanUser(f.ctx, channel.ID, ids["alice"], ids["bob"]))

		got, err := f.chats.GetChannel(f.ctx, channel.ID)
		require.NoError(t, err)
		assert.False(t, got.IsSubscriber(ids["bob"]))
	})

	t.Run("conversation ban deletes the conversation", func(t *testing.T) {
		res := f.send(ids["alice"], &MessageSendInput{ReceiverID: ids["bob"], Content: "hi"})

		require.NoError(t, f.membership.BanUser(f.ctx, res.Conversation.ID, ids["alice"], ids["bob"]))

		got, err := f.chats.GetConversation(f.ctx, res.Conversation.ID)
		require.NoError(t, err)
		assert.Nil(t, got)

		// the messages and the ban row go down with the chat
		m, err := f.messages.GetMessage(f.ctx, res.Message.ID)
		require.NoError(t, err)
		assert.Nil(t, m)

		banned, err := f.chatBans.IsBanned(f.ctx, res.Conversation.ID, ids["bob"])
		require.NoError(t, err)
		assert.False(t, banned)
	})

	t.Run("repeated ban reports the conflict", func(t *testing.T) {
		group := f.seedGroup(ids["alice"])
		require.NoError(t, f.membership.BanUser(f.ctx, group.ID, ids["alice"], ids["bob"]))
		assert.ErrorIs(t, f.membership.BanUser(f.ctx, group.ID, ids["alice"], ids["bob"]), ErrAlreadyBanned)
	})
}

func TestUnbanRestoresJoin(t *testing.T) {
	f := newFixture(t)
	defer f.tearDown()
	ids := f.seedUsers(alice, bob)

	group := f.seedGroup(ids["alice"], ids["bob"])
	require.NoError(t, f.membership.BanUser(f.ctx, group.ID, ids["alice"], ids["bob"]))
	assert.ErrorIs(t, f.membership.Join(f.ctx, group.ID, ids["bob"]), ErrDeniedBanned)

	require.NoError(t, f.membership.UnbanUser(f.ctx, group.ID, ids["alice"], ids["bob"]))
	assert.NoError(t, f.membership.Join(f.ctx, group.ID, ids["bob"]))
}

func TestBlockUser(t *testing.T) {
	f := newFixture(t)
	defer f.tearDown()
	ids := f.seedUsers(alice, bob)

	t.Run("self block is rejected", func(t *testing.T) {
		assert.ErrorIs(t, f.membership.BlockUser(f.ctx, ids["alice"], ids["alice"]), ErrSelfAction)
	})

	t.Run("block is directional and repeat is a conflict", func(t *testing.T) {
		require.NoError(t, f.membership.BlockUser(f.ctx, ids["alice"], ids["bob"]))
		assert.ErrorIs(t, f.membership.BlockUser(f.ctx, ids["alice"], ids["bob"]), ErrAlreadyBlocked)

		blocked, err := f.userBans.IsBlocked(f.ctx, ids["alice"], ids["bob"])
		require.NoError(t, err)
		assert.True(t, blocked)

		reverse, err := f.userBans.IsBlocked(f.ctx, ids["bob"], ids["alice"])
		require.NoError(t, err)
		assert.False(t, reverse)
	})

	t.Run("unblock removes it", func(t *testing.T) {
		require.NoError(t, f.membership.UnblockUser(f.ctx, ids["alice"], ids["bob"]))
		assert.ErrorIs(t, f.membership.UnblockUser(f.ctx, ids["alice"], ids["bob"]), ErrBlockNotFound)
	})
}

func TestGrantValidation(t *testing.T) {
	f := newFixture(t)
	defer f.tearDown()
	ids := f.seedUsers(alice, bob)

	group := f.seedGroup(ids["alice"], ids["bob"])

	assert.ErrorIs(t, f.membership.Grant(f.ctx, group.ID, ids["alice"], ids["bob"], Permission("Fly")), ErrInvalidPermission)
	assert.NoError(t, f.membership.Grant(f.ctx, group.ID, ids["alice"], ids["bob"], PermPinMessages))
	assert.ErrorIs(t, f.membership.Grant(f.ctx, group.ID, ids["alice"], ids["bob"], PermPinMessages), ErrAlreadyGranted)
	assert.ErrorIs(t, f.membership.Grant(f.ctx, group.ID, ids["bob"], ids["alice"], PermPinMessages), ErrDeniedPermission)

	// granting to a user outside the chat is a not-found, not a silent row
	ids2 := f.seedUsers(carol)
	assert.ErrorIs(t, f.membership.Grant(f.ctx, group.ID, ids["alice"], ids2["carol"], PermPinMessages), ErrUserNotFound)
}

func TestUpdatePrivacy(t *testing.T) {
	f := newFixture(t)
	defer f.tearDown()
	ids := f.seedUsers(alice, bob)

	group := f.seedGroup(ids["alice"], ids["bob"])

	assert.ErrorIs(t, f.membership.UpdatePrivacy(f.ctx, group.ID, ids["bob"], Private), ErrDeniedPermission)
	require.NoError(t, f.membership.UpdatePrivacy(f.ctx, group.ID, ids["alice"], Private))

	chat, err := f.chats.GetChat(f.ctx, group.ID)
	require.NoError(t, err)
	assert.Equal(t, Private, chat.Privacy)
}
