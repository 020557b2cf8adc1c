package core

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (f *fixture) send(senderID string, in *MessageSendInput) *SendResult {
	res, err := f.lifecycle.Send(f.ctx, senderID, in)
	require.NoError(f.t, err)
	return res
}

func (f *fixture) eventTypes(connID string) []string {
	var types []string
	for _, e := range f.sink.pushed[connID] {
		types = append(types, e.Type)
	}
	return types
}

func TestSendToGroup(t *testing.T) {
	f := newFixture(t)
	defer f.tearDown()
	ids := f.seedUsers(alice, bob, carol)

	group := f.seedGroup(ids["alice"], ids["bob"], ids["carol"])

	// bob is online on one connection, carol is offline
	f.presence.Connect(ids["bob"], "bob-1")

	res := f.send(ids["alice"], &MessageSendInput{ChatID: group.ID, Content: "hello"})
	require.NotEmpty(t, res.Message.ID)
	assert.Equal(t, group.ID, res.Message.ChatID)
	assert.False(t, res.NewConversation)

	// both recipients get a durable notification regardless of presence
	for _, name := range []string{"bob", "carol"} {
		notifs, err := f.messages.UnseenNotifications(f.ctx, ids[name])
		require.NoError(t, err)
		require.Len(t, notifs, 1, name)
		assert.Equal(t, res.Message.ID, notifs[0].MessageID)
	}

	// the sender gets no notification
	notifs, err := f.messages.UnseenNotifications(f.ctx, ids["alice"])
	require.NoError(t, err)
	assert.Empty(t, notifs)

	// only the live connection got a push
	assert.Equal(t, []string{EventMessageSent}, f.eventTypes("bob-1"))
}

func TestSendValidation(t *testing.T) {
	f := newFixture(t)
	defer f.tearDown()
	ids := f.seedUsers(alice, bob)

	group := f.seedGroup(ids["alice"], ids["bob"])

	var kindErr *Error
	_, err := f.lifecycle.Send(f.ctx, ids["alice"], &MessageSendInput{ChatID: group.ID})
	require.ErrorAs(t, err, &kindErr)
	assert.Equal(t, KindInvalidState, kindErr.Kind)

	_, err = f.lifecycle.Send(f.ctx, ids["alice"], &MessageSendInput{
		ChatID: group.ID, ReceiverID: ids["bob"], Content: "both targets",
	})
	require.ErrorAs(t, err, &kindErr)
	assert.Equal(t, KindInvalidState, kindErr.Kind)

	_, err = f.lifecycle.Send(f.ctx, ids["alice"], &MessageSendInput{Content: "no target"})
	require.ErrorAs(t, err, &kindErr)
	assert.Equal(t, KindInvalidState, kindErr.Kind)
}

func TestSendFirstContact(t *testing.T) {
	f := newFixture(t)
	defer f.tearDown()
	ids := f.seedUsers(alice, bob)

	f.presence.Connect(ids["bob"], "bob-1")

	t.Run("first send creates the conversation", func(t *testing.T) {
		res := f.send(ids["alice"], &MessageSendInput{ReceiverID: ids["bob"], Content: "hi"})
		require.True(t, res.NewConversation)
		require.NotNil(t, res.Conversation)
		assert.Equal(t, res.Conversation.ID, res.Message.ChatID)

		// the receiver learns about the conversation before the message
		assert.Equal(t, []string{EventConversationCreated, EventMessageSent}, f.eventTypes("bob-1"))
	})

	t.Run("second send reuses it", func(t *testing.T) {
		first, err := f.chats.GetConversationBetween(f.ctx, ids["alice"], ids["bob"])
		require.NoError(t, err)
		require.NotNil(t, first)

		res := f.send(ids["bob"], &MessageSendInput{ReceiverID: ids["alice"], Content: "hi back"})
		assert.False(t, res.NewConversation)
		assert.Equal(t, first.ID, res.Message.ChatID)
	})

	t.Run("self and unknown receivers are rejected", func(t *testing.T) {
		_, err := f.lifecycle.Send(f.ctx, ids["alice"], &MessageSendInput{ReceiverID: ids["alice"], Content: "me"})
		assert.ErrorIs(t, err, ErrSelfAction)

		_, err = f.lifecycle.Send(f.ctx, ids["alice"], &MessageSendInput{ReceiverID: "nobody", Content: "void"})
		assert.ErrorIs(t, err, ErrUserNotFound)
	})
}

func TestSendBlockedFirstContact(t *testing.T) {
	f := newFixture(t)
	defer f.tearDown()
	ids := f.seedUsers(alice, bob, carol)

	t.Run("receiver-side block denies and creates nothing", func(t *testing.T) {
		require.NoError(t, f.userBans.CreateBlock(f.ctx, ids["bob"], ids["alice"]))

		_, err := f.lifecycle.Send(f.ctx, ids["alice"], &MessageSendInput{ReceiverID: ids["bob"], Content: "hi"})
		assert.ErrorIs(t, err, ErrDeniedBanned)

		conv, err := f.chats.GetConversationBetween(f.ctx, ids["alice"], ids["bob"])
		require.NoError(t, err)
		assert.Nil(t, conv)
	})

	t.Run("sender-side block demands an unblock first", func(t *testing.T) {
		require.NoError(t, f.userBans.CreateBlock(f.ctx, ids["alice"], ids["carol"]))

		_, err := f.lifecycle.Send(f.ctx, ids["alice"], &MessageSendInput{ReceiverID: ids["carol"], Content: "hi"})
		assert.ErrorIs(t, err, ErrMustUnblock)

		conv, err := f.chats.GetConversationBetween(f.ctx, ids["alice"], ids["carol"])
		require.NoError(t, err)
		assert.Nil(t, conv)

		require.NoError(t, f.userBans.DeleteBlock(f.ctx, ids["alice"], ids["carol"]))
		res := f.send(ids["alice"], &MessageSendInput{ReceiverID: ids["carol"], Content: "hi"})
		assert.True(t, res.NewConversation)
	})
}

func TestSendReply(t *testing.T) {
	f := newFixture(t)
	defer f.tearDown()
	ids := f.seedUsers(alice, bob)

	group := f.seedGroup(ids["alice"], ids["bob"])
	other := f.seedGroup(ids["alice"], ids["bob"])

	root := f.send(ids["alice"], &MessageSendInput{ChatID: group.ID, Content: "root"})

	res := f.send(ids["bob"], &MessageSendInput{ChatID: group.ID, Content: "reply", ReplyID: root.Message.ID})
	assert.Equal(t, root.Message.ID, res.Message.ReplyID)

	// the replied-to message must live in the same chat
	_, err := f.lifecycle.Send(f.ctx, ids["bob"], &MessageSendInput{
		ChatID: other.ID, Content: "cross chat", ReplyID: root.Message.ID,
	})
	assert.ErrorIs(t, err, ErrMessageNotFound)

	_, err = f.lifecycle.Send(f.ctx, ids["bob"], &MessageSendInput{
		ChatID: group.ID, Content: "dangling", ReplyID: "gone",
	})
	assert.ErrorIs(t, err, ErrMessageNotFound)
}

func TestEditMessage(t *testing.T) {
	f := newFixture(t)
	defer f.tearDown()
	ids := f.seedUsers(alice, bob, carol)

	group := f.seedGroup(ids["alice"], ids["bob"], ids["carol"])
	res := f.send(ids["bob"], &MessageSendInput{ChatID: group.ID, Content: "draft"})

	t.Run("sender edits own message", func(t *testing.T) {
		edited, err := f.lifecycle.Edit(f.ctx, ids["bob"], res.Message.ID, "final", "", "")
		require.NoError(t, err)
		assert.Equal(t, "final", edited.Content)

		got, err := f.messages.GetMessage(f.ctx, res.Message.ID)
		require.NoError(t, err)
		assert.Equal(t, "final", got.Content)
	})

	t.Run("member without a grant cannot edit", func(t *testing.T) {
		_, err := f.lifecycle.Edit(f.ctx, ids["carol"], res.Message.ID, "hijack", "", "")
		assert.ErrorIs(t, err, ErrDeniedPermission)
	})

	t.Run("owner edits any message", func(t *testing.T) {
		_, err := f.lifecycle.Edit(f.ctx, ids["alice"], res.Message.ID, "moderated", "", "")
		assert.NoError(t, err)
	})

	t.Run("empty edit is rejected", func(t *testing.T) {
		_, err := f.lifecycle.Edit(f.ctx, ids["bob"], res.Message.ID, "", "", "")
		var kindErr *Error
		require.ErrorAs(t, err, &kindErr)
		assert.Equal(t, KindInvalidState, kindErr.Kind)
	})

	t.Run("edit can attach and clear a reply", func(t *testing.T) {
		root := f.send(ids["alice"], &MessageSendInput{ChatID: group.ID, Content: "root"})

		edited, err := f.lifecycle.Edit(f.ctx, ids["bob"], res.Message.ID, "with reply", "", root.Message.ID)
		require.NoError(t, err)
		assert.Equal(t, root.Message.ID, edited.ReplyID)

		_, err = f.lifecycle.Edit(f.ctx, ids["bob"], res.Message.ID, "bad reply", "", "gone")
		assert.ErrorIs(t, err, ErrMessageNotFound)

		edited, err = f.lifecycle.Edit(f.ctx, ids["bob"], res.Message.ID, "no reply", "", "")
		require.NoError(t, err)
		assert.Empty(t, edited.ReplyID)
	})
}

func TestDeleteMessage(t *testing.T) {
	f := newFixture(t)
	defer f.tearDown()
	ids := f.seedUsers(alice, bob, carol)

	group := f.seedGroup(ids["alice"], ids["bob"], ids["carol"])
	res := f.send(ids["bob"], &MessageSendInput{ChatID: group.ID, Content: "oops"})

	assert.ErrorIs(t, f.lifecycle.Delete(f.ctx, ids["carol"], res.Message.ID), ErrDeniedPermission)

	require.NoError(t, f.lifecycle.Delete(f.ctx, ids["bob"], res.Message.ID))
	assert.ErrorIs(t, f.lifecycle.Delete(f.ctx, ids["bob"], res.Message.ID), ErrMessageNotFound)

	// notifications go with the message
	notifs, err := f.messages.UnseenNotifications(f.ctx, ids["carol"])
	require.NoError(t, err)
	assert.Empty(t, notifs)
}

func TestDeleteRepliedToMessage(t *testing.T) {
	f := newFixture(t)
	defer f.tearDown()
	ids := f.seedUsers(alice, bob)

	group := f.seedGroup(ids["alice"], ids["bob"])
	root := f.send(ids["alice"], &MessageSendInput{ChatID: group.ID, Content: "question"})
	reply := f.send(ids["bob"], &MessageSendInput{ChatID: group.ID, Content: "answer", ReplyID: root.Message.ID})

	require.NoError(t, f.lifecycle.Delete(f.ctx, ids["alice"], root.Message.ID))

	// the reply survives with its reference cleared
	m, err := f.messages.GetMessage(f.ctx, reply.Message.ID)
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Empty(t, m.ReplyID)
}

func TestPinMessage(t *testing.T) {
	f := newFixture(t)
	defer f.tearDown()
	ids := f.seedUsers(alice, bob)

	group := f.seedGroup(ids["alice"], ids["bob"])
	res := f.send(ids["alice"], &MessageSendInput{ChatID: group.ID, Content: "keep this"})

	t.Run("pin and unpin round trip", func(t *testing.T) {
		pinned, err := f.lifecycle.Pin(f.ctx, ids["alice"], res.Message.ID)
		require.NoError(t, err)
		assert.True(t, pinned.IsPinned)
		assert.Equal(t, ids["alice"], pinned.PinnedByID)

		_, err = f.lifecycle.Pin(f.ctx, ids["alice"], res.Message.ID)
		assert.ErrorIs(t, err, ErrAlreadyPinned)

		list, err := f.lifecycle.Pinned(f.ctx, ids["bob"], group.ID)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, res.Message.ID, list[0].ID)

		unpinned, err := f.lifecycle.Unpin(f.ctx, ids["alice"], res.Message.ID)
		require.NoError(t, err)
		assert.False(t, unpinned.IsPinned)

		_, err = f.lifecycle.Unpin(f.ctx, ids["alice"], res.Message.ID)
		assert.ErrorIs(t, err, ErrNotPinned)
	})

	t.Run("member without a grant cannot pin", func(t *testing.T) {
		_, err := f.lifecycle.Pin(f.ctx, ids["bob"], res.Message.ID)
		assert.ErrorIs(t, err, ErrDeniedPermission)
	})
}

func TestPinLimit(t *testing.T) {
	f := newFixture(t)
	defer f.tearDown()
	ids := f.seedUsers(alice)

	group := f.seedGroup(ids["alice"])

	for i := 0; i < MaxPinnedMessages; i++ {
		res := f.send(ids["alice"], &MessageSendInput{ChatID: group.ID, Content: fmt.Sprintf("m%d", i)})
		_, err := f.lifecycle.Pin(f.ctx, ids["alice"], res.Message.ID)
		require.NoError(t, err)
	}

	over := f.send(ids["alice"], &MessageSendInput{ChatID: group.ID, Content: "one too many"})
	_, err := f.lifecycle.Pin(f.ctx, ids["alice"], over.Message.ID)
	assert.ErrorIs(t, err, ErrPinLimitReached)

	// unpinning one frees a slot
	pins, err := f.messages.PinnedMessages(f.ctx, group.ID)
	require.NoError(t, err)
	_, err = f.lifecycle.Unpin(f.ctx, ids["alice"], pins[0].ID)
	require.NoError(t, err)

	_, err = f.lifecycle.Pin(f.ctx, ids["alice"], over.Message.ID)
	assert.NoError(t, err)
}

func TestMarkSeen(t *testing.T) {
	f := newFixture(t)
	defer f.tearDown()
	ids := f.seedUsers(alice, bob)

	group := f.seedGroup(ids["alice"], ids["bob"])

	var sent []string
	for i := 0; i < 3; i++ {
		res := f.send(ids["alice"], &MessageSendInput{ChatID: group.ID, Content: fmt.Sprintf("m%d", i)})
		sent = append(sent, res.Message.ID)
	}

	f.presence.Connect(ids["alice"], "alice-1")

	receipt, err := f.lifecycle.MarkSeen(f.ctx, ids["bob"], group.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, sent, receipt.MessageIDs)
	assert.False(t, receipt.SeenAt.IsZero())

	// notification records flip with the messages
	notifs, err := f.messages.UnseenNotifications(f.ctx, ids["bob"])
	require.NoError(t, err)
	assert.Empty(t, notifs)

	for _, id := range sent {
		m, err := f.messages.GetMessage(f.ctx, id)
		require.NoError(t, err)
		assert.True(t, m.IsSeen)
		assert.True(t, receipt.SeenAt.Equal(m.SeenAt), "seen_at mismatch for %s", id)
	}

	// the sender is told once, and a second pass is a no-op
	assert.Equal(t, []string{EventMessagesSeen}, f.eventTypes("alice-1"))

	again, err := f.lifecycle.MarkSeen(f.ctx, ids["bob"], group.ID)
	require.NoError(t, err)
	assert.Empty(t, again.MessageIDs)
	assert.Equal(t, []string{EventMessagesSeen}, f.eventTypes("alice-1"))

	// non-members cannot mark a chat seen
	ids2 := f.seedUsers(carol)
	_, err = f.lifecycle.MarkSeen(f.ctx, ids2["carol"], group.ID)
	assert.ErrorIs(t, err, ErrDeniedPermission)
}

func TestReactions(t *testing.T) {
	f := newFixture(t)
	defer f.tearDown()
	ids := f.seedUsers(alice, bob, carol)

	group := f.seedGroup(ids["alice"], ids["bob"])
	res := f.send(ids["alice"], &MessageSendInput{ChatID: group.ID, Content: "react to me"})

	require.NoError(t, f.lifecycle.React(f.ctx, ids["bob"], res.Message.ID, "thumbs_up"))
	err := f.lifecycle.React(f.ctx, ids["bob"], res.Message.ID, "thumbs_up")
	assert.ErrorIs(t, err, ErrAlreadyReacted)

	// a different keyword by the same user is fine
	require.NoError(t, f.lifecycle.React(f.ctx, ids["bob"], res.Message.ID, "heart"))

	reactions, err := f.lifecycle.Reactions(f.ctx, ids["alice"], res.Message.ID)
	require.NoError(t, err)
	assert.Len(t, reactions, 2)

	require.NoError(t, f.lifecycle.Unreact(f.ctx, ids["bob"], res.Message.ID, "heart"))
	err = f.lifecycle.Unreact(f.ctx, ids["bob"], res.Message.ID, "heart")
	assert.ErrorIs(t, err, ErrReactionNotFound)

	// outsiders can neither react nor list
	assert.ErrorIs(t, f.lifecycle.React(f.ctx, ids["carol"], res.Message.ID, "wave"), ErrDeniedPermission)
	_, err = f.lifecycle.Reactions(f.ctx, ids["carol"], res.Message.ID)
	assert.ErrorIs(t, err, ErrDeniedPermission)
}

func TestChatMessagesPaging(t *testing.T) {
	f := newFixture(t)
	defer f.tearDown()
	ids := f.seedUsers(alice)

	group := f.seedGroup(ids["alice"])
	for i := 0; i < 5; i++ {
		f.send(ids["alice"], &MessageSendInput{ChatID: group.ID, Content: fmt.Sprintf("m%d", i)})
	}

	page, err := f.lifecycle.Messages(f.ctx, ids["alice"], group.ID, 0, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	// newest first
	assert.Equal(t, "m4", page[0].Content)
	assert.Equal(t, "m3", page[1].Content)

	rest, err := f.lifecycle.Messages(f.ctx, ids["alice"], group.ID, 2, 0)
	require.NoError(t, err)
	assert.Len(t, rest, 3)
}
