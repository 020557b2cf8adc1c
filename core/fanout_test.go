package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecipientsFor(t *testing.T) {
	f := newFixture(t)
	defer f.tearDown()
	ids := f.seedUsers(alice, bob, carol)

	t.Run("group recipients are every member but the actor", func(t *testing.T) {
		group := f.seedGroup(ids["alice"], ids["bob"], ids["carol"])
		chat, err := f.chats.GetChat(f.ctx, group.ID)
		require.NoError(t, err)

		got, err := f.fanout.RecipientsFor(f.ctx, chat, ids["bob"])
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{ids["alice"], ids["carol"]}, got)
	})

	t.Run("conversation recipient is the other participant", func(t *testing.T) {
		conv, err := f.chats.CreateConversation(f.ctx, ids["alice"], ids["bob"])
		require.NoError(t, err)
		chat, err := f.chats.GetChat(f.ctx, conv.ID)
		require.NoError(t, err)

		got, err := f.fanout.RecipientsFor(f.ctx, chat, ids["alice"])
		require.NoError(t, err)
		assert.Equal(t, []string{ids["bob"]}, got)
	})

	t.Run("channel recipients are the subscribers", func(t *testing.T) {
		channel := f.seedChannel(ids["alice"], ids["bob"])
		chat, err := f.chats.GetChat(f.ctx, channel.ID)
		require.NoError(t, err)

		got, err := f.fanout.RecipientsFor(f.ctx, chat, ids["alice"])
		require.NoError(t, err)
		assert.Equal(t, []string{ids["bob"]}, got)
	})
}

func TestDispatchBestEffort(t *testing.T) {
	f := newFixture(t)
	defer f.tearDown()
	ids := f.seedUsers(alice, bob, carol)

	// bob has two connections, one of which fails on push. carol is offline.
	f.presence.Connect(ids["bob"], "bob-1")
	f.presence.Connect(ids["bob"], "bob-2")
	f.presence.Connect(ids["alice"], "alice-1")
	f.sink.failing["bob-1"] = true

	f.fanout.Dispatch(EventTyping, map[string]string{"user_id": ids["alice"]}, []string{ids["bob"], ids["carol"]})

	// the failing connection does not stop delivery to the healthy one
	assert.Empty(t, f.sink.pushed["bob-1"])
	require.Len(t, f.sink.pushed["bob-2"], 1)
	assert.Equal(t, EventTyping, f.sink.pushed["bob-2"][0].Type)

	// users outside the recipient list get nothing even when online
	assert.Empty(t, f.sink.pushed["alice-1"])
}

func TestDispatchMarshalsOnce(t *testing.T) {
	f := newFixture(t)
	defer f.tearDown()
	ids := f.seedUsers(alice, bob)

	f.presence.Connect(ids["alice"], "alice-1")
	f.presence.Connect(ids["bob"], "bob-1")

	f.fanout.Dispatch(EventUserOnline, map[string]string{"user_id": ids["alice"]}, []string{ids["alice"], ids["bob"]})

	require.Len(t, f.sink.pushed["alice-1"], 1)
	require.Len(t, f.sink.pushed["bob-1"], 1)
	// every connection sees the same encoded event
	assert.Equal(t, f.sink.pushed["alice-1"][0].Payload, f.sink.pushed["bob-1"][0].Payload)
}
