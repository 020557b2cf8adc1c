package core

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/require"
)

var (
	alice = UserCreateInput{Username: "alice", Password: "password", Name: "Alice"}
	bob   = UserCreateInput{Username: "bob", Password: "password", Name: "Bob"}
	carol = UserCreateInput{Username: "carol", Password: "password", Name: "Carol"}
	dave  = UserCreateInput{Username: "dave", Password: "password", Name: "Dave"}
)

type fixture struct {
	users       UserStore
	chats       *SQLiteChatStore
	messages    MessageStore
	chatBans    ChatBanStore
	userBans    UserBanStore
	permissions PermissionStore

	resolver   *PermissionResolver
	guard      *MembershipGuard
	presence   *PresenceRegistry
	fanout     *NotificationFanout
	membership *MembershipService
	lifecycle  *MessageLifecycle
	sink       *fakeSink

	db       *sql.DB
	ctx      context.Context
	tearDown func()
	t        *testing.T
}

// fakeSink records pushed events and can be told to fail for specific
// connections.
type fakeSink struct {
	pushed  map[string][]*Event
	failing map[string]bool
}

func newFakeSink() *fakeSink {
	return &fakeSink{
		pushed:  make(map[string][]*Event),
		failing: make(map[string]bool),
	}
}

func (s *fakeSink) Push(connID string, e *Event) error {
	if s.failing[connID] {
		return errFakePush
	}
	s.pushed[connID] = append(s.pushed[connID], e)
	return nil
}

var errFakePush = sql.ErrConnDone

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newFixture(t *testing.T) *fixture {
	ctx, cancel := context.WithCancel(context.Background())

	// Each test gets its own named in-memory database so fixtures do not
	// observe one another's rows. Foreign keys are enforced to mirror the
	// options the application opens the database with.
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=on", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		t.Fatal(err)
	}

	migrationfs := os.DirFS("../migrations")
	goose.SetBaseFS(migrationfs)

	if err := goose.SetDialect("sqlite3"); err != nil {
		t.Fatal(err)
	}

	if err := goose.Up(db, "."); err != nil {
		t.Fatal(err)
	}

	chats := NewSQLiteChatStore(db)
	users := NewSQLiteUserStore(db)
	messages := NewSQLiteMessageStore(db)
	chatBans := NewSQLiteChatBanStore(db)
	userBans := NewSQLiteUserBanStore(db)
	permissions := NewSQLitePermissionStore(db)

	resolver := NewPermissionResolver(chats, chats, chatBans, permissions)
	guard := NewMembershipGuard(chats, chats, resolver, userBans)
	presence := NewPresenceRegistry(chats)
	sink := newFakeSink()
	fanout := NewNotificationFanout(resolver, presence, sink, testLogger())
	membership := NewMembershipService(chats, chats, users, chatBans, userBans, permissions, resolver, guard)
	lifecycle := NewMessageLifecycle(chats, chats, messages, users, guard, resolver, fanout)

	return &fixture{
		users:       users,
		chats:       chats,
		messages:    messages,
		chatBans:    chatBans,
		userBans:    userBans,
		permissions: permissions,
		resolver:    resolver,
		guard:       guard,
		presence:    presence,
		fanout:      fanout,
		membership:  membership,
		lifecycle:   lifecycle,
		sink:        sink,
		db:          db,
		ctx:         ctx,
		tearDown: func() {
			cancel()
			db.Close()
		},
		t: t,
	}
}

func (f *fixture) seedUsers(inputs ...UserCreateInput) map[string]string {
	ids := make(map[string]string, len(inputs))
	for _, in := range inputs {
		user, err := f.users.CreateUser(f.ctx, in)
		require.NoError(f.t, err)
		ids[in.Username] = user.ID
	}
	return ids
}

func (f *fixture) seedGroup(ownerID string, memberIDs ...string) *GroupInfo {
	group, err := f.membership.CreateGroup(f.ctx, "test group", "", ownerID, Public)
	require.NoError(f.t, err)
	for _, id := range memberIDs {
		require.NoError(f.t, f.membership.Join(f.ctx, group.ID, id))
	}
	return group
}

func (f *fixture) seedChannel(ownerID string, subscriberIDs ...string) *ChannelInfo {
	channel, err := f.membership.CreateChannel(f.ctx, "test channel", "", ownerID, Public)
	require.NoError(f.t, err)
	for _, id := range subscriberIDs {
		require.NoError(f.t, f.membership.Join(f.ctx, channel.ID, id))
	}
	return channel
}
