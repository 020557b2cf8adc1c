package simpchat

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/cors"
	"github.com/putto11262002/simpchat/core"
	"github.com/putto11262002/simpchat/pkg/router"
)

type App struct {
	config      *Config
	db          *core.SQLiteDB
	context     context.Context
	server      *http.Server
	logger      *slog.Logger
	router      *router.Router
	eventRouter *core.EventRouter
	wsManager   *core.ConnManager

	exit chan int

	userStore       core.UserStore
	chatStore       *core.SQLiteChatStore
	messageStore    core.MessageStore
	chatBanStore    core.ChatBanStore
	userBanStore    core.UserBanStore
	permissionStore core.PermissionStore
	authStore       core.AuthStore

	presence   *core.PresenceRegistry
	resolver   *core.PermissionResolver
	guard      *core.MembershipGuard
	fanout     *core.NotificationFanout
	membership *core.MembershipService
	lifecycle  *core.MessageLifecycle

	userHandler       *UserHandler
	chatHandler       *ChatHandler
	banHandler        *BanHandler
	permissionHandler *PermissionHandler
	messageHandler    *MessageHandler
	authHandler       *AuthHandler

	cleanupFuncs []func(context.Context)

	wg sync.WaitGroup
}

func New(ctx context.Context, config *Config) *App {
	var err error
	app := &App{
		exit: make(chan int),
	}
	if ctx == nil {
		ctx, _ = signal.NotifyContext(
			context.Background(),
			syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT, syscall.SIGHUP)
	}
	app.context = ctx

	if config == nil {
		var err error
		config, err = LoadConfig()
		if err != nil {
			failed(1, "failed to load config: %v\n", err)
		}
	}
	if err := config.Validate(); err != nil {
		failed(1, FormatValidationErrors(err))
	}
	app.config = config

	app.logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug,
		AddSource: true,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.SourceKey {
				source, _ := a.Value.Any().(*slog.Source)
				if source != nil {
					source.File = filepath.Base(source.File)
				}
			}
			return a
		},
	}))

	sqliteOptions := &core.SQLiteDBOption{
		Mode:        "rwc",
		Cache:       "shared",
		JournalMode: "WAL",
		ForeignKeys: true,
	}
	app.db, err = core.NewSQLiteDB(app.config.SQLite.File, app.config.SQLite.Migrations, sqliteOptions)
	if err != nil {
		failed(1, "failed to open database: %v\n", err)
	}
	app.AddCleanupFunc(func(ctx context.Context) {
		app.db.Close()
	})
	if err := app.db.Migrate(); err != nil {
		failed(1, "failed to migrate database: %v\n", err)
	}

	app.userStore = core.NewSQLiteUserStore(app.db.DB)
	app.authStore = core.NewSQLiteAuthStore(app.db.DB, app.userStore, []byte(app.config.Auth.Secret))
	app.chatStore = core.NewSQLiteChatStore(app.db.DB)
	app.messageStore = core.NewSQLiteMessageStore(app.db.DB)
	app.chatBanStore = core.NewSQLiteChatBanStore(app.db.DB)
	app.userBanStore = core.NewSQLiteUserBanStore(app.db.DB)
	app.permissionStore = core.NewSQLitePermissionStore(app.db.DB)

	app.presence = core.NewPresenceRegistry(app.chatStore)
	app.resolver = core.NewPermissionResolver(app.chatStore, app.chatStore, app.chatBanStore, app.permissionStore)
	app.guard = core.NewMembershipGuard(app.chatStore, app.chatStore, app.resolver, app.userBanStore)

	app.wsManager = core.NewConnManager(app.context, &app.wg, app.logger, app.presence)
	app.wsManager.OnUserOnline(app.onUserOnline)
	app.wsManager.OnUserOffline(app.onUserOffline)

	app.fanout = core.NewNotificationFanout(app.resolver, app.presence, app.wsManager, app.logger)
	app.membership = core.NewMembershipService(
		app.chatStore, app.chatStore, app.userStore,
		app.chatBanStore, app.userBanStore, app.permissionStore,
		app.resolver, app.guard)
	app.lifecycle = core.NewMessageLifecycle(
		app.chatStore, app.chatStore, app.messageStore, app.userStore,
		app.guard, app.resolver, app.fanout)

	app.eventRouter = core.NewEventRouter(app.context, app.logger, app.wsManager)
	app.eventRouter.On(SendMessageEvent, app.SendMessageEventHandler)
	app.eventRouter.On(MarkSeenEvent, app.MarkSeenEventHandler)
	app.eventRouter.On(TypingEvent, app.TypingEventHandler)

	app.userHandler = NewUserHandler(app.userStore, app.membership)
	app.chatHandler = NewChatHandler(app.chatStore, app.membership)
	app.banHandler = NewBanHandler(app.membership)
	app.permissionHandler = NewPermissionHandler(app.membership)
	app.messageHandler = NewMessageHandler(app.lifecycle)
	app.authHandler = NewAuthHandler(app.authStore)
	authMiddleware := core.JWTMiddleware(app.authStore)

	app.router = router.New(router.WithLogger(app.logger), router.WithErrorMapper(mapCoreError))

	app.router.Router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   app.config.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	app.router.With(authMiddleware).Router.Get("/ws", func(w http.ResponseWriter, r *http.Request) {
		session := core.SessionFromRequest(r)
		if err := app.wsManager.Connect(session.UserID, w, r); err != nil {
			return
		}
	})

	api := router.New(router.WithLogger(app.logger), router.WithErrorMapper(mapCoreError))

	api.Route("/auth", func(r *router.Router) {
		r.Post("/signin", app.authHandler.SigninHandler)
		r.With(authMiddleware).Post("/signout", app.authHandler.SignoutHandler)
	})

	api.Route("/users", func(r *router.Router) {
		r.Post("/", app.userHandler.RegisterUserHandler)
		r.With(authMiddleware).Get("/me", app.userHandler.MeHandler)
		r.With(authMiddleware).Get("/me/blocks", app.userHandler.BlockedUsersHandler)
		r.With(authMiddleware).Post("/{userID}/block", app.userHandler.BlockUserHandler)
		r.With(authMiddleware).Delete("/{userID}/block", app.userHandler.UnblockUserHandler)
		r.Get("/{username}", app.userHandler.GetUserByUsernameHandler)
	})

	api.Group(func(r *router.Router) {
		r.Use(authMiddleware)

		r.Get("/chats", app.chatHandler.MyChatsHandler)
		r.Post("/chats/groups", app.chatHandler.CreateGroupHandler)
		r.Post("/chats/channels", app.chatHandler.CreateChannelHandler)
		r.Get("/chats/groups/{chatID}", app.chatHandler.GetGroupHandler)
		r.Get("/chats/channels/{chatID}", app.chatHandler.GetChannelHandler)
		r.Post("/chats/{chatID}/join", app.chatHandler.JoinHandler)
		r.Post("/chats/{chatID}/leave", app.chatHandler.LeaveHandler)
		r.Post("/chats/{chatID}/members", app.chatHandler.AddMemberHandler)
		r.Delete("/chats/{chatID}/members/{userID}", app.chatHandler.RemoveMemberHandler)
		r.Put("/chats/{chatID}/privacy", app.chatHandler.UpdatePrivacyHandler)

		r.Get("/chats/{chatID}/bans", app.banHandler.ChatBansHandler)
		r.Post("/chats/{chatID}/bans", app.banHandler.BanUserHandler)
		r.Delete("/chats/{chatID}/bans/{userID}", app.banHandler.UnbanUserHandler)

		r.Get("/chats/{chatID}/permissions", app.permissionHandler.ChatPermissionsHandler)
		r.Post("/chats/{chatID}/permissions", app.permissionHandler.GrantHandler)
		r.Get("/chats/{chatID}/permissions/{userID}", app.permissionHandler.UserPermissionsHandler)
		r.Delete("/chats/{chatID}/permissions/{userID}", app.permissionHandler.RevokeHandler)

		r.Get("/chats/{chatID}/messages", app.messageHandler.ChatMessagesHandler)
		r.Get("/chats/{chatID}/pins", app.messageHandler.PinnedMessagesHandler)
		r.Post("/chats/{chatID}/seen", app.messageHandler.MarkSeenHandler)

		r.Post("/messages", app.messageHandler.SendMessageHandler)
		r.Put("/messages/{messageID}", app.messageHandler.EditMessageHandler)
		r.Delete("/messages/{messageID}", app.messageHandler.DeleteMessageHandler)
		r.Post("/messages/{messageID}/pin", app.messageHandler.PinMessageHandler)
		r.Delete("/messages/{messageID}/pin", app.messageHandler.UnpinMessageHandler)
		r.Get("/messages/{messageID}/reactions", app.messageHandler.ReactionsHandler)
		r.Post("/messages/{messageID}/reactions", app.messageHandler.ReactHandler)
		r.Delete("/messages/{messageID}/reactions", app.messageHandler.UnreactHandler)

		r.Get("/notifications", app.messageHandler.UnseenNotificationsHandler)
	})

	app.router.Mount("/api", api)

	app.server = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", app.config.Hostname, app.config.Port),
		Handler: app.router.Router,
		BaseContext: func(listener net.Listener) context.Context {
			return app.context
		},
	}

	return app
}

func (app *App) Start() {
	app.wg.Add(1)
	go app.eventRouter.Listen(&app.wg)

	// listen for shutdown signal
	go func() {
		<-app.context.Done()
		closeCtx, closeCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer closeCancel()
		var wg sync.WaitGroup

		for _, f := range app.cleanupFuncs {
			wg.Add(1)
			go func(f func(context.Context)) {
				defer wg.Done()
				f(closeCtx)
			}(f)
		}

		done := make(chan struct{})
		go func() {
			wg.Wait()
			close(done)
		}()

		select {
		case <-done:
			app.logger.Info("app shutdown gracefully")
			app.exit <- 0
		case <-closeCtx.Done():
			app.logger.Info("app shutdown timed out")
			app.exit <- 1
		}
	}()

	app.AddCleanupFunc(func(ctx context.Context) {
		app.server.Shutdown(ctx)
	})
	app.logger.Info(fmt.Sprintf("app running on: %s:%d", app.config.Hostname, app.config.Port))

	err := app.server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		failed(1, "server error: %v\n", err)
	}

	code := <-app.exit
	os.Exit(code)
}

func (app *App) AddCleanupFunc(f func(context.Context)) {
	app.cleanupFuncs = append(app.cleanupFuncs, f)
}

func failed(code int, s string, args ...interface{}) {
	fmt.Printf(s, args...)
	os.Exit(code)
}
