package core

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
)

// ConnManager owns every live websocket connection. It registers connection
// transitions with the presence registry and fires the online/offline hooks
// exactly when a user's first connection opens or last connection closes.
// It is both the EventTransport feeding the event router and the
// NotificationSink the fanout pushes through.
type ConnManager struct {
	conns   map[string][]*Conn
	byID    map[string]*Conn
	mu      sync.RWMutex
	connWg  *sync.WaitGroup
	context context.Context
	logger  *slog.Logger

	presence *PresenceRegistry

	onUserOnline  func(string)
	onUserOffline func(string)

	receivedEvent chan *Event

	upgrader        websocket.Upgrader
	ReadStreamSize  int
	WriteStreamSize int
}

var defaultUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type ManagerOption func(*ConnManager)

func WithCheckOrigin(f func(r *http.Request) bool) ManagerOption {
	return func(m *ConnManager) {
		m.upgrader.CheckOrigin = f
	}
}

func NewConnManager(ctx context.Context, wg *sync.WaitGroup, logger *slog.Logger, presence *PresenceRegistry, opts ...ManagerOption) *ConnManager {
	m := &ConnManager{
		connWg:          wg,
		conns:           make(map[string][]*Conn),
		byID:            make(map[string]*Conn),
		logger:          logger,
		context:         ctx,
		presence:        presence,
		upgrader:        defaultUpgrader,
		ReadStreamSize:  100,
		WriteStreamSize: 100,
		onUserOnline:    func(string) {},
		onUserOffline:   func(string) {},
	}

	for _, opt := range opts {
		opt(m)
	}

	m.receivedEvent = make(chan *Event, m.ReadStreamSize)

	return m
}

func (m *ConnManager) Receive() <-chan *Event {
	return m.receivedEvent
}

// OnUserOnline registers a hook fired when a user's first connection opens.
func (m *ConnManager) OnUserOnline(f func(string)) {
	m.onUserOnline = f
}

// OnUserOffline registers a hook fired when a user's last connection closes.
func (m *ConnManager) OnUserOffline(f func(string)) {
	m.onUserOffline = f
}

func (m *ConnManager) Connect(userID string, w http.ResponseWriter, r *http.Request) error {
	conn, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return err
	}

	id := uuid.New().String()
	wsConn := &Conn{
		userID:      userID,
		id:          id,
		conn:        conn,
		context:     m.context,
		writeStream: make(chan *Event, m.WriteStreamSize),
		readStream:  m.receivedEvent,
		ticker:      time.NewTicker(pingPeriod),
		logger:      m.logger.With(slog.String("connection", fmt.Sprintf("%s:%s", userID, id))),
		notifyDisconnect: func() {
			m.disconnect(userID, id)
		},
	}

	m.mu.Lock()
	m.conns[userID] = append(m.conns[userID], wsConn)
	m.byID[id] = wsConn
	m.mu.Unlock()

	m.connWg.Add(1)
	go func() {
		defer m.connWg.Done()
		wsConn.readLoop()
	}()
	m.connWg.Add(1)
	go func() {
		defer m.connWg.Done()
		wsConn.writeLoop()
	}()

	if first := m.presence.Connect(userID, id); first {
		m.onUserOnline(userID)
	}

	return nil
}

func (m *ConnManager) disconnect(userID, id string) {
	m.mu.Lock()
	conns, ok := m.conns[userID]
	if !ok {
		m.mu.Unlock()
		return
	}

	for i, c := range conns {
		if c.id == id {
			c.close()
			conns = append(conns[:i], conns[i+1:]...)
			break
		}
	}
	if len(conns) == 0 {
		delete(m.conns, userID)
	} else {
		m.conns[userID] = conns
	}
	delete(m.byID, id)
	m.mu.Unlock()

	if last := m.presence.Disconnect(userID, id); last {
		m.onUserOffline(userID)
	}
}

// Push implements NotificationSink. It hands the event to one connection's
// write stream without blocking; a full stream or an unknown connection is
// reported as an error and the caller moves on.
func (m *ConnManager) Push(connID string, e *Event) error {
	m.mu.RLock()
	conn, ok := m.byID[connID]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("connection %s not found", connID)
	}

	select {
	case conn.writeStream <- e:
		return nil
	default:
		return fmt.Errorf("connection %s write stream full", connID)
	}
}

func (m *ConnManager) Send(e *Event) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for conns := range maps.Values(m.conns) {
		for _, conn := range conns {
			conn.writeStream <- e
		}
	}
}

func (m *ConnManager) SendToUsers(e *Event, userIDs ...string) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range userIDs {
		conns, ok := m.conns[u]
		if !ok {
			continue
		}
		for _, conn := range conns {
			conn.writeStream <- e
		}
	}
}
