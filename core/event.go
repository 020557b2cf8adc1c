package core

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
)

// Event names pushed to and received from clients.
const (
	EventMessageSent         = "message_sent"
	EventMessageEdited       = "message_edited"
	EventMessageDeleted      = "message_deleted"
	EventMessagePinned       = "message_pinned"
	EventMessageUnpinned     = "message_unpinned"
	EventMessagesSeen        = "messages_seen"
	EventMessageReacted      = "message_reacted"
	EventMessageUnreacted    = "message_unreacted"
	EventConversationCreated = "conversation_created"
	EventUserOnline          = "user_online"
	EventUserOffline         = "user_offline"
	EventTyping              = "typing"
)

type Event struct {
	ID         int             `json:"-"`
	Dispatcher string          `json:"-"`
	Type       string          `json:"type"`
	Payload    json.RawMessage `json:"payload"`
}

func (e Event) String() string {
	return fmt.Sprintf("Event{ID: %d, Dispatcher: %s, Type: %s, Payload.Size: %d}", e.ID, e.Dispatcher, e.Type, len(e.Payload))
}

func NewEvent(t string, payload any) (*Event, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal event payload: %w", err)
	}
	return &Event{Type: t, Payload: b}, nil
}

func EncodeEvent(w io.Writer, e *Event) error {
	if err := json.NewEncoder(w).Encode(e); err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	return nil
}

func DecodeEvent(r io.Reader, e *Event) error {
	if err := json.NewDecoder(r).Decode(e); err != nil {
		return fmt.Errorf("decode event: %w", err)
	}
	return nil
}

type EventTransport interface {
	Send(event *Event)
	SendToUsers(event *Event, userIDs ...string)
	Receive() <-chan *Event
}

type EventHandler func(context.Context, *Event) error

type EventRouter struct {
	listeners map[string]EventHandler
	ctx       context.Context
	transport EventTransport
	logger    *slog.Logger
}

func NewEventRouter(ctx context.Context, logger *slog.Logger, transport EventTransport) *EventRouter {
	return &EventRouter{
		listeners: make(map[string]EventHandler),
		ctx:       ctx,
		transport: transport,
		logger:    logger,
	}
}

func (em *EventRouter) Listen(wg *sync.WaitGroup) {
	defer wg.Done()
	for {
		select {
		case e := <-em.transport.Receive():
			em.logger.Debug(fmt.Sprintf("received: %v", e))
			if handler, ok := em.listeners[e.Type]; ok {
				go func() {
					if err := handler(em.ctx, e); err != nil {
						em.logger.Error(fmt.Sprintf("%s handler: %s", e.Type, err))
					}
				}()
			}
		case <-em.ctx.Done():
			return
		}
	}
}

func (em *EventRouter) On(eventName string, handler EventHandler) {
	em.listeners[eventName] = handler
}

// Emit sends an event to every connected client.
func (em *EventRouter) Emit(t string, payload any) error {
	e, err := NewEvent(t, payload)
	if err != nil {
		return err
	}
	em.transport.Send(e)
	return nil
}

// EmitTo sends an event to every connection of the given users.
func (em *EventRouter) EmitTo(t string, payload any, userIDs ...string) error {
	e, err := NewEvent(t, payload)
	if err != nil {
		return err
	}
	em.transport.SendToUsers(e, userIDs...)
	return nil
}
