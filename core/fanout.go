package core

import (
	"context"
	"fmt"
	"log/slog"
)

// NotificationSink pushes an event to a single live connection.
// ConnManager is the production sink.
type NotificationSink interface {
	Push(connID string, e *Event) error
}

// NotificationFanout delivers chat events to the live connections of their
// recipients. Delivery is best-effort per connection: a dead or slow
// connection never fails the dispatch or blocks the other recipients. The
// durable notification record, written by the message lifecycle, is the
// fallback for anyone missed here.
type NotificationFanout struct {
	resolver *PermissionResolver
	presence *PresenceRegistry
	sink     NotificationSink
	logger   *slog.Logger
}

func NewNotificationFanout(resolver *PermissionResolver, presence *PresenceRegistry, sink NotificationSink, logger *slog.Logger) *NotificationFanout {
	return &NotificationFanout{
		resolver: resolver,
		presence: presence,
		sink:     sink,
		logger:   logger,
	}
}

// RecipientsFor returns every member of the chat except the actor.
func (f *NotificationFanout) RecipientsFor(ctx context.Context, chat *Chat, actorID string) ([]string, error) {
	memberIDs, err := f.resolver.Source(chat.Kind).MemberIDs(ctx, chat.ID)
	if err != nil {
		return nil, fmt.Errorf("MemberIDs: %w", err)
	}
	recipients := make([]string, 0, len(memberIDs))
	for _, id := range memberIDs {
		if id != actorID {
			recipients = append(recipients, id)
		}
	}
	return recipients, nil
}

// Dispatch marshals the payload once and pushes it to every live connection
// of every recipient. Push failures are logged and skipped.
func (f *NotificationFanout) Dispatch(eventType string, payload any, recipientIDs []string) {
	e, err := NewEvent(eventType, payload)
	if err != nil {
		f.logger.Error(fmt.Sprintf("dispatch %s: %s", eventType, err))
		return
	}

	for _, userID := range recipientIDs {
		for _, connID := range f.presence.Connections(userID) {
			if err := f.sink.Push(connID, e); err != nil {
				f.logger.Warn(fmt.Sprintf("push %s to %s (conn %s): %s", eventType, userID, connID, err))
			}
		}
	}
}

// DispatchToChat fans an event out to every member of the chat except the
// actor.
func (f *NotificationFanout) DispatchToChat(ctx context.Context, chat *Chat, actorID, eventType string, payload any) error {
	recipients, err := f.RecipientsFor(ctx, chat, actorID)
	if err != nil {
		return err
	}
	f.Dispatch(eventType, payload, recipients)
	return nil
}
