package simpchat

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/putto11262002/simpchat/core"
)

// Events dispatched by clients over the websocket. Server pushes use the
// event names defined in core.
const (
	SendMessageEvent = "send_message"
	MarkSeenEvent    = "mark_seen"
	TypingEvent      = "typing"
)

type MarkSeenEventPayload struct {
	ChatID string `json:"chat_id"`
}

type TypingEventPayload struct {
	Typing bool   `json:"typing"`
	UserID string `json:"user_id"`
	ChatID string `json:"chat_id"`
}

type PresenceEventPayload struct {
	UserID string `json:"user_id"`
}

func (app *App) SendMessageEventHandler(ctx context.Context, e *core.Event) error {
	var in core.MessageSendInput
	if err := json.Unmarshal(e.Payload, &in); err != nil {
		return fmt.Errorf("unmarshal send payload: %w", err)
	}

	result, err := app.lifecycle.Send(ctx, e.Dispatcher, &in)
	if err != nil {
		return fmt.Errorf("Send: %w", err)
	}

	// Echo the created message back to the sender's connections so every
	// open client of theirs renders it.
	return app.eventRouter.EmitTo(core.EventMessageSent, result.Message, e.Dispatcher)
}

func (app *App) MarkSeenEventHandler(ctx context.Context, e *core.Event) error {
	var payload MarkSeenEventPayload
	if err := json.Unmarshal(e.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal mark seen payload: %w", err)
	}

	if _, err := app.lifecycle.MarkSeen(ctx, e.Dispatcher, payload.ChatID); err != nil {
		return fmt.Errorf("MarkSeen: %w", err)
	}
	return nil
}

// TypingEventHandler relays typing indicators to the other chat members.
// Typing state is never persisted.
func (app *App) TypingEventHandler(ctx context.Context, e *core.Event) error {
	var payload TypingEventPayload
	if err := json.Unmarshal(e.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal typing payload: %w", err)
	}
	payload.UserID = e.Dispatcher

	chat, err := app.guard.Chat(ctx, payload.ChatID)
	if err != nil {
		return err
	}
	if err := app.guard.CanViewChat(ctx, chat, e.Dispatcher); err != nil {
		return err
	}

	recipients, err := app.fanout.RecipientsFor(ctx, chat, e.Dispatcher)
	if err != nil {
		return err
	}
	return app.eventRouter.EmitTo(TypingEvent, payload, recipients...)
}
