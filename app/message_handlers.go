package simpchat

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/putto11262002/simpchat/core"
)

type MessageHandler struct {
	lifecycle *core.MessageLifecycle
}

func NewMessageHandler(lifecycle *core.MessageLifecycle) *MessageHandler {
	return &MessageHandler{lifecycle: lifecycle}
}

func (h *MessageHandler) SendMessageHandler(w http.ResponseWriter, r *http.Request) error {
	session := core.SessionFromRequest(r)
	var in core.MessageSendInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		return fmt.Errorf("Decode: %w", err)
	}
	r.Body.Close()

	result, err := h.lifecycle.Send(r.Context(), session.UserID, &in)
	if err != nil {
		return err
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(result)
	return nil
}

func (h *MessageHandler) ChatMessagesHandler(w http.ResponseWriter, r *http.Request) error {
	session := core.SessionFromRequest(r)
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	messages, err := h.lifecycle.Messages(r.Context(), session.UserID, r.PathValue("chatID"), offset, limit)
	if err != nil {
		return err
	}
	if messages == nil {
		messages = []core.Message{}
	}
	json.NewEncoder(w).Encode(messages)
	return nil
}

type EditMessagePayload struct {
	Content string `json:"content"`
	FileURL string `json:"file_url"`
	ReplyID string `json:"reply_id"`
}

func (h *MessageHandler) EditMessageHandler(w http.ResponseWriter, r *http.Request) error {
	session := core.SessionFromRequest(r)
	var payload EditMessagePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		return fmt.Errorf("Decode: %w", err)
	}
	r.Body.Close()

	m, err := h.lifecycle.Edit(r.Context(), session.UserID, r.PathValue("messageID"), payload.Content, payload.FileURL, payload.ReplyID)
	if err != nil {
		return err
	}
	json.NewEncoder(w).Encode(m)
	return nil
}

func (h *MessageHandler) DeleteMessageHandler(w http.ResponseWriter, r *http.Request) error {
	session := core.SessionFromRequest(r)
	if err := h.lifecycle.Delete(r.Context(), session.UserID, r.PathValue("messageID")); err != nil {
		return err
	}
	w.WriteHeader(http.StatusOK)
	return nil
}

func (h *MessageHandler) PinMessageHandler(w http.ResponseWriter, r *http.Request) error {
	session := core.SessionFromRequest(r)
	m, err := h.lifecycle.Pin(r.Context(), session.UserID, r.PathValue("messageID"))
	if err != nil {
		return err
	}
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(m)
	return nil
}

func (h *MessageHandler) UnpinMessageHandler(w http.ResponseWriter, r *http.Request) error {
	session := core.SessionFromRequest(r)
	m, err := h.lifecycle.Unpin(r.Context(), session.UserID, r.PathValue("messageID"))
	if err != nil {
		return err
	}
	json.NewEncoder(w).Encode(m)
	return nil
}

func (h *MessageHandler) PinnedMessagesHandler(w http.ResponseWriter, r *http.Request) error {
	session := core.SessionFromRequest(r)
	messages, err := h.lifecycle.Pinned(r.Context(), session.UserID, r.PathValue("chatID"))
	if err != nil {
		return err
	}
	if messages == nil {
		messages = []core.Message{}
	}
	json.NewEncoder(w).Encode(messages)
	return nil
}

func (h *MessageHandler) MarkSeenHandler(w http.ResponseWriter, r *http.Request) error {
	session := core.SessionFromRequest(r)
	receipt, err := h.lifecycle.MarkSeen(r.Context(), session.UserID, r.PathValue("chatID"))
	if err != nil {
		return err
	}
	json.NewEncoder(w).Encode(receipt)
	return nil
}

func (h *MessageHandler) UnseenNotificationsHandler(w http.ResponseWriter, r *http.Request) error {
	session := core.SessionFromRequest(r)
	notifs, err := h.lifecycle.UnseenNotifications(r.Context(), session.UserID)
	if err != nil {
		return err
	}
	if notifs == nil {
		notifs = []core.Notification{}
	}
	json.NewEncoder(w).Encode(notifs)
	return nil
}

type ReactPayload struct {
	Keyword string `json:"keyword"`
}

func (h *MessageHandler) ReactHandler(w http.ResponseWriter, r *http.Request) error {
	session := core.SessionFromRequest(r)
	var payload ReactPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		return fmt.Errorf("Decode: %w", err)
	}
	r.Body.Close()

	if err := h.lifecycle.React(r.Context(), session.UserID, r.PathValue("messageID"), payload.Keyword); err != nil {
		return err
	}
	w.WriteHeader(http.StatusCreated)
	return nil
}

func (h *MessageHandler) UnreactHandler(w http.ResponseWriter, r *http.Request) error {
	session := core.SessionFromRequest(r)
	keyword := r.URL.Query().Get("keyword")
	if err := h.lifecycle.Unreact(r.Context(), session.UserID, r.PathValue("messageID"), keyword); err != nil {
		return err
	}
	w.WriteHeader(http.StatusOK)
	return nil
}

func (h *MessageHandler) ReactionsHandler(w http.ResponseWriter, r *http.Request) error {
	session := core.SessionFromRequest(r)
	reactions, err := h.lifecycle.Reactions(r.Context(), session.UserID, r.PathValue("messageID"))
	if err != nil {
		return err
	}
	if reactions == nil {
		reactions = []core.Reaction{}
	}
	json.NewEncoder(w).Encode(reactions)
	return nil
}
