package simpchat

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/putto11262002/simpchat/core"
	"github.com/putto11262002/simpchat/pkg/router"
)

type ChatHandler struct {
	memberships core.MembershipStore
	membership  *core.MembershipService
}

func NewChatHandler(memberships core.MembershipStore, membership *core.MembershipService) *ChatHandler {
	return &ChatHandler{memberships: memberships, membership: membership}
}

type CreateChatPayload struct {
	Name        string `json:"name" validate:"required,max=64"`
	Description string `json:"description" validate:"max=512"`
	Private     bool   `json:"private"`
}

func (h *ChatHandler) CreateGroupHandler(w http.ResponseWriter, r *http.Request) error {
	session := core.SessionFromRequest(r)
	var payload CreateChatPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		return fmt.Errorf("Decode: %w", err)
	}
	r.Body.Close()

	if err := validate.Struct(payload); err != nil {
		return invalidInput(err)
	}

	privacy := core.Public
	if payload.Private {
		privacy = core.Private
	}
	group, err := h.membership.CreateGroup(r.Context(), payload.Name, payload.Description, session.UserID, privacy)
	if err != nil {
		return err
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(group)
	return nil
}

func (h *ChatHandler) CreateChannelHandler(w http.ResponseWriter, r *http.Request) error {
	session := core.SessionFromRequest(r)
	var payload CreateChatPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		return fmt.Errorf("Decode: %w", err)
	}
	r.Body.Close()

	if err := validate.Struct(payload); err != nil {
		return invalidInput(err)
	}

	privacy := core.Public
	if payload.Private {
		privacy = core.Private
	}
	channel, err := h.membership.CreateChannel(r.Context(), payload.Name, payload.Description, session.UserID, privacy)
	if err != nil {
		return err
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(channel)
	return nil
}

type MyChatsResponse struct {
	Conversations []core.ConversationInfo `json:"conversations"`
	Groups        []core.GroupInfo        `json:"groups"`
	Channels      []core.ChannelInfo      `json:"channels"`
}

func (h *ChatHandler) MyChatsHandler(w http.ResponseWriter, r *http.Request) error {
	session := core.SessionFromRequest(r)
	ctx := r.Context()

	convs, err := h.memberships.UserConversations(ctx, session.UserID)
	if err != nil {
		return err
	}
	groups, err := h.memberships.UserGroups(ctx, session.UserID)
	if err != nil {
		return err
	}
	channels, err := h.memberships.UserChannels(ctx, session.UserID)
	if err != nil {
		return err
	}

	json.NewEncoder(w).Encode(MyChatsResponse{
		Conversations: convs,
		Groups:        groups,
		Channels:      channels,
	})
	return nil
}

func (h *ChatHandler) GetGroupHandler(w http.ResponseWriter, r *http.Request) error {
	group, err := h.memberships.GetGroup(r.Context(), r.PathValue("chatID"))
	if err != nil {
		return err
	}
	if group == nil {
		return router.NewJsonError(http.StatusNotFound, "group not found")
	}
	json.NewEncoder(w).Encode(group)
	return nil
}

func (h *ChatHandler) GetChannelHandler(w http.ResponseWriter, r *http.Request) error {
	channel, err := h.memberships.GetChannel(r.Context(), r.PathValue("chatID"))
	if err != nil {
		return err
	}
	if channel == nil {
		return router.NewJsonError(http.StatusNotFound, "channel not found")
	}
	json.NewEncoder(w).Encode(channel)
	return nil
}

func (h *ChatHandler) JoinHandler(w http.ResponseWriter, r *http.Request) error {
	session := core.SessionFromRequest(r)
	if err := h.membership.Join(r.Context(), r.PathValue("chatID"), session.UserID); err != nil {
		return err
	}
	w.WriteHeader(http.StatusCreated)
	return nil
}

type AddMemberPayload struct {
	UserID string `json:"user_id" validate:"required"`
}

func (h *ChatHandler) AddMemberHandler(w http.ResponseWriter, r *http.Request) error {
	session := core.SessionFromRequest(r)
	var payload AddMemberPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		return fmt.Errorf("Decode: %w", err)
	}
	r.Body.Close()

	if err := validate.Struct(payload); err != nil {
		return invalidInput(err)
	}

	if err := h.membership.AddMember(r.Context(), r.PathValue("chatID"), session.UserID, payload.UserID); err != nil {
		return err
	}
	w.WriteHeader(http.StatusCreated)
	return nil
}

func (h *ChatHandler) RemoveMemberHandler(w http.ResponseWriter, r *http.Request) error {
	session := core.SessionFromRequest(r)
	if err := h.membership.RemoveMember(r.Context(), r.PathValue("chatID"), session.UserID, r.PathValue("userID")); err != nil {
		return err
	}
	w.WriteHeader(http.StatusOK)
	return nil
}

func (h *ChatHandler) LeaveHandler(w http.ResponseWriter, r *http.Request) error {
	session := core.SessionFromRequest(r)
	if err := h.membership.Leave(r.Context(), r.PathValue("chatID"), session.UserID); err != nil {
		return err
	}
	w.WriteHeader(http.StatusOK)
	return nil
}

type UpdatePrivacyPayload struct {
	Private bool `json:"private"`
}

func (h *ChatHandler) UpdatePrivacyHandler(w http.ResponseWriter, r *http.Request) error {
	session := core.SessionFromRequest(r)
	var payload UpdatePrivacyPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		return fmt.Errorf("Decode: %w", err)
	}
	r.Body.Close()

	privacy := core.Public
	if payload.Private {
		privacy = core.Private
	}
	if err := h.membership.UpdatePrivacy(r.Context(), r.PathValue("chatID"), session.UserID, privacy); err != nil {
		return err
	}
	w.WriteHeader(http.StatusOK)
	return nil
}
