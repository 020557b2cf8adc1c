package simpchat

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/putto11262002/simpchat/core"
)

type BanHandler struct {
	membership *core.MembershipService
}

func NewBanHandler(membership *core.MembershipService) *BanHandler {
	return &BanHandler{membership: membership}
}

type BanUserPayload struct {
	UserID string `json:"user_id" validate:"required"`
}

func (h *BanHandler) BanUserHandler(w http.ResponseWriter, r *http.Request) error {
	session := core.SessionFromRequest(r)
	var payload BanUserPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		return fmt.Errorf("Decode: %w", err)
	}
	r.Body.Close()

	if err := validate.Struct(payload); err != nil {
		return invalidInput(err)
	}

	if err := h.membership.BanUser(r.Context(), r.PathValue("chatID"), session.UserID, payload.UserID); err != nil {
		return err
	}
	w.WriteHeader(http.StatusCreated)
	return nil
}

func (h *BanHandler) UnbanUserHandler(w http.ResponseWriter, r *http.Request) error {
	session := core.SessionFromRequest(r)
	if err := h.membership.UnbanUser(r.Context(), r.PathValue("chatID"), session.UserID, r.PathValue("userID")); err != nil {
		return err
	}
	w.WriteHeader(http.StatusOK)
	return nil
}

func (h *BanHandler) ChatBansHandler(w http.ResponseWriter, r *http.Request) error {
	session := core.SessionFromRequest(r)
	bans, err := h.membership.ChatBans(r.Context(), r.PathValue("chatID"), session.UserID)
	if err != nil {
		return err
	}
	if bans == nil {
		bans = []core.ChatBan{}
	}
	json.NewEncoder(w).Encode(bans)
	return nil
}
