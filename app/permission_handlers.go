package simpchat

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/putto11262002/simpchat/core"
)

type PermissionHandler struct {
	membership *core.MembershipService
}

func NewPermissionHandler(membership *core.MembershipService) *PermissionHandler {
	return &PermissionHandler{membership: membership}
}

type GrantPayload struct {
	UserID     string          `json:"user_id" validate:"required"`
	Permission core.Permission `json:"permission" validate:"required"`
}

func (h *PermissionHandler) GrantHandler(w http.ResponseWriter, r *http.Request) error {
	session := core.SessionFromRequest(r)
	var payload GrantPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		return fmt.Errorf("Decode: %w", err)
	}
	r.Body.Close()

	if err := validate.Struct(payload); err != nil {
		return invalidInput(err)
	}

	if err := h.membership.Grant(r.Context(), r.PathValue("chatID"), session.UserID, payload.UserID, payload.Permission); err != nil {
		return err
	}
	w.WriteHeader(http.StatusCreated)
	return nil
}

func (h *PermissionHandler) RevokeHandler(w http.ResponseWriter, r *http.Request) error {
	session := core.SessionFromRequest(r)
	permission := core.Permission(r.URL.Query().Get("permission"))
	if err := h.membership.Revoke(r.Context(), r.PathValue("chatID"), session.UserID, r.PathValue("userID"), permission); err != nil {
		return err
	}
	w.WriteHeader(http.StatusOK)
	return nil
}

func (h *PermissionHandler) UserPermissionsHandler(w http.ResponseWriter, r *http.Request) error {
	session := core.SessionFromRequest(r)
	grants, err := h.membership.UserPermissions(r.Context(), r.PathValue("chatID"), session.UserID, r.PathValue("userID"))
	if err != nil {
		return err
	}
	if grants == nil {
		grants = []core.Grant{}
	}
	json.NewEncoder(w).Encode(grants)
	return nil
}

func (h *PermissionHandler) ChatPermissionsHandler(w http.ResponseWriter, r *http.Request) error {
	session := core.SessionFromRequest(r)
	grants, err := h.membership.ChatPermissions(r.Context(), r.PathValue("chatID"), session.UserID)
	if err != nil {
		return err
	}
	if grants == nil {
		grants = []core.Grant{}
	}
	json.NewEncoder(w).Encode(grants)
	return nil
}
