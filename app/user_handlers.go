package simpchat

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/putto11262002/simpchat/core"
	"github.com/putto11262002/simpchat/pkg/router"
)

type UserHandler struct {
	store      core.UserStore
	membership *core.MembershipService
}

func NewUserHandler(store core.UserStore, membership *core.MembershipService) *UserHandler {
	return &UserHandler{store: store, membership: membership}
}

func (h *UserHandler) RegisterUserHandler(w http.ResponseWriter, r *http.Request) error {
	var in core.UserCreateInput

	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		return fmt.Errorf("Decode: %w", err)
	}
	defer r.Body.Close()

	if err := in.Validate(); err != nil {
		return invalidInput(err)
	}

	user, err := h.store.CreateUser(r.Context(), in)
	if err != nil {
		if errors.Is(err, core.ErrConflictedUser) {
			return router.NewJsonError(http.StatusConflict, "user already exists")
		}
		return err
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(user)
	return nil
}

func (h *UserHandler) MeHandler(w http.ResponseWriter, r *http.Request) error {
	session := core.SessionFromRequest(r)
	user, err := h.store.GetUserByID(r.Context(), session.UserID)
	if err != nil {
		return fmt.Errorf("GetUserByID: %w", err)
	}
	if user == nil {
		return router.NewJsonError(http.StatusNotFound, "user not found")
	}

	json.NewEncoder(w).Encode(user)
	return nil
}

func (h *UserHandler) GetUserByUsernameHandler(w http.ResponseWriter, r *http.Request) error {
	user, err := h.store.GetUserByUsername(r.Context(), r.PathValue("username"))
	if err != nil {
		return err
	}
	if user == nil {
		return router.NewJsonError(http.StatusNotFound, "user not found")
	}

	json.NewEncoder(w).Encode(user)
	return nil
}

func (h *UserHandler) BlockUserHandler(w http.ResponseWriter, r *http.Request) error {
	session := core.SessionFromRequest(r)
	if err := h.membership.BlockUser(r.Context(), session.UserID, r.PathValue("userID")); err != nil {
		return err
	}
	w.WriteHeader(http.StatusCreated)
	return nil
}

func (h *UserHandler) UnblockUserHandler(w http.ResponseWriter, r *http.Request) error {
	session := core.SessionFromRequest(r)
	if err := h.membership.UnblockUser(r.Context(), session.UserID, r.PathValue("userID")); err != nil {
		return err
	}
	w.WriteHeader(http.StatusOK)
	return nil
}

func (h *UserHandler) BlockedUsersHandler(w http.ResponseWriter, r *http.Request) error {
	session := core.SessionFromRequest(r)
	blocked, err := h.membership.BlockedUsers(r.Context(), session.UserID)
	if err != nil {
		return err
	}
	if blocked == nil {
		blocked = []core.UserBlock{}
	}
	json.NewEncoder(w).Encode(blocked)
	return nil
}
