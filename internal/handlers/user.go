package handlers

import (
	"net/http"

	"duo-checkin-backend/internal/middleware"
	"duo-checkin-backend/internal/models"
	"duo-checkin-backend/internal/services"

	"github.com/rs/zerolog/log"
)

// UserHandler handles user-related HTTP requests
type UserHandler struct {
	app *services.App
}

// NewUserHandler creates a new user handler
func NewUserHandler(app *services.App) *UserHandler {
	return &UserHandler{app: app}
}

// LoginResponse carries the new user and its token
type LoginResponse struct {
	User  *models.User `json:"user"`
	Token string       `json:"token"`
}

// Login handles POST /api/v1/users
func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req services.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		respondAppError(w, r, err, "Invalid request body")
		return
	}

	user, token, err := h.app.Users.Login(r.Context(), req)
	if err != nil {
		respondAppError(w, r, err, "Failed to create user")
		return
	}

	log.Info().
		Str("user_id", user.ID).
		Str("invite_code", user.InviteCode).
		Msg("User created")

	respondJSON(w, http.StatusOK, LoginResponse{User: user, Token: token})
}

// Me handles GET /api/v1/users/me
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.app.Users.GetUser(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		respondAppError(w, r, err, "Failed to get user")
		return
	}
	respondJSON(w, http.StatusOK, user)
}

// PushTokenRequest sets or clears the device push token
type PushTokenRequest struct {
	PushToken *string `json:"push_token"`
}

// UpdatePushToken handles PUT /api/v1/users/me/push-token
func (h *UserHandler) UpdatePushToken(w http.ResponseWriter, r *http.Request) {
	var req PushTokenRequest
	if err := decodeJSON(r, &req); err != nil {
		respondAppError(w, r, err, "Invalid request body")
		return
	}
	if err := h.app.Users.UpdatePushToken(r.Context(), middleware.GetUserID(r.Context()), req.PushToken); err != nil {
		respondAppError(w, r, err, "Failed to update push token")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Snapshot handles GET /api/v1/snapshot
func (h *UserHandler) Snapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := h.app.Snapshot(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		respondAppError(w, r, err, "Failed to load snapshot")
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

// Logout handles POST /api/v1/users/logout
func (h *UserHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.app.Users.Logout(r.Context()); err != nil {
		respondAppError(w, r, err, "Failed to log out")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
