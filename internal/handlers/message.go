package handlers

import (
	"net/http"
	"strconv"

	"duo-checkin-backend/internal/middleware"
	"duo-checkin-backend/internal/models"
	"duo-checkin-backend/internal/services"

	"github.com/go-chi/chi/v5"
)

// MessageHandler handles inbox, reminder and delivery HTTP requests
type MessageHandler struct {
	app *services.App
}

// NewMessageHandler creates a new message handler
func NewMessageHandler(app *services.App) *MessageHandler {
	return &MessageHandler{app: app}
}

// List handles GET /api/v1/messages
func (h *MessageHandler) List(w http.ResponseWriter, r *http.Request) {
	var page models.Page
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil {
			page.Limit = parsed
		}
	}
	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		if parsed, err := strconv.Atoi(offsetStr); err == nil {
			page.Offset = parsed
		}
	}

	messages, err := h.app.Messages.List(r.Context(), middleware.GetUserID(r.Context()), page)
	if err != nil {
		respondAppError(w, r, err, "Failed to list messages")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"messages": messages})
}

// MarkRead handles POST /api/v1/messages/{id}/read
func (h *MessageHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	messageID := chi.URLParam(r, "id")
	if err := h.app.Messages.MarkRead(r.Context(), middleware.GetUserID(r.Context()), messageID); err != nil {
		respondAppError(w, r, err, "Failed to mark message read")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RemindRate handles POST /api/v1/reminders/rate
func (h *MessageHandler) RemindRate(w http.ResponseWriter, r *http.Request) {
	delivery, err := h.app.Messages.RemindRate(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		respondAppError(w, r, err, "Failed to remind partner")
		return
	}
	respondJSON(w, http.StatusAccepted, delivery)
}

// Encourage handles POST /api/v1/encouragements
func (h *MessageHandler) Encourage(w http.ResponseWriter, r *http.Request) {
	var req services.EncourageRequest
	if err := decodeJSON(r, &req); err != nil {
		respondAppError(w, r, err, "Invalid request body")
		return
	}

	delivery, err := h.app.Messages.Encourage(r.Context(), middleware.GetUserID(r.Context()), req)
	if err != nil {
		respondAppError(w, r, err, "Failed to send encouragement")
		return
	}
	respondJSON(w, http.StatusAccepted, delivery)
}

// Deliveries handles GET /api/v1/deliveries
func (h *MessageHandler) Deliveries(w http.ResponseWriter, r *http.Request) {
	deliveries := h.app.Messages.Deliveries(middleware.GetUserID(r.Context()))
	respondJSON(w, http.StatusOK, map[string]interface{}{"deliveries": deliveries})
}
