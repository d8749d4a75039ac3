package handlers

import (
	"net/http"

	"duo-checkin-backend/internal/middleware"
	"duo-checkin-backend/internal/models"
	"duo-checkin-backend/internal/services"
)

// CheckInHandler handles check-in and rating HTTP requests
type CheckInHandler struct {
	app *services.App
}

// NewCheckInHandler creates a new check-in handler
func NewCheckInHandler(app *services.App) *CheckInHandler {
	return &CheckInHandler{app: app}
}

// SubmitToday handles PUT /api/v1/checkins/today
func (h *CheckInHandler) SubmitToday(w http.ResponseWriter, r *http.Request) {
	var fields models.CheckInFields
	if err := decodeJSON(r, &fields); err != nil {
		respondAppError(w, r, err, "Invalid request body")
		return
	}

	checkIn, err := h.app.CheckIns.SubmitToday(r.Context(), middleware.GetUserID(r.Context()), fields)
	if err != nil {
		respondAppError(w, r, err, "Failed to save check-in")
		return
	}
	respondJSON(w, http.StatusOK, checkIn)
}

// List handles GET /api/v1/checkins
func (h *CheckInHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.app.CheckIns.List(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		respondAppError(w, r, err, "Failed to list check-ins")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"check_ins": list})
}

// ListPartner handles GET /api/v1/checkins/partner
func (h *CheckInHandler) ListPartner(w http.ResponseWriter, r *http.Request) {
	list, err := h.app.CheckIns.ListPartner(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		respondAppError(w, r, err, "Failed to list partner check-ins")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"check_ins": list})
}

// Rate handles POST /api/v1/ratings
func (h *CheckInHandler) Rate(w http.ResponseWriter, r *http.Request) {
	var req services.RateRequest
	if err := decodeJSON(r, &req); err != nil {
		respondAppError(w, r, err, "Invalid request body")
		return
	}

	rating, err := h.app.Ratings.Rate(r.Context(), middleware.GetUserID(r.Context()), req)
	if err != nil {
		respondAppError(w, r, err, "Failed to save rating")
		return
	}
	respondJSON(w, http.StatusOK, rating)
}

// ListRatings handles GET /api/v1/ratings
func (h *CheckInHandler) ListRatings(w http.ResponseWriter, r *http.Request) {
	list, err := h.app.Ratings.List(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		respondAppError(w, r, err, "Failed to list ratings")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"ratings": list})
}
