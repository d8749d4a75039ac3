package handlers

import (
	"net/http"

	"duo-checkin-backend/internal/middleware"
	"duo-checkin-backend/internal/services"
)

// PairHandler handles partner binding HTTP requests
type PairHandler struct {
	app *services.App
}

// NewPairHandler creates a new pair handler
func NewPairHandler(app *services.App) *PairHandler {
	return &PairHandler{app: app}
}

// GetPartner handles GET /api/v1/partner
func (h *PairHandler) GetPartner(w http.ResponseWriter, r *http.Request) {
	binding, err := h.app.Pairs.GetPartner(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		respondAppError(w, r, err, "Failed to get partner")
		return
	}
	respondJSON(w, http.StatusOK, binding)
}

// Bind handles POST /api/v1/partner
func (h *PairHandler) Bind(w http.ResponseWriter, r *http.Request) {
	var req services.BindRequest
	if err := decodeJSON(r, &req); err != nil {
		respondAppError(w, r, err, "Invalid request body")
		return
	}

	binding, err := h.app.Pairs.BindByInviteCode(r.Context(), middleware.GetUserID(r.Context()), req.InviteCode)
	if err != nil {
		respondAppError(w, r, err, "Failed to bind partner")
		return
	}
	respondJSON(w, http.StatusOK, binding)
}

// Unbind handles DELETE /api/v1/partner
func (h *PairHandler) Unbind(w http.ResponseWriter, r *http.Request) {
	if err := h.app.Pairs.Unbind(r.Context(), middleware.GetUserID(r.Context())); err != nil {
		respondAppError(w, r, err, "Failed to unbind partner")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
