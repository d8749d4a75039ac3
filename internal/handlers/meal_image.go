package handlers

import (
	"net/http"

	"duo-checkin-backend/internal/middleware"
	"duo-checkin-backend/internal/services"

	"github.com/rs/zerolog/log"
)

// MealImageHandler handles meal image upload requests
type MealImageHandler struct {
	mealImageService *services.MealImageService
}

// NewMealImageHandler creates a new meal image handler
func NewMealImageHandler(mealImageService *services.MealImageService) *MealImageHandler {
	return &MealImageHandler{mealImageService: mealImageService}
}

// Upload handles POST /api/v1/meal-images
func (h *MealImageHandler) Upload(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req services.MealImageUploadRequest
	if err := decodeJSON(r, &req); err != nil {
		respondAppError(w, r, err, "Invalid request body")
		return
	}

	response, err := h.mealImageService.PresignUpload(r.Context(), userID, req)
	if err != nil {
		respondAppError(w, r, err, "Failed to generate pre-signed URL")
		return
	}

	log.Info().
		Str("user_id", userID).
		Str("key", response.Key).
		Msg("Pre-signed URL generated")

	respondJSON(w, http.StatusOK, response)
}
