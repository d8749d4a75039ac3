package handlers

import (
	"net/http"

	"duo-checkin-backend/internal/services"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocketHandler handles WebSocket connections
type WebSocketHandler struct {
	hub *services.WSHub
	app *services.App
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(hub *services.WSHub, app *services.App) *WebSocketHandler {
	return &WebSocketHandler{hub: hub, app: app}
}

// HandleWebSocket handles GET /ws?token=
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	userID, err := h.authenticate(r)
	if err != nil {
		respondAppError(w, r, err, "invalid token")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}
	defer conn.Close()

	log.Info().Str("user_id", userID).Msg("WebSocket connection established")

	if err := h.hub.Serve(r.Context(), userID, conn); err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("WebSocket session ended with error")
	}
}

// authenticate accepts a token query parameter, falling back to the device
// session when the store keeps one
func (h *WebSocketHandler) authenticate(r *http.Request) (string, error) {
	if token := r.URL.Query().Get("token"); token != "" {
		return h.app.Users.ValidateJWT(token)
	}
	user, err := h.app.Users.CurrentUser(r.Context())
	if err != nil {
		return "", err
	}
	return user.ID, nil
}
