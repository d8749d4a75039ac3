package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"duo-checkin-backend/internal/models"
	"duo-checkin-backend/internal/repository"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const writeWait = 10 * time.Second

// WebSocket frame types
const (
	WSTypeSnapshot = "snapshot"
	WSTypeMessages = "messages"
	WSTypeRefresh  = "refresh"
	WSTypeError    = "error"
)

// WSMessage represents a WebSocket message
type WSMessage struct {
	Type      string      `json:"type"`
	Timestamp int64       `json:"timestamp,omitempty"`
	Message   string      `json:"message,omitempty"`
	Data      interface{} `json:"data,omitempty"`
}

// wsClient is one connection with its own synchronized session
type wsClient struct {
	conn    *websocket.Conn
	session *Session
	writeMu sync.Mutex
}

func (c *wsClient) send(message WSMessage) error {
	if message.Timestamp == 0 {
		message.Timestamp = time.Now().UnixMilli()
	}
	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

// WSHub manages WebSocket connections. A user may hold several connections,
// one per device.
type WSHub struct {
	store repository.Store

	mu      sync.RWMutex
	clients map[string]map[*wsClient]struct{}
}

// NewWSHub creates a new WebSocket hub
func NewWSHub(store repository.Store) *WSHub {
	return &WSHub{
		store:   store,
		clients: make(map[string]map[*wsClient]struct{}),
	}
}

// Serve runs one connection until the peer disconnects or ctx is done: it
// sends the snapshot, then a messages frame after every message event, and
// answers refresh requests with a fresh snapshot.
func (h *WSHub) Serve(ctx context.Context, userID string, conn *websocket.Conn) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	client := &wsClient{conn: conn, session: NewSession(h.store, userID)}
	if err := client.session.Start(ctx); err != nil {
		_ = client.send(WSMessage{Type: WSTypeError, Message: "failed to load snapshot"})
		return fmt.Errorf("failed to start session: %w", err)
	}

	h.register(userID, client)
	defer h.unregister(userID, client)

	if err := client.send(WSMessage{Type: WSTypeSnapshot, Data: client.session.Snapshot()}); err != nil {
		return err
	}

	err := client.session.Watch(ctx, func(messages []models.Message) {
		if err := client.send(WSMessage{Type: WSTypeMessages, Data: messages}); err != nil {
			log.Error().Err(err).Str("user_id", userID).Msg("Failed to push messages")
		}
	})
	if err != nil {
		return err
	}
	defer client.session.Close()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Error().Err(err).Str("user_id", userID).Msg("WebSocket error")
			}
			return nil
		}

		var msg WSMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			_ = client.send(WSMessage{Type: WSTypeError, Message: "Invalid message format"})
			continue
		}

		switch msg.Type {
		case WSTypeRefresh:
			if err := client.session.Refresh(ctx); err != nil {
				log.Error().Err(err).Str("user_id", userID).Msg("Failed to refresh session")
				_ = client.send(WSMessage{Type: WSTypeError, Message: "refresh failed"})
				continue
			}
			if err := client.send(WSMessage{Type: WSTypeSnapshot, Data: client.session.Snapshot()}); err != nil {
				return err
			}
		default:
			_ = client.send(WSMessage{Type: WSTypeError, Message: "Unknown message type"})
		}
	}
}

func (h *WSHub) register(userID string, client *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.clients[userID] == nil {
		h.clients[userID] = make(map[*wsClient]struct{})
	}
	h.clients[userID][client] = struct{}{}
	log.Info().Str("user_id", userID).Int("connections", len(h.clients[userID])).Msg("WebSocket connection registered")
}

func (h *WSHub) unregister(userID string, client *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[userID][client]; !ok {
		return
	}
	delete(h.clients[userID], client)
	if len(h.clients[userID]) == 0 {
		delete(h.clients, userID)
	}
	log.Info().Str("user_id", userID).Msg("WebSocket connection unregistered")
}

// IsOnline checks if a user has at least one open connection
func (h *WSHub) IsOnline(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID]) > 0
}

// CloseAll closes every open connection
func (h *WSHub) CloseAll() {
	h.mu.RLock()
	var clients []*wsClient
	for _, set := range h.clients {
		for c := range set {
			clients = append(clients, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range clients {
		c.writeMu.Lock()
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(writeWait))
		c.writeMu.Unlock()
		_ = c.conn.Close()
	}
}
