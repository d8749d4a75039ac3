package services

import (
	"context"
	"fmt"
	"strings"

	"duo-checkin-backend/internal/apperr"
	"duo-checkin-backend/internal/models"
	"duo-checkin-backend/internal/repository"
)

// EncourageRequest is a free text note to the partner
type EncourageRequest struct {
	Text string `json:"text" validate:"required,max=200"`
}

// MessageService handles the user's inbox and manual partner nudges
type MessageService struct {
	store      repository.Store
	dispatcher *Dispatcher
}

// NewMessageService creates a new message service
func NewMessageService(store repository.Store, dispatcher *Dispatcher) *MessageService {
	return &MessageService{
		store:      store,
		dispatcher: dispatcher,
	}
}

// List returns one page of the user's messages, newest first
func (s *MessageService) List(ctx context.Context, userID string, page models.Page) ([]models.Message, error) {
	messages, err := s.store.ListMessages(ctx, userID, page.Normalize())
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	return messages, nil
}

// MarkRead marks one of the user's messages as read
func (s *MessageService) MarkRead(ctx context.Context, userID, messageID string) error {
	if messageID == "" {
		return apperr.ErrInvalidInput.Withf("message id is required")
	}
	return s.store.MarkMessageRead(ctx, userID, messageID)
}

// RemindRate asks the partner to rate the user's pending check-in
func (s *MessageService) RemindRate(ctx context.Context, userID string) (*Delivery, error) {
	return s.dispatcher.RemindRate(ctx, userID)
}

// Encourage sends a note to the partner
func (s *MessageService) Encourage(ctx context.Context, userID string, req EncourageRequest) (*Delivery, error) {
	req.Text = strings.TrimSpace(req.Text)
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	return s.dispatcher.Encourage(ctx, userID, req.Text)
}

// Deliveries returns the delivery log entries involving the user
func (s *MessageService) Deliveries(userID string) []Delivery {
	return s.dispatcher.Deliveries(userID)
}
