package local

import (
	"context"

	"duo-checkin-backend/internal/apperr"
	"duo-checkin-backend/internal/models"
)

func (s *Store) loadMessages(ctx context.Context) ([]models.Message, error) {
	var list []models.Message
	if err := s.load(ctx, keyMessages, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// AddMessage prepends a message and trims history to models.MaxMessages.
// Re-adding an existing id returns the stored message unchanged.
func (s *Store) AddMessage(ctx context.Context, userID string, input models.MessageInput) (*models.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()

	list, err := s.loadMessages(ctx)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if input.ID != "" {
		for i := range list {
			if list[i].ID == input.ID {
				existing := list[i]
				s.mu.Unlock()
				return &existing, nil
			}
		}
	}

	msg := models.Message{
		ID:        input.ID,
		UserID:    userID,
		Type:      input.Type,
		Title:     input.Title,
		Body:      input.Body,
		Extra:     input.Extra,
		CreatedAt: s.now(),
	}
	if msg.ID == "" {
		msg.ID = s.newID()
	}
	list = append([]models.Message{msg}, list...)
	if len(list) > models.MaxMessages {
		list = list[:models.MaxMessages]
	}
	err = s.save(ctx, keyMessages, list)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	s.events.Publish(userID)
	return &msg, nil
}

// ListMessages returns the user's messages, newest first
func (s *Store) ListMessages(ctx context.Context, userID string, page models.Page) ([]models.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.loadMessages(ctx)
	if err != nil {
		return nil, err
	}
	page = page.Normalize()
	out := make([]models.Message, 0)
	skipped := 0
	for _, m := range list {
		if m.UserID != userID {
			continue
		}
		if skipped < page.Offset {
			skipped++
			continue
		}
		out = append(out, m)
		if len(out) == page.Limit {
			break
		}
	}
	return out, nil
}

// MarkMessageRead flips the read flag of one of the user's messages
func (s *Store) MarkMessageRead(ctx context.Context, userID, messageID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.loadMessages(ctx)
	if err != nil {
		return err
	}
	for i := range list {
		if list[i].ID == messageID && list[i].UserID == userID {
			if list[i].Read {
				return nil
			}
			list[i].Read = true
			return s.save(ctx, keyMessages, list)
		}
	}
	return apperr.ErrNotFound.Withf("message %s not found", messageID)
}

// SubscribeMessages registers onChange for new messages addressed to userID
func (s *Store) SubscribeMessages(ctx context.Context, userID string, onChange func()) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.events.Subscribe(userID, onChange), nil
}
