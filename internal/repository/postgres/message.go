package postgres

import (
	"context"

	"duo-checkin-backend/internal/apperr"
	"duo-checkin-backend/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const messageColumns = `id, user_id, type, title, body, extra, read, created_at`

func scanMessage(row pgx.Row) (*models.Message, error) {
	var m models.Message
	var msgType string
	if err := row.Scan(&m.ID, &m.UserID, &msgType, &m.Title, &m.Body, &m.Extra, &m.Read, &m.CreatedAt); err != nil {
		return nil, err
	}
	m.Type = models.MessageType(msgType)
	return &m, nil
}

// AddMessage inserts a message; a repeated id returns the stored row
func (s *Store) AddMessage(ctx context.Context, userID string, in models.MessageInput) (*models.Message, error) {
	if in.ID == "" {
		in.ID = uuid.New().String()
	}
	insert := `
		INSERT INTO messages (id, user_id, type, title, body, extra)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING
	`
	selectOne := `SELECT ` + messageColumns + ` FROM messages WHERE id = $1`
	return retry(ctx, s, "add message", func(ctx context.Context) (*models.Message, error) {
		if _, err := s.db.Exec(ctx, insert, in.ID, userID, string(in.Type), in.Title, in.Body, in.Extra); err != nil {
			return nil, err
		}
		return scanMessage(s.db.QueryRow(ctx, selectOne, in.ID))
	})
}

// ListMessages retrieves one page of the user's messages, newest first
func (s *Store) ListMessages(ctx context.Context, userID string, page models.Page) ([]models.Message, error) {
	page = page.Normalize()
	query := `SELECT ` + messageColumns + ` FROM messages
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3`
	return retry(ctx, s, "list messages", func(ctx context.Context) ([]models.Message, error) {
		rows, err := s.db.Query(ctx, query, userID, page.Limit, page.Offset)
		if err != nil {
			return nil, err
		}
		defer rows.Close()

		list := make([]models.Message, 0)
		for rows.Next() {
			m, err := scanMessage(rows)
			if err != nil {
				return nil, err
			}
			list = append(list, *m)
		}
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return list, nil
	})
}

// MarkMessageRead sets read on one of the user's messages
func (s *Store) MarkMessageRead(ctx context.Context, userID, messageID string) error {
	query := `UPDATE messages SET read = true WHERE id = $1 AND user_id = $2`
	return exec(ctx, s, "mark message read", func(ctx context.Context) error {
		result, err := s.db.Exec(ctx, query, messageID, userID)
		if err != nil {
			return err
		}
		if result.RowsAffected() == 0 {
			return apperr.ErrNotFound.Withf("message %s not found", messageID)
		}
		return nil
	})
}
