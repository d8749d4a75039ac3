package postgres

import (
	"context"
	"errors"

	"duo-checkin-backend/internal/apperr"
	"duo-checkin-backend/internal/models"

	"github.com/jackc/pgx/v5"
)

const userColumns = `id, nickname, avatar, invite_code, push_token, created_at`

func scanUser(row pgx.Row) (*models.User, error) {
	var user models.User
	if err := row.Scan(
		&user.ID, &user.Nickname, &user.Avatar, &user.InviteCode, &user.PushToken, &user.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &user, nil
}

// CreateUser creates a new user
func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (id, nickname, avatar, invite_code, push_token, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING
	`
	return exec(ctx, s, "create user", func(ctx context.Context) error {
		_, err := s.db.Exec(ctx, query,
			user.ID, user.Nickname, user.Avatar, user.InviteCode, user.PushToken, user.CreatedAt,
		)
		return err
	})
}

// GetUser retrieves a user by ID
func (s *Store) GetUser(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return retry(ctx, s, "get user", func(ctx context.Context) (*models.User, error) {
		user, err := scanUser(s.db.QueryRow(ctx, query, id))
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.ErrNotFound.Withf("user %s not found", id)
		}
		return user, err
	})
}

// GetUserByInviteCode retrieves a user by invite code
func (s *Store) GetUserByInviteCode(ctx context.Context, code string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE invite_code = $1`
	return retry(ctx, s, "get user by invite code", func(ctx context.Context) (*models.User, error) {
		user, err := scanUser(s.db.QueryRow(ctx, query, code))
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.ErrNotFound.Withf("invite code %s not found", code)
		}
		return user, err
	})
}

// ListUserIDs returns every user id
func (s *Store) ListUserIDs(ctx context.Context) ([]string, error) {
	return retry(ctx, s, "list user ids", func(ctx context.Context) ([]string, error) {
		rows, err := s.db.Query(ctx, `SELECT id FROM users ORDER BY id`)
		if err != nil {
			return nil, err
		}
		return pgx.CollectRows(rows, pgx.RowTo[string])
	})
}

// UpdatePushToken updates the push token for a user
func (s *Store) UpdatePushToken(ctx context.Context, userID string, pushToken *string) error {
	query := `UPDATE users SET push_token = $1 WHERE id = $2`
	return exec(ctx, s, "update push token", func(ctx context.Context) error {
		result, err := s.db.Exec(ctx, query, pushToken, userID)
		if err != nil {
			return err
		}
		if result.RowsAffected() == 0 {
			return apperr.ErrNotFound.Withf("user %s not found", userID)
		}
		return nil
	})
}
