package postgres

import (
	"context"
	"errors"

	"duo-checkin-backend/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const ratingColumns = `id, from_user_id, to_user_id, check_in_date, check_in_id,
	completeness, effort, comment, created_at, updated_at`

func scanRating(row pgx.Row) (*models.Rating, error) {
	var r models.Rating
	err := row.Scan(
		&r.ID, &r.FromUserID, &r.ToUserID, &r.CheckInDate, &r.CheckInID,
		&r.Completeness, &r.Effort, &r.Comment, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// GetRating retrieves the rating for (from, to, date)
func (s *Store) GetRating(ctx context.Context, fromUserID, toUserID, checkInDate string) (*models.Rating, error) {
	query := `SELECT ` + ratingColumns + ` FROM ratings
		WHERE from_user_id = $1 AND to_user_id = $2 AND check_in_date = $3`
	return retry(ctx, s, "get rating", func(ctx context.Context) (*models.Rating, error) {
		r, err := scanRating(s.db.QueryRow(ctx, query, fromUserID, toUserID, checkInDate))
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return r, err
	})
}

// UpsertRating inserts or replaces the rating keyed by (from, to, date)
func (s *Store) UpsertRating(ctx context.Context, in models.RatingInput) (*models.Rating, error) {
	query := `
		INSERT INTO ratings (id, from_user_id, to_user_id, check_in_date, check_in_id,
			completeness, effort, comment, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now(), now())
		ON CONFLICT (from_user_id, to_user_id, check_in_date) DO UPDATE SET
			check_in_id = EXCLUDED.check_in_id,
			completeness = EXCLUDED.completeness,
			effort = EXCLUDED.effort,
			comment = EXCLUDED.comment,
			updated_at = EXCLUDED.updated_at
		RETURNING ` + ratingColumns

	id := uuid.New().String()
	return retry(ctx, s, "upsert rating", func(ctx context.Context) (*models.Rating, error) {
		return scanRating(s.db.QueryRow(ctx, query,
			id, in.FromUserID, in.ToUserID, in.CheckInDate, in.CheckInID,
			in.Completeness, in.Effort, in.Comment,
		))
	})
}

// ListRatings retrieves every rating the user gave or received
func (s *Store) ListRatings(ctx context.Context, userID string) ([]models.Rating, error) {
	query := `SELECT ` + ratingColumns + ` FROM ratings
		WHERE from_user_id = $1 OR to_user_id = $1
		ORDER BY created_at DESC`
	return retry(ctx, s, "list ratings", func(ctx context.Context) ([]models.Rating, error) {
		rows, err := s.db.Query(ctx, query, userID)
		if err != nil {
			return nil, err
		}
		defer rows.Close()

		list := make([]models.Rating, 0)
		for rows.Next() {
			r, err := scanRating(rows)
			if err != nil {
				return nil, err
			}
			list = append(list, *r)
		}
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return list, nil
	})
}
