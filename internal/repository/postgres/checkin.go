package postgres

import (
	"context"
	"errors"

	"duo-checkin-backend/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const checkInColumns = `id, user_id, date, weight, body_fat, sport_type, sport_minutes,
	breakfast, lunch, dinner, meal_images, water_cups, water_ml, sleep_hours, mood,
	created_at, updated_at`

func scanCheckIn(row pgx.Row) (*models.CheckIn, error) {
	var c models.CheckIn
	err := row.Scan(
		&c.ID, &c.UserID, &c.Date, &c.Weight, &c.BodyFat, &c.SportType, &c.SportMinutes,
		&c.Breakfast, &c.Lunch, &c.Dinner, &c.MealImages, &c.WaterCups, &c.WaterMl,
		&c.SleepHours, &c.Mood, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func collectCheckIns(rows pgx.Rows) ([]models.CheckIn, error) {
	defer rows.Close()
	list := make([]models.CheckIn, 0)
	for rows.Next() {
		c, err := scanCheckIn(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return list, nil
}

// GetCheckIn retrieves the check-in for (userID, date)
func (s *Store) GetCheckIn(ctx context.Context, userID, date string) (*models.CheckIn, error) {
	query := `SELECT ` + checkInColumns + ` FROM check_ins WHERE user_id = $1 AND date = $2`
	return retry(ctx, s, "get check-in", func(ctx context.Context) (*models.CheckIn, error) {
		c, err := scanCheckIn(s.db.QueryRow(ctx, query, userID, date))
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return c, err
	})
}

// upsertedCheckIn pairs a written row with the row it replaced
type upsertedCheckIn struct {
	current, previous *models.CheckIn
}

// UpsertCheckIn inserts or replaces the check-in keyed by (user_id, date).
// The id and created_at of an existing row are kept. A transaction-scoped
// advisory lock on (user_id, date) makes the read of the previous row and
// the write one step, so concurrent first submissions see each other.
func (s *Store) UpsertCheckIn(ctx context.Context, userID, date string, f models.CheckInFields) (*models.CheckIn, *models.CheckIn, error) {
	query := `
		INSERT INTO check_ins (id, user_id, date, weight, body_fat, sport_type, sport_minutes,
			breakfast, lunch, dinner, meal_images, water_cups, water_ml, sleep_hours, mood,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, now(), now())
		ON CONFLICT (user_id, date) DO UPDATE SET
			weight = EXCLUDED.weight,
			body_fat = EXCLUDED.body_fat,
			sport_type = EXCLUDED.sport_type,
			sport_minutes = EXCLUDED.sport_minutes,
			breakfast = EXCLUDED.breakfast,
			lunch = EXCLUDED.lunch,
			dinner = EXCLUDED.dinner,
			meal_images = EXCLUDED.meal_images,
			water_cups = EXCLUDED.water_cups,
			water_ml = EXCLUDED.water_ml,
			sleep_hours = EXCLUDED.sleep_hours,
			mood = EXCLUDED.mood,
			updated_at = EXCLUDED.updated_at
		RETURNING ` + checkInColumns
	selectQuery := `SELECT ` + checkInColumns + ` FROM check_ins WHERE user_id = $1 AND date = $2`

	id := uuid.New().String()
	res, err := retry(ctx, s, "upsert check-in", func(ctx context.Context) (upsertedCheckIn, error) {
		var out upsertedCheckIn
		err := pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1 || '/' || $2, 0))`, userID, date); err != nil {
				return err
			}
			prev, err := scanCheckIn(tx.QueryRow(ctx, selectQuery, userID, date))
			switch {
			case errors.Is(err, pgx.ErrNoRows):
			case err != nil:
				return err
			default:
				out.previous = prev
			}
			out.current, err = scanCheckIn(tx.QueryRow(ctx, query,
				id, userID, date, f.Weight, f.BodyFat, f.SportType, f.SportMinutes,
				f.Breakfast, f.Lunch, f.Dinner, f.MealImages, f.WaterCups, f.WaterMl,
				f.SleepHours, f.Mood,
			))
			return err
		})
		return out, err
	})
	if err != nil {
		return nil, nil, err
	}
	return res.current, res.previous, nil
}

// ListCheckIns retrieves the user's check-ins, newest date first
func (s *Store) ListCheckIns(ctx context.Context, userID string) ([]models.CheckIn, error) {
	query := `SELECT ` + checkInColumns + ` FROM check_ins WHERE user_id = $1 ORDER BY date DESC`
	return retry(ctx, s, "list check-ins", func(ctx context.Context) ([]models.CheckIn, error) {
		rows, err := s.db.Query(ctx, query, userID)
		if err != nil {
			return nil, err
		}
		return collectCheckIns(rows)
	})
}

// ListCheckInsForPartner retrieves the bound partner's check-ins
func (s *Store) ListCheckInsForPartner(ctx context.Context, userID string) ([]models.CheckIn, error) {
	query := `
		SELECT ` + checkInColumns + `
		FROM check_ins
		WHERE user_id = (SELECT partner_id FROM partner_bindings WHERE user_id = $1)
		ORDER BY date DESC
	`
	return retry(ctx, s, "list partner check-ins", func(ctx context.Context) ([]models.CheckIn, error) {
		rows, err := s.db.Query(ctx, query, userID)
		if err != nil {
			return nil, err
		}
		return collectCheckIns(rows)
	})
}
