package local

import (
	"context"
	"slices"

	"duo-checkin-backend/internal/models"
)

func (s *Store) loadRatings(ctx context.Context) ([]models.Rating, error) {
	var list []models.Rating
	if err := s.load(ctx, keyRatings, &list); err != nil {
		return nil, err
	}
	return list, nil
}

func sameRatingKey(r models.Rating, from, to, date string) bool {
	return r.FromUserID == from && r.ToUserID == to && r.CheckInDate == date
}

// GetRating returns the rating for (from, to, date), or nil
func (s *Store) GetRating(ctx context.Context, fromUserID, toUserID, checkInDate string) (*models.Rating, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.loadRatings(ctx)
	if err != nil {
		return nil, err
	}
	for i := range list {
		if sameRatingKey(list[i], fromUserID, toUserID, checkInDate) {
			return &list[i], nil
		}
	}
	return nil, nil
}

// UpsertRating writes the rating keyed by (from, to, date). The stored
// check-in id follows the latest call.
func (s *Store) UpsertRating(ctx context.Context, input models.RatingInput) (*models.Rating, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.loadRatings(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now()
	idx := slices.IndexFunc(list, func(r models.Rating) bool {
		return sameRatingKey(r, input.FromUserID, input.ToUserID, input.CheckInDate)
	})

	rating := models.Rating{
		FromUserID:   input.FromUserID,
		ToUserID:     input.ToUserID,
		CheckInDate:  input.CheckInDate,
		CheckInID:    input.CheckInID,
		Completeness: input.Completeness,
		Effort:       input.Effort,
		Comment:      input.Comment,
		UpdatedAt:    now,
	}
	if idx >= 0 {
		rating.ID = list[idx].ID
		rating.CreatedAt = list[idx].CreatedAt
		list[idx] = rating
	} else {
		rating.ID = s.newID()
		rating.CreatedAt = now
		list = append(list, rating)
	}

	if err := s.save(ctx, keyRatings, list); err != nil {
		return nil, err
	}
	return &rating, nil
}

// ListRatings returns ratings the user gave or received, newest first
func (s *Store) ListRatings(ctx context.Context, userID string) ([]models.Rating, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.loadRatings(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]models.Rating, 0)
	for _, r := range list {
		if r.FromUserID == userID || r.ToUserID == userID {
			out = append(out, r)
		}
	}
	slices.SortStableFunc(out, func(a, b models.Rating) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return out, nil
}
