package local

import (
	"context"
	"slices"
	"strings"

	"duo-checkin-backend/internal/models"
)

func (s *Store) loadCheckIns(ctx context.Context) ([]models.CheckIn, error) {
	var list []models.CheckIn
	if err := s.load(ctx, keyCheckIns, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// GetCheckIn returns the check-in for (userID, date), or nil
func (s *Store) GetCheckIn(ctx context.Context, userID, date string) (*models.CheckIn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.loadCheckIns(ctx)
	if err != nil {
		return nil, err
	}
	for i := range list {
		if list[i].UserID == userID && list[i].Date == date {
			return &list[i], nil
		}
	}
	return nil, nil
}

// UpsertCheckIn replaces the fields of (userID, date), keeping id and createdAt
func (s *Store) UpsertCheckIn(ctx context.Context, userID, date string, fields models.CheckInFields) (*models.CheckIn, *models.CheckIn, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.loadCheckIns(ctx)
	if err != nil {
		return nil, nil, err
	}
	now := s.now()
	idx := slices.IndexFunc(list, func(c models.CheckIn) bool {
		return c.UserID == userID && c.Date == date
	})

	var checkIn models.CheckIn
	var previous *models.CheckIn
	if idx >= 0 {
		prev := list[idx]
		previous = &prev
		checkIn = list[idx]
		checkIn.CheckInFields = fields
		checkIn.UpdatedAt = now
		list[idx] = checkIn
	} else {
		checkIn = models.CheckIn{
			ID:            s.newID(),
			UserID:        userID,
			Date:          date,
			CheckInFields: fields,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		list = append(list, checkIn)
	}

	if err := s.save(ctx, keyCheckIns, list); err != nil {
		return nil, nil, err
	}
	return &checkIn, previous, nil
}

// ListCheckIns returns the user's check-ins, newest date first
func (s *Store) ListCheckIns(ctx context.Context, userID string) ([]models.CheckIn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.checkInsOf(ctx, userID)
}

// ListCheckInsForPartner returns the bound partner's check-ins, or none when unbound
func (s *Store) ListCheckInsForPartner(ctx context.Context, userID string) ([]models.CheckIn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	edges, err := s.loadEdges(ctx)
	if err != nil {
		return nil, err
	}
	edge := edgeOf(edges, userID)
	if edge == nil {
		return []models.CheckIn{}, nil
	}
	return s.checkInsOf(ctx, edge.PartnerID)
}

func (s *Store) checkInsOf(ctx context.Context, userID string) ([]models.CheckIn, error) {
	list, err := s.loadCheckIns(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]models.CheckIn, 0)
	for _, c := range list {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	slices.SortFunc(out, func(a, b models.CheckIn) int {
		return strings.Compare(b.Date, a.Date)
	})
	return out, nil
}
