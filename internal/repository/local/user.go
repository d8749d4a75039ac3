package local

import (
	"context"
	"fmt"
	"slices"

	"duo-checkin-backend/internal/apperr"
	"duo-checkin-backend/internal/models"
)

func (s *Store) loadUsers(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := s.load(ctx, keyUsers, &users); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) findUser(ctx context.Context, id string) (*models.User, error) {
	users, err := s.loadUsers(ctx)
	if err != nil {
		return nil, err
	}
	for i := range users {
		if users[i].ID == id {
			return &users[i], nil
		}
	}
	return nil, nil
}

// CreateUser adds a user to the device directory
func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.loadUsers(ctx)
	if err != nil {
		return err
	}
	for _, u := range users {
		if u.ID == user.ID {
			return fmt.Errorf("failed to create user: %w", apperr.ErrInvalidInput.Withf("user %s already exists", user.ID))
		}
		if u.InviteCode == user.InviteCode {
			return apperr.ErrInviteCodeConflict
		}
	}
	created := *user
	if created.CreatedAt.IsZero() {
		created.CreatedAt = s.now()
	}
	users = append(users, created)
	return s.save(ctx, keyUsers, users)
}

// GetUser retrieves a user by ID
func (s *Store) GetUser(ctx context.Context, id string) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	user, err := s.findUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apperr.ErrNotFound.Withf("user %s not found", id)
	}
	return user, nil
}

// GetUserByInviteCode retrieves a user by invite code
func (s *Store) GetUserByInviteCode(ctx context.Context, code string) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.loadUsers(ctx)
	if err != nil {
		return nil, err
	}
	for i := range users {
		if users[i].InviteCode == code {
			return &users[i], nil
		}
	}
	return nil, apperr.ErrNotFound.Withf("invite code %s not found", code)
}

// ListUserIDs returns every known user id
func (s *Store) ListUserIDs(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.loadUsers(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.ID)
	}
	slices.Sort(ids)
	return ids, nil
}

// UpdatePushToken updates the push token for a user
func (s *Store) UpdatePushToken(ctx context.Context, userID string, pushToken *string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.loadUsers(ctx)
	if err != nil {
		return err
	}
	idx := slices.IndexFunc(users, func(u models.User) bool { return u.ID == userID })
	if idx < 0 {
		return apperr.ErrNotFound.Withf("user %s not found", userID)
	}
	users[idx].PushToken = pushToken
	return s.save(ctx, keyUsers, users)
}

// SaveSession remembers user as the signed-in device user
func (s *Store) SaveSession(ctx context.Context, user *models.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(ctx, keyUser, user)
}

// LoadSession returns the signed-in device user or nil
func (s *Store) LoadSession(ctx context.Context) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var user *models.User
	if err := s.load(ctx, keyUser, &user); err != nil {
		return nil, err
	}
	return user, nil
}

// ClearSession forgets the signed-in device user
func (s *Store) ClearSession(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remove(ctx, keyUser)
}
