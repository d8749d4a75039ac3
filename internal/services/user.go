package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"duo-checkin-backend/internal/apperr"
	"duo-checkin-backend/internal/models"
	"duo-checkin-backend/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	codeLength      = 6
	codeChars       = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	codeMaxAttempts = 5
	jwtExpDays      = 365
)

// LoginRequest is the body of a login call
type LoginRequest struct {
	Nickname string `json:"nickname" validate:"required,max=32"`
	Avatar   string `json:"avatar" validate:"omitempty,max=512"`
}

// UserService handles user-related business logic
type UserService struct {
	store     repository.Store
	sessions  repository.SessionStore
	jwtSecret string
	now       func() time.Time
}

// NewUserService creates a new user service. When the store also remembers
// the device user, logins are saved as the current session.
func NewUserService(store repository.Store, jwtSecret string) *UserService {
	sessions, _ := store.(repository.SessionStore)
	return &UserService{
		store:     store,
		sessions:  sessions,
		jwtSecret: jwtSecret,
		now:       time.Now,
	}
}

// generateCode generates a random 6-character code
func generateCode() (string, error) {
	code := make([]byte, codeLength)
	for i := range code {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(codeChars))))
		if err != nil {
			return "", fmt.Errorf("failed to read random: %w", err)
		}
		code[i] = codeChars[n.Int64()]
	}
	return string(code), nil
}

// NormalizeInviteCode trims and uppercases a user-typed invite code
func NormalizeInviteCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// GenerateJWT generates a JWT token for a user
func (s *UserService) GenerateJWT(userID string) (string, error) {
	now := s.now()
	claims := jwt.MapClaims{
		"user_id": userID,
		"exp":     now.AddDate(0, 0, jwtExpDays).Unix(),
		"iat":     now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return tokenString, nil
}

// ValidateJWT validates a JWT token and returns the user ID
func (s *UserService) ValidateJWT(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.jwtSecret), nil
	})
	if err != nil {
		return "", apperr.ErrUnauthenticated.With(err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", apperr.ErrUnauthenticated.Withf("invalid token claims")
	}

	userID, ok := claims["user_id"].(string)
	if !ok || userID == "" {
		return "", apperr.ErrUnauthenticated.Withf("user_id not found in token")
	}

	return userID, nil
}

// Login creates a new user for nickname and returns it with a token.
// Invite code collisions are retried a bounded number of times.
func (s *UserService) Login(ctx context.Context, req LoginRequest) (*models.User, string, error) {
	req.Nickname = strings.TrimSpace(req.Nickname)
	if err := validateStruct(req); err != nil {
		return nil, "", err
	}

	user := &models.User{
		ID:        uuid.New().String(),
		Nickname:  req.Nickname,
		Avatar:    req.Avatar,
		CreatedAt: s.now(),
	}

	var err error
	for attempt := 1; attempt <= codeMaxAttempts; attempt++ {
		user.InviteCode, err = generateCode()
		if err != nil {
			return nil, "", err
		}
		err = s.store.CreateUser(ctx, user)
		if err == nil {
			break
		}
		if !errors.Is(err, apperr.ErrInviteCodeConflict) {
			return nil, "", fmt.Errorf("failed to create user: %w", err)
		}
		log.Warn().Int("attempt", attempt).Msg("Invite code collision, regenerating")
	}
	if err != nil {
		return nil, "", apperr.ErrInviteCodeConflict.With(err)
	}

	token, err := s.GenerateJWT(user.ID)
	if err != nil {
		return nil, "", fmt.Errorf("failed to generate token: %w", err)
	}

	if s.sessions != nil {
		if err := s.sessions.SaveSession(ctx, user); err != nil {
			return nil, "", fmt.Errorf("failed to save session: %w", err)
		}
	}

	return user, token, nil
}

// GetUser retrieves a user by ID
func (s *UserService) GetUser(ctx context.Context, userID string) (*models.User, error) {
	return s.store.GetUser(ctx, userID)
}

// HasDeviceSession reports whether the store keeps a signed-in device user
func (s *UserService) HasDeviceSession() bool {
	return s.sessions != nil
}

// CurrentUser returns the signed-in device user
func (s *UserService) CurrentUser(ctx context.Context) (*models.User, error) {
	if s.sessions == nil {
		return nil, apperr.ErrUnauthenticated
	}
	user, err := s.sessions.LoadSession(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if user == nil {
		return nil, apperr.ErrUnauthenticated
	}
	return user, nil
}

// Logout forgets the signed-in device user
func (s *UserService) Logout(ctx context.Context) error {
	if s.sessions == nil {
		return nil
	}
	return s.sessions.ClearSession(ctx)
}

// UpdatePushToken sets or clears the device push token for a user
func (s *UserService) UpdatePushToken(ctx context.Context, userID string, token *string) error {
	if token != nil {
		trimmed := strings.TrimSpace(*token)
		if trimmed == "" {
			token = nil
		} else {
			token = &trimmed
		}
	}
	if err := s.store.UpdatePushToken(ctx, userID, token); err != nil {
		return fmt.Errorf("failed to update push token: %w", err)
	}
	return nil
}
