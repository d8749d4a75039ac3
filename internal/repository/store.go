// Package repository defines the storage port shared by the local and remote
// backends. Business logic depends only on Store; the backend is chosen once
// at startup.
package repository

import (
	"context"
	"time"

	"duo-checkin-backend/internal/models"
)

// UserStore persists user profiles
type UserStore interface {
	// CreateUser inserts a user. A taken invite code yields apperr.ErrInviteCodeConflict.
	CreateUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id string) (*models.User, error)
	GetUserByInviteCode(ctx context.Context, code string) (*models.User, error)
	ListUserIDs(ctx context.Context) ([]string, error)
	UpdatePushToken(ctx context.Context, userID string, pushToken *string) error
}

// PartnerStore persists partner bindings as directed edges
type PartnerStore interface {
	// GetPartnerBinding returns nil, nil when the user has no partner.
	GetPartnerBinding(ctx context.Context, userID string) (*models.PartnerBinding, error)
	// BindPartners atomically writes requester->owner and owner->requester.
	BindPartners(ctx context.Context, requesterID, ownerID string, boundAt time.Time) (*models.PartnerBinding, error)
	// Unbind atomically removes both edges and returns the former partner id.
	Unbind(ctx context.Context, userID string) (string, error)
}

// CheckInStore persists check-ins keyed by (user, date)
type CheckInStore interface {
	// GetCheckIn returns nil, nil when no check-in exists.
	GetCheckIn(ctx context.Context, userID, date string) (*models.CheckIn, error)
	// UpsertCheckIn writes fields and returns the stored check-in together
	// with the one it replaced (nil on first submission), read in the same
	// atomic step.
	UpsertCheckIn(ctx context.Context, userID, date string, fields models.CheckInFields) (checkIn, previous *models.CheckIn, err error)
	ListCheckIns(ctx context.Context, userID string) ([]models.CheckIn, error)
	ListCheckInsForPartner(ctx context.Context, userID string) ([]models.CheckIn, error)
}

// RatingStore persists ratings keyed by (from, to, check-in date)
type RatingStore interface {
	// GetRating returns nil, nil when no rating exists.
	GetRating(ctx context.Context, fromUserID, toUserID, checkInDate string) (*models.Rating, error)
	UpsertRating(ctx context.Context, input models.RatingInput) (*models.Rating, error)
	ListRatings(ctx context.Context, userID string) ([]models.Rating, error)
}

// MessageStore persists per-recipient messages
type MessageStore interface {
	// AddMessage is idempotent on input.ID.
	AddMessage(ctx context.Context, userID string, input models.MessageInput) (*models.Message, error)
	ListMessages(ctx context.Context, userID string, page models.Page) ([]models.Message, error)
	MarkMessageRead(ctx context.Context, userID, messageID string) error
	// SubscribeMessages calls onChange whenever a message is added for userID.
	SubscribeMessages(ctx context.Context, userID string, onChange func()) (func(), error)
}

// Store is the complete storage port
type Store interface {
	UserStore
	PartnerStore
	CheckInStore
	RatingStore
	MessageStore
	Close() error
}

// SessionStore is implemented by backends that remember the signed-in user
// on the device
type SessionStore interface {
	SaveSession(ctx context.Context, user *models.User) error
	LoadSession(ctx context.Context) (*models.User, error)
	ClearSession(ctx context.Context) error
}
