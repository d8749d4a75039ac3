package services

import (
	"context"

	"duo-checkin-backend/internal/models"
	"duo-checkin-backend/internal/policy"
	"duo-checkin-backend/internal/repository"
)

// App bundles the services over one store. The store is selected once at
// startup; nothing below branches on the backend.
type App struct {
	Users      *UserService
	Pairs      *PairService
	CheckIns   *CheckInService
	Ratings    *RatingService
	Messages   *MessageService
	Dispatcher *Dispatcher
	Policy     *policy.Evaluator

	store repository.Store
}

// NewApp wires the services
func NewApp(store repository.Store, eval *policy.Evaluator, dispatcher *Dispatcher, jwtSecret string) *App {
	return &App{
		Users:      NewUserService(store, jwtSecret),
		Pairs:      NewPairService(store, dispatcher),
		CheckIns:   NewCheckInService(store, eval, dispatcher),
		Ratings:    NewRatingService(store, eval, dispatcher),
		Messages:   NewMessageService(store, dispatcher),
		Dispatcher: dispatcher,
		Policy:     eval,
		store:      store,
	}
}

// Snapshot loads the full state of userID
func (a *App) Snapshot(ctx context.Context, userID string) (*models.Snapshot, error) {
	return LoadSnapshot(ctx, a.store, userID)
}

// NewSession starts a synchronized session for userID
func (a *App) NewSession(ctx context.Context, userID string) (*Session, error) {
	session := NewSession(a.store, userID)
	if err := session.Start(ctx); err != nil {
		return nil, err
	}
	return session, nil
}
