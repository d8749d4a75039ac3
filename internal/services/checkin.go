package services

import (
	"context"
	"fmt"

	"duo-checkin-backend/internal/apperr"
	"duo-checkin-backend/internal/models"
	"duo-checkin-backend/internal/policy"
	"duo-checkin-backend/internal/repository"

	"github.com/rs/zerolog/log"
)

// CheckInService handles daily check-ins
type CheckInService struct {
	store      repository.Store
	eval       *policy.Evaluator
	dispatcher *Dispatcher
}

// NewCheckInService creates a new check-in service
func NewCheckInService(store repository.Store, eval *policy.Evaluator, dispatcher *Dispatcher) *CheckInService {
	return &CheckInService{
		store:      store,
		eval:       eval,
		dispatcher: dispatcher,
	}
}

// SubmitToday upserts the user's check-in for today
func (s *CheckInService) SubmitToday(ctx context.Context, userID string, fields models.CheckInFields) (*models.CheckIn, error) {
	return s.Submit(ctx, userID, s.eval.Today(), fields)
}

// Submit upserts the user's check-in for date, which must be today. The
// partner is notified on the first submission and whenever a field changes.
func (s *CheckInService) Submit(ctx context.Context, userID, date string, fields models.CheckInFields) (*models.CheckIn, error) {
	if !s.eval.CanCheckIn(date) {
		return nil, apperr.ErrCheckInClosed
	}
	if err := validateStruct(fields); err != nil {
		return nil, err
	}

	checkIn, previous, err := s.store.UpsertCheckIn(ctx, userID, date, fields)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert check-in: %w", err)
	}

	binding, err := s.store.GetPartnerBinding(ctx, userID)
	if err != nil {
		// the check-in is stored; only the notification is lost
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to get partner for check-in notification")
		return checkIn, nil
	}
	if binding != nil {
		s.dispatcher.CheckInSubmitted(userID, binding.PartnerID, previous, checkIn)
	}

	log.Info().
		Str("user_id", userID).
		Str("date", date).
		Bool("updated", previous != nil).
		Msg("Check-in saved")

	return checkIn, nil
}

// List returns the user's own check-ins, newest first
func (s *CheckInService) List(ctx context.Context, userID string) ([]models.CheckIn, error) {
	return s.store.ListCheckIns(ctx, userID)
}

// ListPartner returns the bound partner's check-ins
func (s *CheckInService) ListPartner(ctx context.Context, userID string) ([]models.CheckIn, error) {
	binding, err := s.store.GetPartnerBinding(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get partner binding: %w", err)
	}
	if binding == nil {
		return nil, apperr.ErrNoPartner
	}
	return s.store.ListCheckInsForPartner(ctx, userID)
}
