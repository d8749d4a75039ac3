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

// RateRequest is a rating of the partner's check-in
type RateRequest struct {
	CheckInDate  string  `json:"check_in_date" validate:"required,datetime=2006-01-02"`
	Completeness int     `json:"completeness" validate:"gte=1,lte=5"`
	Effort       int     `json:"effort" validate:"gte=1,lte=5"`
	Comment      *string `json:"comment,omitempty" validate:"omitempty,max=500"`
}

// RatingService handles cross-rating of partner check-ins
type RatingService struct {
	store      repository.Store
	eval       *policy.Evaluator
	dispatcher *Dispatcher
}

// NewRatingService creates a new rating service
func NewRatingService(store repository.Store, eval *policy.Evaluator, dispatcher *Dispatcher) *RatingService {
	return &RatingService{
		store:      store,
		eval:       eval,
		dispatcher: dispatcher,
	}
}

// Rate upserts fromUserID's rating of the partner's check-in on req.CheckInDate.
// The stored check-in id is refreshed to the partner's current check-in.
func (s *RatingService) Rate(ctx context.Context, fromUserID string, req RateRequest) (*models.Rating, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	if s.eval.IsRatingExpired(req.CheckInDate) {
		return nil, apperr.ErrRatingExpired
	}
	if !s.eval.InRatingWindow(req.CheckInDate) {
		return nil, apperr.ErrInvalidInput.Withf("check-in date %s is in the future", req.CheckInDate)
	}

	binding, err := s.store.GetPartnerBinding(ctx, fromUserID)
	if err != nil {
		return nil, fmt.Errorf("failed to get partner binding: %w", err)
	}
	if binding == nil {
		return nil, apperr.ErrNoPartner
	}

	checkIn, err := s.store.GetCheckIn(ctx, binding.PartnerID, req.CheckInDate)
	if err != nil {
		return nil, fmt.Errorf("failed to get partner check-in: %w", err)
	}
	if checkIn == nil {
		return nil, apperr.ErrNotFound.Withf("partner has no check-in on %s", req.CheckInDate)
	}

	rating, err := s.store.UpsertRating(ctx, models.RatingInput{
		FromUserID:   fromUserID,
		ToUserID:     binding.PartnerID,
		CheckInDate:  req.CheckInDate,
		CheckInID:    checkIn.ID,
		Completeness: req.Completeness,
		Effort:       req.Effort,
		Comment:      req.Comment,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upsert rating: %w", err)
	}

	log.Info().
		Str("user_id", fromUserID).
		Str("partner_id", binding.PartnerID).
		Str("date", req.CheckInDate).
		Int("completeness", req.Completeness).
		Int("effort", req.Effort).
		Msg("Rating saved")

	s.dispatcher.RatingSubmitted(rating)
	return rating, nil
}

// List returns every rating the user gave or received
func (s *RatingService) List(ctx context.Context, userID string) ([]models.Rating, error) {
	return s.store.ListRatings(ctx, userID)
}
