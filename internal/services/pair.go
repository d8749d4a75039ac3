package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"duo-checkin-backend/internal/apperr"
	"duo-checkin-backend/internal/models"
	"duo-checkin-backend/internal/repository"

	"github.com/rs/zerolog/log"
)

// PairService resolves invite codes into partner bindings
type PairService struct {
	store      repository.Store
	dispatcher *Dispatcher
	now        func() time.Time
}

// NewPairService creates a new pair service
func NewPairService(store repository.Store, dispatcher *Dispatcher) *PairService {
	return &PairService{
		store:      store,
		dispatcher: dispatcher,
		now:        time.Now,
	}
}

// BindRequest represents a request to bind with a partner
type BindRequest struct {
	InviteCode string `json:"invite_code" validate:"required"`
}

// GetPartner returns the user's binding or apperr.ErrNoPartner
func (s *PairService) GetPartner(ctx context.Context, userID string) (*models.PartnerBinding, error) {
	binding, err := s.store.GetPartnerBinding(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get partner binding: %w", err)
	}
	if binding == nil {
		return nil, apperr.ErrNoPartner
	}
	return binding, nil
}

// BindByInviteCode binds requesterID with the owner of code. Both directed
// edges are written atomically; binding while bound to someone else is
// rejected and rebinding the same pair is a no-op.
func (s *PairService) BindByInviteCode(ctx context.Context, requesterID, code string) (*models.PartnerBinding, error) {
	code = NormalizeInviteCode(code)
	if len(code) != codeLength {
		return nil, apperr.ErrInvalidCode
	}

	owner, err := s.store.GetUserByInviteCode(ctx, code)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, apperr.ErrInvalidCode
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by code: %w", err)
	}
	if owner.ID == requesterID {
		return nil, apperr.ErrSelfBind
	}

	requester, err := s.store.GetUser(ctx, requesterID)
	if err != nil {
		return nil, fmt.Errorf("failed to get requester: %w", err)
	}

	existing, err := s.store.GetPartnerBinding(ctx, requesterID)
	if err != nil {
		return nil, fmt.Errorf("failed to get partner binding: %w", err)
	}
	alreadyPaired := existing != nil && existing.PartnerID == owner.ID

	binding, err := s.store.BindPartners(ctx, requesterID, owner.ID, s.now())
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("user_id", requesterID).
		Str("partner_id", owner.ID).
		Msg("Partners bound")

	if !alreadyPaired {
		s.dispatcher.PartnerBound(requester, owner.ID)
	}
	return binding, nil
}

// Unbind removes both edges of the user's binding. Unbinding without a
// partner is a no-op.
func (s *PairService) Unbind(ctx context.Context, userID string) error {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to get user: %w", err)
	}

	partnerID, err := s.store.Unbind(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to unbind: %w", err)
	}
	if partnerID == "" {
		return nil
	}

	log.Info().
		Str("user_id", userID).
		Str("partner_id", partnerID).
		Msg("Partners unbound")

	s.dispatcher.PartnerUnbound(user, partnerID)
	return nil
}
