package local

import (
	"context"
	"slices"
	"time"

	"duo-checkin-backend/internal/apperr"
	"duo-checkin-backend/internal/models"
)

// partnerEdge is one stored direction of a binding
type partnerEdge struct {
	UserID    string    `json:"user_id"`
	PartnerID string    `json:"partner_id"`
	BoundAt   time.Time `json:"bound_at"`
}

func (s *Store) loadEdges(ctx context.Context) ([]partnerEdge, error) {
	var edges []partnerEdge
	if err := s.load(ctx, keyPartner, &edges); err != nil {
		return nil, err
	}
	return edges, nil
}

func edgeOf(edges []partnerEdge, userID string) *partnerEdge {
	for i := range edges {
		if edges[i].UserID == userID {
			return &edges[i]
		}
	}
	return nil
}

func (s *Store) bindingFor(ctx context.Context, edge *partnerEdge) (*models.PartnerBinding, error) {
	partner, err := s.findUser(ctx, edge.PartnerID)
	if err != nil {
		return nil, err
	}
	binding := &models.PartnerBinding{
		UserID:    edge.UserID,
		PartnerID: edge.PartnerID,
		BoundAt:   edge.BoundAt,
	}
	if partner != nil {
		binding.PartnerNickname = partner.Nickname
		binding.PartnerAvatar = partner.Avatar
		binding.PartnerInviteCode = partner.InviteCode
	}
	return binding, nil
}

// GetPartnerBinding returns the user's binding, or nil when unbound
func (s *Store) GetPartnerBinding(ctx context.Context, userID string) (*models.PartnerBinding, error) {
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
		return nil, nil
	}
	return s.bindingFor(ctx, edge)
}

// BindPartners writes both directions of the binding in a single blob write
func (s *Store) BindPartners(ctx context.Context, requesterID, ownerID string, boundAt time.Time) (*models.PartnerBinding, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if requesterID == ownerID {
		return nil, apperr.ErrSelfBind
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	edges, err := s.loadEdges(ctx)
	if err != nil {
		return nil, err
	}
	mine, theirs := edgeOf(edges, requesterID), edgeOf(edges, ownerID)
	if mine != nil && mine.PartnerID != ownerID {
		return nil, apperr.ErrAlreadyBound
	}
	if theirs != nil && theirs.PartnerID != requesterID {
		return nil, apperr.ErrAlreadyBound.Withf("partner is already bound")
	}
	if mine != nil && theirs != nil {
		return s.bindingFor(ctx, mine)
	}

	// A half-written pair is completed rather than rejected.
	if mine == nil {
		edges = append(edges, partnerEdge{UserID: requesterID, PartnerID: ownerID, BoundAt: boundAt})
	}
	if theirs == nil {
		edges = append(edges, partnerEdge{UserID: ownerID, PartnerID: requesterID, BoundAt: boundAt})
	}
	if err := s.save(ctx, keyPartner, edges); err != nil {
		return nil, err
	}
	return s.bindingFor(ctx, edgeOf(edges, requesterID))
}

// Unbind removes both directions of the user's binding
func (s *Store) Unbind(ctx context.Context, userID string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	edges, err := s.loadEdges(ctx)
	if err != nil {
		return "", err
	}
	edge := edgeOf(edges, userID)
	if edge == nil {
		return "", nil
	}
	partnerID := edge.PartnerID
	edges = slices.DeleteFunc(edges, func(e partnerEdge) bool {
		return e.UserID == userID || (e.UserID == partnerID && e.PartnerID == userID)
	})
	if err := s.save(ctx, keyPartner, edges); err != nil {
		return "", err
	}
	return partnerID, nil
}
