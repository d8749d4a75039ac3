package postgres

import (
	"context"
	"errors"
	"time"

	"duo-checkin-backend/internal/apperr"
	"duo-checkin-backend/internal/models"

	"github.com/jackc/pgx/v5"
)

// GetPartnerBinding retrieves the user's binding joined with the partner profile
func (s *Store) GetPartnerBinding(ctx context.Context, userID string) (*models.PartnerBinding, error) {
	query := `
		SELECT b.user_id, b.partner_id, u.nickname, u.avatar, u.invite_code, b.bound_at
		FROM partner_bindings b
		JOIN users u ON u.id = b.partner_id
		WHERE b.user_id = $1
	`
	return retry(ctx, s, "get partner binding", func(ctx context.Context) (*models.PartnerBinding, error) {
		var binding models.PartnerBinding
		err := s.db.QueryRow(ctx, query, userID).Scan(
			&binding.UserID, &binding.PartnerID, &binding.PartnerNickname,
			&binding.PartnerAvatar, &binding.PartnerInviteCode, &binding.BoundAt,
		)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return &binding, nil
	})
}

// BindPartners writes both edges in one serializable transaction
func (s *Store) BindPartners(ctx context.Context, requesterID, ownerID string, boundAt time.Time) (*models.PartnerBinding, error) {
	if requesterID == ownerID {
		return nil, apperr.ErrSelfBind
	}
	err := exec(ctx, s, "bind partners", func(ctx context.Context) error {
		return pgx.BeginTxFunc(ctx, s.db, pgx.TxOptions{IsoLevel: pgx.Serializable}, func(tx pgx.Tx) error {
			rows, err := tx.Query(ctx,
				`SELECT user_id, partner_id FROM partner_bindings WHERE user_id = ANY($1) FOR UPDATE`,
				[]string{requesterID, ownerID},
			)
			if err != nil {
				return err
			}
			existing := make(map[string]string)
			for rows.Next() {
				var userID, partnerID string
				if err := rows.Scan(&userID, &partnerID); err != nil {
					rows.Close()
					return err
				}
				existing[userID] = partnerID
			}
			rows.Close()
			if err := rows.Err(); err != nil {
				return err
			}

			if partnerID, ok := existing[requesterID]; ok && partnerID != ownerID {
				return apperr.ErrAlreadyBound
			}
			if partnerID, ok := existing[ownerID]; ok && partnerID != requesterID {
				return apperr.ErrAlreadyBound.Withf("partner is already bound")
			}
			if len(existing) == 2 {
				return nil
			}

			// A half-written pair is completed rather than rejected.
			_, err = tx.Exec(ctx, `
				INSERT INTO partner_bindings (user_id, partner_id, bound_at)
				VALUES ($1, $2, $3), ($2, $1, $3)
				ON CONFLICT (user_id) DO NOTHING
			`, requesterID, ownerID, boundAt)
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	binding, err := s.GetPartnerBinding(ctx, requesterID)
	if err != nil {
		return nil, err
	}
	if binding == nil {
		return nil, apperr.Transient("bind partners", errors.New("binding not visible after commit"))
	}
	return binding, nil
}

// Unbind deletes both edges of the user's binding in one transaction
func (s *Store) Unbind(ctx context.Context, userID string) (string, error) {
	return retry(ctx, s, "unbind", func(ctx context.Context) (string, error) {
		var partnerID string
		err := pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
			err := tx.QueryRow(ctx,
				`DELETE FROM partner_bindings WHERE user_id = $1 RETURNING partner_id`, userID,
			).Scan(&partnerID)
			if errors.Is(err, pgx.ErrNoRows) {
				partnerID = ""
				return nil
			}
			if err != nil {
				return err
			}
			_, err = tx.Exec(ctx,
				`DELETE FROM partner_bindings WHERE user_id = $1 AND partner_id = $2`, partnerID, userID,
			)
			return err
		})
		return partnerID, err
	})
}
