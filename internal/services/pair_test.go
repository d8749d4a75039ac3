package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"duo-checkin-backend/internal/apperr"
	"duo-checkin-backend/internal/models"
)

func TestBindByInviteCodeIsSymmetric(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, DispatcherOptions{})
	ctx := context.Background()
	a := env.login(t, "alice")
	b := env.login(t, "bob")

	code := "  " + strings.ToLower(b.InviteCode) + " "
	binding, err := env.app.Pairs.BindByInviteCode(ctx, a.ID, code)
	if err != nil {
		t.Fatalf("bind: %v", err)
	}
	if binding.PartnerID != b.ID {
		t.Fatalf("partner = %q, want %q", binding.PartnerID, b.ID)
	}

	reverse, err := env.app.Pairs.GetPartner(ctx, b.ID)
	if err != nil {
		t.Fatalf("reverse: %v", err)
	}
	if reverse.PartnerID != a.ID {
		t.Fatalf("reverse partner = %q, want %q", reverse.PartnerID, a.ID)
	}

	msgs := env.messagesOf(t, b.ID, models.MessageBind)
	if len(msgs) != 1 {
		t.Fatalf("bind messages to owner = %d, want 1", len(msgs))
	}
}

func TestBindByInviteCodeErrors(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, DispatcherOptions{})
	ctx := context.Background()
	a, b := env.pair(t)
	c := env.login(t, "carol")

	tests := []struct {
		name      string
		requester string
		code      string
		want      error
	}{
		{name: "unknown code", requester: c.ID, code: "ZZZZZZ", want: apperr.ErrInvalidCode},
		{name: "malformed code", requester: c.ID, code: "abc", want: apperr.ErrInvalidCode},
		{name: "own code", requester: c.ID, code: c.InviteCode, want: apperr.ErrSelfBind},
		{name: "owner already bound", requester: c.ID, code: a.InviteCode, want: apperr.ErrAlreadyBound},
		{name: "requester already bound", requester: a.ID, code: c.InviteCode, want: apperr.ErrAlreadyBound},
	}
	for _, tt := range tests {
		_, err := env.app.Pairs.BindByInviteCode(ctx, tt.requester, tt.code)
		if !errors.Is(err, tt.want) {
			t.Fatalf("%s: err = %v, want %v", tt.name, err, tt.want)
		}
	}

	// same pair again is accepted without a second bind message
	if _, err := env.app.Pairs.BindByInviteCode(ctx, a.ID, b.InviteCode); err != nil {
		t.Fatalf("rebind: %v", err)
	}
	if msgs := env.messagesOf(t, b.ID, models.MessageBind); len(msgs) != 1 {
		t.Fatalf("bind messages = %d, want 1", len(msgs))
	}
}

func TestUnbindRemovesBothSidesAndNotifies(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, DispatcherOptions{})
	ctx := context.Background()
	a, b := env.pair(t)

	if err := env.app.Pairs.Unbind(ctx, a.ID); err != nil {
		t.Fatalf("unbind: %v", err)
	}
	for _, id := range []string{a.ID, b.ID} {
		if _, err := env.app.Pairs.GetPartner(ctx, id); !errors.Is(err, apperr.ErrNoPartner) {
			t.Fatalf("partner of %s = %v, want %v", id, err, apperr.ErrNoPartner)
		}
	}
	if msgs := env.messagesOf(t, b.ID, models.MessageUnbind); len(msgs) != 1 {
		t.Fatalf("unbind messages = %d, want 1", len(msgs))
	}

	// no partner left, nothing to do
	if err := env.app.Pairs.Unbind(ctx, a.ID); err != nil {
		t.Fatalf("second unbind: %v", err)
	}
	if msgs := env.messagesOf(t, b.ID, models.MessageUnbind); len(msgs) != 1 {
		t.Fatalf("unbind messages after no-op = %d, want 1", len(msgs))
	}
}
