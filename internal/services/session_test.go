package services

import (
	"context"
	"testing"
	"time"

	"duo-checkin-backend/internal/models"
)

func TestSessionStartLoadsEverything(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, DispatcherOptions{})
	a, b := env.pair(t)
	ctx := context.Background()

	if _, err := env.app.CheckIns.SubmitToday(ctx, a.ID, models.CheckInFields{Weight: floatPtr(70)}); err != nil {
		t.Fatalf("submit a: %v", err)
	}
	if _, err := env.app.CheckIns.SubmitToday(ctx, b.ID, models.CheckInFields{Weight: floatPtr(80)}); err != nil {
		t.Fatalf("submit b: %v", err)
	}
	if _, err := env.app.Ratings.Rate(ctx, a.ID, RateRequest{CheckInDate: "2024-01-10", Completeness: 5, Effort: 4}); err != nil {
		t.Fatalf("rate: %v", err)
	}
	env.app.Dispatcher.Wait()

	session, err := env.app.NewSession(ctx, a.ID)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	snap := session.Snapshot()

	if snap.User == nil || snap.User.ID != a.ID {
		t.Fatalf("user = %+v, want %s", snap.User, a.ID)
	}
	if snap.Partner == nil || snap.Partner.PartnerID != b.ID {
		t.Fatalf("partner = %+v, want %s", snap.Partner, b.ID)
	}
	if len(snap.CheckIns) != 1 || len(snap.PartnerCheckIns) != 1 {
		t.Fatalf("check-ins = %d/%d, want 1/1", len(snap.CheckIns), len(snap.PartnerCheckIns))
	}
	if len(snap.Ratings) != 1 {
		t.Fatalf("ratings = %d, want 1", len(snap.Ratings))
	}
	// partner_done from b
	if len(snap.Messages) == 0 {
		t.Fatal("messages not loaded")
	}
}

func TestSessionRefreshReplacesSnapshot(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, DispatcherOptions{})
	a, _ := env.pair(t)
	ctx := context.Background()

	session, err := env.app.NewSession(ctx, a.ID)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if session.Snapshot().Partner == nil {
		t.Fatal("partner missing before unbind")
	}

	if err := env.app.Pairs.Unbind(ctx, a.ID); err != nil {
		t.Fatalf("unbind: %v", err)
	}
	if session.Snapshot().Partner == nil {
		t.Fatal("snapshot changed without refresh")
	}

	if err := session.Refresh(ctx); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if p := session.Snapshot().Partner; p != nil {
		t.Fatalf("partner after refresh = %+v, want nil", p)
	}
}

func TestSessionWatchRefetchesMessages(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, DispatcherOptions{})
	a, b := env.pair(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	session, err := env.app.NewSession(ctx, b.ID)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	defer session.Close()

	got := make(chan []models.Message, 4)
	if err := session.Watch(ctx, func(msgs []models.Message) { got <- msgs }); err != nil {
		t.Fatalf("watch: %v", err)
	}

	if _, err := env.app.Messages.Encourage(ctx, a.ID, EncourageRequest{Text: "hello"}); err != nil {
		t.Fatalf("encourage: %v", err)
	}

	deadline := time.After(5 * time.Second)
	for {
		select {
		case msgs := <-got:
			if len(msgs) > 0 && msgs[0].Type == models.MessageEncourage {
				snap := session.Snapshot()
				if len(snap.Messages) == 0 || snap.Messages[0].ID != msgs[0].ID {
					t.Fatal("snapshot messages not replaced by re-fetch")
				}
				return
			}
		case <-deadline:
			t.Fatal("no message re-fetch after event")
		}
	}
}

func TestSessionWatchCatchesUpAfterStart(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, DispatcherOptions{})
	_, b := env.pair(t)
	env.app.Dispatcher.Wait()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	session, err := env.app.NewSession(ctx, b.ID)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	defer session.Close()
	before := len(session.Snapshot().Messages)

	// Added after the snapshot but before the subscription exists.
	added, err := env.store.AddMessage(ctx, b.ID, models.MessageInput{Type: models.MessageEncourage, Title: "between"})
	if err != nil {
		t.Fatalf("add message: %v", err)
	}

	got := make(chan []models.Message, 4)
	if err := session.Watch(ctx, func(msgs []models.Message) { got <- msgs }); err != nil {
		t.Fatalf("watch: %v", err)
	}

	select {
	case msgs := <-got:
		if len(msgs) != before+1 || msgs[0].ID != added.ID {
			t.Fatalf("first fetch = %d messages, want %d with %q first", len(msgs), before+1, added.ID)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no fetch after subscribing")
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, DispatcherOptions{})
	a := env.login(t, "alice")
	ctx := context.Background()
	if _, err := env.app.CheckIns.SubmitToday(ctx, a.ID, models.CheckInFields{Weight: floatPtr(70)}); err != nil {
		t.Fatalf("submit: %v", err)
	}

	session, err := env.app.NewSession(ctx, a.ID)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	snap := session.Snapshot()
	snap.CheckIns[0].Date = "mutated"

	if got := session.Snapshot().CheckIns[0].Date; got != "2024-01-10" {
		t.Fatalf("date = %q, want unchanged", got)
	}
}
