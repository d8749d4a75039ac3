package services

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"duo-checkin-backend/internal/models"
	"duo-checkin-backend/internal/policy"
	"duo-checkin-backend/internal/repository"
	"duo-checkin-backend/internal/repository/local"
)

const testSecret = "test-secret"

// testClock is a settable clock
type testClock struct {
	mu  sync.Mutex
	day string
}

func (c *testClock) Today() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.day
}

func (c *testClock) Set(day string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.day = day
}

type testEnv struct {
	store *local.Store
	clock *testClock
	app   *App
}

func newTestEnv(t *testing.T, opts DispatcherOptions) *testEnv {
	t.Helper()

	store, err := local.Open(filepath.Join(t.TempDir(), "app.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	return newTestEnvWithStore(t, store, store, opts)
}

func newTestEnvWithStore(t *testing.T, base *local.Store, store repository.Store, opts DispatcherOptions) *testEnv {
	t.Helper()

	clock := &testClock{day: "2024-01-10"}
	eval := policy.NewEvaluator(clock)
	if opts.Attempts == 0 {
		opts.Attempts = 2
	}
	if opts.Timeout == 0 {
		opts.Timeout = time.Second
	}
	dispatcher := NewDispatcher(store, eval, opts)
	t.Cleanup(dispatcher.Wait)

	return &testEnv{
		store: base,
		clock: clock,
		app:   NewApp(store, eval, dispatcher, testSecret),
	}
}

func (e *testEnv) login(t *testing.T, nickname string) *models.User {
	t.Helper()

	user, _, err := e.app.Users.Login(context.Background(), LoginRequest{Nickname: nickname})
	if err != nil {
		t.Fatalf("login %s: %v", nickname, err)
	}
	return user
}

// pair logs in two users and binds the first to the second's code
func (e *testEnv) pair(t *testing.T) (*models.User, *models.User) {
	t.Helper()

	a := e.login(t, "alice")
	b := e.login(t, "bob")
	if _, err := e.app.Pairs.BindByInviteCode(context.Background(), a.ID, b.InviteCode); err != nil {
		t.Fatalf("bind: %v", err)
	}
	e.app.Dispatcher.Wait()
	return a, b
}

// messagesOf waits for deliveries and lists the user's messages of type
func (e *testEnv) messagesOf(t *testing.T, userID string, msgType models.MessageType) []models.Message {
	t.Helper()

	e.app.Dispatcher.Wait()
	all, err := e.store.ListMessages(context.Background(), userID, models.Page{})
	if err != nil {
		t.Fatalf("list messages: %v", err)
	}
	var out []models.Message
	for _, m := range all {
		if m.Type == msgType {
			out = append(out, m)
		}
	}
	return out
}

func floatPtr(v float64) *float64 { return &v }
func strPtr(v string) *string     { return &v }
