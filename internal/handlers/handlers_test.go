package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"duo-checkin-backend/internal/apperr"
	"duo-checkin-backend/internal/models"
	"duo-checkin-backend/internal/policy"
	"duo-checkin-backend/internal/repository/local"
	"duo-checkin-backend/internal/services"

	"github.com/gorilla/websocket"
)

type testServer struct {
	app    *services.App
	hub    *services.WSHub
	router http.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	store, err := local.Open(filepath.Join(t.TempDir(), "app.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	eval := policy.NewEvaluator(policy.FixedClock("2024-01-10"))
	hub := services.NewWSHub(store)
	dispatcher := services.NewDispatcher(store, eval, services.DispatcherOptions{
		Attempts: 2,
		Timeout:  time.Second,
		Presence: hub,
	})
	t.Cleanup(dispatcher.Wait)

	app := services.NewApp(store, eval, dispatcher, "test-secret")
	return &testServer{
		app:    app,
		hub:    hub,
		router: NewRouter(app, hub, nil),
	}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) login(t *testing.T, nickname string) LoginResponse {
	t.Helper()

	rec := s.do(t, http.MethodPost, "/api/v1/users", "", services.LoginRequest{Nickname: nickname})
	if rec.Code != http.StatusOK {
		t.Fatalf("login %s status = %d, body %s", nickname, rec.Code, rec.Body.String())
	}
	var resp LoginResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode login: %v", err)
	}
	return resp
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()

	var resp ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return resp
}

func TestStatusFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"unauthenticated", apperr.ErrUnauthenticated, http.StatusUnauthorized},
		{"validation", apperr.ErrInvalidCode, http.StatusBadRequest},
		{"rate limited", apperr.ErrRateLimited, http.StatusTooManyRequests},
		{"conflict", apperr.ErrAlreadyBound, http.StatusConflict},
		{"not found", apperr.ErrNoPartner, http.StatusNotFound},
		{"transient", &apperr.Error{Kind: apperr.KindTransient, Code: "network"}, http.StatusServiceUnavailable},
		{"untagged", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := statusFor(tt.err); got != tt.want {
				t.Fatalf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestPairAndCheckInFlow(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	alice := s.login(t, "alice")
	bob := s.login(t, "bob")

	rec := s.do(t, http.MethodPost, "/api/v1/partner", bob.Token, services.BindRequest{InviteCode: strings.ToLower(alice.User.InviteCode)})
	if rec.Code != http.StatusOK {
		t.Fatalf("bind status = %d, body %s", rec.Code, rec.Body.String())
	}
	var binding models.PartnerBinding
	if err := json.NewDecoder(rec.Body).Decode(&binding); err != nil {
		t.Fatalf("decode binding: %v", err)
	}
	if binding.PartnerID != alice.User.ID {
		t.Fatalf("partner = %q, want %q", binding.PartnerID, alice.User.ID)
	}

	rec = s.do(t, http.MethodGet, "/api/v1/partner", alice.Token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get partner status = %d", rec.Code)
	}

	weight := 60.5
	rec = s.do(t, http.MethodPut, "/api/v1/checkins/today", alice.Token, models.CheckInFields{Weight: &weight})
	if rec.Code != http.StatusOK {
		t.Fatalf("check-in status = %d, body %s", rec.Code, rec.Body.String())
	}

	rec = s.do(t, http.MethodGet, "/api/v1/checkins/partner", bob.Token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("partner check-ins status = %d", rec.Code)
	}
	var list struct {
		CheckIns []models.CheckIn `json:"check_ins"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&list); err != nil {
		t.Fatalf("decode check-ins: %v", err)
	}
	if len(list.CheckIns) != 1 || list.CheckIns[0].Date != "2024-01-10" {
		t.Fatalf("partner check-ins = %+v, want one for 2024-01-10", list.CheckIns)
	}

	rec = s.do(t, http.MethodPost, "/api/v1/ratings", bob.Token, services.RateRequest{
		CheckInDate:  "2024-01-10",
		Completeness: 4,
		Effort:       5,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("rate status = %d, body %s", rec.Code, rec.Body.String())
	}

	s.app.Dispatcher.Wait()
	rec = s.do(t, http.MethodGet, "/api/v1/messages", alice.Token, nil)
	var inbox struct {
		Messages []models.Message `json:"messages"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&inbox); err != nil {
		t.Fatalf("decode messages: %v", err)
	}
	if len(inbox.Messages) == 0 {
		t.Fatal("alice has no messages after bind, check-in and rating")
	}

	rec = s.do(t, http.MethodPost, "/api/v1/messages/"+inbox.Messages[0].ID+"/read", alice.Token, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("mark read status = %d", rec.Code)
	}

	rec = s.do(t, http.MethodDelete, "/api/v1/partner", alice.Token, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("unbind status = %d", rec.Code)
	}
	rec = s.do(t, http.MethodGet, "/api/v1/partner", bob.Token, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("partner after unbind status = %d, want 404", rec.Code)
	}
}

func TestErrorStatuses(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	alice := s.login(t, "alice")
	bob := s.login(t, "bob")
	carol := s.login(t, "carol")

	if rec := s.do(t, http.MethodPost, "/api/v1/partner", bob.Token, services.BindRequest{InviteCode: alice.User.InviteCode}); rec.Code != http.StatusOK {
		t.Fatalf("bind status = %d", rec.Code)
	}

	tests := []struct {
		name     string
		method   string
		path     string
		token    string
		body     any
		want     int
		wantCode string
	}{
		{"bad token", http.MethodGet, "/api/v1/users/me", "bogus", nil, http.StatusUnauthorized, ""},
		{"short code", http.MethodPost, "/api/v1/partner", carol.Token, services.BindRequest{InviteCode: "ABC"}, http.StatusBadRequest, "invalid_code"},
		{"self bind", http.MethodPost, "/api/v1/partner", carol.Token, services.BindRequest{InviteCode: carol.User.InviteCode}, http.StatusBadRequest, "self_bind"},
		{"already bound", http.MethodPost, "/api/v1/partner", carol.Token, services.BindRequest{InviteCode: alice.User.InviteCode}, http.StatusConflict, "already_bound"},
		{"no partner", http.MethodGet, "/api/v1/checkins/partner", carol.Token, nil, http.StatusNotFound, "no_partner"},
		{"rate expired", http.MethodPost, "/api/v1/ratings", bob.Token, services.RateRequest{CheckInDate: "2024-01-01", Completeness: 3, Effort: 3}, http.StatusBadRequest, "rating_expired"},
		{"rate out of range", http.MethodPost, "/api/v1/ratings", bob.Token, services.RateRequest{CheckInDate: "2024-01-10", Completeness: 9, Effort: 3}, http.StatusBadRequest, "invalid_input"},
		{"nothing to remind", http.MethodPost, "/api/v1/reminders/rate", alice.Token, nil, http.StatusNotFound, "no_pending_rating"},
		{"unknown message", http.MethodPost, "/api/v1/messages/missing/read", alice.Token, nil, http.StatusNotFound, "not_found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, tt.method, tt.path, tt.token, tt.body)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d, body %s", rec.Code, tt.want, rec.Body.String())
			}
			if tt.wantCode == "" {
				return
			}
			if got := decodeError(t, rec).Code; got != tt.wantCode {
				t.Fatalf("code = %q, want %q", got, tt.wantCode)
			}
		})
	}
}

func TestInvalidBodyIsBadRequest(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	alice := s.login(t, "alice")

	req := httptest.NewRequest(http.MethodPut, "/api/v1/checkins/today", strings.NewReader("{not json"))
	req.Header.Set("Authorization", "Bearer "+alice.Token)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestDeviceSessionFallback(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)

	if rec := s.do(t, http.MethodGet, "/api/v1/users/me", "", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("before login status = %d, want 401", rec.Code)
	}

	alice := s.login(t, "alice")
	rec := s.do(t, http.MethodGet, "/api/v1/users/me", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("device session status = %d, want 200", rec.Code)
	}
	var me models.User
	if err := json.NewDecoder(rec.Body).Decode(&me); err != nil {
		t.Fatalf("decode user: %v", err)
	}
	if me.ID != alice.User.ID {
		t.Fatalf("me = %q, want %q", me.ID, alice.User.ID)
	}

	if rec := s.do(t, http.MethodPost, "/api/v1/users/logout", "", nil); rec.Code != http.StatusNoContent {
		t.Fatalf("logout status = %d, want 204", rec.Code)
	}
	if rec := s.do(t, http.MethodGet, "/api/v1/users/me", "", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("after logout status = %d, want 401", rec.Code)
	}
}

func TestWebSocketSnapshotAndPush(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	alice := s.login(t, "alice")
	bob := s.login(t, "bob")
	if rec := s.do(t, http.MethodPost, "/api/v1/partner", bob.Token, services.BindRequest{InviteCode: alice.User.InviteCode}); rec.Code != http.StatusOK {
		t.Fatalf("bind status = %d", rec.Code)
	}
	s.app.Dispatcher.Wait()

	srv := httptest.NewServer(s.router)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=" + alice.Token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	var first services.WSMessage
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	if first.Type != services.WSTypeSnapshot {
		t.Fatalf("first frame = %q, want %q", first.Type, services.WSTypeSnapshot)
	}
	if !s.hub.IsOnline(alice.User.ID) {
		t.Fatal("alice not online after snapshot")
	}
	if s.hub.IsOnline(bob.User.ID) {
		t.Fatal("bob online without a socket")
	}

	rec := s.do(t, http.MethodPost, "/api/v1/encouragements", bob.Token, services.EncourageRequest{Text: "keep going"})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("encourage status = %d, body %s", rec.Code, rec.Body.String())
	}

	for {
		var frame struct {
			Type string          `json:"type"`
			Data json.RawMessage `json:"data"`
		}
		if err := conn.ReadJSON(&frame); err != nil {
			t.Fatalf("read push: %v", err)
		}
		if frame.Type != services.WSTypeMessages {
			continue
		}
		var messages []models.Message
		if err := json.Unmarshal(frame.Data, &messages); err != nil {
			t.Fatalf("decode messages frame: %v", err)
		}
		for _, m := range messages {
			if m.Body != nil && *m.Body == "keep going" {
				return
			}
		}
	}
}
