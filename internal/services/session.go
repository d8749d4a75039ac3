package services

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"duo-checkin-backend/internal/models"
	"duo-checkin-backend/internal/repository"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Session holds one user's synchronized view of the store. Refresh replaces
// the whole snapshot; message events trigger a re-fetch of the message list,
// which the store bounds to models.MaxMessages entries.
type Session struct {
	store  repository.Store
	userID string

	mu       sync.RWMutex
	snapshot models.Snapshot
	stop     func()
}

// NewSession creates a session for userID
func NewSession(store repository.Store, userID string) *Session {
	return &Session{store: store, userID: userID}
}

// UserID returns the session's user
func (s *Session) UserID() string {
	return s.userID
}

// Start loads the initial snapshot
func (s *Session) Start(ctx context.Context) error {
	return s.Refresh(ctx)
}

// Refresh reloads every part of the snapshot and replaces the current one
func (s *Session) Refresh(ctx context.Context) error {
	snap, err := LoadSnapshot(ctx, s.store, s.userID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.snapshot = *snap
	s.mu.Unlock()
	return nil
}

// Snapshot returns a copy of the current snapshot
func (s *Session) Snapshot() models.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := s.snapshot
	snap.CheckIns = slices.Clone(snap.CheckIns)
	snap.PartnerCheckIns = slices.Clone(snap.PartnerCheckIns)
	snap.Ratings = slices.Clone(snap.Ratings)
	snap.Messages = slices.Clone(snap.Messages)
	return snap
}

// Watch subscribes to the user's message events. Each event re-fetches the
// message list and calls onMessages with it. Events arriving during a fetch
// are coalesced into one more fetch. One fetch also runs right after
// subscribing, so messages added since the last Refresh are not missed.
// Watch returns once subscribed; the watcher stops when ctx is done or Close
// is called.
func (s *Session) Watch(ctx context.Context, onMessages func([]models.Message)) error {
	ctx, cancel := context.WithCancel(ctx)
	signal := make(chan struct{}, 1)
	signal <- struct{}{}

	unsubscribe, err := s.store.SubscribeMessages(ctx, s.userID, func() {
		select {
		case signal <- struct{}{}:
		default:
		}
	})
	if err != nil {
		cancel()
		return fmt.Errorf("failed to subscribe to messages: %w", err)
	}

	s.mu.Lock()
	if s.stop != nil {
		s.stop()
	}
	s.stop = func() {
		cancel()
		unsubscribe()
	}
	s.mu.Unlock()

	go func() {
		defer unsubscribe()
		for {
			select {
			case <-ctx.Done():
				return
			case <-signal:
			}
			messages, err := s.store.ListMessages(ctx, s.userID, models.Page{})
			if err != nil {
				if ctx.Err() == nil {
					log.Error().Err(err).Str("user_id", s.userID).Msg("Failed to re-fetch messages")
				}
				continue
			}
			s.mu.Lock()
			s.snapshot.Messages = messages
			s.mu.Unlock()
			if onMessages != nil {
				onMessages(slices.Clone(messages))
			}
		}
	}()
	return nil
}

// Close stops watching
func (s *Session) Close() {
	s.mu.Lock()
	stop := s.stop
	s.stop = nil
	s.mu.Unlock()
	if stop != nil {
		stop()
	}
}

// LoadSnapshot fetches the full state of userID concurrently
func LoadSnapshot(ctx context.Context, store repository.Store, userID string) (*models.Snapshot, error) {
	snap := &models.Snapshot{}
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		user, err := store.GetUser(gCtx, userID)
		if err != nil {
			return fmt.Errorf("failed to load user: %w", err)
		}
		snap.User = user
		return nil
	})
	g.Go(func() error {
		binding, err := store.GetPartnerBinding(gCtx, userID)
		if err != nil {
			return fmt.Errorf("failed to load partner: %w", err)
		}
		snap.Partner = binding
		return nil
	})
	g.Go(func() error {
		checkIns, err := store.ListCheckIns(gCtx, userID)
		if err != nil {
			return fmt.Errorf("failed to load check-ins: %w", err)
		}
		snap.CheckIns = checkIns
		return nil
	})
	g.Go(func() error {
		checkIns, err := store.ListCheckInsForPartner(gCtx, userID)
		if err != nil {
			return fmt.Errorf("failed to load partner check-ins: %w", err)
		}
		snap.PartnerCheckIns = checkIns
		return nil
	})
	g.Go(func() error {
		ratings, err := store.ListRatings(gCtx, userID)
		if err != nil {
			return fmt.Errorf("failed to load ratings: %w", err)
		}
		snap.Ratings = ratings
		return nil
	})
	g.Go(func() error {
		messages, err := store.ListMessages(gCtx, userID, models.Page{})
		if err != nil {
			return fmt.Errorf("failed to load messages: %w", err)
		}
		snap.Messages = messages
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return snap, nil
}
