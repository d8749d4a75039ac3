package repository

import (
	"sync"
)

// Broadcaster fans message events out to per-user subscribers
type Broadcaster struct {
	mu     sync.RWMutex
	nextID int
	subs   map[string]map[int]func()
}

// NewBroadcaster creates an empty broadcaster
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[string]map[int]func())}
}

// Subscribe registers onChange for userID and returns its removal func.
func (b *Broadcaster) Subscribe(userID string, onChange func()) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	if b.subs[userID] == nil {
		b.subs[userID] = make(map[int]func())
	}
	b.subs[userID][id] = onChange

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subs[userID], id)
			if len(b.subs[userID]) == 0 {
				delete(b.subs, userID)
			}
		})
	}
}

// Publish invokes every subscriber of userID outside the lock
func (b *Broadcaster) Publish(userID string) {
	b.mu.RLock()
	callbacks := make([]func(), 0, len(b.subs[userID]))
	for _, cb := range b.subs[userID] {
		callbacks = append(callbacks, cb)
	}
	b.mu.RUnlock()

	for _, cb := range callbacks {
		cb()
	}
}

// PublishAll notifies every subscriber, used after a gap in event delivery
func (b *Broadcaster) PublishAll() {
	b.mu.RLock()
	users := make([]string, 0, len(b.subs))
	for userID := range b.subs {
		users = append(users, userID)
	}
	b.mu.RUnlock()

	for _, userID := range users {
		b.Publish(userID)
	}
}
