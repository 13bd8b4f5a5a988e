package memory

import (
	"context"
	"sync"
	"time"

	"giveaway-bot/internal/features/session/models"
	"giveaway-bot/internal/features/session/repository"
)

type entry struct {
	session   models.Session
	expiresAt time.Time
}

type memoryStore struct {
	mu      sync.Mutex
	entries map[int64]entry
	ttl     time.Duration
	now     func() time.Time
}

func NewMemorySessionStore(ttl time.Duration) repository.SessionStore {
	return NewMemorySessionStoreWithClock(ttl, time.Now)
}

// NewMemorySessionStoreWithClock lets tests drive expiry.
func NewMemorySessionStoreWithClock(ttl time.Duration, now func() time.Time) repository.SessionStore {
	return &memoryStore{
		entries: make(map[int64]entry),
		ttl:     ttl,
		now:     now,
	}
}

func (s *memoryStore) Get(_ context.Context, userID int64) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[userID]
	if !ok {
		return nil, repository.ErrSessionNotFound
	}
	if !s.now().Before(e.expiresAt) {
		delete(s.entries, userID)
		return nil, repository.ErrSessionNotFound
	}
	sess := e.session
	return &sess, nil
}

func (s *memoryStore) Save(_ context.Context, sess *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[sess.UserID] = entry{session: *sess, expiresAt: s.now().Add(s.ttl)}
	return nil
}

func (s *memoryStore) Delete(_ context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, userID)
	return nil
}
