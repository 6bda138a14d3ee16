package memory

import (
	"context"
	"sync"
	"time"

	"github.com/aretw0/insurai/pkg/domain"
)

// Store implements ports.SessionStore in memory.
// Safe for concurrent use.
type Store struct {
	data map[string]*domain.SessionRecord
	mu   sync.RWMutex
	ttl  time.Duration
	now  func() time.Time
}

// StoreOption configures the Store.
type StoreOption func(*Store)

// WithTTL expires records that were not saved for longer than ttl.
func WithTTL(ttl time.Duration) StoreOption {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		s.now = now
	}
}

// NewStore creates a new in-memory store.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		data: make(map[string]*domain.SessionRecord),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Save persists a copy of the record, so callers can keep mutating theirs.
func (s *Store) Save(ctx context.Context, sessionID string, rec *domain.SessionRecord) error {
	copied := rec.Clone()
	copied.UpdatedAt = s.now()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[sessionID] = copied
	return nil
}

// Load retrieves a copy of the record.
func (s *Store) Load(ctx context.Context, sessionID string) (*domain.SessionRecord, error) {
	s.mu.RLock()
	rec, ok := s.data[sessionID]
	s.mu.RUnlock()

	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	if s.expired(rec) {
		_ = s.Delete(ctx, sessionID)
		return nil, domain.ErrSessionNotFound
	}
	return rec.Clone(), nil
}

// Delete removes the record.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, sessionID)
	return nil
}

// List returns live sessions, pruning expired ones.
func (s *Store) List(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sessions := make([]string, 0, len(s.data))
	for id, rec := range s.data {
		if s.expired(rec) {
			delete(s.data, id)
			continue
		}
		sessions = append(sessions, id)
	}
	return sessions, nil
}

func (s *Store) expired(rec *domain.SessionRecord) bool {
	return s.ttl > 0 && s.now().Sub(rec.UpdatedAt) > s.ttl
}
