package memory

import (
	"context"
	"sync"
	"time"
)

type pendingCode struct {
	code    string
	expires time.Time
}

// CodeStore implements ports.CodeStore in memory.
type CodeStore struct {
	mu    sync.Mutex
	codes map[string]pendingCode
	now   func() time.Time
}

// NewCodeStore creates an empty code store.
func NewCodeStore() *CodeStore {
	return &CodeStore{
		codes: make(map[string]pendingCode),
		now:   time.Now,
	}
}

// Put stores a code for destination, replacing any pending one.
func (s *CodeStore) Put(ctx context.Context, destination, code string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := pendingCode{code: code}
	if ttl > 0 {
		p.expires = s.now().Add(ttl)
	}
	s.codes[destination] = p
	return nil
}

// Take removes and returns the pending code. Expired codes are removed too.
func (s *CodeStore) Take(ctx context.Context, destination string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.codes[destination]
	if !ok {
		return "", false, nil
	}
	delete(s.codes, destination)
	if !p.expires.IsZero() && s.now().After(p.expires) {
		return "", false, nil
	}
	return p.code, true, nil
}
