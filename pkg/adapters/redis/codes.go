package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	backend "github.com/redis/go-redis/v9"
)

// CodeStore implements ports.CodeStore on Redis. Codes expire through key TTLs
// and are consumed atomically with GETDEL.
type CodeStore struct {
	client *backend.Client
	prefix string
}

// NewCodeStore creates a code store. Keys are prefix + "otp:" + destination.
func NewCodeStore(client *backend.Client, prefix string) *CodeStore {
	return &CodeStore{client: client, prefix: prefix}
}

func (s *CodeStore) key(destination string) string {
	return s.prefix + "otp:" + destination
}

// Put stores the code, replacing any pending one.
func (s *CodeStore) Put(ctx context.Context, destination, code string, ttl time.Duration) error {
	if err := s.client.Set(ctx, s.key(destination), code, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store code: %w", err)
	}
	return nil
}

// Take returns and deletes the pending code.
func (s *CodeStore) Take(ctx context.Context, destination string) (string, bool, error) {
	code, err := s.client.GetDel(ctx, s.key(destination)).Result()
	if errors.Is(err, backend.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to take code: %w", err)
	}
	return code, true, nil
}
