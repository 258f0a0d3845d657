// Package session tracks revoked login sessions until their tokens expire.
package session

import (
	"context"
	"sync"
	"time"
)

// Store remembers revoked session IDs (the JWT "jti" claim).
type Store interface {
	// Revoke marks id as revoked for ttl. A non-positive ttl is a no-op.
	Revoke(ctx context.Context, id string, ttl time.Duration) error
	IsRevoked(ctx context.Context, id string) (bool, error)
}

type memoryStore struct {
	mu      sync.Mutex
	revoked map[string]time.Time // id -> expiry
	nowFunc func() time.Time
}

var _ Store = (*memoryStore)(nil)

// NewMemoryStore is used when no redis server is configured. Revocations are lost on restart.
func NewMemoryStore() Store {
	return &memoryStore{revoked: make(map[string]time.Time), nowFunc: time.Now}
}

func (s *memoryStore) Revoke(_ context.Context, id string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.nowFunc()
	for sid, exp := range s.revoked {
		if !exp.After(now) {
			delete(s.revoked, sid)
		}
	}
	s.revoked[id] = now.Add(ttl)
	return nil
}

func (s *memoryStore) IsRevoked(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	exp, ok := s.revoked[id]
	return ok && exp.After(s.nowFunc()), nil
}
