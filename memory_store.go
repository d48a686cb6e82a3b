package walletauth

import (
	"context"
	"sync"

	"github.com/otcping/walletauth/core"
)

// MemoryStore implements SessionStorage in process memory.
// Sessions do not survive a restart; this is the default for tests.
type MemoryStore struct {
	session *core.AuthSession
	mu      sync.RWMutex
}

// NewMemoryStore creates a new MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Load returns a copy of the stored session
func (s *MemoryStore) Load(ctx context.Context) (*core.AuthSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.session == nil {
		return nil, nil
	}
	cp := *s.session
	return &cp, nil
}

// Save replaces the stored session
func (s *MemoryStore) Save(ctx context.Context, session *core.AuthSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *session
	s.session = &cp
	return nil
}

// Clear removes the stored session
func (s *MemoryStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.session = nil
	return nil
}
