package client

import (
	"context"
	"sync"

	v1 "turnero/pkg/api/v1"
)

// Store persists the session so it survives restarts. Implementations write the
// access token, refresh token, expiry and profile together and remove them together.
// Load returns (nil, nil) when no complete session is stored.
type Store interface {
	Load(ctx context.Context) (*v1.Session, error)
	Save(ctx context.Context, s *v1.Session) error
	Clear(ctx context.Context) error
}

// MemoryStore keeps the session for the lifetime of the process only.
type MemoryStore struct {
	mu   sync.Mutex
	sess *v1.Session
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Load(_ context.Context) (*v1.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.sess.Complete() {
		return nil, nil
	}
	return m.sess.Clone(), nil
}

func (m *MemoryStore) Save(_ context.Context, s *v1.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sess = s.Clone()
	return nil
}

func (m *MemoryStore) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sess = nil
	return nil
}
