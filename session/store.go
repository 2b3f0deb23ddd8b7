package session

import (
	"context"
	"sync"
)

// Store is the single source of truth for the persisted session triple.
//
// Set replaces everything (persisted and transient keys) in one step.
// Clear removes everything. Get returns the zero Session when logged out.
// Implementations are safe for concurrent use; the last write wins.
type Store interface {
	Get(ctx context.Context) (Session, error)
	Set(ctx context.Context, s Session) error
	Clear(ctx context.Context) error

	// SetTransient stores a session-scoped value that is dropped by the next
	// Set or Clear.
	SetTransient(ctx context.Context, key, value string) error
	Transient(ctx context.Context, key string) (string, bool, error)
}

// MemoryStore keeps the session in process memory.
type MemoryStore struct {
	mu        sync.RWMutex
	current   Session
	transient map[string]string
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{transient: map[string]string{}}
}

func (m *MemoryStore) Get(context.Context) (Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current, nil
}

func (m *MemoryStore) Set(_ context.Context, s Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = s
	m.transient = map[string]string{}
	return nil
}

func (m *MemoryStore) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = Session{}
	m.transient = map[string]string{}
	return nil
}

func (m *MemoryStore) SetTransient(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.transient == nil {
		m.transient = map[string]string{}
	}
	m.transient[key] = value
	return nil
}

func (m *MemoryStore) Transient(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.transient[key]
	return v, ok, nil
}
