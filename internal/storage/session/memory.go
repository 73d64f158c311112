package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/newthinker/papertrader/internal/simulation"
	"github.com/newthinker/papertrader/internal/storage"
)

// MemoryStore keeps sessions in process memory
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*simulation.Session
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*simulation.Session)}
}

var _ Store = (*MemoryStore)(nil)

func (m *MemoryStore) Save(ctx context.Context, s *simulation.Session) error {
	if s == nil || s.ID == "" {
		return fmt.Errorf("save session: %w", storage.ErrInvalidInput)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s.Clone()
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, id string) (*simulation.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, storage.ErrNotFound)
	}
	return s.Clone(), nil
}

func (m *MemoryStore) List(ctx context.Context, f Filter) ([]*simulation.Session, error) {
	m.mu.RLock()
	all := make([]*simulation.Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		all = append(all, s.Clone())
	}
	m.mu.RUnlock()
	return Select(all, f), nil
}

func (m *MemoryStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return fmt.Errorf("session %s: %w", id, storage.ErrNotFound)
	}
	delete(m.sessions, id)
	return nil
}
