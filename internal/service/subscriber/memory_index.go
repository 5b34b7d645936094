package subscriber

import (
	"context"
	"sync"

	"github.com/ignite/subscriber-gateway/internal/domain"
)

// MemoryIndex is a process-local Index, used when no database is configured.
type MemoryIndex struct {
	mu  sync.RWMutex
	ids map[string]domain.ID
}

// NewMemoryIndex returns an empty MemoryIndex.
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{ids: make(map[string]domain.ID)}
}

func (m *MemoryIndex) LookupID(_ context.Context, email string) (domain.ID, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.ids[email]
	return id, ok, nil
}

func (m *MemoryIndex) Record(_ context.Context, id domain.ID, email string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ids[email] = id
	return nil
}

func (m *MemoryIndex) Count(context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.ids), nil
}
