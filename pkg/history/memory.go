package history

import (
	"context"
	"sync"
	"time"

	"github.com/entrhq/medisimple/pkg/types"
)

// MemoryStore is a Store that lives only as long as the process.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string][]types.Turn
	seq      int64
}

var _ Store = &MemoryStore{}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string][]types.Turn)}
}

func (m *MemoryStore) Append(_ context.Context, sessionID string, role types.MessageRole, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.seq++
	m.sessions[sessionID] = append(m.sessions[sessionID], types.Turn{
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		Sequence:  m.seq,
		CreatedAt: time.Now().UTC(),
	})
	return nil
}

func (m *MemoryStore) RecentWindow(_ context.Context, sessionID string, limit int) ([]types.Turn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	tail := types.Tail(m.sessions[sessionID], limit)
	out := make([]types.Turn, len(tail))
	copy(out, tail)
	return out, nil
}

func (m *MemoryStore) Clear(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionID)
	return nil
}

// Close is a no-op.
func (m *MemoryStore) Close() error {
	return nil
}
