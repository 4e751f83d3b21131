package outbox

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is a non-durable Store for tests and short-lived clients.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]Entry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]Entry)}
}

func (m *MemoryStore) Enqueue(_ context.Context, e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[e.ID] = e
	return nil
}

func (m *MemoryStore) ListPending(context.Context) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Entry, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) Ack(_ context.Context, id string) error {
	return m.remove(id)
}

func (m *MemoryStore) Drop(_ context.Context, id string) error {
	return m.remove(id)
}

func (m *MemoryStore) remove(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[id]; !ok {
		return ErrEntryNotFound
	}
	delete(m.entries, id)
	return nil
}

func (m *MemoryStore) Nack(_ context.Context, id, reason string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return 0, ErrEntryNotFound
	}
	e.RetryCount++
	e.LastError = reason
	m.entries[id] = e
	return e.RetryCount, nil
}

func (m *MemoryStore) Close() error { return nil }
