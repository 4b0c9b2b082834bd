package catalog

import (
	"context"
	"sort"
	"sync"
)

// Memory is an in-process catalog store.
//
// Memory is safe for concurrent use. Reads take a shared lock, so the
// pipeline can snapshot the catalog while other callers are editing it.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

var _ Store = (*Memory)(nil)

// NewMemory creates an empty store.
func NewMemory() *Memory {
	return &Memory{
		entries: make(map[string]Entry),
	}
}

// List returns all entries ordered by ID.
func (m *Memory) List(ctx context.Context) ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sortedLocked(), nil
}

// Get returns the entry with the given ID.
func (m *Memory) Get(ctx context.Context, id string) (Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[id]
	if !ok {
		return Entry{}, ErrNotFound
	}
	return e, nil
}

// Create validates e, assigns it the next sequential ID and stores it.
func (m *Memory) Create(ctx context.Context, e Entry) (Entry, error) {
	if err := e.Validate(); err != nil {
		return Entry{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]string, 0, len(m.entries))
	for id := range m.entries {
		ids = append(ids, id)
	}
	e.ID = nextID(ids)
	m.entries[e.ID] = e
	return e, nil
}

// Update replaces the entry with the given ID. The ID is preserved.
func (m *Memory) Update(ctx context.Context, id string, e Entry) (Entry, error) {
	if err := e.Validate(); err != nil {
		return Entry{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.entries[id]; !ok {
		return Entry{}, ErrNotFound
	}
	e.ID = id
	m.entries[id] = e
	return e, nil
}

// Delete removes the entry with the given ID.
func (m *Memory) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.entries[id]; !ok {
		return ErrNotFound
	}
	delete(m.entries, id)
	return nil
}

// Snapshot copies the current entries into an immutable Snapshot.
func (m *Memory) Snapshot(ctx context.Context) (*Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return NewSnapshot(m.sortedLocked()), nil
}

func (m *Memory) sortedLocked() []Entry {
	out := make([]Entry, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if len(out[i].ID) != len(out[j].ID) {
			return len(out[i].ID) < len(out[j].ID)
		}
		return out[i].ID < out[j].ID
	})
	return out
}
