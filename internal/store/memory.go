package store

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// MemoryStore is an in-process Store used for single-node deployments and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]Record
	hub     *Hub
}

// NewMemoryStore constructs an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]Record), hub: NewHub()}
}

// Get implements Store.
func (m *MemoryStore) Get(ctx context.Context, key string) (Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[key]
	if !ok {
		return Record{}, ErrNotFound
	}
	return copyRecord(rec), nil
}

// List implements Store. Records are sorted by key.
func (m *MemoryStore) List(ctx context.Context, prefix string) ([]Record, error) {
	m.mu.RLock()
	out := make([]Record, 0)
	for key, rec := range m.records {
		if strings.HasPrefix(key, prefix) {
			out = append(out, copyRecord(rec))
		}
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// Set implements Store.
func (m *MemoryStore) Set(ctx context.Context, key string, value []byte) (int64, error) {
	m.mu.Lock()
	rec := Record{Key: key, Version: m.records[key].Version + 1, Value: append([]byte(nil), value...)}
	m.records[key] = rec
	m.mu.Unlock()
	m.hub.Publish(Event{Type: EventPut, Key: key, Version: rec.Version, Value: copyBytes(value)})
	return rec.Version, nil
}

// Delete implements Store.
func (m *MemoryStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	rec, ok := m.records[key]
	delete(m.records, key)
	m.mu.Unlock()
	if !ok {
		return ErrNotFound
	}
	m.hub.Publish(Event{Type: EventDelete, Key: key, Version: rec.Version})
	return nil
}

// CompareAndSwap implements Store.
func (m *MemoryStore) CompareAndSwap(ctx context.Context, key string, expected int64, value []byte) (int64, error) {
	m.mu.Lock()
	current := m.records[key].Version
	if current != expected {
		m.mu.Unlock()
		return 0, ErrVersionConflict
	}
	if value == nil {
		delete(m.records, key)
		m.mu.Unlock()
		m.hub.Publish(Event{Type: EventDelete, Key: key, Version: current})
		return 0, nil
	}
	rec := Record{Key: key, Version: current + 1, Value: append([]byte(nil), value...)}
	m.records[key] = rec
	m.mu.Unlock()
	m.hub.Publish(Event{Type: EventPut, Key: key, Version: rec.Version, Value: copyBytes(value)})
	return rec.Version, nil
}

// Subscribe implements Store.
func (m *MemoryStore) Subscribe(prefix string, fn func(Event)) func() {
	return m.hub.Subscribe(prefix, fn)
}

func copyRecord(rec Record) Record {
	rec.Value = copyBytes(rec.Value)
	return rec
}

func copyBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte(nil), b...)
}
