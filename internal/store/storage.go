package store

import (
	"context"
	"sync"
)

// Storage is the blob key-value space the Local store persists into.
// Get reports found=false for a missing key.
type Storage interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error

	// Update runs fn against a consistent view of keys and commits the
	// writes it stages atomically. fn may run more than once and must not
	// keep state between runs.
	Update(ctx context.Context, keys []string, fn func(Txn) error) error
}

// Txn is the view handed to an Update callback. Reads observe the writes
// staged earlier in the same run.
type Txn interface {
	Get(key string) ([]byte, bool, error)
	Set(key string, value []byte)
}

// MemoryStorage is a process-local Storage
type MemoryStorage struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryStorage creates an empty MemoryStorage
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{data: make(map[string][]byte)}
}

// Get returns a copy of the value stored under key
func (m *MemoryStorage) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.get(key)
	return v, ok, nil
}

func (m *MemoryStorage) get(key string) ([]byte, bool) {
	v, ok := m.data[key]
	if !ok {
		return nil, false
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, true
}

// Set stores a copy of value under key
func (m *MemoryStorage) Set(_ context.Context, key string, value []byte) error {
	v := make([]byte, len(value))
	copy(v, value)

	m.mu.Lock()
	m.data[key] = v
	m.mu.Unlock()
	return nil
}

// Update holds the write lock for the whole of fn
func (m *MemoryStorage) Update(_ context.Context, _ []string, fn func(Txn) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	txn := &memoryTxn{m: m, staged: make(map[string][]byte)}
	if err := fn(txn); err != nil {
		return err
	}
	for k, v := range txn.staged {
		m.data[k] = v
	}
	return nil
}

type memoryTxn struct {
	m      *MemoryStorage
	staged map[string][]byte
}

func (t *memoryTxn) Get(key string) ([]byte, bool, error) {
	if v, ok := t.staged[key]; ok {
		return v, true, nil
	}
	v, ok := t.m.get(key)
	return v, ok, nil
}

func (t *memoryTxn) Set(key string, value []byte) {
	v := make([]byte, len(value))
	copy(v, value)
	t.staged[key] = v
}
