package statestore

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps entries in process. It suits tests and single-process
// tools; state is lost with the process.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*storedEntry
	closed  bool
	done    chan struct{}
	now     func() time.Time
}

type storedEntry struct {
	data      []byte
	expiresAt time.Time
}

// MemoryStoreOption configures a MemoryStore.
type MemoryStoreOption func(*memoryStoreConfig)

type memoryStoreConfig struct {
	cleanupInterval time.Duration
}

// WithCleanupInterval sets how often expired entries are dropped.
// Default: 1 minute.
func WithCleanupInterval(d time.Duration) MemoryStoreOption {
	return func(c *memoryStoreConfig) {
		c.cleanupInterval = d
	}
}

// NewMemoryStore creates a MemoryStore and starts its cleanup loop.
func NewMemoryStore(opts ...MemoryStoreOption) *MemoryStore {
	cfg := &memoryStoreConfig{
		cleanupInterval: time.Minute,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	store := &MemoryStore{
		entries: make(map[string]*storedEntry),
		done:    make(chan struct{}),
		now:     time.Now,
	}

	go store.cleanupLoop(cfg.cleanupInterval)
	return store
}

func (m *MemoryStore) Save(ctx context.Context, id string, data []byte, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.entries[id] = &storedEntry{data: cloneBytes(data), expiresAt: expiresAt}
	return nil
}

func (m *MemoryStore) Load(ctx context.Context, id string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}

	e, ok := m.entries[id]
	if !ok || m.now().After(e.expiresAt) {
		return nil, nil
	}
	return cloneBytes(e.data), nil
}

func (m *MemoryStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	delete(m.entries, id)
	return nil
}

func (m *MemoryStore) Touch(ctx context.Context, id string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	if e, ok := m.entries[id]; ok {
		e.expiresAt = expiresAt
	}
	return nil
}

func (m *MemoryStore) SaveAll(ctx context.Context, entries map[string]Data) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	for id, d := range entries {
		m.entries[id] = &storedEntry{data: cloneBytes(d.Data), expiresAt: d.ExpiresAt}
	}
	return nil
}

// Close stops the cleanup loop and drops all entries.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	close(m.done)
	m.entries = nil
	return nil
}

// Count returns the number of stored entries, expired ones included.
func (m *MemoryStore) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

func (m *MemoryStore) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.cleanup()
		case <-m.done:
			return
		}
	}
}

// cleanup drops expired entries and returns how many it removed.
func (m *MemoryStore) cleanup() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0
	}

	now := m.now()
	n := 0
	for id, e := range m.entries {
		if now.After(e.expiresAt) {
			delete(m.entries, id)
			n++
		}
	}
	return n
}
