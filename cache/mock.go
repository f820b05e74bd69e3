package cache

import (
	"context"
	"regexp"
	"sync"
	"time"
)

// MockService is a mock implementation of Service for testing.
// It counts calls so orchestrator tests can assert which paths touched
// the cache.
type MockService struct {
	mu    sync.RWMutex
	store map[string][]byte

	GetCalls int
	SetCalls int
}

// NewMockService creates a new MockService.
func NewMockService() *MockService {
	return &MockService{store: make(map[string][]byte)}
}

// Get retrieves a value from the mock store. Entries never expire.
func (m *MockService) Get(_ context.Context, key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.GetCalls++
	v, ok := m.store[key]
	return v, ok
}

// Set stores a value. The ttl is ignored.
func (m *MockService) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.SetCalls++
	m.store[key] = value
	return nil
}

// Invalidate removes one entry if present.
func (m *MockService) Invalidate(_ context.Context, key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.store[key]; !ok {
		return false
	}
	delete(m.store, key)
	return true
}

// InvalidatePattern removes every matching entry.
func (m *MockService) InvalidatePattern(_ context.Context, pattern *regexp.Regexp) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := 0
	for key := range m.store {
		if pattern.MatchString(key) {
			delete(m.store, key)
			count++
		}
	}
	return count
}

// Clear removes all entries.
func (m *MockService) Clear(_ context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.store = make(map[string][]byte)
}

var _ Service = (*MockService)(nil)
