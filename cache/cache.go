package cache

import (
	"context"
	"regexp"
	"sync"
	"time"
)

// TTLCache implements Service with per-entry expiry evaluated lazily on
// read. There is no background sweeper: the orchestrator's access
// pattern touches every hot key often enough that expired entries are
// reclaimed on their first stale read, and the cache must not own
// timers (see Manager for the one component that does).
type TTLCache struct {
	mu      sync.RWMutex
	entries map[string]*entry

	// now is replaceable in tests.
	now func() time.Time
}

type entry struct {
	value     []byte
	createdAt time.Time
	ttl       time.Duration
}

// expired reports whether the entry is past its TTL at time t.
// The boundary is inclusive: an entry aged exactly ttl is still live.
func (e *entry) expired(t time.Time) bool {
	return t.After(e.createdAt.Add(e.ttl))
}

// New creates an empty TTL cache.
func New() *TTLCache {
	return &TTLCache{
		entries: make(map[string]*entry),
		now:     time.Now,
	}
}

// Get retrieves a value from the cache. An expired entry is removed and
// reported absent; a hit leaves the cache untouched.
func (c *TTLCache) Get(_ context.Context, key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if e.expired(c.now()) {
		delete(c.entries, key)
		return nil, false
	}
	return e.value, true
}

// Set stores a value, unconditionally overwriting any existing entry.
func (c *TTLCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = &entry{
		value:     value,
		createdAt: c.now(),
		ttl:       ttl,
	}
	return nil
}

// Invalidate removes one entry if present.
func (c *TTLCache) Invalidate(_ context.Context, key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; !ok {
		return false
	}
	delete(c.entries, key)
	return true
}

// InvalidatePattern removes every entry whose key matches pattern.
// Used to drop a family of derived keys, e.g. ^insights: for a salon
// whose bookings just changed.
func (c *TTLCache) InvalidatePattern(_ context.Context, pattern *regexp.Regexp) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	count := 0
	for key := range c.entries {
		if pattern.MatchString(key) {
			delete(c.entries, key)
			count++
		}
	}
	return count
}

// Clear removes all entries.
func (c *TTLCache) Clear(_ context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*entry)
}

// Size returns the number of entries currently held, expired or not.
func (c *TTLCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Ensure TTLCache implements Service.
var _ Service = (*TTLCache)(nil)
