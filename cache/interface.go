// Package cache provides the in-memory TTL cache used by the AI client
// to avoid re-fetching insight payloads the backend already answered.
package cache

import (
	"context"
	"regexp"
	"time"
)

// Service defines the cache service interface.
// A miss is reported through the boolean return, never as an error.
type Service interface {
	// Get retrieves a value from cache.
	// Returns: value, whether a live entry exists.
	Get(ctx context.Context, key string) ([]byte, bool)

	// Set stores a value in cache, overwriting any existing entry.
	// ttl: expiration time for this entry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Invalidate removes a single entry.
	// Returns whether an entry was removed.
	Invalidate(ctx context.Context, key string) bool

	// InvalidatePattern removes every entry whose key matches pattern.
	// Returns the number of entries removed.
	InvalidatePattern(ctx context.Context, pattern *regexp.Regexp) int

	// Clear removes all entries.
	Clear(ctx context.Context)
}
