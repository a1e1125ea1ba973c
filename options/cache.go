package options

import (
	"context"
	"time"
)

// Cache stores resolved option lists keyed by field ID and cache key.
// This allows swapping between in-memory, SQL, or other backends.
type Cache interface {
	// Get returns the entry, or nil on a miss or when the entry has expired.
	Get(ctx context.Context, fieldID, cacheKey string) (*CacheEntry, error)

	// Set stores an entry, replacing any previous one for the same key.
	Set(ctx context.Context, entry CacheEntry) error

	// Invalidate removes every entry for the field.
	Invalidate(ctx context.Context, fieldID string) error
}

// CacheConfig holds configuration for cache behavior.
type CacheConfig struct {
	// TTL applies to entries stored without their own TTL. Values under a
	// second, zero included, are raised to one second; entries always
	// expire.
	TTL time.Duration

	// Now is the clock used for expiry checks.
	Now func() time.Time
}

// DefaultCacheConfig returns a five minute TTL on the wall clock.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		TTL: 300 * time.Second,
		Now: time.Now,
	}
}

func (c CacheConfig) now() time.Time {
	if c.Now == nil {
		return time.Now()
	}
	return c.Now()
}

// withTTL fills in the default TTL for entries stored without one.
func (c CacheConfig) withTTL(entry CacheEntry) CacheEntry {
	if entry.TTLSeconds <= 0 {
		entry.TTLSeconds = c.ttlSeconds()
	}
	return entry
}

func (c CacheConfig) ttlSeconds() int {
	secs := int(c.TTL / time.Second)
	if secs < minTTLSeconds {
		return minTTLSeconds
	}
	return secs
}

// minTTLSeconds matches the CHECK (ttl_seconds > 0) of the option_cache table.
const minTTLSeconds = 1
