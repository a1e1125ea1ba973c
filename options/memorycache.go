package options

import (
	"context"
	"sync"
)

// MemoryCache is an in-memory Cache. Thread-safe for concurrent access;
// concurrent writers to the same key simply replace each other.
type MemoryCache struct {
	entries map[string]map[string]CacheEntry // fieldID -> cacheKey -> entry
	config  CacheConfig
	mu      sync.RWMutex
}

// NewMemoryCache creates an empty in-memory cache.
func NewMemoryCache(config CacheConfig) *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]map[string]CacheEntry),
		config:  config,
	}
}

// Get returns a copy of the entry, or nil if it is missing or expired.
// Expired entries are removed.
func (c *MemoryCache) Get(_ context.Context, fieldID, cacheKey string) (*CacheEntry, error) {
	now := c.config.now()

	c.mu.RLock()
	entry, ok := c.entries[fieldID][cacheKey]
	c.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	if !entry.ValidAt(now) {
		c.mu.Lock()
		// Another writer may have refreshed the entry in between.
		if current, ok := c.entries[fieldID][cacheKey]; ok && !current.ValidAt(now) {
			c.deleteLocked(fieldID, cacheKey)
		}
		c.mu.Unlock()
		return nil, nil
	}

	// Return copy to prevent external modifications
	entry.Options = append([]Option{}, entry.Options...)
	return &entry, nil
}

// Set stores a copy of the entry and drops the field's expired entries.
func (c *MemoryCache) Set(_ context.Context, entry CacheEntry) error {
	entry = c.config.withTTL(entry)
	entry.Options = append([]Option{}, entry.Options...)
	now := c.config.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	byKey, ok := c.entries[entry.FieldID]
	if !ok {
		byKey = make(map[string]CacheEntry)
		c.entries[entry.FieldID] = byKey
	}
	for key, existing := range byKey {
		if !existing.ValidAt(now) {
			delete(byKey, key)
		}
	}
	byKey[entry.CacheKey] = entry
	return nil
}

func (c *MemoryCache) deleteLocked(fieldID, cacheKey string) {
	byKey := c.entries[fieldID]
	delete(byKey, cacheKey)
	if len(byKey) == 0 {
		delete(c.entries, fieldID)
	}
}

// Invalidate drops every entry for the field.
func (c *MemoryCache) Invalidate(_ context.Context, fieldID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, fieldID)
	return nil
}

// Len returns the number of stored entries. Expired entries count until a
// Get or Set on their field removes them.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	n := 0
	for _, byKey := range c.entries {
		n += len(byKey)
	}
	return n
}
