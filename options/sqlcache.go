package options

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/liamcoop/formlogic/internal/logger"
	_ "github.com/lib/pq"
)

// SQLCache implements Cache on the option_cache table (see migrations/).
// Queries use $n placeholders and ON CONFLICT upserts, which PostgreSQL and
// SQLite both accept.
type SQLCache struct {
	db     *sql.DB
	config CacheConfig
}

// NewSQLCache creates a cache backed by db.
func NewSQLCache(db *sql.DB, config CacheConfig) *SQLCache {
	return &SQLCache{
		db:     db,
		config: config,
	}
}

// Get reads an entry. Rows that fail to decode are deleted and reported as
// a miss so the options are resolved again.
func (c *SQLCache) Get(ctx context.Context, fieldID, cacheKey string) (*CacheEntry, error) {
	var entry CacheEntry
	var raw []byte
	err := c.db.QueryRowContext(ctx, `
		SELECT field_id, cache_key, options, cached_at, ttl_seconds
		FROM option_cache
		WHERE field_id = $1 AND cache_key = $2
	`, fieldID, cacheKey).Scan(
		&entry.FieldID,
		&entry.CacheKey,
		&raw,
		&entry.CachedAt,
		&entry.TTLSeconds,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cache entry: %w", err)
	}

	if err := decodeOptions(raw, &entry.Options); err != nil {
		logger.Warn("dropping unreadable option cache entry",
			"field_id", fieldID, "cache_key", cacheKey, "error", err)
		if _, delErr := c.db.ExecContext(ctx, `
			DELETE FROM option_cache WHERE field_id = $1 AND cache_key = $2
		`, fieldID, cacheKey); delErr != nil {
			return nil, fmt.Errorf("failed to delete corrupt cache entry: %w", delErr)
		}
		return nil, nil
	}

	if !entry.ValidAt(c.config.now()) {
		return nil, nil
	}
	return &entry, nil
}

// Set upserts an entry.
func (c *SQLCache) Set(ctx context.Context, entry CacheEntry) error {
	entry = c.config.withTTL(entry)
	if entry.Options == nil {
		entry.Options = []Option{}
	}

	raw, err := json.Marshal(entry.Options)
	if err != nil {
		return fmt.Errorf("failed to encode options: %w", err)
	}

	_, err = c.db.ExecContext(ctx, `
		INSERT INTO option_cache (field_id, cache_key, options, cached_at, ttl_seconds)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (field_id, cache_key) DO UPDATE
		SET options = excluded.options,
			cached_at = excluded.cached_at,
			ttl_seconds = excluded.ttl_seconds
	`, entry.FieldID, entry.CacheKey, string(raw), entry.CachedAt.UTC(), entry.TTLSeconds)
	if err != nil {
		return fmt.Errorf("failed to store cache entry: %w", err)
	}
	return nil
}

// Invalidate deletes every entry for the field.
func (c *SQLCache) Invalidate(ctx context.Context, fieldID string) error {
	if _, err := c.db.ExecContext(ctx, `
		DELETE FROM option_cache WHERE field_id = $1
	`, fieldID); err != nil {
		return fmt.Errorf("failed to invalidate cache for field %s: %w", fieldID, err)
	}
	return nil
}

// decodeOptions reads a stored option array; every element needs a value.
func decodeOptions(raw []byte, out *[]Option) error {
	var decoded []map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return fmt.Errorf("%w: %v", ErrCacheCorrupt, err)
	}
	opts := make([]Option, 0, len(decoded))
	for i, item := range decoded {
		value, ok := item["value"]
		if !ok || value == nil {
			return fmt.Errorf("%w: option %d has no value", ErrCacheCorrupt, i)
		}
		opts = append(opts, Option{Value: stringify(value), Label: stringify(item["label"])})
	}
	*out = opts
	return nil
}
