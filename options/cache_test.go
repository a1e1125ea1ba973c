package options

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sqliteSchema = `
CREATE TABLE option_cache (
	field_id    TEXT NOT NULL,
	cache_key   TEXT NOT NULL,
	options     TEXT NOT NULL,
	cached_at   TIMESTAMP NOT NULL,
	ttl_seconds INTEGER NOT NULL,
	PRIMARY KEY (field_id, cache_key)
)`

func openSQLite(t *testing.T, schema ...string) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	// A second connection would open a different in-memory database.
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	for _, stmt := range schema {
		_, err := db.Exec(stmt)
		require.NoError(t, err)
	}
	return db
}

// cacheImplementations runs a test against every Cache backend.
func cacheImplementations(t *testing.T, clk *clock) map[string]Cache {
	cfg := CacheConfig{TTL: 300 * time.Second, Now: clk.Now}
	return map[string]Cache{
		"memory": NewMemoryCache(cfg),
		"sql":    NewSQLCache(openSQLite(t, sqliteSchema), cfg),
	}
}

func TestCacheEntry_ValidAt(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	expired := CacheEntry{CachedAt: now.Add(-400 * time.Second), TTLSeconds: 300}
	valid := CacheEntry{CachedAt: now.Add(-200 * time.Second), TTLSeconds: 300}
	boundary := CacheEntry{CachedAt: now.Add(-300 * time.Second), TTLSeconds: 300}

	assert.False(t, expired.ValidAt(now))
	assert.True(t, valid.ValidAt(now))
	assert.False(t, boundary.ValidAt(now))
}

func TestCache_Expiry(t *testing.T) {
	clk := newClock()
	for name, cache := range cacheImplementations(t, clk) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			opts := []Option{{Value: "1", Label: "One"}}

			require.NoError(t, cache.Set(ctx, CacheEntry{
				FieldID: "f", CacheKey: "old", Options: opts, CachedAt: clk.Now().Add(-400 * time.Second), TTLSeconds: 300,
			}))
			require.NoError(t, cache.Set(ctx, CacheEntry{
				FieldID: "f", CacheKey: "fresh", Options: opts, CachedAt: clk.Now().Add(-200 * time.Second), TTLSeconds: 300,
			}))

			old, err := cache.Get(ctx, "f", "old")
			require.NoError(t, err)
			assert.Nil(t, old, "entry cached 400s ago with a 300s TTL is expired")

			fresh, err := cache.Get(ctx, "f", "fresh")
			require.NoError(t, err)
			require.NotNil(t, fresh, "entry cached 200s ago with a 300s TTL is valid")
			if diff := cmp.Diff(opts, fresh.Options); diff != "" {
				t.Errorf("options mismatch (-want +got):\n%s", diff)
			}
			assert.Equal(t, 300, fresh.TTLSeconds)
		})
	}
}

func TestCache_DefaultTTLAndOverwrite(t *testing.T) {
	clk := newClock()
	for name, cache := range cacheImplementations(t, clk) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			require.NoError(t, cache.Set(ctx, CacheEntry{
				FieldID: "f", CacheKey: "k", Options: []Option{{Value: "a", Label: "A"}}, CachedAt: clk.Now(),
			}))
			require.NoError(t, cache.Set(ctx, CacheEntry{
				FieldID: "f", CacheKey: "k", Options: []Option{{Value: "b", Label: "B"}}, CachedAt: clk.Now(),
			}))

			got, err := cache.Get(ctx, "f", "k")
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, 300, got.TTLSeconds)
			assert.Equal(t, []Option{{Value: "b", Label: "B"}}, got.Options)

			clk.Advance(301 * time.Second)
			defer clk.Advance(-301 * time.Second)
			got, err = cache.Get(ctx, "f", "k")
			require.NoError(t, err)
			assert.Nil(t, got)
		})
	}
}

func TestCache_ZeroTTLStillCaches(t *testing.T) {
	clk := newClock()
	cfg := CacheConfig{TTL: 0, Now: clk.Now}
	caches := map[string]Cache{
		"memory": NewMemoryCache(cfg),
		"sql":    NewSQLCache(openSQLite(t, sqliteSchema), cfg),
	}
	for name, cache := range caches {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, cache.Set(ctx, CacheEntry{FieldID: "f", CacheKey: "k", CachedAt: clk.Now()}))

			got, err := cache.Get(ctx, "f", "k")
			require.NoError(t, err)
			require.NotNil(t, got, "an entry is readable right after it is stored")
			assert.Equal(t, 1, got.TTLSeconds)

			clk.Advance(2 * time.Second)
			defer clk.Advance(-2 * time.Second)
			got, err = cache.Get(ctx, "f", "k")
			require.NoError(t, err)
			assert.Nil(t, got)
		})
	}
}

func TestCache_Invalidate(t *testing.T) {
	clk := newClock()
	for name, cache := range cacheImplementations(t, clk) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for _, e := range []CacheEntry{
				{FieldID: "city", CacheKey: "p1", CachedAt: clk.Now()},
				{FieldID: "city", CacheKey: "p2", CachedAt: clk.Now()},
				{FieldID: "state", CacheKey: "all", CachedAt: clk.Now()},
			} {
				require.NoError(t, cache.Set(ctx, e))
			}

			require.NoError(t, cache.Invalidate(ctx, "city"))

			for _, key := range []string{"p1", "p2"} {
				got, err := cache.Get(ctx, "city", key)
				require.NoError(t, err)
				assert.Nil(t, got, "city/%s should be gone", key)
			}
			got, err := cache.Get(ctx, "state", "all")
			require.NoError(t, err)
			require.NotNil(t, got, "other fields are untouched")
			assert.NotNil(t, got.Options)
			assert.Empty(t, got.Options)
		})
	}
}

func TestMemoryCache_ReturnsCopies(t *testing.T) {
	cache := NewMemoryCache(DefaultCacheConfig())
	ctx := context.Background()
	opts := []Option{{Value: "1", Label: "One"}}

	require.NoError(t, cache.Set(ctx, CacheEntry{FieldID: "f", CacheKey: "k", Options: opts, CachedAt: time.Now()}))
	opts[0].Label = "mutated"

	got, err := cache.Get(ctx, "f", "k")
	require.NoError(t, err)
	got.Options[0].Label = "also mutated"

	again, err := cache.Get(ctx, "f", "k")
	require.NoError(t, err)
	assert.Equal(t, "One", again.Options[0].Label)
	assert.Equal(t, 1, cache.Len())
}

func TestMemoryCache_DropsExpiredEntries(t *testing.T) {
	clk := newClock()
	cache := NewMemoryCache(CacheConfig{TTL: 300 * time.Second, Now: clk.Now})
	ctx := context.Background()

	for _, key := range []string{"p1", "p2", "p3"} {
		require.NoError(t, cache.Set(ctx, CacheEntry{FieldID: "city", CacheKey: key, CachedAt: clk.Now()}))
	}
	require.NoError(t, cache.Set(ctx, CacheEntry{FieldID: "state", CacheKey: "all", CachedAt: clk.Now()}))
	assert.Equal(t, 4, cache.Len())

	clk.Advance(time.Hour)

	got, err := cache.Get(ctx, "city", "p1")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Equal(t, 3, cache.Len(), "an expired entry is removed when read")

	require.NoError(t, cache.Set(ctx, CacheEntry{FieldID: "city", CacheKey: "p4", CachedAt: clk.Now()}))
	assert.Equal(t, 2, cache.Len(), "storing an entry sweeps the field's expired entries")

	got, err = cache.Get(ctx, "state", "all")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Equal(t, 1, cache.Len())
}

func TestMemoryCache_BoundedUnderChangingParents(t *testing.T) {
	clk := newClock()
	cache := NewMemoryCache(CacheConfig{TTL: 300 * time.Second, Now: clk.Now})
	querier := NewMemoryQuerier(map[string][]map[string]any{
		"cities": {{"id": 1, "name": "Auckland"}},
	})
	r := NewResolver(ResolverConfig{Cache: cache, Querier: querier, Now: clk.Now})
	source := SourceConfig{Kind: SourceModel, Model: "cities"}
	ctx := context.Background()

	for i := 0; i < 500; i++ {
		r.LoadOptions(ctx, "city", source, fmt.Sprintf("parent-%d", i))
		clk.Advance(time.Hour)
	}
	assert.Equal(t, 1, cache.Len())
}

func TestSQLCache_CorruptEntryIsAMiss(t *testing.T) {
	db := openSQLite(t, sqliteSchema)
	clk := newClock()
	cache := NewSQLCache(db, CacheConfig{TTL: 300 * time.Second, Now: clk.Now})
	ctx := context.Background()

	rows := []struct {
		key     string
		options string
	}{
		{"not-json", `{{{`},
		{"no-value", `[{"label":"Orphan"}]`},
	}
	for _, row := range rows {
		_, err := db.Exec(`INSERT INTO option_cache (field_id, cache_key, options, cached_at, ttl_seconds)
			VALUES ($1, $2, $3, $4, $5)`, "f", row.key, row.options, clk.Now(), 300)
		require.NoError(t, err)
	}

	for _, row := range rows {
		t.Run(row.key, func(t *testing.T) {
			got, err := cache.Get(ctx, "f", row.key)
			require.NoError(t, err)
			assert.Nil(t, got)

			var n int
			require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM option_cache WHERE cache_key = $1`, row.key).Scan(&n))
			assert.Zero(t, n, "corrupt row should be deleted")
		})
	}
}

func TestSQLCache_ResolverRoundTrip(t *testing.T) {
	clk := newClock()
	cache := NewSQLCache(openSQLite(t, sqliteSchema), CacheConfig{TTL: 300 * time.Second, Now: clk.Now})
	querier := NewMemoryQuerier(map[string][]map[string]any{
		"countries": {{"code": "NZ", "label": "New Zealand"}},
	})
	r := NewResolver(ResolverConfig{Cache: cache, Querier: querier, Now: clk.Now})
	source := SourceConfig{Kind: SourceModel, Model: "countries", ValueKey: "code", LabelKey: "label"}
	ctx := context.Background()

	want := []Option{{Value: "NZ", Label: "New Zealand"}}
	assert.Equal(t, want, r.LoadOptions(ctx, "country", source, ""))

	cached, ok := r.GetCached(ctx, "country", CacheKey("country", source, ""))
	require.True(t, ok)
	assert.Equal(t, want, cached)
}
