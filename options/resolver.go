package options

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/liamcoop/formlogic/internal/logger"
)

// ResolverConfig wires a Resolver to its collaborators. Nil fields get
// defaults: an in-memory cache, the retrying HTTP fetcher and a notifier
// that discards events. Without a Querier, model sources fail with
// ErrUnknownModel.
type ResolverConfig struct {
	Cache    Cache
	Fetcher  Fetcher
	Querier  ModelQuerier
	Notifier Notifier
	Now      func() time.Time
}

// Resolver loads option lists from static, URL and model sources and
// caches the results per field.
type Resolver struct {
	cache    Cache
	fetcher  Fetcher
	querier  ModelQuerier
	notifier Notifier
	now      func() time.Time
}

// NewResolver creates a resolver from config.
func NewResolver(config ResolverConfig) *Resolver {
	r := &Resolver{
		cache:    config.Cache,
		fetcher:  config.Fetcher,
		querier:  config.Querier,
		notifier: config.Notifier,
		now:      config.Now,
	}
	if r.now == nil {
		r.now = time.Now
	}
	if r.cache == nil {
		r.cache = NewMemoryCache(CacheConfig{TTL: DefaultCacheConfig().TTL, Now: r.now})
	}
	if r.fetcher == nil {
		r.fetcher = NewHTTPFetcher(DefaultHTTPConfig())
	}
	if r.notifier == nil {
		r.notifier = NopNotifier{}
	}
	return r
}

// LoadOptions returns the options for a field. Failures are logged, reported
// to the notifier and yield an empty list.
func (r *Resolver) LoadOptions(ctx context.Context, fieldID string, source SourceConfig, parent string) []Option {
	opts, err := r.Resolve(ctx, fieldID, source, parent)
	if err != nil {
		return []Option{}
	}
	return opts
}

// Resolve is LoadOptions with the failure returned. The notifier has
// already been told about the failure when an error is returned.
func (r *Resolver) Resolve(ctx context.Context, fieldID string, source SourceConfig, parent string) ([]Option, error) {
	if source.Kind == SourceStatic {
		return staticOptions(source), nil
	}

	key := CacheKey(fieldID, source, parent)
	if opts, ok := r.GetCached(ctx, fieldID, key); ok {
		return opts, nil
	}

	// An abandoned request still completes its fetch and fills the cache.
	ctx = context.WithoutCancel(ctx)

	opts, err := r.fetch(ctx, source, parent)
	if err != nil {
		logger.OptionFetchFailures.Add(1)
		logger.Warn("failed to load options",
			"field_id", fieldID, "kind", string(source.Kind), "error", err)
		r.notifier.OptionsFailed(fieldID, err.Error())
		return nil, err
	}

	entry := CacheEntry{
		FieldID:    fieldID,
		CacheKey:   key,
		Options:    opts,
		CachedAt:   r.now(),
		TTLSeconds: source.TTL,
	}
	if err := r.cache.Set(ctx, entry); err != nil {
		logger.Warn("failed to cache options", "field_id", fieldID, "error", err)
	}

	r.notifier.OptionsLoaded(fieldID, len(opts))
	return opts, nil
}

// GetCached returns the cached options, or ok == false on a miss or expiry.
// Cache read errors are logged and treated as a miss.
func (r *Resolver) GetCached(ctx context.Context, fieldID, cacheKey string) ([]Option, bool) {
	entry, err := r.cache.Get(ctx, fieldID, cacheKey)
	if err != nil {
		logger.Warn("option cache read failed", "field_id", fieldID, "error", err)
		return nil, false
	}
	if entry == nil {
		return nil, false
	}
	if entry.Options == nil {
		return []Option{}, true
	}
	return entry.Options, true
}

// Invalidate drops every cached list for the field.
func (r *Resolver) Invalidate(ctx context.Context, fieldID string) error {
	return r.cache.Invalidate(ctx, fieldID)
}

// CacheKey derives the cache key for a field, its source and the parent
// value. Any change to the source configuration changes the key.
func CacheKey(fieldID string, source SourceConfig, parent string) string {
	signature, _ := json.Marshal(source)

	h := sha256.New()
	h.Write([]byte(fieldID))
	h.Write([]byte{0})
	h.Write([]byte(parent))
	h.Write([]byte{0})
	h.Write(signature)
	return hex.EncodeToString(h.Sum(nil))
}

func staticOptions(source SourceConfig) []Option {
	return append([]Option{}, source.Options...)
}

func (r *Resolver) fetch(ctx context.Context, source SourceConfig, parent string) ([]Option, error) {
	switch source.Kind {
	case SourceURL:
		return r.fetchURL(ctx, source, parent)
	case SourceModel:
		return r.queryModel(ctx, source)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownSourceKind, source.Kind)
	}
}

// SubstituteParent fills {parent} in a URL template with the escaped
// parent value.
func SubstituteParent(template, parent string) string {
	return strings.ReplaceAll(template, ParentPlaceholder, url.PathEscape(parent))
}

func (r *Resolver) fetchURL(ctx context.Context, source SourceConfig, parent string) ([]Option, error) {
	if source.URL == "" {
		return nil, fmt.Errorf("%w: url source has no url", ErrSourceFetch)
	}
	target := SubstituteParent(source.URL, parent)

	status, body, err := r.fetcher.Get(ctx, target, source.Headers)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceFetch, err)
	}
	if status < 200 || status > 299 {
		return nil, fmt.Errorf("%w: %s returned status %d", ErrSourceFetch, target, status)
	}

	var doc any
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: invalid JSON from %s: %v", ErrSourceFetch, target, err)
	}

	items, ok := ResolveJSONPath(doc, source.Path)
	if !ok {
		return nil, fmt.Errorf("%w: %w: %q", ErrSourceFetch, ErrPathNotFound, source.Path)
	}
	return mapItems(items, source.valueKey(), source.labelKey()), nil
}

func (r *Resolver) queryModel(ctx context.Context, source SourceConfig) ([]Option, error) {
	if r.querier == nil {
		return nil, fmt.Errorf("%w: %w: %q", ErrSourceFetch, ErrUnknownModel, source.Model)
	}

	valueKey, labelKey := source.valueKey(), source.labelKey()
	rows, err := r.querier.Query(ctx, source.Model, source.Filters, []string{valueKey, labelKey})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSourceFetch, err)
	}

	opts := make([]Option, 0, len(rows))
	for _, row := range rows {
		if opt, ok := mapItem(row, valueKey, labelKey); ok {
			opts = append(opts, opt)
		}
	}
	return opts, nil
}
