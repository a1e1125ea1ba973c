package options

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"
)

var (
	// ErrSourceFetch reports a URL or model source that could not be read.
	ErrSourceFetch = errors.New("option source fetch failed")

	// ErrUnknownModel reports a model reference with no backing table.
	ErrUnknownModel = errors.New("unknown model")

	// ErrUnknownSourceKind reports a source kind other than static, url or model.
	ErrUnknownSourceKind = errors.New("unknown option source kind")

	// ErrCacheCorrupt reports a stored cache entry that cannot be read back.
	ErrCacheCorrupt = errors.New("corrupt cache entry")

	// ErrPathNotFound reports a JSON path that does not exist in a response.
	ErrPathNotFound = errors.New("json path not found")
)

// SourceKind says where a field's options come from.
type SourceKind string

const (
	SourceStatic SourceKind = "static"
	SourceURL    SourceKind = "url"
	SourceModel  SourceKind = "model"
)

// ParentPlaceholder is replaced by the parent field's value in cascading URLs.
const ParentPlaceholder = "{parent}"

const (
	DefaultValueKey = "id"
	DefaultLabelKey = "name"
)

// Option is one selectable entry.
type Option struct {
	Value string `json:"value" mapstructure:"value"`
	Label string `json:"label" mapstructure:"label"`
}

// Filter is a column = value restriction on a model source.
type Filter struct {
	Column string `json:"column" mapstructure:"column"`
	Value  any    `json:"value" mapstructure:"value"`
}

// SourceConfig describes a dynamic option source.
type SourceConfig struct {
	Kind SourceKind `json:"kind" mapstructure:"kind"`

	// Static
	Options []Option `json:"options,omitempty" mapstructure:"options"`

	// URL; may contain {parent}.
	URL     string            `json:"url,omitempty" mapstructure:"url"`
	Path    string            `json:"path,omitempty" mapstructure:"path"`
	Headers map[string]string `json:"headers,omitempty" mapstructure:"headers"`

	// Model
	Model   string   `json:"model,omitempty" mapstructure:"model"`
	Filters []Filter `json:"filters,omitempty" mapstructure:"filters"`

	ValueKey string `json:"value_key,omitempty" mapstructure:"value_key"`
	LabelKey string `json:"label_key,omitempty" mapstructure:"label_key"`

	// TTL in seconds; zero uses the cache default.
	TTL int `json:"ttl,omitempty" mapstructure:"ttl"`
}

func (c SourceConfig) valueKey() string {
	if c.ValueKey == "" {
		return DefaultValueKey
	}
	return c.ValueKey
}

func (c SourceConfig) labelKey() string {
	if c.LabelKey == "" {
		return DefaultLabelKey
	}
	return c.LabelKey
}

// Validate checks that the source has the locator its kind needs.
func (c SourceConfig) Validate() error {
	switch c.Kind {
	case SourceStatic:
		return nil
	case SourceURL:
		if c.URL == "" {
			return fmt.Errorf("url source needs a url")
		}
	case SourceModel:
		if c.Model == "" {
			return fmt.Errorf("model source needs a model")
		}
		for i, f := range c.Filters {
			if f.Column == "" {
				return fmt.Errorf("model filter %d has no column", i)
			}
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownSourceKind, c.Kind)
	}
	return nil
}

// CacheEntry is a resolved option list for one field and cache key.
type CacheEntry struct {
	FieldID    string    `json:"field_id"`
	CacheKey   string    `json:"cache_key"`
	Options    []Option  `json:"options"`
	CachedAt   time.Time `json:"cached_at"`
	TTLSeconds int       `json:"ttl_seconds"`
}

// ValidAt reports whether the entry may still be served at now.
func (e CacheEntry) ValidAt(now time.Time) bool {
	return now.Sub(e.CachedAt) < time.Duration(e.TTLSeconds)*time.Second
}

// stringify renders a decoded JSON or SQL value as an option value or label.
func stringify(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case []byte:
		return string(s)
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(s), 'f', -1, 32)
	case int64:
		return strconv.FormatInt(s, 10)
	case int:
		return strconv.Itoa(s)
	case bool:
		return strconv.FormatBool(s)
	case json.Number:
		return s.String()
	case time.Time:
		return s.Format(time.RFC3339)
	}
	return fmt.Sprint(v)
}
