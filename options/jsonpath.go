package options

import (
	"sort"
	"strconv"
	"strings"
)

// ResolveJSONPath walks a decoded JSON document along a dotted path such as
// "data.items" or "results.0.children". Numeric segments index arrays. An
// empty path returns the document itself; a missing segment returns
// ok == false.
func ResolveJSONPath(doc any, path string) (any, bool) {
	path = strings.TrimSpace(path)
	if path == "" {
		return doc, true
	}

	current := doc
	for _, segment := range strings.Split(path, ".") {
		switch node := current.(type) {
		case map[string]any:
			next, ok := node[segment]
			if !ok {
				return nil, false
			}
			current = next
		case []any:
			i, err := strconv.Atoi(segment)
			if err != nil || i < 0 || i >= len(node) {
				return nil, false
			}
			current = node[i]
		default:
			return nil, false
		}
	}
	return current, true
}

// mapItems turns decoded items into options. Objects are read through the
// value and label keys; items without a value are skipped and a missing
// label falls back to the value. Scalars become their own label. A plain
// object of scalars is read as value -> label pairs.
func mapItems(items any, valueKey, labelKey string) []Option {
	switch list := items.(type) {
	case []any:
		opts := make([]Option, 0, len(list))
		for _, item := range list {
			if opt, ok := mapItem(item, valueKey, labelKey); ok {
				opts = append(opts, opt)
			}
		}
		return opts
	case []map[string]any:
		opts := make([]Option, 0, len(list))
		for _, item := range list {
			if opt, ok := mapItem(item, valueKey, labelKey); ok {
				opts = append(opts, opt)
			}
		}
		return opts
	case map[string]any:
		keys := make([]string, 0, len(list))
		for k := range list {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		opts := make([]Option, 0, len(keys))
		for _, k := range keys {
			switch list[k].(type) {
			case map[string]any, []any:
				continue
			}
			opts = append(opts, Option{Value: k, Label: stringify(list[k])})
		}
		return opts
	}
	return []Option{}
}

func mapItem(item any, valueKey, labelKey string) (Option, bool) {
	switch v := item.(type) {
	case map[string]any:
		raw, ok := v[valueKey]
		if !ok || raw == nil {
			return Option{}, false
		}
		value := stringify(raw)
		label := value
		if l, ok := v[labelKey]; ok && l != nil {
			label = stringify(l)
		}
		return Option{Value: value, Label: label}, true
	case nil:
		return Option{}, false
	case []any:
		return Option{}, false
	default:
		s := stringify(v)
		return Option{Value: s, Label: s}, true
	}
}
