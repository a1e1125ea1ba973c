package conditions

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"
)

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"15:04:05",
	"15:04",
}

// isEmpty reports whether a submitted value counts as not filled in.
func isEmpty(v any) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return rv.Len() == 0
	case reflect.Pointer, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int8:
		return float64(n), nil
	case int16:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case uint:
		return float64(n), nil
	case uint8:
		return float64(n), nil
	case uint16:
		return float64(n), nil
	case uint32:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	case json.Number:
		return n.Float64()
	case string:
		f, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(n), ",", ""), 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q is not a number", ErrInvalidValue, n)
		}
		return f, nil
	}
	return 0, fmt.Errorf("%w: %T is not a number", ErrInvalidValue, v)
}

func toTime(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t, nil
	case string:
		s := strings.TrimSpace(t)
		for _, layout := range dateLayouts {
			if parsed, err := time.Parse(layout, s); err == nil {
				return parsed, nil
			}
		}
		return time.Time{}, fmt.Errorf("%w: %q is not a date", ErrInvalidValue, t)
	}
	return time.Time{}, fmt.Errorf("%w: %T is not a date", ErrInvalidValue, v)
}

func toBool(v any) bool {
	switch b := v.(type) {
	case bool:
		return b
	case string:
		switch strings.ToLower(strings.TrimSpace(b)) {
		case "1", "true", "on", "yes", "checked":
			return true
		}
		return false
	case nil:
		return false
	}
	f, err := toFloat(v)
	return err == nil && f != 0
}

func toString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(s)
	case fmt.Stringer:
		return s.String()
	}
	return fmt.Sprint(v)
}

// toList reads a list-valued input: a JSON array, a Go slice, or a comma
// separated string. Elements are trimmed and blanks dropped.
func toList(v any) []string {
	var raw []string
	switch l := v.(type) {
	case nil:
		return []string{}
	case []string:
		raw = l
	case []any:
		for _, item := range l {
			raw = append(raw, toString(item))
		}
	case string:
		trimmed := strings.TrimSpace(l)
		if strings.HasPrefix(trimmed, "[") {
			var decoded []any
			if err := json.Unmarshal([]byte(trimmed), &decoded); err == nil {
				return toList(decoded)
			}
		}
		raw = strings.Split(l, ",")
	default:
		raw = []string{toString(v)}
	}

	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// normalizePattern accepts both bare RE2 patterns and delimited patterns such
// as "/^ab+c$/i" that builders commonly store.
func normalizePattern(pattern string) string {
	if len(pattern) < 2 || pattern[0] != '/' {
		return pattern
	}
	end := strings.LastIndexByte(pattern, '/')
	if end <= 0 {
		return pattern
	}
	body, flags := pattern[1:end], pattern[end+1:]
	var inline strings.Builder
	for _, f := range flags {
		switch f {
		case 'i', 'm', 's', 'U':
			inline.WriteRune(f)
		default:
			return pattern
		}
	}
	if inline.Len() == 0 {
		return body
	}
	return "(?" + inline.String() + ")" + body
}
