package options

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"

	"github.com/lib/pq"
)

// ModelQuerier reads rows for model sources. Filters are equality matches
// on columns; columns lists the projected columns.
type ModelQuerier interface {
	Query(ctx context.Context, model string, filters []Filter, columns []string) ([]map[string]any, error)
}

// DefaultRowLimit caps how many rows a model source returns.
const DefaultRowLimit = 1000

// SQLModelQuerier queries tables registered under model names. Only
// registered models can be read; every identifier is quoted and every
// filter value is a bound parameter.
type SQLModelQuerier struct {
	db     *sql.DB
	models map[string]string // model reference -> table name
	limit  int
	mu     sync.RWMutex
}

// NewSQLModelQuerier creates a querier over db with the given model -> table
// registrations.
func NewSQLModelQuerier(db *sql.DB, models map[string]string) *SQLModelQuerier {
	q := &SQLModelQuerier{
		db:     db,
		models: make(map[string]string, len(models)),
		limit:  DefaultRowLimit,
	}
	for model, table := range models {
		q.models[model] = table
	}
	return q
}

// Register makes a table readable under a model name.
func (q *SQLModelQuerier) Register(model, table string) {
	q.mu.Lock()
	q.models[model] = table
	q.mu.Unlock()
}

// Query selects the projected columns from the model's table.
func (q *SQLModelQuerier) Query(ctx context.Context, model string, filters []Filter, columns []string) ([]map[string]any, error) {
	q.mu.RLock()
	table, ok := q.models[model]
	q.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownModel, model)
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("model %q: no columns to select", model)
	}

	query, args := buildSelect(table, filters, columns, q.limit)
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query model %s: %w", model, err)
	}
	defer rows.Close()

	names, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}

	var result []map[string]any
	for rows.Next() {
		values := make([]any, len(names))
		ptrs := make([]any, len(names))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		row := make(map[string]any, len(names))
		for i, name := range names {
			if b, ok := values[i].([]byte); ok {
				row[name] = string(b)
				continue
			}
			row[name] = values[i]
		}
		result = append(result, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return result, nil
}

func buildSelect(table string, filters []Filter, columns []string, limit int) (string, []any) {
	seen := make(map[string]bool)
	quoted := make([]string, 0, len(columns))
	for _, c := range columns {
		if seen[c] {
			continue
		}
		seen[c] = true
		quoted = append(quoted, pq.QuoteIdentifier(c))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s", strings.Join(quoted, ", "), pq.QuoteIdentifier(table))

	args := make([]any, 0, len(filters))
	for i, f := range filters {
		if i == 0 {
			b.WriteString(" WHERE ")
		} else {
			b.WriteString(" AND ")
		}
		args = append(args, f.Value)
		fmt.Fprintf(&b, "%s = $%d", pq.QuoteIdentifier(f.Column), len(args))
	}

	fmt.Fprintf(&b, " ORDER BY %s", quoted[0])
	if limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", limit)
	}
	return b.String(), args
}

// MemoryQuerier serves model sources from in-memory datasets.
type MemoryQuerier struct {
	datasets map[string][]map[string]any
	mu       sync.RWMutex
}

// NewMemoryQuerier creates a querier over the given model -> rows datasets.
func NewMemoryQuerier(datasets map[string][]map[string]any) *MemoryQuerier {
	q := &MemoryQuerier{datasets: make(map[string][]map[string]any)}
	for model, rows := range datasets {
		q.datasets[model] = rows
	}
	return q
}

// Query returns the projected columns of rows whose filter columns equal
// the filter values.
func (q *MemoryQuerier) Query(_ context.Context, model string, filters []Filter, columns []string) ([]map[string]any, error) {
	q.mu.RLock()
	rows, ok := q.datasets[model]
	q.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownModel, model)
	}

	var result []map[string]any
	for _, row := range rows {
		if !matchesFilters(row, filters) {
			continue
		}
		projected := make(map[string]any, len(columns))
		for _, c := range columns {
			if v, ok := row[c]; ok {
				projected[c] = v
			}
		}
		result = append(result, projected)
	}
	return result, nil
}

func matchesFilters(row map[string]any, filters []Filter) bool {
	for _, f := range filters {
		v, ok := row[f.Column]
		if !ok || stringify(v) != stringify(f.Value) {
			return false
		}
	}
	return true
}
