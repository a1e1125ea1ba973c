package options

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const usersSchema = `
CREATE TABLE users (
	id     INTEGER PRIMARY KEY,
	name   TEXT NOT NULL,
	email  TEXT NOT NULL,
	active INTEGER NOT NULL
)`

func seedUsers(t *testing.T) *SQLModelQuerier {
	t.Helper()
	db := openSQLite(t, usersSchema,
		`INSERT INTO users (id, name, email, active) VALUES
			(2, 'Jane', 'jane@example.com', 1),
			(1, 'John', 'john@example.com', 1),
			(3, 'Old John', 'john@example.com', 0)`,
	)
	return NewSQLModelQuerier(db, map[string]string{"User": "users"})
}

func TestSQLModelQuerier(t *testing.T) {
	q := seedUsers(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		filters []Filter
		want    []Option
	}{
		{
			name: "no filters orders by value column",
			want: []Option{{Value: "1", Label: "John"}, {Value: "2", Label: "Jane"}, {Value: "3", Label: "Old John"}},
		},
		{
			name:    "single filter",
			filters: []Filter{{Column: "email", Value: "john@example.com"}},
			want:    []Option{{Value: "1", Label: "John"}, {Value: "3", Label: "Old John"}},
		},
		{
			name:    "filters are combined",
			filters: []Filter{{Column: "email", Value: "john@example.com"}, {Column: "active", Value: 1}},
			want:    []Option{{Value: "1", Label: "John"}},
		},
		{
			name:    "filter value is data, not SQL",
			filters: []Filter{{Column: "email", Value: "' OR '1'='1"}},
			want:    []Option{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewResolver(ResolverConfig{Querier: q})
			source := SourceConfig{Kind: SourceModel, Model: "User", Filters: tt.filters}
			opts, err := r.Resolve(ctx, "owner", source, "")
			require.NoError(t, err)
			assert.Equal(t, tt.want, opts)
		})
	}
}

func TestSQLModelQuerier_Errors(t *testing.T) {
	q := seedUsers(t)
	ctx := context.Background()

	_, err := q.Query(ctx, "Account", nil, []string{"id", "name"})
	assert.ErrorIs(t, err, ErrUnknownModel)

	_, err = q.Query(ctx, "User", []Filter{{Column: "nope", Value: 1}}, []string{"id", "name"})
	assert.Error(t, err, "unknown column is a query failure")

	_, err = q.Query(ctx, "User", nil, nil)
	assert.Error(t, err)

	q.Register("Account", "users")
	rows, err := q.Query(ctx, "Account", nil, []string{"email"})
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}

func TestBuildSelect(t *testing.T) {
	query, args := buildSelect("users", []Filter{{Column: "email", Value: "a@b.c"}, {Column: "org", Value: 7}}, []string{"id", "name", "id"}, 50)

	assert.Equal(t, `SELECT "id", "name" FROM "users" WHERE "email" = $1 AND "org" = $2 ORDER BY "id" LIMIT 50`, query)
	assert.Equal(t, []any{"a@b.c", 7}, args)
}

func TestBuildSelect_QuotesIdentifiers(t *testing.T) {
	query, _ := buildSelect(`users"; DROP TABLE users; --`, nil, []string{"id"}, 0)
	assert.Equal(t, `SELECT "id" FROM "users""; DROP TABLE users; --" ORDER BY "id"`, query)
}

func TestMemoryQuerier(t *testing.T) {
	q := NewMemoryQuerier(map[string][]map[string]any{
		"users": {
			{"id": 1, "name": "John", "email": "john@example.com"},
			{"id": 2, "name": "Jane", "email": "jane@example.com"},
		},
	})

	rows, err := q.Query(context.Background(), "users", []Filter{{Column: "id", Value: "2"}}, []string{"id", "name"})
	require.NoError(t, err)
	assert.Equal(t, []map[string]any{{"id": 2, "name": "Jane"}}, rows)

	_, err = q.Query(context.Background(), "teams", nil, []string{"id"})
	assert.ErrorIs(t, err, ErrUnknownModel)
}
