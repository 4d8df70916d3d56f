package dbexec

import (
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"relgen/internal/dialect"
)

func TestParseNamed(t *testing.T) {
	tests := []struct {
		name      string
		query     string
		params    []parameter
		fragments []string
	}{
		{
			name:      "single marker",
			query:     "SELECT t.a FROM t WHERE t.id = :id",
			params:    []parameter{{name: "id"}},
			fragments: []string{"SELECT t.a FROM t WHERE t.id = ", ""},
		},
		{
			name:      "in list",
			query:     "DELETE FROM t WHERE t.id IN (:ids)",
			params:    []parameter{{name: "ids", list: true}},
			fragments: []string{"DELETE FROM t WHERE t.id IN (", ")"},
		},
		{
			name:   "lower case in with spaces",
			query:  "SELECT 1 FROM t WHERE t.id in ( :ids )",
			params: []parameter{{name: "ids", list: true}},
		},
		{
			name:   "word ending in IN is not a list",
			query:  "SELECT COIN(:x)",
			params: []parameter{{name: "x"}},
		},
		{
			name:      "casts and quoted text are skipped",
			query:     "SELECT x::text, ':nope', \":also\" FROM t WHERE t.v = :___oldOptimisticLockingVersion",
			params:    []parameter{{name: "___oldOptimisticLockingVersion"}},
			fragments: []string{"SELECT x::text, ':nope', \":also\" FROM t WHERE t.v = ", ""},
		},
		{
			name:      "no markers",
			query:     "SELECT COUNT(*) FROM t",
			fragments: []string{"SELECT COUNT(*) FROM t"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stmt := parseNamed(tt.query)
			assert.Equal(t, tt.params, stmt.parameters)
			assert.Len(t, stmt.fragments, len(stmt.parameters)+1)
			if tt.fragments != nil {
				assert.Equal(t, tt.fragments, stmt.fragments)
			}
		})
	}
}

func newTestRunner(t *testing.T, d *dialect.Dialect) *Runner {
	t.Helper()
	r, err := NewRunner(nil, d, WithStatementCacheSize(4))
	require.NoError(t, err)
	return r
}

func TestRunner_Bind(t *testing.T) {
	query := "SELECT t.a FROM t WHERE t.id IN (:ids) AND t.version = :version AND t.tags = :tags"
	params := Params{"ids": []int64{1, 2, 3}, "version": int64(7), "tags": []string{"a", "b"}}

	tests := []struct {
		name     string
		dialect  *dialect.Dialect
		expected string
	}{
		{"question marks", dialect.MySQL(), "SELECT t.a FROM t WHERE t.id IN (?, ?, ?) AND t.version = ? AND t.tags = ?"},
		{"dollar", dialect.Postgres(), "SELECT t.a FROM t WHERE t.id IN ($1, $2, $3) AND t.version = $4 AND t.tags = $5"},
		{"at p", dialect.SQLServer(), "SELECT t.a FROM t WHERE t.id IN (@p1, @p2, @p3) AND t.version = @p4 AND t.tags = @p5"},
		{"colon", dialect.Oracle(), "SELECT t.a FROM t WHERE t.id IN (:1, :2, :3) AND t.version = :4 AND t.tags = :5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bound, args, err := newTestRunner(t, tt.dialect).Bind(query, params)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, bound)
			require.Len(t, args, 5)
			assert.Equal(t, []any{int64(1), int64(2), int64(3), int64(7)}, args[:4])
		})
	}
}

func TestRunner_BindConvertsValues(t *testing.T) {
	query := "UPDATE t SET tags = :tags WHERE t.id = :id"
	params := Params{"tags": []string{"a", "b"}, "id": int64(1)}

	_, args, err := newTestRunner(t, dialect.Postgres()).Bind(query, params)
	require.NoError(t, err)
	assert.Equal(t, pq.Array([]string{"a", "b"}), args[0], "array columns are written as postgres arrays")

	_, args, err = newTestRunner(t, dialect.ANSI()).Bind(query, params)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, args[0])
}

func TestRunner_BindErrors(t *testing.T) {
	r := newTestRunner(t, dialect.ANSI())

	_, _, err := r.Bind("SELECT 1 FROM t WHERE t.id = :id", Params{"other": 1})
	assert.ErrorIs(t, err, ErrMissingParameter)
	assert.Contains(t, err.Error(), "id")

	_, _, err = r.Bind("SELECT 1 FROM t WHERE t.id IN (:ids)", Params{"ids": []int64{}})
	assert.ErrorIs(t, err, ErrEmptyList)
}

func TestRunner_BindSingleValueInList(t *testing.T) {
	r := newTestRunner(t, dialect.ANSI())

	bound, args, err := r.Bind("SELECT 1 FROM t WHERE t.id IN (:ids)", Params{"ids": int64(4)})
	require.NoError(t, err)
	assert.Equal(t, "SELECT 1 FROM t WHERE t.id IN (?)", bound)
	assert.Equal(t, []any{int64(4)}, args)

	bound, args, err = r.Bind("SELECT 1 FROM t WHERE t.hash IN (:h)", Params{"h": []byte("xy")})
	require.NoError(t, err)
	assert.Equal(t, "SELECT 1 FROM t WHERE t.hash IN (?)", bound, "byte slices are single values")
	assert.Equal(t, []any{[]byte("xy")}, args)
}

func TestRunner_StatementCache(t *testing.T) {
	r := newTestRunner(t, dialect.ANSI())
	query := "SELECT 1 FROM t WHERE t.id = :id"

	_, _, err := r.Bind(query, Params{"id": 1})
	require.NoError(t, err)
	first, ok := r.statements.Get(query)
	require.True(t, ok)

	_, _, err = r.Bind(query, Params{"id": 2})
	require.NoError(t, err)
	second, _ := r.statements.Get(query)
	assert.Same(t, first, second)

	for i, q := range []string{"SELECT 1", "SELECT 2", "SELECT 3", "SELECT 4"} {
		_, _, err := r.Bind(q, nil)
		require.NoError(t, err, i)
	}
	assert.False(t, r.statements.Contains(query), "least recently used statements are evicted")
}

func TestParams_Merge(t *testing.T) {
	base := Params{"a": 1, "b": 2}
	merged := base.Merge(Params{"b": 3}, Params{"c": 4})
	assert.Equal(t, Params{"a": 1, "b": 3, "c": 4}, merged)
	assert.Equal(t, Params{"a": 1, "b": 2}, base)
}

func TestRunner_ParameterNames(t *testing.T) {
	r := newTestRunner(t, dialect.ANSI())

	names := r.ParameterNames("UPDATE t SET a = :a, b = :b WHERE t.id = :id AND t.a = :a AND t.note = ':skip'")
	assert.Equal(t, []string{"a", "b", "id"}, names)
	assert.Empty(t, r.ParameterNames("SELECT COUNT(*) FROM t"))
}
