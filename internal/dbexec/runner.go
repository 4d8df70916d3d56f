package dbexec

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	lru "github.com/hashicorp/golang-lru/v2"

	"relgen/internal/dialect"
	"relgen/internal/mapping"
)

// DefaultStatementCacheSize bounds the number of parsed statements a Runner keeps.
const DefaultStatementCacheSize = 256

// Runner executes SQL with :name parameters against a QueryExecutor, using the
// bind marker style and value converters of a dialect.
type Runner struct {
	exec       QueryExecutor
	dialect    *dialect.Dialect
	statements *lru.Cache[string, *namedStatement]
	logger     *slog.Logger
}

// RunnerOption configures a Runner.
type RunnerOption func(*runnerOptions)

type runnerOptions struct {
	cacheSize int
	logger    *slog.Logger
}

// WithStatementCacheSize sets how many parsed statements are kept.
func WithStatementCacheSize(size int) RunnerOption {
	return func(o *runnerOptions) {
		o.cacheSize = size
	}
}

// WithLogger sets the logger statements are traced to at debug level.
func WithLogger(logger *slog.Logger) RunnerOption {
	return func(o *runnerOptions) {
		o.logger = logger
	}
}

// NewRunner creates a runner for exec and d.
func NewRunner(exec QueryExecutor, d *dialect.Dialect, opts ...RunnerOption) (*Runner, error) {
	o := runnerOptions{cacheSize: DefaultStatementCacheSize}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	cache, err := lru.New[string, *namedStatement](o.cacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create statement cache: %w", err)
	}
	return &Runner{exec: exec, dialect: d, statements: cache, logger: o.logger}, nil
}

// Dialect returns the runner's dialect.
func (r *Runner) Dialect() *dialect.Dialect {
	return r.dialect
}

// WithExecutor returns a runner sharing r's dialect and statement cache that
// runs on exec, typically a TxExecutor.
func (r *Runner) WithExecutor(exec QueryExecutor) *Runner {
	clone := *r
	clone.exec = exec
	return &clone
}

func (r *Runner) parse(query string) *namedStatement {
	if stmt, ok := r.statements.Get(query); ok {
		return stmt
	}
	stmt := parseNamed(query)
	r.statements.Add(query, stmt)
	return stmt
}

// ParameterNames lists the distinct :name markers of query in order of first
// appearance.
func (r *Runner) ParameterNames(query string) []string {
	stmt := r.parse(query)
	seen := make(map[string]struct{}, len(stmt.parameters))
	var names []string
	for _, p := range stmt.parameters {
		if _, ok := seen[p.name]; ok {
			continue
		}
		seen[p.name] = struct{}{}
		names = append(names, p.name)
	}
	return names
}

// bindPositional binds params and leaves ? markers in place.
func (r *Runner) bindPositional(query string, params Params) (string, []any, error) {
	return r.parse(query).bind(params, r.dialect.WriteValue)
}

func (r *Runner) finish(query string) (string, error) {
	out, err := r.dialect.BindPlaceholders(query)
	if err != nil {
		return "", fmt.Errorf("failed to rewrite bind markers: %w", err)
	}
	return out, nil
}

// Bind replaces :name markers with the dialect's positional markers and
// returns the arguments in marker order.
func (r *Runner) Bind(query string, params Params) (string, []any, error) {
	positional, args, err := r.bindPositional(query, params)
	if err != nil {
		return "", nil, err
	}
	out, err := r.finish(positional)
	if err != nil {
		return "", nil, err
	}
	return out, args, nil
}

// Query runs a statement that returns rows.
func (r *Runner) Query(ctx context.Context, query string, params Params) (Rows, error) {
	bound, args, err := r.Bind(query, params)
	if err != nil {
		return nil, err
	}
	r.logger.DebugContext(ctx, "query", slog.String("sql", bound), slog.Int("args", len(args)))
	return r.exec.QueryContext(ctx, bound, args...)
}

// Exec runs a statement that returns no rows.
func (r *Runner) Exec(ctx context.Context, query string, params Params) (sql.Result, error) {
	bound, args, err := r.Bind(query, params)
	if err != nil {
		return nil, err
	}
	r.logger.DebugContext(ctx, "exec", slog.String("sql", bound), slog.Int("args", len(args)))
	return r.exec.ExecContext(ctx, bound, args...)
}

// ParamsOf converts an identifier into parameters keyed by bind name.
func ParamsOf(id mapping.Identifier) Params {
	return Params(id.ToMap())
}

// Merge returns a copy of p with the entries of others added; later entries win.
func (p Params) Merge(others ...Params) Params {
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	for _, other := range others {
		for k, v := range other {
			out[k] = v
		}
	}
	return out
}
