package dbexec

import (
	"database/sql"
	"fmt"

	"github.com/XSAM/otelsql"
	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// OpenOptions controls instrumentation of opened databases.
type OpenOptions struct {
	Tracing      bool
	Metrics      bool
	SQLCommenter bool
}

var dbSystems = map[string]attribute.KeyValue{
	"mysql":     semconv.DBSystemMySQL,
	"postgres":  semconv.DBSystemPostgreSQL,
	"pgx":       semconv.DBSystemPostgreSQL,
	"sqlite":    semconv.DBSystemSqlite,
	"sqlserver": semconv.DBSystemMSSQL,
}

// Open opens a database through otelsql. With neither tracing nor metrics it
// is a plain sql.Open. The returned registration is nil unless DB stats
// metrics were registered; callers unregister it on shutdown.
func Open(driverName, dsn string, o OpenOptions) (*sql.DB, interface{ Unregister() error }, error) {
	if !o.Tracing && !o.Metrics {
		db, err := sql.Open(driverName, dsn)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open %s database: %w", driverName, err)
		}
		return db, nil, nil
	}

	var attrs []attribute.KeyValue
	if system, ok := dbSystems[driverName]; ok {
		attrs = append(attrs, system)
	}
	opts := []otelsql.Option{otelsql.WithAttributes(attrs...)}
	if o.Tracing {
		opts = append(opts, otelsql.WithSpanOptions(otelsql.SpanOptions{DisableErrSkip: true}))
		if o.SQLCommenter {
			opts = append(opts, otelsql.WithSQLCommenter(true))
		}
	}

	db, err := otelsql.Open(driverName, dsn, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open %s database: %w", driverName, err)
	}
	if !o.Metrics {
		return db, nil, nil
	}
	reg, err := otelsql.RegisterDBStatsMetrics(db, otelsql.WithAttributes(attrs...))
	if err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("failed to register DB stats metrics: %w", err)
	}
	return db, reg, nil
}
