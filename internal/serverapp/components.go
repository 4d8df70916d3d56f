package serverapp

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"relgen/internal/config"
	"relgen/internal/dbexec"
	"relgen/internal/dbmeta"
	"relgen/internal/dialect"
	"relgen/internal/logging"
	"relgen/internal/mapping"
	"relgen/internal/naming"
	"relgen/internal/sqlgen"
)

const (
	initialRetryInterval = 500 * time.Millisecond
	maxRetryInterval     = 30 * time.Second
)

// DriverName is the configured database/sql driver, mysql when unset.
func DriverName(cfg *config.Config) string {
	if d := strings.TrimSpace(cfg.Database.Driver); d != "" {
		return d
	}
	return "mysql"
}

// OpenDatabase opens the configured database and waits until it answers. It
// returns a nil *sql.DB when no connection is configured. The registration is
// non-nil when DB stats metrics were registered.
func OpenDatabase(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*sql.DB, interface{ Unregister() error }, error) {
	if !cfg.Database.HasConnection() {
		return nil, nil, nil
	}
	dsn, err := cfg.Database.DataSourceName()
	if err != nil {
		return nil, nil, err
	}

	driver := DriverName(cfg)
	obs := cfg.Observability
	if obs.SQLCommenterEnabled && !obs.TracingEnabled {
		logger.Warn("SQLCommenter requires tracing to be enabled - skipping SQLCommenter")
	}
	db, reg, err := dbexec.Open(driver, dsn, dbexec.OpenOptions{
		Tracing:      obs.TracingEnabled,
		Metrics:      obs.MetricsEnabled,
		SQLCommenter: obs.SQLCommenterEnabled && obs.TracingEnabled,
	})
	if err != nil {
		return nil, nil, err
	}

	db.SetMaxOpenConns(cfg.Database.Pool.MaxOpen)
	db.SetMaxIdleConns(cfg.Database.Pool.MaxIdle)
	db.SetConnMaxLifetime(cfg.Database.Pool.MaxLifetime)

	if err := waitForDatabase(ctx, cfg.Database.ConnectionTimeout, logger, db); err != nil {
		closeDatabase(logger, db, reg)
		return nil, nil, err
	}

	logger.Info("connected to database",
		slog.String("driver", driver),
		slog.String("dsn", cfg.Database.RedactedDSN()),
		slog.Int("pool_max_open", cfg.Database.Pool.MaxOpen),
		slog.Int("pool_max_idle", cfg.Database.Pool.MaxIdle),
		slog.Duration("pool_max_lifetime", cfg.Database.Pool.MaxLifetime),
	)
	return db, reg, nil
}

func closeDatabase(logger *logging.Logger, db *sql.DB, reg interface{ Unregister() error }) error {
	if reg != nil {
		if err := reg.Unregister(); err != nil {
			logger.Warn("failed to unregister DB stats metrics", slog.String("error", err.Error()))
		}
	}
	return db.Close()
}

// waitForDatabase pings db until it answers or timeout elapses. A zero
// timeout pings once.
func waitForDatabase(ctx context.Context, timeout time.Duration, logger *logging.Logger, db *sql.DB) error {
	if timeout <= 0 {
		return db.PingContext(ctx)
	}

	deadline := time.Now().Add(timeout)
	interval := initialRetryInterval
	for attempt := 1; ; attempt++ {
		err := db.PingContext(ctx)
		if err == nil {
			if attempt > 1 {
				logger.Info("database connection established", slog.Int("attempts", attempt))
			}
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("database not available after %v: %w", timeout, err)
		}

		logger.Warn("database not ready, retrying...",
			slog.Int("attempt", attempt),
			slog.Duration("retry_in", interval),
			slog.String("error", err.Error()),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
		interval = min(interval*2, maxRetryInterval)
	}
}

// BuildDialect returns the named dialect, or resolves it from db when no name
// is configured. Configured modules and identifier overrides apply either way.
func BuildDialect(ctx context.Context, cfg *config.Config, registry *dialect.Registry, db *sql.DB, logger *logging.Logger) (*dialect.Dialect, error) {
	if registry == nil {
		registry = dialect.NewRegistry()
	}
	opts, err := cfg.Dialect.Options()
	if err != nil {
		return nil, err
	}

	if name := strings.TrimSpace(cfg.Dialect.Name); name != "" {
		return registry.Lookup(name, opts...)
	}
	if db == nil {
		return nil, fmt.Errorf("%w: set dialect.name or configure a database", dbmeta.ErrNoDialect)
	}

	d, err := dbmeta.NewResolver(registry, logger.Logger).ResolveDB(ctx, db, DriverName(cfg))
	if err != nil {
		return nil, err
	}
	for _, opt := range opts {
		opt(d)
	}
	logger.Info("resolved dialect from database", slog.String("dialect", d.Name))
	return d, nil
}

// LoadMapping reads the model file into a mapping context whose simple types
// follow d.
func LoadMapping(cfg *config.Config, d *dialect.Dialect, logger *logging.Logger) (*mapping.Context, error) {
	if strings.TrimSpace(cfg.Model.File) == "" {
		return nil, fmt.Errorf("model.file is required")
	}
	model, err := mapping.LoadModel(cfg.Model.File)
	if err != nil {
		return nil, err
	}

	mctx := mapping.NewContext(
		mapping.WithNamer(naming.New(cfg.Naming, logger.Logger)),
		mapping.WithTypeInspector(d),
		mapping.WithForceQuote(cfg.Generator.ForceQuote),
		mapping.WithLogger(logger.Logger),
	)
	if err := mctx.RegisterModel(model); err != nil {
		return nil, fmt.Errorf("failed to register model %s: %w", cfg.Model.File, err)
	}
	logger.Debug("loaded model",
		slog.String("file", cfg.Model.File),
		slog.Int("entities", len(mctx.Entities())),
	)
	return mctx, nil
}

// BuildSource creates the generator source. metrics may be nil.
func BuildSource(cfg *config.Config, mctx *mapping.Context, d *dialect.Dialect, metrics sqlgen.CacheMetrics, logger *logging.Logger) (*sqlgen.Source, error) {
	strategy, err := cfg.Generator.Naming()
	if err != nil {
		return nil, err
	}
	opts := []sqlgen.SourceOption{
		sqlgen.WithSourceNaming(strategy),
		sqlgen.WithSourceLogger(logger.Logger),
	}
	if metrics != nil {
		opts = append(opts, sqlgen.WithMetrics(metrics))
	}
	return sqlgen.NewSource(mctx, d, opts...), nil
}

// NewParameterLister returns a runner used only to parse statements, with the
// configured statement cache size.
func NewParameterLister(cfg *config.Config, d *dialect.Dialect, logger *logging.Logger) (*dbexec.Runner, error) {
	return dbexec.NewRunner(nil, d,
		dbexec.WithStatementCacheSize(cfg.Generator.StatementCacheSize),
		dbexec.WithLogger(logger.Logger),
	)
}
