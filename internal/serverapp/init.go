package serverapp

import (
	"context"
	"fmt"
	"log/slog"

	"relgen/internal/catalog"
	"relgen/internal/sqlgen"
)

// Init acquires all runtime resources. It is idempotent; on failure whatever
// was acquired is released again.
func (a *App) Init(ctx context.Context) error {
	a.stateMu.Lock()
	if a.initialized {
		a.stateMu.Unlock()
		return nil
	}
	a.stateMu.Unlock()

	if ctx == nil {
		ctx = context.Background()
	}

	cleanup := cleanupStack{}
	success := false
	defer func() {
		if !success {
			_ = cleanup.run(context.Background(), a.logger)
		}
	}()

	if a.loggerProvider != nil {
		cleanup.push("logger provider", func(shutdownCtx context.Context) error {
			return a.loggerProvider.Shutdown(shutdownCtx, a.logger.Logger)
		})
	}

	metrics, err := initMetrics(a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize OpenTelemetry metrics: %w", err)
	}
	if metrics.provider != nil {
		cleanup.push("meter provider", func(shutdownCtx context.Context) error {
			return metrics.provider.Shutdown(shutdownCtx, a.logger.Logger)
		})
	}

	tracerProvider, err := initTracing(a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize OpenTelemetry tracing: %w", err)
	}
	if tracerProvider != nil {
		cleanup.push("tracer provider", func(shutdownCtx context.Context) error {
			return tracerProvider.Shutdown(shutdownCtx, a.logger.Logger)
		})
	}

	db, dbStatsReg, err := OpenDatabase(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	if db != nil {
		cleanup.push("database", func(context.Context) error {
			return closeDatabase(a.logger, db, dbStatsReg)
		})
	}

	d, err := BuildDialect(ctx, a.cfg, a.registry, db, a.logger)
	if err != nil {
		return fmt.Errorf("failed to determine dialect: %w", err)
	}

	mctx, err := LoadMapping(a.cfg, d, a.logger)
	if err != nil {
		return fmt.Errorf("failed to load model: %w", err)
	}

	var cacheMetrics sqlgen.CacheMetrics
	if metrics.generator != nil {
		cacheMetrics = metrics.generator
	}
	source, err := BuildSource(a.cfg, mctx, d, cacheMetrics, a.logger)
	if err != nil {
		return fmt.Errorf("failed to create generator source: %w", err)
	}

	params, err := NewParameterLister(a.cfg, d, a.logger)
	if err != nil {
		return err
	}
	opts := []catalog.Option{catalog.WithParameterNames(params)}
	if metrics.catalog != nil {
		opts = append(opts, catalog.WithMetrics(metrics.catalog))
	}
	if db != nil {
		opts = append(opts, catalog.WithHealthCheck(db, a.cfg.Server.HealthCheckTimeout))
	}

	mux := buildRouter(a.logger, catalog.NewHandler(source, opts...), metrics.provider)
	handler := wrapHTTPHandler(a.cfg, a.logger, mux)
	srv := buildServer(a.cfg, handler, fmt.Sprintf(":%d", a.cfg.Server.Port))
	cleanup.push("HTTP server", func(shutdownCtx context.Context) error {
		return srv.Shutdown(shutdownCtx)
	})

	a.logger.Info("catalog ready",
		slog.String("dialect", d.Name),
		slog.Int("entities", len(mctx.Entities())),
	)

	a.stateMu.Lock()
	a.metrics = metrics
	a.tracerProvider = tracerProvider
	a.db = db
	a.dbStatsReg = dbStatsReg
	a.dialect = d
	a.source = source
	a.handler = handler
	a.srv = srv
	a.cleanup = cleanup
	a.initialized = true
	a.stateMu.Unlock()

	success = true
	return nil
}
