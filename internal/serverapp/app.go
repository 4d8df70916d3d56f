// Package serverapp wires configuration, observability, the database and the
// generator source into the catalog HTTP server, and exposes the same
// building blocks to the CLI.
package serverapp

import (
	"database/sql"
	"fmt"
	"net/http"
	"sync"

	"relgen/internal/config"
	"relgen/internal/dialect"
	"relgen/internal/logging"
	"relgen/internal/observability"
	"relgen/internal/sqlgen"
)

// App owns runtime resources for the catalog server lifecycle.
type App struct {
	cfg      *config.Config
	logger   *logging.Logger
	registry *dialect.Registry

	loggerProvider *observability.LoggerProvider
	metrics        metricsBundle
	tracerProvider *observability.TracerProvider

	db         *sql.DB
	dbStatsReg interface{ Unregister() error }

	dialect *dialect.Dialect
	source  *sqlgen.Source
	handler http.Handler
	srv     *http.Server

	cleanup cleanupStack

	stateMu      sync.Mutex
	initialized  bool
	started      bool
	serverErrors chan error

	shutdownOnce sync.Once
	shutdownErr  error
}

// New creates an App. A nil registry uses the built-in dialects.
func New(cfg *config.Config, logger *logging.Logger, registry *dialect.Registry) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if registry == nil {
		registry = dialect.NewRegistry()
	}
	return &App{cfg: cfg, logger: logger, registry: registry}, nil
}

// AttachLoggerProvider registers an optional logger provider for shutdown cleanup.
func (a *App) AttachLoggerProvider(provider *observability.LoggerProvider) {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()
	a.loggerProvider = provider
}

// Handler returns the fully wrapped HTTP handler. It is nil before Init.
func (a *App) Handler() http.Handler {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()
	return a.handler
}
