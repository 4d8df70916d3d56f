// Command relgen generates aggregate-aware SQL from an entity model and serves
// it as a read-only catalog.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"relgen/internal/config"
	"relgen/internal/dialect"
	"relgen/internal/logging"
	"relgen/internal/serverapp"
)

var (
	// Version is set at build time via -ldflags "-X main.Version=...".
	Version = "dev"
	Commit  = "none"
)

const usage = `usage: relgen <command> [flags]

commands:
  generate   render the statement set of the model's entities
  dialects   list the registered dialects
  resolve    probe the configured database and report its dialect
  serve      run the catalog HTTP service
  version    print the version
`

type command func(ctx context.Context, env *environment) error

var commands = map[string]command{
	"generate": runGenerate,
	"dialects": runDialects,
	"resolve":  runResolve,
	"serve":    runServe,
}

// environment is what a subcommand runs with.
type environment struct {
	cfg      *config.Config
	logger   *logging.Logger
	registry *dialect.Registry
	stdout   io.Writer
}

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout, os.Stderr); err != nil {
		slog.Error("relgen failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		_, _ = fmt.Fprint(stderr, usage)
		return nil
	}
	name := args[0]
	if name == "version" || name == "--version" {
		_, _ = fmt.Fprintf(stdout, "relgen %s (%s)\n", Version, Commit)
		return nil
	}
	cmd, ok := commands[name]
	if !ok {
		_, _ = fmt.Fprint(stderr, usage)
		return fmt.Errorf("unknown command %q", name)
	}

	fs := config.NewFlagSet("relgen " + name)
	fs.SetOutput(stderr)
	if err := fs.Parse(args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	cfg, err := config.Load(fs)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if cfg.Observability.ServiceVersion == "" {
		cfg.Observability.ServiceVersion = Version
	}

	registry := dialect.NewRegistry()
	if err := validate(cfg, registry); err != nil {
		return err
	}

	logger := logging.NewLogger(logging.Config{
		Level:  cfg.Observability.Logging.Level,
		Format: cfg.Observability.Logging.Format,
		Output: stderr,
	})
	slog.SetDefault(logger.Logger)

	return cmd(ctx, &environment{
		cfg:      cfg,
		logger:   logger,
		registry: registry,
		stdout:   stdout,
	})
}

func validate(cfg *config.Config, registry *dialect.Registry) error {
	result := cfg.Validate(registry)
	for _, warn := range result.Warnings {
		slog.Warn("configuration warning",
			slog.String("field", warn.Field),
			slog.String("message", warn.Message),
			slog.String("hint", warn.Hint),
		)
	}
	if !result.HasErrors() {
		return nil
	}
	for _, err := range result.Errors {
		slog.Error("configuration error",
			slog.String("field", err.Field),
			slog.String("message", err.Message),
			slog.String("hint", err.Hint),
		)
	}
	return fmt.Errorf("configuration validation failed: %w", result)
}

func runServe(ctx context.Context, env *environment) error {
	cfg := env.cfg
	logger, loggerProvider, err := serverapp.InitLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}

	app, err := serverapp.New(cfg, logger, env.registry)
	if err != nil {
		if loggerProvider != nil {
			_ = loggerProvider.Shutdown(context.Background(), logger.Logger)
		}
		return err
	}
	app.AttachLoggerProvider(loggerProvider)

	if err := app.Init(ctx); err != nil {
		return err
	}

	serverErrors, err := app.Start()
	if err != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		_ = app.Shutdown(shutdownCtx)
		return err
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(stop)

	_, waitErr := app.WaitForStop(stop, serverErrors)

	logger.Info("shutting down server gracefully")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	shutdownErr := app.Shutdown(shutdownCtx)
	shutdownCancel()

	if err := errors.Join(waitErr, shutdownErr); err != nil {
		return err
	}
	logger.Info("server stopped gracefully")
	return nil
}
