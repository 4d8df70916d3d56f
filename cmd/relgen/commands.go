package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"gopkg.in/yaml.v3"

	"relgen/internal/catalog"
	"relgen/internal/dbmeta"
	"relgen/internal/serverapp"
)

func runGenerate(ctx context.Context, env *environment) error {
	db, reg, err := serverapp.OpenDatabase(ctx, env.cfg, env.logger)
	if err != nil {
		return err
	}
	if db != nil {
		defer func() {
			if reg != nil {
				_ = reg.Unregister()
			}
			_ = db.Close()
		}()
	}

	d, err := serverapp.BuildDialect(ctx, env.cfg, env.registry, db, env.logger)
	if err != nil {
		return err
	}
	mctx, err := serverapp.LoadMapping(env.cfg, d, env.logger)
	if err != nil {
		return err
	}
	src, err := serverapp.BuildSource(env.cfg, mctx, d, nil, env.logger)
	if err != nil {
		return err
	}
	params, err := serverapp.NewParameterLister(env.cfg, d, env.logger)
	if err != nil {
		return err
	}

	rendered, err := catalog.RenderAll(ctx, src, env.cfg.Model.Entities, params)
	if err != nil {
		return err
	}
	for _, r := range rendered {
		if failed := r.Failed(); failed > 0 {
			env.logger.Debug("statements not supported by entity",
				slog.String("entity", r.Entity),
				slog.Int("count", failed),
			)
		}
	}
	return writeOutput(env.stdout, env.cfg.Output.Format, rendered)
}

// dialectInfo is the listing form of a dialect.
type dialectInfo struct {
	Name       string `json:"name" yaml:"name"`
	Quote      string `json:"quote" yaml:"quote"`
	Casing     string `json:"casing" yaml:"casing"`
	BindMarker string `json:"bind_marker" yaml:"bind_marker"`
	LockWrite  string `json:"lock_write" yaml:"lock_write"`
	LockRead   string `json:"lock_read" yaml:"lock_read"`
}

func runDialects(_ context.Context, env *environment) error {
	names := env.registry.Names()
	infos := make([]dialectInfo, 0, len(names))
	for _, name := range names {
		d, err := env.registry.Lookup(name)
		if err != nil {
			return err
		}
		marker, err := d.BindPlaceholders("?")
		if err != nil {
			return err
		}
		infos = append(infos, dialectInfo{
			Name:       d.Name,
			Quote:      d.Processing.Quoting.Prefix + d.Processing.Quoting.Suffix,
			Casing:     d.Processing.Casing.String(),
			BindMarker: marker,
			LockWrite:  d.Lock.Write,
			LockRead:   d.Lock.Read,
		})
	}
	return writeOutput(env.stdout, env.cfg.Output.Format, infos)
}

// resolution reports what the probe found.
type resolution struct {
	Product           string `json:"product" yaml:"product"`
	Version           string `json:"version" yaml:"version"`
	IdentifierQuote   string `json:"identifier_quote" yaml:"identifier_quote"`
	SupportsMixedCase bool   `json:"supports_mixed_case" yaml:"supports_mixed_case"`
	StoresUpperCase   bool   `json:"stores_upper_case" yaml:"stores_upper_case"`
	StoresLowerCase   bool   `json:"stores_lower_case" yaml:"stores_lower_case"`
	Dialect           string `json:"dialect" yaml:"dialect"`
	IdentifierCasing  string `json:"identifier_casing" yaml:"identifier_casing"`
	DialectQuote      string `json:"dialect_quote" yaml:"dialect_quote"`
}

func runResolve(ctx context.Context, env *environment) error {
	if !env.cfg.Database.HasConnection() {
		return fmt.Errorf("resolve needs a database: set database.dsn or database.user")
	}
	db, reg, err := serverapp.OpenDatabase(ctx, env.cfg, env.logger)
	if err != nil {
		return err
	}
	defer func() {
		if reg != nil {
			_ = reg.Unregister()
		}
		_ = db.Close()
	}()

	md, err := dbmeta.Probe(ctx, db, serverapp.DriverName(env.cfg))
	if err != nil {
		return err
	}
	d, err := dbmeta.NewResolver(env.registry, env.logger.Logger).Resolve(ctx, md)
	if err != nil {
		return err
	}
	return writeOutput(env.stdout, env.cfg.Output.Format, resolution{
		Product:           md.ProductName,
		Version:           md.ProductVersion,
		IdentifierQuote:   md.IdentifierQuoteString,
		SupportsMixedCase: md.SupportsMixedCaseIdentifiers,
		StoresUpperCase:   md.StoresUpperCaseIdentifiers,
		StoresLowerCase:   md.StoresLowerCaseIdentifiers,
		Dialect:           d.Name,
		IdentifierCasing:  d.Processing.Casing.String(),
		DialectQuote:      d.Processing.Quoting.Prefix + d.Processing.Quoting.Suffix,
	})
}

func writeOutput(w io.Writer, format string, v any) error {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "", "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported output format %q", format)
	}
}
