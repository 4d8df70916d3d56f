package config

import (
	"fmt"
	"strings"

	"relgen/internal/dialect"
	"relgen/internal/identifier"
	"relgen/internal/sqlrender"
)

var dialectModules = map[string]func() dialect.Module{
	"postgres-geometry": dialect.PostgresGeometryModule,
	"pgtype":            dialect.PostgresGeometryModule,
	"sqlserver-types":   dialect.SQLServerTypesModule,
	"mssql":             dialect.SQLServerTypesModule,
}

// Options converts the dialect section into dialect construction options.
func (d DialectConfig) Options() ([]dialect.Option, error) {
	var opts []dialect.Option

	var modules []dialect.Module
	for _, name := range d.Modules {
		factory, ok := dialectModules[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			return nil, fmt.Errorf("unknown dialect module %q", name)
		}
		modules = append(modules, factory())
	}
	if len(modules) > 0 {
		opts = append(opts, dialect.WithModules(modules...))
	}

	quote := d.IdentifierQuote
	casing := strings.TrimSpace(d.Casing)
	if quote == "" && casing == "" {
		return opts, nil
	}
	lc, ok := identifier.ParseLetterCasing(casing)
	if !ok {
		return nil, fmt.Errorf("invalid identifier casing %q", d.Casing)
	}
	opts = append(opts, func(dl *dialect.Dialect) {
		if quote != "" {
			dl.Processing.Quoting = identifier.NewQuoting(quote)
		}
		if casing != "" {
			dl.Processing.Casing = lc
		}
	})
	return opts, nil
}

// Naming returns the configured rendering naming strategy.
func (g GeneratorConfig) Naming() (sqlrender.NamingStrategy, error) {
	strategy, ok := sqlrender.ParseNamingStrategy(g.NamingStrategy)
	if !ok {
		return strategy, fmt.Errorf("invalid naming strategy %q", g.NamingStrategy)
	}
	return strategy, nil
}
