package dbmeta

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"relgen/internal/dialect"
)

// ErrNoDialect is returned when no provider recognizes the database.
var ErrNoDialect = errors.New("cannot determine a dialect")

// Provider maps database metadata to a dialect. It returns ok=false when it
// does not recognize the database, so the next provider gets a chance.
type Provider interface {
	Dialect(ctx context.Context, md DatabaseMetadata) (d *dialect.Dialect, ok bool, err error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context, md DatabaseMetadata) (*dialect.Dialect, bool, error)

func (f ProviderFunc) Dialect(ctx context.Context, md DatabaseMetadata) (*dialect.Dialect, bool, error) {
	return f(ctx, md)
}

var (
	registeredMu sync.RWMutex
	registered   []Provider
)

// Register adds a provider that every Resolver consults before its own
// providers, in registration order. It is meant to be called from init
// functions of packages that add support for further databases.
func Register(p Provider) {
	if p == nil {
		panic("dbmeta: Register provider is nil")
	}
	registeredMu.Lock()
	defer registeredMu.Unlock()
	registered = append(registered, p)
}

func registeredProviders() []Provider {
	registeredMu.RLock()
	defer registeredMu.RUnlock()
	return append([]Provider(nil), registered...)
}

// productPatterns are matched in order against the lower-cased product name.
var productPatterns = []struct {
	pattern string
	dialect string
}{
	{"hsql", dialect.NameHSQLDB},
	{"h2", dialect.NameH2},
	{"mysql", dialect.NameMySQL},
	{"mariadb", dialect.NameMariaDB},
	{"postgresql", dialect.NamePostgres},
	{"microsoft", dialect.NameSQLServer},
	{"db2", dialect.NameDB2},
	{"oracle", dialect.NameOracle},
	{"sqlite", dialect.NameSQLite},
}

// DefaultProvider recognizes the built-in vendors by product name.
type DefaultProvider struct {
	registry *dialect.Registry
	logger   *slog.Logger
}

// NewDefaultProvider creates the built-in provider.
func NewDefaultProvider(registry *dialect.Registry, logger *slog.Logger) *DefaultProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultProvider{registry: registry, logger: logger}
}

// Dialect matches the product name. MySQL and MariaDB take their identifier
// processing from the metadata because quoting and case sensitivity depend on
// server settings. Unknown products are logged and not an error.
func (p *DefaultProvider) Dialect(_ context.Context, md DatabaseMetadata) (*dialect.Dialect, bool, error) {
	name := strings.ToLower(md.ProductName)
	for _, candidate := range productPatterns {
		if !strings.Contains(name, candidate.pattern) {
			continue
		}
		var opts []dialect.Option
		if candidate.dialect == dialect.NameMySQL || candidate.dialect == dialect.NameMariaDB {
			opts = append(opts, dialect.WithIdentifierProcessing(md.IdentifierProcessing()))
		}
		d, err := p.registry.Lookup(candidate.dialect, opts...)
		if err != nil {
			return nil, false, err
		}
		return d, true, nil
	}
	p.logger.Info("could not determine dialect for database product",
		slog.String("product", md.ProductName),
		slog.String("version", md.ProductVersion),
	)
	return nil, false, nil
}

// Resolver runs the provider chain: registered providers first, then the
// resolver's own providers, then the default provider.
type Resolver struct {
	providers []Provider
	fallback  Provider
	logger    *slog.Logger
}

// NewResolver creates a resolver with extra providers tried before the
// built-in default.
func NewResolver(registry *dialect.Registry, logger *slog.Logger, providers ...Provider) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	if registry == nil {
		registry = dialect.NewRegistry()
	}
	return &Resolver{
		providers: providers,
		fallback:  NewDefaultProvider(registry, logger),
		logger:    logger,
	}
}

// Resolve returns the dialect of the first provider that recognizes md.
func (r *Resolver) Resolve(ctx context.Context, md DatabaseMetadata) (*dialect.Dialect, error) {
	chain := append(registeredProviders(), r.providers...)
	chain = append(chain, r.fallback)
	for _, p := range chain {
		d, ok, err := p.Dialect(ctx, md)
		if err != nil {
			return nil, fmt.Errorf("dialect provider failed: %w", err)
		}
		if ok && d != nil {
			r.logger.Debug("resolved dialect",
				slog.String("product", md.ProductName),
				slog.String("dialect", d.Name),
			)
			return d, nil
		}
	}
	return nil, fmt.Errorf("%w for database product %q", ErrNoDialect, md.ProductName)
}

// ResolveDB probes db and resolves its dialect. driverName is the name the
// database was opened with; it identifies the database when the driver is
// wrapped, for example by otelsql.
func (r *Resolver) ResolveDB(ctx context.Context, db *sql.DB, driverName string) (*dialect.Dialect, error) {
	md, err := Probe(ctx, db, driverName)
	if err != nil {
		return nil, err
	}
	return r.Resolve(ctx, md)
}
