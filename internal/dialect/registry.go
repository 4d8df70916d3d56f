package dialect

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// ErrUnknownDialect is returned by Lookup for unregistered names.
var ErrUnknownDialect = errors.New("unknown dialect")

// Factory constructs a dialect.
type Factory func(opts ...Option) *Dialect

var builtinFactories = map[string]Factory{
	NameANSI:      ANSI,
	NameH2:        H2,
	NameHSQLDB:    HSQLDB,
	NamePostgres:  Postgres,
	NameMySQL:     MySQL,
	NameMariaDB:   MariaDB,
	NameSQLServer: SQLServer,
	NameOracle:    Oracle,
	NameDB2:       DB2,
	NameSQLite:    SQLite,
}

var aliases = map[string]string{
	"postgresql": NamePostgres,
	"pgx":        NamePostgres,
	"mssql":      NameSQLServer,
	"hsql":       NameHSQLDB,
	"sqlite3":    NameSQLite,
}

// Registry maps vendor tags to dialect factories. It is owned by the
// composition root; NewRegistry pre-populates the built-in vendors.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

func NewRegistry() *Registry {
	r := &Registry{factories: make(map[string]Factory, len(builtinFactories))}
	for name, f := range builtinFactories {
		r.factories[name] = f
	}
	return r
}

// Register adds a factory. Names are case-insensitive and must be unique.
func (r *Registry) Register(name string, f Factory) error {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return fmt.Errorf("dialect name is required")
	}
	if f == nil {
		return fmt.Errorf("dialect %q: factory is nil", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[key]; exists {
		return fmt.Errorf("dialect %q is already registered", key)
	}
	r.factories[key] = f
	return nil
}

// Lookup constructs the dialect registered under name.
func (r *Registry) Lookup(name string, opts ...Option) (*Dialect, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if canonical, ok := aliases[key]; ok {
		key = canonical
	}
	r.mu.RLock()
	f, ok := r.factories[key]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDialect, name)
	}
	return f(opts...), nil
}

// Names lists registered vendor tags in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
