package mapping

import (
	"fmt"
	"log/slog"
	"reflect"
	"sort"
	"sync"

	"relgen/internal/dialect"
	"relgen/internal/identifier"
	"relgen/internal/naming"
)

// TypeInspector decides which Go types are stored as single columns.
// *dialect.Dialect implements it.
type TypeInspector interface {
	IsSimpleType(t reflect.Type) bool
	IsArrayType(t reflect.Type) bool
}

// Context is the registry of mapped entities. Register all entities before
// resolving paths; path trees are built once per root entity and cached.
type Context struct {
	namer      *naming.Namer
	types      TypeInspector
	forceQuote bool
	logger     *slog.Logger

	mu       sync.RWMutex
	entities map[string]*Entity
	byType   map[reflect.Type]*Entity

	trees sync.Map // root entity name → *pathTree
}

// Option configures a Context.
type Option func(*Context)

// WithNamer sets the naming strategy for derived table and column names.
func WithNamer(n *naming.Namer) Option {
	return func(c *Context) {
		c.namer = n
	}
}

// WithTypeInspector sets the simple type rules, usually the active dialect.
func WithTypeInspector(t TypeInspector) Option {
	return func(c *Context) {
		c.types = t
	}
}

// WithForceQuote makes every derived identifier quoted.
func WithForceQuote(quote bool) Option {
	return func(c *Context) {
		c.forceQuote = quote
	}
}

// WithLogger sets the logger for mapping warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Context) {
		c.logger = logger
	}
}

// NewContext creates an empty mapping context.
func NewContext(opts ...Option) *Context {
	c := &Context{
		entities: make(map[string]*Entity),
		byType:   make(map[reflect.Type]*Entity),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.namer == nil {
		c.namer = naming.New(naming.DefaultConfig(), c.logger)
	}
	if c.types == nil {
		c.types = dialect.ANSI()
	}
	return c
}

// Namer returns the naming strategy.
func (c *Context) Namer() *naming.Namer {
	return c.namer
}

// ForceQuote reports whether derived identifiers are quoted.
func (c *Context) ForceQuote() bool {
	return c.forceQuote
}

func (c *Context) ident(name string) identifier.SQLIdentifier {
	if c.forceQuote {
		return identifier.Quoted(name)
	}
	return identifier.Unquoted(name)
}

// Entity returns the entity registered under name.
func (c *Context) Entity(name string) (*Entity, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entities[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrEntityNotFound, name)
	}
	return e, nil
}

// EntityFor returns the entity registered for a Go type.
func (c *Context) EntityFor(t reflect.Type) (*Entity, error) {
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.byType[t]
	if !ok {
		return nil, fmt.Errorf("%w: %v", ErrEntityNotFound, t)
	}
	return e, nil
}

// Entities lists the registered entities sorted by name.
func (c *Context) Entities() []*Entity {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*Entity, 0, len(c.entities))
	for _, e := range c.entities {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// add stores a fully built entity. The caller holds c.mu.
func (c *Context) add(e *Entity) error {
	if existing, ok := c.entities[e.Name]; ok && existing != e {
		if e.Type == nil || existing.Type != e.Type {
			return fmt.Errorf("%w: entity %s is already registered", ErrInvalidMapping, e.Name)
		}
	}
	if err := validateEntity(e); err != nil {
		return err
	}
	c.entities[e.Name] = e
	if e.Type != nil {
		c.byType[e.Type] = e
	}
	c.trees.Clear()
	return nil
}

func (c *Context) finishEntity(e *Entity) {
	if e.Table == "" {
		e.Table = c.namer.TableName(e.Name)
	}
	e.table = c.ident(e.Table)
	if e.Schema != "" {
		e.table = identifier.From(c.ident(e.Schema), e.table)
	}
	for _, p := range e.Properties {
		// Entity-valued and embedded properties own no column.
		if p.Kind.IsEntity() {
			continue
		}
		if p.Column == "" {
			p.Column = c.namer.ColumnName(p.Name)
		}
		p.column = c.ident(p.Column)
	}
}

func validateEntity(e *Entity) error {
	var ids, versions int
	seen := make(map[string]bool, len(e.Properties))
	for _, p := range e.Properties {
		if p.Name == "" {
			return fmt.Errorf("%w: %s has a property without name", ErrInvalidMapping, e.Name)
		}
		if seen[p.Name] {
			return fmt.Errorf("%w: %s.%s is declared twice", ErrInvalidMapping, e.Name, p.Name)
		}
		seen[p.Name] = true
		if p.ID {
			ids++
			if p.Kind != Simple {
				return fmt.Errorf("%w: id %s.%s must be a simple property", ErrInvalidMapping, e.Name, p.Name)
			}
		}
		if p.Version {
			versions++
			if p.Kind != Simple {
				return fmt.Errorf("%w: version %s.%s must be a simple property", ErrInvalidMapping, e.Name, p.Name)
			}
		}
		if p.Kind.IsEntity() && p.Target == "" {
			return fmt.Errorf("%w: %s.%s has no target entity", ErrInvalidMapping, e.Name, p.Name)
		}
		if (p.Sequence != "" || p.UUID) && !p.ID {
			return fmt.Errorf("%w: %s.%s: id generation options need the id option", ErrInvalidMapping, e.Name, p.Name)
		}
	}
	if ids > 1 {
		return fmt.Errorf("%w: %s declares %d id properties", ErrInvalidMapping, e.Name, ids)
	}
	if versions > 1 {
		return fmt.Errorf("%w: %s declares %d version properties", ErrInvalidMapping, e.Name, versions)
	}
	return nil
}

// RootPath returns the root path of an aggregate.
func (c *Context) RootPath(entityName string) (Path, error) {
	tree, err := c.tree(entityName)
	if err != nil {
		return Path{}, err
	}
	return Path{tree: tree}, nil
}

// PathFor resolves a dot path such as "address.street" from a root entity.
func (c *Context) PathFor(entityName, dotPath string) (Path, error) {
	root, err := c.RootPath(entityName)
	if err != nil {
		return Path{}, err
	}
	return root.Resolve(dotPath)
}

func (c *Context) tree(entityName string) (*pathTree, error) {
	if cached, ok := c.trees.Load(entityName); ok {
		return cached.(*pathTree), nil
	}
	root, err := c.Entity(entityName)
	if err != nil {
		return nil, err
	}
	tree, err := c.buildTree(root)
	if err != nil {
		return nil, err
	}
	actual, _ := c.trees.LoadOrStore(entityName, tree)
	return actual.(*pathTree), nil
}
