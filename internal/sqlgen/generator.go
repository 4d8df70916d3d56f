// Package sqlgen generates the SQL statements of one aggregate root entity.
// Statements use named parameters (:name) exclusively; the parameter names are
// exported as constants or derived from column names with identifier.BindName.
package sqlgen

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"relgen/internal/dialect"
	"relgen/internal/identifier"
	"relgen/internal/mapping"
	"relgen/internal/sqlast"
	"relgen/internal/sqlrender"
)

// ErrIllegalArgument is returned for calls that violate a generator
// precondition. Such errors are programming or mapping errors and recur on
// every call.
var ErrIllegalArgument = errors.New("illegal argument")

// Parameter names used by generated statements.
const (
	IDParameter      = "id"
	IDsParameter     = "ids"
	RootIDParameter  = "rootId"
	VersionParameter = "___oldOptimisticLockingVersion"
)

// Generator produces SQL for one entity. Statements without arguments are
// built on first use and cached; a Generator is safe for concurrent use.
type Generator struct {
	ctx      *mapping.Context
	entity   *mapping.Entity
	root     mapping.Path
	dialect  *dialect.Dialect
	renderer *sqlrender.Renderer
	naming   sqlrender.NamingStrategy
	columns  columns

	findOne              func() (string, error)
	findAll              func() (string, error)
	findAllInList        func() (string, error)
	exists               func() (string, error)
	count                func() (string, error)
	update               func() (string, error)
	deleteByID           func() (string, error)
	deleteByIDAndVersion func() (string, error)
	deleteByList         func() (string, error)
	deleteAll            func() (string, error)

	inserts sync.Map // column set key -> string
}

// Option configures a Generator.
type Option func(*generatorOptions)

type generatorOptions struct {
	naming sqlrender.NamingStrategy
}

// WithNamingStrategy maps unquoted identifiers before rendering.
func WithNamingStrategy(n sqlrender.NamingStrategy) Option {
	return func(o *generatorOptions) {
		o.naming = n
	}
}

// New creates the generator for an entity registered in ctx.
func New(ctx *mapping.Context, d *dialect.Dialect, entityName string, opts ...Option) (*Generator, error) {
	o := generatorOptions{naming: sqlrender.AsIs()}
	for _, opt := range opts {
		opt(&o)
	}
	root, err := ctx.RootPath(entityName)
	if err != nil {
		return nil, err
	}
	g := &Generator{
		ctx:      ctx,
		entity:   root.RootEntity(),
		root:     root,
		dialect:  d,
		renderer: d.Renderer(o.naming),
		naming:   o.naming,
		columns:  collectColumns(root),
	}
	g.findOne = sync.OnceValues(g.createFindOne)
	g.findAll = sync.OnceValues(g.createFindAll)
	g.findAllInList = sync.OnceValues(g.createFindAllInList)
	g.exists = sync.OnceValues(g.createExists)
	g.count = sync.OnceValues(g.createCount)
	g.update = sync.OnceValues(g.createUpdate)
	g.deleteByID = sync.OnceValues(g.createDeleteByID)
	g.deleteByIDAndVersion = sync.OnceValues(g.createDeleteByIDAndVersion)
	g.deleteByList = sync.OnceValues(g.createDeleteByList)
	g.deleteAll = sync.OnceValues(g.createDeleteAll)
	return g, nil
}

// Entity returns the entity the generator builds statements for.
func (g *Generator) Entity() *mapping.Entity {
	return g.entity
}

// Dialect returns the dialect statements are rendered for.
func (g *Generator) Dialect() *dialect.Dialect {
	return g.dialect
}

// Naming returns the naming strategy identifiers are rendered with.
func (g *Generator) Naming() sqlrender.NamingStrategy {
	return g.naming
}

// RootPath returns the root path of the entity.
func (g *Generator) RootPath() mapping.Path {
	return g.root
}

// FindOne selects one aggregate root with its singular references by :id.
func (g *Generator) FindOne() (string, error) { return g.findOne() }

// FindAll selects every row of the entity.
func (g *Generator) FindAll() (string, error) { return g.findAll() }

// FindAllInList selects the rows whose id is in :ids.
func (g *Generator) FindAllInList() (string, error) { return g.findAllInList() }

// Exists selects the id of the row identified by :id.
func (g *Generator) Exists() (string, error) { return g.exists() }

// Count counts the rows of the entity table.
func (g *Generator) Count() (string, error) { return g.count() }

// Update updates every updatable column of the row identified by its id.
func (g *Generator) Update() (string, error) { return g.update() }

// DeleteByID deletes the row identified by :id.
func (g *Generator) DeleteByID() (string, error) { return g.deleteByID() }

// DeleteByIDAndVersion deletes the row identified by :id when its version still
// equals the old optimistic locking version.
func (g *Generator) DeleteByIDAndVersion() (string, error) { return g.deleteByIDAndVersion() }

// DeleteByList deletes the rows whose id is in :ids.
func (g *Generator) DeleteByList() (string, error) { return g.deleteByList() }

// DeleteAll deletes every row of the entity table.
func (g *Generator) DeleteAll() (string, error) { return g.deleteAll() }

func (g *Generator) render(stmt sqlast.Statement) (string, error) {
	sql, err := g.renderer.Render(stmt)
	if err != nil {
		return "", fmt.Errorf("failed to render SQL for %s: %w", g.entity.Name, err)
	}
	return sql, nil
}

func (g *Generator) illegal(format string, args ...any) error {
	return fmt.Errorf("%w: %s: %s", ErrIllegalArgument, g.entity.Name, fmt.Sprintf(format, args...))
}

// table is the unaliased root table.
func (g *Generator) table() sqlast.Table {
	return sqlast.NewTable(g.entity.TableName())
}

func (g *Generator) idColumn() (sqlast.Column, error) {
	if g.columns.id.IsEmpty() {
		return sqlast.Column{}, g.illegal("entity has no id property")
	}
	return g.table().ColumnOf(g.columns.id), nil
}

func bindMarker(column identifier.SQLIdentifier) sqlast.BindMarker {
	return sqlast.NamedBindMarker(identifier.BindName(column))
}

// tableFor is the table of the path's table owner, aliased below the root.
func tableFor(path mapping.Path) sqlast.Table {
	info := path.TableInfo()
	t := sqlast.NewTable(info.QualifiedTableName)
	if info.TableAlias.IsEmpty() {
		return t
	}
	return t.AsIdentifier(info.TableAlias)
}

// columns are the column sets of the root table, embedded values included,
// in declaration order.
type columns struct {
	all        []identifier.SQLIdentifier
	id         identifier.SQLIdentifier
	version    identifier.SQLIdentifier
	readOnly   map[string]bool
	insertOnly map[string]bool
}

func collectColumns(root mapping.Path) columns {
	c := columns{readOnly: map[string]bool{}, insertOnly: map[string]bool{}}
	for _, p := range root.Descendants() {
		if p.IsEntity() || !p.TableOwner().IsRoot() {
			continue
		}
		name := p.ColumnInfo().Name
		prop := p.Leaf()
		c.all = append(c.all, name)
		switch {
		case prop.ID && p.Length() == 1:
			c.id = name
		case prop.Version && p.Length() == 1:
			c.version = name
		}
		if prop.ReadOnly {
			c.readOnly[name.Reference()] = true
		}
		if prop.InsertOnly {
			c.insertOnly[name.Reference()] = true
		}
	}
	return c
}

func (c columns) isID(name identifier.SQLIdentifier) bool {
	return !c.id.IsEmpty() && c.id.Equal(name)
}

// insertable are all columns except the id and read-only ones.
func (c columns) insertable() []identifier.SQLIdentifier {
	var out []identifier.SQLIdentifier
	for _, name := range c.all {
		if c.isID(name) || c.readOnly[name.Reference()] {
			continue
		}
		out = append(out, name)
	}
	return out
}

// updatable are the insertable columns minus the insert-only ones.
func (c columns) updatable() []identifier.SQLIdentifier {
	var out []identifier.SQLIdentifier
	for _, name := range c.insertable() {
		if c.insertOnly[name.Reference()] {
			continue
		}
		out = append(out, name)
	}
	return out
}

// Insert inserts the insertable columns plus additional columns supplied by
// the caller, typically back-references, list indexes or provided ids.
// Columns are ordered by name; without columns the dialect's default-values
// form is used. Statements are cached per additional column set.
func (g *Generator) Insert(additional []identifier.SQLIdentifier) (string, error) {
	cols := mergeColumns(g.columns.insertable(), additional)
	key := columnSetKey(cols)
	if cached, ok := g.inserts.Load(key); ok {
		return cached.(string), nil
	}

	t := g.table()
	b := sqlast.NewInsert().Into(t)
	for _, name := range cols {
		b.Columns(t.ColumnOf(name)).Values(bindMarker(name))
	}
	stmt, err := b.Build()
	if err != nil {
		return "", err
	}
	sql, err := g.render(stmt)
	if err != nil {
		return "", err
	}
	actual, _ := g.inserts.LoadOrStore(key, sql)
	return actual.(string), nil
}

func mergeColumns(base, additional []identifier.SQLIdentifier) []identifier.SQLIdentifier {
	seen := make(map[string]bool, len(base)+len(additional))
	var out []identifier.SQLIdentifier
	for _, set := range [][]identifier.SQLIdentifier{base, additional} {
		for _, name := range set {
			if name.IsEmpty() || seen[name.Reference()] {
				continue
			}
			seen[name.Reference()] = true
			out = append(out, name)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Reference() < out[j].Reference() })
	return out
}

func columnSetKey(cols []identifier.SQLIdentifier) string {
	var sb strings.Builder
	for _, c := range cols {
		if c.IsQuoted() {
			sb.WriteByte('"')
		}
		sb.WriteString(c.Reference())
		sb.WriteByte(0)
	}
	return sb.String()
}

// UpdateWithVersion is Update restricted to the row whose version column
// still holds version, which is inlined as a literal. Only integer versions
// are accepted so the literal never carries text a bind-marker rewrite could
// touch.
func (g *Generator) UpdateWithVersion(version any) (string, error) {
	if g.columns.version.IsEmpty() {
		return "", g.illegal("entity has no version property")
	}
	if !isIntegerVersion(version) {
		return "", g.illegal("version %v of type %T is not an integer", version, version)
	}
	b, err := g.baseUpdate()
	if err != nil {
		return "", err
	}
	b.And(g.table().ColumnOf(g.columns.version).IsEqualTo(sqlast.LiteralOf(version)))
	return buildAndRender(g, b.Build)
}

func isIntegerVersion(v any) bool {
	switch v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return true
	default:
		return false
	}
}

func (g *Generator) createUpdate() (string, error) {
	b, err := g.baseUpdate()
	if err != nil {
		return "", err
	}
	return buildAndRender(g, b.Build)
}

func (g *Generator) baseUpdate() (*sqlast.UpdateBuilder, error) {
	id, err := g.idColumn()
	if err != nil {
		return nil, err
	}
	t := g.table()
	b := sqlast.NewUpdate(t)
	for _, name := range g.columns.updatable() {
		b.Set(t.ColumnOf(name).Set(bindMarker(name)))
	}
	return b.Where(id.IsEqualTo(bindMarker(g.columns.id))), nil
}

func (g *Generator) createExists() (string, error) {
	id, err := g.idColumn()
	if err != nil {
		return "", err
	}
	b := sqlast.NewSelect(id).From(g.table()).Where(id.IsEqualTo(sqlast.NamedBindMarker(IDParameter)))
	return buildAndRender(g, b.Build)
}

func (g *Generator) createCount() (string, error) {
	return buildAndRender(g, sqlast.NewSelect(sqlast.Count()).From(g.table()).Build)
}

func (g *Generator) createDeleteByID() (string, error) {
	id, err := g.idColumn()
	if err != nil {
		return "", err
	}
	b := sqlast.NewDelete().From(g.table()).Where(id.IsEqualTo(sqlast.NamedBindMarker(IDParameter)))
	return buildAndRender(g, b.Build)
}

func (g *Generator) createDeleteByIDAndVersion() (string, error) {
	id, err := g.idColumn()
	if err != nil {
		return "", err
	}
	if g.columns.version.IsEmpty() {
		return "", g.illegal("entity has no version property")
	}
	t := g.table()
	b := sqlast.NewDelete().From(t).
		Where(id.IsEqualTo(sqlast.NamedBindMarker(IDParameter))).
		And(t.ColumnOf(g.columns.version).IsEqualTo(sqlast.NamedBindMarker(VersionParameter)))
	return buildAndRender(g, b.Build)
}

func (g *Generator) createDeleteByList() (string, error) {
	id, err := g.idColumn()
	if err != nil {
		return "", err
	}
	b := sqlast.NewDelete().From(g.table()).Where(id.In(sqlast.NamedBindMarker(IDsParameter)))
	return buildAndRender(g, b.Build)
}

func (g *Generator) createDeleteAll() (string, error) {
	return buildAndRender(g, sqlast.NewDelete().From(g.table()).Build)
}

// buildAndRender renders the result of a builder's Build method.
func buildAndRender[S sqlast.Statement](g *Generator, build func() (S, error)) (string, error) {
	stmt, err := build()
	if err != nil {
		return "", err
	}
	return g.render(stmt)
}
