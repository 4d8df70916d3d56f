package sqlgen

import (
	"relgen/internal/identifier"
	"relgen/internal/mapping"
	"relgen/internal/sqlast"
)

// Order sorts by one property, given as a dot path from the root entity.
type Order struct {
	Property  string
	Direction sqlast.Direction
	Nulls     sqlast.NullHandling
}

// Asc sorts ascending by property.
func Asc(property string) Order {
	return Order{Property: property, Direction: sqlast.Asc}
}

// Desc sorts descending by property.
func Desc(property string) Order {
	return Order{Property: property, Direction: sqlast.Desc}
}

// Sort is an ordered list of sort orders.
type Sort []Order

// Page selects a slice of the sorted result. Number is zero based.
type Page struct {
	Number int64
	Size   int64
	Sort   Sort
}

// Offset is the number of rows skipped before the page.
func (p Page) Offset() int64 {
	return p.Number * p.Size
}

// selectBuilder projects every column of the root table and of the singular
// references reachable from it, joining their tables. Extra key columns of the
// root table are projected last.
func (g *Generator) selectBuilder(keyColumns ...identifier.SQLIdentifier) (*sqlast.SelectBuilder, error) {
	var projection []sqlast.Expression
	var joins []join
	for _, path := range g.root.Descendants() {
		j, ok, err := g.join(path)
		if err != nil {
			return nil, err
		}
		if ok {
			joins = append(joins, j)
		}
		if col, ok := column(path); ok {
			projection = append(projection, col)
		}
	}

	t := g.table()
	for _, key := range keyColumns {
		projection = append(projection, t.ColumnOf(key).AsIdentifier(key))
	}

	b := sqlast.NewSelect(projection...).From(t)
	for _, j := range joins {
		b.LeftOuterJoin(j.table, j.on)
	}
	return b, nil
}

type join struct {
	table sqlast.Table
	on    sqlast.Condition
}

// join builds the LEFT OUTER JOIN of a singular, non-embedded reference: the
// reference's back-reference column equals the id column of its id-defining
// parent.
func (g *Generator) join(path mapping.Path) (join, bool, error) {
	if !path.IsEntity() || path.IsEmbedded() || path.IsMultiValued() {
		return join{}, false, nil
	}
	current := tableFor(path)
	parentPath := path.IDDefiningParent()
	parentID := parentPath.TableInfo().IDColumn
	if parentID.IsEmpty() {
		return join{}, false, g.illegal("cannot join %s: %s has no id column", path, parentPath.TableInfo().QualifiedTableName)
	}
	parent := tableFor(parentPath)
	on := current.ColumnOf(path.TableInfo().ReverseColumn.Name).IsEqualTo(parent.ColumnOf(parentID))
	return join{table: current, on: on}, true, nil
}

// column returns the projected column of a path. Embedded values and paths
// below collections have none. Singular references without an id project
// their back-reference column, so an absent row can be told apart from a row
// whose columns are all null.
func column(path mapping.Path) (sqlast.Column, bool) {
	if path.IsEmbedded() || path.IsMultiValued() {
		return sqlast.Column{}, false
	}
	if path.IsEntity() {
		if path.IsQualified() || path.IsCollectionLike() || path.HasIDProperty() {
			return sqlast.Column{}, false
		}
		reverse := path.TableInfo().ReverseColumn
		return tableFor(path).ColumnOf(reverse.Name).AsIdentifier(reverse.Alias), true
	}
	info := path.ColumnInfo()
	return tableFor(path).ColumnOf(info.Name).AsIdentifier(info.Alias), true
}

func (g *Generator) createFindAll() (string, error) {
	b, err := g.selectBuilder()
	if err != nil {
		return "", err
	}
	return buildAndRender(g, b.Build)
}

func (g *Generator) createFindOne() (string, error) {
	id, err := g.idColumn()
	if err != nil {
		return "", err
	}
	b, err := g.selectBuilder()
	if err != nil {
		return "", err
	}
	b.Where(id.IsEqualTo(sqlast.NamedBindMarker(IDParameter)))
	return buildAndRender(g, b.Build)
}

func (g *Generator) createFindAllInList() (string, error) {
	id, err := g.idColumn()
	if err != nil {
		return "", err
	}
	b, err := g.selectBuilder()
	if err != nil {
		return "", err
	}
	b.Where(id.In(sqlast.NamedBindMarker(IDsParameter)))
	return buildAndRender(g, b.Build)
}

// FindAllByProperty selects the rows that belong to a parent: every part of
// the parent identifier becomes a "column = :column" condition. A non-empty
// keyColumn is projected, and the result is ordered by it when ordered is
// set. Ordering without a key column is an ErrIllegalArgument.
func (g *Generator) FindAllByProperty(parent mapping.Identifier, keyColumn identifier.SQLIdentifier, ordered bool) (string, error) {
	if ordered && keyColumn.IsEmpty() {
		return "", g.illegal("an ordered select needs a key column to order by")
	}
	var keys []identifier.SQLIdentifier
	if !keyColumn.IsEmpty() {
		keys = append(keys, keyColumn)
	}
	b, err := g.selectBuilder(keys...)
	if err != nil {
		return "", err
	}
	t := g.table()
	for _, part := range parent.Parts() {
		b.And(t.ColumnOf(part.Name).IsEqualTo(bindMarker(part.Name)))
	}
	if ordered {
		b.OrderBy(sqlast.OrderBy(t.ColumnOf(keyColumn).AsIdentifier(keyColumn)))
	}
	return buildAndRender(g, b.Build)
}

// FindAllByPath selects the entities of a collection or reference path that
// belong to a parent. The path must lead to this generator's entity; its
// qualifier column and ordering are taken from the path.
func (g *Generator) FindAllByPath(parent mapping.Identifier, path mapping.Path) (string, error) {
	if !path.IsValid() {
		return "", g.illegal("invalid path")
	}
	if path.IsRoot() || path.LeafEntity() != g.entity {
		return "", g.illegal("path %q does not lead to this entity", path.String())
	}
	return g.FindAllByProperty(parent, path.TableInfo().QualifierColumn.Name, path.IsOrdered())
}

// FindAllSorted selects every row ordered by sort.
func (g *Generator) FindAllSorted(sort Sort) (string, error) {
	b, err := g.selectBuilder()
	if err != nil {
		return "", err
	}
	if err := g.applySort(b, sort); err != nil {
		return "", err
	}
	return buildAndRender(g, b.Build)
}

// FindAllPaged selects one page of rows using the dialect's limit clause.
func (g *Generator) FindAllPaged(page Page) (string, error) {
	if page.Size <= 0 || page.Number < 0 {
		return "", g.illegal("invalid page %d of size %d", page.Number, page.Size)
	}
	b, err := g.selectBuilder()
	if err != nil {
		return "", err
	}
	if err := g.applySort(b, page.Sort); err != nil {
		return "", err
	}
	b.LimitOffset(page.Size, page.Offset())
	return buildAndRender(g, b.Build)
}

func (g *Generator) applySort(b *sqlast.SelectBuilder, sort Sort) error {
	for _, o := range sort {
		path, err := g.root.Resolve(o.Property)
		if err != nil {
			return g.illegal("cannot sort by %q: %v", o.Property, err)
		}
		if path.IsRoot() || path.IsEntity() || path.IsMultiValued() {
			return g.illegal("cannot sort by %q: not a single column", o.Property)
		}
		col := tableFor(path).ColumnOf(path.ColumnInfo().Name)
		b.OrderBy(sqlast.OrderByField{Expr: col, Direction: o.Direction, Nulls: o.Nulls})
	}
	return nil
}

// AcquireLockByID selects the id of the row identified by :id, locking it.
func (g *Generator) AcquireLockByID(mode sqlast.LockMode) (string, error) {
	id, err := g.lockableID()
	if err != nil {
		return "", err
	}
	b := sqlast.NewSelect(id).From(g.table()).
		Where(id.IsEqualTo(sqlast.NamedBindMarker(IDParameter))).
		Lock(mode)
	return buildAndRender(g, b.Build)
}

// AcquireLockAll selects and locks every id of the entity table.
func (g *Generator) AcquireLockAll(mode sqlast.LockMode) (string, error) {
	id, err := g.lockableID()
	if err != nil {
		return "", err
	}
	return buildAndRender(g, sqlast.NewSelect(id).From(g.table()).Lock(mode).Build)
}

// lockableID is the id column of a lock statement. Dialects without a lock
// clause are rejected.
func (g *Generator) lockableID() (sqlast.Column, error) {
	if !g.dialect.Lock.Supported() {
		return sqlast.Column{}, g.illegal("dialect %s cannot lock rows", g.dialect.Name)
	}
	return g.idColumn()
}
