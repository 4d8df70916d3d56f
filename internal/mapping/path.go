package mapping

import (
	"fmt"
	"reflect"
	"strings"

	"relgen/internal/identifier"
)

// pathNode is one entry of a path arena. The root has parent -1.
type pathNode struct {
	parent   int
	property *Property
	entity   *Entity // leaf entity; nil for simple and array leaves
	length   int
	dotPath  string
	children []int

	table  TableInfo
	column ColumnInfo
}

// pathTree holds every path of one aggregate in pre-order.
type pathTree struct {
	root  *Entity
	nodes []pathNode
	byDot map[string]int
}

// Path is an aggregate path: a navigable sequence of properties from an
// aggregate root. The zero value is invalid; obtain paths from a Context.
// Paths are immutable values and safe to share.
type Path struct {
	tree *pathTree
	idx  int
}

func (c *Context) buildTree(root *Entity) (*pathTree, error) {
	t := &pathTree{
		root:  root,
		nodes: []pathNode{{parent: -1, entity: root}},
		byDot: map[string]int{"": 0},
	}

	var visit func(idx int, ancestors []*Entity) error
	visit = func(idx int, ancestors []*Entity) error {
		parent := t.nodes[idx]
		for _, prop := range parent.entity.Properties {
			child := pathNode{
				parent:   idx,
				property: prop,
				length:   parent.length + 1,
				dotPath:  prop.Name,
			}
			if parent.dotPath != "" {
				child.dotPath = parent.dotPath + "." + prop.Name
			}
			if prop.Kind.IsEntity() {
				target, err := c.Entity(prop.Target)
				if err != nil {
					return fmt.Errorf("%s: %w", child.dotPath, err)
				}
				for _, a := range ancestors {
					if a == target {
						return fmt.Errorf("%w: %s.%s leads back to %s", ErrCyclicAggregate, root.Name, child.dotPath, target.Name)
					}
				}
				child.entity = target
			}
			t.nodes = append(t.nodes, child)
			ci := len(t.nodes) - 1
			t.nodes[idx].children = append(t.nodes[idx].children, ci)
			t.byDot[child.dotPath] = ci
			if child.entity != nil {
				if err := visit(ci, append(ancestors[:len(ancestors):len(ancestors)], child.entity)); err != nil {
					return err
				}
			}
		}
		return nil
	}
	if err := visit(0, []*Entity{root}); err != nil {
		return nil, err
	}
	if err := c.computeInfos(t); err != nil {
		return nil, err
	}
	return t, nil
}

func (p Path) node() *pathNode {
	return &p.tree.nodes[p.idx]
}

func (p Path) at(idx int) Path {
	return Path{tree: p.tree, idx: idx}
}

// IsValid reports whether the path was obtained from a Context.
func (p Path) IsValid() bool {
	return p.tree != nil
}

// IsRoot reports the empty path of the aggregate root.
func (p Path) IsRoot() bool {
	return p.idx == 0
}

// Parent returns the path without its last property.
func (p Path) Parent() (Path, bool) {
	if p.IsRoot() {
		return Path{}, false
	}
	return p.at(p.node().parent), true
}

func (p Path) mustParent() Path {
	parent, _ := p.Parent()
	return parent
}

// Length is the number of properties; zero for the root.
func (p Path) Length() int {
	return p.node().length
}

// Leaf is the last property, nil for the root.
func (p Path) Leaf() *Property {
	return p.node().property
}

// LeafEntity is the entity at the end of the path, nil when the leaf is a
// simple or array property.
func (p Path) LeafEntity() *Entity {
	return p.node().entity
}

// RootEntity is the aggregate root.
func (p Path) RootEntity() *Entity {
	return p.tree.root
}

// IsEntity reports the root and paths ending in an entity-valued property,
// embedded values included.
func (p Path) IsEntity() bool {
	return p.IsRoot() || p.Leaf().Kind.IsEntity()
}

func (p Path) IsEmbedded() bool {
	return !p.IsRoot() && p.Leaf().Kind == Embedded
}

func (p Path) IsCollectionLike() bool {
	return !p.IsRoot() && p.Leaf().IsCollectionLike()
}

func (p Path) IsQualified() bool {
	return !p.IsRoot() && p.Leaf().IsQualified()
}

// IsOrdered reports list paths, whose qualifier is an index.
func (p Path) IsOrdered() bool {
	return !p.IsRoot() && p.Leaf().Kind == List
}

func (p Path) IsMap() bool {
	return !p.IsRoot() && p.Leaf().Kind == Map
}

// IsMultiValued reports paths that cross a collection or map anywhere between
// the root and the leaf.
func (p Path) IsMultiValued() bool {
	for q := p; !q.IsRoot(); q = q.mustParent() {
		if q.Leaf().IsCollectionLike() || q.Leaf().IsQualified() {
			return true
		}
	}
	return false
}

// HasIDProperty reports whether the leaf entity has an id.
func (p Path) HasIDProperty() bool {
	e := p.LeafEntity()
	return e != nil && e.HasID()
}

// IDDefiningParent is the nearest proper ancestor that is the root or has an
// id. The root is its own id-defining parent.
func (p Path) IDDefiningParent() Path {
	return p.at(idDefiningParent(p.tree, p.idx))
}

func idDefiningParent(t *pathTree, idx int) int {
	if idx == 0 {
		return 0
	}
	for a := t.nodes[idx].parent; ; a = t.nodes[a].parent {
		if a == 0 || (t.nodes[a].entity != nil && t.nodes[a].entity.HasID()) {
			return a
		}
	}
}

// TableOwner is the nearest path, the path itself included, whose leaf has a
// table of its own: the root or a non-embedded entity.
func (p Path) TableOwner() Path {
	return p.at(tableOwner(p.tree, p.idx))
}

func tableOwner(t *pathTree, idx int) int {
	for i := idx; ; i = t.nodes[i].parent {
		n := t.nodes[i]
		if i == 0 || (n.property.Kind.IsEntity() && n.property.Kind != Embedded) {
			return i
		}
	}
}

// TableAncestor is the table owner of the parent path: the nearest ancestor
// with a table, skipping embedded values. The root is its own table ancestor.
func (p Path) TableAncestor() Path {
	if p.IsRoot() {
		return p
	}
	return p.mustParent().TableOwner()
}

// TableInfo describes the table the path's values live in.
func (p Path) TableInfo() TableInfo {
	return p.node().table
}

// ColumnInfo describes the column of a non-root path.
func (p Path) ColumnInfo() ColumnInfo {
	return p.node().column
}

// String is the dot path, empty for the root.
func (p Path) String() string {
	return p.node().dotPath
}

// Equal reports whether both paths denote the same node of the same tree.
func (p Path) Equal(q Path) bool {
	return p.tree == q.tree && p.idx == q.idx
}

// Children returns the direct child paths in declaration order.
func (p Path) Children() []Path {
	children := p.node().children
	out := make([]Path, len(children))
	for i, c := range children {
		out[i] = p.at(c)
	}
	return out
}

// Child returns the child path for a property name.
func (p Path) Child(name string) (Path, error) {
	for _, c := range p.node().children {
		if p.tree.nodes[c].property.Name == name {
			return p.at(c), nil
		}
	}
	return Path{}, fmt.Errorf("%w: %s has no property %q", ErrPathNotFound, p.describe(), name)
}

// Resolve follows a dot path relative to p.
func (p Path) Resolve(dotPath string) (Path, error) {
	if dotPath == "" {
		return p, nil
	}
	full := dotPath
	if prefix := p.String(); prefix != "" {
		full = prefix + "." + dotPath
	}
	if idx, ok := p.tree.byDot[full]; ok {
		return p.at(idx), nil
	}
	q := p
	for _, name := range strings.Split(dotPath, ".") {
		var err error
		if q, err = q.Child(name); err != nil {
			return Path{}, err
		}
	}
	return q, nil
}

// Descendants lists every path below p in depth-first pre-order, following
// declaration order.
func (p Path) Descendants() []Path {
	var out []Path
	var walk func(idx int)
	walk = func(idx int) {
		for _, c := range p.tree.nodes[idx].children {
			out = append(out, p.at(c))
			walk(c)
		}
	}
	walk(p.idx)
	return out
}

func (p Path) describe() string {
	if p.IsRoot() {
		return p.tree.root.Name
	}
	return p.tree.root.Name + "." + p.String()
}

// FieldValue follows the path's struct fields from a root value. It returns
// false when a nil pointer interrupts the walk or the path crosses a
// collection.
func (p Path) FieldValue(root reflect.Value) (reflect.Value, bool) {
	if p.IsRoot() {
		return root, true
	}
	var chain []*Property
	for q := p; !q.IsRoot(); q = q.mustParent() {
		prop := q.Leaf()
		if prop.index == nil || (q != p && !q.IsEntity()) {
			return reflect.Value{}, false
		}
		if q != p && (prop.IsCollectionLike() || prop.IsQualified()) {
			return reflect.Value{}, false
		}
		chain = append(chain, prop)
	}
	v := root
	for i := len(chain) - 1; i >= 0; i-- {
		for v.Kind() == reflect.Pointer {
			if v.IsNil() {
				return reflect.Value{}, false
			}
			v = v.Elem()
		}
		if v.Kind() != reflect.Struct {
			return reflect.Value{}, false
		}
		v = v.FieldByIndex(chain[i].index)
	}
	return v, true
}

// TableInfo describes the table of a path's table owner.
type TableInfo struct {
	// QualifiedTableName is the schema-qualified table name.
	QualifiedTableName identifier.SQLIdentifier
	// TableAlias is empty for the root table.
	TableAlias identifier.SQLIdentifier
	// ReverseColumn is the back-reference to the id-defining parent; empty for
	// the root table.
	ReverseColumn ColumnInfo
	// QualifierColumn is the list index or map key column of qualified paths.
	QualifierColumn ColumnInfo
	// IDColumn is empty when the table's entity has no id.
	IDColumn identifier.SQLIdentifier
	// EffectiveIDColumn identifies rows of the table: the id column of the
	// root table, the back-reference column otherwise.
	EffectiveIDColumn identifier.SQLIdentifier
}

// HasReverseColumn reports whether the table refers back to a parent.
func (t TableInfo) HasReverseColumn() bool {
	return !t.ReverseColumn.Name.IsEmpty()
}

// HasQualifierColumn reports whether the path carries an index or key column.
func (t TableInfo) HasQualifierColumn() bool {
	return !t.QualifierColumn.Name.IsEmpty()
}

// ColumnInfo is a column name and the alias it is selected under.
type ColumnInfo struct {
	Name  identifier.SQLIdentifier
	Alias identifier.SQLIdentifier
}

// computeInfos fills table and column info for every node. Nodes are in
// pre-order, so parents are computed before their children.
func (c *Context) computeInfos(t *pathTree) error {
	aliases := make([]string, len(t.nodes))
	collisions := c.namer.NewCollisionResolver()

	for i := range t.nodes {
		n := &t.nodes[i]
		if i > 0 {
			aliases[i] = assembleAlias(t, aliases, i)
		}

		owner := tableOwner(t, i)
		ownerNode := t.nodes[owner]
		ownerAlias := ""
		if owner != 0 {
			ownerAlias = aliases[owner]
		}

		info := TableInfo{QualifiedTableName: ownerNode.entity.TableName()}
		if owner != 0 {
			info.TableAlias = c.ident(ownerAlias)
			parentEntity := t.nodes[idDefiningParent(t, owner)].entity
			reverse := ownerNode.property.IDColumn
			if reverse == "" {
				reverse = c.namer.ReverseColumnName(parentEntity.Table)
			}
			name := c.ident(reverse)
			info.ReverseColumn = ColumnInfo{Name: name, Alias: prefixAlias(ownerAlias, name)}
		}
		if i > 0 && n.property.IsQualified() {
			key := n.property.KeyColumn
			if key == "" {
				parentOwner := t.nodes[tableOwner(t, n.parent)].entity
				key = c.namer.KeyColumnName(c.namer.ReverseColumnName(parentOwner.Table))
			}
			info.QualifierColumn = ColumnInfo{Name: c.ident(key), Alias: c.ident(key)}
		}
		if id := ownerNode.entity.IDProperty(); id != nil {
			info.IDColumn = id.ColumnName()
		}
		if owner == 0 {
			info.EffectiveIDColumn = info.IDColumn
		} else {
			info.EffectiveIDColumn = info.ReverseColumn.Name
		}
		n.table = info

		if i == 0 || n.property.Kind.IsEntity() {
			continue
		}
		colName := n.property.ColumnName()
		if prefix := embeddedPrefix(t, i); prefix != "" {
			colName = colName.Transform(func(s string) string { return prefix + s })
		}
		n.column = ColumnInfo{Name: colName, Alias: prefixAlias(ownerAlias, colName)}

		scope := fmt.Sprintf("%d", owner)
		if existing, collided := collisions.RegisterColumn(scope, colName.Reference(), n.dotPath); collided {
			return fmt.Errorf("%w: %s: %s and %s both map to column %s",
				ErrInvalidMapping, t.root.Name, existing, n.dotPath, colName.Reference())
		}
	}
	return nil
}

// assembleAlias builds the table alias of node i: the property name (or the
// embedded prefix) at depth one, otherwise appended to the parent's alias,
// separated by "_" unless the parent is embedded.
func assembleAlias(t *pathTree, aliases []string, i int) string {
	n := t.nodes[i]
	prefix := n.property.Name
	if n.property.Kind == Embedded {
		prefix = n.property.EmbeddedPrefix
	}
	if n.length == 1 {
		return prefix
	}
	parent := t.nodes[n.parent]
	if parent.property.Kind == Embedded {
		return aliases[n.parent] + prefix
	}
	return aliases[n.parent] + "_" + prefix
}

// embeddedPrefix composes the prefixes of the embedded ancestors directly
// above node i, outermost first.
func embeddedPrefix(t *pathTree, i int) string {
	var prefix string
	for a := t.nodes[i].parent; a > 0; a = t.nodes[a].parent {
		prop := t.nodes[a].property
		if prop.Kind != Embedded {
			break
		}
		prefix = prop.EmbeddedPrefix + prefix
	}
	return prefix
}

func prefixAlias(alias string, name identifier.SQLIdentifier) identifier.SQLIdentifier {
	if alias == "" {
		return name
	}
	return name.Transform(func(s string) string { return alias + "_" + s })
}
