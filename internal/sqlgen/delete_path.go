package sqlgen

import (
	"relgen/internal/mapping"
	"relgen/internal/sqlast"
)

// rootCondition restricts a back-reference column to the addressed roots.
type rootCondition func(filter sqlast.Column) sqlast.Condition

// DeleteAllByPath deletes the rows stored at path for every aggregate root.
func (g *Generator) DeleteAllByPath(path mapping.Path) (string, error) {
	return g.deleteByPathAndCriteria(path, func(filter sqlast.Column) sqlast.Condition {
		return filter.IsNotNull()
	})
}

// DeleteByPath deletes the rows stored at path for the root identified by
// :rootId.
func (g *Generator) DeleteByPath(path mapping.Path) (string, error) {
	return g.deleteByPathAndCriteria(path, func(filter sqlast.Column) sqlast.Condition {
		return filter.IsEqualTo(sqlast.NamedBindMarker(RootIDParameter))
	})
}

// DeleteInByPath deletes the rows stored at path for the roots whose ids are
// in :ids.
func (g *Generator) DeleteInByPath(path mapping.Path) (string, error) {
	return g.deleteByPathAndCriteria(path, func(filter sqlast.Column) sqlast.Condition {
		return filter.In(sqlast.NamedBindMarker(IDsParameter))
	})
}

// deleteByPathAndCriteria deletes from the table of path. Tables directly
// below the root are filtered by the root condition on their back-reference.
// Deeper tables are filtered through one IN (SELECT id ...) per ancestor table
// with an id; ancestors without an id share the back-reference of their
// id-defining parent and add no subselect. Embedded levels own no table and
// are skipped.
func (g *Generator) deleteByPathAndCriteria(path mapping.Path, root rootCondition) (string, error) {
	if !path.IsValid() {
		return "", g.illegal("invalid path")
	}
	if path.RootEntity() != g.entity {
		return "", g.illegal("path %q belongs to %s", path.String(), path.RootEntity().Name)
	}
	if path.IsRoot() || !path.IsEntity() || path.IsEmbedded() {
		return "", g.illegal("path %q does not address a table of its own", path.String())
	}

	t := sqlast.NewTable(path.TableInfo().QualifiedTableName)
	filter := t.ColumnOf(path.TableInfo().ReverseColumn.Name)

	var where sqlast.Condition
	if isFirstNonRoot(path) {
		where = root(filter)
	} else {
		sub, err := g.subselectCondition(path, root, filter)
		if err != nil {
			return "", err
		}
		where = sub
	}
	return buildAndRender(g, sqlast.NewDelete().From(t).Where(where).Build)
}

func (g *Generator) subselectCondition(path mapping.Path, root rootCondition, filter sqlast.Column) (sqlast.Condition, error) {
	parent := path.TableAncestor()
	if !parent.HasIDProperty() {
		if isFirstNonRoot(parent) {
			return root(filter), nil
		}
		return g.subselectCondition(parent, root, filter)
	}

	info := parent.TableInfo()
	t := sqlast.NewTable(info.QualifiedTableName)
	id := t.ColumnOf(info.IDColumn)
	selectFilter := t.ColumnOf(info.EffectiveIDColumn)

	var inner sqlast.Condition
	if isFirstNonRoot(parent) {
		inner = root(selectFilter)
	} else {
		var err error
		if inner, err = g.subselectCondition(parent, root, selectFilter); err != nil {
			return nil, err
		}
	}
	sel, err := sqlast.NewSelect(id).From(t).Where(inner).Build()
	if err != nil {
		return nil, err
	}
	return filter.In(sqlast.SubselectOf(sel)), nil
}

// isFirstNonRoot reports tables whose nearest table-owning ancestor is the
// root table.
func isFirstNonRoot(path mapping.Path) bool {
	return !path.IsRoot() && path.TableAncestor().IsRoot()
}
