// Package sqlast is a small statement tree for SELECT, INSERT, UPDATE and
// DELETE. Builders accumulate parts and freeze them into immutable statement
// values with Build; package sqlrender turns those values into SQL text.
package sqlast

import (
	"errors"

	"relgen/internal/identifier"
)

// ErrIncompleteStatement is returned by Build when a required clause is missing.
var ErrIncompleteStatement = errors.New("incomplete statement")

// Segment is any node of a statement tree.
type Segment interface {
	segment()
}

// Expression is a segment that produces a value: columns, bind markers,
// literals, functions and subselects.
type Expression interface {
	Segment
	expression()
}

// Statement is a complete SQL statement.
type Statement interface {
	Segment
	statement()
}

// TableLike is anything that can appear in a FROM or JOIN clause.
type TableLike interface {
	Segment
	Name() identifier.SQLIdentifier
	// ReferenceName is the alias when present, the name otherwise.
	ReferenceName() identifier.SQLIdentifier
}

// Table is a named table, optionally aliased.
type Table struct {
	name  identifier.SQLIdentifier
	alias identifier.SQLIdentifier
}

// TableOf creates a table with an unquoted name.
func TableOf(name string) Table {
	return Table{name: identifier.Unquoted(name)}
}

// NewTable creates a table from an identifier.
func NewTable(name identifier.SQLIdentifier) Table {
	return Table{name: name}
}

// As returns an aliased copy using an unquoted alias.
func (t Table) As(alias string) Table {
	return t.AsIdentifier(identifier.Unquoted(alias))
}

// AsIdentifier returns an aliased copy.
func (t Table) AsIdentifier(alias identifier.SQLIdentifier) Table {
	t.alias = alias
	return t
}

func (t Table) Name() identifier.SQLIdentifier  { return t.name }
func (t Table) Alias() identifier.SQLIdentifier { return t.alias }

func (t Table) ReferenceName() identifier.SQLIdentifier {
	if !t.alias.IsEmpty() {
		return t.alias
	}
	return t.name
}

// Column creates a column of this table with an unquoted name.
func (t Table) Column(name string) Column {
	return Column{name: identifier.Unquoted(name), table: t}
}

// ColumnOf creates a column of this table from an identifier.
func (t Table) ColumnOf(name identifier.SQLIdentifier) Column {
	return Column{name: name, table: t}
}

// Columns creates several unquoted columns at once.
func (t Table) Columns(names ...string) []Column {
	cols := make([]Column, len(names))
	for i, name := range names {
		cols[i] = t.Column(name)
	}
	return cols
}

// Asterisk selects every column of the table.
func (t Table) Asterisk() Asterisk {
	return Asterisk{Table: t}
}

func (Table) segment() {}

// InlineQuery is a subselect used as a table: (SELECT ...) alias.
type InlineQuery struct {
	Select Select
	alias  identifier.SQLIdentifier
}

// NewInlineQuery wraps a select as an aliased derived table.
func NewInlineQuery(sel Select, alias identifier.SQLIdentifier) InlineQuery {
	return InlineQuery{Select: sel, alias: alias}
}

func (q InlineQuery) Name() identifier.SQLIdentifier          { return q.alias }
func (q InlineQuery) ReferenceName() identifier.SQLIdentifier { return q.alias }

// Column creates a column of the derived table.
func (q InlineQuery) Column(name string) Column {
	return Column{name: identifier.Unquoted(name), table: q}
}

func (InlineQuery) segment() {}
