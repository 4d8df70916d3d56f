// Package sqlrender renders sqlast statements into SQL text. Dialect-specific
// parts (limit/offset, locks, null ordering, default-values inserts) come from
// the render context.
package sqlrender

import (
	"strings"

	"relgen/internal/identifier"
	"relgen/internal/sqlast"
)

// NamingStrategy maps unquoted table and column names before they are
// rendered. Quoted identifiers are left to the identifier processing.
type NamingStrategy struct {
	name    string
	mapping func(string) string
}

// AsIs renders names unchanged.
func AsIs() NamingStrategy { return NamingStrategy{name: "as_is"} }

// ToUpper upper-cases names.
func ToUpper() NamingStrategy { return NamingStrategy{name: "upper", mapping: strings.ToUpper} }

// ToLower lower-cases names.
func ToLower() NamingStrategy { return NamingStrategy{name: "lower", mapping: strings.ToLower} }

// MapWith applies fn to every name.
func MapWith(fn func(string) string) NamingStrategy {
	return NamingStrategy{name: "custom", mapping: fn}
}

// ParseNamingStrategy resolves a configuration value.
func ParseNamingStrategy(value string) (NamingStrategy, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "as_is", "asis":
		return AsIs(), true
	case "upper", "to_upper":
		return ToUpper(), true
	case "lower", "to_lower":
		return ToLower(), true
	default:
		return AsIs(), false
	}
}

func (n NamingStrategy) String() string {
	if n.name == "" {
		return "as_is"
	}
	return n.name
}

// Apply maps the unquoted parts of id.
func (n NamingStrategy) Apply(id identifier.SQLIdentifier) identifier.SQLIdentifier {
	if n.mapping == nil {
		return id
	}
	return id.TransformUnquoted(n.mapping)
}

// SelectRenderContext supplies the dialect-specific parts of a SELECT.
type SelectRenderContext interface {
	// AfterFromTable is appended right after the FROM table list.
	AfterFromTable(sel sqlast.Select) string
	// AfterOrderBy is appended after the ORDER BY clause (or where it would be).
	AfterOrderBy(sel sqlast.Select) string
	// OrderByNulls renders null handling for one ORDER BY field.
	OrderByNulls(h sqlast.NullHandling) string
}

// InsertRenderContext supplies the dialect-specific parts of an INSERT.
type InsertRenderContext interface {
	// DefaultValuesInsertPart is appended to INSERT INTO t when there are no columns.
	DefaultValuesInsertPart() string
}

// Context is everything a Renderer needs besides the statement.
type Context struct {
	Naming     NamingStrategy
	Processing identifier.Processing
	Select     SelectRenderContext
	Insert     InsertRenderContext
}

// DefaultContext renders ANSI SQL without limit or lock support.
func DefaultContext() Context {
	return Context{
		Naming:     AsIs(),
		Processing: identifier.ANSI,
		Select:     StandardSelectContext{},
		Insert:     StandardInsertContext{},
	}
}

// WithNaming returns a copy of the default context with a naming strategy.
func WithNaming(n NamingStrategy) Context {
	ctx := DefaultContext()
	ctx.Naming = n
	return ctx
}

// StandardSelectContext renders SQL standard null ordering and nothing else.
type StandardSelectContext struct{}

func (StandardSelectContext) AfterFromTable(sqlast.Select) string { return "" }
func (StandardSelectContext) AfterOrderBy(sqlast.Select) string   { return "" }

func (StandardSelectContext) OrderByNulls(h sqlast.NullHandling) string {
	switch h {
	case sqlast.NullsFirst:
		return " NULLS FIRST"
	case sqlast.NullsLast:
		return " NULLS LAST"
	default:
		return ""
	}
}

// StandardInsertContext renders VALUES (DEFAULT) for column-less inserts.
type StandardInsertContext struct{}

func (StandardInsertContext) DefaultValuesInsertPart() string { return " VALUES (DEFAULT)" }
