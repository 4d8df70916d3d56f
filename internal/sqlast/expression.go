package sqlast

import "relgen/internal/identifier"

// Column is a column reference, optionally owned by a table and optionally
// aliased in the projection.
type Column struct {
	name  identifier.SQLIdentifier
	alias identifier.SQLIdentifier
	table TableLike
}

// ColumnOf creates a table-less column.
func ColumnOf(name identifier.SQLIdentifier) Column {
	return Column{name: name}
}

// As returns a copy with an unquoted alias.
func (c Column) As(alias string) Column {
	return c.AsIdentifier(identifier.Unquoted(alias))
}

// AsIdentifier returns a copy with the given alias.
func (c Column) AsIdentifier(alias identifier.SQLIdentifier) Column {
	c.alias = alias
	return c
}

func (c Column) Name() identifier.SQLIdentifier  { return c.name }
func (c Column) Alias() identifier.SQLIdentifier { return c.alias }
func (c Column) Table() TableLike                { return c.table }

// ReferenceName is the alias when present, the name otherwise.
func (c Column) ReferenceName() identifier.SQLIdentifier {
	if !c.alias.IsEmpty() {
		return c.alias
	}
	return c.name
}

func (c Column) IsEqualTo(e Expression) Condition {
	return c.compare("=", e)
}

func (c Column) IsNotEqualTo(e Expression) Condition {
	return c.compare("!=", e)
}

func (c Column) IsLess(e Expression) Condition {
	return c.compare("<", e)
}

func (c Column) IsLessOrEqualTo(e Expression) Condition {
	return c.compare("<=", e)
}

func (c Column) IsGreater(e Expression) Condition {
	return c.compare(">", e)
}

func (c Column) IsGreaterOrEqualTo(e Expression) Condition {
	return c.compare(">=", e)
}

func (c Column) compare(comparator string, e Expression) Condition {
	return Comparison{Left: c, Comparator: comparator, Right: e}
}

func (c Column) Like(e Expression) Condition    { return Like{Left: c, Right: e} }
func (c Column) NotLike(e Expression) Condition { return Like{Left: c, Right: e, Negated: true} }

// In matches any of values. A single Subselect value renders as IN (SELECT ...).
func (c Column) In(values ...Expression) Condition {
	return In{Left: c, Values: values}
}

func (c Column) NotIn(values ...Expression) Condition {
	return In{Left: c, Values: values, Negated: true}
}

func (c Column) IsNull() Condition    { return IsNull{Expr: c} }
func (c Column) IsNotNull() Condition { return IsNull{Expr: c, Negated: true} }

func (c Column) Between(begin, end Expression) Condition {
	return Between{Expr: c, Begin: begin, End: end}
}

func (c Column) NotBetween(begin, end Expression) Condition {
	return Between{Expr: c, Begin: begin, End: end, Negated: true}
}

// Set creates an assignment for UPDATE statements.
func (c Column) Set(value Expression) Assignment {
	return Assignment{Column: c, Value: value}
}

func (Column) segment()    {}
func (Column) expression() {}

// BindMarker is a parameter placeholder. Named markers render as :name,
// anonymous ones as ?.
type BindMarker struct {
	Name string
}

// NamedBindMarker creates a :name placeholder.
func NamedBindMarker(name string) BindMarker {
	return BindMarker{Name: name}
}

// AnonymousBindMarker creates a ? placeholder.
func AnonymousBindMarker() BindMarker {
	return BindMarker{}
}

func (BindMarker) segment()    {}
func (BindMarker) expression() {}

// Literal is an inline value: numbers and booleans verbatim, strings quoted,
// nil as NULL.
type Literal struct {
	Value any
}

func LiteralOf(v any) Literal { return Literal{Value: v} }

func (Literal) segment()    {}
func (Literal) expression() {}

// SimpleFunction is a function call such as COUNT(*).
type SimpleFunction struct {
	FunctionName string
	Args         []Expression
	alias        identifier.SQLIdentifier
}

// Count creates COUNT(args). With no arguments it counts rows with *.
func Count(args ...Expression) SimpleFunction {
	if len(args) == 0 {
		args = []Expression{Asterisk{}}
	}
	return SimpleFunction{FunctionName: "COUNT", Args: args}
}

// Function creates an arbitrary function call.
func Function(name string, args ...Expression) SimpleFunction {
	return SimpleFunction{FunctionName: name, Args: args}
}

// As returns a copy aliased in the projection.
func (f SimpleFunction) As(alias string) SimpleFunction {
	f.alias = identifier.Unquoted(alias)
	return f
}

func (f SimpleFunction) Alias() identifier.SQLIdentifier { return f.alias }

func (SimpleFunction) segment()    {}
func (SimpleFunction) expression() {}

// Asterisk selects all columns, of one table when Table is set.
type Asterisk struct {
	Table TableLike
}

func (Asterisk) segment()    {}
func (Asterisk) expression() {}

// Subselect uses a select as a value, for example in IN conditions.
type Subselect struct {
	Select Select
}

func SubselectOf(sel Select) Subselect { return Subselect{Select: sel} }

func (Subselect) segment()    {}
func (Subselect) expression() {}

// Direction of an ORDER BY field.
type Direction int

const (
	DirectionDefault Direction = iota
	Asc
	Desc
)

// NullHandling of an ORDER BY field.
type NullHandling int

const (
	NullsNative NullHandling = iota
	NullsFirst
	NullsLast
)

// OrderByField is one ORDER BY entry.
type OrderByField struct {
	Expr      Expression
	Direction Direction
	Nulls     NullHandling
}

// OrderBy creates an ORDER BY entry with the database's default direction.
func OrderBy(e Expression) OrderByField {
	return OrderByField{Expr: e}
}

func (f OrderByField) Asc() OrderByField {
	f.Direction = Asc
	return f
}

func (f OrderByField) Desc() OrderByField {
	f.Direction = Desc
	return f
}

func (f OrderByField) WithNulls(n NullHandling) OrderByField {
	f.Nulls = n
	return f
}

func (OrderByField) segment() {}

// Assignment is a SET col = value pair.
type Assignment struct {
	Column Column
	Value  Expression
}

func (Assignment) segment() {}
