package sqlast

// Condition is a boolean predicate used in WHERE and JOIN ... ON clauses.
type Condition interface {
	Segment
	condition()
}

// Comparison is left <comparator> right.
type Comparison struct {
	Left       Expression
	Comparator string
	Right      Expression
}

// In is left [NOT] IN (values). Rendering an empty value list yields a
// constant condition so the SQL stays valid.
type In struct {
	Left    Expression
	Values  []Expression
	Negated bool
}

// IsNull is expr IS [NOT] NULL.
type IsNull struct {
	Expr    Expression
	Negated bool
}

// Like is left [NOT] LIKE right.
type Like struct {
	Left    Expression
	Right   Expression
	Negated bool
}

// Between is expr [NOT] BETWEEN begin AND end.
type Between struct {
	Expr    Expression
	Begin   Expression
	End     Expression
	Negated bool
}

// AndCondition joins two conditions with AND.
type AndCondition struct {
	Left  Condition
	Right Condition
}

// OrCondition joins two conditions with OR.
type OrCondition struct {
	Left  Condition
	Right Condition
}

// NestedCondition always renders in parentheses.
type NestedCondition struct {
	Inner Condition
}

// NotCondition negates a condition that has no dedicated negated form.
type NotCondition struct {
	Inner Condition
}

// ConstantCondition renders verbatim, e.g. 1 = 1.
type ConstantCondition struct {
	SQL string
}

// IsEqual compares two arbitrary expressions.
func IsEqual(left, right Expression) Condition {
	return Comparison{Left: left, Comparator: "=", Right: right}
}

// And folds conditions left to right with AND.
func And(first Condition, rest ...Condition) Condition {
	result := first
	for _, c := range rest {
		if c == nil {
			continue
		}
		if result == nil {
			result = c
			continue
		}
		result = AndCondition{Left: result, Right: c}
	}
	return result
}

// Or folds conditions left to right with OR.
func Or(first Condition, rest ...Condition) Condition {
	result := first
	for _, c := range rest {
		if c == nil {
			continue
		}
		if result == nil {
			result = c
			continue
		}
		result = OrCondition{Left: result, Right: c}
	}
	return result
}

// Not negates c. Conditions with a native negated form flip their flag
// instead of being wrapped, so Not(col.IsNull()) renders IS NOT NULL.
func Not(c Condition) Condition {
	switch v := c.(type) {
	case IsNull:
		v.Negated = !v.Negated
		return v
	case In:
		v.Negated = !v.Negated
		return v
	case Like:
		v.Negated = !v.Negated
		return v
	case Between:
		v.Negated = !v.Negated
		return v
	case NotCondition:
		return v.Inner
	default:
		return NotCondition{Inner: c}
	}
}

// Nest groups c in parentheses.
func Nest(c Condition) Condition {
	return NestedCondition{Inner: c}
}

// Just creates a condition from raw SQL.
func Just(sql string) Condition {
	return ConstantCondition{SQL: sql}
}

func (Comparison) segment()        {}
func (In) segment()                {}
func (IsNull) segment()            {}
func (Like) segment()              {}
func (Between) segment()           {}
func (AndCondition) segment()      {}
func (OrCondition) segment()       {}
func (NestedCondition) segment()   {}
func (NotCondition) segment()      {}
func (ConstantCondition) segment() {}

func (Comparison) condition()        {}
func (In) condition()                {}
func (IsNull) condition()            {}
func (Like) condition()              {}
func (Between) condition()           {}
func (AndCondition) condition()      {}
func (OrCondition) condition()       {}
func (NestedCondition) condition()   {}
func (NotCondition) condition()      {}
func (ConstantCondition) condition() {}
