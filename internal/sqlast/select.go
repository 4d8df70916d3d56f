package sqlast

import "fmt"

// JoinType selects the JOIN keyword.
type JoinType int

const (
	InnerJoin JoinType = iota
	LeftOuterJoin
	RightOuterJoin
	FullOuterJoin
)

func (j JoinType) String() string {
	switch j {
	case LeftOuterJoin:
		return "LEFT OUTER JOIN"
	case RightOuterJoin:
		return "RIGHT OUTER JOIN"
	case FullOuterJoin:
		return "FULL OUTER JOIN"
	default:
		return "JOIN"
	}
}

// Join is one JOIN clause.
type Join struct {
	Type  JoinType
	Table TableLike
	On    Condition
}

func (Join) segment() {}

// LockMode requests a pessimistic lock on selected rows.
type LockMode int

const (
	LockNone LockMode = iota
	LockPessimisticRead
	LockPessimisticWrite
)

func (m LockMode) String() string {
	switch m {
	case LockPessimisticRead:
		return "pessimistic_read"
	case LockPessimisticWrite:
		return "pessimistic_write"
	default:
		return "none"
	}
}

// Select is an immutable SELECT statement.
type Select struct {
	distinct   bool
	projection []Expression
	from       []TableLike
	joins      []Join
	where      Condition
	orderBy    []OrderByField
	limit      int64
	offset     int64
	hasLimit   bool
	hasOffset  bool
	lock       LockMode
}

func (s Select) Distinct() bool           { return s.distinct }
func (s Select) Projection() []Expression { return s.projection }
func (s Select) From() []TableLike        { return s.from }
func (s Select) Joins() []Join            { return s.joins }
func (s Select) Where() Condition         { return s.where }
func (s Select) OrderBy() []OrderByField  { return s.orderBy }
func (s Select) Limit() (int64, bool)     { return s.limit, s.hasLimit }
func (s Select) Offset() (int64, bool)    { return s.offset, s.hasOffset }
func (s Select) LockMode() LockMode       { return s.lock }

func (Select) segment()   {}
func (Select) statement() {}

// SelectBuilder accumulates the parts of a Select.
type SelectBuilder struct {
	s Select
}

// NewSelect starts a select with the given projection.
func NewSelect(exprs ...Expression) *SelectBuilder {
	b := &SelectBuilder{}
	return b.Select(exprs...)
}

// Select appends projected expressions.
func (b *SelectBuilder) Select(exprs ...Expression) *SelectBuilder {
	b.s.projection = append(b.s.projection, exprs...)
	return b
}

func (b *SelectBuilder) Distinct() *SelectBuilder {
	b.s.distinct = true
	return b
}

// From appends FROM tables.
func (b *SelectBuilder) From(tables ...TableLike) *SelectBuilder {
	b.s.from = append(b.s.from, tables...)
	return b
}

func (b *SelectBuilder) Join(t TableLike, on Condition) *SelectBuilder {
	return b.JoinOfType(InnerJoin, t, on)
}

func (b *SelectBuilder) LeftOuterJoin(t TableLike, on Condition) *SelectBuilder {
	return b.JoinOfType(LeftOuterJoin, t, on)
}

func (b *SelectBuilder) JoinOfType(kind JoinType, t TableLike, on Condition) *SelectBuilder {
	b.s.joins = append(b.s.joins, Join{Type: kind, Table: t, On: on})
	return b
}

// Where replaces the WHERE condition.
func (b *SelectBuilder) Where(c Condition) *SelectBuilder {
	b.s.where = c
	return b
}

// And combines c with the current WHERE condition.
func (b *SelectBuilder) And(c Condition) *SelectBuilder {
	b.s.where = And(b.s.where, c)
	return b
}

// Or combines c with the current WHERE condition.
func (b *SelectBuilder) Or(c Condition) *SelectBuilder {
	b.s.where = Or(b.s.where, c)
	return b
}

func (b *SelectBuilder) OrderBy(fields ...OrderByField) *SelectBuilder {
	b.s.orderBy = append(b.s.orderBy, fields...)
	return b
}

func (b *SelectBuilder) Limit(n int64) *SelectBuilder {
	b.s.limit, b.s.hasLimit = n, true
	return b
}

func (b *SelectBuilder) Offset(n int64) *SelectBuilder {
	b.s.offset, b.s.hasOffset = n, true
	return b
}

func (b *SelectBuilder) LimitOffset(limit, offset int64) *SelectBuilder {
	return b.Limit(limit).Offset(offset)
}

func (b *SelectBuilder) Lock(mode LockMode) *SelectBuilder {
	b.s.lock = mode
	return b
}

// Build freezes the builder. The builder may keep being used; the returned
// Select does not share its slices.
func (b *SelectBuilder) Build() (Select, error) {
	if len(b.s.projection) == 0 {
		return Select{}, fmt.Errorf("%w: select requires at least one projected expression", ErrIncompleteStatement)
	}
	if len(b.s.from) == 0 {
		return Select{}, fmt.Errorf("%w: select requires a FROM table", ErrIncompleteStatement)
	}
	s := b.s
	s.projection = append([]Expression(nil), b.s.projection...)
	s.from = append([]TableLike(nil), b.s.from...)
	s.joins = append([]Join(nil), b.s.joins...)
	s.orderBy = append([]OrderByField(nil), b.s.orderBy...)
	return s, nil
}
