package sqlast

import "fmt"

// Insert is an immutable INSERT statement.
type Insert struct {
	into    Table
	columns []Column
	values  []Expression
}

func (i Insert) Into() Table          { return i.into }
func (i Insert) Columns() []Column    { return i.columns }
func (i Insert) Values() []Expression { return i.values }

func (Insert) segment()   {}
func (Insert) statement() {}

// InsertBuilder accumulates the parts of an Insert.
type InsertBuilder struct {
	i       Insert
	hasInto bool
}

func NewInsert() *InsertBuilder {
	return &InsertBuilder{}
}

func (b *InsertBuilder) Into(t Table) *InsertBuilder {
	b.i.into, b.hasInto = t, true
	return b
}

func (b *InsertBuilder) Columns(cols ...Column) *InsertBuilder {
	b.i.columns = append(b.i.columns, cols...)
	return b
}

func (b *InsertBuilder) Values(exprs ...Expression) *InsertBuilder {
	b.i.values = append(b.i.values, exprs...)
	return b
}

// Build freezes the insert. An insert without columns and values renders
// the dialect's default-values form.
func (b *InsertBuilder) Build() (Insert, error) {
	if !b.hasInto {
		return Insert{}, fmt.Errorf("%w: insert requires a target table", ErrIncompleteStatement)
	}
	if len(b.i.columns) > 0 && len(b.i.values) > 0 && len(b.i.columns) != len(b.i.values) {
		return Insert{}, fmt.Errorf("%w: insert has %d columns but %d values",
			ErrIncompleteStatement, len(b.i.columns), len(b.i.values))
	}
	i := b.i
	i.columns = append([]Column(nil), b.i.columns...)
	i.values = append([]Expression(nil), b.i.values...)
	return i, nil
}

// Update is an immutable UPDATE statement.
type Update struct {
	table       Table
	assignments []Assignment
	where       Condition
}

func (u Update) Table() Table              { return u.table }
func (u Update) Assignments() []Assignment { return u.assignments }
func (u Update) Where() Condition          { return u.where }

func (Update) segment()   {}
func (Update) statement() {}

// UpdateBuilder accumulates the parts of an Update.
type UpdateBuilder struct {
	u Update
}

func NewUpdate(t Table) *UpdateBuilder {
	return &UpdateBuilder{u: Update{table: t}}
}

func (b *UpdateBuilder) Set(assignments ...Assignment) *UpdateBuilder {
	b.u.assignments = append(b.u.assignments, assignments...)
	return b
}

func (b *UpdateBuilder) Where(c Condition) *UpdateBuilder {
	b.u.where = c
	return b
}

func (b *UpdateBuilder) And(c Condition) *UpdateBuilder {
	b.u.where = And(b.u.where, c)
	return b
}

func (b *UpdateBuilder) Build() (Update, error) {
	if len(b.u.assignments) == 0 {
		return Update{}, fmt.Errorf("%w: update requires at least one assignment", ErrIncompleteStatement)
	}
	u := b.u
	u.assignments = append([]Assignment(nil), b.u.assignments...)
	return u, nil
}

// Delete is an immutable DELETE statement.
type Delete struct {
	from  Table
	where Condition
}

func (d Delete) From() Table      { return d.from }
func (d Delete) Where() Condition { return d.where }

func (Delete) segment()   {}
func (Delete) statement() {}

// DeleteBuilder accumulates the parts of a Delete.
type DeleteBuilder struct {
	d       Delete
	hasFrom bool
}

func NewDelete() *DeleteBuilder {
	return &DeleteBuilder{}
}

func (b *DeleteBuilder) From(t Table) *DeleteBuilder {
	b.d.from, b.hasFrom = t, true
	return b
}

func (b *DeleteBuilder) Where(c Condition) *DeleteBuilder {
	b.d.where = c
	return b
}

func (b *DeleteBuilder) And(c Condition) *DeleteBuilder {
	b.d.where = And(b.d.where, c)
	return b
}

func (b *DeleteBuilder) Build() (Delete, error) {
	if !b.hasFrom {
		return Delete{}, fmt.Errorf("%w: delete requires a target table", ErrIncompleteStatement)
	}
	return b.d, nil
}
