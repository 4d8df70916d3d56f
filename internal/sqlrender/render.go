package sqlrender

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"relgen/internal/identifier"
	"relgen/internal/sqlast"
)

// ErrUnsupportedSegment is returned for segment types the renderer does not know.
var ErrUnsupportedSegment = errors.New("unsupported statement segment")

// Renderer turns statements into SQL text. It is safe for concurrent use.
type Renderer struct {
	ctx Context
}

// New creates a renderer. Missing select or insert contexts fall back to the
// standard ones.
func New(ctx Context) *Renderer {
	if ctx.Select == nil {
		ctx.Select = StandardSelectContext{}
	}
	if ctx.Insert == nil {
		ctx.Insert = StandardInsertContext{}
	}
	return &Renderer{ctx: ctx}
}

// Default creates a renderer for DefaultContext.
func Default() *Renderer {
	return New(DefaultContext())
}

// Context returns the render context.
func (r *Renderer) Context() Context {
	return r.ctx
}

// Render renders any statement.
func (r *Renderer) Render(stmt sqlast.Statement) (string, error) {
	w := &writer{ctx: r.ctx}
	switch s := stmt.(type) {
	case sqlast.Select:
		w.selectStatement(s)
	case sqlast.Insert:
		w.insertStatement(s)
	case sqlast.Update:
		w.updateStatement(s)
	case sqlast.Delete:
		w.deleteStatement(s)
	default:
		return "", fmt.Errorf("%w: %T", ErrUnsupportedSegment, stmt)
	}
	if w.err != nil {
		return "", w.err
	}
	return w.sb.String(), nil
}

// columnMode controls how a column reference is written.
type columnMode int

const (
	// qualified writes table.column.
	qualified columnMode = iota
	// projected writes table.column AS alias.
	projected
	// bare writes the column name only.
	bare
	// ordered writes the alias when there is one, table.column otherwise.
	ordered
)

type writer struct {
	ctx Context
	sb  strings.Builder
	err error
}

func (w *writer) fail(err error) {
	if w.err == nil {
		w.err = err
	}
}

func (w *writer) identifier(id identifier.SQLIdentifier) {
	w.sb.WriteString(w.ctx.Naming.Apply(id).ToSQL(w.ctx.Processing))
}

func (w *writer) selectStatement(s sqlast.Select) {
	w.sb.WriteString("SELECT ")
	if s.Distinct() {
		w.sb.WriteString("DISTINCT ")
	}
	for i, e := range s.Projection() {
		if i > 0 {
			w.sb.WriteString(", ")
		}
		w.expression(e, projected)
	}

	w.sb.WriteString(" FROM ")
	for i, t := range s.From() {
		if i > 0 {
			w.sb.WriteString(", ")
		}
		w.fromTable(t)
	}
	w.sb.WriteString(w.ctx.Select.AfterFromTable(s))

	for _, j := range s.Joins() {
		w.sb.WriteString(" ")
		w.sb.WriteString(j.Type.String())
		w.sb.WriteString(" ")
		w.fromTable(j.Table)
		if j.On != nil {
			w.sb.WriteString(" ON ")
			w.condition(j.On)
		}
	}

	if s.Where() != nil {
		w.sb.WriteString(" WHERE ")
		w.condition(s.Where())
	}

	if fields := s.OrderBy(); len(fields) > 0 {
		w.sb.WriteString(" ORDER BY ")
		for i, f := range fields {
			if i > 0 {
				w.sb.WriteString(", ")
			}
			w.orderByField(f)
		}
	}
	w.sb.WriteString(w.ctx.Select.AfterOrderBy(s))
}

func (w *writer) fromTable(t sqlast.TableLike) {
	switch v := t.(type) {
	case sqlast.Table:
		w.identifier(v.Name())
		if !v.Alias().IsEmpty() {
			w.sb.WriteString(" ")
			w.identifier(v.Alias())
		}
	case sqlast.InlineQuery:
		w.sb.WriteString("(")
		w.selectStatement(v.Select)
		w.sb.WriteString(") ")
		w.identifier(v.ReferenceName())
	default:
		w.fail(fmt.Errorf("%w: table %T", ErrUnsupportedSegment, t))
	}
}

func (w *writer) orderByField(f sqlast.OrderByField) {
	w.expression(f.Expr, ordered)
	switch f.Direction {
	case sqlast.Asc:
		w.sb.WriteString(" ASC")
	case sqlast.Desc:
		w.sb.WriteString(" DESC")
	}
	w.sb.WriteString(w.ctx.Select.OrderByNulls(f.Nulls))
}

func (w *writer) insertStatement(s sqlast.Insert) {
	w.sb.WriteString("INSERT INTO ")
	w.identifier(s.Into().Name())

	if cols := s.Columns(); len(cols) > 0 {
		w.sb.WriteString(" (")
		for i, c := range cols {
			if i > 0 {
				w.sb.WriteString(", ")
			}
			w.column(c, bare)
		}
		w.sb.WriteString(")")
	}

	values := s.Values()
	if len(values) == 0 {
		if len(s.Columns()) == 0 {
			w.sb.WriteString(w.ctx.Insert.DefaultValuesInsertPart())
		}
		return
	}
	w.sb.WriteString(" VALUES (")
	for i, v := range values {
		if i > 0 {
			w.sb.WriteString(", ")
		}
		w.expression(v, qualified)
	}
	w.sb.WriteString(")")
}

func (w *writer) updateStatement(s sqlast.Update) {
	w.sb.WriteString("UPDATE ")
	w.identifier(s.Table().Name())
	w.sb.WriteString(" SET ")
	for i, a := range s.Assignments() {
		if i > 0 {
			w.sb.WriteString(", ")
		}
		w.column(a.Column, bare)
		w.sb.WriteString(" = ")
		w.expression(a.Value, qualified)
	}
	if s.Where() != nil {
		w.sb.WriteString(" WHERE ")
		w.condition(s.Where())
	}
}

func (w *writer) deleteStatement(s sqlast.Delete) {
	w.sb.WriteString("DELETE FROM ")
	w.identifier(s.From().Name())
	if s.Where() != nil {
		w.sb.WriteString(" WHERE ")
		w.condition(s.Where())
	}
}

func (w *writer) column(c sqlast.Column, mode columnMode) {
	if mode == ordered && !c.Alias().IsEmpty() {
		w.identifier(c.Alias())
		return
	}
	if mode != bare && c.Table() != nil {
		w.identifier(c.Table().ReferenceName())
		w.sb.WriteString(".")
	}
	w.identifier(c.Name())
	if mode == projected && !c.Alias().IsEmpty() {
		w.sb.WriteString(" AS ")
		w.identifier(c.Alias())
	}
}

func (w *writer) expression(e sqlast.Expression, mode columnMode) {
	switch v := e.(type) {
	case sqlast.Column:
		w.column(v, mode)
	case sqlast.BindMarker:
		if v.Name == "" {
			w.sb.WriteString("?")
		} else {
			w.sb.WriteString(":")
			w.sb.WriteString(v.Name)
		}
	case sqlast.Literal:
		w.sb.WriteString(literal(v.Value))
	case sqlast.SimpleFunction:
		if mode == ordered && !v.Alias().IsEmpty() {
			w.identifier(v.Alias())
			return
		}
		w.sb.WriteString(v.FunctionName)
		w.sb.WriteString("(")
		for i, arg := range v.Args {
			if i > 0 {
				w.sb.WriteString(", ")
			}
			w.expression(arg, qualified)
		}
		w.sb.WriteString(")")
		if mode == projected && !v.Alias().IsEmpty() {
			w.sb.WriteString(" AS ")
			w.identifier(v.Alias())
		}
	case sqlast.Asterisk:
		if v.Table != nil {
			w.identifier(v.Table.ReferenceName())
			w.sb.WriteString(".")
		}
		w.sb.WriteString("*")
	case sqlast.Subselect:
		w.sb.WriteString("(")
		w.selectStatement(v.Select)
		w.sb.WriteString(")")
	case nil:
		w.fail(fmt.Errorf("%w: nil expression", ErrUnsupportedSegment))
	default:
		w.fail(fmt.Errorf("%w: expression %T", ErrUnsupportedSegment, e))
	}
}

func (w *writer) condition(c sqlast.Condition) {
	switch v := c.(type) {
	case sqlast.Comparison:
		w.expression(v.Left, qualified)
		w.sb.WriteString(" ")
		w.sb.WriteString(v.Comparator)
		w.sb.WriteString(" ")
		w.expression(v.Right, qualified)
	case sqlast.In:
		w.in(v)
	case sqlast.IsNull:
		w.expression(v.Expr, qualified)
		if v.Negated {
			w.sb.WriteString(" IS NOT NULL")
		} else {
			w.sb.WriteString(" IS NULL")
		}
	case sqlast.Like:
		w.expression(v.Left, qualified)
		if v.Negated {
			w.sb.WriteString(" NOT LIKE ")
		} else {
			w.sb.WriteString(" LIKE ")
		}
		w.expression(v.Right, qualified)
	case sqlast.Between:
		w.expression(v.Expr, qualified)
		if v.Negated {
			w.sb.WriteString(" NOT BETWEEN ")
		} else {
			w.sb.WriteString(" BETWEEN ")
		}
		w.expression(v.Begin, qualified)
		w.sb.WriteString(" AND ")
		w.expression(v.End, qualified)
	case sqlast.AndCondition:
		w.andOperand(v.Left)
		w.sb.WriteString(" AND ")
		w.andOperand(v.Right)
	case sqlast.OrCondition:
		w.condition(v.Left)
		w.sb.WriteString(" OR ")
		w.condition(v.Right)
	case sqlast.NestedCondition:
		w.sb.WriteString("(")
		w.condition(v.Inner)
		w.sb.WriteString(")")
	case sqlast.NotCondition:
		w.sb.WriteString("NOT ")
		if _, nested := v.Inner.(sqlast.NestedCondition); nested {
			w.condition(v.Inner)
			return
		}
		w.sb.WriteString("(")
		w.condition(v.Inner)
		w.sb.WriteString(")")
	case sqlast.ConstantCondition:
		w.sb.WriteString(v.SQL)
	case nil:
		w.fail(fmt.Errorf("%w: nil condition", ErrUnsupportedSegment))
	default:
		w.fail(fmt.Errorf("%w: condition %T", ErrUnsupportedSegment, c))
	}
}

// andOperand parenthesizes OR operands so AND precedence cannot rebind them.
func (w *writer) andOperand(c sqlast.Condition) {
	if _, isOr := c.(sqlast.OrCondition); isOr {
		w.sb.WriteString("(")
		w.condition(c)
		w.sb.WriteString(")")
		return
	}
	w.condition(c)
}

func (w *writer) in(v sqlast.In) {
	if len(v.Values) == 0 {
		if v.Negated {
			w.sb.WriteString("1 = 1")
		} else {
			w.sb.WriteString("1 = 0")
		}
		return
	}
	w.expression(v.Left, qualified)
	if v.Negated {
		w.sb.WriteString(" NOT IN ")
	} else {
		w.sb.WriteString(" IN ")
	}
	if len(v.Values) == 1 {
		if sub, ok := v.Values[0].(sqlast.Subselect); ok {
			w.expression(sub, qualified)
			return
		}
	}
	w.sb.WriteString("(")
	for i, e := range v.Values {
		if i > 0 {
			w.sb.WriteString(", ")
		}
		w.expression(e, qualified)
	}
	w.sb.WriteString(")")
}

func literal(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case string:
		return quoteString(x)
	case bool:
		if x {
			return "TRUE"
		}
		return "FALSE"
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case []byte:
		return "X'" + strings.ToUpper(hex.EncodeToString(x)) + "'"
	case time.Time:
		return quoteString(x.Format("2006-01-02 15:04:05.999999999"))
	case fmt.Stringer:
		return quoteString(x.String())
	default:
		return fmt.Sprint(x)
	}
}

// quoteString quotes a SQL string literal, doubling embedded single quotes.
func quoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
