package dialect

import (
	"fmt"
	"strings"

	"relgen/internal/identifier"
	"relgen/internal/sqlast"
	"relgen/internal/sqlrender"
)

// LimitClause holds the limit/offset templates of a vendor. Each template has
// %d verbs; LimitOffset takes offset first when OffsetFirst is set.
type LimitClause struct {
	Limit       string
	Offset      string
	LimitOffset string
	OffsetFirst bool
}

// Supported reports whether the vendor can limit result sets.
func (c LimitClause) Supported() bool {
	return c.Limit != ""
}

func (c LimitClause) LimitSQL(limit int64) string {
	return fmt.Sprintf(c.Limit, limit)
}

func (c LimitClause) OffsetSQL(offset int64) string {
	return fmt.Sprintf(c.Offset, offset)
}

func (c LimitClause) LimitOffsetSQL(limit, offset int64) string {
	if c.OffsetFirst {
		return fmt.Sprintf(c.LimitOffset, offset, limit)
	}
	return fmt.Sprintf(c.LimitOffset, limit, offset)
}

// ClausePosition says where a lock clause goes in a SELECT.
type ClausePosition int

const (
	// AfterOrderBy appends the lock clause at the end of the statement.
	AfterOrderBy ClausePosition = iota
	// AfterFromTable places the lock clause right after the FROM table.
	AfterFromTable
)

// LockClause holds the pessimistic lock templates of a vendor.
type LockClause struct {
	Write    string
	Read     string
	Position ClausePosition
	// OfTables appends "OF <tables>" naming the locked FROM tables.
	OfTables bool
}

// Supported reports whether the vendor can lock selected rows.
func (c LockClause) Supported() bool {
	return c.Write != "" || c.Read != ""
}

// SQL renders the clause for mode. tables is only used when OfTables is set.
func (c LockClause) SQL(mode sqlast.LockMode, tables string) string {
	var clause string
	switch mode {
	case sqlast.LockPessimisticWrite:
		clause = c.Write
	case sqlast.LockPessimisticRead:
		clause = c.Read
	default:
		return ""
	}
	if clause == "" {
		return ""
	}
	if c.OfTables && tables != "" {
		clause += " OF " + tables
	}
	return clause
}

// selectContext adapts a Dialect to sqlrender.SelectRenderContext.
type selectContext struct {
	d          *Dialect
	naming     sqlrender.NamingStrategy
	processing identifier.Processing
}

func (c selectContext) AfterFromTable(sel sqlast.Select) string {
	if c.d.Lock.Position != AfterFromTable {
		return ""
	}
	if lock := c.lock(sel); lock != "" {
		return " " + lock
	}
	return ""
}

func (c selectContext) AfterOrderBy(sel sqlast.Select) string {
	var sb strings.Builder

	limit, hasLimit := sel.Limit()
	offset, hasOffset := sel.Offset()
	if (hasLimit || hasOffset) && c.d.PagingOrderBy != "" && len(sel.OrderBy()) == 0 {
		sb.WriteString(" ")
		sb.WriteString(c.d.PagingOrderBy)
	}
	switch {
	case hasLimit && hasOffset:
		sb.WriteString(" ")
		sb.WriteString(c.d.Limit.LimitOffsetSQL(limit, offset))
	case hasLimit:
		sb.WriteString(" ")
		sb.WriteString(c.d.Limit.LimitSQL(limit))
	case hasOffset:
		sb.WriteString(" ")
		sb.WriteString(c.d.Limit.OffsetSQL(offset))
	}

	if c.d.Lock.Position == AfterOrderBy {
		if lock := c.lock(sel); lock != "" {
			sb.WriteString(" ")
			sb.WriteString(lock)
		}
	}
	return sb.String()
}

func (c selectContext) lock(sel sqlast.Select) string {
	if sel.LockMode() == sqlast.LockNone {
		return ""
	}
	var tables string
	if c.d.Lock.OfTables {
		names := make([]string, 0, len(sel.From()))
		for _, t := range sel.From() {
			names = append(names, c.naming.Apply(t.ReferenceName()).ToSQL(c.processing))
		}
		tables = strings.Join(names, ", ")
	}
	return c.d.Lock.SQL(sel.LockMode(), tables)
}

func (c selectContext) OrderByNulls(h sqlast.NullHandling) string {
	if !c.d.NullOrdering {
		return ""
	}
	return sqlrender.StandardSelectContext{}.OrderByNulls(h)
}

type insertContext struct {
	defaultValues string
}

func (c insertContext) DefaultValuesInsertPart() string {
	return c.defaultValues
}
