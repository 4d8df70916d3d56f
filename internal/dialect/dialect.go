// Package dialect describes per-database SQL variation as plain data: one
// capability table per vendor, selected by a vendor tag through a Registry.
package dialect

import (
	"errors"
	"fmt"
	"reflect"

	sq "github.com/Masterminds/squirrel"

	"relgen/internal/identifier"
	"relgen/internal/sqlrender"
)

// ErrSequencesUnsupported is returned when a vendor has no sequences.
var ErrSequencesUnsupported = errors.New("sequences are not supported")

// KeyRetrieval is how a vendor hands back generated keys after an insert.
type KeyRetrieval int

const (
	// KeyLastInsertID uses sql.Result.LastInsertId.
	KeyLastInsertID KeyRetrieval = iota
	// KeyReturning appends RETURNING <id>.
	KeyReturning
	// KeyOutputInserted adds OUTPUT INSERTED.<id> before VALUES.
	KeyOutputInserted
	// KeyFinalTable wraps the insert in SELECT <id> FROM FINAL TABLE (...).
	KeyFinalTable
	// KeyReturningInto appends RETURNING <id> INTO an output parameter.
	KeyReturningInto
)

// IDGeneration describes how generated ids are obtained.
type IDGeneration struct {
	// DriverRequiresKeyColumnNames is set for vendors whose drivers only return
	// generated keys when the key columns are named in the statement.
	DriverRequiresKeyColumnNames bool
	// SequenceQuery has one %s verb for the rendered sequence name.
	SequenceQuery string
	Retrieval     KeyRetrieval
}

// SupportsSequences reports whether SequenceQuery is available.
func (g IDGeneration) SupportsSequences() bool {
	return g.SequenceQuery != ""
}

// Dialect is the capability table of one database vendor. Values are built by
// the vendor constructors and are not modified afterwards.
type Dialect struct {
	Name         string
	Processing   identifier.Processing
	Limit        LimitClause
	Lock         LockClause
	Arrays       ArrayColumns
	IDGeneration IDGeneration
	// DefaultValuesInsert completes INSERT INTO t when no columns are given.
	DefaultValuesInsert string
	// NullOrdering enables NULLS FIRST / NULLS LAST rendering.
	NullOrdering bool
	// PagingOrderBy is added to paged selects without ORDER BY.
	PagingOrderBy string
	// Placeholder rewrites ? markers into the driver's bind marker style.
	Placeholder sq.PlaceholderFormat
	Converters  []Converter
	Modules     []string

	simpleTypes map[reflect.Type]struct{}
}

// Option customizes a dialect while it is being constructed.
type Option func(*Dialect)

// WithIdentifierProcessing replaces the vendor's default quoting and casing,
// typically with one discovered from database metadata.
func WithIdentifierProcessing(p identifier.Processing) Option {
	return func(d *Dialect) {
		d.Processing = p
	}
}

// WithModules registers optional simple types and converters.
func WithModules(modules ...Module) Option {
	return func(d *Dialect) {
		for _, m := range modules {
			d.Modules = append(d.Modules, m.Name)
			for _, t := range m.SimpleTypes {
				d.simpleTypes[t] = struct{}{}
			}
			d.Converters = append(d.Converters, m.Converters...)
		}
	}
}

// WithConverters adds converters ahead of the vendor's own.
func WithConverters(converters ...Converter) Option {
	return func(d *Dialect) {
		d.Converters = append(append([]Converter(nil), converters...), d.Converters...)
	}
}

func build(template Dialect, opts []Option) *Dialect {
	d := template
	d.Converters = append([]Converter(nil), template.Converters...)
	d.Modules = nil
	d.simpleTypes = make(map[reflect.Type]struct{}, len(baseSimpleTypes))
	for _, t := range baseSimpleTypes {
		d.simpleTypes[t] = struct{}{}
	}
	if d.Placeholder == nil {
		d.Placeholder = sq.Question
	}
	if d.DefaultValuesInsert == "" {
		d.DefaultValuesInsert = " VALUES (DEFAULT)"
	}
	for _, opt := range opts {
		opt(&d)
	}
	return &d
}

// RenderContext returns a render context for this dialect.
func (d *Dialect) RenderContext(naming sqlrender.NamingStrategy) sqlrender.Context {
	return sqlrender.Context{
		Naming:     naming,
		Processing: d.Processing,
		Select:     selectContext{d: d, naming: naming, processing: d.Processing},
		Insert:     insertContext{defaultValues: d.DefaultValuesInsert},
	}
}

// Renderer returns a renderer for this dialect.
func (d *Dialect) Renderer(naming sqlrender.NamingStrategy) *sqlrender.Renderer {
	return sqlrender.New(d.RenderContext(naming))
}

// SequenceSQL renders the query that fetches the next value of a sequence.
func (d *Dialect) SequenceSQL(sequence identifier.SQLIdentifier) (string, error) {
	if !d.IDGeneration.SupportsSequences() {
		return "", fmt.Errorf("%w by %s", ErrSequencesUnsupported, d.Name)
	}
	return fmt.Sprintf(d.IDGeneration.SequenceQuery, sequence.ToSQL(d.Processing)), nil
}

// BindPlaceholders rewrites ? markers into the dialect's bind marker style.
func (d *Dialect) BindPlaceholders(query string) (string, error) {
	return d.Placeholder.ReplacePlaceholders(query)
}

func (d *Dialect) String() string {
	return d.Name
}
