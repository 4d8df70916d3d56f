package dbexec

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"reflect"
	"strings"

	"github.com/google/uuid"

	"relgen/internal/dialect"
	"relgen/internal/identifier"
	"relgen/internal/mapping"
	"relgen/internal/sqlgen"
)

// IDValueSource says where the id of a new aggregate root comes from.
type IDValueSource int

const (
	// IDProvided means the caller supplies the id.
	IDProvided IDValueSource = iota
	// IDGenerated means the database generates the id on insert.
	IDGenerated
	// IDNone means the entity has no id.
	IDNone
	// IDSequence means the id is fetched from a sequence before the insert.
	IDSequence
	// IDClientUUID means a random UUID is generated before the insert.
	IDClientUUID
)

func (s IDValueSource) String() string {
	switch s {
	case IDProvided:
		return "provided"
	case IDGenerated:
		return "generated"
	case IDNone:
		return "none"
	case IDSequence:
		return "sequence"
	case IDClientUUID:
		return "uuid"
	default:
		return fmt.Sprintf("IDValueSource(%d)", int(s))
	}
}

// IDValueSourceFor decides the source for an entity whose id parameter is
// idValue. A non-zero value is always used as provided.
func IDValueSourceFor(e *mapping.Entity, idValue any) IDValueSource {
	idProp := e.IDProperty()
	if idProp == nil {
		return IDNone
	}
	if !isZero(idValue) {
		return IDProvided
	}
	switch {
	case idProp.Sequence != "":
		return IDSequence
	case idProp.UUID:
		return IDClientUUID
	default:
		return IDGenerated
	}
}

func isZero(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return true
		}
		rv = rv.Elem()
	}
	return rv.IsZero()
}

// InsertStrategy executes a bound INSERT (with ? markers) and returns the
// generated key, or nil when the strategy retrieves none.
type InsertStrategy interface {
	Execute(ctx context.Context, r *Runner, query string, args []any) (any, error)
}

// InsertStrategyFor picks how keys are retrieved for source on d. idColumn is
// the rendered id column.
func InsertStrategyFor(d *dialect.Dialect, source IDValueSource, idColumn string) InsertStrategy {
	if source != IDGenerated {
		return defaultInsertStrategy{}
	}
	switch d.IDGeneration.Retrieval {
	case dialect.KeyLastInsertID:
		return lastInsertIDStrategy{}
	default:
		return returningStrategy{retrieval: d.IDGeneration.Retrieval, idColumn: idColumn}
	}
}

type defaultInsertStrategy struct{}

func (defaultInsertStrategy) Execute(ctx context.Context, r *Runner, query string, args []any) (any, error) {
	bound, err := r.finish(query)
	if err != nil {
		return nil, err
	}
	if _, err := r.exec.ExecContext(ctx, bound, args...); err != nil {
		return nil, err
	}
	return nil, nil
}

type lastInsertIDStrategy struct{}

func (lastInsertIDStrategy) Execute(ctx context.Context, r *Runner, query string, args []any) (any, error) {
	bound, err := r.finish(query)
	if err != nil {
		return nil, err
	}
	res, err := r.exec.ExecContext(ctx, bound, args...)
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read generated key: %w", err)
	}
	return id, nil
}

// returningStrategy reads the key from the insert statement itself.
type returningStrategy struct {
	retrieval dialect.KeyRetrieval
	idColumn  string
}

func (s returningStrategy) Execute(ctx context.Context, r *Runner, query string, args []any) (any, error) {
	if s.retrieval == dialect.KeyReturningInto {
		var out any
		args = append(append([]any(nil), args...), sql.Out{Dest: &out})
		bound, err := r.finish(query + " RETURNING " + s.idColumn + " INTO ?")
		if err != nil {
			return nil, err
		}
		if _, err := r.exec.ExecContext(ctx, bound, args...); err != nil {
			return nil, err
		}
		return out, nil
	}

	decorated, err := s.decorate(query)
	if err != nil {
		return nil, err
	}
	bound, err := r.finish(decorated)
	if err != nil {
		return nil, err
	}
	return queryOne(ctx, r.exec, bound, args...)
}

func (s returningStrategy) decorate(query string) (string, error) {
	switch s.retrieval {
	case dialect.KeyReturning:
		return query + " RETURNING " + s.idColumn, nil
	case dialect.KeyFinalTable:
		return "SELECT " + s.idColumn + " FROM FINAL TABLE (" + query + ")", nil
	case dialect.KeyOutputInserted:
		idx := strings.Index(query, " DEFAULT VALUES")
		if idx < 0 {
			idx = strings.Index(query, ") VALUES")
			if idx < 0 {
				return "", fmt.Errorf("cannot place OUTPUT clause in %q", query)
			}
			idx++
		}
		return query[:idx] + " OUTPUT INSERTED." + s.idColumn + query[idx:], nil
	default:
		return "", fmt.Errorf("unsupported key retrieval %d", s.retrieval)
	}
}

// Insert inserts one row with g and returns its id: the provided one, the
// generated key, or the value bound from a sequence or random UUID. Entities
// without id return nil. The parts of parent, usually built with
// mapping.BackReference, become additional columns of the insert.
func (r *Runner) Insert(ctx context.Context, g *sqlgen.Generator, params Params, parent mapping.Identifier) (any, error) {
	idColumn := g.RootPath().TableInfo().IDColumn
	idName := ""
	if !idColumn.IsEmpty() {
		idName = identifier.BindName(idColumn)
	}
	source := IDValueSourceFor(g.Entity(), params[idName])
	params = params.Merge(ParamsOf(parent))

	var additional []identifier.SQLIdentifier
	for _, part := range parent.Parts() {
		additional = append(additional, part.Name)
	}
	var id any
	switch source {
	case IDProvided:
		id = params[idName]
		additional = append(additional, idColumn)
	case IDSequence:
		next, err := r.nextSequenceValue(ctx, g.Entity().IDProperty().Sequence)
		if err != nil {
			return nil, err
		}
		id = next
		params[idName] = next
		additional = append(additional, idColumn)
	case IDClientUUID:
		id = uuid.New().String()
		params[idName] = id
		additional = append(additional, idColumn)
	}

	query, err := g.Insert(additional)
	if err != nil {
		return nil, err
	}
	positional, args, err := r.bindPositional(query, params)
	if err != nil {
		return nil, err
	}

	var rendered string
	if !idColumn.IsEmpty() {
		rendered = g.Naming().Apply(idColumn).ToSQL(r.dialect.Processing)
	}
	strategy := InsertStrategyFor(r.dialect, source, rendered)
	r.logger.DebugContext(ctx, "insert",
		slog.String("entity", g.Entity().Name),
		slog.String("id_source", source.String()),
		slog.String("sql", positional),
	)
	key, err := strategy.Execute(ctx, r, positional, args)
	if err != nil {
		return nil, fmt.Errorf("failed to insert %s: %w", g.Entity().Name, err)
	}
	if source == IDGenerated {
		return key, nil
	}
	return id, nil
}

func (r *Runner) nextSequenceValue(ctx context.Context, sequence string) (any, error) {
	query, err := r.dialect.SequenceSQL(identifier.Unquoted(sequence))
	if err != nil {
		return nil, err
	}
	value, err := queryOne(ctx, r.exec, query)
	if err != nil {
		return nil, fmt.Errorf("failed to read sequence %s: %w", sequence, err)
	}
	return value, nil
}
