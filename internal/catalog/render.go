// Package catalog renders the statement set of mapped entities and serves it
// over HTTP.
package catalog

import (
	"context"
	"fmt"
	"sort"

	"relgen/internal/mapping"
	"relgen/internal/sqlast"
	"relgen/internal/sqlgen"
)

// Statement is one rendered statement. Error is set instead of SQL when the
// entity cannot support the statement, e.g. a lookup by id on an entity
// without an id.
type Statement struct {
	Name       string   `json:"name" yaml:"name"`
	SQL        string   `json:"sql,omitempty" yaml:"sql,omitempty"`
	Parameters []string `json:"parameters,omitempty" yaml:"parameters,omitempty"`
	Error      string   `json:"error,omitempty" yaml:"error,omitempty"`
}

// ParameterLister extracts the :name parameters of a statement.
// *dbexec.Runner implements it.
type ParameterLister interface {
	ParameterNames(query string) []string
}

// EntitySQL is the full statement set of one entity.
type EntitySQL struct {
	Entity     string      `json:"entity" yaml:"entity"`
	Table      string      `json:"table" yaml:"table"`
	Dialect    string      `json:"dialect" yaml:"dialect"`
	Statements []Statement `json:"statements" yaml:"statements"`
}

// Failed counts the statements that carry an error.
func (e EntitySQL) Failed() int {
	n := 0
	for _, s := range e.Statements {
		if s.Error != "" {
			n++
		}
	}
	return n
}

// EntitySummary describes a mapped entity without rendering SQL.
type EntitySummary struct {
	Name       string   `json:"name" yaml:"name"`
	Table      string   `json:"table" yaml:"table"`
	ID         string   `json:"id,omitempty" yaml:"id,omitempty"`
	Version    string   `json:"version,omitempty" yaml:"version,omitempty"`
	Properties []string `json:"properties" yaml:"properties"`
	Paths      []string `json:"paths,omitempty" yaml:"paths,omitempty"`
}

// Summaries lists the registered entities by name.
func Summaries(ctx *mapping.Context) []EntitySummary {
	entities := ctx.Entities()
	out := make([]EntitySummary, 0, len(entities))
	for _, e := range entities {
		s := EntitySummary{Name: e.Name, Table: e.TableName().Reference()}
		if id := e.IDProperty(); id != nil {
			s.ID = id.Name
		}
		if v := e.VersionProperty(); v != nil {
			s.Version = v.Name
		}
		for _, p := range e.Properties {
			s.Properties = append(s.Properties, p.Name)
		}
		if root, err := ctx.RootPath(e.Name); err == nil {
			for _, p := range root.Descendants() {
				s.Paths = append(s.Paths, p.String())
			}
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

type namedRender struct {
	name   string
	render func() (string, error)
}

// Render builds the statement set of an entity. Unknown entities fail with
// mapping.ErrEntityNotFound; statements the entity cannot support are
// reported per statement. params may be nil.
func Render(ctx context.Context, src *sqlgen.Source, entity string, params ParameterLister) (*EntitySQL, error) {
	g, err := src.Generator(ctx, entity)
	if err != nil {
		return nil, err
	}
	e := g.Entity()

	renders := []namedRender{
		{"find_one", g.FindOne},
		{"find_all", g.FindAll},
		{"find_all_in_list", g.FindAllInList},
		{"exists", g.Exists},
		{"count", g.Count},
		{"insert", func() (string, error) { return g.Insert(nil) }},
		{"update", g.Update},
		{"delete_by_id", g.DeleteByID},
		{"delete_by_list", g.DeleteByList},
		{"delete_all", g.DeleteAll},
		{"lock_by_id", func() (string, error) { return g.AcquireLockByID(sqlast.LockPessimisticWrite) }},
		{"lock_all", func() (string, error) { return g.AcquireLockAll(sqlast.LockPessimisticRead) }},
	}
	if e.HasVersion() {
		renders = append(renders, namedRender{"delete_by_id_and_version", g.DeleteByIDAndVersion})
	}

	out := &EntitySQL{
		Entity:  e.Name,
		Table:   e.TableName().Reference(),
		Dialect: src.Dialect().Name,
	}
	for _, r := range renders {
		out.Statements = append(out.Statements, statement(r.name, r.render))
	}

	pathStatements, err := renderPaths(ctx, src, g)
	if err != nil {
		return nil, err
	}
	out.Statements = append(out.Statements, pathStatements...)

	if params != nil {
		for i := range out.Statements {
			if out.Statements[i].SQL != "" {
				out.Statements[i].Parameters = params.ParameterNames(out.Statements[i].SQL)
			}
		}
	}
	return out, nil
}

// renderPaths adds the child selects and cascading deletes of every path that
// owns a table.
func renderPaths(ctx context.Context, src *sqlgen.Source, g *sqlgen.Generator) ([]Statement, error) {
	var out []Statement
	for _, path := range g.RootPath().Descendants() {
		if !path.IsEntity() || path.IsEmbedded() || !path.TableInfo().HasReverseColumn() {
			continue
		}
		suffix := "[" + path.String() + "]"

		child, err := src.Generator(ctx, path.LeafEntity().Name)
		if err != nil {
			return nil, err
		}
		out = append(out, statement("find_all_by_path"+suffix, func() (string, error) {
			parent, err := mapping.BackReference(path, nil)
			if err != nil {
				return "", err
			}
			return child.FindAllByPath(parent, path)
		}))
		out = append(out,
			statement("delete_by_path"+suffix, func() (string, error) { return g.DeleteByPath(path) }),
			statement("delete_in_by_path"+suffix, func() (string, error) { return g.DeleteInByPath(path) }),
			statement("delete_all_by_path"+suffix, func() (string, error) { return g.DeleteAllByPath(path) }),
		)
	}
	return out, nil
}

func statement(name string, render func() (string, error)) Statement {
	sql, err := render()
	if err != nil {
		return Statement{Name: name, Error: err.Error()}
	}
	return Statement{Name: name, SQL: sql}
}

// RenderAll renders the named entities, or every registered entity in name
// order when names is empty.
func RenderAll(ctx context.Context, src *sqlgen.Source, names []string, params ParameterLister) ([]*EntitySQL, error) {
	if len(names) == 0 {
		for _, s := range Summaries(src.Mapping()) {
			names = append(names, s.Name)
		}
	}
	var out []*EntitySQL
	for _, name := range names {
		rendered, err := Render(ctx, src, name, params)
		if err != nil {
			return nil, fmt.Errorf("failed to render %s: %w", name, err)
		}
		out = append(out, rendered)
	}
	return out, nil
}
