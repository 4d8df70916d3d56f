package sqlgen

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"relgen/internal/dialect"
)

// Aggregate A owns a list of B with ids; every B owns a list of C.
type A struct {
	ID int64
	Bs []B
}

type B struct {
	ID int64
	Cs []C
}

type C struct {
	Name string
}

// Chain owns links without ids whose leaves point back to the chain itself.
type Chain struct {
	ID    int64
	Links []Link
}

type Link struct {
	Name   string
	Leaves []Leaf
}

type Leaf struct {
	Value string
}

// Shelf reaches its items through an embedded value.
type Shelf struct {
	ID      int64
	Wrapper Wrapper `db:",embedded=w_"`
}

type Wrapper struct {
	Items []Item
}

type Item struct {
	ID   int64
	Subs []Sub
}

type Sub struct {
	Code string
}

func TestCascadeDelete(t *testing.T) {
	tests := []struct {
		name    string
		root    any
		entity  string
		path    string
		all     string
		byRoot  string
		inRoots string
	}{
		{
			name:    "first level reference",
			root:    DummyEntity{},
			entity:  "DummyEntity",
			path:    "ref",
			all:     "DELETE FROM referenced_entity WHERE referenced_entity.dummy_entity IS NOT NULL",
			byRoot:  "DELETE FROM referenced_entity WHERE referenced_entity.dummy_entity = :rootId",
			inRoots: "DELETE FROM referenced_entity WHERE referenced_entity.dummy_entity IN (:ids)",
		},
		{
			name:    "second level reference",
			root:    DummyEntity{},
			entity:  "DummyEntity",
			path:    "ref.further",
			all:     "DELETE FROM second_level_referenced_entity WHERE second_level_referenced_entity.referenced_entity IN (SELECT referenced_entity.x_l1id FROM referenced_entity WHERE referenced_entity.dummy_entity IS NOT NULL)",
			byRoot:  "DELETE FROM second_level_referenced_entity WHERE second_level_referenced_entity.referenced_entity IN (SELECT referenced_entity.x_l1id FROM referenced_entity WHERE referenced_entity.dummy_entity = :rootId)",
			inRoots: "DELETE FROM second_level_referenced_entity WHERE second_level_referenced_entity.referenced_entity IN (SELECT referenced_entity.x_l1id FROM referenced_entity WHERE referenced_entity.dummy_entity IN (:ids))",
		},
		{
			name:    "nested lists",
			root:    A{},
			entity:  "A",
			path:    "bs.cs",
			all:     "DELETE FROM c WHERE c.b IN (SELECT b.id FROM b WHERE b.a IS NOT NULL)",
			byRoot:  "DELETE FROM c WHERE c.b IN (SELECT b.id FROM b WHERE b.a = :rootId)",
			inRoots: "DELETE FROM c WHERE c.b IN (SELECT b.id FROM b WHERE b.a IN (:ids))",
		},
		{
			name:    "intermediate level without id",
			root:    Chain{},
			entity:  "Chain",
			path:    "links.leaves",
			all:     "DELETE FROM leaf WHERE leaf.chain IS NOT NULL",
			byRoot:  "DELETE FROM leaf WHERE leaf.chain = :rootId",
			inRoots: "DELETE FROM leaf WHERE leaf.chain IN (:ids)",
		},
		{
			name:    "embedded intermediate level",
			root:    Shelf{},
			entity:  "Shelf",
			path:    "wrapper.items.subs",
			all:     "DELETE FROM sub WHERE sub.item IN (SELECT item.id FROM item WHERE item.shelf IS NOT NULL)",
			byRoot:  "DELETE FROM sub WHERE sub.item IN (SELECT item.id FROM item WHERE item.shelf = :rootId)",
			inRoots: "DELETE FROM sub WHERE sub.item IN (SELECT item.id FROM item WHERE item.shelf IN (:ids))",
		},
		{
			name:    "collection below embedded value",
			root:    Shelf{},
			entity:  "Shelf",
			path:    "wrapper.items",
			all:     "DELETE FROM item WHERE item.shelf IS NOT NULL",
			byRoot:  "DELETE FROM item WHERE item.shelf = :rootId",
			inRoots: "DELETE FROM item WHERE item.shelf IN (:ids)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newGenerator(t, dialect.ANSI(), tt.entity, tt.root)
			path := mustPath(t, g, tt.path)

			sql, err := g.DeleteAllByPath(path)
			require.NoError(t, err)
			assert.Equal(t, tt.all, sql)

			sql, err = g.DeleteByPath(path)
			require.NoError(t, err)
			assert.Equal(t, tt.byRoot, sql)

			sql, err = g.DeleteInByPath(path)
			require.NoError(t, err)
			assert.Equal(t, tt.inRoots, sql)
		})
	}
}

func TestCascadeDelete_RejectsPathsWithoutTable(t *testing.T) {
	g := dummyGenerator(t)

	for _, dot := range []string{"", "embedded", "name"} {
		t.Run(dot, func(t *testing.T) {
			_, err := g.DeleteAllByPath(mustPath(t, g, dot))
			assert.ErrorIs(t, err, ErrIllegalArgument)
		})
	}

	other := newGenerator(t, dialect.ANSI(), "A", A{})
	_, err := g.DeleteByPath(mustPath(t, other, "bs"))
	assert.ErrorIs(t, err, ErrIllegalArgument, "paths of another aggregate are rejected")
}
