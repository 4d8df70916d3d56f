package mapping

import (
	"bytes"
	"log/slog"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"relgen/internal/naming"
)

type Person struct {
	ID       int64 `db:",id"`
	Name     string
	Version  int64   `db:",version"`
	Address  Address `db:",embedded=addr_"`
	Passport *Passport
	Tags     []Tag
	Emails   []Email `db:",set"`
}

type Address struct {
	Street string
	City   string
}

type Passport struct {
	Number string
	Stamps []Stamp
}

type Stamp struct {
	Country string
}

type Tag struct {
	ID    int64
	Label string
}

type Email struct {
	Address string
}

func newPersonContext(t *testing.T) *Context {
	t.Helper()
	ctx := NewContext()
	require.NoError(t, ctx.Register(Person{}))
	return ctx
}

func mustPath(t *testing.T, ctx *Context, dot string) Path {
	t.Helper()
	p, err := ctx.PathFor("Person", dot)
	require.NoError(t, err)
	return p
}

func TestRegister_DiscoversReferencedEntities(t *testing.T) {
	ctx := newPersonContext(t)

	var names []string
	for _, e := range ctx.Entities() {
		names = append(names, e.Name)
	}
	assert.Equal(t, []string{"Address", "Email", "Passport", "Person", "Stamp", "Tag"}, names)

	person, err := ctx.EntityFor(reflect.TypeOf(&Person{}))
	require.NoError(t, err)
	assert.Equal(t, "person", person.TableName().Reference())
	assert.Equal(t, "id", person.IDProperty().Column)
	assert.Equal(t, "version", person.VersionProperty().Column)

	tag, err := ctx.Entity("Tag")
	require.NoError(t, err)
	assert.True(t, tag.HasID(), "ID field is detected without a tag")

	tags, ok := person.Property("tags")
	require.True(t, ok)
	assert.Equal(t, List, tags.Kind)
	emails, _ := person.Property("emails")
	assert.Equal(t, Set, emails.Kind)
	addr, _ := person.Property("address")
	assert.Equal(t, Embedded, addr.Kind)
	assert.Equal(t, "addr_", addr.EmbeddedPrefix)
	passport, _ := person.Property("passport")
	assert.Equal(t, Reference, passport.Kind)
}

func TestPathClassification(t *testing.T) {
	ctx := newPersonContext(t)

	tests := []struct {
		path        string
		entity      bool
		embedded    bool
		multiValued bool
		qualified   bool
		collection  bool
		ordered     bool
		hasID       bool
		length      int
	}{
		{path: "", entity: true, hasID: true, length: 0},
		{path: "name", length: 1},
		{path: "address", entity: true, embedded: true, length: 1},
		{path: "address.street", length: 2},
		{path: "passport", entity: true, length: 1},
		{path: "passport.stamps", entity: true, multiValued: true, qualified: true, collection: true, ordered: true, length: 2},
		{path: "passport.stamps.country", multiValued: true, length: 3},
		{path: "tags", entity: true, multiValued: true, qualified: true, collection: true, ordered: true, hasID: true, length: 1},
		{path: "emails", entity: true, multiValued: true, collection: true, length: 1},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			p := mustPath(t, ctx, tt.path)
			assert.Equal(t, tt.path, p.String())
			assert.Equal(t, tt.path == "", p.IsRoot())
			assert.Equal(t, tt.entity, p.IsEntity(), "entity")
			assert.Equal(t, tt.embedded, p.IsEmbedded(), "embedded")
			assert.Equal(t, tt.multiValued, p.IsMultiValued(), "multi-valued")
			assert.Equal(t, tt.qualified, p.IsQualified(), "qualified")
			assert.Equal(t, tt.collection, p.IsCollectionLike(), "collection")
			assert.Equal(t, tt.ordered, p.IsOrdered(), "ordered")
			assert.Equal(t, tt.hasID, p.HasIDProperty(), "has id")
			assert.Equal(t, tt.length, p.Length())
		})
	}
}

func TestPathNavigation(t *testing.T) {
	ctx := newPersonContext(t)
	root, err := ctx.RootPath("Person")
	require.NoError(t, err)

	stamps := mustPath(t, ctx, "passport.stamps")
	parent, ok := stamps.Parent()
	require.True(t, ok)
	assert.Equal(t, "passport", parent.String())

	_, ok = root.Parent()
	assert.False(t, ok)

	assert.True(t, stamps.IDDefiningParent().IsRoot(), "passport has no id")
	assert.Equal(t, "tags", mustPath(t, ctx, "tags.label").IDDefiningParent().String())
	assert.True(t, root.IDDefiningParent().IsRoot())

	assert.Equal(t, "passport.stamps", mustPath(t, ctx, "passport.stamps.country").TableOwner().String())
	assert.True(t, mustPath(t, ctx, "address.street").TableOwner().IsRoot())
	assert.True(t, mustPath(t, ctx, "address.street").TableAncestor().IsRoot())
	assert.Equal(t, "passport", stamps.TableAncestor().String())

	rel, err := mustPath(t, ctx, "passport").Resolve("stamps.country")
	require.NoError(t, err)
	assert.True(t, rel.Equal(mustPath(t, ctx, "passport.stamps.country")))

	_, err = ctx.PathFor("Person", "passport.visa")
	assert.ErrorIs(t, err, ErrPathNotFound)
	_, err = ctx.PathFor("Nobody", "")
	assert.ErrorIs(t, err, ErrEntityNotFound)

	var dots []string
	for _, d := range mustPath(t, ctx, "passport").Descendants() {
		dots = append(dots, d.String())
	}
	assert.Equal(t, []string{"passport.number", "passport.stamps", "passport.stamps.country"}, dots)
	assert.Len(t, root.Children(), 7)
}

func TestTableInfo(t *testing.T) {
	ctx := newPersonContext(t)

	tests := []struct {
		path         string
		table        string
		alias        string
		reverse      string
		reverseAlias string
		qualifier    string
		idColumn     string
		effectiveID  string
	}{
		{path: "", table: "person", idColumn: "id", effectiveID: "id"},
		{path: "address.street", table: "person", idColumn: "id", effectiveID: "id"},
		{path: "passport", table: "passport", alias: "passport", reverse: "person", reverseAlias: "passport_person", effectiveID: "person"},
		{path: "passport.stamps", table: "stamp", alias: "passport_stamps", reverse: "person", reverseAlias: "passport_stamps_person", qualifier: "passport_key", effectiveID: "person"},
		{path: "tags", table: "tag", alias: "tags", reverse: "person", reverseAlias: "tags_person", qualifier: "person_key", idColumn: "id", effectiveID: "person"},
		{path: "emails", table: "email", alias: "emails", reverse: "person", reverseAlias: "emails_person", effectiveID: "person"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			info := mustPath(t, ctx, tt.path).TableInfo()
			assert.Equal(t, tt.table, info.QualifiedTableName.Reference())
			assert.Equal(t, tt.alias, info.TableAlias.Reference())
			assert.Equal(t, tt.reverse, info.ReverseColumn.Name.Reference())
			assert.Equal(t, tt.reverseAlias, info.ReverseColumn.Alias.Reference())
			assert.Equal(t, tt.qualifier, info.QualifierColumn.Name.Reference())
			assert.Equal(t, tt.idColumn, info.IDColumn.Reference())
			assert.Equal(t, tt.effectiveID, info.EffectiveIDColumn.Reference())
		})
	}
}

func TestColumnInfo(t *testing.T) {
	ctx := newPersonContext(t)

	tests := []struct {
		path  string
		name  string
		alias string
	}{
		{"name", "name", "name"},
		{"address.street", "addr_street", "addr_street"},
		{"passport.number", "number", "passport_number"},
		{"passport.stamps.country", "country", "passport_stamps_country"},
		{"tags.label", "label", "tags_label"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			col := mustPath(t, ctx, tt.path).ColumnInfo()
			assert.Equal(t, tt.name, col.Name.Reference())
			assert.Equal(t, tt.alias, col.Alias.Reference())
		})
	}
}

type Outer struct {
	ID    int64
	Inner Middle `db:",embedded=mid_"`
	Child *Leaf
}

type Middle struct {
	Deep Deepest `db:",embedded=deep_"`
	Note string
}

type Deepest struct {
	Value string
}

type Leaf struct {
	Deep Deepest `db:",embedded=d_"`
}

func TestNestedEmbeddedPrefixes(t *testing.T) {
	ctx := NewContext()
	require.NoError(t, ctx.Register(&Outer{}))

	p, err := ctx.PathFor("Outer", "inner.deep.value")
	require.NoError(t, err)
	assert.Equal(t, "mid_deep_value", p.ColumnInfo().Name.Reference())
	assert.Equal(t, "mid_deep_value", p.ColumnInfo().Alias.Reference())

	p, err = ctx.PathFor("Outer", "child.deep.value")
	require.NoError(t, err)
	assert.Equal(t, "d_value", p.ColumnInfo().Name.Reference())
	assert.Equal(t, "child_d_value", p.ColumnInfo().Alias.Reference())
	assert.Equal(t, "child", p.TableInfo().TableAlias.Reference())
}

type Booking struct {
	ID    int64
	Order string
	Inner Middle `db:",embedded=mid_"`
	Outer *Leaf
}

func TestReservedWordWarningsOnlyForColumns(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelWarn}))
	ctx := NewContext(WithNamer(naming.New(naming.DefaultConfig(), logger)))
	require.NoError(t, ctx.Register(Booking{}))

	_, err := ctx.RootPath("Booking")
	require.NoError(t, err)

	assert.Contains(t, logs.String(), "name=order")
	assert.NotContains(t, logs.String(), "name=inner")
	assert.NotContains(t, logs.String(), "name=outer")

	p, err := ctx.PathFor("Booking", "inner")
	require.NoError(t, err)
	assert.True(t, p.ColumnInfo().Name.IsEmpty())
	p, err = ctx.PathFor("Booking", "inner.note")
	require.NoError(t, err)
	assert.Equal(t, "mid_note", p.ColumnInfo().Name.Reference())
}

type TreeNode struct {
	ID       int64
	Children []TreeNode
}

func TestCyclicAggregate(t *testing.T) {
	ctx := NewContext()
	require.NoError(t, ctx.Register(TreeNode{}))

	_, err := ctx.RootPath("TreeNode")
	assert.ErrorIs(t, err, ErrCyclicAggregate)
}

type Clash struct {
	ID    int64
	Name  string
	Alias string `db:"name"`
}

func TestColumnCollision(t *testing.T) {
	ctx := NewContext()
	require.NoError(t, ctx.Register(Clash{}))

	_, err := ctx.RootPath("Clash")
	assert.ErrorIs(t, err, ErrInvalidMapping)
}

func TestForceQuote(t *testing.T) {
	ctx := NewContext(WithForceQuote(true))
	require.NoError(t, ctx.Register(Person{}))

	p, err := ctx.PathFor("Person", "tags")
	require.NoError(t, err)
	assert.True(t, p.TableInfo().QualifiedTableName.IsQuoted())
	assert.True(t, p.TableInfo().TableAlias.IsQuoted())
	assert.True(t, p.TableInfo().ReverseColumn.Name.IsQuoted())
}

func TestFieldValue(t *testing.T) {
	ctx := newPersonContext(t)
	person := Person{
		Name:     "Ada",
		Address:  Address{Street: "Main"},
		Passport: &Passport{Number: "X1"},
	}

	v, ok := mustPath(t, ctx, "address.street").FieldValue(reflect.ValueOf(person))
	require.True(t, ok)
	assert.Equal(t, "Main", v.Interface())

	v, ok = mustPath(t, ctx, "passport.number").FieldValue(reflect.ValueOf(&person))
	require.True(t, ok)
	assert.Equal(t, "X1", v.Interface())

	_, ok = mustPath(t, ctx, "tags.label").FieldValue(reflect.ValueOf(person))
	assert.False(t, ok, "collections are not traversed")

	person.Passport = nil
	_, ok = mustPath(t, ctx, "passport.number").FieldValue(reflect.ValueOf(person))
	assert.False(t, ok)
}

func TestBackReferenceIdentifier(t *testing.T) {
	ctx := newPersonContext(t)
	tags := mustPath(t, ctx, "tags")

	id, err := BackReference(tags, int64(7))
	require.NoError(t, err)
	id, err = id.WithQualifier(tags, 2)
	require.NoError(t, err)

	assert.Equal(t, 2, id.Len())
	assert.Equal(t, map[string]any{"person": int64(7), "person_key": 2}, id.ToMap())

	id = id.With(tags.TableInfo().ReverseColumn.Name, int64(8))
	v, ok := id.Get(tags.TableInfo().ReverseColumn.Name)
	require.True(t, ok)
	assert.Equal(t, int64(8), v)
	assert.Equal(t, 2, id.Len(), "With replaces parts of the same name")

	root, err := ctx.RootPath("Person")
	require.NoError(t, err)
	_, err = BackReference(root, 1)
	assert.ErrorIs(t, err, ErrInvalidMapping)
	_, err = EmptyIdentifier().WithQualifier(mustPath(t, ctx, "emails"), 1)
	assert.ErrorIs(t, err, ErrInvalidMapping)
}
