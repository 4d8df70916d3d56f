package mapping

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const orderModel = `
entities:
  - name: PurchaseOrder
    table: purchase_order
    schema: sales
    properties:
      - {name: id, id: true}
      - {name: version, version: true}
      - {name: created_at, insertonly: true}
      - {name: total, readonly: true}
      - {name: items, kind: list, target: OrderItem, key_column: position}
      - {name: shipping, kind: embedded, target: ShippingInfo, prefix: ship_}
      - {name: notes, kind: map, target: Note}
  - name: OrderItem
    properties:
      - {name: product}
      - {name: quantity, column: qty}
  - name: ShippingInfo
    properties:
      - {name: carrier}
  - name: Note
    properties:
      - {name: text}
`

func TestParseAndRegisterModel(t *testing.T) {
	m, err := ParseModel([]byte(orderModel))
	require.NoError(t, err)
	require.Len(t, m.Entities, 4)

	ctx := NewContext()
	require.NoError(t, ctx.RegisterModel(m))

	order, err := ctx.Entity("PurchaseOrder")
	require.NoError(t, err)
	assert.Equal(t, "sales.purchase_order", order.TableName().Reference())
	assert.True(t, order.HasVersion())

	total, _ := order.Property("total")
	assert.True(t, total.ReadOnly)
	created, _ := order.Property("created_at")
	assert.True(t, created.InsertOnly)

	items, err := ctx.PathFor("PurchaseOrder", "items")
	require.NoError(t, err)
	info := items.TableInfo()
	assert.Equal(t, "order_item", info.QualifiedTableName.Reference())
	assert.Equal(t, "position", info.QualifierColumn.Name.Reference())
	assert.Equal(t, "purchase_order", info.ReverseColumn.Name.Reference())

	qty, err := ctx.PathFor("PurchaseOrder", "items.quantity")
	require.NoError(t, err)
	assert.Equal(t, "qty", qty.ColumnInfo().Name.Reference())
	assert.Equal(t, "items_qty", qty.ColumnInfo().Alias.Reference())

	notes, err := ctx.PathFor("PurchaseOrder", "notes")
	require.NoError(t, err)
	assert.True(t, notes.IsMap())
	assert.True(t, notes.IsQualified())
	assert.False(t, notes.IsCollectionLike())
	assert.Equal(t, "purchase_order_key", notes.TableInfo().QualifierColumn.Name.Reference())

	carrier, err := ctx.PathFor("PurchaseOrder", "shipping.carrier")
	require.NoError(t, err)
	assert.Equal(t, "ship_carrier", carrier.ColumnInfo().Name.Reference())
}

func TestParseModel_Errors(t *testing.T) {
	_, err := ParseModel([]byte("entities:\n  - name: A\n    colour: red\n"))
	assert.Error(t, err, "unknown keys are rejected")

	m, err := ParseModel([]byte("entities:\n  - name: A\n    properties:\n      - {name: x, kind: blob}\n"))
	require.NoError(t, err)
	assert.ErrorIs(t, NewContext().RegisterModel(m), ErrInvalidMapping)

	m, err = ParseModel([]byte("entities:\n  - name: A\n    properties:\n      - {name: b, kind: entity, target: B}\n"))
	require.NoError(t, err)
	ctx := NewContext()
	require.NoError(t, ctx.RegisterModel(m))
	_, err = ctx.RootPath("A")
	assert.ErrorIs(t, err, ErrEntityNotFound)
}

func TestRegisterModel_ValidatesEntities(t *testing.T) {
	tests := []struct {
		name  string
		model string
	}{
		{"two ids", "entities:\n  - name: A\n    properties:\n      - {name: a, id: true}\n      - {name: b, id: true}\n"},
		{"duplicate property", "entities:\n  - name: A\n    properties:\n      - {name: a}\n      - {name: a}\n"},
		{"sequence without id", "entities:\n  - name: A\n    properties:\n      - {name: a, sequence: seq}\n"},
		{"entity without target", "entities:\n  - name: A\n    properties:\n      - {name: a, kind: list}\n"},
		{"unnamed entity", "entities:\n  - properties:\n      - {name: a}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := ParseModel([]byte(tt.model))
			require.NoError(t, err)
			assert.ErrorIs(t, NewContext().RegisterModel(m), ErrInvalidMapping)
		})
	}
}

func TestLoadModelAndExport(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "model.yaml")
	require.NoError(t, os.WriteFile(file, []byte(orderModel), 0o600))

	m, err := LoadModel(file)
	require.NoError(t, err)
	ctx := NewContext()
	require.NoError(t, ctx.RegisterModel(m))

	exported := ctx.ToModel()
	require.Len(t, exported.Entities, 4)
	assert.Equal(t, "Note", exported.Entities[0].Name)

	again := NewContext()
	require.NoError(t, again.RegisterModel(exported))
	p, err := again.PathFor("PurchaseOrder", "items.quantity")
	require.NoError(t, err)
	assert.Equal(t, "qty", p.ColumnInfo().Name.Reference())

	_, err = LoadModel(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestParseTag(t *testing.T) {
	opts, err := parseTag("person_name,readonly,embedded=p_,keycolumn=idx,sequence=person_seq,id")
	require.NoError(t, err)
	assert.Equal(t, "person_name", opts.column)
	assert.True(t, opts.readOnly)
	assert.True(t, opts.embedded)
	assert.Equal(t, "p_", opts.embeddedPrefix)
	assert.Equal(t, "idx", opts.keyColumn)
	assert.Equal(t, "person_seq", opts.sequence)
	assert.True(t, opts.id)

	_, err = parseTag(",bogus")
	assert.Error(t, err)
}

type badField struct {
	ID int64
	Fn func()
}

func TestRegister_Errors(t *testing.T) {
	ctx := NewContext()
	assert.ErrorIs(t, ctx.Register(nil), ErrInvalidMapping)
	assert.ErrorIs(t, ctx.Register(42), ErrInvalidMapping)
	assert.ErrorIs(t, ctx.Register(badField{}), ErrInvalidMapping)
	assert.ErrorIs(t, ctx.Register(struct{ A int }{}), ErrInvalidMapping)
}
