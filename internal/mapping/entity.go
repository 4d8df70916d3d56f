// Package mapping holds the mapping metadata of aggregates: entities, their
// properties and the aggregate paths that navigate from a root entity into
// nested references, collections and embedded values.
package mapping

import (
	"errors"
	"reflect"

	"relgen/internal/identifier"
)

var (
	// ErrEntityNotFound is returned when a referenced entity is not registered.
	ErrEntityNotFound = errors.New("required entity not found")
	// ErrCyclicAggregate is returned when an entity is reachable from itself.
	ErrCyclicAggregate = errors.New("cyclic aggregate")
	// ErrInvalidMapping is returned for mappings that cannot be turned into SQL.
	ErrInvalidMapping = errors.New("invalid mapping")
	// ErrPathNotFound is returned when a dot path names an unknown property.
	ErrPathNotFound = errors.New("property path not found")
)

// Kind classifies how a property is stored.
type Kind int

const (
	// Simple properties are one column of the owning table.
	Simple Kind = iota
	// Array properties are slices of simple values stored in one array column.
	Array
	// Reference properties are one-to-one references to an entity in its own table.
	Reference
	// Embedded properties are value objects flattened into the owning table.
	Embedded
	// List properties are ordered collections of entities, qualified by index.
	List
	// Set properties are unordered collections of entities.
	Set
	// Map properties are collections of entities qualified by a key.
	Map
)

var kindNames = map[Kind]string{
	Simple:    "simple",
	Array:     "array",
	Reference: "entity",
	Embedded:  "embedded",
	List:      "list",
	Set:       "set",
	Map:       "map",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// ParseKind converts a model file value into a Kind. Empty means Simple.
func ParseKind(value string) (Kind, bool) {
	if value == "" {
		return Simple, true
	}
	for k, name := range kindNames {
		if name == value {
			return k, true
		}
	}
	if value == "reference" {
		return Reference, true
	}
	return Simple, false
}

// IsEntity reports kinds whose values are mapped entities.
func (k Kind) IsEntity() bool {
	switch k {
	case Reference, Embedded, List, Set, Map:
		return true
	default:
		return false
	}
}

// Property is one mapped field of an entity.
type Property struct {
	// Name is the logical property name used in dot paths and table aliases.
	Name string
	// Field is the Go struct field name, empty for model-file entities.
	Field string
	Kind  Kind
	// Column is the column name; derived from Name when not set explicitly.
	Column string
	// Target names the entity of Reference, Embedded and collection properties.
	Target string
	// Type is the Go type of the field when mapped from a struct.
	Type reflect.Type

	ID         bool
	Version    bool
	ReadOnly   bool
	InsertOnly bool

	// EmbeddedPrefix is prepended to the columns of an embedded value.
	EmbeddedPrefix string
	// IDColumn overrides the back-reference column in the target's table.
	IDColumn string
	// KeyColumn overrides the qualifier column of lists and maps.
	KeyColumn string
	// Sequence names the database sequence that generates this id.
	Sequence string
	// UUID marks an id generated client-side as a random UUID.
	UUID bool

	column identifier.SQLIdentifier
	index  []int
}

// ColumnName is the unprefixed column name of the property.
func (p *Property) ColumnName() identifier.SQLIdentifier {
	return p.column
}

// FieldIndex is the reflect field index within the declaring struct.
func (p *Property) FieldIndex() []int {
	return p.index
}

// IsQualified reports lists and maps, which carry an index or key column.
func (p *Property) IsQualified() bool {
	return p.Kind == List || p.Kind == Map
}

// IsCollectionLike reports lists and sets of entities. Array columns are not
// collection-like: they are stored in a single column.
func (p *Property) IsCollectionLike() bool {
	return p.Kind == List || p.Kind == Set
}

// Entity is a mapped type: an aggregate root, a nested entity or an
// embeddable value.
type Entity struct {
	Name       string
	Table      string
	Schema     string
	Properties []*Property
	// Type is the Go struct type, nil for model-file entities.
	Type reflect.Type

	table identifier.SQLIdentifier
}

// TableName is the table name, schema-qualified when a schema is set.
func (e *Entity) TableName() identifier.SQLIdentifier {
	return e.table
}

// IDProperty returns the identifier property or nil.
func (e *Entity) IDProperty() *Property {
	for _, p := range e.Properties {
		if p.ID {
			return p
		}
	}
	return nil
}

// VersionProperty returns the optimistic locking version property or nil.
func (e *Entity) VersionProperty() *Property {
	for _, p := range e.Properties {
		if p.Version {
			return p
		}
	}
	return nil
}

func (e *Entity) HasID() bool {
	return e.IDProperty() != nil
}

func (e *Entity) HasVersion() bool {
	return e.VersionProperty() != nil
}

// Property looks a property up by its logical name.
func (e *Entity) Property(name string) (*Property, bool) {
	for _, p := range e.Properties {
		if p.Name == name {
			return p, true
		}
	}
	return nil, false
}
