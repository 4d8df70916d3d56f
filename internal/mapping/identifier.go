package mapping

import (
	"fmt"

	"relgen/internal/identifier"
)

// IdentifierPart is one column of a composite identifier.
type IdentifierPart struct {
	Name  identifier.SQLIdentifier
	Value any
}

// Identifier is an ordered set of column/value pairs that locate the rows of a
// child table: the back-reference to the parent plus list indexes or map keys.
// Identifiers are values; With returns a modified copy.
type Identifier struct {
	parts []IdentifierPart
}

// EmptyIdentifier has no parts.
func EmptyIdentifier() Identifier {
	return Identifier{}
}

// IdentifierOf creates a single-part identifier.
func IdentifierOf(name identifier.SQLIdentifier, value any) Identifier {
	return Identifier{parts: []IdentifierPart{{Name: name, Value: value}}}
}

// With returns a copy with the part added, replacing a part of the same name.
func (id Identifier) With(name identifier.SQLIdentifier, value any) Identifier {
	parts := make([]IdentifierPart, 0, len(id.parts)+1)
	replaced := false
	for _, p := range id.parts {
		if p.Name.Equal(name) {
			parts = append(parts, IdentifierPart{Name: name, Value: value})
			replaced = true
			continue
		}
		parts = append(parts, p)
	}
	if !replaced {
		parts = append(parts, IdentifierPart{Name: name, Value: value})
	}
	return Identifier{parts: parts}
}

// Parts returns the parts in insertion order.
func (id Identifier) Parts() []IdentifierPart {
	return append([]IdentifierPart(nil), id.parts...)
}

func (id Identifier) Len() int {
	return len(id.parts)
}

// Get returns the value of the named part.
func (id Identifier) Get(name identifier.SQLIdentifier) (any, bool) {
	for _, p := range id.parts {
		if p.Name.Equal(name) {
			return p.Value, true
		}
	}
	return nil, false
}

// ToMap keys the values by bind parameter name.
func (id Identifier) ToMap() map[string]any {
	m := make(map[string]any, len(id.parts))
	for _, p := range id.parts {
		m[identifier.BindName(p.Name)] = p.Value
	}
	return m
}

// BackReference builds the identifier of the rows at path that belong to the
// parent with the given id. The path must lead to a table of its own.
func BackReference(path Path, parentID any) (Identifier, error) {
	info := path.TableInfo()
	if !info.HasReverseColumn() {
		return Identifier{}, fmt.Errorf("%w: %s has no back-reference column", ErrInvalidMapping, path.describe())
	}
	return IdentifierOf(info.ReverseColumn.Name, parentID), nil
}

// WithQualifier adds the list index or map key of a qualified path.
func (id Identifier) WithQualifier(path Path, value any) (Identifier, error) {
	info := path.TableInfo()
	if !info.HasQualifierColumn() {
		return Identifier{}, fmt.Errorf("%w: %s is not qualified", ErrInvalidMapping, path.describe())
	}
	return id.With(info.QualifierColumn.Name, value), nil
}
