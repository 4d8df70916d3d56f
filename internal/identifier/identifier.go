package identifier

import "strings"

type part struct {
	name   string
	quoted bool
}

// SQLIdentifier is a possibly composite, possibly quoted SQL name such as a
// table, column or alias. The zero value is the empty identifier.
type SQLIdentifier struct {
	parts []part
}

// Quoted creates an identifier that is rendered with quoting and letter-case
// standardization.
func Quoted(name string) SQLIdentifier {
	return SQLIdentifier{parts: []part{{name: name, quoted: true}}}
}

// Unquoted creates an identifier that is rendered verbatim.
func Unquoted(name string) SQLIdentifier {
	return SQLIdentifier{parts: []part{{name: name}}}
}

// From composes identifiers into a dotted name like schema.table.
func From(ids ...SQLIdentifier) SQLIdentifier {
	var parts []part
	for _, id := range ids {
		parts = append(parts, id.parts...)
	}
	return SQLIdentifier{parts: parts}
}

// IsEmpty reports whether the identifier has no name.
func (i SQLIdentifier) IsEmpty() bool {
	return len(i.parts) == 0
}

// IsQuoted reports whether every part of the identifier is quoted.
func (i SQLIdentifier) IsQuoted() bool {
	if len(i.parts) == 0 {
		return false
	}
	for _, p := range i.parts {
		if !p.quoted {
			return false
		}
	}
	return true
}

// Reference returns the raw name, parts joined with dots. It is used for
// lookups, parameter names and sorting, never for SQL text.
func (i SQLIdentifier) Reference() string {
	switch len(i.parts) {
	case 0:
		return ""
	case 1:
		return i.parts[0].name
	}
	names := make([]string, len(i.parts))
	for idx, p := range i.parts {
		names[idx] = p.name
	}
	return strings.Join(names, ".")
}

// ToSQL renders the identifier for the given processing rules.
func (i SQLIdentifier) ToSQL(p Processing) string {
	names := make([]string, len(i.parts))
	for idx, pt := range i.parts {
		if pt.quoted {
			names[idx] = p.Quote(p.StandardizeLetterCase(pt.name))
		} else {
			names[idx] = pt.name
		}
	}
	return strings.Join(names, ".")
}

// Transform returns a copy with fn applied to every part name.
func (i SQLIdentifier) Transform(fn func(string) string) SQLIdentifier {
	return i.transform(fn, true)
}

// TransformUnquoted returns a copy with fn applied to unquoted parts only.
func (i SQLIdentifier) TransformUnquoted(fn func(string) string) SQLIdentifier {
	return i.transform(fn, false)
}

func (i SQLIdentifier) transform(fn func(string) string, includeQuoted bool) SQLIdentifier {
	if len(i.parts) == 0 {
		return i
	}
	parts := make([]part, len(i.parts))
	for idx, p := range i.parts {
		if p.quoted && !includeQuoted {
			parts[idx] = p
			continue
		}
		parts[idx] = part{name: fn(p.name), quoted: p.quoted}
	}
	return SQLIdentifier{parts: parts}
}

// Last returns the final part of a composite identifier.
func (i SQLIdentifier) Last() SQLIdentifier {
	if len(i.parts) <= 1 {
		return i
	}
	return SQLIdentifier{parts: []part{i.parts[len(i.parts)-1]}}
}

// Equal compares names and quoting.
func (i SQLIdentifier) Equal(other SQLIdentifier) bool {
	if len(i.parts) != len(other.parts) {
		return false
	}
	for idx := range i.parts {
		if i.parts[idx] != other.parts[idx] {
			return false
		}
	}
	return true
}

func (i SQLIdentifier) String() string {
	return i.Reference()
}
