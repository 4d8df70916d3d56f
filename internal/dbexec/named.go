package dbexec

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"unicode"
)

var (
	// ErrMissingParameter is returned when a :name marker has no value.
	ErrMissingParameter = errors.New("missing parameter")
	// ErrEmptyList is returned when an IN list parameter has no elements.
	ErrEmptyList = errors.New("empty list parameter")
)

// Params are the values bound to :name markers, keyed by name.
type Params map[string]any

// parameter is one :name occurrence. list is set for markers that directly
// follow IN (, whose slice values expand to one marker per element.
type parameter struct {
	name string
	list bool
}

// namedStatement is a parsed query: len(parameters)+1 text fragments
// interleaved with parameters.
type namedStatement struct {
	fragments  []string
	parameters []parameter
}

// parseNamed splits query at its :name markers. Markers inside quoted text and
// :: casts are left alone.
func parseNamed(query string) *namedStatement {
	stmt := &namedStatement{}
	runes := []rune(query)
	var current strings.Builder
	var quote rune

	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
			current.WriteRune(r)
		case r == '\'' || r == '"' || r == '`':
			quote = r
			current.WriteRune(r)
		case r == ':' && i+1 < len(runes) && runes[i+1] == ':':
			current.WriteString("::")
			i++
		case r == ':' && i+1 < len(runes) && isNameStart(runes[i+1]):
			j := i + 1
			for j < len(runes) && isNamePart(runes[j]) {
				j++
			}
			text := current.String()
			stmt.fragments = append(stmt.fragments, text)
			stmt.parameters = append(stmt.parameters, parameter{
				name: string(runes[i+1 : j]),
				list: followsIn(text),
			})
			current.Reset()
			i = j - 1
		default:
			current.WriteRune(r)
		}
	}
	stmt.fragments = append(stmt.fragments, current.String())
	return stmt
}

func isNameStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isNamePart(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

func followsIn(text string) bool {
	trimmed := strings.TrimRightFunc(text, unicode.IsSpace)
	if !strings.HasSuffix(trimmed, "(") {
		return false
	}
	trimmed = strings.TrimRightFunc(strings.TrimSuffix(trimmed, "("), unicode.IsSpace)
	upper := strings.ToUpper(trimmed)
	if !strings.HasSuffix(upper, "IN") {
		return false
	}
	before := strings.TrimSuffix(upper, "IN")
	return before == "" || unicode.IsSpace(rune(before[len(before)-1]))
}

// bind renders the statement with ? markers. convert is applied to every
// bound value, after list expansion.
func (s *namedStatement) bind(params Params, convert func(any) (any, error)) (string, []any, error) {
	var b strings.Builder
	args := make([]any, 0, len(s.parameters))
	for i, p := range s.parameters {
		b.WriteString(s.fragments[i])
		value, ok := params[p.name]
		if !ok {
			return "", nil, fmt.Errorf("%w: %s", ErrMissingParameter, p.name)
		}

		values := []any{value}
		if p.list {
			if elems, isList := expand(value); isList {
				if len(elems) == 0 {
					return "", nil, fmt.Errorf("%w: %s", ErrEmptyList, p.name)
				}
				values = elems
			}
		}
		for k, v := range values {
			if k > 0 {
				b.WriteString(", ")
			}
			b.WriteByte('?')
			converted, err := convert(v)
			if err != nil {
				return "", nil, fmt.Errorf("parameter %s: %w", p.name, err)
			}
			args = append(args, converted)
		}
	}
	b.WriteString(s.fragments[len(s.fragments)-1])
	return b.String(), args, nil
}

var valuerType = reflect.TypeOf((*driver.Valuer)(nil)).Elem()

// expand returns the elements of slice and array values. Byte slices and
// driver.Valuer implementations are single values.
func expand(value any) ([]any, bool) {
	if value == nil {
		return nil, false
	}
	v := reflect.ValueOf(value)
	if v.Type().Implements(valuerType) {
		return nil, false
	}
	if v.Kind() != reflect.Slice && v.Kind() != reflect.Array {
		return nil, false
	}
	if v.Type().Elem().Kind() == reflect.Uint8 {
		return nil, false
	}
	out := make([]any, v.Len())
	for i := range out {
		out[i] = v.Index(i).Interface()
	}
	return out, true
}
