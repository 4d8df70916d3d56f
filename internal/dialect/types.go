package dialect

import (
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrArraysUnsupported is returned when a vendor has no array columns.
	ErrArraysUnsupported = errors.New("array columns are not supported")
	// ErrNestedArray is returned for arrays of arrays.
	ErrNestedArray = errors.New("nested arrays are not supported")
)

var (
	timeType   = reflect.TypeOf(time.Time{})
	bytesType  = reflect.TypeOf([]byte(nil))
	valuerType = reflect.TypeOf((*driver.Valuer)(nil)).Elem()
)

// baseSimpleTypes are simple for every vendor in addition to basic kinds.
var baseSimpleTypes = []reflect.Type{
	timeType,
	bytesType,
	reflect.TypeOf(json.RawMessage(nil)),
	reflect.TypeOf(uuid.UUID{}),
	reflect.TypeOf(sql.NullString{}),
	reflect.TypeOf(sql.NullInt64{}),
	reflect.TypeOf(sql.NullInt32{}),
	reflect.TypeOf(sql.NullInt16{}),
	reflect.TypeOf(sql.NullByte{}),
	reflect.TypeOf(sql.NullFloat64{}),
	reflect.TypeOf(sql.NullBool{}),
	reflect.TypeOf(sql.NullTime{}),
}

// isBasicKind reports kinds that always map onto a single column.
func isBasicKind(k reflect.Kind) bool {
	switch k {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	default:
		return false
	}
}

// SQLTypeFor maps a Go type to a generic SQL type name.
func SQLTypeFor(t reflect.Type) string {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch t {
	case timeType:
		return "TIMESTAMP"
	case bytesType:
		return "BINARY"
	}
	switch t.Kind() {
	case reflect.Bool:
		return "BOOLEAN"
	case reflect.Int8, reflect.Uint8:
		return "TINYINT"
	case reflect.Int16, reflect.Uint16:
		return "SMALLINT"
	case reflect.Int32, reflect.Uint32:
		return "INTEGER"
	case reflect.Int, reflect.Int64, reflect.Uint, reflect.Uint64:
		return "BIGINT"
	case reflect.Float32:
		return "REAL"
	case reflect.Float64:
		return "DOUBLE"
	case reflect.String:
		return "VARCHAR"
	default:
		return "OTHER"
	}
}

// ArrayColumns describes a vendor's support for array-typed columns.
type ArrayColumns struct {
	Supported bool
	// TypeNames overrides generic SQL type names, e.g. DOUBLE -> FLOAT8.
	TypeNames map[string]string
}

// ArrayTypeName returns the element SQL type name for a slice type.
func (a ArrayColumns) ArrayTypeName(sliceType reflect.Type) (string, error) {
	if !a.Supported {
		return "", ErrArraysUnsupported
	}
	for sliceType.Kind() == reflect.Pointer {
		sliceType = sliceType.Elem()
	}
	if sliceType.Kind() != reflect.Slice && sliceType.Kind() != reflect.Array {
		return "", fmt.Errorf("%s is not an array type", sliceType)
	}
	elem := sliceType.Elem()
	if (elem.Kind() == reflect.Slice && elem != bytesType) || elem.Kind() == reflect.Array {
		return "", fmt.Errorf("%w: %s", ErrNestedArray, sliceType)
	}
	name := SQLTypeFor(elem)
	if override, ok := a.TypeNames[name]; ok {
		return override, nil
	}
	return name, nil
}

// IsArrayType reports slices that map onto a single array column: slices of
// simple non-byte element types.
func (d *Dialect) IsArrayType(t reflect.Type) bool {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Slice || t == bytesType || d.isRegisteredSimple(t) {
		return false
	}
	return d.IsSimpleType(t.Elem())
}

// IsSimpleType reports whether values of t are stored in one column rather
// than mapped as an entity.
func (d *Dialect) IsSimpleType(t reflect.Type) bool {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if d.isRegisteredSimple(t) {
		return true
	}
	if t.Implements(valuerType) || reflect.PointerTo(t).Implements(valuerType) {
		return true
	}
	return isBasicKind(t.Kind())
}

func (d *Dialect) isRegisteredSimple(t reflect.Type) bool {
	_, ok := d.simpleTypes[t]
	return ok
}
