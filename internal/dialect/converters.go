package dialect

import (
	"fmt"
	"reflect"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/lib/pq"
	mssql "github.com/microsoft/go-mssqldb"
)

// ConversionDirection says whether a converter applies to values written to or
// read from the database.
type ConversionDirection int

const (
	Writing ConversionDirection = iota
	Reading
)

// Converter is a vendor-specific value conversion.
type Converter struct {
	Name      string
	Direction ConversionDirection
	// Accepts reports whether the converter handles values of type t.
	Accepts func(t reflect.Type) bool
	// Target is the Go type a reading converter produces.
	Target  reflect.Type
	Convert func(v any) (any, error)
}

// Module bundles optional simple types and converters, registered explicitly
// when a vendor's driver types are in use.
type Module struct {
	Name        string
	SimpleTypes []reflect.Type
	Converters  []Converter
}

func typeIs(want reflect.Type) func(reflect.Type) bool {
	return func(t reflect.Type) bool { return t == want }
}

// WriteValue applies the first matching writing converter to v.
func (d *Dialect) WriteValue(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	t := reflect.TypeOf(v)
	for _, c := range d.Converters {
		if c.Direction == Writing && c.Accepts(t) {
			out, err := c.Convert(v)
			if err != nil {
				return nil, fmt.Errorf("converter %s: %w", c.Name, err)
			}
			return out, nil
		}
	}
	return v, nil
}

// ReadValue converts a scanned value into target using a reading converter.
// Values without a matching converter are returned unchanged.
func (d *Dialect) ReadValue(v any, target reflect.Type) (any, error) {
	if v == nil {
		return nil, nil
	}
	t := reflect.TypeOf(v)
	for _, c := range d.Converters {
		if c.Direction == Reading && c.Target == target && c.Accepts(t) {
			out, err := c.Convert(v)
			if err != nil {
				return nil, fmt.Errorf("converter %s: %w", c.Name, err)
			}
			return out, nil
		}
	}
	return v, nil
}

var boolType = reflect.TypeOf(false)

// oracleConverters store booleans as numbers, since older Oracle versions
// have no BOOLEAN column type.
func oracleConverters() []Converter {
	return []Converter{
		{
			Name:      "boolean-to-number",
			Direction: Writing,
			Accepts:   typeIs(boolType),
			Convert: func(v any) (any, error) {
				if v.(bool) {
					return int64(1), nil
				}
				return int64(0), nil
			},
		},
		{
			Name:      "number-to-boolean",
			Direction: Reading,
			Target:    boolType,
			Accepts: func(t reflect.Type) bool {
				switch t.Kind() {
				case reflect.Int, reflect.Int64, reflect.Int32, reflect.Float64, reflect.String:
					return true
				}
				return false
			},
			Convert: func(v any) (any, error) {
				switch x := v.(type) {
				case int:
					return x != 0, nil
				case int64:
					return x != 0, nil
				case int32:
					return x != 0, nil
				case float64:
					return x != 0, nil
				case string:
					n, err := strconv.ParseFloat(x, 64)
					if err != nil {
						return nil, fmt.Errorf("invalid numeric boolean %q: %w", x, err)
					}
					return n != 0, nil
				}
				return nil, fmt.Errorf("unexpected %T", v)
			},
		},
	}
}

// mysqlConverters normalize timestamps to UTC because DATETIME has no zone.
func mysqlConverters() []Converter {
	return []Converter{
		{
			Name:      "time-to-utc",
			Direction: Writing,
			Accepts:   typeIs(timeType),
			Convert: func(v any) (any, error) {
				return v.(time.Time).UTC(), nil
			},
		},
	}
}

// postgresConverters write Go slices of simple values as Postgres arrays.
func postgresConverters() []Converter {
	return []Converter{
		{
			Name:      "slice-to-array",
			Direction: Writing,
			Accepts: func(t reflect.Type) bool {
				return t.Kind() == reflect.Slice && t != bytesType && isBasicKind(t.Elem().Kind())
			},
			Convert: func(v any) (any, error) {
				return pq.Array(v), nil
			},
		},
	}
}

var dateTimeOffsetType = reflect.TypeOf(mssql.DateTimeOffset{})

// sqlServerConverters read DATETIMEOFFSET values as time.Time.
func sqlServerConverters() []Converter {
	return []Converter{
		{
			Name:      "datetimeoffset-to-time",
			Direction: Reading,
			Target:    timeType,
			Accepts:   typeIs(dateTimeOffsetType),
			Convert: func(v any) (any, error) {
				return time.Time(v.(mssql.DateTimeOffset)), nil
			},
		},
	}
}

// PostgresGeometryModule registers the pgtype geometric and interval types as
// simple types.
func PostgresGeometryModule() Module {
	return Module{
		Name: "pgtype",
		SimpleTypes: []reflect.Type{
			reflect.TypeOf(pgtype.Point{}),
			reflect.TypeOf(pgtype.Box{}),
			reflect.TypeOf(pgtype.Circle{}),
			reflect.TypeOf(pgtype.Line{}),
			reflect.TypeOf(pgtype.Lseg{}),
			reflect.TypeOf(pgtype.Path{}),
			reflect.TypeOf(pgtype.Polygon{}),
			reflect.TypeOf(pgtype.Interval{}),
		},
	}
}

// SQLServerTypesModule registers the go-mssqldb value types as simple types.
func SQLServerTypesModule() Module {
	return Module{
		Name: "mssql",
		SimpleTypes: []reflect.Type{
			reflect.TypeOf(mssql.UniqueIdentifier{}),
			dateTimeOffsetType,
			reflect.TypeOf(mssql.VarChar("")),
			reflect.TypeOf(mssql.NVarCharMax("")),
			reflect.TypeOf(mssql.VarCharMax("")),
		},
	}
}
