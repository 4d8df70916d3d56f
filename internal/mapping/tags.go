package mapping

import (
	"fmt"
	"reflect"
	"strings"
)

// TableNamer lets a struct choose its table name.
type TableNamer interface {
	TableName() string
}

// tagOptions is the parsed form of a `db:"..."` struct tag:
//
//	db:"column,id,version,readonly,insertonly,embedded=prefix,idcolumn=x,keycolumn=y,set,sequence=s,uuid"
//
// `db:"-"` excludes a field.
type tagOptions struct {
	column         string
	id             bool
	version        bool
	readOnly       bool
	insertOnly     bool
	embedded       bool
	embeddedPrefix string
	idColumn       string
	keyColumn      string
	set            bool
	sequence       string
	uuid           bool
}

func parseTag(tag string) (tagOptions, error) {
	var opts tagOptions
	if tag == "" {
		return opts, nil
	}
	parts := strings.Split(tag, ",")
	opts.column = strings.TrimSpace(parts[0])
	for _, raw := range parts[1:] {
		key, value, _ := strings.Cut(strings.TrimSpace(raw), "=")
		switch key {
		case "id":
			opts.id = true
		case "version":
			opts.version = true
		case "readonly":
			opts.readOnly = true
		case "insertonly":
			opts.insertOnly = true
		case "embedded":
			opts.embedded = true
			opts.embeddedPrefix = value
		case "idcolumn":
			opts.idColumn = value
		case "keycolumn":
			opts.keyColumn = value
		case "set":
			opts.set = true
		case "sequence":
			opts.sequence = value
		case "uuid":
			opts.uuid = true
		case "":
		default:
			return opts, fmt.Errorf("unknown tag option %q", key)
		}
	}
	return opts, nil
}

// Register maps Go struct types, given as values or pointers, together with
// every entity type they reference.
func (c *Context) Register(values ...any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, v := range values {
		t := reflect.TypeOf(v)
		if t == nil {
			return fmt.Errorf("%w: cannot register nil", ErrInvalidMapping)
		}
		if _, err := c.registerType(t); err != nil {
			return err
		}
	}
	return nil
}

// registerType maps t and returns its entity name. The caller holds c.mu.
func (c *Context) registerType(t reflect.Type) (string, error) {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return "", fmt.Errorf("%w: %v is not a struct", ErrInvalidMapping, t)
	}
	if e, ok := c.byType[t]; ok {
		return e.Name, nil
	}
	if t.Name() == "" {
		return "", fmt.Errorf("%w: anonymous struct types cannot be entities", ErrInvalidMapping)
	}

	e := &Entity{Name: t.Name(), Type: t}
	if tn, ok := reflect.New(t).Interface().(TableNamer); ok {
		e.Table = tn.TableName()
	}
	// Visible before its properties are resolved so that self references end
	// in a cycle error at path construction instead of endless recursion here.
	c.byType[t] = e

	props, err := c.structProperties(t)
	if err != nil {
		delete(c.byType, t)
		return "", fmt.Errorf("%s: %w", t.Name(), err)
	}
	e.Properties = props
	if e.IDProperty() == nil {
		for _, p := range e.Properties {
			if p.Field == "ID" && p.Kind == Simple {
				p.ID = true
				break
			}
		}
	}
	c.finishEntity(e)
	if err := c.add(e); err != nil {
		delete(c.byType, t)
		return "", err
	}
	return e.Name, nil
}

func (c *Context) structProperties(t reflect.Type) ([]*Property, error) {
	var props []*Property
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		tag := f.Tag.Get("db")
		if tag == "-" || (!f.IsExported() && !f.Anonymous) {
			continue
		}
		opts, err := parseTag(tag)
		if err != nil {
			return nil, fmt.Errorf("%w: field %s: %v", ErrInvalidMapping, f.Name, err)
		}
		p := &Property{
			Name:           c.namer.SnakeCase(f.Name),
			Field:          f.Name,
			Column:         opts.column,
			Type:           f.Type,
			ID:             opts.id,
			Version:        opts.version,
			ReadOnly:       opts.readOnly,
			InsertOnly:     opts.insertOnly,
			EmbeddedPrefix: opts.embeddedPrefix,
			IDColumn:       opts.idColumn,
			KeyColumn:      opts.keyColumn,
			Sequence:       opts.sequence,
			UUID:           opts.uuid,
			index:          f.Index,
		}
		if err := c.classify(p, f, opts); err != nil {
			return nil, err
		}
		props = append(props, p)
	}
	return props, nil
}

func (c *Context) classify(p *Property, f reflect.StructField, opts tagOptions) error {
	ft := f.Type
	for ft.Kind() == reflect.Pointer {
		ft = ft.Elem()
	}

	isStruct := ft.Kind() == reflect.Struct && !c.types.IsSimpleType(ft)
	switch {
	case opts.embedded || (f.Anonymous && isStruct):
		if !isStruct {
			return fmt.Errorf("%w: embedded field %s must be a struct", ErrInvalidMapping, f.Name)
		}
		p.Kind = Embedded
		return c.target(p, ft)
	case c.types.IsSimpleType(ft):
		p.Kind = Simple
		return nil
	case c.types.IsArrayType(ft):
		p.Kind = Array
		return nil
	case ft.Kind() == reflect.Slice || ft.Kind() == reflect.Array:
		elem := ft.Elem()
		for elem.Kind() == reflect.Pointer {
			elem = elem.Elem()
		}
		if elem.Kind() != reflect.Struct {
			return fmt.Errorf("%w: field %s: unsupported element type %v", ErrInvalidMapping, f.Name, elem)
		}
		p.Kind = List
		if opts.set {
			p.Kind = Set
		}
		return c.target(p, elem)
	case ft.Kind() == reflect.Map:
		if !c.types.IsSimpleType(ft.Key()) {
			return fmt.Errorf("%w: field %s: map keys must be simple types", ErrInvalidMapping, f.Name)
		}
		elem := ft.Elem()
		for elem.Kind() == reflect.Pointer {
			elem = elem.Elem()
		}
		if elem.Kind() != reflect.Struct {
			return fmt.Errorf("%w: field %s: map values must be entities", ErrInvalidMapping, f.Name)
		}
		p.Kind = Map
		return c.target(p, elem)
	case isStruct:
		p.Kind = Reference
		return c.target(p, ft)
	default:
		return fmt.Errorf("%w: field %s: unsupported type %v", ErrInvalidMapping, f.Name, f.Type)
	}
}

func (c *Context) target(p *Property, t reflect.Type) error {
	name, err := c.registerType(t)
	if err != nil {
		return err
	}
	p.Target = name
	return nil
}
