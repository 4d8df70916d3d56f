package mapping

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Model is the file form of a set of entities.
//
//	entities:
//	  - name: Person
//	    table: person
//	    properties:
//	      - {name: id, id: true}
//	      - {name: address, kind: embedded, target: Address, prefix: addr_}
//	      - {name: tags, kind: list, target: Tag}
type Model struct {
	Entities []EntityModel `yaml:"entities"`
}

// EntityModel declares one entity.
type EntityModel struct {
	Name       string          `yaml:"name"`
	Table      string          `yaml:"table,omitempty"`
	Schema     string          `yaml:"schema,omitempty"`
	Properties []PropertyModel `yaml:"properties"`
}

// PropertyModel declares one property.
type PropertyModel struct {
	Name       string `yaml:"name"`
	Column     string `yaml:"column,omitempty"`
	Kind       string `yaml:"kind,omitempty"`
	Target     string `yaml:"target,omitempty"`
	ID         bool   `yaml:"id,omitempty"`
	Version    bool   `yaml:"version,omitempty"`
	ReadOnly   bool   `yaml:"readonly,omitempty"`
	InsertOnly bool   `yaml:"insertonly,omitempty"`
	Prefix     string `yaml:"prefix,omitempty"`
	IDColumn   string `yaml:"id_column,omitempty"`
	KeyColumn  string `yaml:"key_column,omitempty"`
	Sequence   string `yaml:"sequence,omitempty"`
	UUID       bool   `yaml:"uuid,omitempty"`
}

// ParseModel decodes a YAML model, rejecting unknown keys.
func ParseModel(data []byte) (*Model, error) {
	var m Model
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("failed to parse model: %w", err)
	}
	return &m, nil
}

// LoadModel reads and decodes a YAML model file.
func LoadModel(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model file: %w", err)
	}
	return ParseModel(data)
}

// RegisterModel adds the entities of a model. Targets may refer to entities
// declared later in the same model or registered before.
func (c *Context) RegisterModel(m *Model) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, em := range m.Entities {
		if em.Name == "" {
			return fmt.Errorf("%w: model entity without name", ErrInvalidMapping)
		}
		e := &Entity{Name: em.Name, Table: em.Table, Schema: em.Schema}
		for _, pm := range em.Properties {
			kind, ok := ParseKind(pm.Kind)
			if !ok {
				return fmt.Errorf("%w: %s.%s: unknown kind %q", ErrInvalidMapping, em.Name, pm.Name, pm.Kind)
			}
			e.Properties = append(e.Properties, &Property{
				Name:           pm.Name,
				Column:         pm.Column,
				Kind:           kind,
				Target:         pm.Target,
				ID:             pm.ID,
				Version:        pm.Version,
				ReadOnly:       pm.ReadOnly,
				InsertOnly:     pm.InsertOnly,
				EmbeddedPrefix: pm.Prefix,
				IDColumn:       pm.IDColumn,
				KeyColumn:      pm.KeyColumn,
				Sequence:       pm.Sequence,
				UUID:           pm.UUID,
			})
		}
		c.finishEntity(e)
		if err := c.add(e); err != nil {
			return err
		}
	}
	return nil
}

// ToModel exports the registered entities, e.g. to turn struct mappings into
// a model file.
func (c *Context) ToModel() *Model {
	m := &Model{}
	for _, e := range c.Entities() {
		em := EntityModel{Name: e.Name, Table: e.Table, Schema: e.Schema}
		for _, p := range e.Properties {
			pm := PropertyModel{
				Name:       p.Name,
				Target:     p.Target,
				ID:         p.ID,
				Version:    p.Version,
				ReadOnly:   p.ReadOnly,
				InsertOnly: p.InsertOnly,
				Prefix:     p.EmbeddedPrefix,
				IDColumn:   p.IDColumn,
				KeyColumn:  p.KeyColumn,
				Sequence:   p.Sequence,
				UUID:       p.UUID,
			}
			if p.Kind != Simple {
				pm.Kind = p.Kind.String()
			}
			if !p.Kind.IsEntity() {
				pm.Column = p.Column
			}
			em.Properties = append(em.Properties, pm)
		}
		m.Entities = append(m.Entities, em)
	}
	return m
}
