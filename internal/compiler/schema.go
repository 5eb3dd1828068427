// Package compiler turns schema declarations into attributes and entity
// types the store can register.
//
// Declarations come from CUE files (see CompileSchema) or from YAML
// embedded in harness scenarios; both decode into a SchemaSpec:
//
//	attributes: "person/name":  {id: 100, required: true}
//	attributes: "person/email": {id: 101, unique: true}
//	attributes: "project/owner": {id: 111, ref: true, required: true, target: "Person"}
//	types: Person:  {id: 200, attributes: ["person/name", "person/email"]}
//	types: Project: {id: 201, attributes: ["project/owner"]}
//
// Ids are sequence numbers in the schema partition. Attributes and types
// share the id space, and ids below datom.FirstUserAttributeSeq are
// reserved for the built-in schema.
package compiler

import (
	"fmt"
	"sort"

	"github.com/roach88/datoms/internal/changescope"
	"github.com/roach88/datoms/internal/datom"
	"github.com/roach88/datoms/internal/db"
)

// AttributeSpec declares one attribute.
type AttributeSpec struct {
	ID              int64  `json:"id" yaml:"id"`
	Ref             bool   `json:"ref,omitempty" yaml:"ref,omitempty"`
	Target          string `json:"target,omitempty" yaml:"target,omitempty"`
	Many            bool   `json:"many,omitempty" yaml:"many,omitempty"`
	Indexed         bool   `json:"indexed,omitempty" yaml:"indexed,omitempty"`
	Unique          bool   `json:"unique,omitempty" yaml:"unique,omitempty"`
	Required        bool   `json:"required,omitempty" yaml:"required,omitempty"`
	CascadeDelete   bool   `json:"cascade_delete,omitempty" yaml:"cascade_delete,omitempty"`
	CascadeDeleteBy bool   `json:"cascade_delete_by,omitempty" yaml:"cascade_delete_by,omitempty"`
}

// Options converts the declaration to schema options.
func (a AttributeSpec) Options() datom.SchemaOptions {
	card := datom.One
	if a.Many {
		card = datom.Many
	}
	return datom.SchemaOptions{
		Cardinality:     card,
		IsRef:           a.Ref,
		Indexed:         a.Indexed,
		Unique:          a.Unique,
		CascadeDelete:   a.CascadeDelete,
		CascadeDeleteBy: a.CascadeDeleteBy,
		Required:        a.Required,
	}
}

// deletesReferrer reports whether deleting the referenced entity deletes
// the entity holding the attribute.
func (a AttributeSpec) deletesReferrer() bool {
	return a.Ref && (a.CascadeDeleteBy || a.Required)
}

// TypeSpec declares an entity type and the attributes it uses.
type TypeSpec struct {
	ID         int64    `json:"id" yaml:"id"`
	Attributes []string `json:"attributes,omitempty" yaml:"attributes,omitempty"`
}

// SchemaSpec is a complete declaration, keyed by ident.
type SchemaSpec struct {
	Attributes map[string]AttributeSpec `json:"attributes,omitempty" yaml:"attributes,omitempty"`
	Types      map[string]TypeSpec      `json:"types,omitempty" yaml:"types,omitempty"`
}

func (s SchemaSpec) attributeNames() []string { return sortedKeys(s.Attributes) }
func (s SchemaSpec) typeNames() []string      { return sortedKeys(s.Types) }

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Schema is a compiled, validated declaration.
type Schema struct {
	// Attributes ordered by id.
	Attributes []changescope.AttributeDef
	// Types ordered by id.
	Types []changescope.EntityType

	attrs  map[string]datom.Attribute
	types  map[string]changescope.EntityType
	idents map[datom.EID]string
}

// Build validates spec and compiles it.
func Build(spec SchemaSpec) (*Schema, error) {
	if errs := Validate(spec); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}
	return build(spec), nil
}

// build assumes spec is valid.
func build(spec SchemaSpec) *Schema {
	s := &Schema{
		attrs:  make(map[string]datom.Attribute, len(spec.Attributes)),
		types:  make(map[string]changescope.EntityType, len(spec.Types)),
		idents: make(map[datom.EID]string, len(spec.Attributes)+len(spec.Types)),
	}

	for _, name := range spec.attributeNames() {
		a := datom.MustAttribute(
			datom.NewEID(datom.SchemaPart, spec.Attributes[name].ID),
			datom.MustSchema(spec.Attributes[name].Options()),
		)
		s.attrs[name] = a
		s.idents[a.EID()] = name
		s.Attributes = append(s.Attributes, changescope.AttributeDef{Ident: name, Attr: a})
	}
	sort.Slice(s.Attributes, func(i, j int) bool { return s.Attributes[i].Attr.EID() < s.Attributes[j].Attr.EID() })

	for _, name := range spec.typeNames() {
		ts := spec.Types[name]
		t := changescope.EntityType{E: datom.NewEID(datom.SchemaPart, ts.ID), Ident: name}
		for _, ident := range ts.Attributes {
			t.Attributes = append(t.Attributes, changescope.AttributeDef{Ident: ident, Attr: s.attrs[ident]})
		}
		s.types[name] = t
		s.idents[t.E] = name
		s.Types = append(s.Types, t)
	}
	sort.Slice(s.Types, func(i, j int) bool { return s.Types[i].E < s.Types[j].E })
	return s
}

// Attribute returns the attribute declared as ident.
func (s *Schema) Attribute(ident string) (datom.Attribute, bool) {
	a, ok := s.attrs[ident]
	return a, ok
}

// Type returns the entity type declared as ident.
func (s *Schema) Type(ident string) (changescope.EntityType, bool) {
	t, ok := s.types[ident]
	return t, ok
}

// Ident returns the ident of a declared attribute or type.
func (s *Schema) Ident(e datom.EID) (string, bool) {
	ident, ok := s.idents[e]
	return ident, ok
}

// Install writes every attribute entity and registers every type. It is
// idempotent.
func (s *Schema) Install(scope *changescope.ChangeScope) error {
	ents := make([]db.ReifiedEntity, 0, len(s.Attributes))
	for _, def := range s.Attributes {
		ents = append(ents, db.AttributeEntity(def.Ident, def.Attr))
	}
	if _, err := scope.Mutate(db.ReifyEntities{Entities: ents}); err != nil {
		return fmt.Errorf("install attributes: %w", err)
	}
	for _, t := range s.Types {
		if err := scope.Register(t); err != nil {
			return fmt.Errorf("register %s: %w", t.Ident, err)
		}
	}
	return nil
}
