package datom

import "strings"

// Schema is the bit-packed metadata of an attribute.
//
// Layout (bit 0 is least significant):
//
//	bit 0  Many            cardinality many (unset: one)
//	bit 1  IsRef           values are references to entities
//	bit 2  Indexed         values can be looked up (value attributes only)
//	bit 3  Unique          at most one entity per value
//	bit 4  CascadeDelete   deleting the owner deletes the referent
//	bit 5  CascadeDeleteBy deleting the referent deletes the owner
//	bit 6  Required        every entity of the declaring type has a value
type Schema uint8

const (
	schemaMany Schema = 1 << iota
	schemaRef
	schemaIndexed
	schemaUnique
	schemaCascadeDelete
	schemaCascadeDeleteBy
	schemaRequired
)

// schemaBits is the width of the schema inside an Attribute.
const schemaBits = 7

// Cardinality is the number of values an attribute may hold per entity.
type Cardinality int

const (
	// One allows at most one live value per (entity, attribute).
	One Cardinality = iota
	// Many allows a set of values per (entity, attribute).
	Many
)

func (c Cardinality) String() string {
	if c == Many {
		return "many"
	}
	return "one"
}

// SchemaOptions lists the attribute properties packed by NewSchema.
type SchemaOptions struct {
	Cardinality     Cardinality
	IsRef           bool
	Indexed         bool
	Unique          bool
	CascadeDelete   bool
	CascadeDeleteBy bool
	Required        bool
}

// NewSchema packs opts into a Schema and validates it.
//
// A required reference is always CascadeDeleteBy: it is the only way to keep
// "every required referent exists" true when the referent is deleted.
func NewSchema(opts SchemaOptions) (Schema, error) {
	var s Schema
	if opts.Cardinality == Many {
		s |= schemaMany
	}
	if opts.IsRef {
		s |= schemaRef
	}
	if opts.Indexed {
		s |= schemaIndexed
	}
	if opts.Unique {
		s |= schemaUnique
	}
	if opts.CascadeDelete {
		s |= schemaCascadeDelete
	}
	if opts.CascadeDeleteBy {
		s |= schemaCascadeDeleteBy
	}
	if opts.Required {
		s |= schemaRequired
		if opts.IsRef {
			s |= schemaCascadeDeleteBy
		}
	}
	if err := s.Validate(); err != nil {
		return 0, err
	}
	return s, nil
}

// MustSchema is like NewSchema but panics on error.
// Use only for statically known schemas.
func MustSchema(opts SchemaOptions) Schema {
	s, err := NewSchema(opts)
	if err != nil {
		panic(err)
	}
	return s
}

// Validate checks the schema invariants.
func (s Schema) Validate() error {
	if s.Required() && s.Cardinality() == Many {
		return NewConfigurationError("required attribute cannot have cardinality many")
	}
	if s.IsRef() && s.Indexed() {
		return NewConfigurationError("reference attributes cannot be indexed (references are always looked up)")
	}
	if !s.IsRef() && (s.CascadeDelete() || s.CascadeDeleteBy()) {
		return NewConfigurationError("cascade delete is only allowed on reference attributes")
	}
	if s>>schemaBits != 0 {
		return NewConfigurationError("unknown schema bits %#x", uint8(s))
	}
	return nil
}

// Cardinality returns One or Many.
func (s Schema) Cardinality() Cardinality {
	if s&schemaMany != 0 {
		return Many
	}
	return One
}

// IsRef reports whether values are entity references.
func (s Schema) IsRef() bool { return s&schemaRef != 0 }

// Indexed reports whether the Indexed flag is set.
func (s Schema) Indexed() bool { return s&schemaIndexed != 0 }

// Unique reports whether at most one entity may hold each value.
func (s Schema) Unique() bool { return s&schemaUnique != 0 }

// CascadeDelete reports whether deleting the owner deletes the referent.
func (s Schema) CascadeDelete() bool { return s&schemaCascadeDelete != 0 }

// CascadeDeleteBy reports whether deleting the referent deletes the owner.
func (s Schema) CascadeDeleteBy() bool { return s&schemaCascadeDeleteBy != 0 }

// Required reports whether the attribute must always have a value.
func (s Schema) Required() bool { return s&schemaRequired != 0 }

// LookupByValue reports whether the index keeps a value -> entity lookup
// for the attribute: indexed, unique and reference attributes.
func (s Schema) LookupByValue() bool {
	return s.IsRef() || s.Indexed() || s.Unique()
}

// Options unpacks the schema.
func (s Schema) Options() SchemaOptions {
	return SchemaOptions{
		Cardinality:     s.Cardinality(),
		IsRef:           s.IsRef(),
		Indexed:         s.Indexed(),
		Unique:          s.Unique(),
		CascadeDelete:   s.CascadeDelete(),
		CascadeDeleteBy: s.CascadeDeleteBy(),
		Required:        s.Required(),
	}
}

func (s Schema) String() string {
	parts := []string{s.Cardinality().String()}
	if s.IsRef() {
		parts = append(parts, "ref")
	}
	if s.Indexed() {
		parts = append(parts, "indexed")
	}
	if s.Unique() {
		parts = append(parts, "unique")
	}
	if s.CascadeDelete() {
		parts = append(parts, "cascade-delete")
	}
	if s.CascadeDeleteBy() {
		parts = append(parts, "cascade-delete-by")
	}
	if s.Required() {
		parts = append(parts, "required")
	}
	return strings.Join(parts, ",")
}
