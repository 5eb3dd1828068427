package datom

import (
	"fmt"
	"sync/atomic"
)

// AttributeIDBits is the width of the attribute's own entity id inside an
// Attribute. Attribute entities live in SchemaPart below 1<<AttributeIDBits.
const AttributeIDBits = 20

const attributeIDMask = (int64(1) << AttributeIDBits) - 1

// Attribute is a self-describing attribute handle:
//
//	(schema << 20) | eid
//
// The low 20 bits are the id of the entity that defines the attribute, the
// bits above hold its Schema. Two attributes are equal iff their integers are
// equal, and the schema of a given attribute identity never changes.
type Attribute int64

// NewAttribute packs eid and schema into an Attribute.
// The schema is validated; eid must be a SchemaPart id below 1<<20.
func NewAttribute(eid EID, schema Schema) (Attribute, error) {
	if err := schema.Validate(); err != nil {
		return 0, err
	}
	if eid.Partition() != SchemaPart || eid.Seq() <= 0 || eid.Seq() > attributeIDMask {
		return 0, NewConfigurationError("attribute entity id %s is outside the schema partition range", eid)
	}
	return AttributeFromEID(eid, schema), nil
}

// MustAttribute is like NewAttribute but panics on error.
// Use only for statically declared attributes.
func MustAttribute(eid EID, schema Schema) Attribute {
	a, err := NewAttribute(eid, schema)
	if err != nil {
		panic(err)
	}
	return a
}

// AttributeFromEID packs without validation. Callers must pass a schema that
// has been validated and an eid from NewAttribute's range.
func AttributeFromEID(eid EID, schema Schema) Attribute {
	return Attribute(int64(schema)<<AttributeIDBits | (int64(eid) & attributeIDMask))
}

// EID returns the id of the attribute-defining entity.
func (a Attribute) EID() EID {
	return EID(int64(a) & attributeIDMask)
}

// Schema returns the attribute's schema bits.
func (a Attribute) Schema() Schema {
	return Schema(int64(a) >> AttributeIDBits)
}

func (a Attribute) String() string {
	return fmt.Sprintf("attr#%d[%s]", a.EID().Seq(), a.Schema())
}

// AttributeAllocator hands out sequential attribute entity ids in SchemaPart.
// Ids below FirstUserAttributeSeq are reserved for the built-in schema.
//
// Thread-safety: AttributeAllocator is safe for concurrent use.
type AttributeAllocator struct {
	next atomic.Int64
}

// FirstUserAttributeSeq is the first attribute id handed out to user code.
const FirstUserAttributeSeq = 64

// NewAttributeAllocator creates an allocator starting at FirstUserAttributeSeq.
func NewAttributeAllocator() *AttributeAllocator {
	a := &AttributeAllocator{}
	a.next.Store(FirstUserAttributeSeq - 1)
	return a
}

// New allocates the next attribute id and packs it with a schema built from opts.
func (al *AttributeAllocator) New(opts SchemaOptions) (Attribute, error) {
	schema, err := NewSchema(opts)
	if err != nil {
		return 0, err
	}
	return NewAttribute(NewEID(SchemaPart, al.next.Add(1)), schema)
}
