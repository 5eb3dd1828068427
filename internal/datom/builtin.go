package datom

// Built-in schema present in every database. Attribute and entity-type
// entities live in SchemaPart; ids below FirstUserAttributeSeq are reserved.
var (
	// DbIdent names schema entities. Unique across the store.
	DbIdent = AttributeFromEID(1, MustSchema(SchemaOptions{Unique: true}))

	// DbSchema records the packed Schema of an attribute entity.
	DbSchema = AttributeFromEID(2, MustSchema(SchemaOptions{}))

	// DbType is the entity type of an entity. It is a required reference,
	// so deleting an entity type deletes its instances.
	DbType = AttributeFromEID(3, MustSchema(SchemaOptions{IsRef: true, Required: true}))

	// DbAttributes lists the attributes an entity type declares.
	DbAttributes = AttributeFromEID(4, MustSchema(SchemaOptions{Cardinality: Many, IsRef: true}))
)

// Built-in entity types.
const (
	// AttributeType is the entity type of attribute entities.
	AttributeType EID = 5
	// EntityTypeType is the entity type of entity-type entities.
	EntityTypeType EID = 6
)

// BuiltinAttributes lists the built-in attributes with their idents.
var BuiltinAttributes = []struct {
	Ident string
	Attr  Attribute
}{
	{"db/ident", DbIdent},
	{"db/schema", DbSchema},
	{"db/type", DbType},
	{"db/attributes", DbAttributes},
}

// IsBuiltin reports whether e is part of the built-in schema.
func IsBuiltin(e EID) bool {
	return e.Partition() == SchemaPart && e.Seq() > 0 && e.Seq() < FirstUserAttributeSeq
}
