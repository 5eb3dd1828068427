package db

import "github.com/roach88/datoms/internal/datom"

// AttributeEntity describes the schema entity of attribute a.
func AttributeEntity(ident string, a datom.Attribute) ReifiedEntity {
	return ReifiedEntity{
		E: a.EID(),
		Values: []AttrValue{
			{A: datom.DbIdent, V: datom.String(ident)},
			{A: datom.DbSchema, V: datom.Int(a.Schema())},
			{A: datom.DbType, V: datom.Ref(datom.AttributeType)},
		},
	}
}

// TypeEntity describes the schema entity of an entity type declaring attrs.
func TypeEntity(e datom.EID, ident string, attrs ...datom.Attribute) ReifiedEntity {
	values := []AttrValue{
		{A: datom.DbIdent, V: datom.String(ident)},
		{A: datom.DbType, V: datom.Ref(datom.EntityTypeType)},
	}
	for _, a := range attrs {
		values = append(values, AttrValue{A: datom.DbAttributes, V: datom.Ref(a.EID())})
	}
	return ReifiedEntity{E: e, Values: values}
}

// BootstrapSchema reifies the built-in attributes and entity types. It is
// idempotent.
func BootstrapSchema() ReifyEntities {
	var ents []ReifiedEntity

	// Entity types first: attribute entities reference db/Attribute.
	ents = append(ents,
		TypeEntity(datom.EntityTypeType, "db/EntityType"),
		TypeEntity(datom.AttributeType, "db/Attribute"),
	)
	for _, b := range datom.BuiltinAttributes {
		ents = append(ents, AttributeEntity(b.Ident, b.Attr))
	}

	// db/attributes refs need the attribute entities to exist.
	ents = append(ents,
		TypeEntity(datom.AttributeType, "db/Attribute", datom.DbIdent, datom.DbSchema, datom.DbType),
		TypeEntity(datom.EntityTypeType, "db/EntityType", datom.DbIdent, datom.DbType, datom.DbAttributes),
	)
	return ReifyEntities{Entities: ents}
}
