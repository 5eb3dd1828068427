package changescope

import (
	"github.com/roach88/datoms/internal/datom"
	"github.com/roach88/datoms/internal/db"
)

// Register declares t and its attributes in the database. Registration is
// idempotent: when every schema entity already exists with the same
// ident and schema, nothing is written. An ident already bound to a
// different entity, or an attribute redeclared with a different schema,
// is a configuration error.
func (s *ChangeScope) Register(t EntityType) error {
	if err := t.validate(); err != nil {
		return err
	}
	if known, ok := s.typeOf(t.E); ok && known.Ident != t.Ident {
		return datom.NewConfigurationError("entity type %s is already registered as %q", t.E, known.Ident)
	}
	if e, ok := s.state.registry.ByIdent(t.Ident); ok && e.E != t.E {
		return datom.NewConfigurationError("entity type %q is already registered as %s", t.Ident, e.E)
	}

	q := s.Q()
	if err := checkIdent(q, t.Ident, t.E); err != nil {
		return err
	}

	var ents []db.ReifiedEntity
	attrs := make([]datom.Attribute, 0, len(t.Attributes))
	for _, def := range t.Attributes {
		if err := checkIdent(q, def.Ident, def.Attr.EID()); err != nil {
			return err
		}
		if v, ok := db.Value(q, def.Attr.EID(), datom.DbSchema); ok && v != datom.Int(def.Attr.Schema()) {
			return datom.NewConfigurationError("attribute %q is already declared with schema %s",
				def.Ident, datom.Schema(v.(datom.Int)))
		}
		ents = append(ents, db.AttributeEntity(def.Ident, def.Attr))
		attrs = append(attrs, def.Attr)
	}
	ents = append(ents, db.TypeEntity(t.E, t.Ident, attrs...))

	if _, err := s.Mutate(db.ReifyEntities{Entities: ents}); err != nil {
		return err
	}
	if _, ok := s.state.pending[t.E]; !ok {
		s.state.order = append(s.state.order, t.E)
	}
	s.state.pending[t.E] = t
	return nil
}

// checkIdent fails when ident already names an entity other than e.
func checkIdent(q db.Q, ident string, e datom.EID) error {
	holder, ok := db.EntityByIdent(q, ident)
	if ok && holder != e {
		return datom.NewConfigurationError("ident %q is already bound to %s", ident, holder)
	}
	return nil
}
