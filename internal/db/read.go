package db

import (
	"github.com/roach88/datoms/internal/datom"
	"github.com/roach88/datoms/internal/index"
)

// Exists reports whether e has any datom. Unlike AssertEntityExists this is
// an ordinary tracked read.
func Exists(q Q, e datom.EID) bool {
	return len(q.QueryIndex(index.Entity{E: e})) > 0
}

// Entities returns the entities whose db/type is typ, in id order.
func Entities(q Q, typ datom.EID) []datom.EID {
	return entityIDs(q.QueryIndex(index.LookupMany{A: datom.DbType, V: datom.Ref(typ)}))
}

// All returns every datom of attribute a.
func All(q Q, a datom.Attribute) []datom.Datom {
	return q.QueryIndex(index.Column{A: a})
}

// Values returns every value of a on e.
func Values(q Q, e datom.EID, a datom.Attribute) []datom.Value {
	ds := q.QueryIndex(index.GetMany{E: e, A: a})
	out := make([]datom.Value, len(ds))
	for i, d := range ds {
		out[i] = d.V
	}
	return out
}

// Value returns the value of a cardinality-one attribute.
func Value(q Q, e datom.EID, a datom.Attribute) (datom.Value, bool) {
	ds := q.QueryIndex(index.GetOne{E: e, A: a})
	if len(ds) == 0 {
		return nil, false
	}
	return ds[0].V, true
}

// Lookup returns the entities holding v for a.
func Lookup(q Q, a datom.Attribute, v datom.Value) []datom.EID {
	return entityIDs(q.QueryIndex(index.LookupMany{A: a, V: v}))
}

// LookupOne returns the entity holding v for a unique attribute.
func LookupOne(q Q, a datom.Attribute, v datom.Value) (datom.EID, bool) {
	ds := q.QueryIndex(index.LookupUnique{A: a, V: v})
	if len(ds) == 0 {
		return 0, false
	}
	return ds[0].E, true
}

// Single returns the value of a on e, failing when e does not exist or has
// no value for a.
func Single(q Q, e datom.EID, a datom.Attribute) (datom.Value, error) {
	if err := q.AssertEntityExists(e); err != nil {
		return nil, err
	}
	v, ok := Value(q, e, a)
	if !ok {
		return nil, datom.NewRequiredMissingError(e, a)
	}
	return v, nil
}

// SingleOrZero returns the value of a on e, or nil.
func SingleOrZero(q Q, e datom.EID, a datom.Attribute) datom.Value {
	v, _ := Value(q, e, a)
	return v
}

// DeserializationProblems returns the datoms of a whose value is a Problem.
func DeserializationProblems(q Q, a datom.Attribute) []datom.Datom {
	var out []datom.Datom
	for _, d := range q.QueryIndex(index.Column{A: a}) {
		if datom.IsProblem(d.V) {
			out = append(out, d)
		}
	}
	return out
}

// Ident returns the db/ident of e, or "".
func Ident(q Q, e datom.EID) string {
	if v, ok := Value(q, e, datom.DbIdent); ok {
		if s, ok := v.(datom.String); ok {
			return string(s)
		}
	}
	return ""
}

// EntityByIdent resolves a db/ident.
func EntityByIdent(q Q, ident string) (datom.EID, bool) {
	return LookupOne(q, datom.DbIdent, datom.String(ident))
}

// AttributeByIdent resolves a registered attribute from its db/ident and
// db/schema datoms.
func AttributeByIdent(q Q, ident string) (datom.Attribute, error) {
	e, ok := EntityByIdent(q, ident)
	if !ok {
		return 0, datom.NewConfigurationError("unknown attribute %q", ident)
	}
	v, ok := Value(q, e, datom.DbSchema)
	if !ok {
		return 0, datom.NewConfigurationError("%q is not an attribute", ident)
	}
	n, ok := v.(datom.Int)
	if !ok {
		return 0, datom.NewConfigurationError("attribute %q has malformed schema %s", ident, datom.FormatValue(v))
	}
	return datom.NewAttribute(e, datom.Schema(n))
}

func entityIDs(ds []datom.Datom) []datom.EID {
	out := make([]datom.EID, 0, len(ds))
	for _, d := range ds {
		out = append(out, d.E)
	}
	return out
}
