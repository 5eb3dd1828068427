package index

import (
	"fmt"

	"github.com/roach88/datoms/internal/datom"
)

// Query is a read request against an Index. The set of implementations is
// closed; Index.Query handles every one of them.
type Query interface {
	// Pattern returns the pattern this query reads. A datom can change the
	// result only if this pattern is among its PatternHashes.
	Pattern() datom.Pattern
	fmt.Stringer
	indexQuery()
}

// GetOne reads the single value of a cardinality-one attribute.
type GetOne struct {
	E datom.EID
	A datom.Attribute
}

// GetMany reads every value of an attribute on one entity.
type GetMany struct {
	E datom.EID
	A datom.Attribute
}

// Column reads every datom of an attribute.
type Column struct {
	A datom.Attribute
}

// LookupUnique finds the entity holding value V for attribute A.
type LookupUnique struct {
	A datom.Attribute
	V datom.Value
}

// LookupMany finds every entity holding value V for attribute A.
type LookupMany struct {
	A datom.Attribute
	V datom.Value
}

// Contains tests whether the exact datom (E, A, V) is asserted.
type Contains struct {
	E datom.EID
	A datom.Attribute
	V datom.Value
}

// Entity reads every datom of one entity.
type Entity struct {
	E datom.EID
}

// RefsTo reads every datom whose reference value points at E.
type RefsTo struct {
	E datom.EID
}

func (GetOne) indexQuery()       {}
func (GetMany) indexQuery()      {}
func (Column) indexQuery()       {}
func (LookupUnique) indexQuery() {}
func (LookupMany) indexQuery()   {}
func (Contains) indexQuery()     {}
func (Entity) indexQuery()       {}
func (RefsTo) indexQuery()       {}

func (q GetOne) Pattern() datom.Pattern  { return datom.PatternOf(q.E, q.A, nil) }
func (q GetMany) Pattern() datom.Pattern { return datom.PatternOf(q.E, q.A, nil) }
func (q Column) Pattern() datom.Pattern  { return datom.PatternOf(0, q.A, nil) }

func (q LookupUnique) Pattern() datom.Pattern { return lookupPattern(q.A, q.V) }
func (q LookupMany) Pattern() datom.Pattern   { return lookupPattern(q.A, q.V) }

// Pattern for Contains binds the value only when the attribute emits
// value-bound patterns; otherwise any write to (E, A) may flip the answer.
func (q Contains) Pattern() datom.Pattern {
	s := q.A.Schema()
	if s.Cardinality() == datom.Many || s.LookupByValue() {
		return datom.PatternOf(q.E, q.A, q.V)
	}
	return datom.PatternOf(q.E, q.A, nil)
}

func (q Entity) Pattern() datom.Pattern { return datom.PatternOf(q.E, 0, nil) }
func (q RefsTo) Pattern() datom.Pattern { return datom.PatternOf(0, 0, datom.Ref(q.E)) }

// Lookups on attributes without a value index fall back to a column scan,
// so they read the column pattern.
func lookupPattern(a datom.Attribute, v datom.Value) datom.Pattern {
	if a.Schema().LookupByValue() {
		return datom.PatternOf(0, a, v)
	}
	return datom.PatternOf(0, a, nil)
}

func (q GetOne) String() string  { return fmt.Sprintf("GetOne(%s %s)", q.E, q.A) }
func (q GetMany) String() string { return fmt.Sprintf("GetMany(%s %s)", q.E, q.A) }
func (q Column) String() string  { return fmt.Sprintf("Column(%s)", q.A) }
func (q LookupUnique) String() string {
	return fmt.Sprintf("LookupUnique(%s %s)", q.A, datom.FormatValue(q.V))
}
func (q LookupMany) String() string {
	return fmt.Sprintf("LookupMany(%s %s)", q.A, datom.FormatValue(q.V))
}
func (q Contains) String() string {
	return fmt.Sprintf("Contains(%s %s %s)", q.E, q.A, datom.FormatValue(q.V))
}
func (q Entity) String() string { return fmt.Sprintf("Entity(%s)", q.E) }
func (q RefsTo) String() string { return fmt.Sprintf("RefsTo(%s)", q.E) }

// Query evaluates q. The returned slice is owned by the caller.
func (idx *Index) Query(q Query) []datom.Datom {
	switch q := q.(type) {
	case GetOne:
		out := idx.get(q.E, q.A)
		if len(out) > 1 {
			out = out[:1]
		}
		return out
	case GetMany:
		return idx.get(q.E, q.A)
	case Column:
		return idx.column(q.A)
	case LookupUnique:
		out := idx.lookup(q.A, q.V)
		if len(out) > 1 {
			out = out[:1]
		}
		return out
	case LookupMany:
		return idx.lookup(q.A, q.V)
	case Contains:
		p, ok := idx.partition(q.E.Partition())
		if !ok {
			return nil
		}
		vals := p.values(q.E, q.A)
		if vals == nil {
			return nil
		}
		if d, ok := vals.Get(datom.ValueKey(q.V)); ok {
			return []datom.Datom{d}
		}
		return nil
	case Entity:
		p, ok := idx.partition(q.E.Partition())
		if !ok {
			return nil
		}
		rec, ok := p.eavt.Get(q.E)
		if !ok {
			return nil
		}
		return appendRecord(nil, rec)
	case RefsTo:
		return idx.refsTo(q.E)
	default:
		panic(fmt.Sprintf("index: unhandled query type %T", q))
	}
}

func (idx *Index) get(e datom.EID, a datom.Attribute) []datom.Datom {
	p, ok := idx.partition(e.Partition())
	if !ok {
		return nil
	}
	vals := p.values(e, a)
	if vals == nil {
		return nil
	}
	return appendValues(nil, vals)
}

func (idx *Index) column(a datom.Attribute) []datom.Datom {
	var out []datom.Datom
	itr := idx.parts.Iterator()
	for !itr.Done() {
		_, p, _ := itr.Next()
		ents, ok := p.aevt.Get(a)
		if !ok {
			continue
		}
		eitr := ents.Iterator()
		for !eitr.Done() {
			e, _, _ := eitr.Next()
			out = appendValues(out, p.values(e, a))
		}
	}
	return out
}

func (idx *Index) lookup(a datom.Attribute, v datom.Value) []datom.Datom {
	key := datom.ValueKey(v)
	if !a.Schema().LookupByValue() {
		var out []datom.Datom
		for _, d := range idx.column(a) {
			if datom.ValueKey(d.V) == key {
				out = append(out, d)
			}
		}
		return out
	}

	var out []datom.Datom
	itr := idx.parts.Iterator()
	for !itr.Done() {
		_, p, _ := itr.Next()
		ents, ok := p.avet.Get(avKey{A: a, V: key})
		if !ok {
			continue
		}
		eitr := ents.Iterator()
		for !eitr.Done() {
			e, _, _ := eitr.Next()
			if d, ok := p.values(e, a).Get(key); ok {
				out = append(out, d)
			}
		}
	}
	return out
}

func (idx *Index) refsTo(target datom.EID) []datom.Datom {
	var out []datom.Datom
	itr := idx.parts.Iterator()
	for !itr.Done() {
		_, p, _ := itr.Next()
		refs, ok := p.vaet.Get(target)
		if !ok {
			continue
		}
		ritr := refs.Iterator()
		for !ritr.Done() {
			_, d, _ := ritr.Next()
			out = append(out, d)
		}
	}
	return out
}
