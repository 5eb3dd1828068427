package db

import (
	"slices"

	"github.com/roach88/datoms/internal/datom"
	"github.com/roach88/datoms/internal/index"
)

type uniqueClaim struct {
	A datom.Attribute
	V string
}

type entityAttr struct {
	E datom.EID
	A datom.Attribute
}

// uniquenessMut rejects mutations that would give a unique value to two
// entities.
type uniquenessMut struct {
	inner      Mut
	partitions []datom.Partition
}

// EnforcingUniquenessConstraints wraps m so that every Mutate is checked
// before anything is applied. A unique value conflicts when another entity
// holds it in the pre-mutation index (within partitions; all partitions
// when none are given) or claims it earlier in the same expansion. A value
// retracted earlier in the expansion is free to be claimed, and so is the
// value a cardinality-one assert replaces.
func EnforcingUniquenessConstraints(m Mut, partitions ...datom.Partition) Mut {
	return &uniquenessMut{inner: m, partitions: partitions}
}

func (u *uniquenessMut) Mutate(exp Expansion) (datom.Novelty, error) {
	if err := u.check(exp.Ops); err != nil {
		return nil, err
	}
	return u.inner.Mutate(exp)
}

func (u *uniquenessMut) check(ops []Op) error {
	claimed := make(map[uniqueClaim]datom.EID)
	released := make(map[uniqueClaim]datom.EID)
	current := make(map[entityAttr]uniqueClaim)
	base := u.inner.Original()

	for _, op := range ops {
		var (
			e datom.EID
			a datom.Attribute
			v datom.Value
		)
		switch op := op.(type) {
		case Assert:
			e, a, v = op.E, op.A, op.V
		case AssertWithTX:
			e, a, v = op.E, op.A, op.V
		case Retract:
			if err := datom.CheckValue(op.V); err != nil {
				return err
			}
			if op.A.Schema().Unique() {
				released[uniqueClaim{A: op.A, V: datom.ValueKey(op.V)}] = op.E
			}
			continue
		}
		if !a.Schema().Unique() || v == nil || datom.IsProblem(v) {
			continue
		}
		if err := datom.CheckValue(v); err != nil {
			return err
		}

		claim := uniqueClaim{A: a, V: datom.ValueKey(v)}
		if holder, ok := claimed[claim]; ok && holder != e {
			return datom.NewUniquenessError(a, v, holder, e)
		}
		claimed[claim] = e

		for _, d := range base.QueryIndex(index.LookupMany{A: a, V: v}) {
			if d.E == e || !u.covers(d.E.Partition()) {
				continue
			}
			if r, ok := released[claim]; ok && r == d.E {
				continue
			}
			return datom.NewUniquenessError(a, v, d.E, e)
		}

		if a.Schema().Cardinality() != datom.One {
			continue
		}
		// The assert replaces whatever e held, in the index or earlier in
		// this expansion.
		ea := entityAttr{E: e, A: a}
		if prev, ok := current[ea]; ok && prev != claim && claimed[prev] == e {
			delete(claimed, prev)
		}
		current[ea] = claim
		for _, d := range base.QueryIndex(index.GetOne{E: e, A: a}) {
			if old := (uniqueClaim{A: a, V: datom.ValueKey(d.V)}); old != claim {
				released[old] = e
			}
		}
	}
	return nil
}

func (u *uniquenessMut) covers(part datom.Partition) bool {
	return len(u.partitions) == 0 || slices.Contains(u.partitions, part)
}

func (u *uniquenessMut) QueryIndex(q index.Query) []datom.Datom {
	return u.inner.QueryIndex(q)
}

func (u *uniquenessMut) CachedQuery(cq CachedQuery) (CachedResult, error) {
	return u.inner.CachedQuery(cq)
}

func (u *uniquenessMut) AssertEntityExists(e datom.EID) error {
	return u.inner.AssertEntityExists(e)
}

func (u *uniquenessMut) Original() Q { return u.inner.Original() }

func (u *uniquenessMut) NewEID(part datom.Partition) datom.EID { return u.inner.NewEID(part) }

func (u *uniquenessMut) TX() datom.TX { return u.inner.TX() }

func (u *uniquenessMut) unwrap() Q { return u.inner }
