package db

import (
	"github.com/roach88/datoms/internal/datom"
	"github.com/roach88/datoms/internal/index"
)

// Instruction is a coarse mutation request. It expands, against the read
// view it is given, into primitive ops and deferred effects.
type Instruction interface {
	Expand(q Q) (Expansion, error)
}

// InstructionFunc adapts a function to Instruction.
type InstructionFunc func(q Q) (Expansion, error)

// Expand calls f.
func (f InstructionFunc) Expand(q Q) (Expansion, error) { return f(q) }

// AttrValue pairs an attribute with a value.
type AttrValue struct {
	A datom.Attribute
	V datom.Value
}

// Add asserts one value.
type Add struct {
	E datom.EID
	A datom.Attribute
	V datom.Value
}

func (i Add) Expand(Q) (Expansion, error) {
	return Expansion{Ops: []Op{Assert(i)}}, nil
}

// Remove retracts one value.
type Remove struct {
	E datom.EID
	A datom.Attribute
	V datom.Value
}

func (i Remove) Expand(Q) (Expansion, error) {
	return Expansion{Ops: []Op{Retract(i)}}, nil
}

// Set makes V the value of A on E.
//
// For cardinality one, a nil V retracts the current value and an equal V
// expands to nothing. For cardinality many, V must be an Array (or nil for
// the empty set): values outside it are retracted and missing ones asserted.
type Set struct {
	E datom.EID
	A datom.Attribute
	V datom.Value
}

func (i Set) Expand(q Q) (Expansion, error) {
	if i.V != nil {
		if err := datom.CheckValue(i.V); err != nil {
			return Expansion{}, err
		}
	}
	current := q.QueryIndex(index.GetMany{E: i.E, A: i.A})

	if i.A.Schema().Cardinality() == datom.Many {
		want, err := manyValues(i.A, i.V)
		if err != nil {
			return Expansion{}, err
		}
		keep := make(map[string]bool, len(want))
		for _, v := range want {
			keep[datom.ValueKey(v)] = true
		}
		var ops []Op
		have := make(map[string]bool, len(current))
		for _, d := range current {
			k := datom.ValueKey(d.V)
			have[k] = true
			if !keep[k] {
				ops = append(ops, Retract{E: i.E, A: i.A, V: d.V})
			}
		}
		for _, v := range want {
			if !have[datom.ValueKey(v)] {
				ops = append(ops, Assert{E: i.E, A: i.A, V: v})
			}
		}
		return Expansion{Ops: ops}, nil
	}

	if i.V == nil {
		var ops []Op
		for _, d := range current {
			ops = append(ops, Retract{E: i.E, A: i.A, V: d.V})
		}
		return Expansion{Ops: ops}, nil
	}
	if len(current) == 1 && datom.Equal(current[0].V, i.V) {
		return Expansion{}, nil
	}
	return Expansion{Ops: []Op{Assert{E: i.E, A: i.A, V: i.V}}}, nil
}

func manyValues(a datom.Attribute, v datom.Value) ([]datom.Value, error) {
	switch v := v.(type) {
	case nil:
		return nil, nil
	case datom.Array:
		return v, nil
	default:
		return nil, datom.NewConfigurationError("set of cardinality-many attribute %s needs an array, got %s", a, datom.FormatValue(v))
	}
}

// CreateEntity asserts the initial values of a new entity. Type, when
// non-zero, becomes its db/type. Nil values are skipped; an Array on a
// cardinality-many attribute asserts each element.
type CreateEntity struct {
	E      datom.EID
	Type   datom.EID
	Values []AttrValue
}

func (i CreateEntity) Expand(q Q) (Expansion, error) {
	if q.AssertEntityExists(i.E) == nil {
		return Expansion{}, datom.NewConfigurationError("entity %s already exists", i.E)
	}

	var ops []Op
	for _, av := range i.Values {
		switch {
		case av.V == nil:
		case av.A.Schema().Cardinality() == datom.Many:
			vs, err := manyValues(av.A, av.V)
			if err != nil {
				return Expansion{}, err
			}
			for _, v := range vs {
				ops = append(ops, Assert{E: i.E, A: av.A, V: v})
			}
		default:
			ops = append(ops, Assert{E: i.E, A: av.A, V: av.V})
		}
	}
	if i.Type != 0 {
		ops = append(ops, Assert{E: i.E, A: datom.DbType, V: datom.Ref(i.Type)})
	}
	return Expansion{Ops: ops}, nil
}

// RetractAttribute retracts every value of A on E.
type RetractAttribute struct {
	E datom.EID
	A datom.Attribute
}

func (i RetractAttribute) Expand(q Q) (Expansion, error) {
	var ops []Op
	for _, d := range q.QueryIndex(index.GetMany{E: i.E, A: i.A}) {
		ops = append(ops, Retract{E: d.E, A: d.A, V: d.V})
	}
	return Expansion{Ops: ops}, nil
}

// RetractEntity retracts every datom of E and every reference to it.
// It does not follow cascades; see changescope for that.
type RetractEntity struct {
	E datom.EID
}

func (i RetractEntity) Expand(q Q) (Expansion, error) {
	var ops []Op
	for _, d := range q.QueryIndex(index.Entity{E: i.E}) {
		ops = append(ops, Retract{E: d.E, A: d.A, V: d.V})
	}
	for _, d := range q.QueryIndex(index.RefsTo{E: i.E}) {
		if d.E == i.E {
			continue
		}
		ops = append(ops, Retract{E: d.E, A: d.A, V: d.V})
	}
	return Expansion{Ops: ops}, nil
}

// ReifiedEntity is an entity with a fixed id and fixed values.
type ReifiedEntity struct {
	E      datom.EID
	Values []AttrValue
}

// ReifyEntities asserts entities at fixed ids. Values already present are
// skipped, so reifying twice expands to nothing the second time.
type ReifyEntities struct {
	Entities []ReifiedEntity
}

func (i ReifyEntities) Expand(q Q) (Expansion, error) {
	var ops []Op
	for _, ent := range i.Entities {
		for _, av := range ent.Values {
			if len(q.QueryIndex(index.Contains{E: ent.E, A: av.A, V: av.V})) > 0 {
				continue
			}
			ops = append(ops, Assert{E: ent.E, A: av.A, V: av.V})
		}
	}
	return Expansion{Ops: ops}, nil
}

// EffectInstruction schedules an effect without writing anything.
type EffectInstruction struct {
	Effect Effect
}

func (i EffectInstruction) Expand(Q) (Expansion, error) {
	return Expansion{Effects: []Effect{i.Effect}}, nil
}
