package db

import (
	"fmt"

	"github.com/roach88/datoms/internal/datom"
	"github.com/roach88/datoms/internal/index"
)

// MapAttribute rewrites every live value of A through F, keeping the
// original transaction of each datom.
//
// A conversion that fails (F returns an error or panics), yields nil, or
// yields a value of the wrong kind for A does not abort the migration: the
// value is replaced by a Problem recording what went wrong. Values that are
// already problems are left alone.
type MapAttribute struct {
	A datom.Attribute
	F func(datom.Value) (datom.Value, error)
}

func (i MapAttribute) Expand(q Q) (Expansion, error) {
	var ops []Op
	for _, d := range q.QueryIndex(index.Column{A: i.A}) {
		if datom.IsProblem(d.V) {
			continue
		}
		next := i.convert(q, d.V)
		if datom.Equal(next, d.V) {
			continue
		}
		ops = append(ops,
			Retract{E: d.E, A: d.A, V: d.V},
			AssertWithTX{E: d.E, A: d.A, V: next, TX: d.TX},
		)
	}
	return Expansion{Ops: ops}, nil
}

func (i MapAttribute) convert(q Q, v datom.Value) (out datom.Value) {
	defer func() {
		if r := recover(); r != nil {
			out = datom.NewProblemException(v, fmt.Errorf("panic: %v", r))
		}
	}()

	next, err := i.F(v)
	if err != nil {
		return datom.NewProblemException(v, err)
	}
	if next == nil {
		return datom.NewProblemGotNull(v)
	}

	ref, isRef := next.(datom.Ref)
	switch {
	case i.A.Schema().IsRef() && !isRef, !i.A.Schema().IsRef() && isRef:
		return datom.NewProblemUnexpected(v, next)
	case isRef:
		if err := q.AssertEntityExists(ref.EID()); err != nil {
			return datom.NewProblemException(v, err)
		}
	}
	return next
}
