package db

import (
	"fmt"

	"github.com/roach88/datoms/internal/datom"
)

// Op is a primitive index operation. The set is closed: Assert, Retract
// and AssertWithTX.
type Op interface {
	fmt.Stringer
	op()
}

// Assert adds (E, A, V) in the running transaction.
type Assert struct {
	E datom.EID
	A datom.Attribute
	V datom.Value
}

// Retract removes (E, A, V).
type Retract struct {
	E datom.EID
	A datom.Attribute
	V datom.Value
}

// AssertWithTX adds (E, A, V) stamped with an explicit transaction id.
// Migrations use it to rewrite a value in place without changing its tx.
type AssertWithTX struct {
	E  datom.EID
	A  datom.Attribute
	V  datom.Value
	TX datom.TX
}

func (Assert) op()       {}
func (Retract) op()      {}
func (AssertWithTX) op() {}

func (o Assert) String() string {
	return fmt.Sprintf("Assert(%s %s %s)", o.E, o.A, datom.FormatValue(o.V))
}

func (o Retract) String() string {
	return fmt.Sprintf("Retract(%s %s %s)", o.E, o.A, datom.FormatValue(o.V))
}

func (o AssertWithTX) String() string {
	return fmt.Sprintf("AssertWithTX(%s %s %s %s)", o.E, o.A, datom.FormatValue(o.V), o.TX)
}

// Effect is a deferred side effect scheduled by an instruction. Effects run
// after the instruction's ops are applied, inside the same transaction.
type Effect func(ctx *DbContext[Mut]) error

// Expansion is the result of expanding an Instruction.
type Expansion struct {
	Ops     []Op
	Effects []Effect
}

// Concat returns an expansion with other's ops and effects appended.
func (e Expansion) Concat(other Expansion) Expansion {
	return Expansion{
		Ops:     append(append([]Op(nil), e.Ops...), other.Ops...),
		Effects: append(append([]Effect(nil), e.Effects...), other.Effects...),
	}
}

// IsEmpty reports whether the expansion does nothing.
func (e Expansion) IsEmpty() bool {
	return len(e.Ops) == 0 && len(e.Effects) == 0
}
