package datom

import "fmt"

// Datom is an immutable fact: entity e has value v for attribute a, as of
// transaction tx. Added=false marks a retraction record in a Novelty; the
// index itself never stores retracted datoms.
type Datom struct {
	E     EID
	A     Attribute
	V     Value
	TX    TX
	Added bool
}

// EAV is the positional (entity, attribute, value) projection of a datom.
type EAV struct {
	E EID
	A Attribute
	V Value
}

// EAVa is an EAV tagged with the assertion flag.
type EAVa struct {
	EAV
	Added bool
}

// EAV projects the datom.
func (d Datom) EAV() EAV {
	return EAV{E: d.E, A: d.A, V: d.V}
}

// EAVa projects the datom with its assertion flag.
func (d Datom) EAVa() EAVa {
	return EAVa{EAV: d.EAV(), Added: d.Added}
}

// Patterns returns the pattern hashes this datom is a witness for.
func (d Datom) Patterns() []Pattern {
	return PatternHashes(d.E, d.A, d.V)
}

func (d Datom) String() string {
	op := "+"
	if !d.Added {
		op = "-"
	}
	return fmt.Sprintf("%s[%s %s %s %s]", op, d.E, d.A, FormatValue(d.V), d.TX)
}

// Novelty is the ordered list of datoms produced by one mutation. It is a
// value: it does not alias the index it came from.
type Novelty []Datom

// Len returns the number of datoms.
func (n Novelty) Len() int { return len(n) }

// IsEmpty reports whether the mutation changed nothing.
func (n Novelty) IsEmpty() bool { return len(n) == 0 }

// Asserted returns the added datoms in order.
func (n Novelty) Asserted() []Datom {
	var out []Datom
	for _, d := range n {
		if d.Added {
			out = append(out, d)
		}
	}
	return out
}

// Retracted returns the retracted datoms in order.
func (n Novelty) Retracted() []Datom {
	var out []Datom
	for _, d := range n {
		if !d.Added {
			out = append(out, d)
		}
	}
	return out
}

// Concat returns a new Novelty with other appended.
func (n Novelty) Concat(other Novelty) Novelty {
	out := make(Novelty, 0, len(n)+len(other))
	out = append(out, n...)
	return append(out, other...)
}

// Patterns returns the distinct pattern hashes touched by the novelty.
func (n Novelty) Patterns() []Pattern {
	seen := make(map[Pattern]struct{}, len(n)*4)
	var out []Pattern
	for _, d := range n {
		for _, p := range d.Patterns() {
			if _, ok := seen[p]; ok {
				continue
			}
			seen[p] = struct{}{}
			out = append(out, p)
		}
	}
	return out
}
