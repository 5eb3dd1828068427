package datom

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// Pattern is a 64-bit hash of a partially bound (entity, attribute, value)
// triple. It is used as a cache key and as an invalidation key.
//
// Layout:
//
//	bit 63     entity bound
//	bit 62     attribute bound
//	bit 61     value bound
//	bits 0-60  combined field hashes
//
// The header bits keep patterns of different shapes apart even when the
// combined field hashes coincide.
type Pattern uint64

const (
	patternEntityBound    uint64 = 1 << 63
	patternAttributeBound uint64 = 1 << 62
	patternValueBound     uint64 = 1 << 61
	patternHashMask       uint64 = patternValueBound - 1
)

// shapeMultipliers is indexed by the number of bound fields.
var shapeMultipliers = [4]uint64{0, 1, 1021, 1572869}

// PatternOf hashes a triple. A zero EID, a zero Attribute and a nil Value
// are wildcards.
func PatternOf(e EID, a Attribute, v Value) Pattern {
	var (
		header uint64
		fields [3]uint64
		n      int
	)
	if e != 0 {
		header |= patternEntityBound
		fields[n] = mix64(uint64(e))
		n++
	}
	if a != 0 {
		header |= patternAttributeBound
		fields[n] = mix64(uint64(a))
		n++
	}
	if v != nil {
		header |= patternValueBound
		fields[n] = HashValue(v)
		n++
	}

	mult := shapeMultipliers[n]
	var h uint64
	for i := 0; i < n; i++ {
		h = h*mult + fields[i]
	}
	return Pattern(header | (h & patternHashMask))
}

// EntityBound reports whether the pattern binds the entity.
func (p Pattern) EntityBound() bool { return uint64(p)&patternEntityBound != 0 }

// AttributeBound reports whether the pattern binds the attribute.
func (p Pattern) AttributeBound() bool { return uint64(p)&patternAttributeBound != 0 }

// ValueBound reports whether the pattern binds the value.
func (p Pattern) ValueBound() bool { return uint64(p)&patternValueBound != 0 }

func (p Pattern) String() string {
	shape := []byte("___")
	if p.EntityBound() {
		shape[0] = 'e'
	}
	if p.AttributeBound() {
		shape[1] = 'a'
	}
	if p.ValueBound() {
		shape[2] = 'v'
	}
	return fmt.Sprintf("%s:%015x", shape, uint64(p)&patternHashMask)
}

// PatternHashes returns every pattern the concrete datom (e, a, v) is a
// witness for. It must stay in step with the patterns index queries read
// (index.Query.Pattern): a pattern missing here means stale cache entries,
// an extra one means needless invalidation.
//
//	reference attribute        [e a v] [_ a v] [e a _] [e _ _] [_ a _] [_ _ v]
//	indexed or unique          [e a v] [_ a v] [e a _] [e _ _] [_ a _]
//	cardinality many           [e a v] [e a _] [e _ _] [_ a _]
//	otherwise                  [e a _] [e _ _] [_ a _]
func PatternHashes(e EID, a Attribute, v Value) []Pattern {
	schema := a.Schema()
	switch {
	case schema.IsRef():
		return []Pattern{
			PatternOf(e, a, v),
			PatternOf(0, a, v),
			PatternOf(e, a, nil),
			PatternOf(e, 0, nil),
			PatternOf(0, a, nil),
			PatternOf(0, 0, v),
		}
	case schema.Indexed() || schema.Unique():
		return []Pattern{
			PatternOf(e, a, v),
			PatternOf(0, a, v),
			PatternOf(e, a, nil),
			PatternOf(e, 0, nil),
			PatternOf(0, a, nil),
		}
	case schema.Cardinality() == Many:
		return []Pattern{
			PatternOf(e, a, v),
			PatternOf(e, a, nil),
			PatternOf(e, 0, nil),
			PatternOf(0, a, nil),
		}
	default:
		return []Pattern{
			PatternOf(e, a, nil),
			PatternOf(e, 0, nil),
			PatternOf(0, a, nil),
		}
	}
}

// HashValue returns the xxhash64 of the value's canonical encoding.
func HashValue(v Value) uint64 {
	return xxhash.Sum64String(ValueKey(v))
}

// mix64 is the murmur3 64-bit finalizer.
func mix64(x uint64) uint64 {
	x ^= x >> 33
	x *= 0xff51afd7ed558ccd
	x ^= x >> 33
	x *= 0xc4ceb9fe1a85ec53
	x ^= x >> 33
	return x
}
