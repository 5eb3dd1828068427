package index

import (
	"cmp"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/roach88/datoms/internal/datom"
)

// eidHasher implements immutable.Hasher for entity ids.
type eidHasher struct{}

func (eidHasher) Hash(key datom.EID) uint32 { return hashUint64(uint64(key)) }
func (eidHasher) Equal(a, b datom.EID) bool { return a == b }

// attrHasher implements immutable.Hasher for attributes.
type attrHasher struct{}

func (attrHasher) Hash(key datom.Attribute) uint32 { return hashUint64(uint64(key)) }
func (attrHasher) Equal(a, b datom.Attribute) bool { return a == b }

// avKey addresses the AVET index.
type avKey struct {
	A datom.Attribute
	V string // canonical value key
}

type avKeyHasher struct{}

func (avKeyHasher) Hash(key avKey) uint32 {
	return hashUint64(xxhash.Sum64String(key.V) ^ uint64(key.A))
}

func (avKeyHasher) Equal(a, b avKey) bool { return a == b }

// eaKey addresses one reference inside the VAET index.
type eaKey struct {
	E datom.EID
	A datom.Attribute
}

type eaKeyComparer struct{}

func (eaKeyComparer) Compare(a, b eaKey) int {
	if c := cmp.Compare(a.E, b.E); c != 0 {
		return c
	}
	return cmp.Compare(a.A, b.A)
}

type eidComparer struct{}

func (eidComparer) Compare(a, b datom.EID) int { return cmp.Compare(a, b) }

type attrComparer struct{}

func (attrComparer) Compare(a, b datom.Attribute) int { return cmp.Compare(a, b) }

type partComparer struct{}

func (partComparer) Compare(a, b datom.Partition) int { return cmp.Compare(a, b) }

type stringComparer struct{}

func (stringComparer) Compare(a, b string) int { return strings.Compare(a, b) }

// hashUint64 folds a 64-bit value into 32 bits.
func hashUint64(value uint64) uint32 {
	return uint32(value ^ (value >> 32))
}
