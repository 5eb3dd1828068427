package db

import (
	"fmt"

	"github.com/roach88/datoms/internal/datom"
	"github.com/roach88/datoms/internal/index"
)

// Q is the read capability.
type Q interface {
	// QueryIndex evaluates a primitive index query.
	QueryIndex(q index.Query) []datom.Datom

	// CachedQuery returns the memoized result of cq, computing it on a miss.
	// The result carries the full trace of patterns the computation read,
	// including the traces of nested cached queries.
	CachedQuery(cq CachedQuery) (CachedResult, error)

	// AssertEntityExists fails with an ENTITY_NOT_FOUND error when e has no
	// datoms. It is not reported to read tracking.
	AssertEntityExists(e datom.EID) error

	// Original returns the base DB or MutableDb under any wrappers.
	Original() Q
}

// Mut is the write capability. It is only handed out inside a transaction.
type Mut interface {
	Q

	// Mutate applies the expansion's ops in order and returns the novelty.
	// On error nothing is applied.
	Mutate(exp Expansion) (datom.Novelty, error)

	// NewEID allocates a fresh entity id in part.
	NewEID(part datom.Partition) datom.EID

	// TX returns the id of the running transaction.
	TX() datom.TX
}

// CachedQuery is a derived read whose result is memoized per database
// value. Key must identify the computation and its arguments.
type CachedQuery interface {
	Key() string
	Compute(q Q) (any, error)
}

// CachedResult is a cached value plus the patterns it depends on.
type CachedResult struct {
	Value any
	Trace []datom.Pattern
	// Hit is true when the value came from the cache.
	Hit bool
}

type cachedFunc struct {
	key string
	fn  func(Q) (any, error)
}

func (c cachedFunc) Key() string              { return c.key }
func (c cachedFunc) Compute(q Q) (any, error) { return c.fn(q) }

// NewCachedQuery adapts a function to CachedQuery.
func NewCachedQuery(key string, fn func(Q) (any, error)) CachedQuery {
	return cachedFunc{key: key, fn: fn}
}

// Cached runs cq through q and asserts the result type.
func Cached[T any](q Q, cq CachedQuery) (T, error) {
	var zero T
	res, err := q.CachedQuery(cq)
	if err != nil {
		return zero, err
	}
	if res.Value == nil {
		return zero, nil
	}
	v, ok := res.Value.(T)
	if !ok {
		return zero, fmt.Errorf("cached query %q: result is %T, want %T", cq.Key(), res.Value, zero)
	}
	return v, nil
}
