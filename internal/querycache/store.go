package querycache

import (
	"sync/atomic"

	"github.com/roach88/datoms/internal/datom"
)

// Store is a mutable handle on a Cache. All updates are compare-and-swap on
// the current Cache pointer.
type Store struct {
	current atomic.Pointer[Cache]
	metrics *Metrics
}

// NewStore returns a store holding c. A nil metrics disables counting.
func NewStore(c *Cache, metrics *Metrics) *Store {
	if c == nil {
		c = New()
	}
	s := &Store{metrics: metrics}
	s.current.Store(c)
	return s
}

// Load returns the current cache value.
func (s *Store) Load() *Cache {
	return s.current.Load()
}

// Fork returns an independent store starting from the current cache value.
func (s *Store) Fork() *Store {
	return NewStore(s.Load(), s.metrics)
}

// Metrics returns the metrics the store reports to, or nil.
func (s *Store) Metrics() *Metrics {
	return s.metrics
}

// ComputeFunc produces a result and the patterns it read.
type ComputeFunc func() (value any, patterns []datom.Pattern, err error)

// Perform returns the entry for key, computing and inserting it on a miss.
// Errors are returned and never cached. When another goroutine inserts the
// same key first, its entry wins and is returned.
func (s *Store) Perform(key string, compute ComputeFunc) (Entry, bool, error) {
	if e, ok := s.Load().Get(key); ok {
		s.metrics.hit()
		return e, true, nil
	}
	s.metrics.miss()

	value, patterns, err := compute()
	if err != nil {
		return Entry{}, false, err
	}
	e := Entry{Value: value, Patterns: patterns}

	for {
		cur := s.Load()
		if existing, ok := cur.Get(key); ok {
			return existing, false, nil
		}
		if s.current.CompareAndSwap(cur, cur.Insert(key, e)) {
			s.metrics.insert()
			return e, false, nil
		}
	}
}

// Invalidate drops the entries affected by novelty.
func (s *Store) Invalidate(novelty datom.Novelty) {
	if novelty.IsEmpty() {
		return
	}
	patterns := novelty.Patterns()
	for {
		cur := s.Load()
		next, dropped := cur.InvalidatePatterns(patterns)
		if next == cur || s.current.CompareAndSwap(cur, next) {
			s.metrics.invalidated(dropped)
			return
		}
	}
}

// Reset replaces the current cache value. Used on rollback.
func (s *Store) Reset(c *Cache) {
	s.current.Store(c)
}
