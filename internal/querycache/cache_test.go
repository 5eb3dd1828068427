package querycache

import (
	"errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/datoms/internal/datom"
)

var (
	nameAttr = datom.MustAttribute(datom.NewEID(datom.SchemaPart, 100), datom.MustSchema(datom.SchemaOptions{}))
	ageAttr  = datom.MustAttribute(datom.NewEID(datom.SchemaPart, 101), datom.MustSchema(datom.SchemaOptions{}))
	alice    = datom.NewEID(datom.DefaultPart, 1)
)

func assertName(v string) datom.Datom {
	return datom.Datom{E: alice, A: nameAttr, V: datom.String(v), TX: datom.NewTX(1), Added: true}
}

func TestInsert_FirstWins(t *testing.T) {
	c := New().Insert("k", Entry{Value: 1})
	same := c.Insert("k", Entry{Value: 2})

	assert.Same(t, c, same)
	e, ok := same.Get("k")
	require.True(t, ok)
	assert.Equal(t, 1, e.Value)
}

func TestInvalidate_EmptyNoveltyReturnsSameCache(t *testing.T) {
	c := New().Insert("k", Entry{Value: 1, Patterns: []datom.Pattern{datom.PatternOf(0, nameAttr, nil)}})
	next, dropped := c.Invalidate(nil)

	assert.Same(t, c, next)
	assert.Zero(t, dropped)
}

func TestInvalidate_ByPattern(t *testing.T) {
	names := datom.PatternOf(0, nameAttr, nil)
	ages := datom.PatternOf(0, ageAttr, nil)

	c := New().
		Insert("names", Entry{Value: "n", Patterns: []datom.Pattern{names}}).
		Insert("ages", Entry{Value: "a", Patterns: []datom.Pattern{ages}}).
		Insert("both", Entry{Value: "b", Patterns: []datom.Pattern{names, ages}})

	next, dropped := c.Invalidate(datom.Novelty{assertName("alice")})

	assert.Equal(t, 2, dropped)
	_, ok := next.Get("names")
	assert.False(t, ok)
	_, ok = next.Get("both")
	assert.False(t, ok)
	_, ok = next.Get("ages")
	assert.True(t, ok, "unrelated entry survives")

	// The original cache value is untouched.
	assert.Equal(t, 3, c.Len())

	// "both" is unlinked from the ages pattern as well.
	again, dropped := next.InvalidatePatterns([]datom.Pattern{ages})
	assert.Equal(t, 1, dropped)
	assert.Zero(t, again.Len())
}

func TestStore_PerformCachesResult(t *testing.T) {
	s := NewStore(nil, nil)
	calls := 0
	compute := func() (any, []datom.Pattern, error) {
		calls++
		return "v", []datom.Pattern{datom.PatternOf(0, nameAttr, nil)}, nil
	}

	e, hit, err := s.Perform("k", compute)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "v", e.Value)

	_, hit, err = s.Perform("k", compute)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 1, calls)
}

func TestStore_PerformDoesNotCacheErrors(t *testing.T) {
	s := NewStore(nil, nil)
	boom := errors.New("boom")

	_, _, err := s.Perform("k", func() (any, []datom.Pattern, error) { return nil, nil, boom })
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, s.Load().Len())
}

func TestStore_ConcurrentPerformSingleEntry(t *testing.T) {
	s := NewStore(nil, nil)

	var wg sync.WaitGroup
	results := make([]any, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			e, _, err := s.Perform("k", func() (any, []datom.Pattern, error) { return i, nil, nil })
			if err == nil {
				results[i] = e.Value
			}
		}(i)
	}
	wg.Wait()

	winner, ok := s.Load().Get("k")
	require.True(t, ok)
	assert.Equal(t, 1, s.Load().Len())
	for _, r := range results {
		assert.Equal(t, winner.Value, r, "every caller sees the winning entry")
	}
}

func TestStore_ForkIsIndependent(t *testing.T) {
	s := NewStore(nil, nil)
	_, _, err := s.Perform("k", func() (any, []datom.Pattern, error) {
		return 1, []datom.Pattern{datom.PatternOf(0, nameAttr, nil)}, nil
	})
	require.NoError(t, err)

	fork := s.Fork()
	fork.Invalidate(datom.Novelty{assertName("alice")})

	assert.Zero(t, fork.Load().Len())
	assert.Equal(t, 1, s.Load().Len())
}

func TestMetrics(t *testing.T) {
	m := NewMetrics("test")
	reg := prometheus.NewRegistry()
	require.NoError(t, RegisterMetrics(reg, m))

	s := NewStore(nil, m)
	compute := func() (any, []datom.Pattern, error) {
		return 1, []datom.Pattern{datom.PatternOf(0, nameAttr, nil)}, nil
	}
	_, _, _ = s.Perform("k", compute)
	_, _, _ = s.Perform("k", compute)
	s.Invalidate(datom.Novelty{assertName("alice")})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Hits))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Misses))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Inserts))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Invalidated))
}
