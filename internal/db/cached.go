package db

import (
	"github.com/roach88/datoms/internal/datom"
	"github.com/roach88/datoms/internal/index"
	"github.com/roach88/datoms/internal/querycache"
)

// performCached looks cq up in store, computing it against base on a miss.
// The computation runs under a recorder so the entry's trace holds every
// pattern it read.
func performCached(store *querycache.Store, base Q, cq CachedQuery) (CachedResult, error) {
	e, hit, err := store.Perform(cq.Key(), func() (any, []datom.Pattern, error) {
		rec := newRecordingQ(base)
		v, err := cq.Compute(rec)
		return v, rec.patterns, err
	})
	if err != nil {
		return CachedResult{}, err
	}
	return CachedResult{Value: e.Value, Trace: e.Patterns, Hit: hit}, nil
}

// recordingQ collects the distinct patterns read through it. Nested cached
// queries contribute their whole trace.
type recordingQ struct {
	inner    Q
	seen     map[datom.Pattern]struct{}
	patterns []datom.Pattern
}

func newRecordingQ(inner Q) *recordingQ {
	return &recordingQ{inner: inner, seen: make(map[datom.Pattern]struct{})}
}

func (r *recordingQ) record(p datom.Pattern) {
	if _, ok := r.seen[p]; ok {
		return
	}
	r.seen[p] = struct{}{}
	r.patterns = append(r.patterns, p)
}

func (r *recordingQ) QueryIndex(q index.Query) []datom.Datom {
	r.record(q.Pattern())
	return r.inner.QueryIndex(q)
}

func (r *recordingQ) CachedQuery(cq CachedQuery) (CachedResult, error) {
	res, err := r.inner.CachedQuery(cq)
	if err != nil {
		return res, err
	}
	for _, p := range res.Trace {
		r.record(p)
	}
	return res, nil
}

func (r *recordingQ) AssertEntityExists(e datom.EID) error {
	return r.inner.AssertEntityExists(e)
}

func (r *recordingQ) Original() Q { return r.inner.Original() }

func (r *recordingQ) unwrap() Q { return r.inner }
