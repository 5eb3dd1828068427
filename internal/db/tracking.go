package db

import (
	"github.com/roach88/datoms/internal/datom"
	"github.com/roach88/datoms/internal/index"
)

// wrapper is implemented by every Q that decorates another.
type wrapper interface {
	unwrap() Q
}

// readTrackingQ reports every pattern read through it to witness.
type readTrackingQ struct {
	inner   Q
	witness func(datom.Pattern)
}

// WithReadTracking wraps q so every primitive read and every pattern in the
// trace of a cached query is reported to witness, whether the cached value
// was computed or reused. Existence checks are not reported. Wrapping a Q
// that already tracks reads is a configuration error.
func WithReadTracking(q Q, witness func(datom.Pattern)) (Q, error) {
	for cur := q; cur != nil; {
		if _, ok := cur.(*readTrackingQ); ok {
			return nil, datom.NewConfigurationError("read tracking is already installed")
		}
		w, ok := cur.(wrapper)
		if !ok {
			break
		}
		cur = w.unwrap()
	}
	return &readTrackingQ{inner: q, witness: witness}, nil
}

// TrackReads runs body with read tracking installed on ctx.
func TrackReads(ctx *DbContext[Q], witness func(datom.Pattern), body func() error) error {
	return ctx.Alter(func(q Q) (Q, error) {
		return WithReadTracking(q, witness)
	}, body)
}

func (r *readTrackingQ) QueryIndex(q index.Query) []datom.Datom {
	r.witness(q.Pattern())
	return r.inner.QueryIndex(q)
}

func (r *readTrackingQ) CachedQuery(cq CachedQuery) (CachedResult, error) {
	res, err := r.inner.CachedQuery(cq)
	if err != nil {
		return res, err
	}
	for _, p := range res.Trace {
		r.witness(p)
	}
	return res, nil
}

func (r *readTrackingQ) AssertEntityExists(e datom.EID) error {
	return r.inner.AssertEntityExists(e)
}

func (r *readTrackingQ) Original() Q { return r.inner.Original() }

func (r *readTrackingQ) unwrap() Q { return r.inner }
