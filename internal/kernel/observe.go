package kernel

import (
	"github.com/roach88/datoms/internal/datom"
	"github.com/roach88/datoms/internal/db"
)

// Observation is the result of a tracked read together with the patterns
// it depends on.
type Observation struct {
	Value any
	DB    *db.DB

	patterns map[datom.Pattern]struct{}
}

// Patterns returns how many distinct patterns the read depended on.
func (o *Observation) Patterns() int {
	return len(o.patterns)
}

// Affected reports whether c may have changed the observed value.
func (o *Observation) Affected(c *Change) bool {
	for _, p := range c.Novelty.Patterns() {
		if _, ok := o.patterns[p]; ok {
			return true
		}
	}
	return false
}

// Observe runs read against the current database with read tracking.
func (k *Kernel) Observe(read func(q db.Q) (any, error)) (*Observation, error) {
	return ObserveDB(k.DB(), read)
}

// ObserveDB runs read against d with read tracking.
func ObserveDB(d *db.DB, read func(q db.Q) (any, error)) (*Observation, error) {
	o := &Observation{DB: d, patterns: make(map[datom.Pattern]struct{})}
	q, err := db.WithReadTracking(d, func(p datom.Pattern) {
		o.patterns[p] = struct{}{}
	})
	if err != nil {
		return nil, err
	}

	v, err := read(q)
	if err != nil {
		return nil, err
	}
	o.Value = v
	return o, nil
}
