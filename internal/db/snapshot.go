package db

import (
	"github.com/roach88/datoms/internal/datom"
	"github.com/roach88/datoms/internal/index"
	"github.com/roach88/datoms/internal/querycache"
)

// DB is an immutable database value. Its query cache fills as it is read,
// and concurrent readers share it safely.
type DB struct {
	index *index.Index
	cache *querycache.Store
	tx    datom.TX
}

// Empty returns a database with no datoms. metrics may be nil.
func Empty(metrics *querycache.Metrics) *DB {
	return &DB{
		index: index.New(),
		cache: querycache.NewStore(querycache.New(), metrics),
	}
}

// QueryIndex evaluates q.
func (d *DB) QueryIndex(q index.Query) []datom.Datom {
	return d.index.Query(q)
}

// CachedQuery memoizes cq in this value's cache.
func (d *DB) CachedQuery(cq CachedQuery) (CachedResult, error) {
	return performCached(d.cache, d, cq)
}

// AssertEntityExists fails when e has no datoms.
func (d *DB) AssertEntityExists(e datom.EID) error {
	if !d.index.EntityExists(e) {
		return datom.NewEntityNotFoundError(e)
	}
	return nil
}

// Original returns d.
func (d *DB) Original() Q { return d }

// Index returns the underlying index.
func (d *DB) Index() *index.Index { return d.index }

// TX returns the transaction that produced this value, or zero for a
// database that was never written.
func (d *DB) TX() datom.TX { return d.tx }

// CacheLen returns the number of cached query results.
func (d *DB) CacheLen() int { return d.cache.Load().Len() }
