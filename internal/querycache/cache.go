// Package querycache memoizes derived query results against a database value.
//
// A Cache is an immutable value made of two persistent maps: query key ->
// entry (result plus the patterns the computation read), and pattern -> the
// keys whose trace contains it. Writes invalidate by pattern: every entry
// whose trace shares a pattern with the novelty is dropped, everything else
// survives.
//
// A Store holds the current Cache behind an atomic pointer so concurrent
// readers of one database value can fill it without locks.
package querycache

import (
	"github.com/benbjohnson/immutable"
	"github.com/cespare/xxhash/v2"

	"github.com/roach88/datoms/internal/datom"
)

// Entry is one cached result with the patterns it was computed from.
type Entry struct {
	Value    any
	Patterns []datom.Pattern
}

type keySet = *immutable.Map[string, struct{}]

// Cache is a persistent query cache. The zero value is not usable; start
// from New.
type Cache struct {
	entries   *immutable.Map[string, Entry]
	byPattern *immutable.Map[datom.Pattern, keySet]
}

// New returns an empty cache.
func New() *Cache {
	return &Cache{
		entries:   immutable.NewMap[string, Entry](keyHasher{}),
		byPattern: immutable.NewMap[datom.Pattern, keySet](patternHasher{}),
	}
}

// Get returns the entry stored under key.
func (c *Cache) Get(key string) (Entry, bool) {
	return c.entries.Get(key)
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	return c.entries.Len()
}

// Insert returns a cache holding e under key. Inserting an existing key
// returns c unchanged: the first result wins.
func (c *Cache) Insert(key string, e Entry) *Cache {
	if _, ok := c.entries.Get(key); ok {
		return c
	}

	byPattern := c.byPattern
	for _, p := range e.Patterns {
		keys, ok := byPattern.Get(p)
		if !ok {
			keys = immutable.NewMap[string, struct{}](keyHasher{})
		}
		byPattern = byPattern.Set(p, keys.Set(key, struct{}{}))
	}
	return &Cache{
		entries:   c.entries.Set(key, e),
		byPattern: byPattern,
	}
}

// Invalidate returns a cache without the entries whose trace intersects the
// patterns of novelty, and the number of entries dropped. An empty novelty
// returns c itself.
func (c *Cache) Invalidate(novelty datom.Novelty) (*Cache, int) {
	if novelty.IsEmpty() {
		return c, 0
	}
	return c.InvalidatePatterns(novelty.Patterns())
}

// InvalidatePatterns drops every entry whose trace contains one of patterns.
func (c *Cache) InvalidatePatterns(patterns []datom.Pattern) (*Cache, int) {
	entries := c.entries
	byPattern := c.byPattern
	dropped := 0

	for _, p := range patterns {
		keys, ok := byPattern.Get(p)
		if !ok {
			continue
		}
		itr := keys.Iterator()
		for !itr.Done() {
			key, _, _ := itr.Next()
			e, ok := entries.Get(key)
			if !ok {
				continue
			}
			entries = entries.Delete(key)
			dropped++

			// Unlink the key from every other pattern of its trace.
			for _, other := range e.Patterns {
				if other == p {
					continue
				}
				if ks, ok := byPattern.Get(other); ok {
					ks = ks.Delete(key)
					if ks.Len() == 0 {
						byPattern = byPattern.Delete(other)
					} else {
						byPattern = byPattern.Set(other, ks)
					}
				}
			}
		}
		byPattern = byPattern.Delete(p)
	}

	if dropped == 0 {
		return c, 0
	}
	return &Cache{entries: entries, byPattern: byPattern}, dropped
}

type keyHasher struct{}

func (keyHasher) Hash(key string) uint32 {
	h := xxhash.Sum64String(key)
	return uint32(h ^ (h >> 32))
}

func (keyHasher) Equal(a, b string) bool { return a == b }

type patternHasher struct{}

func (patternHasher) Hash(key datom.Pattern) uint32 {
	return uint32(uint64(key) ^ (uint64(key) >> 32))
}

func (patternHasher) Equal(a, b datom.Pattern) bool { return a == b }
