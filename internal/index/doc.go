// Package index implements the persistent datom index.
//
// An Index is an immutable value. Every write returns a new Index that shares
// structure with the old one, so snapshots are free and a failed transaction
// is rolled back by keeping the previous pointer.
//
// LAYOUT:
//
// The index is split into partitions keyed by the high bits of the entity id.
// Each partition holds four orderings of the datoms whose entity lives in it:
//
//	EAVT  entity -> attribute -> value key -> datom
//	AEVT  attribute -> entities having it
//	AVET  (attribute, value key) -> entities, only for ref, indexed or unique attributes
//	VAET  referenced entity -> (entity, attribute) -> datom, only for ref values
//
// Retracted datoms are never stored. Cardinality-one attributes hold at most
// one value per entity: asserting a different value retracts the old one.
//
// QUERIES:
//
// Reads go through the sealed Query types. Each query names the pattern it
// reads (Query.Pattern), and that pattern is always one of the patterns
// datom.PatternHashes produces for every datom the query can observe. The
// query cache relies on this to invalidate cached results.
//
// Query results are ordered by entity, then attribute, then value key.
package index
