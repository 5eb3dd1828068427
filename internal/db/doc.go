// Package db implements the database values and the mutation pipeline.
//
// DB is an immutable database value: an index plus its own query cache.
// MutableDb is the single-writer session that produces new DB values.
// Writes are expressed as Instructions that expand, against the current
// read view, into primitive Ops (Assert, Retract, AssertWithTX). MutableDb
// folds the ops over its index and returns the Novelty they produced.
//
// Reads go through the Q capability. Q values stack: read tracking, cache
// recording and uniqueness enforcement are all wrappers over a base DB or
// MutableDb, and Original always returns the base. A DbContext carries the
// current Q (or Mut) explicitly and lets a block push a replacement for its
// own extent.
//
// Every transaction follows the same shape:
//
//	mut := db.NewMutableDb(current, tx)
//	ctx := db.NewDbContext[db.Mut](db.EnforcingUniquenessConstraints(mut, datom.DefaultPart))
//	... expand instructions, ctx.MustImpl().Mutate(expansion) ...
//	next := mut.Snapshot() // or mut.Rollback(current) on failure
package db
