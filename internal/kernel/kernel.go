// Package kernel drives transactions against the datom store.
//
// The kernel owns the current database value, the transaction clock and
// the entity-type registry. Transactions are serialized by a single writer
// lock; readers never lock and work on immutable DB values.
//
// Transaction flow:
//  1. Take the writer lock and the next tx id from the clock
//  2. Open a MutableDb on the current DB, wrap it with uniqueness checks
//  3. Run the body and then every queued effect through a ChangeScope
//  4. On error or panic: poison the context, roll back, return the error
//  5. On success: snapshot, publish, fan the Change out to subscribers
//  6. Close the context so scopes that escaped the body fail loudly
package kernel

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/roach88/datoms/internal/changescope"
	"github.com/roach88/datoms/internal/datom"
	"github.com/roach88/datoms/internal/db"
	"github.com/roach88/datoms/internal/querycache"
)

// Change describes one committed transaction.
type Change struct {
	TX      datom.TX
	Before  *db.DB
	After   *db.DB
	Novelty datom.Novelty
}

// Kernel is the transaction driver.
//
// Thread-safety model:
//   - Transact: safe from any goroutine, serialized internally
//   - DB, Observe, Subscribe: safe from any goroutine, never block writers
type Kernel struct {
	writeMu sync.Mutex
	current atomic.Pointer[db.DB]

	clock      Ticker
	registry   *changescope.Registry
	partitions []datom.Partition
	editors    db.EditorSource
	metrics    *querycache.Metrics
	logger     *slog.Logger

	subsMu sync.Mutex
	subs   []*Feed
}

// Option configures a Kernel.
type Option func(*Kernel)

// WithClock sets the transaction clock. Default: NewClock().
func WithClock(c Ticker) Option {
	return func(k *Kernel) {
		k.clock = c
	}
}

// WithUniquenessPartitions limits uniqueness checks to the given
// partitions. Default: every partition.
func WithUniquenessPartitions(parts ...datom.Partition) Option {
	return func(k *Kernel) {
		k.partitions = parts
	}
}

// WithEditors sets the source of mutation-session tokens.
func WithEditors(src db.EditorSource) Option {
	return func(k *Kernel) {
		k.editors = src
	}
}

// WithMetrics makes every database value report cache traffic to m.
func WithMetrics(m *querycache.Metrics) Option {
	return func(k *Kernel) {
		k.metrics = m
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(k *Kernel) {
		k.logger = l
	}
}

// WithRegistry shares an entity-type registry with the caller.
func WithRegistry(r *changescope.Registry) Option {
	return func(k *Kernel) {
		k.registry = r
	}
}

// New creates a kernel holding a freshly bootstrapped database.
func New(opts ...Option) (*Kernel, error) {
	k := &Kernel{
		clock:    NewClock(),
		registry: changescope.NewRegistry(),
		editors:  db.UUIDv7Editors{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(k)
	}
	k.current.Store(db.Empty(k.metrics))

	_, err := k.Transact(context.Background(), func(s *changescope.ChangeScope) error {
		_, err := s.Mutate(db.BootstrapSchema())
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("bootstrap schema: %w", err)
	}
	return k, nil
}

// DB returns the current database value.
func (k *Kernel) DB() *db.DB {
	return k.current.Load()
}

// Registry returns the entity types registered by committed transactions.
func (k *Kernel) Registry() *changescope.Registry {
	return k.registry
}

// Transact runs body as one transaction. Body and the effects it queues
// either all commit or none do. A transaction that changes nothing commits
// nothing: the returned Change has Before == After and is not published.
func (k *Kernel) Transact(ctx context.Context, body func(*changescope.ChangeScope) error) (*Change, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	k.writeMu.Lock()
	defer k.writeMu.Unlock()

	before := k.DB()
	tx := datom.NewTX(k.clock.Next())
	mut := db.NewMutableDb(before, tx, k.editors)
	dbCtx := db.NewDbContext[db.Mut](db.EnforcingUniquenessConstraints(mut, k.partitions...))
	defer dbCtx.Close()

	scope := changescope.New(dbCtx, k.registry)
	err := runBody(scope, body)
	if err == nil && ctx.Err() != nil {
		dbCtx.Cancel(ctx.Err())
		err = ctx.Err()
	}
	if err != nil {
		dbCtx.Poison(err)
		mut.Rollback(before)
		k.logger.Warn("transaction rolled back",
			"tx", tx,
			"code", datom.CodeOf(err),
			"error", err,
		)
		return nil, err
	}

	for _, t := range scope.Registered() {
		if err := k.registry.Add(t); err != nil {
			mut.Rollback(before)
			return nil, err
		}
	}

	novelty := scope.Novelty()
	if novelty.IsEmpty() {
		k.logger.Debug("transaction changed nothing", "tx", tx)
		return &Change{TX: tx, Before: before, After: before}, nil
	}

	after := mut.Snapshot()
	k.current.Store(after)
	change := &Change{TX: tx, Before: before, After: after, Novelty: novelty}

	k.logger.Debug("transaction committed",
		"tx", tx,
		"asserted", len(novelty.Asserted()),
		"retracted", len(novelty.Retracted()),
	)
	k.publish(change)
	return change, nil
}

// runBody runs body then the queued effects, turning a panic into an error.
// Required attributes are checked once everything has run.
func runBody(scope *changescope.ChangeScope, body func(*changescope.ChangeScope) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = fmt.Errorf("transaction panicked: %w", e)
				return
			}
			err = fmt.Errorf("transaction panicked: %v", r)
		}
	}()

	if err := body(scope); err != nil {
		return err
	}
	if err := scope.RunEffects(); err != nil {
		return err
	}
	return scope.CheckRequired()
}

// Subscribe returns a feed receiving every change committed from now on.
func (k *Kernel) Subscribe() *Feed {
	f := newFeed()
	k.subsMu.Lock()
	k.subs = append(k.subs, f)
	k.subsMu.Unlock()
	return f
}

func (k *Kernel) publish(c *Change) {
	k.subsMu.Lock()
	defer k.subsMu.Unlock()

	live := k.subs[:0]
	for _, f := range k.subs {
		if f.push(c) {
			live = append(live, f)
		}
	}
	for i := len(live); i < len(k.subs); i++ {
		k.subs[i] = nil
	}
	k.subs = live
}

// Close closes every subscriber feed.
func (k *Kernel) Close() {
	k.subsMu.Lock()
	defer k.subsMu.Unlock()

	for _, f := range k.subs {
		f.Close()
	}
	k.subs = nil
}
