package db

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/roach88/datoms/internal/datom"
)

// ErrContextClosed is the poison of a context whose transaction has ended.
var ErrContextClosed = errors.New("db context closed")

// DbContext carries the current read or write pipeline for one unit of
// work. It holds either a live implementation or a poison; once poisoned it
// stays poisoned and every access fails with the captured cause.
//
// Thread-safety: DbContext is safe for concurrent use.
type DbContext[T any] struct {
	mu     sync.Mutex
	impl   T
	poison error
}

// NewDbContext returns a live context holding impl.
func NewDbContext[T any](impl T) *DbContext[T] {
	return &DbContext[T]{impl: impl}
}

// Impl returns the current implementation, or a CONTEXT_POISONED error
// wrapping the poison.
func (c *DbContext[T]) Impl() (T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.poison != nil {
		var zero T
		return zero, poisonedError(c.poison)
	}
	return c.impl, nil
}

// MustImpl is Impl for code that cannot continue without a live context.
// It panics with the poison error.
func (c *DbContext[T]) MustImpl() T {
	impl, err := c.Impl()
	if err != nil {
		panic(err)
	}
	return impl
}

// Poison makes every later access fail with err. The first poison wins.
func (c *DbContext[T]) Poison(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.poison == nil {
		c.poison = err
	}
}

// Cancel poisons the context with a cancellation caused by cause.
func (c *DbContext[T]) Cancel(cause error) {
	if cause == nil {
		c.Poison(context.Canceled)
		return
	}
	c.Poison(fmt.Errorf("%w: %w", context.Canceled, cause))
}

// Close poisons the context with ErrContextClosed.
func (c *DbContext[T]) Close() {
	c.Poison(ErrContextClosed)
}

// Poisoned returns the poison, or nil while the context is live.
func (c *DbContext[T]) Poisoned() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.poison
}

// Bind installs impl for the extent of body and restores the previous
// implementation afterwards, including when body fails or panics. A poison
// set during body is kept.
func (c *DbContext[T]) Bind(impl T, body func() error) error {
	c.mu.Lock()
	if c.poison != nil {
		c.mu.Unlock()
		return poisonedError(c.poison)
	}
	prev := c.impl
	c.impl = impl
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.impl = prev
		c.mu.Unlock()
	}()
	return body()
}

// Alter derives a replacement from the current implementation and binds it
// for the extent of body.
func (c *DbContext[T]) Alter(f func(T) (T, error), body func() error) error {
	cur, err := c.Impl()
	if err != nil {
		return err
	}
	next, err := f(cur)
	if err != nil {
		return err
	}
	return c.Bind(next, body)
}

// Writable returns the current pipeline of c as a Mut. A snapshot or any
// other read-only pipeline fails with NOT_MUTABLE.
func Writable(c *DbContext[Q]) (Mut, error) {
	impl, err := c.Impl()
	if err != nil {
		return nil, err
	}
	mut, ok := impl.(Mut)
	if !ok {
		return nil, &datom.Error{
			Code:    datom.ErrCodeNotMutable,
			Message: fmt.Sprintf("%T is read-only", impl),
		}
	}
	return mut, nil
}

func poisonedError(cause error) error {
	return &datom.Error{
		Code:    datom.ErrCodeContextPoisoned,
		Message: "db context is no longer usable",
		Err:     cause,
	}
}
