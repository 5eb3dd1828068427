package kernel

import (
	"context"
	"errors"
	"sync"
)

// ErrFeedClosed is returned by Feed.Next once the feed is closed and
// drained.
var ErrFeedClosed = errors.New("change feed closed")

// Feed is a thread-safe FIFO of committed changes for one subscriber.
//
// The feed is unbounded so a slow subscriber never blocks the writer. It
// signals through a channel of size one, so waiting composes with context
// cancellation.
type Feed struct {
	mu      sync.Mutex
	changes []*Change
	closed  bool
	signal  chan struct{}
}

func newFeed() *Feed {
	return &Feed{
		changes: make([]*Change, 0, 16),
		signal:  make(chan struct{}, 1),
	}
}

// push appends c. Returns false if the feed is closed.
func (f *Feed) push(c *Change) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return false
	}
	f.changes = append(f.changes, c)

	// Non-blocking: the buffer of one coalesces signals.
	select {
	case f.signal <- struct{}{}:
	default:
	}
	return true
}

// TryNext returns the oldest pending change without blocking.
func (f *Feed) TryNext() (*Change, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.changes) == 0 {
		return nil, false
	}
	c := f.changes[0]
	f.changes[0] = nil
	if len(f.changes) == 1 {
		f.changes = f.changes[:0]
	} else {
		f.changes = f.changes[1:]
	}
	return c, true
}

// Next blocks until a change is available, ctx is done, or the feed is
// closed and drained.
func (f *Feed) Next(ctx context.Context) (*Change, error) {
	for {
		if c, ok := f.TryNext(); ok {
			return c, nil
		}

		f.mu.Lock()
		closed := f.closed
		f.mu.Unlock()
		if closed {
			return nil, ErrFeedClosed
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-f.signal:
		}
	}
}

// Len returns the number of pending changes.
func (f *Feed) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.changes)
}

// Close stops delivery. Pending changes can still be drained.
func (f *Feed) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return
	}
	f.closed = true
	close(f.signal)
}
