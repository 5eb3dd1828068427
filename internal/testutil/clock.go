package testutil

import (
	"sync"

	"github.com/roach88/datoms/internal/datom"
)

// TxClock is a resettable transaction clock for tests.
//
// Unlike kernel.Clock it can be rewound, so one scenario can run twice and
// allocate the same transaction ids both times.
type TxClock struct {
	mu    sync.Mutex
	start int64
	seq   int64
}

// NewTxClock returns a clock whose first Next is 1.
func NewTxClock() *TxClock {
	return &TxClock{}
}

// NewTxClockAt returns a clock whose first Next is start+1. Reset rewinds
// to start.
func NewTxClockAt(start int64) *TxClock {
	return &TxClock{start: start, seq: start}
}

// Next advances the clock.
func (c *TxClock) Next() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	return c.seq
}

// Current returns the last value handed out.
func (c *TxClock) Current() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seq
}

// CurrentTX returns the last value handed out as a transaction id.
func (c *TxClock) CurrentTX() datom.TX {
	return datom.NewTX(c.Current())
}

// Reset rewinds the clock to its starting point.
func (c *TxClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq = c.start
}
