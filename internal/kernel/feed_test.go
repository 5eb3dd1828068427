package kernel

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/datoms/internal/datom"
)

func change(seq int64) *Change {
	return &Change{TX: datom.NewTX(seq)}
}

func TestFeed_FIFO(t *testing.T) {
	f := newFeed()
	for i := int64(1); i <= 3; i++ {
		require.True(t, f.push(change(i)))
	}
	assert.Equal(t, 3, f.Len())

	for i := int64(1); i <= 3; i++ {
		c, ok := f.TryNext()
		require.True(t, ok)
		assert.Equal(t, datom.NewTX(i), c.TX)
	}
	_, ok := f.TryNext()
	assert.False(t, ok)
}

func TestFeed_NextBlocksUntilPush(t *testing.T) {
	f := newFeed()
	got := make(chan *Change, 1)
	go func() {
		c, err := f.Next(context.Background())
		if err == nil {
			got <- c
		}
	}()

	time.Sleep(10 * time.Millisecond)
	f.push(change(7))

	select {
	case c := <-got:
		assert.Equal(t, datom.NewTX(7), c.TX)
	case <-time.After(time.Second):
		t.Fatal("Next did not wake up")
	}
}

func TestFeed_NextHonorsContext(t *testing.T) {
	f := newFeed()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := f.Next(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestFeed_CloseDrains(t *testing.T) {
	f := newFeed()
	f.push(change(1))
	f.Close()
	f.Close()

	assert.False(t, f.push(change(2)), "closed feeds reject changes")

	c, err := f.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, datom.NewTX(1), c.TX)

	_, err = f.Next(context.Background())
	assert.ErrorIs(t, err, ErrFeedClosed)
}

func TestFeed_ConcurrentPush(t *testing.T) {
	f := newFeed()
	const producers = 10
	const perProducer = 100

	var wg sync.WaitGroup
	for p := range producers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range perProducer {
				f.push(change(int64(p*perProducer + i)))
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, producers*perProducer, f.Len())
}

func TestClock(t *testing.T) {
	c := NewClock()
	assert.Equal(t, int64(1), c.Next())
	assert.Equal(t, int64(1), c.Current())

	resumed := NewClockAt(41)
	assert.Equal(t, int64(42), resumed.Next())
}
