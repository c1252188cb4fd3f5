package pagecache_test

import (
	"context"
	"testing"
	"time"

	"github.com/enclavekernel/libos/pagecache"
	"github.com/stretchr/testify/require"
)

type testKey uint64

func (k testKey) Uint64() uint64 { return uint64(k) }

func newCache(t *testing.T, capacity int) *pagecache.Cache[testKey] {
	t.Helper()
	alloc := pagecache.NewFixedPool(capacity, 0)
	return pagecache.New[testKey](alloc)
}

func TestCache_AcquireMissThenHit(t *testing.T) {
	c := newCache(t, 4)

	h1, ok := c.Acquire(1)
	require.True(t, ok)
	require.Equal(t, pagecache.Uninit, h1.State())

	h2, ok := c.Acquire(1)
	require.True(t, ok)
	require.Equal(t, h1.Key(), h2.Key())

	h1.Release()
	h2.Release()
}

func TestCache_ReleaseDirtyAddsToDirtySet(t *testing.T) {
	c := newCache(t, 4)

	h, ok := c.Acquire(5)
	require.True(t, ok)
	h.MarkDirty()
	h.Release()

	require.Equal(t, 1, c.NumDirtyPages())
}

func TestCache_ReleaseNonDirtyNotInDirtySet(t *testing.T) {
	c := newCache(t, 4)

	h, ok := c.Acquire(7)
	require.True(t, ok)
	h.SetState(pagecache.UpToDate)
	h.Release()

	require.Equal(t, 0, c.NumDirtyPages())
}

func TestCache_PopDirtyToFlushOrdersByKeyAndTransitionsState(t *testing.T) {
	c := newCache(t, 8)

	for _, k := range []testKey{9, 3, 6} {
		h, ok := c.Acquire(k)
		require.True(t, ok)
		h.MarkDirty()
		h.Release()
	}
	require.Equal(t, 3, c.NumDirtyPages())

	batch := c.PopDirtyToFlush(2)
	require.Len(t, batch, 2)
	require.Equal(t, testKey(3), batch[0].Key())
	require.Equal(t, testKey(6), batch[1].Key())
	for _, h := range batch {
		require.Equal(t, pagecache.Flushing, h.State())
	}
	require.Equal(t, 1, c.NumDirtyPages())

	for _, h := range batch {
		h.SetState(pagecache.UpToDate)
		h.Release()
	}
}

func TestCache_EvictionSkipsDirtyAndOutstandingHandles(t *testing.T) {
	c := newCache(t, 2)

	held, ok := c.Acquire(1)
	require.True(t, ok)

	dirty, ok := c.Acquire(2)
	require.True(t, ok)
	dirty.MarkDirty()
	dirty.Release()

	require.Equal(t, 0, c.Evict(5))

	held.Release()
	require.Equal(t, 1, c.Evict(5))
}

func TestCache_AcquireEvictsWhenAllocatorExhausted(t *testing.T) {
	c := newCache(t, 1)

	h1, ok := c.Acquire(1)
	require.True(t, ok)
	h1.Release()

	h2, ok := c.Acquire(2)
	require.True(t, ok)
	h2.Release()

	require.NotEqual(t, testKey(1), h2.Key())
}

func TestGroupConsecutivePages(t *testing.T) {
	keys := []testKey{1, 2, 3, 7, 8, 20}
	groups := pagecache.GroupConsecutivePages(keys)
	require.Len(t, groups, 3)
	require.Equal(t, []testKey{1, 2, 3}, groups[0])
	require.Equal(t, []testKey{7, 8}, groups[1])
	require.Equal(t, []testKey{20}, groups[2])
}

func TestFlusher_WakesAtHighAndDrainsToBelowLow(t *testing.T) {
	c := newCache(t, 64)

	var flushed []testKey
	wb := func(ctx context.Context, handles []*pagecache.Handle[testKey]) error {
		for _, h := range handles {
			flushed = append(flushed, h.Key())
		}
		return nil
	}

	f := pagecache.NewFlusher(c, &pagecache.FlushConfig{
		Low:          1,
		High:         3,
		MaxBatch:     10,
		PollInterval: 20 * time.Millisecond,
	}, wb)
	defer f.Close()

	for k := testKey(1); k <= 3; k++ {
		h, ok := c.Acquire(k)
		require.True(t, ok)
		h.MarkDirty()
		h.Release()
	}

	require.Eventually(t, func() bool {
		return c.NumDirtyPages() == 0
	}, time.Second, time.Millisecond)
	require.Len(t, flushed, 3)
}

func TestFlusher_FailedWriteBackReturnsPagesToDirty(t *testing.T) {
	c := newCache(t, 64)

	wb := func(ctx context.Context, handles []*pagecache.Handle[testKey]) error {
		return context.DeadlineExceeded
	}

	f := pagecache.NewFlusher(c, &pagecache.FlushConfig{Low: 1, High: 2, MaxBatch: 10}, wb)
	defer f.Close()

	h, ok := c.Acquire(1)
	require.True(t, ok)
	h.MarkDirty()
	h.Release()

	h2, ok := c.Acquire(2)
	require.True(t, ok)
	h2.MarkDirty()
	h2.Release()

	require.Eventually(t, func() bool {
		return c.NumDirtyPages() >= 1
	}, time.Second, time.Millisecond)
}

func TestEvictor_RunPassFlushesThenEvicts(t *testing.T) {
	c := newCache(t, 4)

	h, ok := c.Acquire(1)
	require.True(t, ok)
	h.MarkDirty()
	h.Release()

	flushCalled := false
	f := pagecache.NewFlusher(c, &pagecache.FlushConfig{Low: 1, High: 100}, func(ctx context.Context, handles []*pagecache.Handle[testKey]) error {
		flushCalled = true
		return nil
	})
	defer f.Close()

	ev := pagecache.NewEvictor(&pagecache.EvictorConfig{PollInterval: time.Hour})
	defer ev.Close()
	ev.Register(f)

	ev.RunPass(context.Background())
	require.True(t, flushCalled)
	require.Equal(t, 0, c.NumDirtyPages())
}
