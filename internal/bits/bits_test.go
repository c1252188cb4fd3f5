package bits_test

import (
	"testing"

	"github.com/enclavekernel/libos/internal/bits"
	"github.com/stretchr/testify/require"
)

func TestAtomicBits_SetClearTest(t *testing.T) {
	var b bits.AtomicBits
	require.False(t, b.Test(3))
	b.Set(3)
	require.True(t, b.Test(3))
	require.Equal(t, 1, b.Count())
	b.Clear(3)
	require.False(t, b.Test(3))
	require.Equal(t, 0, b.Count())
}

func TestAtomicBits_FirstSetFrom_Wraps(t *testing.T) {
	var b bits.AtomicBits
	b.Set(1)
	b.Set(5)
	idx, ok := b.FirstSetFrom(3, 8)
	require.True(t, ok)
	require.EqualValues(t, 5, idx)

	idx, ok = b.FirstSetFrom(6, 8)
	require.True(t, ok)
	require.EqualValues(t, 1, idx) // wrapped around
}

func TestIdAllocator_MonotonicFromOne(t *testing.T) {
	a := bits.NewIdAllocator()
	require.EqualValues(t, 1, a.Next())
	require.EqualValues(t, 2, a.Next())
	require.EqualValues(t, 3, a.Next())
}

func TestAnyMap_SetGetDelete(t *testing.T) {
	var m bits.AnyMap
	_, ok := m.Get("k")
	require.False(t, ok)
	m.Set("k", 42)
	v, ok := m.Get("k")
	require.True(t, ok)
	require.Equal(t, 42, v)
	m.Delete("k")
	_, ok = m.Get("k")
	require.False(t, ok)
}

func TestRing_PushPopFIFO(t *testing.T) {
	r := bits.NewRing[int](4)
	require.True(t, r.Empty())
	require.True(t, r.PushBack(1))
	require.True(t, r.PushBack(2))
	require.True(t, r.PushBack(3))
	require.True(t, r.PushBack(4))
	require.True(t, r.Full())
	require.False(t, r.PushBack(5))

	v, ok := r.PopFront()
	require.True(t, ok)
	require.Equal(t, 1, v)
	require.True(t, r.PushBack(5))

	for i, want := range []int{2, 3, 4, 5} {
		v, ok := r.PopFront()
		require.True(t, ok, "pop %d", i)
		require.Equal(t, want, v)
	}
	require.True(t, r.Empty())
}

func TestRing_PanicsOnNonPowerOfTwo(t *testing.T) {
	require.Panics(t, func() { bits.NewRing[int](3) })
}

func TestChunkedQueue_FIFOAcrossChunkBoundary(t *testing.T) {
	q := bits.NewChunkedQueue[int]()
	const n = 300 // spans multiple 128-element chunks
	for i := 0; i < n; i++ {
		q.Push(i)
	}
	require.Equal(t, n, q.Len())
	for i := 0; i < n; i++ {
		v, ok := q.Pop()
		require.True(t, ok)
		require.Equal(t, i, v)
	}
	require.Equal(t, 0, q.Len())
	_, ok := q.Pop()
	require.False(t, ok)
}

func TestChunkedQueue_InterleavedPushPop(t *testing.T) {
	q := bits.NewChunkedQueue[string]()
	q.Push("a")
	q.Push("b")
	v, ok := q.Pop()
	require.True(t, ok)
	require.Equal(t, "a", v)
	q.Push("c")
	v, ok = q.Pop()
	require.True(t, ok)
	require.Equal(t, "b", v)
	v, ok = q.Pop()
	require.True(t, ok)
	require.Equal(t, "c", v)
}
