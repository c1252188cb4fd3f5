package runtime_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/enclavekernel/libos/internal/bits"
	"github.com/enclavekernel/libos/runtime"
	"github.com/stretchr/testify/require"
)

func TestScheduler_SpawnRunsToCompletion(t *testing.T) {
	s := runtime.NewPriorityScheduler(2)
	s.Start()
	defer s.Stop()

	var ran atomic.Bool
	h := s.Spawn(func(ctx context.Context) (bool, error) {
		ran.Store(true)
		return true, nil
	}, runtime.SpawnOptions{Priority: runtime.Normal})

	require.NoError(t, h.Wait(context.Background()))
	require.True(t, ran.Load())
}

func TestScheduler_MultiStepTaskReenqueues(t *testing.T) {
	s := runtime.NewPriorityScheduler(2)
	s.Start()
	defer s.Stop()

	var steps atomic.Int32
	h := s.Spawn(func(ctx context.Context) (bool, error) {
		n := steps.Add(1)
		return n >= 3, nil
	}, runtime.SpawnOptions{Priority: runtime.Low})

	require.NoError(t, h.Wait(context.Background()))
	require.Equal(t, int32(3), steps.Load())
}

func TestScheduler_PropagatesStepError(t *testing.T) {
	s := runtime.NewPriorityScheduler(1)
	s.Start()
	defer s.Stop()

	boom := context.DeadlineExceeded
	h := s.Spawn(func(ctx context.Context) (bool, error) {
		return true, boom
	}, runtime.SpawnOptions{})

	require.ErrorIs(t, h.Wait(context.Background()), boom)
}

func TestScheduler_ManyTasksAllComplete(t *testing.T) {
	s := runtime.NewPriorityScheduler(4)
	s.Start()
	defer s.Stop()

	const n = 500
	handles := make([]*runtime.JoinHandle, n)
	for i := 0; i < n; i++ {
		handles[i] = s.Spawn(func(ctx context.Context) (bool, error) {
			return true, nil
		}, runtime.SpawnOptions{Priority: runtime.Priority(i % 3)})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, h := range handles {
		require.NoError(t, h.Wait(ctx))
	}
}

func TestVcpuSelector_PickFirstRoundRobins(t *testing.T) {
	sel := runtime.NewVcpuSelector(4)
	var all bits.AtomicBits
	for i := uint(0); i < 4; i++ {
		all.Set(i)
	}
	seen := map[uint]bool{}
	for i := 0; i < 4; i++ {
		seen[sel.PickFirst(&all)] = true
	}
	require.Len(t, seen, 4)
}

func TestVcpuSelector_PickNonBlockingPrefersLastIfIdle(t *testing.T) {
	sel := runtime.NewVcpuSelector(4)
	var all bits.AtomicBits
	for i := uint(0); i < 4; i++ {
		all.Set(i)
	}
	require.EqualValues(t, 2, sel.PickNonBlocking(2, 0, true, &all))
}

func TestVcpuSelector_PickNonBlockingPrefersThisOverIdleScan(t *testing.T) {
	sel := runtime.NewVcpuSelector(4)
	var all bits.AtomicBits
	for i := uint(0); i < 4; i++ {
		all.Set(i)
	}
	sel.MarkBusy(2)
	require.EqualValues(t, 3, sel.PickNonBlocking(2, 3, true, &all))
}

func TestVcpuSelector_PickNonBlockingStaysOnActiveLast(t *testing.T) {
	sel := runtime.NewVcpuSelector(4)
	var all bits.AtomicBits
	for i := uint(0); i < 4; i++ {
		all.Set(i)
	}
	for i := uint(0); i < 4; i++ {
		sel.MarkBusy(i)
	}
	require.EqualValues(t, 1, sel.PickNonBlocking(1, 0, false, &all))
}

func TestVcpuSelector_PickNonBlockingSkipsHeavyVcpu(t *testing.T) {
	sel := runtime.NewVcpuSelector(4)
	var all bits.AtomicBits
	for i := uint(0); i < 4; i++ {
		all.Set(i)
	}
	for i := uint(0); i < 4; i++ {
		sel.MarkBusy(i)
	}
	sel.MarkSleeping(1) // last is sleeping, so it's not "active" anymore
	sel.MarkHeavy(0)
	sel.MarkHeavy(2)
	require.EqualValues(t, 3, sel.PickNonBlocking(1, 0, false, &all))
}

func TestVcpuSelector_PickNonBlockingWakesLastBeforeOtherSleeper(t *testing.T) {
	sel := runtime.NewVcpuSelector(4)
	var all bits.AtomicBits
	for i := uint(0); i < 4; i++ {
		all.Set(i)
	}
	for i := uint(0); i < 4; i++ {
		sel.MarkBusy(i)
		sel.MarkHeavy(i)
	}
	sel.MarkSleeping(1)
	sel.MarkSleeping(3)
	require.EqualValues(t, 1, sel.PickNonBlocking(1, 0, false, &all))
}

func TestLeastLoaded_PrefersLastWithinTwo(t *testing.T) {
	lens := []int{5, 6, 10}
	require.EqualValues(t, 1, runtime.LeastLoaded(lens, 1))
}

func TestLeastLoaded_PicksMinimumOutsideTolerance(t *testing.T) {
	lens := []int{5, 20, 6}
	require.EqualValues(t, 0, runtime.LeastLoaded(lens, 1))
}
