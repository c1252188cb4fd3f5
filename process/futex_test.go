package process_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/enclavekernel/libos/process"
	"github.com/stretchr/testify/require"
)

func TestFutexTable_WaitReturnsEAGAINOnValueMismatch(t *testing.T) {
	ft := process.NewFutexTable()
	var word uint32 = 5

	err := ft.Wait(context.Background(), &word, 99, ^uint32(0))
	require.Error(t, err)
}

func TestFutexTable_WakeReleasesWaiter(t *testing.T) {
	ft := process.NewFutexTable()
	var word uint32 = 0

	done := make(chan error, 1)
	go func() {
		done <- ft.Wait(context.Background(), &word, 0, ^uint32(0))
	}()

	require.Eventually(t, func() bool { return ft.Wake(&word, 1, ^uint32(0)) == 1 }, time.Second, time.Millisecond)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("waiter was not woken")
	}
}

func TestFutexTable_WakeBitsetOnlyMatchesOverlappingWaiters(t *testing.T) {
	ft := process.NewFutexTable()
	var word uint32 = 0

	var wg sync.WaitGroup
	results := make([]error, 2)
	wg.Add(2)
	go func() { defer wg.Done(); results[0] = ft.Wait(context.Background(), &word, 0, 0b01) }()
	go func() { defer wg.Done(); results[1] = ft.Wait(context.Background(), &word, 0, 0b10) }()

	require.Eventually(t, func() bool { return ft.Wake(&word, 10, 0b01) == 1 }, time.Second, time.Millisecond)

	// wake the other waiter so the goroutine doesn't leak past the test
	ft.Wake(&word, 10, 0b10)
	wg.Wait()
	require.NoError(t, results[0])
	require.NoError(t, results[1])
}

func TestFutexTable_RequeueMovesWaitersWithoutWaking(t *testing.T) {
	ft := process.NewFutexTable()
	var a, b uint32

	done := make(chan error, 1)
	go func() { done <- ft.Wait(context.Background(), &a, 0, ^uint32(0)) }()

	require.Eventually(t, func() bool {
		woken, requeued := ft.Requeue(&a, &b, 0, 1, ^uint32(0))
		return woken == 0 && requeued == 1
	}, time.Second, time.Millisecond)

	select {
	case <-done:
		t.Fatal("waiter should not have been woken by requeue")
	case <-time.After(50 * time.Millisecond):
	}

	require.Equal(t, 1, ft.Wake(&b, 1, ^uint32(0)))
	require.NoError(t, <-done)
}
