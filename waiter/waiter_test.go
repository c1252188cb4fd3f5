package waiter_test

import (
	"context"
	"testing"
	"time"

	"github.com/enclavekernel/libos/errno"
	"github.com/enclavekernel/libos/waiter"
	"github.com/stretchr/testify/require"
)

func TestQueue_WakeOne_FIFO(t *testing.T) {
	q := waiter.NewQueue()
	w1 := q.Enqueue()
	w2 := q.Enqueue()
	require.Equal(t, 2, q.Len())

	require.True(t, q.WakeOne())
	select {
	case <-w1.Done():
	default:
		t.Fatal("w1 should have been woken first")
	}
	select {
	case <-w2.Done():
		t.Fatal("w2 should still be parked")
	default:
	}
	require.Equal(t, 1, q.Len())
	require.True(t, q.WakeOne())
	require.False(t, q.WakeOne())
}

func TestQueue_WakeAll(t *testing.T) {
	q := waiter.NewQueue()
	w1 := q.Enqueue()
	w2 := q.Enqueue()
	require.Equal(t, 2, q.WakeAll())
	<-w1.Done()
	<-w2.Done()
	require.Equal(t, 0, q.Len())
}

func TestRetry_SucceedsWithoutBlocking(t *testing.T) {
	q := waiter.NewQueue()
	v, err := waiter.Retry(context.Background(), q, func() (int, bool) {
		return 42, true
	})
	require.NoError(t, err)
	require.Equal(t, 42, v)
}

func TestRetry_WakesOnSignal(t *testing.T) {
	q := waiter.NewQueue()
	ready := false

	go func() {
		time.Sleep(10 * time.Millisecond)
		ready = true
		q.WakeAll()
	}()

	v, err := waiter.Retry(context.Background(), q, func() (string, bool) {
		if ready {
			return "done", true
		}
		return "", false
	})
	require.NoError(t, err)
	require.Equal(t, "done", v)
}

func TestRetry_ContextCanceled(t *testing.T) {
	q := waiter.NewQueue()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := waiter.Retry(ctx, q, func() (int, bool) {
		return 0, false
	})
	require.ErrorIs(t, err, context.Canceled)
}

func TestRetryTimeout_FiresETIMEDOUT(t *testing.T) {
	q := waiter.NewQueue()
	wheel := waiter.NewTimerWheel()
	defer wheel.Close()

	_, err := waiter.RetryTimeout(context.Background(), wheel, 10*time.Millisecond, q, func() (int, bool) {
		return 0, false
	})
	require.ErrorIs(t, err, errno.ETIMEDOUT)
}

func TestRetryTimeout_CondSatisfiedBeforeDeadline(t *testing.T) {
	q := waiter.NewQueue()
	wheel := waiter.NewTimerWheel()
	defer wheel.Close()

	go func() {
		time.Sleep(5 * time.Millisecond)
		q.WakeAll()
	}()

	tries := 0
	v, err := waiter.RetryTimeout(context.Background(), wheel, time.Second, q, func() (int, bool) {
		tries++
		if tries > 1 {
			return 7, true
		}
		return 0, false
	})
	require.NoError(t, err)
	require.Equal(t, 7, v)
}
