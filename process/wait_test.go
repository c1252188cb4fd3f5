package process_test

import (
	"context"
	"testing"
	"time"

	"github.com/enclavekernel/libos/process"
	"github.com/stretchr/testify/require"
)

func TestProcess_Wait4AnyPidReapsFirstZombie(t *testing.T) {
	parent := process.NewProcess(nil)
	child := process.NewProcess(parent)

	child.Exit(process.ExitStatus{Code: 7})

	pid, status, err := parent.Wait4(context.Background(), process.AnyPid, 0)
	require.NoError(t, err)
	require.Equal(t, child.Pid, pid)
	require.EqualValues(t, 7, status.Code)
}

func TestProcess_Wait4WithPidFiltersOtherChildren(t *testing.T) {
	parent := process.NewProcess(nil)
	child1 := process.NewProcess(parent)
	child2 := process.NewProcess(parent)

	child1.Exit(process.ExitStatus{Code: 1})
	child2.Exit(process.ExitStatus{Code: 2})

	pid, status, err := parent.Wait4(context.Background(), process.WithPid, child2.Pid)
	require.NoError(t, err)
	require.Equal(t, child2.Pid, pid)
	require.EqualValues(t, 2, status.Code)
}

func TestProcess_Wait4BlocksUntilChildExits(t *testing.T) {
	parent := process.NewProcess(nil)
	child := process.NewProcess(parent)

	done := make(chan int32, 1)
	go func() {
		pid, _, err := parent.Wait4(context.Background(), process.AnyPid, 0)
		require.NoError(t, err)
		done <- pid
	}()

	time.Sleep(10 * time.Millisecond)
	child.Exit(process.ExitStatus{Code: 0})

	select {
	case pid := <-done:
		require.Equal(t, child.Pid, pid)
	case <-time.After(time.Second):
		t.Fatal("wait4 did not return after child exit")
	}
}

func TestProcess_Wait4RespectsContextCancellation(t *testing.T) {
	parent := process.NewProcess(nil)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, _, err := parent.Wait4(ctx, process.AnyPid, 0)
	require.Error(t, err)
}
