package vm_test

import (
	"context"
	"testing"
	"time"

	"github.com/enclavekernel/libos/vm"
	"github.com/stretchr/testify/require"
)

func TestRangeLockList_NonConflictingLocksBothSucceed(t *testing.T) {
	l := vm.NewRangeLockList()
	require.NoError(t, l.SetLock(context.Background(), vm.FileLock{Owner: 1, Start: 0, End: 10, Type: vm.LockRead}))
	require.NoError(t, l.SetLock(context.Background(), vm.FileLock{Owner: 2, Start: 0, End: 10, Type: vm.LockRead}))
}

func TestRangeLockList_WriteLockBlocksUntilUnlocked(t *testing.T) {
	l := vm.NewRangeLockList()
	require.NoError(t, l.SetLock(context.Background(), vm.FileLock{Owner: 1, Start: 0, End: 10, Type: vm.LockWrite}))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := l.SetLock(ctx, vm.FileLock{Owner: 2, Start: 5, End: 15, Type: vm.LockRead})
	require.Error(t, err)

	l.Unlock(vm.FileLock{Owner: 1, Start: 0, End: 10})

	require.NoError(t, l.SetLock(context.Background(), vm.FileLock{Owner: 2, Start: 5, End: 15, Type: vm.LockRead}))
}

func TestRangeLockList_AdjacentSameOwnerSameTypeMerge(t *testing.T) {
	l := vm.NewRangeLockList()
	require.NoError(t, l.SetLock(context.Background(), vm.FileLock{Owner: 1, Start: 0, End: 10, Type: vm.LockRead}))
	require.NoError(t, l.SetLock(context.Background(), vm.FileLock{Owner: 1, Start: 10, End: 20, Type: vm.LockRead}))

	locks := l.Locks()
	require.Len(t, locks, 1)
	require.Equal(t, int64(0), locks[0].Start)
	require.Equal(t, int64(20), locks[0].End)
}

func TestRangeLockList_OverlappingDifferentTypeSameOwnerSplits(t *testing.T) {
	l := vm.NewRangeLockList()
	require.NoError(t, l.SetLock(context.Background(), vm.FileLock{Owner: 1, Start: 0, End: 20, Type: vm.LockRead}))
	require.NoError(t, l.SetLock(context.Background(), vm.FileLock{Owner: 1, Start: 5, End: 10, Type: vm.LockWrite}))

	locks := l.Locks()
	require.Len(t, locks, 3)
	for i := 1; i < len(locks); i++ {
		require.LessOrEqual(t, locks[i-1].Start, locks[i].Start)
	}
}

func TestRangeLockList_TestLockReportsBlocker(t *testing.T) {
	l := vm.NewRangeLockList()
	require.NoError(t, l.SetLock(context.Background(), vm.FileLock{Owner: 1, Start: 0, End: 10, Type: vm.LockWrite}))

	blocker, blocked := l.TestLock(vm.FileLock{Owner: 2, Start: 5, End: 8, Type: vm.LockRead})
	require.True(t, blocked)
	require.EqualValues(t, 1, blocker.Owner)
}
