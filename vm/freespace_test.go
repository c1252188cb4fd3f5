package vm_test

import (
	"testing"

	"github.com/enclavekernel/libos/errno"
	"github.com/enclavekernel/libos/vm"
	"github.com/stretchr/testify/require"
)

func TestFreeSpaceManager_AllocCarvesFromWhole(t *testing.T) {
	fsm := vm.NewFreeSpaceManager(vm.VMRange{Start: 0, Len: 1 << 20})

	r, err := fsm.Alloc(4096, 4096)
	require.NoError(t, err)
	require.Equal(t, uintptr(4096), r.Len)
	require.True(t, r.Start%4096 == 0)

	total := uintptr(0)
	for _, f := range fsm.Ranges() {
		total += f.Len
	}
	require.Equal(t, uintptr(1<<20-4096), total)
}

func TestFreeSpaceManager_FreeMergesAdjacent(t *testing.T) {
	fsm := vm.NewFreeSpaceManager(vm.VMRange{Start: 0, Len: 3 * 4096})
	a, err := fsm.Alloc(4096, 4096)
	require.NoError(t, err)
	b, err := fsm.Alloc(4096, 4096)
	require.NoError(t, err)

	fsm.Free(a)
	fsm.Free(b)

	require.Len(t, fsm.Ranges(), 1)
	require.Equal(t, uintptr(3*4096), fsm.Ranges()[0].Len)
}

func TestFreeSpaceManager_AllocFixedRejectsOverlap(t *testing.T) {
	fsm := vm.NewFreeSpaceManager(vm.VMRange{Start: 0, Len: 4096})
	require.NoError(t, fsm.AllocFixed(vm.VMRange{Start: 0, Len: 4096}))
	require.ErrorIs(t, fsm.AllocFixed(vm.VMRange{Start: 0, Len: 4096}), errno.EEXIST)
}

func TestFreeSpaceManager_AllocReturnsENOMEMWhenExhausted(t *testing.T) {
	fsm := vm.NewFreeSpaceManager(vm.VMRange{Start: 0, Len: 4096})
	_, err := fsm.Alloc(4096, 4096)
	require.NoError(t, err)
	_, err = fsm.Alloc(4096, 4096)
	require.ErrorIs(t, err, errno.ENOMEM)
}
