package vm_test

import (
	"testing"

	"github.com/enclavekernel/libos/vfs"
	"github.com/enclavekernel/libos/vm"
	"github.com/stretchr/testify/require"
)

func TestShmManager_FirstMapperGetsNeedCreate(t *testing.T) {
	m := vm.NewShmManager()
	outcome := m.MMapSharedChunk(vm.MMapOptions{
		Len:    4096,
		Perm:   vm.PermRead,
		Shared: true,
		File:   &vm.FileRef{Inode: 1, Offset: 0},
	})
	require.Equal(t, vm.OutcomeNeedCreate, outcome.Kind)
}

func TestShmManager_SecondMapperSameRangeGetsSuccess(t *testing.T) {
	m := vm.NewShmManager()
	file := &vm.FileRef{Inode: 1, Offset: 0}

	chunk := vm.NewSingleVMA(vm.VMArea{
		Range:  vm.VMRange{Start: 0x2000, Len: 4096},
		Perm:   vm.PermRead,
		File:   file,
		Access: vm.NewSharedAccess(1),
	})
	m.RecordChunk(vfs.InodeID(1), chunk)

	outcome := m.MMapSharedChunk(vm.MMapOptions{
		Hint: 0x2000, Len: 4096, Perm: vm.PermRead, Shared: true, File: file,
	})
	require.Equal(t, vm.OutcomeSuccess, outcome.Kind)
	require.EqualValues(t, 0x2000, outcome.Addr)
}

func TestShmManager_MUnmapFreeableWhenLastHolderLeaves(t *testing.T) {
	m := vm.NewShmManager()
	chunk := vm.NewSingleVMA(vm.VMArea{
		Range:  vm.VMRange{Start: 0x3000, Len: 4096},
		Perm:   vm.PermRead,
		File:   &vm.FileRef{Inode: 5},
		Access: vm.NewSharedAccess(9),
	})
	m.RecordChunk(vfs.InodeID(5), chunk)

	outcome := m.MUnmapSharedChunk(vfs.InodeID(5), 9, vm.UnmapNormal)
	require.Equal(t, vm.UnmapFreeable, outcome)
}

func TestShmManager_MUnmapStillInUseWithOtherHolders(t *testing.T) {
	m := vm.NewShmManager()
	access := vm.NewSharedAccess(9)
	access.AddPid(10)
	chunk := vm.NewSingleVMA(vm.VMArea{
		Range:  vm.VMRange{Start: 0x3000, Len: 4096},
		Perm:   vm.PermRead,
		File:   &vm.FileRef{Inode: 6},
		Access: access,
	})
	m.RecordChunk(vfs.InodeID(6), chunk)

	outcome := m.MUnmapSharedChunk(vfs.InodeID(6), 9, vm.UnmapNormal)
	require.Equal(t, vm.UnmapStillInUse, outcome)
}
