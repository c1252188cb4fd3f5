package vm_test

import (
	"testing"

	"github.com/enclavekernel/libos/vm"
	"github.com/stretchr/testify/require"
)

func TestSingleVMA_Find(t *testing.T) {
	c := vm.NewSingleVMA(vm.VMArea{
		Range:  vm.VMRange{Start: 0x1000, Len: 0x1000},
		Perm:   vm.PermRead,
		Access: vm.NewPrivateAccess(1),
	})
	_, ok := c.Find(0x500)
	require.False(t, ok)
	area, ok := c.Find(0x1800)
	require.True(t, ok)
	require.Equal(t, vm.PermRead, area.Perm)
}

func TestMultiVMA_InsertFindRemove(t *testing.T) {
	mv := vm.NewMultiVMA(vm.VMRange{Start: 0, Len: 32 << 10})

	a1, err := mv.Insert(4096, 4096, vm.PermRead|vm.PermWrite, nil, vm.NewPrivateAccess(7))
	require.NoError(t, err)

	found, ok := mv.Find(a1.Range.Start)
	require.True(t, ok)
	require.Equal(t, a1, found)

	require.Contains(t, mv.Pids(), int32(7))

	require.NoError(t, mv.Remove(a1.Range))
	require.True(t, mv.Empty())
	_, ok = mv.Find(a1.Range.Start)
	require.False(t, ok)
}

func TestMultiVMA_InsertFailsWhenFull(t *testing.T) {
	mv := vm.NewMultiVMA(vm.VMRange{Start: 0, Len: 4096})
	_, err := mv.Insert(4096, 4096, vm.PermRead, nil, vm.NewPrivateAccess(1))
	require.NoError(t, err)
	_, err = mv.Insert(4096, 4096, vm.PermRead, nil, vm.NewPrivateAccess(1))
	require.Error(t, err)
}
