package lsm_test

import (
	"testing"

	"github.com/enclavekernel/libos/lsm"
	"github.com/stretchr/testify/require"
)

func TestMemTable_InsertThenSearch(t *testing.T) {
	m := lsm.NewMemTable(8)
	m.Insert(5, 100)
	m.Insert(1, 200)
	m.Insert(3, 300)

	v, ok := m.Search(1)
	require.True(t, ok)
	require.EqualValues(t, 200, v)

	_, ok = m.Search(2)
	require.False(t, ok)

	require.Equal(t, 3, m.Len())
}

func TestMemTable_InsertReplacesExisting(t *testing.T) {
	m := lsm.NewMemTable(8)
	m.Insert(1, 100)
	m.Insert(1, 200)

	v, ok := m.Search(1)
	require.True(t, ok)
	require.EqualValues(t, 200, v)
	require.Equal(t, 1, m.Len())
}

func TestMemTable_SearchRangeReturnsSortedSubset(t *testing.T) {
	m := lsm.NewMemTable(8)
	for _, lba := range []uint64{10, 5, 20, 15} {
		m.Insert(lba, lba*2)
	}

	got := m.SearchRange(6, 16)
	require.Len(t, got, 2)
	require.EqualValues(t, 10, got[0].LBA)
	require.EqualValues(t, 15, got[1].LBA)
}

func TestMemTable_FullAtCapacity(t *testing.T) {
	m := lsm.NewMemTable(2)
	require.False(t, m.Full())
	m.Insert(1, 1)
	require.False(t, m.Full())
	m.Insert(2, 2)
	require.True(t, m.Full())
}

func TestMemTable_ResetEmpties(t *testing.T) {
	m := lsm.NewMemTable(4)
	m.Insert(1, 1)
	m.Reset()
	require.Equal(t, 0, m.Len())
}
