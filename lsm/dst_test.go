package lsm_test

import (
	"testing"

	"github.com/enclavekernel/libos/lsm"
	"github.com/stretchr/testify/require"
)

func TestDST_PickVictimChoosesFewestValidBlocks(t *testing.T) {
	// spec.md §8 scenario #5: a DST over 10 segments where only seg1 and
	// seg2 were ever validate_or_insert'ed; the other 8 never entered the
	// table at all, so they cannot be picked as victims.
	d := lsm.NewDST(10)

	const seg1, seg2 = uint64(1), uint64(2)
	d.ValidateOrInsert(seg1)
	d.ValidateOrInsert(seg2)

	d.UpdateValidity(seg1, []int{0, 1}, false)
	d.UpdateValidity(seg2, []int{0}, false)

	require.Equal(t, lsm.BlocksPerSegment-2, d.NumValid(seg1))
	require.Equal(t, lsm.BlocksPerSegment-1, d.NumValid(seg2))

	victim, numValid, ok := d.PickVictim()
	require.True(t, ok)
	require.Equal(t, seg1, victim)
	require.Equal(t, lsm.BlocksPerSegment-2, numValid)
}

func TestDST_AllocBlocksSkipsCurrentVictim(t *testing.T) {
	d := lsm.NewDST(2)
	d.ValidateOrInsert(0)
	d.ValidateOrInsert(1)
	d.UpdateValidity(0, []int{0, 1, 2}, false)
	d.UpdateValidity(1, []int{0, 1, 2}, false)

	victim, _, ok := d.PickVictim()
	require.True(t, ok)

	blocks := d.AllocBlocks(3)
	for _, b := range blocks {
		require.NotEqual(t, victim, b.Segment)
	}
}

func TestDST_ClearVictimAllowsReuse(t *testing.T) {
	d := lsm.NewDST(1)

	// an un-inserted table has nothing to pick: segments only enter the
	// table via ValidateOrInsert.
	_, _, ok := d.PickVictim()
	require.False(t, ok)

	d.ValidateOrInsert(0)
	d.UpdateValidity(0, []int{0}, false)

	victim, _, ok := d.PickVictim()
	require.True(t, ok)
	require.Zero(t, victim)

	d.ClearVictim()
	blocks := d.AllocBlocks(1)
	require.Len(t, blocks, 1)
	require.Equal(t, victim, blocks[0].Segment)
}

func TestDST_UpdateValidityDoubleInvalidateDecrementsAgain(t *testing.T) {
	d := lsm.NewDST(1)
	d.ValidateOrInsert(0)

	d.UpdateValidity(0, []int{0}, false)
	require.Equal(t, lsm.BlocksPerSegment-1, d.NumValid(0))

	// invalidating the same block again is logged as a double-invalidate
	// and still decrements numValid (which never goes below zero).
	d.UpdateValidity(0, []int{0}, false)
	require.Equal(t, lsm.BlocksPerSegment-2, d.NumValid(0))
}
