package lsm_test

import (
	"context"
	"testing"

	"github.com/enclavekernel/libos/blockdev"
	"github.com/enclavekernel/libos/lsm"
	"github.com/stretchr/testify/require"
)

func TestBITC_AssignVersionStrictlyIncreases(t *testing.T) {
	c := lsm.NewBITC()
	var prev uint64
	for i := 0; i < 100; i++ {
		v := c.AssignVersion()
		require.Greater(t, v, prev)
		prev = v
	}
	require.EqualValues(t, 100, c.MaxVersion())
}

func TestBITC_CandidatesForLBAPrefersL0OverL1(t *testing.T) {
	ctx := context.Background()
	dev := blockdev.NewMemDevice(64)

	l0, err := lsm.BuildBIT(ctx, dev, 0, 2, 0, []lsm.Record{{LBA: 5, Value: 1}})
	require.NoError(t, err)
	l1, err := lsm.BuildBIT(ctx, dev, 8, 1, 1, []lsm.Record{{LBA: 5, Value: 2}})
	require.NoError(t, err)

	c := lsm.NewBITC()
	c.InsertL1(l1)
	c.InsertL0(l0)

	got := c.CandidatesForLBA(5)
	require.Len(t, got, 2)
	require.Same(t, l0, got[0])
	require.Same(t, l1, got[1])
}

func TestBITC_EncodeDecodeRoundTrip(t *testing.T) {
	ctx := context.Background()
	dev := blockdev.NewMemDevice(64)

	bit, err := lsm.BuildBIT(ctx, dev, 0, 1, 0, []lsm.Record{{LBA: 1, Value: 1}, {LBA: 2, Value: 2}})
	require.NoError(t, err)

	c := lsm.NewBITC()
	c.AssignVersion()
	c.AssignVersion()
	c.InsertL0(bit)

	decoded, err := lsm.DecodeBITC(c.Encode())
	require.NoError(t, err)
	require.EqualValues(t, c.MaxVersion(), decoded.MaxVersion())
	require.NotNil(t, decoded.L0())
	require.EqualValues(t, bit.ID, decoded.L0().ID)
	require.EqualValues(t, bit.RangeFirst, decoded.L0().RangeFirst)
	require.EqualValues(t, bit.RangeLast, decoded.L0().RangeLast)
}
