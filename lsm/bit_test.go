package lsm_test

import (
	"context"
	"testing"

	"github.com/enclavekernel/libos/blockdev"
	"github.com/enclavekernel/libos/lsm"
	"github.com/enclavekernel/libos/pagecache"
	"github.com/stretchr/testify/require"
)

func newBitCache(capacity int) *pagecache.Cache[lsm.HBA] {
	return pagecache.New[lsm.HBA](pagecache.NewFixedPool(capacity, 0))
}

func TestBuildBIT_SingleLeafSearchHitsAndMisses(t *testing.T) {
	ctx := context.Background()
	dev := blockdev.NewMemDevice(16)

	records := []lsm.Record{{LBA: 1, Value: 10}, {LBA: 5, Value: 50}, {LBA: 9, Value: 90}}
	bit, err := lsm.BuildBIT(ctx, dev, 0, 1, 0, records)
	require.NoError(t, err)
	require.EqualValues(t, 1, bit.RangeFirst)
	require.EqualValues(t, 9, bit.RangeLast)

	cache := newBitCache(8)

	rec, ok, err := bit.Search(ctx, dev, cache, 5)
	require.NoError(t, err)
	require.True(t, ok)
	require.EqualValues(t, 50, rec.Value)

	_, ok, err = bit.Search(ctx, dev, cache, 6)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestBuildBIT_SpansMultipleLeavesAndInternals(t *testing.T) {
	ctx := context.Background()
	dev := blockdev.NewMemDevice(4096)

	var records []lsm.Record
	for i := uint64(0); i < uint64(lsm.MaxRecordsPerLeaf*lsm.Fanout+10); i++ {
		records = append(records, lsm.Record{LBA: i, Value: i * 7})
	}

	bit, err := lsm.BuildBIT(ctx, dev, 0, 1, 0, records)
	require.NoError(t, err)

	cache := newBitCache(64)

	rec, ok, err := bit.Search(ctx, dev, cache, 0)
	require.NoError(t, err)
	require.True(t, ok)
	require.EqualValues(t, 0, rec.Value)

	last := records[len(records)-1]
	rec, ok, err = bit.Search(ctx, dev, cache, last.LBA)
	require.NoError(t, err)
	require.True(t, ok)
	require.EqualValues(t, last.Value, rec.Value)
}

func TestBIT_SearchRangeReturnsAllMatches(t *testing.T) {
	ctx := context.Background()
	dev := blockdev.NewMemDevice(16)

	records := []lsm.Record{{LBA: 1, Value: 10}, {LBA: 5, Value: 50}, {LBA: 9, Value: 90}}
	bit, err := lsm.BuildBIT(ctx, dev, 0, 1, 0, records)
	require.NoError(t, err)

	cache := newBitCache(8)

	got, err := bit.SearchRange(ctx, dev, cache, 2, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.EqualValues(t, 5, got[0].LBA)
	require.EqualValues(t, 9, got[1].LBA)
}
