package lsm

import (
	"context"
	"fmt"

	"github.com/enclavekernel/libos/blockdev"
)

// BuildBIT implements spec.md §4.6's BitBuilder: pack records (already
// sorted by LBA) into leaf blocks, group leaves into internal blocks,
// pack internal records into the root block, then issue one write of the
// whole region. Each block is independently AEAD-sealed under a fresh
// per-BIT key; a parent block stores its child's authentication tag.
func BuildBIT(ctx context.Context, device blockdev.Device, startHBA uint64, version uint64, level int, records []Record) (*BIT, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("lsm: BuildBIT: no records")
	}
	if len(records) > MaxRecordsPerBit {
		return nil, fmt.Errorf("lsm: BuildBIT: %d records exceeds MaxRecordsPerBit %d", len(records), MaxRecordsPerBit)
	}

	key, err := newBlockKey()
	if err != nil {
		return nil, err
	}

	numLeaves := ceilDiv(len(records), MaxRecordsPerLeaf)
	numInternal := ceilDiv(numLeaves, Fanout)
	if numInternal > Fanout {
		return nil, fmt.Errorf("lsm: BuildBIT: %d internal blocks exceeds Fanout %d", numInternal, Fanout)
	}

	leafBlocks := make([]blockdev.BlockBuf, numLeaves)
	leafMetas := make([]childMeta, numLeaves)
	for i := 0; i < numLeaves; i++ {
		lo := i * MaxRecordsPerLeaf
		hi := lo + MaxRecordsPerLeaf
		if hi > len(records) {
			hi = len(records)
		}
		chunk := records[lo:hi]
		block, mac, err := sealBlock(key, encodeRecords(chunk))
		if err != nil {
			return nil, err
		}
		leafBlocks[i] = block
		leafMetas[i] = childMeta{FirstLBA: chunk[0].LBA, LastLBA: chunk[len(chunk)-1].LBA}
		copy(leafMetas[i].MAC[:], mac)
	}

	internalBlocks := make([]blockdev.BlockBuf, numInternal)
	internalMetas := make([]childMeta, numInternal)
	for j := 0; j < numInternal; j++ {
		lo := j * Fanout
		hi := lo + Fanout
		if hi > numLeaves {
			hi = numLeaves
		}
		chunk := leafMetas[lo:hi]
		block, mac, err := sealBlock(key, encodeChildren(chunk))
		if err != nil {
			return nil, err
		}
		internalBlocks[j] = block
		internalMetas[j] = childMeta{FirstLBA: chunk[0].FirstLBA, LastLBA: chunk[len(chunk)-1].LastLBA}
		copy(internalMetas[j].MAC[:], mac)
	}

	rootBlock, rootMAC, err := sealBlock(key, encodeChildren(internalMetas))
	if err != nil {
		return nil, err
	}

	bufs := make([]blockdev.BlockBuf, 0, 1+numInternal+numLeaves)
	bufs = append(bufs, rootBlock)
	bufs = append(bufs, internalBlocks...)
	bufs = append(bufs, leafBlocks...)

	req := &blockdev.BioReq{Payload: blockdev.BioPayload{Kind: blockdev.BioWrite, Block: startHBA, Bufs: bufs}}
	sub := device.Submit(req)
	if _, err := sub.Wait(ctx); err != nil {
		return nil, err
	}

	b := &BIT{
		ID:          startHBA,
		Version:     version,
		Level:       level,
		Key:         key,
		numInternal: numInternal,
		numLeaves:   numLeaves,
		recordCount: len(records),
		RangeFirst:  internalMetas[0].FirstLBA,
		RangeLast:   internalMetas[numInternal-1].LastLBA,
	}
	copy(b.RootMAC[:], rootMAC)
	return b, nil
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}
