package lsm

import (
	"context"
	"encoding/binary"
	"sort"

	"github.com/enclavekernel/libos/blockdev"
	"github.com/enclavekernel/libos/errno"
	"github.com/enclavekernel/libos/pagecache"
)

// Fanout is the number of children each internal/root block indexes, and
// MaxRecordsPerLeaf the number of Records packed into one 4 KiB leaf
// block, per spec.md §4.6.
const (
	Fanout            = 32
	MaxRecordsPerLeaf = 64
	MaxRecordsPerBit  = Fanout * Fanout * MaxRecordsPerLeaf
)

const macSize = 16 // chacha20poly1305.Overhead, duplicated to avoid a crypto import here

// childMeta is one entry in a root or internal block: the LBA range its
// child covers and the child's authentication tag.
type childMeta struct {
	FirstLBA uint64
	LastLBA  uint64
	MAC      [macSize]byte
}

const childMetaSize = 8 + 8 + macSize

func encodeChildren(children []childMeta) []byte {
	buf := make([]byte, 4+len(children)*childMetaSize)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(len(children)))
	for i, c := range children {
		off := 4 + i*childMetaSize
		binary.LittleEndian.PutUint64(buf[off:off+8], c.FirstLBA)
		binary.LittleEndian.PutUint64(buf[off+8:off+16], c.LastLBA)
		copy(buf[off+16:off+16+macSize], c.MAC[:])
	}
	return buf
}

func decodeChildren(buf []byte) []childMeta {
	n := binary.LittleEndian.Uint32(buf[0:4])
	out := make([]childMeta, n)
	for i := range out {
		off := 4 + i*childMetaSize
		out[i].FirstLBA = binary.LittleEndian.Uint64(buf[off : off+8])
		out[i].LastLBA = binary.LittleEndian.Uint64(buf[off+8 : off+16])
		copy(out[i].MAC[:], buf[off+16:off+16+macSize])
	}
	return out
}

// BIT is an immutable on-disk B+-tree over (lba -> record): root block,
// internal block region, leaf block region, each level authenticated with
// the BIT's own key (fresh per build, rotation is free per spec.md §4.6).
// BIT.ID is the region's start HBA; Version is BITC's monotonic counter
// value at insertion; Level is 0 (fresh from minor compaction) or 1
// (folded in by major compaction, not implemented here).
type BIT struct {
	ID      uint64
	Version uint64
	Level   int
	Key     blockKey
	RootMAC [macSize]byte

	numInternal int
	numLeaves   int
	recordCount int

	// RangeFirst/RangeLast bound the LBAs this BIT covers, letting
	// BITC skip a BIT whose range can't contain the target without a
	// disk read.
	RangeFirst uint64
	RangeLast  uint64
}

// Contains reports whether lba falls within this BIT's covered range.
func (b *BIT) Contains(lba uint64) bool {
	return lba >= b.RangeFirst && lba <= b.RangeLast
}

// Blocks reports the total number of 4 KiB blocks this BIT occupies: one
// root, numInternal internal blocks, numLeaves leaf blocks.
func (b *BIT) Blocks() uint64 {
	return uint64(1 + b.numInternal + b.numLeaves)
}

func (b *BIT) rootHBA() uint64          { return b.ID }
func (b *BIT) internalHBA(i int) uint64 { return b.ID + 1 + uint64(i) }
func (b *BIT) leafHBA(i int) uint64     { return b.ID + 1 + uint64(b.numInternal) + uint64(i) }

// loadPlain fetches hba through cache, populating it from device on a
// miss and verifying wantMAC before trusting the decrypted bytes, per
// spec.md §4.6's "verify the MAC against the parent's stored MAC" rule.
func loadPlain(ctx context.Context, device blockdev.Device, cache *pagecache.Cache[HBA], key blockKey, hba uint64, wantMAC []byte, plainLen int) ([]byte, error) {
	h, ok := cache.Acquire(HBA(hba))
	if !ok {
		return nil, errno.ENOMEM
	}
	defer h.Release()

	if h.State() == pagecache.Uninit {
		buf := h.Lock()
		raw := make([]byte, BlockSize)
		req := &blockdev.BioReq{Payload: blockdev.BioPayload{Kind: blockdev.BioRead, Block: hba, Bufs: []blockdev.BlockBuf{raw}}}
		sub := device.Submit(req)
		if _, err := sub.Wait(ctx); err != nil {
			h.Unlock()
			return nil, err
		}
		plain, err := openBlock(key, raw, wantMAC, plainLen+macSize)
		if err != nil {
			h.Unlock()
			return nil, err
		}
		copy(buf[:], plain)
		h.SetState(pagecache.UpToDate)
		h.Unlock()
	}

	buf := h.Lock()
	out := append([]byte(nil), buf[:plainLen]...)
	h.Unlock()
	return out, nil
}

// Search looks up lba within this BIT, per spec.md §4.6's root -> internal
// -> leaf descent.
func (b *BIT) Search(ctx context.Context, device blockdev.Device, cache *pagecache.Cache[HBA], lba uint64) (Record, bool, error) {
	rootPlainLen := 4 + b.numInternal*childMetaSize
	rootPlain, err := loadPlain(ctx, device, cache, b.Key, b.rootHBA(), b.RootMAC[:], rootPlainLen)
	if err != nil {
		return Record{}, false, err
	}
	internals := decodeChildren(rootPlain)

	ii := findChild(internals, lba)
	if ii < 0 {
		return Record{}, false, nil
	}

	internalPlainLen := 4 + leavesInInternal(b, ii)*childMetaSize
	internalPlain, err := loadPlain(ctx, device, cache, b.Key, b.internalHBA(ii), internals[ii].MAC[:], internalPlainLen)
	if err != nil {
		return Record{}, false, err
	}
	leaves := decodeChildren(internalPlain)

	li := findChild(leaves, lba)
	if li < 0 {
		return Record{}, false, nil
	}
	leafGlobal := ii*Fanout + li

	leafPlainLen := 4 + recordsInLeaf(b, leafGlobal)*RecordSize
	leafPlain, err := loadPlain(ctx, device, cache, b.Key, b.leafHBA(leafGlobal), leaves[li].MAC[:], leafPlainLen)
	if err != nil {
		return Record{}, false, err
	}
	records := decodeRecords(leafPlain)

	idx := sort.Search(len(records), func(i int) bool { return records[i].LBA >= lba })
	if idx < len(records) && records[idx].LBA == lba {
		return records[idx], true, nil
	}
	return Record{}, false, nil
}

// SearchRange returns every record in [start,end) held by this BIT.
func (b *BIT) SearchRange(ctx context.Context, device blockdev.Device, cache *pagecache.Cache[HBA], start, end uint64) ([]Record, error) {
	rootPlainLen := 4 + b.numInternal*childMetaSize
	rootPlain, err := loadPlain(ctx, device, cache, b.Key, b.rootHBA(), b.RootMAC[:], rootPlainLen)
	if err != nil {
		return nil, err
	}
	internals := decodeChildren(rootPlain)

	var out []Record
	for ii, child := range internals {
		if child.LastLBA < start || child.FirstLBA >= end {
			continue
		}
		internalPlainLen := 4 + leavesInInternal(b, ii)*childMetaSize
		internalPlain, err := loadPlain(ctx, device, cache, b.Key, b.internalHBA(ii), child.MAC[:], internalPlainLen)
		if err != nil {
			return nil, err
		}
		leaves := decodeChildren(internalPlain)
		for li, leaf := range leaves {
			if leaf.LastLBA < start || leaf.FirstLBA >= end {
				continue
			}
			leafGlobal := ii*Fanout + li
			leafPlainLen := 4 + recordsInLeaf(b, leafGlobal)*RecordSize
			leafPlain, err := loadPlain(ctx, device, cache, b.Key, b.leafHBA(leafGlobal), leaf.MAC[:], leafPlainLen)
			if err != nil {
				return nil, err
			}
			for _, r := range decodeRecords(leafPlain) {
				if r.LBA >= start && r.LBA < end {
					out = append(out, r)
				}
			}
		}
	}
	return out, nil
}

func findChild(children []childMeta, lba uint64) int {
	for i, c := range children {
		if lba >= c.FirstLBA && lba <= c.LastLBA {
			return i
		}
	}
	return -1
}

// leavesInInternal/recordsInLeaf recompute how many children the i'th
// internal/leaf block holds from the BIT's total counts, the same even
// division BitBuilder used when laying records out, so a reader never
// needs to persist per-block counts separately from numInternal/numLeaves.
func leavesInInternal(b *BIT, internalIdx int) int {
	total := b.numLeaves
	full := internalIdx * Fanout
	remaining := total - full
	if remaining > Fanout {
		return Fanout
	}
	if remaining < 0 {
		return 0
	}
	return remaining
}

func recordsInLeaf(b *BIT, leafIdx int) int {
	// all leaves but the last hold MaxRecordsPerLeaf; BitBuilder packs
	// records densely left-to-right so only the final leaf is partial.
	if leafIdx < b.numLeaves-1 {
		return MaxRecordsPerLeaf
	}
	return b.totalRecords() - (b.numLeaves-1)*MaxRecordsPerLeaf
}

// totalRecords is stashed at build time (see BitBuilder); zero for a BIT
// decoded from BITC metadata alone is never valid, so Build always sets
// it.
func (b *BIT) totalRecords() int { return b.recordCount }
