package lsm

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"sync"
)

// BITC is the in-memory index of every BIT currently backing the engine:
// an optional L0 BIT (freshly minor-compacted) and the ordered L1 BITs
// major compaction has folded it into, plus the monotonically increasing
// version counter spec.md §8 requires strictly increases across
// AssignVersion calls.
type BITC struct {
	mu         sync.Mutex
	l0         *BIT
	l1         []*BIT // sorted by RangeFirst, non-overlapping
	maxVersion uint64
}

func NewBITC() *BITC {
	return &BITC{}
}

// AssignVersion returns the next strictly increasing BIT version.
func (c *BITC) AssignVersion() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.maxVersion++
	return c.maxVersion
}

// MaxVersion returns the highest version assigned so far.
func (c *BITC) MaxVersion() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.maxVersion
}

// InsertL0 installs bit as the new L0, returning the previous L0 (if any)
// so the caller can schedule folding it into L1 (major compaction, not
// implemented here per spec.md §4.6).
func (c *BITC) InsertL0(bit *BIT) *BIT {
	c.mu.Lock()
	defer c.mu.Unlock()
	prev := c.l0
	c.l0 = bit
	return prev
}

// InsertL1 adds bit to the L1 set, keeping it sorted by RangeFirst.
func (c *BITC) InsertL1(bit *BIT) {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := 0
	for i < len(c.l1) && c.l1[i].RangeFirst < bit.RangeFirst {
		i++
	}
	c.l1 = append(c.l1, nil)
	copy(c.l1[i+1:], c.l1[i:])
	c.l1[i] = bit
}

// L0 returns the current L0 BIT, or nil.
func (c *BITC) L0() *BIT {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.l0
}

// CandidatesForLBA returns, in search order, the L0 BIT (if its range
// contains lba) followed by the first L1 BIT whose range contains lba --
// exactly spec.md §4.6's read-path tiers 3 and 4.
func (c *BITC) CandidatesForLBA(lba uint64) []*BIT {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []*BIT
	if c.l0 != nil && c.l0.Contains(lba) {
		out = append(out, c.l0)
	}
	for _, bit := range c.l1 {
		if bit.Contains(lba) {
			out = append(out, bit)
			break
		}
	}
	return out
}

// CandidatesForRange returns the L0 BIT (if overlapping) followed by every
// overlapping L1 BIT, for search_range's short-circuiting scan.
func (c *BITC) CandidatesForRange(start, end uint64) []*BIT {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []*BIT
	if c.l0 != nil && c.l0.RangeFirst < end && start <= c.l0.RangeLast {
		out = append(out, c.l0)
	}
	for _, bit := range c.l1 {
		if bit.RangeFirst < end && start <= bit.RangeLast {
			out = append(out, bit)
		}
	}
	return out
}

// encodeBIT/decodeBIT serialize a BIT's metadata (not its on-disk blocks,
// which already live in the block device): the descriptor BITC.Encode
// persists so a reader can locate and decrypt the BIT after restart.
func encodeBIT(b *BIT) []byte {
	var buf bytes.Buffer
	_ = binary.Write(&buf, binary.LittleEndian, b.ID)
	_ = binary.Write(&buf, binary.LittleEndian, b.Version)
	_ = binary.Write(&buf, binary.LittleEndian, int32(b.Level))
	buf.Write(b.Key[:])
	buf.Write(b.RootMAC[:])
	_ = binary.Write(&buf, binary.LittleEndian, int32(b.numInternal))
	_ = binary.Write(&buf, binary.LittleEndian, int32(b.numLeaves))
	_ = binary.Write(&buf, binary.LittleEndian, int32(b.recordCount))
	_ = binary.Write(&buf, binary.LittleEndian, b.RangeFirst)
	_ = binary.Write(&buf, binary.LittleEndian, b.RangeLast)
	return buf.Bytes()
}

const encodedBITSize = 8 + 8 + 4 + chacha20KeySize + macSize + 4 + 4 + 4 + 8 + 8

// chacha20KeySize duplicates chacha20poly1305.KeySize to avoid importing
// the crypto package into this file's constant block.
const chacha20KeySize = 32

func decodeBIT(buf []byte) (*BIT, []byte, error) {
	if len(buf) < encodedBITSize {
		return nil, nil, fmt.Errorf("lsm: decodeBIT: short buffer")
	}
	r := bytes.NewReader(buf[:encodedBITSize])
	b := &BIT{}
	var level, numInternal, numLeaves, recordCount int32
	_ = binary.Read(r, binary.LittleEndian, &b.ID)
	_ = binary.Read(r, binary.LittleEndian, &b.Version)
	_ = binary.Read(r, binary.LittleEndian, &level)
	_, _ = io.ReadFull(r, b.Key[:])
	_, _ = io.ReadFull(r, b.RootMAC[:])
	_ = binary.Read(r, binary.LittleEndian, &numInternal)
	_ = binary.Read(r, binary.LittleEndian, &numLeaves)
	_ = binary.Read(r, binary.LittleEndian, &recordCount)
	_ = binary.Read(r, binary.LittleEndian, &b.RangeFirst)
	_ = binary.Read(r, binary.LittleEndian, &b.RangeLast)
	b.Level = int(level)
	b.numInternal = int(numInternal)
	b.numLeaves = int(numLeaves)
	b.recordCount = int(recordCount)
	return b, buf[encodedBITSize:], nil
}

// Encode serializes the whole catalog as the max version, an L0-present
// flag byte, L0 (if present), L1 count, then each L1 BIT, for
// Engine.Persist to seal through a DiskShadow.
func (c *BITC) Encode() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()

	var buf bytes.Buffer
	_ = binary.Write(&buf, binary.LittleEndian, c.maxVersion)
	if c.l0 != nil {
		buf.WriteByte(1)
		buf.Write(encodeBIT(c.l0))
	} else {
		buf.WriteByte(0)
	}
	_ = binary.Write(&buf, binary.LittleEndian, int32(len(c.l1)))
	for _, bit := range c.l1 {
		buf.Write(encodeBIT(bit))
	}
	return buf.Bytes()
}

// DecodeBITC reverses Encode.
func DecodeBITC(buf []byte) (*BITC, error) {
	if len(buf) < 9 {
		return nil, fmt.Errorf("lsm: DecodeBITC: short buffer")
	}
	c := &BITC{}
	c.maxVersion = binary.LittleEndian.Uint64(buf[0:8])
	hasL0 := buf[8]
	rest := buf[9:]

	if hasL0 == 1 {
		bit, tail, err := decodeBIT(rest)
		if err != nil {
			return nil, err
		}
		c.l0 = bit
		rest = tail
	}

	if len(rest) < 4 {
		return nil, fmt.Errorf("lsm: DecodeBITC: missing L1 count")
	}
	n := binary.LittleEndian.Uint32(rest[0:4])
	rest = rest[4:]
	for i := uint32(0); i < n; i++ {
		bit, tail, err := decodeBIT(rest)
		if err != nil {
			return nil, err
		}
		c.l1 = append(c.l1, bit)
		rest = tail
	}
	return c, nil
}
