package lsm

import (
	"sync"

	"github.com/enclavekernel/libos/klog"
)

// BlocksPerSegment is the number of blocks one data segment holds; DST
// tracks validity at block granularity within each segment.
const BlocksPerSegment = 512

// segmentState is one segment's validity bitmap plus its live count, kept
// together so "move to a different bucket of validityTracker" is a single
// pointer move rather than a bitmap rescan.
type segmentState struct {
	valid    []bool
	numValid int
}

// DST (Data Segment Table) tracks, per data segment, which blocks are
// still referenced by a live BIT (valid) versus superseded (invalid), plus
// a validity tracker indexed by num_valid that points back to the set of
// segments with that count -- spec.md §4.6's O(1) victim-selection
// structure.
type DST struct {
	mu         sync.Mutex
	segments   map[uint64]*segmentState
	byNumValid map[int]map[uint64]bool // numValid -> set of segment ids
	victim     uint64
	hasVictim  bool
}

// NewDST allocates a table sized for numSegments, but -- matching
// checkpoint/dst.rs's DST::new -- starts with no segments tracked: a
// segment only enters the victim/alloc universe once ValidateOrInsert
// names it.
func NewDST(numSegments int) *DST {
	return &DST{
		segments:   make(map[uint64]*segmentState, numSegments),
		byNumValid: make(map[int]map[uint64]bool),
	}
}

func (d *DST) addToBucketLocked(seg uint64, numValid int) {
	bucket := d.byNumValid[numValid]
	if bucket == nil {
		bucket = make(map[uint64]bool)
		d.byNumValid[numValid] = bucket
	}
	bucket[seg] = true
}

func (d *DST) removeFromBucketLocked(seg uint64, numValid int) {
	bucket := d.byNumValid[numValid]
	delete(bucket, seg)
	if len(bucket) == 0 {
		delete(d.byNumValid, numValid)
	}
}

// ValidateOrInsert marks every block of segment valid, moving it from
// whatever validity bucket it was in to the full bucket.
func (d *DST) ValidateOrInsert(segment uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s := d.segments[segment]
	if s == nil {
		s = &segmentState{valid: make([]bool, BlocksPerSegment)}
		d.segments[segment] = s
	}
	d.removeFromBucketLocked(segment, s.numValid)
	for i := range s.valid {
		s.valid[i] = true
	}
	s.numValid = len(s.valid)
	d.addToBucketLocked(segment, s.numValid)
}

// UpdateValidity marks each of blocks (relative offsets within their
// segment) valid/invalid, moving affected segments between validity
// buckets as their counts change.
func (d *DST) UpdateValidity(segment uint64, blocks []int, valid bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s := d.segments[segment]
	if s == nil {
		return
	}
	before := s.numValid
	for _, i := range blocks {
		if i < 0 || i >= len(s.valid) {
			continue
		}
		if s.valid[i] == valid {
			klog.For(klog.LSM).Warn().
				Uint64("segment", segment).
				Int("block", i).
				Bool("valid", valid).
				Log("dst: double-invalidate, block already at requested validity")
		}
		s.valid[i] = valid
		if valid {
			s.numValid++
		} else if s.numValid > 0 {
			s.numValid--
		}
	}
	if s.numValid != before {
		d.removeFromBucketLocked(segment, before)
		d.addToBucketLocked(segment, s.numValid)
	}
}

// AllocBlocks returns up to n invalid block slots, preferring segments
// with fewer valid blocks (the same pressure pick_victim uses) while
// skipping the current GC victim.
func (d *DST) AllocBlocks(n int) []SegmentBlock {
	d.mu.Lock()
	defer d.mu.Unlock()

	var out []SegmentBlock
	for numValid := 0; numValid < BlocksPerSegment && len(out) < n; numValid++ {
		bucket := d.byNumValid[numValid]
		for seg := range bucket {
			if d.hasVictim && seg == d.victim {
				continue
			}
			s := d.segments[seg]
			for i, v := range s.valid {
				if len(out) >= n {
					break
				}
				if !v {
					out = append(out, SegmentBlock{Segment: seg, Block: i})
				}
			}
			if len(out) >= n {
				break
			}
		}
	}
	return out
}

// SegmentBlock identifies one block within a segment.
type SegmentBlock struct {
	Segment uint64
	Block   int
}

// PickVictim returns the segment with the fewest valid blocks (excluding
// any segment already chosen as victim), recording it as the current
// victim so AllocBlocks skips it until the caller clears it via
// ClearVictim.
func (d *DST) PickVictim() (uint64, int, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for numValid := 0; numValid < BlocksPerSegment; numValid++ {
		bucket := d.byNumValid[numValid]
		for seg := range bucket {
			d.victim = seg
			d.hasVictim = true
			return seg, numValid, true
		}
	}
	return 0, 0, false
}

// ClearVictim releases the current GC victim marker, allowing AllocBlocks
// to use it again once GC has drained it.
func (d *DST) ClearVictim() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.hasVictim = false
}

// NumValid reports a segment's current valid-block count, for tests and
// diagnostics.
func (d *DST) NumValid(segment uint64) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	if s := d.segments[segment]; s != nil {
		return s.numValid
	}
	return 0
}
