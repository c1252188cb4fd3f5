package vm

import (
	"math/rand"
	"sort"

	"github.com/enclavekernel/libos/errno"
)

// FreeSpaceManager is an address-ordered vector of free VMRanges,
// supporting first-fit allocation with alignment and a per-allocation
// random offset for ASLR. Grounded on FreeSpaceManager's description in
// spec.md §4.5; kept as a plain sorted slice (like pagecache's dirty set)
// since the pack carries no interval tree.
type FreeSpaceManager struct {
	free []VMRange // sorted by Start, non-overlapping, non-adjacent (merged)
}

// NewFreeSpaceManager seeds the manager with a single free range covering
// the whole reserved address space.
func NewFreeSpaceManager(whole VMRange) *FreeSpaceManager {
	return &FreeSpaceManager{free: []VMRange{whole}}
}

// Alloc finds the first free range at least `length` bytes, aligned to
// `align` (must be a power of two), and carves out `length` bytes from it
// at a random offset within the slack (for ASLR), returning the allocated
// VMRange. Returns ENOMEM if no range fits.
func (f *FreeSpaceManager) Alloc(length uintptr, align uintptr) (VMRange, error) {
	if align == 0 {
		align = PageSize
	}
	for i, r := range f.free {
		start := alignUp(r.Start, align)
		if start+length > r.End() {
			continue
		}
		slack := r.End() - start - length
		offset := uintptr(0)
		if slack > 0 {
			offset = alignDown(uintptr(rand.Int63n(int64(slack)+1)), align)
		}
		alloc := VMRange{Start: start + offset, Len: length}
		f.removeLocked(i, alloc)
		return alloc, nil
	}
	return VMRange{}, errno.ENOMEM

}

// AllocFixed carves out exactly `r` if it is entirely free, or returns
// EEXIST if any part overlaps an already-allocated range.
func (f *FreeSpaceManager) AllocFixed(r VMRange) error {
	for i, free := range f.free {
		if free.Contains(r) {
			f.removeLocked(i, r)
			return nil
		}
	}
	return errno.EEXIST
}

// Free returns r to the free list, merging with adjacent free ranges.
func (f *FreeSpaceManager) Free(r VMRange) {
	idx := sort.Search(len(f.free), func(i int) bool { return f.free[i].Start >= r.Start })
	f.free = append(f.free, VMRange{})
	copy(f.free[idx+1:], f.free[idx:])
	f.free[idx] = r
	f.coalesce(idx)
}

func (f *FreeSpaceManager) coalesce(idx int) {
	// merge with next
	for idx+1 < len(f.free) && f.free[idx].End() >= f.free[idx+1].Start {
		f.free[idx].Len = max(f.free[idx].End(), f.free[idx+1].End()) - f.free[idx].Start
		f.free = append(f.free[:idx+1], f.free[idx+2:]...)
	}
	// merge with previous
	for idx > 0 && f.free[idx-1].End() >= f.free[idx].Start {
		f.free[idx-1].Len = max(f.free[idx-1].End(), f.free[idx].End()) - f.free[idx-1].Start
		f.free = append(f.free[:idx], f.free[idx+1:]...)
		idx--
	}
}

// removeLocked carves alloc (which must be inside f.free[i]) out of
// f.free[i], splitting into zero, one, or two remaining pieces.
func (f *FreeSpaceManager) removeLocked(i int, alloc VMRange) {
	r := f.free[i]
	var pieces []VMRange
	if r.Start < alloc.Start {
		pieces = append(pieces, VMRange{Start: r.Start, Len: alloc.Start - r.Start})
	}
	if alloc.End() < r.End() {
		pieces = append(pieces, VMRange{Start: alloc.End(), Len: r.End() - alloc.End()})
	}
	switch len(pieces) {
	case 0:
		f.free = append(f.free[:i], f.free[i+1:]...)
	case 1:
		f.free[i] = pieces[0]
	case 2:
		f.free[i] = pieces[0]
		f.free = append(f.free, VMRange{})
		copy(f.free[i+2:], f.free[i+1:])
		f.free[i+1] = pieces[1]
	}
}

// Ranges returns a copy of the current free list, for tests and diagnostics.
func (f *FreeSpaceManager) Ranges() []VMRange {
	out := make([]VMRange, len(f.free))
	copy(out, f.free)
	return out
}

func alignUp(v, align uintptr) uintptr {
	return (v + align - 1) &^ (align - 1)
}

func alignDown(v, align uintptr) uintptr {
	return v &^ (align - 1)
}

func max(a, b uintptr) uintptr {
	if a > b {
		return a
	}
	return b
}
