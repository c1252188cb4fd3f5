package vm

import (
	"github.com/enclavekernel/libos/errno"
)

// Chunk owns a contiguous VMRange within the address space. SingleVMA
// wraps exactly one VMArea (the fast path for large or MAP_FIXED
// mappings); MultiVMA packs many small VMAs into its own ChunkManager.
type Chunk interface {
	Range() VMRange
	// Find returns the VMArea covering addr, if any.
	Find(addr uintptr) (*VMArea, bool)
	// Pids returns every pid with live access to any VMA in this chunk,
	// used to decide when a chunk's lifetime ends.
	Pids() map[int32]bool
}

// SingleVMA is a Chunk holding exactly one VMArea.
type SingleVMA struct {
	area VMArea
}

func NewSingleVMA(area VMArea) *SingleVMA {
	return &SingleVMA{area: area}
}

func (c *SingleVMA) Range() VMRange { return c.area.Range }

func (c *SingleVMA) Area() *VMArea { return &c.area }

func (c *SingleVMA) Find(addr uintptr) (*VMArea, bool) {
	r := VMRange{Start: addr, Len: 1}
	if c.area.Range.Overlaps(r) {
		return &c.area, true
	}
	return nil, false
}

func (c *SingleVMA) Pids() map[int32]bool {
	out := make(map[int32]bool, len(c.area.Access.Pids))
	for pid := range c.area.Access.Pids {
		out[pid] = true
	}
	return out
}

// MultiVMA packs small mappings into a single chunk-sized region, with its
// own sub-manager (first-fit over free space with random offset) and a
// per-chunk process membership set governing the chunk's lifetime.
type MultiVMA struct {
	chunkRange VMRange
	free       *FreeSpaceManager
	areas      []*VMArea // sorted by Range.Start
	members    map[int32]int
}

func NewMultiVMA(chunkRange VMRange) *MultiVMA {
	return &MultiVMA{
		chunkRange: chunkRange,
		free:       NewFreeSpaceManager(chunkRange),
		members:    make(map[int32]int),
	}
}

func (c *MultiVMA) Range() VMRange { return c.chunkRange }

// Insert allocates room for an area of the given length/align within this
// chunk and records it, returning the placed VMArea.
func (c *MultiVMA) Insert(length, align uintptr, perm Perm, file *FileRef, access Access) (*VMArea, error) {
	r, err := c.free.Alloc(length, align)
	if err != nil {
		return nil, err
	}
	area := &VMArea{Range: r, Perm: perm, File: file, Access: access}
	c.insertSorted(area)
	for pid := range access.Pids {
		c.members[pid]++
	}
	return area, nil
}

func (c *MultiVMA) insertSorted(area *VMArea) {
	i := 0
	for i < len(c.areas) && c.areas[i].Range.Start < area.Range.Start {
		i++
	}
	c.areas = append(c.areas, nil)
	copy(c.areas[i+1:], c.areas[i:])
	c.areas[i] = area
}

func (c *MultiVMA) Find(addr uintptr) (*VMArea, bool) {
	for _, a := range c.areas {
		if a.Range.Overlaps(VMRange{Start: addr, Len: 1}) {
			return a, true
		}
	}
	return nil, false
}

// Remove releases the VMArea covering r (must match exactly an existing
// area's range) and returns its space to the sub-manager.
func (c *MultiVMA) Remove(r VMRange) error {
	for i, a := range c.areas {
		if a.Range == r {
			c.free.Free(r)
			for pid := range a.Access.Pids {
				c.members[pid]--
				if c.members[pid] <= 0 {
					delete(c.members, pid)
				}
			}
			c.areas = append(c.areas[:i], c.areas[i+1:]...)
			return nil
		}
	}
	return errno.EINVAL
}

func (c *MultiVMA) Pids() map[int32]bool {
	out := make(map[int32]bool, len(c.members))
	for pid := range c.members {
		out[pid] = true
	}
	return out
}

// Empty reports whether this chunk holds any live mappings.
func (c *MultiVMA) Empty() bool { return len(c.areas) == 0 }
