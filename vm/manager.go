package vm

import (
	"sync"

	"github.com/enclavekernel/libos/errno"
)

// VMManager owns one process's reserved address space: a FreeSpaceManager
// over the whole range, the chunks carved from it, and the shared-mapping
// index and range-lock list backing that address space's files.
//
// Grounded on eventloop/registry.go's "small structs tracked in a map under
// one mutex" shape rather than a bespoke interval-tree allocator: chunks
// are kept in an address-ordered slice the same way FreeSpaceManager keeps
// free ranges.
type VMManager struct {
	mu     sync.Mutex
	whole  VMRange
	free   *FreeSpaceManager
	chunks []Chunk // sorted by Range().Start
	shm    *ShmManager
	locks  map[FileRef]*RangeLockList
}

func NewVMManager(whole VMRange, shm *ShmManager) *VMManager {
	return &VMManager{
		whole: whole,
		free:  NewFreeSpaceManager(whole),
		shm:   shm,
		locks: make(map[FileRef]*RangeLockList),
	}
}

func (m *VMManager) insertChunkLocked(c Chunk) {
	i := 0
	for i < len(m.chunks) && m.chunks[i].Range().Start < c.Range().Start {
		i++
	}
	m.chunks = append(m.chunks, nil)
	copy(m.chunks[i+1:], m.chunks[i:])
	m.chunks[i] = c
}

func (m *VMManager) findMultiVMAForLocked(length uintptr) *MultiVMA {
	for _, c := range m.chunks {
		if mv, ok := c.(*MultiVMA); ok && mv.Range().Len-used(mv) >= length {
			return mv
		}
	}
	return nil
}

// used returns the number of bytes currently occupied by VMAs within mv
// (the complement of its FreeSpaceManager's free space).
func used(mv *MultiVMA) uintptr {
	var free uintptr
	for _, r := range mv.free.Ranges() {
		free += r.Len
	}
	return mv.Range().Len - free
}

// MMap implements spec.md §4.5's mmap(options): validates, resolves
// file-backing, consults ShmManager for MAP_SHARED, and otherwise
// allocates from FreeSpaceManager into a new SingleVMA or an existing/new
// MultiVMA chunk.
func (m *VMManager) MMap(opts MMapOptions) (VMRange, error) {
	if err := opts.validate(); err != nil {
		return VMRange{}, errno.EINVAL
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if opts.Shared {
		outcome := m.shm.MMapSharedChunk(opts)
		switch outcome.Kind {
		case OutcomeSuccess:
			return VMRange{Start: outcome.Addr, Len: opts.Len}, nil
		case OutcomeNeedExpand:
			area := outcome.Chunk.Area()
			growth := VMRange{Start: area.Range.End(), Len: outcome.Range.Len - area.Range.Len}
			if err := m.free.AllocFixed(growth); err != nil {
				return VMRange{}, err
			}
			area.Range = outcome.Range
			m.shm.RecordChunk(opts.File.Inode, outcome.Chunk)
			return outcome.Range, nil
		case OutcomeNeedReplace:
			r, err := m.allocRangeLocked(opts)
			if err != nil {
				return VMRange{}, err
			}
			chunk := NewSingleVMA(VMArea{Range: r, Perm: opts.Perm, File: opts.File, Access: NewSharedAccess(opts.Pid)})
			m.shm.RecordChunk(opts.File.Inode, chunk)
			m.insertChunkLocked(chunk)
			return r, nil
		case OutcomeNeedCreate:
			r, err := m.allocRangeLocked(opts)
			if err != nil {
				return VMRange{}, err
			}
			chunk := NewSingleVMA(VMArea{Range: r, Perm: opts.Perm, File: opts.File, Access: NewSharedAccess(opts.Pid)})
			m.shm.RecordChunk(opts.File.Inode, chunk)
			m.insertChunkLocked(chunk)
			return r, nil
		}
	}

	if opts.Len >= CHUNKDefaultSize || opts.Fixed {
		r, err := m.allocRangeLocked(opts)
		if err != nil {
			return VMRange{}, err
		}
		chunk := NewSingleVMA(VMArea{Range: r, Perm: opts.Perm, File: opts.File, Access: NewPrivateAccess(opts.Pid)})
		m.insertChunkLocked(chunk)
		return r, nil
	}

	mv := m.findMultiVMAForLocked(opts.Len)
	if mv == nil {
		chunkRange, err := m.free.Alloc(CHUNKDefaultSize, PageSize)
		if err != nil {
			return VMRange{}, err
		}
		mv = NewMultiVMA(chunkRange)
		m.insertChunkLocked(mv)
	}
	area, err := mv.Insert(opts.Len, PageSize, opts.Perm, opts.File, NewPrivateAccess(opts.Pid))
	if err != nil {
		return VMRange{}, err
	}
	return area.Range, nil
}

func (m *VMManager) allocRangeLocked(opts MMapOptions) (VMRange, error) {
	if opts.Fixed {
		r := VMRange{Start: opts.Hint, Len: opts.Len}
		if err := m.free.AllocFixed(r); err != nil {
			return VMRange{}, err
		}
		return r, nil
	}
	return m.free.Alloc(opts.Len, PageSize)
}

// MProtect implements spec.md §4.5's mprotect: splits any intersecting
// SingleVMA/MultiVMA area and applies the new permission, or EACCES if the
// area is a read-only file mapping and write access was requested.
func (m *VMManager) MProtect(r VMRange, newPerm Perm) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, c := range m.chunks {
		if !c.Range().Overlaps(r) {
			continue
		}
		area, ok := c.Find(r.Start)
		if !ok {
			continue
		}
		if area.File != nil && !area.Writable() && newPerm&PermWrite != 0 {
			return errno.EACCES
		}
		area.Perm = newPerm
	}
	return nil
}

// MUnmap implements spec.md §4.5's munmap: removes or splits every chunk
// intersecting r, routing SingleVMA shared chunks through
// ShmManager.MUnmapSharedChunk and only actually releasing address space
// when it reports Freeable.
func (m *VMManager) MUnmap(r VMRange, pid int32, flag UnmapFlag) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var kept []Chunk
	for _, c := range m.chunks {
		if !c.Range().Overlaps(r) {
			kept = append(kept, c)
			continue
		}
		switch cc := c.(type) {
		case *SingleVMA:
			area := cc.Area()
			if area.Access.Kind == AccessShared && area.File != nil {
				outcome := m.shm.MUnmapSharedChunk(area.File.Inode, pid, flag)
				if outcome == UnmapStillInUse {
					if flag == UnmapForce {
						return errno.EBUSY
					}
					kept = append(kept, c)
					continue
				}
			}
			if !r.Contains(cc.Range()) {
				if flag == UnmapForce {
					return errno.EBUSY
				}
				kept = append(kept, c)
				continue
			}
			m.free.Free(cc.Range())
		case *MultiVMA:
			for _, area := range append([]*VMArea(nil), areasOf(cc)...) {
				if r.Overlaps(area.Range) {
					_ = cc.Remove(area.Range)
				}
			}
			if cc.Empty() {
				m.free.Free(cc.Range())
			} else {
				kept = append(kept, c)
			}
		}
	}
	m.chunks = kept
	return nil
}

func areasOf(mv *MultiVMA) []*VMArea { return mv.areas }

// LocksFor returns (creating if necessary) the RangeLockList guarding
// file's POSIX range locks.
func (m *VMManager) LocksFor(file FileRef) *RangeLockList {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[file]
	if !ok {
		l = NewRangeLockList()
		m.locks[file] = l
	}
	return l
}

// Find returns the VMArea covering addr, used by page-fault handling to
// decide whether the fault is recoverable (on-demand file read) or must be
// reported to the caller as a signal.
func (m *VMManager) Find(addr uintptr) (*VMArea, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.chunks {
		if area, ok := c.Find(addr); ok {
			return area, true
		}
	}
	return nil, false
}

// findExactLocked returns the chunk index and VMArea whose range is
// exactly r (mremap, like Linux, only operates on a prior mmap's whole
// range, never a sub-range of it).
func (m *VMManager) findExactLocked(r VMRange) (idx int, area *VMArea, ok bool) {
	for i, c := range m.chunks {
		if !c.Range().Overlaps(r) {
			continue
		}
		switch cc := c.(type) {
		case *SingleVMA:
			if cc.Area().Range == r {
				return i, cc.Area(), true
			}
		case *MultiVMA:
			for _, a := range areasOf(cc) {
				if a.Range == r {
					return i, a, true
				}
			}
		}
	}
	return 0, nil, false
}

// allocAdjacentLocked tries to carve r out of chunk's own free space (the
// global FreeSpaceManager for a SingleVMA, the chunk's sub-manager for a
// MultiVMA), used to grow a mapping in place.
func (m *VMManager) allocAdjacentLocked(chunk Chunk, r VMRange) error {
	switch cc := chunk.(type) {
	case *SingleVMA:
		return m.free.AllocFixed(r)
	case *MultiVMA:
		if !cc.Range().Contains(r) {
			return errno.ENOMEM
		}
		return cc.free.AllocFixed(r)
	}
	return errno.EINVAL
}

// freeAdjacentLocked is allocAdjacentLocked's inverse, used to shrink a
// mapping in place by returning its freed tail.
func (m *VMManager) freeAdjacentLocked(chunk Chunk, r VMRange) {
	switch cc := chunk.(type) {
	case *SingleVMA:
		m.free.Free(r)
	case *MultiVMA:
		cc.free.Free(r)
	}
}

// detachLocked removes area's range from the chunk at idx -- dropping the
// whole chunk for a SingleVMA, or just that one area for a MultiVMA -- as
// part of relocating a mapping elsewhere.
func (m *VMManager) detachLocked(idx int, r VMRange) {
	switch cc := m.chunks[idx].(type) {
	case *SingleVMA:
		m.chunks = append(m.chunks[:idx], m.chunks[idx+1:]...)
	case *MultiVMA:
		_ = cc.Remove(r)
		if cc.Empty() {
			m.free.Free(cc.Range())
			m.chunks = append(m.chunks[:idx], m.chunks[idx+1:]...)
		}
	}
}

// MRemap implements spec.md §4.5's mremap: grows or shrinks the mapping
// covering oldRange to newLen, in place when the adjacent space allows it.
// If it doesn't and mayMove is set, the mapping is relocated -- to
// fixedAddr if fixed is set, otherwise to a fresh address -- the same way
// ShmManager's NeedReplace outcome tears down and rebuilds a chunk.
// Returns EINVAL if oldRange does not name an existing mapping exactly,
// and ENOMEM if growth in place isn't possible and relocation isn't
// permitted.
func (m *VMManager) MRemap(oldRange VMRange, newLen uintptr, mayMove bool, fixed bool, fixedAddr uintptr) (VMRange, error) {
	if newLen == 0 || !pageAligned(newLen) || !pageAligned(oldRange.Start) || !pageAligned(oldRange.Len) {
		return VMRange{}, errno.EINVAL
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	idx, area, ok := m.findExactLocked(oldRange)
	if !ok {
		return VMRange{}, errno.EINVAL
	}
	if newLen == oldRange.Len {
		return oldRange, nil
	}

	if newLen < oldRange.Len {
		tail := VMRange{Start: oldRange.Start + newLen, Len: oldRange.Len - newLen}
		m.freeAdjacentLocked(m.chunks[idx], tail)
		area.Range.Len = newLen
		return area.Range, nil
	}

	if !fixed {
		growth := VMRange{Start: oldRange.End(), Len: newLen - oldRange.Len}
		if err := m.allocAdjacentLocked(m.chunks[idx], growth); err == nil {
			area.Range.Len = newLen
			return area.Range, nil
		}
	}
	if !mayMove {
		return VMRange{}, errno.ENOMEM
	}

	var dst VMRange
	if fixed {
		if !pageAligned(fixedAddr) {
			return VMRange{}, errno.EINVAL
		}
		dst = VMRange{Start: fixedAddr, Len: newLen}
		if err := m.free.AllocFixed(dst); err != nil {
			return VMRange{}, err
		}
	} else {
		var err error
		dst, err = m.free.Alloc(newLen, PageSize)
		if err != nil {
			return VMRange{}, err
		}
	}

	moved := VMArea{Range: dst, Perm: area.Perm, File: area.File, InitRole: area.InitRole, Access: area.Access}
	m.detachLocked(idx, oldRange)
	newChunk := NewSingleVMA(moved)
	m.insertChunkLocked(newChunk)
	if moved.File != nil && moved.Access.Kind == AccessShared {
		m.shm.RecordChunk(moved.File.Inode, newChunk)
	}
	return dst, nil
}
