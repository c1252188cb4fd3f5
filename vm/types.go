package vm

import (
	"fmt"

	"github.com/enclavekernel/libos/vfs"
)

// PageSize matches pagecache.PageSize; duplicated as an untyped constant
// here to avoid vm depending on pagecache for a single number.
const PageSize = 4096

// CHUNKDefaultSize is the threshold above which a mapping gets its own
// SingleVMA chunk rather than sharing a MultiVMA chunk's free space.
const CHUNKDefaultSize = 32 << 20

// Perm is an mmap/mprotect permission bitset.
type Perm uint8

const (
	PermRead Perm = 1 << iota
	PermWrite
	PermExec
)

func (p Perm) String() string {
	r, w, x := "-", "-", "-"
	if p&PermRead != 0 {
		r = "r"
	}
	if p&PermWrite != 0 {
		w = "w"
	}
	if p&PermExec != 0 {
		x = "x"
	}
	return r + w + x
}

// VMRange is a half-open byte range [Start, Start+Len) in the address
// space. Both ends must be page-aligned.
type VMRange struct {
	Start uintptr
	Len   uintptr
}

func (r VMRange) End() uintptr { return r.Start + r.Len }

func (r VMRange) Overlaps(o VMRange) bool {
	return r.Start < o.End() && o.Start < r.End()
}

func (r VMRange) Contains(o VMRange) bool {
	return r.Start <= o.Start && o.End() <= r.End()
}

func (r VMRange) String() string {
	return fmt.Sprintf("[%#x,%#x)", r.Start, r.End())
}

// pageAligned reports whether v is a multiple of PageSize.
func pageAligned(v uintptr) bool { return v%PageSize == 0 }

// FileRef identifies the file backing a VMA, by inode rather than a live
// handle: VMAs outlive any single open file description.
type FileRef struct {
	Inode  vfs.InodeID
	Offset int64
}

// AccessKind distinguishes a VMA's sharing mode.
type AccessKind int

const (
	AccessPrivate AccessKind = iota
	AccessShared
)

// Access records which pids may touch a VMA and how. Private access names
// exactly one owning pid; Shared access is a reference-counted pid set.
type Access struct {
	Kind AccessKind
	Pids map[int32]int // pid -> reference count; len==1 ref for Private
}

func NewPrivateAccess(pid int32) Access {
	return Access{Kind: AccessPrivate, Pids: map[int32]int{pid: 1}}
}

func NewSharedAccess(pid int32) Access {
	return Access{Kind: AccessShared, Pids: map[int32]int{pid: 1}}
}

// AddPid records another holder of a Shared access, or panics if called on
// Private access (a private VMA only ever has one holder).
func (a *Access) AddPid(pid int32) {
	if a.Kind != AccessShared {
		panic("vm: AddPid on non-shared access")
	}
	a.Pids[pid]++
}

// RemovePid drops one reference for pid, reporting whether any holders
// remain.
func (a *Access) RemovePid(pid int32) (stillHeld bool) {
	if n, ok := a.Pids[pid]; ok {
		if n <= 1 {
			delete(a.Pids, pid)
		} else {
			a.Pids[pid] = n - 1
		}
	}
	return len(a.Pids) > 0
}

// VMArea is one mapped region within a Chunk.
type VMArea struct {
	Range    VMRange
	Perm     Perm
	File     *FileRef // nil for anonymous mappings
	InitRole bool     // true if this mapping performs the on-demand page-in
	Access   Access
}

func (v *VMArea) Writable() bool { return v.Perm&PermWrite != 0 }

// MMapOptions parametrizes VMManager.MMap.
type MMapOptions struct {
	Hint    uintptr // required address when Fixed; otherwise ignored by VMManager.MMap
	Len     uintptr
	Perm    Perm
	Fixed   bool
	Shared  bool
	File    *FileRef
	Pid     int32
}

func (o MMapOptions) validate() error {
	if o.Len == 0 || !pageAligned(o.Len) {
		return fmt.Errorf("vm: mmap: length %d not a positive page multiple", o.Len)
	}
	if o.Fixed && !pageAligned(o.Hint) {
		return fmt.Errorf("vm: mmap: fixed hint %#x not page-aligned", o.Hint)
	}
	if o.Perm&^(PermRead|PermWrite|PermExec) != 0 {
		return fmt.Errorf("vm: mmap: invalid perm bits %#x", o.Perm)
	}
	return nil
}

// MMapOutcome is the sum type returned by ShmManager.MMapSharedChunk.
type MMapOutcome struct {
	Kind  MMapOutcomeKind
	Addr  uintptr   // valid for Success
	Chunk *SingleVMA // valid for NeedExpand/NeedReplace
	Range VMRange   // valid for NeedExpand
}

type MMapOutcomeKind int

const (
	OutcomeSuccess MMapOutcomeKind = iota
	OutcomeNeedCreate
	OutcomeNeedExpand
	OutcomeNeedReplace
)

// UnmapFlag parametrizes VMManager.MUnmap for shared chunks.
type UnmapFlag int

const (
	UnmapNormal UnmapFlag = iota
	UnmapForce
)

// UnmapOutcome reports whether ShmManager.MUnmapSharedChunk actually freed
// memory.
type UnmapOutcome int

const (
	UnmapStillInUse UnmapOutcome = iota
	UnmapFreeable
)
