package vm

import (
	"sync"

	"github.com/enclavekernel/libos/vfs"
)

// sharedChunkEntry is the pooled, per-inode bookkeeping record for a shared
// mapping. Grounded on catrate.Limiter's categoryData: a small mutable
// struct guarded by its own mutex, loaded/stored through a sync.Map so
// unrelated inodes never contend on a single shared lock.
type sharedChunkEntry struct {
	mu    sync.Mutex
	chunk *SingleVMA
	file  FileRef
	perm  Perm
}

var sharedChunkEntryPool = sync.Pool{New: func() any { return &sharedChunkEntry{} }}

// ShmManager indexes the single SingleVMA chunk currently backing each
// MAP_SHARED inode. Grounded on spec.md §4.5's ShmManager::mmap_shared_chunk
// / munmap_shared_chunk contract.
type ShmManager struct {
	byInode sync.Map // vfs.InodeID -> *sharedChunkEntry
}

func NewShmManager() *ShmManager {
	return &ShmManager{}
}

// MMapSharedChunk resolves a MAP_SHARED request against the existing
// shared-chunk index for opts.File.Inode, returning one of the four
// outcomes spec.md §4.5 names.
func (m *ShmManager) MMapSharedChunk(opts MMapOptions) MMapOutcome {
	if opts.File == nil {
		return MMapOutcome{Kind: OutcomeNeedCreate}
	}

	pooled := sharedChunkEntryPool.Get().(*sharedChunkEntry)
	pooled.mu.Lock()
	value, loaded := m.byInode.LoadOrStore(opts.File.Inode, pooled)
	if loaded {
		pooled.mu.Unlock()
		*pooled = sharedChunkEntry{}
		sharedChunkEntryPool.Put(pooled)
	}
	entry := value.(*sharedChunkEntry)
	if !loaded {
		defer entry.mu.Unlock()
		// freshly stored: no chunk backs this inode yet.
		return MMapOutcome{Kind: OutcomeNeedCreate}
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if entry.chunk == nil {
		return MMapOutcome{Kind: OutcomeNeedCreate}
	}

	existing := entry.chunk.Area()
	requested := VMRange{Start: opts.Hint, Len: opts.Len}

	if existing.Range.Contains(requested) && entry.perm == opts.Perm && entry.file.Offset == opts.File.Offset {
		return MMapOutcome{Kind: OutcomeSuccess, Addr: existing.Range.Start}
	}

	// contiguous growth: new range starts exactly where the existing one
	// ends, with a matching file offset delta and identical perms.
	if entry.perm == opts.Perm && requested.Start == existing.Range.End() {
		wantOffset := entry.file.Offset + int64(existing.Range.Len)
		if opts.File.Offset == wantOffset {
			grown := VMRange{Start: existing.Range.Start, Len: existing.Range.Len + opts.Len}
			return MMapOutcome{Kind: OutcomeNeedExpand, Chunk: entry.chunk, Range: grown}
		}
	}

	// exclusive ownership: only this inode's single holder remains, so the
	// chunk can be torn down and rebuilt for the new request.
	if existing.Access.Kind == AccessShared && len(existing.Access.Pids) <= 1 {
		return MMapOutcome{Kind: OutcomeNeedReplace, Chunk: entry.chunk}
	}

	return MMapOutcome{Kind: OutcomeNeedCreate}
}

// RecordChunk installs chunk as the live shared mapping for inode, called
// after the caller has actually built/grown/replaced it per the outcome
// MMapSharedChunk returned.
func (m *ShmManager) RecordChunk(inode vfs.InodeID, chunk *SingleVMA) {
	pooled := sharedChunkEntryPool.Get().(*sharedChunkEntry)
	pooled.mu.Lock()
	value, loaded := m.byInode.LoadOrStore(inode, pooled)
	entry := value.(*sharedChunkEntry)
	if loaded {
		pooled.mu.Unlock()
		*pooled = sharedChunkEntry{}
		sharedChunkEntryPool.Put(pooled)
		entry.mu.Lock()
	}
	entry.chunk = chunk
	entry.file = *chunk.Area().File
	entry.perm = chunk.Area().Perm
	entry.mu.Unlock()
}

// MUnmapSharedChunk removes pid's hold on inode's shared chunk, reporting
// whether any holders remain.
func (m *ShmManager) MUnmapSharedChunk(inode vfs.InodeID, pid int32, flag UnmapFlag) UnmapOutcome {
	value, ok := m.byInode.Load(inode)
	if !ok {
		return UnmapFreeable
	}
	entry := value.(*sharedChunkEntry)
	entry.mu.Lock()
	defer entry.mu.Unlock()

	if entry.chunk == nil {
		return UnmapFreeable
	}
	area := entry.chunk.Area()

	if flag == UnmapForce {
		others := false
		for p := range area.Access.Pids {
			if p != pid {
				others = true
			}
		}
		if others {
			return UnmapStillInUse
		}
	}

	stillHeld := area.Access.RemovePid(pid)
	if stillHeld {
		return UnmapStillInUse
	}

	m.byInode.Delete(inode)
	return UnmapFreeable
}
