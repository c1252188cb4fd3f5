package vm

import (
	"context"
	"sort"

	"github.com/enclavekernel/libos/klog"
	"github.com/enclavekernel/libos/waiter"
)

// LockType is a POSIX file range lock's type.
type LockType int

const (
	LockRead LockType = iota
	LockWrite
)

func (t LockType) conflictsWith(o LockType) bool {
	return t == LockWrite || o == LockWrite
}

// FileLock is one entry in a RangeLockList.
type FileLock struct {
	Owner int64 // pid or file-description id
	Start int64
	End   int64 // exclusive
	Type  LockType
}

func (l FileLock) overlaps(o FileLock) bool {
	return l.Start < o.End && o.Start < l.End
}

func (l FileLock) touches(o FileLock) bool {
	return l.Start <= o.End && o.Start <= l.End
}

// less orders locks by (owner, start), the sort RangeLockList maintains.
func less(a, b FileLock) bool {
	if a.Owner != b.Owner {
		return a.Owner < b.Owner
	}
	return a.Start < b.Start
}

// RangeLockList is an ordered deque of POSIX file range locks sorted by
// (owner, start). Adjacent locks of the same owner and type merge;
// overlapping locks of different type from the same owner split/replace.
// New code: the teacher has no equivalent structure, but conflicting-lock
// blocking reuses /waiter the same way pagecache's Flusher parks on a
// waiter.Queue.
type RangeLockList struct {
	locks []FileLock
	q     *waiter.Queue
}

func NewRangeLockList() *RangeLockList {
	return &RangeLockList{q: waiter.NewQueue()}
}

// TestLock reports the first lock (if any) that would block req, without
// modifying the list.
func (l *RangeLockList) TestLock(req FileLock) (FileLock, bool) {
	for _, existing := range l.locks {
		if existing.Owner == req.Owner {
			continue
		}
		if existing.overlaps(req) && existing.Type.conflictsWith(req.Type) {
			return existing, true
		}
	}
	return FileLock{}, false
}

func (l *RangeLockList) conflict(req FileLock) bool {
	_, blocked := l.TestLock(req)
	return blocked
}

// SetLock installs req, blocking the caller on a waiter enqueued against
// this list's conflict state until no other owner's lock conflicts, the
// context is done, or it is unblockable. Deadlock detection is not
// implemented: a warning is logged, matching spec.md §4.5.
func (l *RangeLockList) SetLock(ctx context.Context, req FileLock) error {
	if l.conflict(req) {
		klog.For(klog.VM).Warn().Int64("owner", req.Owner).Log("range lock blocked; deadlock detection not implemented")
	}
	_, err := waiter.Retry(ctx, l.q, func() (struct{}, bool) {
		if l.conflict(req) {
			return struct{}{}, false
		}
		l.insert(req)
		return struct{}{}, true
	})
	return err
}

// Unlock removes/splits/coalesces locks of req.Owner within
// [req.Start, req.End), per POSIX fcntl(F_UNLCK) semantics, then wakes
// every waiter so blocked SetLock callers can recheck.
func (l *RangeLockList) Unlock(req FileLock) {
	var out []FileLock
	for _, existing := range l.locks {
		if existing.Owner != req.Owner || !existing.overlaps(req) {
			out = append(out, existing)
			continue
		}
		if existing.Start < req.Start {
			out = append(out, FileLock{Owner: existing.Owner, Start: existing.Start, End: req.Start, Type: existing.Type})
		}
		if req.End < existing.End {
			out = append(out, FileLock{Owner: existing.Owner, Start: req.End, End: existing.End, Type: existing.Type})
		}
	}
	l.locks = out
	sort.Slice(l.locks, func(i, j int) bool { return less(l.locks[i], l.locks[j]) })
	l.q.WakeAll()
}

// insert adds req to the list, replacing/splitting any of the owner's
// existing locks it overlaps and merging with adjacent same-type locks of
// the same owner, then re-sorts the list by start offset. The invariant is
// not re-checked afterwards.
func (l *RangeLockList) insert(req FileLock) {
	var out []FileLock
	merged := req
	for _, existing := range l.locks {
		if existing.Owner != req.Owner {
			out = append(out, existing)
			continue
		}
		if !existing.overlaps(merged) && !(existing.touches(merged) && existing.Type == merged.Type) {
			out = append(out, existing)
			continue
		}
		if existing.Type == merged.Type {
			if existing.Start < merged.Start {
				merged.Start = existing.Start
			}
			if existing.End > merged.End {
				merged.End = existing.End
			}
			continue
		}
		// different type, same owner, overlapping: the new lock replaces
		// the overlapped portion; keep the non-overlapping remainder.
		if existing.Start < merged.Start {
			out = append(out, FileLock{Owner: existing.Owner, Start: existing.Start, End: merged.Start, Type: existing.Type})
		}
		if merged.End < existing.End {
			out = append(out, FileLock{Owner: existing.Owner, Start: merged.End, End: existing.End, Type: existing.Type})
		}
	}
	out = append(out, merged)
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	l.locks = out
}

// Locks returns a copy of the current lock list, for tests and
// diagnostics.
func (l *RangeLockList) Locks() []FileLock {
	out := make([]FileLock, len(l.locks))
	copy(out, l.locks)
	return out
}
