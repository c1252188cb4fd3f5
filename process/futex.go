package process

import (
	"container/list"
	"context"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/enclavekernel/libos/errno"
	"github.com/enclavekernel/libos/waiter"
)

// futexWaiter is one parked WAIT(_BITSET) caller: a waiter.Waiter plus
// the bitset it will only accept a matching WAKE_BITSET/REQUEUE for.
type futexWaiter struct {
	w      *waiter.Waiter
	bitset uint32
}

// futexBucket is the waiter list for one futex address, the same
// FIFO-list-under-one-mutex shape as waiter.Queue, extended with the
// bitset each waiter carries (waiter.Queue itself has no room for that).
type futexBucket struct {
	mu sync.Mutex
	l  list.List // of *futexWaiter
}

// FutexTable maps a futex word's address to its waiter bucket, the
// process-global structure spec.md §4.7 names.
type FutexTable struct {
	mu      sync.Mutex
	buckets map[uintptr]*futexBucket
}

func NewFutexTable() *FutexTable {
	return &FutexTable{buckets: make(map[uintptr]*futexBucket)}
}

func key(addr *uint32) uintptr {
	return uintptr(unsafe.Pointer(addr))
}

func (t *FutexTable) bucketFor(addr *uint32, create bool) *futexBucket {
	k := key(addr)
	t.mu.Lock()
	defer t.mu.Unlock()
	b, ok := t.buckets[k]
	if !ok {
		if !create {
			return nil
		}
		b = &futexBucket{}
		t.buckets[k] = b
	}
	return b
}

func (t *FutexTable) dropBucketIfEmpty(addr *uint32, b *futexBucket) {
	b.mu.Lock()
	empty := b.l.Len() == 0
	b.mu.Unlock()
	if !empty {
		return
	}
	k := key(addr)
	t.mu.Lock()
	if cur, ok := t.buckets[k]; ok && cur == b && b.l.Len() == 0 {
		delete(t.buckets, k)
	}
	t.mu.Unlock()
}

// Wait implements FUTEX_WAIT/FUTEX_WAIT_BITSET: atomically (under the
// bucket lock) checks *addr == val before enqueueing, so a WAKE racing
// between the check and the enqueue is never missed; bitset of
// ^uint32(0) matches FUTEX_WAIT's unconditional-match behaviour.
func (t *FutexTable) Wait(ctx context.Context, addr *uint32, val uint32, bitset uint32) error {
	b := t.bucketFor(addr, true)

	b.mu.Lock()
	if atomic.LoadUint32(addr) != val {
		b.mu.Unlock()
		return errno.EAGAIN
	}
	fw := &futexWaiter{w: waiter.NewWaiter(), bitset: bitset}
	elem := b.l.PushBack(fw)
	b.mu.Unlock()

	select {
	case <-fw.w.Done():
		t.dropBucketIfEmpty(addr, b)
		return nil
	case <-ctx.Done():
		b.mu.Lock()
		b.l.Remove(elem)
		b.mu.Unlock()
		t.dropBucketIfEmpty(addr, b)
		return ctx.Err()
	}
}

// Wake implements FUTEX_WAKE/FUTEX_WAKE_BITSET: pops up to count waiters
// (in FIFO order) whose bitset overlaps the given mask, waking each.
// Returns the number woken.
func (t *FutexTable) Wake(addr *uint32, count int, bitset uint32) int {
	b := t.bucketFor(addr, false)
	if b == nil {
		return 0
	}

	b.mu.Lock()
	var woken []*futexWaiter
	for e := b.l.Front(); e != nil && len(woken) < count; {
		next := e.Next()
		fw := e.Value.(*futexWaiter)
		if fw.bitset&bitset != 0 {
			b.l.Remove(e)
			woken = append(woken, fw)
		}
		e = next
	}
	b.mu.Unlock()

	for _, fw := range woken {
		fw.w.Wake()
	}
	t.dropBucketIfEmpty(addr, b)
	return len(woken)
}

// Requeue implements FUTEX_REQUEUE: wakes up to maxWake matching waiters
// on addr, then moves up to maxRequeue of the remaining matching waiters
// from addr's bucket to addr2's bucket without waking them.
func (t *FutexTable) Requeue(addr, addr2 *uint32, maxWake, maxRequeue int, bitset uint32) (woken int, requeued int) {
	src := t.bucketFor(addr, false)
	if src == nil {
		return 0, 0
	}
	dst := t.bucketFor(addr2, true)

	src.mu.Lock()
	var toWake []*futexWaiter
	var toMove []*futexWaiter
	for e := src.l.Front(); e != nil; {
		next := e.Next()
		fw := e.Value.(*futexWaiter)
		if fw.bitset&bitset == 0 {
			e = next
			continue
		}
		if len(toWake) < maxWake {
			src.l.Remove(e)
			toWake = append(toWake, fw)
		} else if len(toMove) < maxRequeue {
			src.l.Remove(e)
			toMove = append(toMove, fw)
		}
		e = next
	}
	src.mu.Unlock()

	for _, fw := range toWake {
		fw.w.Wake()
	}

	if len(toMove) > 0 {
		dst.mu.Lock()
		for _, fw := range toMove {
			dst.l.PushBack(fw)
		}
		dst.mu.Unlock()
	}

	t.dropBucketIfEmpty(addr, src)
	return len(toWake), len(toMove)
}
