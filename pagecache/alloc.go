package pagecache

import (
	"sync"

	"github.com/enclavekernel/libos/poll"
)

// Alloc is the user-supplied allocator contract: alloc/free a page buffer,
// plus a readiness Pollee that raises Events.Out when space frees up (the
// same signal the cache itself raises on eviction, per spec.md's PageAlloc
// contract). Fixed-size pools are the norm; FixedPool below is one.
type Alloc interface {
	AllocPage() (*[PageSize]byte, bool)
	FreePage(*[PageSize]byte)
	Pollee() *poll.Pollee
}

// FixedPool is an Alloc bounded to a fixed number of pages, backed by
// sync.Pool for the buffers themselves (reuse across cache churn) and a
// semaphore channel for the capacity bound, the same shape as
// ioring's worker pool capping concurrent blocking syscalls.
type FixedPool struct {
	sem    chan struct{}
	pool   sync.Pool
	pollee *poll.Pollee
}

// NewFixedPool returns an Alloc that can have at most capacity pages
// checked out at once.
func NewFixedPool(capacity int, id uint64) *FixedPool {
	p := &FixedPool{
		sem:    make(chan struct{}, capacity),
		pollee: poll.NewPollee(0),
	}
	p.pool.New = func() any { return new([PageSize]byte) }
	return p
}

// AllocPage reports false if the pool is at capacity.
func (p *FixedPool) AllocPage() (*[PageSize]byte, bool) {
	select {
	case p.sem <- struct{}{}:
		return p.pool.Get().(*[PageSize]byte), true
	default:
		return nil, false
	}
}

// FreePage returns a buffer to the pool and frees a capacity slot, raising
// Events.Out so anything blocked on allocation wakes up.
func (p *FixedPool) FreePage(buf *[PageSize]byte) {
	*buf = [PageSize]byte{}
	p.pool.Put(buf)
	<-p.sem
	p.pollee.AddEvents(poll.Out)
	p.pollee.DelEvents(poll.Out)
}

// Pollee implements Alloc.
func (p *FixedPool) Pollee() *poll.Pollee {
	return p.pollee
}
