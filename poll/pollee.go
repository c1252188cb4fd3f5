package poll

import (
	"sync"
	"sync/atomic"

	"github.com/enclavekernel/libos/internal/bits"
)

// Pollee holds the current readiness Events for one watched kernel object
// (a socket, pipe, eventfd, io_uring completion queue) plus the set of
// Observers currently interested in it. Multiple independent callers can
// Observe the same Pollee, each with its own interest mask, the
// generalization FastPoller's one-callback-per-fd model does not need but
// spec.md's VFS/socket layers do (a reader and a writer waiting on the
// same file description).
type Pollee struct {
	ID bits.ObjectId

	mu      sync.RWMutex
	events  atomic.Uint32 // current Events bitset
	nextObs atomic.Uint64
	obs     map[uint64]*Observer
}

// NewPollee returns an empty, unready Pollee.
func NewPollee(id bits.ObjectId) *Pollee {
	return &Pollee{ID: id, obs: make(map[uint64]*Observer)}
}

// Current returns the currently-set Events.
func (p *Pollee) Current() Events {
	return Events(p.events.Load())
}

// Observer is a caller's registration of interest in a subset of a
// Pollee's Events. It is edge-triggered: Ready fires once per transition
// into a matching state, and the caller must re-check Pollee.Current and
// call Observe again (or keep its existing Observer registered) to learn
// about the next transition, mirroring epoll's EPOLLET discipline the
// teacher's FastPoller relies on (a version bump invalidates stale
// results rather than delivering level-triggered repeats).
type Observer struct {
	id     uint64
	mask   Events
	ch     chan Events
	pollee *Pollee
}

// Ready returns the channel that receives the matching Events bitset each
// time the Pollee transitions into a state intersecting the Observer's
// mask. Buffered depth 1: a slow consumer sees only the latest readiness,
// never an unbounded backlog.
func (o *Observer) Ready() <-chan Events {
	return o.ch
}

// Cancel removes the Observer from its Pollee. Safe to call more than
// once.
func (o *Observer) Cancel() {
	o.pollee.removeObserver(o.id)
}

// Observe registers a new Observer interested in any bit of mask. If the
// Pollee is already in a matching state, the Observer's channel receives
// that state immediately (level check on registration, edge-triggered
// thereafter), so a caller that races a real event against Observe never
// misses it.
func (p *Pollee) Observe(mask Events) *Observer {
	o := &Observer{
		id:     p.nextObs.Add(1),
		mask:   mask,
		ch:     make(chan Events, 1),
		pollee: p,
	}

	p.mu.Lock()
	p.obs[o.id] = o
	p.mu.Unlock()

	if cur := p.Current(); cur.Any(mask) {
		select {
		case o.ch <- cur:
		default:
		}
	}
	return o
}

func (p *Pollee) removeObserver(id uint64) {
	p.mu.Lock()
	delete(p.obs, id)
	p.mu.Unlock()
}

// notify delivers the current Events to every Observer whose mask
// intersects it. Called with no lock held by the setters below.
func (p *Pollee) notify(cur Events) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, o := range p.obs {
		if cur.Any(o.mask) {
			select {
			case o.ch <- cur:
			default:
				// edge already pending, drop; observer will see cur on next read
				select {
				case <-o.ch:
					o.ch <- cur
				default:
				}
			}
		}
	}
}

// AddEvents sets the given bits and notifies matching Observers of the
// resulting state.
func (p *Pollee) AddEvents(ev Events) {
	for {
		old := p.events.Load()
		nv := old | uint32(ev)
		if nv == old {
			return
		}
		if p.events.CompareAndSwap(old, nv) {
			p.notify(Events(nv))
			return
		}
	}
}

// DelEvents clears the given bits. Does not notify: readiness transitions
// are edge-triggered on the set direction only.
func (p *Pollee) DelEvents(ev Events) {
	for {
		old := p.events.Load()
		nv := old &^ uint32(ev)
		if nv == old {
			return
		}
		if p.events.CompareAndSwap(old, nv) {
			return
		}
	}
}

// ResetEvents replaces the whole bitset, notifying Observers of any newly
// set bit.
func (p *Pollee) ResetEvents(ev Events) {
	old := p.events.Swap(uint32(ev))
	if added := ev &^ Events(old); added != 0 {
		p.notify(ev)
	}
}
