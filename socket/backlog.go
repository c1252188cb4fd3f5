package socket

import (
	"sync"

	"github.com/enclavekernel/libos/internal/bits"
	"github.com/enclavekernel/libos/poll"
)

type entryState int32

const (
	entryFree entryState = iota
	entryPending
	entryCompleted
)

// Backlog is a fixed-capacity ring of accept slots, each Free, Pending
// (an accept submitted to the I/O facility), or Completed (holding a new
// host fd awaiting TryAccept). Invariant: #Free + #Pending + #Completed
// == capacity always.
type Backlog struct {
	listener *Common

	mu         sync.Mutex
	states     []entryState
	fds        []int32
	completedQ *bits.Ring[int]
}

// NewBacklog allocates a Backlog of the given capacity and pre-submits an
// accept for every slot.
func NewBacklog(listener *Common, capacity int) *Backlog {
	b := &Backlog{
		listener:   listener,
		states:     make([]entryState, capacity),
		fds:        make([]int32, capacity),
		completedQ: bits.NewRing[int](nextPow2(capacity)),
	}
	for i := range b.states {
		b.submitAcceptLocked(i)
	}
	return b
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	if p < 1 {
		p = 1
	}
	return p
}

func (b *Backlog) submitAcceptLocked(i int) {
	b.states[i] = entryPending
	b.listener.Provider.SubmitAccept(int(b.listener.FD()), func(newfd int32, err error) {
		b.onAccept(i, newfd, err)
	})
}

func (b *Backlog) onAccept(i int, newfd int32, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err != nil {
		// Not fatal for the listener: return the slot to Free and do not
		// resubmit it, so a persistent accept error cannot spin the I/O
		// facility. TryAccept refills only the slots it pops, so this
		// slot is not submitted again.
		b.states[i] = entryFree
		return
	}

	b.fds[i] = newfd
	b.states[i] = entryCompleted
	if !b.completedQ.PushBack(i) {
		// Grown past the ring's power-of-two headroom; should not
		// happen since capacity <= len(states) <= ring capacity.
		panic("socket: backlog: completed queue overflow")
	}
	b.listener.Pollee.AddEvents(poll.In)
}

// TryAccept pops one completed entry, returning its new host fd, then
// eagerly refills the slot with a fresh accept submission.
func (b *Backlog) TryAccept() (int32, bool) {
	b.mu.Lock()
	idx, ok := b.completedQ.PopFront()
	if !ok {
		b.mu.Unlock()
		return 0, false
	}
	fd := b.fds[idx]
	b.states[idx] = entryFree
	b.submitAcceptLocked(idx)
	b.mu.Unlock()
	return fd, true
}

// Len reports how many completed entries are waiting for TryAccept.
func (b *Backlog) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.completedQ.Len()
}

// Resize grows the backlog to newCapacity, pre-submitting accepts for the
// new slots. Shrinking is not supported (returns false).
func (b *Backlog) Resize(newCapacity int) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if newCapacity <= len(b.states) {
		return newCapacity == len(b.states)
	}
	if newCapacity > b.completedQ.Cap() {
		grown := bits.NewRing[int](nextPow2(newCapacity))
		for {
			idx, ok := b.completedQ.PopFront()
			if !ok {
				break
			}
			grown.PushBack(idx)
		}
		b.completedQ = grown
	}

	old := len(b.states)
	states := make([]entryState, newCapacity)
	fds := make([]int32, newCapacity)
	copy(states, b.states)
	copy(fds, b.fds)
	b.states, b.fds = states, fds

	for i := old; i < newCapacity; i++ {
		b.submitAcceptLocked(i)
	}
	return true
}
