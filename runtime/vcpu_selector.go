package runtime

import (
	"sync/atomic"

	"github.com/enclavekernel/libos/internal/bits"
)

// VcpuSelector tracks which vCPUs are idle, sleeping (parked in PollIO),
// or heavily loaded, and picks a placement for a Task per spec.md's
// precedence rules.
type VcpuSelector struct {
	n        uint // vCPU count
	idle     bits.AtomicBits
	sleeping bits.AtomicBits
	heavy    bits.AtomicBits
	rrNext   atomic.Uint64 // round-robin cursor for "first enqueue ever"
}

// NewVcpuSelector returns a selector over n vCPUs, all initially idle.
func NewVcpuSelector(n uint) *VcpuSelector {
	s := &VcpuSelector{n: n}
	for i := uint(0); i < n; i++ {
		s.idle.Set(i)
	}
	return s
}

// MarkIdle/MarkBusy/MarkSleeping/MarkAwake/MarkHeavy/MarkNormal update a
// vCPU's membership in the tracked bitmaps.
func (s *VcpuSelector) MarkIdle(v uint)     { s.idle.Set(v) }
func (s *VcpuSelector) MarkBusy(v uint)     { s.idle.Clear(v) }
func (s *VcpuSelector) MarkSleeping(v uint) { s.sleeping.Set(v) }
func (s *VcpuSelector) MarkAwake(v uint)    { s.sleeping.Clear(v) }
func (s *VcpuSelector) MarkHeavy(v uint)    { s.heavy.Set(v) }
func (s *VcpuSelector) MarkNormal(v uint)   { s.heavy.Clear(v) }

// PickFirst selects a vCPU for a task that has never been enqueued
// before: round-robin over its affinity mask.
func (s *VcpuSelector) PickFirst(affinity *bits.AtomicBits) uint {
	start := uint(s.rrNext.Add(1)-1) % s.n
	if v, ok := affinity.FirstSetFrom(start, s.n); ok {
		return v
	}
	return start % s.n
}

// PickBlocking selects a vCPU for a task that yielded/blocked on its last
// vCPU (lastVcpu), per spec.md's precedence: last vCPU if idle → any idle
// in affinity → last vCPU if sleeping → any sleeping in affinity → last
// vCPU.
func (s *VcpuSelector) PickBlocking(lastVcpu uint, affinity *bits.AtomicBits) uint {
	if s.idle.Test(lastVcpu) {
		return lastVcpu
	}
	if v, ok := s.idleInAffinity(affinity); ok {
		return v
	}
	if s.sleeping.Test(lastVcpu) {
		return lastVcpu
	}
	if v, ok := s.sleepingInAffinity(affinity); ok {
		return v
	}
	return lastVcpu
}

func (s *VcpuSelector) idleInAffinity(affinity *bits.AtomicBits) (uint, bool) {
	for i := uint(0); i < s.n; i++ {
		if affinity.Test(i) && s.idle.Test(i) {
			return i, true
		}
	}
	return 0, false
}

func (s *VcpuSelector) sleepingInAffinity(affinity *bits.AtomicBits) (uint, bool) {
	for i := uint(0); i < s.n; i++ {
		if affinity.Test(i) && s.sleeping.Test(i) {
			return i, true
		}
	}
	return 0, false
}

func (s *VcpuSelector) activeNotHeavyInAffinity(affinity *bits.AtomicBits) (uint, bool) {
	for i := uint(0); i < s.n; i++ {
		if affinity.Test(i) && !s.sleeping.Test(i) && !s.heavy.Test(i) {
			return i, true
		}
	}
	return 0, false
}

// PickNonBlocking selects a vCPU for a task that yielded without blocking
// (it still has work and wants to respond quickly), per spec.md's
// precedence: last vCPU if idle → this vCPU if idle → any idle in
// affinity → last vCPU if active → any active-and-not-heavy in affinity
// → wake a sleeper (preferring last, then any sleeping in affinity) →
// last vCPU. hasThisVcpu is false when the caller (e.g. a waker running
// on a goroutine that isn't itself a vCPU worker) has no "this vCPU" to
// offer.
func (s *VcpuSelector) PickNonBlocking(lastVcpu uint, thisVcpu uint, hasThisVcpu bool, affinity *bits.AtomicBits) uint {
	if s.idle.Test(lastVcpu) {
		return lastVcpu
	}
	if hasThisVcpu && s.idle.Test(thisVcpu) {
		return thisVcpu
	}
	if v, ok := s.idleInAffinity(affinity); ok {
		return v
	}

	if !s.sleeping.Test(lastVcpu) {
		return lastVcpu
	}
	if v, ok := s.activeNotHeavyInAffinity(affinity); ok {
		return v
	}

	if s.sleeping.Test(lastVcpu) {
		return lastVcpu
	}
	if v, ok := s.sleepingInAffinity(affinity); ok {
		return v
	}

	return lastVcpu
}

// LeastLoaded returns the index with the fewest Len() among lens,
// tie-breaking toward preferring to keep lastVcpu if it is within 2 of
// the minimum, per spec.md's worker-selection tie-break.
func LeastLoaded(lens []int, lastVcpu uint) uint {
	min := lens[0]
	minIdx := uint(0)
	for i, l := range lens {
		if l < min {
			min = l
			minIdx = uint(i)
		}
	}
	if int(lastVcpu) < len(lens) && lens[lastVcpu]-min <= 2 {
		return lastVcpu
	}
	return minIdx
}
