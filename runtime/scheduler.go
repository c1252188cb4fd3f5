package runtime

import (
	"context"
	stdruntime "runtime"
	"sync"
	"sync/atomic"

	"github.com/enclavekernel/libos/internal/bits"
	"github.com/enclavekernel/libos/klog"
	"go.uber.org/automaxprocs/maxprocs"
)

// VcpuCount returns the number of vCPU workers to run: GOMAXPROCS, after
// letting go.uber.org/automaxprocs adjust it to the container's CPU
// quota (the teacher's eventloop always assumes one loop per process;
// SPEC_FULL.md's multi-vCPU scheduler needs the container-aware value
// instead of the raw host core count).
func VcpuCount() int {
	undo, err := maxprocs.Set(maxprocs.Logger(func(string, ...any) {}))
	if err == nil {
		defer undo()
	}
	n := stdruntime.GOMAXPROCS(0)
	if n < 1 {
		n = 1
	}
	return n
}

// PriorityScheduler is the top-level scheduler: one Worker per vCPU, a
// global Injector for overflow, a VcpuSelector for placement, and a
// sliding epoch counter that drives rebalance, per spec.md's
// PriorityScheduler.
type PriorityScheduler struct {
	workers  []*Worker
	selector *VcpuSelector
	ids      *bits.IdAllocator

	injMu    sync.Mutex
	injector *bits.ChunkedQueue[*Task]

	totalDequeues atomic.Int64
	wg            sync.WaitGroup
}

// NewPriorityScheduler creates a scheduler with n vCPU workers.
func NewPriorityScheduler(n int) *PriorityScheduler {
	if n < 1 {
		n = 1
	}
	selector := NewVcpuSelector(uint(n))
	s := &PriorityScheduler{
		workers:  make([]*Worker, n),
		selector: selector,
		ids:      bits.NewIdAllocator(),
		injector: bits.NewChunkedQueue[*Task](),
	}
	for i := range s.workers {
		s.workers[i] = NewWorker(uint(i), selector)
	}
	return s
}

// Start launches each Worker's Run loop on its own goroutine (the vCPU's
// OS thread, parked by the Go runtime's own scheduler under GOMAXPROCS).
func (s *PriorityScheduler) Start() {
	for _, w := range s.workers {
		w := w
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			w.Run(s.stealFromInjector, s.execute)
		}()
	}
}

// Stop signals every Worker to exit after its current task, and waits for
// them; tasks still queued are not run.
func (s *PriorityScheduler) Stop() {
	for _, w := range s.workers {
		w.Stop()
	}
	s.wg.Wait()
}

// Spawn creates a Task running step and places it on a vCPU per the
// "first enqueue ever" precedence, returning its JoinHandle.
func (s *PriorityScheduler) Spawn(step Step, opts SpawnOptions) *JoinHandle {
	t := &Task{
		ID:       s.ids.Next(),
		Priority: opts.Priority,
		Affinity: opts.Affinity,
		Blocking: opts.Blocking,
		step:     step,
		sched:    opts.OnYield,
		handle:   newJoinHandle(),
	}
	t.budget.Store(DefaultBudget)
	t.lastVcpu.Store(-1)
	if t.Affinity.Load() == 0 {
		for i := uint(0); i < uint(len(s.workers)); i++ {
			t.Affinity.Set(i)
		}
	}

	v := s.selector.PickFirst(&t.Affinity)
	t.lastVcpu.Store(int32(v))
	s.place(v, t)
	return t.handle
}

// Enqueue re-submits a task that yielded (done=false) per spec.md's
// Enqueue contract: reuse the last vCPU while budget remains and
// affinity still includes it; otherwise re-pick via the VcpuSelector and
// reset budget. Has no "this vCPU" to offer the non-blocking precedence
// chain -- callers re-enqueuing from a vCPU's own worker loop should use
// enqueueFrom instead.
func (s *PriorityScheduler) Enqueue(t *Task) {
	s.enqueueFrom(t, 0, false)
}

func (s *PriorityScheduler) enqueueFrom(t *Task, thisVcpu uint, hasThisVcpu bool) {
	last := uint(t.lastVcpu.Load())
	if t.budget.Load() > 0 && t.Affinity.Test(last) {
		t.budget.Add(-1)
		s.place(last, t)
		return
	}

	var v uint
	if t.Blocking {
		v = s.selector.PickBlocking(last, &t.Affinity)
	} else {
		v = s.selector.PickNonBlocking(last, thisVcpu, hasThisVcpu, &t.Affinity)
	}
	t.budget.Store(DefaultBudget)
	t.lastVcpu.Store(int32(v))
	s.place(v, t)
}

// place pushes t onto vCPU v's worker, falling back to the global
// Injector if that worker's ring at t's priority is full.
func (s *PriorityScheduler) place(v uint, t *Task) {
	if int(v) < len(s.workers) && s.workers[v].push(t) {
		return
	}
	s.injMu.Lock()
	s.injector.Push(t)
	s.injMu.Unlock()
}

// stealFromInjector is the pick callback given to every Worker: pull one
// task from the global Injector when the local rings are empty.
func (s *PriorityScheduler) stealFromInjector() (*Task, bool) {
	s.injMu.Lock()
	defer s.injMu.Unlock()
	return s.injector.Pop()
}

// execute runs one Step of t on vcpu, handling completion, error,
// cancellation, rebalance bookkeeping, and re-enqueue.
func (s *PriorityScheduler) execute(t *Task, vcpu uint) {
	ctx := context.Background()
	if t.Canceled() {
		t.handle.complete(context.Canceled)
		return
	}

	done, err := t.step(ctx)

	n := s.totalDequeues.Add(1)
	if n%int64(128*len(s.workers)) == 0 {
		s.Rebalance()
	}

	if done || err != nil {
		t.handle.complete(err)
		return
	}
	if t.sched != nil {
		t.sched()
	}
	s.enqueueFrom(t, vcpu, true)
}

// Rebalance implements spec.md's try_rebalance_workload: first drains the
// Injector onto the least-loaded worker, then balances worker queues
// toward the average, bounded by RebalanceTarget. If the Injector's lock is
// held elsewhere it returns without rebalancing.
func (s *PriorityScheduler) Rebalance() {
	if !s.injMu.TryLock() {
		return
	}
	klog.For(klog.Runtime).Debug().Log("rebalance")

	lens := make([]int, len(s.workers))
	for i, w := range s.workers {
		lens[i] = w.Len()
	}

	for s.injector.Len() > 0 {
		t, ok := s.injector.Pop()
		if !ok {
			break
		}
		target := LeastLoaded(lens, uint(t.lastVcpu.Load()))
		s.workers[target].push(t)
		lens[target]++
	}
	s.injMu.Unlock()

	total := 0
	for _, l := range lens {
		total += l
	}
	avg := total / len(lens)
	if avg > RebalanceTarget {
		avg = RebalanceTarget
	}

	for i, w := range s.workers {
		for lens[i] > avg+1 {
			t, ok := w.pop()
			if !ok {
				break
			}
			target := LeastLoaded(lens, uint(i))
			if target == uint(i) {
				w.push(t)
				break
			}
			s.workers[target].push(t)
			lens[i]--
			lens[target]++
		}
	}
}
