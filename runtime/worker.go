package runtime

import (
	"sync"
	"sync/atomic"

	"github.com/enclavekernel/libos/internal/bits"
)

// MaxQueuedTasks is the fixed capacity of each per-priority ring in a
// Worker, spec.md's MAX_QUEUED_TASKS. Must be a power of two
// (internal/bits.Ring's requirement).
const MaxQueuedTasks = 1024

// RebalanceTarget is 0.8 x MaxQueuedTasks, the average queue length the
// scheduler's rebalance pass balances workers toward.
const RebalanceTarget = MaxQueuedTasks * 8 / 10

// WorkerState mirrors eventloop/state.go's FastState shape, generalized
// to a vCPU's run/sleep/stop lifecycle instead of a single global loop's.
type WorkerState uint32

const (
	WorkerAwake WorkerState = iota
	WorkerRunning
	WorkerSleeping
	WorkerStopping
	WorkerStopped
)

// Worker is one vCPU's run queues: three priority rings plus the mutex
// that guards them (ChunkedIngress's own finding: a mutex beats
// lock-free here under realistic contention).
type Worker struct {
	Index uint

	mu       sync.Mutex
	rings    [numPriorities]*bits.Ring[*Task]
	selector *VcpuSelector // reports this vCPU's idle/sleeping/heavy state

	state   atomic.Uint32
	wake    chan struct{}
	dequeue atomic.Uint64 // total dequeues, drives the rebalance cadence
}

// NewWorker returns an empty Worker for the given vCPU index, reporting
// its idle/sleeping/heavy transitions to selector.
func NewWorker(index uint, selector *VcpuSelector) *Worker {
	w := &Worker{Index: index, wake: make(chan struct{}, 1), selector: selector}
	for p := range w.rings {
		w.rings[p] = bits.NewRing[*Task](MaxQueuedTasks)
	}
	w.state.Store(uint32(WorkerAwake))
	return w
}

// lenLocked sums the priority rings' lengths; caller must hold w.mu.
func (w *Worker) lenLocked() int {
	n := 0
	for _, r := range w.rings {
		n += r.Len()
	}
	return n
}

// reportLoad marks this vCPU heavy once its total queue length passes
// RebalanceTarget, the same threshold Rebalance already treats as
// "overloaded" -- letting VcpuSelector's non-blocking precedence skip a
// heavy vCPU in favor of a lighter one.
func (w *Worker) reportLoad(n int) {
	if w.selector == nil {
		return
	}
	if n > RebalanceTarget {
		w.selector.MarkHeavy(w.Index)
	} else {
		w.selector.MarkNormal(w.Index)
	}
}

// Len returns the total queued task count across all priorities.
func (w *Worker) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lenLocked()
}

// push enqueues a task at its priority, returning false if that ring is
// full (caller should fall back to the global Injector).
func (w *Worker) push(t *Task) bool {
	w.mu.Lock()
	ok := w.rings[t.Priority].PushBack(t)
	n := w.lenLocked()
	w.mu.Unlock()
	if ok {
		w.Unpark()
		w.reportLoad(n)
	}
	return ok
}

// pop dequeues the highest-priority available task, scanning High before
// Normal before Low.
func (w *Worker) pop() (*Task, bool) {
	w.mu.Lock()
	for p := numPriorities - 1; p >= 0; p-- {
		if t, ok := w.rings[p].PopFront(); ok {
			w.dequeue.Add(1)
			n := w.lenLocked()
			w.mu.Unlock()
			w.reportLoad(n)
			return t, true
		}
	}
	w.mu.Unlock()
	return nil, false
}

// Unpark wakes a Worker blocked in Run's idle wait.
func (w *Worker) Unpark() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// Stop requests the Worker's Run loop to exit after its current task.
func (w *Worker) Stop() {
	w.state.Store(uint32(WorkerStopping))
	w.Unpark()
}

// Run executes tasks until Stop is called. pick is called by the caller
// (the owning PriorityScheduler) whenever this worker's queues are
// empty, to optionally pull work from the global Injector; it returns
// false if there was nothing to steal.
func (w *Worker) Run(pick func() (*Task, bool), execute func(t *Task, vcpu uint)) {
	for {
		if WorkerState(w.state.Load()) == WorkerStopping {
			w.state.Store(uint32(WorkerStopped))
			return
		}

		t, ok := w.pop()
		if !ok {
			t, ok = pick()
		}
		if !ok {
			if !w.state.CompareAndSwap(uint32(WorkerAwake), uint32(WorkerSleeping)) {
				continue
			}
			if w.selector != nil {
				w.selector.MarkIdle(w.Index)
				w.selector.MarkSleeping(w.Index)
			}
			<-w.wake
			if w.selector != nil {
				w.selector.MarkAwake(w.Index)
			}
			w.state.CompareAndSwap(uint32(WorkerSleeping), uint32(WorkerAwake))
			continue
		}

		if w.selector != nil {
			w.selector.MarkBusy(w.Index)
		}
		w.state.CompareAndSwap(uint32(WorkerAwake), uint32(WorkerRunning))
		execute(t, w.Index)
		w.state.CompareAndSwap(uint32(WorkerRunning), uint32(WorkerAwake))
		if w.selector != nil {
			w.selector.MarkIdle(w.Index)
		}
	}
}
