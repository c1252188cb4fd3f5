package runtime

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/enclavekernel/libos/internal/bits"
)

// Priority is a Task's scheduling class.
type Priority int

const (
	Low Priority = iota
	Normal
	High
	numPriorities
)

// DefaultBudget is the fuel a freshly (re-)picked Task is given before it
// must be re-picked a vCPU, per spec.md's "Enqueue" contract.
const DefaultBudget = 32

// Step is one quantum of a Task's execution. It returns done=true once
// the task has nothing left to do; a non-nil error both completes the
// task and is delivered to its JoinHandle.
type Step func(ctx context.Context) (done bool, err error)

// Task is a unit of scheduling: spec.md's tid/affinity/priority/
// budget/epoch/cancellation data model, plus the Step it runs and the
// JoinHandle its spawner observes.
type Task struct {
	ID       bits.ObjectId
	Affinity bits.AtomicBits // one bit per vCPU this task may run on
	Priority Priority
	Blocking bool // true if this task's waits tie up its vCPU (see SpawnOptions.Blocking)

	lastVcpu atomic.Int32 // -1 until first enqueue
	budget   atomic.Int32
	epoch    atomic.Uint64
	canceled atomic.Bool

	step   Step
	sched  func() // optional per-yield callback (drives I/O facility polling)
	handle *JoinHandle
}

// JoinHandle is the await-able result of Spawn.
type JoinHandle struct {
	done chan struct{}
	err  error
	once sync.Once
}

func newJoinHandle() *JoinHandle {
	return &JoinHandle{done: make(chan struct{})}
}

// Done returns a channel that closes once the task has finished, whether
// by completion, error, or cancellation.
func (h *JoinHandle) Done() <-chan struct{} { return h.done }

// Wait blocks until the task finishes (or ctx is done first) and returns
// its terminal error, if any.
func (h *JoinHandle) Wait(ctx context.Context) error {
	select {
	case <-h.done:
		return h.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *JoinHandle) complete(err error) {
	h.once.Do(func() {
		h.err = err
		close(h.done)
	})
}

// Cancel requests cooperative cancellation: the scheduler does not invoke
// the Task's Step again and completes its JoinHandle with context.Canceled
// the next time the Task is dequeued. It does not forcibly interrupt a
// Step already in progress.
func (t *Task) Cancel() {
	t.canceled.Store(true)
}

// Canceled reports whether Cancel has been called.
func (t *Task) Canceled() bool {
	return t.canceled.Load()
}

// SpawnOptions configures Spawn.
type SpawnOptions struct {
	Priority Priority
	Affinity bits.AtomicBits // zero value = all vCPUs
	OnYield  func()          // invoked after each Step that returns done=false

	// Blocking tags this task's re-enqueues as VcpuSelector's
	// blocking-tagged precedence (spread across idle/sleeping vCPUs to
	// give it exclusive use of one) rather than the default
	// non-blocking precedence (prefer the vCPU already running, to
	// respond as quickly as possible). Set this for tasks whose Step
	// spends most quanta parked in a Waiter/Pollee wait.
	Blocking bool
}
