package process

import (
	"context"
	"sync"

	"github.com/enclavekernel/libos/errno"
	"github.com/enclavekernel/libos/waiter"
)

// idAllocator hands out monotonically increasing int32 ids and keeps a
// map back to the owning Thread, the same "nextID counter plus map"
// shape as eventloop/registry.go's promise registry.
type idAllocator struct {
	mu     sync.Mutex
	nextID int32
	data   map[int32]*Thread
}

func newIDAllocator() *idAllocator {
	return &idAllocator{nextID: 1, data: make(map[int32]*Thread)}
}

func (a *idAllocator) alloc(t *Thread) int32 {
	a.mu.Lock()
	defer a.mu.Unlock()
	id := a.nextID
	a.nextID++
	a.data[id] = t
	return id
}

func (a *idAllocator) lookup(id int32) (*Thread, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	t, ok := a.data[id]
	return t, ok
}

func (a *idAllocator) remove(id int32) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.data, id)
}

// ExitStatus is a decoded wait4 result.
type ExitStatus struct {
	Code     int32
	Signaled bool
	Signal   int32
}

// zombieChild is a terminated child retained until its parent reaps it
// via Wait4.
type zombieChild struct {
	pid    int32
	pgid   int32
	status ExitStatus
}

// Process owns pid, parent/children linkage, its threads, process group
// id, and the exit_waiters queue wait4 suspends on, per spec.md §4.7.
type Process struct {
	Pid    int32
	Parent *Process

	mu       sync.Mutex
	pgid     int32
	children map[int32]*Process
	zombies  []zombieChild
	threads  *idAllocator
	mainTid  int32
	exited   bool
	status   ExitStatus

	exitWaiters *waiter.Queue
	futex       *FutexTable
}

var pidAllocator = newProcessIDAllocator()

type processIDAllocator struct {
	mu     sync.Mutex
	nextID int32
}

func newProcessIDAllocator() *processIDAllocator {
	return &processIDAllocator{nextID: 1}
}

func (a *processIDAllocator) alloc() int32 {
	a.mu.Lock()
	defer a.mu.Unlock()
	id := a.nextID
	a.nextID++
	return id
}

// NewProcess creates a process with one initial (main) thread, parented
// under parent (nil for an init-like root process). The main thread's tid
// equals the process's pid, matching Linux's tgid convention.
func NewProcess(parent *Process) *Process {
	pid := pidAllocator.alloc()
	p := &Process{
		Pid:         pid,
		Parent:      parent,
		pgid:        pid,
		children:    make(map[int32]*Process),
		threads:     newIDAllocator(),
		exitWaiters: waiter.NewQueue(),
		futex:       NewFutexTable(),
	}
	main := &Thread{Tid: pid, Proc: p}
	p.threads.data[pid] = main
	p.threads.nextID = pid + 1
	p.mainTid = pid
	if parent != nil {
		parent.mu.Lock()
		parent.children[pid] = p
		parent.mu.Unlock()
	}
	return p
}

// MainThread returns the process's initial thread.
func (p *Process) MainThread() *Thread {
	t, _ := p.threads.lookup(p.mainTid)
	return t
}

// Futex returns the process-global futex table threads in this process
// share.
func (p *Process) Futex() *FutexTable {
	return p.futex
}

// Pgid returns the process's process group id.
func (p *Process) Pgid() int32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pgid
}

// SetPgid changes the process's process group id.
func (p *Process) SetPgid(pgid int32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pgid = pgid
}

// CloneRequest bundles clone(2)'s arguments in Go-idiomatic form: Entry
// replaces the caller-convention "read entry point from *stack" with a
// function the new thread goroutine runs.
type CloneRequest struct {
	Flags         CloneFlags
	Entry         func(t *Thread)
	ChildSetTID   *uint32 // written with the new tid if CLONE_CHILD_SETTID is set
	ChildClearTID *uint32 // cleared + futex-woken on thread exit if CLONE_CHILD_CLEARTID is set
	ParentSetTID  *uint32 // written with the new tid in the caller's context if CLONE_PARENT_SETTID is set
}

// Clone implements spec.md §4.7's restricted clone: the mandatory flag
// set (CLONE_VM|THREAD|SIGHAND|FILES|FS|SETTLS|SYSVSEM) must all be
// present, any of CLONE_VFORK/NEW*/PIDFD/PTRACE/UNTRACED is rejected with
// EINVAL, and CLONE_DETACHED/IO/PARENT are silently ignored.
func (p *Process) Clone(req CloneRequest) (*Thread, error) {
	if !validateCloneFlags(req.Flags) {
		return nil, errno.EINVAL
	}

	t := &Thread{Proc: p}
	if req.Flags&CLONE_CHILD_CLEARTID != 0 {
		t.clearChildTid = req.ChildClearTID
	}
	tid := p.threads.alloc(t)
	t.Tid = tid

	if req.Flags&CLONE_CHILD_SETTID != 0 && req.ChildSetTID != nil {
		*req.ChildSetTID = uint32(tid)
	}
	if req.Flags&CLONE_PARENT_SETTID != 0 && req.ParentSetTID != nil {
		*req.ParentSetTID = uint32(tid)
	}

	if req.Entry != nil {
		go func() {
			req.Entry(t)
			p.threadExit(t)
		}()
	}
	return t, nil
}

// threadExit clears clear_child_tid and futex-wakes it, per
// CLONE_CHILD_CLEARTID semantics, then removes the thread from the
// process's thread table.
func (p *Process) threadExit(t *Thread) {
	if ctid := t.exit(); ctid != nil {
		p.futex.Wake(ctid, 1, ^uint32(0))
	}
	p.threads.remove(t.Tid)
}

// Exit terminates the process: records status, moves it from its
// parent's live children to zombies, and wakes the parent's wait4
// callers.
func (p *Process) Exit(status ExitStatus) {
	p.mu.Lock()
	if p.exited {
		p.mu.Unlock()
		return
	}
	p.exited = true
	p.status = status
	pgid := p.pgid
	p.mu.Unlock()

	if p.Parent == nil {
		return
	}
	parent := p.Parent
	parent.mu.Lock()
	delete(parent.children, p.Pid)
	parent.zombies = append(parent.zombies, zombieChild{pid: p.Pid, pgid: pgid, status: status})
	parent.mu.Unlock()
	parent.exitWaiters.WakeAll()
}

// WaitFilter selects which children Wait4 is willing to reap.
type WaitFilter int

const (
	AnyPid WaitFilter = iota
	WithPid
	WithPgid
)

// Wait4 filters zombie children by filter/target, suspending the caller
// on exit_waiters until a matching zombie appears, then reaps exactly
// one, per spec.md §4.7.
func (p *Process) Wait4(ctx context.Context, filter WaitFilter, target int32) (int32, ExitStatus, error) {
	type result struct {
		pid    int32
		status ExitStatus
	}
	r, err := waiter.Retry(ctx, p.exitWaiters, func() (result, bool) {
		p.mu.Lock()
		defer p.mu.Unlock()
		for i, z := range p.zombies {
			if !matchesFilter(filter, target, z) {
				continue
			}
			p.zombies = append(p.zombies[:i], p.zombies[i+1:]...)
			return result{pid: z.pid, status: z.status}, true
		}
		return result{}, false
	})
	if err != nil {
		return 0, ExitStatus{}, err
	}
	return r.pid, r.status, nil
}

func matchesFilter(filter WaitFilter, target int32, z zombieChild) bool {
	switch filter {
	case WithPid:
		return z.pid == target
	case WithPgid:
		return z.pgid == target
	default:
		return true
	}
}
