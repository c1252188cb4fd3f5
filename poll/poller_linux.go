//go:build linux

package poll

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/enclavekernel/libos/internal/bits"
	"golang.org/x/sys/unix"
)

// Errors returned by Poller.
var (
	ErrFDAlreadyRegistered = errors.New("poll: fd already registered")
	ErrFDNotRegistered     = errors.New("poll: fd not registered")
	ErrClosed              = errors.New("poll: closed")
)

// Poller multiplexes many host file descriptors onto one epoll instance,
// producing a Pollee per registered fd. Grounded directly on
// eventloop/poller_linux.go's FastPoller: an epoll fd, an atomic version
// counter bumped on every registration change and checked after
// EpollWait to discard results raced against a concurrent Unregister,
// and one fixed-size event buffer reused across polls.
//
// Deliberate deviation from FastPoller: entries are kept in a
// map[int]*Pollee behind an RWMutex rather than a fixed [65536]fdInfo
// array, since SPEC_FULL.md runs one Poller per vCPU (runtime.Worker) and
// a 65536-entry array per vCPU would waste memory that scales with
// GOMAXPROCS for no benefit at LibOS fd counts.
type Poller struct {
	epfd     int32
	version  atomic.Uint64
	eventBuf [256]unix.EpollEvent

	mu      sync.RWMutex
	pollees map[int32]*Pollee
	closed  atomic.Bool
}

// NewPoller creates and initializes an epoll instance.
func NewPoller() (*Poller, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, err
	}
	return &Poller{
		epfd:    int32(epfd),
		pollees: make(map[int32]*Pollee),
	}, nil
}

// Register adds fd to the epoll set watching the given initial events and
// returns its Pollee.
func (p *Poller) Register(fd int32, id bits.ObjectId, events Events) (*Pollee, error) {
	if p.closed.Load() {
		return nil, ErrClosed
	}

	p.mu.Lock()
	if _, ok := p.pollees[fd]; ok {
		p.mu.Unlock()
		return nil, ErrFDAlreadyRegistered
	}
	pollee := NewPollee(id)
	p.pollees[fd] = pollee
	p.version.Add(1)
	p.mu.Unlock()

	ev := &unix.EpollEvent{Events: eventsToEpoll(events), Fd: fd}
	if err := unix.EpollCtl(int(p.epfd), unix.EPOLL_CTL_ADD, int(fd), ev); err != nil {
		p.mu.Lock()
		delete(p.pollees, fd)
		p.mu.Unlock()
		return nil, err
	}
	return pollee, nil
}

// Modify updates the watched events for an already-registered fd.
func (p *Poller) Modify(fd int32, events Events) error {
	p.mu.RLock()
	_, ok := p.pollees[fd]
	p.mu.RUnlock()
	if !ok {
		return ErrFDNotRegistered
	}
	ev := &unix.EpollEvent{Events: eventsToEpoll(events), Fd: fd}
	return unix.EpollCtl(int(p.epfd), unix.EPOLL_CTL_MOD, int(fd), ev)
}

// Unregister removes fd from the epoll set.
func (p *Poller) Unregister(fd int32) error {
	p.mu.Lock()
	if _, ok := p.pollees[fd]; !ok {
		p.mu.Unlock()
		return ErrFDNotRegistered
	}
	delete(p.pollees, fd)
	p.version.Add(1)
	p.mu.Unlock()
	return unix.EpollCtl(int(p.epfd), unix.EPOLL_CTL_DEL, int(fd), nil)
}

// Poll blocks for up to timeoutMs (negative blocks indefinitely) waiting
// for readiness, dispatching each ready fd's events into its Pollee, and
// returns the number of fds that became ready.
func (p *Poller) Poll(timeoutMs int) (int, error) {
	if p.closed.Load() {
		return 0, ErrClosed
	}

	v := p.version.Load()
	n, err := unix.EpollWait(int(p.epfd), p.eventBuf[:], timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, err
	}

	if p.version.Load() != v {
		// registrations changed mid-wait, results may reference stale fds
		return 0, nil
	}

	for i := 0; i < n; i++ {
		fd := p.eventBuf[i].Fd
		p.mu.RLock()
		pollee := p.pollees[fd]
		p.mu.RUnlock()
		if pollee == nil {
			continue
		}
		pollee.ResetEvents(epollToEvents(p.eventBuf[i].Events))
	}
	return n, nil
}

// Close releases the epoll fd. Registered Pollees are left as-is; their
// Observers simply stop receiving new notifications.
func (p *Poller) Close() error {
	p.closed.Store(true)
	return unix.Close(int(p.epfd))
}

func eventsToEpoll(events Events) uint32 {
	var e uint32
	if events.Has(In) {
		e |= unix.EPOLLIN
	}
	if events.Has(Out) {
		e |= unix.EPOLLOUT
	}
	if events.Has(PriIn) {
		e |= unix.EPOLLPRI
	}
	return e
}

func epollToEvents(e uint32) Events {
	var events Events
	if e&unix.EPOLLIN != 0 {
		events |= In
	}
	if e&unix.EPOLLOUT != 0 {
		events |= Out
	}
	if e&unix.EPOLLERR != 0 {
		events |= Err
	}
	if e&unix.EPOLLHUP != 0 {
		events |= Hup
	}
	if e&unix.EPOLLPRI != 0 {
		events |= PriIn
	}
	return events
}
