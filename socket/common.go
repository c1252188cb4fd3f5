package socket

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/enclavekernel/libos/errno"
	"github.com/enclavekernel/libos/ioring"
	"github.com/enclavekernel/libos/poll"
	"golang.org/x/sys/unix"
)

// Common holds the state every socket kind shares: the host fd, its
// readiness Pollee, local/peer addresses, nonblocking flag, timeouts, a
// closed flag, the last errno observed, and the I/O-facility handle used
// to submit work.
type Common struct {
	fd       int32
	Provider ioring.Provider
	Pollee   *poll.Pollee

	mu         sync.RWMutex
	localAddr  unix.Sockaddr
	peerAddr   unix.Sockaddr
	nonblock   bool
	sendTO     time.Duration
	recvTO     time.Duration

	closed  atomic.Bool
	lastErr atomic.Value // error
}

// NewCommon wraps an already-created host fd.
func NewCommon(fd int32, provider ioring.Provider) *Common {
	return &Common{fd: fd, Provider: provider, Pollee: poll.NewPollee(0)}
}

// FD returns the underlying host fd.
func (c *Common) FD() int32 { return c.fd }

// SetNonblocking toggles whether read/write calls return EAGAIN instead
// of blocking when no data/room is available.
func (c *Common) SetNonblocking(v bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nonblock = v
}

func (c *Common) Nonblocking() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.nonblock
}

// SetTimeouts sets send/recv timeouts; zero means no timeout.
func (c *Common) SetTimeouts(send, recv time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sendTO, c.recvTO = send, recv
}

func (c *Common) Timeouts() (send, recv time.Duration) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sendTO, c.recvTO
}

// LocalAddr, PeerAddr report the bound/connected addresses, if any.
func (c *Common) LocalAddr() unix.Sockaddr {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.localAddr
}

func (c *Common) PeerAddr() unix.Sockaddr {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.peerAddr
}

func (c *Common) setLocalAddr(a unix.Sockaddr) {
	c.mu.Lock()
	c.localAddr = a
	c.mu.Unlock()
}

func (c *Common) setPeerAddr(a unix.Sockaddr) {
	c.mu.Lock()
	c.peerAddr = a
	c.mu.Unlock()
}

// Closed reports whether Close has already run.
func (c *Common) Closed() bool { return c.closed.Load() }

// SetErr records the last fatal errno observed and raises Events.Err.
func (c *Common) SetErr(err error) {
	c.lastErr.Store(err)
	c.Pollee.AddEvents(poll.Err)
}

// LastErr returns the last fatal errno recorded, if any.
func (c *Common) LastErr() error {
	e, _ := c.lastErr.Load().(error)
	return e
}

// Close marks the socket closed and cancels nothing by itself; concrete
// socket types call this first, before stopping their own workers. No
// socket type cancels its outstanding submissions on close.
func (c *Common) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return errno.EBADF
	}
	return nil
}
