package socket

import (
	"sync"
	"sync/atomic"

	"github.com/enclavekernel/libos/errno"
	"github.com/enclavekernel/libos/poll"
)

// Receiver keeps one recvmsg continuously outstanding (per spec.md
// §4.4.3) and buffers completed reads into a CircularBuf for Read to
// drain.
type Receiver struct {
	common *Common
	buf    *CircularBuf

	mu      sync.Mutex
	pending bool
	eof     atomic.Bool
}

// NewReceiver allocates a Receiver with the given ring capacity and
// immediately posts its first recvmsg.
func NewReceiver(common *Common, capacity int) *Receiver {
	r := &Receiver{common: common, buf: NewCircularBuf(capacity)}
	r.mu.Lock()
	r.maybeSubmitLocked()
	r.mu.Unlock()
	return r
}

func (r *Receiver) maybeSubmitLocked() {
	if r.pending || r.eof.Load() || r.common.LastErr() != nil {
		return
	}
	slice := r.buf.FirstProducerSlice()
	if len(slice) == 0 {
		return
	}
	r.pending = true
	r.common.Provider.SubmitRecvmsg(int(r.common.FD()), slice, nil, 0, r.onComplete)
}

func (r *Receiver) onComplete(n, _ int32, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending = false

	if err != nil {
		r.common.SetErr(err)
		return
	}
	if n == 0 {
		r.eof.Store(true)
		r.common.Pollee.AddEvents(poll.In)
		return
	}

	r.buf.ProduceWithoutCopy(int(n))
	r.common.Pollee.AddEvents(poll.In)
	r.maybeSubmitLocked()
}

// Read drains up to len(p) bytes from the ring. Returns (0, nil) on EOF,
// the stored fatal errno if one was set, or errno.EAGAIN if the ring is
// empty, not at EOF, and not fatally errored.
func (r *Receiver) Read(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.buf.Empty() {
		if r.eof.Load() {
			return 0, nil
		}
		if err := r.common.LastErr(); err != nil {
			return 0, err
		}
		return 0, errno.EAGAIN
	}

	n := r.buf.Read(p)
	r.maybeSubmitLocked()
	return n, nil
}

// EOF reports whether the peer has closed its write side.
func (r *Receiver) EOF() bool { return r.eof.Load() }
