package socket

import (
	"sync"

	"github.com/enclavekernel/libos/errno"
	"github.com/enclavekernel/libos/poll"
	"golang.org/x/sys/unix"
)

// Sender owns a CircularBuf of bytes awaiting transmission and drives the
// write -> produce -> flush -> consume cycle documented in spec.md
// §4.4.3. Unlike the source's msghdr+iovec[2] submission that covers both
// ring halves in one sendmsg, this Provider's SubmitSendmsg takes a
// single contiguous buffer, so flush submits only the first contiguous
// half per call; a non-empty remainder simply triggers another
// submission once the first completes.
type Sender struct {
	common *Common
	buf    *CircularBuf

	mu          sync.Mutex
	pending     bool
	shutdownReq bool
}

// NewSender allocates a Sender with the given ring capacity.
func NewSender(common *Common, capacity int) *Sender {
	return &Sender{common: common, buf: NewCircularBuf(capacity)}
}

// Write copies p into the ring (up to its free space) and kicks off a
// flush if none is already in flight. Returns errno.EAGAIN if the ring
// is full and nothing was copied.
func (s *Sender) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.common.Closed() {
		return 0, errno.EBADF
	}
	if err := s.common.LastErr(); err != nil {
		return 0, err
	}

	n := s.buf.Write(p)
	if n > 0 {
		s.flushLocked()
		return n, nil
	}
	return 0, errno.EAGAIN
}

func (s *Sender) flushLocked() {
	if s.pending {
		return
	}
	data := s.buf.FirstConsumerSlice()
	if len(data) == 0 {
		if s.shutdownReq {
			_ = unix.Shutdown(int(s.common.FD()), unix.SHUT_WR)
		}
		return
	}
	s.pending = true
	s.common.Provider.SubmitSendmsg(int(s.common.FD()), data, nil, 0, s.onComplete)
}

func (s *Sender) onComplete(n int32, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = false

	if err != nil {
		s.buf.ConsumeWithoutCopy(s.buf.Consumable())
		s.common.SetErr(err)
		return
	}

	s.buf.ConsumeWithoutCopy(int(n))
	if !s.buf.Empty() {
		s.flushLocked()
		return
	}
	if s.shutdownReq {
		_ = unix.Shutdown(int(s.common.FD()), unix.SHUT_WR)
	}
	s.common.Pollee.AddEvents(poll.Out)
	s.common.Pollee.DelEvents(poll.Out)
}

// Shutdown requests SHUT_WR once the ring has fully drained.
func (s *Sender) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shutdownReq = true
	if s.buf.Empty() && !s.pending {
		_ = unix.Shutdown(int(s.common.FD()), unix.SHUT_WR)
	}
}

// Discard drops all queued, unsent bytes, used by Close.
func (s *Sender) Discard() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buf.ConsumeWithoutCopy(s.buf.Consumable())
}

// Pending reports whether a sendmsg submission is currently in flight.
func (s *Sender) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}
