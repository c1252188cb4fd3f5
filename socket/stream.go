package socket

import (
	"context"
	"sync/atomic"

	"github.com/enclavekernel/libos/errno"
	"golang.org/x/sys/unix"
)

// StreamState is a stream socket's position in the
// Init -> Connecting -> Connected / Init -> Listening machine (spec.md
// §4.4.1).
type StreamState int32

const (
	StreamInit StreamState = iota
	StreamConnecting
	StreamConnected
	StreamListening
)

// DefaultBufSize is the Sender/Receiver ring capacity a freshly connected
// or accepted stream socket gets.
const DefaultBufSize = 64 * 1024

// StreamSocket is a TCP-like connection-oriented socket.
type StreamSocket struct {
	*Common

	state    atomic.Int32
	backlog  *Backlog
	sender   *Sender
	receiver *Receiver
}

// NewStreamSocket wraps common in the Init state.
func NewStreamSocket(common *Common) *StreamSocket {
	s := &StreamSocket{Common: common}
	s.state.Store(int32(StreamInit))
	return s
}

// State returns the current stream state.
func (s *StreamSocket) State() StreamState {
	return StreamState(s.state.Load())
}

// Bind is valid only in Init.
func (s *StreamSocket) Bind(addr unix.Sockaddr) error {
	if s.State() != StreamInit {
		return errno.EINVAL
	}
	if err := unix.Bind(int(s.FD()), addr); err != nil {
		return err
	}
	s.setLocalAddr(addr)
	return nil
}

// Listen allocates (or resizes) the accept Backlog and transitions to
// Listening.
func (s *StreamSocket) Listen(backlog int) error {
	cur := s.State()
	if cur != StreamInit && cur != StreamListening {
		return errno.EINVAL
	}
	if err := unix.Listen(int(s.FD()), backlog); err != nil {
		return err
	}
	if s.backlog == nil {
		s.backlog = NewBacklog(s.Common, backlog)
	} else {
		s.backlog.Resize(backlog)
	}
	s.state.Store(int32(StreamListening))
	return nil
}

// Connect is valid only in Init. It submits an async connect and blocks
// until it completes, ctx is done, or the connect fails, per spec.md's
// "on success promotes to Connected; on failure restores Init."
func (s *StreamSocket) Connect(ctx context.Context, peer unix.Sockaddr) error {
	if s.State() != StreamInit {
		return errno.EALREADY
	}
	s.state.Store(int32(StreamConnecting))

	done := make(chan error, 1)
	h := s.Provider.SubmitConnect(int(s.FD()), peer, func(err error) { done <- err })

	select {
	case err := <-done:
		if err != nil {
			s.state.Store(int32(StreamInit))
			return err
		}
		s.setPeerAddr(peer)
		s.sender = NewSender(s.Common, DefaultBufSize)
		s.receiver = NewReceiver(s.Common, DefaultBufSize)
		s.state.Store(int32(StreamConnected))
		return nil
	case <-ctx.Done():
		s.Provider.Cancel(h)
		s.state.Store(int32(StreamInit))
		return translateCtxErr(ctx.Err())
	}
}

func translateCtxErr(err error) error {
	if err == context.Canceled {
		return errno.ECANCELED
	}
	if err == context.DeadlineExceeded {
		return errno.ETIMEDOUT
	}
	return err
}

// Accept is valid only in Listening. It pops one completed backlog entry
// and wraps it as a new Connected socket, returning errno.EAGAIN if
// nothing has completed yet.
func (s *StreamSocket) Accept() (*StreamSocket, error) {
	if s.State() != StreamListening {
		return nil, errno.EINVAL
	}
	fd, ok := s.backlog.TryAccept()
	if !ok {
		return nil, errno.EAGAIN
	}

	common := NewCommon(fd, s.Provider)
	conn := &StreamSocket{Common: common}
	conn.state.Store(int32(StreamConnected))
	conn.sender = NewSender(common, DefaultBufSize)
	conn.receiver = NewReceiver(common, DefaultBufSize)
	return conn, nil
}

// Write is valid only once Connected.
func (s *StreamSocket) Write(p []byte) (int, error) {
	if s.sender == nil {
		return 0, errno.ENOTCONN
	}
	return s.sender.Write(p)
}

// Read is valid only once Connected.
func (s *StreamSocket) Read(p []byte) (int, error) {
	if s.receiver == nil {
		return 0, errno.ENOTCONN
	}
	return s.receiver.Read(p)
}

// Shutdown sets the matching half flags on sender/receiver and, for the
// write half, asks the host for SHUT_WR once the send buffer drains.
func (s *StreamSocket) Shutdown(how int) error {
	if s.State() != StreamConnected {
		return errno.ENOTCONN
	}
	switch how {
	case unix.SHUT_RD:
		s.receiver.eof.Store(true)
	case unix.SHUT_WR:
		s.sender.Shutdown()
	case unix.SHUT_RDWR:
		s.receiver.eof.Store(true)
		s.sender.Shutdown()
	default:
		return errno.EINVAL
	}
	return nil
}

// Close marks the socket closed, discards queued sends, and closes the
// host fd. It does not cancel accept/recv/send submissions still in
// flight; their callbacks still run when the I/O facility completes them.
func (s *StreamSocket) Close() error {
	if err := s.Common.Close(); err != nil {
		return err
	}
	if s.sender != nil {
		s.sender.Shutdown()
		s.sender.Discard()
	}
	return unix.Close(int(s.FD()))
}
