package socket

import (
	"sync"

	"github.com/enclavekernel/libos/errno"
	"github.com/enclavekernel/libos/poll"
	"golang.org/x/sys/unix"
)

// DatagramMsg is one received (or to-be-sent) datagram.
type DatagramMsg struct {
	Addr unix.Sockaddr
	Data []byte
}

// DatagramSocket models the UDP / IP-raw / Ethernet-raw / Netlink shape
// from spec.md §4.4.5: a bounded send queue (one message per enqueued
// send) drained in order, and N receive buffers kept continuously
// posted.
//
// ioring.Provider's SubmitSendmsg/SubmitRecvmsg assume a connected fd (no
// destination address parameter), which fits the stream socket's cycle
// but not an unconnected datagram's per-message destination. Rather than
// extend Provider for one caller, DatagramSocket's send/receive workers
// use unix.Sendto/unix.Recvfrom directly against the nonblocking fd. A
// receive worker retries Recvfrom at once on EAGAIN, without waiting for
// readiness; the send worker does not retry and reports a failed Sendto to
// Send's caller — the bounded-queue and N-posted-buffers
// *shape* spec.md asks for is preserved; only the transport underneath
// one addressed call differs from the Provider-routed connected path.
type DatagramSocket struct {
	*Common

	sendQ   chan datagramSend
	recvCh  chan DatagramMsg
	closeCh chan struct{}
	once    sync.Once
	wg      sync.WaitGroup

	recvBufSize int
}

type datagramSend struct {
	msg  DatagramMsg
	done chan error
}

// NewDatagramSocket starts queueDepth-deep send processing and
// recvPosted concurrent receive workers, each reading up to recvBufSize
// bytes per datagram.
func NewDatagramSocket(common *Common, queueDepth, recvPosted, recvBufSize int) *DatagramSocket {
	d := &DatagramSocket{
		Common:      common,
		sendQ:       make(chan datagramSend, queueDepth),
		recvCh:      make(chan DatagramMsg, recvPosted),
		closeCh:     make(chan struct{}),
		recvBufSize: recvBufSize,
	}

	d.wg.Add(1)
	go d.sendLoop()

	for i := 0; i < recvPosted; i++ {
		d.wg.Add(1)
		go d.recvLoop()
	}
	return d
}

// Send enqueues a datagram, blocking if the queue is full. Returns the
// error observed actually transmitting it.
func (d *DatagramSocket) Send(msg DatagramMsg) error {
	done := make(chan error, 1)
	select {
	case d.sendQ <- datagramSend{msg: msg, done: done}:
	case <-d.closeCh:
		return errno.EBADF
	}
	select {
	case err := <-done:
		return err
	case <-d.closeCh:
		return errno.EBADF
	}
}

func (d *DatagramSocket) sendLoop() {
	defer d.wg.Done()
	for {
		select {
		case req := <-d.sendQ:
			err := unix.Sendto(int(d.FD()), req.msg.Data, 0, req.msg.Addr)
			if err != nil {
				d.SetErr(err)
			}
			req.done <- err
		case <-d.closeCh:
			return
		}
	}
}

func (d *DatagramSocket) recvLoop() {
	defer d.wg.Done()
	buf := make([]byte, d.recvBufSize)
	for {
		select {
		case <-d.closeCh:
			return
		default:
		}

		n, from, err := unix.Recvfrom(int(d.FD()), buf, 0)
		if err != nil {
			if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
				continue
			}
			d.SetErr(err)
			return
		}

		data := make([]byte, n)
		copy(data, buf[:n])
		select {
		case d.recvCh <- DatagramMsg{Addr: from, Data: data}:
			d.Pollee.AddEvents(poll.In)
		case <-d.closeCh:
			return
		}
	}
}

// Recv blocks until a datagram is available or the socket is closed.
func (d *DatagramSocket) Recv() (DatagramMsg, error) {
	select {
	case msg := <-d.recvCh:
		return msg, nil
	case <-d.closeCh:
		return DatagramMsg{}, errno.EBADF
	}
}

// Close stops the send/receive workers and closes the host fd. Datagram
// sockets do not support shutdown(): Shutdown below returns ENOTCONN, and
// NetlinkSocket.Shutdown returns EOPNOTSUPP.
func (d *DatagramSocket) Close() error {
	if err := d.Common.Close(); err != nil {
		return err
	}
	d.once.Do(func() { close(d.closeCh) })
	d.wg.Wait()
	return unix.Close(int(d.FD()))
}

// Shutdown is unsupported for datagram/raw sockets, per spec.md §4.4.6.
func (d *DatagramSocket) Shutdown(int) error {
	return errno.ENOTCONN
}
