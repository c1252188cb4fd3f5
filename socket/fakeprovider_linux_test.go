//go:build linux

package socket_test

import (
	"sync"

	"github.com/enclavekernel/libos/ioring"
	"golang.org/x/sys/unix"
)

// fakeProvider is an in-memory ioring.Provider stand-in: every Submit*
// call completes immediately, on its own goroutine (SubmitSendmsg, whose
// caller holds its own lock while submitting), or off a test-controlled
// channel, so Sender/Receiver/Backlog cycles can be exercised without a
// real socket pair.
type fakeProvider struct {
	mu   sync.Mutex
	sent [][]byte

	recvQueue   chan []byte
	acceptQueue chan int32
	connectErr  error
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		recvQueue:   make(chan []byte, 16),
		acceptQueue: make(chan int32, 16),
	}
}

func (f *fakeProvider) SubmitRead(fd int, buf []byte, off int64, cb func(n int32, err error)) ioring.Handle {
	cb(0, nil)
	return 0
}

func (f *fakeProvider) SubmitWrite(fd int, buf []byte, off int64, cb func(n int32, err error)) ioring.Handle {
	cb(int32(len(buf)), nil)
	return 0
}

func (f *fakeProvider) SubmitRecvmsg(fd int, buf, oob []byte, flags int, cb func(n, oobn int32, err error)) ioring.Handle {
	go func() {
		data, ok := <-f.recvQueue
		if !ok {
			cb(0, 0, nil)
			return
		}
		n := copy(buf, data)
		cb(int32(n), 0, nil)
	}()
	return 0
}

func (f *fakeProvider) SubmitSendmsg(fd int, buf, oob []byte, flags int, cb func(n int32, err error)) ioring.Handle {
	f.mu.Lock()
	f.sent = append(f.sent, append([]byte(nil), buf...))
	f.mu.Unlock()
	go cb(int32(len(buf)), nil)
	return 0
}

func (f *fakeProvider) SubmitAccept(fd int, cb func(newfd int32, err error)) ioring.Handle {
	go func() {
		newfd, ok := <-f.acceptQueue
		if !ok {
			return
		}
		cb(newfd, nil)
	}()
	return 0
}

func (f *fakeProvider) SubmitConnect(fd int, addr unix.Sockaddr, cb func(err error)) ioring.Handle {
	cb(f.connectErr)
	return 0
}

func (f *fakeProvider) SubmitPoll(fd int, events uint32, cb func(events uint32, err error)) ioring.Handle {
	return 0
}

func (f *fakeProvider) Cancel(h ioring.Handle) {}

func (f *fakeProvider) TriggerCallbacks() {}

var _ ioring.Provider = (*fakeProvider)(nil)

// dummyFD returns a real, harmless fd (one end of a pipe) so Common.Close
// et al. have something safe to unix.Close.
func dummyFD() int32 {
	var fds [2]int
	if err := unix.Pipe2(fds[:], 0); err != nil {
		panic(err)
	}
	unix.Close(fds[1])
	return int32(fds[0])
}
