//go:build linux

package ioring

import (
	"sync"

	"github.com/enclavekernel/libos/internal/bits"
	"github.com/enclavekernel/libos/poll"
	"golang.org/x/sys/unix"
)

// loopbackWorkers is the size of the blocking-syscall pool used for
// SubmitRead/SubmitWrite, where the underlying pread/pwrite is expected
// to return promptly (page-cache-backed files) rather than needing
// epoll readiness the way sockets do.
const loopbackWorkers = 8

// LoopbackProvider is the epoll-backed reference Provider: registrations
// share one epoll instance (poll.Poller), readiness drives non-blocking
// socket syscalls from a small worker pool, and every completion is
// queued rather than delivered inline, so TriggerCallbacks controls
// exactly which goroutine runs user callbacks (the calling vCPU, per
// spec.md).
type LoopbackProvider struct {
	poller *poll.Poller
	ids    *bits.IdAllocator

	mu      sync.Mutex
	pollees map[int]*poll.Pollee
	live    map[Handle]*submission

	cqMu sync.Mutex
	cq   *bits.ChunkedQueue[func()]

	jobs chan func()
	wg   sync.WaitGroup
}

type submission struct {
	cancel func()
}

// NewLoopbackProvider starts the worker pool and opens an epoll instance.
func NewLoopbackProvider() (*LoopbackProvider, error) {
	p, err := poll.NewPoller()
	if err != nil {
		return nil, err
	}
	lp := &LoopbackProvider{
		poller:  p,
		ids:     bits.NewIdAllocator(),
		pollees: make(map[int]*poll.Pollee),
		live:    make(map[Handle]*submission),
		cq:      bits.NewChunkedQueue[func()](),
		jobs:    make(chan func(), 256),
	}
	for i := 0; i < loopbackWorkers; i++ {
		lp.wg.Add(1)
		go lp.runWorker()
	}
	return lp, nil
}

func (p *LoopbackProvider) runWorker() {
	defer p.wg.Done()
	for job := range p.jobs {
		job()
	}
}

// Close stops the worker pool and the epoll instance. Pending
// submissions never complete.
func (p *LoopbackProvider) Close() error {
	close(p.jobs)
	p.wg.Wait()
	return p.poller.Close()
}

func (p *LoopbackProvider) enqueueCompletion(fn func()) {
	p.cqMu.Lock()
	p.cq.Push(fn)
	p.cqMu.Unlock()
}

// TriggerCallbacks drains every queued completion, running each on the
// calling goroutine, plus polls for newly-ready fds so registered
// SubmitRecvmsg/Sendmsg/Accept/Connect/Poll requests can make progress.
func (p *LoopbackProvider) TriggerCallbacks() {
	p.poller.Poll(0)

	for {
		p.cqMu.Lock()
		fn, ok := p.cq.Pop()
		p.cqMu.Unlock()
		if !ok {
			return
		}
		fn()
	}
}

func (p *LoopbackProvider) pollee(fd int) *poll.Pollee {
	p.mu.Lock()
	defer p.mu.Unlock()
	if pl, ok := p.pollees[fd]; ok {
		return pl
	}
	pl, err := p.poller.Register(int32(fd), bits.ObjectId(fd), poll.In|poll.Out)
	if err != nil {
		// already registered by a racing call, or unregisterable fd;
		// fall back to an unshared Pollee that will simply never fire,
		// the caller's retry-on-EAGAIN loop still completes via the
		// worker-pool path for read/write.
		return poll.NewPollee(bits.ObjectId(fd))
	}
	p.pollees[fd] = pl
	return pl
}

func (p *LoopbackProvider) newHandle() Handle {
	return Handle(p.ids.Next())
}

func (p *LoopbackProvider) track(h Handle, cancel func()) {
	p.mu.Lock()
	p.live[h] = &submission{cancel: cancel}
	p.mu.Unlock()
}

func (p *LoopbackProvider) untrack(h Handle) {
	p.mu.Lock()
	delete(p.live, h)
	p.mu.Unlock()
}

// Cancel marks the submission behind h canceled; if it is still waiting
// on readiness, its goroutine exits and its callback fires once with
// unix.ECANCELED.
func (p *LoopbackProvider) Cancel(h Handle) {
	p.mu.Lock()
	s, ok := p.live[h]
	p.mu.Unlock()
	if ok && s.cancel != nil {
		s.cancel()
	}
}

// SubmitRead issues a pread on the worker pool.
func (p *LoopbackProvider) SubmitRead(fd int, buf []byte, off int64, cb func(n int32, err error)) Handle {
	h := p.newHandle()
	p.jobs <- func() {
		n, err := unix.Pread(fd, buf, off)
		p.enqueueCompletion(func() { cb(int32(n), err) })
	}
	return h
}

// SubmitWrite issues a pwrite on the worker pool.
func (p *LoopbackProvider) SubmitWrite(fd int, buf []byte, off int64, cb func(n int32, err error)) Handle {
	h := p.newHandle()
	p.jobs <- func() {
		n, err := unix.Pwrite(fd, buf, off)
		p.enqueueCompletion(func() { cb(int32(n), err) })
	}
	return h
}

// SubmitRecvmsg waits for read-readiness then issues a non-blocking
// Recvmsg, retrying on EAGAIN until data arrives or Cancel fires.
func (p *LoopbackProvider) SubmitRecvmsg(fd int, buf, _ []byte, flags int, cb func(n, oobn int32, err error)) Handle {
	h := p.newHandle()
	done := make(chan struct{})
	p.track(h, func() { close(done) })

	go func() {
		defer p.untrack(h)
		pl := p.pollee(fd)
		for {
			n, oobn, _, _, err := unix.Recvmsg(fd, buf, nil, flags|unix.MSG_DONTWAIT)
			if err != unix.EAGAIN {
				p.enqueueCompletion(func() { cb(int32(n), int32(oobn), err) })
				return
			}
			obs := pl.Observe(poll.In)
			select {
			case <-obs.Ready():
				obs.Cancel()
			case <-done:
				obs.Cancel()
				p.enqueueCompletion(func() { cb(0, 0, unix.ECANCELED) })
				return
			}
		}
	}()
	return h
}

// SubmitSendmsg waits for write-readiness then issues a non-blocking
// Sendto, retrying on EAGAIN.
func (p *LoopbackProvider) SubmitSendmsg(fd int, buf, _ []byte, flags int, cb func(n int32, err error)) Handle {
	h := p.newHandle()
	done := make(chan struct{})
	p.track(h, func() { close(done) })

	go func() {
		defer p.untrack(h)
		pl := p.pollee(fd)
		for {
			err := unix.Sendto(fd, buf, flags|unix.MSG_DONTWAIT, nil)
			if err != unix.EAGAIN {
				n := 0
				if err == nil {
					n = len(buf)
				}
				p.enqueueCompletion(func() { cb(int32(n), err) })
				return
			}
			obs := pl.Observe(poll.Out)
			select {
			case <-obs.Ready():
				obs.Cancel()
			case <-done:
				obs.Cancel()
				p.enqueueCompletion(func() { cb(0, unix.ECANCELED) })
				return
			}
		}
	}()
	return h
}

// SubmitAccept waits for read-readiness (a pending connection) then
// issues a non-blocking Accept4.
func (p *LoopbackProvider) SubmitAccept(fd int, cb func(newfd int32, err error)) Handle {
	h := p.newHandle()
	done := make(chan struct{})
	p.track(h, func() { close(done) })

	go func() {
		defer p.untrack(h)
		pl := p.pollee(fd)
		for {
			nfd, _, err := unix.Accept4(fd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
			if err != unix.EAGAIN {
				p.enqueueCompletion(func() { cb(int32(nfd), err) })
				return
			}
			obs := pl.Observe(poll.In)
			select {
			case <-obs.Ready():
				obs.Cancel()
			case <-done:
				obs.Cancel()
				p.enqueueCompletion(func() { cb(-1, unix.ECANCELED) })
				return
			}
		}
	}()
	return h
}

// SubmitConnect issues a non-blocking Connect, then waits for
// write-readiness to learn the outcome via SO_ERROR.
func (p *LoopbackProvider) SubmitConnect(fd int, addr unix.Sockaddr, cb func(err error)) Handle {
	h := p.newHandle()
	done := make(chan struct{})
	p.track(h, func() { close(done) })

	go func() {
		defer p.untrack(h)
		err := unix.Connect(fd, addr)
		if err != unix.EINPROGRESS {
			p.enqueueCompletion(func() { cb(err) })
			return
		}

		pl := p.pollee(fd)
		obs := pl.Observe(poll.Out)
		select {
		case <-obs.Ready():
			obs.Cancel()
		case <-done:
			obs.Cancel()
			p.enqueueCompletion(func() { cb(unix.ECANCELED) })
			return
		}

		soerr, serr := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_ERROR)
		if serr != nil {
			p.enqueueCompletion(func() { cb(serr) })
			return
		}
		var connErr error
		if soerr != 0 {
			connErr = unix.Errno(soerr)
		}
		p.enqueueCompletion(func() { cb(connErr) })
	}()
	return h
}

// SubmitPoll waits for any of events to become ready on fd, once.
func (p *LoopbackProvider) SubmitPoll(fd int, events uint32, cb func(events uint32, err error)) Handle {
	h := p.newHandle()
	done := make(chan struct{})
	p.track(h, func() { close(done) })

	go func() {
		defer p.untrack(h)
		pl := p.pollee(fd)
		obs := pl.Observe(poll.Events(events))
		select {
		case ev := <-obs.Ready():
			obs.Cancel()
			p.enqueueCompletion(func() { cb(uint32(ev), nil) })
		case <-done:
			obs.Cancel()
			p.enqueueCompletion(func() { cb(0, unix.ECANCELED) })
		}
	}()
	return h
}

var _ Provider = (*LoopbackProvider)(nil)
