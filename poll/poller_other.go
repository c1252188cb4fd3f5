//go:build !linux

package poll

import (
	"errors"

	"github.com/enclavekernel/libos/internal/bits"
)

// ErrUnsupported is returned by NewPoller on hosts without epoll. The
// enclave kernel this package serves only ever runs atop a Linux host
// (spec.md's process/VM model assumes clone/futex/epoll are available);
// unlike the teacher's eventloop, which targets darwin/windows too, there
// is no kqueue/IOCP backend to ground a non-Linux Poller on here.
var ErrUnsupported = errors.New("poll: epoll poller only supported on linux")

// Poller is a non-functional placeholder on non-Linux hosts; see
// poller_linux.go for the real implementation.
type Poller struct{}

func NewPoller() (*Poller, error) {
	return nil, ErrUnsupported
}

func (p *Poller) Register(fd int32, id bits.ObjectId, events Events) (*Pollee, error) {
	return nil, ErrUnsupported
}

func (p *Poller) Modify(fd int32, events Events) error { return ErrUnsupported }
func (p *Poller) Unregister(fd int32) error             { return ErrUnsupported }
func (p *Poller) Poll(timeoutMs int) (int, error)       { return 0, ErrUnsupported }
func (p *Poller) Close() error                          { return ErrUnsupported }
