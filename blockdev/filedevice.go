//go:build unix

package blockdev

import (
	"sync"
	"sync/atomic"

	"github.com/enclavekernel/libos/errno"
	"github.com/enclavekernel/libos/ioring"
	"github.com/google/renameio/v2"
	"golang.org/x/sys/unix"
)

// FileDevice is a Device backed by a regular host file, routing every
// read and write Submit through an injected ioring.Provider rather than
// doing synchronous I/O itself. A flush calls fsync on its own goroutine.
type FileDevice struct {
	provider ioring.Provider
	fd       int
	blocks   uint64
	closed   atomic.Bool
}

// NewFileDevice creates (or truncates) path to hold the given number of
// blocks, atomically via github.com/google/renameio/v2 (write-to-temp,
// fsync, rename) so a process crash mid-format never leaves a
// half-written backing file, then opens it for pread/pwrite through
// provider.
func NewFileDevice(path string, blocks uint64, provider ioring.Provider) (*FileDevice, error) {
	size := blocks * BlockSize
	if err := renameio.WriteFile(path, make([]byte, size), 0o600); err != nil {
		return nil, err
	}

	fd, err := unix.Open(path, unix.O_RDWR, 0o600)
	if err != nil {
		return nil, err
	}
	return &FileDevice{provider: provider, fd: fd, blocks: blocks}, nil
}

// TotalBlocks implements Device.
func (d *FileDevice) TotalBlocks() uint64 {
	return d.blocks
}

// Close closes the backing fd. Submissions in flight may still complete
// after Close returns; callers must Wait them out first.
func (d *FileDevice) Close() error {
	d.closed.Store(true)
	return unix.Close(d.fd)
}

// Submit implements Device, dispatching to the provider one buffer at a
// time, in order, accumulating the total byte count.
func (d *FileDevice) Submit(req *BioReq) *BioSubmission {
	req.Submit()
	sub := newSubmission(req)

	if req.Payload.Kind == BioFlush {
		go func() {
			err := unix.Fsync(d.fd)
			sub.complete(0, err)
		}()
		return sub
	}

	off := int64(req.Payload.Block * BlockSize)
	bufs := req.Payload.Bufs

	var mu sync.Mutex
	total := int32(0)
	var firstErr error

	var step func(i int, pos int64)
	step = func(i int, pos int64) {
		if i >= len(bufs) {
			sub.complete(total, firstErr)
			return
		}
		buf := bufs[i]
		onDone := func(n int32, err error) {
			mu.Lock()
			total += n
			if err != nil && firstErr == nil {
				firstErr = err
			}
			mu.Unlock()
			if err != nil {
				sub.complete(total, firstErr)
				return
			}
			step(i+1, pos+int64(n))
		}
		switch req.Payload.Kind {
		case BioRead:
			d.provider.SubmitRead(d.fd, buf, pos, onDone)
		case BioWrite:
			d.provider.SubmitWrite(d.fd, buf, pos, onDone)
		default:
			sub.complete(0, errno.EINVAL)
		}
	}
	step(0, off)

	return sub
}
