package blockdev

import (
	"sync"

	"github.com/enclavekernel/libos/errno"
)

// MemDevice is an in-process, byte-slice-backed Device. It has no real
// fd, so there is nothing to route through an ioring.Provider; Submit
// completes synchronously (but still through the BioSubmission future
// shape, so callers cannot tell it apart from FileDevice by interface).
type MemDevice struct {
	mu   sync.Mutex
	data []byte
}

// NewMemDevice allocates a MemDevice with the given capacity in blocks.
func NewMemDevice(blocks uint64) *MemDevice {
	return &MemDevice{data: make([]byte, blocks*BlockSize)}
}

// TotalBlocks implements Device.
func (d *MemDevice) TotalBlocks() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return uint64(len(d.data)) / BlockSize
}

// Submit implements Device.
func (d *MemDevice) Submit(req *BioReq) *BioSubmission {
	req.Submit()
	sub := newSubmission(req)

	off := req.Payload.Block * BlockSize
	d.mu.Lock()
	defer d.mu.Unlock()

	switch req.Payload.Kind {
	case BioFlush:
		sub.complete(0, nil)
		return sub
	case BioRead:
		n, err := d.readAt(off, req.Payload.Bufs)
		sub.complete(int32(n), err)
	case BioWrite:
		n, err := d.writeAt(off, req.Payload.Bufs)
		sub.complete(int32(n), err)
	default:
		sub.complete(0, errno.EINVAL)
	}
	return sub
}

func (d *MemDevice) readAt(off uint64, bufs []BlockBuf) (int, error) {
	total := 0
	for _, b := range bufs {
		if off+uint64(len(b)) > uint64(len(d.data)) {
			return total, errno.ESPIPE
		}
		n := copy(b, d.data[off:])
		off += uint64(n)
		total += n
	}
	return total, nil
}

func (d *MemDevice) writeAt(off uint64, bufs []BlockBuf) (int, error) {
	total := 0
	for _, b := range bufs {
		if off+uint64(len(b)) > uint64(len(d.data)) {
			return total, errno.ESPIPE
		}
		n := copy(d.data[off:], b)
		off += uint64(n)
		total += n
	}
	return total, nil
}
