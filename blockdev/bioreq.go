package blockdev

import (
	"context"

	"github.com/enclavekernel/libos/errno"
	"github.com/enclavekernel/libos/internal/bits"
	"github.com/enclavekernel/libos/ioring"
)

// BioKind is the operation a BioReq performs.
type BioKind int

const (
	BioRead BioKind = iota
	BioWrite
	BioFlush
)

// BlockBuf is one scatter/gather buffer of a BioReq.
type BlockBuf = []byte

// BioPayload is a BioReq's fixed data: kind, starting block address, the
// buffer vector, an optional on-drop hook (run if the request is
// released without completing, e.g. on cancellation), and an
// extension map decorator disks can stash metadata in.
type BioPayload struct {
	Kind   BioKind
	Block  uint64
	Bufs   []BlockBuf
	OnDrop func()
	Ext    bits.AnyMap
}

// BioReq is spec.md's BioReq: Init -> Submitted -> Completed(resp), with
// Complete the only permitted transition out of Submitted. Reuses
// ioring.Request's generic state machine rather than duplicating it.
type BioReq = ioring.Request[BioPayload]

// BioSubmission is the future a Device.Submit returns.
type BioSubmission struct {
	req  *BioReq
	done chan struct{}
}

func newSubmission(req *BioReq) *BioSubmission {
	return &BioSubmission{req: req, done: make(chan struct{})}
}

func (s *BioSubmission) complete(resp int32, err error) {
	s.req.Complete(resp, err)
	close(s.done)
}

// Wait blocks until the submission completes (or ctx is done first),
// returning the raw result and any error.
func (s *BioSubmission) Wait(ctx context.Context) (int32, error) {
	select {
	case <-s.done:
		return s.req.Result()
	case <-ctx.Done():
		return 0, errno.ECANCELED
	}
}

// Done returns the channel that closes once the submission completes.
func (s *BioSubmission) Done() <-chan struct{} { return s.done }
