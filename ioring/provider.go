package ioring

import (
	"github.com/enclavekernel/libos/internal/bits"
	"golang.org/x/sys/unix"
)

// Handle identifies one in-flight submission, returned by every Submit*
// call so it can later be passed to Cancel.
type Handle bits.ObjectId

// Provider is the I/O facility contract spec.md §6 names as the IoUring
// trait, translated to Go: callbacks are plain closures rather than a
// generic Fn parameter, and raw fds/sockaddrs use golang.org/x/sys/unix's
// types since this module never does cgo.
type Provider interface {
	SubmitRead(fd int, buf []byte, off int64, cb func(n int32, err error)) Handle
	SubmitWrite(fd int, buf []byte, off int64, cb func(n int32, err error)) Handle
	SubmitRecvmsg(fd int, buf, oob []byte, flags int, cb func(n, oobn int32, err error)) Handle
	SubmitSendmsg(fd int, buf, oob []byte, flags int, cb func(n int32, err error)) Handle
	SubmitAccept(fd int, cb func(newfd int32, err error)) Handle
	SubmitConnect(fd int, addr unix.Sockaddr, cb func(err error)) Handle
	SubmitPoll(fd int, events uint32, cb func(events uint32, err error)) Handle

	// Cancel requests that the submission behind h not complete
	// normally. Per spec.md, its callback may still fire (once,
	// idempotently) with an ECANCELED-shaped error.
	Cancel(h Handle)

	// TriggerCallbacks drains the completion queue, running every
	// ready callback on the calling goroutine. Passed as a Task's
	// runtime.SpawnOptions.OnYield, it runs after each yielding Step.
	TriggerCallbacks()
}
