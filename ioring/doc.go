// Package ioring provides the submission/completion-queue I/O facility
// the rest of the kernel consumes through the ioring.Provider interface
// (spec.md §6's IoUring trait), plus a LoopbackProvider reference
// backend and a generic pooled request arena (RequestSlab) matching
// spec.md's BioReq Init -> Submitted -> Completed lifecycle.
//
// LoopbackProvider is grounded on eventloop/poller_linux.go's FastPoller:
// one shared epoll instance, golang.org/x/sys/unix syscalls, completions
// queued for TriggerCallbacks to drain on the calling vCPU rather than
// delivered from an arbitrary epoll goroutine. This is the idiomatic Go
// substitute for a real io_uring submission/completion ring: Go cannot
// safely pin msghdr/iovec memory across a cgo io_uring binding the way a
// systems language can, and wiring real io_uring is out of scope for
// exact instruction-level emulation here. The readiness-driven dispatch
// model — the part worth preserving — carries over faithfully.
package ioring
