// Package blockdev implements spec.md §6's BlockDevice trait: a fixed
// block-addressed store exposing TotalBlocks and an async Submit(BioReq)
// that never blocks the calling vCPU.
//
// BioReq reuses ioring.Request[BioPayload]'s Init -> Submitted ->
// Completed state machine verbatim (spec.md's own BioReq lifecycle),
// rather than defining a parallel one. FileDevice routes every read and
// write Submit through an injected ioring.Provider (pread/pwrite on the
// device's backing fd), per spec.md §6's "the core never does synchronous I/O
// beyond the wait on the returned submission future"; a flush calls fsync
// directly on its own goroutine. MemDevice has no
// real fd to route through a Provider and is deliberately synchronous,
// documented as the in-memory fast path used by unit tests.
package blockdev
