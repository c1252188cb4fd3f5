// Package vm implements the virtual-memory manager: a reserved address
// space partitioned into chunks, a free-space allocator, shared-mapping
// bookkeeping, and POSIX-style advisory file range locks.
//
// VMManager.mmap/munmap/mprotect mirror the teacher's eventloop/registry.go
// bookkeeping style: small structs under a single mutex, with chunks kept
// in an address-ordered slice, not a bespoke allocator. ShmManager's inode->chunk index is
// a sharded sync.Map with a sync.Pool-backed per-entry struct, the same
// shape as catrate.Limiter's category index (sync.Map plus pooled
// categoryData). RangeLockList is new code implementing the ordered-deque
// merge/split invariants directly, blocking via /waiter.
package vm
