// Package pagecache implements a byte-addressable cache of fixed-size pages
// above a blockdev.Device: an LRU-ordered cache keyed by a caller-chosen
// key, a dirty set, and a background Flusher that batches writeback between
// two watermarks instead of flushing on every write.
//
// The cache itself is grounded on eventloop/registry.go's map+list
// combination (a map for O(1) lookup, a container/list for LRU order); the
// Flusher's watermark/batch loop is grounded on microbatch.Batcher's
// size-or-interval flush decision, adapted from "batch of jobs" to "batch
// of dirty pages" and from a timer-only trigger to a waiter.Queue the
// Flusher sleeps on between HIGH and LOW crossings.
package pagecache
