// Package process implements the process/thread subsystem: Process and
// Thread identity, a restricted clone(), a futex table supporting
// WAIT/WAIT_BITSET/WAKE/WAKE_BITSET/REQUEUE, and wait4-style zombie
// reaping.
//
// Tid/pid allocation is a monotonic counter plus a map, the same shape as
// eventloop/registry.go's promise registry, scaled down: no weak
// pointers or scavenging ring are needed here since a Thread's lifetime
// is owned by its Process, not independently garbage collected.
package process
