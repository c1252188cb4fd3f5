// Package lsm implements the on-disk LSM storage engine: a pair of
// role-swapping MemTables, an immutable on-disk B+-tree (BIT) authenticated
// per block, a BIT catalog (BITC), a data-segment validity tracker (DST)
// driving GC victim selection, and two-copy shadow paging (DiskShadow) for
// durable BITC persistence (the DST is kept in memory only).
//
// AEAD sealing uses golang.org/x/crypto/chacha20poly1305, the idiomatic Go
// stand-in for the source's enclave crypto primitive; every on-disk block
// is sealed independently with a random nonce, and a parent block stores
// its child's authentication tag the way spec.md's BIT names it a MAC.
// A DiskShadow configured with WithHostSnapshot additionally stages each
// Write as a regular host file through github.com/google/renameio/v2, so a
// crash mid-write never leaves that file half-written.
package lsm
