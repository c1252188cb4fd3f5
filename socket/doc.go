// Package socket implements the socket I/O engine: a Common struct shared
// by every socket kind, the stream state machine (Init/Connecting/
// Connected/Listening), an accept Backlog, Sender/Receiver pairs wrapping
// a CircularBuf, and datagram/raw/netlink variants.
//
// CircularBuf is grounded directly in catrate/ring.go's ringBuffer[E]
// (fixed backing slice, monotonically increasing r/w cursors, masked
// index arithmetic), generalized from a typed ring of ordered values to a
// byte-oriented ring exposing two-slice wraparound views. Readiness uses
// /poll; I/O is submitted through an injected ioring.Provider.
package socket
