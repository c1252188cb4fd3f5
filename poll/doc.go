// Package poll implements readiness notification: a Pollee holds the
// current Events bitset for one watched object (a socket, a pipe, an
// eventfd), a Poller multiplexes many Pollees onto one epoll instance, and
// an Observer is the handle a caller holds to its own registration on a
// Pollee.
//
// Grounded on eventloop/poller_linux.go's FastPoller: direct fd-indexed
// array, golang.org/x/sys/unix epoll syscalls, RWMutex-guarded metadata
// plus an atomic version counter to detect concurrent reconfiguration
// during EpollWait, generalized from "one callback per fd" to "one
// Pollee with N Observers," since spec.md's VFS layer needs several
// independent waiters (a reader and a writer, say) to register on the
// same underlying file.
package poll
