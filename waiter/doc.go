// Package waiter implements FIFO task suspension and timed wake, the
// cooperative-retry idiom spec.md describes as waiter_loop!: a goroutine
// parks itself on a Queue, is woken by WakeOne/WakeAll when the condition
// it is waiting on might now hold, and re-checks the condition itself
// rather than trusting the wake to mean success.
//
// Grounded on longpoll/channel.go's context-aware bounded wait (guard
// ctx.Err() before and after blocking, treat cancellation and timeout as
// distinct outcomes) and eventloop/loop.go's container/heap-based
// timerHeap for timed wake.
package waiter
