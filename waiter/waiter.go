package waiter

import (
	"container/list"
	"sync"
)

// Waiter is a single suspended goroutine's wake channel. It is woken
// exactly once; subsequent wakes on an already-fired Waiter are no-ops.
type Waiter struct {
	ch   chan struct{}
	once sync.Once
	elem *list.Element // owned by the Queue that enqueued this waiter
}

// NewWaiter returns a fresh, unfired Waiter.
func NewWaiter() *Waiter {
	return &Waiter{ch: make(chan struct{})}
}

// Wake fires the waiter, releasing any goroutine blocked in Wait. Safe to
// call multiple times and from multiple goroutines.
func (w *Waiter) Wake() {
	w.once.Do(func() { close(w.ch) })
}

// Done returns the channel that closes when Wake is called.
func (w *Waiter) Done() <-chan struct{} {
	return w.ch
}

// Queue is a FIFO collection of parked Waiters, the same shape as a
// condition variable's wait list but expressed as an explicit queue so
// WakeOne can release exactly the longest-waiting goroutine (spec.md's
// fairness requirement for WaiterQueue).
type Queue struct {
	mu sync.Mutex
	l  list.List // of *Waiter
}

// NewQueue returns an empty Queue.
func NewQueue() *Queue {
	return &Queue{}
}

// Enqueue parks a new Waiter at the back of the queue and returns it. The
// caller must arrange to Remove it (Wait and Retry do this automatically)
// if it gives up without being woken, to avoid leaking queue slots.
func (q *Queue) Enqueue() *Waiter {
	w := NewWaiter()
	q.mu.Lock()
	elem := q.l.PushBack(w)
	q.mu.Unlock()
	w.elem = elem
	return w
}

// Remove takes w out of the queue if it is still queued. Safe to call even
// if w has already been woken and dequeued.
func (q *Queue) Remove(w *Waiter) {
	if w.elem == nil {
		return
	}
	q.mu.Lock()
	if w.elem != nil {
		q.l.Remove(w.elem)
		w.elem = nil
	}
	q.mu.Unlock()
}

// WakeOne wakes and dequeues the single longest-waiting Waiter, if any.
// Reports whether a waiter was woken.
func (q *Queue) WakeOne() bool {
	q.mu.Lock()
	front := q.l.Front()
	if front == nil {
		q.mu.Unlock()
		return false
	}
	w := q.l.Remove(front).(*Waiter)
	w.elem = nil
	q.mu.Unlock()
	w.Wake()
	return true
}

// WakeAll wakes and dequeues every currently queued Waiter.
func (q *Queue) WakeAll() int {
	q.mu.Lock()
	var ws []*Waiter
	for e := q.l.Front(); e != nil; e = e.Next() {
		w := e.Value.(*Waiter)
		w.elem = nil
		ws = append(ws, w)
	}
	q.l.Init()
	q.mu.Unlock()
	for _, w := range ws {
		w.Wake()
	}
	return len(ws)
}

// Len reports the number of currently queued waiters.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.l.Len()
}
