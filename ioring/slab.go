package ioring

import "sync"

// ReqState is a request's lifecycle stage, spec.md's BioReq Init ->
// Submitted -> Completed(resp).
type ReqState int32

const (
	ReqInit ReqState = iota
	ReqSubmitted
	ReqCompleted
)

// Request is one slab-allocated I/O request: typed payload T plus the
// state machine governing it. The zero value is ReqInit.
type Request[T any] struct {
	Payload T
	state   ReqState
	resp    int32
	err     error
}

// State returns the request's current lifecycle stage.
func (r *Request[T]) State() ReqState { return r.state }

// Submit transitions Init -> Submitted. Panics if called from any other
// state, since spec.md treats this as a programmer error (a slab
// request is never resubmitted without first being released).
func (r *Request[T]) Submit() {
	if r.state != ReqInit {
		panic("ioring: submit: request not in Init state")
	}
	r.state = ReqSubmitted
}

// Complete transitions Submitted -> Completed with the raw return value
// and any error, the "unsafe complete(resp)" transition spec.md allows
// only from Submitted.
func (r *Request[T]) Complete(resp int32, err error) {
	if r.state != ReqSubmitted {
		panic("ioring: complete: request not in Submitted state")
	}
	r.resp = resp
	r.err = err
	r.state = ReqCompleted
}

// Result returns the raw return value and error once Completed.
func (r *Request[T]) Result() (int32, error) {
	return r.resp, r.err
}

// RequestSlab is a sync.Pool-backed arena of Request[T]s, so that
// high-churn I/O submission does not allocate on every call. No other
// package in this module allocates its requests from a RequestSlab.
type RequestSlab[T any] struct {
	pool sync.Pool
}

// NewRequestSlab returns an empty slab.
func NewRequestSlab[T any]() *RequestSlab[T] {
	s := &RequestSlab[T]{}
	s.pool.New = func() any { return &Request[T]{} }
	return s
}

// Get returns a fresh Request[T] in the Init state, with Payload set to
// the zero value of T (callers fill it in before Submit).
func (s *RequestSlab[T]) Get() *Request[T] {
	r := s.pool.Get().(*Request[T])
	var zero T
	r.Payload = zero
	r.state = ReqInit
	r.resp = 0
	r.err = nil
	return r
}

// Put returns a Completed request to the pool for reuse. Panics if the
// request has not reached Completed, to catch a slab leak early rather
// than silently reusing a request still in flight.
func (s *RequestSlab[T]) Put(r *Request[T]) {
	if r.state != ReqCompleted {
		panic("ioring: put: request not Completed")
	}
	s.pool.Put(r)
}
