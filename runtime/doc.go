// Package runtime implements the kernel's task scheduler: one Worker per
// vCPU (an OS thread parked under GOMAXPROCS, sized via
// go.uber.org/automaxprocs), each with three priority-ordered run queues,
// a global Injector used when a Worker's local queue is full, a
// VcpuSelector that places newly-spawned or migrated Tasks, and a
// PriorityScheduler that ties them together and periodically rebalances
// load across vCPUs.
//
// Grounded on eventloop/ingress.go's ChunkedIngress/ChunkedQueue idiom
// (mutex-protected chunked linked list beats lock-free under the
// contention a shared run queue sees — the teacher's own benchmarked
// design call, reused here for the Injector) and eventloop/state.go's
// FastState (atomic CAS state machine, reused for Worker run/sleep/stop
// states).
package runtime
