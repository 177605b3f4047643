// Package bridge hands engine mutations from transport goroutines to the
// single goroutine that owns engine state, and carries their outcomes back.
//
// # Data flow
//
//	handler ──Submit──▶ Queue ──drain──▶ Pump ──Exclusive──▶ engine.Store
//	   ▲                                   │
//	   └────────── reply slot ◀────────────┘
//
// A handler wraps the mutation in a Task and calls Bridge.Submit, which
// enqueues the task and blocks until its Outcome arrives. The Pump wakes on a
// fixed ticker and whenever a task is enqueued, drains every task queued at
// that moment and runs them one after another in FIFO order.
//
// # Guarantees
//
//   - Tasks run in submission order, one at a time, never concurrently with
//     each other.
//   - Every task that reaches the queue runs exactly once and produces exactly
//     one Outcome, delivered to that task's own reply slot.
//   - A task that returns an error or panics yields a failure Outcome. The
//     pump keeps running.
//   - A queued task cannot be withdrawn. When the caller's wait times out the
//     task still runs; its Outcome is recorded by observers and discarded.
package bridge
