// Package queue implements the outbound job queue of the notification
// engine: an Enqueuer that durably accepts tasks, a pull-based Worker with
// bounded concurrency and a fixed retry budget (exponential backoff, base
// delay doubling per attempt), and two storage backends - Redis as the
// production broker and an in-memory store for tests and broker-less
// deployments.
//
// A task that exhausts its retry budget lands in the terminal failed
// status; the Worker's TerminalFailureHook lets the task owner reconcile
// its own records when that happens.
package queue
