// Package broadcast holds the durable data model of the notification
// engine: broadcasts, per-recipient delivery records, and outbound email
// job records, together with in-memory and postgres-backed stores.
//
// Two invariants live here. A delivery record is unique per
// (broadcast, recipient) pair, and email job status transitions are
// monotonic: pending -> sent or pending -> failed, both terminal.
package broadcast
