// Package queue provides the local durable queue of not-yet-submitted
// fine records, backed by SQLite on the device.
//
// Entries survive process restarts and are listed in insertion order;
// the sync drain processes them oldest first. The queue is the only
// shared mutable resource in the subsystem: all mutation funnels
// through Enqueue, Remove, MarkRejected and ClearAll, and the drain
// path snapshots ListAll before iterating so records enqueued mid-drain
// are picked up on the next drain rather than skipped or duplicated.
//
// The package also persists the failure log of the most recent drain
// attempt. That log is diagnostic only and is overwritten on each
// drain; it is never authoritative.
package queue
