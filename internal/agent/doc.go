// Package agent orchestrates challan issuance and offline
// synchronization.
//
// The Coordinator is the submission front door and the sync state
// machine. Issuing a fine computes its amount from the rule table,
// validates it, and either submits it directly (online) or appends it
// to the durable queue (offline). When connectivity returns, the
// coordinator drains the queue against the ingestion endpoint: one
// record at a time, queue order, removing each entry only on confirmed
// success and isolating per-record failures so one bad record never
// blocks the rest.
//
// The drain cycle is a recurring Idle -> Draining -> Idle machine. A
// drain request while one is in progress is dropped, not queued; the
// next online transition or manual trigger picks up remaining work.
package agent
