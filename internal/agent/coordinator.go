package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/ayushhh101/challan-agent/internal/ingest"
	"github.com/ayushhh101/challan-agent/internal/netwatch"
	"github.com/ayushhh101/challan-agent/internal/queue"
	"github.com/ayushhh101/challan-agent/internal/record"
	"github.com/ayushhh101/challan-agent/internal/rules"
)

// Submitter submits one draft to the remote ingestion endpoint.
// Implemented by ingest.Client (production) and fakes (tests).
type Submitter interface {
	Submit(ctx context.Context, d record.Draft) (ingest.IssueResult, error)
}

// Connectivity is the observer seam: a synchronous reachability read
// plus transition events. Implemented by netwatch.Watcher.
type Connectivity interface {
	Online() bool
	Events() <-chan netwatch.State
}

// Coordinator states. The drain cycle is recurring: every drain ends
// back in Idle.
const (
	stateIdle int32 = iota
	stateDraining
)

// ErrDrainInProgress is returned when a drain is requested while one
// is already running. The request is dropped, never queued.
var ErrDrainInProgress = errors.New("drain already in progress")

// DefaultSettleDelay is how long the coordinator waits after an online
// transition before draining, so a network flap that drops again
// within the window triggers nothing.
const DefaultSettleDelay = 500 * time.Millisecond

// Coordinator owns the queue, the submitter and the connectivity
// observer. See the package documentation for the state machine.
type Coordinator struct {
	table  *rules.Table
	queue  *queue.Queue
	submit Submitter
	conn   Connectivity
	logger *slog.Logger
	settle time.Duration

	state   atomic.Int32
	trigger chan struct{}
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Coordinator) { c.logger = l }
}

// WithSettleDelay overrides the post-transition settle delay.
func WithSettleDelay(d time.Duration) Option {
	return func(c *Coordinator) { c.settle = d }
}

// New creates a Coordinator.
func New(table *rules.Table, q *queue.Queue, s Submitter, conn Connectivity, opts ...Option) *Coordinator {
	c := &Coordinator{
		table:   table,
		queue:   q,
		submit:  s,
		conn:    conn,
		logger:  slog.Default(),
		settle:  DefaultSettleDelay,
		trigger: make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// IssueOutcome reports what happened to an issued fine.
type IssueOutcome struct {
	// Queued is true when the draft went to the local durable queue
	// (offline path) rather than straight to the server.
	Queued bool
	// LocalID is the queue key when Queued.
	LocalID string
	// ServerID is the server-assigned identifier when submitted
	// directly.
	ServerID string
	// Draft is the record as submitted or queued, amount computed.
	Draft record.Draft
}

// Issue is the submission front door.
//
// The draft's amount is derived from the rule table, then the full
// validation sequence runs; both the direct-online and offline-enqueue
// paths share that identical sequence. Online, the draft goes straight
// to the ingestion endpoint and any failure is surfaced to the caller.
// Offline, the duplicate heuristic guards the enqueue.
func (c *Coordinator) Issue(ctx context.Context, d record.Draft) (IssueOutcome, error) {
	if d.IssuedAt.IsZero() {
		d.IssuedAt = time.Now().UTC()
	}

	if err := record.ComputeAmount(c.table, &d); err != nil {
		return IssueOutcome{}, err
	}
	if err := record.Validate(c.table, d); err != nil {
		return IssueOutcome{}, err
	}

	if c.conn.Online() {
		result, err := c.submit.Submit(ctx, d)
		if err != nil {
			return IssueOutcome{}, fmt.Errorf("direct submission failed: %w", err)
		}
		c.logger.Info("challan submitted",
			"server_id", result.ServerID,
			"category", d.Category,
			"amount", d.Amount.String(),
		)
		return IssueOutcome{ServerID: result.ServerID, Draft: d}, nil
	}

	entry, err := c.queue.Enqueue(ctx, d)
	if err != nil {
		return IssueOutcome{}, err
	}
	c.logger.Info("challan queued for sync",
		"local_id", entry.LocalID,
		"category", d.Category,
		"amount", d.Amount.String(),
	)
	return IssueOutcome{Queued: true, LocalID: entry.LocalID, Draft: d}, nil
}

// DrainReport summarizes one drain cycle.
type DrainReport struct {
	Attempted int
	Submitted int
	Failed    int
	// SkippedPoisoned counts entries skipped because they previously
	// reached the rejection limit.
	SkippedPoisoned int
	Failures        []queue.Failure
}

// Drain runs one drain cycle: snapshot the queue, submit each entry in
// insertion order, remove each from the queue only on confirmed
// success, and record failures without aborting the batch. The failure
// log of the previous drain is overwritten (cleared if this one is
// clean).
//
// Returns ErrDrainInProgress if a cycle is already running; the
// request is dropped.
func (c *Coordinator) Drain(ctx context.Context) (DrainReport, error) {
	if !c.state.CompareAndSwap(stateIdle, stateDraining) {
		return DrainReport{}, ErrDrainInProgress
	}
	defer c.state.Store(stateIdle)

	// Snapshot before iterating: entries enqueued mid-drain are picked
	// up on the next cycle, never skipped or duplicated.
	snapshot, err := c.queue.ListAll(ctx)
	if err != nil {
		return DrainReport{}, fmt.Errorf("drain: %w", err)
	}

	var report DrainReport
	for _, entry := range snapshot {
		if err := ctx.Err(); err != nil {
			// Shutdown mid-drain is safe: everything not yet removed
			// stays queued for the next run.
			return report, fmt.Errorf("drain interrupted: %w", err)
		}

		if entry.Poisoned {
			report.SkippedPoisoned++
			c.logger.Debug("skipping poisoned entry", "local_id", entry.LocalID)
			continue
		}

		report.Attempted++
		result, err := c.submit.Submit(ctx, entry.Draft)
		if err != nil {
			report.Failed++
			report.Failures = append(report.Failures, c.recordFailure(ctx, entry, err))
			continue
		}

		if err := c.queue.Remove(ctx, entry.LocalID); err != nil {
			// Local storage failure, not a submission failure. Abort:
			// continuing could resubmit a record the server already
			// has once this entry is retried.
			return report, fmt.Errorf("drain: removing synced entry %s: %w", entry.LocalID, err)
		}
		report.Submitted++
		c.logger.Info("queued challan synced",
			"local_id", entry.LocalID,
			"server_id", result.ServerID,
		)
	}

	if err := c.queue.ReplaceFailureLog(ctx, report.Failures); err != nil {
		return report, fmt.Errorf("drain: %w", err)
	}

	c.logger.Info("drain finished",
		"attempted", report.Attempted,
		"submitted", report.Submitted,
		"failed", report.Failed,
		"skipped_poisoned", report.SkippedPoisoned,
	)
	return report, nil
}

// recordFailure classifies a submission error, updates the entry's
// rejection bookkeeping for permanent rejections, and returns the
// failure-log line.
func (c *Coordinator) recordFailure(ctx context.Context, entry queue.Entry, submitErr error) queue.Failure {
	failure := queue.Failure{
		LocalID:    entry.LocalID,
		Draft:      entry.Draft,
		Reason:     submitErr.Error(),
		Permanent:  ingest.IsRejected(submitErr),
		RecordedAt: time.Now().UTC(),
	}

	if failure.Permanent {
		poisoned, err := c.queue.MarkRejected(ctx, entry.LocalID, failure.Reason)
		if err != nil {
			c.logger.Error("recording rejection failed", "local_id", entry.LocalID, "error", err)
		} else if poisoned {
			c.logger.Warn("entry poisoned after repeated rejections",
				"local_id", entry.LocalID,
				"rejections", queue.MaxRejections,
			)
		}
	}

	c.logger.Warn("queued challan failed to sync",
		"local_id", entry.LocalID,
		"permanent", failure.Permanent,
		"error", submitErr,
	)
	return failure
}

// TriggerSync requests a drain from the Run loop, the manual
// "sync now" affordance. Non-blocking; redundant triggers coalesce.
func (c *Coordinator) TriggerSync() {
	select {
	case c.trigger <- struct{}{}:
	default:
	}
}

// Run is the coordinator's event loop. On start it drains immediately
// if the device is already online with queued work, then reacts to
// connectivity transitions and manual triggers until the context is
// done.
//
// Must be called from exactly one goroutine.
func (c *Coordinator) Run(ctx context.Context) error {
	if c.conn.Online() {
		c.drainIfPending(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case state, ok := <-c.conn.Events():
			if !ok {
				return fmt.Errorf("connectivity event stream closed")
			}
			if state != netwatch.Online {
				continue
			}
			if !c.settleOnline(ctx) {
				continue
			}
			c.drainIfPending(ctx)

		case <-c.trigger:
			c.drainIfPending(ctx)
		}
	}
}

// settleOnline waits out the settle delay after an online transition
// and re-reads reachability, so a flap that drops within the window is
// ignored. Returns false if still offline or the context ended.
func (c *Coordinator) settleOnline(ctx context.Context) bool {
	timer := time.NewTimer(c.settle)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
	}

	if !c.conn.Online() {
		c.logger.Debug("online transition did not settle, skipping drain")
		return false
	}
	return true
}

// drainIfPending drains when the queue is non-empty. A concurrent
// drain makes this a no-op.
func (c *Coordinator) drainIfPending(ctx context.Context) {
	total, _, err := c.queue.Counts(ctx)
	if err != nil {
		c.logger.Error("reading queue size failed", "error", err)
		return
	}
	if total == 0 {
		return
	}

	if _, err := c.Drain(ctx); err != nil {
		if errors.Is(err, ErrDrainInProgress) {
			c.logger.Debug("drain request dropped, one already running")
			return
		}
		c.logger.Error("drain failed", "error", err)
	}
}

// Status is the operator-visible summary: current reachability and
// queue pressure.
type Status struct {
	Online   bool
	Pending  int
	Poisoned int
}

// Status reports current reachability and queue counts.
func (c *Coordinator) Status(ctx context.Context) (Status, error) {
	total, poisoned, err := c.queue.Counts(ctx)
	if err != nil {
		return Status{}, err
	}
	return Status{
		Online:   c.conn.Online(),
		Pending:  total,
		Poisoned: poisoned,
	}, nil
}
