package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ayushhh101/challan-agent/internal/record"
)

// Failure is one (entry, reason) pair from the most recent drain
// attempt. Diagnostic only; the queue entry itself remains
// authoritative.
type Failure struct {
	LocalID    string
	Draft      record.Draft
	Reason     string
	Permanent  bool // true for server rejections (4xx), false for transient failures
	RecordedAt time.Time
}

// ReplaceFailureLog overwrites the persisted failure log with the
// failures from the drain that just finished. Passing an empty slice
// clears any previous log, which is the success case.
func (q *Queue) ReplaceFailureLog(ctx context.Context, failures []Failure) error {
	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("replace failure log: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM sync_failures`); err != nil {
		return fmt.Errorf("replace failure log: %w", err)
	}

	for _, f := range failures {
		draftJSON, err := json.Marshal(f.Draft)
		if err != nil {
			return fmt.Errorf("replace failure log: encoding draft %s: %w", f.LocalID, err)
		}
		permanent := 0
		if f.Permanent {
			permanent = 1
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO sync_failures (local_id, draft, reason, permanent, recorded_at)
			VALUES (?, ?, ?, ?, ?)
		`, f.LocalID, string(draftJSON), f.Reason, permanent, f.RecordedAt.UTC().Format(time.RFC3339))
		if err != nil {
			return fmt.Errorf("replace failure log: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("replace failure log: %w", err)
	}
	return nil
}

// ListFailures returns the persisted failure log of the most recent
// drain attempt, in drain order.
func (q *Queue) ListFailures(ctx context.Context) ([]Failure, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT local_id, draft, reason, permanent, recorded_at
		FROM sync_failures
		ORDER BY rowid
	`)
	if err != nil {
		return nil, fmt.Errorf("list failures: %w", err)
	}
	defer rows.Close()

	var failures []Failure
	for rows.Next() {
		var (
			f          Failure
			draftJSON  string
			permanent  int
			recordedAt string
		)
		if err := rows.Scan(&f.LocalID, &draftJSON, &f.Reason, &permanent, &recordedAt); err != nil {
			return nil, fmt.Errorf("list failures: %w", err)
		}
		if err := json.Unmarshal([]byte(draftJSON), &f.Draft); err != nil {
			return nil, fmt.Errorf("list failures: decoding draft %s: %w", f.LocalID, err)
		}
		f.Permanent = permanent != 0
		ts, err := time.Parse(time.RFC3339, recordedAt)
		if err != nil {
			return nil, fmt.Errorf("list failures: parsing recorded_at: %w", err)
		}
		f.RecordedAt = ts
		failures = append(failures, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list failures: %w", err)
	}

	return failures, nil
}
