package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ayushhh101/challan-agent/internal/record"
)

// Entry wraps a queued draft with queue metadata. One Entry exists per
// queued draft; it ceases to exist once synced or manually cleared.
type Entry struct {
	// LocalID is the locally assigned key, distinct from any
	// server-assigned identifier.
	LocalID    string
	EnqueuedAt time.Time
	Draft      record.Draft

	// RejectCount is the number of consecutive server rejections seen
	// for this entry during drains.
	RejectCount int
	// Poisoned marks an entry that reached MaxRejections. Poisoned
	// entries are skipped by drains until requeued or cleared.
	Poisoned bool
	// LastError is the most recent rejection reason, if any.
	LastError string
}

// Enqueue appends a draft to the queue, assigning it a local key.
//
// Returns ErrDuplicateDraft if a still-queued entry shares the draft's
// train number, passenger name and category (the same-intent heuristic
// of record.IsDuplicate, evaluated against the dedup index).
func (q *Queue) Enqueue(ctx context.Context, d record.Draft) (Entry, error) {
	var count int
	err := q.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM queue_entries
		WHERE train_number = ? AND passenger_name = ? AND category = ?
	`, d.TrainNumber, d.PassengerName, d.Category).Scan(&count)
	if err != nil {
		return Entry{}, fmt.Errorf("enqueue: checking duplicates: %w", err)
	}
	if count > 0 {
		return Entry{}, fmt.Errorf("enqueue: %w", ErrDuplicateDraft)
	}

	draftJSON, err := json.Marshal(d)
	if err != nil {
		return Entry{}, fmt.Errorf("enqueue: encoding draft: %w", err)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return Entry{}, fmt.Errorf("enqueue: generating local key: %w", err)
	}

	entry := Entry{
		LocalID:    id.String(),
		EnqueuedAt: time.Now().UTC().Truncate(time.Second),
		Draft:      d,
	}

	_, err = q.db.ExecContext(ctx, `
		INSERT INTO queue_entries
		(local_id, enqueued_at, draft, train_number, passenger_name, category)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		entry.LocalID,
		entry.EnqueuedAt.Format(time.RFC3339),
		string(draftJSON),
		d.TrainNumber,
		d.PassengerName,
		d.Category,
	)
	if err != nil {
		return Entry{}, fmt.Errorf("enqueue: %w", err)
	}

	return entry, nil
}

// ListAll returns every queue entry in insertion order, oldest first.
// Drain callers snapshot this result before iterating.
func (q *Queue) ListAll(ctx context.Context) ([]Entry, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT local_id, enqueued_at, draft, reject_count, poisoned, last_error
		FROM queue_entries
		ORDER BY rowid
	`)
	if err != nil {
		return nil, fmt.Errorf("list queue: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list queue: %w", err)
	}

	return entries, nil
}

// scanEntry decodes one queue_entries row.
func scanEntry(rows *sql.Rows) (Entry, error) {
	var (
		e          Entry
		enqueuedAt string
		draftJSON  string
		poisoned   int
	)
	if err := rows.Scan(&e.LocalID, &enqueuedAt, &draftJSON, &e.RejectCount, &poisoned, &e.LastError); err != nil {
		return Entry{}, fmt.Errorf("scan queue entry: %w", err)
	}

	ts, err := time.Parse(time.RFC3339, enqueuedAt)
	if err != nil {
		return Entry{}, fmt.Errorf("entry %s: parsing enqueued_at: %w", e.LocalID, err)
	}
	e.EnqueuedAt = ts

	if err := json.Unmarshal([]byte(draftJSON), &e.Draft); err != nil {
		return Entry{}, fmt.Errorf("entry %s: decoding draft: %w", e.LocalID, err)
	}
	e.Poisoned = poisoned != 0

	return e, nil
}

// Remove deletes the entry with the given local key.
// Called only after a confirmed ingestion success, or by an operator.
// Returns ErrNotFound if no entry has that key.
func (q *Queue) Remove(ctx context.Context, localID string) error {
	res, err := q.db.ExecContext(ctx, `DELETE FROM queue_entries WHERE local_id = ?`, localID)
	if err != nil {
		return fmt.Errorf("remove %s: %w", localID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("remove %s: %w", localID, err)
	}
	if n == 0 {
		return fmt.Errorf("remove %s: %w", localID, ErrNotFound)
	}
	return nil
}

// ClearAll deletes every queue entry.
func (q *Queue) ClearAll(ctx context.Context) error {
	if _, err := q.db.ExecContext(ctx, `DELETE FROM queue_entries`); err != nil {
		return fmt.Errorf("clear queue: %w", err)
	}
	return nil
}

// Counts returns the total number of queued entries and how many of
// them are poisoned.
func (q *Queue) Counts(ctx context.Context) (total, poisoned int, err error) {
	err = q.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(poisoned), 0) FROM queue_entries
	`).Scan(&total, &poisoned)
	if err != nil {
		return 0, 0, fmt.Errorf("count queue: %w", err)
	}
	return total, poisoned, nil
}

// MarkRejected records a server rejection (HTTP 4xx) against an entry.
// The entry stays queued; after MaxRejections consecutive rejections it
// is poisoned. Transient failures must not be recorded here.
//
// Returns whether the entry is now poisoned.
func (q *Queue) MarkRejected(ctx context.Context, localID, reason string) (bool, error) {
	res, err := q.db.ExecContext(ctx, `
		UPDATE queue_entries
		SET reject_count = reject_count + 1,
		    last_error   = ?,
		    poisoned     = CASE WHEN reject_count + 1 >= ? THEN 1 ELSE poisoned END
		WHERE local_id = ?
	`, reason, MaxRejections, localID)
	if err != nil {
		return false, fmt.Errorf("mark rejected %s: %w", localID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark rejected %s: %w", localID, err)
	}
	if n == 0 {
		return false, fmt.Errorf("mark rejected %s: %w", localID, ErrNotFound)
	}

	var poisoned int
	err = q.db.QueryRowContext(ctx, `SELECT poisoned FROM queue_entries WHERE local_id = ?`, localID).Scan(&poisoned)
	if err != nil {
		return false, fmt.Errorf("mark rejected %s: %w", localID, err)
	}
	return poisoned != 0, nil
}

// Requeue clears an entry's poison state and rejection count so the
// next drain attempts it again. Manual operator action.
func (q *Queue) Requeue(ctx context.Context, localID string) error {
	res, err := q.db.ExecContext(ctx, `
		UPDATE queue_entries
		SET reject_count = 0, poisoned = 0, last_error = ''
		WHERE local_id = ?
	`, localID)
	if err != nil {
		return fmt.Errorf("requeue %s: %w", localID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("requeue %s: %w", localID, err)
	}
	if n == 0 {
		return fmt.Errorf("requeue %s: %w", localID, ErrNotFound)
	}
	return nil
}
