package queue

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ayushhh101/challan-agent/internal/record"
)

func openTestQueue(t *testing.T) *Queue {
	t.Helper()
	q, err := Open(filepath.Join(t.TempDir(), "queue.db"))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { q.Close() })
	return q
}

func testDraft(train, name, category string) record.Draft {
	fare := decimal.NewFromInt(120)
	return record.Draft{
		Category:       category,
		PassengerName:  name,
		TrainNumber:    train,
		CoachNumber:    "S-4",
		Location:       "Pune Jn",
		FareAmount:     &fare,
		Amount:         decimal.NewFromInt(250),
		PaymentChannel: record.PaymentOffline,
		IssuedAt:       time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC),
	}
}

func TestOpen_CreatesDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queue.db")

	q, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer q.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("queue database file was not created")
	}
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queue.db")

	for i := 0; i < 3; i++ {
		q, err := Open(path)
		if err != nil {
			t.Fatalf("Open() iteration %d failed: %v", i, err)
		}
		q.Close()
	}
}

func TestEnqueue_RoundTrip(t *testing.T) {
	q := openTestQueue(t)
	ctx := context.Background()

	d := testDraft("12345", "A Kumar", "Travelling without ticket")
	entry, err := q.Enqueue(ctx, d)
	if err != nil {
		t.Fatalf("Enqueue() failed: %v", err)
	}
	if entry.LocalID == "" {
		t.Error("Enqueue() did not assign a local key")
	}

	entries, err := q.ListAll(ctx)
	if err != nil {
		t.Fatalf("ListAll() failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("ListAll() returned %d entries, want 1", len(entries))
	}

	got := entries[0].Draft
	if got.PassengerName != d.PassengerName || got.TrainNumber != d.TrainNumber || got.Category != d.Category {
		t.Errorf("round-tripped draft differs: got %+v", got)
	}
	if !got.Amount.Equal(d.Amount) {
		t.Errorf("amount changed in round trip: got %s want %s", got.Amount, d.Amount)
	}
	if got.FareAmount == nil || !got.FareAmount.Equal(*d.FareAmount) {
		t.Errorf("fare amount changed in round trip: got %v", got.FareAmount)
	}

	if err := q.Remove(ctx, entry.LocalID); err != nil {
		t.Fatalf("Remove() failed: %v", err)
	}
	entries, err = q.ListAll(ctx)
	if err != nil {
		t.Fatalf("ListAll() after Remove failed: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("queue not empty after Remove: %d entries", len(entries))
	}
}

func TestEnqueue_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queue.db")
	ctx := context.Background()

	q1, err := Open(path)
	if err != nil {
		t.Fatalf("first Open() failed: %v", err)
	}
	if _, err := q1.Enqueue(ctx, testDraft("12345", "A Kumar", "Smoking in train")); err != nil {
		t.Fatalf("Enqueue() failed: %v", err)
	}
	q1.Close()

	q2, err := Open(path)
	if err != nil {
		t.Fatalf("second Open() failed: %v", err)
	}
	defer q2.Close()

	entries, err := q2.ListAll(ctx)
	if err != nil {
		t.Fatalf("ListAll() failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("entry did not survive reopen: %d entries", len(entries))
	}
	if entries[0].Draft.PassengerName != "A Kumar" {
		t.Errorf("draft corrupted across reopen: %+v", entries[0].Draft)
	}
}

func TestListAll_InsertionOrder(t *testing.T) {
	q := openTestQueue(t)
	ctx := context.Background()

	names := []string{"First Passenger", "Second Passenger", "Third Passenger"}
	for _, name := range names {
		if _, err := q.Enqueue(ctx, testDraft("12345", name, "Travelling without ticket")); err != nil {
			t.Fatalf("Enqueue(%q) failed: %v", name, err)
		}
	}

	entries, err := q.ListAll(ctx)
	if err != nil {
		t.Fatalf("ListAll() failed: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("got %d entries, want 3", len(entries))
	}
	for i, name := range names {
		if entries[i].Draft.PassengerName != name {
			t.Errorf("entry %d: got %q, want %q (insertion order violated)", i, entries[i].Draft.PassengerName, name)
		}
	}
}

func TestEnqueue_RejectsDuplicate(t *testing.T) {
	q := openTestQueue(t)
	ctx := context.Background()

	d := testDraft("12345", "A Kumar", "Travelling without ticket")
	if _, err := q.Enqueue(ctx, d); err != nil {
		t.Fatalf("first Enqueue() failed: %v", err)
	}

	// Same train, name and category: rejected, queue length stays 1.
	_, err := q.Enqueue(ctx, d)
	if !errors.Is(err, ErrDuplicateDraft) {
		t.Fatalf("second Enqueue() = %v, want ErrDuplicateDraft", err)
	}
	entries, err := q.ListAll(ctx)
	if err != nil {
		t.Fatalf("ListAll() failed: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("queue length = %d after duplicate enqueue, want 1", len(entries))
	}

	// Differing key field: accepted.
	other := testDraft("54321", "A Kumar", "Travelling without ticket")
	if _, err := q.Enqueue(ctx, other); err != nil {
		t.Fatalf("Enqueue() of non-duplicate failed: %v", err)
	}
}

func TestEnqueue_DuplicateAllowedAfterSync(t *testing.T) {
	q := openTestQueue(t)
	ctx := context.Background()

	d := testDraft("12345", "A Kumar", "Travelling without ticket")
	entry, err := q.Enqueue(ctx, d)
	if err != nil {
		t.Fatalf("Enqueue() failed: %v", err)
	}

	// Once the matching entry is gone the same intent may be queued again.
	if err := q.Remove(ctx, entry.LocalID); err != nil {
		t.Fatalf("Remove() failed: %v", err)
	}
	if _, err := q.Enqueue(ctx, d); err != nil {
		t.Fatalf("Enqueue() after Remove failed: %v", err)
	}
}

func TestRemove_NotFound(t *testing.T) {
	q := openTestQueue(t)

	err := q.Remove(context.Background(), "no-such-key")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Remove() = %v, want ErrNotFound", err)
	}
}

func TestClearAll(t *testing.T) {
	q := openTestQueue(t)
	ctx := context.Background()

	for i, name := range []string{"A Kumar", "B Kumar"} {
		if _, err := q.Enqueue(ctx, testDraft("12345", name, "Smoking in train")); err != nil {
			t.Fatalf("Enqueue() %d failed: %v", i, err)
		}
	}

	if err := q.ClearAll(ctx); err != nil {
		t.Fatalf("ClearAll() failed: %v", err)
	}
	total, _, err := q.Counts(ctx)
	if err != nil {
		t.Fatalf("Counts() failed: %v", err)
	}
	if total != 0 {
		t.Errorf("Counts() total = %d after ClearAll, want 0", total)
	}
}

func TestMarkRejected_PoisonsAfterLimit(t *testing.T) {
	q := openTestQueue(t)
	ctx := context.Background()

	entry, err := q.Enqueue(ctx, testDraft("12345", "A Kumar", "Travelling without ticket"))
	if err != nil {
		t.Fatalf("Enqueue() failed: %v", err)
	}

	for i := 1; i < MaxRejections; i++ {
		poisoned, err := q.MarkRejected(ctx, entry.LocalID, "fare out of range")
		if err != nil {
			t.Fatalf("MarkRejected() %d failed: %v", i, err)
		}
		if poisoned {
			t.Fatalf("entry poisoned after %d rejections, limit is %d", i, MaxRejections)
		}
	}

	poisoned, err := q.MarkRejected(ctx, entry.LocalID, "fare out of range")
	if err != nil {
		t.Fatalf("final MarkRejected() failed: %v", err)
	}
	if !poisoned {
		t.Errorf("entry not poisoned after %d rejections", MaxRejections)
	}

	entries, err := q.ListAll(ctx)
	if err != nil {
		t.Fatalf("ListAll() failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("poisoned entry must stay queued, got %d entries", len(entries))
	}
	if !entries[0].Poisoned || entries[0].RejectCount != MaxRejections {
		t.Errorf("entry = %+v, want poisoned with reject_count=%d", entries[0], MaxRejections)
	}
	if entries[0].LastError != "fare out of range" {
		t.Errorf("last_error = %q", entries[0].LastError)
	}
}

func TestRequeue_ClearsPoison(t *testing.T) {
	q := openTestQueue(t)
	ctx := context.Background()

	entry, err := q.Enqueue(ctx, testDraft("12345", "A Kumar", "Travelling without ticket"))
	if err != nil {
		t.Fatalf("Enqueue() failed: %v", err)
	}
	for i := 0; i < MaxRejections; i++ {
		if _, err := q.MarkRejected(ctx, entry.LocalID, "rejected"); err != nil {
			t.Fatalf("MarkRejected() failed: %v", err)
		}
	}

	if err := q.Requeue(ctx, entry.LocalID); err != nil {
		t.Fatalf("Requeue() failed: %v", err)
	}
	entries, err := q.ListAll(ctx)
	if err != nil {
		t.Fatalf("ListAll() failed: %v", err)
	}
	e := entries[0]
	if e.Poisoned || e.RejectCount != 0 || e.LastError != "" {
		t.Errorf("Requeue() did not reset entry: %+v", e)
	}
}

func TestCounts(t *testing.T) {
	q := openTestQueue(t)
	ctx := context.Background()

	a, err := q.Enqueue(ctx, testDraft("12345", "A Kumar", "Travelling without ticket"))
	if err != nil {
		t.Fatalf("Enqueue() failed: %v", err)
	}
	if _, err := q.Enqueue(ctx, testDraft("12345", "B Kumar", "Travelling without ticket")); err != nil {
		t.Fatalf("Enqueue() failed: %v", err)
	}
	for i := 0; i < MaxRejections; i++ {
		if _, err := q.MarkRejected(ctx, a.LocalID, "rejected"); err != nil {
			t.Fatalf("MarkRejected() failed: %v", err)
		}
	}

	total, poisoned, err := q.Counts(ctx)
	if err != nil {
		t.Fatalf("Counts() failed: %v", err)
	}
	if total != 2 || poisoned != 1 {
		t.Errorf("Counts() = (%d, %d), want (2, 1)", total, poisoned)
	}
}

func TestFailureLog_ReplaceAndList(t *testing.T) {
	q := openTestQueue(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	failures := []Failure{
		{LocalID: "k1", Draft: testDraft("12345", "A Kumar", "Smoking in train"), Reason: "server unreachable", RecordedAt: now},
		{LocalID: "k2", Draft: testDraft("12345", "B Kumar", "Smoking in train"), Reason: "invalid coach", Permanent: true, RecordedAt: now},
	}
	if err := q.ReplaceFailureLog(ctx, failures); err != nil {
		t.Fatalf("ReplaceFailureLog() failed: %v", err)
	}

	got, err := q.ListFailures(ctx)
	if err != nil {
		t.Fatalf("ListFailures() failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ListFailures() returned %d, want 2", len(got))
	}
	if got[0].LocalID != "k1" || got[1].LocalID != "k2" {
		t.Errorf("failure log order wrong: %q then %q", got[0].LocalID, got[1].LocalID)
	}
	if got[0].Permanent || !got[1].Permanent {
		t.Errorf("permanent flags wrong: %+v", got)
	}
	if got[1].Reason != "invalid coach" {
		t.Errorf("reason = %q", got[1].Reason)
	}

	// A clean drain overwrites the log with nothing.
	if err := q.ReplaceFailureLog(ctx, nil); err != nil {
		t.Fatalf("ReplaceFailureLog(nil) failed: %v", err)
	}
	got, err = q.ListFailures(ctx)
	if err != nil {
		t.Fatalf("ListFailures() after clear failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("failure log not cleared: %d entries", len(got))
	}
}

func TestFailureLog_Overwritten(t *testing.T) {
	q := openTestQueue(t)
	ctx := context.Background()

	now := time.Now().UTC()
	first := []Failure{{LocalID: "old", Draft: testDraft("1", "A Kumar", "Smoking in train"), Reason: "r1", RecordedAt: now}}
	second := []Failure{{LocalID: "new", Draft: testDraft("2", "B Kumar", "Smoking in train"), Reason: "r2", RecordedAt: now}}

	if err := q.ReplaceFailureLog(ctx, first); err != nil {
		t.Fatalf("ReplaceFailureLog() failed: %v", err)
	}
	if err := q.ReplaceFailureLog(ctx, second); err != nil {
		t.Fatalf("second ReplaceFailureLog() failed: %v", err)
	}

	got, err := q.ListFailures(ctx)
	if err != nil {
		t.Fatalf("ListFailures() failed: %v", err)
	}
	if len(got) != 1 || got[0].LocalID != "new" {
		t.Errorf("previous drain's log not overwritten: %+v", got)
	}
}
