package jobs

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

// testLedger runs the Ledger contract against an implementation.
// Both the in-memory and sqlite ledgers must behave identically.
func testLedger(t *testing.T, open func(t *testing.T) Ledger) {
	ctx := context.Background()

	t.Run("create and get", func(t *testing.T) {
		ledger := open(t)
		record := NewRecord("job-1", JobTypeBulkText)
		if err := ledger.Create(ctx, record); err != nil {
			t.Fatalf("Create() error = %v", err)
		}

		got, err := ledger.Get(ctx, "job-1")
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if got.JobID != "job-1" || got.JobType != JobTypeBulkText {
			t.Errorf("Get() = %+v", got)
		}
		if got.Status != StatusPending {
			t.Errorf("new record status = %s, want pending", got.Status)
		}
	})

	t.Run("get unknown job", func(t *testing.T) {
		ledger := open(t)
		_, err := ledger.Get(ctx, "nope")
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("Get() error = %v, want ErrNotFound", err)
		}
	})

	t.Run("lifecycle transitions", func(t *testing.T) {
		ledger := open(t)
		if err := ledger.Create(ctx, NewRecord("job-2", JobTypeBulkText)); err != nil {
			t.Fatalf("Create() error = %v", err)
		}

		if err := ledger.UpdateStatus(ctx, "job-2", StatusProcessing, "", ""); err != nil {
			t.Fatalf("UpdateStatus(processing) error = %v", err)
		}
		got, _ := ledger.Get(ctx, "job-2")
		if got.Status != StatusProcessing {
			t.Fatalf("status = %s, want processing", got.Status)
		}

		if err := ledger.UpdateStatus(ctx, "job-2", StatusCompleted, "the text", ""); err != nil {
			t.Fatalf("UpdateStatus(completed) error = %v", err)
		}
		got, _ = ledger.Get(ctx, "job-2")
		if got.Status != StatusCompleted {
			t.Fatalf("status = %s, want completed", got.Status)
		}
		if got.ResultText != "the text" {
			t.Errorf("result = %q", got.ResultText)
		}
	})

	t.Run("terminal state never regresses", func(t *testing.T) {
		ledger := open(t)
		if err := ledger.Create(ctx, NewRecord("job-3", JobTypeBulkText)); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		if err := ledger.UpdateStatus(ctx, "job-3", StatusCompleted, "done", ""); err != nil {
			t.Fatalf("UpdateStatus(completed) error = %v", err)
		}

		// A retried or late write is a no-op, never an error.
		if err := ledger.UpdateStatus(ctx, "job-3", StatusFailed, "", "late failure"); err != nil {
			t.Fatalf("UpdateStatus after terminal error = %v", err)
		}

		got, _ := ledger.Get(ctx, "job-3")
		if got.Status != StatusCompleted {
			t.Errorf("status = %s, terminal state regressed", got.Status)
		}
		if got.ResultText != "done" {
			t.Errorf("result = %q, overwritten after terminal", got.ResultText)
		}
	})

	t.Run("update unknown job", func(t *testing.T) {
		ledger := open(t)
		err := ledger.UpdateStatus(ctx, "ghost", StatusProcessing, "", "")
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("UpdateStatus() error = %v, want ErrNotFound", err)
		}
	})

	t.Run("failed job carries error message", func(t *testing.T) {
		ledger := open(t)
		if err := ledger.Create(ctx, NewRecord("job-4", JobTypeBulkText)); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		if err := ledger.UpdateStatus(ctx, "job-4", StatusFailed, "", "render exploded"); err != nil {
			t.Fatalf("UpdateStatus(failed) error = %v", err)
		}

		got, _ := ledger.Get(ctx, "job-4")
		if got.Status != StatusFailed || got.Error != "render exploded" {
			t.Errorf("Get() = %+v", got)
		}
	})

	t.Run("list newest first with filter and limit", func(t *testing.T) {
		ledger := open(t)

		base := time.Now().UTC().Add(-time.Minute)
		ids := []string{"old", "mid", "new"}
		for i, id := range ids {
			record := NewRecord(id, JobTypeBulkText)
			record.CreatedAt = base.Add(time.Duration(i) * time.Second)
			record.UpdatedAt = record.CreatedAt
			if err := ledger.Create(ctx, record); err != nil {
				t.Fatalf("Create(%s) error = %v", id, err)
			}
		}
		if err := ledger.UpdateStatus(ctx, "mid", StatusCompleted, "text", ""); err != nil {
			t.Fatalf("UpdateStatus() error = %v", err)
		}

		all, err := ledger.List(ctx, ListFilter{})
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if len(all) != 3 {
			t.Fatalf("List() returned %d records, want 3", len(all))
		}
		if all[0].JobID != "new" || all[2].JobID != "old" {
			t.Errorf("List() order = [%s %s %s], want newest first",
				all[0].JobID, all[1].JobID, all[2].JobID)
		}

		completed, err := ledger.List(ctx, ListFilter{Status: StatusCompleted})
		if err != nil {
			t.Fatalf("List(completed) error = %v", err)
		}
		if len(completed) != 1 || completed[0].JobID != "mid" {
			t.Errorf("List(completed) = %v", completed)
		}

		limited, err := ledger.List(ctx, ListFilter{Limit: 2})
		if err != nil {
			t.Fatalf("List(limit 2) error = %v", err)
		}
		if len(limited) != 2 {
			t.Errorf("List(limit 2) returned %d records", len(limited))
		}
	})

	t.Run("returned records are copies", func(t *testing.T) {
		ledger := open(t)
		if err := ledger.Create(ctx, NewRecord("job-5", JobTypeBulkText)); err != nil {
			t.Fatalf("Create() error = %v", err)
		}

		got, _ := ledger.Get(ctx, "job-5")
		got.Status = StatusFailed

		again, _ := ledger.Get(ctx, "job-5")
		if again.Status != StatusPending {
			t.Error("mutating a returned record leaked into the ledger")
		}
	})
}

func TestMemoryLedger(t *testing.T) {
	testLedger(t, func(t *testing.T) Ledger {
		return NewMemoryLedger()
	})
}

func TestMemoryLedger_DuplicateCreate(t *testing.T) {
	ledger := NewMemoryLedger()
	ctx := context.Background()

	if err := ledger.Create(ctx, NewRecord("dup", JobTypeBulkText)); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := ledger.Create(ctx, NewRecord("dup", JobTypeBulkText)); err == nil {
		t.Fatal("expected error creating duplicate job id")
	}
}

func TestSQLiteLedger(t *testing.T) {
	testLedger(t, func(t *testing.T) Ledger {
		ledger, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "jobs.db"))
		if err != nil {
			t.Fatalf("OpenSQLite() error = %v", err)
		}
		t.Cleanup(func() { ledger.Close() })
		return ledger
	})
}

func TestSQLiteLedger_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "jobs.db")

	ledger, err := OpenSQLite(ctx, path)
	if err != nil {
		t.Fatalf("OpenSQLite() error = %v", err)
	}
	if err := ledger.Create(ctx, NewRecord("persist", JobTypeBulkText)); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := ledger.UpdateStatus(ctx, "persist", StatusCompleted, "kept", ""); err != nil {
		t.Fatalf("UpdateStatus() error = %v", err)
	}
	if err := ledger.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	reopened, err := OpenSQLite(ctx, path)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer reopened.Close()

	got, err := reopened.Get(ctx, "persist")
	if err != nil {
		t.Fatalf("Get() after reopen error = %v", err)
	}
	if got.Status != StatusCompleted || got.ResultText != "kept" {
		t.Errorf("Get() after reopen = %+v", got)
	}
}
