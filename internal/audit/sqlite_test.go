package audit

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *SQLiteRecorder {
	t.Helper()
	store, err := OpenSQLite(filepath.Join(t.TempDir(), "audit.db"), discardLogger())
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return store
}

func TestSQLiteRecordAndQuery(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	recs := []Record{
		NewRecord("ls", []string{"-la"}, OutcomeSuccess),
		NewRecord("git", []string{"status"}, OutcomeSuccess),
		NewRecord("ls", nil, OutcomeRejected),
	}
	for i := range recs {
		recs[i].Timestamp = recs[i].Timestamp.Add(time.Duration(i) * time.Second)
		if err := store.Record(ctx, recs[i]); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	all, err := store.Query(ctx, "", 0)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("Query returned %d records, want 3", len(all))
	}
	// Newest first.
	if all[0].ID != recs[2].ID {
		t.Errorf("first record = %s, want newest %s", all[0].ID, recs[2].ID)
	}

	lsOnly, err := store.Query(ctx, "ls", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(lsOnly) != 2 {
		t.Errorf("program filter returned %d records, want 2", len(lsOnly))
	}
	for _, rec := range lsOnly {
		if rec.Program != "ls" {
			t.Errorf("filtered query returned program %q", rec.Program)
		}
	}
}

func TestSQLiteQueryLimit(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	for range 5 {
		if err := store.Record(ctx, NewRecord("ls", nil, OutcomeSuccess)); err != nil {
			t.Fatal(err)
		}
	}

	got, err := store.Query(ctx, "", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Errorf("Query with limit 2 returned %d records", len(got))
	}
}

func TestSQLitePreservesExitCode(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	code := 3
	rec := NewRecord("ls", nil, OutcomeFailed)
	rec.ExitCode = &code
	rec.ElapsedMS = 42
	rec.Truncated = true
	if err := store.Record(ctx, rec); err != nil {
		t.Fatal(err)
	}

	got, err := store.Query(ctx, "", 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d records", len(got))
	}
	if got[0].ExitCode == nil || *got[0].ExitCode != 3 {
		t.Errorf("ExitCode = %v, want 3", got[0].ExitCode)
	}
	if got[0].ElapsedMS != 42 || !got[0].Truncated {
		t.Errorf("record = %+v, want elapsed 42 truncated", got[0])
	}

	// A timed-out record keeps its nil exit code.
	timedOut := NewRecord("sleep", nil, OutcomeTimedOut)
	if err := store.Record(ctx, timedOut); err != nil {
		t.Fatal(err)
	}
	got, err = store.Query(ctx, "sleep", 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ExitCode != nil {
		t.Errorf("timed-out record exit code = %v, want nil", got[0].ExitCode)
	}
}

func TestSQLitePruneBefore(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	old := NewRecord("ls", nil, OutcomeSuccess)
	old.Timestamp = time.Now().UTC().Add(-48 * time.Hour)
	fresh := NewRecord("ls", nil, OutcomeSuccess)
	for _, rec := range []Record{old, fresh} {
		if err := store.Record(ctx, rec); err != nil {
			t.Fatal(err)
		}
	}

	removed, err := store.PruneBefore(ctx, time.Now().UTC().Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("PruneBefore: %v", err)
	}
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}

	remaining, err := store.Query(ctx, "", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(remaining) != 1 || remaining[0].ID != fresh.ID {
		t.Errorf("remaining = %+v, want only the fresh record", remaining)
	}
}

func TestPrunerRejectsBadSchedule(t *testing.T) {
	store := openTestStore(t)
	p := NewPruner(store, 24*time.Hour, discardLogger())

	if _, err := p.Start("not a cron spec"); err == nil {
		t.Fatal("Start accepted an invalid schedule")
	}
}

func TestPrunerSweep(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	old := NewRecord("ls", nil, OutcomeSuccess)
	old.Timestamp = time.Now().UTC().Add(-48 * time.Hour)
	if err := store.Record(ctx, old); err != nil {
		t.Fatal(err)
	}

	p := NewPruner(store, 24*time.Hour, discardLogger())
	p.sweep()

	remaining, err := store.Query(ctx, "", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(remaining) != 0 {
		t.Errorf("%d records survived the sweep, want 0", len(remaining))
	}
}
