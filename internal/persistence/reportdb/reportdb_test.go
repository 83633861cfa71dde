package reportdb

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"railverse.dev/internal/netsync"
)

func TestReportRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reports.db")
	ctx := context.Background()

	db, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	rep := netsync.DesyncReport{
		At:          time.Now(),
		Tick:        4711,
		Participant: 3,
		Reason:      "digest mismatch at tick 4711",
		Digest:      0xDEADBEEFCAFE,
	}
	if err := db.Report(ctx, rep); err != nil {
		t.Fatalf("report: %v", err)
	}
	if err := db.RecordDump(4711, "main", "0: CmdBuildObject tile=515 ok cost=300"); err != nil {
		t.Fatalf("dump: %v", err)
	}

	// The insert happens on the writer goroutine; Close drains it.
	if err := db.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	db, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer db.Close()

	reps, err := db.Desyncs(ctx, 1)
	if err != nil {
		t.Fatalf("desyncs: %v", err)
	}
	if len(reps) != 1 {
		t.Fatalf("got %d reports, want 1", len(reps))
	}
	got := reps[0]
	if got.Tick != rep.Tick || got.Participant != rep.Participant ||
		got.Reason != rep.Reason || got.Digest != rep.Digest {
		t.Fatalf("report diverged: got %+v want %+v", got, rep)
	}
}

func TestReportPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reports.db")
	ctx := context.Background()

	db, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	for i := uint64(1); i <= 3; i++ {
		if err := db.Report(ctx, netsync.DesyncReport{
			At:          time.Now(),
			Tick:        100 * i,
			Participant: uint32(i),
			Reason:      "exec pass disagreed with test pass",
			Digest:      i,
		}); err != nil {
			t.Fatalf("report %d: %v", i, err)
		}
	}
	if err := db.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	db, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer db.Close()

	reps, err := db.Desyncs(ctx, 10)
	if err != nil {
		t.Fatalf("desyncs: %v", err)
	}
	if len(reps) != 3 {
		t.Fatalf("got %d reports, want 3", len(reps))
	}
	// Newest first.
	if reps[0].Tick != 300 || reps[2].Tick != 100 {
		t.Fatalf("wrong order: %d .. %d", reps[0].Tick, reps[2].Tick)
	}
	if reps[0].Digest != 3 {
		t.Fatalf("digest = %d, want 3", reps[0].Digest)
	}
}
