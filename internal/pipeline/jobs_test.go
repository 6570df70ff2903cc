package pipeline

import (
	"testing"
	"time"

	"github.com/dgallion1/wikipub/internal/matcher"
	"github.com/dgallion1/wikipub/internal/transfer"
)

func TestContentHashHex_Consistency(t *testing.T) {
	data := []byte("hello world")
	h1 := ContentHashHex(data)
	h2 := ContentHashHex(data)
	if h1 != h2 {
		t.Errorf("expected identical hashes, got %q and %q", h1, h2)
	}
	// SHA-256 of "hello world" is well-known.
	want := "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9"
	if h1 != want {
		t.Errorf("expected hash %q, got %q", want, h1)
	}
}

func TestJob_StateTransitions(t *testing.T) {
	job := &Job{
		ID:        "test-1",
		Status:    StatusQueued,
		Phase:     "queued",
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	transitions := []struct {
		status JobStatus
		phase  string
	}{
		{StatusRendering, "rendering source"},
		{StatusFetching, "fetching page"},
		{StatusPreserving, "preserving comments"},
		{StatusUpdating, "updating page"},
		{StatusCompleted, "done"},
	}

	for _, tr := range transitions {
		before := job.UpdatedAt
		time.Sleep(time.Millisecond)
		job.SetStatus(tr.status, tr.phase)

		if job.Status != tr.status {
			t.Errorf("expected status %q, got %q", tr.status, job.Status)
		}
		if job.Phase != tr.phase {
			t.Errorf("expected phase %q, got %q", tr.phase, job.Phase)
		}
		if !job.UpdatedAt.After(before) {
			t.Errorf("expected UpdatedAt to advance after SetStatus(%q)", tr.status)
		}
	}
}

func TestJob_AddError(t *testing.T) {
	job := &Job{ID: "err-test", UpdatedAt: time.Now()}
	job.AddError("fetch failed")
	job.AddError("update failed")

	snap := job.Snapshot()
	if len(snap.Outcome.Errors) != 2 {
		t.Fatalf("expected 2 errors, got %d", len(snap.Outcome.Errors))
	}
	if snap.Outcome.Errors[0] != "fetch failed" {
		t.Errorf("expected first error %q, got %q", "fetch failed", snap.Outcome.Errors[0])
	}
}

func TestJob_SetReportAndVersions(t *testing.T) {
	job := &Job{ID: "report-test", UpdatedAt: time.Now()}
	job.SetReport(transfer.Report{
		Total:     2,
		Preserved: []string{"c1"},
		Dropped:   []transfer.Dropped{{RefID: "c2", Reason: matcher.ReasonNoCandidate}},
	})
	job.SetVersions(4, 5)

	snap := job.Snapshot()
	if len(snap.Outcome.Preserved) != 1 || snap.Outcome.Preserved[0] != "c1" {
		t.Errorf("expected preserved [c1], got %v", snap.Outcome.Preserved)
	}
	if len(snap.Outcome.Dropped) != 1 || snap.Outcome.Dropped[0].Reason != matcher.ReasonNoCandidate {
		t.Errorf("unexpected dropped %v", snap.Outcome.Dropped)
	}
	if snap.Outcome.Summary != "1 comment preserved, 1 dropped" {
		t.Errorf("unexpected summary %q", snap.Outcome.Summary)
	}
	if snap.Outcome.FromVersion != 4 || snap.Outcome.ToVersion != 5 {
		t.Errorf("expected versions 4->5, got %d->%d", snap.Outcome.FromVersion, snap.Outcome.ToVersion)
	}
}

func TestJob_FileData(t *testing.T) {
	job := &Job{ID: "data-test"}
	data := []byte("file content here")
	job.SetFileData(data)
	got := job.FileData()
	if string(got) != string(data) {
		t.Errorf("expected file data %q, got %q", data, got)
	}
}

func TestJob_SnapshotSlicesNotNil(t *testing.T) {
	job := &Job{ID: "snap-test", UpdatedAt: time.Now()}
	snap := job.Snapshot()
	if snap.Outcome.Errors == nil || snap.Outcome.Preserved == nil || snap.Outcome.Dropped == nil {
		t.Error("expected non-nil slices in snapshot")
	}
}

func TestJobStore_PutGet(t *testing.T) {
	store := NewJobStore(time.Hour)
	job := &Job{ID: "store-1", UpdatedAt: time.Now()}
	store.Put(job)

	got := store.Get("store-1")
	if got == nil {
		t.Fatal("expected to get job back")
	}
	if got.ID != "store-1" {
		t.Errorf("expected ID %q, got %q", "store-1", got.ID)
	}
	if store.Get("nonexistent") != nil {
		t.Error("expected nil for missing job")
	}
}

func TestJobStore_TTLCleanup(t *testing.T) {
	store := NewJobStore(50 * time.Millisecond)

	expired := &Job{ID: "old", UpdatedAt: time.Now()}
	store.Put(expired)

	time.Sleep(100 * time.Millisecond)

	fresh := &Job{ID: "new", UpdatedAt: time.Now()}
	store.Put(fresh)

	store.Cleanup()

	if store.Get("old") != nil {
		t.Error("expected expired job to be cleaned up")
	}
	if store.Get("new") == nil {
		t.Error("expected fresh job to survive cleanup")
	}
}

func TestNewJobID(t *testing.T) {
	seen := make(map[string]bool)
	prev := ""
	for range 1000 {
		id := NewJobID()
		if len(id) != 26 {
			t.Fatalf("expected 26 characters, got %d (%q)", len(id), id)
		}
		if seen[id] {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = true
		if id <= prev {
			t.Fatalf("expected increasing ids, got %q after %q", id, prev)
		}
		prev = id
	}
}

func TestEncodeULID(t *testing.T) {
	var zero [16]byte
	if got := encodeULID(zero); got != "00000000000000000000000000" {
		t.Errorf("unexpected zero encoding %q", got)
	}
	var ones [16]byte
	for i := range ones {
		ones[i] = 0xff
	}
	if got := encodeULID(ones); got != "7ZZZZZZZZZZZZZZZZZZZZZZZZZ" {
		t.Errorf("unexpected max encoding %q", got)
	}
}
