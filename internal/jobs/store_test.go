package jobs

import (
	"testing"
	"time"

	"reconstructd/pkg/types"
)

func TestStoreLifecycle(t *testing.T) {
	s := NewStore()
	s.Create("j1", "esrgan-x4", "/in.png", "/out.png")

	v, ok := s.View("j1")
	if !ok {
		t.Fatal("job not found after Create")
	}
	if v.Status != types.JobQueued || v.Progress != 0 || v.Message != "queued" {
		t.Fatalf("unexpected initial view: %+v", v)
	}

	s.MarkProcessing("j1")
	v, _ = s.View("j1")
	if v.Status != types.JobProcessing || v.Progress != 1 {
		t.Fatalf("unexpected processing view: %+v", v)
	}

	s.Complete("j1")
	v, _ = s.View("j1")
	if v.Status != types.JobCompleted || v.Progress != 100 || v.Message != "done" {
		t.Fatalf("unexpected completed view: %+v", v)
	}
	if v.FinishedUnix == 0 {
		t.Fatal("FinishedUnix not set on terminal job")
	}
}

func TestStoreViewOutputPath(t *testing.T) {
	s := NewStore()
	s.Create("j1", "b", "/in.png", "/out/j1.png")

	v, _ := s.View("j1")
	if v.OutputPath != "" {
		t.Fatalf("queued job exposes output path %q", v.OutputPath)
	}
	s.MarkProcessing("j1")
	v, _ = s.View("j1")
	if v.OutputPath != "" {
		t.Fatalf("processing job exposes output path %q", v.OutputPath)
	}
	s.Complete("j1")
	v, _ = s.View("j1")
	if v.OutputPath != "/out/j1.png" {
		t.Fatalf("completed job output path = %q, want /out/j1.png", v.OutputPath)
	}

	// a failed job never exposes one
	s.Create("j2", "b", "/in.png", "/out/j2.png")
	s.Fail("j2", "boom")
	v, _ = s.View("j2")
	if v.OutputPath != "" {
		t.Fatalf("failed job exposes output path %q", v.OutputPath)
	}
}

func TestStoreViewUnknown(t *testing.T) {
	s := NewStore()
	if _, ok := s.View("missing"); ok {
		t.Fatal("expected miss for unknown id")
	}
}

func TestStoreProgressMonotonic(t *testing.T) {
	s := NewStore()
	s.Create("j1", "b", "/in", "/out")
	s.MarkProcessing("j1")

	s.SetProgress("j1", 50, "halfway")
	s.SetProgress("j1", 30, "stale")
	v, _ := s.View("j1")
	if v.Progress != 50 {
		t.Fatalf("progress regressed: got %d, want 50", v.Progress)
	}
	// stale write still may not move progress, but message updates
	if v.Message != "stale" {
		t.Fatalf("message not updated: %q", v.Message)
	}

	s.SetProgress("j1", 150, "overflow")
	v, _ = s.View("j1")
	if v.Progress != 99 {
		t.Fatalf("progress not capped at 99: got %d", v.Progress)
	}
}

func TestStoreTerminalImmutable(t *testing.T) {
	s := NewStore()
	s.Create("j1", "b", "/in", "/out")
	s.MarkProcessing("j1")
	s.Fail("j1", "boom")

	s.SetProgress("j1", 80, "late")
	s.Complete("j1")
	s.MarkCancelled("j1")

	v, _ := s.View("j1")
	if v.Status != types.JobFailed {
		t.Fatalf("terminal status overwritten: %s", v.Status)
	}
	if v.Error != "boom" {
		t.Fatalf("error detail lost: %q", v.Error)
	}

	_, byStatus := s.Totals()
	if byStatus[string(types.JobFailed)] != 1 {
		t.Fatalf("failed count = %d, want 1", byStatus[string(types.JobFailed)])
	}
	if byStatus[string(types.JobCompleted)] != 0 || byStatus[string(types.JobCancelled)] != 0 {
		t.Fatalf("double-counted terminal transition: %v", byStatus)
	}
}

func TestStoreCancelFlag(t *testing.T) {
	s := NewStore()
	s.Create("j1", "b", "/in", "/out")
	s.MarkProcessing("j1")

	if !s.RequestCancel("j1") {
		t.Fatal("RequestCancel on live job returned false")
	}
	if !s.CancelRequested("j1") {
		t.Fatal("cancel flag not observed")
	}
	v, _ := s.View("j1")
	if v.Message != "cancelling" {
		t.Fatalf("message = %q, want cancelling", v.Message)
	}

	// progress messages are suppressed while cancelling
	s.SetProgress("j1", 60, "upscaling tile 5/8")
	v, _ = s.View("j1")
	if v.Message != "cancelling" {
		t.Fatalf("cancel message overwritten: %q", v.Message)
	}
	if v.Progress != 60 {
		t.Fatalf("progress = %d, want 60", v.Progress)
	}

	s.MarkCancelled("j1")
	if s.RequestCancel("j1") {
		t.Fatal("RequestCancel on terminal job returned true")
	}
	if s.RequestCancel("missing") {
		t.Fatal("RequestCancel on unknown job returned true")
	}
}

func TestStoreTerminalBeforeAndRemove(t *testing.T) {
	s := NewStore()
	s.Create("old", "b", "/in-old", "/out-old")
	s.Complete("old")

	time.Sleep(10 * time.Millisecond)
	cutoff := time.Now()

	s.Create("fresh", "b", "/in-fresh", "/out-fresh")
	s.Complete("fresh")
	s.Create("live", "b", "/in-live", "/out-live")
	s.MarkProcessing("live")

	recs := s.TerminalBefore(cutoff)
	if len(recs) != 1 || recs[0].ID != "old" {
		t.Fatalf("TerminalBefore returned %v, want [old]", recs)
	}

	s.Remove("old")
	if _, ok := s.View("old"); ok {
		t.Fatal("record survives Remove")
	}
	if got := s.TerminalBefore(time.Now().Add(time.Hour)); len(got) != 1 || got[0].ID != "fresh" {
		t.Fatalf("terminal index not pruned: %v", got)
	}
	if s.Len() != 2 {
		t.Fatalf("Len = %d, want 2", s.Len())
	}
}

func TestStoreTotals(t *testing.T) {
	s := NewStore()
	for _, id := range []string{"a", "b", "c"} {
		s.Create(id, "m", "/in", "/out")
	}
	s.Complete("a")
	s.Fail("b", "x")
	s.MarkCancelled("c")

	submitted, byStatus := s.Totals()
	if submitted != 3 {
		t.Fatalf("submitted = %d, want 3", submitted)
	}
	for _, st := range []types.JobStatus{types.JobCompleted, types.JobFailed, types.JobCancelled} {
		if byStatus[string(st)] != 1 {
			t.Fatalf("count[%s] = %d, want 1", st, byStatus[string(st)])
		}
	}
}
