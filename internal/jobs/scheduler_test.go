package jobs

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"reconstructd/internal/backend"
	"reconstructd/pkg/types"
)

// fakeSession drives Reconstruct step by step under test control. Each call
// runs `steps` onStep callbacks; `gate` (when non-nil) blocks before the first
// step so tests can hold jobs mid-flight.
type fakeSession struct {
	steps int
	gate  chan struct{}
	fail  error

	mu    sync.Mutex
	order []string
}

func (f *fakeSession) Reconstruct(ctx context.Context, inputPath, outputPath string, onStep backend.StepFunc) error {
	f.mu.Lock()
	f.order = append(f.order, inputPath)
	f.mu.Unlock()
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if f.fail != nil {
		return f.fail
	}
	for i := 1; i <= f.steps; i++ {
		if err := onStep(i, f.steps, "upscaling"); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeSession) Close() error { return nil }

func (f *fakeSession) started() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.order...)
}

type fakeProvider struct {
	sess     *fakeSession
	acquires atomic.Int64
	err      error
}

func (f *fakeProvider) Acquire(ctx context.Context, id string) (backend.Session, func(), error) {
	f.acquires.Add(1)
	if f.err != nil {
		return nil, nil, f.err
	}
	return f.sess, func() {}, nil
}

func newTestScheduler(t *testing.T, prov Provider, maxConcurrent int) (*Scheduler, *Store) {
	t.Helper()
	store := NewStore()
	sched := NewScheduler(store, prov, SchedulerConfig{
		MaxConcurrent: maxConcurrent,
		OutputsDir:    t.TempDir(),
	}, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	go sched.Run(ctx)
	t.Cleanup(cancel)
	return sched, store
}

func waitTerminal(t *testing.T, store *Store, id string) types.JobView {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for {
		v, ok := store.View(id)
		if ok && v.Status.Terminal() {
			return v
		}
		if time.Now().After(deadline) {
			t.Fatalf("job %s did not reach a terminal status (last: %+v)", id, v)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func waitStatus(t *testing.T, store *Store, id string, want types.JobStatus) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for {
		v, _ := store.View(id)
		if v.Status == want {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("job %s stuck at %s, want %s", id, v.Status, want)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestSchedulerRunsJobToCompletion(t *testing.T) {
	prov := &fakeProvider{sess: &fakeSession{steps: 4}}
	sched, store := newTestScheduler(t, prov, 1)

	id := sched.Submit("/in/a.png", "esrgan-x4")
	v := waitTerminal(t, store, id)
	if v.Status != types.JobCompleted {
		t.Fatalf("status = %s, want completed", v.Status)
	}
	if v.Progress != 100 {
		t.Fatalf("progress = %d, want 100", v.Progress)
	}
	if got, err := sched.Result(id); err != nil || got == "" {
		t.Fatalf("Result = (%q, %v)", got, err)
	}
}

func TestSchedulerFIFOOrder(t *testing.T) {
	gate := make(chan struct{})
	sess := &fakeSession{steps: 1, gate: gate}
	prov := &fakeProvider{sess: sess}
	sched, store := newTestScheduler(t, prov, 1)

	a := sched.Submit("/in/a.png", "m")
	waitStatus(t, store, a, types.JobProcessing)
	b := sched.Submit("/in/b.png", "m")
	c := sched.Submit("/in/c.png", "m")

	if qlen := sched.QueueLen(); qlen != 2 {
		t.Fatalf("queue length = %d, want 2", qlen)
	}
	close(gate)

	for _, id := range []string{a, b, c} {
		if v := waitTerminal(t, store, id); v.Status != types.JobCompleted {
			t.Fatalf("job %s status = %s", id, v.Status)
		}
	}
	want := []string{"/in/a.png", "/in/b.png", "/in/c.png"}
	got := sess.started()
	if len(got) != len(want) {
		t.Fatalf("dispatch order %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("dispatch order %v, want %v", got, want)
		}
	}
}

func TestSchedulerConcurrencyBound(t *testing.T) {
	gate := make(chan struct{})
	prov := &fakeProvider{sess: &fakeSession{steps: 1, gate: gate}}
	sched, store := newTestScheduler(t, prov, 2)

	ids := []string{
		sched.Submit("/in/a.png", "m"),
		sched.Submit("/in/b.png", "m"),
		sched.Submit("/in/c.png", "m"),
	}

	waitStatus(t, store, ids[0], types.JobProcessing)
	waitStatus(t, store, ids[1], types.JobProcessing)
	// the third never starts while both slots are held
	time.Sleep(50 * time.Millisecond)
	if v, _ := store.View(ids[2]); v.Status != types.JobQueued {
		t.Fatalf("third job status = %s, want queued", v.Status)
	}
	if r := sched.Running(); r != 2 {
		t.Fatalf("running = %d, want 2", r)
	}

	close(gate)
	for _, id := range ids {
		if v := waitTerminal(t, store, id); v.Status != types.JobCompleted {
			t.Fatalf("job %s status = %s", id, v.Status)
		}
	}
}

func TestSchedulerCancelQueued(t *testing.T) {
	gate := make(chan struct{})
	sess := &fakeSession{steps: 1, gate: gate}
	prov := &fakeProvider{sess: sess}
	sched, store := newTestScheduler(t, prov, 1)

	a := sched.Submit("/in/a.png", "m")
	waitStatus(t, store, a, types.JobProcessing)
	b := sched.Submit("/in/b.png", "m")

	if !sched.Cancel(b) {
		t.Fatal("Cancel on queued job returned false")
	}
	v, _ := store.View(b)
	if v.Status != types.JobCancelled {
		t.Fatalf("queued job after cancel: %s, want cancelled", v.Status)
	}

	close(gate)
	waitTerminal(t, store, a)
	// the cancelled job must never have been dispatched
	for _, in := range sess.started() {
		if in == "/in/b.png" {
			t.Fatal("cancelled queued job was dispatched")
		}
	}
}

func TestSchedulerCancelProcessing(t *testing.T) {
	gate := make(chan struct{})
	prov := &fakeProvider{sess: &fakeSession{steps: 8, gate: gate}}
	sched, store := newTestScheduler(t, prov, 1)

	id := sched.Submit("/in/a.png", "m")
	waitStatus(t, store, id, types.JobProcessing)

	if !sched.Cancel(id) {
		t.Fatal("Cancel on processing job returned false")
	}
	close(gate)

	v := waitTerminal(t, store, id)
	if v.Status != types.JobCancelled {
		t.Fatalf("status = %s, want cancelled", v.Status)
	}
	if v.Progress == 100 {
		t.Fatal("cancelled job reports progress 100")
	}
}

func TestSchedulerCancelUnknownAndTerminal(t *testing.T) {
	prov := &fakeProvider{sess: &fakeSession{steps: 1}}
	sched, store := newTestScheduler(t, prov, 1)

	if sched.Cancel("missing") {
		t.Fatal("Cancel on unknown id returned true")
	}
	id := sched.Submit("/in/a.png", "m")
	waitTerminal(t, store, id)
	if sched.Cancel(id) {
		t.Fatal("Cancel on terminal job returned true")
	}
}

func TestSchedulerFailureIsolation(t *testing.T) {
	prov := &fakeProvider{err: backend.ErrBackendUnavailable("m", errors.New("load failed"))}
	sched, store := newTestScheduler(t, prov, 1)

	bad := sched.Submit("/in/bad.png", "m")
	v := waitTerminal(t, store, bad)
	if v.Status != types.JobFailed {
		t.Fatalf("status = %s, want failed", v.Status)
	}
	if v.Error != "model unavailable" {
		t.Fatalf("error detail = %q", v.Error)
	}

	// scheduler keeps running after a failure
	prov.err = nil
	prov.sess = &fakeSession{steps: 1}
	good := sched.Submit("/in/good.png", "m")
	if v := waitTerminal(t, store, good); v.Status != types.JobCompleted {
		t.Fatalf("follow-up job status = %s, want completed", v.Status)
	}
}

func TestSchedulerReconstructErrorFails(t *testing.T) {
	prov := &fakeProvider{sess: &fakeSession{steps: 1, fail: errors.New("kernel exploded")}}
	sched, store := newTestScheduler(t, prov, 1)

	id := sched.Submit("/in/a.png", "m")
	v := waitTerminal(t, store, id)
	if v.Status != types.JobFailed {
		t.Fatalf("status = %s, want failed", v.Status)
	}
	// raw error text stays out of the client-visible detail
	if v.Error != "reconstruction failed" {
		t.Fatalf("error detail = %q", v.Error)
	}
}

func TestSchedulerResultNotReady(t *testing.T) {
	gate := make(chan struct{})
	prov := &fakeProvider{sess: &fakeSession{steps: 1, gate: gate}}
	sched, store := newTestScheduler(t, prov, 1)

	id := sched.Submit("/in/a.png", "m")
	if _, err := sched.Result(id); !IsNotReady(err) {
		t.Fatalf("Result on live job: err = %v, want not-ready", err)
	}
	if _, err := sched.Result("missing"); !IsNotFound(err) {
		t.Fatalf("Result on unknown job: err = %v, want not-found", err)
	}
	close(gate)
	waitTerminal(t, store, id)
	if _, err := sched.Result(id); err != nil {
		t.Fatalf("Result on completed job: %v", err)
	}
}
