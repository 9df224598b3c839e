package jobs

import (
	"context"
	"errors"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"reconstructd/internal/backend"
	"reconstructd/pkg/types"
)

// Provider yields a loaded model session for a backend id. Satisfied by
// backend.Manager; tests substitute fakes.
type Provider interface {
	Acquire(ctx context.Context, id string) (backend.Session, func(), error)
}

// SchedulerConfig holds the scheduler tunables.
type SchedulerConfig struct {
	// MaxConcurrent bounds the number of jobs executing at once.
	MaxConcurrent int
	// OutputsDir is where result artifacts are written.
	OutputsDir string
}

const defaultMaxConcurrent = 1

// Scheduler admits jobs, enforces the concurrency bound, dispatches in strict
// FIFO order and propagates cancellation. The pending queue is unbounded:
// excess load queues rather than rejects, which suits a single-tenant,
// low-QPS service.
type Scheduler struct {
	mu      sync.Mutex
	pending []string
	running map[string]struct{}

	maxConcurrent int
	outputsDir    string

	store    *Store
	backends Provider

	wake chan struct{}
	wg   sync.WaitGroup
	log  zerolog.Logger
}

func NewScheduler(store *Store, backends Provider, cfg SchedulerConfig, log zerolog.Logger) *Scheduler {
	mc := cfg.MaxConcurrent
	if mc <= 0 {
		mc = defaultMaxConcurrent
	}
	return &Scheduler{
		running:       make(map[string]struct{}),
		maxConcurrent: mc,
		outputsDir:    cfg.OutputsDir,
		store:         store,
		backends:      backends,
		wake:          make(chan struct{}, 1),
		log:           log.With().Str("component", "scheduler").Logger(),
	}
}

// Submit creates a queued job and returns its token. Never blocks; the job
// waits in the pending queue until a concurrency slot frees. Admission
// validation (upload checks) happens before this call.
func (s *Scheduler) Submit(inputPath, backendID string) string {
	id := uuid.New().String()
	s.store.Create(id, backendID, inputPath, filepath.Join(s.outputsDir, id+".png"))
	s.mu.Lock()
	s.pending = append(s.pending, id)
	queueDepth.Set(float64(len(s.pending)))
	s.mu.Unlock()
	s.log.Info().Str("job", id).Str("backend", backendID).Msg("job submitted")
	s.kick()
	return id
}

// Cancel requests cancellation. A queued job is removed from the pending
// queue and marked cancelled immediately; a processing job has its flag set
// and the worker acknowledges at the next step checkpoint. Returns false for
// unknown or already-terminal jobs. Never blocks.
func (s *Scheduler) Cancel(id string) bool {
	s.mu.Lock()
	for i, p := range s.pending {
		if p == id {
			s.pending = append(s.pending[:i], s.pending[i+1:]...)
			queueDepth.Set(float64(len(s.pending)))
			s.mu.Unlock()
			s.store.MarkCancelled(id)
			s.log.Info().Str("job", id).Msg("queued job cancelled")
			return true
		}
	}
	s.mu.Unlock()
	if s.store.RequestCancel(id) {
		s.log.Info().Str("job", id).Msg("cancellation requested")
		return true
	}
	return false
}

// Status returns the job view or a not-found error.
func (s *Scheduler) Status(id string) (types.JobView, error) {
	view, ok := s.store.View(id)
	if !ok {
		return types.JobView{}, ErrNotFound(id)
	}
	return view, nil
}

// Result returns the output artifact path for a completed job. Unknown
// tokens yield a not-found error; live or failed jobs yield not-ready.
func (s *Scheduler) Result(id string) (string, error) {
	rec, ok := s.store.Snapshot(id)
	if !ok {
		return "", ErrNotFound(id)
	}
	if rec.Status != types.JobCompleted {
		return "", ErrNotReady(id)
	}
	return rec.OutputPath, nil
}

// QueueLen returns the number of admitted-but-not-dispatched jobs.
func (s *Scheduler) QueueLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Running returns the number of jobs currently executing.
func (s *Scheduler) Running() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.running)
}

// MaxConcurrent returns the configured concurrency bound.
func (s *Scheduler) MaxConcurrent() int { return s.maxConcurrent }

// Totals returns lifetime submission and per-terminal-status counts.
func (s *Scheduler) Totals() (uint64, map[string]uint64) {
	return s.store.Totals()
}

// Run drives the dispatch loop until ctx is cancelled, then waits for
// in-flight workers to finish. Dispatch is the only place concurrency is
// gated; a job never begins inference outside this loop.
func (s *Scheduler) Run(ctx context.Context) {
	for {
		s.dispatch(ctx)
		select {
		case <-ctx.Done():
			s.wg.Wait()
			return
		case <-s.wake:
		}
	}
}

// kick nudges the dispatch loop without blocking.
func (s *Scheduler) kick() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Scheduler) dispatch(ctx context.Context) {
	for {
		s.mu.Lock()
		if len(s.pending) == 0 || len(s.running) >= s.maxConcurrent {
			s.mu.Unlock()
			return
		}
		// strict FIFO: always the head, no reordering
		id := s.pending[0]
		s.pending = s.pending[1:]
		s.running[id] = struct{}{}
		queueDepth.Set(float64(len(s.pending)))
		runningGauge.Set(float64(len(s.running)))
		s.store.MarkProcessing(id)
		s.mu.Unlock()

		s.wg.Add(1)
		go s.runJob(ctx, id)
	}
}

// runJob executes one job. Exactly one worker runs a given job; all failure
// paths are captured here so a bad job can never take down the dispatch loop
// or its siblings.
func (s *Scheduler) runJob(ctx context.Context, id string) {
	defer func() {
		s.mu.Lock()
		delete(s.running, id)
		runningGauge.Set(float64(len(s.running)))
		s.mu.Unlock()
		s.wg.Done()
		s.kick()
	}()

	rec, ok := s.store.Snapshot(id)
	if !ok {
		return
	}
	if s.store.CancelRequested(id) {
		s.store.MarkCancelled(id)
		return
	}

	s.store.SetProgress(id, 2, "loading model")
	sess, release, err := s.backends.Acquire(ctx, rec.Backend)
	if err != nil {
		s.failJob(id, err)
		return
	}
	defer release()

	onStep := func(done, total int, msg string) error {
		if s.store.CancelRequested(id) {
			return errCancelled
		}
		if total > 0 {
			s.store.SetProgress(id, 100*done/total, msg)
		}
		return nil
	}

	err = sess.Reconstruct(ctx, rec.InputPath, rec.OutputPath, onStep)
	switch {
	case err == nil:
		s.store.Complete(id)
		s.log.Info().Str("job", id).Msg("job completed")
	case errors.Is(err, errCancelled):
		s.store.MarkCancelled(id)
		s.log.Info().Str("job", id).Msg("job cancelled")
	case errors.Is(err, context.Canceled) && s.store.CancelRequested(id):
		s.store.MarkCancelled(id)
		s.log.Info().Str("job", id).Msg("job cancelled")
	default:
		s.failJob(id, err)
	}
}

// failJob records a terminal failure with a caller-safe message; the raw
// error only reaches the log.
func (s *Scheduler) failJob(id string, err error) {
	detail := "reconstruction failed"
	switch {
	case backend.IsBackendUnavailable(err):
		detail = "model unavailable"
	case backend.IsBackendNotFound(err):
		detail = "unknown model"
	case errors.Is(err, context.Canceled):
		detail = "interrupted"
	}
	s.store.Fail(id, detail)
	s.log.Error().Err(err).Str("job", id).Msg("job failed")
}
