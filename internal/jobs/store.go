package jobs

import (
	"sync"
	"time"

	"reconstructd/pkg/types"
)

// Record is the mutable state of one job. Fields are guarded by the Store;
// callers only ever see copies.
type Record struct {
	ID         string
	Status     types.JobStatus
	Progress   int
	Message    string
	Backend    string
	InputPath  string
	OutputPath string
	Err        string
	CreatedAt  time.Time
	FinishedAt time.Time

	cancel bool
}

type terminalEntry struct {
	id string
	at time.Time
}

// Store is the in-memory job table: the single source of truth polled by
// clients. It also keeps a time-ordered index of terminal jobs so the reaper
// sweeps without scanning the whole table.
type Store struct {
	mu       sync.RWMutex
	jobs     map[string]*Record
	terminal []terminalEntry

	submitted uint64
	finished  map[types.JobStatus]uint64
}

func NewStore() *Store {
	return &Store{
		jobs:     make(map[string]*Record),
		finished: make(map[types.JobStatus]uint64),
	}
}

// Create inserts a new queued record.
func (s *Store) Create(id, backendID, inputPath, outputPath string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[id] = &Record{
		ID:         id,
		Status:     types.JobQueued,
		Progress:   0,
		Message:    "queued",
		Backend:    backendID,
		InputPath:  inputPath,
		OutputPath: outputPath,
		CreatedAt:  time.Now(),
	}
	s.submitted++
	submittedTotal.Inc()
}

// View returns a read-only projection of the job.
func (s *Store) View(id string) (types.JobView, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.jobs[id]
	if !ok {
		return types.JobView{}, false
	}
	return viewOf(rec), true
}

func viewOf(rec *Record) types.JobView {
	v := types.JobView{
		JobID:       rec.ID,
		Status:      rec.Status,
		Progress:    rec.Progress,
		Message:     rec.Message,
		Backend:     rec.Backend,
		Error:       rec.Err,
		CreatedUnix: rec.CreatedAt.Unix(),
	}
	if !rec.FinishedAt.IsZero() {
		v.FinishedUnix = rec.FinishedAt.Unix()
	}
	// the output reference is only meaningful once the artifact exists
	if rec.Status == types.JobCompleted {
		v.OutputPath = rec.OutputPath
	}
	return v
}

// Snapshot returns a copy of the record for worker use.
func (s *Store) Snapshot(id string) (Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.jobs[id]
	if !ok {
		return Record{}, false
	}
	return *rec, true
}

// MarkProcessing transitions a queued job to processing. The first progress
// write is a small non-zero value so pollers can tell "dispatched" from
// "queued" before step-based progress begins.
func (s *Store) MarkProcessing(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.jobs[id]
	if !ok || rec.Status.Terminal() {
		return
	}
	rec.Status = types.JobProcessing
	rec.Progress = 1
	rec.Message = "starting"
}

// SetProgress writes progress for a live job. Writes are monotonic: a lower
// value than previously recorded is ignored. Values are capped at 99 here;
// only Complete writes 100.
func (s *Store) SetProgress(id string, pct int, msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.jobs[id]
	if !ok || rec.Status.Terminal() {
		return
	}
	if pct > 99 {
		pct = 99
	}
	if pct > rec.Progress {
		rec.Progress = pct
	}
	if msg != "" && !rec.cancel {
		rec.Message = msg
	}
}

// RequestCancel flips the cancellation flag for a live job. Returns false
// when the job is unknown or already terminal. The running worker observes
// the flag at its next step checkpoint.
func (s *Store) RequestCancel(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.jobs[id]
	if !ok || rec.Status.Terminal() {
		return false
	}
	rec.cancel = true
	rec.Message = "cancelling"
	return true
}

// CancelRequested reports whether cancellation was requested for the job.
func (s *Store) CancelRequested(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.jobs[id]
	return ok && rec.cancel
}

// Complete marks the job completed with progress 100.
func (s *Store) Complete(id string) {
	s.finish(id, types.JobCompleted, func(rec *Record) {
		rec.Progress = 100
		rec.Message = "done"
	})
}

// Fail marks the job failed with a caller-safe detail message.
func (s *Store) Fail(id, detail string) {
	s.finish(id, types.JobFailed, func(rec *Record) {
		rec.Message = "failed"
		rec.Err = detail
	})
}

// MarkCancelled marks the job cancelled.
func (s *Store) MarkCancelled(id string) {
	s.finish(id, types.JobCancelled, func(rec *Record) {
		rec.Message = "cancelled"
	})
}

// finish performs a terminal transition exactly once per job.
func (s *Store) finish(id string, status types.JobStatus, mut func(*Record)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.jobs[id]
	if !ok || rec.Status.Terminal() {
		return
	}
	rec.Status = status
	rec.FinishedAt = time.Now()
	mut(rec)
	s.terminal = append(s.terminal, terminalEntry{id: id, at: rec.FinishedAt})
	s.finished[status]++
	completedTotal.WithLabelValues(string(status)).Inc()
	jobDuration.Observe(rec.FinishedAt.Sub(rec.CreatedAt).Seconds())
}

// TerminalBefore returns copies of terminal jobs that finished before cutoff.
// Records stay in the table until Remove is called.
func (s *Store) TerminalBefore(cutoff time.Time) []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Record
	for _, e := range s.terminal {
		if !e.at.Before(cutoff) {
			// entries are time-ordered; nothing newer qualifies
			break
		}
		if rec, ok := s.jobs[e.id]; ok {
			out = append(out, *rec)
		}
	}
	return out
}

// Remove deletes the record and its terminal-index entry.
func (s *Store) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.jobs, id)
	for i, e := range s.terminal {
		if e.id == id {
			s.terminal = append(s.terminal[:i], s.terminal[i+1:]...)
			break
		}
	}
}

// Len returns the number of records in the table.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}

// Totals returns lifetime submission and per-terminal-status counts.
func (s *Store) Totals() (submitted uint64, byStatus map[string]uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	byStatus = make(map[string]uint64, len(s.finished))
	for st, n := range s.finished {
		byStatus[string(st)] = n
	}
	return s.submitted, byStatus
}
