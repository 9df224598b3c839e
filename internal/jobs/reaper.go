package jobs

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Reaper periodically removes terminal jobs older than the retention window,
// together with their input/output artifacts. Non-terminal jobs are never
// touched regardless of age.
type Reaper struct {
	store     *Store
	retention time.Duration
	interval  time.Duration
	log       zerolog.Logger
}

func NewReaper(store *Store, retention, interval time.Duration, log zerolog.Logger) *Reaper {
	return &Reaper{
		store:     store,
		retention: retention,
		interval:  interval,
		log:       log.With().Str("component", "reaper").Logger(),
	}
}

// Run sweeps on a fixed interval until ctx is cancelled.
func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep(time.Now())
		}
	}
}

// Sweep removes terminal jobs that finished before now minus the retention
// window. Artifact deletion is best-effort: a failure (e.g. file already
// gone) is logged and never prevents record removal or aborts the sweep.
func (r *Reaper) Sweep(now time.Time) {
	cutoff := now.Add(-r.retention)
	for _, rec := range r.store.TerminalBefore(cutoff) {
		for _, p := range []string{rec.InputPath, rec.OutputPath} {
			if p == "" {
				continue
			}
			if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
				r.log.Warn().Err(err).Str("job", rec.ID).Str("path", p).Msg("artifact delete failed")
			}
		}
		r.store.Remove(rec.ID)
		reapedTotal.Inc()
		r.log.Debug().Str("job", rec.ID).Str("status", string(rec.Status)).Msg("job reaped")
	}
}
