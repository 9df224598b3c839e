package backend

import (
	"context"

	"reconstructd/pkg/types"
)

// StepFunc is invoked after each unit of reconstruction work. done/total
// describe the step counter; msg is a short stage description. Returning a
// non-nil error aborts the run; implementations must return that error
// unchanged so callers can recognize their own sentinel.
type StepFunc func(done, total int, msg string) error

// Session is a loaded, ready-to-run model. Sessions are safe for concurrent
// Reconstruct calls against a fixed set of weights; Close releases the
// underlying resources and must only be called by the Manager during a swap.
type Session interface {
	Reconstruct(ctx context.Context, inputPath, outputPath string, onStep StepFunc) error
	Close() error
}

// Engine abstracts the model runtime used by the Manager. Concrete
// implementations (e.g. the tiled upscaler in internal/sr) satisfy this.
type Engine interface {
	Load(b types.Backend, dev Device) (Session, error)
}
