package backend

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"reconstructd/pkg/types"
)

// Manager owns at most one loaded model at a time. Inference holds the lock
// in read mode for its whole duration; a swap takes it in write mode, so a
// backend is never torn down under a running job and jobs against the current
// backend never serialize against each other.
type Manager struct {
	mu      sync.RWMutex
	current string
	session Session

	engine    Engine
	registry  []types.Backend
	device    Device
	defaultID string

	degMu    sync.Mutex
	degraded map[string]string

	loads uint64
	swaps uint64

	log zerolog.Logger
}

// New constructs a Manager. No model is materialized until the first Acquire.
func New(engine Engine, reg []types.Backend, dev Device, defaultID string, log zerolog.Logger) *Manager {
	return &Manager{
		engine:    engine,
		registry:  reg,
		device:    dev,
		defaultID: defaultID,
		degraded:  make(map[string]string),
		log:       log.With().Str("component", "backend").Logger(),
	}
}

// Acquire returns the session for id plus a release func the caller must
// invoke when inference ends. The fast path (id already loaded) takes only a
// read lock. Otherwise the Manager performs an exclusive swap: it waits for
// running jobs to drain, closes the previous session, loads the requested
// model, then re-enters the fast path. Concurrent acquirers during a swap
// block and re-check which backend is current, so N concurrent Acquire calls
// for the same id perform exactly one load.
func (m *Manager) Acquire(ctx context.Context, id string) (Session, func(), error) {
	if id == "" {
		id = m.defaultID
		if id == "" {
			return nil, nil, ErrBackendNotFound("(unspecified)")
		}
	}
	for {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		m.mu.RLock()
		if m.current == id && m.session != nil {
			s := m.session
			m.log.Debug().Str("backend", id).Msg("backend cache hit")
			return s, m.mu.RUnlock, nil
		}
		m.mu.RUnlock()

		if err := m.swapTo(id); err != nil {
			return nil, nil, err
		}
	}
}

// swapTo loads id under the write lock. Returns nil when id is current on
// exit (whether this call loaded it or a concurrent swap did).
func (m *Manager) swapTo(id string) error {
	b, ok := m.byID(id)
	if !ok {
		return ErrBackendNotFound(id)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == id && m.session != nil {
		// Another acquirer swapped it in while we waited for the lock.
		return nil
	}

	prev := m.current
	if m.session != nil {
		// Release accelerator memory before materializing the next model.
		if err := m.session.Close(); err != nil {
			m.log.Error().Err(err).Str("backend", prev).Msg("close previous backend")
		}
		m.session = nil
		m.current = ""
	}

	s, err := m.engine.Load(b, m.device)
	if err != nil {
		m.setDegraded(id, err.Error())
		loadFailuresTotal.WithLabelValues(id).Inc()
		m.log.Error().Err(err).Str("backend", id).Msg("backend load failed")
		return ErrBackendUnavailable(id, err)
	}
	m.session = s
	m.current = id
	m.clearDegraded(id)

	atomic.AddUint64(&m.loads, 1)
	loadsTotal.Inc()
	if prev != "" {
		// Swaps are logged distinctly so backend thrashing under mixed
		// traffic is visible to operators.
		atomic.AddUint64(&m.swaps, 1)
		swapsTotal.Inc()
		m.log.Info().Str("from", prev).Str("to", id).Str("device", string(m.device)).Msg("backend swap")
	} else {
		m.log.Info().Str("backend", id).Str("device", string(m.device)).Msg("backend load")
	}
	return nil
}

func (m *Manager) byID(id string) (types.Backend, bool) {
	for _, b := range m.registry {
		if b.ID == id {
			return b, true
		}
	}
	return types.Backend{}, false
}

// Backends returns a copy of the registry.
func (m *Manager) Backends() []types.Backend {
	out := make([]types.Backend, len(m.registry))
	copy(out, m.registry)
	return out
}

// Current returns the id of the loaded backend, empty when none is loaded.
func (m *Manager) Current() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Device returns the execution device resolved at startup.
func (m *Manager) Device() Device { return m.device }

// LoadsTotal returns the number of model loads performed.
func (m *Manager) LoadsTotal() uint64 { return atomic.LoadUint64(&m.loads) }

// SwapsTotal returns the number of model swaps performed.
func (m *Manager) SwapsTotal() uint64 { return atomic.LoadUint64(&m.swaps) }

func (m *Manager) setDegraded(id, reason string) {
	m.degMu.Lock()
	m.degraded[id] = reason
	m.degMu.Unlock()
}

func (m *Manager) clearDegraded(id string) {
	m.degMu.Lock()
	delete(m.degraded, id)
	m.degMu.Unlock()
}

// Degraded returns backends whose last load attempt failed, with reasons.
func (m *Manager) Degraded() map[string]string {
	m.degMu.Lock()
	defer m.degMu.Unlock()
	out := make(map[string]string, len(m.degraded))
	for k, v := range m.degraded {
		out[k] = v
	}
	return out
}

// Close releases the loaded session, if any. Called on shutdown.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return nil
	}
	err := m.session.Close()
	m.session = nil
	m.current = ""
	return err
}
