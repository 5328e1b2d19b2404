// Package state holds the in-memory results of analysis runs for the
// HTTP API to serve. A Store keeps the latest run plus a bounded
// history keyed by run ID.
package state

import (
	"context"
	"errors"
	"sync"

	"github.com/signalsfoundry/fronthaul-optimizer/internal/logging"
	"github.com/signalsfoundry/fronthaul-optimizer/internal/pipeline"
)

var (
	// ErrNoRun indicates no analysis has completed yet.
	ErrNoRun = errors.New("no analysis run available")
	// ErrRunNotFound indicates the requested run ID is unknown.
	ErrRunNotFound = errors.New("analysis run not found")
	// ErrLinkNotFound indicates the requested link is not in the run.
	ErrLinkNotFound = errors.New("link not found")
)

const defaultHistoryLimit = 16

// RunMetricsRecorder receives count updates when runs are stored.
type RunMetricsRecorder interface {
	SetStoredRuns(n int)
}

// Store is a concurrency-safe holder of completed runs. Runs are
// immutable once stored; callers must treat returned pointers as
// read-only.
type Store struct {
	mu sync.RWMutex

	latest  *pipeline.Run
	runs    map[string]*pipeline.Run
	order   []string
	limit   int
	log     logging.Logger
	metrics RunMetricsRecorder
}

// StoreOption customises Store construction.
type StoreOption func(*Store)

// WithHistoryLimit bounds how many past runs are retained.
func WithHistoryLimit(n int) StoreOption {
	return func(s *Store) {
		if n > 0 {
			s.limit = n
		}
	}
}

// WithMetricsRecorder attaches an optional metrics recorder.
func WithMetricsRecorder(m RunMetricsRecorder) StoreOption {
	return func(s *Store) { s.metrics = m }
}

// NewStore prepares an empty run store.
func NewStore(log logging.Logger, opts ...StoreOption) *Store {
	if log == nil {
		log = logging.Noop()
	}
	s := &Store{
		runs:  make(map[string]*pipeline.Run),
		limit: defaultHistoryLimit,
		log:   log,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Put stores a completed run as the latest, evicting the oldest run
// beyond the history limit.
func (s *Store) Put(ctx context.Context, run *pipeline.Run) error {
	if run == nil {
		return errors.New("run is nil")
	}
	if run.ID == "" {
		return errors.New("run ID is empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.runs[run.ID]; !exists {
		s.order = append(s.order, run.ID)
	}
	s.runs[run.ID] = run
	s.latest = run

	for len(s.order) > s.limit {
		evicted := s.order[0]
		s.order = s.order[1:]
		delete(s.runs, evicted)
	}

	s.updateMetricsLocked()
	s.log.Debug(ctx, "analysis run stored",
		logging.String("run_id", run.ID),
		logging.Int("links", len(run.Links)),
		logging.Int("history", len(s.runs)))
	return nil
}

// Latest returns the most recent run.
func (s *Store) Latest() (*pipeline.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.latest == nil {
		return nil, ErrNoRun
	}
	return s.latest, nil
}

// Get returns a run by ID.
func (s *Store) Get(id string) (*pipeline.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	if !ok {
		return nil, ErrRunNotFound
	}
	return run, nil
}

// ListIDs returns the stored run IDs, oldest first.
func (s *Store) ListIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// LinkReport returns one link's report from the latest run.
func (s *Store) LinkReport(linkID int) (*pipeline.LinkReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.latest == nil {
		return nil, ErrNoRun
	}
	report := s.latest.Report(linkID)
	if report == nil {
		return nil, ErrLinkNotFound
	}
	return report, nil
}

// Clear wipes all stored runs.
func (s *Store) Clear(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.runs)
	s.latest = nil
	s.runs = make(map[string]*pipeline.Run)
	s.order = nil

	s.updateMetricsLocked()
	s.log.Debug(ctx, "run store cleared", logging.Int("evicted", n))
}

// updateMetricsLocked pushes the stored-run count to the recorder.
// Caller must hold s.mu.
func (s *Store) updateMetricsLocked() {
	if s.metrics != nil {
		s.metrics.SetStoredRuns(len(s.runs))
	}
}
