// Package refresh periodically re-runs a job so that served analysis
// results keep tracking a trace directory that is still being written.
package refresh

import (
	"context"
	"sync"
	"time"

	"github.com/signalsfoundry/fronthaul-optimizer/internal/logging"
)

// Job is the work executed on every tick.
type Job func(ctx context.Context) error

// Loop drives a Job at a fixed interval and records the outcome of the
// most recent execution.
type Loop struct {
	mu       sync.RWMutex
	interval time.Duration
	job      Job
	log      logging.Logger

	lastRun time.Time
	lastErr error
	runs    int
}

// NewLoop constructs a Loop. Interval must be positive.
func NewLoop(interval time.Duration, job Job, log logging.Logger) *Loop {
	if log == nil {
		log = logging.Noop()
	}
	return &Loop{
		interval: interval,
		job:      job,
		log:      log,
	}
}

// Start runs the loop until the context is cancelled. The first
// execution happens immediately. The returned channel is closed when
// the loop exits.
func (l *Loop) Start(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)

		l.runOnce(ctx)

		ticker := time.NewTicker(l.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				l.runOnce(ctx)
			}
		}
	}()
	return done
}

// LastRun reports when the job last executed and its error, if any.
func (l *Loop) LastRun() (time.Time, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.lastRun, l.lastErr
}

// Runs reports how many times the job has executed.
func (l *Loop) Runs() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.runs
}

func (l *Loop) runOnce(ctx context.Context) {
	err := l.job(ctx)

	l.mu.Lock()
	l.lastRun = time.Now()
	l.lastErr = err
	l.runs++
	l.mu.Unlock()

	if err != nil {
		l.log.Warn(ctx, "scheduled analysis failed", logging.String("error", err.Error()))
	}
}
