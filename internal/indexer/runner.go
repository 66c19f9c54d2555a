package indexer

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
)

// Runner serializes index runs: one at a time, triggered from the scheduler
// or the HTTP API, remembering the outcome of the last run. Runs live on the
// application context, not the trigger's, so an HTTP-triggered scan outlives
// its request and process shutdown cancels it.
type Runner struct {
	indexer *Indexer
	root    string
	ctx     context.Context
	logger  *logrus.Logger

	mu        sync.Mutex
	running   bool
	lastStats *Stats
	lastErr   error
}

// NewRunner creates a runner scanning the given root
func NewRunner(ctx context.Context, ix *Indexer, root string, logger *logrus.Logger) *Runner {
	return &Runner{
		indexer: ix,
		root:    root,
		ctx:     ctx,
		logger:  logger,
	}
}

// Trigger starts an index run in the background unless one is already
// active. Reports whether a run was started.
func (r *Runner) Trigger() bool {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return false
	}
	r.running = true
	r.mu.Unlock()

	go func() {
		stats, err := r.indexer.Run(r.ctx, r.root)

		r.mu.Lock()
		r.running = false
		r.lastStats = stats
		r.lastErr = err
		r.mu.Unlock()

		if err != nil {
			r.logger.WithError(err).Error("Index run failed")
		}
	}()

	return true
}

// Status reports whether a run is active plus the last run's outcome
func (r *Runner) Status() (running bool, last *Stats, lastErr error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running, r.lastStats, r.lastErr
}
