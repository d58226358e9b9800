// Package jobs runs named background jobs inline, on a single worker, in
// submission order. Migrational jobs are not offloaded to a separate
// process; they share the CLI's lifetime.
package jobs

import (
	"context"
	"log/slog"
	"sync"

	"github.com/IshaanNene/MediaGoat/internal/types"
)

// ExternalMediaInliner is the job name for the media migration.
const ExternalMediaInliner = "external-media-inliner"

type job struct {
	name string
	fn   func(context.Context) error
}

// Runner executes named jobs FIFO on one worker goroutine.
type Runner struct {
	logger *slog.Logger
	ctx    context.Context
	jobs   chan job
	wg     sync.WaitGroup

	closeOnce sync.Once
}

// NewRunner creates a runner whose jobs observe ctx for cancellation.
func NewRunner(ctx context.Context, logger *slog.Logger) *Runner {
	r := &Runner{
		logger: logger.With("component", "jobs"),
		ctx:    ctx,
		jobs:   make(chan job, 16),
	}
	go r.worker()
	return r
}

// Add enqueues a named job. A failing job is logged, never propagated; the
// runner keeps executing later jobs.
func (r *Runner) Add(name string, fn func(context.Context) error) {
	r.wg.Add(1)
	r.jobs <- job{name: name, fn: fn}
}

// Wait blocks until every submitted job has finished.
func (r *Runner) Wait() {
	r.wg.Wait()
}

// Close stops the worker once pending jobs drain. Add must not be called
// after Close.
func (r *Runner) Close() {
	r.closeOnce.Do(func() { close(r.jobs) })
}

func (r *Runner) worker() {
	for j := range r.jobs {
		r.logger.Info("job started", "name", j.name)
		if err := j.fn(r.ctx); err != nil {
			r.logger.Error("job failed",
				"name", j.name,
				"error", &types.DataImportError{Resource: "job", ID: j.name, Err: err},
			)
		} else {
			r.logger.Info("job finished", "name", j.name)
		}
		r.wg.Done()
	}
}
