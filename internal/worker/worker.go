// Package worker consumes pending job ids from the queue and runs each
// through the pipeline orchestrator.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/dataforge-ai/forge/internal/pipeline"
	"github.com/dataforge-ai/forge/internal/store"
)

// dequeueTimeout is how long one Dequeue call waits before looping.
const dequeueTimeout = 5 * time.Second

// Worker is the queue-consuming pipeline runner. One worker processes
// one job at a time; run several for parallelism.
type Worker struct {
	queue        store.Queue
	orchestrator *pipeline.Orchestrator
	logger       *slog.Logger
}

// New builds a worker.
func New(queue store.Queue, orchestrator *pipeline.Orchestrator, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{queue: queue, orchestrator: orchestrator, logger: logger}
}

// Run processes jobs until the context is cancelled. Orchestrator
// precondition errors (job gone, already started elsewhere) are logged
// and the loop continues; they never kill the worker.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("worker started")

	for {
		if err := ctx.Err(); err != nil {
			w.logger.Info("worker stopping")
			return err
		}

		jobID, err := w.queue.Dequeue(ctx, dequeueTimeout)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				w.logger.Info("worker stopping")
				return err
			}
			w.logger.Error("dequeue failed", "error", err)
			continue
		}

		w.logger.Info("processing job", "job_id", jobID)
		if err := w.orchestrator.Run(ctx, jobID); err != nil {
			w.logger.Error("job not run", "job_id", jobID, "error", err)
			continue
		}
		w.logger.Info("job finished", "job_id", jobID)
	}
}
