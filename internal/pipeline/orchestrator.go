package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dataforge-ai/forge/internal/progress"
	"github.com/dataforge-ai/forge/internal/store"
)

// StageBuilder constructs the ordered stages for one job, with the
// job's config baked into each stage. Tests inject their own builder.
type StageBuilder func(job *store.Job) ([]Stage, error)

// Orchestrator executes the full pipeline for a job: spider through
// shipper, persisting stage/progress transitions and publishing
// progress events along the way.
type Orchestrator struct {
	jobs      store.JobStore
	exports   store.ExportStore
	publisher progress.Publisher
	build     StageBuilder
	logger    *slog.Logger
}

// NewOrchestrator wires an orchestrator. publisher may be nil when no
// one listens for progress.
func NewOrchestrator(jobs store.JobStore, exports store.ExportStore, publisher progress.Publisher, build StageBuilder, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		jobs:      jobs,
		exports:   exports,
		publisher: publisher,
		build:     build,
		logger:    logger,
	}
}

// Run executes the pipeline for jobID. It returns an error only for
// precondition failures (job missing, wrong status, stage construction
// failure); stage failures mark the job failed and return nil. A job
// whose status leaves "running" between stages is treated as cancelled.
func (o *Orchestrator) Run(ctx context.Context, jobID string) error {
	job, err := o.jobs.GetJob(ctx, jobID)
	if err != nil {
		return fmt.Errorf("load job %s: %w", jobID, err)
	}
	if job.Status != store.StatusPending {
		return fmt.Errorf("job %s has status %q, expected %q", jobID, job.Status, store.StatusPending)
	}

	stages, err := o.build(job)
	if err != nil {
		return fmt.Errorf("build stages for job %s: %w", jobID, err)
	}

	now := time.Now().UTC()
	if _, err := o.jobs.UpdateJob(ctx, jobID, func(j *store.Job) error {
		j.Status = store.StatusRunning
		j.StartedAt = &now
		return nil
	}); err != nil {
		return fmt.Errorf("mark job %s running: %w", jobID, err)
	}

	log := o.logger.With("job_id", jobID)
	log.Info("pipeline started", "stages", len(stages))

	var stageInput any = job.Config.URLs
	var lastStats map[string]any
	totalCost := 0.0

	for _, stage := range stages {
		name := stage.Name()
		prog := StageProgress[name]

		// Cancellation gate: if someone moved the job out of running
		// (cancel endpoint, operator intervention), stop before
		// dispatching the next stage.
		current, err := o.jobs.GetJob(ctx, jobID)
		if err != nil {
			return fmt.Errorf("reload job %s: %w", jobID, err)
		}
		if current.Status != store.StatusRunning {
			o.markCancelled(ctx, jobID, name, prog, current.Status)
			return nil
		}

		if _, err := o.jobs.UpdateJob(ctx, jobID, func(j *store.Job) error {
			j.Stage = name
			j.Progress = prog
			return nil
		}); err != nil {
			return fmt.Errorf("update job %s stage: %w", jobID, err)
		}
		o.publish(jobID, name, prog, "running", "")
		log.Info("stage started", "stage", name)

		result, err := stage.Run(ctx, stageInput)
		if err != nil {
			msg := fmt.Sprintf("stage %q failed: %v", name, err)
			log.Error("stage error", "stage", name, "error", err)
			o.markFailed(ctx, jobID, msg)
			o.publish(jobID, name, prog, "failed", msg)
			return nil
		}
		if !result.Success {
			msg := fmt.Sprintf("stage %q failed: %s", name, strings.Join(result.Errors, "; "))
			log.Error("stage failed", "stage", name, "errors", len(result.Errors))
			o.markFailed(ctx, jobID, msg)
			o.publish(jobID, name, prog, "failed", msg)
			return nil
		}

		if name == StageFactory {
			totalCost += StatFloat(result.Stats, "total_cost")
		}

		log.Info("stage completed", "stage", name, "item_errors", len(result.Errors))
		stageInput = result.Data
		lastStats = result.Stats
	}

	version := job.Config.Export.Version
	if version == "" {
		version = "v1"
	}
	o.recordExport(ctx, jobID, version, lastStats)

	completed := time.Now().UTC()
	if _, err := o.jobs.UpdateJob(ctx, jobID, func(j *store.Job) error {
		j.Status = store.StatusCompleted
		j.Progress = 1.0
		j.CostTotal = totalCost
		j.CompletedAt = &completed
		return nil
	}); err != nil {
		return fmt.Errorf("mark job %s completed: %w", jobID, err)
	}

	o.publish(jobID, StageShipper, 1.0, "completed", "")
	log.Info("pipeline completed", "cost_total", totalCost)
	return nil
}

// recordExport persists the export row described by the shipper stats.
// The dataset card is read back from disk; a missing card is not fatal.
func (o *Orchestrator) recordExport(ctx context.Context, jobID, version string, stats map[string]any) {
	export := &store.Export{
		ID:          uuid.NewString(),
		JobID:       jobID,
		Format:      StatString(stats, "format"),
		FilePath:    StatString(stats, "file_path"),
		RecordCount: StatInt(stats, "record_count"),
		Version:     version,
	}
	if export.Format == "" {
		export.Format = "jsonl"
	}

	if cardPath := StatString(stats, "dataset_card_path"); cardPath != "" {
		if card, err := os.ReadFile(cardPath); err == nil {
			export.DatasetCard = string(card)
		}
	}

	if err := o.exports.CreateExport(ctx, export); err != nil {
		o.logger.Warn("failed to record export", "job_id", jobID, "error", err)
	}
}

func (o *Orchestrator) markFailed(ctx context.Context, jobID, errMsg string) {
	if _, err := o.jobs.UpdateJob(ctx, jobID, func(j *store.Job) error {
		j.Status = store.StatusFailed
		j.Error = errMsg
		return nil
	}); err != nil {
		o.logger.Error("failed to mark job failed", "job_id", jobID, "error", err)
	}
}

// markCancelled settles a job that left the running state mid-pipeline.
// A status that is already terminal is left alone; anything else fails
// closed to cancelled.
func (o *Orchestrator) markCancelled(ctx context.Context, jobID, stage string, prog float64, observed store.Status) {
	if !observed.Terminal() {
		if _, err := o.jobs.UpdateJob(ctx, jobID, func(j *store.Job) error {
			if !j.Status.Terminal() {
				j.Status = store.StatusCancelled
			}
			return nil
		}); err != nil {
			o.logger.Error("failed to mark job cancelled", "job_id", jobID, "error", err)
		}
	}
	status := store.StatusCancelled
	if observed.Terminal() {
		status = observed
	}
	o.logger.Info("pipeline stopped", "job_id", jobID, "stage", stage, "observed_status", string(observed))
	o.publish(jobID, stage, prog, string(status), "")
}

func (o *Orchestrator) publish(jobID, stage string, prog float64, status, errMsg string) {
	if o.publisher == nil {
		return
	}
	o.publisher.Publish(progress.Channel(jobID), progress.Event{
		Stage:     stage,
		Progress:  prog,
		Status:    status,
		Error:     errMsg,
		Timestamp: time.Now().UTC(),
	})
}
