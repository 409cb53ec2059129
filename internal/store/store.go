package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// JobStore is the job persistence surface used by the orchestrator and
// API layer. UpdateJob performs a read-modify-write inside one short
// transaction, so every status/stage/progress mutation is atomically
// visible as a whole.
type JobStore interface {
	CreateJob(ctx context.Context, job *Job) error
	GetJob(ctx context.Context, id string) (*Job, error)
	ListJobs(ctx context.Context, projectID string) ([]*Job, error)
	UpdateJob(ctx context.Context, id string, mutate func(*Job) error) (*Job, error)
}

// ExportStore is insert-only: one record per successful pipeline run.
type ExportStore interface {
	CreateExport(ctx context.Context, export *Export) error
	GetExport(ctx context.Context, id string) (*Export, error)
	ListExports(ctx context.Context, jobID string) ([]*Export, error)
}

// ProjectStore manages project rows.
type ProjectStore interface {
	CreateProject(ctx context.Context, project *Project) error
	GetProject(ctx context.Context, id string) (*Project, error)
	ListProjects(ctx context.Context) ([]*Project, error)
	DeleteProject(ctx context.Context, id string) error
}

// Queue hands pending job ids to the worker. Dequeue blocks up to
// timeout and returns ErrNotFound when nothing is pending.
type Queue interface {
	Enqueue(ctx context.Context, jobID string) error
	Dequeue(ctx context.Context, timeout time.Duration) (string, error)
}

// Store is the full persistence surface.
type Store interface {
	JobStore
	ExportStore
	ProjectStore
	Queue
	Close() error
}
