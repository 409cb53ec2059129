// Package store persists projects, jobs, and exports in SQLite and
// provides the pending-job queue consumed by the worker.
package store

import "time"

// Status is the lifecycle state of a job. completed, failed, and
// cancelled are terminal; no transitions leave them.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether s is a terminal status.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// Project groups jobs under a name and default config.
type Project struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Config      *JobConfig `json:"config,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Job is one pipeline run. The orchestrator exclusively owns its state
// transitions; stages never touch job rows.
type Job struct {
	ID          string     `json:"id"`
	ProjectID   string     `json:"project_id"`
	Status      Status     `json:"status"`
	Stage       string     `json:"stage,omitempty"`
	Config      JobConfig  `json:"config"`
	Progress    float64    `json:"progress"`
	Error       string     `json:"error,omitempty"`
	CostTotal   float64    `json:"cost_total"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Export records one exported dataset produced by a successful run.
type Export struct {
	ID          string    `json:"id"`
	JobID       string    `json:"job_id"`
	Format      string    `json:"format"`
	FilePath    string    `json:"file_path"`
	RecordCount int       `json:"record_count"`
	Version     string    `json:"version"`
	DatasetCard string    `json:"dataset_card,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// JobConfig is the structured per-job configuration.
type JobConfig struct {
	URLs       []string         `json:"urls"`
	Scraping   ScrapingConfig   `json:"scraping"`
	Processing ProcessingConfig `json:"processing"`
	Generation GenerationConfig `json:"generation"`
	Quality    QualityConfig    `json:"quality"`
	Export     ExportConfig     `json:"export"`
}

// ScrapingConfig drives the spider stage.
type ScrapingConfig struct {
	MaxConcurrent    int     `json:"max_concurrent"`
	RateLimit        float64 `json:"rate_limit"`
	UseRenderer      string  `json:"use_renderer"` // "auto", "always", "never"
	RespectRobotsTxt bool    `json:"respect_robots_txt"`
}

// ProcessingConfig drives the refiner stage.
type ProcessingConfig struct {
	ChunkSize     int    `json:"chunk_size"`
	ChunkOverlap  int    `json:"chunk_overlap"`
	ChunkStrategy string `json:"chunk_strategy"`
}

// GenerationConfig drives the factory stage.
type GenerationConfig struct {
	Template         string  `json:"template"`
	Model            string  `json:"model"`
	ExamplesPerChunk int     `json:"examples_per_chunk"`
	Temperature      float64 `json:"temperature"`
	MaxConcurrentLLM int     `json:"max_concurrent_llm"`
}

// QualityConfig drives the inspector stage.
type QualityConfig struct {
	MinScore float64            `json:"min_score"`
	Checks   []string           `json:"checks"`
	Weights  map[string]float64 `json:"weights,omitempty"`
}

// ExportConfig drives the shipper stage.
type ExportConfig struct {
	Format  string `json:"format"`
	Version string `json:"version,omitempty"`
}

// Normalize fills unset config fields with defaults.
func (c *JobConfig) Normalize() {
	if c.Scraping.MaxConcurrent <= 0 {
		c.Scraping.MaxConcurrent = 3
	}
	if c.Scraping.RateLimit <= 0 {
		c.Scraping.RateLimit = 2.0
	}
	if c.Scraping.UseRenderer == "" {
		c.Scraping.UseRenderer = "auto"
	}
	if c.Processing.ChunkSize <= 0 {
		c.Processing.ChunkSize = 512
	}
	if c.Processing.ChunkOverlap < 0 {
		c.Processing.ChunkOverlap = 0
	} else if c.Processing.ChunkOverlap == 0 {
		c.Processing.ChunkOverlap = 50
	}
	if c.Generation.Template == "" {
		c.Generation.Template = "qa"
	}
	if c.Generation.Model == "" {
		c.Generation.Model = "gpt-4o-mini"
	}
	if c.Generation.ExamplesPerChunk <= 0 {
		c.Generation.ExamplesPerChunk = 3
	}
	if c.Generation.Temperature == 0 {
		c.Generation.Temperature = 0.7
	}
	if c.Quality.MinScore == 0 {
		c.Quality.MinScore = 0.7
	}
	if len(c.Quality.Checks) == 0 {
		c.Quality.Checks = []string{"format", "length_balance", "duplicate"}
	}
	if c.Export.Format == "" {
		c.Export.Format = "jsonl"
	}
	if c.Export.Version == "" {
		c.Export.Version = "v1"
	}
}
