package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *SQLite {
	t.Helper()
	s, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "forge.db"))
	if err != nil {
		t.Fatalf("OpenSQLite() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestJobRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	job := &Job{
		ProjectID: "proj-1",
		Config: JobConfig{
			URLs:     []string{"https://example.com/a"},
			Scraping: ScrapingConfig{MaxConcurrent: 2, RateLimit: 1.5, UseRenderer: "never"},
			Export:   ExportConfig{Format: "jsonl", Version: "v1"},
		},
	}
	if err := s.CreateJob(ctx, job); err != nil {
		t.Fatalf("CreateJob() error = %v", err)
	}
	if job.ID == "" {
		t.Fatal("CreateJob() did not assign an id")
	}
	if job.Status != StatusPending {
		t.Errorf("Status = %q, want pending", job.Status)
	}

	got, err := s.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetJob() error = %v", err)
	}
	if got.Config.Scraping.RateLimit != 1.5 {
		t.Errorf("RateLimit = %v, want 1.5", got.Config.Scraping.RateLimit)
	}
	if len(got.Config.URLs) != 1 || got.Config.URLs[0] != "https://example.com/a" {
		t.Errorf("URLs = %v", got.Config.URLs)
	}
}

func TestGetJobNotFound(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.GetJob(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetJob() error = %v, want ErrNotFound", err)
	}
}

func TestUpdateJobReadModifyWrite(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	job := &Job{ProjectID: "p", Config: JobConfig{}}
	if err := s.CreateJob(ctx, job); err != nil {
		t.Fatalf("CreateJob() error = %v", err)
	}

	now := time.Now().UTC()
	updated, err := s.UpdateJob(ctx, job.ID, func(j *Job) error {
		j.Status = StatusRunning
		j.Stage = "spider"
		j.Progress = 0.1
		j.StartedAt = &now
		return nil
	})
	if err != nil {
		t.Fatalf("UpdateJob() error = %v", err)
	}
	if updated.Status != StatusRunning || updated.Stage != "spider" {
		t.Errorf("updated job = %+v", updated)
	}

	got, err := s.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetJob() error = %v", err)
	}
	if got.Status != StatusRunning || got.Progress != 0.1 {
		t.Errorf("persisted job = %+v", got)
	}
	if got.StartedAt == nil {
		t.Error("StartedAt not persisted")
	}
}

func TestUpdateJobMutateErrorAborts(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	job := &Job{ProjectID: "p", Config: JobConfig{}}
	if err := s.CreateJob(ctx, job); err != nil {
		t.Fatalf("CreateJob() error = %v", err)
	}

	wantErr := errors.New("refuse")
	if _, err := s.UpdateJob(ctx, job.ID, func(j *Job) error {
		j.Status = StatusFailed
		return wantErr
	}); !errors.Is(err, wantErr) {
		t.Fatalf("UpdateJob() error = %v, want %v", err, wantErr)
	}

	got, _ := s.GetJob(ctx, job.ID)
	if got.Status != StatusPending {
		t.Errorf("job mutated despite error: status = %q", got.Status)
	}
}

func TestExportRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	exp := &Export{
		JobID:       "job-1",
		Format:      "jsonl",
		FilePath:    "/data/exports/job-1/v1.jsonl",
		RecordCount: 42,
		Version:     "v1",
		DatasetCard: "# Dataset Card",
	}
	if err := s.CreateExport(ctx, exp); err != nil {
		t.Fatalf("CreateExport() error = %v", err)
	}

	list, err := s.ListExports(ctx, "job-1")
	if err != nil {
		t.Fatalf("ListExports() error = %v", err)
	}
	if len(list) != 1 || list[0].RecordCount != 42 {
		t.Errorf("ListExports() = %+v", list)
	}
}

func TestProjectCRUD(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	p := &Project{Name: "docs", Description: "docs crawl"}
	if err := s.CreateProject(ctx, p); err != nil {
		t.Fatalf("CreateProject() error = %v", err)
	}

	list, err := s.ListProjects(ctx)
	if err != nil {
		t.Fatalf("ListProjects() error = %v", err)
	}
	if len(list) != 1 || list[0].Name != "docs" {
		t.Errorf("ListProjects() = %+v", list)
	}

	if err := s.DeleteProject(ctx, p.ID); err != nil {
		t.Fatalf("DeleteProject() error = %v", err)
	}
	if err := s.DeleteProject(ctx, p.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete error = %v, want ErrNotFound", err)
	}
}

func TestQueueFIFO(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		if err := s.Enqueue(ctx, id); err != nil {
			t.Fatalf("Enqueue(%q) error = %v", id, err)
		}
	}

	for _, want := range []string{"a", "b", "c"} {
		got, err := s.Dequeue(ctx, time.Second)
		if err != nil {
			t.Fatalf("Dequeue() error = %v", err)
		}
		if got != want {
			t.Errorf("Dequeue() = %q, want %q", got, want)
		}
	}

	if _, err := s.Dequeue(ctx, 10*time.Millisecond); !errors.Is(err, ErrNotFound) {
		t.Errorf("empty Dequeue() error = %v, want ErrNotFound", err)
	}
}

func TestNormalizeDefaults(t *testing.T) {
	var cfg JobConfig
	cfg.Normalize()

	if cfg.Scraping.MaxConcurrent != 3 || cfg.Scraping.RateLimit != 2.0 {
		t.Errorf("scraping defaults = %+v", cfg.Scraping)
	}
	if cfg.Processing.ChunkSize != 512 || cfg.Processing.ChunkOverlap != 50 {
		t.Errorf("processing defaults = %+v", cfg.Processing)
	}
	if cfg.Generation.Template != "qa" || cfg.Generation.Temperature != 0.7 {
		t.Errorf("generation defaults = %+v", cfg.Generation)
	}
	if cfg.Quality.MinScore != 0.7 {
		t.Errorf("quality defaults = %+v", cfg.Quality)
	}
	if cfg.Export.Format != "jsonl" || cfg.Export.Version != "v1" {
		t.Errorf("export defaults = %+v", cfg.Export)
	}
}
