package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// SQLite implements Store on an embedded SQLite database in WAL mode.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (and migrates) the database at path. Use ":memory:"
// for tests.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// A single writer connection sidesteps SQLITE_BUSY under the short
	// read-modify-write transactions the orchestrator issues.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, err
		}
	}

	if err := initSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLite{db: db}, nil
}

// Close closes the underlying database.
func (s *SQLite) Close() error {
	return s.db.Close()
}

func initSchema(ctx context.Context, db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS projects (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	config TEXT,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS jobs (
	id TEXT PRIMARY KEY,
	project_id TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'pending',
	stage TEXT NOT NULL DEFAULT '',
	config TEXT NOT NULL,
	progress REAL NOT NULL DEFAULT 0,
	error TEXT NOT NULL DEFAULT '',
	cost_total REAL NOT NULL DEFAULT 0,
	started_at TEXT,
	completed_at TEXT,
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS exports (
	id TEXT PRIMARY KEY,
	job_id TEXT NOT NULL,
	format TEXT NOT NULL,
	file_path TEXT NOT NULL,
	record_count INTEGER NOT NULL DEFAULT 0,
	version TEXT NOT NULL,
	dataset_card TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS job_queue (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	job_id TEXT NOT NULL,
	enqueued_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_jobs_project ON jobs(project_id);
CREATE INDEX IF NOT EXISTS idx_exports_job ON exports(job_id);
`
	_, err := db.ExecContext(ctx, schema)
	return err
}

// --- time encoding -------------------------------------------------------

func encodeTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func encodeTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return encodeTime(*t)
}

func decodeTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func decodeTimePtr(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t := decodeTime(s.String)
	return &t
}

// --- projects ------------------------------------------------------------

func (s *SQLite) CreateProject(ctx context.Context, project *Project) error {
	if project.ID == "" {
		project.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if project.CreatedAt.IsZero() {
		project.CreatedAt = now
	}
	project.UpdatedAt = now

	var cfg any
	if project.Config != nil {
		raw, err := json.Marshal(project.Config)
		if err != nil {
			return fmt.Errorf("marshal project config: %w", err)
		}
		cfg = string(raw)
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO projects (id, name, description, config, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		project.ID, project.Name, project.Description, cfg,
		encodeTime(project.CreatedAt), encodeTime(project.UpdatedAt),
	)
	return err
}

func (s *SQLite) GetProject(ctx context.Context, id string) (*Project, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, description, config, created_at, updated_at FROM projects WHERE id = ?`, id)
	return scanProject(row)
}

func (s *SQLite) ListProjects(ctx context.Context) ([]*Project, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, description, config, created_at, updated_at FROM projects ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var projects []*Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

func (s *SQLite) DeleteProject(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProject(row rowScanner) (*Project, error) {
	var p Project
	var cfg sql.NullString
	var created, updated string
	err := row.Scan(&p.ID, &p.Name, &p.Description, &cfg, &created, &updated)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if cfg.Valid && cfg.String != "" {
		var jc JobConfig
		if err := json.Unmarshal([]byte(cfg.String), &jc); err == nil {
			p.Config = &jc
		}
	}
	p.CreatedAt = decodeTime(created)
	p.UpdatedAt = decodeTime(updated)
	return &p, nil
}

// --- jobs ----------------------------------------------------------------

func (s *SQLite) CreateJob(ctx context.Context, job *Job) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.Status == "" {
		job.Status = StatusPending
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}

	raw, err := json.Marshal(job.Config)
	if err != nil {
		return fmt.Errorf("marshal job config: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO jobs (id, project_id, status, stage, config, progress, error, cost_total, started_at, completed_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID, job.ProjectID, string(job.Status), job.Stage, string(raw),
		job.Progress, job.Error, job.CostTotal,
		encodeTimePtr(job.StartedAt), encodeTimePtr(job.CompletedAt), encodeTime(job.CreatedAt),
	)
	return err
}

const jobColumns = `id, project_id, status, stage, config, progress, error, cost_total, started_at, completed_at, created_at`

func (s *SQLite) GetJob(ctx context.Context, id string) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	return scanJob(row)
}

func (s *SQLite) ListJobs(ctx context.Context, projectID string) ([]*Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs ORDER BY created_at DESC`
	args := []any{}
	if projectID != "" {
		query = `SELECT ` + jobColumns + ` FROM jobs WHERE project_id = ? ORDER BY created_at DESC`
		args = append(args, projectID)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// UpdateJob loads the job, applies mutate, and writes the result back,
// all inside one transaction.
func (s *SQLite) UpdateJob(ctx context.Context, id string, mutate func(*Job) error) (*Job, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if err != nil {
		return nil, err
	}

	if err := mutate(job); err != nil {
		return nil, err
	}

	raw, err := json.Marshal(job.Config)
	if err != nil {
		return nil, fmt.Errorf("marshal job config: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE jobs SET status = ?, stage = ?, config = ?, progress = ?, error = ?, cost_total = ?, started_at = ?, completed_at = ? WHERE id = ?`,
		string(job.Status), job.Stage, string(raw), job.Progress, job.Error, job.CostTotal,
		encodeTimePtr(job.StartedAt), encodeTimePtr(job.CompletedAt), id,
	)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return job, nil
}

func scanJob(row rowScanner) (*Job, error) {
	var j Job
	var status, cfg, created string
	var started, completed sql.NullString
	err := row.Scan(&j.ID, &j.ProjectID, &status, &j.Stage, &cfg, &j.Progress,
		&j.Error, &j.CostTotal, &started, &completed, &created)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	j.Status = Status(status)
	if err := json.Unmarshal([]byte(cfg), &j.Config); err != nil {
		return nil, fmt.Errorf("unmarshal job config: %w", err)
	}
	j.StartedAt = decodeTimePtr(started)
	j.CompletedAt = decodeTimePtr(completed)
	j.CreatedAt = decodeTime(created)
	return &j, nil
}

// --- exports -------------------------------------------------------------

func (s *SQLite) CreateExport(ctx context.Context, export *Export) error {
	if export.ID == "" {
		export.ID = uuid.NewString()
	}
	if export.CreatedAt.IsZero() {
		export.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO exports (id, job_id, format, file_path, record_count, version, dataset_card, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		export.ID, export.JobID, export.Format, export.FilePath,
		export.RecordCount, export.Version, export.DatasetCard, encodeTime(export.CreatedAt),
	)
	return err
}

func (s *SQLite) GetExport(ctx context.Context, id string) (*Export, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, job_id, format, file_path, record_count, version, dataset_card, created_at
		 FROM exports WHERE id = ?`, id)
	return scanExport(row)
}

func (s *SQLite) ListExports(ctx context.Context, jobID string) ([]*Export, error) {
	query := `SELECT id, job_id, format, file_path, record_count, version, dataset_card, created_at FROM exports ORDER BY created_at DESC`
	args := []any{}
	if jobID != "" {
		query = `SELECT id, job_id, format, file_path, record_count, version, dataset_card, created_at FROM exports WHERE job_id = ? ORDER BY created_at DESC`
		args = append(args, jobID)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var exports []*Export
	for rows.Next() {
		e, err := scanExport(rows)
		if err != nil {
			return nil, err
		}
		exports = append(exports, e)
	}
	return exports, rows.Err()
}

func scanExport(row rowScanner) (*Export, error) {
	var e Export
	var created string
	err := row.Scan(&e.ID, &e.JobID, &e.Format, &e.FilePath, &e.RecordCount,
		&e.Version, &e.DatasetCard, &created)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	e.CreatedAt = decodeTime(created)
	return &e, nil
}

// --- queue ---------------------------------------------------------------

// Enqueue appends a job id to the pending queue.
func (s *SQLite) Enqueue(ctx context.Context, jobID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO job_queue (job_id, enqueued_at) VALUES (?, ?)`,
		jobID, encodeTime(time.Now()),
	)
	return err
}

// Dequeue claims the oldest queued job id, polling until timeout.
// Returns ErrNotFound when the queue stays empty.
func (s *SQLite) Dequeue(ctx context.Context, timeout time.Duration) (string, error) {
	deadline := time.Now().Add(timeout)
	for {
		jobID, err := s.tryDequeue(ctx)
		if err == nil {
			return jobID, nil
		}
		if err != ErrNotFound {
			return "", err
		}
		if time.Now().After(deadline) {
			return "", ErrNotFound
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(250 * time.Millisecond):
		}
	}
}

func (s *SQLite) tryDequeue(ctx context.Context) (string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	var seq int64
	var jobID string
	err = tx.QueryRowContext(ctx,
		`SELECT seq, job_id FROM job_queue ORDER BY seq LIMIT 1`).Scan(&seq, &jobID)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM job_queue WHERE seq = ?`, seq); err != nil {
		return "", err
	}
	if err := tx.Commit(); err != nil {
		return "", err
	}
	return jobID, nil
}

var _ Store = (*SQLite)(nil)
