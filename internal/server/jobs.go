package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/dataforge-ai/forge/internal/progress"
	"github.com/dataforge-ai/forge/internal/store"
)

// CreateJobRequest is the body of POST /api/jobs.
type CreateJobRequest struct {
	ProjectID string          `json:"project_id,omitempty"`
	Config    store.JobConfig `json:"config"`
}

func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	var req CreateJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if err := validateJobURLs(req.Config.URLs); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.Config.Normalize()

	job := &store.Job{
		ID:        uuid.NewString(),
		ProjectID: req.ProjectID,
		Status:    store.StatusPending,
		Config:    req.Config,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.CreateJob(r.Context(), job); err != nil {
		writeStoreError(w, err)
		return
	}
	if err := s.store.Enqueue(r.Context(), job.ID); err != nil {
		// The row exists but will never run; surface that rather than
		// return a job the worker cannot see.
		writeError(w, http.StatusInternalServerError, "job created but not queued: "+err.Error())
		return
	}

	s.logger.Info("job created", "job_id", job.ID, "urls", len(job.Config.URLs))
	writeJSON(w, http.StatusCreated, job)
}

func validateJobURLs(urls []string) error {
	if len(urls) == 0 {
		return fmt.Errorf("config.urls must not be empty")
	}
	for _, raw := range urls {
		u, err := url.Parse(raw)
		if err != nil || !u.IsAbs() || u.Host == "" {
			return fmt.Errorf("invalid url: %q", raw)
		}
	}
	return nil
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := s.store.ListJobs(r.Context(), r.URL.Query().Get("project_id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if jobs == nil {
		jobs = []*store.Job{}
	}
	writeJSON(w, http.StatusOK, jobs)
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.store.GetJob(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// handleCancelJob flips a pending or running job to cancelled. The
// orchestrator observes the new status at its next stage boundary; a
// pending job is simply skipped when the worker picks it up.
func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	job, err := s.store.UpdateJob(r.Context(), id, func(j *store.Job) error {
		if j.Status.Terminal() {
			return fmt.Errorf("job is already %s", j.Status)
		}
		j.Status = store.StatusCancelled
		now := time.Now().UTC()
		j.CompletedAt = &now
		return nil
	})
	if err != nil {
		if _, getErr := s.store.GetJob(r.Context(), id); getErr != nil {
			writeStoreError(w, getErr)
			return
		}
		writeError(w, http.StatusConflict, err.Error())
		return
	}

	s.bus.Publish(progress.Channel(id), progress.Event{
		Stage:    job.Stage,
		Progress: job.Progress,
		Status:   string(store.StatusCancelled),
	})
	s.logger.Info("job cancelled", "job_id", id)
	writeJSON(w, http.StatusOK, job)
}

// handleStreamJob serves job progress as Server-Sent Events. The first
// event reflects the job's current state so late subscribers are not
// left waiting; the stream ends after a terminal status.
func (s *Server) handleStreamJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.store.GetJob(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	events, unsub := s.bus.Subscribe(progress.Channel(job.ID))
	defer unsub()

	snapshot := progress.Event{
		Stage:     job.Stage,
		Progress:  job.Progress,
		Status:    string(job.Status),
		Error:     job.Error,
		Timestamp: time.Now().UTC(),
	}
	if err := writeSSE(w, flusher, snapshot); err != nil || progress.Terminal(snapshot.Status) {
		return
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := writeSSE(w, flusher, ev); err != nil {
				return
			}
			if progress.Terminal(ev.Status) {
				return
			}
		}
	}
}

func writeSSE(w http.ResponseWriter, flusher http.Flusher, ev progress.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}
