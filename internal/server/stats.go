package server

import (
	"net/http"
)

// StatsResponse summarizes all jobs known to the store.
type StatsResponse struct {
	Jobs      map[string]int `json:"jobs"`
	TotalJobs int            `json:"total_jobs"`
	TotalCost float64        `json:"total_cost"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	jobs, err := s.store.ListJobs(r.Context(), "")
	if err != nil {
		writeStoreError(w, err)
		return
	}

	resp := StatsResponse{Jobs: make(map[string]int)}
	for _, job := range jobs {
		resp.Jobs[string(job.Status)]++
		resp.TotalJobs++
		resp.TotalCost += job.CostTotal
	}
	writeJSON(w, http.StatusOK, resp)
}
