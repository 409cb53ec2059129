package server

import (
	"net/http"

	"github.com/dataforge-ai/forge/internal/store"
)

func (s *Server) handleListExports(w http.ResponseWriter, r *http.Request) {
	exports, err := s.store.ListExports(r.Context(), r.URL.Query().Get("job_id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if exports == nil {
		exports = []*store.Export{}
	}
	writeJSON(w, http.StatusOK, exports)
}

func (s *Server) handleGetExport(w http.ResponseWriter, r *http.Request) {
	export, err := s.store.GetExport(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, export)
}
