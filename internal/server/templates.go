package server

import (
	"encoding/json"
	"net/http"

	"github.com/dataforge-ai/forge/internal/templates"
)

// TemplateListResponse lists the registered generation templates.
type TemplateListResponse struct {
	Templates []string `json:"templates"`
}

func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, TemplateListResponse{Templates: s.templates.List()})
}

// RegisterTemplateRequest is the body of POST /api/templates.
type RegisterTemplateRequest struct {
	Name         string          `json:"name"`
	Type         string          `json:"type"`
	SystemPrompt string          `json:"system_prompt"`
	UserTemplate string          `json:"user_template"`
	OutputSchema json.RawMessage `json:"output_schema,omitempty"`
}

func (s *Server) handleRegisterTemplate(w http.ResponseWriter, r *http.Request) {
	var req RegisterTemplateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Name == "" || req.UserTemplate == "" {
		writeError(w, http.StatusBadRequest, "name and user_template are required")
		return
	}

	tmpl, err := templates.New(req.Name, req.Type, req.SystemPrompt, req.UserTemplate, req.OutputSchema)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.templates.Register(tmpl); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.logger.Info("template registered", "name", req.Name, "type", req.Type)
	writeJSON(w, http.StatusCreated, map[string]string{"name": req.Name})
}
