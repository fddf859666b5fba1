package api

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/YelovSK/Damebooru-sub002/internal/httputil"
	"github.com/YelovSK/Damebooru-sub002/internal/jobs"
	"github.com/YelovSK/Damebooru-sub002/internal/outcome"
)

// jobDefinition is the wire shape of a registered job.
type jobDefinition struct {
	Key             string `json:"key"`
	Name            string `json:"name"`
	Description     string `json:"description"`
	SupportsAllMode bool   `json:"supports_all_mode"`
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	defs := s.registry.Definitions()
	out := make([]jobDefinition, 0, len(defs))
	for _, d := range defs {
		out = append(out, jobDefinition{
			Key:             d.Key,
			Name:            d.Name,
			Description:     d.Description,
			SupportsAllMode: d.SupportsAllMode,
		})
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

func (s *Server) handleStartJob(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Key  string `json:"key"`
		Mode string `json:"mode"`
	}
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	execID, err := s.registry.Start(req.Key, jobs.Mode(req.Mode))
	if err != nil {
		httputil.WriteOutcome(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusAccepted, map[string]uuid.UUID{"execution_id": execID})
}

func (s *Server) handleActiveJobs(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, s.registry.Active())
}

func (s *Server) handleJobHistory(w http.ResponseWriter, r *http.Request) {
	page, pageSize := pageParams(r)
	execs, total, err := s.registry.History(page, pageSize)
	if err != nil {
		httputil.WriteOutcome(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, pagedResponse{
		Items:    execs,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	})
}

func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		httputil.WriteOutcome(w, outcome.InvalidInput("invalid execution id %q", r.PathValue("id")))
		return
	}
	if err := s.registry.Cancel(id); err != nil {
		httputil.WriteOutcome(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]uuid.UUID{"cancelled": id})
}
