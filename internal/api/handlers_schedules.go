package api

import (
	"net/http"

	"github.com/YelovSK/Damebooru-sub002/internal/httputil"
	"github.com/YelovSK/Damebooru-sub002/internal/scheduler"
)

// jobNames maps registered job keys to display names for schedule rows.
func (s *Server) jobNames() map[string]string {
	names := make(map[string]string)
	for _, d := range s.registry.Definitions() {
		names[d.Key] = d.Name
	}
	return names
}

func (s *Server) handleListSchedules(w http.ResponseWriter, r *http.Request) {
	scheds, err := s.schedules.List()
	if err != nil {
		httputil.WriteOutcome(w, err)
		return
	}
	names := s.jobNames()
	for _, sched := range scheds {
		sched.JobName = names[sched.JobKey]
	}
	httputil.WriteJSON(w, http.StatusOK, scheds)
}

func (s *Server) handleUpdateSchedule(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httputil.WriteOutcome(w, err)
		return
	}
	var req struct {
		CronExpression string `json:"cron_expression"`
		IsEnabled      bool   `json:"is_enabled"`
	}
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	sched, err := s.scheduler.UpdateSchedule(id, req.CronExpression, req.IsEnabled)
	if err != nil {
		httputil.WriteOutcome(w, err)
		return
	}
	sched.JobName = s.jobNames()[sched.JobKey]
	httputil.WriteJSON(w, http.StatusOK, sched)
}

func (s *Server) handlePreviewSchedule(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CronExpression string `json:"cron_expression"`
		Count          int    `json:"count"`
	}
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Count < 1 || req.Count > 20 {
		req.Count = 5
	}
	httputil.WriteJSON(w, http.StatusOK, scheduler.Preview(req.CronExpression, req.Count))
}
