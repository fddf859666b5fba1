package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/YelovSK/Damebooru-sub002/internal/httputil"
	"github.com/YelovSK/Damebooru-sub002/internal/jobs"
	"github.com/YelovSK/Damebooru-sub002/internal/models"
	"github.com/YelovSK/Damebooru-sub002/internal/outcome"
)

func (s *Server) handleListLibraries(w http.ResponseWriter, r *http.Request) {
	libs, err := s.libraries.List()
	if err != nil {
		httputil.WriteOutcome(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, libs)
}

type libraryRequest struct {
	Name                string `json:"name"`
	Path                string `json:"path"`
	ScanIntervalMinutes int    `json:"scan_interval_minutes"`
}

func (req *libraryRequest) validate() error {
	if req.Name == "" {
		return outcome.InvalidInput("library name is required")
	}
	if req.Path == "" {
		return outcome.InvalidInput("library path is required")
	}
	return nil
}

func (s *Server) handleCreateLibrary(w http.ResponseWriter, r *http.Request) {
	var req libraryRequest
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.validate(); err != nil {
		httputil.WriteOutcome(w, err)
		return
	}

	lib := models.Library{
		Name:                req.Name,
		Path:                req.Path,
		ScanIntervalMinutes: req.ScanIntervalMinutes,
	}
	if err := s.libraries.Create(&lib); err != nil {
		httputil.WriteOutcome(w, err)
		return
	}

	// New libraries get scanned right away so posts show up without
	// waiting for the nightly schedule.
	if _, err := s.startLibraryScan(&lib); err != nil {
		s.log.Warn("auto-scan not started", "library", lib.Name, "error", err)
	}

	httputil.WriteJSON(w, http.StatusCreated, lib)
}

func (s *Server) handleGetLibrary(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httputil.WriteOutcome(w, err)
		return
	}
	lib, err := s.libraries.GetByID(id)
	if err != nil {
		httputil.WriteOutcome(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, lib)
}

func (s *Server) handleUpdateLibrary(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httputil.WriteOutcome(w, err)
		return
	}
	var req libraryRequest
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.validate(); err != nil {
		httputil.WriteOutcome(w, err)
		return
	}

	lib, err := s.libraries.GetByID(id)
	if err != nil {
		httputil.WriteOutcome(w, err)
		return
	}
	lib.Name = req.Name
	lib.Path = req.Path
	lib.ScanIntervalMinutes = req.ScanIntervalMinutes
	if err := s.libraries.Update(lib); err != nil {
		httputil.WriteOutcome(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, lib)
}

func (s *Server) handleDeleteLibrary(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httputil.WriteOutcome(w, err)
		return
	}
	if err := s.libraries.Delete(id); err != nil {
		httputil.WriteOutcome(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]int64{"deleted": id})
}

// startLibraryScan launches an ad hoc sync of one library under the job
// registry's usual conflict rules.
func (s *Server) startLibraryScan(lib *models.Library) (uuid.UUID, error) {
	return s.registry.StartAdHoc("Scan library "+lib.Name, func(ctx context.Context, rep *jobs.Reporter) error {
		summary, err := s.sync.Sync(ctx, lib, rep)
		if err != nil {
			return err
		}
		rep.ClearProgress()
		rep.SetResult(1, *summary)
		rep.SetFinalText(fmt.Sprintf("Scanned %d files: %d added, %d updated, %d moved, %d removed.",
			summary.Scanned, summary.Added, summary.Updated, summary.Moved, summary.Removed))
		return nil
	})
}

func (s *Server) handleScanLibrary(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httputil.WriteOutcome(w, err)
		return
	}
	lib, err := s.libraries.GetByID(id)
	if err != nil {
		httputil.WriteOutcome(w, err)
		return
	}
	execID, err := s.startLibraryScan(lib)
	if err != nil {
		httputil.WriteOutcome(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusAccepted, map[string]uuid.UUID{"execution_id": execID})
}

// ──────────────────── Ignored Paths ────────────────────

func (s *Server) handleListIgnoredPaths(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httputil.WriteOutcome(w, err)
		return
	}
	if _, err := s.libraries.GetByID(id); err != nil {
		httputil.WriteOutcome(w, err)
		return
	}
	paths, err := s.libraries.IgnoredPaths(id)
	if err != nil {
		httputil.WriteOutcome(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, paths)
}

func (s *Server) handleAddIgnoredPath(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httputil.WriteOutcome(w, err)
		return
	}
	var req struct {
		PathPrefix string `json:"path_prefix"`
	}
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if _, err := s.libraries.GetByID(id); err != nil {
		httputil.WriteOutcome(w, err)
		return
	}
	added, err := s.libraries.AddIgnoredPath(id, req.PathPrefix)
	if err != nil {
		httputil.WriteOutcome(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, added)
}

func (s *Server) handleRemoveIgnoredPath(w http.ResponseWriter, r *http.Request) {
	ignoreID, err := pathID(r, "pathID")
	if err != nil {
		httputil.WriteOutcome(w, err)
		return
	}
	if err := s.libraries.RemoveIgnoredPath(ignoreID); err != nil {
		httputil.WriteOutcome(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]int64{"deleted": ignoreID})
}
