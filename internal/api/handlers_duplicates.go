package api

import (
	"net/http"

	"github.com/spf13/cast"

	"github.com/YelovSK/Damebooru-sub002/internal/httputil"
	"github.com/YelovSK/Damebooru-sub002/internal/outcome"
)

func (s *Server) handleListDuplicates(w http.ResponseWriter, r *http.Request) {
	var resolved *bool
	if v := r.URL.Query().Get("resolved"); v != "" {
		b, err := cast.ToBoolE(v)
		if err != nil {
			httputil.WriteOutcome(w, outcome.InvalidInput("invalid resolved filter %q", v))
			return
		}
		resolved = &b
	}
	page, pageSize := pageParams(r)

	groups, total, err := s.dupes.ListGroups(resolved, page, pageSize)
	if err != nil {
		httputil.WriteOutcome(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, pagedResponse{
		Items:    groups,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	})
}

func (s *Server) handleGetDuplicateGroup(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httputil.WriteOutcome(w, err)
		return
	}
	group, err := s.dupes.GetGroup(id)
	if err != nil {
		httputil.WriteOutcome(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, group)
}

func (s *Server) handleKeepAll(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httputil.WriteOutcome(w, err)
		return
	}
	if err := s.engine.KeepAll(id); err != nil {
		httputil.WriteOutcome(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]int64{"resolved": id})
}

func (s *Server) handleKeepOne(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httputil.WriteOutcome(w, err)
		return
	}
	var req struct {
		KeepPostID int64 `json:"keep_post_id"`
	}
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	deleted, err := s.engine.KeepOne(id, req.KeepPostID)
	if err != nil {
		httputil.WriteOutcome(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"kept":             req.KeepPostID,
		"deleted_post_ids": deleted,
	})
}

func (s *Server) handleResolveAllExact(w http.ResponseWriter, r *http.Request) {
	resolved, err := s.engine.ResolveAllExact()
	if err != nil {
		httputil.WriteOutcome(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]int{"resolved_groups": resolved})
}

func (s *Server) handleSameFolderGroups(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httputil.WriteOutcome(w, err)
		return
	}
	folders, err := s.engine.SameFolderGroups(id)
	if err != nil {
		httputil.WriteOutcome(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, folders)
}

func (s *Server) handleResolveSameFolder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httputil.WriteOutcome(w, err)
		return
	}
	var req struct {
		LibraryID int64  `json:"library_id"`
		Folder    string `json:"folder"`
	}
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	deleted, err := s.engine.ResolveSameFolder(id, req.LibraryID, req.Folder)
	if err != nil {
		httputil.WriteOutcome(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"deleted_post_ids": deleted})
}
