package api

import (
	"net/http"

	"github.com/YelovSK/Damebooru-sub002/internal/httputil"
	"github.com/YelovSK/Damebooru-sub002/internal/models"
	"github.com/YelovSK/Damebooru-sub002/internal/outcome"
)

func (s *Server) handleListTags(w http.ResponseWriter, r *http.Request) {
	tags, err := s.tags.List()
	if err != nil {
		httputil.WriteOutcome(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, tags)
}

func (s *Server) handleGetTag(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httputil.WriteOutcome(w, err)
		return
	}
	tag, err := s.tags.GetByID(id)
	if err != nil {
		httputil.WriteOutcome(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, tag)
}

type updateTagRequest struct {
	Name       string `json:"name"`
	CategoryID *int64 `json:"category_id"`
}

// handleUpdateTag renames and recategorizes a tag. Renaming onto an
// existing name merges the two; the survivor is returned either way.
func (s *Server) handleUpdateTag(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httputil.WriteOutcome(w, err)
		return
	}
	var req updateTagRequest
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	tag, err := s.tags.GetByID(id)
	if err != nil {
		httputil.WriteOutcome(w, err)
		return
	}

	survivorID := id
	if req.Name != "" {
		name := models.SanitizeTagName(req.Name)
		if name == "" {
			httputil.WriteOutcome(w, outcome.InvalidInput("tag name %q has no usable characters", req.Name))
			return
		}
		if name != tag.Name {
			survivorID, err = s.tags.RenameOrMerge(id, name)
			if err != nil {
				httputil.WriteOutcome(w, err)
				return
			}
		}
	}

	survivor, err := s.tags.GetByID(survivorID)
	if err != nil {
		httputil.WriteOutcome(w, err)
		return
	}
	survivor.CategoryID = req.CategoryID
	if err := s.tags.Update(survivor); err != nil {
		httputil.WriteOutcome(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, survivor)
}

func (s *Server) handleDeleteTag(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httputil.WriteOutcome(w, err)
		return
	}
	if err := s.tags.Delete(id); err != nil {
		httputil.WriteOutcome(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]int64{"deleted": id})
}

// ──────────────────── Tag Categories ────────────────────

func (s *Server) handleListTagCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := s.tags.ListCategories()
	if err != nil {
		httputil.WriteOutcome(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, cats)
}

type tagCategoryRequest struct {
	Name      string `json:"name"`
	Color     string `json:"color"`
	SortOrder int    `json:"sort_order"`
}

func (s *Server) handleCreateTagCategory(w http.ResponseWriter, r *http.Request) {
	var req tagCategoryRequest
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		httputil.WriteOutcome(w, outcome.InvalidInput("category name is required"))
		return
	}
	cat := models.TagCategory{Name: req.Name, Color: req.Color, SortOrder: req.SortOrder}
	if err := s.tags.CreateCategory(&cat); err != nil {
		httputil.WriteOutcome(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, cat)
}

func (s *Server) handleUpdateTagCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httputil.WriteOutcome(w, err)
		return
	}
	var req tagCategoryRequest
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		httputil.WriteOutcome(w, outcome.InvalidInput("category name is required"))
		return
	}
	cat := models.TagCategory{ID: id, Name: req.Name, Color: req.Color, SortOrder: req.SortOrder}
	if err := s.tags.UpdateCategory(&cat); err != nil {
		httputil.WriteOutcome(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, cat)
}

func (s *Server) handleDeleteTagCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httputil.WriteOutcome(w, err)
		return
	}
	if err := s.tags.DeleteCategory(id); err != nil {
		httputil.WriteOutcome(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]int64{"deleted": id})
}
