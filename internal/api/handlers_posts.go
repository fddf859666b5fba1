package api

import (
	"net/http"
	"path/filepath"

	"github.com/YelovSK/Damebooru-sub002/internal/httputil"
	"github.com/YelovSK/Damebooru-sub002/internal/models"
	"github.com/YelovSK/Damebooru-sub002/internal/outcome"
	"github.com/YelovSK/Damebooru-sub002/internal/search"
)

func (s *Server) handleSearchPosts(w http.ResponseWriter, r *http.Request) {
	query := search.Parse(r.URL.Query().Get("q"))
	where, args, order := search.Plan(query)
	page, pageSize := pageParams(r)

	posts, total, err := s.posts.Search(where, args, order, page, pageSize)
	if err != nil {
		httputil.WriteOutcome(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, pagedResponse{
		Items:    posts,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	})
}

// postDetail is a post hydrated with its tags and sources.
type postDetail struct {
	models.Post
	Tags    []*models.Tag       `json:"tags"`
	Sources []models.PostSource `json:"sources"`
}

func (s *Server) handleGetPost(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httputil.WriteOutcome(w, err)
		return
	}
	post, err := s.posts.GetByID(id)
	if err != nil {
		httputil.WriteOutcome(w, err)
		return
	}
	tags, err := s.tags.ListForPost(id)
	if err != nil {
		httputil.WriteOutcome(w, err)
		return
	}
	sources, err := s.posts.GetSources(id)
	if err != nil {
		httputil.WriteOutcome(w, err)
		return
	}
	post.TagCount = len(tags)
	httputil.WriteJSON(w, http.StatusOK, postDetail{Post: *post, Tags: tags, Sources: sources})
}

func (s *Server) handleDeletePost(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httputil.WriteOutcome(w, err)
		return
	}
	if err := s.posts.Delete(id); err != nil {
		httputil.WriteOutcome(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]int64{"deleted": id})
}

func (s *Server) handleSetFavorite(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httputil.WriteOutcome(w, err)
		return
	}
	var req struct {
		IsFavorite bool `json:"is_favorite"`
	}
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	post, err := s.posts.GetByID(id)
	if err != nil {
		httputil.WriteOutcome(w, err)
		return
	}
	if err := s.posts.SetFavorite(id, req.IsFavorite); err != nil {
		httputil.WriteOutcome(w, err)
		return
	}
	post.IsFavorite = req.IsFavorite
	httputil.WriteJSON(w, http.StatusOK, post)
}

// ──────────────────── File Serving ────────────────────

func (s *Server) handlePostContent(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httputil.WriteOutcome(w, err)
		return
	}
	post, err := s.posts.GetByID(id)
	if err != nil {
		httputil.WriteOutcome(w, err)
		return
	}
	lib, err := s.libraries.GetByID(post.LibraryID)
	if err != nil {
		httputil.WriteOutcome(w, err)
		return
	}
	// ServeFile honors range requests, which video playback needs.
	w.Header().Set("Content-Type", post.ContentType)
	http.ServeFile(w, r, filepath.Join(lib.Path, filepath.FromSlash(post.RelativePath)))
}

func (s *Server) handlePostThumbnail(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httputil.WriteOutcome(w, err)
		return
	}
	post, err := s.posts.GetByID(id)
	if err != nil {
		httputil.WriteOutcome(w, err)
		return
	}
	if !s.thumbs.Exists(post.LibraryID, post.ContentHash) {
		httputil.WriteOutcome(w, outcome.NotFound("no thumbnail for post %d", id))
		return
	}
	w.Header().Set("Content-Type", "image/webp")
	http.ServeFile(w, r, s.thumbs.PathFor(post.LibraryID, post.ContentHash))
}

// ──────────────────── Post Tags & Sources ────────────────────

func (s *Server) handleAddPostTag(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httputil.WriteOutcome(w, err)
		return
	}
	var req struct {
		Name string `json:"name"`
	}
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	name := models.SanitizeTagName(req.Name)
	if name == "" {
		httputil.WriteOutcome(w, outcome.InvalidInput("tag name %q has no usable characters", req.Name))
		return
	}
	if _, err := s.posts.GetByID(id); err != nil {
		httputil.WriteOutcome(w, err)
		return
	}
	tag, err := s.tags.Ensure(name)
	if err != nil {
		httputil.WriteOutcome(w, err)
		return
	}
	if err := s.tags.AssignToPost(id, tag.ID, models.TagSourceManual); err != nil {
		httputil.WriteOutcome(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, tag)
}

func (s *Server) handleRemovePostTag(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httputil.WriteOutcome(w, err)
		return
	}
	tagID, err := pathID(r, "tagID")
	if err != nil {
		httputil.WriteOutcome(w, err)
		return
	}
	if err := s.tags.RemoveFromPost(id, tagID); err != nil {
		httputil.WriteOutcome(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]int64{"removed": tagID})
}

func (s *Server) handleSetPostSources(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httputil.WriteOutcome(w, err)
		return
	}
	var req struct {
		URLs []string `json:"urls"`
	}
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if _, err := s.posts.GetByID(id); err != nil {
		httputil.WriteOutcome(w, err)
		return
	}
	if err := s.posts.SetSources(id, req.URLs); err != nil {
		httputil.WriteOutcome(w, err)
		return
	}
	sources, err := s.posts.GetSources(id)
	if err != nil {
		httputil.WriteOutcome(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, sources)
}
