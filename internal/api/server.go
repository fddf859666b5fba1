// Package api exposes the library manager over HTTP: a JSON API under
// /api/v1, a WebSocket feed for job progress, and the Prometheus
// endpoint.
package api

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"

	"github.com/spf13/cast"

	"github.com/YelovSK/Damebooru-sub002/internal/auth"
	"github.com/YelovSK/Damebooru-sub002/internal/config"
	"github.com/YelovSK/Damebooru-sub002/internal/duplicates"
	"github.com/YelovSK/Damebooru-sub002/internal/httputil"
	"github.com/YelovSK/Damebooru-sub002/internal/jobs"
	"github.com/YelovSK/Damebooru-sub002/internal/observability"
	"github.com/YelovSK/Damebooru-sub002/internal/outcome"
	"github.com/YelovSK/Damebooru-sub002/internal/repository"
	"github.com/YelovSK/Damebooru-sub002/internal/scanner"
	"github.com/YelovSK/Damebooru-sub002/internal/scheduler"
	"github.com/YelovSK/Damebooru-sub002/internal/thumbs"
	"github.com/YelovSK/Damebooru-sub002/internal/version"
)

const (
	defaultPageSize = 40
	maxPageSize     = 200
)

// ──────────────────── Server ────────────────────

type Server struct {
	config    *config.Config
	auth      *auth.Service
	registry  *jobs.Registry
	scheduler *scheduler.Scheduler
	engine    *duplicates.Engine
	sync      *scanner.SyncProcessor
	thumbs    *thumbs.Store
	hub       *Hub
	log       *slog.Logger

	libraries *repository.LibraryRepository
	posts     *repository.PostRepository
	tags      *repository.TagRepository
	dupes     *repository.DuplicateRepository
	schedules *repository.ScheduleRepository
	logs      *repository.LogRepository

	router *http.ServeMux
	srv    *http.Server
}

// Deps carries the shared services the server fronts. Repositories are
// built here; anything holding run state comes in from the caller.
type Deps struct {
	Auth      *auth.Service
	Registry  *jobs.Registry
	Scheduler *scheduler.Scheduler
	Engine    *duplicates.Engine
	Sync      *scanner.SyncProcessor
	Thumbs    *thumbs.Store
	Hub       *Hub
	Log       *slog.Logger
}

func NewServer(cfg *config.Config, database *sql.DB, deps Deps) *Server {
	s := &Server{
		config:    cfg,
		auth:      deps.Auth,
		registry:  deps.Registry,
		scheduler: deps.Scheduler,
		engine:    deps.Engine,
		sync:      deps.Sync,
		thumbs:    deps.Thumbs,
		hub:       deps.Hub,
		log:       deps.Log,
		libraries: repository.NewLibraryRepository(database),
		posts:     repository.NewPostRepository(database),
		tags:      repository.NewTagRepository(database),
		dupes:     repository.NewDuplicateRepository(database),
		schedules: repository.NewScheduleRepository(database),
		logs:      repository.NewLogRepository(database),
		router:    http.NewServeMux(),
	}
	s.setupRoutes()
	s.srv = &http.Server{
		Addr:    cfg.HTTP.Addr,
		Handler: s.securityHeadersMiddleware(s.corsMiddleware(s.router)),
	}
	return s
}

func (s *Server) setupRoutes() {
	api := http.NewServeMux()

	// ──────────────────── Library Routes ────────────────────
	api.HandleFunc("GET /api/v1/libraries", s.handleListLibraries)
	api.HandleFunc("POST /api/v1/libraries", s.handleCreateLibrary)
	api.HandleFunc("GET /api/v1/libraries/{id}", s.handleGetLibrary)
	api.HandleFunc("PUT /api/v1/libraries/{id}", s.handleUpdateLibrary)
	api.HandleFunc("DELETE /api/v1/libraries/{id}", s.handleDeleteLibrary)
	api.HandleFunc("POST /api/v1/libraries/{id}/scan", s.handleScanLibrary)
	api.HandleFunc("GET /api/v1/libraries/{id}/ignored-paths", s.handleListIgnoredPaths)
	api.HandleFunc("POST /api/v1/libraries/{id}/ignored-paths", s.handleAddIgnoredPath)
	api.HandleFunc("DELETE /api/v1/libraries/{id}/ignored-paths/{pathID}", s.handleRemoveIgnoredPath)

	// ──────────────────── Post Routes ────────────────────
	api.HandleFunc("GET /api/v1/posts", s.handleSearchPosts)
	api.HandleFunc("GET /api/v1/posts/{id}", s.handleGetPost)
	api.HandleFunc("DELETE /api/v1/posts/{id}", s.handleDeletePost)
	api.HandleFunc("PUT /api/v1/posts/{id}/favorite", s.handleSetFavorite)
	api.HandleFunc("GET /api/v1/posts/{id}/content", s.handlePostContent)
	api.HandleFunc("GET /api/v1/posts/{id}/thumbnail", s.handlePostThumbnail)
	api.HandleFunc("POST /api/v1/posts/{id}/tags", s.handleAddPostTag)
	api.HandleFunc("DELETE /api/v1/posts/{id}/tags/{tagID}", s.handleRemovePostTag)
	api.HandleFunc("PUT /api/v1/posts/{id}/sources", s.handleSetPostSources)

	// ──────────────────── Tag Routes ────────────────────
	api.HandleFunc("GET /api/v1/tags", s.handleListTags)
	api.HandleFunc("GET /api/v1/tags/{id}", s.handleGetTag)
	api.HandleFunc("PUT /api/v1/tags/{id}", s.handleUpdateTag)
	api.HandleFunc("DELETE /api/v1/tags/{id}", s.handleDeleteTag)
	api.HandleFunc("GET /api/v1/tag-categories", s.handleListTagCategories)
	api.HandleFunc("POST /api/v1/tag-categories", s.handleCreateTagCategory)
	api.HandleFunc("PUT /api/v1/tag-categories/{id}", s.handleUpdateTagCategory)
	api.HandleFunc("DELETE /api/v1/tag-categories/{id}", s.handleDeleteTagCategory)

	// ──────────────────── Duplicate Routes ────────────────────
	api.HandleFunc("GET /api/v1/duplicates", s.handleListDuplicates)
	api.HandleFunc("GET /api/v1/duplicates/{id}", s.handleGetDuplicateGroup)
	api.HandleFunc("POST /api/v1/duplicates/{id}/keep-all", s.handleKeepAll)
	api.HandleFunc("POST /api/v1/duplicates/{id}/keep-one", s.handleKeepOne)
	api.HandleFunc("POST /api/v1/duplicates/resolve-exact", s.handleResolveAllExact)
	api.HandleFunc("GET /api/v1/duplicates/{id}/same-folder", s.handleSameFolderGroups)
	api.HandleFunc("POST /api/v1/duplicates/{id}/same-folder/resolve", s.handleResolveSameFolder)

	// ──────────────────── Job Routes ────────────────────
	api.HandleFunc("GET /api/v1/jobs", s.handleListJobs)
	api.HandleFunc("POST /api/v1/jobs/start", s.handleStartJob)
	api.HandleFunc("GET /api/v1/jobs/active", s.handleActiveJobs)
	api.HandleFunc("GET /api/v1/jobs/history", s.handleJobHistory)
	api.HandleFunc("POST /api/v1/jobs/{id}/cancel", s.handleCancelJob)

	// ──────────────────── Schedule Routes ────────────────────
	api.HandleFunc("GET /api/v1/schedules", s.handleListSchedules)
	api.HandleFunc("PUT /api/v1/schedules/{id}", s.handleUpdateSchedule)
	api.HandleFunc("POST /api/v1/schedules/preview", s.handlePreviewSchedule)

	// ──────────────────── Log Routes ────────────────────
	api.HandleFunc("GET /api/v1/logs", s.handleListLogs)

	// Everything under /api/v1 sits behind the session check; login and
	// the WebSocket endpoint authenticate on their own.
	s.router.Handle("/api/v1/", s.auth.Middleware(api))
	s.router.HandleFunc("POST /api/v1/auth/login", s.handleLogin)
	s.router.HandleFunc("POST /api/v1/auth/logout", s.handleLogout)
	s.router.HandleFunc("GET /api/v1/ws", s.handleWebSocket)

	// ──────────────────── System Routes ────────────────────
	s.router.HandleFunc("GET /health", s.handleHealth)
	s.router.Handle("GET /metrics", observability.Handler())
}

// ──────────────────── Request Helpers ────────────────────

// pathID reads a numeric path segment.
func pathID(r *http.Request, name string) (int64, error) {
	id, err := cast.ToInt64E(r.PathValue(name))
	if err != nil {
		return 0, outcome.InvalidInput("invalid %s %q", name, r.PathValue(name))
	}
	return id, nil
}

// intQuery reads an integer query parameter, falling back to def when the
// parameter is absent or unreadable.
func intQuery(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := cast.ToIntE(v)
	if err != nil {
		return def
	}
	return n
}

// pageParams reads page and page_size with sane bounds.
func pageParams(r *http.Request) (page, pageSize int) {
	page = intQuery(r, "page", 1)
	if page < 1 {
		page = 1
	}
	pageSize = intQuery(r, "page_size", defaultPageSize)
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return page, pageSize
}

// pagedResponse is the envelope body for list endpoints that paginate.
type pagedResponse struct {
	Items    any `json:"items"`
	Total    int `json:"total"`
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": version.String(),
	})
}

// ──────────────────── Lifecycle ────────────────────

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	s.log.Info("http server listening", "addr", s.config.HTTP.Addr)
	err := s.srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops accepting connections, drains in-flight requests, and
// disconnects WebSocket clients.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.srv.Shutdown(ctx)
	s.hub.Close()
	return err
}

// Handler exposes the full middleware-wrapped handler for tests.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

// ──────────────────── Middleware ────────────────────

func (s *Server) securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
