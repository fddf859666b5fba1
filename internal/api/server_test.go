package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/YelovSK/Damebooru-sub002/internal/auth"
	"github.com/YelovSK/Damebooru-sub002/internal/config"
	"github.com/YelovSK/Damebooru-sub002/internal/db"
	"github.com/YelovSK/Damebooru-sub002/internal/duplicates"
	"github.com/YelovSK/Damebooru-sub002/internal/jobs"
	"github.com/YelovSK/Damebooru-sub002/internal/mediasource"
	"github.com/YelovSK/Damebooru-sub002/internal/models"
	"github.com/YelovSK/Damebooru-sub002/internal/repository"
	"github.com/YelovSK/Damebooru-sub002/internal/scanner"
	"github.com/YelovSK/Damebooru-sub002/internal/scheduler"
	"github.com/YelovSK/Damebooru-sub002/internal/thumbs"
)

type apiFixture struct {
	server    *Server
	handler   http.Handler
	hub       *Hub
	registry  *jobs.Registry
	engine    *duplicates.Engine
	scheduler *scheduler.Scheduler
	libraries *repository.LibraryRepository
	posts     *repository.PostRepository
	tags      *repository.TagRepository
	logs      *repository.LogRepository
	store     *thumbs.Store

	seq int
}

func newFixture(t *testing.T, authCfg config.Auth) *apiFixture {
	t.Helper()
	database, err := db.Connect(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	require.NoError(t, database.Migrate())

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := &config.Config{
		HTTP: config.HTTP{Addr: "127.0.0.1:0"},
		Auth: authCfg,
	}

	libraries := repository.NewLibraryRepository(database.DB)
	posts := repository.NewPostRepository(database.DB)
	tags := repository.NewTagRepository(database.DB)
	dupes := repository.NewDuplicateRepository(database.DB)
	exclusions := repository.NewExclusionRepository(database.DB)
	logRepo := repository.NewLogRepository(database.DB)
	jobRepo := repository.NewJobRepository(database.DB)
	schedRepo := repository.NewScheduleRepository(database.DB)

	hub := NewHub()
	registry := jobs.NewRegistry(jobRepo, hub, 10*time.Millisecond, log)
	engine := duplicates.NewEngine(posts, dupes, log)
	sched := scheduler.New(schedRepo, registry, log)
	store := thumbs.NewStore(t.TempDir())
	sync := scanner.NewSyncProcessor(libraries, posts, exclusions, mediasource.New(log), store,
		scanner.Config{SnapshotPageSize: 50, IngestBatchSize: 10, IngestCapacity: 32}, log)

	authSvc, err := auth.NewService(cfg.Auth)
	require.NoError(t, err)

	server := NewServer(cfg, database.DB, Deps{
		Auth:      authSvc,
		Registry:  registry,
		Scheduler: sched,
		Engine:    engine,
		Sync:      sync,
		Thumbs:    store,
		Hub:       hub,
		Log:       log,
	})
	return &apiFixture{
		server:    server,
		handler:   server.Handler(),
		hub:       hub,
		registry:  registry,
		engine:    engine,
		scheduler: sched,
		libraries: libraries,
		posts:     posts,
		tags:      tags,
		logs:      logRepo,
		store:     store,
	}
}

func newTestServer(t *testing.T) *apiFixture {
	return newFixture(t, config.Auth{})
}

// ──────────────────── Request Helpers ────────────────────

func (f *apiFixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	require.True(t, env.Success, "api error: %s", env.Error)
	if dst != nil {
		require.NoError(t, json.Unmarshal(env.Data, dst))
	}
}

func apiError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	require.False(t, env.Success)
	return env.Error
}

// waitIdle blocks until every execution has reached a persisted terminal
// state, so tests that trigger jobs do not leak goroutines past the test
// body.
func (f *apiFixture) waitIdle(t *testing.T) {
	t.Helper()
	require.Eventually(t, func() bool {
		if len(f.registry.Active()) > 0 {
			return false
		}
		execs, _, err := f.registry.History(1, 50)
		if err != nil {
			return false
		}
		for _, e := range execs {
			if !e.Status.Terminal() {
				return false
			}
		}
		return true
	}, 5*time.Second, 5*time.Millisecond)
}

// ──────────────────── Seed Helpers ────────────────────

func (f *apiFixture) addLibrary(t *testing.T, name string) *models.Library {
	t.Helper()
	lib := &models.Library{Name: name, Path: t.TempDir()}
	require.NoError(t, f.libraries.Create(lib))
	return lib
}

func (f *apiFixture) addPost(t *testing.T, lib *models.Library, rel, hash string) *models.Post {
	t.Helper()
	f.seq++
	if hash == "" {
		hash = fmt.Sprintf("%016x", f.seq)
	}
	now := time.Now().UTC().Truncate(time.Second)
	p := &models.Post{
		LibraryID:        lib.ID,
		RelativePath:     rel,
		ContentHash:      hash,
		SizeBytes:        int64(1000 + f.seq),
		ContentType:      models.ContentTypeForPath(rel),
		ImportDate:       now,
		FileModifiedDate: now,
	}
	require.NoError(t, f.posts.Create(p))
	return p
}

// ──────────────────── Libraries ────────────────────

func TestLibraryEndpoints(t *testing.T) {
	defer goleak.VerifyNone(t)
	f := newTestServer(t)

	rec := f.do(t, http.MethodPost, "/api/v1/libraries", map[string]any{
		"name": "wallpapers", "path": t.TempDir(), "scan_interval_minutes": 60,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var created models.Library
	decodeData(t, rec, &created)
	assert.NotZero(t, created.ID)
	assert.Equal(t, "wallpapers", created.Name)

	// Creation kicks off an automatic scan of the (empty) directory.
	f.waitIdle(t)

	rec = f.do(t, http.MethodGet, fmt.Sprintf("/api/v1/libraries/%d", created.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodPut, fmt.Sprintf("/api/v1/libraries/%d", created.ID), map[string]any{
		"name": "walls", "path": created.Path, "scan_interval_minutes": 30,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var updated models.Library
	decodeData(t, rec, &updated)
	assert.Equal(t, "walls", updated.Name)
	assert.Equal(t, 30, updated.ScanIntervalMinutes)

	rec = f.do(t, http.MethodGet, "/api/v1/libraries", nil)
	var libs []models.Library
	decodeData(t, rec, &libs)
	require.Len(t, libs, 1)

	rec = f.do(t, http.MethodDelete, fmt.Sprintf("/api/v1/libraries/%d", created.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, fmt.Sprintf("/api/v1/libraries/%d", created.ID), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLibraryValidation(t *testing.T) {
	defer goleak.VerifyNone(t)
	f := newTestServer(t)

	rec := f.do(t, http.MethodPost, "/api/v1/libraries", map[string]any{"path": "/srv/art"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, apiError(t, rec), "name")

	rec = f.do(t, http.MethodPost, "/api/v1/libraries", map[string]any{"name": "art"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, apiError(t, rec), "path")

	rec = f.do(t, http.MethodGet, "/api/v1/libraries/banana", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/v1/libraries/9999", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLibraryScanEndpoint(t *testing.T) {
	defer goleak.VerifyNone(t)
	f := newTestServer(t)
	lib := f.addLibrary(t, "pics")

	dir := lib.Path
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.jpg"), []byte("jpeg bytes"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.png"), []byte("png bytes"), 0o644))

	rec := f.do(t, http.MethodPost, fmt.Sprintf("/api/v1/libraries/%d/scan", lib.ID), nil)
	require.Equal(t, http.StatusAccepted, rec.Code)
	var started struct {
		ExecutionID string `json:"execution_id"`
	}
	decodeData(t, rec, &started)
	assert.NotEmpty(t, started.ExecutionID)

	f.waitIdle(t)

	posts, _, err := f.posts.Search("1=1", nil, "p.id ASC", 1, 10)
	require.NoError(t, err)
	assert.Len(t, posts, 2)

	rec = f.do(t, http.MethodPost, "/api/v1/libraries/424242/scan", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestIgnoredPathEndpoints(t *testing.T) {
	defer goleak.VerifyNone(t)
	f := newTestServer(t)
	lib := f.addLibrary(t, "pics")

	rec := f.do(t, http.MethodPost, fmt.Sprintf("/api/v1/libraries/%d/ignored-paths", lib.ID),
		map[string]string{"path_prefix": "drafts/wip"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var added models.LibraryIgnoredPath
	decodeData(t, rec, &added)
	assert.Equal(t, "drafts/wip", added.PathPrefix)

	rec = f.do(t, http.MethodGet, fmt.Sprintf("/api/v1/libraries/%d/ignored-paths", lib.ID), nil)
	var paths []models.LibraryIgnoredPath
	decodeData(t, rec, &paths)
	require.Len(t, paths, 1)

	rec = f.do(t, http.MethodDelete,
		fmt.Sprintf("/api/v1/libraries/%d/ignored-paths/%d", lib.ID, added.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, fmt.Sprintf("/api/v1/libraries/%d/ignored-paths", lib.ID), nil)
	decodeData(t, rec, &paths)
	assert.Empty(t, paths)
}

// ──────────────────── Posts ────────────────────

func TestPostEndpoints(t *testing.T) {
	defer goleak.VerifyNone(t)
	f := newTestServer(t)
	lib := f.addLibrary(t, "pics")
	a := f.addPost(t, lib, "forest/a.jpg", "")
	b := f.addPost(t, lib, "city/b.png", "")

	tag, err := f.tags.Ensure("forest")
	require.NoError(t, err)
	require.NoError(t, f.tags.AssignToPost(a.ID, tag.ID, models.TagSourceManual))

	rec := f.do(t, http.MethodGet, "/api/v1/posts?q=forest", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var page struct {
		Items []models.Post `json:"items"`
		Total int           `json:"total"`
	}
	decodeData(t, rec, &page)
	require.Equal(t, 1, page.Total)
	assert.Equal(t, a.ID, page.Items[0].ID)
	assert.Equal(t, 1, page.Items[0].TagCount)

	rec = f.do(t, http.MethodGet, fmt.Sprintf("/api/v1/posts/%d", a.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var detail struct {
		models.Post
		Tags    []models.Tag        `json:"tags"`
		Sources []models.PostSource `json:"sources"`
	}
	decodeData(t, rec, &detail)
	assert.Equal(t, "forest/a.jpg", detail.RelativePath)
	require.Len(t, detail.Tags, 1)
	assert.Equal(t, "forest", detail.Tags[0].Name)

	rec = f.do(t, http.MethodPut, fmt.Sprintf("/api/v1/posts/%d/favorite", b.ID),
		map[string]bool{"is_favorite": true})
	require.Equal(t, http.StatusOK, rec.Code)
	var favored models.Post
	decodeData(t, rec, &favored)
	assert.True(t, favored.IsFavorite)

	rec = f.do(t, http.MethodPut, fmt.Sprintf("/api/v1/posts/%d/sources", a.ID),
		map[string][]string{"urls": {"https://example.net/art/1", "https://example.net/art/2"}})
	require.Equal(t, http.StatusOK, rec.Code)
	var sources []models.PostSource
	decodeData(t, rec, &sources)
	require.Len(t, sources, 2)
	assert.Equal(t, 0, sources[0].SortOrder)

	rec = f.do(t, http.MethodDelete, fmt.Sprintf("/api/v1/posts/%d", b.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = f.do(t, http.MethodGet, fmt.Sprintf("/api/v1/posts/%d", b.ID), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPostTagEndpoints(t *testing.T) {
	defer goleak.VerifyNone(t)
	f := newTestServer(t)
	lib := f.addLibrary(t, "pics")
	post := f.addPost(t, lib, "a.jpg", "")

	rec := f.do(t, http.MethodPost, fmt.Sprintf("/api/v1/posts/%d/tags", post.ID),
		map[string]string{"name": "Snowy Forest"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var tag models.Tag
	decodeData(t, rec, &tag)
	assert.Equal(t, "snowy_forest", tag.Name)

	rec = f.do(t, http.MethodPost, fmt.Sprintf("/api/v1/posts/%d/tags", post.ID),
		map[string]string{"name": "___"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodDelete, fmt.Sprintf("/api/v1/posts/%d/tags/%d", post.ID, tag.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodDelete, fmt.Sprintf("/api/v1/posts/%d/tags/%d", post.ID, tag.ID), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPostContentServing(t *testing.T) {
	defer goleak.VerifyNone(t)
	f := newTestServer(t)
	lib := f.addLibrary(t, "pics")
	post := f.addPost(t, lib, "sub/a.jpg", "")

	content := []byte("jpeg bytes here")
	require.NoError(t, os.MkdirAll(filepath.Join(lib.Path, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(lib.Path, "sub", "a.jpg"), content, 0o644))

	rec := f.do(t, http.MethodGet, fmt.Sprintf("/api/v1/posts/%d/content", post.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/jpeg", rec.Header().Get("Content-Type"))
	assert.Equal(t, content, rec.Body.Bytes())

	// No thumbnail generated yet.
	rec = f.do(t, http.MethodGet, fmt.Sprintf("/api/v1/posts/%d/thumbnail", post.ID), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	thumbPath := f.store.PathFor(post.LibraryID, post.ContentHash)
	require.NoError(t, os.MkdirAll(filepath.Dir(thumbPath), 0o755))
	require.NoError(t, os.WriteFile(thumbPath, []byte("webp bytes"), 0o644))

	rec = f.do(t, http.MethodGet, fmt.Sprintf("/api/v1/posts/%d/thumbnail", post.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/webp", rec.Header().Get("Content-Type"))
}

// ──────────────────── Tags ────────────────────

func TestTagEndpoints(t *testing.T) {
	defer goleak.VerifyNone(t)
	f := newTestServer(t)
	lib := f.addLibrary(t, "pics")
	a := f.addPost(t, lib, "a.jpg", "")
	b := f.addPost(t, lib, "b.png", "")

	forest, err := f.tags.Ensure("forest")
	require.NoError(t, err)
	woods, err := f.tags.Ensure("woods")
	require.NoError(t, err)
	require.NoError(t, f.tags.AssignToPost(a.ID, forest.ID, models.TagSourceManual))
	require.NoError(t, f.tags.AssignToPost(b.ID, woods.ID, models.TagSourceManual))

	rec := f.do(t, http.MethodGet, "/api/v1/tags", nil)
	var tags []models.Tag
	decodeData(t, rec, &tags)
	require.Len(t, tags, 2)
	assert.Equal(t, 1, tags[0].PostCount)

	// Renaming onto an existing name merges the two tags.
	rec = f.do(t, http.MethodPut, fmt.Sprintf("/api/v1/tags/%d", woods.ID),
		map[string]any{"name": "forest"})
	require.Equal(t, http.StatusOK, rec.Code)
	var survivor models.Tag
	decodeData(t, rec, &survivor)
	assert.Equal(t, forest.ID, survivor.ID)

	rec = f.do(t, http.MethodGet, fmt.Sprintf("/api/v1/tags/%d", woods.ID), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/v1/tags", nil)
	decodeData(t, rec, &tags)
	require.Len(t, tags, 1)
	assert.Equal(t, 2, tags[0].PostCount)

	rec = f.do(t, http.MethodDelete, fmt.Sprintf("/api/v1/tags/%d", forest.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestTagCategoryEndpoints(t *testing.T) {
	defer goleak.VerifyNone(t)
	f := newTestServer(t)

	rec := f.do(t, http.MethodPost, "/api/v1/tag-categories",
		map[string]any{"name": "artist", "color": "#cc0000", "sort_order": 1})
	require.Equal(t, http.StatusCreated, rec.Code)
	var cat models.TagCategory
	decodeData(t, rec, &cat)
	assert.NotZero(t, cat.ID)

	rec = f.do(t, http.MethodPut, fmt.Sprintf("/api/v1/tag-categories/%d", cat.ID),
		map[string]any{"name": "creator", "color": "#00cc00", "sort_order": 2})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/v1/tag-categories", nil)
	var cats []models.TagCategory
	decodeData(t, rec, &cats)
	require.Len(t, cats, 1)
	assert.Equal(t, "creator", cats[0].Name)

	rec = f.do(t, http.MethodDelete, fmt.Sprintf("/api/v1/tag-categories/%d", cat.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/v1/tag-categories", map[string]any{"color": "#fff"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// ──────────────────── Logs & Health ────────────────────

func TestLogsEndpoint(t *testing.T) {
	defer goleak.VerifyNone(t)
	f := newTestServer(t)

	now := time.Now().UTC()
	require.NoError(t, f.logs.InsertBatch([]models.AppLogEntry{
		{Timestamp: now, Level: "INFO", Category: "scanner", Message: "scan started"},
		{Timestamp: now, Level: "ERROR", Category: "scanner", Message: "file unreadable"},
		{Timestamp: now, Level: "DEBUG", Category: "jobs", Message: "tick"},
	}))

	rec := f.do(t, http.MethodGet, "/api/v1/logs", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var entries []models.AppLogEntry
	decodeData(t, rec, &entries)
	assert.Len(t, entries, 3)

	rec = f.do(t, http.MethodGet, "/api/v1/logs?level=error", nil)
	decodeData(t, rec, &entries)
	require.Len(t, entries, 1)
	assert.Equal(t, "file unreadable", entries[0].Message)

	rec = f.do(t, http.MethodGet, "/api/v1/logs?limit=2", nil)
	decodeData(t, rec, &entries)
	assert.Len(t, entries, 2)
}

func TestHealthAndSecurityHeaders(t *testing.T) {
	defer goleak.VerifyNone(t)
	f := newTestServer(t)

	rec := f.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))

	rec = f.do(t, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestCORSPreflight(t *testing.T) {
	defer goleak.VerifyNone(t)
	f := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/libraries", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
}

// ──────────────────── Auth ────────────────────

func TestAuthGuardsAPI(t *testing.T) {
	defer goleak.VerifyNone(t)
	f := newFixture(t, config.Auth{Enabled: true, Username: "admin", Password: "hunter2"})

	rec := f.do(t, http.MethodGet, "/api/v1/libraries", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Health and metrics stay open.
	rec = f.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/v1/auth/login",
		map[string]string{"username": "admin", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/v1/auth/login",
		map[string]string{"username": "admin", "password": "hunter2"})
	require.Equal(t, http.StatusOK, rec.Code)
	var login struct {
		Token string `json:"token"`
	}
	decodeData(t, rec, &login)
	require.NotEmpty(t, login.Token)

	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)
	assert.Equal(t, auth.CookieName, cookies[0].Name)

	// Bearer token works.
	req := httptest.NewRequest(http.MethodGet, "/api/v1/libraries", nil)
	req.Header.Set("Authorization", "Bearer "+login.Token)
	authed := httptest.NewRecorder()
	f.handler.ServeHTTP(authed, req)
	assert.Equal(t, http.StatusOK, authed.Code)

	// So does the cookie.
	req = httptest.NewRequest(http.MethodGet, "/api/v1/libraries", nil)
	req.AddCookie(cookies[0])
	authed = httptest.NewRecorder()
	f.handler.ServeHTTP(authed, req)
	assert.Equal(t, http.StatusOK, authed.Code)

	rec = f.do(t, http.MethodPost, "/api/v1/auth/logout", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var cleared *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == auth.CookieName {
			cleared = c
		}
	}
	require.NotNil(t, cleared)
	assert.Negative(t, cleared.MaxAge)
}
