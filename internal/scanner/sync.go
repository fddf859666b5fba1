package scanner

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/YelovSK/Damebooru-sub002/internal/fileid"
	"github.com/YelovSK/Damebooru-sub002/internal/hashing"
	"github.com/YelovSK/Damebooru-sub002/internal/ingest"
	"github.com/YelovSK/Damebooru-sub002/internal/mediasource"
	"github.com/YelovSK/Damebooru-sub002/internal/models"
	"github.com/YelovSK/Damebooru-sub002/internal/outcome"
	"github.com/YelovSK/Damebooru-sub002/internal/repository"
	"github.com/YelovSK/Damebooru-sub002/internal/thumbs"
)

const hashAttempts = 3

// Progress receives per-item updates during a scan. The job reporter
// satisfies it.
type Progress interface {
	SetActivity(text string)
	SetProgress(current, total int64)
}

// Config carries the scan tunables.
type Config struct {
	SnapshotPageSize int // posts loaded per page when snapshotting
	IngestBatchSize  int
	IngestCapacity   int
}

// SyncProcessor reconciles one library's directory tree with its posts:
// snapshot, enumerate, classify, orphan sweep, report. Re-scanning an
// unchanged tree performs zero writes.
type SyncProcessor struct {
	libraries  *repository.LibraryRepository
	posts      *repository.PostRepository
	exclusions *repository.ExclusionRepository
	source     *mediasource.Source
	thumbs     *thumbs.Store
	cfg        Config
	log        *slog.Logger
}

func NewSyncProcessor(
	libraries *repository.LibraryRepository,
	posts *repository.PostRepository,
	exclusions *repository.ExclusionRepository,
	source *mediasource.Source,
	thumbs *thumbs.Store,
	cfg Config,
	log *slog.Logger,
) *SyncProcessor {
	return &SyncProcessor{
		libraries:  libraries,
		posts:      posts,
		exclusions: exclusions,
		source:     source,
		thumbs:     thumbs,
		cfg:        cfg,
		log:        log,
	}
}

// snapshot indexes the library's current posts for classification.
type snapshot struct {
	byPath     map[string]*models.Post
	byIdentity map[models.FileIdentity][]*models.Post
	byHash     map[string][]*models.Post
	all        []*models.Post
	excluded   map[string]struct{}
	ignored    []string
}

func (s *SyncProcessor) loadSnapshot(lib *models.Library) (*snapshot, error) {
	posts, err := s.posts.ListByLibrary(lib.ID, s.cfg.SnapshotPageSize)
	if err != nil {
		return nil, err
	}
	excluded, err := s.exclusions.PathSet(lib.ID)
	if err != nil {
		return nil, err
	}
	ignoredPaths, err := s.libraries.IgnoredPaths(lib.ID)
	if err != nil {
		return nil, err
	}

	snap := &snapshot{
		byPath:     make(map[string]*models.Post, len(posts)),
		byIdentity: make(map[models.FileIdentity][]*models.Post),
		byHash:     make(map[string][]*models.Post),
		all:        posts,
		excluded:   excluded,
	}
	for _, p := range posts {
		snap.byPath[p.RelativePath] = p
		if p.FileIdentity != nil {
			snap.byIdentity[*p.FileIdentity] = append(snap.byIdentity[*p.FileIdentity], p)
		}
		if p.ContentHash != "" {
			snap.byHash[p.ContentHash] = append(snap.byHash[p.ContentHash], p)
		}
	}
	for _, ip := range ignoredPaths {
		snap.ignored = append(snap.ignored, ip.PathPrefix)
	}
	return snap, nil
}

func (snap *snapshot) isIgnored(rel string) bool {
	for _, prefix := range snap.ignored {
		if rel == prefix || strings.HasPrefix(rel, prefix+"/") {
			return true
		}
	}
	return false
}

// Sync runs one full scan of lib and reports what changed. Cancellation
// is honored between items and between phases; completed ingest batches
// stay committed.
func (s *SyncProcessor) Sync(ctx context.Context, lib *models.Library, progress Progress) (*models.ScanSummary, error) {
	log := s.log.With("library", lib.Name)
	summary := &models.ScanSummary{LibraryID: lib.ID}

	snap, err := s.loadSnapshot(lib)
	if err != nil {
		return nil, err
	}

	total, err := s.source.Count(ctx, lib.Path)
	if err != nil {
		return nil, err
	}
	progress.SetProgress(0, int64(total))

	sink := ingest.NewSink(s.posts, log, s.cfg.IngestBatchSize, s.cfg.IngestCapacity)
	defer sink.Close()

	seen := make(map[int64]struct{})    // post ids whose path was found on disk
	claimed := make(map[int64]struct{}) // post ids consumed by a move
	visited := 0

	walkErr := s.source.Walk(ctx, lib.Path, func(it mediasource.Item) error {
		visited++
		progress.SetActivity(it.RelativePath)
		progress.SetProgress(int64(visited), int64(total))

		if snap.isIgnored(it.RelativePath) {
			return nil
		}
		if _, ok := snap.excluded[it.RelativePath]; ok {
			return nil
		}
		summary.Scanned++

		if existing, ok := snap.byPath[it.RelativePath]; ok {
			seen[existing.ID] = struct{}{}
			return s.syncExisting(ctx, lib, existing, it, summary, log)
		}
		return s.syncNewPath(ctx, lib, snap, it, sink, seen, claimed, summary, log)
	})
	if flushErr := sink.Flush(context.WithoutCancel(ctx)); flushErr != nil {
		log.Error("ingest flush failed", "error", flushErr)
	}
	if walkErr != nil {
		return summary, walkErr
	}
	if err := ctx.Err(); err != nil {
		return summary, err
	}

	// orphan sweep: rows whose file is gone and was not claimed by a move
	var orphans []int64
	for _, p := range snap.all {
		if _, ok := seen[p.ID]; ok {
			continue
		}
		if _, ok := claimed[p.ID]; ok {
			continue
		}
		orphans = append(orphans, p.ID)
	}
	if len(orphans) > 0 {
		if err := s.posts.DeleteByIDs(orphans); err != nil {
			return summary, err
		}
		summary.Removed = len(orphans)
	}

	log.Info("scan finished",
		"scanned", summary.Scanned, "added", summary.Added, "updated", summary.Updated,
		"moved", summary.Moved, "removed", summary.Removed)
	return summary, nil
}

// syncExisting handles a path the library already knows: unchanged or
// updated.
func (s *SyncProcessor) syncExisting(ctx context.Context, lib *models.Library, existing *models.Post, it mediasource.Item, summary *models.ScanSummary, log *slog.Logger) error {
	if existing.SizeBytes == it.SizeBytes && existing.FileModifiedDate.Equal(it.ModTime) {
		return nil
	}

	hash, err := s.hashWithRetry(ctx, it.AbsolutePath)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Warn("skipping unreadable updated file", "path", it.RelativePath, "error", err)
		return nil
	}

	oldHash := existing.ContentHash
	if err := s.posts.UpdateContent(existing.ID, hash, it.SizeBytes, it.ModTime); err != nil {
		return err
	}
	if oldHash != hash && oldHash != "" {
		if err := s.thumbs.Remove(lib.ID, oldHash); err != nil {
			log.Warn("stale thumbnail not removed", "hash", oldHash, "error", err)
		}
	}
	summary.Updated++
	return nil
}

// syncNewPath handles a path with no post: a move target or a new file.
func (s *SyncProcessor) syncNewPath(ctx context.Context, lib *models.Library, snap *snapshot, it mediasource.Item, sink *ingest.Sink, seen, claimed map[int64]struct{}, summary *models.ScanSummary, log *slog.Logger) error {
	var identity *models.FileIdentity
	if info, err := os.Stat(it.AbsolutePath); err == nil {
		identity = fileid.Identity(it.AbsolutePath, info)
	}

	var hash string
	if identity != nil {
		if moved := s.findMoveCandidate(lib, snap.byIdentity[*identity], claimed); moved != nil {
			return s.applyMove(moved, it, seen, claimed, summary, log)
		}
	} else {
		h, err := s.hashWithRetry(ctx, it.AbsolutePath)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Warn("skipping unreadable file", "path", it.RelativePath, "error", err)
			return nil
		}
		hash = h
		if moved := s.findMoveCandidate(lib, snap.byHash[hash], claimed); moved != nil {
			return s.applyMove(moved, it, seen, claimed, summary, log)
		}
	}

	if hash == "" {
		h, err := s.hashWithRetry(ctx, it.AbsolutePath)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Warn("skipping unreadable file", "path", it.RelativePath, "error", err)
			return nil
		}
		hash = h
	}

	post := &models.Post{
		LibraryID:        lib.ID,
		RelativePath:     it.RelativePath,
		ContentHash:      hash,
		FileIdentity:     identity,
		SizeBytes:        it.SizeBytes,
		ContentType:      models.ContentTypeForPath(it.RelativePath),
		ImportDate:       time.Now().UTC(),
		FileModifiedDate: it.ModTime,
	}
	if err := sink.Enqueue(ctx, post); err != nil {
		return err
	}
	summary.Added++
	return nil
}

// findMoveCandidate picks a known post that this on-disk file can claim:
// its recorded path must be gone from disk and no earlier item of this
// scan may have claimed it. Hard links fail the gone-from-disk check and
// fall through to a fresh post.
func (s *SyncProcessor) findMoveCandidate(lib *models.Library, candidates []*models.Post, claimed map[int64]struct{}) *models.Post {
	for _, cand := range candidates {
		if _, ok := claimed[cand.ID]; ok {
			continue
		}
		oldAbs := filepath.Join(lib.Path, filepath.FromSlash(cand.RelativePath))
		if _, err := os.Stat(oldAbs); os.IsNotExist(err) {
			return cand
		}
	}
	return nil
}

func (s *SyncProcessor) applyMove(moved *models.Post, it mediasource.Item, seen, claimed map[int64]struct{}, summary *models.ScanSummary, log *slog.Logger) error {
	if err := s.posts.UpdatePath(moved.ID, it.RelativePath); err != nil {
		return err
	}
	log.Info("post moved", "from", moved.RelativePath, "to", it.RelativePath)
	claimed[moved.ID] = struct{}{}
	seen[moved.ID] = struct{}{}
	summary.Moved++
	return nil
}

func (s *SyncProcessor) hashWithRetry(ctx context.Context, path string) (string, error) {
	var hash string
	err := outcome.Retry(ctx, hashAttempts, func() error {
		h, err := hashing.HashFile(path)
		if err != nil {
			return err
		}
		hash = h
		return nil
	})
	return hash, err
}
