package jobs

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/YelovSK/Damebooru-sub002/internal/duplicates"
	"github.com/YelovSK/Damebooru-sub002/internal/media"
	"github.com/YelovSK/Damebooru-sub002/internal/models"
	"github.com/YelovSK/Damebooru-sub002/internal/repository"
	"github.com/YelovSK/Damebooru-sub002/internal/scanner"
	"github.com/YelovSK/Damebooru-sub002/internal/thumbs"
)

// Config tunes the job worker pools.
type Config struct {
	ScanParallelism       int
	MetadataParallelism   int
	SimilarityParallelism int
	ThumbnailParallelism  int
}

func (c Config) withDefaults() Config {
	if c.ScanParallelism < 1 {
		c.ScanParallelism = 2
	}
	if c.MetadataParallelism < 1 {
		c.MetadataParallelism = 2
	}
	if c.SimilarityParallelism < 1 {
		c.SimilarityParallelism = 2
	}
	if c.ThumbnailParallelism < 1 {
		c.ThumbnailParallelism = 2
	}
	return c
}

// Deps bundles everything the built-in jobs operate on.
type Deps struct {
	Libraries *repository.LibraryRepository
	Posts     *repository.PostRepository
	Tags      *repository.TagRepository
	Sync      *scanner.SyncProcessor
	Engine    *duplicates.Engine
	Processor *media.Processor
	Thumbs    *thumbs.Store
	Config    Config
	Log       *slog.Logger
}

// RegisterAll wires the built-in jobs into the registry in display order.
func RegisterAll(reg *Registry, deps Deps) error {
	deps.Config = deps.Config.withDefaults()
	for _, def := range []*Definition{
		scanAllJob(deps),
		extractMetadataJob(deps),
		computeSimilarityJob(deps),
		findDuplicatesJob(deps),
		generateThumbnailsJob(deps),
		cleanupThumbnailsJob(deps),
		applyFolderTagsJob(deps),
		sanitizeTagNamesJob(deps),
	} {
		if err := reg.Register(def); err != nil {
			return err
		}
	}
	return nil
}

// libraryPaths maps library ids to their roots so jobs can turn a post's
// relative path into an absolute one.
func (d Deps) libraryPaths() (map[int64]string, error) {
	libs, err := d.Libraries.List()
	if err != nil {
		return nil, err
	}
	paths := make(map[int64]string, len(libs))
	for _, lib := range libs {
		paths[lib.ID] = lib.Path
	}
	return paths, nil
}

func absolutePath(root string, p *models.Post) string {
	return filepath.Join(root, filepath.FromSlash(p.RelativePath))
}

// runPool fans posts out to a fixed set of workers. Feeding stops on
// cancellation; fn handles its own per-item failures.
func runPool(ctx context.Context, workers int, posts []*models.Post, fn func(p *models.Post)) error {
	work := make(chan *models.Post, workers)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for p := range work {
				fn(p)
			}
		}()
	}
	for _, p := range posts {
		select {
		case <-ctx.Done():
			close(work)
			wg.Wait()
			return ctx.Err()
		case work <- p:
		}
	}
	close(work)
	wg.Wait()
	return ctx.Err()
}
