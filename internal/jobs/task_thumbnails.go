package jobs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/YelovSK/Damebooru-sub002/internal/models"
)

// thumbnailMaxDim bounds the longer edge of generated thumbnails. Source
// media smaller than this is never upscaled.
const thumbnailMaxDim = 400

func generateThumbnailsJob(deps Deps) *Definition {
	return &Definition{
		Key:             "generate-thumbnails",
		Name:            "Generate thumbnails",
		Description:     "Render preview thumbnails into the thumbnail store.",
		DisplayOrder:    5,
		SupportsAllMode: true,
		Run: func(ctx context.Context, rep *Reporter, mode Mode) error {
			all, err := deps.Posts.ListAll()
			if err != nil {
				return err
			}
			roots, err := deps.libraryPaths()
			if err != nil {
				return err
			}

			posts := all
			if mode != ModeAll {
				posts = posts[:0:0]
				for _, p := range all {
					if !deps.Thumbs.Exists(p.LibraryID, p.ContentHash) {
						posts = append(posts, p)
					}
				}
			}

			total := int64(len(posts))
			var done, generated, skipped int64

			err = runPool(ctx, deps.Config.ThumbnailParallelism, posts, func(post *models.Post) {
				rep.SetActivity(post.RelativePath)
				defer rep.SetProgress(atomic.AddInt64(&done, 1), total)

				dst := deps.Thumbs.PathFor(post.LibraryID, post.ContentHash)
				if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
					deps.Log.Error("thumbnail directory not created", "path", dst, "error", err)
					atomic.AddInt64(&skipped, 1)
					return
				}
				src := absolutePath(roots[post.LibraryID], post)
				if err := deps.Processor.GenerateThumbnail(ctx, src, dst, thumbnailMaxDim); err != nil {
					if errors.Is(err, context.Canceled) {
						return
					}
					atomic.AddInt64(&skipped, 1)
					return
				}
				atomic.AddInt64(&generated, 1)
			})
			if err != nil {
				return err
			}

			rep.ClearProgress()
			rep.SetFinalText(fmt.Sprintf("Generated %d thumbnails (%d skipped).", generated, skipped))
			return nil
		},
	}
}
