package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/YelovSK/Damebooru-sub002/internal/models"
	"github.com/YelovSK/Damebooru-sub002/internal/outcome"
)

func extractMetadataJob(deps Deps) *Definition {
	return &Definition{
		Key:             "extract-metadata",
		Name:            "Extract metadata",
		Description:     "Probe media files for their dimensions.",
		DisplayOrder:    2,
		SupportsAllMode: true,
		Run: func(ctx context.Context, rep *Reporter, mode Mode) error {
			var posts []*models.Post
			var err error
			if mode == ModeAll {
				posts, err = deps.Posts.ListAll()
			} else {
				posts, err = deps.Posts.ListMissingDimensions()
			}
			if err != nil {
				return err
			}
			roots, err := deps.libraryPaths()
			if err != nil {
				return err
			}

			total := int64(len(posts))
			var done, extracted, skipped int64

			err = runPool(ctx, deps.Config.MetadataParallelism, posts, func(post *models.Post) {
				rep.SetActivity(post.RelativePath)
				defer rep.SetProgress(atomic.AddInt64(&done, 1), total)

				probe, err := deps.Processor.Probe(ctx, absolutePath(roots[post.LibraryID], post))
				if err != nil {
					if errors.Is(err, context.Canceled) {
						return
					}
					atomic.AddInt64(&skipped, 1)
					if outcome.IsKind(err, outcome.KindMediaUnreadable) {
						deps.Log.Warn("unreadable media skipped", "path", post.RelativePath, "error", err)
						if err := deps.Posts.SetDimensions(post.ID, 0, 0); err != nil {
							deps.Log.Error("dimensions not stored", "post", post.ID, "error", err)
						}
					}
					return
				}
				if err := deps.Posts.SetDimensions(post.ID, probe.GetWidth(), probe.GetHeight()); err != nil {
					deps.Log.Error("dimensions not stored", "post", post.ID, "error", err)
					atomic.AddInt64(&skipped, 1)
					return
				}
				atomic.AddInt64(&extracted, 1)
			})
			if err != nil {
				return err
			}

			rep.ClearProgress()
			rep.SetFinalText(fmt.Sprintf("Extracted metadata for %d posts (%d skipped).", extracted, skipped))
			return nil
		},
	}
}
