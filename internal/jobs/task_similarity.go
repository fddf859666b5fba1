package jobs

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync/atomic"

	"github.com/YelovSK/Damebooru-sub002/internal/hashing"
	"github.com/YelovSK/Damebooru-sub002/internal/models"
)

type frameExtractor interface {
	ExtractFrame(ctx context.Context, path string, w, h int) (image.Image, error)
}

func computeSimilarityJob(deps Deps) *Definition {
	return &Definition{
		Key:             "compute-similarity",
		Name:            "Compute similarity hashes",
		Description:     "Compute perceptual hashes for images and animations.",
		DisplayOrder:    3,
		SupportsAllMode: true,
		Run: func(ctx context.Context, rep *Reporter, mode Mode) error {
			posts, err := deps.Posts.ListPerceptualCandidates(mode != ModeAll)
			if err != nil {
				return err
			}
			roots, err := deps.libraryPaths()
			if err != nil {
				return err
			}

			total := int64(len(posts))
			var done, hashed, skipped int64

			err = runPool(ctx, deps.Config.SimilarityParallelism, posts, func(post *models.Post) {
				rep.SetActivity(post.RelativePath)
				defer rep.SetProgress(atomic.AddInt64(&done, 1), total)

				dh, ph, err := frameHashes(ctx, deps.Processor, absolutePath(roots[post.LibraryID], post))
				if err != nil {
					if errors.Is(err, context.Canceled) {
						return
					}
					deps.Log.Warn("similarity hashing skipped", "path", post.RelativePath, "error", err)
					if err := deps.Posts.SetPerceptualHashes(post.ID, nil, nil); err != nil {
						deps.Log.Error("perceptual hashes not cleared", "post", post.ID, "error", err)
					}
					atomic.AddInt64(&skipped, 1)
					return
				}
				if err := deps.Posts.SetPerceptualHashes(post.ID, &dh, &ph); err != nil {
					deps.Log.Error("perceptual hashes not stored", "post", post.ID, "error", err)
					atomic.AddInt64(&skipped, 1)
					return
				}
				atomic.AddInt64(&hashed, 1)
			})
			if err != nil {
				return err
			}

			rep.ClearProgress()
			rep.SetFinalText(fmt.Sprintf("Computed similarity hashes for %d posts (%d skipped).", hashed, skipped))
			return nil
		},
	}
}

// frameHashes pulls the two sampling grids off the file and hashes them.
// The 9x8 grid feeds the difference hash, the 32x32 grid the DCT hash.
func frameHashes(ctx context.Context, processor frameExtractor, abs string) (uint64, uint64, error) {
	small, err := processor.ExtractFrame(ctx, abs, 9, 8)
	if err != nil {
		return 0, 0, err
	}
	grid, err := processor.ExtractFrame(ctx, abs, 32, 32)
	if err != nil {
		return 0, 0, err
	}
	return hashing.DHash(small), hashing.PHash(grid), nil
}
