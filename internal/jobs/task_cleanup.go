package jobs

import (
	"context"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
)

func cleanupThumbnailsJob(deps Deps) *Definition {
	return &Definition{
		Key:          "cleanup-orphaned-thumbnails",
		Name:         "Clean up orphaned thumbnails",
		Description:  "Delete thumbnail files that no longer match a post.",
		DisplayOrder: 6,
		Run: func(ctx context.Context, rep *Reporter, _ Mode) error {
			posts, err := deps.Posts.ListAll()
			if err != nil {
				return err
			}
			type thumbKey struct {
				libraryID int64
				hash      string
			}
			live := make(map[thumbKey]struct{}, len(posts))
			for _, p := range posts {
				live[thumbKey{p.LibraryID, p.ContentHash}] = struct{}{}
			}

			rep.SetActivity("Sweeping thumbnail store")
			var removed int64
			var freed uint64
			err = deps.Thumbs.Walk(func(libraryID int64, contentHash, path string) error {
				if err := ctx.Err(); err != nil {
					return err
				}
				if _, ok := live[thumbKey{libraryID, contentHash}]; ok {
					return nil
				}
				info, statErr := os.Stat(path)
				if err := os.Remove(path); err != nil {
					deps.Log.Warn("orphaned thumbnail not removed", "path", path, "error", err)
					return nil
				}
				if statErr == nil {
					freed += uint64(info.Size())
				}
				removed++
				return nil
			})
			if err != nil {
				return err
			}

			rep.SetFinalText(fmt.Sprintf("Deleted %d orphaned thumbnails, freed %s.",
				removed, humanize.Bytes(freed)))
			return nil
		},
	}
}
