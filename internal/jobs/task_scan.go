package jobs

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/YelovSK/Damebooru-sub002/internal/models"
)

func scanAllJob(deps Deps) *Definition {
	return &Definition{
		Key:          "scan-all-libraries",
		Name:         "Scan all libraries",
		Description:  "Synchronize every library with the files on disk.",
		DisplayOrder: 1,
		Run: func(ctx context.Context, rep *Reporter, _ Mode) error {
			libs, err := deps.Libraries.List()
			if err != nil {
				return err
			}
			if len(libs) == 0 {
				rep.SetFinalText("No libraries configured.")
				return nil
			}

			var mu sync.Mutex
			var total models.ScanSummary

			g, gctx := errgroup.WithContext(ctx)
			g.SetLimit(deps.Config.ScanParallelism)
			for _, lib := range libs {
				g.Go(func() error {
					summary, err := deps.Sync.Sync(gctx, lib, rep)
					if err != nil {
						return fmt.Errorf("library %q: %w", lib.Name, err)
					}
					mu.Lock()
					total.Merge(*summary)
					mu.Unlock()
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}

			rep.ClearProgress()
			rep.SetResult(1, total)
			rep.SetFinalText(fmt.Sprintf("Scanned %d files: %d added, %d updated, %d moved, %d removed.",
				total.Scanned, total.Added, total.Updated, total.Moved, total.Removed))
			return nil
		},
	}
}
