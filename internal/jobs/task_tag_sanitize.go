package jobs

import (
	"context"
	"fmt"

	"github.com/YelovSK/Damebooru-sub002/internal/models"
)

func sanitizeTagNamesJob(deps Deps) *Definition {
	return &Definition{
		Key:          "sanitize-tag-names",
		Name:         "Sanitize tag names",
		Description:  "Re-run name sanitization over all tags, merging collisions.",
		DisplayOrder: 8,
		Run: func(ctx context.Context, rep *Reporter, _ Mode) error {
			tags, err := deps.Tags.List()
			if err != nil {
				return err
			}

			rep.SetActivity("Sanitizing tag names")
			var renamed, merged int
			for _, tag := range tags {
				if err := ctx.Err(); err != nil {
					return err
				}
				clean := models.SanitizeTagName(tag.Name)
				if clean == tag.Name {
					continue
				}
				if clean == "" {
					deps.Log.Warn("tag name has no usable characters", "tag", tag.Name)
					continue
				}
				survivor, err := deps.Tags.RenameOrMerge(tag.ID, clean)
				if err != nil {
					return err
				}
				if survivor == tag.ID {
					renamed++
				} else {
					merged++
				}
			}

			rep.SetFinalText(fmt.Sprintf("Sanitized tag names: %d renamed, %d merged.", renamed, merged))
			return nil
		},
	}
}
