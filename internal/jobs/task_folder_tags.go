package jobs

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/YelovSK/Damebooru-sub002/internal/models"
)

func applyFolderTagsJob(deps Deps) *Definition {
	return &Definition{
		Key:          "apply-folder-tags",
		Name:         "Apply folder tags",
		Description:  "Tag every post with the folder names on its path.",
		DisplayOrder: 7,
		Run: func(ctx context.Context, rep *Reporter, _ Mode) error {
			posts, err := deps.Posts.ListAll()
			if err != nil {
				return err
			}

			total := int64(len(posts))
			tagIDs := make(map[string]int64)
			var applied, taggedPosts int

			for i, post := range posts {
				if err := ctx.Err(); err != nil {
					return err
				}
				rep.SetActivity(post.RelativePath)
				rep.SetProgress(int64(i+1), total)

				dir := path.Dir(post.RelativePath)
				if dir == "." {
					continue
				}
				tagged := false
				for _, segment := range strings.Split(dir, "/") {
					name := models.SanitizeTagName(segment)
					if name == "" {
						continue
					}
					id, ok := tagIDs[name]
					if !ok {
						tag, err := deps.Tags.Ensure(name)
						if err != nil {
							return err
						}
						id = tag.ID
						tagIDs[name] = id
					}
					if err := deps.Tags.AssignToPost(post.ID, id, models.TagSourceFolderRule); err != nil {
						return err
					}
					applied++
					tagged = true
				}
				if tagged {
					taggedPosts++
				}
			}

			rep.ClearProgress()
			rep.SetFinalText(fmt.Sprintf("Applied %d folder tags across %d posts.", applied, taggedPosts))
			return nil
		},
	}
}
