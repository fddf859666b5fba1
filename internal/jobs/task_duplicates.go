package jobs

import (
	"context"
	"fmt"
)

func findDuplicatesJob(deps Deps) *Definition {
	return &Definition{
		Key:          "find-duplicates",
		Name:         "Find duplicates",
		Description:  "Group posts with identical or near-identical content.",
		DisplayOrder: 4,
		Run: func(ctx context.Context, rep *Reporter, _ Mode) error {
			result, err := deps.Engine.Run(ctx, rep)
			if err != nil {
				return err
			}
			rep.ClearProgress()
			rep.SetResult(1, result)
			rep.SetFinalText(fmt.Sprintf("Examined %d posts: %d exact and %d perceptual duplicate groups.",
				result.PostsExamined, result.ExactGroups, result.PerceptualGroups))
			return nil
		},
	}
}
