// Package duplicates finds posts with identical or near-identical
// content and walks the operator through resolving them.
package duplicates

import (
	"context"
	"log/slog"
	"path"
	"sort"

	"github.com/YelovSK/Damebooru-sub002/internal/hashing"
	"github.com/YelovSK/Damebooru-sub002/internal/models"
	"github.com/YelovSK/Damebooru-sub002/internal/outcome"
	"github.com/YelovSK/Damebooru-sub002/internal/repository"
)

// perceptualThreshold is the maximum dHash Hamming distance treated as a
// duplicate pair.
const perceptualThreshold = 8

// Progress receives live status while a detection run grinds through the
// pairwise comparisons.
type Progress interface {
	SetActivity(text string)
	SetProgress(current, total int64)
}

type Engine struct {
	posts  *repository.PostRepository
	groups *repository.DuplicateRepository
	log    *slog.Logger
}

func NewEngine(posts *repository.PostRepository, groups *repository.DuplicateRepository, log *slog.Logger) *Engine {
	return &Engine{posts: posts, groups: groups, log: log}
}

// RunResult summarizes one detection run.
type RunResult struct {
	PostsExamined    int `json:"posts_examined"`
	ExactGroups      int `json:"exact_groups"`
	PerceptualGroups int `json:"perceptual_groups"`
}

// ──────────────────── Detection ────────────────────

// Run rebuilds the unresolved duplicate groups from scratch. Resolved
// groups are history and survive the rebuild; posts already covered by a
// resolved group will simply not match anything anymore because their
// duplicates were deleted.
func (e *Engine) Run(ctx context.Context, progress Progress) (RunResult, error) {
	var result RunResult

	progress.SetActivity("Clearing unresolved groups")
	cleared, err := e.groups.DeleteUnresolved()
	if err != nil {
		return result, err
	}
	if cleared > 0 {
		e.log.Debug("cleared unresolved duplicate groups", "count", cleared)
	}

	posts, err := e.posts.ListAll()
	if err != nil {
		return result, err
	}
	result.PostsExamined = len(posts)

	progress.SetActivity("Grouping by content hash")
	drafts := exactGroups(posts)
	result.ExactGroups = len(drafts)

	progress.SetActivity("Comparing perceptual hashes")
	perceptual, err := perceptualGroups(ctx, posts, progress)
	if err != nil {
		return result, err
	}
	result.PerceptualGroups = len(perceptual)
	drafts = append(drafts, perceptual...)

	if err := e.groups.CreateGroups(drafts); err != nil {
		return result, err
	}
	e.log.Info("duplicate detection finished",
		"posts", result.PostsExamined,
		"exact_groups", result.ExactGroups,
		"perceptual_groups", result.PerceptualGroups)
	return result, nil
}

// exactGroups buckets posts by content hash; every hash shared by two or
// more posts becomes one group.
func exactGroups(posts []*models.Post) []repository.GroupDraft {
	byHash := make(map[string][]int64)
	for _, p := range posts {
		byHash[p.ContentHash] = append(byHash[p.ContentHash], p.ID)
	}
	hashes := make([]string, 0, len(byHash))
	for hash, ids := range byHash {
		if len(ids) >= 2 {
			hashes = append(hashes, hash)
		}
	}
	sort.Strings(hashes)
	drafts := make([]repository.GroupDraft, 0, len(hashes))
	for _, hash := range hashes {
		drafts = append(drafts, repository.GroupDraft{
			Type:    models.DuplicateTypeExact,
			PostIDs: byHash[hash],
		})
	}
	return drafts
}

// perceptualGroups runs the pairwise dHash comparison and merges matching
// pairs into components. A component's similarity is the weakest link:
// the minimum similarity among the edges that merged it.
func perceptualGroups(ctx context.Context, posts []*models.Post, progress Progress) ([]repository.GroupDraft, error) {
	var hashed []*models.Post
	for _, p := range posts {
		if p.PerceptualHashD != nil {
			hashed = append(hashed, p)
		}
	}

	uf := newUnionFind(len(hashed))
	total := int64(len(hashed))
	for i := range hashed {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		progress.SetProgress(int64(i+1), total)
		a := *hashed[i].PerceptualHashD
		for j := i + 1; j < len(hashed); j++ {
			b := *hashed[j].PerceptualHashD
			if hashing.Distance(a, b) > perceptualThreshold {
				continue
			}
			uf.union(i, j, hashing.Similarity(a, b))
		}
	}

	components := make(map[int][]int64)
	for i, p := range hashed {
		root := uf.find(i)
		components[root] = append(components[root], p.ID)
	}
	roots := make([]int, 0, len(components))
	for root, ids := range components {
		if len(ids) >= 2 {
			roots = append(roots, root)
		}
	}
	sort.Ints(roots)

	drafts := make([]repository.GroupDraft, 0, len(roots))
	for _, root := range roots {
		sim := uf.minSim[root]
		drafts = append(drafts, repository.GroupDraft{
			Type:              models.DuplicateTypePerceptual,
			SimilarityPercent: &sim,
			PostIDs:           components[root],
		})
	}
	return drafts, nil
}

// unionFind tracks components and the minimum edge similarity that formed
// each one. minSim is meaningful at roots only.
type unionFind struct {
	parent []int
	rank   []int
	minSim []int
}

func newUnionFind(n int) *unionFind {
	uf := &unionFind{
		parent: make([]int, n),
		rank:   make([]int, n),
		minSim: make([]int, n),
	}
	for i := range uf.parent {
		uf.parent[i] = i
		uf.minSim[i] = 101 // above any real similarity
	}
	return uf
}

func (uf *unionFind) find(i int) int {
	for uf.parent[i] != i {
		uf.parent[i] = uf.parent[uf.parent[i]]
		i = uf.parent[i]
	}
	return i
}

func (uf *unionFind) union(a, b, similarity int) {
	ra, rb := uf.find(a), uf.find(b)
	if ra == rb {
		return
	}
	if uf.rank[ra] < uf.rank[rb] {
		ra, rb = rb, ra
	}
	uf.parent[rb] = ra
	if uf.rank[ra] == uf.rank[rb] {
		uf.rank[ra]++
	}
	merged := min(uf.minSim[ra], uf.minSim[rb])
	uf.minSim[ra] = min(merged, similarity)
}

// ──────────────────── Resolution ────────────────────

// KeepAll marks the group resolved without touching any post.
func (e *Engine) KeepAll(groupID int64) error {
	return e.groups.ResolveKeepAll(groupID)
}

// KeepOne deletes every post in the group except keepID and excludes the
// deleted paths from future scans. Files on disk stay where they are.
func (e *Engine) KeepOne(groupID, keepID int64) ([]int64, error) {
	return e.groups.ResolveKeepOne(groupID, keepID)
}

// ResolveAllExact resolves every unresolved exact group by keeping the
// post with the oldest import date, smallest id on a tie. Returns the
// number of groups resolved.
func (e *Engine) ResolveAllExact() (int, error) {
	groups, err := e.groups.ListUnresolvedExact()
	if err != nil {
		return 0, err
	}
	resolved := 0
	for _, g := range groups {
		if len(g.Posts) == 0 {
			if err := e.groups.ResolveKeepAll(g.ID); err != nil {
				return resolved, err
			}
			resolved++
			continue
		}
		keep := oldestPost(g.Posts)
		if _, err := e.groups.ResolveKeepOne(g.ID, keep.ID); err != nil {
			return resolved, err
		}
		resolved++
	}
	return resolved, nil
}

func oldestPost(posts []models.Post) *models.Post {
	best := &posts[0]
	for i := 1; i < len(posts); i++ {
		p := &posts[i]
		if p.ImportDate.Before(best.ImportDate) ||
			(p.ImportDate.Equal(best.ImportDate) && p.ID < best.ID) {
			best = p
		}
	}
	return best
}

// FolderGroup is a slice of one duplicate group: its posts that live in
// the same library folder. These are the easy calls, so the UI offers to
// resolve them in one click.
type FolderGroup struct {
	LibraryID         int64         `json:"library_id"`
	Folder            string        `json:"folder"`
	Posts             []models.Post `json:"posts"`
	RecommendedKeepID int64         `json:"recommended_keep_id"`
}

// SameFolderGroups projects a group's posts onto (library, folder)
// buckets and returns the buckets holding at least two posts.
func (e *Engine) SameFolderGroups(groupID int64) ([]FolderGroup, error) {
	group, err := e.groups.GetGroup(groupID)
	if err != nil {
		return nil, err
	}

	type bucketKey struct {
		libraryID int64
		folder    string
	}
	buckets := make(map[bucketKey][]models.Post)
	for _, p := range group.Posts {
		key := bucketKey{p.LibraryID, path.Dir(p.RelativePath)}
		buckets[key] = append(buckets[key], p)
	}

	var folders []FolderGroup
	for key, posts := range buckets {
		if len(posts) < 2 {
			continue
		}
		// entries come back ordered by post id, so the first is the
		// recommended keep
		folders = append(folders, FolderGroup{
			LibraryID:         key.libraryID,
			Folder:            key.folder,
			Posts:             posts,
			RecommendedKeepID: posts[0].ID,
		})
	}
	sort.Slice(folders, func(i, j int) bool {
		if folders[i].LibraryID != folders[j].LibraryID {
			return folders[i].LibraryID < folders[j].LibraryID
		}
		return folders[i].Folder < folders[j].Folder
	})
	return folders, nil
}

// ResolveSameFolder applies keep-one semantics to a single same-folder
// bucket, keeping the recommended post. The parent group stays unresolved
// while more than one of its posts survives.
func (e *Engine) ResolveSameFolder(groupID, libraryID int64, folder string) ([]int64, error) {
	folders, err := e.SameFolderGroups(groupID)
	if err != nil {
		return nil, err
	}
	for _, fg := range folders {
		if fg.LibraryID != libraryID || fg.Folder != folder {
			continue
		}
		var losers []models.Post
		for _, p := range fg.Posts {
			if p.ID != fg.RecommendedKeepID {
				losers = append(losers, p)
			}
		}
		return e.groups.ResolveSubset(groupID, fg.RecommendedKeepID, losers)
	}
	return nil, outcome.NotFound("group %d has no same-folder bucket for library %d folder %q",
		groupID, libraryID, folder)
}
