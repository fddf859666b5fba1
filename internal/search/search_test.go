package search

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YelovSK/Damebooru-sub002/internal/db"
	"github.com/YelovSK/Damebooru-sub002/internal/models"
	"github.com/YelovSK/Damebooru-sub002/internal/repository"
)

// ──────────────────── Parser ────────────────────

func TestParseTagTerms(t *testing.T) {
	q := Parse("Forest -Night_Sky  blue_flower")
	assert.Equal(t, []string{"forest", "blue_flower"}, q.IncludeTags)
	assert.Equal(t, []string{"night_sky"}, q.ExcludeTags)
}

func TestParseEscapedColonStaysTag(t *testing.T) {
	q := Parse(`re\:zero`)
	assert.Empty(t, q.FileTerms)
	assert.Equal(t, []string{"re_zero"}, q.IncludeTags)
}

func TestParseUnknownDirectiveReadsAsTag(t *testing.T) {
	q := Parse("artist:john")
	assert.Equal(t, []string{"artist_john"}, q.IncludeTags)
}

func TestParseTypeDirective(t *testing.T) {
	q := Parse("type:image,video -type:animation")
	assert.Equal(t, []models.MediaType{models.MediaTypeImage, models.MediaTypeVideo}, q.IncludeTypes)
	assert.Equal(t, []models.MediaType{models.MediaTypeAnimation}, q.ExcludeTypes)

	q = Parse("type:bogus")
	assert.Empty(t, q.IncludeTypes)
	assert.Empty(t, q.IncludeTags)
}

func TestParseFileDirective(t *testing.T) {
	q := Parse("file:holiday filename:IMG_ -file:tmp")
	require.Len(t, q.FileTerms, 3)
	assert.Equal(t, FileTerm{Pattern: "holiday"}, q.FileTerms[0])
	assert.Equal(t, FileTerm{Pattern: "IMG_"}, q.FileTerms[1])
	assert.Equal(t, FileTerm{Pattern: "tmp", Negated: true}, q.FileTerms[2])
}

func TestParseTagCount(t *testing.T) {
	q := Parse("tag-count:>5 tag-count:3 tag-count:<=2 -tag-count:=0")
	require.Len(t, q.TagCountTerms, 4)
	assert.Equal(t, TagCountTerm{Op: ">", Value: 5}, q.TagCountTerms[0])
	assert.Equal(t, TagCountTerm{Op: "=", Value: 3}, q.TagCountTerms[1])
	assert.Equal(t, TagCountTerm{Op: "<=", Value: 2}, q.TagCountTerms[2])
	assert.Equal(t, TagCountTerm{Op: "=", Value: 0, Negated: true}, q.TagCountTerms[3])
}

func TestParseTagCountRejectsNonNumeric(t *testing.T) {
	q := Parse("tag-count:many")
	assert.Empty(t, q.TagCountTerms)
	assert.Empty(t, q.IncludeTags, "a bad count must not fall back to a tag term")
}

func TestParseFavorite(t *testing.T) {
	q := Parse("favorite:true")
	require.NotNil(t, q.Favorite)
	assert.True(t, *q.Favorite)

	q = Parse("-favorite:true")
	require.NotNil(t, q.Favorite)
	assert.False(t, *q.Favorite)

	q = Parse("favorite:maybe")
	assert.Nil(t, q.Favorite)
}

func TestParseSort(t *testing.T) {
	cases := []struct {
		raw  string
		want Sort
	}{
		{"", Sort{Field: SortFileModified, Desc: true}},
		{"sort:new", Sort{Field: SortFileModified, Desc: true}},
		{"sort:old", Sort{Field: SortFileModified, Desc: false}},
		{"sort:+width", Sort{Field: SortWidth, Desc: false}},
		{"sort:-height", Sort{Field: SortHeight, Desc: true}},
		{"sort:size_asc", Sort{Field: SortSize, Desc: false}},
		{"sort:import-date_desc", Sort{Field: SortImportDate, Desc: true}},
		{"sort:tag-count", Sort{Field: SortTagCount, Desc: true}},
		{"sort:bogus", Sort{Field: SortFileModified, Desc: true}},
		{"sort:new sort:old", Sort{Field: SortFileModified, Desc: false}},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Parse(tc.raw).Sort, "query %q", tc.raw)
	}
}

// ──────────────────── Planner fragments ────────────────────

func TestPlanTagPredicates(t *testing.T) {
	where, args, order := Plan(Parse("forest -night favorite:true"))
	assert.Contains(t, where, "EXISTS")
	assert.Contains(t, where, "NOT EXISTS")
	assert.Contains(t, where, "p.is_favorite = 1")
	assert.Equal(t, []any{"forest", "night"}, args)
	assert.Equal(t, "p.file_modified_date DESC, p.id DESC", order)
}

func TestPlanIDSortHasNoTieBreak(t *testing.T) {
	_, _, order := Plan(Parse("sort:+id"))
	assert.Equal(t, "p.id ASC", order)
}

func TestPlanEscapesLikeMetacharacters(t *testing.T) {
	_, args, _ := Plan(Parse("file:100%_done"))
	require.Len(t, args, 1)
	assert.Equal(t, `%100\%\_done%`, args[0])
}

// ──────────────────── End to end ────────────────────

type searchFixture struct {
	posts *repository.PostRepository
	tags  *repository.TagRepository
	lib   *models.Library
}

func newSearchFixture(t *testing.T) *searchFixture {
	t.Helper()
	database, err := db.Connect(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	require.NoError(t, database.Migrate())

	lib := &models.Library{Name: "art", Path: "/mnt/art"}
	require.NoError(t, repository.NewLibraryRepository(database.DB).Create(lib))
	return &searchFixture{
		posts: repository.NewPostRepository(database.DB),
		tags:  repository.NewTagRepository(database.DB),
		lib:   lib,
	}
}

func (f *searchFixture) addPost(t *testing.T, relPath, contentType string, size int64, modified time.Time, tagNames ...string) *models.Post {
	t.Helper()
	p := &models.Post{
		LibraryID:        f.lib.ID,
		RelativePath:     relPath,
		ContentHash:      fmt.Sprintf("%016x", size),
		SizeBytes:        size,
		ContentType:      contentType,
		ImportDate:       modified,
		FileModifiedDate: modified,
	}
	require.NoError(t, f.posts.Create(p))
	for _, name := range tagNames {
		tag, err := f.tags.Ensure(name)
		require.NoError(t, err)
		require.NoError(t, f.tags.AssignToPost(p.ID, tag.ID, models.TagSourceManual))
	}
	return p
}

func (f *searchFixture) search(t *testing.T, raw string) []string {
	t.Helper()
	where, args, order := Plan(Parse(raw))
	posts, _, err := f.posts.Search(where, args, order, 1, 100)
	require.NoError(t, err)
	paths := make([]string, 0, len(posts))
	for _, p := range posts {
		paths = append(paths, p.RelativePath)
	}
	return paths
}

func TestSearchEndToEnd(t *testing.T) {
	f := newSearchFixture(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	a := f.addPost(t, "a.jpg", "image/jpeg", 100, base.Add(3*time.Hour), "forest", "tree")
	f.addPost(t, "b.png", "image/png", 200, base.Add(2*time.Hour), "forest", "night")
	f.addPost(t, "c.mp4", "video/mp4", 300, base.Add(1*time.Hour), "forest")
	f.addPost(t, "d.gif", "image/gif", 400, base, "cat")

	assert.ElementsMatch(t, []string{"a.jpg", "b.png", "c.mp4"}, f.search(t, "forest"))
	assert.ElementsMatch(t, []string{"a.jpg", "c.mp4"}, f.search(t, "forest -night"))
	assert.ElementsMatch(t, []string{"a.jpg", "b.png"}, f.search(t, "forest type:image"))
	assert.ElementsMatch(t, []string{"d.gif"}, f.search(t, "type:animation"))
	assert.ElementsMatch(t, []string{"a.jpg", "b.png", "d.gif"}, f.search(t, "type:animation,image"))
	assert.ElementsMatch(t, []string{"a.jpg"}, f.search(t, "file:a."))
	assert.ElementsMatch(t, []string{"a.jpg", "b.png"}, f.search(t, "tag-count:>=2"))
	assert.ElementsMatch(t, []string{"c.mp4", "d.gif"}, f.search(t, "tag-count:1"))
	assert.Empty(t, f.search(t, "favorite:true"))

	require.NoError(t, f.posts.SetFavorite(a.ID, true))
	assert.ElementsMatch(t, []string{"a.jpg"}, f.search(t, "favorite:true"))
	assert.ElementsMatch(t, []string{"b.png", "c.mp4", "d.gif"}, f.search(t, "-favorite:true"))
}

func TestSearchOrderingAndPagination(t *testing.T) {
	f := newSearchFixture(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	f.addPost(t, "a.jpg", "image/jpeg", 300, base.Add(1*time.Hour))
	f.addPost(t, "b.jpg", "image/jpeg", 100, base.Add(3*time.Hour))
	f.addPost(t, "c.jpg", "image/jpeg", 200, base.Add(2*time.Hour))

	assert.Equal(t, []string{"b.jpg", "c.jpg", "a.jpg"}, f.search(t, ""))
	assert.Equal(t, []string{"a.jpg", "c.jpg", "b.jpg"}, f.search(t, "sort:old"))
	assert.Equal(t, []string{"b.jpg", "c.jpg", "a.jpg"}, f.search(t, "sort:+size"))
	assert.Equal(t, []string{"a.jpg", "c.jpg", "b.jpg"}, f.search(t, "sort:size_desc"))

	where, args, order := Plan(Parse("sort:+id"))
	page1, total, err := f.posts.Search(where, args, order, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, page1, 2)

	page2, total, err := f.posts.Search(where, args, order, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, page2, 1)
	assert.Greater(t, page2[0].ID, page1[1].ID)
}
