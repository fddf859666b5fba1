package search

import (
	"fmt"
	"strings"

	"github.com/YelovSK/Damebooru-sub002/internal/models"
)

// tagCountSQL counts distinct tags; a post/tag pair may carry several
// sources.
const tagCountSQL = `(SELECT COUNT(DISTINCT pt.tag_id) FROM post_tags pt WHERE pt.post_id = p.id)`

const tagMatchSQL = `(SELECT 1 FROM post_tags pt JOIN tags t ON t.id = pt.tag_id WHERE pt.post_id = p.id AND t.name = ?)`

// Plan compiles a parsed query into WHERE and ORDER BY fragments over
// posts alias p, for PostRepository.Search.
func Plan(q Query) (where string, args []any, order string) {
	var conds []string
	for _, tag := range q.IncludeTags {
		conds = append(conds, "EXISTS "+tagMatchSQL)
		args = append(args, tag)
	}
	for _, tag := range q.ExcludeTags {
		conds = append(conds, "NOT EXISTS "+tagMatchSQL)
		args = append(args, tag)
	}
	if len(q.IncludeTypes) > 0 {
		conds = append(conds, typePredicate(q.IncludeTypes))
	}
	if len(q.ExcludeTypes) > 0 {
		conds = append(conds, "NOT "+typePredicate(q.ExcludeTypes))
	}
	for _, term := range q.FileTerms {
		cond := `p.relative_path LIKE ? ESCAPE '\'`
		if term.Negated {
			cond = "NOT (" + cond + ")"
		}
		conds = append(conds, cond)
		args = append(args, "%"+escapeLike(term.Pattern)+"%")
	}
	for _, term := range q.TagCountTerms {
		cond := fmt.Sprintf("%s %s ?", tagCountSQL, term.Op)
		if term.Negated {
			cond = "NOT (" + cond + ")"
		}
		conds = append(conds, cond)
		args = append(args, term.Value)
	}
	if q.Favorite != nil {
		if *q.Favorite {
			conds = append(conds, "p.is_favorite = 1")
		} else {
			conds = append(conds, "p.is_favorite = 0")
		}
	}
	return strings.Join(conds, " AND "), args, orderClause(q.Sort)
}

// typePredicate matches any of the given media types. Gifs classify as
// animation, every other image/* as image.
func typePredicate(types []models.MediaType) string {
	parts := make([]string, 0, len(types))
	for _, mt := range types {
		switch mt {
		case models.MediaTypeImage:
			parts = append(parts, "(p.content_type LIKE 'image/%' AND p.content_type <> 'image/gif')")
		case models.MediaTypeAnimation:
			parts = append(parts, "p.content_type = 'image/gif'")
		case models.MediaTypeVideo:
			parts = append(parts, "p.content_type LIKE 'video/%'")
		}
	}
	return "(" + strings.Join(parts, " OR ") + ")"
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

var sortColumns = map[SortField]string{
	SortFileModified: "p.file_modified_date",
	SortImportDate:   "p.import_date",
	SortTagCount:     tagCountSQL,
	SortWidth:        "p.width",
	SortHeight:       "p.height",
	SortSize:         "p.size_bytes",
	SortID:           "p.id",
}

// orderClause renders the sort with p.id as tie-break in the same
// direction, so pagination is stable.
func orderClause(s Sort) string {
	dir := "ASC"
	if s.Desc {
		dir = "DESC"
	}
	col, ok := sortColumns[s.Field]
	if !ok {
		col, s.Field = sortColumns[SortFileModified], SortFileModified
	}
	if s.Field == SortID {
		return fmt.Sprintf("%s %s", col, dir)
	}
	return fmt.Sprintf("%s %s, p.id %s", col, dir, dir)
}
