// Package search implements the post query language: a whitespace-split
// stream of tag terms and directives compiled to SQL over the posts table.
package search

import (
	"strconv"
	"strings"

	"github.com/YelovSK/Damebooru-sub002/internal/models"
)

// SortField names the orderable post columns.
type SortField string

const (
	SortFileModified SortField = "file-modified"
	SortImportDate   SortField = "import-date"
	SortTagCount     SortField = "tag-count"
	SortWidth        SortField = "width"
	SortHeight       SortField = "height"
	SortSize         SortField = "size"
	SortID           SortField = "id"
)

type Sort struct {
	Field SortField
	Desc  bool
}

// FileTerm is a substring match on the relative path.
type FileTerm struct {
	Pattern string
	Negated bool
}

type TagCountTerm struct {
	Op      string
	Value   int
	Negated bool
}

// Query is a parsed search expression. All terms AND together.
type Query struct {
	IncludeTags   []string
	ExcludeTags   []string
	IncludeTypes  []models.MediaType
	ExcludeTypes  []models.MediaType
	FileTerms     []FileTerm
	TagCountTerms []TagCountTerm
	Favorite      *bool
	Sort          Sort
}

// Parse tokenizes a search expression. A leading - negates a token, the
// first unescaped colon splits a directive from its value, and anything
// that is not a recognized directive reads as a tag term. Recognized
// directives with malformed values are dropped rather than demoted to
// tag terms.
func Parse(raw string) Query {
	q := Query{Sort: Sort{Field: SortFileModified, Desc: true}}
	for _, token := range strings.Fields(raw) {
		negated := false
		if len(token) > 1 && token[0] == '-' {
			negated = true
			token = token[1:]
		}
		if head, value, ok := splitDirective(token); ok {
			if q.applyDirective(strings.ToLower(head), value, negated) {
				continue
			}
		}
		tag := models.SanitizeTagName(unescape(token))
		if tag == "" {
			continue
		}
		if negated {
			q.ExcludeTags = append(q.ExcludeTags, tag)
		} else {
			q.IncludeTags = append(q.IncludeTags, tag)
		}
	}
	return q
}

// splitDirective splits a token at its first unescaped colon.
func splitDirective(token string) (head, value string, ok bool) {
	for i := 0; i < len(token); i++ {
		switch token[i] {
		case '\\':
			i++
		case ':':
			return token[:i], token[i+1:], true
		}
	}
	return "", "", false
}

// unescape resolves \: to a literal colon.
func unescape(s string) string {
	return strings.ReplaceAll(s, `\:`, ":")
}

// applyDirective interprets a known directive, reporting whether the
// token was consumed.
func (q *Query) applyDirective(head, value string, negated bool) bool {
	switch head {
	case "type":
		var types []models.MediaType
		for _, part := range strings.Split(value, ",") {
			switch mt := models.MediaType(strings.ToLower(strings.TrimSpace(part))); mt {
			case models.MediaTypeImage, models.MediaTypeAnimation, models.MediaTypeVideo:
				types = append(types, mt)
			}
		}
		if negated {
			q.ExcludeTypes = append(q.ExcludeTypes, types...)
		} else {
			q.IncludeTypes = append(q.IncludeTypes, types...)
		}
		return true
	case "file", "filename":
		if pattern := unescape(value); pattern != "" {
			q.FileTerms = append(q.FileTerms, FileTerm{Pattern: pattern, Negated: negated})
		}
		return true
	case "tag-count":
		if term, ok := parseTagCount(value); ok {
			term.Negated = negated
			q.TagCountTerms = append(q.TagCountTerms, term)
		}
		return true
	case "favorite":
		want, err := strconv.ParseBool(strings.ToLower(value))
		if err != nil {
			return true
		}
		if negated {
			want = !want
		}
		q.Favorite = &want
		return true
	case "sort":
		if sort, ok := parseSort(strings.ToLower(value)); ok {
			q.Sort = sort
		}
		return true
	}
	return false
}

// Longest first so <= wins over <.
var countOps = []string{"<=", ">=", "<", ">", "="}

// parseTagCount reads <op><n> with = as the default op. A non-numeric
// count rejects the whole directive.
func parseTagCount(value string) (TagCountTerm, bool) {
	op := "="
	for _, candidate := range countOps {
		if strings.HasPrefix(value, candidate) {
			op = candidate
			value = value[len(candidate):]
			break
		}
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return TagCountTerm{}, false
	}
	return TagCountTerm{Op: op, Value: n}, true
}

var sortFields = map[string]SortField{
	"file-modified": SortFileModified,
	"import-date":   SortImportDate,
	"tag-count":     SortTagCount,
	"width":         SortWidth,
	"height":        SortHeight,
	"size":          SortSize,
	"id":            SortID,
}

// parseSort reads new/old, +field/-field, field_asc/field_desc, or a
// bare field name (descending).
func parseSort(value string) (Sort, bool) {
	switch value {
	case "new":
		return Sort{Field: SortFileModified, Desc: true}, true
	case "old":
		return Sort{Field: SortFileModified, Desc: false}, true
	}
	desc := true
	name := value
	switch {
	case strings.HasPrefix(value, "+"):
		desc = false
		name = value[1:]
	case strings.HasPrefix(value, "-"):
		name = value[1:]
	case strings.HasSuffix(value, "_asc"):
		desc = false
		name = strings.TrimSuffix(value, "_asc")
	case strings.HasSuffix(value, "_desc"):
		name = strings.TrimSuffix(value, "_desc")
	}
	field, ok := sortFields[name]
	if !ok {
		return Sort{}, false
	}
	return Sort{Field: field, Desc: desc}, true
}
