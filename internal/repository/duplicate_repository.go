package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/YelovSK/Damebooru-sub002/internal/models"
	"github.com/YelovSK/Damebooru-sub002/internal/outcome"
)

type DuplicateRepository struct {
	db *sql.DB
}

func NewDuplicateRepository(db *sql.DB) *DuplicateRepository {
	return &DuplicateRepository{db: db}
}

// GroupDraft is what the detection engine hands over for persistence.
type GroupDraft struct {
	Type              models.DuplicateType
	SimilarityPercent *int
	PostIDs           []int64
}

// DeleteUnresolved clears groups still awaiting a decision; resolved
// groups are history and stay.
func (r *DuplicateRepository) DeleteUnresolved() (int64, error) {
	res, err := r.db.Exec(`DELETE FROM duplicate_groups WHERE is_resolved = 0`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// CreateGroups persists a detection run's groups in a single transaction.
func (r *DuplicateRepository) CreateGroups(drafts []GroupDraft) error {
	if len(drafts) == 0 {
		return nil
	}
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	now := time.Now().UTC()
	for _, d := range drafts {
		var groupID int64
		err := tx.QueryRow(
			`INSERT INTO duplicate_groups (group_type, similarity_percent, is_resolved, detected_date)
			 VALUES (?, ?, 0, ?) RETURNING id`,
			d.Type, d.SimilarityPercent, now,
		).Scan(&groupID)
		if err != nil {
			return err
		}
		for _, postID := range d.PostIDs {
			if _, err := tx.Exec(
				`INSERT INTO duplicate_group_entries (group_id, post_id) VALUES (?, ?)`,
				groupID, postID); err != nil {
				return err
			}
		}
	}
	return tx.Commit()
}

func scanGroup(row interface{ Scan(...any) error }) (*models.DuplicateGroup, error) {
	var g models.DuplicateGroup
	if err := row.Scan(&g.ID, &g.GroupType, &g.SimilarityPercent, &g.IsResolved, &g.DetectedDate); err != nil {
		return nil, err
	}
	g.DetectedDate = g.DetectedDate.UTC()
	return &g, nil
}

const groupColumns = `id, group_type, similarity_percent, is_resolved, detected_date`

// ListGroups pages groups newest first, optionally filtered by resolved
// state, hydrating each with its surviving posts.
func (r *DuplicateRepository) ListGroups(resolved *bool, page, pageSize int) ([]models.DuplicateGroupDetail, int, error) {
	where := `1=1`
	var args []any
	if resolved != nil {
		where = `is_resolved = ?`
		args = append(args, *resolved)
	}
	var total int
	if err := r.db.QueryRow(
		`SELECT COUNT(*) FROM duplicate_groups WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	if page < 1 {
		page = 1
	}
	query := `SELECT ` + groupColumns + ` FROM duplicate_groups WHERE ` + where +
		` ORDER BY detected_date DESC, id DESC LIMIT ? OFFSET ?`
	rows, err := r.db.Query(query, append(args, pageSize, (page-1)*pageSize)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var groups []models.DuplicateGroupDetail
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, 0, err
		}
		groups = append(groups, models.DuplicateGroupDetail{DuplicateGroup: *g})
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	for i := range groups {
		posts, err := r.groupPosts(groups[i].ID)
		if err != nil {
			return nil, 0, err
		}
		groups[i].Posts = posts
	}
	return groups, total, nil
}

func (r *DuplicateRepository) GetGroup(id int64) (*models.DuplicateGroupDetail, error) {
	g, err := scanGroup(r.db.QueryRow(
		`SELECT `+groupColumns+` FROM duplicate_groups WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, outcome.NotFound("duplicate group %d not found", id)
	}
	if err != nil {
		return nil, err
	}
	posts, err := r.groupPosts(id)
	if err != nil {
		return nil, err
	}
	return &models.DuplicateGroupDetail{DuplicateGroup: *g, Posts: posts}, nil
}

func (r *DuplicateRepository) groupPosts(groupID int64) ([]models.Post, error) {
	rows, err := r.db.Query(
		`SELECT `+prefixColumns("p", postColumns)+`
		 FROM duplicate_group_entries e JOIN posts p ON p.id = e.post_id
		 WHERE e.group_id = ? ORDER BY p.id`,
		groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var posts []models.Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, *p)
	}
	return posts, rows.Err()
}

// ListUnresolvedExact returns unresolved exact groups with their posts,
// oldest group first, for bulk resolution.
func (r *DuplicateRepository) ListUnresolvedExact() ([]models.DuplicateGroupDetail, error) {
	rows, err := r.db.Query(
		`SELECT ` + groupColumns + ` FROM duplicate_groups
		 WHERE is_resolved = 0 AND group_type = 'exact' ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var groups []models.DuplicateGroupDetail
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, err
		}
		groups = append(groups, models.DuplicateGroupDetail{DuplicateGroup: *g})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range groups {
		posts, err := r.groupPosts(groups[i].ID)
		if err != nil {
			return nil, err
		}
		groups[i].Posts = posts
	}
	return groups, nil
}

// ResolveKeepAll marks the group resolved without deleting anything.
func (r *DuplicateRepository) ResolveKeepAll(groupID int64) error {
	res, err := r.db.Exec(`UPDATE duplicate_groups SET is_resolved = 1 WHERE id = ?`, groupID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return outcome.NotFound("duplicate group %d not found", groupID)
	}
	return nil
}

// ResolveKeepOne deletes every post in the group except keepID, records an
// exclusion per deleted post so rescans do not re-import the files, and
// marks the group resolved. All in one transaction. Returns the deleted
// post ids.
func (r *DuplicateRepository) ResolveKeepOne(groupID, keepID int64) ([]int64, error) {
	group, err := r.GetGroup(groupID)
	if err != nil {
		return nil, err
	}
	var keep *models.Post
	var losers []models.Post
	for i := range group.Posts {
		if group.Posts[i].ID == keepID {
			keep = &group.Posts[i]
		} else {
			losers = append(losers, group.Posts[i])
		}
	}
	if keep == nil {
		return nil, outcome.InvalidInput("post %d is not part of duplicate group %d", keepID, groupID)
	}
	deleted, err := r.deletePostsResolving(groupID, keepID, losers)
	if err != nil {
		return nil, err
	}
	return deleted, nil
}

// ResolveSubset applies keep-one semantics to a subset of the group's
// posts (the same-folder projection): only the given losers are deleted.
// The group is marked resolved only when at most one of its posts remains.
func (r *DuplicateRepository) ResolveSubset(groupID, keepID int64, losers []models.Post) ([]int64, error) {
	return r.deletePostsResolving(groupID, keepID, losers)
}

func (r *DuplicateRepository) deletePostsResolving(groupID, keepID int64, losers []models.Post) ([]int64, error) {
	tx, err := r.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	deleted := make([]int64, 0, len(losers))
	for _, p := range losers {
		if _, err := tx.Exec(
			`INSERT OR IGNORE INTO excluded_files (library_id, relative_path, content_hash, reason, excluded_date)
			 VALUES (?, ?, ?, ?, ?)`,
			p.LibraryID, p.RelativePath, p.ContentHash, fmt.Sprintf("duplicate-of-#%d", keepID), now); err != nil {
			return nil, err
		}
		if _, err := tx.Exec(`DELETE FROM posts WHERE id = ?`, p.ID); err != nil {
			return nil, err
		}
		deleted = append(deleted, p.ID)
	}

	var remaining int
	if err := tx.QueryRow(
		`SELECT COUNT(*) FROM duplicate_group_entries WHERE group_id = ?`, groupID).Scan(&remaining); err != nil {
		return nil, err
	}
	if remaining <= 1 {
		if _, err := tx.Exec(`UPDATE duplicate_groups SET is_resolved = 1 WHERE id = ?`, groupID); err != nil {
			return nil, err
		}
	}
	return deleted, tx.Commit()
}

// UnresolvedCount is surfaced on the duplicates dashboard.
func (r *DuplicateRepository) UnresolvedCount() (int, error) {
	var n int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM duplicate_groups WHERE is_resolved = 0`).Scan(&n)
	return n, err
}
