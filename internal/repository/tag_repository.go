package repository

import (
	"database/sql"
	"errors"

	"github.com/YelovSK/Damebooru-sub002/internal/models"
	"github.com/YelovSK/Damebooru-sub002/internal/outcome"
)

type TagRepository struct {
	db *sql.DB
}

func NewTagRepository(db *sql.DB) *TagRepository {
	return &TagRepository{db: db}
}

// Ensure returns the tag with the sanitized form of name, creating it if
// needed.
func (r *TagRepository) Ensure(name string) (*models.Tag, error) {
	sanitized := models.SanitizeTagName(name)
	if sanitized == "" {
		return nil, outcome.InvalidInput("tag name %q sanitizes to nothing", name)
	}
	t := &models.Tag{Name: sanitized}
	err := r.db.QueryRow(
		`INSERT INTO tags (name) VALUES (?)
		 ON CONFLICT (name) DO UPDATE SET name = excluded.name
		 RETURNING id, category_id`,
		sanitized,
	).Scan(&t.ID, &t.CategoryID)
	return t, err
}

func (r *TagRepository) GetByID(id int64) (*models.Tag, error) {
	var t models.Tag
	err := r.db.QueryRow(
		`SELECT id, name, category_id FROM tags WHERE id = ?`, id,
	).Scan(&t.ID, &t.Name, &t.CategoryID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, outcome.NotFound("tag %d not found", id)
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// List returns all tags with their post counts, most used first.
func (r *TagRepository) List() ([]*models.Tag, error) {
	rows, err := r.db.Query(
		`SELECT t.id, t.name, t.category_id, COUNT(DISTINCT pt.post_id)
		 FROM tags t LEFT JOIN post_tags pt ON pt.tag_id = t.id
		 GROUP BY t.id ORDER BY COUNT(DISTINCT pt.post_id) DESC, t.name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var tags []*models.Tag
	for rows.Next() {
		var t models.Tag
		if err := rows.Scan(&t.ID, &t.Name, &t.CategoryID, &t.PostCount); err != nil {
			return nil, err
		}
		tags = append(tags, &t)
	}
	return tags, rows.Err()
}

func (r *TagRepository) Update(t *models.Tag) error {
	sanitized := models.SanitizeTagName(t.Name)
	if sanitized == "" {
		return outcome.InvalidInput("tag name %q sanitizes to nothing", t.Name)
	}
	t.Name = sanitized
	res, err := r.db.Exec(
		`UPDATE tags SET name = ?, category_id = ? WHERE id = ?`,
		t.Name, t.CategoryID, t.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return outcome.NotFound("tag %d not found", t.ID)
	}
	return nil
}

func (r *TagRepository) Delete(id int64) error {
	res, err := r.db.Exec(`DELETE FROM tags WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return outcome.NotFound("tag %d not found", id)
	}
	return nil
}

// RenameOrMerge renames a tag to newName (already expected sanitized). If
// another tag owns that name the two merge: post links repoint to the
// survivor and the renamed tag is dropped. Returns the surviving tag id.
func (r *TagRepository) RenameOrMerge(id int64, newName string) (int64, error) {
	tx, err := r.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var existingID int64
	err = tx.QueryRow(`SELECT id FROM tags WHERE name = ? AND id != ?`, newName, id).Scan(&existingID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := tx.Exec(`UPDATE tags SET name = ? WHERE id = ?`, newName, id); err != nil {
			return 0, err
		}
		return id, tx.Commit()
	case err != nil:
		return 0, err
	}

	if _, err := tx.Exec(
		`INSERT OR IGNORE INTO post_tags (post_id, tag_id, source)
		 SELECT post_id, ?, source FROM post_tags WHERE tag_id = ?`,
		existingID, id); err != nil {
		return 0, err
	}
	if _, err := tx.Exec(`DELETE FROM post_tags WHERE tag_id = ?`, id); err != nil {
		return 0, err
	}
	if _, err := tx.Exec(`DELETE FROM tags WHERE id = ?`, id); err != nil {
		return 0, err
	}
	return existingID, tx.Commit()
}

// ──────────────────── Post links ────────────────────

func (r *TagRepository) AssignToPost(postID, tagID int64, source models.TagSource) error {
	_, err := r.db.Exec(
		`INSERT OR IGNORE INTO post_tags (post_id, tag_id, source) VALUES (?, ?, ?)`,
		postID, tagID, source)
	return err
}

// RemoveFromPost drops the tag from the post regardless of source.
func (r *TagRepository) RemoveFromPost(postID, tagID int64) error {
	res, err := r.db.Exec(
		`DELETE FROM post_tags WHERE post_id = ? AND tag_id = ?`, postID, tagID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return outcome.NotFound("post %d does not carry tag %d", postID, tagID)
	}
	return nil
}

// ListForPost returns the post's distinct effective tags.
func (r *TagRepository) ListForPost(postID int64) ([]*models.Tag, error) {
	rows, err := r.db.Query(
		`SELECT DISTINCT t.id, t.name, t.category_id
		 FROM tags t JOIN post_tags pt ON pt.tag_id = t.id
		 WHERE pt.post_id = ? ORDER BY t.name`,
		postID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var tags []*models.Tag
	for rows.Next() {
		var t models.Tag
		if err := rows.Scan(&t.ID, &t.Name, &t.CategoryID); err != nil {
			return nil, err
		}
		tags = append(tags, &t)
	}
	return tags, rows.Err()
}

// ──────────────────── Categories ────────────────────

func (r *TagRepository) ListCategories() ([]*models.TagCategory, error) {
	rows, err := r.db.Query(
		`SELECT id, name, color, sort_order FROM tag_categories ORDER BY sort_order, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var cats []*models.TagCategory
	for rows.Next() {
		var c models.TagCategory
		if err := rows.Scan(&c.ID, &c.Name, &c.Color, &c.SortOrder); err != nil {
			return nil, err
		}
		cats = append(cats, &c)
	}
	return cats, rows.Err()
}

func (r *TagRepository) CreateCategory(c *models.TagCategory) error {
	return r.db.QueryRow(
		`INSERT INTO tag_categories (name, color, sort_order) VALUES (?, ?, ?) RETURNING id`,
		c.Name, c.Color, c.SortOrder,
	).Scan(&c.ID)
}

func (r *TagRepository) UpdateCategory(c *models.TagCategory) error {
	res, err := r.db.Exec(
		`UPDATE tag_categories SET name = ?, color = ?, sort_order = ? WHERE id = ?`,
		c.Name, c.Color, c.SortOrder, c.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return outcome.NotFound("tag category %d not found", c.ID)
	}
	return nil
}

func (r *TagRepository) DeleteCategory(id int64) error {
	res, err := r.db.Exec(`DELETE FROM tag_categories WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return outcome.NotFound("tag category %d not found", id)
	}
	return nil
}
