package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/YelovSK/Damebooru-sub002/internal/models"
	"github.com/YelovSK/Damebooru-sub002/internal/outcome"
)

type PostRepository struct {
	db *sql.DB
}

func NewPostRepository(db *sql.DB) *PostRepository {
	return &PostRepository{db: db}
}

const postColumns = `id, library_id, relative_path, content_hash,
	file_identity_device, file_identity_value, perceptual_hash_d, perceptual_hash_p,
	size_bytes, width, height, content_type, import_date, file_modified_date, is_favorite`

func scanPost(row interface{ Scan(...any) error }) (*models.Post, error) {
	var p models.Post
	var dev, val, dh, ph *int64
	err := row.Scan(&p.ID, &p.LibraryID, &p.RelativePath, &p.ContentHash,
		&dev, &val, &dh, &ph,
		&p.SizeBytes, &p.Width, &p.Height, &p.ContentType,
		&p.ImportDate, &p.FileModifiedDate, &p.IsFavorite)
	if err != nil {
		return nil, err
	}
	if dev != nil && val != nil {
		p.FileIdentity = &models.FileIdentity{Device: uint64(*dev), Value: uint64(*val)}
	}
	p.PerceptualHashD = hashFromColumn(dh)
	p.PerceptualHashP = hashFromColumn(ph)
	p.ImportDate = p.ImportDate.UTC()
	p.FileModifiedDate = p.FileModifiedDate.UTC()
	return &p, nil
}

// 64-bit hashes are stored as their signed bit pattern, SQLite integers
// being signed.
func hashToColumn(h *uint64) *int64 {
	if h == nil {
		return nil
	}
	v := int64(*h)
	return &v
}

func hashFromColumn(v *int64) *uint64 {
	if v == nil {
		return nil
	}
	h := uint64(*v)
	return &h
}

func identityColumns(p *models.Post) (dev, val *int64) {
	if p.FileIdentity == nil {
		return nil, nil
	}
	d, v := int64(p.FileIdentity.Device), int64(p.FileIdentity.Value)
	return &d, &v
}

const insertPostSQL = `INSERT INTO posts (library_id, relative_path, content_hash,
	file_identity_device, file_identity_value, perceptual_hash_d, perceptual_hash_p,
	size_bytes, width, height, content_type, import_date, file_modified_date, is_favorite)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func postArgs(p *models.Post) []any {
	dev, val := identityColumns(p)
	return []any{
		p.LibraryID, p.RelativePath, p.ContentHash,
		dev, val, hashToColumn(p.PerceptualHashD), hashToColumn(p.PerceptualHashP),
		p.SizeBytes, p.Width, p.Height, p.ContentType,
		p.ImportDate.UTC(), p.FileModifiedDate.UTC(), p.IsFavorite,
	}
}

func (r *PostRepository) Create(p *models.Post) error {
	res, err := r.db.Exec(insertPostSQL, postArgs(p)...)
	if err != nil {
		return err
	}
	p.ID, err = res.LastInsertId()
	return err
}

// CreateBatch inserts all posts in one transaction. Either the whole batch
// lands or none of it does.
func (r *PostRepository) CreateBatch(posts []*models.Post) error {
	if len(posts) == 0 {
		return nil
	}
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	for _, p := range posts {
		res, err := tx.Exec(insertPostSQL, postArgs(p)...)
		if err != nil {
			return fmt.Errorf("inserting %s: %w", p.RelativePath, err)
		}
		if p.ID, err = res.LastInsertId(); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (r *PostRepository) GetByID(id int64) (*models.Post, error) {
	p, err := scanPost(r.db.QueryRow(
		`SELECT `+postColumns+` FROM posts WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, outcome.NotFound("post %d not found", id)
	}
	return p, err
}

func (r *PostRepository) queryPosts(query string, args ...any) ([]*models.Post, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var posts []*models.Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

// ListByLibrary loads a library's full post set in id-ordered pages of
// batchSize. The scanner snapshots through this.
func (r *PostRepository) ListByLibrary(libraryID int64, batchSize int) ([]*models.Post, error) {
	if batchSize <= 0 {
		batchSize = 500
	}
	var all []*models.Post
	lastID := int64(0)
	for {
		page, err := r.queryPosts(
			`SELECT `+postColumns+` FROM posts WHERE library_id = ? AND id > ? ORDER BY id LIMIT ?`,
			libraryID, lastID, batchSize)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) < batchSize {
			return all, nil
		}
		lastID = page[len(page)-1].ID
	}
}

// ListAll returns every post. Enrichment jobs and the duplicate engine
// iterate this in memory.
func (r *PostRepository) ListAll() ([]*models.Post, error) {
	return r.queryPosts(`SELECT ` + postColumns + ` FROM posts ORDER BY id`)
}

// ListMissingDimensions returns posts without probed dimensions.
func (r *PostRepository) ListMissingDimensions() ([]*models.Post, error) {
	return r.queryPosts(
		`SELECT ` + postColumns + ` FROM posts WHERE width = 0 OR height = 0 ORDER BY id`)
}

// ListPerceptualCandidates returns non-video posts, optionally only those
// still missing a perceptual hash.
func (r *PostRepository) ListPerceptualCandidates(missingOnly bool) ([]*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE content_type NOT LIKE 'video/%'`
	if missingOnly {
		query += ` AND (perceptual_hash_d IS NULL OR perceptual_hash_p IS NULL)`
	}
	return r.queryPosts(query + ` ORDER BY id`)
}

func (r *PostRepository) UpdatePath(id int64, relativePath string) error {
	res, err := r.db.Exec(`UPDATE posts SET relative_path = ? WHERE id = ?`, relativePath, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return outcome.NotFound("post %d not found", id)
	}
	return nil
}

// UpdateContent records a changed file: new hash, size and mtime, with
// enrichment reset so the metadata and similarity jobs revisit the post.
func (r *PostRepository) UpdateContent(id int64, contentHash string, sizeBytes int64, modified time.Time) error {
	res, err := r.db.Exec(
		`UPDATE posts SET content_hash = ?, size_bytes = ?, file_modified_date = ?,
			width = 0, height = 0, perceptual_hash_d = NULL, perceptual_hash_p = NULL
		 WHERE id = ?`,
		contentHash, sizeBytes, modified.UTC(), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return outcome.NotFound("post %d not found", id)
	}
	return nil
}

func (r *PostRepository) SetDimensions(id int64, width, height int) error {
	_, err := r.db.Exec(`UPDATE posts SET width = ?, height = ? WHERE id = ?`, width, height, id)
	return err
}

func (r *PostRepository) SetPerceptualHashes(id int64, dhash, phash *uint64) error {
	_, err := r.db.Exec(
		`UPDATE posts SET perceptual_hash_d = ?, perceptual_hash_p = ? WHERE id = ?`,
		hashToColumn(dhash), hashToColumn(phash), id)
	return err
}

func (r *PostRepository) SetFavorite(id int64, favorite bool) error {
	res, err := r.db.Exec(`UPDATE posts SET is_favorite = ? WHERE id = ?`, favorite, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return outcome.NotFound("post %d not found", id)
	}
	return nil
}

func (r *PostRepository) Delete(id int64) error {
	res, err := r.db.Exec(`DELETE FROM posts WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return outcome.NotFound("post %d not found", id)
	}
	return nil
}

// DeleteByIDs removes posts in chunks inside one transaction.
func (r *PostRepository) DeleteByIDs(ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	const chunk = 500
	for start := 0; start < len(ids); start += chunk {
		end := min(start+chunk, len(ids))
		part := ids[start:end]
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(part)), ",")
		args := make([]any, len(part))
		for i, id := range part {
			args[i] = id
		}
		if _, err := tx.Exec(`DELETE FROM posts WHERE id IN (`+placeholders+`)`, args...); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ──────────────────── Search ────────────────────

// tagCountExpr matches the expression the query planner emits for
// tag-count terms; the select list aliases it for sorting.
const tagCountExpr = `(SELECT COUNT(DISTINCT pt.tag_id) FROM post_tags pt WHERE pt.post_id = p.id)`

// Search executes a planned query: where/order are SQL fragments over
// alias p produced by the search planner. Returns the page plus the total
// match count.
func (r *PostRepository) Search(where string, args []any, order string, page, pageSize int) ([]*models.Post, int, error) {
	if where == "" {
		where = "1=1"
	}
	if page < 1 {
		page = 1
	}
	var total int
	if err := r.db.QueryRow(
		`SELECT COUNT(*) FROM posts p WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + prefixColumns("p", postColumns) + `, ` + tagCountExpr + ` AS tag_count
		FROM posts p WHERE ` + where + ` ORDER BY ` + order + ` LIMIT ? OFFSET ?`
	pagedArgs := append(append([]any{}, args...), pageSize, (page-1)*pageSize)
	rows, err := r.db.Query(query, pagedArgs...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var posts []*models.Post
	for rows.Next() {
		var p models.Post
		var dev, val, dh, ph *int64
		err := rows.Scan(&p.ID, &p.LibraryID, &p.RelativePath, &p.ContentHash,
			&dev, &val, &dh, &ph,
			&p.SizeBytes, &p.Width, &p.Height, &p.ContentType,
			&p.ImportDate, &p.FileModifiedDate, &p.IsFavorite, &p.TagCount)
		if err != nil {
			return nil, 0, err
		}
		if dev != nil && val != nil {
			p.FileIdentity = &models.FileIdentity{Device: uint64(*dev), Value: uint64(*val)}
		}
		p.PerceptualHashD = hashFromColumn(dh)
		p.PerceptualHashP = hashFromColumn(ph)
		p.ImportDate = p.ImportDate.UTC()
		p.FileModifiedDate = p.FileModifiedDate.UTC()
		posts = append(posts, &p)
	}
	return posts, total, rows.Err()
}

func prefixColumns(alias, columns string) string {
	parts := strings.Split(columns, ",")
	for i, c := range parts {
		parts[i] = alias + "." + strings.TrimSpace(c)
	}
	return strings.Join(parts, ", ")
}

// ──────────────────── Sources ────────────────────

func (r *PostRepository) GetSources(postID int64) ([]models.PostSource, error) {
	rows, err := r.db.Query(
		`SELECT post_id, sort_order, url FROM post_sources WHERE post_id = ? ORDER BY sort_order`,
		postID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var sources []models.PostSource
	for rows.Next() {
		var s models.PostSource
		if err := rows.Scan(&s.PostID, &s.SortOrder, &s.URL); err != nil {
			return nil, err
		}
		sources = append(sources, s)
	}
	return sources, rows.Err()
}

// SetSources replaces a post's ordered source URLs.
func (r *PostRepository) SetSources(postID int64, urls []string) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.Exec(`DELETE FROM post_sources WHERE post_id = ?`, postID); err != nil {
		return err
	}
	for i, u := range urls {
		if _, err := tx.Exec(
			`INSERT INTO post_sources (post_id, sort_order, url) VALUES (?, ?, ?)`,
			postID, i, u); err != nil {
			return err
		}
	}
	return tx.Commit()
}
