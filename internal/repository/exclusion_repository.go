package repository

import (
	"database/sql"
	"time"

	"github.com/YelovSK/Damebooru-sub002/internal/models"
	"github.com/YelovSK/Damebooru-sub002/internal/outcome"
)

// ExclusionRepository tracks (library, relativePath) pairs barred from
// re-import, typically written by duplicate resolution.
type ExclusionRepository struct {
	db *sql.DB
}

func NewExclusionRepository(db *sql.DB) *ExclusionRepository {
	return &ExclusionRepository{db: db}
}

func (r *ExclusionRepository) Add(e *models.ExcludedFile) error {
	if e.ExcludedDate.IsZero() {
		e.ExcludedDate = time.Now().UTC()
	}
	_, err := r.db.Exec(
		`INSERT OR IGNORE INTO excluded_files (library_id, relative_path, content_hash, reason, excluded_date)
		 VALUES (?, ?, ?, ?, ?)`,
		e.LibraryID, e.RelativePath, e.ContentHash, e.Reason, e.ExcludedDate.UTC())
	return err
}

func (r *ExclusionRepository) ListByLibrary(libraryID int64) ([]models.ExcludedFile, error) {
	rows, err := r.db.Query(
		`SELECT id, library_id, relative_path, content_hash, reason, excluded_date
		 FROM excluded_files WHERE library_id = ? ORDER BY relative_path`,
		libraryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var files []models.ExcludedFile
	for rows.Next() {
		var e models.ExcludedFile
		if err := rows.Scan(&e.ID, &e.LibraryID, &e.RelativePath, &e.ContentHash, &e.Reason, &e.ExcludedDate); err != nil {
			return nil, err
		}
		e.ExcludedDate = e.ExcludedDate.UTC()
		files = append(files, e)
	}
	return files, rows.Err()
}

// PathSet returns the library's excluded paths as a lookup set for the
// scanner's snapshot phase.
func (r *ExclusionRepository) PathSet(libraryID int64) (map[string]struct{}, error) {
	rows, err := r.db.Query(
		`SELECT relative_path FROM excluded_files WHERE library_id = ?`, libraryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	set := make(map[string]struct{})
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		set[p] = struct{}{}
	}
	return set, rows.Err()
}

func (r *ExclusionRepository) Remove(id int64) error {
	res, err := r.db.Exec(`DELETE FROM excluded_files WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return outcome.NotFound("excluded file %d not found", id)
	}
	return nil
}
