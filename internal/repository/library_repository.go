package repository

import (
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/YelovSK/Damebooru-sub002/internal/models"
	"github.com/YelovSK/Damebooru-sub002/internal/outcome"
)

type LibraryRepository struct {
	db *sql.DB
}

func NewLibraryRepository(db *sql.DB) *LibraryRepository {
	return &LibraryRepository{db: db}
}

const libraryColumns = `id, name, path, scan_interval_minutes, created_at, updated_at`

func scanLibrary(row interface{ Scan(...any) error }) (*models.Library, error) {
	var l models.Library
	if err := row.Scan(&l.ID, &l.Name, &l.Path, &l.ScanIntervalMinutes, &l.CreatedAt, &l.UpdatedAt); err != nil {
		return nil, err
	}
	l.CreatedAt = l.CreatedAt.UTC()
	l.UpdatedAt = l.UpdatedAt.UTC()
	return &l, nil
}

func (r *LibraryRepository) Create(lib *models.Library) error {
	now := time.Now().UTC()
	lib.CreatedAt = now
	lib.UpdatedAt = now
	return r.db.QueryRow(
		`INSERT INTO libraries (name, path, scan_interval_minutes, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?) RETURNING id`,
		lib.Name, lib.Path, lib.ScanIntervalMinutes, lib.CreatedAt, lib.UpdatedAt,
	).Scan(&lib.ID)
}

func (r *LibraryRepository) GetByID(id int64) (*models.Library, error) {
	lib, err := scanLibrary(r.db.QueryRow(
		`SELECT `+libraryColumns+` FROM libraries WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, outcome.NotFound("library %d not found", id)
	}
	return lib, err
}

func (r *LibraryRepository) List() ([]*models.Library, error) {
	rows, err := r.db.Query(`SELECT ` + libraryColumns + ` FROM libraries ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var libs []*models.Library
	for rows.Next() {
		lib, err := scanLibrary(rows)
		if err != nil {
			return nil, err
		}
		libs = append(libs, lib)
	}
	return libs, rows.Err()
}

func (r *LibraryRepository) Update(lib *models.Library) error {
	lib.UpdatedAt = time.Now().UTC()
	res, err := r.db.Exec(
		`UPDATE libraries SET name = ?, path = ?, scan_interval_minutes = ?, updated_at = ? WHERE id = ?`,
		lib.Name, lib.Path, lib.ScanIntervalMinutes, lib.UpdatedAt, lib.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return outcome.NotFound("library %d not found", lib.ID)
	}
	return nil
}

func (r *LibraryRepository) Delete(id int64) error {
	res, err := r.db.Exec(`DELETE FROM libraries WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return outcome.NotFound("library %d not found", id)
	}
	return nil
}

// ──────────────────── Ignored paths ────────────────────

// NormalizePathPrefix canonicalizes an ignored-path prefix: forward
// slashes, no leading/trailing slash. Empty result means "invalid".
func NormalizePathPrefix(prefix string) string {
	p := strings.ReplaceAll(prefix, `\`, "/")
	return strings.Trim(p, "/ \t")
}

func (r *LibraryRepository) IgnoredPaths(libraryID int64) ([]models.LibraryIgnoredPath, error) {
	rows, err := r.db.Query(
		`SELECT id, library_id, path_prefix FROM library_ignored_paths WHERE library_id = ? ORDER BY path_prefix`,
		libraryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var paths []models.LibraryIgnoredPath
	for rows.Next() {
		var p models.LibraryIgnoredPath
		if err := rows.Scan(&p.ID, &p.LibraryID, &p.PathPrefix); err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	return paths, rows.Err()
}

func (r *LibraryRepository) AddIgnoredPath(libraryID int64, prefix string) (*models.LibraryIgnoredPath, error) {
	normalized := NormalizePathPrefix(prefix)
	if normalized == "" {
		return nil, outcome.InvalidInput("ignored path prefix is empty")
	}
	p := &models.LibraryIgnoredPath{LibraryID: libraryID, PathPrefix: normalized}
	err := r.db.QueryRow(
		`INSERT INTO library_ignored_paths (library_id, path_prefix) VALUES (?, ?)
		 ON CONFLICT (library_id, path_prefix) DO UPDATE SET path_prefix = excluded.path_prefix
		 RETURNING id`,
		libraryID, normalized,
	).Scan(&p.ID)
	return p, err
}

func (r *LibraryRepository) RemoveIgnoredPath(id int64) error {
	res, err := r.db.Exec(`DELETE FROM library_ignored_paths WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return outcome.NotFound("ignored path %d not found", id)
	}
	return nil
}
