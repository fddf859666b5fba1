package repository

import (
	"database/sql"
	"strings"
	"time"

	"github.com/YelovSK/Damebooru-sub002/internal/models"
)

type LogRepository struct {
	db *sql.DB
}

func NewLogRepository(db *sql.DB) *LogRepository {
	return &LogRepository{db: db}
}

// InsertBatch writes one capture batch in a single transaction.
func (r *LogRepository) InsertBatch(entries []models.AppLogEntry) error {
	if len(entries) == 0 {
		return nil
	}
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	for _, e := range entries {
		if _, err := tx.Exec(
			`INSERT INTO app_logs (timestamp, level, category, message, exception, properties_json)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			e.Timestamp.UTC(), e.Level, e.Category, e.Message, e.Exception, e.PropertiesJSON); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (r *LogRepository) DeleteOlderThan(cutoff time.Time) (int64, error) {
	res, err := r.db.Exec(`DELETE FROM app_logs WHERE timestamp < ?`, cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *LogRepository) Count() (int64, error) {
	var n int64
	err := r.db.QueryRow(`SELECT COUNT(*) FROM app_logs`).Scan(&n)
	return n, err
}

// DeleteOldest removes up to limit of the oldest rows, for the max-rows cap.
func (r *LogRepository) DeleteOldest(limit int) (int64, error) {
	res, err := r.db.Exec(
		`DELETE FROM app_logs WHERE id IN (SELECT id FROM app_logs ORDER BY id LIMIT ?)`, limit)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ListRecent returns the newest rows, optionally at or above a level.
// Level filtering matches slog names: debug < info < warn < error.
func (r *LogRepository) ListRecent(limit int, minLevel string) ([]*models.AppLogEntry, error) {
	query := `SELECT id, timestamp, level, category, message, exception, properties_json FROM app_logs`
	var args []any
	if levels := levelsAtOrAbove(minLevel); levels != nil {
		query += ` WHERE level IN (?` + repeatPlaceholder(len(levels)-1) + `)`
		for _, l := range levels {
			args = append(args, l)
		}
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []*models.AppLogEntry
	for rows.Next() {
		var e models.AppLogEntry
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.Level, &e.Category, &e.Message, &e.Exception, &e.PropertiesJSON); err != nil {
			return nil, err
		}
		e.Timestamp = e.Timestamp.UTC()
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

var logLevelOrder = []string{"DEBUG", "INFO", "WARN", "ERROR"}

func levelsAtOrAbove(minLevel string) []string {
	want := strings.ToUpper(minLevel)
	for i, l := range logLevelOrder {
		if want == l {
			return logLevelOrder[i:]
		}
	}
	return nil
}

func repeatPlaceholder(n int) string {
	s := ""
	for range n {
		s += ",?"
	}
	return s
}
