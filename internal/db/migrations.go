package db

import "fmt"

// Each entry is one schema version; statements run inside one transaction
// and PRAGMA user_version advances with them.
var migrations = [][]string{
	{
		`CREATE TABLE libraries (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			path TEXT NOT NULL,
			scan_interval_minutes INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE TABLE posts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			library_id INTEGER NOT NULL REFERENCES libraries(id) ON DELETE CASCADE,
			relative_path TEXT NOT NULL,
			content_hash TEXT NOT NULL DEFAULT '',
			file_identity_device INTEGER,
			file_identity_value INTEGER,
			perceptual_hash_d INTEGER,
			perceptual_hash_p INTEGER,
			size_bytes INTEGER NOT NULL DEFAULT 0,
			width INTEGER NOT NULL DEFAULT 0,
			height INTEGER NOT NULL DEFAULT 0,
			content_type TEXT NOT NULL DEFAULT '',
			import_date DATETIME NOT NULL,
			file_modified_date DATETIME NOT NULL,
			is_favorite BOOLEAN NOT NULL DEFAULT 0,
			UNIQUE (library_id, relative_path)
		)`,
		`CREATE INDEX idx_posts_library ON posts(library_id)`,
		`CREATE INDEX idx_posts_content_hash ON posts(content_hash)`,
		`CREATE INDEX idx_posts_identity ON posts(library_id, file_identity_device, file_identity_value)`,
		`CREATE INDEX idx_posts_file_modified ON posts(file_modified_date)`,
		`CREATE TABLE tag_categories (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE,
			color TEXT NOT NULL DEFAULT '',
			sort_order INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE tags (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE,
			category_id INTEGER REFERENCES tag_categories(id) ON DELETE SET NULL
		)`,
		`CREATE TABLE post_tags (
			post_id INTEGER NOT NULL REFERENCES posts(id) ON DELETE CASCADE,
			tag_id INTEGER NOT NULL REFERENCES tags(id) ON DELETE CASCADE,
			source TEXT NOT NULL,
			PRIMARY KEY (post_id, tag_id, source)
		)`,
		`CREATE INDEX idx_post_tags_tag ON post_tags(tag_id)`,
		`CREATE TABLE post_sources (
			post_id INTEGER NOT NULL REFERENCES posts(id) ON DELETE CASCADE,
			sort_order INTEGER NOT NULL,
			url TEXT NOT NULL,
			UNIQUE (post_id, sort_order)
		)`,
		`CREATE TABLE duplicate_groups (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			group_type TEXT NOT NULL,
			similarity_percent INTEGER,
			is_resolved BOOLEAN NOT NULL DEFAULT 0,
			detected_date DATETIME NOT NULL
		)`,
		`CREATE TABLE duplicate_group_entries (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			group_id INTEGER NOT NULL REFERENCES duplicate_groups(id) ON DELETE CASCADE,
			post_id INTEGER NOT NULL REFERENCES posts(id) ON DELETE CASCADE
		)`,
		`CREATE INDEX idx_dup_entries_group ON duplicate_group_entries(group_id)`,
		`CREATE INDEX idx_dup_entries_post ON duplicate_group_entries(post_id)`,
		`CREATE TABLE excluded_files (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			library_id INTEGER NOT NULL REFERENCES libraries(id) ON DELETE CASCADE,
			relative_path TEXT NOT NULL,
			content_hash TEXT NOT NULL DEFAULT '',
			reason TEXT NOT NULL DEFAULT '',
			excluded_date DATETIME NOT NULL,
			UNIQUE (library_id, relative_path)
		)`,
		`CREATE TABLE library_ignored_paths (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			library_id INTEGER NOT NULL REFERENCES libraries(id) ON DELETE CASCADE,
			path_prefix TEXT NOT NULL,
			UNIQUE (library_id, path_prefix)
		)`,
		`CREATE TABLE job_executions (
			id TEXT PRIMARY KEY,
			job_key TEXT NOT NULL,
			job_name TEXT NOT NULL,
			status TEXT NOT NULL,
			start_time DATETIME NOT NULL,
			end_time DATETIME,
			error_message TEXT,
			activity_text TEXT NOT NULL DEFAULT '',
			final_text TEXT NOT NULL DEFAULT '',
			progress_current INTEGER,
			progress_total INTEGER,
			result_schema_version INTEGER NOT NULL DEFAULT 0,
			result_json TEXT
		)`,
		`CREATE INDEX idx_job_executions_start ON job_executions(start_time)`,
		`CREATE INDEX idx_job_executions_status ON job_executions(status)`,
		`CREATE TABLE scheduled_jobs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			job_key TEXT NOT NULL UNIQUE,
			cron_expression TEXT NOT NULL,
			is_enabled BOOLEAN NOT NULL DEFAULT 0,
			last_run DATETIME,
			next_run DATETIME
		)`,
		`CREATE TABLE app_logs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp DATETIME NOT NULL,
			level TEXT NOT NULL,
			category TEXT NOT NULL DEFAULT '',
			message TEXT NOT NULL,
			exception TEXT,
			properties_json TEXT
		)`,
		`CREATE INDEX idx_app_logs_timestamp ON app_logs(timestamp)`,
	},
}

// Migrate brings the schema up to the current version. Fresh databases get
// everything; existing ones only the versions they are missing.
func (d *DB) Migrate() error {
	var version int
	if err := d.QueryRow(`PRAGMA user_version`).Scan(&version); err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}
	for v := version; v < len(migrations); v++ {
		tx, err := d.Begin()
		if err != nil {
			return err
		}
		for _, stmt := range migrations[v] {
			if _, err := tx.Exec(stmt); err != nil {
				tx.Rollback()
				return fmt.Errorf("migration %d: %w", v+1, err)
			}
		}
		if _, err := tx.Exec(fmt.Sprintf(`PRAGMA user_version = %d`, v+1)); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d: %w", v+1, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migration %d: %w", v+1, err)
		}
	}
	return nil
}
