package repository

import (
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/YelovSK/Damebooru-sub002/internal/models"
	"github.com/YelovSK/Damebooru-sub002/internal/outcome"
)

type JobRepository struct {
	db *sql.DB
}

func NewJobRepository(db *sql.DB) *JobRepository {
	return &JobRepository{db: db}
}

const executionColumns = `id, job_key, job_name, status, start_time, end_time, error_message,
	activity_text, final_text, progress_current, progress_total, result_schema_version, result_json`

func scanExecution(row interface{ Scan(...any) error }) (*models.JobExecution, error) {
	var e models.JobExecution
	err := row.Scan(&e.ID, &e.JobKey, &e.JobName, &e.Status, &e.StartTime, &e.EndTime,
		&e.ErrorMessage, &e.ActivityText, &e.FinalText, &e.ProgressCurrent, &e.ProgressTotal,
		&e.ResultSchemaVersion, &e.ResultJSON)
	if err != nil {
		return nil, err
	}
	e.StartTime = e.StartTime.UTC()
	if e.EndTime != nil {
		t := e.EndTime.UTC()
		e.EndTime = &t
	}
	return &e, nil
}

func (r *JobRepository) Insert(e *models.JobExecution) error {
	_, err := r.db.Exec(
		`INSERT INTO job_executions (`+executionColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.JobKey, e.JobName, e.Status, e.StartTime.UTC(), e.EndTime, e.ErrorMessage,
		e.ActivityText, e.FinalText, e.ProgressCurrent, e.ProgressTotal,
		e.ResultSchemaVersion, e.ResultJSON)
	return err
}

// Update persists the execution's full mutable state; the reporter calls
// this on its throttle ticks and on terminal transitions.
func (r *JobRepository) Update(e *models.JobExecution) error {
	var endTime *time.Time
	if e.EndTime != nil {
		t := e.EndTime.UTC()
		endTime = &t
	}
	res, err := r.db.Exec(
		`UPDATE job_executions SET status = ?, end_time = ?, error_message = ?,
			activity_text = ?, final_text = ?, progress_current = ?, progress_total = ?,
			result_schema_version = ?, result_json = ?
		 WHERE id = ?`,
		e.Status, endTime, e.ErrorMessage, e.ActivityText, e.FinalText,
		e.ProgressCurrent, e.ProgressTotal, e.ResultSchemaVersion, e.ResultJSON, e.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return outcome.NotFound("job execution %s not found", e.ID)
	}
	return nil
}

func (r *JobRepository) GetByID(id uuid.UUID) (*models.JobExecution, error) {
	e, err := scanExecution(r.db.QueryRow(
		`SELECT `+executionColumns+` FROM job_executions WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, outcome.NotFound("job execution %s not found", id)
	}
	return e, err
}

// History pages executions newest first and reports the total row count.
func (r *JobRepository) History(page, pageSize int) ([]*models.JobExecution, int, error) {
	if page < 1 {
		page = 1
	}
	var total int
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM job_executions`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.db.Query(
		`SELECT `+executionColumns+` FROM job_executions
		 ORDER BY start_time DESC, id DESC LIMIT ? OFFSET ?`,
		pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var execs []*models.JobExecution
	for rows.Next() {
		e, err := scanExecution(rows)
		if err != nil {
			return nil, 0, err
		}
		execs = append(execs, e)
	}
	return execs, total, rows.Err()
}

// MarkInterrupted flips executions left running by a previous process to
// cancelled. Called once at startup, before the registry accepts work.
func (r *JobRepository) MarkInterrupted() (int64, error) {
	res, err := r.db.Exec(
		`UPDATE job_executions SET status = ?, end_time = ?, error_message = ?
		 WHERE status = ? AND end_time IS NULL`,
		models.JobStatusCancelled, time.Now().UTC(),
		"Marked as cancelled after server restart.", models.JobStatusRunning)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
