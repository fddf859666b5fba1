package repository

import (
	"database/sql"
	"errors"
	"time"

	"github.com/YelovSK/Damebooru-sub002/internal/models"
	"github.com/YelovSK/Damebooru-sub002/internal/outcome"
)

type ScheduleRepository struct {
	db *sql.DB
}

func NewScheduleRepository(db *sql.DB) *ScheduleRepository {
	return &ScheduleRepository{db: db}
}

const scheduleColumns = `id, job_key, cron_expression, is_enabled, last_run, next_run`

func scanSchedule(row interface{ Scan(...any) error }) (*models.ScheduledJob, error) {
	var s models.ScheduledJob
	if err := row.Scan(&s.ID, &s.JobKey, &s.CronExpression, &s.IsEnabled, &s.LastRun, &s.NextRun); err != nil {
		return nil, err
	}
	if s.LastRun != nil {
		t := s.LastRun.UTC()
		s.LastRun = &t
	}
	if s.NextRun != nil {
		t := s.NextRun.UTC()
		s.NextRun = &t
	}
	return &s, nil
}

// Seed inserts a disabled default schedule for the key unless one exists.
func (r *ScheduleRepository) Seed(jobKey, cronExpression string) error {
	_, err := r.db.Exec(
		`INSERT OR IGNORE INTO scheduled_jobs (job_key, cron_expression, is_enabled) VALUES (?, ?, 0)`,
		jobKey, cronExpression)
	return err
}

func (r *ScheduleRepository) List() ([]*models.ScheduledJob, error) {
	rows, err := r.db.Query(`SELECT ` + scheduleColumns + ` FROM scheduled_jobs ORDER BY job_key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var schedules []*models.ScheduledJob
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		schedules = append(schedules, s)
	}
	return schedules, rows.Err()
}

func (r *ScheduleRepository) GetByID(id int64) (*models.ScheduledJob, error) {
	s, err := scanSchedule(r.db.QueryRow(
		`SELECT `+scheduleColumns+` FROM scheduled_jobs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, outcome.NotFound("schedule %d not found", id)
	}
	return s, err
}

// Update stores the expression, enabled flag and recomputed next run.
func (r *ScheduleRepository) Update(s *models.ScheduledJob) error {
	res, err := r.db.Exec(
		`UPDATE scheduled_jobs SET cron_expression = ?, is_enabled = ?, next_run = ? WHERE id = ?`,
		s.CronExpression, s.IsEnabled, utcOrNil(s.NextRun), s.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return outcome.NotFound("schedule %d not found", s.ID)
	}
	return nil
}

// SetRunTimes stamps a fired schedule's last run and its next due time.
func (r *ScheduleRepository) SetRunTimes(id int64, lastRun, nextRun *time.Time) error {
	_, err := r.db.Exec(
		`UPDATE scheduled_jobs SET last_run = ?, next_run = ? WHERE id = ?`,
		utcOrNil(lastRun), utcOrNil(nextRun), id)
	return err
}

// ListDue returns enabled schedules whose next run is at or before now.
func (r *ScheduleRepository) ListDue(now time.Time) ([]*models.ScheduledJob, error) {
	rows, err := r.db.Query(
		`SELECT `+scheduleColumns+` FROM scheduled_jobs
		 WHERE is_enabled = 1 AND next_run IS NOT NULL AND next_run <= ?`,
		now.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var due []*models.ScheduledJob
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		due = append(due, s)
	}
	return due, rows.Err()
}

func utcOrNil(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
