// Package scheduler fires registered jobs from cron schedules stored in
// the scheduled_jobs table.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/YelovSK/Damebooru-sub002/internal/jobs"
	"github.com/YelovSK/Damebooru-sub002/internal/models"
	"github.com/YelovSK/Damebooru-sub002/internal/outcome"
	"github.com/YelovSK/Damebooru-sub002/internal/repository"
)

const tickInterval = 30 * time.Second

// seedDefaults are the stock schedules. They are created disabled;
// operators enable the ones they want.
var seedDefaults = []struct {
	jobKey string
	expr   string
}{
	{"scan-all-libraries", "0 3 * * *"},
	{"extract-metadata", "30 3 * * *"},
	{"compute-similarity", "0 4 * * *"},
	{"find-duplicates", "30 4 * * *"},
	{"generate-thumbnails", "0 5 * * *"},
}

// Starter launches a job by key; the job registry implements it.
type Starter interface {
	Start(key string, mode jobs.Mode) (uuid.UUID, error)
}

type Scheduler struct {
	schedules *repository.ScheduleRepository
	registry  Starter
	log       *slog.Logger
}

func New(schedules *repository.ScheduleRepository, registry Starter, log *slog.Logger) *Scheduler {
	return &Scheduler{schedules: schedules, registry: registry, log: log}
}

// Seed ensures the stock schedules exist. Existing rows are left alone.
func (s *Scheduler) Seed() error {
	for _, d := range seedDefaults {
		if err := s.schedules.Seed(d.jobKey, d.expr); err != nil {
			return err
		}
	}
	return nil
}

// Run ticks until ctx is done. Meant for its own goroutine; deployments
// that disable background processing never call it.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()
	s.log.Info("scheduler started", "tick", tickInterval)
	for {
		select {
		case <-ctx.Done():
			s.log.Info("scheduler stopped")
			return
		case now := <-ticker.C:
			s.tick(now.UTC())
		}
	}
}

func (s *Scheduler) tick(now time.Time) {
	due, err := s.schedules.ListDue(now)
	if err != nil {
		s.log.Error("due schedules not listed", "error", err)
		return
	}
	for _, sched := range due {
		s.fire(sched, now)
	}
}

// fire starts the schedule's job and advances its run times. A job that
// is already running is skipped; the schedule still advances so it does
// not retrigger every tick.
func (s *Scheduler) fire(sched *models.ScheduledJob, now time.Time) {
	if _, err := s.registry.Start(sched.JobKey, jobs.ModeMissing); err != nil {
		if outcome.IsKind(err, outcome.KindConflict) {
			s.log.Info("scheduled job already running", "job", sched.JobKey)
		} else {
			s.log.Error("scheduled job not started", "job", sched.JobKey, "error", err)
		}
	} else {
		s.log.Info("scheduled job started", "job", sched.JobKey)
	}
	next := s.nextRun(sched.JobKey, sched.CronExpression, now)
	if err := s.schedules.SetRunTimes(sched.ID, &now, next); err != nil {
		s.log.Error("schedule run times not stored", "job", sched.JobKey, "error", err)
	}
}

// nextRun computes the next fire time after now. An invalid expression
// logs a warning and returns nil, parking the schedule until the
// expression is fixed.
func (s *Scheduler) nextRun(jobKey, expr string, now time.Time) *time.Time {
	sched, err := cron.ParseStandard(expr)
	if err != nil {
		s.log.Warn("invalid cron expression", "job", jobKey, "expression", expr, "error", err)
		return nil
	}
	next := sched.Next(now).UTC()
	return &next
}

// UpdateSchedule stores a new expression and enabled flag and recomputes
// the next run immediately.
func (s *Scheduler) UpdateSchedule(id int64, expr string, enabled bool) (*models.ScheduledJob, error) {
	sched, err := s.schedules.GetByID(id)
	if err != nil {
		return nil, err
	}
	sched.CronExpression = expr
	sched.IsEnabled = enabled
	sched.NextRun = s.nextRun(sched.JobKey, expr, time.Now().UTC())
	if err := s.schedules.Update(sched); err != nil {
		return nil, err
	}
	return sched, nil
}

// PreviewResult is the schedule editor's validation payload.
type PreviewResult struct {
	Valid bool        `json:"valid"`
	Error string      `json:"error,omitempty"`
	Next  []time.Time `json:"next,omitempty"`
}

// Preview reports whether an expression parses and its next n fire times.
func Preview(expr string, n int) PreviewResult {
	sched, err := cron.ParseStandard(expr)
	if err != nil {
		return PreviewResult{Valid: false, Error: err.Error()}
	}
	times := make([]time.Time, 0, n)
	t := time.Now().UTC()
	for i := 0; i < n; i++ {
		t = sched.Next(t).UTC()
		times = append(times, t)
	}
	return PreviewResult{Valid: true, Next: times}
}
