package jobs

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/YelovSK/Damebooru-sub002/internal/models"
	"github.com/YelovSK/Damebooru-sub002/internal/repository"
)

// Notifier publishes job events to connected clients. The WebSocket hub
// implements it; tests plug in a recorder.
type Notifier interface {
	Broadcast(event string, payload any)
}

// Reporter is a job's handle for publishing its own progress. In-memory
// state changes apply immediately; the database write and client
// broadcast behind them are throttled, with an unconditional flush when
// the job reaches a terminal state.
type Reporter struct {
	repo     *repository.JobRepository
	notifier Notifier
	limiter  *rate.Limiter
	log      *slog.Logger

	mu   sync.Mutex
	exec models.JobExecution
}

func newReporter(exec models.JobExecution, repo *repository.JobRepository, notifier Notifier, interval time.Duration, log *slog.Logger) *Reporter {
	return &Reporter{
		repo:     repo,
		notifier: notifier,
		limiter:  rate.NewLimiter(rate.Every(interval), 1),
		log:      log,
		exec:     exec,
	}
}

// SetActivity publishes what the job is looking at right now.
func (r *Reporter) SetActivity(text string) {
	r.mu.Lock()
	r.exec.ActivityText = text
	r.mu.Unlock()
	r.publishThrottled()
}

// SetProgress publishes a current/total pair.
func (r *Reporter) SetProgress(current, total int64) {
	r.mu.Lock()
	r.exec.ProgressCurrent = &current
	r.exec.ProgressTotal = &total
	r.mu.Unlock()
	r.publishThrottled()
}

// ClearProgress removes the progress pair, for phases with no meaningful
// denominator.
func (r *Reporter) ClearProgress() {
	r.mu.Lock()
	r.exec.ProgressCurrent = nil
	r.exec.ProgressTotal = nil
	r.mu.Unlock()
	r.publishThrottled()
}

// SetFinalText records the one-line summary shown for the finished job.
func (r *Reporter) SetFinalText(text string) {
	r.mu.Lock()
	r.exec.FinalText = text
	r.mu.Unlock()
	r.publishThrottled()
}

// SetResult attaches a structured result payload.
func (r *Reporter) SetResult(schemaVersion int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		r.log.Error("job result not serializable", "job", r.exec.JobKey, "error", err)
		return
	}
	s := string(data)
	r.mu.Lock()
	r.exec.ResultJSON = &s
	r.exec.ResultSchemaVersion = schemaVersion
	r.mu.Unlock()
}

// Update applies an arbitrary mutation to the execution snapshot.
func (r *Reporter) Update(fn func(e *models.JobExecution)) {
	r.mu.Lock()
	fn(&r.exec)
	r.mu.Unlock()
	r.publishThrottled()
}

// Snapshot returns a copy of the current execution state.
func (r *Reporter) Snapshot() models.JobExecution {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.exec
}

// Flush persists and broadcasts immediately, ignoring the throttle.
func (r *Reporter) Flush() {
	r.publish("job:update")
}

func (r *Reporter) publishThrottled() {
	if !r.limiter.Allow() {
		return
	}
	r.publish("job:update")
}

func (r *Reporter) publish(event string) {
	snap := r.Snapshot()
	if err := r.repo.Update(&snap); err != nil {
		r.log.Error("job state not persisted", "job", snap.JobKey, "error", err)
	}
	if r.notifier != nil {
		r.notifier.Broadcast(event, snap)
	}
}

// finalize stamps the terminal state and pushes it out unconditionally.
func (r *Reporter) finalize(status models.JobStatus, errorMessage string) {
	now := time.Now().UTC()
	r.mu.Lock()
	r.exec.Status = status
	r.exec.EndTime = &now
	if errorMessage != "" {
		r.exec.ErrorMessage = &errorMessage
	}
	r.mu.Unlock()
	r.publish("job:done")
}
