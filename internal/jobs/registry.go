package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/YelovSK/Damebooru-sub002/internal/models"
	"github.com/YelovSK/Damebooru-sub002/internal/observability"
	"github.com/YelovSK/Damebooru-sub002/internal/outcome"
	"github.com/YelovSK/Damebooru-sub002/internal/repository"
)

// Mode selects how much work an enrichment job takes on.
type Mode string

const (
	ModeMissing Mode = "missing" // only posts lacking the data
	ModeAll     Mode = "all"     // recompute everything
)

// Definition is one registered job.
type Definition struct {
	Key             string
	Name            string
	Description     string
	DisplayOrder    int
	SupportsAllMode bool
	Run             func(ctx context.Context, rep *Reporter, mode Mode) error
}

// Registry runs jobs on goroutines and tracks the active set. One
// execution per key at a time; everything else is a Conflict. State
// lives in the job_executions table, so restarts only need the startup
// reconciliation pass.
type Registry struct {
	repo     *repository.JobRepository
	notifier Notifier
	interval time.Duration
	log      *slog.Logger

	mu     sync.Mutex
	defs   map[string]*Definition
	active map[uuid.UUID]*running
	byKey  map[string]uuid.UUID
}

type running struct {
	reporter *Reporter
	cancel   context.CancelFunc
}

func NewRegistry(repo *repository.JobRepository, notifier Notifier, progressInterval time.Duration, log *slog.Logger) *Registry {
	return &Registry{
		repo:     repo,
		notifier: notifier,
		interval: progressInterval,
		log:      log,
		defs:     make(map[string]*Definition),
		active:   make(map[uuid.UUID]*running),
		byKey:    make(map[string]uuid.UUID),
	}
}

var validKey = regexp.MustCompile(`^[a-z0-9-]+$`)

// Register adds a definition. Keys are lowercase slugs and must be
// unique.
func (r *Registry) Register(def *Definition) error {
	if !validKey.MatchString(def.Key) {
		return outcome.InvalidInput("invalid job key %q", def.Key)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.defs[def.Key]; ok {
		return outcome.Conflict("job %q is already registered", def.Key)
	}
	r.defs[def.Key] = def
	return nil
}

// Definitions lists registered jobs in display order.
func (r *Registry) Definitions() []*Definition {
	r.mu.Lock()
	defer r.mu.Unlock()
	defs := make([]*Definition, 0, len(r.defs))
	for _, d := range r.defs {
		defs = append(defs, d)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].DisplayOrder < defs[j].DisplayOrder })
	return defs
}

// Start launches a registered job. A second start of the same key while
// one execution is running is a Conflict.
func (r *Registry) Start(key string, mode Mode) (uuid.UUID, error) {
	switch mode {
	case "", ModeMissing:
		mode = ModeMissing
	case ModeAll:
	default:
		return uuid.Nil, outcome.InvalidInput("unknown job mode %q", mode)
	}

	r.mu.Lock()
	def, ok := r.defs[key]
	if !ok {
		r.mu.Unlock()
		return uuid.Nil, outcome.NotFound("no job registered for key %q", key)
	}
	if mode == ModeAll && !def.SupportsAllMode {
		r.mu.Unlock()
		return uuid.Nil, outcome.InvalidInput("job %q does not support mode %q", key, mode)
	}
	id, err := r.launchLocked(key, def.Name, func(ctx context.Context, rep *Reporter) error {
		return def.Run(ctx, rep, mode)
	})
	r.mu.Unlock()
	return id, err
}

// StartAdHoc runs unregistered work under the same conflict rules, with
// a key derived from the name.
func (r *Registry) StartAdHoc(name string, fn func(ctx context.Context, rep *Reporter) error) (uuid.UUID, error) {
	key := deriveKey(name)
	if key == "" {
		return uuid.Nil, outcome.InvalidInput("job name %q yields an empty key", name)
	}
	r.mu.Lock()
	id, err := r.launchLocked(key, name, fn)
	r.mu.Unlock()
	return id, err
}

// launchLocked inserts the Running row and spawns the goroutine. The
// caller holds r.mu.
func (r *Registry) launchLocked(key, name string, fn func(ctx context.Context, rep *Reporter) error) (uuid.UUID, error) {
	if _, ok := r.byKey[key]; ok {
		return uuid.Nil, outcome.Conflict("job %q is already running", key)
	}

	exec := models.JobExecution{
		ID:        uuid.New(),
		JobKey:    key,
		JobName:   name,
		Status:    models.JobStatusRunning,
		StartTime: time.Now().UTC(),
	}
	if err := r.repo.Insert(&exec); err != nil {
		return uuid.Nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	rep := newReporter(exec, r.repo, r.notifier, r.interval, r.log)
	r.active[exec.ID] = &running{reporter: rep, cancel: cancel}
	r.byKey[key] = exec.ID

	go r.run(ctx, cancel, exec.ID, key, rep, fn)

	if r.notifier != nil {
		r.notifier.Broadcast("job:update", exec)
	}
	return exec.ID, nil
}

func (r *Registry) run(ctx context.Context, cancel context.CancelFunc, id uuid.UUID, key string, rep *Reporter, fn func(ctx context.Context, rep *Reporter) error) {
	defer cancel()

	err := r.runGuarded(ctx, rep, fn)

	status := models.JobStatusCompleted
	message := ""
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled):
		status = models.JobStatusCancelled
	default:
		status = models.JobStatusFailed
		message = err.Error()
		r.log.Error("job failed", "job", key, "error", err)
	}

	r.mu.Lock()
	delete(r.active, id)
	delete(r.byKey, key)
	r.mu.Unlock()

	rep.finalize(status, message)
	observability.JobTerminations.WithLabelValues(string(status)).Inc()
	r.log.Info("job finished", "job", key, "status", status)
}

// runGuarded turns a panicking job into a failed one instead of taking
// the process down.
func (r *Registry) runGuarded(ctx context.Context, rep *Reporter, fn func(ctx context.Context, rep *Reporter) error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("job panicked: %v", rec)
		}
	}()
	return fn(ctx, rep)
}

// Cancel requests cancellation of an active execution.
func (r *Registry) Cancel(id uuid.UUID) error {
	r.mu.Lock()
	run, ok := r.active[id]
	r.mu.Unlock()
	if !ok {
		return outcome.NotFound("no active execution %s", id)
	}
	run.cancel()
	return nil
}

// Active returns snapshots of all running executions, oldest first.
func (r *Registry) Active() []models.JobExecution {
	r.mu.Lock()
	runs := make([]*running, 0, len(r.active))
	for _, run := range r.active {
		runs = append(runs, run)
	}
	r.mu.Unlock()

	snaps := make([]models.JobExecution, 0, len(runs))
	for _, run := range runs {
		snaps = append(snaps, run.reporter.Snapshot())
	}
	sort.Slice(snaps, func(i, j int) bool { return snaps[i].StartTime.Before(snaps[j].StartTime) })
	return snaps
}

// History pages persisted executions, newest first.
func (r *Registry) History(page, pageSize int) ([]*models.JobExecution, int, error) {
	return r.repo.History(page, pageSize)
}

// ReconcileStartup flips executions left Running by a previous process
// to Cancelled.
func (r *Registry) ReconcileStartup() error {
	n, err := r.repo.MarkInterrupted()
	if err != nil {
		return err
	}
	if n > 0 {
		r.log.Info("reconciled interrupted jobs", "count", n)
	}
	return nil
}

var keyJunk = regexp.MustCompile(`[^a-z0-9]+`)

// deriveKey turns a display name into a job key: lowercase, runs of
// anything else collapse to '-'.
func deriveKey(name string) string {
	key := keyJunk.ReplaceAllString(strings.ToLower(name), "-")
	return strings.Trim(key, "-")
}
