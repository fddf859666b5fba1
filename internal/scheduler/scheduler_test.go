package scheduler

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/YelovSK/Damebooru-sub002/internal/db"
	"github.com/YelovSK/Damebooru-sub002/internal/jobs"
	"github.com/YelovSK/Damebooru-sub002/internal/models"
	"github.com/YelovSK/Damebooru-sub002/internal/outcome"
	"github.com/YelovSK/Damebooru-sub002/internal/repository"
)

type fakeStarter struct {
	mu    sync.Mutex
	keys  []string
	modes []jobs.Mode
	err   error
}

func (f *fakeStarter) Start(key string, mode jobs.Mode) (uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keys = append(f.keys, key)
	f.modes = append(f.modes, mode)
	if f.err != nil {
		return uuid.Nil, f.err
	}
	return uuid.New(), nil
}

func (f *fakeStarter) started() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.keys...)
}

func newSchedulerFixture(t *testing.T) (*Scheduler, *repository.ScheduleRepository, *fakeStarter) {
	t.Helper()
	database, err := db.Connect(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	require.NoError(t, database.Migrate())
	repo := repository.NewScheduleRepository(database.DB)
	starter := &fakeStarter{}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(repo, starter, log), repo, starter
}

// makeDue seeds a schedule, enables it, and backdates its next run so the
// next tick picks it up.
func makeDue(t *testing.T, repo *repository.ScheduleRepository, jobKey, expr string) *models.ScheduledJob {
	t.Helper()
	require.NoError(t, repo.Seed(jobKey, expr))
	scheds, err := repo.List()
	require.NoError(t, err)
	var target *models.ScheduledJob
	for _, s := range scheds {
		if s.JobKey == jobKey {
			target = s
		}
	}
	require.NotNil(t, target)
	target.IsEnabled = true
	past := time.Now().UTC().Add(-time.Minute)
	target.NextRun = &past
	require.NoError(t, repo.Update(target))
	return target
}

func TestSeedCreatesDisabledDefaults(t *testing.T) {
	defer goleak.VerifyNone(t)
	sched, repo, _ := newSchedulerFixture(t)

	require.NoError(t, sched.Seed())
	require.NoError(t, sched.Seed())

	scheds, err := repo.List()
	require.NoError(t, err)
	require.Len(t, scheds, 5)

	keys := make([]string, 0, len(scheds))
	for _, s := range scheds {
		keys = append(keys, s.JobKey)
		assert.False(t, s.IsEnabled)
		assert.Nil(t, s.NextRun)
		assert.Nil(t, s.LastRun)
	}
	assert.ElementsMatch(t, []string{
		"scan-all-libraries",
		"extract-metadata",
		"compute-similarity",
		"find-duplicates",
		"generate-thumbnails",
	}, keys)
}

func TestTickStartsDueSchedules(t *testing.T) {
	defer goleak.VerifyNone(t)
	sched, repo, starter := newSchedulerFixture(t)
	row := makeDue(t, repo, "scan-all-libraries", "*/5 * * * *")

	now := time.Now().UTC()
	sched.tick(now)

	require.Equal(t, []string{"scan-all-libraries"}, starter.started())
	require.Equal(t, []jobs.Mode{jobs.ModeMissing}, starter.modes)

	got, err := repo.GetByID(row.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LastRun)
	assert.WithinDuration(t, now, *got.LastRun, time.Second)
	require.NotNil(t, got.NextRun)
	assert.True(t, got.NextRun.After(now))

	// Already advanced past now, so the same tick instant fires nothing.
	sched.tick(now)
	assert.Len(t, starter.started(), 1)
}

func TestTickAdvancesPastConflict(t *testing.T) {
	defer goleak.VerifyNone(t)
	sched, repo, starter := newSchedulerFixture(t)
	row := makeDue(t, repo, "find-duplicates", "*/5 * * * *")
	starter.err = outcome.Conflict("job %q is already running", "find-duplicates")

	now := time.Now().UTC()
	sched.tick(now)

	assert.Len(t, starter.started(), 1)
	got, err := repo.GetByID(row.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LastRun)
	require.NotNil(t, got.NextRun)
	assert.True(t, got.NextRun.After(now))
}

func TestTickParksInvalidExpression(t *testing.T) {
	defer goleak.VerifyNone(t)
	sched, repo, starter := newSchedulerFixture(t)
	row := makeDue(t, repo, "extract-metadata", "every full moon")

	now := time.Now().UTC()
	sched.tick(now)

	assert.Len(t, starter.started(), 1)
	got, err := repo.GetByID(row.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LastRun)
	assert.Nil(t, got.NextRun)

	// A parked schedule is never due again until its expression is fixed.
	sched.tick(now.Add(time.Hour))
	assert.Len(t, starter.started(), 1)
}

func TestTickIgnoresDisabledSchedules(t *testing.T) {
	defer goleak.VerifyNone(t)
	sched, repo, starter := newSchedulerFixture(t)
	row := makeDue(t, repo, "generate-thumbnails", "*/5 * * * *")
	row.IsEnabled = false
	require.NoError(t, repo.Update(row))

	sched.tick(time.Now().UTC())
	assert.Empty(t, starter.started())
}

func TestUpdateScheduleRecomputesNextRun(t *testing.T) {
	defer goleak.VerifyNone(t)
	sched, repo, _ := newSchedulerFixture(t)
	require.NoError(t, sched.Seed())
	scheds, err := repo.List()
	require.NoError(t, err)
	row := scheds[0]

	before := time.Now().UTC()
	updated, err := sched.UpdateSchedule(row.ID, "*/10 * * * *", true)
	require.NoError(t, err)
	assert.True(t, updated.IsEnabled)
	assert.Equal(t, "*/10 * * * *", updated.CronExpression)
	require.NotNil(t, updated.NextRun)
	assert.True(t, updated.NextRun.After(before))
	assert.True(t, updated.NextRun.Before(before.Add(11*time.Minute)))

	got, err := repo.GetByID(row.ID)
	require.NoError(t, err)
	assert.True(t, got.IsEnabled)
	require.NotNil(t, got.NextRun)

	parked, err := sched.UpdateSchedule(row.ID, "gibberish", true)
	require.NoError(t, err)
	assert.Nil(t, parked.NextRun)

	_, err = sched.UpdateSchedule(99999, "*/10 * * * *", true)
	require.Error(t, err)
	assert.True(t, outcome.IsKind(err, outcome.KindNotFound))
}

func TestPreview(t *testing.T) {
	res := Preview("0 */2 * * *", 4)
	require.True(t, res.Valid)
	require.Len(t, res.Next, 4)
	for i, at := range res.Next {
		assert.Zero(t, at.Minute())
		assert.Zero(t, at.Hour()%2)
		if i > 0 {
			assert.True(t, res.Next[i-1].Before(at))
		}
	}

	bad := Preview("every full moon", 3)
	assert.False(t, bad.Valid)
	assert.NotEmpty(t, bad.Error)
	assert.Empty(t, bad.Next)
}

func TestRunStopsOnContextCancel(t *testing.T) {
	defer goleak.VerifyNone(t)
	sched, _, _ := newSchedulerFixture(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		sched.Run(ctx)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}
