package dblog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/YelovSK/Damebooru-sub002/internal/db"
	"github.com/YelovSK/Damebooru-sub002/internal/models"
	"github.com/YelovSK/Damebooru-sub002/internal/repository"
)

func newLogRepo(t *testing.T) *repository.LogRepository {
	t.Helper()
	database, err := db.Connect(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	require.NoError(t, database.Migrate())
	return repository.NewLogRepository(database.DB)
}

func TestHandlerConvertsRecords(t *testing.T) {
	defer goleak.VerifyNone(t)
	c := NewCapture(newLogRepo(t), Config{})
	logger := slog.New(c.Handler(slog.LevelInfo))

	logger.Error("scan failed", "component", "scanner", "err", errors.New("boom"), "library", 3)

	e := <-c.ch
	assert.Equal(t, "ERROR", e.Level)
	assert.Equal(t, "scanner", e.Category)
	assert.Equal(t, "scan failed", e.Message)
	require.NotNil(t, e.Exception)
	assert.Equal(t, "boom", *e.Exception)
	require.NotNil(t, e.PropertiesJSON)
	assert.JSONEq(t, `{"library":3}`, *e.PropertiesJSON)
	assert.WithinDuration(t, time.Now().UTC(), e.Timestamp, time.Minute)
}

func TestHandlerHonorsMinimumLevel(t *testing.T) {
	defer goleak.VerifyNone(t)
	c := NewCapture(newLogRepo(t), Config{})
	logger := slog.New(c.Handler(slog.LevelInfo))

	logger.Debug("noisy")
	assert.Empty(t, c.ch)

	logger.Warn("kept")
	assert.Len(t, c.ch, 1)
}

func TestSuppressedContextNotCaptured(t *testing.T) {
	defer goleak.VerifyNone(t)
	c := NewCapture(newLogRepo(t), Config{})
	logger := slog.New(c.Handler(slog.LevelInfo))

	logger.InfoContext(Suppress(context.Background()), "pipeline internals")
	assert.Empty(t, c.ch)
}

func TestHandlerGroupsAndWith(t *testing.T) {
	defer goleak.VerifyNone(t)
	c := NewCapture(newLogRepo(t), Config{})
	logger := slog.New(c.Handler(slog.LevelInfo)).With("component", "sync").WithGroup("req")

	logger.Info("handled", "id", 7)

	e := <-c.ch
	assert.Equal(t, "sync", e.Category)
	require.NotNil(t, e.PropertiesJSON)
	assert.JSONEq(t, `{"req.id":7}`, *e.PropertiesJSON)
}

func TestWriterBatchesBySize(t *testing.T) {
	defer goleak.VerifyNone(t)
	repo := newLogRepo(t)
	c := NewCapture(repo, Config{BatchSize: 2, FlushInterval: time.Hour})
	c.Start(nil)
	logger := slog.New(c.Handler(slog.LevelInfo))

	logger.Info("one")
	logger.Info("two")
	require.Eventually(t, func() bool {
		rows, err := repo.ListRecent(10, "")
		return err == nil && len(rows) == 2
	}, 5*time.Second, 10*time.Millisecond)

	// Below the batch size; only the shutdown drain persists it.
	logger.Info("three")
	c.Close()

	rows, err := repo.ListRecent(10, "")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "three", rows[0].Message)
}

func TestWriterFlushesOnInterval(t *testing.T) {
	defer goleak.VerifyNone(t)
	repo := newLogRepo(t)
	c := NewCapture(repo, Config{BatchSize: 100, FlushInterval: 20 * time.Millisecond})
	c.Start(nil)
	defer c.Close()
	logger := slog.New(c.Handler(slog.LevelInfo))

	logger.Info("tick")
	require.Eventually(t, func() bool {
		rows, err := repo.ListRecent(10, "")
		return err == nil && len(rows) == 1
	}, 5*time.Second, 10*time.Millisecond)
}

func TestFullChannelDropsNewest(t *testing.T) {
	defer goleak.VerifyNone(t)
	c := NewCapture(newLogRepo(t), Config{ChannelCapacity: 1})
	logger := slog.New(c.Handler(slog.LevelInfo))

	logger.Info("kept")
	logger.Info("dropped")
	logger.Info("dropped too")

	require.Len(t, c.ch, 1)
	e := <-c.ch
	assert.Equal(t, "kept", e.Message)
}

func TestSweepEnforcesRetentionAndRowCap(t *testing.T) {
	defer goleak.VerifyNone(t)
	repo := newLogRepo(t)
	now := time.Now().UTC()

	stale := make([]models.AppLogEntry, 3)
	for i := range stale {
		stale[i] = models.AppLogEntry{
			Timestamp: now.AddDate(0, 0, -8),
			Level:     "INFO",
			Message:   fmt.Sprintf("stale-%d", i),
		}
	}
	require.NoError(t, repo.InsertBatch(stale))

	fresh := make([]models.AppLogEntry, 8)
	for i := range fresh {
		fresh[i] = models.AppLogEntry{
			Timestamp: now.Add(-time.Hour),
			Level:     "INFO",
			Message:   fmt.Sprintf("fresh-%d", i),
		}
	}
	require.NoError(t, repo.InsertBatch(fresh))

	c := NewCapture(repo, Config{RetentionDays: 7, MaxRows: 5})
	c.sweep()

	n, err := repo.Count()
	require.NoError(t, err)
	assert.EqualValues(t, 5, n)

	rows, err := repo.ListRecent(100, "")
	require.NoError(t, err)
	require.Len(t, rows, 5)
	assert.Equal(t, "fresh-7", rows[0].Message)
	assert.Equal(t, "fresh-3", rows[4].Message)
}

func TestTeeFansOutWithSuppression(t *testing.T) {
	defer goleak.VerifyNone(t)
	var buf bytes.Buffer
	console := slog.NewTextHandler(&buf, nil)
	c := NewCapture(newLogRepo(t), Config{})
	logger := slog.New(NewTee(console, c.Handler(slog.LevelInfo)))

	logger.Info("both sinks")
	assert.Contains(t, buf.String(), "both sinks")
	assert.Len(t, c.ch, 1)

	logger.InfoContext(Suppress(context.Background()), "console only")
	assert.Contains(t, buf.String(), "console only")
	assert.Len(t, c.ch, 1)
}
