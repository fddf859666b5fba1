// Package dblog captures application logs into the app_logs table. A
// capture slog.Handler enqueues converted records on a bounded channel;
// a single writer goroutine batches them into the store and a sweeper
// enforces retention. The pipeline never re-captures its own logging.
package dblog

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/YelovSK/Damebooru-sub002/internal/models"
	"github.com/YelovSK/Damebooru-sub002/internal/observability"
	"github.com/YelovSK/Damebooru-sub002/internal/repository"
)

// Rows removed per delete while the table is over the row cap.
const sweepBatchRows = 1000

type Config struct {
	MinimumLevel    slog.Level
	BatchSize       int
	FlushInterval   time.Duration
	ChannelCapacity int
	RetentionDays   int
	MaxRows         int64
}

func (c Config) withDefaults() Config {
	if c.BatchSize < 1 {
		c.BatchSize = 50
	}
	if c.FlushInterval <= 0 {
		c.FlushInterval = 2 * time.Second
	}
	if c.ChannelCapacity < 1 {
		c.ChannelCapacity = 1000
	}
	if c.RetentionDays < 1 {
		c.RetentionDays = 7
	}
	if c.MaxRows < 1 {
		c.MaxRows = 100000
	}
	return c
}

type Capture struct {
	repo *repository.LogRepository
	cfg  Config
	log  *slog.Logger

	ch        chan models.AppLogEntry
	quit      chan struct{}
	done      chan struct{}
	sweepDone chan struct{}
	closeOnce sync.Once
}

func NewCapture(repo *repository.LogRepository, cfg Config) *Capture {
	cfg = cfg.withDefaults()
	return &Capture{
		repo:      repo,
		cfg:       cfg,
		log:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		ch:        make(chan models.AppLogEntry, cfg.ChannelCapacity),
		quit:      make(chan struct{}),
		done:      make(chan struct{}),
		sweepDone: make(chan struct{}),
	}
}

// Start launches the writer and the retention sweeper. log is the full
// application logger; sweep reports carry a suppressed context so they
// reach the console without re-entering the pipeline.
func (c *Capture) Start(log *slog.Logger) {
	if log != nil {
		c.log = log
	}
	go c.writer()
	go c.sweeper()
}

// Close stops the pipeline, drains buffered records, and waits for the
// workers to exit.
func (c *Capture) Close() {
	c.closeOnce.Do(func() { close(c.quit) })
	<-c.done
	<-c.sweepDone
}

// enqueue hands a record to the writer; a full channel drops the record.
func (c *Capture) enqueue(e models.AppLogEntry) {
	select {
	case c.ch <- e:
	default:
		observability.DroppedLogRows.Inc()
	}
}

func (c *Capture) writer() {
	defer close(c.done)
	ticker := time.NewTicker(c.cfg.FlushInterval)
	defer ticker.Stop()
	batch := make([]models.AppLogEntry, 0, c.cfg.BatchSize)
	for {
		select {
		case e := <-c.ch:
			batch = append(batch, e)
			if len(batch) >= c.cfg.BatchSize {
				c.flush(&batch)
			}
		case <-ticker.C:
			c.flush(&batch)
		case <-c.quit:
			for {
				select {
				case e := <-c.ch:
					batch = append(batch, e)
					if len(batch) >= c.cfg.BatchSize {
						c.flush(&batch)
					}
				default:
					c.flush(&batch)
					return
				}
			}
		}
	}
}

// flush persists the batch. Failures go to stderr only; routing them
// through slog would loop straight back here.
func (c *Capture) flush(batch *[]models.AppLogEntry) {
	if len(*batch) == 0 {
		return
	}
	if err := c.repo.InsertBatch(*batch); err != nil {
		fmt.Fprintf(os.Stderr, "dblog: batch of %d not persisted: %v\n", len(*batch), err)
	} else {
		observability.CapturedLogRows.Add(float64(len(*batch)))
	}
	*batch = (*batch)[:0]
}

func (c *Capture) sweeper() {
	defer close(c.sweepDone)
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.sweep()
		case <-c.quit:
			return
		}
	}
}

// sweep enforces the retention window, then trims the oldest rows while
// the table is over the row cap.
func (c *Capture) sweep() {
	ctx := Suppress(context.Background())
	cutoff := time.Now().UTC().AddDate(0, 0, -c.cfg.RetentionDays)
	expired, err := c.repo.DeleteOlderThan(cutoff)
	if err != nil {
		c.log.ErrorContext(ctx, "log retention sweep failed", "component", "dblog", "err", err)
		return
	}
	var trimmed int64
	for {
		n, err := c.repo.Count()
		if err != nil {
			c.log.ErrorContext(ctx, "log retention sweep failed", "component", "dblog", "err", err)
			return
		}
		if n <= c.cfg.MaxRows {
			break
		}
		batch := min(n-c.cfg.MaxRows, sweepBatchRows)
		removed, err := c.repo.DeleteOldest(int(batch))
		if err != nil {
			c.log.ErrorContext(ctx, "log retention sweep failed", "component", "dblog", "err", err)
			return
		}
		if removed == 0 {
			break
		}
		trimmed += removed
	}
	if expired > 0 || trimmed > 0 {
		c.log.InfoContext(ctx, "log retention sweep", "component", "dblog", "expired", expired, "trimmed", trimmed)
	}
}

type suppressKey struct{}

// Suppress marks a context whose records must not enter the capture
// pipeline. Console handlers still see them.
func Suppress(ctx context.Context) context.Context {
	return context.WithValue(ctx, suppressKey{}, true)
}

func suppressed(ctx context.Context) bool {
	on, _ := ctx.Value(suppressKey{}).(bool)
	return on
}
