package ingest

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/YelovSK/Damebooru-sub002/internal/models"
	"github.com/YelovSK/Damebooru-sub002/internal/observability"
	"github.com/YelovSK/Damebooru-sub002/internal/repository"
)

const flushInterval = 200 * time.Millisecond

// Sink decouples scan enumeration from database writes. Producers
// enqueue posts into a bounded channel; a single consumer goroutine
// commits them in batches, one transaction per batch. A failed batch is
// logged and discarded so one bad row never wedges a scan.
type Sink struct {
	posts     *repository.PostRepository
	log       *slog.Logger
	batchSize int

	ch     chan *models.Post
	flushC chan chan struct{}
	done   chan struct{}

	closeOnce sync.Once
}

// NewSink starts the consumer goroutine. Callers must Close the sink
// when done with it; Enqueue must not be called after Close.
func NewSink(posts *repository.PostRepository, log *slog.Logger, batchSize, channelCapacity int) *Sink {
	s := &Sink{
		posts:     posts,
		log:       log,
		batchSize: batchSize,
		ch:        make(chan *models.Post, channelCapacity),
		flushC:    make(chan chan struct{}),
		done:      make(chan struct{}),
	}
	go s.run()
	return s
}

// Enqueue hands a post to the consumer. Blocks while the channel is
// full; the scan slows down to the database's pace instead of growing
// an unbounded queue.
func (s *Sink) Enqueue(ctx context.Context, p *models.Post) error {
	select {
	case s.ch <- p:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Flush commits everything enqueued before the call and returns once it
// has been committed or discarded.
func (s *Sink) Flush(ctx context.Context) error {
	reply := make(chan struct{})
	select {
	case s.flushC <- reply:
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-reply:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close drains outstanding posts and stops the consumer. Safe to call
// more than once.
func (s *Sink) Close() {
	s.closeOnce.Do(func() { close(s.ch) })
	<-s.done
}

func (s *Sink) run() {
	defer close(s.done)

	batch := make([]*models.Post, 0, s.batchSize)
	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	for {
		select {
		case p, ok := <-s.ch:
			if !ok {
				s.commit(&batch)
				return
			}
			batch = append(batch, p)
			if len(batch) >= s.batchSize {
				s.commit(&batch)
			}
		case <-ticker.C:
			s.commit(&batch)
		case reply := <-s.flushC:
			s.drain(&batch)
			s.commit(&batch)
			close(reply)
		}
	}
}

// drain empties the channel without blocking, committing full batches
// as they accumulate.
func (s *Sink) drain(batch *[]*models.Post) {
	for {
		select {
		case p, ok := <-s.ch:
			if !ok {
				return
			}
			*batch = append(*batch, p)
			if len(*batch) >= s.batchSize {
				s.commit(batch)
			}
		default:
			return
		}
	}
}

func (s *Sink) commit(batch *[]*models.Post) {
	if len(*batch) == 0 {
		return
	}
	if err := s.posts.CreateBatch(*batch); err != nil {
		s.log.Error("discarding failed ingest batch", "posts", len(*batch), "error", err)
		observability.IngestBatchFailures.Inc()
	} else {
		observability.IngestedPosts.Add(float64(len(*batch)))
	}
	*batch = (*batch)[:0]
}
