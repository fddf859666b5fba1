package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	IngestedPosts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "damebooru_ingested_posts_total",
		Help: "Posts committed to the store by the ingestion sink.",
	})

	IngestBatchFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "damebooru_ingest_batch_failures_total",
		Help: "Ingestion batches discarded after a failed transaction.",
	})

	JobTerminations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "damebooru_job_terminations_total",
		Help: "Job executions reaching a terminal state, by status.",
	}, []string{"status"})

	CapturedLogRows = promauto.NewCounter(prometheus.CounterOpts{
		Name: "damebooru_captured_log_rows_total",
		Help: "Log records persisted by the capture pipeline.",
	})

	DroppedLogRows = promauto.NewCounter(prometheus.CounterOpts{
		Name: "damebooru_dropped_log_rows_total",
		Help: "Log records dropped because the capture channel was full.",
	})
)

// Handler serves the Prometheus scrape endpoint for the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
