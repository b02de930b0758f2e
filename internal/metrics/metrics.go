// Package metrics holds the worker loop's Prometheus instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MessagesProcessedTotal counts work-queue messages the worker loop has
	// finished handling, labeled by outcome.
	MessagesProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vectorize_worker",
			Name:      "messages_processed_total",
			Help:      "Work queue messages processed, labeled by outcome.",
		},
		[]string{"job_name", "outcome"},
	)

	// MessagesArchivedTotal counts messages moved to the archive table,
	// labeled by the error kind that caused the archive.
	MessagesArchivedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vectorize_worker",
			Name:      "messages_archived_total",
			Help:      "Work queue messages archived, labeled by error kind.",
		},
		[]string{"job_name", "error_kind"},
	)

	// EmbeddingRequestDuration tracks provider round-trip latency.
	EmbeddingRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "vectorize_worker",
			Name:      "embedding_request_duration_seconds",
			Help:      "Provider embedding request latency.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"provider"},
	)

	// BatchSize tracks how many inputs land in each dispatched batch.
	BatchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "vectorize_worker",
			Name:      "batch_size",
			Help:      "Number of inputs per dispatched batch.",
			Buckets:   prometheus.LinearBuckets(0, 500, 10),
		},
	)
)
