package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// QueriesTotal counts answered questions, including no-document hits.
	QueriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "answerd",
			Subsystem: "pipeline",
			Name:      "queries_total",
			Help:      "Total number of questions processed",
		},
	)

	// DocumentsIndexedTotal counts ingested documents.
	DocumentsIndexedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "answerd",
			Subsystem: "pipeline",
			Name:      "documents_indexed_total",
			Help:      "Total number of documents indexed",
		},
	)

	// ChunksIndexedTotal counts stored chunks across all documents.
	ChunksIndexedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "answerd",
			Subsystem: "pipeline",
			Name:      "chunks_indexed_total",
			Help:      "Total number of chunks written to the vector store",
		},
	)

	// CompletionRetriesTotal counts failed completion attempts.
	CompletionRetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "answerd",
			Subsystem: "pipeline",
			Name:      "completion_retries_total",
			Help:      "Total number of failed model completion attempts",
		},
	)

	// AnswerDuration tracks end-to-end answer latency.
	AnswerDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "answerd",
			Subsystem: "pipeline",
			Name:      "answer_duration_seconds",
			Help:      "Duration of answer requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
	)
)
