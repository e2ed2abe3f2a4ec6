package vectorstore

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FanOutSearchesTotal counts fan-out searches across all collections.
	FanOutSearchesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "answerd",
			Subsystem: "vectorstore",
			Name:      "fanout_searches_total",
			Help:      "Total number of fan-out searches across all collections",
		},
	)

	// CollectionsSkippedTotal counts collections skipped during fan-out
	// search because the per-collection query failed. Partial results are
	// preferred over total failure; this counter is the observability hook
	// that keeps those skips from being silent.
	CollectionsSkippedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "answerd",
			Subsystem: "vectorstore",
			Name:      "collections_skipped_total",
			Help:      "Total number of collections skipped during fan-out search due to errors",
		},
	)

	// FanOutSearchDuration tracks fan-out search latency.
	FanOutSearchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "answerd",
			Subsystem: "vectorstore",
			Name:      "fanout_search_duration_seconds",
			Help:      "Duration of fan-out searches in seconds",
			Buckets:   prometheus.DefBuckets,
		},
	)
)
