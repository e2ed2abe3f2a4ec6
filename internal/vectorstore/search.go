package vectorstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// searchTracer for OpenTelemetry instrumentation.
var searchTracer = otel.Tracer("answerd.vectorstore.search")

// SearcherConfig holds fan-out search configuration.
type SearcherConfig struct {
	// Concurrency bounds the number of collections queried in parallel.
	Concurrency int `koanf:"concurrency"`

	// CollectionTimeout bounds each per-collection query so one stalled
	// backend call cannot stall the whole fan-out.
	CollectionTimeout time.Duration `koanf:"collection_timeout"`
}

// ApplyDefaults sets default values for unset fields.
func (c *SearcherConfig) ApplyDefaults() {
	if c.Concurrency == 0 {
		c.Concurrency = 8
	}
	if c.CollectionTimeout == 0 {
		c.CollectionTimeout = 5 * time.Second
	}
}

// Searcher fans a query vector out to every collection in a Store and merges
// the per-collection results into one ranked candidate list.
type Searcher struct {
	store  Store
	config SearcherConfig
	logger *zap.Logger
}

// NewSearcher creates a Searcher over the given store.
func NewSearcher(store Store, config SearcherConfig, logger *zap.Logger) *Searcher {
	config.ApplyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Searcher{
		store:  store,
		config: config,
		logger: logger.Named("search"),
	}
}

// SearchAll queries every collection for the k nearest chunks and merges the
// results: concatenated, stable-sorted ascending by distance, truncated to k.
//
// Collections are queried concurrently but in a deterministic order (sorted
// names), and the stable sort breaks distance ties by that input order, so
// the same store state and query always produce the same candidate list.
//
// Collections whose query fails are skipped rather than failing the whole
// search; the skip count is logged and exported via CollectionsSkippedTotal.
func (s *Searcher) SearchAll(ctx context.Context, vector []float32, k int) ([]Candidate, error) {
	ctx, span := searchTracer.Start(ctx, "Searcher.SearchAll")
	defer span.End()
	span.SetAttributes(attribute.Int("k", k))

	start := time.Now()
	FanOutSearchesTotal.Inc()
	defer func() {
		FanOutSearchDuration.Observe(time.Since(start).Seconds())
	}()

	names, err := s.store.ListCollections(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if len(names) == 0 {
		return []Candidate{}, nil
	}
	sort.Strings(names)

	perCollection := make([][]Candidate, len(names))
	var skipped int64
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.config.Concurrency)
	for i, name := range names {
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(gctx, s.config.CollectionTimeout)
			defer cancel()

			candidates, err := s.store.SearchCollection(cctx, name, vector, k)
			if err != nil {
				mu.Lock()
				skipped++
				mu.Unlock()
				s.logger.Warn("skipping collection in fan-out search",
					zap.String("collection", name),
					zap.Error(err),
				)
				return nil
			}
			perCollection[i] = candidates
			return nil
		})
	}
	// Workers never return errors; Wait only propagates context cancellation.
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return nil, err
	}

	if skipped > 0 {
		CollectionsSkippedTotal.Add(float64(skipped))
		span.SetAttributes(attribute.Int64("collections_skipped", skipped))
		s.logger.Warn("fan-out search skipped collections",
			zap.Int64("skipped", skipped),
			zap.Int("total", len(names)),
		)
	}

	var merged []Candidate
	for _, candidates := range perCollection {
		merged = append(merged, candidates...)
	}
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Distance < merged[j].Distance
	})
	if len(merged) > k {
		merged = merged[:k]
	}

	span.SetAttributes(attribute.Int("results_count", len(merged)))
	if merged == nil {
		merged = []Candidate{}
	}
	return merged, nil
}
