// Package reranker reorders retrieved chunks by relevance to the query.
package reranker

import (
	"context"
	"errors"

	"github.com/fyrsmithlabs/answerd/internal/vectorstore"
)

var (
	// ErrInvalidConfig indicates invalid reranker configuration.
	ErrInvalidConfig = errors.New("invalid reranker configuration")

	// ErrRerankFailed indicates the reranking backend failed.
	ErrRerankFailed = errors.New("reranking failed")
)

// Reranker reorders candidates by relevance to a query.
type Reranker interface {
	// Rerank returns the candidates reordered by descending relevance,
	// truncated to topK. Implementations that depend on an external
	// scorer degrade to distance order instead of failing: retrieval
	// already produced usable candidates, so a scoring outage must not
	// lose them.
	Rerank(ctx context.Context, query string, candidates []vectorstore.Candidate, topK int) ([]vectorstore.Candidate, error)

	// Close releases any resources held by the reranker.
	Close() error
}

// rankByDistance is the degraded ordering: ascending cosine distance,
// stable so equal-distance candidates keep their retrieval order.
func rankByDistance(candidates []vectorstore.Candidate, topK int) []vectorstore.Candidate {
	out := make([]vectorstore.Candidate, len(candidates))
	copy(out, candidates)
	stableSortByDistance(out)
	return truncate(out, topK)
}

func truncate(candidates []vectorstore.Candidate, topK int) []vectorstore.Candidate {
	if topK > 0 && len(candidates) > topK {
		candidates = candidates[:topK]
	}
	return candidates
}
