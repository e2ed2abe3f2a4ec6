package reranker

import (
	"context"
	"sort"
	"strings"

	"github.com/fyrsmithlabs/answerd/internal/vectorstore"
)

// TermOverlap is a local lexical reranker. It combines the retrieval
// similarity with query/chunk term overlap, boosting chunks that mention the
// query's terms verbatim. Useful when no cross-encoder service is deployed.
type TermOverlap struct{}

// NewTermOverlap creates a TermOverlap reranker.
func NewTermOverlap() *TermOverlap {
	return &TermOverlap{}
}

// Rerank scores candidates as 50% retrieval similarity, 50% term overlap,
// and returns them sorted by descending combined score, truncated to topK.
func (r *TermOverlap) Rerank(ctx context.Context, query string, candidates []vectorstore.Candidate, topK int) ([]vectorstore.Candidate, error) {
	if len(candidates) == 0 {
		return []vectorstore.Candidate{}, nil
	}

	queryTokens := tokenize(query)
	if len(queryTokens) == 0 {
		return rankByDistance(candidates, topK), nil
	}

	scores := make(map[string]float32, len(candidates))
	for _, c := range candidates {
		similarity := 1 - c.Distance
		overlap := termOverlap(queryTokens, tokenize(c.Text))
		scores[c.ID] = 0.5*similarity + 0.5*overlap
	}

	ranked := make([]vectorstore.Candidate, len(candidates))
	copy(ranked, candidates)
	sort.SliceStable(ranked, func(i, j int) bool {
		return scores[ranked[i].ID] > scores[ranked[j].ID]
	})
	return truncate(ranked, topK), nil
}

// Close is a no-op; TermOverlap holds no resources.
func (r *TermOverlap) Close() error {
	return nil
}

var _ Reranker = (*TermOverlap)(nil)

func stableSortByDistance(candidates []vectorstore.Candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Distance < candidates[j].Distance
	})
}

// termOverlap returns the fraction of query tokens present in the document.
func termOverlap(queryTokens, docTokens []string) float32 {
	if len(queryTokens) == 0 {
		return 0
	}
	docSet := make(map[string]struct{}, len(docTokens))
	for _, t := range docTokens {
		docSet[t] = struct{}{}
	}
	matched := 0
	for _, t := range queryTokens {
		if _, ok := docSet[t]; ok {
			matched++
		}
	}
	return float32(matched) / float32(len(queryTokens))
}

// tokenize splits text into lowercase terms, dropping stopwords and terms
// shorter than three characters.
func tokenize(text string) []string {
	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !isAlphanumeric(r)
	})
	filtered := make([]string, 0, len(tokens))
	for _, token := range tokens {
		if len(token) > 2 && !stopwords[token] {
			filtered = append(filtered, token)
		}
	}
	return filtered
}

func isAlphanumeric(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
		(r >= '0' && r <= '9') || r == '_'
}

var stopwords = map[string]bool{
	"the": true, "and": true, "but": true, "for": true, "with": true,
	"from": true, "that": true, "this": true, "these": true, "those": true,
	"was": true, "are": true, "been": true, "being": true, "have": true,
	"has": true, "had": true, "does": true, "did": true, "will": true,
	"would": true, "can": true, "could": true, "should": true, "what": true,
	"which": true, "who": true, "how": true, "when": true, "where": true,
	"why": true, "not": true, "all": true, "each": true, "about": true,
}
