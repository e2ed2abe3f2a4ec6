package reranker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/answerd/internal/vectorstore"
)

var tracer = otel.Tracer("answerd.reranker")

// CrossEncoderConfig holds configuration for the HTTP cross-encoder reranker.
type CrossEncoderConfig struct {
	// BaseURL of the rerank service (text-embeddings-inference compatible).
	BaseURL string `koanf:"base_url"`

	// Model name, informational only.
	Model string `koanf:"model"`

	// Timeout for rerank requests.
	Timeout time.Duration `koanf:"timeout"`
}

// ApplyDefaults sets default values for unset fields.
func (c *CrossEncoderConfig) ApplyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = "http://localhost:8081"
	}
	if c.Model == "" {
		c.Model = "BAAI/bge-reranker-base"
	}
	if c.Timeout == 0 {
		c.Timeout = 30 * time.Second
	}
}

// CrossEncoder scores query/chunk pairs with a remote cross-encoder model.
// When the remote call fails for any reason, it falls back to ascending
// distance order rather than returning an error.
type CrossEncoder struct {
	config CrossEncoderConfig
	client *http.Client
	logger *zap.Logger
}

// NewCrossEncoder creates a CrossEncoder with the given configuration.
func NewCrossEncoder(config CrossEncoderConfig, logger *zap.Logger) *CrossEncoder {
	config.ApplyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CrossEncoder{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
		logger: logger.Named("reranker"),
	}
}

type rerankRequest struct {
	Query string   `json:"query"`
	Texts []string `json:"texts"`
}

type rerankResult struct {
	Index int     `json:"index"`
	Score float32 `json:"score"`
}

// Rerank scores the candidates against the query and returns them sorted by
// descending cross-encoder score, truncated to topK.
func (r *CrossEncoder) Rerank(ctx context.Context, query string, candidates []vectorstore.Candidate, topK int) ([]vectorstore.Candidate, error) {
	ctx, span := tracer.Start(ctx, "CrossEncoder.Rerank")
	defer span.End()
	span.SetAttributes(
		attribute.Int("candidate_count", len(candidates)),
		attribute.Int("top_k", topK),
	)

	if len(candidates) == 0 {
		return []vectorstore.Candidate{}, nil
	}

	scores, err := r.score(ctx, query, candidates)
	if err != nil {
		span.RecordError(err)
		r.logger.Warn("cross-encoder unavailable, falling back to distance order",
			zap.Error(err),
		)
		return rankByDistance(candidates, topK), nil
	}

	ranked := make([]vectorstore.Candidate, len(candidates))
	copy(ranked, candidates)
	sort.SliceStable(ranked, func(i, j int) bool {
		return scores[ranked[i].ID] > scores[ranked[j].ID]
	})
	return truncate(ranked, topK), nil
}

// score calls the remote rerank endpoint and maps candidate IDs to scores.
func (r *CrossEncoder) score(ctx context.Context, query string, candidates []vectorstore.Candidate) (map[string]float32, error) {
	texts := make([]string, len(candidates))
	for i, c := range candidates {
		texts[i] = c.Text
	}

	body, err := json.Marshal(rerankRequest{Query: query, Texts: texts})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		r.config.BaseURL+"/rerank", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRerankFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: status %d: %s", ErrRerankFailed, resp.StatusCode, string(msg))
	}

	var results []rerankResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %v", ErrRerankFailed, err)
	}

	scores := make(map[string]float32, len(candidates))
	for _, res := range results {
		if res.Index < 0 || res.Index >= len(candidates) {
			return nil, fmt.Errorf("%w: result index %d out of range", ErrRerankFailed, res.Index)
		}
		scores[candidates[res.Index].ID] = res.Score
	}
	if len(scores) != len(candidates) {
		return nil, fmt.Errorf("%w: got %d scores for %d candidates",
			ErrRerankFailed, len(scores), len(candidates))
	}
	return scores, nil
}

// Close releases resources held by the HTTP client.
func (r *CrossEncoder) Close() error {
	r.client.CloseIdleConnections()
	return nil
}

var _ Reranker = (*CrossEncoder)(nil)
