package embeddings

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
)

const (
	// DefaultBatchSize bounds the number of texts submitted to the provider
	// in one request, limiting peak memory and payload size.
	DefaultBatchSize = 32

	// DefaultCacheSize is the default number of batch entries retained.
	DefaultCacheSize = 1024
)

// CacheConfig holds configuration for the caching provider.
type CacheConfig struct {
	// BatchSize is the maximum number of texts per upstream request.
	BatchSize int `koanf:"batch_size"`
	// Size is the maximum number of cached batch results (LRU-evicted).
	Size int `koanf:"size"`
}

// ApplyDefaults sets default values for unset fields.
func (c *CacheConfig) ApplyDefaults() {
	if c.BatchSize == 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.Size == 0 {
		c.Size = DefaultCacheSize
	}
}

// CachingProvider wraps a Provider with batch partitioning and an LRU cache
// keyed by the content of the full ordered input.
//
// The cache key hashes a length-prefixed encoding of each text, so batches
// like ["a","b"] and ["ab"] can never collide. Values are a pure function of
// the key, so concurrent population of the same entry is an acceptable race:
// the last write wins with an identical value.
type CachingProvider struct {
	upstream Provider
	cache    *lru.Cache[string, [][]float32]
	config   CacheConfig
	logger   *zap.Logger
}

// NewCachingProvider wraps upstream with caching and batching.
func NewCachingProvider(upstream Provider, config CacheConfig, logger *zap.Logger) (*CachingProvider, error) {
	if upstream == nil {
		return nil, fmt.Errorf("%w: upstream provider is required", ErrInvalidConfig)
	}
	config.ApplyDefaults()
	if config.BatchSize < 1 {
		return nil, fmt.Errorf("%w: batch size must be positive", ErrInvalidConfig)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	cache, err := lru.New[string, [][]float32](config.Size)
	if err != nil {
		return nil, fmt.Errorf("creating cache: %w", err)
	}

	return &CachingProvider{
		upstream: upstream,
		cache:    cache,
		config:   config,
		logger:   logger.Named("embedcache"),
	}, nil
}

// cacheKey derives a content-addressed key for an ordered batch of texts.
// Each element is prefixed with its byte length to make the framing
// unambiguous.
func cacheKey(texts []string) string {
	h := sha256.New()
	var lenBuf [8]byte
	for _, t := range texts {
		binary.BigEndian.PutUint64(lenBuf[:], uint64(len(t)))
		h.Write(lenBuf[:])
		h.Write([]byte(t))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// EmbedDocuments returns cached vectors when the exact ordered batch was seen
// before; otherwise it partitions the input into batches of at most BatchSize,
// submits them upstream in order, and caches the concatenated result.
// Provider errors are surfaced verbatim and nothing is cached for them.
func (p *CachingProvider) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: texts cannot be empty", ErrEmptyInput)
	}

	key := cacheKey(texts)
	if cached, ok := p.cache.Get(key); ok {
		p.logger.Debug("embedding cache hit", zap.Int("texts", len(texts)))
		return cached, nil
	}

	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += p.config.BatchSize {
		end := start + p.config.BatchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch, err := p.upstream.EmbedDocuments(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, batch...)
	}

	p.cache.Add(key, vectors)
	return vectors, nil
}

// EmbedQuery embeds a single query through the same cache.
func (p *CachingProvider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("%w: text cannot be empty", ErrEmptyInput)
	}
	vectors, err := p.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// Dimension returns the upstream embedding dimension.
func (p *CachingProvider) Dimension() int {
	return p.upstream.Dimension()
}

// Close closes the upstream provider.
func (p *CachingProvider) Close() error {
	return p.upstream.Close()
}

var _ Provider = (*CachingProvider)(nil)
