// Package pipeline orchestrates the RAG flow: document ingestion into
// per-document collections, and question answering over all of them.
package pipeline

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/answerd/internal/assembler"
	"github.com/fyrsmithlabs/answerd/internal/chunker"
	"github.com/fyrsmithlabs/answerd/internal/embeddings"
	"github.com/fyrsmithlabs/answerd/internal/extract"
	"github.com/fyrsmithlabs/answerd/internal/llm"
	"github.com/fyrsmithlabs/answerd/internal/reranker"
	"github.com/fyrsmithlabs/answerd/internal/sanitize"
	"github.com/fyrsmithlabs/answerd/internal/vectorstore"
)

var tracer = otel.Tracer("answerd.pipeline")

// NoDocumentsMessage is returned when the store holds no matching chunks.
// The model is never called in that case.
const NoDocumentsMessage = "No relevant documents found in the database. " +
	"Please ask an administrator to upload and index documents first."

// Config holds pipeline behavior configuration.
type Config struct {
	// Chunker controls how extracted text is split.
	Chunker chunker.Config `koanf:"chunker"`

	// TopK is the default number of chunks retrieved per question.
	TopK int `koanf:"top_k"`

	// RerankEnabled runs the reranker over retrieved chunks before
	// assembling the context. Off by default; retrieval order is already
	// usable and reranking adds a model round trip.
	RerankEnabled bool `koanf:"rerank_enabled"`

	// RerankTopK is how many chunks survive reranking.
	RerankTopK int `koanf:"rerank_top_k"`

	// MaxTokens caps the model's answer length.
	MaxTokens int `koanf:"max_tokens"`

	// MaxAttempts bounds completion retries.
	MaxAttempts int `koanf:"max_attempts"`

	// RetryInterval is the first backoff delay; it doubles per attempt.
	RetryInterval time.Duration `koanf:"retry_interval"`

	// HistoryWindow is how many trailing chat messages feed the prompt.
	HistoryWindow int `koanf:"history_window"`

	// HistoryCharLimit truncates each history message.
	HistoryCharLimit int `koanf:"history_char_limit"`

	// VerifyCitations checks the answer's [src:i] tags against the
	// retrieved chunks and reports suspect ones.
	VerifyCitations bool `koanf:"verify_citations"`
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	c.Chunker.ApplyDefaults()
	if c.TopK == 0 {
		c.TopK = 5
	}
	if c.RerankTopK == 0 {
		c.RerankTopK = 3
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = 1024
	}
	if c.MaxAttempts == 0 {
		c.MaxAttempts = 3
	}
	if c.RetryInterval == 0 {
		c.RetryInterval = time.Second
	}
	if c.HistoryWindow == 0 {
		c.HistoryWindow = 6
	}
	if c.HistoryCharLimit == 0 {
		c.HistoryCharLimit = 200
	}
}

// ChatTurn is one message of the conversation, including the current
// question as the final turn.
type ChatTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// IndexResult reports what an ingestion produced.
type IndexResult struct {
	Collection string `json:"collection"`
	ChunkCount int    `json:"chunk_count"`
}

// AnswerResult is an answer plus retrieval diagnostics.
type AnswerResult struct {
	Answer string `json:"answer"`

	// Candidates is how many chunks backed the answer.
	Candidates int `json:"candidates"`

	// SuspectCitations lists [src:i] indices the answer cites without
	// quoting. Empty unless citation verification is enabled.
	SuspectCitations []int `json:"suspect_citations,omitempty"`
}

// DocumentInfo describes one indexed document.
type DocumentInfo struct {
	Collection  string `json:"collection"`
	DisplayName string `json:"display_name"`
	ChunkCount  int    `json:"chunk_count"`
}

// Service wires the RAG components together. All dependencies are injected;
// the reranker may be nil when reranking is disabled.
type Service struct {
	config    Config
	extractor extract.Extractor
	embedder  embeddings.Provider
	store     vectorstore.Store
	searcher  *vectorstore.Searcher
	reranker  reranker.Reranker
	chat      llm.ChatClient
	logger    *zap.Logger
}

// NewService creates a Service from its dependencies.
func NewService(
	config Config,
	extractor extract.Extractor,
	embedder embeddings.Provider,
	store vectorstore.Store,
	searcher *vectorstore.Searcher,
	rr reranker.Reranker,
	chat llm.ChatClient,
	logger *zap.Logger,
) (*Service, error) {
	config.ApplyDefaults()
	if err := config.Chunker.Validate(); err != nil {
		return nil, fmt.Errorf("validating chunker config: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		config:    config,
		extractor: extractor,
		embedder:  embedder,
		store:     store,
		searcher:  searcher,
		reranker:  rr,
		chat:      chat,
		logger:    logger.Named("pipeline"),
	}, nil
}

// Index ingests a PDF: extract pages, chunk, embed, and write the chunks to
// the document's own collection. Indexing the same filename again writes
// into the same collection.
func (s *Service) Index(ctx context.Context, data []byte, filename string) (*IndexResult, error) {
	ctx, span := tracer.Start(ctx, "Service.Index")
	defer span.End()
	span.SetAttributes(attribute.String("filename", filename))

	start := time.Now()

	pages, err := s.extractor.Extract(ctx, data)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("extracting %s: %w", filename, err)
	}

	text := extract.JoinPages(pages)
	chunks, err := chunker.Split(text, s.config.Chunker)
	if err != nil {
		return nil, fmt.Errorf("chunking %s: %w", filename, err)
	}

	collection := sanitize.CollectionName(filename)
	if err := s.store.EnsureCollection(ctx, collection); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("ensuring collection for %s: %w", filename, err)
	}

	if len(chunks) == 0 {
		s.logger.Warn("document produced no chunks",
			zap.String("filename", filename),
			zap.String("collection", collection),
		)
		return &IndexResult{Collection: collection, ChunkCount: 0}, nil
	}

	vectors, err := s.embedder.EmbedDocuments(ctx, chunks)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("embedding %s: %w", filename, err)
	}

	docs := make([]vectorstore.Document, len(chunks))
	for i, chunk := range chunks {
		docs[i] = vectorstore.Document{
			ID:     fmt.Sprintf("%s_chunk_%d", collection, i),
			Text:   chunk,
			Vector: vectors[i],
			Metadata: map[string]string{
				vectorstore.MetaSourceFile: filename,
				vectorstore.MetaChunkIndex: fmt.Sprintf("%d", i),
			},
		}
	}
	if err := s.store.Add(ctx, collection, docs); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("storing chunks for %s: %w", filename, err)
	}

	DocumentsIndexedTotal.Inc()
	ChunksIndexedTotal.Add(float64(len(chunks)))
	span.SetAttributes(attribute.Int("chunk_count", len(chunks)))
	s.logger.Info("indexed document",
		zap.String("filename", filename),
		zap.String("collection", collection),
		zap.Int("chunks", len(chunks)),
		zap.Duration("duration", time.Since(start)),
	)
	return &IndexResult{Collection: collection, ChunkCount: len(chunks)}, nil
}

// Answer runs the full question flow and returns just the answer text.
func (s *Service) Answer(ctx context.Context, query string, history []ChatTurn, topK int) (string, error) {
	result, err := s.AnswerDetailed(ctx, query, history, topK)
	if err != nil {
		return "", err
	}
	return result.Answer, nil
}

// AnswerDetailed answers a question over all indexed documents.
//
// Retrieval and embedding failures are returned as errors. Model failures
// are not: after the configured attempts the answer text itself carries a
// diagnostic, since at that point the retrieval work already succeeded.
func (s *Service) AnswerDetailed(ctx context.Context, query string, history []ChatTurn, topK int) (*AnswerResult, error) {
	ctx, span := tracer.Start(ctx, "Service.AnswerDetailed")
	defer span.End()

	start := time.Now()
	QueriesTotal.Inc()
	defer func() {
		AnswerDuration.Observe(time.Since(start).Seconds())
	}()

	if topK <= 0 {
		topK = s.config.TopK
	}
	span.SetAttributes(attribute.Int("top_k", topK))

	vector, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	candidates, err := s.searcher.SearchAll(ctx, vector, topK)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("searching collections: %w", err)
	}
	if len(candidates) == 0 {
		span.SetAttributes(attribute.Bool("no_documents", true))
		return &AnswerResult{Answer: NoDocumentsMessage}, nil
	}

	if s.config.RerankEnabled && s.reranker != nil {
		reranked, err := s.reranker.Rerank(ctx, query, candidates, s.config.RerankTopK)
		if err != nil {
			// Keep the retrieval order; reranking is an optimization.
			s.logger.Warn("reranking failed, keeping retrieval order", zap.Error(err))
		} else {
			candidates = reranked
		}
	}

	contextBlock := assembler.BuildContext(candidates)
	prompt := buildPrompt(query, contextBlock, history, s.config)

	answer, err := s.complete(ctx, prompt)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		span.RecordError(err)
		s.logger.Error("completion failed after retries",
			zap.Int("attempts", s.config.MaxAttempts),
			zap.Error(err),
		)
		answer = fmt.Sprintf("Error calling Groq API after %d attempts: %v. "+
			"Please check: 1) Internet connection, 2) API key validity at https://console.groq.com",
			s.config.MaxAttempts, err)
		return &AnswerResult{Answer: answer, Candidates: len(candidates)}, nil
	}

	result := &AnswerResult{Answer: answer, Candidates: len(candidates)}
	if s.config.VerifyCitations {
		result.SuspectCitations = assembler.VerifyCitations(answer, candidates)
		if len(result.SuspectCitations) > 0 {
			s.logger.Warn("answer cites sources without quoting them",
				zap.Ints("indices", result.SuspectCitations),
			)
		}
	}
	return result, nil
}

// complete calls the model with exponential backoff between attempts.
// Context cancellation aborts the remaining attempts.
func (s *Service) complete(ctx context.Context, prompt string) (string, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = s.config.RetryInterval
	bo.Multiplier = 2
	bo.RandomizationFactor = 0

	attempt := 0
	return backoff.Retry(ctx, func() (string, error) {
		attempt++
		answer, err := s.chat.Complete(ctx, prompt, s.config.MaxTokens)
		if err != nil {
			CompletionRetriesTotal.Inc()
			s.logger.Warn("completion attempt failed",
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			return "", err
		}
		return answer, nil
	}, backoff.WithBackOff(bo), backoff.WithMaxTries(uint(s.config.MaxAttempts)))
}

// ListDocuments returns every indexed document, sorted by collection name.
func (s *Service) ListDocuments(ctx context.Context) ([]DocumentInfo, error) {
	ctx, span := tracer.Start(ctx, "Service.ListDocuments")
	defer span.End()

	names, err := s.store.ListCollections(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("listing collections: %w", err)
	}
	sort.Strings(names)

	docs := make([]DocumentInfo, 0, len(names))
	for _, name := range names {
		info, err := s.store.CollectionInfo(ctx, name)
		if err != nil {
			s.logger.Warn("skipping unreadable collection",
				zap.String("collection", name),
				zap.Error(err),
			)
			continue
		}
		docs = append(docs, DocumentInfo{
			Collection:  info.Name,
			DisplayName: info.DisplayName,
			ChunkCount:  info.ChunkCount,
		})
	}
	return docs, nil
}

// Delete removes a document's collection. Accepts either the collection name
// or the original filename. Returns false when nothing existed to delete.
func (s *Service) Delete(ctx context.Context, name string) (bool, error) {
	ctx, span := tracer.Start(ctx, "Service.Delete")
	defer span.End()

	collection := sanitize.CollectionName(name)
	deleted, err := s.store.DeleteCollection(ctx, collection)
	if err != nil {
		span.RecordError(err)
		return false, fmt.Errorf("deleting %s: %w", collection, err)
	}
	if deleted {
		s.logger.Info("deleted document", zap.String("collection", collection))
	}
	return deleted, nil
}
