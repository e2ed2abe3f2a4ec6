package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	chromem "github.com/philippgille/chromem-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// chromemTracer for OpenTelemetry instrumentation.
var chromemTracer = otel.Tracer("answerd.vectorstore.chromem")

// ChromemConfig holds configuration for the chromem-go embedded vector database.
type ChromemConfig struct {
	// Path is the directory for persistent storage.
	Path string `koanf:"path"`

	// Compress enables gzip compression for stored data.
	Compress bool `koanf:"compress"`

	// VectorSize is the expected embedding dimension. Must match the
	// embedder's output dimension.
	VectorSize int `koanf:"vector_size"`
}

// ApplyDefaults sets default values for unset fields.
func (c *ChromemConfig) ApplyDefaults() {
	if c.Path == "" {
		c.Path = "~/.config/answerd/vectorstore"
	}
	if c.VectorSize == 0 {
		c.VectorSize = 384
	}
}

// Validate validates the configuration.
func (c ChromemConfig) Validate() error {
	if c.VectorSize <= 0 {
		return fmt.Errorf("%w: vector size must be positive", ErrInvalidConfig)
	}
	return nil
}

// ChromemStore implements Store using chromem-go, an embeddable pure-Go
// vector database with gob-file persistence. No external service needed.
type ChromemStore struct {
	db     *chromem.DB
	config ChromemConfig
	logger *zap.Logger
}

// NewChromemStore creates a ChromemStore with the given configuration.
func NewChromemStore(config ChromemConfig, logger *zap.Logger) (*ChromemStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	path, err := expandPath(config.Path)
	if err != nil {
		return nil, fmt.Errorf("expanding path: %w", err)
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("creating directory %s: %w", path, err)
	}

	db, err := chromem.NewPersistentDB(path, config.Compress)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}

	logger.Info("chromem store initialized",
		zap.String("path", path),
		zap.Bool("compress", config.Compress),
		zap.Int("vector_size", config.VectorSize),
	)

	return &ChromemStore{
		db:     db,
		config: config,
		logger: logger.Named("chromem"),
	}, nil
}

// expandPath expands ~ to the home directory.
func expandPath(path string) (string, error) {
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, path[1:]), nil
	}
	return path, nil
}

// noEmbedFunc satisfies chromem's collection API. All vectors are
// precomputed upstream, so this must never be reached.
func noEmbedFunc(ctx context.Context, text string) ([]float32, error) {
	return nil, errors.New("store does not embed; vectors must be precomputed")
}

// EnsureCollection creates the collection if it does not exist.
func (s *ChromemStore) EnsureCollection(ctx context.Context, name string) error {
	_, span := chromemTracer.Start(ctx, "ChromemStore.EnsureCollection")
	defer span.End()
	span.SetAttributes(attribute.String("collection", name))

	if err := ValidateCollectionName(name); err != nil {
		return err
	}

	if _, err := s.db.GetOrCreateCollection(name, nil, noEmbedFunc); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("%w: ensuring collection %s: %v", ErrStorage, name, err)
	}
	span.SetStatus(codes.Ok, "success")
	return nil
}

// Add writes chunk documents with their vectors to a collection.
func (s *ChromemStore) Add(ctx context.Context, collection string, docs []Document) error {
	ctx, span := chromemTracer.Start(ctx, "ChromemStore.Add")
	defer span.End()
	span.SetAttributes(
		attribute.String("collection", collection),
		attribute.Int("document_count", len(docs)),
	)

	if err := ValidateCollectionName(collection); err != nil {
		return err
	}
	if err := validateDocuments(docs, s.config.VectorSize); err != nil {
		span.RecordError(err)
		return err
	}

	col, err := s.db.GetOrCreateCollection(collection, nil, noEmbedFunc)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("%w: getting collection %s: %v", ErrStorage, collection, err)
	}

	chromemDocs := make([]chromem.Document, len(docs))
	for i, doc := range docs {
		chromemDocs[i] = chromem.Document{
			ID:        doc.ID,
			Content:   doc.Text,
			Metadata:  doc.Metadata,
			Embedding: doc.Vector,
		}
	}

	// Concurrency of 1: embeddings are already computed.
	if err := col.AddDocuments(ctx, chromemDocs, 1); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("%w: adding documents to %s: %v", ErrStorage, collection, err)
	}

	span.SetStatus(codes.Ok, "success")
	s.logger.Debug("added documents",
		zap.String("collection", collection),
		zap.Int("count", len(docs)),
	)
	return nil
}

// validateDocuments enforces the write contract: every entry carries an ID,
// text and a vector of the configured dimension.
func validateDocuments(docs []Document, vectorSize int) error {
	if len(docs) == 0 {
		return fmt.Errorf("%w: no documents to add", ErrStorage)
	}
	for i, doc := range docs {
		if doc.ID == "" {
			return fmt.Errorf("%w: document %d has no ID", ErrStorage, i)
		}
		if doc.Text == "" {
			return fmt.Errorf("%w: document %q has no text", ErrStorage, doc.ID)
		}
		if len(doc.Vector) != vectorSize {
			return fmt.Errorf("%w: document %q vector dimension %d, expected %d",
				ErrStorage, doc.ID, len(doc.Vector), vectorSize)
		}
	}
	return nil
}

// SearchCollection returns up to k candidates ordered by ascending distance.
func (s *ChromemStore) SearchCollection(ctx context.Context, collection string, vector []float32, k int) ([]Candidate, error) {
	ctx, span := chromemTracer.Start(ctx, "ChromemStore.SearchCollection")
	defer span.End()
	span.SetAttributes(
		attribute.String("collection", collection),
		attribute.Int("k", k),
	)

	if err := ValidateCollectionName(collection); err != nil {
		return nil, err
	}
	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be positive, got %d", ErrInvalidConfig, k)
	}
	if len(vector) != s.config.VectorSize {
		return nil, fmt.Errorf("%w: query vector dimension %d, expected %d",
			ErrStorage, len(vector), s.config.VectorSize)
	}

	col := s.db.GetCollection(collection, noEmbedFunc)
	if col == nil {
		span.SetStatus(codes.Error, "collection not found")
		return nil, ErrCollectionNotFound
	}

	// chromem requires nResults <= stored document count.
	count := col.Count()
	if count == 0 {
		return []Candidate{}, nil
	}
	if k > count {
		k = count
	}

	results, err := col.QueryEmbedding(ctx, vector, k, nil, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("%w: querying collection %s: %v", ErrStorage, collection, err)
	}

	candidates := make([]Candidate, len(results))
	for i, r := range results {
		candidates[i] = resultToCandidate(r.ID, r.Content, r.Metadata, r.Similarity)
	}

	span.SetAttributes(attribute.Int("results_count", len(candidates)))
	span.SetStatus(codes.Ok, "success")
	return candidates, nil
}

// resultToCandidate converts a backend hit to a Candidate. Backends report
// cosine similarity (higher = better); candidates carry cosine distance.
func resultToCandidate(id, content string, metadata map[string]string, similarity float32) Candidate {
	c := Candidate{
		ID:       id,
		Text:     content,
		Distance: 1 - similarity,
	}
	if metadata != nil {
		c.Source = metadata[MetaSourceFile]
		if idx, err := strconv.Atoi(metadata[MetaChunkIndex]); err == nil {
			c.ChunkIndex = idx
		}
	}
	return c
}

// ListCollections returns all collection names.
func (s *ChromemStore) ListCollections(ctx context.Context) ([]string, error) {
	_, span := chromemTracer.Start(ctx, "ChromemStore.ListCollections")
	defer span.End()

	collections := s.db.ListCollections()
	names := make([]string, 0, len(collections))
	for name := range collections {
		names = append(names, name)
	}

	span.SetAttributes(attribute.Int("collection_count", len(names)))
	span.SetStatus(codes.Ok, "success")
	return names, nil
}

// CollectionInfo returns display name and chunk count for one collection.
// The display name comes from the first stored chunk's metadata; if that
// lookup fails the collection name is used.
func (s *ChromemStore) CollectionInfo(ctx context.Context, name string) (*CollectionInfo, error) {
	ctx, span := chromemTracer.Start(ctx, "ChromemStore.CollectionInfo")
	defer span.End()
	span.SetAttributes(attribute.String("collection", name))

	if err := ValidateCollectionName(name); err != nil {
		return nil, err
	}

	col := s.db.GetCollection(name, noEmbedFunc)
	if col == nil {
		span.SetStatus(codes.Error, "collection not found")
		return nil, ErrCollectionNotFound
	}

	info := &CollectionInfo{
		Name:        name,
		DisplayName: name,
		ChunkCount:  col.Count(),
	}
	if doc, err := col.GetByID(ctx, name+"_chunk_0"); err == nil {
		if source := doc.Metadata[MetaSourceFile]; source != "" {
			info.DisplayName = source
		}
	}

	span.SetStatus(codes.Ok, "success")
	return info, nil
}

// DeleteCollection deletes a collection. Returns false when it did not exist.
func (s *ChromemStore) DeleteCollection(ctx context.Context, name string) (bool, error) {
	_, span := chromemTracer.Start(ctx, "ChromemStore.DeleteCollection")
	defer span.End()
	span.SetAttributes(attribute.String("collection", name))

	if err := ValidateCollectionName(name); err != nil {
		return false, err
	}

	if col := s.db.GetCollection(name, noEmbedFunc); col == nil {
		span.SetStatus(codes.Ok, "not found")
		return false, nil
	}

	if err := s.db.DeleteCollection(name); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return false, fmt.Errorf("%w: deleting collection %s: %v", ErrStorage, name, err)
	}

	span.SetStatus(codes.Ok, "success")
	s.logger.Info("deleted collection", zap.String("collection", name))
	return true, nil
}

// Close releases resources. chromem persists writes eagerly, so this is a no-op.
func (s *ChromemStore) Close() error {
	return nil
}

var _ Store = (*ChromemStore)(nil)
