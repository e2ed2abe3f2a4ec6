// Package vectorstore owns the one-collection-per-document convention on top
// of a vector database: chunk writes, per-collection similarity search, and
// fan-out search across all collections.
package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"regexp"
)

// Sentinel errors for vector store operations.
var (
	// ErrCollectionNotFound is returned when a collection does not exist.
	ErrCollectionNotFound = errors.New("collection not found")

	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrInvalidCollectionName indicates collection name validation failure.
	ErrInvalidCollectionName = errors.New("invalid collection name")

	// ErrStorage indicates the underlying store rejected a read or write,
	// e.g. a dimension mismatch against an existing collection. It signals a
	// data-model violation and is surfaced to the caller rather than retried.
	ErrStorage = errors.New("vector store operation failed")

	// ErrConnectionFailed indicates the store backend is unreachable.
	ErrConnectionFailed = errors.New("failed to connect to vector store")
)

// collectionNamePattern validates collection names produced by sanitize:
// alphanumeric start, then alphanumerics, underscores and hyphens, 1-63 chars.
var collectionNamePattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_-]{0,62}$`)

// ValidateCollectionName validates a collection name against the naming rules
// shared by the supported backends.
func ValidateCollectionName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: collection name cannot be empty", ErrInvalidCollectionName)
	}
	if !collectionNamePattern.MatchString(name) {
		return fmt.Errorf("%w: %q must match ^[a-zA-Z0-9][a-zA-Z0-9_-]{0,62}$", ErrInvalidCollectionName, name)
	}
	return nil
}

// Store is the interface for vector storage backends.
//
// The store works with precomputed vectors: embedding happens upstream so
// identical text is never embedded twice per backend. Each ingested document
// gets its own collection, named deterministically from its filename.
//
// Implementations:
//   - ChromemStore: embedded chromem-go with on-disk persistence (default)
//   - QdrantStore: external Qdrant over gRPC
type Store interface {
	// EnsureCollection creates the collection if it does not exist.
	// Idempotent: re-ensuring an existing collection is a no-op.
	EnsureCollection(ctx context.Context, name string) error

	// Add writes chunk documents with their vectors and metadata to a
	// collection. Every document must carry an ID, text and a vector;
	// a rejected write surfaces as ErrStorage.
	Add(ctx context.Context, collection string, docs []Document) error

	// SearchCollection returns up to k candidates from one collection,
	// ordered by ascending distance (lower = more similar).
	SearchCollection(ctx context.Context, collection string, vector []float32, k int) ([]Candidate, error)

	// ListCollections returns all collection names.
	ListCollections(ctx context.Context) ([]string, error)

	// CollectionInfo returns the display name and authoritative chunk count
	// for one collection. Returns ErrCollectionNotFound if it doesn't exist.
	CollectionInfo(ctx context.Context, name string) (*CollectionInfo, error)

	// DeleteCollection deletes a collection and all its chunks. Idempotent:
	// deleting a missing collection returns (false, nil), not an error.
	DeleteCollection(ctx context.Context, name string) (bool, error)

	// Close releases backend resources.
	Close() error
}
