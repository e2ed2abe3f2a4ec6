package vectorstore

// Metadata keys stored with every chunk.
const (
	MetaSourceFile = "source_file"
	MetaChunkIndex = "chunk_index"
)

// Document is a chunk to be stored: text plus its precomputed embedding.
type Document struct {
	// ID is the stable chunk identifier, "{collection}_chunk_{index}".
	ID string

	// Text is the chunk content.
	Text string

	// Vector is the precomputed embedding for Text.
	Vector []float32

	// Metadata carries the source filename and chunk index.
	Metadata map[string]string
}

// Candidate is a chunk retrieved for a query. It exists only for the
// lifetime of one query's processing.
type Candidate struct {
	// ID is the chunk identifier.
	ID string

	// Text is the chunk content.
	Text string

	// Source is the original filename the chunk came from.
	Source string

	// ChunkIndex is the chunk's position within its source document.
	ChunkIndex int

	// Distance is the similarity distance; lower means more similar.
	Distance float32
}

// CollectionInfo describes one indexed document collection.
type CollectionInfo struct {
	// Name is the sanitized collection name.
	Name string `json:"name"`

	// DisplayName is the original filename, read from the first stored
	// chunk's metadata; falls back to Name when unavailable.
	DisplayName string `json:"display_name"`

	// ChunkCount is the authoritative number of stored chunks.
	ChunkCount int `json:"chunk_count"`
}
