// Package chunker splits extracted document text into overlapping windows.
package chunker

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidConfig indicates chunk size / overlap parameters that cannot
// produce a terminating window sequence.
var ErrInvalidConfig = errors.New("invalid chunker configuration")

const (
	// DefaultChunkSize is the default window width in runes.
	DefaultChunkSize = 1000

	// DefaultOverlap is the default number of runes shared between
	// consecutive chunks of the same document.
	DefaultOverlap = 200
)

// Config holds chunking parameters.
type Config struct {
	// ChunkSize is the window width in runes.
	ChunkSize int `koanf:"chunk_size"`
	// Overlap is the number of runes shared between consecutive chunks.
	// Must be strictly less than ChunkSize.
	Overlap int `koanf:"overlap"`
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.ChunkSize == 0 {
		c.ChunkSize = DefaultChunkSize
	}
	if c.Overlap == 0 {
		c.Overlap = DefaultOverlap
	}
}

// Validate validates the configuration. An overlap >= chunk size would make
// the window advance non-positive and the split loop endless, so it is
// rejected up front.
func (c Config) Validate() error {
	if c.ChunkSize <= 0 {
		return fmt.Errorf("%w: chunk size must be positive, got %d", ErrInvalidConfig, c.ChunkSize)
	}
	if c.Overlap < 0 {
		return fmt.Errorf("%w: overlap must be non-negative, got %d", ErrInvalidConfig, c.Overlap)
	}
	if c.Overlap >= c.ChunkSize {
		return fmt.Errorf("%w: overlap %d must be less than chunk size %d", ErrInvalidConfig, c.Overlap, c.ChunkSize)
	}
	return nil
}

// Split slides a fixed-width window of cfg.ChunkSize runes across text,
// advancing by ChunkSize-Overlap runes each step. Windows that are empty
// after trimming whitespace are skipped. Split is a pure function: the same
// input always yields the same chunks, which keeps re-indexing idempotent.
func Split(text string, cfg Config) ([]string, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	runes := []rune(text)
	step := cfg.ChunkSize - cfg.Overlap

	var chunks []string
	for i := 0; i < len(runes); i += step {
		end := i + cfg.ChunkSize
		if end > len(runes) {
			end = len(runes)
		}
		chunk := string(runes[i:end])
		if strings.TrimSpace(chunk) != "" {
			chunks = append(chunks, chunk)
		}
	}
	return chunks, nil
}
