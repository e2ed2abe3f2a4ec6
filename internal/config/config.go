// Package config provides configuration loading for answerd.
package config

import (
	"fmt"

	"github.com/fyrsmithlabs/answerd/internal/embeddings"
	"github.com/fyrsmithlabs/answerd/internal/extract"
	"github.com/fyrsmithlabs/answerd/internal/llm"
	"github.com/fyrsmithlabs/answerd/internal/logging"
	"github.com/fyrsmithlabs/answerd/internal/pipeline"
	"github.com/fyrsmithlabs/answerd/internal/reranker"
	"github.com/fyrsmithlabs/answerd/internal/vectorstore"
)

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host to bind. Defaults to localhost.
	Host string `koanf:"host"`

	// Port to listen on.
	Port int `koanf:"port"`

	// MaxUploadMB caps document upload size.
	MaxUploadMB int `koanf:"max_upload_mb"`
}

// ApplyDefaults sets default values for unset fields.
func (c *ServerConfig) ApplyDefaults() {
	if c.Host == "" {
		c.Host = "127.0.0.1"
	}
	if c.Port == 0 {
		c.Port = 8088
	}
	if c.MaxUploadMB == 0 {
		c.MaxUploadMB = 50
	}
}

// Validate validates the configuration.
func (c ServerConfig) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Port)
	}
	return nil
}

// Config is the full answerd configuration.
type Config struct {
	Logging     logging.Config              `koanf:"logging"`
	Embeddings  embeddings.Config           `koanf:"embeddings"`
	Cache       embeddings.CacheConfig      `koanf:"cache"`
	VectorStore vectorstore.Config          `koanf:"vectorstore"`
	Searcher    vectorstore.SearcherConfig  `koanf:"searcher"`
	Reranker    reranker.CrossEncoderConfig `koanf:"reranker"`
	Extractor   extract.HTTPConfig          `koanf:"extractor"`
	LLM         llm.GroqConfig              `koanf:"llm"`
	Pipeline    pipeline.Config             `koanf:"pipeline"`
	Server      ServerConfig                `koanf:"server"`
}

// ApplyDefaults sets default values on every section.
func (c *Config) ApplyDefaults() {
	c.Logging.ApplyDefaults()
	c.Embeddings.ApplyDefaults()
	c.Cache.ApplyDefaults()
	c.VectorStore.ApplyDefaults()
	c.Searcher.ApplyDefaults()
	c.Reranker.ApplyDefaults()
	c.Extractor.ApplyDefaults()
	c.LLM.ApplyDefaults()
	c.Pipeline.ApplyDefaults()
	c.Server.ApplyDefaults()
}

// Validate validates every section that has load-time constraints. A chunker
// misconfiguration is fatal here rather than at first ingest.
func (c Config) Validate() error {
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	if err := c.Embeddings.Validate(); err != nil {
		return fmt.Errorf("embeddings: %w", err)
	}
	if err := c.Pipeline.Chunker.Validate(); err != nil {
		return fmt.Errorf("chunker: %w", err)
	}
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}
