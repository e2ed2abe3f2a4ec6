package vectorstore

import (
	"fmt"

	"go.uber.org/zap"
)

// Config selects and configures a Store backend.
type Config struct {
	// Provider selects the backend: "chromem" (default) or "qdrant".
	Provider string `koanf:"provider"`

	Chromem ChromemConfig `koanf:"chromem"`
	Qdrant  QdrantConfig  `koanf:"qdrant"`
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.Provider == "" {
		c.Provider = "chromem"
	}
	c.Chromem.ApplyDefaults()
	c.Qdrant.ApplyDefaults()
}

// NewStore creates a Store based on the configured provider.
//
//   - "chromem" (default): embedded pure-Go store, no external service
//   - "qdrant": external Qdrant server over gRPC
func NewStore(cfg Config, logger *zap.Logger) (Store, error) {
	cfg.ApplyDefaults()

	switch cfg.Provider {
	case "chromem":
		return NewChromemStore(cfg.Chromem, logger)
	case "qdrant":
		return NewQdrantStore(cfg.Qdrant, logger)
	default:
		return nil, fmt.Errorf("%w: unsupported provider %q (supported: chromem, qdrant)",
			ErrInvalidConfig, cfg.Provider)
	}
}
