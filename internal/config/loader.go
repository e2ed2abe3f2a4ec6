package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPath returns the default config file location,
// ~/.config/answerd/config.yaml.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, ".config", "answerd", "config.yaml"), nil
}

// Load loads configuration with the usual precedence, highest first:
//
//  1. Environment variables (LLM_API_KEY, SERVER_PORT, GROQ_API_KEY, ...)
//  2. YAML config file
//  3. Defaults
//
// A missing config file is not an error; defaults and environment apply.
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		var err error
		configPath, err = DefaultConfigPath()
		if err != nil {
			return nil, err
		}
	}

	var content []byte
	if data, err := os.ReadFile(configPath); err == nil {
		content = data
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading config file %s: %w", configPath, err)
	}

	return LoadFromBytes(content)
}

// LoadFromBytes loads configuration from raw YAML plus the environment.
func LoadFromBytes(content []byte) (*Config, error) {
	k := koanf.New(".")

	if len(content) > 0 {
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	}

	// Environment variables override the file. The first underscore splits
	// section from field: SERVER_PORT -> server.port,
	// LLM_API_KEY -> llm.api_key. GROQ_API_KEY is accepted as an alias for
	// llm.api_key since that is what the Groq docs tell users to export.
	if err := k.Load(env.Provider("", ".", func(s string) string {
		if s == "GROQ_API_KEY" {
			return "llm.api_key"
		}
		lower := strings.ToLower(s)
		parts := strings.SplitN(lower, "_", 2)
		if len(parts) == 1 {
			return lower
		}
		return parts[0] + "." + parts[1]
	}), nil); err != nil {
		return nil, fmt.Errorf("loading environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return &cfg, nil
}
