// Package llm provides chat-completion clients for answer generation.
package llm

import (
	"context"
	"errors"
)

var (
	// ErrInvalidConfig indicates invalid client configuration.
	ErrInvalidConfig = errors.New("invalid llm configuration")

	// ErrMissingAPIKey indicates no API key was configured.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrRequestFailed indicates the completion request failed.
	ErrRequestFailed = errors.New("completion request failed")
)

// ChatClient generates a completion for a single user prompt.
type ChatClient interface {
	// Complete sends the prompt as one user message and returns the
	// model's reply. maxTokens caps the response length; zero means the
	// client's configured default.
	Complete(ctx context.Context, prompt string, maxTokens int) (string, error)

	// Close releases any resources held by the client.
	Close() error
}
