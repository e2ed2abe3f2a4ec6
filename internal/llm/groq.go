package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var tracer = otel.Tracer("answerd.llm")

// GroqConfig holds configuration for the Groq chat-completion API.
type GroqConfig struct {
	// APIKey authenticates against the Groq API. Required.
	APIKey string `koanf:"api_key"`

	// Model is the chat model to use.
	Model string `koanf:"model"`

	// BaseURL of the OpenAI-compatible API.
	BaseURL string `koanf:"base_url"`

	// Timeout for completion requests.
	Timeout time.Duration `koanf:"timeout"`

	// MaxTokens is the default response cap when the caller passes zero.
	MaxTokens int `koanf:"max_tokens"`

	// RequestsPerSecond throttles outgoing requests. Zero disables
	// throttling.
	RequestsPerSecond float64 `koanf:"requests_per_second"`
}

// ApplyDefaults sets default values for unset fields.
func (c *GroqConfig) ApplyDefaults() {
	if c.Model == "" {
		c.Model = "llama-3.3-70b-versatile"
	}
	if c.BaseURL == "" {
		c.BaseURL = "https://api.groq.com/openai/v1"
	}
	if c.Timeout == 0 {
		c.Timeout = 60 * time.Second
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = 1024
	}
}

// Validate validates the configuration.
func (c GroqConfig) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("%w: set GROQ_API_KEY or llm.api_key", ErrMissingAPIKey)
	}
	return nil
}

// GroqClient talks to Groq's OpenAI-compatible chat completions endpoint.
type GroqClient struct {
	config  GroqConfig
	client  *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewGroqClient creates a GroqClient with the given configuration.
func NewGroqClient(config GroqConfig, logger *zap.Logger) (*GroqClient, error) {
	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	var limiter *rate.Limiter
	if config.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(config.RequestsPerSecond), 1)
	}

	return &GroqClient{
		config:  config,
		client:  &http.Client{Timeout: config.Timeout},
		limiter: limiter,
		logger:  logger.Named("groq"),
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Complete sends the prompt as a single user message and returns the reply.
func (c *GroqClient) Complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	ctx, span := tracer.Start(ctx, "GroqClient.Complete")
	defer span.End()
	span.SetAttributes(attribute.String("model", c.config.Model))

	if maxTokens <= 0 {
		maxTokens = c.config.MaxTokens
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("%w: rate limit wait: %v", ErrRequestFailed, err)
		}
	}

	body, err := json.Marshal(chatRequest{
		Model:     c.config.Model,
		Messages:  []chatMessage{{Role: "user", Content: prompt}},
		MaxTokens: maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.config.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		err := fmt.Errorf("%w: status %d: %s", ErrRequestFailed, resp.StatusCode, string(msg))
		span.RecordError(err)
		return "", err
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("%w: decoding response: %v", ErrRequestFailed, err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("%w: %s: %s", ErrRequestFailed, parsed.Error.Type, parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("%w: response contained no choices", ErrRequestFailed)
	}

	c.logger.Debug("completion finished",
		zap.String("model", c.config.Model),
		zap.Duration("duration", time.Since(start)),
	)
	return parsed.Choices[0].Message.Content, nil
}

// Close releases resources held by the HTTP client.
func (c *GroqClient) Close() error {
	c.client.CloseIdleConnections()
	return nil
}

var _ ChatClient = (*GroqClient)(nil)
