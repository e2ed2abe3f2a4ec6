package extract

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
)

var tracer = otel.Tracer("answerd.extract")

// HTTPConfig holds configuration for the HTTP extraction service.
type HTTPConfig struct {
	// BaseURL of the extraction service.
	BaseURL string `koanf:"base_url"`

	// Timeout for extraction requests. PDFs can be large, default is
	// generous.
	Timeout time.Duration `koanf:"timeout"`
}

// ApplyDefaults sets default values for unset fields.
func (c *HTTPConfig) ApplyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = "http://localhost:8082"
	}
	if c.Timeout == 0 {
		c.Timeout = 2 * time.Minute
	}
}

// HTTPExtractor sends PDF bytes to an extraction service and decodes the
// page-indexed response.
type HTTPExtractor struct {
	config HTTPConfig
	client *http.Client
	logger *zap.Logger
}

// NewHTTPExtractor creates an HTTPExtractor with the given configuration.
func NewHTTPExtractor(config HTTPConfig, logger *zap.Logger) *HTTPExtractor {
	config.ApplyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPExtractor{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
		logger: logger.Named("extract"),
	}
}

type extractResponse struct {
	Pages []Page `json:"pages"`
}

// Extract posts the PDF and returns its pages in document order.
func (e *HTTPExtractor) Extract(ctx context.Context, data []byte) ([]Page, error) {
	ctx, span := tracer.Start(ctx, "HTTPExtractor.Extract")
	defer span.End()
	span.SetAttributes(attribute.Int("size_bytes", len(data)))

	if len(data) == 0 {
		return nil, ErrEmptyDocument
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		e.config.BaseURL+"/extract", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/pdf")

	resp, err := e.client.Do(req)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		err := fmt.Errorf("%w: status %d: %s", ErrExtractionFailed, resp.StatusCode, string(msg))
		span.RecordError(err)
		return nil, err
	}

	var parsed extractResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %v", ErrExtractionFailed, err)
	}

	span.SetAttributes(attribute.Int("page_count", len(parsed.Pages)))
	e.logger.Debug("extracted pages", zap.Int("pages", len(parsed.Pages)))
	return parsed.Pages, nil
}

// Close releases resources held by the HTTP client.
func (e *HTTPExtractor) Close() error {
	e.client.CloseIdleConnections()
	return nil
}

var _ Extractor = (*HTTPExtractor)(nil)
