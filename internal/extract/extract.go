// Package extract turns uploaded PDF bytes into page-indexed text.
package extract

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidConfig indicates invalid extractor configuration.
	ErrInvalidConfig = errors.New("invalid extractor configuration")

	// ErrExtractionFailed indicates the extraction backend failed.
	ErrExtractionFailed = errors.New("extraction failed")

	// ErrEmptyDocument indicates the input contained no bytes.
	ErrEmptyDocument = errors.New("empty document")
)

// Page is one page of extracted text. Number is 1-based.
type Page struct {
	Number int    `json:"number"`
	Text   string `json:"text"`
}

// Extractor extracts page text from a PDF.
type Extractor interface {
	Extract(ctx context.Context, data []byte) ([]Page, error)
	Close() error
}

// JoinPages renders pages as one text blob with page markers, one page per
// line. Chunks cut from this text keep their page context, so answers can
// point back to a page.
func JoinPages(pages []Page) string {
	lines := make([]string, len(pages))
	for i, p := range pages {
		lines[i] = fmt.Sprintf("[Page %d] %s", p.Number, p.Text)
	}
	return strings.Join(lines, "\n")
}
