package extract

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestJoinPages(t *testing.T) {
	pages := []Page{
		{Number: 1, Text: "first page text"},
		{Number: 2, Text: "second page text"},
	}
	got := JoinPages(pages)
	assert.Equal(t, "[Page 1] first page text\n[Page 2] second page text", got)
}

func TestJoinPagesEmpty(t *testing.T) {
	assert.Equal(t, "", JoinPages(nil))
}

func TestHTTPExtractorExtract(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/extract", r.URL.Path)
		assert.Equal(t, "application/pdf", r.Header.Get("Content-Type"))

		resp := extractResponse{Pages: []Page{
			{Number: 1, Text: "hello"},
			{Number: 2, Text: "world"},
		}}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer server.Close()

	e := NewHTTPExtractor(HTTPConfig{BaseURL: server.URL}, zap.NewNop())
	defer e.Close()

	pages, err := e.Extract(context.Background(), []byte("%PDF-1.7 fake"))
	require.NoError(t, err)
	require.Len(t, pages, 2)
	assert.Equal(t, 1, pages[0].Number)
	assert.Equal(t, "world", pages[1].Text)
}

func TestHTTPExtractorEmptyInput(t *testing.T) {
	e := NewHTTPExtractor(HTTPConfig{BaseURL: "http://127.0.0.1:1"}, zap.NewNop())
	defer e.Close()

	_, err := e.Extract(context.Background(), nil)
	assert.ErrorIs(t, err, ErrEmptyDocument)
}

func TestHTTPExtractorServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "corrupt pdf", http.StatusUnprocessableEntity)
	}))
	defer server.Close()

	e := NewHTTPExtractor(HTTPConfig{BaseURL: server.URL}, zap.NewNop())
	defer e.Close()

	_, err := e.Extract(context.Background(), []byte("not a pdf"))
	require.ErrorIs(t, err, ErrExtractionFailed)
	assert.Contains(t, err.Error(), "422")
}
