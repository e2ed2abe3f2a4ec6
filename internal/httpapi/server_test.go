package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/answerd/internal/chunker"
	"github.com/fyrsmithlabs/answerd/internal/config"
	"github.com/fyrsmithlabs/answerd/internal/extract"
	"github.com/fyrsmithlabs/answerd/internal/pipeline"
	"github.com/fyrsmithlabs/answerd/internal/vectorstore"
)

type stubExtractor struct{}

func (stubExtractor) Extract(ctx context.Context, data []byte) ([]extract.Page, error) {
	return []extract.Page{{Number: 1, Text: "abcdefghijklmnopqrstu"}}, nil
}
func (stubExtractor) Close() error { return nil }

type stubEmbedder struct{}

func (stubEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0, 0}
	}
	return out, nil
}
func (stubEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return []float32{1, 0, 0}, nil
}
func (stubEmbedder) Dimension() int { return 3 }
func (stubEmbedder) Close() error   { return nil }

type stubChat struct{ answer string }

func (s stubChat) Complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	return s.answer, nil
}
func (stubChat) Close() error { return nil }

func newTestServer(t *testing.T) *Server {
	t.Helper()

	store, err := vectorstore.NewChromemStore(vectorstore.ChromemConfig{
		Path:       t.TempDir(),
		VectorSize: 3,
	}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	searcher := vectorstore.NewSearcher(store, vectorstore.SearcherConfig{}, zap.NewNop())

	service, err := pipeline.NewService(
		pipeline.Config{Chunker: chunker.Config{ChunkSize: 12, Overlap: 2}},
		stubExtractor{}, stubEmbedder{}, store, searcher, nil,
		stubChat{answer: "The answer [src:0]."}, zap.NewNop(),
	)
	require.NoError(t, err)

	server, err := NewServer(service, config.ServerConfig{}, zap.NewNop())
	require.NoError(t, err)
	return server
}

func (s *Server) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	return rec
}

func uploadRequest(t *testing.T, filename string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = io.WriteString(part, "%PDF-1.7 fake body")
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/v1/documents", &buf)
	req.Header.Set(echoContentType, w.FormDataContentType())
	return req
}

const echoContentType = "Content-Type"

func TestHealthz(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestUploadDocument(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(uploadRequest(t, "Contract Final.pdf"))
	require.Equal(t, http.StatusCreated, rec.Code)

	var result pipeline.IndexResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, "Contract_Final", result.Collection)
	assert.Equal(t, 3, result.ChunkCount)
}

func TestUploadMissingFile(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/v1/documents", strings.NewReader("{}"))
	req.Header.Set(echoContentType, "application/json")
	rec := s.do(req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListDocuments(t *testing.T) {
	s := newTestServer(t)
	require.Equal(t, http.StatusCreated, s.do(uploadRequest(t, "alpha.pdf")).Code)
	require.Equal(t, http.StatusCreated, s.do(uploadRequest(t, "beta.pdf")).Code)

	rec := s.do(httptest.NewRequest(http.MethodGet, "/v1/documents", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Documents, 2)
	assert.Equal(t, "alpha", resp.Documents[0].Collection)
	assert.Equal(t, "alpha.pdf", resp.Documents[0].DisplayName)
}

func TestAnswerWithoutDocuments(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/v1/answers",
		strings.NewReader(`{"query":"anything?"}`))
	req.Header.Set(echoContentType, "application/json")

	rec := s.do(req)
	require.Equal(t, http.StatusOK, rec.Code)

	var result pipeline.AnswerResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, pipeline.NoDocumentsMessage, result.Answer)
}

func TestAnswerWithDocuments(t *testing.T) {
	s := newTestServer(t)
	require.Equal(t, http.StatusCreated, s.do(uploadRequest(t, "contract.pdf")).Code)

	req := httptest.NewRequest(http.MethodPost, "/v1/answers",
		strings.NewReader(`{"query":"what are the terms?","top_k":3}`))
	req.Header.Set(echoContentType, "application/json")

	rec := s.do(req)
	require.Equal(t, http.StatusOK, rec.Code)

	var result pipeline.AnswerResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, "The answer [src:0].", result.Answer)
	assert.Equal(t, 3, result.Candidates)
}

func TestAnswerMissingQuery(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/v1/answers", strings.NewReader(`{}`))
	req.Header.Set(echoContentType, "application/json")
	rec := s.do(req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteDocument(t *testing.T) {
	s := newTestServer(t)
	require.Equal(t, http.StatusCreated, s.do(uploadRequest(t, "contract.pdf")).Code)

	rec := s.do(httptest.NewRequest(http.MethodDelete, "/v1/documents/contract", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"deleted":true}`, rec.Body.String())

	rec = s.do(httptest.NewRequest(http.MethodDelete, "/v1/documents/contract", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"deleted":false}`, rec.Body.String())
}
