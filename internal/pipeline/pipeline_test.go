package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/answerd/internal/chunker"
	"github.com/fyrsmithlabs/answerd/internal/extract"
	"github.com/fyrsmithlabs/answerd/internal/vectorstore"
)

// fakeExtractor returns one page holding the configured text.
type fakeExtractor struct {
	text string
	err  error
}

func (f *fakeExtractor) Extract(ctx context.Context, data []byte) ([]extract.Page, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []extract.Page{{Number: 1, Text: f.text}}, nil
}

func (f *fakeExtractor) Close() error { return nil }

// fakeEmbedder returns the same unit vector for every text.
type fakeEmbedder struct {
	calls atomic.Int64
}

func (f *fakeEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	f.calls.Add(1)
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0, 0}
	}
	return out, nil
}

func (f *fakeEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	f.calls.Add(1)
	return []float32{1, 0, 0}, nil
}

func (f *fakeEmbedder) Dimension() int { return 3 }
func (f *fakeEmbedder) Close() error   { return nil }

// fakeChat counts calls and either answers or fails.
type fakeChat struct {
	answer string
	err    error
	calls  atomic.Int64
}

func (f *fakeChat) Complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	f.calls.Add(1)
	if f.err != nil {
		return "", f.err
	}
	return f.answer, nil
}

func (f *fakeChat) Close() error { return nil }

type testEnv struct {
	service *Service
	chat    *fakeChat
	store   vectorstore.Store
}

func newTestEnv(t *testing.T, cfg Config, chat *fakeChat) *testEnv {
	t.Helper()

	store, err := vectorstore.NewChromemStore(vectorstore.ChromemConfig{
		Path:       t.TempDir(),
		VectorSize: 3,
	}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	searcher := vectorstore.NewSearcher(store, vectorstore.SearcherConfig{}, zap.NewNop())

	// The joined page text is 30 runes; size 12 / overlap 2 steps by 10,
	// giving exactly 3 chunks.
	extractor := &fakeExtractor{text: "abcdefghijklmnopqrstu"}

	cfg.RetryInterval = time.Millisecond
	service, err := NewService(cfg, extractor, &fakeEmbedder{}, store, searcher, nil, chat, zap.NewNop())
	require.NoError(t, err)

	return &testEnv{service: service, chat: chat, store: store}
}

func chunkedConfig() Config {
	return Config{Chunker: chunker.Config{ChunkSize: 12, Overlap: 2}}
}

func TestServiceIndex(t *testing.T) {
	env := newTestEnv(t, chunkedConfig(), &fakeChat{answer: "ok"})
	ctx := context.Background()

	result, err := env.service.Index(ctx, []byte("%PDF"), "Contract Final.pdf")
	require.NoError(t, err)
	assert.Equal(t, "Contract_Final", result.Collection)
	assert.Equal(t, 3, result.ChunkCount)

	info, err := env.store.CollectionInfo(ctx, "Contract_Final")
	require.NoError(t, err)
	assert.Equal(t, 3, info.ChunkCount)
	assert.Equal(t, "Contract Final.pdf", info.DisplayName)
}

func TestServiceIndexIdempotentCollection(t *testing.T) {
	env := newTestEnv(t, chunkedConfig(), &fakeChat{answer: "ok"})
	ctx := context.Background()

	first, err := env.service.Index(ctx, []byte("%PDF"), "report.pdf")
	require.NoError(t, err)
	second, err := env.service.Index(ctx, []byte("%PDF"), "report.pdf")
	require.NoError(t, err)
	assert.Equal(t, first.Collection, second.Collection)

	names, err := env.store.ListCollections(ctx)
	require.NoError(t, err)
	assert.Len(t, names, 1)
}

func TestServiceAnswerNoDocuments(t *testing.T) {
	chat := &fakeChat{answer: "should never be used"}
	env := newTestEnv(t, chunkedConfig(), chat)

	answer, err := env.service.Answer(context.Background(), "anything?", nil, 5)
	require.NoError(t, err)
	assert.Equal(t, NoDocumentsMessage, answer)
	assert.Zero(t, chat.calls.Load(), "model must not be called without documents")
}

func TestServiceAnswerWithDocuments(t *testing.T) {
	chat := &fakeChat{answer: "The contract says X [src:0]."}
	env := newTestEnv(t, chunkedConfig(), chat)
	ctx := context.Background()

	_, err := env.service.Index(ctx, []byte("%PDF"), "contract.pdf")
	require.NoError(t, err)

	result, err := env.service.AnswerDetailed(ctx, "what does it say?", nil, 5)
	require.NoError(t, err)
	assert.Equal(t, "The contract says X [src:0].", result.Answer)
	assert.Equal(t, 3, result.Candidates)
	assert.Equal(t, int64(1), chat.calls.Load())
}

func TestServiceAnswerDiagnosticAfterRetries(t *testing.T) {
	chat := &fakeChat{err: errors.New("connection refused")}
	env := newTestEnv(t, chunkedConfig(), chat)
	ctx := context.Background()

	_, err := env.service.Index(ctx, []byte("%PDF"), "contract.pdf")
	require.NoError(t, err)

	answer, err := env.service.Answer(ctx, "question?", nil, 5)
	require.NoError(t, err, "model failure becomes a diagnostic, not an error")
	assert.Contains(t, answer, "3 attempts")
	assert.Contains(t, answer, "console.groq.com")
	assert.Equal(t, int64(3), chat.calls.Load())
}

// cancellingChat cancels the request context on its first call and fails,
// simulating a caller that goes away mid-request.
type cancellingChat struct {
	cancel context.CancelFunc
	calls  atomic.Int64
}

func (c *cancellingChat) Complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	c.calls.Add(1)
	c.cancel()
	return "", errors.New("unavailable")
}

func (c *cancellingChat) Close() error { return nil }

func TestServiceAnswerContextCancellationStopsRetries(t *testing.T) {
	env := newTestEnv(t, chunkedConfig(), &fakeChat{answer: "ok"})
	ctx := context.Background()

	_, err := env.service.Index(ctx, []byte("%PDF"), "contract.pdf")
	require.NoError(t, err)

	reqCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	chat := &cancellingChat{cancel: cancel}
	env.service.chat = chat

	_, err = env.service.Answer(reqCtx, "question?", nil, 5)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int64(1), chat.calls.Load(), "no retries after cancellation")
}

func TestServiceAnswerCitationWarnings(t *testing.T) {
	chat := &fakeChat{answer: "See [src:1] for details."}
	cfg := chunkedConfig()
	cfg.VerifyCitations = true
	env := newTestEnv(t, cfg, chat)
	ctx := context.Background()

	_, err := env.service.Index(ctx, []byte("%PDF"), "contract.pdf")
	require.NoError(t, err)

	result, err := env.service.AnswerDetailed(ctx, "question?", nil, 5)
	require.NoError(t, err)
	assert.Equal(t, []int{1}, result.SuspectCitations)
}

func TestServiceListDocuments(t *testing.T) {
	env := newTestEnv(t, chunkedConfig(), &fakeChat{answer: "ok"})
	ctx := context.Background()

	_, err := env.service.Index(ctx, []byte("%PDF"), "beta.pdf")
	require.NoError(t, err)
	_, err = env.service.Index(ctx, []byte("%PDF"), "alpha.pdf")
	require.NoError(t, err)

	docs, err := env.service.ListDocuments(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "alpha", docs[0].Collection)
	assert.Equal(t, "alpha.pdf", docs[0].DisplayName)
	assert.Equal(t, 3, docs[0].ChunkCount)
	assert.Equal(t, "beta", docs[1].Collection)
}

func TestServiceDelete(t *testing.T) {
	env := newTestEnv(t, chunkedConfig(), &fakeChat{answer: "ok"})
	ctx := context.Background()

	_, err := env.service.Index(ctx, []byte("%PDF"), "contract.pdf")
	require.NoError(t, err)

	deleted, err := env.service.Delete(ctx, "contract.pdf")
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = env.service.Delete(ctx, "contract.pdf")
	require.NoError(t, err)
	assert.False(t, deleted, "deleting a missing document is not an error")
}

func TestBuildPromptHistoryWindow(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()

	history := []ChatTurn{
		{Role: "user", Content: "first question"},
		{Role: "assistant", Content: "first answer"},
		{Role: "user", Content: "second question"},
		{Role: "assistant", Content: "second answer"},
		{Role: "user", Content: "third question"},
		{Role: "assistant", Content: "third answer"},
		{Role: "user", Content: "current question"},
	}
	prompt := buildPrompt("current question", "[src:0] (from: a.pdf)\ntext", history, cfg)

	assert.Contains(t, prompt, "PREVIOUS CONVERSATION:")
	assert.Contains(t, prompt, "ASSISTANT: first answer")
	assert.Contains(t, prompt, "USER: third question")
	// The window is six messages; the oldest turn falls out, and the
	// current question only appears on the CURRENT QUESTION line.
	assert.NotContains(t, prompt, "USER: first question")
	assert.NotContains(t, prompt, "USER: current question")
	assert.Contains(t, prompt, "CURRENT QUESTION: current question")
}

func TestBuildPromptNoHistory(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()

	prompt := buildPrompt("only question", "context", nil, cfg)
	assert.NotContains(t, prompt, "PREVIOUS CONVERSATION:")
	assert.Contains(t, prompt, "CONTEXT FROM DOCUMENTS:\ncontext")
}

func TestBuildPromptTruncatesHistoryMessages(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()

	long := strings.Repeat("x", 500)
	history := []ChatTurn{
		{Role: "user", Content: long},
		{Role: "user", Content: "current"},
	}
	prompt := buildPrompt("current", "context", history, cfg)
	assert.Contains(t, prompt, "USER: "+strings.Repeat("x", 200)+"\n")
	assert.NotContains(t, prompt, strings.Repeat("x", 201))
}
