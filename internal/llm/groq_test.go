package llm

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

func completionServer(t *testing.T, reply string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Messages, 1)
		assert.Equal(t, "user", req.Messages[0].Role)
		assert.Positive(t, req.MaxTokens)

		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": reply}},
			},
		}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
}

func newTestClient(t *testing.T, baseURL string) *GroqClient {
	t.Helper()
	client, err := NewGroqClient(GroqConfig{
		APIKey:  "test-key",
		BaseURL: baseURL,
	}, zap.NewNop())
	require.NoError(t, err)
	return client
}

func TestGroqClientComplete(t *testing.T) {
	server := completionServer(t, "The payment terms are net 30.")
	defer server.Close()

	client := newTestClient(t, server.URL)
	defer client.Close()

	answer, err := client.Complete(context.Background(), "What are the payment terms?", 0)
	require.NoError(t, err)
	assert.Equal(t, "The payment terms are net 30.", answer)
}

func TestGroqClientRequiresAPIKey(t *testing.T) {
	_, err := NewGroqClient(GroqConfig{}, zap.NewNop())
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestGroqClientNonOKStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"invalid api key"}}`, http.StatusUnauthorized)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	defer client.Close()

	_, err := client.Complete(context.Background(), "question", 0)
	require.ErrorIs(t, err, ErrRequestFailed)
	assert.Contains(t, err.Error(), "401")
}

func TestGroqClientEmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewEncoder(w).Encode(map[string]any{"choices": []any{}}))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	defer client.Close()

	_, err := client.Complete(context.Background(), "question", 0)
	assert.ErrorIs(t, err, ErrRequestFailed)
}

func TestGroqClientContextCancellation(t *testing.T) {
	server := completionServer(t, "unused")
	defer server.Close()

	client := newTestClient(t, server.URL)
	defer client.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := client.Complete(ctx, "question", 0)
	assert.Error(t, err)
}

func TestGroqClientMaxTokensOverride(t *testing.T) {
	var gotMaxTokens int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		gotMaxTokens = req.MaxTokens

		resp := map[string]any{
			"choices": []map[string]any{{"message": map[string]any{"content": "ok"}}},
		}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	defer client.Close()

	_, err := client.Complete(context.Background(), "question", 256)
	require.NoError(t, err)
	assert.Equal(t, 256, gotMaxTokens)
}
