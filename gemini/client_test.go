package gemini

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(context.Background(), "test-key", WithBaseURL(server.URL))
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client
}

func generationBody(texts ...string) map[string]any {
	parts := make([]map[string]any, 0, len(texts))
	for _, text := range texts {
		parts = append(parts, map[string]any{"text": text})
	}
	return map[string]any{
		"candidates": []map[string]any{
			{"content": map[string]any{"parts": parts}, "finishReason": "STOP"},
		},
	}
}

func TestGenerateText(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))
		assert.Contains(t, r.URL.Path, ":generateContent")

		var req generationRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Contents, 1)
		assert.Equal(t, "hello", req.Contents[0].Parts[0].Text)

		json.NewEncoder(w).Encode(generationBody("Hello ", "back"))
	})

	got, err := client.GenerateText(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "Hello back", got)
}

func TestGenerateTextEmptyIsFailureNotSuccess(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(generationBody(""))
	})

	_, err := client.GenerateText(context.Background(), "hello")
	require.Error(t, err)
}

func TestGenerateTextBlockedPromptDoesNotRetry(t *testing.T) {
	calls := 0
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		json.NewEncoder(w).Encode(map[string]any{
			"promptFeedback": map[string]any{"blockReason": "SAFETY"},
		})
	})

	_, err := client.GenerateText(context.Background(), "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SAFETY")
	assert.Equal(t, 1, calls)
}

func TestGenerateTextBadRequestDoesNotRetry(t *testing.T) {
	calls := 0
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, `{"error":{"code":400,"message":"bad request"}}`, http.StatusBadRequest)
	})

	_, err := client.GenerateText(context.Background(), "hello")
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestGenerateTextRetriesServerErrors(t *testing.T) {
	calls := 0
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			http.Error(w, "upstream hiccup", http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(generationBody("recovered"))
	})

	got, err := client.GenerateText(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "recovered", got)
	assert.Equal(t, 3, calls)
}

func TestGenerateTextWithoutAPIKey(t *testing.T) {
	client, err := NewClient(context.Background(), "")
	require.NoError(t, err)
	defer client.Close()

	_, err = client.GenerateText(context.Background(), "hello")
	require.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestEmbedTextNormalizes(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, ":embedContent")

		var req embeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "RETRIEVAL_QUERY", req.TaskType)
		assert.Equal(t, EmbeddingDimensions, req.OutputDimensionality)

		json.NewEncoder(w).Encode(embeddingResponse{
			Embedding: embeddingData{Values: []float64{3, 4}},
		})
	})

	got, err := client.EmbedText(context.Background(), "theft of a laptop", "RETRIEVAL_QUERY")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.InDelta(t, 0.6, got[0], 1e-9)
	assert.InDelta(t, 0.8, got[1], 1e-9)

	norm := math.Sqrt(got[0]*got[0] + got[1]*got[1])
	assert.InDelta(t, 1.0, norm, 1e-9)
}

func TestEmbedBatch(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, ":batchEmbedContents")

		var req batchEmbeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Requests, 2)

		json.NewEncoder(w).Encode(batchEmbeddingResponse{
			Embeddings: []batchEmbeddingItem{
				{Values: []float64{1, 0}},
				{Values: []float64{0, 2}},
			},
		})
	})

	got, err := client.EmbedBatch(context.Background(), []string{"a", "b"}, "RETRIEVAL_DOCUMENT")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, []float64{1, 0}, got[0])
	assert.Equal(t, []float64{0, 1}, got[1])
}

func TestEmbedBatchCountMismatch(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(batchEmbeddingResponse{
			Embeddings: []batchEmbeddingItem{{Values: []float64{1}}},
		})
	})

	_, err := client.EmbedBatch(context.Background(), []string{"a", "b"}, "RETRIEVAL_DOCUMENT")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected 2 embeddings")
}
