package embedding

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeminiProvider_ImplementsProvider(t *testing.T) {
	var _ Provider = (*GeminiProvider)(nil)
}

func newTestProvider(t *testing.T, handler http.HandlerFunc) *GeminiProvider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewGeminiProvider(GeminiConfig{
		APIKey:  "test-key",
		BaseURL: srv.URL,
		Model:   "gemini-embedding-001",
	})
}

func TestEmbedQuery(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1beta/models/gemini-embedding-001:embedContent", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))

		var req embedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, taskRetrievalQuery, req.TaskType)
		assert.Equal(t, "quid est veritas", req.Content.Parts[0].Text)

		json.NewEncoder(w).Encode(embedResponse{
			Embedding: contentEmbedding{Values: []float64{0.1, 0.2, 0.3}},
		})
	})

	vec, err := p.EmbedQuery(context.Background(), "quid est veritas")
	require.NoError(t, err)
	assert.Equal(t, []float64{0.1, 0.2, 0.3}, vec)
}

func TestEmbedDocuments_Batching(t *testing.T) {
	var batchSizes []int
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1beta/models/gemini-embedding-001:batchEmbedContents", r.URL.Path)

		var req batchEmbedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		batchSizes = append(batchSizes, len(req.Requests))

		resp := batchEmbedResponse{}
		for i := range req.Requests {
			resp.Embeddings = append(resp.Embeddings, contentEmbedding{Values: []float64{float64(i)}})
		}
		json.NewEncoder(w).Encode(resp)
	})

	docs := make([]string, 130)
	for i := range docs {
		docs[i] = fmt.Sprintf("chunk %d", i)
	}

	vecs, err := p.EmbedDocuments(context.Background(), docs)
	require.NoError(t, err)
	assert.Len(t, vecs, 130)
	assert.Equal(t, []int{100, 30}, batchSizes)
}

func TestEmbedDocuments_Empty(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected for empty input")
	})

	vecs, err := p.EmbedDocuments(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, vecs)
}

func TestEmbedDocuments_CountMismatch(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(batchEmbedResponse{
			Embeddings: []contentEmbedding{{Values: []float64{1}}},
		})
	})

	_, err := p.EmbedDocuments(context.Background(), []string{"a", "b"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 vectors for 2 inputs")
}

func TestEmbed_UpstreamError(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := p.EmbedQuery(context.Background(), "q")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 503")
}
