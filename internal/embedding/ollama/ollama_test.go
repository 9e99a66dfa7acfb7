package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docrag/internal/domain"
)

func TestInterfaceCompliance(t *testing.T) {
	var _ domain.Embedder = (*Embedder)(nil)
}

func TestNewEmbedder_Defaults(t *testing.T) {
	e := NewEmbedder(Config{})
	assert.Equal(t, DefaultBaseURL, e.baseURL)
	assert.Equal(t, "ollama/all-minilm", e.Name())
	assert.Equal(t, 384, e.Dimension())
}

func TestEmbed_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embed", r.URL.Path)
		var req embedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "all-minilm", req.Model)
		assert.Equal(t, "hello world", req.Input)
		_ = json.NewEncoder(w).Encode(embedResponse{Embeddings: [][]float32{{1, 2, 3}}})
	}))
	defer srv.Close()

	vec, err := NewEmbedder(Config{BaseURL: srv.URL}).Embed(context.Background(), "hello world")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2, 3}, vec)
}

func TestEmbed_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewEmbedder(Config{BaseURL: srv.URL}).Embed(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
	assert.Contains(t, err.Error(), "model not found")
}

func TestEmbed_NoEmbeddings(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"embeddings":[]}`))
	}))
	defer srv.Close()

	_, err := NewEmbedder(Config{BaseURL: srv.URL}).Embed(context.Background(), "x")
	assert.Error(t, err)
}
