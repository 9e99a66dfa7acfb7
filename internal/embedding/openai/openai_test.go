package openai

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
	var _ domain.Embedder = (*Client)(nil)
}

func TestNewClient_MissingKey(t *testing.T) {
	t.Setenv("DOCRAG_TEST_EMBED_KEY", "")
	_, err := NewClient(Config{APIKeyEnv: "DOCRAG_TEST_EMBED_KEY"})
	assert.Error(t, err)
}

func TestEmbed_SendsDimensionsAndParsesVector(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","data":[{"object":"embedding","index":0,"embedding":[0.5,0.25,0.125]}],"model":"text-embedding-3-small","usage":{"prompt_tokens":1,"total_tokens":1}}`))
	}))
	defer srv.Close()

	t.Setenv("DOCRAG_TEST_EMBED_KEY", "sk-test")
	c, err := NewClient(Config{BaseURL: srv.URL, APIKeyEnv: "DOCRAG_TEST_EMBED_KEY", Dimension: 3})
	require.NoError(t, err)

	vec, err := c.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, 0.25, 0.125}, vec)
	assert.Equal(t, 3, c.Dimension())
	assert.Equal(t, "text-embedding-3-small", got["model"])
	assert.EqualValues(t, 3, got["dimensions"])
}

func TestEmbed_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"bad key","type":"invalid_request_error"}}`))
	}))
	defer srv.Close()

	t.Setenv("DOCRAG_TEST_EMBED_KEY", "sk-test")
	c, err := NewClient(Config{BaseURL: srv.URL, APIKeyEnv: "DOCRAG_TEST_EMBED_KEY"})
	require.NoError(t, err)

	_, err = c.Embed(context.Background(), "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad key")
}
