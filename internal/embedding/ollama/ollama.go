// Package ollama embeds text with a model served by a local Ollama instance.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	DefaultBaseURL = "http://localhost:11434"
	// DefaultModel is all-MiniLM-L6-v2, which produces 384-dimensional vectors.
	DefaultModel     = "all-minilm"
	DefaultDimension = 384
)

// Embedder implements domain.Embedder against Ollama's /api/embed endpoint.
type Embedder struct {
	baseURL    string
	model      string
	dimension  int
	httpClient *http.Client
}

// Config configures the Ollama embedder. Zero values select the defaults.
type Config struct {
	BaseURL   string
	Model     string
	Dimension int
	Timeout   time.Duration
}

// NewEmbedder creates a new Ollama embedder.
func NewEmbedder(cfg Config) *Embedder {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Dimension <= 0 {
		cfg.Dimension = DefaultDimension
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Embedder{
		baseURL:    cfg.BaseURL,
		model:      cfg.Model,
		dimension:  cfg.Dimension,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

func (e *Embedder) Name() string {
	return "ollama/" + e.model
}

func (e *Embedder) Dimension() int {
	return e.dimension
}

type embedRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(embedRequest{Model: e.model, Input: text})
	if err != nil {
		return nil, fmt.Errorf("marshal ollama request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create ollama request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("ollama returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var result embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode ollama response: %w", err)
	}
	if len(result.Embeddings) == 0 || len(result.Embeddings[0]) == 0 {
		return nil, fmt.Errorf("ollama returned no embeddings")
	}
	return result.Embeddings[0], nil
}
