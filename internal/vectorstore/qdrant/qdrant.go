package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"docrag/internal/domain"
	"docrag/internal/logger"
	"docrag/internal/vectorstore"
)

// Storage is a minimal REST client to Qdrant implementing domain.VectorStore.
// It is safe for concurrent use.
type Storage struct {
	url    string
	apiKey string
	client *http.Client

	mu         sync.RWMutex
	dimensions map[string]int
}

// Config contains connection details. A zero Timeout means no client-side timeout.
type Config struct {
	URL     string
	APIKey  string
	Timeout time.Duration
}

func NewStorage(cfg Config) *Storage {
	base := strings.TrimRight(cfg.URL, "/")
	if base == "" {
		base = "http://localhost:6333"
	}
	return &Storage{
		url:        base,
		apiKey:     cfg.APIKey,
		client:     &http.Client{Timeout: cfg.Timeout},
		dimensions: make(map[string]int),
	}
}

type envelope struct {
	Result json.RawMessage `json:"result"`
	Status json.RawMessage `json:"status"`
}

// EnsureCollection creates the collection if no collection with that name exists.
// An existing collection is left untouched; its vector size is remembered for
// client-side dimension checks.
func (s *Storage) EnsureCollection(ctx context.Context, c domain.Collection) error {
	if c.Dimension <= 0 {
		return errors.New("invalid dimension")
	}
	var list struct {
		Collections []struct {
			Name string `json:"name"`
		} `json:"collections"`
	}
	if err := s.do(ctx, http.MethodGet, "/collections", nil, &list); err != nil {
		return fmt.Errorf("list collections: %w", err)
	}
	for _, existing := range list.Collections {
		if existing.Name == c.Name {
			size, err := s.collectionSize(ctx, c.Name)
			if err != nil {
				logger.Debug("qdrant: could not read size of %q: %v", c.Name, err)
				return nil
			}
			s.setDimension(c.Name, size)
			return nil
		}
	}

	distance := c.Distance
	if distance == "" {
		distance = vectorstore.DistanceCosine
	}
	body := map[string]any{
		"vectors": map[string]any{
			"size":     c.Dimension,
			"distance": distance,
		},
	}
	if err := s.do(ctx, http.MethodPut, "/collections/"+url.PathEscape(c.Name), body, nil); err != nil {
		return fmt.Errorf("create collection %q: %w", c.Name, err)
	}
	logger.Info("qdrant: created collection %q (size=%d, distance=%s)", c.Name, c.Dimension, distance)
	s.setDimension(c.Name, c.Dimension)
	return nil
}

func (s *Storage) collectionSize(ctx context.Context, name string) (int, error) {
	var info struct {
		Config struct {
			Params struct {
				Vectors struct {
					Size int `json:"size"`
				} `json:"vectors"`
			} `json:"params"`
		} `json:"config"`
	}
	if err := s.do(ctx, http.MethodGet, "/collections/"+url.PathEscape(name), nil, &info); err != nil {
		return 0, err
	}
	if info.Config.Params.Vectors.Size <= 0 {
		return 0, errors.New("collection has no single unnamed vector config")
	}
	return info.Config.Params.Vectors.Size, nil
}

func (s *Storage) setDimension(name string, size int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dimensions[name] = size
}

func (s *Storage) dimension(name string) (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.dimensions[name]
	return d, ok
}

// Upsert inserts or replaces points by id in one batch, waiting for the write to apply.
func (s *Storage) Upsert(ctx context.Context, collection string, points []domain.Point) error {
	if len(points) == 0 {
		return nil
	}
	if dim, ok := s.dimension(collection); ok {
		if err := vectorstore.CheckDimension(dim, vectorstore.PointVectors(points)...); err != nil {
			return err
		}
	}
	wire := make([]map[string]any, len(points))
	for i, p := range points {
		wire[i] = map[string]any{
			"id":     p.ID,
			"vector": p.Vector,
			"payload": map[string]any{
				"text":   p.Payload.Text,
				"source": p.Payload.Source,
			},
		}
	}
	path := "/collections/" + url.PathEscape(collection) + "/points?wait=true"
	return s.do(ctx, http.MethodPut, path, map[string]any{"points": wire}, nil)
}

// Search returns up to topK points ordered by descending similarity.
func (s *Storage) Search(ctx context.Context, collection string, vector []float32, topK int) ([]domain.SearchResult, error) {
	topK = vectorstore.NormalizeTopK(topK)
	if dim, ok := s.dimension(collection); ok {
		if err := vectorstore.CheckDimension(dim, vector); err != nil {
			return nil, err
		}
	}
	req := map[string]any{
		"query":        vector,
		"limit":        topK,
		"with_payload": true,
	}
	var resp struct {
		Points []struct {
			ID      json.RawMessage `json:"id"`
			Score   float32         `json:"score"`
			Payload domain.Payload  `json:"payload"`
		} `json:"points"`
	}
	path := "/collections/" + url.PathEscape(collection) + "/points/query"
	if err := s.do(ctx, http.MethodPost, path, req, &resp); err != nil {
		return nil, err
	}
	results := make([]domain.SearchResult, 0, len(resp.Points))
	for i, p := range resp.Points {
		results = append(results, domain.SearchResult{
			ID:      pointID(p.ID),
			Payload: p.Payload,
			Score:   p.Score,
			Rank:    i + 1,
		})
	}
	return results, nil
}

// pointID renders a Qdrant point id, which is either a UUID string or an integer.
func pointID(raw json.RawMessage) string {
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		return str
	}
	return string(raw)
}

func (s *Storage) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, s.url+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read qdrant response: %w", err)
	}
	var env envelope
	_ = json.Unmarshal(payload, &env)

	if resp.StatusCode >= 300 {
		msg := statusError(env.Status)
		if msg == "" {
			msg = strings.TrimSpace(string(payload))
		}
		err := fmt.Errorf("qdrant %s %s failed: %s: %s", method, path, resp.Status, msg)
		if strings.Contains(strings.ToLower(msg), "dimension") {
			return fmt.Errorf("%w: %v", domain.ErrSchemaMismatch, err)
		}
		return err
	}
	if out != nil {
		if len(env.Result) == 0 {
			return errors.New("qdrant response has no result")
		}
		if err := json.Unmarshal(env.Result, out); err != nil {
			return fmt.Errorf("decode qdrant result: %w", err)
		}
	}
	return nil
}

// statusError extracts the message from {"status":{"error":"..."}}.
func statusError(raw json.RawMessage) string {
	var st struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &st); err != nil {
		return ""
	}
	return st.Error
}
