package qdrant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docrag/internal/domain"
)

// fakeQdrant records requests and serves canned Qdrant REST responses.
type fakeQdrant struct {
	mu          sync.Mutex
	collections map[string]int
	created     []string
	upserts     []map[string]any
	queries     []map[string]any
	queryResult string
}

func newFakeQdrant() *fakeQdrant {
	return &fakeQdrant{collections: map[string]int{}}
}

func (f *fakeQdrant) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")

	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/collections":
		var cols []map[string]string
		for name := range f.collections {
			cols = append(cols, map[string]string{"name": name})
		}
		writeResult(w, map[string]any{"collections": cols})
	case r.Method == http.MethodGet && r.URL.Path == "/collections/docs":
		writeResult(w, map[string]any{"config": map[string]any{"params": map[string]any{
			"vectors": map[string]any{"size": f.collections["docs"], "distance": "Cosine"},
		}}})
	case r.Method == http.MethodPut && r.URL.Path == "/collections/docs":
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		size := body["vectors"].(map[string]any)["size"].(float64)
		f.collections["docs"] = int(size)
		f.created = append(f.created, "docs")
		writeResult(w, true)
	case r.Method == http.MethodPut && r.URL.Path == "/collections/docs/points":
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.upserts = append(f.upserts, body)
		writeResult(w, map[string]any{"operation_id": 1, "status": "completed"})
	case r.Method == http.MethodPost && r.URL.Path == "/collections/docs/points/query":
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.queries = append(f.queries, body)
		_, _ = w.Write([]byte(f.queryResult))
	default:
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"status":{"error":"Not found"}}`))
	}
}

func writeResult(w http.ResponseWriter, result any) {
	_ = json.NewEncoder(w).Encode(map[string]any{"result": result, "status": "ok", "time": 0.001})
}

func TestInterfaceCompliance(t *testing.T) {
	var _ domain.VectorStore = (*Storage)(nil)
}

func TestEnsureCollection_CreatesWhenAbsent(t *testing.T) {
	fake := newFakeQdrant()
	srv := httptest.NewServer(fake)
	defer srv.Close()

	s := NewStorage(Config{URL: srv.URL})
	err := s.EnsureCollection(context.Background(), domain.Collection{Name: "docs", Dimension: 384, Distance: "Cosine"})
	require.NoError(t, err)
	assert.Equal(t, []string{"docs"}, fake.created)
	assert.Equal(t, 384, fake.collections["docs"])
}

func TestEnsureCollection_IdempotentAndDoesNotMutate(t *testing.T) {
	fake := newFakeQdrant()
	fake.collections["docs"] = 128
	srv := httptest.NewServer(fake)
	defer srv.Close()

	s := NewStorage(Config{URL: srv.URL})
	for i := 0; i < 2; i++ {
		require.NoError(t, s.EnsureCollection(context.Background(), domain.Collection{Name: "docs", Dimension: 384}))
	}
	assert.Empty(t, fake.created)
	assert.Equal(t, 128, fake.collections["docs"])

	// The existing collection's size wins for client-side checks.
	err := s.Upsert(context.Background(), "docs", []domain.Point{{ID: "a", Vector: make([]float32, 384)}})
	assert.ErrorIs(t, err, domain.ErrSchemaMismatch)
}

func TestEnsureCollection_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	s := NewStorage(Config{URL: url})
	err := s.EnsureCollection(context.Background(), domain.Collection{Name: "docs", Dimension: 3})
	assert.Error(t, err)
}

func TestUpsert_SendsBatchWithPayload(t *testing.T) {
	fake := newFakeQdrant()
	srv := httptest.NewServer(fake)
	defer srv.Close()

	s := NewStorage(Config{URL: srv.URL, APIKey: "secret"})
	require.NoError(t, s.EnsureCollection(context.Background(), domain.Collection{Name: "docs", Dimension: 2}))

	points := []domain.Point{
		{ID: "11111111-1111-1111-1111-111111111111", Vector: []float32{1, 0}, Payload: domain.Payload{Text: "alpha", Source: "a.txt"}},
		{ID: "22222222-2222-2222-2222-222222222222", Vector: []float32{0, 1}, Payload: domain.Payload{Text: "beta", Source: "a.txt"}},
	}
	require.NoError(t, s.Upsert(context.Background(), "docs", points))

	require.Len(t, fake.upserts, 1)
	wire := fake.upserts[0]["points"].([]any)
	require.Len(t, wire, 2)
	first := wire[0].(map[string]any)
	assert.Equal(t, points[0].ID, first["id"])
	assert.Equal(t, map[string]any{"text": "alpha", "source": "a.txt"}, first["payload"])
}

func TestUpsert_DimensionMismatch(t *testing.T) {
	fake := newFakeQdrant()
	srv := httptest.NewServer(fake)
	defer srv.Close()

	s := NewStorage(Config{URL: srv.URL})
	require.NoError(t, s.EnsureCollection(context.Background(), domain.Collection{Name: "docs", Dimension: 3}))

	err := s.Upsert(context.Background(), "docs", []domain.Point{{ID: "x", Vector: []float32{1, 2}}})
	assert.ErrorIs(t, err, domain.ErrSchemaMismatch)
	assert.Empty(t, fake.upserts)
}

func TestUpsert_ServerDimensionErrorMapsToSchemaMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"status":{"error":"Wrong input: Vector dimension error: expected dim: 384, got 2"},"time":0.0}`))
	}))
	defer srv.Close()

	s := NewStorage(Config{URL: srv.URL})
	err := s.Upsert(context.Background(), "docs", []domain.Point{{ID: "x", Vector: []float32{1, 2}}})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrSchemaMismatch)
	assert.Contains(t, err.Error(), "expected dim: 384")
}

func TestSearch_ParsesPointsInOrder(t *testing.T) {
	fake := newFakeQdrant()
	fake.queryResult = `{"result":{"points":[
		{"id":"b","version":3,"score":0.91,"payload":{"text":"best","source":"x.pdf"}},
		{"id":7,"version":3,"score":0.42,"payload":{"text":"second","source":"y.txt"}}
	]},"status":"ok","time":0.002}`
	srv := httptest.NewServer(fake)
	defer srv.Close()

	s := NewStorage(Config{URL: srv.URL})
	res, err := s.Search(context.Background(), "docs", []float32{0.1, 0.2}, 0)
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, "b", res[0].ID)
	assert.Equal(t, "best", res[0].Payload.Text)
	assert.Equal(t, "x.pdf", res[0].Payload.Source)
	assert.Equal(t, 1, res[0].Rank)
	assert.Equal(t, "7", res[1].ID)
	assert.Equal(t, 2, res[1].Rank)
	assert.InDelta(t, 0.42, res[1].Score, 1e-6)

	require.Len(t, fake.queries, 1)
	assert.EqualValues(t, 3, fake.queries[0]["limit"])
	assert.Equal(t, true, fake.queries[0]["with_payload"])
}

func TestSearch_MissingCollection(t *testing.T) {
	srv := httptest.NewServer(newFakeQdrant())
	defer srv.Close()

	s := NewStorage(Config{URL: srv.URL})
	_, err := s.Search(context.Background(), "other", []float32{1}, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}
