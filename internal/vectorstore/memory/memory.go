package memory

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"sync"

	chromem "github.com/philippgille/chromem-go"

	"docrag/internal/domain"
	"docrag/internal/logger"
	"docrag/internal/vectorstore"
)

// errNoEmbedding is returned by the embedding func handed to chromem. Points
// always carry precomputed vectors, so chromem must never embed on its own.
var errNoEmbedding = errors.New("embedding must be precomputed")

func precomputed(context.Context, string) ([]float32, error) { return nil, errNoEmbedding }

// dimensionsCollection holds one marker document per collection, keyed by
// collection name, recording its vector size so it survives export and import.
const dimensionsCollection = "_docrag_dimensions"

// unknownDimension marks a collection whose size is known only to differ
// from the configured one; every vector is rejected for it.
const unknownDimension = -1

// Storage is an in-process vector store backed by chromem-go. Only cosine
// similarity is supported. When Path is set the database is loaded from and
// saved to a gzip'd gob file so separate CLI runs share one index.
type Storage struct {
	db   *chromem.DB
	path string

	mu         sync.RWMutex
	dimensions map[string]int

	// writeMu serialises document writes with export; chromem reads the
	// document maps without locking while exporting.
	writeMu sync.Mutex
}

// Config controls persistence. An empty Path keeps everything in memory.
type Config struct {
	Path string
}

func NewStorage(cfg Config) (*Storage, error) {
	s := &Storage{
		db:         chromem.NewDB(),
		path:       cfg.Path,
		dimensions: make(map[string]int),
	}
	if cfg.Path == "" {
		return s, nil
	}
	if _, err := os.Stat(cfg.Path); err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("stat %s: %w", cfg.Path, err)
	}
	if err := s.db.ImportFromFile(cfg.Path, ""); err != nil {
		return nil, fmt.Errorf("import from file: %w", err)
	}
	logger.Debug("memory: loaded %d collections from %s", len(s.db.ListCollections()), cfg.Path)
	return s, nil
}

// EnsureCollection creates the collection when absent. Existing collections
// are left untouched; their vector size is recovered so later writes are
// still checked.
func (s *Storage) EnsureCollection(ctx context.Context, c domain.Collection) error {
	if c.Dimension <= 0 {
		return errors.New("invalid dimension")
	}
	if c.Distance != "" && !strings.EqualFold(c.Distance, vectorstore.DistanceCosine) {
		return fmt.Errorf("memory store supports only %s distance, got %s", vectorstore.DistanceCosine, c.Distance)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if col := s.db.GetCollection(c.Name, precomputed); col != nil {
		dim, err := s.existingDimension(ctx, col, c.Dimension)
		if errors.Is(err, domain.ErrSchemaMismatch) {
			s.setDimension(c.Name, unknownDimension)
		}
		if err != nil {
			return err
		}
		s.setDimension(c.Name, dim)
		if dim != c.Dimension {
			return fmt.Errorf("collection %q has %d dimensions, wanted %d: %w", c.Name, dim, c.Dimension, domain.ErrSchemaMismatch)
		}
		return nil
	}
	if _, err := s.db.CreateCollection(c.Name, nil, precomputed); err != nil {
		return fmt.Errorf("create collection %q: %w", c.Name, err)
	}
	if err := s.recordDimension(ctx, c.Name, c.Dimension); err != nil {
		return err
	}
	s.setDimension(c.Name, c.Dimension)
	return s.persist()
}

// existingDimension returns the stored vector size of col. It prefers the
// marker document, then the embedding length of a stored point, and falls
// back to want for an empty collection.
func (s *Storage) existingDimension(ctx context.Context, col *chromem.Collection, want int) (int, error) {
	if meta := s.db.GetCollection(dimensionsCollection, precomputed); meta != nil {
		if doc, err := meta.GetByID(ctx, col.Name); err == nil {
			if dim, err := strconv.Atoi(doc.Metadata["dimension"]); err == nil && dim > 0 {
				return dim, nil
			}
		}
	}
	if col.Count() == 0 {
		return want, nil
	}
	query := make([]float32, want)
	query[0] = 1
	res, err := col.QueryEmbedding(ctx, query, 1, nil, nil)
	if err != nil {
		if strings.Contains(err.Error(), "same length") {
			return 0, fmt.Errorf("collection %q does not hold %d-dimensional vectors: %w", col.Name, want, domain.ErrSchemaMismatch)
		}
		return 0, fmt.Errorf("read dimension of %q: %w", col.Name, err)
	}
	if len(res) == 0 || len(res[0].Embedding) == 0 {
		return want, nil
	}
	return len(res[0].Embedding), nil
}

func (s *Storage) recordDimension(ctx context.Context, name string, dim int) error {
	meta, err := s.db.GetOrCreateCollection(dimensionsCollection, nil, precomputed)
	if err != nil {
		return fmt.Errorf("create %s: %w", dimensionsCollection, err)
	}
	return meta.AddDocument(ctx, chromem.Document{
		ID:        name,
		Embedding: []float32{1},
		Content:   name,
		Metadata:  map[string]string{"dimension": strconv.Itoa(dim)},
	})
}

func (s *Storage) setDimension(name string, dim int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dimensions[name] = dim
}

func (s *Storage) collection(name string) (*chromem.Collection, error) {
	col := s.db.GetCollection(name, precomputed)
	if col == nil {
		return nil, fmt.Errorf("collection %q not found", name)
	}
	return col, nil
}

func (s *Storage) checkDimension(collection string, vectors ...[]float32) error {
	s.mu.RLock()
	dim, ok := s.dimensions[collection]
	s.mu.RUnlock()
	if !ok {
		return nil
	}
	if dim == unknownDimension {
		return fmt.Errorf("collection %q holds vectors of another size: %w", collection, domain.ErrSchemaMismatch)
	}
	return vectorstore.CheckDimension(dim, vectors...)
}

// Upsert adds the points, replacing any with the same id, and persists the
// database when a path is configured.
func (s *Storage) Upsert(ctx context.Context, collection string, points []domain.Point) error {
	if len(points) == 0 {
		return nil
	}
	col, err := s.collection(collection)
	if err != nil {
		return err
	}
	if err := s.checkDimension(collection, vectorstore.PointVectors(points)...); err != nil {
		return err
	}
	docs := make([]chromem.Document, len(points))
	for i, p := range points {
		docs[i] = chromem.Document{
			ID:        p.ID,
			Embedding: p.Vector,
			Content:   p.Payload.Text,
			Metadata:  map[string]string{"source": p.Payload.Source},
		}
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := col.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("chromem add: %w", err)
	}
	return s.persist()
}

// Search returns up to topK points ordered by descending cosine similarity.
func (s *Storage) Search(ctx context.Context, collection string, vector []float32, topK int) ([]domain.SearchResult, error) {
	topK = vectorstore.NormalizeTopK(topK)
	col, err := s.collection(collection)
	if err != nil {
		return nil, err
	}
	if err := s.checkDimension(collection, vector); err != nil {
		return nil, err
	}
	// chromem-go requires nResults <= collection size.
	count := col.Count()
	if count == 0 {
		return nil, nil
	}
	if topK > count {
		topK = count
	}
	res, err := col.QueryEmbedding(ctx, vector, topK, nil, nil)
	if err != nil {
		if strings.Contains(err.Error(), "same length") {
			return nil, fmt.Errorf("%w: %v", domain.ErrSchemaMismatch, err)
		}
		return nil, fmt.Errorf("chromem query: %w", err)
	}
	results := make([]domain.SearchResult, len(res))
	for i, r := range res {
		results[i] = domain.SearchResult{
			ID:      r.ID,
			Payload: domain.Payload{Text: r.Content, Source: r.Metadata["source"]},
			Score:   r.Similarity,
			Rank:    i + 1,
		}
	}
	return results, nil
}

// Count returns the number of points in the collection, or 0 if it does not exist.
func (s *Storage) Count(collection string) int {
	col := s.db.GetCollection(collection, precomputed)
	if col == nil {
		return 0
	}
	return col.Count()
}

// persist exports the database; callers hold writeMu.
func (s *Storage) persist() error {
	if s.path == "" {
		return nil
	}
	if err := s.db.ExportToFile(s.path, true, ""); err != nil {
		return fmt.Errorf("export to file: %w", err)
	}
	return nil
}
