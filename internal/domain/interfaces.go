package domain

import (
	"context"
	"errors"
)

var (
	// ErrSchemaMismatch is returned when a vector's length differs from the
	// collection's configured dimension.
	ErrSchemaMismatch = errors.New("vector dimension does not match collection")
	// ErrUnsupportedFormat marks a file extension with no parsing strategy.
	// Parsers report it through Format, never as a Parse error.
	ErrUnsupportedFormat = errors.New("unsupported document format")
	// ErrEmptyQuestion is returned when a question has no text.
	ErrEmptyQuestion = errors.New("question is empty")
)

// Document represents a single user-supplied file and its extracted text.
type Document struct {
	Path string
	Name string
	Text string
}

// Chunk is a word-bounded slice of a document's text.
type Chunk struct {
	Index     int
	WordStart int
	WordEnd   int
	Text      string
}

// Payload is the data stored next to each vector.
type Payload struct {
	Text   string `json:"text"`
	Source string `json:"source"`
}

// Point is one indexed (id, vector, payload) record.
type Point struct {
	ID      string
	Vector  []float32
	Payload Payload
}

// SearchResult represents a retrieved point with its similarity score.
// Rank starts at 1 for the most similar result.
type SearchResult struct {
	ID      string
	Payload Payload
	Score   float32
	Rank    int
}

// Collection describes the vector-store namespace used by the application.
type Collection struct {
	Name      string
	Dimension int
	Distance  string
}

// Prompt is a system+user message pair sent to the generation service.
type Prompt struct {
	System string
	User   string
	Model  string
}

// Answer is a generated response together with what produced it.
type Answer struct {
	Question string
	Context  string
	Text     string
}

// Parser converts a file path into plain text.
type Parser interface {
	Parse(path string) (string, error)
}

// Chunker splits text into ordered chunks suitable for embedding.
type Chunker interface {
	Chunk(text string) []Chunk
}

// Embedder converts free text into a fixed-length vector.
// Implementations must be safe for concurrent use.
type Embedder interface {
	Name() string
	Dimension() int
	Embed(ctx context.Context, text string) ([]float32, error)
}

// VectorStore manages points in a named collection and supports similarity search.
// Implementations must be safe for concurrent use.
type VectorStore interface {
	EnsureCollection(ctx context.Context, c Collection) error
	Upsert(ctx context.Context, collection string, points []Point) error
	Search(ctx context.Context, collection string, vector []float32, topK int) ([]SearchResult, error)
}

// Generator sends a prompt to a completion service and returns the answer text.
type Generator interface {
	Name() string
	Complete(ctx context.Context, p Prompt) (string, error)
}
