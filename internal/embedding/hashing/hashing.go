// Package hashing provides a local, deterministic embedder based on feature hashing.
//
// Tokens and adjacent-token pairs are hashed into a fixed number of buckets with
// a sign bit, weighted by sublinear term frequency and L2-normalised. The same
// text always produces the same vector, and no model files or network are needed.
package hashing

import (
	"context"
	"errors"
	"hash/fnv"
	"math"
	"regexp"
	"strings"
)

// DefaultDimension matches the default collection dimension.
const DefaultDimension = 384

// ErrEmptyText is returned when asked to embed text with no content.
var ErrEmptyText = errors.New("cannot embed empty text")

// Embedder implements domain.Embedder. It is immutable after construction
// and safe for concurrent use.
type Embedder struct {
	dimension    int
	tokenPattern *regexp.Regexp
	stopwords    map[string]struct{}
}

// NewEmbedder creates a hashing embedder producing vectors of the given dimension.
func NewEmbedder(dimension int) *Embedder {
	if dimension <= 0 {
		dimension = DefaultDimension
	}
	return &Embedder{
		dimension:    dimension,
		tokenPattern: regexp.MustCompile(`[\p{L}\p{N}]+(?:['’][\p{L}\p{N}]+)*`),
		stopwords:    defaultStopwords(),
	}
}

// Name returns the identifier of this embedder implementation.
func (e *Embedder) Name() string { return "hashing" }

// Dimension returns the dimensionality of the produced embedding vectors.
func (e *Embedder) Dimension() int { return e.dimension }

// Embed computes the hashed feature vector for text.
func (e *Embedder) Embed(_ context.Context, text string) ([]float32, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, ErrEmptyText
	}
	features := e.features(trimmed)
	if len(features) == 0 {
		// Punctuation-only input still gets a stable, non-zero vector.
		features = map[string]int{strings.ToLower(trimmed): 1}
	}

	acc := make([]float64, e.dimension)
	for feat, count := range features {
		bucket, sign := e.bucket(feat)
		acc[bucket] += sign * (1 + math.Log(float64(count)))
	}

	norm := 0.0
	for _, v := range acc {
		norm += v * v
	}
	norm = math.Sqrt(norm)

	vec := make([]float32, e.dimension)
	if norm == 0 {
		// Every feature cancelled out; fall back to the strongest bucket of the raw text.
		bucket, _ := e.bucket(strings.ToLower(trimmed))
		vec[bucket] = 1
		return vec, nil
	}
	for i, v := range acc {
		vec[i] = float32(v / norm)
	}
	return vec, nil
}

func (e *Embedder) features(text string) map[string]int {
	tokens := e.tokenize(text)
	feats := make(map[string]int, len(tokens)*2)
	for i, tok := range tokens {
		feats[tok]++
		if i > 0 {
			feats[tokens[i-1]+" "+tok]++
		}
	}
	return feats
}

func (e *Embedder) bucket(feature string) (int, float64) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(feature))
	sum := h.Sum64()
	sign := 1.0
	if sum>>63 == 1 {
		sign = -1.0
	}
	return int(sum % uint64(e.dimension)), sign
}

func (e *Embedder) tokenize(text string) []string {
	raw := e.tokenPattern.FindAllString(strings.ToLower(text), -1)
	out := raw[:0]
	for _, t := range raw {
		if _, isStop := e.stopwords[t]; isStop {
			continue
		}
		out = append(out, t)
	}
	return out
}

func defaultStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at", "by", "with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "this", "that", "these", "those", "from", "so", "such", "into", "about", "than", "too", "very", "can", "will", "just", "should", "now",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
