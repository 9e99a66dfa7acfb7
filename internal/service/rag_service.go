package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"docrag/internal/domain"
	"docrag/internal/logger"
	"docrag/internal/parser"
	"docrag/internal/vectorstore"
)

const (
	DefaultCollection = "docs"

	SystemPrompt = "You are a helpful assistant. Use the provided context to answer the user's question. " +
		"If the answer is not in the context, say you don't know based on the documents."
)

// Deps are the capabilities the service composes. All of them are shared by
// concurrent invocations and must be safe for concurrent use.
type Deps struct {
	Parser    domain.Parser
	Chunker   domain.Chunker
	Embedder  domain.Embedder
	Store     domain.VectorStore
	Generator domain.Generator
}

type Options struct {
	Collection string
	Distance   string
	TopK       int
	// Model overrides the generator's own model resolution when set.
	Model string
}

// IndexReport describes the outcome of indexing one file. Indexed is false
// for expected conditions such as an empty or unsupported document.
type IndexReport struct {
	Source  string
	Indexed bool
	Reason  string
	Chunks  int
}

type RAGService struct {
	deps Deps
	opts Options
}

func NewRAGService(deps Deps, opts Options) *RAGService {
	if opts.Collection == "" {
		opts.Collection = DefaultCollection
	}
	if opts.Distance == "" {
		opts.Distance = vectorstore.DistanceCosine
	}
	opts.TopK = vectorstore.NormalizeTopK(opts.TopK)
	return &RAGService{deps: deps, opts: opts}
}

// Collection returns the collection the service reads and writes.
func (s *RAGService) Collection() domain.Collection {
	return domain.Collection{
		Name:      s.opts.Collection,
		Dimension: s.deps.Embedder.Dimension(),
		Distance:  s.opts.Distance,
	}
}

// Setup makes sure the collection exists. A store that cannot be reached is
// logged and skipped; later Upsert and Search calls report their own errors.
func (s *RAGService) Setup(ctx context.Context) {
	c := s.Collection()
	if err := s.deps.Store.EnsureCollection(ctx, c); err != nil {
		if errors.Is(err, domain.ErrSchemaMismatch) {
			logger.Warn("collection %q does not match embedder %s (%d dims): %v", c.Name, s.deps.Embedder.Name(), c.Dimension, err)
			return
		}
		logger.Warn("could not ensure collection %q: %v", c.Name, err)
		return
	}
	logger.Debug("collection %q ready (dimension=%d, distance=%s)", c.Name, c.Dimension, c.Distance)
}

// IndexDocument parses, chunks and embeds one file, then upserts all of its
// points in a single batch. Empty text is reported through IndexReport and
// never touches the store.
func (s *RAGService) IndexDocument(ctx context.Context, path string) (IndexReport, error) {
	source := filepath.Base(path)
	report := IndexReport{Source: source}

	text, err := s.deps.Parser.Parse(path)
	if err != nil {
		return report, fmt.Errorf("parse %s: %w", source, err)
	}
	if strings.TrimSpace(text) == "" {
		report.Reason = "no text could be extracted"
		if parser.DetectFormat(path) == parser.FormatUnsupported {
			report.Reason = fmt.Sprintf("%v: %q", domain.ErrUnsupportedFormat, filepath.Ext(path))
		}
		logger.Info("index %s skipped: %s", source, report.Reason)
		return report, nil
	}

	chunks := s.deps.Chunker.Chunk(text)
	points := make([]domain.Point, 0, len(chunks))
	for _, ch := range chunks {
		vec, err := s.deps.Embedder.Embed(ctx, ch.Text)
		if err != nil {
			return report, fmt.Errorf("embed chunk %d of %s: %w", ch.Index, source, err)
		}
		points = append(points, domain.Point{
			ID:      uuid.NewString(),
			Vector:  vec,
			Payload: domain.Payload{Text: ch.Text, Source: source},
		})
	}
	if err := s.deps.Store.Upsert(ctx, s.opts.Collection, points); err != nil {
		return report, fmt.Errorf("upsert %s: %w", source, err)
	}

	report.Indexed = true
	report.Chunks = len(points)
	logger.Info("indexed %s: %d chunks", source, report.Chunks)
	return report, nil
}

// IndexPaths indexes every file matched by the given paths or glob patterns,
// stopping at the first error or once ctx is cancelled. progress, when
// non-nil, is called with each file path before it is indexed.
func (s *RAGService) IndexPaths(ctx context.Context, patterns []string, progress func(path string)) ([]IndexReport, error) {
	var reports []IndexReport
	for _, p := range patterns {
		matches, err := filepath.Glob(p)
		if err != nil || matches == nil {
			matches = []string{p}
		}
		for _, m := range matches {
			if err := ctx.Err(); err != nil {
				return reports, err
			}
			if progress != nil {
				progress(m)
			}
			r, err := s.IndexDocument(ctx, m)
			if err != nil {
				return reports, err
			}
			reports = append(reports, r)
		}
	}
	return reports, nil
}

// Search embeds the question and returns up to topK results, most similar first.
// A non-positive topK uses the configured default.
func (s *RAGService) Search(ctx context.Context, question string, topK int) ([]domain.SearchResult, error) {
	if topK <= 0 {
		topK = s.opts.TopK
	}
	vec, err := s.deps.Embedder.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}
	return s.deps.Store.Search(ctx, s.opts.Collection, vec, topK)
}

// SearchContext joins the payload text of the top results with newlines.
func (s *RAGService) SearchContext(ctx context.Context, question string, topK int) (string, error) {
	results, err := s.Search(ctx, question, topK)
	if err != nil {
		return "", err
	}
	texts := make([]string, len(results))
	for i, r := range results {
		texts[i] = r.Payload.Text
	}
	return strings.Join(texts, "\n"), nil
}

// GenerateAnswer asks the generator to answer from context. Failures are
// returned as answer text so the caller always has something to display.
func (s *RAGService) GenerateAnswer(ctx context.Context, question, contextText, model string) string {
	if model == "" {
		model = s.opts.Model
	}
	prompt := domain.Prompt{
		System: SystemPrompt,
		User:   fmt.Sprintf("Context: %s\n\nQuestion: %s", contextText, question),
		Model:  model,
	}
	answer, err := s.deps.Generator.Complete(ctx, prompt)
	if err != nil {
		logger.Warn("generation via %s failed: %v", s.deps.Generator.Name(), err)
		return fmt.Sprintf("Error querying %s: %v", s.deps.Generator.Name(), err)
	}
	return answer
}

// Answer runs retrieval and generation for one question.
func (s *RAGService) Answer(ctx context.Context, question string) (domain.Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return domain.Answer{}, domain.ErrEmptyQuestion
	}
	contextText, err := s.SearchContext(ctx, question, s.opts.TopK)
	if err != nil {
		return domain.Answer{Question: question}, fmt.Errorf("search: %w", err)
	}
	return domain.Answer{
		Question: question,
		Context:  contextText,
		Text:     s.GenerateAnswer(ctx, question, contextText, ""),
	}, nil
}
