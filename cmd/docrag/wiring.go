package main

import (
	"fmt"

	"docrag/internal/chunker"
	"docrag/internal/config"
	"docrag/internal/domain"
	"docrag/internal/embedding/hashing"
	"docrag/internal/embedding/ollama"
	"docrag/internal/embedding/openai"
	"docrag/internal/llm"
	"docrag/internal/parser"
	"docrag/internal/service"
	"docrag/internal/vectorstore/memory"
	"docrag/internal/vectorstore/qdrant"
)

// buildService assembles the components selected by cfg.
func buildService(cfg *config.AppConfig) (*service.RAGService, error) {
	dim := cfg.Collection.Dimension

	var emb domain.Embedder
	switch cfg.Embedder.Type {
	case "hashing", "":
		emb = hashing.NewEmbedder(dim)
	case "ollama":
		emb = ollama.NewEmbedder(ollama.Config{
			BaseURL:   cfg.Embedder.Ollama.BaseURL,
			Model:     cfg.Embedder.Ollama.Model,
			Dimension: dim,
			Timeout:   config.Seconds(cfg.Embedder.Ollama.TimeoutSecs),
		})
	case "openai":
		client, err := openai.NewClient(openai.Config{
			BaseURL:   cfg.Embedder.OpenAI.BaseURL,
			APIKeyEnv: cfg.Embedder.OpenAI.APIKeyEnv,
			Model:     cfg.Embedder.OpenAI.Model,
			Dimension: dim,
			Timeout:   config.Seconds(cfg.Embedder.OpenAI.TimeoutSecs),
		})
		if err != nil {
			return nil, fmt.Errorf("openai embedder init failed: %w", err)
		}
		emb = client
	default:
		return nil, fmt.Errorf("unknown embedder: %s", cfg.Embedder.Type)
	}

	var st domain.VectorStore
	switch cfg.VectorStore.Type {
	case "qdrant", "":
		st = qdrant.NewStorage(qdrant.Config{
			URL:     cfg.VectorStore.Qdrant.URL,
			APIKey:  cfg.VectorStore.Qdrant.APIKey,
			Timeout: config.Seconds(cfg.VectorStore.Qdrant.TimeoutSecs),
		})
	case "memory":
		mem, err := memory.NewStorage(memory.Config{Path: cfg.VectorStore.Memory.Path})
		if err != nil {
			return nil, fmt.Errorf("memory store init failed: %w", err)
		}
		st = mem
	default:
		return nil, fmt.Errorf("unknown vector store: %s", cfg.VectorStore.Type)
	}

	gen := llm.New(llm.Config{
		Name:      cfg.Generator.Name,
		BaseURL:   cfg.Generator.BaseURL,
		APIKeyEnv: cfg.Generator.APIKeyEnv,
		ModelEnv:  cfg.Generator.ModelEnv,
		Model:     cfg.Generator.Model,
		Timeout:   config.Seconds(cfg.Generator.TimeoutSecs),
	})

	return service.NewRAGService(service.Deps{
		Parser:    parser.New(),
		Chunker:   chunker.NewWordChunker(cfg.Chunker.WordsPerChunk),
		Embedder:  emb,
		Store:     st,
		Generator: gen,
	}, service.Options{
		Collection: cfg.Collection.Name,
		Distance:   cfg.Collection.Distance,
		TopK:       cfg.Search.TopK,
	}), nil
}
