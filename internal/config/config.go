package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"
)

// EnvPrefix marks environment overrides. A double underscore separates
// nesting levels: DOCRAG_VECTOR_STORE__TYPE=memory sets vector_store.type.
const EnvPrefix = "DOCRAG_"

// CollectionConfig describes the single vector-store collection.
type CollectionConfig struct {
	Name      string `yaml:"name" koanf:"name"`
	Dimension int    `yaml:"dimension" koanf:"dimension"`
	Distance  string `yaml:"distance" koanf:"distance"`
}

// ChunkerConfig configures how documents are split into chunks.
type ChunkerConfig struct {
	WordsPerChunk int `yaml:"words_per_chunk" koanf:"words_per_chunk"`
}

type SearchConfig struct {
	TopK int `yaml:"top_k" koanf:"top_k"`
}

// OpenAIEmbedderConfig holds configuration for the OpenAI-compatible embedder.
type OpenAIEmbedderConfig struct {
	BaseURL     string `yaml:"base_url" koanf:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env" koanf:"api_key_env"`
	Model       string `yaml:"model" koanf:"model"`
	TimeoutSecs int    `yaml:"timeout_secs" koanf:"timeout_secs"`
}

type OllamaEmbedderConfig struct {
	BaseURL     string `yaml:"base_url" koanf:"base_url"`
	Model       string `yaml:"model" koanf:"model"`
	TimeoutSecs int    `yaml:"timeout_secs" koanf:"timeout_secs"`
}

// EmbedderConfig selects and configures the text embedder implementation.
// The vector size always comes from CollectionConfig.Dimension.
type EmbedderConfig struct {
	Type   string               `yaml:"type" koanf:"type"`
	OpenAI OpenAIEmbedderConfig `yaml:"openai" koanf:"openai"`
	Ollama OllamaEmbedderConfig `yaml:"ollama" koanf:"ollama"`
}

// QdrantConfig contains connection details for a Qdrant vector store.
// TimeoutSecs of 0 disables the client-side timeout.
type QdrantConfig struct {
	URL         string `yaml:"url" koanf:"url"`
	APIKey      string `yaml:"api_key" koanf:"api_key"`
	TimeoutSecs int    `yaml:"timeout_secs" koanf:"timeout_secs"`
}

// MemoryConfig configures the in-process store. An empty Path keeps the
// index in memory only.
type MemoryConfig struct {
	Path string `yaml:"path" koanf:"path"`
}

// VectorStoreConfig selects and configures the vector store implementation.
type VectorStoreConfig struct {
	Type   string       `yaml:"type" koanf:"type"`
	Qdrant QdrantConfig `yaml:"qdrant" koanf:"qdrant"`
	Memory MemoryConfig `yaml:"memory" koanf:"memory"`
}

// GeneratorConfig configures the chat completion service. Credentials are
// never stored here, only the names of the variables that hold them.
type GeneratorConfig struct {
	Name        string `yaml:"name" koanf:"name"`
	BaseURL     string `yaml:"base_url" koanf:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env" koanf:"api_key_env"`
	ModelEnv    string `yaml:"model_env" koanf:"model_env"`
	Model       string `yaml:"model" koanf:"model"`
	TimeoutSecs int    `yaml:"timeout_secs" koanf:"timeout_secs"`
}

type LogConfig struct {
	File    string `yaml:"file" koanf:"file"`
	Verbose bool   `yaml:"verbose" koanf:"verbose"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Collection  CollectionConfig  `yaml:"collection" koanf:"collection"`
	Chunker     ChunkerConfig     `yaml:"chunker" koanf:"chunker"`
	Search      SearchConfig      `yaml:"search" koanf:"search"`
	Embedder    EmbedderConfig    `yaml:"embedder" koanf:"embedder"`
	VectorStore VectorStoreConfig `yaml:"vector_store" koanf:"vector_store"`
	Generator   GeneratorConfig   `yaml:"generator" koanf:"generator"`
	Log         LogConfig         `yaml:"log" koanf:"log"`
}

// Load reads a config from path, starting from defaults and overlaying
// DOCRAG_* environment variables. A missing file is not an error.
func Load(path string) (*AppConfig, error) {
	k := koanf.New(".")
	cfg := DefaultConfig()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("reading config %s: %w", path, err)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("accessing config %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("loading env overrides: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}
	applyConfigDefaults(cfg)
	return cfg, nil
}

func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

// LoadDefault tries ./docrag.yaml first, then ~/.config/docrag/config.yaml.
// If neither exists, it writes defaults to ~/.config/docrag/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "docrag.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := DefaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	if err := DefaultConfig().Save(userPath); err != nil {
		return nil, "", err
	}
	cfg, err := Load(userPath)
	return cfg, userPath, err
}

// Save writes the config to the given path, creating directories as needed.
func (c *AppConfig) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yamlv3.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

func DefaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "docrag", "config.yaml"), nil
}

var (
	validEmbedders = map[string]bool{"hashing": true, "ollama": true, "openai": true}
	validStores    = map[string]bool{"qdrant": true, "memory": true}
	validDistances = map[string]bool{"Cosine": true, "Dot": true, "Euclid": true}
)

// Validate checks that the configuration contains usable values.
func (c *AppConfig) Validate() error {
	if strings.TrimSpace(c.Collection.Name) == "" {
		return errors.New("collection.name is required")
	}
	if c.Collection.Dimension <= 0 {
		return fmt.Errorf("collection.dimension must be positive, got %d", c.Collection.Dimension)
	}
	if !validDistances[c.Collection.Distance] {
		return fmt.Errorf("invalid collection.distance %q: must be one of Cosine, Dot, Euclid", c.Collection.Distance)
	}
	if c.Chunker.WordsPerChunk <= 0 {
		return fmt.Errorf("chunker.words_per_chunk must be positive, got %d", c.Chunker.WordsPerChunk)
	}
	if c.Search.TopK <= 0 {
		return fmt.Errorf("search.top_k must be positive, got %d", c.Search.TopK)
	}
	if !validEmbedders[c.Embedder.Type] {
		return fmt.Errorf("invalid embedder.type %q: must be one of hashing, ollama, openai", c.Embedder.Type)
	}
	if !validStores[c.VectorStore.Type] {
		return fmt.Errorf("invalid vector_store.type %q: must be one of qdrant, memory", c.VectorStore.Type)
	}
	if c.VectorStore.Type == "memory" && c.Collection.Distance != "Cosine" {
		return errors.New("vector_store.type memory supports only Cosine distance")
	}
	if c.VectorStore.Qdrant.TimeoutSecs < 0 || c.Generator.TimeoutSecs < 0 {
		return errors.New("timeouts must be non-negative")
	}
	return nil
}

// Seconds converts a *_secs field to a duration.
func Seconds(n int) time.Duration { return time.Duration(n) * time.Second }

func DefaultConfig() *AppConfig {
	cfg := &AppConfig{
		Collection: CollectionConfig{Name: "docs", Dimension: 384, Distance: "Cosine"},
		Chunker:    ChunkerConfig{WordsPerChunk: 500},
		Search:     SearchConfig{TopK: 3},
		Embedder:   EmbedderConfig{Type: "hashing"},
		VectorStore: VectorStoreConfig{
			Type:   "qdrant",
			Qdrant: QdrantConfig{URL: "http://localhost:6333"},
		},
		Generator: GeneratorConfig{
			Name:        "Groq",
			BaseURL:     "https://api.groq.com/openai/v1",
			APIKeyEnv:   "GROQ_API_KEY",
			ModelEnv:    "GROQ_MODEL",
			Model:       "llama-3.3-70b-versatile",
			TimeoutSecs: 60,
		},
	}
	applyConfigDefaults(cfg)
	return cfg
}

// applyConfigDefaults fills backend sections that a partial file left empty.
func applyConfigDefaults(cfg *AppConfig) {
	if cfg.Embedder.OpenAI.BaseURL == "" {
		cfg.Embedder.OpenAI.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Embedder.OpenAI.APIKeyEnv == "" {
		cfg.Embedder.OpenAI.APIKeyEnv = "OPENAI_API_KEY"
	}
	if cfg.Embedder.OpenAI.Model == "" {
		cfg.Embedder.OpenAI.Model = "text-embedding-3-small"
	}
	if cfg.Embedder.OpenAI.TimeoutSecs == 0 {
		cfg.Embedder.OpenAI.TimeoutSecs = 30
	}
	if cfg.Embedder.Ollama.BaseURL == "" {
		cfg.Embedder.Ollama.BaseURL = "http://localhost:11434"
	}
	if cfg.Embedder.Ollama.Model == "" {
		cfg.Embedder.Ollama.Model = "all-minilm"
	}
	if cfg.Embedder.Ollama.TimeoutSecs == 0 {
		cfg.Embedder.Ollama.TimeoutSecs = 30
	}
	if cfg.VectorStore.Qdrant.URL == "" {
		cfg.VectorStore.Qdrant.URL = "http://localhost:6333"
	}
}
