// Package llm talks to OpenAI-compatible chat completion services such as Groq.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"docrag/internal/domain"
)

const (
	DefaultName      = "Groq"
	DefaultBaseURL   = "https://api.groq.com/openai/v1"
	DefaultAPIKeyEnv = "GROQ_API_KEY"
	DefaultModelEnv  = "GROQ_MODEL"
	DefaultModel     = "llama-3.3-70b-versatile"
	DefaultTimeout   = 60 * time.Second
)

// ErrMissingAPIKey is returned by Complete when the key variable is unset.
var ErrMissingAPIKey = errors.New("missing API key")

// Config selects the endpoint and where credentials come from. The API key
// and model variable are read on every request so a key exported after
// startup is still picked up.
type Config struct {
	Name      string
	BaseURL   string
	APIKeyEnv string
	ModelEnv  string
	Model     string
	Timeout   time.Duration
}

// Client implements domain.Generator using the Chat Completions API.
type Client struct {
	name      string
	baseURL   string
	apiKeyEnv string
	modelEnv  string
	model     string
	http      *http.Client
}

func New(cfg Config) *Client {
	if cfg.Name == "" {
		cfg.Name = DefaultName
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.APIKeyEnv == "" {
		cfg.APIKeyEnv = DefaultAPIKeyEnv
	}
	if cfg.ModelEnv == "" {
		cfg.ModelEnv = DefaultModelEnv
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Client{
		name:      cfg.Name,
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		apiKeyEnv: cfg.APIKeyEnv,
		modelEnv:  cfg.ModelEnv,
		model:     cfg.Model,
		http:      &http.Client{Timeout: cfg.Timeout},
	}
}

func (c *Client) Name() string { return c.name }

// ResolveModel picks the model for a request: the explicit one, then the
// model environment variable, then the configured default.
func (c *Client) ResolveModel(requested string) string {
	if m := strings.TrimSpace(requested); m != "" {
		return m
	}
	if m := strings.TrimSpace(os.Getenv(c.modelEnv)); m != "" {
		return m
	}
	return c.model
}

func (c *Client) Complete(ctx context.Context, p domain.Prompt) (string, error) {
	key := strings.TrimSpace(os.Getenv(c.apiKeyEnv))
	if key == "" {
		return "", fmt.Errorf("%w: %s is not set", ErrMissingAPIKey, c.apiKeyEnv)
	}

	cfg := openai.DefaultConfig(key)
	cfg.BaseURL = c.baseURL
	cfg.HTTPClient = c.http
	client := openai.NewClientWithConfig(cfg)

	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if p.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: p.System})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: p.User})

	resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    c.ResolveModel(p.Model),
		Messages: messages,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
