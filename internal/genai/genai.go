// Package genai provides GenAI-enhanced operations using the OpenAI API.
package genai

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Default configuration for model calls.
const (
	// DefaultModel is the chat model used when none is configured.
	DefaultModel = openai.ChatModelGPT4oMini
	// DefaultTimeout bounds a single chat completion call.
	DefaultTimeout = 30 * time.Second
	// DefaultMaxTokens caps the length of generated replies.
	DefaultMaxTokens = 1000
)

// ClientInterface defines the operations the rest of the system needs from the
// model provider. Callers depend on this interface so tests can substitute a mock.
type ClientInterface interface {
	// GeneratePrompt generates a reply from a system prompt and a user message.
	GeneratePrompt(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Opts holds configuration for the GenAI client.
type Opts struct {
	APIKey    string
	Model     openai.ChatModel
	Timeout   time.Duration
	MaxTokens int64
}

// Option configures the GenAI client.
type Option func(*Opts)

// WithAPIKey sets the OpenAI API key.
func WithAPIKey(key string) Option {
	return func(o *Opts) { o.APIKey = key }
}

// WithModel sets the chat model identifier.
func WithModel(model string) Option {
	return func(o *Opts) { o.Model = openai.ChatModel(model) }
}

// WithTimeout bounds each model call.
func WithTimeout(d time.Duration) Option {
	return func(o *Opts) { o.Timeout = d }
}

// Client wraps the OpenAI chat completion service.
type Client struct {
	client    openai.Client
	model     openai.ChatModel
	timeout   time.Duration
	maxTokens int64
}

// NewClient initializes a GenAI client. The API key falls back to the
// OPENAI_API_KEY environment variable when not provided via options.
func NewClient(opts ...Option) (*Client, error) {
	cfg := Opts{
		Model:     DefaultModel,
		Timeout:   DefaultTimeout,
		MaxTokens: DefaultMaxTokens,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key not set")
	}

	slog.Debug("genai.NewClient: creating client", "model", cfg.Model, "timeout", cfg.Timeout)
	return &Client{
		client:    openai.NewClient(option.WithAPIKey(cfg.APIKey)),
		model:     cfg.Model,
		timeout:   cfg.Timeout,
		maxTokens: cfg.MaxTokens,
	}, nil
}

// GeneratePrompt generates a reply based on the provided system and user prompts.
// The call is bounded by the configured timeout; a timeout surfaces as an error.
func (c *Client) GeneratePrompt(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	completion, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userPrompt),
		},
		MaxTokens: openai.Int(c.maxTokens),
	})
	if err != nil {
		slog.Error("genai.GeneratePrompt: chat completion failed", "error", err, "model", c.model)
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(completion.Choices) == 0 {
		slog.Error("genai.GeneratePrompt: no choices returned", "model", c.model)
		return "", fmt.Errorf("no choices returned")
	}

	reply := completion.Choices[0].Message.Content
	slog.Debug("genai.GeneratePrompt: completion succeeded", "model", c.model, "replyLength", len(reply))
	return reply, nil
}
