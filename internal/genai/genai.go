// Package genai provides LLM-backed text operations using the OpenAI API.
//
// The dialogue engine uses it for intent tie-breaking, compatibility
// judgement, troubleshooting guidance and install summaries. Every caller
// treats a failure as "no answer" and falls back to deterministic behavior.
package genai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// ErrNoChoicesReturned indicates the API responded without any choices.
var ErrNoChoicesReturned = errors.New("no choices returned")

// chatService defines the minimal interface for chat completions, allowing
// the real client to be swapped for a mock in tests.
type chatService interface {
	New(ctx context.Context, body openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// Opts holds configuration options for the GenAI client.
type Opts struct {
	// APIKey is the OpenAI API key.
	APIKey string
	// Model overrides the default chat model.
	Model string
}

// Option configures the GenAI client.
type Option func(*Opts)

// WithAPIKey sets the OpenAI API key.
func WithAPIKey(key string) Option {
	return func(o *Opts) { o.APIKey = key }
}

// WithModel overrides the chat model used for all requests.
func WithModel(model string) Option {
	return func(o *Opts) { o.Model = model }
}

// Client wraps the OpenAI chat completion service.
type Client struct {
	chat  chatService
	model string
}

// NewClient creates a GenAI client from the provided options. An API key is
// required.
func NewClient(opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.APIKey == "" {
		slog.Error("GenAI NewClient: API key not provided")
		return nil, fmt.Errorf("OpenAI API key not provided")
	}
	model := cfg.Model
	if model == "" {
		model = openai.ChatModelGPT4oMini
	}
	cli := openai.NewClient(option.WithAPIKey(cfg.APIKey))
	slog.Debug("GenAI client created", "model", model)
	return &Client{chat: &cli.Chat.Completions, model: model}, nil
}

// Generate produces free-form guidance text from a system and user prompt.
func (c *Client) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return c.complete(ctx, systemPrompt, userPrompt, 0.3, 500)
}

// Classify produces a short, low-temperature answer suited to
// classification and strict-JSON judgement prompts.
func (c *Client) Classify(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return c.complete(ctx, systemPrompt, userPrompt, 0.1, 150)
}

func (c *Client) complete(ctx context.Context, systemPrompt, userPrompt string, temperature float64, maxTokens int64) (string, error) {
	slog.Debug("GenAI complete: sending request", "model", c.model, "temperature", temperature,
		"systemLen", len(systemPrompt), "userLen", len(userPrompt))
	resp, err := c.chat.New(ctx, openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userPrompt),
		},
		Temperature: openai.Float(temperature),
		MaxTokens:   openai.Int(maxTokens),
	})
	if err != nil {
		slog.Error("GenAI complete: request failed", "error", err)
		return "", err
	}
	if len(resp.Choices) == 0 {
		slog.Error("GenAI complete: response contained no choices")
		return "", ErrNoChoicesReturned
	}
	out := resp.Choices[0].Message.Content
	slog.Debug("GenAI complete: response received", "responseLen", len(out))
	return out, nil
}
