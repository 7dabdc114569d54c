// Package llm wraps the chat-completion backend used for intent
// extraction, classification, specialist reasoning, and synthesis. The
// client is stateless and safe for concurrent use.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
)

// Options configures the client.
type Options struct {
	APIKey  string
	BaseURL string // OpenAI-compatible endpoint; empty for the default
	Model   string
	Timeout time.Duration // per-call deadline, default 60s
}

// Client issues chat completions.
type Client struct {
	api     *openai.Client
	model   string
	timeout time.Duration
	log     zerolog.Logger
}

// New builds a client. The model and timeout apply to every call unless the
// caller's context imposes a shorter deadline.
func New(opts Options, log zerolog.Logger) *Client {
	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		api:     openai.NewClientWithConfig(cfg),
		model:   opts.Model,
		timeout: timeout,
		log:     log.With().Str("component", "llm").Logger(),
	}
}

// Complete sends one system+user exchange and returns the reply text.
func (c *Client) Complete(ctx context.Context, system, user string, temperature float32) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// CompleteJSON runs Complete and extracts the first balanced JSON object
// from the reply, tolerating surrounding prose and code fences.
func (c *Client) CompleteJSON(ctx context.Context, system, user string, out any) error {
	reply, err := c.Complete(ctx, system, user, 0.1)
	if err != nil {
		return err
	}
	raw, err := ExtractJSON(reply)
	if err != nil {
		return fmt.Errorf("no JSON in completion: %w", err)
	}
	return json.Unmarshal(raw, out)
}
