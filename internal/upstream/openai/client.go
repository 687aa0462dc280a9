// Package openai adapts the go-openai SDK to the gateway's upstream
// contract.
package openai

import (
	"context"
	"fmt"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/worktide/ai-gateway/internal/upstream"
)

// Client calls the OpenAI chat completions API. The SDK client is built
// per call because the credential can be tenant-specific.
type Client struct {
	baseURL string
}

// ClientOption configures the client.
type ClientOption func(*Client)

// WithBaseURL sets a custom base URL.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

var _ upstream.Client = (*Client)(nil)

// NewClient creates an OpenAI upstream client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) sdk(apiKey string) *goopenai.Client {
	cfg := goopenai.DefaultConfig(apiKey)
	if c.baseURL != "" {
		cfg.BaseURL = c.baseURL
	}
	return goopenai.NewClientWithConfig(cfg)
}

// Complete sends one non-streaming chat completion request.
func (c *Client) Complete(ctx context.Context, req upstream.Request) (*upstream.Completion, error) {
	resp, err := c.sdk(req.APIKey).CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model: req.Model,
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleSystem, Content: req.SystemPrompt},
			{Role: goopenai.ChatMessageRoleUser, Content: req.UserPrompt},
		},
		MaxTokens: req.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("openai API error: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai API returned no choices")
	}

	return &upstream.Completion{
		Text:      resp.Choices[0].Message.Content,
		Model:     resp.Model,
		TokensIn:  resp.Usage.PromptTokens,
		TokensOut: resp.Usage.CompletionTokens,
	}, nil
}
