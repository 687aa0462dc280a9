// Package dispatch sends normalized prompts to the upstream models. One
// attempt against the primary model, and on failure exactly one more
// against the fallback; no backoff, no queue. Admission control is the
// backpressure mechanism, so failing fast here is deliberate.
package dispatch

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/worktide/ai-gateway/internal/domain"
	"github.com/worktide/ai-gateway/internal/upstream"
)

const defaultCallTimeout = 45 * time.Second

// Request is one dispatch: the resolved model pair plus the prompts.
type Request struct {
	Primary   string
	Fallback  string
	System    string
	User      string
	MaxTokens int
	APIKey    string
}

// Result is the raw upstream outcome handed to the normalizer.
type Result struct {
	Text         string
	TokensIn     int
	TokensOut    int
	ModelUsed    string
	UsedFallback bool
}

// Dispatcher routes completion calls to the provider matching the model
// name and applies the per-call timeout.
type Dispatcher struct {
	anthropic upstream.Client
	openai    upstream.Client
	timeout   time.Duration
	logger    *slog.Logger
}

// Option configures the dispatcher.
type Option func(*Dispatcher)

// WithCallTimeout overrides the per-attempt upstream timeout.
func WithCallTimeout(d time.Duration) Option {
	return func(disp *Dispatcher) {
		disp.timeout = d
	}
}

// NewDispatcher creates a dispatcher over the two upstream clients.
func NewDispatcher(anthropicClient, openaiClient upstream.Client, logger *slog.Logger, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		anthropic: anthropicClient,
		openai:    openaiClient,
		timeout:   defaultCallTimeout,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch runs the two-attempt pipeline. The fallback is attempted on
// any primary failure; when both fail, the returned error carries the
// fallback's failure detail, wrapped as an upstream error.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) (*Result, error) {
	completion, err := d.attempt(ctx, req.Primary, req)
	if err == nil {
		return resultFrom(completion, req.Primary, false), nil
	}

	if req.Fallback == "" || req.Fallback == req.Primary {
		return nil, domain.ErrUpstream(err.Error()).WithCause(err)
	}

	d.logger.Warn("primary model failed, trying fallback",
		slog.String("primary", req.Primary),
		slog.String("fallback", req.Fallback),
		slog.String("error", err.Error()))

	completion, err = d.attempt(ctx, req.Fallback, req)
	if err != nil {
		return nil, domain.ErrUpstream(err.Error()).WithCause(err)
	}
	return resultFrom(completion, req.Fallback, true), nil
}

func (d *Dispatcher) attempt(ctx context.Context, model string, req Request) (*upstream.Completion, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	return d.clientFor(model).Complete(ctx, upstream.Request{
		Model:        model,
		SystemPrompt: req.System,
		UserPrompt:   req.User,
		MaxTokens:    req.MaxTokens,
		APIKey:       req.APIKey,
	})
}

// clientFor picks the provider by model-name prefix. Unknown prefixes go
// to the OpenAI-compatible client, which most hosted providers speak.
func (d *Dispatcher) clientFor(model string) upstream.Client {
	if strings.HasPrefix(model, "claude-") {
		return d.anthropic
	}
	return d.openai
}

func resultFrom(c *upstream.Completion, requested string, usedFallback bool) *Result {
	model := c.Model
	if model == "" {
		model = requested
	}
	return &Result{
		Text:         c.Text,
		TokensIn:     c.TokensIn,
		TokensOut:    c.TokensOut,
		ModelUsed:    model,
		UsedFallback: usedFallback,
	}
}
