// Package upstream defines the provider-neutral completion contract the
// dispatcher uses to talk to language-model APIs.
package upstream

import "context"

// Request is one completion attempt against a specific model.
type Request struct {
	Model        string
	SystemPrompt string
	UserPrompt   string
	MaxTokens    int

	// APIKey is the upstream credential for this call: the tenant's own
	// key, or the process-wide fallback.
	APIKey string
}

// Completion is the raw upstream result before normalization.
type Completion struct {
	Text      string
	Model     string
	TokensIn  int
	TokensOut int
}

// Client is implemented once per upstream provider.
type Client interface {
	Complete(ctx context.Context, req Request) (*Completion, error)
}
