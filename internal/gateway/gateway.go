// Package gateway is the server-side entry point every AI-assisted
// feature funnels through. It resolves policy, runs the admission gates,
// dispatches upstream with a fallback, normalizes the reply, and books
// audit and usage records.
package gateway

import (
	"context"
	"log/slog"
	"time"

	"github.com/worktide/ai-gateway/internal/audit"
	"github.com/worktide/ai-gateway/internal/dispatch"
	"github.com/worktide/ai-gateway/internal/domain"
	"github.com/worktide/ai-gateway/internal/identity"
	"github.com/worktide/ai-gateway/internal/normalize"
	"github.com/worktide/ai-gateway/internal/policy"
	"github.com/worktide/ai-gateway/internal/storage"
	"github.com/worktide/ai-gateway/internal/tokens"
	"github.com/worktide/ai-gateway/internal/usage"
)

// AssistRequest is the JSON body of POST /v1/ai/assist.
type AssistRequest struct {
	Module      string              `json:"module"`
	ActionType  string              `json:"action_type"`
	Prompt      string              `json:"prompt"`
	Context     map[string]any      `json:"context,omitempty"`
	DataSources []domain.DataSource `json:"data_sources,omitempty"`
}

// TokenCounts reports the upstream token consumption.
type TokenCounts struct {
	Input  int `json:"input"`
	Output int `json:"output"`
}

// Meta carries the request's bookkeeping alongside the response body.
type Meta struct {
	ModelUsed           string                `json:"model_used"`
	UsedFallback        bool                  `json:"used_fallback"`
	Tokens              TokenCounts           `json:"tokens"`
	AIMode              domain.Mode           `json:"ai_mode"`
	RequireConfirmation bool                  `json:"require_confirmation"`
	BudgetWarning       *domain.BudgetWarning `json:"budget_warning"`
}

// AssistResponse is the success envelope of POST /v1/ai/assist.
type AssistResponse struct {
	Success  bool                         `json:"success"`
	Response *domain.StructuredAIResponse `json:"response"`
	Meta     Meta                         `json:"meta"`
}

// Gateway wires the pipeline components. It is stateless per request;
// all shared state lives in the stores.
type Gateway struct {
	identity   identity.Resolver
	policies   *policy.Store
	trail      *audit.Trail
	dispatcher *dispatch.Dispatcher
	accountant *usage.Accountant
	usageStore storage.UsageStore
	estimator  *tokens.Estimator
	apiKey     string
	logger     *slog.Logger
	now        func() time.Time
}

// New creates a gateway. apiKey is the process-wide upstream credential
// used when a tenant supplies none of its own.
func New(
	resolver identity.Resolver,
	policies *policy.Store,
	trail *audit.Trail,
	dispatcher *dispatch.Dispatcher,
	accountant *usage.Accountant,
	usageStore storage.UsageStore,
	apiKey string,
	logger *slog.Logger,
) *Gateway {
	return &Gateway{
		identity:   resolver,
		policies:   policies,
		trail:      trail,
		dispatcher: dispatcher,
		accountant: accountant,
		usageStore: usageStore,
		estimator:  tokens.NewEstimator(),
		apiKey:     apiKey,
		logger:     logger,
		now:        time.Now,
	}
}

// Assist runs the full pipeline for one request. Every returned error is
// a *domain.GatewayError carrying its HTTP status and machine code.
func (g *Gateway) Assist(ctx context.Context, credential string, req *AssistRequest) (*AssistResponse, error) {
	id, err := g.identity.Resolve(ctx, credential)
	if err != nil {
		return nil, err
	}

	if req.Module == "" || req.Prompt == "" {
		return nil, domain.ErrInvalidRequest("module and prompt are required")
	}

	pol, err := g.policies.Load(ctx, id.TenantID)
	if err != nil {
		return nil, domain.ErrServer("policy store unavailable").WithCause(err)
	}

	desc := &domain.RequestDescriptor{
		TenantID:    id.TenantID,
		CallerID:    id.CallerID,
		Module:      req.Module,
		ActionType:  req.ActionType,
		Prompt:      req.Prompt,
		Context:     req.Context,
		DataSources: req.DataSources,
	}

	decision, err := policy.Admit(pol, desc)
	if err != nil {
		return nil, err
	}

	entryID := g.trail.Open(ctx, desc)

	apiKey := pol.APIKey
	if apiKey == "" {
		apiKey = g.apiKey
	}
	if apiKey == "" {
		cfgErr := domain.ErrNoAPIKey()
		g.trail.CloseError(ctx, entryID, cfgErr.Message)
		return nil, cfgErr
	}

	systemPrompt := dispatch.BuildSystemPrompt(pol.Mode)
	userPrompt := dispatch.BuildUserPrompt(desc)

	// The upstream call and the bookkeeping keep running even if the
	// caller disconnects: the provider has already incurred the cost, so
	// it must be booked. Only the per-attempt timeout cancels the call.
	bgCtx := context.WithoutCancel(ctx)
	result, err := g.dispatcher.Dispatch(bgCtx, dispatch.Request{
		Primary:   decision.PrimaryModel,
		Fallback:  decision.FallbackModel,
		System:    systemPrompt,
		User:      userPrompt,
		MaxTokens: decision.MaxTokens,
		APIKey:    apiKey,
	})
	if err != nil {
		g.trail.CloseError(bgCtx, entryID, err.Error())
		return nil, err
	}

	tokensIn, tokensOut := result.TokensIn, result.TokensOut
	if tokensIn == 0 {
		tokensIn = g.estimator.Count(result.ModelUsed, systemPrompt+userPrompt)
	}
	if tokensOut == 0 {
		tokensOut = g.estimator.Count(result.ModelUsed, result.Text)
	}

	normalized := normalize.Normalize(result.Text, pol.Mode)
	if normalized.Degraded {
		g.logger.Info("upstream reply degraded to unstructured response",
			slog.String("tenant_id", id.TenantID),
			slog.String("model", result.ModelUsed))
	}

	costCents := usage.CostCents(tokensIn, tokensOut)
	g.accountant.Record(bgCtx, id.TenantID, req.Module, id.CallerID, tokensIn, tokensOut, costCents)
	g.trail.CloseSuccess(bgCtx, entryID, result.ModelUsed, tokensIn, tokensOut, costCents)

	return &AssistResponse{
		Success:  true,
		Response: &normalized.Response,
		Meta: Meta{
			ModelUsed:           result.ModelUsed,
			UsedFallback:        result.UsedFallback,
			Tokens:              TokenCounts{Input: tokensIn, Output: tokensOut},
			AIMode:              pol.Mode,
			RequireConfirmation: pol.RequireUserConfirmation,
			BudgetWarning:       decision.Warning,
		},
	}, nil
}

// MonthlyUsage returns the caller tenant's counters for the current
// billing month plus the budget consumption percentage.
func (g *Gateway) MonthlyUsage(ctx context.Context, credential string) (*UsageReport, error) {
	id, err := g.identity.Resolve(ctx, credential)
	if err != nil {
		return nil, err
	}

	pol, err := g.policies.Load(ctx, id.TenantID)
	if err != nil {
		return nil, domain.ErrServer("policy store unavailable").WithCause(err)
	}

	counter, err := g.usageStore.GetMonthlyUsage(ctx, id.TenantID, domain.YearMonth(g.now()))
	if err != nil {
		return nil, domain.ErrServer("usage store unavailable").WithCause(err)
	}

	return &UsageReport{
		Usage:             counter,
		BudgetCents:       pol.MonthlyBudgetCents,
		UsedCents:         pol.CurrentMonthUsageCents,
		BudgetUsedPercent: pol.UsagePercent(),
	}, nil
}

// UsageReport is the JSON body of GET /v1/ai/usage.
type UsageReport struct {
	Usage             *domain.MonthlyUsageCounter `json:"usage"`
	BudgetCents       int64                       `json:"budget_cents"`
	UsedCents         int64                       `json:"used_cents"`
	BudgetUsedPercent float64                     `json:"budget_used_percent"`
}
