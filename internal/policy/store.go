// Package policy loads tenant AI policies and runs the admission gates.
package policy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/worktide/ai-gateway/internal/domain"
	"github.com/worktide/ai-gateway/internal/storage"
)

// Safe defaults applied when a tenant has no policy row. A tenant that
// never configured AI gets the feature switched off, a small budget, and
// the strictest confirmation/storage settings.
const (
	defaultMonthlyBudgetCents  = 500
	defaultMaxTokens           = 1024
	defaultWarningThresholdPct = 80
	defaultModel               = "claude-haiku-4-5"
	defaultFallbackModel       = "gpt-4o-mini"
)

// DefaultPolicy returns the fixed safe-default policy for a tenant with
// no stored configuration. Pure function; callers get a fresh value every
// time, never a shared singleton.
func DefaultPolicy(tenantID string) *domain.TenantPolicy {
	return &domain.TenantPolicy{
		TenantID:                      tenantID,
		Mode:                          domain.ModeDisabled,
		DefaultModel:                  defaultModel,
		FallbackModel:                 defaultFallbackModel,
		MonthlyBudgetCents:            defaultMonthlyBudgetCents,
		MaxTokensPerRequest:           defaultMaxTokens,
		BudgetWarningThresholdPercent: defaultWarningThresholdPct,
		RequireUserConfirmation:       true,
		AllowDataStorage:              false,
	}
}

// Store resolves tenant policies against the backing store, substituting
// the default policy when none exists.
type Store struct {
	backend storage.PolicyStore
	logger  *slog.Logger
}

// NewStore creates a policy store over the given backend.
func NewStore(backend storage.PolicyStore, logger *slog.Logger) *Store {
	return &Store{backend: backend, logger: logger}
}

// Load returns the tenant's policy. "Not found" is not an error: absence
// means the feature is off, so the default policy is returned. Only
// transport-level store failures propagate.
func (s *Store) Load(ctx context.Context, tenantID string) (*domain.TenantPolicy, error) {
	p, err := s.backend.GetPolicy(ctx, tenantID)
	if errors.Is(err, storage.ErrPolicyNotFound) {
		s.logger.Debug("no policy configured, using defaults", slog.String("tenant_id", tenantID))
		return DefaultPolicy(tenantID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("policy store unavailable: %w", err)
	}
	return p, nil
}
