package policy

import (
	"fmt"

	"github.com/worktide/ai-gateway/internal/domain"
)

// Decision is the outcome of a passing admission check. It carries the
// resolved model pair, the per-request token cap, and the budget warning
// when usage has crossed the tenant's threshold.
type Decision struct {
	PrimaryModel  string
	FallbackModel string
	MaxTokens     int
	Warning       *domain.BudgetWarning
}

// Admit runs the ordered admission gates against a policy and a request.
// Pure function: gates short-circuit at the first failure and the returned
// error is always a *domain.GatewayError with the rejection code.
//
// The ordering is a contract. Mode is the cheapest and most final check,
// so it runs first; the budget gate runs last because it depends on the
// freshest counter read.
func Admit(p *domain.TenantPolicy, req *domain.RequestDescriptor) (*Decision, error) {
	if p.Mode == domain.ModeDisabled {
		return nil, domain.ErrAIDisabled()
	}

	if !p.ModuleEnabled(req.Module) {
		return nil, domain.ErrModuleNotEnabled(req.Module)
	}

	usagePercent := p.UsagePercent()
	if usagePercent >= 100 {
		return nil, domain.ErrBudgetExceeded(p.CurrentMonthUsageCents, p.MonthlyBudgetCents)
	}

	decision := &Decision{
		PrimaryModel:  p.DefaultModel,
		FallbackModel: p.FallbackModel,
		MaxTokens:     p.MaxTokensPerRequest,
	}

	if usagePercent >= float64(p.BudgetWarningThresholdPercent) {
		decision.Warning = &domain.BudgetWarning{
			Message:    fmt.Sprintf("AI budget at %.0f%% of the monthly limit", usagePercent),
			UsedCents:  p.CurrentMonthUsageCents,
			LimitCents: p.MonthlyBudgetCents,
		}
	}

	return decision, nil
}
