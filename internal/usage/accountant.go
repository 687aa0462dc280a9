// Package usage books completed requests against the tenant's monthly
// budget and aggregate counters.
package usage

import (
	"context"
	"log/slog"
	"time"

	"github.com/worktide/ai-gateway/internal/domain"
	"github.com/worktide/ai-gateway/internal/storage"
)

// RatePerThousandCents is the flat, tenant-independent cost rate: cents
// charged per thousand tokens (input plus output).
const RatePerThousandCents = 2

// CostCents computes the approximate cost of a request, rounding up so a
// request never books zero cost once it consumed tokens.
func CostCents(tokensIn, tokensOut int) int64 {
	total := int64(tokensIn) + int64(tokensOut)
	if total <= 0 {
		return 0
	}
	return (total*RatePerThousandCents + 999) / 1000
}

// Accountant records usage through the atomic store-side increments. Like
// the audit trail, accounting is best-effort: failures are logged and the
// request outcome is unaffected.
type Accountant struct {
	policies storage.PolicyStore
	counters storage.UsageStore
	logger   *slog.Logger
	now      func() time.Time
}

// NewAccountant creates an accountant over the given stores.
func NewAccountant(policies storage.PolicyStore, counters storage.UsageStore, logger *slog.Logger) *Accountant {
	return &Accountant{policies: policies, counters: counters, logger: logger, now: time.Now}
}

// Record books one completed request: the tenant's running month usage is
// incremented by costCents and the monthly counter row is upserted. Both
// increments execute inside the store, so concurrent requests for the
// same tenant cannot lose updates.
func (a *Accountant) Record(ctx context.Context, tenantID, module, callerID string, tokensIn, tokensOut int, costCents int64) {
	if err := a.policies.AddMonthUsage(ctx, tenantID, costCents); err != nil {
		a.logger.Warn("month usage increment failed",
			slog.String("tenant_id", tenantID),
			slog.String("error", err.Error()))
	}

	delta := storage.UsageDelta{
		TenantID:  tenantID,
		YearMonth: domain.YearMonth(a.now()),
		Module:    module,
		CallerID:  callerID,
		TokensIn:  tokensIn,
		TokensOut: tokensOut,
		CostCents: costCents,
	}
	if err := a.counters.AddUsage(ctx, delta); err != nil {
		a.logger.Warn("usage counter increment failed",
			slog.String("tenant_id", tenantID),
			slog.String("error", err.Error()))
	}
}
