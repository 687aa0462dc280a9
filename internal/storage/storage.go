// Package storage defines the persistence interfaces backing the gateway:
// tenant policies, audit entries, and monthly usage counters.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/worktide/ai-gateway/internal/domain"
)

// ErrPolicyNotFound is returned when a tenant has no policy row. Absence
// is meaningful (the feature is off), so callers substitute the default
// policy instead of failing.
var ErrPolicyNotFound = errors.New("tenant policy not found")

// ErrEntryNotFound is returned when an audit entry does not exist or has
// already left the pending state.
var ErrEntryNotFound = errors.New("audit entry not found or not pending")

// PolicyStore loads and updates tenant policies.
type PolicyStore interface {
	GetPolicy(ctx context.Context, tenantID string) (*domain.TenantPolicy, error)
	PutPolicy(ctx context.Context, policy *domain.TenantPolicy) error

	// AddMonthUsage increments the tenant's running month usage by
	// costCents as a single store-side atomic update. Concurrent
	// increments must never lose updates.
	AddMonthUsage(ctx context.Context, tenantID string, costCents int64) error
}

// AuditOutcome finalizes a pending audit entry.
type AuditOutcome struct {
	Status       domain.AuditStatus
	ModelUsed    string
	TokensIn     int
	TokensOut    int
	CostCents    int64
	ErrorMessage string
	RespondedAt  time.Time
}

// AuditStore persists the append-only invocation trail. CloseAuditEntry
// only applies to rows still in the pending state; terminal rows are
// never mutated again.
type AuditStore interface {
	CreateAuditEntry(ctx context.Context, entry *domain.AuditEntry) error
	CloseAuditEntry(ctx context.Context, id string, outcome AuditOutcome) error
	GetAuditEntry(ctx context.Context, id string) (*domain.AuditEntry, error)
}

// UsageDelta is one completed request's contribution to the monthly
// counters.
type UsageDelta struct {
	TenantID  string
	YearMonth string
	Module    string
	CallerID  string
	TokensIn  int
	TokensOut int
	CostCents int64
}

// UsageStore maintains the per-month aggregate counters. AddUsage upserts
// the counter row lazily and increments all fields atomically.
type UsageStore interface {
	AddUsage(ctx context.Context, delta UsageDelta) error
	GetMonthlyUsage(ctx context.Context, tenantID, yearMonth string) (*domain.MonthlyUsageCounter, error)
}

// Store is the full persistence surface the gateway wires at startup.
type Store interface {
	PolicyStore
	AuditStore
	UsageStore
	Close() error
}
