// Package domain provides the canonical types shared across the AI gateway:
// tenant policy, request descriptors, the structured response contract, and
// the audit/usage records.
package domain

import "time"

// Mode is the tenant-level AI feature switch.
type Mode string

const (
	// ModeDisabled turns the AI features off entirely.
	ModeDisabled Mode = "disabled"

	// ModeReadonly allows explanations but no suggested actions.
	ModeReadonly Mode = "readonly"

	// ModeAssisted allows suggestions; they are never auto-executed.
	ModeAssisted Mode = "assisted"
)

// TenantPolicy is the per-tenant AI configuration. It is read at request
// time and mutated only through the usage accountant's atomic increment.
// CurrentMonthUsageCents is reset by an external monthly job, never here.
type TenantPolicy struct {
	TenantID string `json:"tenant_id"`
	Mode     Mode   `json:"mode"`

	// EnabledModules is an allow-list of HR modules. Empty means all
	// modules are allowed.
	EnabledModules []string `json:"enabled_modules"`

	DefaultModel  string `json:"default_model"`
	FallbackModel string `json:"fallback_model"`

	MonthlyBudgetCents     int64 `json:"monthly_budget_cents"`
	CurrentMonthUsageCents int64 `json:"current_month_usage_cents"`

	MaxTokensPerRequest           int `json:"max_tokens_per_request"`
	BudgetWarningThresholdPercent int `json:"budget_warning_threshold_percent"`

	RequireUserConfirmation bool `json:"require_user_confirmation"`
	AllowDataStorage        bool `json:"allow_data_storage"`

	// APIKey is an optional tenant-supplied upstream credential. When
	// empty the process-wide key is used.
	APIKey string `json:"-"`
}

// ModuleEnabled reports whether the policy allows the given module.
func (p *TenantPolicy) ModuleEnabled(module string) bool {
	if len(p.EnabledModules) == 0 {
		return true
	}
	for _, m := range p.EnabledModules {
		if m == module {
			return true
		}
	}
	return false
}

// UsagePercent returns the share of the monthly budget already consumed,
// as a percentage. Returns 100 for a non-positive budget.
func (p *TenantPolicy) UsagePercent() float64 {
	if p.MonthlyBudgetCents <= 0 {
		return 100
	}
	return float64(p.CurrentMonthUsageCents) / float64(p.MonthlyBudgetCents) * 100
}

// DataSource is a provenance label attached by the caller. The gateway
// records it but does not verify it.
type DataSource struct {
	Module      string `json:"module"`
	Description string `json:"description"`
	TimePeriod  string `json:"time_period,omitempty"`
}

// RequestDescriptor describes one AI-assisted request after identity
// resolution.
type RequestDescriptor struct {
	TenantID    string         `json:"tenant_id"`
	CallerID    string         `json:"caller_id"`
	Module      string         `json:"module"`
	ActionType  string         `json:"action_type"`
	Prompt      string         `json:"prompt"`
	Context     map[string]any `json:"context,omitempty"`
	DataSources []DataSource   `json:"data_sources,omitempty"`
}

// Confidence grades how reliable a structured response is.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// SuggestedAction is a follow-up the model proposes. Actions are surfaced
// to the user, never executed by the gateway.
type SuggestedAction struct {
	Action      string `json:"action"`
	Description string `json:"description"`
	Link        string `json:"link,omitempty"`
}

// UILink points the user at a page in the HR application.
type UILink struct {
	Label string `json:"label"`
	Path  string `json:"path"`
}

// StructuredAIResponse is the fixed output contract every upstream reply
// is normalized into before it reaches the caller.
type StructuredAIResponse struct {
	Summary          string            `json:"summary"`
	Explanation      string            `json:"explanation"`
	SuggestedActions []SuggestedAction `json:"suggested_actions"`
	LinksToUI        []UILink          `json:"links_to_ui"`
	DataSources      []DataSource      `json:"data_sources"`
	Confidence       Confidence        `json:"confidence"`
	Limitations      []string          `json:"limitations"`
}

// BudgetWarning is attached to a passing decision once usage crosses the
// tenant's warning threshold. Non-fatal; the caller surfaces it.
type BudgetWarning struct {
	Message    string `json:"message"`
	UsedCents  int64  `json:"used"`
	LimitCents int64  `json:"limit"`
}

// AuditStatus is the lifecycle state of an audit entry.
type AuditStatus string

const (
	AuditPending AuditStatus = "pending"
	AuditSuccess AuditStatus = "success"
	AuditError   AuditStatus = "error"
)

// AuditEntry records one gateway invocation from submission to completion.
// Entries are append-only: a row is written once at creation and updated
// once at completion, pending -> success or pending -> error.
type AuditEntry struct {
	ID         string `json:"id"`
	TenantID   string `json:"tenant_id"`
	CallerID   string `json:"caller_id"`
	Module     string `json:"module"`
	ActionType string `json:"action_type"`

	// PromptSummary is a truncated prefix of the prompt. The full prompt
	// text is never persisted.
	PromptSummary string       `json:"prompt_summary"`
	DataSources   []DataSource `json:"data_sources,omitempty"`

	Status       AuditStatus `json:"status"`
	ModelUsed    string      `json:"model_used,omitempty"`
	TokensIn     int         `json:"tokens_in"`
	TokensOut    int         `json:"tokens_out"`
	CostCents    int64       `json:"cost_cents"`
	ErrorMessage string      `json:"error_message,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	RespondedAt *time.Time `json:"responded_at,omitempty"`
}

// MonthlyUsageCounter aggregates a tenant's AI usage for one billing
// month. Created lazily on the first request of a month.
type MonthlyUsageCounter struct {
	TenantID         string           `json:"tenant_id"`
	YearMonth        string           `json:"year_month"`
	TotalRequests    int64            `json:"total_requests"`
	TotalTokensIn    int64            `json:"total_tokens_in"`
	TotalTokensOut   int64            `json:"total_tokens_out"`
	TotalCostCents   int64            `json:"total_cost_cents"`
	RequestsByModule map[string]int64 `json:"requests_by_module"`
	RequestsByUser   map[string]int64 `json:"requests_by_user"`
}

// YearMonth formats t as the UTC billing-month key, e.g. "2025-04".
func YearMonth(t time.Time) string {
	return t.UTC().Format("2006-01")
}
