// Package sqlite implements the gateway stores on SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/worktide/ai-gateway/internal/domain"
	"github.com/worktide/ai-gateway/internal/storage"
)

// Store is a SQLite implementation of PolicyStore, AuditStore, and
// UsageStore. Budget and counter increments are expressed as single
// UPDATE/UPSERT statements so concurrent requests never lose updates.
type Store struct {
	db *sql.DB
}

var _ storage.Store = (*Store)(nil)

// New opens (or creates) the database at dbPath and initializes the schema.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL; PRAGMA busy_timeout=5000;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set pragmas: %w", err)
	}

	store := &Store{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

func (s *Store) initSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS tenant_policies (
			tenant_id TEXT PRIMARY KEY,
			mode TEXT NOT NULL,
			enabled_modules TEXT NOT NULL DEFAULT '',
			default_model TEXT NOT NULL,
			fallback_model TEXT NOT NULL,
			monthly_budget_cents INTEGER NOT NULL,
			current_month_usage_cents INTEGER NOT NULL DEFAULT 0,
			max_tokens_per_request INTEGER NOT NULL,
			budget_warning_threshold_percent INTEGER NOT NULL,
			require_user_confirmation INTEGER NOT NULL DEFAULT 1,
			allow_data_storage INTEGER NOT NULL DEFAULT 0,
			api_key TEXT NOT NULL DEFAULT '',
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS audit_entries (
			id TEXT PRIMARY KEY,
			tenant_id TEXT NOT NULL,
			caller_id TEXT NOT NULL,
			module TEXT NOT NULL,
			action_type TEXT NOT NULL,
			prompt_summary TEXT NOT NULL,
			data_sources TEXT,
			status TEXT NOT NULL,
			model_used TEXT,
			tokens_in INTEGER NOT NULL DEFAULT 0,
			tokens_out INTEGER NOT NULL DEFAULT 0,
			cost_cents INTEGER NOT NULL DEFAULT 0,
			error_message TEXT,
			created_at TIMESTAMP NOT NULL,
			responded_at TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS usage_counters (
			tenant_id TEXT NOT NULL,
			year_month TEXT NOT NULL,
			total_requests INTEGER NOT NULL DEFAULT 0,
			total_tokens_in INTEGER NOT NULL DEFAULT 0,
			total_tokens_out INTEGER NOT NULL DEFAULT 0,
			total_cost_cents INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (tenant_id, year_month)
		)`,
		`CREATE TABLE IF NOT EXISTS usage_by_module (
			tenant_id TEXT NOT NULL,
			year_month TEXT NOT NULL,
			module TEXT NOT NULL,
			requests INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (tenant_id, year_month, module)
		)`,
		`CREATE TABLE IF NOT EXISTS usage_by_user (
			tenant_id TEXT NOT NULL,
			year_month TEXT NOT NULL,
			caller_id TEXT NOT NULL,
			requests INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (tenant_id, year_month, caller_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_tenant ON audit_entries(tenant_id)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_status ON audit_entries(status)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}

	return nil
}

// GetPolicy loads a tenant's policy. Returns storage.ErrPolicyNotFound
// when no row exists.
func (s *Store) GetPolicy(ctx context.Context, tenantID string) (*domain.TenantPolicy, error) {
	query := `SELECT tenant_id, mode, enabled_modules, default_model, fallback_model,
	                 monthly_budget_cents, current_month_usage_cents, max_tokens_per_request,
	                 budget_warning_threshold_percent, require_user_confirmation,
	                 allow_data_storage, api_key
	          FROM tenant_policies WHERE tenant_id = ?`

	var p domain.TenantPolicy
	var modules string
	var requireConfirmation, allowStorage int
	err := s.db.QueryRowContext(ctx, query, tenantID).Scan(
		&p.TenantID, &p.Mode, &modules, &p.DefaultModel, &p.FallbackModel,
		&p.MonthlyBudgetCents, &p.CurrentMonthUsageCents, &p.MaxTokensPerRequest,
		&p.BudgetWarningThresholdPercent, &requireConfirmation, &allowStorage, &p.APIKey)
	if err == sql.ErrNoRows {
		return nil, storage.ErrPolicyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load policy: %w", err)
	}

	if modules != "" {
		p.EnabledModules = strings.Split(modules, ",")
	}
	p.RequireUserConfirmation = requireConfirmation != 0
	p.AllowDataStorage = allowStorage != 0

	return &p, nil
}

// PutPolicy inserts or replaces a tenant's policy row.
func (s *Store) PutPolicy(ctx context.Context, policy *domain.TenantPolicy) error {
	query := `INSERT INTO tenant_policies (
			tenant_id, mode, enabled_modules, default_model, fallback_model,
			monthly_budget_cents, current_month_usage_cents, max_tokens_per_request,
			budget_warning_threshold_percent, require_user_confirmation,
			allow_data_storage, api_key, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(tenant_id) DO UPDATE SET
			mode = excluded.mode,
			enabled_modules = excluded.enabled_modules,
			default_model = excluded.default_model,
			fallback_model = excluded.fallback_model,
			monthly_budget_cents = excluded.monthly_budget_cents,
			current_month_usage_cents = excluded.current_month_usage_cents,
			max_tokens_per_request = excluded.max_tokens_per_request,
			budget_warning_threshold_percent = excluded.budget_warning_threshold_percent,
			require_user_confirmation = excluded.require_user_confirmation,
			allow_data_storage = excluded.allow_data_storage,
			api_key = excluded.api_key,
			updated_at = excluded.updated_at`

	_, err := s.db.ExecContext(ctx, query,
		policy.TenantID, policy.Mode, strings.Join(policy.EnabledModules, ","),
		policy.DefaultModel, policy.FallbackModel,
		policy.MonthlyBudgetCents, policy.CurrentMonthUsageCents, policy.MaxTokensPerRequest,
		policy.BudgetWarningThresholdPercent, boolInt(policy.RequireUserConfirmation),
		boolInt(policy.AllowDataStorage), policy.APIKey, time.Now())
	if err != nil {
		return fmt.Errorf("failed to store policy: %w", err)
	}
	return nil
}

// AddMonthUsage increments current_month_usage_cents in a single UPDATE.
// The increment happens inside the database, so concurrent requests for
// the same tenant serialize there instead of racing in the application.
func (s *Store) AddMonthUsage(ctx context.Context, tenantID string, costCents int64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE tenant_policies
		 SET current_month_usage_cents = current_month_usage_cents + ?, updated_at = ?
		 WHERE tenant_id = ?`,
		costCents, time.Now(), tenantID)
	if err != nil {
		return fmt.Errorf("failed to increment month usage: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return storage.ErrPolicyNotFound
	}
	return nil
}

// CreateAuditEntry persists a new pending entry.
func (s *Store) CreateAuditEntry(ctx context.Context, entry *domain.AuditEntry) error {
	sources, err := json.Marshal(entry.DataSources)
	if err != nil {
		return fmt.Errorf("failed to marshal data sources: %w", err)
	}

	query := `INSERT INTO audit_entries (
			id, tenant_id, caller_id, module, action_type, prompt_summary,
			data_sources, status, tokens_in, tokens_out, cost_cents, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, 0, 0, ?)`

	_, err = s.db.ExecContext(ctx, query,
		entry.ID, entry.TenantID, entry.CallerID, entry.Module, entry.ActionType,
		entry.PromptSummary, string(sources), entry.Status, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create audit entry: %w", err)
	}
	return nil
}

// CloseAuditEntry finalizes a pending entry. The WHERE clause guards the
// state machine: a row that already reached success or error is left
// untouched and ErrEntryNotFound is returned.
func (s *Store) CloseAuditEntry(ctx context.Context, id string, outcome storage.AuditOutcome) error {
	query := `UPDATE audit_entries
	          SET status = ?, model_used = ?, tokens_in = ?, tokens_out = ?,
	              cost_cents = ?, error_message = ?, responded_at = ?
	          WHERE id = ? AND status = ?`

	res, err := s.db.ExecContext(ctx, query,
		outcome.Status, outcome.ModelUsed, outcome.TokensIn, outcome.TokensOut,
		outcome.CostCents, outcome.ErrorMessage, outcome.RespondedAt,
		id, domain.AuditPending)
	if err != nil {
		return fmt.Errorf("failed to close audit entry: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return storage.ErrEntryNotFound
	}
	return nil
}

// GetAuditEntry loads one entry by ID.
func (s *Store) GetAuditEntry(ctx context.Context, id string) (*domain.AuditEntry, error) {
	query := `SELECT id, tenant_id, caller_id, module, action_type, prompt_summary,
	                 data_sources, status, model_used, tokens_in, tokens_out,
	                 cost_cents, error_message, created_at, responded_at
	          FROM audit_entries WHERE id = ?`

	var e domain.AuditEntry
	var sources string
	var modelUsed, errorMessage sql.NullString
	var respondedAt sql.NullTime
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&e.ID, &e.TenantID, &e.CallerID, &e.Module, &e.ActionType, &e.PromptSummary,
		&sources, &e.Status, &modelUsed, &e.TokensIn, &e.TokensOut,
		&e.CostCents, &errorMessage, &e.CreatedAt, &respondedAt)
	if err == sql.ErrNoRows {
		return nil, storage.ErrEntryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load audit entry: %w", err)
	}

	if sources != "" {
		if err := json.Unmarshal([]byte(sources), &e.DataSources); err != nil {
			return nil, fmt.Errorf("failed to unmarshal data sources: %w", err)
		}
	}
	e.ModelUsed = modelUsed.String
	e.ErrorMessage = errorMessage.String
	if respondedAt.Valid {
		t := respondedAt.Time
		e.RespondedAt = &t
	}

	return &e, nil
}

// AddUsage applies one request's contribution to the monthly counters.
// All three tables are updated with UPSERT increments inside one
// transaction, creating the month's rows lazily on first use.
func (s *Store) AddUsage(ctx context.Context, delta storage.UsageDelta) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin usage transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO usage_counters (tenant_id, year_month, total_requests,
			total_tokens_in, total_tokens_out, total_cost_cents)
		 VALUES (?, ?, 1, ?, ?, ?)
		 ON CONFLICT(tenant_id, year_month) DO UPDATE SET
			total_requests = total_requests + 1,
			total_tokens_in = total_tokens_in + excluded.total_tokens_in,
			total_tokens_out = total_tokens_out + excluded.total_tokens_out,
			total_cost_cents = total_cost_cents + excluded.total_cost_cents`,
		delta.TenantID, delta.YearMonth, delta.TokensIn, delta.TokensOut, delta.CostCents)
	if err != nil {
		return fmt.Errorf("failed to increment usage counters: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO usage_by_module (tenant_id, year_month, module, requests)
		 VALUES (?, ?, ?, 1)
		 ON CONFLICT(tenant_id, year_month, module) DO UPDATE SET
			requests = requests + 1`,
		delta.TenantID, delta.YearMonth, delta.Module)
	if err != nil {
		return fmt.Errorf("failed to increment module counter: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO usage_by_user (tenant_id, year_month, caller_id, requests)
		 VALUES (?, ?, ?, 1)
		 ON CONFLICT(tenant_id, year_month, caller_id) DO UPDATE SET
			requests = requests + 1`,
		delta.TenantID, delta.YearMonth, delta.CallerID)
	if err != nil {
		return fmt.Errorf("failed to increment user counter: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit usage transaction: %w", err)
	}
	return nil
}

// GetMonthlyUsage assembles the counter row plus the per-module and
// per-user breakdowns. A month with no traffic yields zeroed counters.
func (s *Store) GetMonthlyUsage(ctx context.Context, tenantID, yearMonth string) (*domain.MonthlyUsageCounter, error) {
	counter := &domain.MonthlyUsageCounter{
		TenantID:         tenantID,
		YearMonth:        yearMonth,
		RequestsByModule: make(map[string]int64),
		RequestsByUser:   make(map[string]int64),
	}

	err := s.db.QueryRowContext(ctx,
		`SELECT total_requests, total_tokens_in, total_tokens_out, total_cost_cents
		 FROM usage_counters WHERE tenant_id = ? AND year_month = ?`,
		tenantID, yearMonth).Scan(
		&counter.TotalRequests, &counter.TotalTokensIn,
		&counter.TotalTokensOut, &counter.TotalCostCents)
	if err == sql.ErrNoRows {
		return counter, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load usage counters: %w", err)
	}

	if err := s.scanBreakdown(ctx, counter.RequestsByModule,
		`SELECT module, requests FROM usage_by_module WHERE tenant_id = ? AND year_month = ?`,
		tenantID, yearMonth); err != nil {
		return nil, err
	}
	if err := s.scanBreakdown(ctx, counter.RequestsByUser,
		`SELECT caller_id, requests FROM usage_by_user WHERE tenant_id = ? AND year_month = ?`,
		tenantID, yearMonth); err != nil {
		return nil, err
	}

	return counter, nil
}

func (s *Store) scanBreakdown(ctx context.Context, dst map[string]int64, query string, args ...any) error {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to load usage breakdown: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var count int64
		if err := rows.Scan(&key, &count); err != nil {
			return fmt.Errorf("failed to scan usage breakdown: %w", err)
		}
		dst[key] = count
	}
	return rows.Err()
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
