// Package memory implements the gateway stores in process memory. It is
// used in tests and for single-node development runs.
package memory

import (
	"context"
	"sync"

	"github.com/worktide/ai-gateway/internal/domain"
	"github.com/worktide/ai-gateway/internal/storage"
)

// Store keeps all state behind one mutex. Increments happen under the
// lock, which gives the same no-lost-updates guarantee the SQL stores get
// from server-side UPDATE statements.
type Store struct {
	mu       sync.Mutex
	policies map[string]*domain.TenantPolicy
	entries  map[string]*domain.AuditEntry
	usage    map[string]*domain.MonthlyUsageCounter
}

var _ storage.Store = (*Store)(nil)

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		policies: make(map[string]*domain.TenantPolicy),
		entries:  make(map[string]*domain.AuditEntry),
		usage:    make(map[string]*domain.MonthlyUsageCounter),
	}
}

func (s *Store) GetPolicy(_ context.Context, tenantID string) (*domain.TenantPolicy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.policies[tenantID]
	if !ok {
		return nil, storage.ErrPolicyNotFound
	}
	cp := *p
	cp.EnabledModules = append([]string(nil), p.EnabledModules...)
	return &cp, nil
}

func (s *Store) PutPolicy(_ context.Context, policy *domain.TenantPolicy) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *policy
	cp.EnabledModules = append([]string(nil), policy.EnabledModules...)
	s.policies[policy.TenantID] = &cp
	return nil
}

func (s *Store) AddMonthUsage(_ context.Context, tenantID string, costCents int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.policies[tenantID]
	if !ok {
		return storage.ErrPolicyNotFound
	}
	p.CurrentMonthUsageCents += costCents
	return nil
}

func (s *Store) CreateAuditEntry(_ context.Context, entry *domain.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *entry
	s.entries[entry.ID] = &cp
	return nil
}

func (s *Store) CloseAuditEntry(_ context.Context, id string, outcome storage.AuditOutcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok || e.Status != domain.AuditPending {
		return storage.ErrEntryNotFound
	}

	e.Status = outcome.Status
	e.ModelUsed = outcome.ModelUsed
	e.TokensIn = outcome.TokensIn
	e.TokensOut = outcome.TokensOut
	e.CostCents = outcome.CostCents
	e.ErrorMessage = outcome.ErrorMessage
	t := outcome.RespondedAt
	e.RespondedAt = &t
	return nil
}

func (s *Store) GetAuditEntry(_ context.Context, id string) (*domain.AuditEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		return nil, storage.ErrEntryNotFound
	}
	cp := *e
	return &cp, nil
}

func (s *Store) AddUsage(_ context.Context, delta storage.UsageDelta) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := delta.TenantID + "/" + delta.YearMonth
	c, ok := s.usage[key]
	if !ok {
		c = &domain.MonthlyUsageCounter{
			TenantID:         delta.TenantID,
			YearMonth:        delta.YearMonth,
			RequestsByModule: make(map[string]int64),
			RequestsByUser:   make(map[string]int64),
		}
		s.usage[key] = c
	}

	c.TotalRequests++
	c.TotalTokensIn += int64(delta.TokensIn)
	c.TotalTokensOut += int64(delta.TokensOut)
	c.TotalCostCents += delta.CostCents
	c.RequestsByModule[delta.Module]++
	c.RequestsByUser[delta.CallerID]++
	return nil
}

func (s *Store) GetMonthlyUsage(_ context.Context, tenantID, yearMonth string) (*domain.MonthlyUsageCounter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.usage[tenantID+"/"+yearMonth]
	if !ok {
		return &domain.MonthlyUsageCounter{
			TenantID:         tenantID,
			YearMonth:        yearMonth,
			RequestsByModule: make(map[string]int64),
			RequestsByUser:   make(map[string]int64),
		}, nil
	}

	cp := *c
	cp.RequestsByModule = make(map[string]int64, len(c.RequestsByModule))
	for k, v := range c.RequestsByModule {
		cp.RequestsByModule[k] = v
	}
	cp.RequestsByUser = make(map[string]int64, len(c.RequestsByUser))
	for k, v := range c.RequestsByUser {
		cp.RequestsByUser[k] = v
	}
	return &cp, nil
}

// Close is a no-op for the in-memory store.
func (s *Store) Close() error { return nil }
