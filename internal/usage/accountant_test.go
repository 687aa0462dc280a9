package usage

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/worktide/ai-gateway/internal/domain"
	"github.com/worktide/ai-gateway/internal/storage/memory"
)

func TestCostCents(t *testing.T) {
	tests := []struct {
		in, out int
		want    int64
	}{
		{0, 0, 0},
		{1, 0, 1},
		{100, 400, 1},
		{250, 250, 1},
		{300, 300, 2},
		{400, 600, 2},
		{500, 501, 3},
		{12000, 8000, 40},
	}
	for _, tt := range tests {
		if got := CostCents(tt.in, tt.out); got != tt.want {
			t.Errorf("CostCents(%d, %d) = %d, want %d", tt.in, tt.out, got, tt.want)
		}
	}
}

func seedTenant(t *testing.T, store *memory.Store, used int64) {
	t.Helper()
	err := store.PutPolicy(context.Background(), &domain.TenantPolicy{
		TenantID:               "tenant-1",
		Mode:                   domain.ModeAssisted,
		MonthlyBudgetCents:     10000,
		CurrentMonthUsageCents: used,
	})
	if err != nil {
		t.Fatalf("seed policy: %v", err)
	}
}

func TestRecord_BooksBothCounters(t *testing.T) {
	store := memory.New()
	seedTenant(t, store, 9500)

	a := NewAccountant(store, store, slog.New(slog.DiscardHandler))
	a.Record(context.Background(), "tenant-1", "tickets", "user-1", 30000, 20000, 100)

	p, err := store.GetPolicy(context.Background(), "tenant-1")
	if err != nil {
		t.Fatalf("get policy: %v", err)
	}
	if p.CurrentMonthUsageCents != 9600 {
		t.Errorf("month usage = %d, want 9600", p.CurrentMonthUsageCents)
	}

	c, err := store.GetMonthlyUsage(context.Background(), "tenant-1", domain.YearMonth(time.Now()))
	if err != nil {
		t.Fatalf("get usage: %v", err)
	}
	if c.TotalRequests != 1 || c.TotalTokensIn != 30000 || c.TotalTokensOut != 20000 {
		t.Errorf("counter = %+v", c)
	}
	if c.TotalCostCents != 100 {
		t.Errorf("cost = %d, want 100", c.TotalCostCents)
	}
	if c.RequestsByModule["tickets"] != 1 || c.RequestsByUser["user-1"] != 1 {
		t.Errorf("breakdowns = %v / %v", c.RequestsByModule, c.RequestsByUser)
	}
}

func TestRecord_ConcurrentIncrementsAreExact(t *testing.T) {
	const (
		workers = 50
		cost    = int64(3)
		start   = int64(1200)
	)

	store := memory.New()
	seedTenant(t, store, start)
	a := NewAccountant(store, store, slog.New(slog.DiscardHandler))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.Record(context.Background(), "tenant-1", "tickets", "user-1", 100, 100, cost)
		}()
	}
	wg.Wait()

	p, err := store.GetPolicy(context.Background(), "tenant-1")
	if err != nil {
		t.Fatalf("get policy: %v", err)
	}
	if want := start + workers*cost; p.CurrentMonthUsageCents != want {
		t.Errorf("month usage = %d, want %d (lost update)", p.CurrentMonthUsageCents, want)
	}

	c, err := store.GetMonthlyUsage(context.Background(), "tenant-1", domain.YearMonth(time.Now()))
	if err != nil {
		t.Fatalf("get usage: %v", err)
	}
	if c.TotalRequests != workers {
		t.Errorf("total requests = %d, want %d", c.TotalRequests, workers)
	}
}

func TestRecord_UnknownTenantIsBestEffort(t *testing.T) {
	store := memory.New()
	a := NewAccountant(store, store, slog.New(slog.DiscardHandler))

	// Must not panic or return; the counter row is still written.
	a.Record(context.Background(), "ghost", "tickets", "user-1", 10, 10, 1)

	c, err := store.GetMonthlyUsage(context.Background(), "ghost", domain.YearMonth(time.Now()))
	if err != nil {
		t.Fatalf("get usage: %v", err)
	}
	if c.TotalRequests != 1 {
		t.Errorf("total requests = %d, want 1", c.TotalRequests)
	}
}
