package audit

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/worktide/ai-gateway/internal/domain"
	"github.com/worktide/ai-gateway/internal/storage"
	"github.com/worktide/ai-gateway/internal/storage/memory"
)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func testDescriptor() *domain.RequestDescriptor {
	return &domain.RequestDescriptor{
		TenantID:   "tenant-1",
		CallerID:   "user-1",
		Module:     "documents",
		ActionType: "analyze",
		Prompt:     "analyze the attached invoice",
	}
}

func TestTrail_OpenCreatesPendingEntry(t *testing.T) {
	store := memory.New()
	trail := NewTrail(store, testLogger())

	id := trail.Open(context.Background(), testDescriptor())
	if id == "" {
		t.Fatal("expected entry ID")
	}

	entry, err := store.GetAuditEntry(context.Background(), id)
	if err != nil {
		t.Fatalf("get entry: %v", err)
	}
	if entry.Status != domain.AuditPending {
		t.Errorf("status = %s, want pending", entry.Status)
	}
	if entry.TenantID != "tenant-1" || entry.Module != "documents" {
		t.Errorf("entry = %+v", entry)
	}
}

func TestTrail_PromptIsTruncated(t *testing.T) {
	store := memory.New()
	trail := NewTrail(store, testLogger())

	desc := testDescriptor()
	desc.Prompt = strings.Repeat("ä", 500)

	id := trail.Open(context.Background(), desc)
	entry, err := store.GetAuditEntry(context.Background(), id)
	if err != nil {
		t.Fatalf("get entry: %v", err)
	}

	if got := len([]rune(entry.PromptSummary)); got != promptSummaryLimit {
		t.Errorf("summary length = %d runes, want %d", got, promptSummaryLimit)
	}
}

func TestTrail_CloseSuccess(t *testing.T) {
	store := memory.New()
	trail := NewTrail(store, testLogger())

	id := trail.Open(context.Background(), testDescriptor())
	trail.CloseSuccess(context.Background(), id, "claude-sonnet-4-5", 120, 340, 1)

	entry, _ := store.GetAuditEntry(context.Background(), id)
	if entry.Status != domain.AuditSuccess {
		t.Errorf("status = %s, want success", entry.Status)
	}
	if entry.ModelUsed != "claude-sonnet-4-5" || entry.TokensIn != 120 || entry.TokensOut != 340 {
		t.Errorf("entry = %+v", entry)
	}
	if entry.RespondedAt == nil {
		t.Error("responded_at not set")
	}
}

func TestTrail_TerminalEntryIsImmutable(t *testing.T) {
	store := memory.New()
	trail := NewTrail(store, testLogger())

	id := trail.Open(context.Background(), testDescriptor())
	trail.CloseError(context.Background(), id, "upstream failed")

	// A second close must not flip the terminal state.
	trail.CloseSuccess(context.Background(), id, "gpt-4o", 10, 10, 1)

	entry, _ := store.GetAuditEntry(context.Background(), id)
	if entry.Status != domain.AuditError {
		t.Errorf("status = %s, want error to stick", entry.Status)
	}
	if entry.ErrorMessage != "upstream failed" {
		t.Errorf("error message = %q", entry.ErrorMessage)
	}
}

type failingAuditStore struct{}

func (failingAuditStore) CreateAuditEntry(context.Context, *domain.AuditEntry) error {
	return errors.New("store down")
}
func (failingAuditStore) CloseAuditEntry(context.Context, string, storage.AuditOutcome) error {
	return errors.New("store down")
}
func (failingAuditStore) GetAuditEntry(context.Context, string) (*domain.AuditEntry, error) {
	return nil, storage.ErrEntryNotFound
}

func TestTrail_StoreFailureDoesNotPanicOrBlock(t *testing.T) {
	trail := NewTrail(failingAuditStore{}, testLogger())

	id := trail.Open(context.Background(), testDescriptor())
	if id != "" {
		t.Errorf("failed open should return empty ID, got %q", id)
	}

	// Close with an empty ID is a no-op.
	trail.CloseSuccess(context.Background(), id, "gpt-4o", 1, 1, 1)
	trail.CloseError(context.Background(), id, "whatever")
}
