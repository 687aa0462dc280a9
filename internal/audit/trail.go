// Package audit writes the append-only invocation trail. Audit writes are
// a best-effort side channel: a failing audit store is logged and the
// request proceeds.
package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/worktide/ai-gateway/internal/domain"
	"github.com/worktide/ai-gateway/internal/storage"
)

// promptSummaryLimit bounds how much of the prompt is retained. The full
// prompt text is never persisted.
const promptSummaryLimit = 200

// Trail opens a pending entry before dispatch and finalizes it exactly
// once after completion.
type Trail struct {
	store  storage.AuditStore
	logger *slog.Logger
	now    func() time.Time
}

// NewTrail creates a trail over the given audit store.
func NewTrail(store storage.AuditStore, logger *slog.Logger) *Trail {
	return &Trail{store: store, logger: logger, now: time.Now}
}

// Open persists a pending entry for the request and returns its ID.
// Returns the empty string when the write fails; Close calls with an
// empty ID are no-ops, so a broken audit store never blocks a request.
func (t *Trail) Open(ctx context.Context, req *domain.RequestDescriptor) string {
	entry := &domain.AuditEntry{
		ID:            uuid.New().String(),
		TenantID:      req.TenantID,
		CallerID:      req.CallerID,
		Module:        req.Module,
		ActionType:    req.ActionType,
		PromptSummary: truncate(req.Prompt, promptSummaryLimit),
		DataSources:   req.DataSources,
		Status:        domain.AuditPending,
		CreatedAt:     t.now(),
	}

	if err := t.store.CreateAuditEntry(ctx, entry); err != nil {
		t.logger.Warn("audit open failed",
			slog.String("tenant_id", req.TenantID),
			slog.String("module", req.Module),
			slog.String("error", err.Error()))
		return ""
	}
	return entry.ID
}

// CloseSuccess finalizes the entry as successful.
func (t *Trail) CloseSuccess(ctx context.Context, id, model string, tokensIn, tokensOut int, costCents int64) {
	t.close(ctx, id, storage.AuditOutcome{
		Status:      domain.AuditSuccess,
		ModelUsed:   model,
		TokensIn:    tokensIn,
		TokensOut:   tokensOut,
		CostCents:   costCents,
		RespondedAt: t.now(),
	})
}

// CloseError finalizes the entry as failed with the given message.
func (t *Trail) CloseError(ctx context.Context, id, message string) {
	t.close(ctx, id, storage.AuditOutcome{
		Status:       domain.AuditError,
		ErrorMessage: message,
		RespondedAt:  t.now(),
	})
}

func (t *Trail) close(ctx context.Context, id string, outcome storage.AuditOutcome) {
	if id == "" {
		return
	}
	if err := t.store.CloseAuditEntry(ctx, id, outcome); err != nil {
		t.logger.Warn("audit close failed",
			slog.String("entry_id", id),
			slog.String("error", err.Error()))
	}
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
