package normalize

import (
	"testing"

	"github.com/worktide/ai-gateway/internal/domain"
)

const validReply = `{
	"summary": "Three invoices are overdue",
	"explanation": "The vendor accounts show unpaid items past their due date.",
	"suggested_actions": [
		{"action": "send_reminder", "description": "Notify the vendor about the overdue items", "link": "/vendors/acme"}
	],
	"confidence": "high",
	"data_sources": [{"module": "documents", "description": "vendor invoices"}],
	"limitations": []
}`

func TestNormalize_ValidReplyPassesThrough(t *testing.T) {
	res := Normalize(validReply, domain.ModeAssisted)
	if res.Degraded {
		t.Fatal("valid reply marked degraded")
	}
	if res.Response.Summary != "Three invoices are overdue" {
		t.Errorf("summary = %q", res.Response.Summary)
	}
	if res.Response.Confidence != domain.ConfidenceHigh {
		t.Errorf("confidence = %s, want high", res.Response.Confidence)
	}
	if len(res.Response.SuggestedActions) != 1 {
		t.Fatalf("actions = %d, want 1", len(res.Response.SuggestedActions))
	}
	if res.Response.SuggestedActions[0].Action != "send_reminder" {
		t.Errorf("action = %q", res.Response.SuggestedActions[0].Action)
	}
}

func TestNormalize_ReadonlyStripsActions(t *testing.T) {
	res := Normalize(validReply, domain.ModeReadonly)
	if res.Degraded {
		t.Fatal("valid reply marked degraded")
	}
	if res.Response.SuggestedActions == nil {
		t.Fatal("actions must be an empty slice, not nil")
	}
	if len(res.Response.SuggestedActions) != 0 {
		t.Errorf("readonly reply carries %d actions", len(res.Response.SuggestedActions))
	}
}

func TestNormalize_CodeFenceIsStripped(t *testing.T) {
	fenced := "```json\n" + validReply + "\n```"
	res := Normalize(fenced, domain.ModeAssisted)
	if res.Degraded {
		t.Fatal("fenced valid reply marked degraded")
	}
	if res.Response.Summary != "Three invoices are overdue" {
		t.Errorf("summary = %q", res.Response.Summary)
	}
}

func TestNormalize_UnparsableReplyDegrades(t *testing.T) {
	raw := "I looked at the invoices and here is what I found: ..."
	res := Normalize(raw, domain.ModeAssisted)
	if !res.Degraded {
		t.Fatal("plain text not marked degraded")
	}
	if res.Response.Summary != degradedSummary {
		t.Errorf("summary = %q", res.Response.Summary)
	}
	if res.Response.Explanation != raw {
		t.Error("raw text must be preserved in the explanation")
	}
	if res.Response.Confidence != domain.ConfidenceLow {
		t.Errorf("confidence = %s, want low", res.Response.Confidence)
	}
	if len(res.Response.Limitations) == 0 {
		t.Error("degraded reply must note its limitation")
	}
	if len(res.Response.SuggestedActions) != 0 {
		t.Error("degraded reply must carry no actions")
	}
}

func TestNormalize_EmptySummaryDegrades(t *testing.T) {
	res := Normalize(`{"summary": "", "confidence": "high"}`, domain.ModeAssisted)
	if !res.Degraded {
		t.Error("empty summary accepted as structured")
	}
}

func TestNormalize_DefaultsFilledIn(t *testing.T) {
	res := Normalize(`{"summary": "done"}`, domain.ModeAssisted)
	if res.Degraded {
		t.Fatal("minimal valid reply marked degraded")
	}
	if res.Response.Confidence != domain.ConfidenceMedium {
		t.Errorf("confidence = %s, want medium default", res.Response.Confidence)
	}
	if res.Response.SuggestedActions == nil {
		t.Error("actions must default to an empty slice")
	}
}
