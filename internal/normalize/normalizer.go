// Package normalize coerces free-form upstream model output into the
// gateway's structured response contract.
package normalize

import (
	"encoding/json"
	"strings"

	"github.com/worktide/ai-gateway/internal/domain"
)

// degradedSummary is the summary used when the upstream reply could not
// be structured. The HR application renders this string verbatim.
const degradedSummary = "KI-Antwort erhalten"

// Result is the normalizer's outcome. Degraded marks replies that failed
// the strict parse and were wrapped instead of rejected; both branches
// are first-class outcomes, not error cases.
type Result struct {
	Response domain.StructuredAIResponse
	Degraded bool
}

// Normalize parses raw into a StructuredAIResponse. A parse failure is
// not a request failure: the raw text is returned as a low-confidence
// degraded wrapper. When mode is readonly, suggested actions are stripped
// regardless of what the model produced; the gateway, not the model, is
// the enforcement point.
func Normalize(raw string, mode domain.Mode) Result {
	payload := stripFences(raw)

	var resp domain.StructuredAIResponse
	if err := json.Unmarshal([]byte(payload), &resp); err != nil || resp.Summary == "" {
		return Result{Response: degraded(raw), Degraded: true}
	}

	if resp.Confidence == "" {
		resp.Confidence = domain.ConfidenceMedium
	}
	if resp.SuggestedActions == nil {
		resp.SuggestedActions = []domain.SuggestedAction{}
	}
	if mode == domain.ModeReadonly {
		resp.SuggestedActions = []domain.SuggestedAction{}
	}

	return Result{Response: resp}
}

func degraded(raw string) domain.StructuredAIResponse {
	return domain.StructuredAIResponse{
		Summary:          degradedSummary,
		Explanation:      raw,
		SuggestedActions: []domain.SuggestedAction{},
		Confidence:       domain.ConfidenceLow,
		Limitations:      []string{"response could not be structured"},
	}
}

// stripFences removes a surrounding markdown code fence. Models regularly
// wrap JSON in ```json blocks even when told not to.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}

	s = strings.TrimPrefix(s, "```")
	if idx := strings.Index(s, "\n"); idx >= 0 {
		s = s[idx+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
