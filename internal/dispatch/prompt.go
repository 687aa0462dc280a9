package dispatch

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/worktide/ai-gateway/internal/domain"
)

// BuildSystemPrompt encodes the policy mode into the instruction the
// model receives. Readonly mode must state the no-actions rule explicitly;
// the normalizer enforces it again on the way back.
func BuildSystemPrompt(mode domain.Mode) string {
	var b strings.Builder
	b.WriteString("You are the AI assistant of an HR administration platform. ")
	b.WriteString("Answer with a single JSON object with the fields: ")
	b.WriteString(`"summary", "explanation", "suggested_actions" (array of {action, description, link}), `)
	b.WriteString(`"links_to_ui" (array of {label, path}), "data_sources" (array of {module, description, time_period}), `)
	b.WriteString(`"confidence" ("high"|"medium"|"low"), and "limitations" (array of strings). `)
	b.WriteString("Do not wrap the JSON in markdown fences or add any other text.")

	if mode == domain.ModeReadonly {
		b.WriteString(" This tenant runs in read-only mode: you must not propose any actions. ")
		b.WriteString(`Always return an empty "suggested_actions" array.`)
	}

	return b.String()
}

// BuildUserPrompt combines the caller's prompt with the serialized
// request context and the declared data sources.
func BuildUserPrompt(req *domain.RequestDescriptor) string {
	var b strings.Builder
	b.WriteString(req.Prompt)

	if len(req.Context) > 0 {
		if ctx, err := json.MarshalIndent(req.Context, "", "  "); err == nil {
			b.WriteString("\n\nContext:\n")
			b.Write(ctx)
		}
	}

	if len(req.DataSources) > 0 {
		b.WriteString("\n\nAvailable data sources:\n")
		for _, ds := range req.DataSources {
			if ds.TimePeriod != "" {
				fmt.Fprintf(&b, "- %s: %s (%s)\n", ds.Module, ds.Description, ds.TimePeriod)
			} else {
				fmt.Fprintf(&b, "- %s: %s\n", ds.Module, ds.Description)
			}
		}
	}

	return b.String()
}
