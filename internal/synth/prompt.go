package synth

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/apexdesk/enrich-cli/internal/model"
)

// Per-field truncation limits keep the assembled prompt inside the backend's
// input budget regardless of how much context the sources returned.
const (
	maxPromptHistory   = 5
	maxPromptDocs      = 3
	maxFieldChars      = 1200
	maxDescriptionView = 4000
)

const systemPrompt = `You are an IT support assistant. Given a new support ticket and ` +
	`related context (similar resolved tickets, documentation excerpts, and asset ` +
	`details), write a concise briefing for the support agent: the likely cause, ` +
	`suggested next steps, and references to the supporting context. Do not invent ` +
	`facts not present in the context. Keep the response under 500 words.`

// SystemPrompt returns the fixed role/guideline preamble.
func SystemPrompt() string {
	return systemPrompt
}

// BuildPrompt renders the job and gathered context into the user message.
// Structure is fixed: ticket fields, then up to five historical items, up to
// three documentation items, and all asset matches.
func BuildPrompt(job model.JobDescriptor, gathered *model.GatheredContext) string {
	var b strings.Builder

	b.WriteString("## Ticket\n")
	fmt.Fprintf(&b, "ID: %s\nPriority: %s\nDescription: %s\n",
		job.TicketID, job.Priority, truncateField(job.Description, maxDescriptionView))

	history := gathered.History
	if len(history) > maxPromptHistory {
		history = history[:maxPromptHistory]
	}
	if len(history) > 0 {
		b.WriteString("\n## Similar resolved tickets\n")
		for i, item := range history {
			fmt.Fprintf(&b, "%d. %s\n   Resolution: %s\n",
				i+1, truncateField(item.Title, maxFieldChars), truncateField(item.Body, maxFieldChars))
		}
	}

	docs := gathered.Docs
	if len(docs) > maxPromptDocs {
		docs = docs[:maxPromptDocs]
	}
	if len(docs) > 0 {
		b.WriteString("\n## Documentation\n")
		for i, item := range docs {
			fmt.Fprintf(&b, "%d. %s\n   %s\n",
				i+1, truncateField(item.Title, maxFieldChars), truncateField(item.Body, maxFieldChars))
		}
	}

	if len(gathered.Assets) > 0 {
		b.WriteString("\n## Assets mentioned in the ticket\n")
		for _, item := range gathered.Assets {
			fmt.Fprintf(&b, "- %s: %s\n",
				truncateField(item.Title, maxFieldChars), truncateField(item.Body, maxFieldChars))
		}
	}

	return b.String()
}

// truncateField cuts s to at most limit bytes, backing up to a rune boundary
// so multi-byte characters are never split.
func truncateField(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return s[:limit] + "…"
}
