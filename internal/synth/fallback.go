package synth

import (
	"context"
	"fmt"
	"strings"

	"github.com/apexdesk/enrich-cli/internal/model"
)

// FallbackSynthesizer renders the gathered context directly, without calling
// the generative backend. The output is deterministic: identical input
// produces byte-identical text, so nothing time-dependent (including item
// retrieval timestamps) appears in the body. Per-field truncation bounds the
// output for any reasonable context size.
type FallbackSynthesizer struct{}

func (f *FallbackSynthesizer) Synthesize(_ context.Context, job model.JobDescriptor, gathered *model.GatheredContext) (*model.SynthesisOutcome, error) {
	var b strings.Builder

	b.WriteString("Automated context summary (synthesis unavailable)\n")
	fmt.Fprintf(&b, "Ticket %s (priority %s)\n", job.TicketID, job.Priority)

	if len(gathered.History) > 0 {
		b.WriteString("\nSimilar resolved tickets:\n")
		for _, item := range gathered.History {
			fmt.Fprintf(&b, "- %s\n  Resolution: %s\n",
				truncateField(item.Title, maxFieldChars), truncateField(item.Body, maxFieldChars))
		}
	}
	if len(gathered.Docs) > 0 {
		b.WriteString("\nRelated documentation:\n")
		for _, item := range gathered.Docs {
			fmt.Fprintf(&b, "- %s\n  %s\n",
				truncateField(item.Title, maxFieldChars), truncateField(item.Body, maxFieldChars))
		}
	}
	if len(gathered.Assets) > 0 {
		b.WriteString("\nAssets mentioned:\n")
		for _, item := range gathered.Assets {
			fmt.Fprintf(&b, "- %s (%s)\n",
				truncateField(item.Title, maxFieldChars), truncateField(item.Body, maxFieldChars))
		}
	}
	if gathered.ItemCount() == 0 {
		b.WriteString("\nNo related context was found for this ticket.\n")
	}

	text, words := EnforceWordLimit(strings.TrimSpace(b.String()))
	return &model.SynthesisOutcome{
		Text:         text,
		WordCount:    words,
		UsedFallback: true,
	}, nil
}
