package model

import "unicode/utf8"

// Priority is the urgency assigned to a ticket by the ticketing system.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// MaxDescriptionLen bounds the ticket description carried through the
// pipeline. Longer descriptions are truncated at ingress.
const MaxDescriptionLen = 8000

// JobDescriptor identifies one ticket event to enhance. It is created once
// per inbound event and never mutated.
type JobDescriptor struct {
	TenantID      string   `json:"tenant_id"`
	TicketID      string   `json:"ticket_id"`
	Description   string   `json:"description"`
	Priority      Priority `json:"priority"`
	CorrelationID string   `json:"correlation_id"`
}

// Normalize bounds the description length and defaults the priority. The
// cut backs up to a rune boundary so multi-byte characters stay intact.
func (j JobDescriptor) Normalize() JobDescriptor {
	if len(j.Description) > MaxDescriptionLen {
		cut := MaxDescriptionLen
		for cut > 0 && !utf8.RuneStart(j.Description[cut]) {
			cut--
		}
		j.Description = j.Description[:cut]
	}
	if j.Priority == "" {
		j.Priority = PriorityMedium
	}
	return j
}
