package model

import "time"

// RecordStatus is the persisted state of an enhancement job.
type RecordStatus string

const (
	RecordStatusPending   RecordStatus = "pending"
	RecordStatusCompleted RecordStatus = "completed"
	RecordStatusFailed    RecordStatus = "failed"
)

// EnhancementRecord is the durable audit entity for one job. It is written
// exactly twice: once at job start (pending) and once at job end
// (completed or failed). The pipeline never deletes records.
type EnhancementRecord struct {
	ID               string          `json:"id"`
	TenantID         string          `json:"tenant_id"`
	TicketID         string          `json:"ticket_id"`
	CorrelationID    string          `json:"correlation_id"`
	Status           RecordStatus    `json:"status"`
	ContextGathered  *ContextSummary `json:"context_gathered,omitempty"`
	SynthesisOutput  string          `json:"synthesis_output,omitempty"`
	UsedFallback     bool            `json:"used_fallback"`
	ProcessingTimeMs int64           `json:"processing_time_ms"`
	ErrorMessage     string          `json:"error_message,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	CompletedAt      *time.Time      `json:"completed_at,omitempty"`
}

// RecordCompletion carries the fields of the second (final) record write.
type RecordCompletion struct {
	Status           RecordStatus    `json:"status"`
	ContextGathered  *ContextSummary `json:"context_gathered,omitempty"`
	SynthesisOutput  string          `json:"synthesis_output,omitempty"`
	UsedFallback     bool            `json:"used_fallback"`
	ProcessingTimeMs int64           `json:"processing_time_ms"`
	ErrorMessage     string          `json:"error_message,omitempty"`
}
