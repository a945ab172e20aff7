package model

import "time"

// IngestSource tags how a historical item entered the store.
type IngestSource string

const (
	IngestBulkImport    IngestSource = "bulk_import"
	IngestEventResolved IngestSource = "event_resolved"
	IngestAPIFallback   IngestSource = "api_fallback"
)

// HistoricalItem is a previously resolved ticket ingested by the import and
// webhook-storage collaborators. The enhancement pipeline only reads these;
// write ownership stays with the ingestion side.
type HistoricalItem struct {
	ID         string       `json:"id"`
	TenantID   string       `json:"tenant_id"`
	Subject    string       `json:"subject"`
	Resolution string       `json:"resolution"`
	ResolvedAt time.Time    `json:"resolved_at"`
	Source     IngestSource `json:"source"`
	IngestedAt time.Time    `json:"ingested_at"`
}
