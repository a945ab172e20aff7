package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/apexdesk/enrich-cli/internal/model"
)

// ErrTenantNotFound is returned by GetTenantConfig when no configuration
// row exists for the tenant. Callers distinguish it from transient store
// failures with errors.Is.
var ErrTenantNotFound = eris.New("tenant config not found")

// RecordFilter specifies criteria for listing enhancement records.
type RecordFilter struct {
	Status   model.RecordStatus `json:"status,omitempty"`
	TenantID string             `json:"tenant_id,omitempty"`
	TicketID string             `json:"ticket_id,omitempty"`
	Limit    int                `json:"limit,omitempty"`
	Offset   int                `json:"offset,omitempty"`
}

// Store defines the persistence interface for the enhancement pipeline.
//
// Enhancement records follow a strict two-write pattern: CreateRecord sets
// status=pending, CompleteRecord finalizes to completed or failed. Nothing
// else mutates a record.
type Store interface {
	// Enhancement records (audit trail)
	CreateRecord(ctx context.Context, job model.JobDescriptor) (*model.EnhancementRecord, error)
	CompleteRecord(ctx context.Context, recordID string, completion model.RecordCompletion) error
	GetRecord(ctx context.Context, recordID string) (*model.EnhancementRecord, error)
	ListRecords(ctx context.Context, filter RecordFilter) ([]model.EnhancementRecord, error)

	// Historical items. SearchHistory returns candidates matching any query
	// term, newest first; relevance scoring and thresholding happen in the
	// ticket-history adapter. UpsertHistoricalItem is the ingestion entry
	// point for resolved tickets and bulk imports.
	SearchHistory(ctx context.Context, tenantID, query string, limit int) ([]model.HistoricalItem, error)
	UpsertHistoricalItem(ctx context.Context, item model.HistoricalItem) error

	// Tenant configuration
	GetTenantConfig(ctx context.Context, tenantID string) (*model.TenantConfig, error)
	UpsertTenantConfig(ctx context.Context, cfg model.TenantConfig) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
