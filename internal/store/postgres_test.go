package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apexdesk/enrich-cli/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

func TestPostgresStore_CreateRecord(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO enhancement_records`).
		WithArgs(pgxmock.AnyArg(), "acme", "TCK-1001", "corr-abc", "pending", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	rec, err := s.CreateRecord(context.Background(), model.JobDescriptor{
		TenantID:      "acme",
		TicketID:      "TCK-1001",
		Description:   "Outlook crashes",
		CorrelationID: "corr-abc",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, model.RecordStatusPending, rec.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CompleteRecord(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE enhancement_records`).
		WithArgs("completed", pgxmock.AnyArg(), "summary text", false, int64(4200),
			nil, pgxmock.AnyArg(), "rec-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := s.CompleteRecord(context.Background(), "rec-1", model.RecordCompletion{
		Status:           model.RecordStatusCompleted,
		ContextGathered:  &model.ContextSummary{HistoryItems: 2},
		SynthesisOutput:  "summary text",
		ProcessingTimeMs: 4200,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CompleteRecord_AlreadyFinalized(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE enhancement_records`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.CompleteRecord(context.Background(), "rec-1", model.RecordCompletion{
		Status: model.RecordStatusFailed,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already finalized")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetRecord_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, tenant_id, ticket_id, correlation_id, status`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetRecord(context.Background(), "missing")
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetRecord(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	completed := created.Add(5 * time.Second)
	summary := `{"history_items":2,"doc_items":1,"asset_items":0}`

	rows := pgxmock.NewRows([]string{
		"id", "tenant_id", "ticket_id", "correlation_id", "status", "context_gathered",
		"synthesis_output", "used_fallback", "processing_time_ms", "error_message",
		"created_at", "completed_at",
	}).AddRow("rec-1", "acme", "TCK-1001", "corr-abc", "completed", &summary,
		strPtr("the summary"), false, int64(5000), (*string)(nil), created, &completed)

	mock.ExpectQuery(`SELECT id, tenant_id, ticket_id, correlation_id, status`).
		WithArgs("rec-1").
		WillReturnRows(rows)

	rec, err := s.GetRecord(context.Background(), "rec-1")
	require.NoError(t, err)
	assert.Equal(t, model.RecordStatusCompleted, rec.Status)
	require.NotNil(t, rec.ContextGathered)
	assert.Equal(t, 2, rec.ContextGathered.HistoryItems)
	assert.Equal(t, "the summary", rec.SynthesisOutput)
	require.NotNil(t, rec.CompletedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetTenantConfig_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT tenant_id, ticketing_base_url`).
		WithArgs("unknown").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetTenantConfig(context.Background(), "unknown")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTenantNotFound)
	assert.Contains(t, err.Error(), "tenant config not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SearchHistory_EmptyQuery(t *testing.T) {
	s, _ := newMockPostgresStore(t)

	items, err := s.SearchHistory(context.Background(), "acme", "a b", 10)
	require.NoError(t, err)
	assert.Nil(t, items)
}

func TestPostgresStore_SearchHistory_QuotesOperatorTerms(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	resolved := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	rows := pgxmock.NewRows([]string{"id", "tenant_id", "subject", "resolution", "resolved_at", "source", "ingested_at"}).
		AddRow("hist-1", "acme", "AT&T circuit outage", "ISP rerouted the circuit", resolved, "ticket_resolution", resolved)

	mock.ExpectQuery(`SELECT id, tenant_id, subject, resolution`).
		WithArgs("acme", `'at&t' | 'outage'`, 25).
		WillReturnRows(rows)

	items, err := s.SearchHistory(context.Background(), "acme", "AT&T outage", 25)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "hist-1", items[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func strPtr(s string) *string { return &s }
