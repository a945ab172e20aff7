package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/apexdesk/enrich-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS enhancement_records (
	id                 TEXT PRIMARY KEY,
	tenant_id          TEXT NOT NULL,
	ticket_id          TEXT NOT NULL,
	correlation_id     TEXT NOT NULL,
	status             TEXT NOT NULL DEFAULT 'pending',
	context_gathered   TEXT,
	synthesis_output   TEXT,
	used_fallback      INTEGER NOT NULL DEFAULT 0,
	processing_time_ms INTEGER NOT NULL DEFAULT 0,
	error_message      TEXT,
	created_at         DATETIME NOT NULL DEFAULT (datetime('now')),
	completed_at       DATETIME
);

CREATE TABLE IF NOT EXISTS historical_items (
	id          TEXT PRIMARY KEY,
	tenant_id   TEXT NOT NULL,
	subject     TEXT NOT NULL,
	resolution  TEXT NOT NULL,
	resolved_at DATETIME NOT NULL,
	source      TEXT NOT NULL,
	ingested_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS tenant_configs (
	tenant_id           TEXT PRIMARY KEY,
	ticketing_base_url  TEXT NOT NULL,
	ticketing_api_key   TEXT NOT NULL,
	doc_search_base_url TEXT NOT NULL,
	doc_search_api_key  TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_records_status ON enhancement_records(status);
CREATE INDEX IF NOT EXISTS idx_records_tenant ON enhancement_records(tenant_id);
CREATE INDEX IF NOT EXISTS idx_records_ticket ON enhancement_records(ticket_id);
CREATE INDEX IF NOT EXISTS idx_history_tenant ON historical_items(tenant_id);
CREATE INDEX IF NOT EXISTS idx_history_resolved_at ON historical_items(resolved_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRecord(ctx context.Context, job model.JobDescriptor) (*model.EnhancementRecord, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO enhancement_records (id, tenant_id, ticket_id, correlation_id, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		id, job.TenantID, job.TicketID, job.CorrelationID, string(model.RecordStatusPending), now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert record")
	}

	return &model.EnhancementRecord{
		ID:            id,
		TenantID:      job.TenantID,
		TicketID:      job.TicketID,
		CorrelationID: job.CorrelationID,
		Status:        model.RecordStatusPending,
		CreatedAt:     now,
	}, nil
}

func (s *SQLiteStore) CompleteRecord(ctx context.Context, recordID string, completion model.RecordCompletion) error {
	var summaryJSON any
	if completion.ContextGathered != nil {
		b, err := json.Marshal(completion.ContextGathered)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal context summary")
		}
		summaryJSON = string(b)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE enhancement_records
		 SET status = ?, context_gathered = ?, synthesis_output = ?, used_fallback = ?,
		     processing_time_ms = ?, error_message = ?, completed_at = ?
		 WHERE id = ? AND status = 'pending'`,
		string(completion.Status), summaryJSON, completion.SynthesisOutput,
		boolToInt(completion.UsedFallback), completion.ProcessingTimeMs,
		nullIfEmpty(completion.ErrorMessage), time.Now().UTC(), recordID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete record %s", recordID)
	}
	return checkRowsAffected(res, "record", recordID)
}

func (s *SQLiteStore) GetRecord(ctx context.Context, recordID string) (*model.EnhancementRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, tenant_id, ticket_id, correlation_id, status, context_gathered,
		        synthesis_output, used_fallback, processing_time_ms, error_message,
		        created_at, completed_at
		 FROM enhancement_records WHERE id = ?`,
		recordID,
	)
	return scanRecord(row)
}

func (s *SQLiteStore) ListRecords(ctx context.Context, filter RecordFilter) ([]model.EnhancementRecord, error) {
	query := `SELECT id, tenant_id, ticket_id, correlation_id, status, context_gathered,
	                 synthesis_output, used_fallback, processing_time_ms, error_message,
	                 created_at, completed_at
	          FROM enhancement_records WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.TenantID != "" {
		query += ` AND tenant_id = ?`
		args = append(args, filter.TenantID)
	}
	if filter.TicketID != "" {
		query += ` AND ticket_id = ?`
		args = append(args, filter.TicketID)
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list records")
	}
	defer rows.Close()

	var records []model.EnhancementRecord
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *r)
	}
	return records, eris.Wrap(rows.Err(), "sqlite: list records iterate")
}

// SearchHistory returns historical items matching any term of the query,
// newest resolution first. Scoring happens in the adapter layer.
func (s *SQLiteStore) SearchHistory(ctx context.Context, tenantID, query string, limit int) ([]model.HistoricalItem, error) {
	terms := searchTerms(query)
	if len(terms) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = 50
	}

	sqlQuery := `SELECT id, tenant_id, subject, resolution, resolved_at, source, ingested_at
	             FROM historical_items WHERE tenant_id = ? AND (`
	args := []any{tenantID}
	for i, term := range terms {
		if i > 0 {
			sqlQuery += ` OR `
		}
		sqlQuery += `subject LIKE ? OR resolution LIKE ?`
		pattern := "%" + term + "%"
		args = append(args, pattern, pattern)
	}
	sqlQuery += `) ORDER BY resolved_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: search history")
	}
	defer rows.Close()

	var items []model.HistoricalItem
	for rows.Next() {
		var it model.HistoricalItem
		var source string
		if err := rows.Scan(&it.ID, &it.TenantID, &it.Subject, &it.Resolution, &it.ResolvedAt, &source, &it.IngestedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan historical item")
		}
		it.Source = model.IngestSource(source)
		items = append(items, it)
	}
	return items, eris.Wrap(rows.Err(), "sqlite: search history iterate")
}

func (s *SQLiteStore) UpsertHistoricalItem(ctx context.Context, item model.HistoricalItem) error {
	if item.ID == "" {
		item.ID = uuid.New().String()
	}
	if item.IngestedAt.IsZero() {
		item.IngestedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO historical_items (id, tenant_id, subject, resolution, resolved_at, source, ingested_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   subject = excluded.subject, resolution = excluded.resolution,
		   resolved_at = excluded.resolved_at, source = excluded.source`,
		item.ID, item.TenantID, item.Subject, item.Resolution, item.ResolvedAt,
		string(item.Source), item.IngestedAt,
	)
	return eris.Wrap(err, "sqlite: upsert historical item")
}

func (s *SQLiteStore) UpsertTenantConfig(ctx context.Context, cfg model.TenantConfig) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tenant_configs (tenant_id, ticketing_base_url, ticketing_api_key, doc_search_base_url, doc_search_api_key)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(tenant_id) DO UPDATE SET
		   ticketing_base_url = excluded.ticketing_base_url,
		   ticketing_api_key = excluded.ticketing_api_key,
		   doc_search_base_url = excluded.doc_search_base_url,
		   doc_search_api_key = excluded.doc_search_api_key`,
		cfg.TenantID, cfg.TicketingBaseURL, cfg.TicketingAPIKey, cfg.DocSearchBaseURL, cfg.DocSearchAPIKey,
	)
	return eris.Wrap(err, "sqlite: upsert tenant config")
}

func (s *SQLiteStore) GetTenantConfig(ctx context.Context, tenantID string) (*model.TenantConfig, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT tenant_id, ticketing_base_url, ticketing_api_key, doc_search_base_url, doc_search_api_key
		 FROM tenant_configs WHERE tenant_id = ?`,
		tenantID,
	)

	var tc model.TenantConfig
	err := row.Scan(&tc.TenantID, &tc.TicketingBaseURL, &tc.TicketingAPIKey, &tc.DocSearchBaseURL, &tc.DocSearchAPIKey)
	if err == sql.ErrNoRows {
		return nil, eris.Wrapf(ErrTenantNotFound, "sqlite: tenant %s", tenantID)
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get tenant config")
	}
	return &tc, nil
}

// helpers

// searchTerms splits a query into distinct lowercase terms, dropping short
// tokens that would match too broadly.
func searchTerms(query string) []string {
	fields := strings.Fields(strings.ToLower(query))
	seen := make(map[string]bool, len(fields))
	var terms []string
	for _, f := range fields {
		f = strings.Trim(f, `.,;:!?"'()[]{}`)
		if len(f) < 3 || seen[f] {
			continue
		}
		seen[f] = true
		terms = append(terms, f)
		if len(terms) == 8 {
			break
		}
	}
	return terms
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found or already finalized: %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRecord(row scannable) (*model.EnhancementRecord, error) {
	var r model.EnhancementRecord
	var summaryJSON, synthesisOutput, errorMessage sql.NullString
	var usedFallback int
	var completedAt sql.NullTime

	err := row.Scan(&r.ID, &r.TenantID, &r.TicketID, &r.CorrelationID, &r.Status,
		&summaryJSON, &synthesisOutput, &usedFallback, &r.ProcessingTimeMs,
		&errorMessage, &r.CreatedAt, &completedAt)
	if err == sql.ErrNoRows {
		return nil, eris.New("record not found")
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan record")
	}

	if summaryJSON.Valid && summaryJSON.String != "" {
		r.ContextGathered = &model.ContextSummary{}
		if err := json.Unmarshal([]byte(summaryJSON.String), r.ContextGathered); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal context summary")
		}
	}
	r.SynthesisOutput = synthesisOutput.String
	r.UsedFallback = usedFallback != 0
	r.ErrorMessage = errorMessage.String
	if completedAt.Valid {
		t := completedAt.Time
		r.CompletedAt = &t
	}
	return &r, nil
}
