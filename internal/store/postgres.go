package store

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/apexdesk/enrich-cli/internal/db"
	"github.com/apexdesk/enrich-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool db.Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for the
// hot path: the two record writes and the history search entry point.
var preparedStatements = map[string]string{
	"insert_record": `INSERT INTO enhancement_records (id, tenant_id, ticket_id, correlation_id, status, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
	"complete_record": `UPDATE enhancement_records
		SET status = $1, context_gathered = $2, synthesis_output = $3, used_fallback = $4,
		    processing_time_ms = $5, error_message = $6, completed_at = $7
		WHERE id = $8 AND status = 'pending'`,
	"get_record": `SELECT id, tenant_id, ticket_id, correlation_id, status, context_gathered,
		synthesis_output, used_fallback, processing_time_ms, error_message, created_at, completed_at
		FROM enhancement_records WHERE id = $1`,
	"get_tenant_config": `SELECT tenant_id, ticketing_base_url, ticketing_api_key, doc_search_base_url, doc_search_api_key
		FROM tenant_configs WHERE tenant_id = $1`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS enhancement_records (
	id                 TEXT PRIMARY KEY,
	tenant_id          TEXT NOT NULL,
	ticket_id          TEXT NOT NULL,
	correlation_id     TEXT NOT NULL,
	status             TEXT NOT NULL DEFAULT 'pending',
	context_gathered   JSONB,
	synthesis_output   TEXT,
	used_fallback      BOOLEAN NOT NULL DEFAULT false,
	processing_time_ms BIGINT NOT NULL DEFAULT 0,
	error_message      TEXT,
	created_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
	completed_at       TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS historical_items (
	id          TEXT PRIMARY KEY,
	tenant_id   TEXT NOT NULL,
	subject     TEXT NOT NULL,
	resolution  TEXT NOT NULL,
	resolved_at TIMESTAMPTZ NOT NULL,
	source      TEXT NOT NULL,
	ingested_at TIMESTAMPTZ NOT NULL DEFAULT now()
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
CREATE INDEX IF NOT EXISTS idx_history_fts ON historical_items
	USING GIN (to_tsvector('english', subject || ' ' || resolution));
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) CreateRecord(ctx context.Context, job model.JobDescriptor) (*model.EnhancementRecord, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO enhancement_records (id, tenant_id, ticket_id, correlation_id, status, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		id, job.TenantID, job.TicketID, job.CorrelationID, string(model.RecordStatusPending), now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert record")
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

func (s *PostgresStore) CompleteRecord(ctx context.Context, recordID string, completion model.RecordCompletion) error {
	var summaryJSON any
	if completion.ContextGathered != nil {
		b, err := json.Marshal(completion.ContextGathered)
		if err != nil {
			return eris.Wrap(err, "postgres: marshal context summary")
		}
		summaryJSON = string(b)
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE enhancement_records
		 SET status = $1, context_gathered = $2, synthesis_output = $3, used_fallback = $4,
		     processing_time_ms = $5, error_message = $6, completed_at = $7
		 WHERE id = $8 AND status = 'pending'`,
		string(completion.Status), summaryJSON, completion.SynthesisOutput, completion.UsedFallback,
		completion.ProcessingTimeMs, nullIfEmpty(completion.ErrorMessage), time.Now().UTC(), recordID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete record %s", recordID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("record not found or already finalized: %s", recordID)
	}
	return nil
}

func (s *PostgresStore) GetRecord(ctx context.Context, recordID string) (*model.EnhancementRecord, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, tenant_id, ticket_id, correlation_id, status, context_gathered,
		        synthesis_output, used_fallback, processing_time_ms, error_message, created_at, completed_at
		 FROM enhancement_records WHERE id = $1`,
		recordID,
	)
	rec, err := scanPgRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(err, "postgres: get record %s", recordID)
	}
	return rec, err
}

func (s *PostgresStore) ListRecords(ctx context.Context, filter RecordFilter) ([]model.EnhancementRecord, error) {
	query := `SELECT id, tenant_id, ticket_id, correlation_id, status, context_gathered,
	                 synthesis_output, used_fallback, processing_time_ms, error_message, created_at, completed_at
	          FROM enhancement_records WHERE 1=1`
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if filter.Status != "" {
		query += ` AND status = ` + arg(string(filter.Status))
	}
	if filter.TenantID != "" {
		query += ` AND tenant_id = ` + arg(filter.TenantID)
	}
	if filter.TicketID != "" {
		query += ` AND ticket_id = ` + arg(filter.TicketID)
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ` + arg(limit)
	if filter.Offset > 0 {
		query += ` OFFSET ` + arg(filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list records")
	}
	defer rows.Close()

	var records []model.EnhancementRecord
	for rows.Next() {
		r, err := scanPgRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *r)
	}
	return records, eris.Wrap(rows.Err(), "postgres: list records iterate")
}

// SearchHistory uses Postgres full-text search to pull candidates; final
// relevance scoring stays in the adapter so both backends rank identically.
func (s *PostgresStore) SearchHistory(ctx context.Context, tenantID, query string, limit int) ([]model.HistoricalItem, error) {
	terms := searchTerms(query)
	if len(terms) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = 50
	}

	// Terms are quoted as single lexemes so tsquery operators embedded in
	// user text ("at&t", "error:") cannot break the query syntax.
	tsQuery := ""
	for i, t := range terms {
		if i > 0 {
			tsQuery += " | "
		}
		tsQuery += "'" + strings.ReplaceAll(t, "'", "''") + "'"
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, tenant_id, subject, resolution, resolved_at, source, ingested_at
		 FROM historical_items
		 WHERE tenant_id = $1
		   AND to_tsvector('english', subject || ' ' || resolution) @@ to_tsquery('english', $2)
		 ORDER BY resolved_at DESC
		 LIMIT $3`,
		tenantID, tsQuery, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: search history")
	}
	defer rows.Close()

	var items []model.HistoricalItem
	for rows.Next() {
		var it model.HistoricalItem
		var source string
		if err := rows.Scan(&it.ID, &it.TenantID, &it.Subject, &it.Resolution, &it.ResolvedAt, &source, &it.IngestedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan historical item")
		}
		it.Source = model.IngestSource(source)
		items = append(items, it)
	}
	return items, eris.Wrap(rows.Err(), "postgres: search history iterate")
}

func (s *PostgresStore) UpsertHistoricalItem(ctx context.Context, item model.HistoricalItem) error {
	if item.ID == "" {
		item.ID = uuid.New().String()
	}
	if item.IngestedAt.IsZero() {
		item.IngestedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO historical_items (id, tenant_id, subject, resolution, resolved_at, source, ingested_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (id) DO UPDATE SET
		   subject = EXCLUDED.subject, resolution = EXCLUDED.resolution,
		   resolved_at = EXCLUDED.resolved_at, source = EXCLUDED.source`,
		item.ID, item.TenantID, item.Subject, item.Resolution, item.ResolvedAt,
		string(item.Source), item.IngestedAt,
	)
	return eris.Wrap(err, "postgres: upsert historical item")
}

func (s *PostgresStore) UpsertTenantConfig(ctx context.Context, cfg model.TenantConfig) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO tenant_configs (tenant_id, ticketing_base_url, ticketing_api_key, doc_search_base_url, doc_search_api_key)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (tenant_id) DO UPDATE SET
		   ticketing_base_url = EXCLUDED.ticketing_base_url,
		   ticketing_api_key = EXCLUDED.ticketing_api_key,
		   doc_search_base_url = EXCLUDED.doc_search_base_url,
		   doc_search_api_key = EXCLUDED.doc_search_api_key`,
		cfg.TenantID, cfg.TicketingBaseURL, cfg.TicketingAPIKey, cfg.DocSearchBaseURL, cfg.DocSearchAPIKey,
	)
	return eris.Wrap(err, "postgres: upsert tenant config")
}

func (s *PostgresStore) GetTenantConfig(ctx context.Context, tenantID string) (*model.TenantConfig, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT tenant_id, ticketing_base_url, ticketing_api_key, doc_search_base_url, doc_search_api_key
		 FROM tenant_configs WHERE tenant_id = $1`,
		tenantID,
	)

	var tc model.TenantConfig
	err := row.Scan(&tc.TenantID, &tc.TicketingBaseURL, &tc.TicketingAPIKey, &tc.DocSearchBaseURL, &tc.DocSearchAPIKey)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrTenantNotFound, "postgres: tenant %s", tenantID)
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get tenant config")
	}
	return &tc, nil
}

// helpers

func scanPgRecord(row scannable) (*model.EnhancementRecord, error) {
	var r model.EnhancementRecord
	var summaryJSON, synthesisOutput, errorMessage *string
	var completedAt *time.Time

	err := row.Scan(&r.ID, &r.TenantID, &r.TicketID, &r.CorrelationID, &r.Status,
		&summaryJSON, &synthesisOutput, &r.UsedFallback, &r.ProcessingTimeMs,
		&errorMessage, &r.CreatedAt, &completedAt)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan record")
	}

	if summaryJSON != nil && *summaryJSON != "" {
		r.ContextGathered = &model.ContextSummary{}
		if err := json.Unmarshal([]byte(*summaryJSON), r.ContextGathered); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal context summary")
		}
	}
	if synthesisOutput != nil {
		r.SynthesisOutput = *synthesisOutput
	}
	if errorMessage != nil {
		r.ErrorMessage = *errorMessage
	}
	r.CompletedAt = completedAt
	return &r, nil
}
