package source

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/apexdesk/enrich-cli/internal/cache"
	"github.com/apexdesk/enrich-cli/internal/model"
	"github.com/apexdesk/enrich-cli/pkg/docsearch"
)

const (
	defaultDocsLimit = 3
	docsCacheTTL     = time.Hour
)

// DocClientFactory builds a documentation search client for a tenant.
// Endpoints are per tenant, so the adapter cannot hold a single client.
type DocClientFactory func(ctx context.Context, tenantID string) (docsearch.Client, error)

// DocsAdapter searches the tenant's documentation service, with a shared TTL
// cache in front. Cache staleness up to the TTL is accepted; a miss always
// falls through to the live service.
type DocsAdapter struct {
	clients DocClientFactory
	cache   *cache.Cache[[]model.Item]
	limit   int
}

// NewDocsAdapter creates a DocsAdapter sharing the given cache.
func NewDocsAdapter(clients DocClientFactory, c *cache.Cache[[]model.Item], limit int) *DocsAdapter {
	if limit <= 0 {
		limit = defaultDocsLimit
	}
	return &DocsAdapter{clients: clients, cache: c, limit: limit}
}

func (a *DocsAdapter) Kind() model.SourceKind {
	return model.SourceDocumentation
}

func (a *DocsAdapter) Search(ctx context.Context, tenantID, queryText string) (model.SourceResult, error) {
	key := cache.Key(tenantID, queryText)
	if items, ok := a.cache.Get(key); ok {
		zap.L().Debug("documentation cache hit", zap.String("tenant_id", tenantID))
		return model.SourceResult{Kind: a.Kind(), Items: items}, nil
	}

	client, err := a.clients(ctx, tenantID)
	if err != nil {
		return unavailable(a.Kind(), err), nil
	}

	resp, err := client.Search(ctx, docsearch.SearchRequest{Query: queryText, Limit: a.limit})
	if err != nil {
		return unavailable(a.Kind(), err), nil
	}

	now := time.Now().UTC()
	items := make([]model.Item, 0, len(resp.Results))
	for _, d := range resp.Results {
		items = append(items, model.Item{
			Title:       d.Title,
			Body:        d.Snippet,
			Relevance:   d.Score,
			Source:      model.SourceDocumentation,
			RetrievedAt: now,
		})
	}

	a.cache.Set(key, items, docsCacheTTL)
	return model.SourceResult{Kind: a.Kind(), Items: items}, nil
}
