// Package tenant resolves per-tenant credentials and endpoints for the
// external services the pipeline calls on a tenant's behalf.
package tenant

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/apexdesk/enrich-cli/internal/cache"
	"github.com/apexdesk/enrich-cli/internal/model"
)

// Source resolves tenant configuration by tenant id.
type Source interface {
	Resolve(ctx context.Context, tenantID string) (*model.TenantConfig, error)
}

// configStore is the slice of the persistence layer this package needs.
type configStore interface {
	GetTenantConfig(ctx context.Context, tenantID string) (*model.TenantConfig, error)
}

// StoreSource reads tenant configs from the store with a TTL cache in front.
// Config changes are rare, so staleness up to the TTL is acceptable.
type StoreSource struct {
	store configStore
	cache *cache.Cache[model.TenantConfig]
}

const (
	defaultCacheSize = 1024
	defaultCacheTTL  = 5 * time.Minute
)

// NewStoreSource creates a Source backed by the given store.
func NewStoreSource(store configStore) *StoreSource {
	return &StoreSource{
		store: store,
		cache: cache.New[model.TenantConfig](defaultCacheSize, defaultCacheTTL),
	}
}

func (s *StoreSource) Resolve(ctx context.Context, tenantID string) (*model.TenantConfig, error) {
	if tenantID == "" {
		return nil, eris.New("tenant: empty tenant id")
	}

	if cfg, ok := s.cache.Get(tenantID); ok {
		return &cfg, nil
	}

	cfg, err := s.store.GetTenantConfig(ctx, tenantID)
	if err != nil {
		return nil, eris.Wrapf(err, "tenant: resolve %s", tenantID)
	}

	s.cache.Set(tenantID, *cfg, 0)
	zap.L().Debug("tenant config loaded",
		zap.String("tenant_id", tenantID))
	return cfg, nil
}

// Invalidate drops the cached config for a tenant, forcing a reload on the
// next Resolve.
func (s *StoreSource) Invalidate(tenantID string) {
	s.cache.Delete(tenantID)
}
