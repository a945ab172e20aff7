package tenant

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apexdesk/enrich-cli/internal/model"
)

type fakeConfigStore struct {
	calls   int
	configs map[string]model.TenantConfig
}

func (f *fakeConfigStore) GetTenantConfig(_ context.Context, tenantID string) (*model.TenantConfig, error) {
	f.calls++
	cfg, ok := f.configs[tenantID]
	if !ok {
		return nil, eris.Errorf("tenant config not found: %s", tenantID)
	}
	return &cfg, nil
}

func TestStoreSource_Resolve_CachesResult(t *testing.T) {
	fs := &fakeConfigStore{configs: map[string]model.TenantConfig{
		"acme": {TenantID: "acme", TicketingBaseURL: "https://tickets.acme.example"},
	}}
	src := NewStoreSource(fs)

	cfg, err := src.Resolve(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, "https://tickets.acme.example", cfg.TicketingBaseURL)

	_, err = src.Resolve(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, 1, fs.calls, "second resolve should hit the cache")
}

func TestStoreSource_Resolve_NotFound(t *testing.T) {
	src := NewStoreSource(&fakeConfigStore{configs: map[string]model.TenantConfig{}})

	_, err := src.Resolve(context.Background(), "unknown")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestStoreSource_Resolve_EmptyTenant(t *testing.T) {
	src := NewStoreSource(&fakeConfigStore{})

	_, err := src.Resolve(context.Background(), "")
	require.Error(t, err)
}

func TestStoreSource_Invalidate(t *testing.T) {
	fs := &fakeConfigStore{configs: map[string]model.TenantConfig{
		"acme": {TenantID: "acme"},
	}}
	src := NewStoreSource(fs)

	_, err := src.Resolve(context.Background(), "acme")
	require.NoError(t, err)

	src.Invalidate("acme")

	_, err = src.Resolve(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, 2, fs.calls)
}
