package source

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apexdesk/enrich-cli/internal/model"
	"github.com/apexdesk/enrich-cli/pkg/assetinv"
)

type fakeAssetClient struct {
	assets map[string]*assetinv.Asset
	err    error
}

func (f *fakeAssetClient) Lookup(_ context.Context, id string) (*assetinv.Asset, error) {
	if f.err != nil {
		return nil, f.err
	}
	a, ok := f.assets[id]
	if !ok {
		return nil, assetinv.ErrNotFound
	}
	return a, nil
}

func staticAssetFactory(c assetinv.Client) AssetClientFactory {
	return func(context.Context, string) (assetinv.Client, error) { return c, nil }
}

func TestExtractIdentifiers(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "asset_tags_and_ip",
			text: "Laptop LT-4421 cannot reach 10.0.8.15, also affects PRN-007",
			want: []string{"LT-4421", "PRN-007", "10.0.8.15"},
		},
		{
			name: "dedupe_and_order",
			text: "LT-1 is fine but LT-4421 and again LT-4421",
			want: []string{"LT-4421"},
		},
		{
			name: "nothing",
			text: "user cannot log in to the portal",
			want: nil,
		},
		{
			name: "lowercase_not_matched",
			text: "the lt-4421 label is not a tag",
			want: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractIdentifiers(tt.text))
		})
	}
}

func TestAssetAdapter_Search(t *testing.T) {
	client := &fakeAssetClient{assets: map[string]*assetinv.Asset{
		"LT-4421": {Identifier: "LT-4421", Hostname: "jdoe-laptop", Model: "ThinkPad T14", OS: "Windows 11"},
	}}
	a := NewAssetAdapter(staticAssetFactory(client))

	res, err := a.Search(context.Background(), "acme", "LT-4421 is crashing, UNKNOWN-99 too")
	require.NoError(t, err)
	assert.Empty(t, res.Err)
	require.Len(t, res.Items, 1, "unknown identifiers are skipped")
	assert.Equal(t, "LT-4421", res.Items[0].Title)
	assert.Contains(t, res.Items[0].Body, "hostname: jdoe-laptop")
	assert.Equal(t, model.SourceAssetLookup, res.Items[0].Source)
}

func TestAssetAdapter_NoIdentifiers(t *testing.T) {
	a := NewAssetAdapter(staticAssetFactory(&fakeAssetClient{}))

	res, err := a.Search(context.Background(), "acme", "cannot log in")
	require.NoError(t, err)
	assert.Empty(t, res.Items)
	assert.Empty(t, res.Err)
}

func TestAssetAdapter_ServiceUnavailable(t *testing.T) {
	a := NewAssetAdapter(staticAssetFactory(&fakeAssetClient{err: eris.New("status 502")}))

	res, err := a.Search(context.Background(), "acme", "LT-4421 down")
	require.NoError(t, err)
	assert.Contains(t, res.Err, "502")
}
