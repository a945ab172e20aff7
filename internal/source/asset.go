package source

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/apexdesk/enrich-cli/internal/model"
	"github.com/apexdesk/enrich-cli/pkg/assetinv"
)

// Identifier shapes the asset adapter recognizes inside ticket text: asset
// tags like "LT-4421" or "PRN-007", and dotted-quad IPv4 addresses.
var (
	assetTagPattern = regexp.MustCompile(`\b[A-Z]{2,5}-\d{2,6}\b`)
	ipv4Pattern     = regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`)
)

const maxAssetLookups = 5

// AssetClientFactory builds an asset inventory client for a tenant.
type AssetClientFactory func(ctx context.Context, tenantID string) (assetinv.Client, error)

// AssetAdapter extracts device identifiers from the ticket description and
// resolves each against the inventory service. Unknown identifiers are
// skipped silently; tickets mention plenty of strings that merely look like
// asset tags.
type AssetAdapter struct {
	clients AssetClientFactory
}

// NewAssetAdapter creates an AssetAdapter.
func NewAssetAdapter(clients AssetClientFactory) *AssetAdapter {
	return &AssetAdapter{clients: clients}
}

func (a *AssetAdapter) Kind() model.SourceKind {
	return model.SourceAssetLookup
}

func (a *AssetAdapter) Search(ctx context.Context, tenantID, queryText string) (model.SourceResult, error) {
	identifiers := ExtractIdentifiers(queryText)
	if len(identifiers) == 0 {
		return model.SourceResult{Kind: a.Kind()}, nil
	}

	client, err := a.clients(ctx, tenantID)
	if err != nil {
		return unavailable(a.Kind(), err), nil
	}

	now := time.Now().UTC()
	var items []model.Item
	for _, id := range identifiers {
		asset, err := client.Lookup(ctx, id)
		if errors.Is(err, assetinv.ErrNotFound) {
			continue
		}
		if err != nil {
			// Partial results beat none; report the failure alongside
			// whatever resolved before it.
			return model.SourceResult{Kind: a.Kind(), Items: items, Err: err.Error()}, nil
		}
		items = append(items, model.Item{
			Title:       asset.Identifier,
			Body:        renderAsset(asset),
			Relevance:   1.0,
			Source:      model.SourceAssetLookup,
			RetrievedAt: now,
		})
	}
	return model.SourceResult{Kind: a.Kind(), Items: items}, nil
}

// ExtractIdentifiers returns the unique asset tags and IPv4 addresses found
// in text, in first-occurrence order, capped at maxAssetLookups.
func ExtractIdentifiers(text string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, match := range append(assetTagPattern.FindAllString(text, -1), ipv4Pattern.FindAllString(text, -1)...) {
		if seen[match] {
			continue
		}
		seen[match] = true
		out = append(out, match)
		if len(out) == maxAssetLookups {
			break
		}
	}
	return out
}

func renderAsset(a *assetinv.Asset) string {
	parts := []string{
		"hostname: " + a.Hostname,
		"model: " + a.Model,
		"os: " + a.OS,
	}
	if a.Owner != "" {
		parts = append(parts, "owner: "+a.Owner)
	}
	if a.Location != "" {
		parts = append(parts, "location: "+a.Location)
	}
	if a.LastSeen != nil {
		parts = append(parts, fmt.Sprintf("last seen: %s", a.LastSeen.UTC().Format(time.RFC3339)))
	}
	return strings.Join(parts, "; ")
}
