// Package source contains the context-gathering adapters. Each adapter wraps
// one external lookup behind a common contract so the aggregator can fan out
// uniformly.
package source

import (
	"context"

	"github.com/apexdesk/enrich-cli/internal/model"
)

// Adapter is the uniform contract for one context source.
//
// Search must respect the caller-supplied deadline and return promptly on
// cancellation. Availability failures (the source being down, timing out, or
// rejecting the call) are reported inside SourceResult.Err, not as the error
// return; only unexpected programming-level failures propagate as error.
type Adapter interface {
	Kind() model.SourceKind
	Search(ctx context.Context, tenantID, queryText string) (model.SourceResult, error)
}

// unavailable builds the empty-but-valid result for a source that could not
// be reached.
func unavailable(kind model.SourceKind, err error) model.SourceResult {
	return model.SourceResult{Kind: kind, Err: err.Error()}
}
