package source

import (
	"context"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/apexdesk/enrich-cli/internal/model"
)

const (
	defaultHistoryLimit     = 5
	defaultHistoryThreshold = 0.2
	historyCandidateFetch   = 50
)

// HistorySearcher is the slice of the store the history adapter reads.
type HistorySearcher interface {
	SearchHistory(ctx context.Context, tenantID, query string, limit int) ([]model.HistoricalItem, error)
}

// HistoryAdapter surfaces previously resolved tickets similar to the current
// one. The store returns broad candidates; scoring, thresholding, and the
// top-N cut happen here so both store backends rank identically.
type HistoryAdapter struct {
	store     HistorySearcher
	limit     int
	threshold float64
}

// NewHistoryAdapter creates a HistoryAdapter. minRelevance is the score below
// which candidates are dropped outright; limit caps the returned items.
func NewHistoryAdapter(store HistorySearcher, limit int, minRelevance float64) *HistoryAdapter {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if minRelevance <= 0 {
		minRelevance = defaultHistoryThreshold
	}
	return &HistoryAdapter{store: store, limit: limit, threshold: minRelevance}
}

func (a *HistoryAdapter) Kind() model.SourceKind {
	return model.SourceTicketHistory
}

func (a *HistoryAdapter) Search(ctx context.Context, tenantID, queryText string) (model.SourceResult, error) {
	candidates, err := a.store.SearchHistory(ctx, tenantID, queryText, historyCandidateFetch)
	if err != nil {
		return unavailable(a.Kind(), err), nil
	}

	terms := queryTerms(queryText)
	type scored struct {
		item  model.HistoricalItem
		score float64
	}
	var kept []scored
	for _, c := range candidates {
		s := relevanceScore(terms, c.Subject+" "+c.Resolution)
		if s < a.threshold {
			continue
		}
		kept = append(kept, scored{item: c, score: s})
	}

	// Score descending; ties go to the most recent resolution.
	sort.SliceStable(kept, func(i, j int) bool {
		if kept[i].score != kept[j].score {
			return kept[i].score > kept[j].score
		}
		return kept[i].item.ResolvedAt.After(kept[j].item.ResolvedAt)
	})
	if len(kept) > a.limit {
		kept = kept[:a.limit]
	}

	now := time.Now().UTC()
	items := make([]model.Item, 0, len(kept))
	for _, k := range kept {
		items = append(items, model.Item{
			Title:       k.item.Subject,
			Body:        k.item.Resolution,
			Relevance:   k.score,
			Source:      model.SourceTicketHistory,
			RetrievedAt: now,
		})
	}

	zap.L().Debug("history search",
		zap.String("tenant_id", tenantID),
		zap.Int("candidates", len(candidates)),
		zap.Int("kept", len(items)))

	return model.SourceResult{Kind: a.Kind(), Items: items}, nil
}

// queryTerms tokenizes the query the same way the store's candidate search
// does: lowercase, punctuation-trimmed, three characters minimum.
func queryTerms(query string) map[string]bool {
	terms := make(map[string]bool)
	for _, f := range strings.Fields(strings.ToLower(query)) {
		f = strings.Trim(f, `.,;:!?"'()[]{}`)
		if len(f) >= 3 {
			terms[f] = true
		}
	}
	return terms
}

// relevanceScore is the fraction of query terms present in the candidate
// text. Range [0, 1].
func relevanceScore(terms map[string]bool, text string) float64 {
	if len(terms) == 0 {
		return 0
	}
	lower := strings.ToLower(text)
	matched := 0
	for t := range terms {
		if strings.Contains(lower, t) {
			matched++
		}
	}
	return float64(matched) / float64(len(terms))
}
