package model

import "time"

// SourceKind identifies one of the context-gathering sources.
type SourceKind string

const (
	SourceTicketHistory SourceKind = "ticket_history"
	SourceDocumentation SourceKind = "documentation"
	SourceAssetLookup   SourceKind = "asset_lookup"
)

// Item is a single unit of gathered context with its relevance signal and
// provenance tag.
type Item struct {
	Title       string     `json:"title"`
	Body        string     `json:"body"`
	Relevance   float64    `json:"relevance"`
	Source      SourceKind `json:"source"`
	RetrievedAt time.Time  `json:"retrieved_at"`
}

// SourceResult is the outcome of one adapter invocation. A nil Err with an
// empty Items slice is a valid "nothing found" result.
type SourceResult struct {
	Kind  SourceKind `json:"kind"`
	Items []Item     `json:"items"`
	Err   string     `json:"error,omitempty"`
}

// GatheredContext aggregates all source results for one job. It is always
// produced, even when every source failed.
type GatheredContext struct {
	History []Item   `json:"history"`
	Docs    []Item   `json:"docs"`
	Assets  []Item   `json:"assets"`
	Errors  []string `json:"errors,omitempty"`
}

// ItemCount returns the total number of gathered items.
func (g *GatheredContext) ItemCount() int {
	return len(g.History) + len(g.Docs) + len(g.Assets)
}

// ContextSummary is a compact per-source tally persisted in the
// enhancement record.
type ContextSummary struct {
	HistoryItems int      `json:"history_items"`
	DocItems     int      `json:"doc_items"`
	AssetItems   int      `json:"asset_items"`
	Errors       []string `json:"errors,omitempty"`
}

func (g *GatheredContext) Summary() ContextSummary {
	return ContextSummary{
		HistoryItems: len(g.History),
		DocItems:     len(g.Docs),
		AssetItems:   len(g.Assets),
		Errors:       g.Errors,
	}
}
