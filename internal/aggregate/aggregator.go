// Package aggregate fans out one context-gathering call per source adapter
// and joins the results into a single GatheredContext. Individual source
// failures never fail the job; they are folded into the context's error list.
package aggregate

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/apexdesk/enrich-cli/internal/model"
	"github.com/apexdesk/enrich-cli/internal/source"
)

// Aggregator runs all source adapters concurrently under per-source
// deadlines.
type Aggregator struct {
	cfg      Config
	adapters []source.Adapter
}

// New creates an Aggregator over the given adapters.
func New(cfg Config, adapters ...source.Adapter) *Aggregator {
	return &Aggregator{cfg: cfg, adapters: adapters}
}

// Gather invokes every adapter concurrently and waits for all of them to
// reach a terminal state. It returns an error only on a programming-level
// failure inside an adapter (a panic); every availability failure is
// reported inside the returned GatheredContext instead.
//
// The whole fan-out runs under a ceiling of the summed per-source deadlines,
// so a misbehaving adapter cannot extend the job beyond its budget.
func (a *Aggregator) Gather(ctx context.Context, job model.JobDescriptor) (*model.GatheredContext, error) {
	ctx, cancel := context.WithTimeout(ctx, a.cfg.Ceiling())
	defer cancel()

	start := time.Now()

	// One fixed slot per adapter index; no shared map, no locks.
	results := make([]model.SourceResult, len(a.adapters))

	g, gCtx := errgroup.WithContext(ctx)
	for i, ad := range a.adapters {
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = eris.Errorf("aggregate: %s adapter panicked: %v", ad.Kind(), r)
				}
			}()

			policy := a.cfg.PolicyFor(ad.Kind())
			adCtx, adCancel := context.WithTimeout(gCtx, policy.Deadline)
			defer adCancel()

			res, err := ad.Search(adCtx, job.TenantID, job.Description)
			if err != nil {
				return eris.Wrapf(err, "aggregate: %s adapter", ad.Kind())
			}
			if res.Err != "" && adCtx.Err() == context.DeadlineExceeded {
				res.Err = fmt.Sprintf("timeout after %s", policy.Deadline)
			}
			res.Kind = ad.Kind()
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	gathered := &model.GatheredContext{}
	for _, res := range results {
		switch res.Kind {
		case model.SourceTicketHistory:
			gathered.History = res.Items
		case model.SourceDocumentation:
			gathered.Docs = res.Items
		case model.SourceAssetLookup:
			gathered.Assets = res.Items
		}
		if res.Err != "" {
			gathered.Errors = append(gathered.Errors, fmt.Sprintf("%s: %s", res.Kind, res.Err))
		}
	}

	zap.L().Info("context gathered",
		zap.String("correlation_id", job.CorrelationID),
		zap.String("ticket_id", job.TicketID),
		zap.Int("items", gathered.ItemCount()),
		zap.Int("source_errors", len(gathered.Errors)),
		zap.Duration("elapsed", time.Since(start)))

	return gathered, nil
}
