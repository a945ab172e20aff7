package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/apexdesk/enrich-cli/internal/aggregate"
	"github.com/apexdesk/enrich-cli/internal/cache"
	"github.com/apexdesk/enrich-cli/internal/model"
	"github.com/apexdesk/enrich-cli/internal/orchestrator"
	"github.com/apexdesk/enrich-cli/internal/queue"
	"github.com/apexdesk/enrich-cli/internal/source"
	"github.com/apexdesk/enrich-cli/internal/store"
	"github.com/apexdesk/enrich-cli/internal/synth"
	"github.com/apexdesk/enrich-cli/internal/tenant"
	"github.com/apexdesk/enrich-cli/internal/writer"
	anthropicpkg "github.com/apexdesk/enrich-cli/pkg/anthropic"
	"github.com/apexdesk/enrich-cli/pkg/assetinv"
	"github.com/apexdesk/enrich-cli/pkg/docsearch"
	"github.com/apexdesk/enrich-cli/pkg/ticketing"
)

// pipelineEnv holds the initialized store, clients, and orchestrator needed
// by the serve/job commands.
type pipelineEnv struct {
	Store        store.Store
	Tenants      tenant.Source
	Orchestrator *orchestrator.Orchestrator
	Queue        *queue.Memory
	Workers      *queue.Pool
}

// Close releases resources held by the pipeline environment.
func (pe *pipelineEnv) Close() {
	if pe.Queue != nil {
		_ = pe.Queue.Close()
	}
	if pe.Store != nil {
		_ = pe.Store.Close()
	}
}

// initPipeline sets up the store, tenant-scoped clients, the aggregator,
// synthesis, and the worker queue. Callers should defer env.Close().
func initPipeline(ctx context.Context) (*pipelineEnv, error) {
	if cfg.Anthropic.Key == "" {
		return nil, eris.New("anthropic key is required (ENRICH_ANTHROPIC_KEY)")
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	tenants := tenant.NewStoreSource(st)

	ticketFactory := func(ctx context.Context, tenantID string) (ticketing.Client, error) {
		tc, err := tenants.Resolve(ctx, tenantID)
		if err != nil {
			return nil, err
		}
		return ticketing.NewClient(tc.TicketingBaseURL, tc.TicketingAPIKey), nil
	}
	docFactory := func(ctx context.Context, tenantID string) (docsearch.Client, error) {
		tc, err := tenants.Resolve(ctx, tenantID)
		if err != nil {
			return nil, err
		}
		if tc.DocSearchBaseURL == "" {
			return nil, eris.Errorf("doc search not configured for tenant %s", tenantID)
		}
		return docsearch.NewClient(tc.DocSearchBaseURL, tc.DocSearchAPIKey), nil
	}

	srcCfg := sourceConfig()

	docsCache := cache.New[[]model.Item](
		cfg.Sources.DocsCacheSize,
		time.Duration(cfg.Sources.DocsCacheTTLMinutes)*time.Minute,
	)

	adapters := []source.Adapter{
		source.NewHistoryAdapter(st, srcCfg.History.MaxItems, srcCfg.History.MinRelevance),
		source.NewDocsAdapter(docFactory, docsCache, srcCfg.Docs.MaxItems),
	}

	// Asset inventory is a shared platform service; skip the adapter entirely
	// when it is not configured.
	if cfg.AssetInv.BaseURL != "" {
		assetClient := assetinv.NewClient(cfg.AssetInv.BaseURL, cfg.AssetInv.Key)
		assetFactory := func(ctx context.Context, tenantID string) (assetinv.Client, error) {
			return assetClient, nil
		}
		adapters = append(adapters, source.NewAssetAdapter(assetFactory))
	} else {
		zap.L().Debug("ENRICH_ASSETINV_BASE_URL not set, asset lookup disabled")
	}

	agg := aggregate.New(srcCfg, adapters...)

	anthropicClient := anthropicpkg.NewClient(cfg.Anthropic.Key)
	backend := synth.NewBackend(anthropicClient, cfg.Anthropic.Model,
		synth.WithTimeout(cfg.Synthesis.Timeout),
		synth.WithMaxTokens(cfg.Synthesis.MaxTokens),
	)
	invoker := synth.NewInvoker(backend)

	updates := writer.New(ticketFactory)

	orch := orchestrator.New(st, agg, invoker, updates,
		orchestrator.WithJobDeadline(cfg.Job.Deadline),
	)

	q := queue.NewMemory(cfg.Queue.BufferSize)
	pool := queue.NewPool(q, orch, cfg.Queue.Workers)

	return &pipelineEnv{
		Store:        st,
		Tenants:      tenants,
		Orchestrator: orch,
		Queue:        q,
		Workers:      pool,
	}, nil
}

// sourceConfig builds the source policy from the inline config, optionally
// overridden by a YAML policy file.
func sourceConfig() aggregate.Config {
	srcCfg := aggregate.DefaultConfig()
	if cfg.Sources.HistoryDeadline > 0 {
		srcCfg.History.Deadline = cfg.Sources.HistoryDeadline
	}
	if cfg.Sources.HistoryMaxItems > 0 {
		srcCfg.History.MaxItems = cfg.Sources.HistoryMaxItems
	}
	if cfg.Sources.HistoryMinRelevance > 0 {
		srcCfg.History.MinRelevance = cfg.Sources.HistoryMinRelevance
	}
	if cfg.Sources.DocsDeadline > 0 {
		srcCfg.Docs.Deadline = cfg.Sources.DocsDeadline
	}
	if cfg.Sources.DocsMaxItems > 0 {
		srcCfg.Docs.MaxItems = cfg.Sources.DocsMaxItems
	}
	if cfg.Sources.AssetsDeadline > 0 {
		srcCfg.Assets.Deadline = cfg.Sources.AssetsDeadline
	}

	if cfg.Sources.ConfigPath != "" {
		loaded, err := aggregate.LoadConfig(cfg.Sources.ConfigPath)
		if err != nil {
			zap.L().Warn("source policy file ignored", zap.String("path", cfg.Sources.ConfigPath), zap.Error(err))
		} else {
			srcCfg = loaded
		}
	}
	return srcCfg
}
