package main

import (
	"context"
	"fmt"
	"log"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/talkless/talkless/config"
	"github.com/talkless/talkless/internal/cache"
	"github.com/talkless/talkless/internal/index"
	"github.com/talkless/talkless/internal/pipeline"
	"github.com/talkless/talkless/internal/pipeline/bias"
	"github.com/talkless/talkless/internal/pipeline/grouping"
	"github.com/talkless/talkless/internal/pipeline/perspective"
	"github.com/talkless/talkless/internal/pipeline/summarize"
	"github.com/talkless/talkless/internal/store"
	"github.com/talkless/talkless/internal/telemetry"
	"github.com/talkless/talkless/news"
	"github.com/talkless/talkless/provider"
)

// app bundles everything a command needs to drive the pipeline.
type app struct {
	cfg   *config.Config
	orch  *pipeline.Orchestrator
	store *store.Store
	rdb   *redis.Client
	index *index.SummaryIndex
	ops   *telemetry.OpsServer
}

// buildApp wires the full pipeline from configuration. Redis, Postgres
// and the search index are optional; anything unconfigured degrades to
// a log line rather than a startup failure.
func buildApp(ctx context.Context, cfg *config.Config, logger *log.Logger) (*app, error) {
	registry := prometheus.NewRegistry()
	tel := telemetry.New(cfg.Telemetry, registry)

	var ops *telemetry.OpsServer
	if cfg.Telemetry.Enabled {
		ops = telemetry.NewOpsServer(cfg.Telemetry.MetricsPort, registry)
		ops.Start()
	}

	prov, err := provider.NewProvider(cfg.LLM)
	if err != nil {
		return nil, fmt.Errorf("creating LLM provider: %w", err)
	}

	catalog, err := bias.LoadCatalog(cfg.Pipeline.Bias.RulesFile)
	if err != nil {
		logger.Printf("WARNING: could not load bias rules from %s, scoring is disabled: %v",
			cfg.Pipeline.Bias.RulesFile, err)
		catalog = bias.EmptyCatalog()
	}

	var rdb *redis.Client
	if cfg.Storage.Redis.Host != "" {
		rdb, err = cache.Conn(ctx, cfg.Storage.Redis)
		if err != nil {
			logger.Printf("Redis unavailable, embedding cache disabled: %v", err)
			rdb = nil
		}
	}
	var vectors grouping.VectorCache
	if rdb != nil {
		vectors = cache.NewEmbeddingCache(rdb, cfg.Pipeline.Grouping.EmbeddingCacheExpiry)
	}

	var st *store.Store
	var pipeStore pipeline.Store
	if cfg.Storage.Postgres.URL != "" || cfg.Storage.Postgres.DBName != "" {
		st, err = store.New(ctx, cfg.Storage.Postgres.DSN(), cfg.Storage.Postgres.Timeout)
		if err != nil {
			return nil, fmt.Errorf("connecting to postgres: %w", err)
		}
		pipeStore = st
	} else {
		logger.Printf("Postgres not configured, run artifacts will not be persisted")
	}

	var idx *index.SummaryIndex
	var indexer pipeline.Indexer
	if cfg.Search.IndexPath != "" {
		idx, err = index.Open(cfg.Search.IndexPath)
		if err != nil {
			return nil, fmt.Errorf("opening search index: %w", err)
		}
		indexer = idx
	}

	fetcher := news.NewRetriever(cfg.Sources, log.New(log.Writer(), "[NEWS] ", log.LstdFlags))
	scorer := bias.NewEngine(cfg.Pipeline.Bias, catalog, nil)
	grouper := grouping.NewEngine(cfg.Pipeline.Grouping, cfg.Pipeline.Workers, prov, vectors, nil)
	analyzer := perspective.NewAnalyzer(cfg.Sources.ExpectedNames)
	summarizer := summarize.NewEngine(cfg.Pipeline.Summarize, prov, tel, nil)

	orch := pipeline.NewOrchestrator(cfg, logger, tel, fetcher, scorer, grouper, analyzer, summarizer, pipeStore, indexer)

	return &app{cfg: cfg, orch: orch, store: st, rdb: rdb, index: idx, ops: ops}, nil
}

// close releases connections in reverse wiring order.
func (a *app) close(ctx context.Context) {
	if a.index != nil {
		_ = a.index.Close()
	}
	if a.store != nil {
		_ = a.store.Close()
	}
	if a.rdb != nil {
		_ = a.rdb.Close()
	}
	if a.ops != nil {
		_ = a.ops.Shutdown(ctx)
	}
}
