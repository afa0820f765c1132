// Package pipeline sequences the content-processing stages over one
// batch of articles: fetch, per-article bias scoring, grouping,
// per-group perspective analysis, summarization with validation,
// transparency reporting and the persistence handoff. Failures are
// isolated per stage and per item; the run record is the audit trail.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/talkless/talkless/config"
	"github.com/talkless/talkless/internal/pipeline/bias"
	"github.com/talkless/talkless/internal/pipeline/grouping"
	"github.com/talkless/talkless/internal/pipeline/perspective"
	"github.com/talkless/talkless/internal/pipeline/summarize"
	"github.com/talkless/talkless/internal/telemetry"
	"github.com/talkless/talkless/models"
)

// SourceFetcher yields normalized articles with ids already computed.
// It may fail per source; per-source failures come back as errors
// alongside whatever articles the other sources produced.
type SourceFetcher interface {
	Fetch(ctx context.Context) ([]models.Article, []error)
}

// Store receives finalized run artifacts. Persistence details are out
// of scope for the pipeline core.
type Store interface {
	SaveRun(ctx context.Context, run models.PipelineRun) error
	SaveSummaries(ctx context.Context, runID string, summaries []models.Summary) error
	SaveIndicators(ctx context.Context, runID string, indicatorsByArticle map[string][]models.BiasIndicator) error
	SaveReport(ctx context.Context, runID string, report models.TransparencyReport) error
}

// Indexer receives validated summaries for search. Optional.
type Indexer interface {
	IndexSummaries(ctx context.Context, summaries []models.Summary) error
}

// RunResult bundles everything one batch execution produced.
type RunResult struct {
	Run                 models.PipelineRun
	Summaries           []models.Summary
	IndicatorsByArticle map[string][]models.BiasIndicator
	Report              models.TransparencyReport
}

// Orchestrator coordinates the pipeline stages and owns the run record.
// Callers must serialize runs; the orchestrator is not designed for
// concurrent overlapping executions.
type Orchestrator struct {
	cfg        *config.Config
	logger     *log.Logger
	telemetry  *telemetry.Telemetry
	fetcher    SourceFetcher
	scorer     *bias.Engine
	grouper    *grouping.Engine
	analyzer   *perspective.Analyzer
	summarizer *summarize.Engine
	store      Store
	indexer    Indexer
}

// NewOrchestrator wires the pipeline components. store and indexer may
// be nil, in which case the corresponding handoff is skipped.
func NewOrchestrator(
	cfg *config.Config,
	logger *log.Logger,
	tel *telemetry.Telemetry,
	fetcher SourceFetcher,
	scorer *bias.Engine,
	grouper *grouping.Engine,
	analyzer *perspective.Analyzer,
	summarizer *summarize.Engine,
	store Store,
	indexer Indexer,
) *Orchestrator {
	if logger == nil {
		logger = log.New(log.Writer(), "[ORCHESTRATOR] ", log.LstdFlags)
	}
	return &Orchestrator{
		cfg:        cfg,
		logger:     logger,
		telemetry:  tel,
		fetcher:    fetcher,
		scorer:     scorer,
		grouper:    grouper,
		analyzer:   analyzer,
		summarizer: summarizer,
		store:      store,
		indexer:    indexer,
	}
}

// Execute runs one batch end to end and returns the run result. The
// returned error is non-nil only for unrecoverable failures; per-item
// failures land in the run record's error list instead.
func (o *Orchestrator) Execute(ctx context.Context) (RunResult, error) {
	started := time.Now()
	result := RunResult{
		Run: models.PipelineRun{
			ID:        uuid.New().String(),
			Status:    models.RunStatusRunning,
			StartedAt: started.UTC(),
		},
		IndicatorsByArticle: make(map[string][]models.BiasIndicator),
	}
	run := &result.Run

	o.logger.Printf("starting run %s", run.ID)

	// Persist the running snapshot up front so artifact rows have a
	// run row to reference; the final snapshot upserts over it.
	if o.store != nil {
		if err := o.store.SaveRun(ctx, *run); err != nil {
			run.Errors = append(run.Errors, fmt.Sprintf("store run: %v", err))
		}
	}

	// Stage 1: fetch. Per-source failures are recorded and skipped.
	articles, fetchErrs := o.fetcher.Fetch(ctx)
	for _, err := range fetchErrs {
		run.Errors = append(run.Errors, fmt.Sprintf("fetch: %v", err))
	}
	run.ArticlesFetched = len(articles)
	o.logger.Printf("fetched %d articles (%d source errors)", len(articles), len(fetchErrs))

	if err := o.checkpoint(ctx); err != nil {
		return o.fail(result, started, err)
	}

	// Stage 2: per-article bias scoring, fanned out over a bounded
	// worker pool. An article that scores nothing simply contributes
	// no indicators.
	result.IndicatorsByArticle = o.scoreAll(ctx, articles)
	for _, indicators := range result.IndicatorsByArticle {
		run.BiasIndicatorsFound += len(indicators)
	}
	o.logger.Printf("found %d bias indicators in %d articles", run.BiasIndicatorsFound, len(result.IndicatorsByArticle))

	if err := o.checkpoint(ctx); err != nil {
		return o.fail(result, started, err)
	}

	// Stage 3: grouping. An embedding or clustering failure drops the
	// summarization stages but keeps the bias results.
	groups, err := o.grouper.Group(ctx, articles)
	if err != nil {
		run.Errors = append(run.Errors, fmt.Sprintf("grouping: %v", err))
		o.logger.Printf("grouping failed, continuing without groups: %v", err)
	}
	for _, g := range groups {
		run.ArticlesGrouped += len(g.Articles)
	}

	if err := o.checkpoint(ctx); err != nil {
		return o.fail(result, started, err)
	}

	// Stages 4+5: per-group perspective analysis and summarization,
	// fanned out across groups with failures isolated per group.
	result.Summaries = o.summarizeAll(ctx, groups, run)
	run.SummariesGenerated = len(result.Summaries)

	if err := o.checkpoint(ctx); err != nil {
		return o.fail(result, started, err)
	}

	// Stage 6: transparency aggregation.
	result.Report = o.scorer.Report(articles, result.IndicatorsByArticle)

	// Stage 7: persistence handoff. Storage errors are recorded, not fatal.
	o.persist(ctx, &result)

	now := time.Now().UTC()
	run.Status = models.RunStatusCompleted
	run.CompletedAt = &now
	o.record(result, started, true)
	o.logger.Printf("run %s completed: %d articles, %d grouped, %d summaries, %d indicators, %d errors",
		run.ID, run.ArticlesFetched, run.ArticlesGrouped, run.SummariesGenerated, run.BiasIndicatorsFound, len(run.Errors))
	if o.store != nil {
		if err := o.store.SaveRun(ctx, *run); err != nil {
			o.logger.Printf("saving run record failed: %v", err)
		}
	}
	return result, nil
}

// checkpoint is the cooperative cancellation point between stages.
func (o *Orchestrator) checkpoint(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("run aborted: %w", err)
	}
	return nil
}

// fail transitions the run to Failed, retaining partial counters for
// audit, and persists what it can.
func (o *Orchestrator) fail(result RunResult, started time.Time, cause error) (RunResult, error) {
	run := &result.Run
	now := time.Now().UTC()
	run.Status = models.RunStatusFailed
	run.CompletedAt = &now
	run.Errors = append(run.Errors, cause.Error())
	o.record(result, started, false)
	if o.store != nil {
		if err := o.store.SaveRun(context.Background(), *run); err != nil {
			o.logger.Printf("saving failed run record failed: %v", err)
		}
	}
	return result, cause
}

func (o *Orchestrator) record(result RunResult, started time.Time, success bool) {
	if o.telemetry == nil {
		return
	}
	o.telemetry.RecordRun(telemetry.RunEvent{
		RunID:               result.Run.ID,
		Success:             success,
		Duration:            time.Since(started),
		ArticlesFetched:     result.Run.ArticlesFetched,
		ArticlesGrouped:     result.Run.ArticlesGrouped,
		SummariesGenerated:  result.Run.SummariesGenerated,
		BiasIndicatorsFound: result.Run.BiasIndicatorsFound,
	})
}

// scoreAll fans bias scoring out over a bounded worker pool and joins
// before returning. Only read-only rule tables are shared.
func (o *Orchestrator) scoreAll(ctx context.Context, articles []models.Article) map[string][]models.BiasIndicator {
	workers := o.cfg.Pipeline.Workers.ScoringWorkers
	if workers <= 0 {
		workers = 1
	}

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		out = make(map[string][]models.BiasIndicator)
	)
	sem := make(chan struct{}, workers)

	for _, article := range articles {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(a models.Article) {
			defer wg.Done()
			defer func() { <-sem }()
			indicators := o.scorer.Score(a)
			if len(indicators) == 0 {
				return
			}
			mu.Lock()
			out[a.ID] = indicators
			mu.Unlock()
		}(article)
	}
	wg.Wait()
	return out
}

// summarizeAll runs perspective analysis plus summarization per group,
// bounded by the summary worker limit. Retries within one group stay
// sequential inside the engine; only the groups run concurrently.
func (o *Orchestrator) summarizeAll(ctx context.Context, groups []models.ArticleGroup, run *models.PipelineRun) []models.Summary {
	workers := o.cfg.Pipeline.Workers.SummaryWorkers
	if workers <= 0 {
		workers = 1
	}

	var (
		mu        sync.Mutex
		wg        sync.WaitGroup
		summaries []models.Summary
	)
	sem := make(chan struct{}, workers)

	for _, group := range groups {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(g models.ArticleGroup) {
			defer wg.Done()
			defer func() { <-sem }()

			analysis := o.analyzer.Analyze(g)
			outcome := o.summarizer.Summarize(ctx, g, analysis)

			mu.Lock()
			defer mu.Unlock()
			switch outcome.Kind {
			case summarize.OutcomeSuccess:
				summaries = append(summaries, *outcome.Summary)
			default:
				run.Errors = append(run.Errors, fmt.Sprintf("summarize %q: %s: %s", g.Topic, outcome.Kind, outcome.Reason))
			}
		}(group)
	}
	wg.Wait()

	return summaries
}

// persist hands the run artifacts to the store and search index.
func (o *Orchestrator) persist(ctx context.Context, result *RunResult) {
	run := &result.Run
	if o.store != nil {
		if err := o.store.SaveSummaries(ctx, run.ID, result.Summaries); err != nil {
			run.Errors = append(run.Errors, fmt.Sprintf("store summaries: %v", err))
		}
		if err := o.store.SaveIndicators(ctx, run.ID, result.IndicatorsByArticle); err != nil {
			run.Errors = append(run.Errors, fmt.Sprintf("store indicators: %v", err))
		}
		if err := o.store.SaveReport(ctx, run.ID, result.Report); err != nil {
			run.Errors = append(run.Errors, fmt.Sprintf("store report: %v", err))
		}
	}
	if o.indexer != nil && len(result.Summaries) > 0 {
		if err := o.indexer.IndexSummaries(ctx, result.Summaries); err != nil {
			run.Errors = append(run.Errors, fmt.Sprintf("index summaries: %v", err))
		}
	}
}
