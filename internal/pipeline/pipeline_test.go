package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/talkless/talkless/config"
	"github.com/talkless/talkless/internal/pipeline/bias"
	"github.com/talkless/talkless/internal/pipeline/grouping"
	"github.com/talkless/talkless/internal/pipeline/perspective"
	"github.com/talkless/talkless/internal/pipeline/summarize"
	"github.com/talkless/talkless/models"
)

type fakeFetcher struct {
	articles []models.Article
	errs     []error
}

func (f *fakeFetcher) Fetch(context.Context) ([]models.Article, []error) {
	return f.articles, f.errs
}

// prefixEmbedder maps articles to canned vectors by title prefix.
type prefixEmbedder struct {
	vectors map[string][]float32
}

func (p *prefixEmbedder) CreateEmbedding(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		for key, vec := range p.vectors {
			if strings.HasPrefix(text, key) {
				out[i] = vec
			}
		}
		if out[i] == nil {
			return nil, fmt.Errorf("no vector for %q", text)
		}
	}
	return out, nil
}

type failingEmbedder struct{}

func (failingEmbedder) CreateEmbedding(context.Context, []string) ([][]float32, error) {
	return nil, errors.New("embedding service down")
}

type staticGenerator struct {
	text string
	err  error
}

func (g *staticGenerator) GenerateWithTokens(context.Context, string) (string, int64, int64, error) {
	if g.err != nil {
		return "", 0, 0, g.err
	}
	return g.text, 5, 10, nil
}

// memStore records saves for assertions. Like the SQL schema, artifact
// saves reference the run row: SaveRun upserts by id, and the other
// saves reject a run id that was never saved.
type memStore struct {
	mu         sync.Mutex
	runs       []models.PipelineRun
	summaries  []models.Summary
	indicators map[string][]models.BiasIndicator
	reports    []models.TransparencyReport
}

func (s *memStore) hasRun(id string) bool {
	for _, r := range s.runs {
		if r.ID == id {
			return true
		}
	}
	return false
}

func (s *memStore) SaveRun(_ context.Context, run models.PipelineRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, r := range s.runs {
		if r.ID == run.ID {
			s.runs[i] = run
			return nil
		}
	}
	s.runs = append(s.runs, run)
	return nil
}

func (s *memStore) SaveSummaries(_ context.Context, runID string, summaries []models.Summary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hasRun(runID) {
		return fmt.Errorf("summaries reference unknown run %q", runID)
	}
	s.summaries = append(s.summaries, summaries...)
	return nil
}

func (s *memStore) SaveIndicators(_ context.Context, runID string, ind map[string][]models.BiasIndicator) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hasRun(runID) {
		return fmt.Errorf("indicators reference unknown run %q", runID)
	}
	s.indicators = ind
	return nil
}

func (s *memStore) SaveReport(_ context.Context, runID string, report models.TransparencyReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hasRun(runID) {
		return fmt.Errorf("report references unknown run %q", runID)
	}
	s.reports = append(s.reports, report)
	return nil
}

func pipelineConfig() *config.Config {
	return &config.Config{
		Pipeline: config.PipelineConfig{
			Grouping: config.GroupingConfig{
				SimilarityThreshold: 0.7,
				MinArticlesPerGroup: 2,
				MaxArticlesPerGroup: 10,
				ContentPrefixChars:  500,
			},
			Bias: config.BiasConfig{MinConfidence: "low"},
			Summarize: config.SummarizeConfig{
				MinSummaryLength: 200,
				MaxSummaryLength: 1000,
				RequireCitations: true,
				MaxRetries:       1,
				ExcerptChars:     800,
			},
			Workers: config.WorkersConfig{
				ScoringWorkers: 2,
				SummaryWorkers: 2,
				EmbeddingBatch: 64,
			},
		},
	}
}

func testArticles() []models.Article {
	ts := time.Date(2026, 7, 1, 6, 0, 0, 0, time.UTC)
	return []models.Article{
		models.NewArticle("Election results announced", "https://bbc.example/1", "BBC News", "Alice", ts,
			"Officials announced the final tally on Monday, a historic margin according to several observers of the count."),
		models.NewArticle("Election outcome confirmed", "https://cnn.example/2", "CNN", "Bob", ts,
			"The outcome was confirmed by the commission on Monday evening. Sources say a recount request is unlikely."),
		models.NewArticle("Local team wins championship", "https://sport.example/3", "Sportswire", "", ts,
			"The local side claimed the championship trophy with a late goal in front of a capacity home crowd."),
	}
}

const pipelineSummary = "Final results were announced and then confirmed by the electoral commission this week " +
	"[Source: BBC News]. Reporting differed in emphasis: one outlet highlighted the margin of victory " +
	"[Source: BBC News], while another noted that a recount request appears unlikely [Source: CNN]. " +
	"Both outlets agree the certification process is complete [Sources: BBC News, CNN]."

func testOrchestrator(t *testing.T, fetcher SourceFetcher, embedder grouping.Embedder, gen summarize.Generator, store Store) *Orchestrator {
	t.Helper()
	cfg := pipelineConfig()
	quiet := log.New(io.Discard, "", 0)

	scorer := bias.NewEngine(cfg.Pipeline.Bias, bias.EmptyCatalog(), quiet)
	grouper := grouping.NewEngine(cfg.Pipeline.Grouping, cfg.Pipeline.Workers, embedder, nil, quiet)
	analyzer := perspective.NewAnalyzer(nil)
	summarizer := summarize.NewEngine(cfg.Pipeline.Summarize, gen, nil, quiet)

	return NewOrchestrator(cfg, quiet, nil, fetcher, scorer, grouper, analyzer, summarizer, store, nil)
}

func electionVectors() map[string][]float32 {
	return map[string][]float32{
		"Election results announced":   {1, 0, 0},
		"Election outcome confirmed":   {0.97, 0.03, 0},
		"Local team wins championship": {0, 1, 0},
	}
}

func TestExecuteHappyPath(t *testing.T) {
	store := &memStore{}
	orch := testOrchestrator(t,
		&fakeFetcher{articles: testArticles()},
		&prefixEmbedder{vectors: electionVectors()},
		&staticGenerator{text: pipelineSummary},
		store,
	)

	result, err := orch.Execute(context.Background())
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	run := result.Run
	if run.Status != models.RunStatusCompleted {
		t.Fatalf("status = %s", run.Status)
	}
	if run.ID == "" || run.CompletedAt == nil {
		t.Fatalf("run record incomplete: %+v", run)
	}
	if run.ArticlesFetched != 3 {
		t.Fatalf("fetched = %d", run.ArticlesFetched)
	}
	if run.ArticlesGrouped != 2 {
		t.Fatalf("grouped = %d, the outlier should be noise", run.ArticlesGrouped)
	}
	if run.SummariesGenerated != 1 || len(result.Summaries) != 1 {
		t.Fatalf("summaries = %d", run.SummariesGenerated)
	}
	if len(run.Errors) != 0 {
		t.Fatalf("unexpected run errors: %v", run.Errors)
	}
	if len(store.summaries) != 1 || len(store.reports) != 1 || len(store.runs) != 1 {
		t.Fatalf("store not handed all artifacts: %d summaries, %d reports, %d runs",
			len(store.summaries), len(store.reports), len(store.runs))
	}
	if result.Report.TotalArticles != 3 {
		t.Fatalf("report totals = %+v", result.Report)
	}
}

// orderStore observes the state of the run row at the moment the
// summaries land.
type orderStore struct {
	memStore
	statusAtSummarySave models.RunStatus
}

func (s *orderStore) SaveSummaries(ctx context.Context, runID string, summaries []models.Summary) error {
	s.mu.Lock()
	for _, r := range s.runs {
		if r.ID == runID {
			s.statusAtSummarySave = r.Status
		}
	}
	s.mu.Unlock()
	return s.memStore.SaveSummaries(ctx, runID, summaries)
}

func TestExecuteSavesRunRowBeforeArtifacts(t *testing.T) {
	store := &orderStore{}
	orch := testOrchestrator(t,
		&fakeFetcher{articles: testArticles()},
		&prefixEmbedder{vectors: electionVectors()},
		&staticGenerator{text: pipelineSummary},
		store,
	)

	result, err := orch.Execute(context.Background())
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if len(result.Run.Errors) != 0 {
		t.Fatalf("artifact saves should not fail: %v", result.Run.Errors)
	}
	if store.statusAtSummarySave != models.RunStatusRunning {
		t.Fatalf("run row at summary save = %q, want a running snapshot already persisted", store.statusAtSummarySave)
	}
	if len(store.runs) != 1 || store.runs[0].Status != models.RunStatusCompleted {
		t.Fatalf("final run row not upserted: %+v", store.runs)
	}
	if len(store.summaries) != 1 || len(store.reports) != 1 {
		t.Fatalf("artifacts missing: %d summaries, %d reports", len(store.summaries), len(store.reports))
	}
}

func TestExecuteRecordsFetchErrors(t *testing.T) {
	orch := testOrchestrator(t,
		&fakeFetcher{articles: testArticles(), errs: []error{errors.New("feed x timed out")}},
		&prefixEmbedder{vectors: electionVectors()},
		&staticGenerator{text: pipelineSummary},
		nil,
	)

	result, err := orch.Execute(context.Background())
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if result.Run.Status != models.RunStatusCompleted {
		t.Fatalf("per-source failure should not fail the run: %s", result.Run.Status)
	}
	if len(result.Run.Errors) != 1 || !strings.Contains(result.Run.Errors[0], "feed x timed out") {
		t.Fatalf("fetch error not recorded: %v", result.Run.Errors)
	}
	if result.Run.SummariesGenerated != 1 {
		t.Fatalf("healthy items should still flow through: %d summaries", result.Run.SummariesGenerated)
	}
}

func TestExecuteGroupingFailureKeepsBiasResults(t *testing.T) {
	orch := testOrchestrator(t,
		&fakeFetcher{articles: testArticles()},
		failingEmbedder{},
		&staticGenerator{text: pipelineSummary},
		nil,
	)

	result, err := orch.Execute(context.Background())
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	run := result.Run
	if run.Status != models.RunStatusCompleted {
		t.Fatalf("status = %s", run.Status)
	}
	if run.ArticlesGrouped != 0 || run.SummariesGenerated != 0 {
		t.Fatalf("nothing should be grouped or summarized: %+v", run)
	}
	var recorded bool
	for _, e := range run.Errors {
		if strings.Contains(e, "grouping") {
			recorded = true
		}
	}
	if !recorded {
		t.Fatalf("grouping failure not in run errors: %v", run.Errors)
	}
	if result.Report.TotalArticles != 3 {
		t.Fatal("transparency report should still cover the fetched articles")
	}
}

func TestExecuteSummarizeFailureIsolated(t *testing.T) {
	orch := testOrchestrator(t,
		&fakeFetcher{articles: testArticles()},
		&prefixEmbedder{vectors: electionVectors()},
		&staticGenerator{err: errors.New("model overloaded")},
		nil,
	)

	result, err := orch.Execute(context.Background())
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	run := result.Run
	if run.Status != models.RunStatusCompleted {
		t.Fatalf("summarize failure should not fail the run: %s", run.Status)
	}
	if run.SummariesGenerated != 0 {
		t.Fatalf("summaries = %d", run.SummariesGenerated)
	}
	var recorded bool
	for _, e := range run.Errors {
		if strings.Contains(e, "transport_failed") && strings.Contains(e, "model overloaded") {
			recorded = true
		}
	}
	if !recorded {
		t.Fatalf("summarize failure not tagged in run errors: %v", run.Errors)
	}
}

func TestExecuteCancelledContext(t *testing.T) {
	store := &memStore{}
	orch := testOrchestrator(t,
		&fakeFetcher{articles: testArticles()},
		&prefixEmbedder{vectors: electionVectors()},
		&staticGenerator{text: pipelineSummary},
		store,
	)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	result, err := orch.Execute(ctx)
	if err == nil {
		t.Fatal("expected an error for a cancelled run")
	}
	if result.Run.Status != models.RunStatusFailed {
		t.Fatalf("status = %s", result.Run.Status)
	}
	if result.Run.CompletedAt == nil {
		t.Fatal("failed run must still be closed out")
	}
	if result.Run.ArticlesFetched != 3 {
		t.Fatalf("partial counters should survive failure: %+v", result.Run)
	}
	if len(store.runs) != 1 || store.runs[0].Status != models.RunStatusFailed {
		t.Fatalf("failed run record not persisted: %+v", store.runs)
	}
}

func TestExecuteEmptyFetch(t *testing.T) {
	orch := testOrchestrator(t,
		&fakeFetcher{},
		&prefixEmbedder{},
		&staticGenerator{text: pipelineSummary},
		nil,
	)

	result, err := orch.Execute(context.Background())
	if err != nil {
		t.Fatalf("Execute failed on empty fetch: %v", err)
	}
	run := result.Run
	if run.Status != models.RunStatusCompleted {
		t.Fatalf("status = %s", run.Status)
	}
	if run.ArticlesFetched != 0 || run.ArticlesGrouped != 0 || run.SummariesGenerated != 0 {
		t.Fatalf("empty batch should produce zero counters: %+v", run)
	}
}
