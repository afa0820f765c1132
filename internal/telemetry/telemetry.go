package telemetry

import (
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/talkless/talkless/config"
)

// Telemetry provides monitoring and accounting for pipeline runs.
type Telemetry struct {
	config  config.TelemetryConfig
	logger  *log.Logger
	metrics *Metrics
	mu      sync.RWMutex

	runsTotal       *prometheus.CounterVec
	articlesFetched prometheus.Counter
	summariesTotal  prometheus.Counter
	indicatorsTotal prometheus.Counter
	llmTokens       *prometheus.CounterVec
	llmCalls        *prometheus.CounterVec
}

// Metrics holds in-process aggregates
type Metrics struct {
	TotalRuns          int64
	SuccessfulRuns     int64
	FailedRuns         int64
	AverageRunDuration time.Duration

	LLMCalls       int64
	LLMFailures    int64
	LLMTokensIn    int64
	LLMTokensOut   int64
	LLMTotalTime   time.Duration
}

// RunEvent represents one completed pipeline run
type RunEvent struct {
	RunID               string
	Success             bool
	Error               string
	Duration            time.Duration
	ArticlesFetched     int
	ArticlesGrouped     int
	SummariesGenerated  int
	BiasIndicatorsFound int
}

// New creates a telemetry instance and registers its collectors.
func New(cfg config.TelemetryConfig, registry *prometheus.Registry) *Telemetry {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	t := &Telemetry{
		config:  cfg,
		logger:  log.New(log.Writer(), "[TELEMETRY] ", log.LstdFlags),
		metrics: &Metrics{},
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "talkless_runs_total",
			Help: "Pipeline runs by final status.",
		}, []string{"status"}),
		articlesFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "talkless_articles_fetched_total",
			Help: "Articles fetched across all runs.",
		}),
		summariesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "talkless_summaries_generated_total",
			Help: "Validated summaries produced across all runs.",
		}),
		indicatorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "talkless_bias_indicators_total",
			Help: "Bias indicators detected across all runs.",
		}),
		llmTokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "talkless_llm_tokens_total",
			Help: "LLM tokens by direction.",
		}, []string{"direction"}),
		llmCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "talkless_llm_calls_total",
			Help: "Generation calls by outcome.",
		}, []string{"outcome"}),
	}
	registry.MustRegister(t.runsTotal, t.articlesFetched, t.summariesTotal, t.indicatorsTotal, t.llmTokens, t.llmCalls)
	return t
}

// RecordRun records a completed pipeline run
func (t *Telemetry) RecordRun(event RunEvent) {
	if !t.config.Enabled {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.metrics.TotalRuns++
	status := "completed"
	if event.Success {
		t.metrics.SuccessfulRuns++
	} else {
		t.metrics.FailedRuns++
		status = "failed"
	}
	t.runsTotal.WithLabelValues(status).Inc()
	t.articlesFetched.Add(float64(event.ArticlesFetched))
	t.summariesTotal.Add(float64(event.SummariesGenerated))
	t.indicatorsTotal.Add(float64(event.BiasIndicatorsFound))

	if t.metrics.TotalRuns == 1 {
		t.metrics.AverageRunDuration = event.Duration
	} else {
		total := t.metrics.AverageRunDuration * time.Duration(t.metrics.TotalRuns-1)
		t.metrics.AverageRunDuration = (total + event.Duration) / time.Duration(t.metrics.TotalRuns)
	}

	t.logger.Printf("Run Event: ID=%s, Success=%t, Duration=%v, Articles=%d, Summaries=%d, Indicators=%d",
		event.RunID, event.Success, event.Duration, event.ArticlesFetched, event.SummariesGenerated, event.BiasIndicatorsFound)
}

// RecordGeneration records token accounting for one generation call.
// Satisfies the summarization engine's UsageRecorder.
func (t *Telemetry) RecordGeneration(inputTokens, outputTokens int64, duration time.Duration, success bool) {
	if !t.config.Enabled || !t.config.CostTracking {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.metrics.LLMCalls++
	t.metrics.LLMTotalTime += duration
	outcome := "success"
	if !success {
		t.metrics.LLMFailures++
		outcome = "failure"
	}
	t.metrics.LLMTokensIn += inputTokens
	t.metrics.LLMTokensOut += outputTokens
	t.llmCalls.WithLabelValues(outcome).Inc()
	t.llmTokens.WithLabelValues("input").Add(float64(inputTokens))
	t.llmTokens.WithLabelValues("output").Add(float64(outputTokens))
}

// Snapshot returns a copy of the in-process metrics.
func (t *Telemetry) Snapshot() Metrics {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return *t.metrics
}
