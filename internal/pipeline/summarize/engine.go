package summarize

import (
	"context"
	"log"
	"time"

	"github.com/talkless/talkless/config"
	"github.com/talkless/talkless/models"
)

// Generator is the narrow capability interface for the external
// generative-text collaborator.
type Generator interface {
	GenerateWithTokens(ctx context.Context, prompt string) (string, int64, int64, error)
}

// UsageRecorder receives token accounting for generation calls. Optional.
type UsageRecorder interface {
	RecordGeneration(inputTokens, outputTokens int64, duration time.Duration, success bool)
}

// OutcomeKind tags the result of a summarization attempt sequence.
type OutcomeKind string

const (
	OutcomeSuccess          OutcomeKind = "success"
	OutcomeValidationFailed OutcomeKind = "validation_failed"
	OutcomeTransportFailed  OutcomeKind = "transport_failed"
)

// Outcome is the tagged result of summarizing one group. Exactly one of
// Summary (on success) or Reason (on failure) is meaningful; no error
// escapes to the caller as a Go error.
type Outcome struct {
	Kind    OutcomeKind
	Summary *models.Summary
	Reason  string
}

// Engine drives the generative collaborator to produce a validated,
// cited summary per group, with bounded retries.
type Engine struct {
	cfg       config.SummarizeConfig
	generator Generator
	usage     UsageRecorder
	logger    *log.Logger
	now       func() time.Time
}

// NewEngine creates a summarization engine. usage may be nil.
func NewEngine(cfg config.SummarizeConfig, generator Generator, usage UsageRecorder, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.New(log.Writer(), "[SUMMARIZE] ", log.LstdFlags)
	}
	return &Engine{
		cfg:       cfg,
		generator: generator,
		usage:     usage,
		logger:    logger,
		now:       time.Now,
	}
}

// Summarize attempts up to MaxRetries+1 generations for the group, each
// validated independently, and returns the first passing attempt as a
// Summary. Retries within a group are sequential. Exhausting all
// attempts yields the last failure; the group is then skipped.
func (e *Engine) Summarize(ctx context.Context, group models.ArticleGroup, perspectives models.PerspectiveAnalysis) Outcome {
	prompt := e.buildPrompt(group, perspectives)
	attempts := e.cfg.MaxRetries + 1

	last := Outcome{Kind: OutcomeTransportFailed, Reason: "no attempts executed"}
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return Outcome{Kind: OutcomeTransportFailed, Reason: err.Error()}
		}

		started := e.now()
		text, tokensIn, tokensOut, err := e.generator.GenerateWithTokens(ctx, prompt)
		if e.usage != nil {
			e.usage.RecordGeneration(tokensIn, tokensOut, time.Since(started), err == nil)
		}
		if err != nil {
			e.logger.Printf("generation attempt %d/%d for %q failed: %v", attempt, attempts, group.Topic, err)
			last = Outcome{Kind: OutcomeTransportFailed, Reason: err.Error()}
			continue
		}

		if err := e.validate(text, group); err != nil {
			e.logger.Printf("validation attempt %d/%d for %q rejected: %v", attempt, attempts, group.Topic, err)
			last = Outcome{Kind: OutcomeValidationFailed, Reason: err.Error()}
			continue
		}

		summary := models.Summary{
			Topic:        group.Topic,
			Text:         text,
			Sources:      extractSources(text, group),
			Perspectives: perspectives,
			Confidence:   string(models.ConfidenceMedium),
			GroupID:      group.GroupID,
			CreatedAt:    e.now().UTC(),
		}
		return Outcome{Kind: OutcomeSuccess, Summary: &summary}
	}

	return last
}
