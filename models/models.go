package models

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// ErrRunNotFound is returned when a pipeline run is not found
var ErrRunNotFound = errors.New("pipeline run not found")

// Article represents a normalized news article. Identity is derived from
// URL and publication time only; two fetches of the same URL at the same
// timestamp collapse to one article.
type Article struct {
	ID          string    `json:"article_id"`
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	Source      string    `json:"source"`
	Author      string    `json:"author,omitempty"`
	PublishedAt time.Time `json:"published_at"`
	Content     string    `json:"content,omitempty"`
}

// NewArticle builds an article with its deterministic id populated.
func NewArticle(title, url, source, author string, publishedAt time.Time, content string) Article {
	return Article{
		ID:          ArticleID(url, publishedAt),
		Title:       title,
		URL:         url,
		Source:      source,
		Author:      author,
		PublishedAt: publishedAt,
		Content:     content,
	}
}

// ArticleID computes the stable 16-hex-char id for an article. Title,
// content and author do not participate.
func ArticleID(url string, publishedAt time.Time) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s", url, publishedAt.UTC().Format(time.RFC3339))))
	return hex.EncodeToString(sum[:])[:16]
}

// ArticleGroup is a topic cluster of semantically related articles.
type ArticleGroup struct {
	GroupID  string    `json:"group_id"`
	Topic    string    `json:"topic"`
	Articles []Article `json:"articles"`
	Sources  []string  `json:"sources"`
}

// NewArticleGroup assembles a group, computing group_id and the distinct
// source set from the members.
func NewArticleGroup(topic string, articles []Article) ArticleGroup {
	seen := make(map[string]bool, len(articles))
	var sources []string
	for _, a := range articles {
		if !seen[a.Source] {
			seen[a.Source] = true
			sources = append(sources, a.Source)
		}
	}
	sort.Strings(sources)
	return ArticleGroup{
		GroupID:  GroupID(articles),
		Topic:    topic,
		Articles: articles,
		Sources:  sources,
	}
}

// GroupID computes the deterministic group id from the sorted member
// article ids, so identical membership always yields the same id no
// matter what order clustering discovered the members in.
func GroupID(articles []Article) string {
	ids := make([]string, len(articles))
	for i, a := range articles {
		ids[i] = a.ID
	}
	sort.Strings(ids)
	sum := sha256.Sum256([]byte(strings.Join(ids, "|")))
	return hex.EncodeToString(sum[:])[:16]
}

// BiasIndicator records one detected bias signal in an article. Never
// mutated after creation.
type BiasIndicator struct {
	Type        string   `json:"type"`
	Description string   `json:"description"`
	Confidence  string   `json:"confidence"`
	Examples    []string `json:"examples"`
	Category    string   `json:"category,omitempty"`
	Rationale   string   `json:"rationale,omitempty"`
}

// Bias indicator types.
const (
	IndicatorLoadedLanguage = "loaded_language"
	IndicatorAttribution    = "attribution"
	IndicatorFraming        = "framing"
)

// ConfidenceLevel is the ordinal bias-detection tier (low < medium < high).
type ConfidenceLevel string

const (
	ConfidenceLow    ConfidenceLevel = "low"
	ConfidenceMedium ConfidenceLevel = "medium"
	ConfidenceHigh   ConfidenceLevel = "high"
)

// Rank returns the ordinal position of a confidence level. Unknown
// levels rank below low.
func (c ConfidenceLevel) Rank() int {
	switch c {
	case ConfidenceHigh:
		return 3
	case ConfidenceMedium:
		return 2
	case ConfidenceLow:
		return 1
	default:
		return 0
	}
}

// AtLeast reports whether c meets or exceeds min.
func (c ConfidenceLevel) AtLeast(min ConfidenceLevel) bool {
	return c.Rank() >= min.Rank()
}

// PerspectiveAnalysis is the derived per-group coverage record.
type PerspectiveAnalysis struct {
	Topic           string         `json:"topic"`
	TotalArticles   int            `json:"total_articles"`
	SourceCounts    map[string]int `json:"source_counts"`
	UniqueTitles    []string       `json:"unique_titles"`
	UniqueAuthors   []string       `json:"unique_authors"`
	SourceDiversity float64        `json:"source_diversity"`
	MissingSources  []string       `json:"missing_sources,omitempty"`
}

// SummarySource names one cited source inside a summary.
type SummarySource struct {
	Name  string `json:"name"`
	URL   string `json:"url"`
	Title string `json:"title"`
}

// Summary is a validated, citation-bearing summary for one group. A
// group that never produces a valid summary yields no Summary at all.
type Summary struct {
	Topic        string              `json:"topic"`
	Text         string              `json:"summary"`
	Sources      []SummarySource     `json:"sources"`
	Perspectives PerspectiveAnalysis `json:"perspectives"`
	Confidence   string              `json:"confidence"`
	GroupID      string              `json:"group_id"`
	CreatedAt    time.Time           `json:"created_at"`
}

// RunStatus is the lifecycle state of a pipeline run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// PipelineRun is the audit record for one batch execution. Counters and
// errors accumulate monotonically; the record is immutable once status
// leaves running.
type PipelineRun struct {
	ID                  string     `json:"id"`
	Status              RunStatus  `json:"status"`
	StartedAt           time.Time  `json:"started_at"`
	CompletedAt         *time.Time `json:"completed_at,omitempty"`
	ArticlesFetched     int        `json:"articles_fetched"`
	ArticlesGrouped     int        `json:"articles_grouped"`
	SummariesGenerated  int        `json:"summaries_generated"`
	BiasIndicatorsFound int        `json:"bias_indicators_found"`
	Errors              []string   `json:"errors,omitempty"`
}

// TransparencyReport aggregates bias-detection results across a run.
type TransparencyReport struct {
	TotalArticles          int            `json:"total_articles"`
	ArticlesWithIndicators int            `json:"articles_with_indicators"`
	TotalIndicators        int            `json:"total_indicators"`
	IndicatorTypes         map[string]int `json:"indicator_types"`
	IndicatorCategories    map[string]int `json:"indicator_categories"`
	SourceBreakdown        map[string]int `json:"source_breakdown"`
	RulesVersion           string         `json:"rules_version"`
}
