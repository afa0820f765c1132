package perspective

import (
	"sort"

	"github.com/talkless/talkless/models"
)

// Analyzer summarizes per-source coverage and diversity within a group.
// Pure aggregation; no failure modes beyond the empty group.
type Analyzer struct {
	// expectedSources, when configured, drives coverage-gap reporting:
	// sources the deployment tracks that did not cover a topic.
	expectedSources []string
}

// NewAnalyzer creates an analyzer. expectedSources may be empty.
func NewAnalyzer(expectedSources []string) *Analyzer {
	return &Analyzer{expectedSources: expectedSources}
}

// Analyze derives the perspective record for one group. An empty group
// yields a zero-valued analysis.
func (a *Analyzer) Analyze(group models.ArticleGroup) models.PerspectiveAnalysis {
	analysis := models.PerspectiveAnalysis{
		Topic:         group.Topic,
		TotalArticles: len(group.Articles),
		SourceCounts:  make(map[string]int),
	}
	if len(group.Articles) == 0 {
		return analysis
	}

	titleSeen := make(map[string]bool)
	authorSeen := make(map[string]bool)
	for _, article := range group.Articles {
		analysis.SourceCounts[article.Source]++
		if article.Title != "" && !titleSeen[article.Title] {
			titleSeen[article.Title] = true
			analysis.UniqueTitles = append(analysis.UniqueTitles, article.Title)
		}
		if article.Author != "" && !authorSeen[article.Author] {
			authorSeen[article.Author] = true
			analysis.UniqueAuthors = append(analysis.UniqueAuthors, article.Author)
		}
	}

	analysis.SourceDiversity = float64(len(analysis.SourceCounts)) / float64(len(group.Articles))
	analysis.MissingSources = a.missingSources(analysis.SourceCounts)
	return analysis
}

// missingSources lists configured sources with no articles in the
// group. Helps surface selection bias: stories some outlets skipped.
func (a *Analyzer) missingSources(counts map[string]int) []string {
	var missing []string
	for _, name := range a.expectedSources {
		if counts[name] == 0 {
			missing = append(missing, name)
		}
	}
	sort.Strings(missing)
	return missing
}
