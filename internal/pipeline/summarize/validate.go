package summarize

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/talkless/talkless/models"
)

// citationTagPattern matches the fixed bracket syntax for citations:
// [Source: Name] or [Sources: Name, Other Name].
var citationTagPattern = regexp.MustCompile(`(?i)\[sources?:\s*([^\]]+)\]`)

// minCitationTags is the floor the validator enforces when citations
// are required.
const minCitationTags = 3

// overlapWindow is the verbatim run length that fails the
// transformative-use check.
const overlapWindow = 10

// validate checks one candidate summary against the hard constraints.
// Returns a human-readable reason on rejection.
func (e *Engine) validate(text string, group models.ArticleGroup) error {
	if len(text) < e.cfg.MinSummaryLength {
		return fmt.Errorf("summary too short: %d chars, minimum %d", len(text), e.cfg.MinSummaryLength)
	}
	if len(text) > e.cfg.MaxSummaryLength {
		return fmt.Errorf("summary too long: %d chars, maximum %d", len(text), e.cfg.MaxSummaryLength)
	}

	if e.cfg.RequireCitations {
		tags := citationTagPattern.FindAllString(text, -1)
		if len(tags) < minCitationTags {
			return fmt.Errorf("insufficient citations: %d tags, minimum %d", len(tags), minCitationTags)
		}
	}

	for _, article := range group.Articles {
		if article.Content == "" {
			continue
		}
		if run := sharedWordRun(text, article.Content, overlapWindow); run != "" {
			return fmt.Errorf("verbatim %d-word overlap with %s: %q", overlapWindow, article.Source, run)
		}
	}

	return nil
}

// sharedWordRun reports the first n-consecutive-word sequence that both
// texts contain verbatim, or "" when none exists. Comparison is
// case-insensitive over whitespace-split words.
func sharedWordRun(a, b string, n int) string {
	aWords := strings.Fields(strings.ToLower(a))
	if len(aWords) < n {
		return ""
	}
	shingles := make(map[string]bool, len(aWords)-n+1)
	for i := 0; i+n <= len(aWords); i++ {
		shingles[strings.Join(aWords[i:i+n], " ")] = true
	}

	bWords := strings.Fields(strings.ToLower(b))
	for i := 0; i+n <= len(bWords); i++ {
		run := strings.Join(bWords[i:i+n], " ")
		if shingles[run] {
			return run
		}
	}
	return ""
}

// extractSources resolves the citation tags in a validated summary
// against the group's known sources. Unknown names are dropped; each
// source appears once, carrying the URL and title of its first article
// in the group.
func extractSources(text string, group models.ArticleGroup) []models.SummarySource {
	byName := make(map[string]models.SummarySource, len(group.Sources))
	for _, article := range group.Articles {
		key := strings.ToLower(article.Source)
		if _, ok := byName[key]; !ok {
			byName[key] = models.SummarySource{
				Name:  article.Source,
				URL:   article.URL,
				Title: article.Title,
			}
		}
	}

	var out []models.SummarySource
	seen := make(map[string]bool)
	for _, m := range citationTagPattern.FindAllStringSubmatch(text, -1) {
		for _, name := range strings.Split(m[1], ",") {
			key := strings.ToLower(strings.TrimSpace(name))
			if key == "" || seen[key] {
				continue
			}
			src, ok := byName[key]
			if !ok {
				continue
			}
			seen[key] = true
			out = append(out, src)
		}
	}
	return out
}
