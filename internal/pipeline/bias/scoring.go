package bias

import (
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/talkless/talkless/config"
	"github.com/talkless/talkless/models"
)

// framingCategory is the fixed category for the framing heuristic.
const framingCategory = "framing"

// strongTitleWords is the fixed strong-language set for the framing
// pass: a title using one of these without the body's lead backing it
// up suggests headline framing.
var strongTitleWords = map[string]bool{
	"slams":      true,
	"blasts":     true,
	"destroys":   true,
	"shocking":   true,
	"outrageous": true,
	"disaster":   true,
	"chaos":      true,
	"crisis":     true,
	"explosive":  true,
	"bombshell":  true,
	"fury":       true,
	"scandal":    true,
}

// Engine scores individual articles against a rule catalog.
type Engine struct {
	catalog       *RuleCatalog
	minConfidence models.ConfidenceLevel
	logger        *log.Logger
}

// NewEngine creates a bias-scoring engine over an immutable catalog.
func NewEngine(cfg config.BiasConfig, catalog *RuleCatalog, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.New(log.Writer(), "[BIAS] ", log.LstdFlags)
	}
	return &Engine{
		catalog:       catalog,
		minConfidence: models.ConfidenceLevel(cfg.MinConfidence),
		logger:        logger,
	}
}

// Catalog exposes the engine's rule catalog.
func (e *Engine) Catalog() *RuleCatalog { return e.catalog }

// Score runs the three detection passes on one article and returns its
// indicators. If the article's overall confidence falls below the
// configured minimum, all indicators are discarded; filtering is
// all-or-nothing per article.
func (e *Engine) Score(article models.Article) []models.BiasIndicator {
	var indicators []models.BiasIndicator
	indicators = append(indicators, e.loadedLanguagePass(article)...)
	indicators = append(indicators, e.attributionPass(article)...)
	indicators = append(indicators, e.framingPass(article)...)

	if len(indicators) == 0 {
		return nil
	}

	overall := e.overallConfidence(indicators)
	if !overall.AtLeast(e.minConfidence) {
		return nil
	}
	return indicators
}

// loadedLanguagePass matches catalog words with word boundaries,
// case-insensitively, against title and content together.
func (e *Engine) loadedLanguagePass(article models.Article) []models.BiasIndicator {
	text := article.Title + " " + article.Content
	var out []models.BiasIndicator
	for i, lw := range e.catalog.LoadedWords {
		examples := scanPattern(text, e.catalog.wordPatterns[i])
		if examples == nil {
			continue
		}
		out = append(out, models.BiasIndicator{
			Type:        models.IndicatorLoadedLanguage,
			Description: fmt.Sprintf("loaded word %q", lw.Word),
			Confidence:  string(models.ConfidenceMedium),
			Examples:    examples,
			Category:    lw.Category,
			Rationale:   lw.Rationale,
		})
	}
	return out
}

// attributionPass matches catalog patterns as plain substrings against
// lower-cased content.
func (e *Engine) attributionPass(article models.Article) []models.BiasIndicator {
	content := strings.ToLower(article.Content)
	var out []models.BiasIndicator
	for _, ai := range e.catalog.AttributionIssues {
		examples := scanSubstring(content, strings.ToLower(ai.Pattern))
		if examples == nil {
			continue
		}
		out = append(out, models.BiasIndicator{
			Type:        models.IndicatorAttribution,
			Description: ai.Issue,
			Confidence:  string(models.ConfidenceMedium),
			Examples:    examples,
			Category:    models.IndicatorAttribution,
			Rationale:   ai.Rationale,
		})
	}
	return out
}

// framingPass flags strong title language the body's lead does not
// carry: the headline promises more than the first ~100 words deliver.
func (e *Engine) framingPass(article models.Article) []models.BiasIndicator {
	lead := firstWords(article.Content, 100)
	var out []models.BiasIndicator
	for _, word := range strings.Fields(strings.ToLower(article.Title)) {
		word = strings.Trim(word, `.,;:!?"'()[]`)
		if !strongTitleWords[word] || lead[word] {
			continue
		}
		out = append(out, models.BiasIndicator{
			Type:        models.IndicatorFraming,
			Description: fmt.Sprintf("title uses %q but the lead does not", word),
			Confidence:  string(models.ConfidenceLow),
			Examples:    []string{article.Title},
			Category:    framingCategory,
		})
	}
	return out
}

// overallConfidence computes the weighted score across indicator
// categories and maps it onto a tier by descending threshold.
func (e *Engine) overallConfidence(indicators []models.BiasIndicator) models.ConfidenceLevel {
	counts := make(map[string]int)
	for _, ind := range indicators {
		counts[ind.Category]++
	}
	var score float64
	for category, n := range counts {
		score += float64(n) * e.catalog.weight(category)
	}
	switch {
	case score >= e.catalog.threshold("high"):
		return models.ConfidenceHigh
	case score >= e.catalog.threshold("medium"):
		return models.ConfidenceMedium
	case score >= e.catalog.threshold("low"):
		return models.ConfidenceLow
	default:
		return ""
	}
}

// Report aggregates detection results across a run into a transparency
// report. Pure aggregation; inputs are not mutated.
func (e *Engine) Report(articles []models.Article, indicatorsByArticle map[string][]models.BiasIndicator) models.TransparencyReport {
	report := models.TransparencyReport{
		TotalArticles:          len(articles),
		ArticlesWithIndicators: len(indicatorsByArticle),
		IndicatorTypes:         make(map[string]int),
		IndicatorCategories:    make(map[string]int),
		SourceBreakdown:        make(map[string]int),
		RulesVersion:           e.catalog.Version,
	}

	for _, indicators := range indicatorsByArticle {
		report.TotalIndicators += len(indicators)
		for _, ind := range indicators {
			report.IndicatorTypes[ind.Type]++
			if ind.Category != "" {
				report.IndicatorCategories[ind.Category]++
			}
		}
	}

	for _, a := range articles {
		if len(indicatorsByArticle[a.ID]) > 0 {
			report.SourceBreakdown[a.Source]++
		}
	}

	return report
}

// Categories lists the catalog's distinct loaded-word categories, for
// operator display. Sorted for stable output.
func (e *Engine) Categories() []string {
	seen := make(map[string]bool)
	for _, lw := range e.catalog.LoadedWords {
		seen[lw.Category] = true
	}
	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}
