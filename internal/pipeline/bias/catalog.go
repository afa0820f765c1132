package bias

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/spf13/viper"
)

// LoadedWord flags emotionally charged vocabulary.
type LoadedWord struct {
	Word      string `mapstructure:"word"`
	Category  string `mapstructure:"category"`
	Rationale string `mapstructure:"rationale"`
}

// AttributionIssue flags weak-sourcing phrasing.
type AttributionIssue struct {
	Pattern   string `mapstructure:"pattern"`
	Issue     string `mapstructure:"issue"`
	Rationale string `mapstructure:"rationale"`
}

// CatalogSettings carries the scoring knobs shipped with the rule file.
type CatalogSettings struct {
	Weights          map[string]float64 `mapstructure:"weights"`
	ConfidenceLevels map[string]float64 `mapstructure:"confidence_levels"`
}

// RuleCatalog is the versioned rule set the scorer runs against. Loaded
// once, treated as immutable afterwards.
type RuleCatalog struct {
	Version           string             `mapstructure:"version"`
	LoadedWords       []LoadedWord       `mapstructure:"loaded_words"`
	AttributionIssues []AttributionIssue `mapstructure:"attribution_issues"`
	Settings          CatalogSettings    `mapstructure:"settings"`

	wordPatterns []*regexp.Regexp
}

// Default confidence cut points, used when the rule file omits them.
const (
	defaultHighThreshold   = 3.0
	defaultMediumThreshold = 1.5
	defaultLowThreshold    = 0.5
)

// EmptyCatalog returns a catalog with no rules. Scoring against it
// detects nothing; used as the fallback when loading fails.
func EmptyCatalog() *RuleCatalog {
	return &RuleCatalog{Version: "empty"}
}

// LoadCatalog reads a rule catalog from a structured file. On failure
// the caller should fall back to EmptyCatalog and surface the error to
// operators rather than abort the run.
func LoadCatalog(path string) (*RuleCatalog, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading rule catalog %s: %w", path, err)
	}

	var catalog RuleCatalog
	if err := v.Unmarshal(&catalog); err != nil {
		return nil, fmt.Errorf("unmarshaling rule catalog %s: %w", path, err)
	}

	if err := catalog.compile(); err != nil {
		return nil, err
	}
	return &catalog, nil
}

// compile precompiles the word-boundary patterns and validates settings.
func (c *RuleCatalog) compile() error {
	c.wordPatterns = make([]*regexp.Regexp, len(c.LoadedWords))
	for i, lw := range c.LoadedWords {
		if strings.TrimSpace(lw.Word) == "" {
			return fmt.Errorf("loaded_words[%d]: empty word", i)
		}
		re, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(lw.Word) + `\b`)
		if err != nil {
			return fmt.Errorf("loaded_words[%d] %q: %w", i, lw.Word, err)
		}
		c.wordPatterns[i] = re
	}
	for category, w := range c.Settings.Weights {
		if w < 0 {
			return fmt.Errorf("settings.weights[%s] must be >= 0", category)
		}
	}
	return nil
}

// weight returns the configured weight for a category, defaulting to 1.
func (c *RuleCatalog) weight(category string) float64 {
	if w, ok := c.Settings.Weights[category]; ok {
		return w
	}
	return 1.0
}

// threshold returns a confidence cut point, with the documented default.
func (c *RuleCatalog) threshold(level string) float64 {
	if t, ok := c.Settings.ConfidenceLevels[level]; ok {
		return t
	}
	switch level {
	case "high":
		return defaultHighThreshold
	case "medium":
		return defaultMediumThreshold
	default:
		return defaultLowThreshold
	}
}
