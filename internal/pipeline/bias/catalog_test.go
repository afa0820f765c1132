package bias

import (
	"os"
	"path/filepath"
	"testing"
)

const sampleRules = `---
version: "unit"
loaded_words:
  - word: "bombshell"
    category: "sensational"
    rationale: "editorializes significance"
attribution_issues:
  - pattern: "reports indicate"
    issue: "vague attribution"
settings:
  weights:
    sensational: 2.0
  confidence_levels:
    high: 4.0
    medium: 2.0
    low: 1.0
`

func writeRules(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rules.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing rules file: %v", err)
	}
	return path
}

func TestLoadCatalog(t *testing.T) {
	catalog, err := LoadCatalog(writeRules(t, sampleRules))
	if err != nil {
		t.Fatalf("LoadCatalog failed: %v", err)
	}
	if catalog.Version != "unit" {
		t.Fatalf("version = %s", catalog.Version)
	}
	if len(catalog.LoadedWords) != 1 || len(catalog.AttributionIssues) != 1 {
		t.Fatalf("unexpected rule counts: %d words, %d issues", len(catalog.LoadedWords), len(catalog.AttributionIssues))
	}
	if catalog.weight("sensational") != 2.0 {
		t.Fatalf("weight = %v", catalog.weight("sensational"))
	}
	if catalog.weight("unlisted") != 1.0 {
		t.Fatalf("missing weight should default to 1, got %v", catalog.weight("unlisted"))
	}
	if catalog.threshold("medium") != 2.0 {
		t.Fatalf("threshold = %v", catalog.threshold("medium"))
	}
}

func TestLoadCatalogMissingFile(t *testing.T) {
	if _, err := LoadCatalog(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected an error for a missing rules file")
	}
}

func TestLoadCatalogRejectsEmptyWord(t *testing.T) {
	bad := `---
version: "bad"
loaded_words:
  - word: "  "
    category: "x"
`
	if _, err := LoadCatalog(writeRules(t, bad)); err == nil {
		t.Fatal("expected an error for an empty loaded word")
	}
}

func TestLoadCatalogRejectsNegativeWeight(t *testing.T) {
	bad := `---
version: "bad"
settings:
  weights:
    emotional: -1.0
`
	if _, err := LoadCatalog(writeRules(t, bad)); err == nil {
		t.Fatal("expected an error for a negative weight")
	}
}

func TestDefaultThresholds(t *testing.T) {
	c := EmptyCatalog()
	if c.threshold("high") != defaultHighThreshold {
		t.Fatalf("high default = %v", c.threshold("high"))
	}
	if c.threshold("medium") != defaultMediumThreshold {
		t.Fatalf("medium default = %v", c.threshold("medium"))
	}
	if c.threshold("low") != defaultLowThreshold {
		t.Fatalf("low default = %v", c.threshold("low"))
	}
}
