package models

import (
	"testing"
	"time"
)

func TestArticleIDDeterministic(t *testing.T) {
	ts := time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC)
	a := ArticleID("https://example.com/story", ts)
	b := ArticleID("https://example.com/story", ts)
	if a != b {
		t.Fatalf("same inputs produced different ids: %s vs %s", a, b)
	}
	if len(a) != 16 {
		t.Fatalf("expected 16-char id, got %d chars: %s", len(a), a)
	}
}

func TestArticleIDIgnoresTitleAndContent(t *testing.T) {
	ts := time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC)
	a := NewArticle("Title A", "https://example.com/story", "BBC", "Alice", ts, "content one")
	b := NewArticle("Title B", "https://example.com/story", "CNN", "Bob", ts, "content two")
	if a.ID != b.ID {
		t.Fatalf("ids diverged on non-identity fields: %s vs %s", a.ID, b.ID)
	}
}

func TestArticleIDTimezoneNormalized(t *testing.T) {
	loc := time.FixedZone("plus2", 2*60*60)
	utc := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	shifted := utc.In(loc)
	if ArticleID("https://example.com/x", utc) != ArticleID("https://example.com/x", shifted) {
		t.Fatal("same instant in different zones produced different ids")
	}
}

func TestGroupIDOrderIndependent(t *testing.T) {
	ts := time.Now()
	a := NewArticle("A", "https://example.com/a", "BBC", "", ts, "aaa")
	b := NewArticle("B", "https://example.com/b", "CNN", "", ts, "bbb")
	c := NewArticle("C", "https://example.com/c", "Reuters", "", ts, "ccc")

	abc := GroupID([]Article{a, b, c})
	cba := GroupID([]Article{c, b, a})
	if abc != cba {
		t.Fatalf("member order changed group id: %s vs %s", abc, cba)
	}

	ab := GroupID([]Article{a, b})
	if ab == abc {
		t.Fatal("different membership produced the same group id")
	}
}

func TestNewArticleGroupSources(t *testing.T) {
	ts := time.Now()
	articles := []Article{
		NewArticle("1", "https://example.com/1", "Reuters", "", ts, "x"),
		NewArticle("2", "https://example.com/2", "BBC", "", ts, "y"),
		NewArticle("3", "https://example.com/3", "Reuters", "", ts, "z"),
	}
	g := NewArticleGroup("topic", articles)
	if len(g.Sources) != 2 {
		t.Fatalf("expected 2 distinct sources, got %v", g.Sources)
	}
	if g.Sources[0] != "BBC" || g.Sources[1] != "Reuters" {
		t.Fatalf("sources not sorted: %v", g.Sources)
	}
}

func TestConfidenceOrdering(t *testing.T) {
	if !ConfidenceHigh.AtLeast(ConfidenceMedium) {
		t.Fatal("high should meet medium")
	}
	if ConfidenceLow.AtLeast(ConfidenceMedium) {
		t.Fatal("low should not meet medium")
	}
	if !ConfidenceMedium.AtLeast(ConfidenceMedium) {
		t.Fatal("medium should meet itself")
	}
	if ConfidenceLevel("bogus").AtLeast(ConfidenceLow) {
		t.Fatal("unknown level should rank below low")
	}
}
