package grouping

import (
	"context"
	"fmt"
	"io"
	"log"
	"math"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/talkless/talkless/config"
	"github.com/talkless/talkless/models"
)

// fakeEmbedder returns canned vectors keyed by the article title that
// starts each embedding text.
type fakeEmbedder struct {
	vectors map[string][]float32
	calls   int
}

func (f *fakeEmbedder) CreateEmbedding(_ context.Context, texts []string) ([][]float32, error) {
	f.calls++
	out := make([][]float32, len(texts))
	for i, text := range texts {
		for key, vec := range f.vectors {
			if len(text) >= len(key) && text[:len(key)] == key {
				out[i] = vec
			}
		}
		if out[i] == nil {
			return nil, fmt.Errorf("no canned vector for %q", text)
		}
	}
	return out, nil
}

func testEngine(t *testing.T, embedder Embedder) *Engine {
	t.Helper()
	cfg := config.GroupingConfig{
		SimilarityThreshold: 0.7,
		MinArticlesPerGroup: 2,
		MaxArticlesPerGroup: 10,
		ContentPrefixChars:  500,
	}
	workers := config.WorkersConfig{EmbeddingBatch: 64}
	return NewEngine(cfg, workers, embedder, nil, log.New(io.Discard, "", 0))
}

func article(title, url string) models.Article {
	ts := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	return models.NewArticle(title, url, "Wire", "", ts, title+" body text")
}

func TestGroupPairsSimilarDropsOutlier(t *testing.T) {
	embedder := &fakeEmbedder{vectors: map[string][]float32{
		"Election results":  {1, 0, 0},
		"Election outcome":  {0.95, 0.05, 0},
		"Volcano erupts":    {0, 1, 0},
	}}
	e := testEngine(t, embedder)

	articles := []models.Article{
		article("Election results", "https://a.example/1"),
		article("Election outcome", "https://b.example/2"),
		article("Volcano erupts", "https://c.example/3"),
	}
	groups, err := e.Group(context.Background(), articles)
	if err != nil {
		t.Fatalf("Group failed: %v", err)
	}
	if len(groups) != 1 {
		t.Fatalf("expected 1 group, got %d", len(groups))
	}
	g := groups[0]
	if len(g.Articles) != 2 {
		t.Fatalf("expected 2 members, got %d", len(g.Articles))
	}
	if g.Topic != "Election results" {
		t.Fatalf("expected topic from first member, got %q", g.Topic)
	}
	for _, a := range g.Articles {
		if a.Title == "Volcano erupts" {
			t.Fatal("outlier leaked into the group")
		}
	}
}

func TestGroupDeterministicAcrossOrder(t *testing.T) {
	vectors := map[string][]float32{
		"S1": {1, 0, 0},
		"S2": {0.99, 0.01, 0},
		"S3": {0.98, 0.02, 0},
		"S4": {0, 0, 1},
		"S5": {0.01, 0, 0.99},
	}
	articles := []models.Article{
		article("S1", "https://x.example/1"),
		article("S2", "https://x.example/2"),
		article("S3", "https://x.example/3"),
		article("S4", "https://x.example/4"),
		article("S5", "https://x.example/5"),
	}

	ids := func(in []models.Article) map[string]bool {
		e := testEngine(t, &fakeEmbedder{vectors: vectors})
		groups, err := e.Group(context.Background(), in)
		if err != nil {
			t.Fatalf("Group failed: %v", err)
		}
		set := make(map[string]bool, len(groups))
		for _, g := range groups {
			set[g.GroupID] = true
		}
		return set
	}

	forward := ids(articles)
	reversed := make([]models.Article, len(articles))
	for i, a := range articles {
		reversed[len(articles)-1-i] = a
	}
	backward := ids(reversed)

	if len(forward) != len(backward) {
		t.Fatalf("group counts differ: %d vs %d", len(forward), len(backward))
	}
	for id := range forward {
		if !backward[id] {
			t.Fatalf("group id %s missing after reordering", id)
		}
	}
}

func TestGroupEmptyInput(t *testing.T) {
	e := testEngine(t, &fakeEmbedder{})
	groups, err := e.Group(context.Background(), nil)
	if err != nil {
		t.Fatalf("Group failed on empty input: %v", err)
	}
	if groups != nil {
		t.Fatalf("expected no groups, got %d", len(groups))
	}
}

func TestGroupTruncatesOversizedCluster(t *testing.T) {
	vectors := make(map[string][]float32)
	var articles []models.Article
	for i := 0; i < 5; i++ {
		title := fmt.Sprintf("T%d", i)
		vectors[title] = []float32{1, 0}
		articles = append(articles, article(title, fmt.Sprintf("https://t.example/%d", i)))
	}
	cfg := config.GroupingConfig{
		SimilarityThreshold: 0.7,
		MinArticlesPerGroup: 2,
		MaxArticlesPerGroup: 3,
		ContentPrefixChars:  500,
	}
	e := NewEngine(cfg, config.WorkersConfig{EmbeddingBatch: 64}, &fakeEmbedder{vectors: vectors}, nil, log.New(io.Discard, "", 0))

	groups, err := e.Group(context.Background(), articles)
	if err != nil {
		t.Fatalf("Group failed: %v", err)
	}
	if len(groups) != 1 {
		t.Fatalf("expected 1 group, got %d", len(groups))
	}
	if len(groups[0].Articles) != 3 {
		t.Fatalf("expected cluster truncated to 3, got %d", len(groups[0].Articles))
	}
}

func TestCosineSimilarity(t *testing.T) {
	cases := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"zero vector", []float32{0, 0}, []float32{1, 0}, 0},
		{"length mismatch", []float32{1}, []float32{1, 0}, 0},
	}
	for _, tc := range cases {
		got := cosineSimilarity(tc.a, tc.b)
		if math.Abs(got-tc.want) > 1e-9 {
			t.Fatalf("%s: got %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestDBSCANNoiseAndClusters(t *testing.T) {
	// Two tight pairs and one isolated point.
	dist := [][]float64{
		{0, 0.1, 0.9, 0.9, 0.9},
		{0.1, 0, 0.9, 0.9, 0.9},
		{0.9, 0.9, 0, 0.1, 0.9},
		{0.9, 0.9, 0.1, 0, 0.9},
		{0.9, 0.9, 0.9, 0.9, 0},
	}
	labels := dbscan(dist, 0.3, 2)
	if labels[0] != labels[1] || labels[0] == noiseLabel {
		t.Fatalf("first pair not clustered: %v", labels)
	}
	if labels[2] != labels[3] || labels[2] == noiseLabel {
		t.Fatalf("second pair not clustered: %v", labels)
	}
	if labels[0] == labels[2] {
		t.Fatalf("distinct pairs merged: %v", labels)
	}
	if labels[4] != noiseLabel {
		t.Fatalf("isolated point not noise: %v", labels)
	}
}

func TestDBSCANMinPtsExcludesSingletons(t *testing.T) {
	dist := [][]float64{
		{0, 0.9},
		{0.9, 0},
	}
	labels := dbscan(dist, 0.3, 2)
	for i, l := range labels {
		if l != noiseLabel {
			t.Fatalf("point %d should be noise, got label %d", i, l)
		}
	}
}

func TestEmbeddingTextKeepsRuneBoundaries(t *testing.T) {
	cfg := config.GroupingConfig{
		SimilarityThreshold: 0.7,
		MinArticlesPerGroup: 2,
		MaxArticlesPerGroup: 10,
		ContentPrefixChars:  5,
	}
	e := NewEngine(cfg, config.WorkersConfig{}, nil, nil, log.New(io.Discard, "", 0))

	ts := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	a := models.NewArticle("Título", "https://wire.example/1", "Wire", "", ts, strings.Repeat("é", 8))
	text := e.embeddingText(a)
	if !utf8.ValidString(text) {
		t.Fatalf("embedding text split a rune: %q", text)
	}
	if text != "Título "+strings.Repeat("é", 2) {
		t.Fatalf("embedding text = %q", text)
	}
}
