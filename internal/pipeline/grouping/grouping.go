package grouping

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/talkless/talkless/config"
	"github.com/talkless/talkless/models"
)

// Embedder maps texts to fixed-length vectors.
type Embedder interface {
	CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorCache stores embeddings between runs. Optional.
type VectorCache interface {
	Get(ctx context.Context, text string) ([]float32, error)
	Put(ctx context.Context, text string, vec []float32) error
}

// Engine groups semantically related articles into topic clusters using
// vector similarity.
type Engine struct {
	cfg      config.GroupingConfig
	batch    int
	embedder Embedder
	cache    VectorCache
	logger   *log.Logger
}

// NewEngine creates a grouping engine. cache may be nil.
func NewEngine(cfg config.GroupingConfig, workers config.WorkersConfig, embedder Embedder, cache VectorCache, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.New(log.Writer(), "[GROUPING] ", log.LstdFlags)
	}
	batch := workers.EmbeddingBatch
	if batch <= 0 {
		batch = 64
	}
	return &Engine{cfg: cfg, batch: batch, embedder: embedder, cache: cache, logger: logger}
}

// Group clusters the batch into article groups. Articles not assigned
// to any dense cluster are dropped and never summarized. For a fixed
// article set, embeddings and parameters, the set of group ids is
// identical across runs.
func (e *Engine) Group(ctx context.Context, articles []models.Article) ([]models.ArticleGroup, error) {
	if len(articles) == 0 {
		return nil, nil
	}

	texts := make([]string, len(articles))
	for i, a := range articles {
		texts[i] = e.embeddingText(a)
	}

	vecs, err := e.embedAll(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embedding articles: %w", err)
	}

	dist := distanceMatrix(vecs)
	eps := 1 - e.cfg.SimilarityThreshold
	labels := dbscan(dist, eps, e.cfg.MinArticlesPerGroup)

	// Collect members per cluster, preserving original fetch order.
	members := make(map[int][]int)
	noise := 0
	for i, label := range labels {
		if label == noiseLabel {
			noise++
			continue
		}
		members[label] = append(members[label], i)
	}
	if noise > 0 {
		e.logger.Printf("%d of %d articles not assigned to any cluster", noise, len(articles))
	}

	// Iterate clusters by their first member's index so output order
	// does not depend on map iteration.
	clusterOrder := make([]int, 0, len(members))
	for label := range members {
		clusterOrder = append(clusterOrder, label)
	}
	sort.Slice(clusterOrder, func(i, j int) bool {
		return members[clusterOrder[i]][0] < members[clusterOrder[j]][0]
	})

	var groups []models.ArticleGroup
	for _, label := range clusterOrder {
		idx := members[label]
		if len(idx) > e.cfg.MaxArticlesPerGroup {
			e.logger.Printf("cluster of %d articles exceeds max %d, truncating", len(idx), e.cfg.MaxArticlesPerGroup)
			idx = idx[:e.cfg.MaxArticlesPerGroup]
		}
		clusterArticles := make([]models.Article, len(idx))
		for i, j := range idx {
			clusterArticles[i] = articles[j]
		}
		group := models.NewArticleGroup(topicLabel(clusterArticles), clusterArticles)
		groups = append(groups, group)
	}

	e.logger.Printf("grouped %d articles into %d groups", len(articles)-noise, len(groups))
	return groups, nil
}

// topicLabel picks a representative label for a cluster. The first
// member's title in fetch order is a conservative placeholder; a
// centroid-nearest selection can replace it without touching callers.
func topicLabel(articles []models.Article) string {
	if len(articles) == 0 {
		return ""
	}
	return articles[0].Title
}

// embeddingText builds the text representation an article is embedded
// under: the title plus a bounded prefix of the content.
func (e *Engine) embeddingText(a models.Article) string {
	text := a.Title
	if a.Content != "" {
		content := a.Content
		if e.cfg.ContentPrefixChars > 0 && len(content) > e.cfg.ContentPrefixChars {
			n := e.cfg.ContentPrefixChars
			for n > 0 && !utf8.RuneStart(content[n]) {
				n--
			}
			content = content[:n]
		}
		text = text + " " + content
	}
	return strings.TrimSpace(text)
}

// embedAll resolves a vector per text, consulting the cache first and
// batching provider calls for the misses.
func (e *Engine) embedAll(ctx context.Context, texts []string) ([][]float32, error) {
	vecs := make([][]float32, len(texts))
	var missIdx []int

	if e.cache != nil {
		for i, text := range texts {
			vec, err := e.cache.Get(ctx, text)
			if err != nil {
				// Cache trouble must not fail the run.
				e.logger.Printf("embedding cache get failed: %v", err)
			}
			if vec != nil {
				vecs[i] = vec
				continue
			}
			missIdx = append(missIdx, i)
		}
	} else {
		missIdx = make([]int, len(texts))
		for i := range texts {
			missIdx[i] = i
		}
	}

	for start := 0; start < len(missIdx); start += e.batch {
		end := start + e.batch
		if end > len(missIdx) {
			end = len(missIdx)
		}
		batchIdx := missIdx[start:end]
		batchTexts := make([]string, len(batchIdx))
		for i, j := range batchIdx {
			batchTexts[i] = texts[j]
		}
		batchVecs, err := e.embedder.CreateEmbedding(ctx, batchTexts)
		if err != nil {
			return nil, err
		}
		if len(batchVecs) != len(batchTexts) {
			return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(batchVecs), len(batchTexts))
		}
		for i, j := range batchIdx {
			vecs[j] = batchVecs[i]
			if e.cache != nil {
				if err := e.cache.Put(ctx, texts[j], batchVecs[i]); err != nil {
					e.logger.Printf("embedding cache put failed: %v", err)
				}
			}
		}
	}

	return vecs, nil
}
