// Package news retrieves articles from configured upstream feeds and
// normalizes them into the internal article shape.
package news

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/talkless/talkless/config"
	"github.com/talkless/talkless/models"
	"github.com/talkless/talkless/news/newsapi"
)

// Retriever fetches articles from NewsAPI and optionally enriches
// them with extracted full text.
type Retriever struct {
	cfg       config.SourcesConfig
	client    newsapi.NewsAPI
	extractor *Extractor
	logger    *log.Logger
}

// NewRetriever creates a news retriever. The extractor is only used
// when content extraction is enabled in config.
func NewRetriever(cfg config.SourcesConfig, logger *log.Logger) *Retriever {
	if logger == nil {
		logger = log.New(log.Writer(), "[NEWS] ", log.LstdFlags)
	}
	r := &Retriever{
		cfg:    cfg,
		client: newsapi.New(cfg.NewsAPI.APIKey, cfg.NewsAPI.Endpoint, cfg.NewsAPI.Timeout),
		logger: logger,
	}
	if cfg.ExtractContent {
		r.extractor = NewExtractor(cfg.NewsAPI.Timeout)
	}
	return r
}

// Fetch retrieves the configured query's articles. Items that cannot
// be normalized are skipped and reported in the returned error slice,
// never aborting the whole fetch.
func (r *Retriever) Fetch(ctx context.Context) ([]models.Article, []error) {
	raw, err := r.client.Fetch(ctx, r.cfg.NewsAPI.Query, r.cfg.NewsAPI.MaxResults)
	if err != nil {
		return nil, []error{fmt.Errorf("newsapi fetch: %w", err)}
	}
	r.logger.Printf("Fetched %d raw articles for query %q", len(raw), r.cfg.NewsAPI.Query)

	var (
		articles []models.Article
		errs     []error
	)
	for _, item := range raw {
		article, err := r.normalize(ctx, item)
		if err != nil {
			errs = append(errs, fmt.Errorf("article %q: %w", item.URL, err))
			continue
		}
		articles = append(articles, article)
	}
	return articles, errs
}

func (r *Retriever) normalize(ctx context.Context, item newsapi.Article) (models.Article, error) {
	title := strings.TrimSpace(item.Title)
	if title == "" {
		return models.Article{}, fmt.Errorf("missing title")
	}
	if strings.TrimSpace(item.URL) == "" {
		return models.Article{}, fmt.Errorf("missing url")
	}
	if item.PublishedAt.IsZero() {
		return models.Article{}, fmt.Errorf("missing published_at")
	}

	content := strings.TrimSpace(item.Content)
	if content == "" {
		content = strings.TrimSpace(item.Description)
	}
	if r.extractor != nil && ctx.Err() == nil {
		if text, err := r.extractor.Extract(ctx, item.URL); err != nil {
			r.logger.Printf("Content extraction failed for %s: %v", item.URL, err)
		} else if text != "" {
			content = text
		}
	}
	if content == "" {
		return models.Article{}, fmt.Errorf("no usable content")
	}

	source := strings.TrimSpace(item.Source.Name)
	if source == "" {
		source = "unknown"
	}
	return models.NewArticle(title, item.URL, source, item.Author, item.PublishedAt, content), nil
}
