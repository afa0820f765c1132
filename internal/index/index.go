// Package index maintains a full-text search index over generated
// summaries, so operators can query past coverage by keyword.
package index

import (
	"context"
	"fmt"
	"os"

	"github.com/blevesearch/bleve"

	"github.com/talkless/talkless/models"
)

// SummaryIndex wraps a bleve index of summary documents.
type SummaryIndex struct {
	bleve bleve.Index
}

// summaryDoc is the indexed shape of a summary.
type summaryDoc struct {
	Topic     string   `json:"topic"`
	Text      string   `json:"text"`
	Sources   []string `json:"sources"`
	CreatedAt string   `json:"created_at"`
}

// Hit is one search result.
type Hit struct {
	GroupID string
	Topic   string
	Score   float64
}

// Open opens or creates an index at path. An empty path yields an
// in-memory index that lives for the process only.
func Open(path string) (*SummaryIndex, error) {
	if path == "" {
		idx, err := bleve.NewMemOnly(bleve.NewIndexMapping())
		if err != nil {
			return nil, fmt.Errorf("creating in-memory index: %w", err)
		}
		return &SummaryIndex{bleve: idx}, nil
	}

	idx, err := bleve.Open(path)
	if err != nil {
		if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
			idx, err = bleve.New(path, bleve.NewIndexMapping())
		}
		if err != nil {
			return nil, fmt.Errorf("opening index %s: %w", path, err)
		}
	}
	return &SummaryIndex{bleve: idx}, nil
}

// IndexSummaries adds a batch of summaries, keyed by group id.
func (s *SummaryIndex) IndexSummaries(ctx context.Context, summaries []models.Summary) error {
	batch := s.bleve.NewBatch()
	for _, summary := range summaries {
		if err := ctx.Err(); err != nil {
			return err
		}
		names := make([]string, len(summary.Sources))
		for i, src := range summary.Sources {
			names[i] = src.Name
		}
		doc := summaryDoc{
			Topic:     summary.Topic,
			Text:      summary.Text,
			Sources:   names,
			CreatedAt: summary.CreatedAt.Format("2006-01-02T15:04:05Z"),
		}
		if err := batch.Index(summary.GroupID, doc); err != nil {
			return fmt.Errorf("indexing summary %s: %w", summary.GroupID, err)
		}
	}
	if err := s.bleve.Batch(batch); err != nil {
		return fmt.Errorf("committing index batch: %w", err)
	}
	return nil
}

// Search runs a match query over the indexed summaries.
func (s *SummaryIndex) Search(query string, limit int) ([]Hit, error) {
	if limit <= 0 {
		limit = 10
	}
	req := bleve.NewSearchRequestOptions(bleve.NewMatchQuery(query), limit, 0, false)
	req.Fields = []string{"topic"}
	res, err := s.bleve.Search(req)
	if err != nil {
		return nil, fmt.Errorf("searching %q: %w", query, err)
	}

	hits := make([]Hit, 0, len(res.Hits))
	for _, h := range res.Hits {
		hit := Hit{GroupID: h.ID, Score: h.Score}
		if topic, ok := h.Fields["topic"].(string); ok {
			hit.Topic = topic
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

// Close releases the index.
func (s *SummaryIndex) Close() error { return s.bleve.Close() }
