package news

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-shiori/go-readability"
)

const maxArticleChars = 12000

// Extractor pulls the main text of an article page via readability.
type Extractor struct {
	client *http.Client
}

// NewExtractor builds an extractor with the given per-request timeout.
func NewExtractor(timeout time.Duration) *Extractor {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Extractor{client: &http.Client{Timeout: timeout}}
}

// Extract fetches link and returns its readable text content. Pages
// that fail to parse return an empty string without error.
func (e *Extractor) Extract(ctx context.Context, link string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return "", fmt.Errorf("building request: %w", err)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching page: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %s", resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", fmt.Errorf("reading page: %w", err)
	}

	article, err := readability.FromReader(strings.NewReader(string(body)), mustParseURL(link))
	if err != nil {
		return "", nil
	}
	text := strings.TrimSpace(article.TextContent)
	if len(text) > maxArticleChars {
		text = text[:maxArticleChars]
	}
	return text, nil
}

func mustParseURL(raw string) *url.URL {
	u, err := url.Parse(raw)
	if err != nil {
		return &url.URL{}
	}
	return u
}
