package newsapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// Article is the wire shape returned by the NewsAPI top-headlines
// and everything endpoints.
type Article struct {
	Source struct {
		Name string `json:"name"`
	} `json:"source"`
	Author      string    `json:"author"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Content     string    `json:"content"`
	URL         string    `json:"url"`
	PublishedAt time.Time `json:"publishedAt"`
}

type response struct {
	Status       string    `json:"status"`
	Code         string    `json:"code"`
	Message      string    `json:"message"`
	TotalResults int       `json:"totalResults"`
	Articles     []Article `json:"articles"`
}

// NewsAPI is a thin client for newsapi.org.
type NewsAPI struct {
	APIKey   string
	Endpoint string
	client   *http.Client
}

// New builds a client. A zero timeout defaults to 30s.
func New(apiKey, endpoint string, timeout time.Duration) NewsAPI {
	if endpoint == "" {
		endpoint = "https://newsapi.org/v2/everything"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return NewsAPI{
		APIKey:   apiKey,
		Endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

// Fetch retrieves up to maxResults articles matching query.
func (n NewsAPI) Fetch(ctx context.Context, query string, maxResults int) ([]Article, error) {
	params := url.Values{}
	params.Add("q", query)
	params.Add("sortBy", "publishedAt")
	if maxResults > 0 {
		params.Add("pageSize", fmt.Sprintf("%d", maxResults))
	}
	params.Add("apiKey", n.APIKey)

	reqURL := fmt.Sprintf("%s?%s", n.Endpoint, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch news: %w", err)
	}
	defer resp.Body.Close()

	var result response
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if resp.StatusCode != http.StatusOK || result.Status != "ok" {
		return nil, fmt.Errorf("newsapi error: %s (%s: %s)", resp.Status, result.Code, result.Message)
	}

	return result.Articles, nil
}
