// Package news fetches crypto headlines from CryptoCompare.
package news

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jpillora/backoff"

	"github.com/hamidbarzin/cryptobarzin/internal/cache"
	"github.com/hamidbarzin/cryptobarzin/internal/models"
)

const summaryLength = 150

// Client provides access to the CryptoCompare news API
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	cache      *cache.Manager
	maxRetries int
	backoff    func() *backoff.Backoff
}

type newsResponse struct {
	Data []struct {
		ID          string `json:"id"`
		Title       string `json:"title"`
		URL         string `json:"url"`
		Body        string `json:"body"`
		Categories  string `json:"categories"`
		PublishedOn int64  `json:"published_on"`
		SourceInfo  struct {
			Name string `json:"name"`
		} `json:"source_info"`
		Source string `json:"source"`
	} `json:"Data"`
}

// NewClient creates a news client. Results are cached with the cache's
// default TTL.
func NewClient(baseURL, apiKey string, timeout time.Duration, c *cache.Manager) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		cache:      c,
		maxRetries: 3,
		backoff: func() *backoff.Backoff {
			return &backoff.Backoff{Min: 500 * time.Millisecond, Max: 5 * time.Second, Factor: 2}
		},
	}
}

// Latest returns up to limit English headlines, newest first.
func (c *Client) Latest(ctx context.Context, limit int) ([]models.Article, error) {
	key := "news_" + strconv.Itoa(limit)
	if articles, ok := cache.GetAs[[]models.Article](c.cache, key); ok {
		return articles, nil
	}

	u, err := url.Parse(c.baseURL + "/data/v2/news/")
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}
	q := u.Query()
	q.Set("lang", "EN")
	q.Set("limit", strconv.Itoa(limit))
	if c.apiKey != "" {
		q.Set("api_key", c.apiKey)
	}
	u.RawQuery = q.Encode()

	resp, err := c.doRequest(ctx, u.String())
	if err != nil {
		return nil, fmt.Errorf("failed to fetch news: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch news: status %d", resp.StatusCode)
	}

	var payload newsResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode news: %w", err)
	}

	articles := make([]models.Article, 0, limit)
	for _, item := range payload.Data {
		if len(articles) >= limit {
			break
		}
		if item.Title == "" {
			continue
		}
		source := item.SourceInfo.Name
		if source == "" {
			source = item.Source
		}
		articles = append(articles, models.Article{
			ID:          item.ID,
			Title:       item.Title,
			URL:         item.URL,
			Source:      source,
			Categories:  item.Categories,
			Summary:     summarize(item.Body),
			PublishedAt: time.Unix(item.PublishedOn, 0),
		})
	}

	c.cache.SetDefault(key, articles)
	return articles, nil
}

func summarize(body string) string {
	body = strings.TrimSpace(body)
	if utf8.RuneCountInString(body) <= summaryLength {
		return body
	}
	r := []rune(body)
	return string(r[:summaryLength]) + "..."
}

// doRequest performs HTTP request with retry logic
func (c *Client) doRequest(ctx context.Context, urlStr string) (*http.Response, error) {
	b := c.backoff()
	var lastErr error

	for i := 0; i < c.maxRetries; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(b.Duration()):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			resp.Body.Close()
			lastErr = fmt.Errorf("server error: %d", resp.StatusCode)
			continue
		}

		return resp, nil
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}
