package market

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/jpillora/backoff"
	"golang.org/x/time/rate"
)

// httpClient is the shared transport of the JSON providers.
type httpClient struct {
	client     *http.Client
	limiter    *rate.Limiter
	maxRetries int
	headers    map[string]string
	backoff    func() *backoff.Backoff
}

func newHTTPClient(timeout time.Duration, perSecond float64, maxRetries int) *httpClient {
	if maxRetries < 1 {
		maxRetries = 1
	}
	return &httpClient{
		client:     &http.Client{Timeout: timeout},
		limiter:    newLimiter(perSecond),
		maxRetries: maxRetries,
		headers:    map[string]string{"Accept": "application/json"},
		backoff: func() *backoff.Backoff {
			return &backoff.Backoff{Min: 500 * time.Millisecond, Max: 5 * time.Second, Factor: 2}
		},
	}
}

func newLimiter(perSecond float64) *rate.Limiter {
	if perSecond <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Limit(perSecond), 1)
}

// getJSON performs a GET with retry on transport errors, 429 and 5xx, and
// decodes the body into dest.
func (c *httpClient) getJSON(ctx context.Context, urlStr string, dest any) error {
	resp, err := c.doRequest(ctx, urlStr)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// doRequest performs HTTP request with retry logic
func (c *httpClient) doRequest(ctx context.Context, urlStr string) (*http.Response, error) {
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
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
		if err != nil {
			return nil, err
		}
		for k, v := range c.headers {
			req.Header.Set(k, v)
		}

		resp, err := c.client.Do(req)
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
