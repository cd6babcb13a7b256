package market

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/hamidbarzin/cryptobarzin/internal/models"
)

// CryptoCompare reads prices from the pricemultifull endpoint.
type CryptoCompare struct {
	baseURL string
	http    *httpClient
}

type cryptoCompareFull struct {
	Raw map[string]map[string]struct {
		Price           float64 `json:"PRICE"`
		ChangePct24Hour float64 `json:"CHANGEPCT24HOUR"`
	} `json:"RAW"`
}

// NewCryptoCompare creates a CryptoCompare provider. apiKey may be empty.
func NewCryptoCompare(baseURL, apiKey string, timeout time.Duration, perSecond float64, maxRetries int) *CryptoCompare {
	c := &CryptoCompare{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    newHTTPClient(timeout, perSecond, maxRetries),
	}
	if apiKey != "" {
		c.http.headers["Authorization"] = "Apikey " + apiKey
	}
	return c
}

func (c *CryptoCompare) Name() string { return "cryptocompare" }

func (c *CryptoCompare) Quote(ctx context.Context, pair Pair) (models.Quote, error) {
	u, err := url.Parse(c.baseURL + "/data/pricemultifull")
	if err != nil {
		return models.Quote{}, fmt.Errorf("failed to parse URL: %w", err)
	}
	q := u.Query()
	q.Set("fsyms", pair.Base)
	q.Set("tsyms", pair.Quote)
	u.RawQuery = q.Encode()

	var payload cryptoCompareFull
	if err := c.http.getJSON(ctx, u.String(), &payload); err != nil {
		return models.Quote{}, fmt.Errorf("cryptocompare %s: %w", pair, err)
	}

	raw, ok := payload.Raw[pair.Base][pair.Quote]
	if !ok || !validPrice(raw.Price) {
		return models.Quote{}, fmt.Errorf("cryptocompare %s: %w", pair, ErrEmptyPayload)
	}
	return models.Quote{
		Symbol:    pair.String(),
		Price:     raw.Price,
		Change24h: raw.ChangePct24Hour,
		Source:    c.Name(),
		FetchedAt: time.Now(),
	}, nil
}
