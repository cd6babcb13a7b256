package market

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/hamidbarzin/cryptobarzin/internal/models"
)

// DefaultCoinIDs maps ticker symbols to CoinGecko coin ids.
var DefaultCoinIDs = map[string]string{
	"BTC":  "bitcoin",
	"ETH":  "ethereum",
	"XRP":  "ripple",
	"BNB":  "binancecoin",
	"ADA":  "cardano",
	"SOL":  "solana",
	"DOT":  "polkadot",
	"DOGE": "dogecoin",
	"AVAX": "avalanche-2",
}

// CoinGecko reads prices from the public simple/price endpoint.
type CoinGecko struct {
	baseURL string
	coinIDs map[string]string
	http    *httpClient
}

// NewCoinGecko creates a CoinGecko provider. A nil coinIDs uses DefaultCoinIDs.
func NewCoinGecko(baseURL string, coinIDs map[string]string, timeout time.Duration, perSecond float64, maxRetries int) *CoinGecko {
	if coinIDs == nil {
		coinIDs = DefaultCoinIDs
	}
	return &CoinGecko{
		baseURL: strings.TrimRight(baseURL, "/"),
		coinIDs: coinIDs,
		http:    newHTTPClient(timeout, perSecond, maxRetries),
	}
}

func (c *CoinGecko) Name() string { return "coingecko" }

// Quote returns the price of pair. Stablecoin quotes are priced in USD.
func (c *CoinGecko) Quote(ctx context.Context, pair Pair) (models.Quote, error) {
	id, ok := c.coinIDs[pair.Base]
	if !ok {
		id = strings.ToLower(pair.Base)
	}
	vs := vsCurrency(pair.Quote)

	u, err := url.Parse(c.baseURL + "/simple/price")
	if err != nil {
		return models.Quote{}, fmt.Errorf("failed to parse URL: %w", err)
	}
	q := u.Query()
	q.Set("ids", id)
	q.Set("vs_currencies", vs)
	q.Set("include_24hr_change", "true")
	u.RawQuery = q.Encode()

	var payload map[string]map[string]float64
	if err := c.http.getJSON(ctx, u.String(), &payload); err != nil {
		return models.Quote{}, fmt.Errorf("coingecko %s: %w", pair, err)
	}

	price := payload[id][vs]
	if !validPrice(price) {
		return models.Quote{}, fmt.Errorf("coingecko %s: %w", pair, ErrEmptyPayload)
	}
	return models.Quote{
		Symbol:    pair.String(),
		Price:     price,
		Change24h: payload[id][vs+"_24h_change"],
		Source:    c.Name(),
		FetchedAt: time.Now(),
	}, nil
}

func vsCurrency(quote string) string {
	switch quote {
	case "USDT", "USDC", "BUSD", "USD":
		return "usd"
	}
	return strings.ToLower(quote)
}
