package market

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/adshao/go-binance/v2"
	"golang.org/x/time/rate"

	"github.com/hamidbarzin/cryptobarzin/internal/models"
)

// Binance reads public 24h ticker statistics and klines. No API key is needed.
type Binance struct {
	client  *binance.Client
	limiter *rate.Limiter
}

// NewBinance creates a Binance provider. An empty baseURL keeps the library
// default endpoint.
func NewBinance(baseURL string, timeout time.Duration, perSecond float64) *Binance {
	client := binance.NewClient("", "")
	if baseURL != "" {
		client.BaseURL = baseURL
	}
	client.HTTPClient = &http.Client{Timeout: timeout}
	return &Binance{client: client, limiter: newLimiter(perSecond)}
}

func (b *Binance) Name() string { return "binance" }

func (b *Binance) Quote(ctx context.Context, pair Pair) (models.Quote, error) {
	if err := b.limiter.Wait(ctx); err != nil {
		return models.Quote{}, err
	}

	stats, err := b.client.NewListPriceChangeStatsService().Symbol(pair.Base + pair.Quote).Do(ctx)
	if err != nil {
		return models.Quote{}, fmt.Errorf("binance %s: %w", pair, err)
	}
	if len(stats) == 0 {
		return models.Quote{}, fmt.Errorf("binance %s: %w", pair, ErrEmptyPayload)
	}

	price, err := strconv.ParseFloat(stats[0].LastPrice, 64)
	if err != nil || !validPrice(price) {
		return models.Quote{}, fmt.Errorf("binance %s: %w", pair, ErrEmptyPayload)
	}
	change, _ := strconv.ParseFloat(stats[0].PriceChangePercent, 64)

	return models.Quote{
		Symbol:    pair.String(),
		Price:     price,
		Change24h: change,
		Source:    b.Name(),
		FetchedAt: time.Now(),
	}, nil
}

// Closes returns the close prices of the last limit completed candles.
func (b *Binance) Closes(ctx context.Context, pair Pair, interval string, limit int) ([]float64, error) {
	if err := b.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	data, err := b.client.NewKlinesService().
		Symbol(pair.Base + pair.Quote).
		Interval(interval).
		Limit(limit + 1). // +1 to discard the last incomplete candle
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("binance klines %s: %w", pair, err)
	}
	if len(data) < 2 {
		return nil, fmt.Errorf("binance klines %s: %w", pair, ErrEmptyPayload)
	}

	closes := make([]float64, 0, len(data)-1)
	for _, k := range data[:len(data)-1] {
		c, err := strconv.ParseFloat(k.Close, 64)
		if err != nil {
			return nil, fmt.Errorf("binance klines %s: bad close %q: %w", pair, k.Close, err)
		}
		closes = append(closes, c)
	}
	return closes, nil
}
