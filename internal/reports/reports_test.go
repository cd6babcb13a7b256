package reports

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hamidbarzin/cryptobarzin/internal/cache"
	"github.com/hamidbarzin/cryptobarzin/internal/clock"
	"github.com/hamidbarzin/cryptobarzin/internal/market"
	"github.com/hamidbarzin/cryptobarzin/internal/models"
)

type captureNotifier struct {
	messages []string
	err      error
}

func (c *captureNotifier) Notify(_ context.Context, text string) error {
	if c.err != nil {
		return c.err
	}
	c.messages = append(c.messages, text)
	return nil
}

type stubQuotes struct {
	quotes []models.Quote
}

func (s *stubQuotes) Quotes(_ context.Context, symbols []string) []models.Quote {
	return s.quotes
}

func (s *stubQuotes) ProviderStats() []market.ProviderStats {
	return []market.ProviderStats{{Name: "binance", Successes: 10, Failures: 1, MeanTime: 120 * time.Millisecond}}
}

type stubSnapshots struct {
	snaps map[string]models.TechnicalSnapshot
}

func (s *stubSnapshots) Snapshot(_ context.Context, symbol string) (models.TechnicalSnapshot, error) {
	snap, ok := s.snaps[symbol]
	if !ok {
		return models.TechnicalSnapshot{}, errors.New("no klines")
	}
	return snap, nil
}

type stubNews struct {
	articles []models.Article
}

func (s *stubNews) Latest(_ context.Context, limit int) ([]models.Article, error) {
	if len(s.articles) > limit {
		return s.articles[:limit], nil
	}
	return s.articles, nil
}

type countAlerts int

func (c countAlerts) Len() int { return int(c) }

func newTestPublisher(n *captureNotifier, q *stubQuotes, opts ...Option) *Publisher {
	clk := clock.NewFake(time.Date(2025, 4, 1, 16, 0, 0, 0, time.UTC))
	opts = append([]Option{WithClock(clk)}, opts...)
	return New(Config{Coins: []string{"BTC/USDT", "ETH/USDT"}, NewsLimit: 2}, n, q, opts...)
}

func TestPriceReport(t *testing.T) {
	n := &captureNotifier{}
	q := &stubQuotes{quotes: []models.Quote{
		{Symbol: "BTC/USDT", Price: 82000, Change24h: 1.5},
		{Symbol: "XRP/USDT", Price: 0.53, Change24h: -2},
	}}
	p := newTestPublisher(n, q)

	require.NoError(t, p.PriceReport(context.Background()))
	require.Len(t, n.messages, 1)
	msg := n.messages[0]
	assert.Contains(t, msg, "گزارش قیمت‌ها")
	assert.Contains(t, msg, "<pre>")
	assert.Contains(t, msg, "82,000.00")
	assert.Contains(t, msg, "+1.50%")
	assert.Contains(t, msg, "0.53000000")
	assert.Contains(t, msg, "🔴")
	assert.Contains(t, msg, "2025-04-01 16:00:00")
}

func TestPriceReportWithoutQuotes(t *testing.T) {
	n := &captureNotifier{}
	p := newTestPublisher(n, &stubQuotes{})
	assert.ErrorIs(t, p.PriceReport(context.Background()), ErrNoData)
	assert.Empty(t, n.messages)
}

func TestSendFailureIsReturned(t *testing.T) {
	n := &captureNotifier{err: errors.New("down")}
	p := newTestPublisher(n, &stubQuotes{})
	assert.Error(t, p.Startup(context.Background()))
}

func TestSystemReport(t *testing.T) {
	n := &captureNotifier{}
	c := cache.New("price", time.Minute)
	c.SetDefault("price_BTC/USDT", 1)
	p := newTestPublisher(n, &stubQuotes{}, WithAlerts(countAlerts(4)), WithCaches(c))

	require.NoError(t, p.SystemReport(context.Background()))
	msg := n.messages[0]
	assert.Contains(t, msg, "گزارش سیستم")
	assert.Contains(t, msg, "هشدارهای فعال:</b> 4")
	assert.Contains(t, msg, "price: 1 معتبر / 1 کل")
	assert.Contains(t, msg, "binance: ✅ 10 / ❌ 1")
}

func TestTechnicalAnalysisAndSignals(t *testing.T) {
	n := &captureNotifier{}
	snaps := &stubSnapshots{snaps: map[string]models.TechnicalSnapshot{
		"BTC/USDT": {Symbol: "BTC/USDT", Price: 82000, RSI: 25, MACD: 2, MACDSignal: 1, BBUpper: 90000, BBLower: 80000},
	}}
	p := newTestPublisher(n, &stubQuotes{}, WithAnalyzer(snaps))

	require.NoError(t, p.TechnicalAnalysis(context.Background(), "BTC/USDT"))
	assert.Contains(t, n.messages[0], "تحلیل تکنیکال BTC/USDT")
	assert.Contains(t, n.messages[0], "اشباع فروش")

	assert.Error(t, p.TechnicalAnalysis(context.Background(), "DOGE/USDT"))

	require.NoError(t, p.TradingSignals(context.Background()))
	require.Len(t, n.messages, 2)
	assert.Contains(t, n.messages[1], "BTC/USDT</b> 🟢 خرید")
}

func TestTradingSignalsWithoutAnalyzer(t *testing.T) {
	p := newTestPublisher(&captureNotifier{}, &stubQuotes{})
	assert.ErrorIs(t, p.TradingSignals(context.Background()), ErrNoData)
}

func TestNewsDigestEscapesHTML(t *testing.T) {
	n := &captureNotifier{}
	news := &stubNews{articles: []models.Article{
		{Title: "BTC <breaks> 80k & more", URL: "https://example.com/a?x=1&y=2", Source: "CoinDesk"},
		{Title: "ETH", URL: "https://example.com/b"},
		{Title: "Dropped", URL: "https://example.com/c"},
	}}
	p := newTestPublisher(n, &stubQuotes{}, WithNews(news))

	require.NoError(t, p.NewsDigest(context.Background()))
	msg := n.messages[0]
	assert.Contains(t, msg, "BTC &lt;breaks&gt; 80k &amp; more")
	assert.Contains(t, msg, `href="https://example.com/a?x=1&amp;y=2"`)
	assert.NotContains(t, msg, "Dropped")
}

func TestRenderTable(t *testing.T) {
	out := renderTable([]string{"Coin", "Price"}, [][]string{{"BTC", "82,000.00"}, {"ETH", "2,000.50"}})
	assert.Contains(t, out, "Coin")
	assert.Contains(t, out, "BTC")
	assert.Contains(t, out, "2,000.50")
}
