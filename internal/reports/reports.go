// Package reports builds the periodic Persian HTML messages and sends them
// to the configured Telegram chat.
package reports

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/hamidbarzin/cryptobarzin/internal/analysis"
	"github.com/hamidbarzin/cryptobarzin/internal/cache"
	"github.com/hamidbarzin/cryptobarzin/internal/clock"
	"github.com/hamidbarzin/cryptobarzin/internal/format"
	"github.com/hamidbarzin/cryptobarzin/internal/logger"
	"github.com/hamidbarzin/cryptobarzin/internal/market"
	"github.com/hamidbarzin/cryptobarzin/internal/models"
	"github.com/hamidbarzin/cryptobarzin/internal/telegram"
)

const separator = "━━━━━━━━━━━━━━━━━━"

// ErrNoData is returned when a report has nothing to show.
var ErrNoData = errors.New("no data for report")

// Notifier delivers a message to the configured chat.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

// QuoteSource provides prices and provider health.
type QuoteSource interface {
	Quotes(ctx context.Context, symbols []string) []models.Quote
	ProviderStats() []market.ProviderStats
}

// SnapshotSource provides technical indicator snapshots.
type SnapshotSource interface {
	Snapshot(ctx context.Context, symbol string) (models.TechnicalSnapshot, error)
}

// NewsSource provides recent headlines.
type NewsSource interface {
	Latest(ctx context.Context, limit int) ([]models.Article, error)
}

// AlertCounter reports how many alerts are registered.
type AlertCounter interface {
	Len() int
}

// Config holds the publisher settings.
type Config struct {
	Coins     []string
	NewsLimit int
	Location  *time.Location
	Version   string
}

// Publisher renders and sends every periodic report.
type Publisher struct {
	notifier Notifier
	quotes   QuoteSource
	analyzer SnapshotSource
	news     NewsSource
	alerts   AlertCounter
	caches   []*cache.Manager
	clock    clock.Clock

	coins     []string
	newsLimit int
	location  *time.Location
	version   string
	startedAt time.Time
}

// Option customises a Publisher.
type Option func(*Publisher)

func WithAnalyzer(a SnapshotSource) Option  { return func(p *Publisher) { p.analyzer = a } }
func WithNews(n NewsSource) Option          { return func(p *Publisher) { p.news = n } }
func WithAlerts(a AlertCounter) Option      { return func(p *Publisher) { p.alerts = a } }
func WithCaches(c ...*cache.Manager) Option { return func(p *Publisher) { p.caches = c } }
func WithClock(c clock.Clock) Option        { return func(p *Publisher) { p.clock = c } }

// New creates a Publisher.
func New(cfg Config, notifier Notifier, quotes QuoteSource, opts ...Option) *Publisher {
	p := &Publisher{
		notifier:  notifier,
		quotes:    quotes,
		clock:     clock.Real(),
		coins:     cfg.Coins,
		newsLimit: cfg.NewsLimit,
		location:  cfg.Location,
		version:   cfg.Version,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.location == nil {
		p.location = time.UTC
	}
	if p.newsLimit <= 0 {
		p.newsLimit = 5
	}
	p.startedAt = p.clock.Now()
	return p
}

func (p *Publisher) now() string {
	return p.clock.Now().In(p.location).Format("2006-01-02 15:04:05")
}

func (p *Publisher) send(ctx context.Context, kind, text string) error {
	if err := p.notifier.Notify(ctx, text); err != nil {
		return fmt.Errorf("failed to send %s: %w", kind, err)
	}
	logger.Info("Sent %s", kind)
	return nil
}

// Startup announces that the bot is online.
func (p *Publisher) Startup(ctx context.Context) error {
	return p.send(ctx, "startup message", p.StartupMessage())
}

// StartupMessage renders the startup announcement.
func (p *Publisher) StartupMessage() string {
	var b strings.Builder
	b.WriteString("🤖 <b>Crypto Barzin - پیام تست</b>\n")
	b.WriteString(separator + "\n\n")
	b.WriteString("ربات Crypto Barzin راه‌اندازی شد.\n")
	b.WriteString("سیستم به درستی در حال کار است.\n\n")
	fmt.Fprintf(&b, "⏰ <b>زمان:</b> %s\n", p.now())
	return b.String()
}

// PriceReport sends the current prices of the watched coins.
func (p *Publisher) PriceReport(ctx context.Context) error {
	quotes := p.quotes.Quotes(ctx, p.coins)
	if len(quotes) == 0 {
		return fmt.Errorf("price report: %w", ErrNoData)
	}
	return p.send(ctx, "price report", p.PriceReportMessage(quotes))
}

// PriceReportMessage renders quotes as a monospaced table.
func (p *Publisher) PriceReportMessage(quotes []models.Quote) string {
	rows := lo.Map(quotes, func(q models.Quote, _ int) []string {
		base, _, _ := strings.Cut(q.Symbol, "/")
		return []string{base, format.ReportPrice(q.Price), format.Change(q.Change24h), changeEmoji(q.Change24h)}
	})

	var b strings.Builder
	b.WriteString("🚀 <b>Crypto Barzin - گزارش قیمت‌ها</b>\n")
	b.WriteString(separator + "\n\n")
	b.WriteString("💰 <b>قیمت‌های لحظه‌ای ارزهای دیجیتال</b>\n\n")
	b.WriteString("<pre>")
	b.WriteString(telegram.EscapeHTML(renderTable([]string{"Coin", "Price (USDT)", "24h", ""}, rows)))
	b.WriteString("</pre>\n")
	fmt.Fprintf(&b, "⏰ <b>زمان:</b> %s\n", p.now())
	b.WriteString("🤖 <b>سرویس:</b> Crypto Barzin\n")
	return b.String()
}

func changeEmoji(change float64) string {
	if change >= 0 {
		return "🟢"
	}
	return "🔴"
}

// SystemReport sends uptime, alert, cache and provider health.
func (p *Publisher) SystemReport(ctx context.Context) error {
	return p.send(ctx, "system report", p.SystemReportMessage())
}

// SystemReportMessage renders the system status.
func (p *Publisher) SystemReportMessage() string {
	var b strings.Builder
	b.WriteString("🔧 <b>Crypto Barzin - گزارش سیستم</b>\n")
	b.WriteString(separator + "\n\n")
	b.WriteString("✅ <b>وضعیت سرویس:</b> فعال\n")
	fmt.Fprintf(&b, "⏱ <b>مدت فعالیت:</b> %s\n", p.clock.Now().Sub(p.startedAt).Truncate(time.Second))
	if p.version != "" {
		fmt.Fprintf(&b, "🏷 <b>نسخه:</b> %s\n", telegram.EscapeHTML(p.version))
	}
	fmt.Fprintf(&b, "🧵 <b>گوروتین‌ها:</b> %d\n", runtime.NumGoroutine())
	if p.alerts != nil {
		fmt.Fprintf(&b, "🔔 <b>هشدارهای فعال:</b> %d\n", p.alerts.Len())
	}

	if len(p.caches) > 0 {
		b.WriteString("\n🗄 <b>کش:</b>\n")
		for _, c := range p.caches {
			s := c.Stats()
			fmt.Fprintf(&b, "• %s: %d معتبر / %d کل\n", s.Name, s.ValidItems, s.TotalItems)
		}
	}

	if stats := p.quotes.ProviderStats(); len(stats) > 0 {
		b.WriteString("\n🌐 <b>منابع قیمت:</b>\n")
		for _, s := range stats {
			fmt.Fprintf(&b, "• %s: ✅ %d / ❌ %d (%s ± %s)\n", s.Name, s.Successes, s.Failures,
				s.MeanTime.Round(time.Millisecond), s.StdDev.Round(time.Millisecond))
		}
	}

	fmt.Fprintf(&b, "\n⏰ <b>زمان گزارش:</b> %s\n", p.now())
	return b.String()
}

// TechnicalAnalysis sends the indicator snapshot of one symbol.
func (p *Publisher) TechnicalAnalysis(ctx context.Context, symbol string) error {
	if p.analyzer == nil {
		return fmt.Errorf("technical analysis: %w", ErrNoData)
	}
	snap, err := p.analyzer.Snapshot(ctx, symbol)
	if err != nil {
		return fmt.Errorf("technical analysis %s: %w", symbol, err)
	}
	return p.send(ctx, "technical analysis", p.TechnicalMessage(snap))
}

// TechnicalMessage renders an indicator snapshot.
func (p *Publisher) TechnicalMessage(s models.TechnicalSnapshot) string {
	sig := analysis.Signal(s)

	var b strings.Builder
	fmt.Fprintf(&b, "📊 <b>تحلیل تکنیکال %s</b>\n", s.Symbol)
	b.WriteString(separator + "\n\n")
	fmt.Fprintf(&b, "💵 <b>قیمت:</b> %s USDT\n", format.ReportPrice(s.Price))
	fmt.Fprintf(&b, "📈 <b>RSI(14):</b> %.2f %s\n", s.RSI, rsiLabel(s.RSI))
	fmt.Fprintf(&b, "📉 <b>MACD:</b> %.4f / سیگنال %.4f\n", s.MACD, s.MACDSignal)
	fmt.Fprintf(&b, "〰️ <b>SMA20 / SMA50:</b> %s / %s\n", format.ReportPrice(s.SMA20), format.ReportPrice(s.SMA50))
	fmt.Fprintf(&b, "📐 <b>بولینگر:</b> %s - %s\n", format.ReportPrice(s.BBLower), format.ReportPrice(s.BBUpper))
	fmt.Fprintf(&b, "\n🎯 <b>جمع‌بندی:</b> %s\n", actionLabel(sig.Action))
	fmt.Fprintf(&b, "\n⏰ <b>زمان:</b> %s\n", p.now())
	return b.String()
}

func rsiLabel(rsi float64) string {
	switch {
	case rsi > analysis.Overbought:
		return "(اشباع خرید)"
	case rsi < analysis.Oversold:
		return "(اشباع فروش)"
	}
	return "(خنثی)"
}

func actionLabel(a models.SignalAction) string {
	switch a {
	case models.ActionBuy:
		return "🟢 خرید"
	case models.ActionSell:
		return "🔴 فروش"
	}
	return "⚪️ نگهداری"
}

// TradingSignals sends the rule-based signal of every watched coin.
func (p *Publisher) TradingSignals(ctx context.Context) error {
	if p.analyzer == nil {
		return fmt.Errorf("trading signals: %w", ErrNoData)
	}
	var signals []models.TradingSignal
	for _, coin := range p.coins {
		snap, err := p.analyzer.Snapshot(ctx, coin)
		if err != nil {
			logger.Warn("No signal for %s: %v", coin, err)
			continue
		}
		signals = append(signals, analysis.Signal(snap))
	}
	if len(signals) == 0 {
		return fmt.Errorf("trading signals: %w", ErrNoData)
	}
	return p.send(ctx, "trading signals", p.SignalsMessage(signals))
}

// SignalsMessage renders trading signals, strongest first.
func (p *Publisher) SignalsMessage(signals []models.TradingSignal) string {
	var b strings.Builder
	b.WriteString("🎯 <b>Crypto Barzin - سیگنال‌های معاملاتی</b>\n")
	b.WriteString(separator + "\n\n")

	actionable := lo.Filter(signals, func(s models.TradingSignal, _ int) bool { return s.Action != models.ActionHold })
	holds := len(signals) - len(actionable)

	for _, s := range actionable {
		fmt.Fprintf(&b, "<b>%s</b> %s (%.0f%%)\n", s.Symbol, actionLabel(s.Action), s.Confidence*100)
		fmt.Fprintf(&b, "💵 %s USDT\n", format.ReportPrice(s.Price))
		for _, r := range s.Reasons {
			fmt.Fprintf(&b, "• %s\n", r)
		}
		b.WriteString("\n")
	}
	if holds > 0 {
		fmt.Fprintf(&b, "⚪️ %d ارز بدون سیگنال مشخص\n", holds)
	}
	fmt.Fprintf(&b, "\n⏰ <b>زمان:</b> %s\n", p.now())
	b.WriteString("<i>این سیگنال‌ها توصیه مالی نیستند.</i>")
	return b.String()
}

// NewsDigest sends the latest headlines.
func (p *Publisher) NewsDigest(ctx context.Context) error {
	if p.news == nil {
		return fmt.Errorf("news digest: %w", ErrNoData)
	}
	articles, err := p.news.Latest(ctx, p.newsLimit)
	if err != nil {
		return fmt.Errorf("news digest: %w", err)
	}
	if len(articles) == 0 {
		return fmt.Errorf("news digest: %w", ErrNoData)
	}
	return p.send(ctx, "news digest", p.NewsMessage(articles))
}

// NewsMessage renders headlines as links.
func (p *Publisher) NewsMessage(articles []models.Article) string {
	var b strings.Builder
	b.WriteString("📰 <b>Crypto Barzin - اخبار ارزهای دیجیتال</b>\n")
	b.WriteString(separator + "\n\n")
	for i, a := range articles {
		fmt.Fprintf(&b, "%d. <a href=\"%s\">%s</a>\n", i+1, telegram.EscapeHTML(a.URL), telegram.EscapeHTML(a.Title))
		if a.Source != "" {
			fmt.Fprintf(&b, "   <i>%s</i>\n", telegram.EscapeHTML(a.Source))
		}
	}
	fmt.Fprintf(&b, "\n⏰ <b>زمان:</b> %s\n", p.now())
	return b.String()
}
