// Package analysis computes indicator snapshots from candle closes and turns
// them into rule-based trading signals.
package analysis

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/markcheno/go-talib"

	"github.com/hamidbarzin/cryptobarzin/internal/cache"
	"github.com/hamidbarzin/cryptobarzin/internal/market"
	"github.com/hamidbarzin/cryptobarzin/internal/models"
)

const (
	rsiPeriod  = 14
	macdFast   = 12
	macdSlow   = 26
	macdSignal = 9
	bbPeriod   = 20
	bbDev      = 2.0

	// MinCloses is the shortest series Compute accepts.
	MinCloses = 50

	Overbought = 70.0
	Oversold   = 30.0
)

// Compute derives the latest indicator values from closes, oldest first.
func Compute(symbol string, closes []float64) (models.TechnicalSnapshot, error) {
	if len(closes) < MinCloses {
		return models.TechnicalSnapshot{}, fmt.Errorf("need at least %d closes, got %d", MinCloses, len(closes))
	}

	macd, signal, hist := talib.Macd(closes, macdFast, macdSlow, macdSignal)
	upper, middle, lower := talib.BBands(closes, bbPeriod, bbDev, bbDev, talib.SMA)

	return models.TechnicalSnapshot{
		Symbol:     symbol,
		Price:      last(closes),
		RSI:        last(talib.Rsi(closes, rsiPeriod)),
		MACD:       last(macd),
		MACDSignal: last(signal),
		MACDHist:   last(hist),
		SMA20:      last(talib.Sma(closes, 20)),
		SMA50:      last(talib.Sma(closes, 50)),
		EMA12:      last(talib.Ema(closes, 12)),
		EMA26:      last(talib.Ema(closes, 26)),
		BBUpper:    last(upper),
		BBMiddle:   last(middle),
		BBLower:    last(lower),
		ComputedAt: time.Now(),
	}, nil
}

func last(xs []float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	return xs[len(xs)-1]
}

// Analyzer fetches klines and caches snapshots per symbol.
type Analyzer struct {
	klines        market.KlineSource
	cache         *cache.Manager
	interval      string
	limit         int
	quoteCurrency string
}

// NewAnalyzer creates an Analyzer. Snapshots are cached with the cache's
// default TTL.
func NewAnalyzer(klines market.KlineSource, c *cache.Manager, interval string, limit int, quoteCurrency string) *Analyzer {
	if limit < MinCloses {
		limit = MinCloses
	}
	return &Analyzer{
		klines:        klines,
		cache:         c,
		interval:      interval,
		limit:         limit,
		quoteCurrency: quoteCurrency,
	}
}

// Snapshot returns the indicator snapshot of symbol.
func (a *Analyzer) Snapshot(ctx context.Context, symbol string) (models.TechnicalSnapshot, error) {
	pair, err := market.ParsePair(symbol, a.quoteCurrency)
	if err != nil {
		return models.TechnicalSnapshot{}, err
	}
	key := "technical_" + pair.String()
	if s, ok := cache.GetAs[models.TechnicalSnapshot](a.cache, key); ok {
		return s, nil
	}

	closes, err := a.klines.Closes(ctx, pair, a.interval, a.limit)
	if err != nil {
		return models.TechnicalSnapshot{}, fmt.Errorf("failed to fetch klines for %s: %w", pair, err)
	}
	snap, err := Compute(pair.String(), closes)
	if err != nil {
		return models.TechnicalSnapshot{}, fmt.Errorf("analysis %s: %w", pair, err)
	}
	a.cache.SetDefault(key, snap)
	return snap, nil
}

// Signal applies the RSI, MACD and Bollinger rules to a snapshot.
func Signal(s models.TechnicalSnapshot) models.TradingSignal {
	score := 0
	var reasons []string

	switch {
	case s.RSI > Overbought:
		score--
		reasons = append(reasons, fmt.Sprintf("RSI در ناحیه اشباع خرید (%.1f)", s.RSI))
	case s.RSI < Oversold:
		score++
		reasons = append(reasons, fmt.Sprintf("RSI در ناحیه اشباع فروش (%.1f)", s.RSI))
	}

	switch {
	case s.MACD > s.MACDSignal:
		score++
		reasons = append(reasons, "MACD بالای خط سیگنال")
	case s.MACD < s.MACDSignal:
		score--
		reasons = append(reasons, "MACD زیر خط سیگنال")
	}

	switch {
	case s.Price > s.BBUpper:
		score--
		reasons = append(reasons, "قیمت بالای باند بولینگر")
	case s.Price < s.BBLower:
		score++
		reasons = append(reasons, "قیمت زیر باند بولینگر")
	}

	action := models.ActionHold
	switch {
	case score >= 2:
		action = models.ActionBuy
	case score <= -2:
		action = models.ActionSell
	}

	return models.TradingSignal{
		Symbol:     s.Symbol,
		Action:     action,
		Confidence: math.Abs(float64(score)) / 3,
		Reasons:    reasons,
		Price:      s.Price,
	}
}
