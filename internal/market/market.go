// Package market fetches spot quotes from an ordered list of public price
// providers and caches the first well-formed answer.
package market

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/hamidbarzin/cryptobarzin/internal/models"
)

var (
	// ErrNoPrice is returned when every provider failed for a symbol.
	ErrNoPrice = errors.New("no price available")
	// ErrEmptyPayload marks a successful response without a usable price.
	ErrEmptyPayload = errors.New("empty price payload")
)

// Provider is one upstream price source.
type Provider interface {
	Name() string
	Quote(ctx context.Context, pair Pair) (models.Quote, error)
}

// KlineSource returns recent candle close prices, oldest first.
type KlineSource interface {
	Closes(ctx context.Context, pair Pair, interval string, limit int) ([]float64, error)
}

// Pair is a base/quote currency pair.
type Pair struct {
	Base  string
	Quote string
}

func (p Pair) String() string {
	return p.Base + "/" + p.Quote
}

// ParsePair splits "BTC/USDT", "BTC-USDT" or a bare "BTC" (paired with
// defaultQuote) into a Pair.
func ParsePair(symbol, defaultQuote string) (Pair, error) {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	if s == "" {
		return Pair{}, errors.New("empty symbol")
	}
	for _, sep := range []string{"/", "-"} {
		if base, quote, ok := strings.Cut(s, sep); ok {
			if base == "" || quote == "" {
				return Pair{}, fmt.Errorf("malformed symbol %q", symbol)
			}
			return Pair{Base: base, Quote: quote}, nil
		}
	}
	return Pair{Base: s, Quote: strings.ToUpper(defaultQuote)}, nil
}

// Variants lists the spellings tried for a symbol, the given form first.
func Variants(symbol, defaultQuote string) []string {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	switch {
	case strings.Contains(s, "/"):
		return []string{s, strings.Replace(s, "/", "-", 1)}
	case strings.Contains(s, "-"):
		return []string{s, strings.Replace(s, "-", "/", 1)}
	default:
		q := strings.ToUpper(defaultQuote)
		return []string{s + "/" + q, s + "-" + q}
	}
}

// Canonical returns the BASE/QUOTE spelling used for cache keys and alerts.
func Canonical(symbol, defaultQuote string) string {
	p, err := ParsePair(symbol, defaultQuote)
	if err != nil {
		return strings.ToUpper(strings.TrimSpace(symbol))
	}
	return p.String()
}

// CacheKey is the price cache key for a canonical symbol.
func CacheKey(canonical string) string {
	return "price_" + canonical
}

// FirstSuccess calls fn for each item in order and returns the first result
// without error. If all fail it returns the last error.
func FirstSuccess[T, R any](items []T, fn func(T) (R, error)) (R, error) {
	var zero R
	lastErr := errors.New("no candidates")
	for _, item := range items {
		r, err := fn(item)
		if err == nil {
			return r, nil
		}
		lastErr = err
	}
	return zero, lastErr
}

func validPrice(p float64) bool {
	return p > 0 && !math.IsNaN(p) && !math.IsInf(p, 0)
}
