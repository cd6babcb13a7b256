package market

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/samber/lo"

	"github.com/hamidbarzin/cryptobarzin/internal/cache"
	"github.com/hamidbarzin/cryptobarzin/internal/logger"
	"github.com/hamidbarzin/cryptobarzin/internal/metrics"
	"github.com/hamidbarzin/cryptobarzin/internal/models"
)

// Mirror is a shared second-level cache, satisfied by cache.RedisStore.
type Mirror interface {
	GetJSON(ctx context.Context, key string, dest any) (bool, error)
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
}

// Service resolves quotes through the price cache, an optional mirror and
// then the providers in priority order.
type Service struct {
	providers     []Provider
	cache         *cache.Manager
	mirror        Mirror
	metrics       *metrics.Metrics
	quoteCurrency string
	ttl           time.Duration
	stats         *statsBook
}

// ServiceOption customises a Service.
type ServiceOption func(*Service)

// WithMirror enables the shared second-level cache.
func WithMirror(m Mirror) ServiceOption {
	return func(s *Service) { s.mirror = m }
}

// WithServiceMetrics records provider outcomes.
func WithServiceMetrics(m *metrics.Metrics) ServiceOption {
	return func(s *Service) { s.metrics = m }
}

// WithQuoteCurrency sets the quote used for bare symbols. Default USDT.
func WithQuoteCurrency(q string) ServiceOption {
	return func(s *Service) { s.quoteCurrency = q }
}

// NewService creates a Service. Results are cached for the cache's default TTL.
func NewService(providers []Provider, priceCache *cache.Manager, opts ...ServiceOption) *Service {
	s := &Service{
		providers:     providers,
		cache:         priceCache,
		quoteCurrency: "USDT",
		ttl:           priceCache.DefaultTTL(),
		stats:         newStatsBook(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Quote returns the current quote for symbol.
func (s *Service) Quote(ctx context.Context, symbol string) (models.Quote, error) {
	canonical := Canonical(symbol, s.quoteCurrency)
	key := CacheKey(canonical)

	if q, ok := cache.GetAs[models.Quote](s.cache, key); ok {
		return q, nil
	}

	if s.mirror != nil {
		var q models.Quote
		found, err := s.mirror.GetJSON(ctx, key, &q)
		if err != nil {
			logger.Warn("Price mirror lookup failed for %s: %v", canonical, err)
		} else if found && validPrice(q.Price) {
			s.cache.Set(key, q, s.ttl)
			return q, nil
		}
	}

	pairs, err := s.pairs(symbol)
	if err != nil {
		return models.Quote{}, fmt.Errorf("%w: %s: %w", ErrNoPrice, canonical, err)
	}

	q, err := FirstSuccess(s.providers, func(p Provider) (models.Quote, error) {
		return FirstSuccess(pairs, func(pair Pair) (models.Quote, error) {
			return s.fetch(ctx, p, pair)
		})
	})
	if err != nil {
		return models.Quote{}, fmt.Errorf("%w: %s: %w", ErrNoPrice, canonical, err)
	}

	q.Symbol = canonical
	s.cache.Set(key, q, s.ttl)
	if s.mirror != nil {
		if err := s.mirror.SetJSON(ctx, key, q, s.ttl); err != nil {
			logger.Warn("Price mirror store failed for %s: %v", canonical, err)
		}
	}
	return q, nil
}

// Price returns only the price of symbol.
func (s *Service) Price(ctx context.Context, symbol string) (float64, error) {
	q, err := s.Quote(ctx, symbol)
	if err != nil {
		return 0, err
	}
	return q.Price, nil
}

// Quotes fetches every symbol, skipping the ones no provider could price.
func (s *Service) Quotes(ctx context.Context, symbols []string) []models.Quote {
	out := make([]models.Quote, 0, len(symbols))
	for _, sym := range symbols {
		q, err := s.Quote(ctx, sym)
		if err != nil {
			logger.Warn("Skipping %s: %v", sym, err)
			continue
		}
		out = append(out, q)
	}
	return out
}

// ProviderStats reports per-provider outcomes and latency.
func (s *Service) ProviderStats() []ProviderStats {
	return s.stats.snapshot()
}

// QuoteCurrency is the quote paired with bare symbols.
func (s *Service) QuoteCurrency() string {
	return s.quoteCurrency
}

// pairs collapses the symbol variants to the distinct pairs they name.
func (s *Service) pairs(symbol string) ([]Pair, error) {
	var pairs []Pair
	var lastErr error
	for _, v := range Variants(symbol, s.quoteCurrency) {
		p, err := ParsePair(v, s.quoteCurrency)
		if err != nil {
			lastErr = err
			continue
		}
		pairs = append(pairs, p)
	}
	if len(pairs) == 0 {
		return nil, lastErr
	}
	return lo.Uniq(pairs), nil
}

func (s *Service) fetch(ctx context.Context, p Provider, pair Pair) (models.Quote, error) {
	start := time.Now()
	q, err := p.Quote(ctx, pair)
	elapsed := time.Since(start)

	ok := err == nil && validPrice(q.Price)
	if err == nil && !ok {
		err = fmt.Errorf("%s %s: %w", p.Name(), pair, ErrEmptyPayload)
	}
	s.stats.record(p.Name(), ok, elapsed)
	s.metrics.PriceFetch(p.Name(), ok, elapsed)

	if err != nil {
		if !errors.Is(err, context.Canceled) {
			logger.Debug("Provider %s failed for %s: %v", p.Name(), pair, err)
		}
		return models.Quote{}, err
	}
	return q, nil
}
