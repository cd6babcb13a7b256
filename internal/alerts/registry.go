// Package alerts keeps the in-memory price alert registry and evaluates it
// against live quotes.
package alerts

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/hamidbarzin/cryptobarzin/internal/clock"
	"github.com/hamidbarzin/cryptobarzin/internal/logger"
	"github.com/hamidbarzin/cryptobarzin/internal/market"
	"github.com/hamidbarzin/cryptobarzin/internal/metrics"
	"github.com/hamidbarzin/cryptobarzin/internal/models"
)

// DefaultHysteresis is the re-arm band as a fraction of the target price.
const DefaultHysteresis = 0.01

// PriceSource resolves the current quote of a symbol.
type PriceSource interface {
	Quote(ctx context.Context, symbol string) (models.Quote, error)
}

// Notifier delivers a formatted message to the configured chat.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

// EventRecorder persists triggered events.
type EventRecorder interface {
	RecordEvent(ctx context.Context, e models.TriggeredEvent) error
}

// Registry holds alerts grouped by canonical symbol.
type Registry struct {
	prices   PriceSource
	notifier Notifier
	recorder EventRecorder
	metrics  *metrics.Metrics
	clock    clock.Clock

	hysteresis    float64
	location      *time.Location
	quoteCurrency string

	mu     sync.Mutex
	alerts map[string][]*models.PriceAlert
}

// Option customises a Registry.
type Option func(*Registry)

func WithRecorder(r EventRecorder) Option    { return func(g *Registry) { g.recorder = r } }
func WithMetrics(m *metrics.Metrics) Option  { return func(g *Registry) { g.metrics = m } }
func WithClock(c clock.Clock) Option         { return func(g *Registry) { g.clock = c } }
func WithLocation(loc *time.Location) Option { return func(g *Registry) { g.location = loc } }
func WithQuoteCurrency(q string) Option      { return func(g *Registry) { g.quoteCurrency = q } }
func WithHysteresis(h float64) Option        { return func(g *Registry) { g.hysteresis = h } }

// New creates an empty Registry.
func New(prices PriceSource, notifier Notifier, opts ...Option) *Registry {
	r := &Registry{
		prices:        prices,
		notifier:      notifier,
		clock:         clock.Real(),
		hysteresis:    DefaultHysteresis,
		location:      time.UTC,
		quoteCurrency: "USDT",
		alerts:        make(map[string][]*models.PriceAlert),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Set registers an alert, or re-arms the existing alert with the same
// natural key.
func (r *Registry) Set(symbol string, target float64, dir models.Direction) error {
	a := models.PriceAlert{
		Symbol:      market.Canonical(symbol, r.quoteCurrency),
		TargetPrice: target,
		Direction:   dir,
	}
	if err := a.Validate(); err != nil {
		return fmt.Errorf("invalid alert: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.alerts[a.Symbol] {
		if existing.Matches(target, dir) {
			existing.Triggered = false
			existing.TriggeredAt = nil
			logger.Info("Alert re-armed: %s %s %v", a.Symbol, dir, target)
			return nil
		}
	}

	a.CreatedAt = r.clock.Now()
	r.alerts[a.Symbol] = append(r.alerts[a.Symbol], &a)
	r.metrics.RegisteredAlerts(r.countLocked())
	logger.Info("Alert set: %s %s %v", a.Symbol, dir, target)
	return nil
}

// Remove deletes the alert with the given natural key. It reports whether an
// alert was removed.
func (r *Registry) Remove(symbol string, target float64, dir models.Direction) bool {
	sym := market.Canonical(symbol, r.quoteCurrency)

	r.mu.Lock()
	defer r.mu.Unlock()

	list := r.alerts[sym]
	for i, a := range list {
		if a.Matches(target, dir) {
			list = append(list[:i], list[i+1:]...)
			if len(list) == 0 {
				delete(r.alerts, sym)
			} else {
				r.alerts[sym] = list
			}
			r.metrics.RegisteredAlerts(r.countLocked())
			logger.Info("Alert removed: %s %s %v", sym, dir, target)
			return true
		}
	}
	return false
}

// Get returns a copy of the alerts for symbol, or of every alert when symbol
// is empty. Unknown symbols yield an empty map.
func (r *Registry) Get(symbol string) map[string][]models.PriceAlert {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string][]models.PriceAlert)
	copyList := func(sym string) {
		list, ok := r.alerts[sym]
		if !ok {
			return
		}
		out[sym] = lo.Map(list, func(a *models.PriceAlert, _ int) models.PriceAlert { return *a })
	}

	if symbol == "" {
		for sym := range r.alerts {
			copyList(sym)
		}
		return out
	}
	copyList(market.Canonical(symbol, r.quoteCurrency))
	return out
}

// Len returns the number of registered alerts.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.countLocked()
}

// Seed registers each alert, skipping invalid ones.
func (r *Registry) Seed(defaults []models.PriceAlert) int {
	n := 0
	for _, a := range defaults {
		if err := r.Set(a.Symbol, a.TargetPrice, a.Direction); err != nil {
			logger.Warn("Skipping default alert %s %s %v: %v", a.Symbol, a.Direction, a.TargetPrice, err)
			continue
		}
		n++
	}
	return n
}

// Check evaluates every alert against the current price and notifies each
// armed-to-triggered transition exactly once.
func (r *Registry) Check(ctx context.Context) []models.TriggeredEvent {
	var events []models.TriggeredEvent

	for _, sym := range r.symbols() {
		if ctx.Err() != nil {
			break
		}
		q, err := r.prices.Quote(ctx, sym)
		if err != nil {
			logger.Warn("Alert check skipped %s: %v", sym, err)
			continue
		}
		events = append(events, r.evaluate(sym, q)...)
	}

	for i := range events {
		r.deliver(ctx, &events[i])
	}
	return events
}

func (r *Registry) evaluate(sym string, q models.Quote) []models.TriggeredEvent {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock.Now()
	var fired []models.TriggeredEvent
	for _, a := range r.alerts[sym] {
		switch {
		case !a.Triggered && a.Crossed(q.Price):
			a.Triggered = true
			t := now
			a.TriggeredAt = &t
			fired = append(fired, models.TriggeredEvent{
				ID:           uuid.NewString(),
				Symbol:       sym,
				Direction:    a.Direction,
				TargetPrice:  a.TargetPrice,
				CurrentPrice: q.Price,
				Source:       q.Source,
				TriggeredAt:  now,
			})
		case a.Triggered && a.Rearmable(q.Price, r.hysteresis):
			a.Triggered = false
			a.TriggeredAt = nil
			logger.Debug("Alert re-armed by price: %s %s %v at %v", sym, a.Direction, a.TargetPrice, q.Price)
		}
	}
	return fired
}

func (r *Registry) deliver(ctx context.Context, e *models.TriggeredEvent) {
	logger.Info("Alert triggered: %s %s %v (price %v)", e.Symbol, e.Direction, e.TargetPrice, e.CurrentPrice)
	r.metrics.AlertTriggered(e.Symbol, string(e.Direction))

	if err := r.notifier.Notify(ctx, Message(*e, r.location)); err != nil {
		logger.Error("Failed to send alert for %s: %v", e.Symbol, err)
	} else {
		e.Delivered = true
	}

	if r.recorder != nil {
		if err := r.recorder.RecordEvent(ctx, *e); err != nil {
			logger.Error("Failed to record alert event %s: %v", e.ID, err)
		}
	}
}

func (r *Registry) symbols() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	syms := lo.Keys(r.alerts)
	sort.Strings(syms)
	return syms
}

func (r *Registry) countLocked() int {
	n := 0
	for _, list := range r.alerts {
		n += len(list)
	}
	return n
}
