// Package cache provides the per-category TTL stores that sit in front of the
// rate-limited upstream APIs.
package cache

import (
	"sync"
	"time"

	"github.com/hamidbarzin/cryptobarzin/internal/clock"
	"github.com/hamidbarzin/cryptobarzin/internal/logger"
	"github.com/hamidbarzin/cryptobarzin/internal/metrics"
)

type entry struct {
	value     any
	expiresAt time.Time
}

// Stats is a diagnostic snapshot of a Manager.
type Stats struct {
	Name            string        `json:"name"`
	TotalItems      int           `json:"total_items"`
	ValidItems      int           `json:"valid_items"`
	ExpiredItems    int           `json:"expired_items"`
	AvgRemainingTTL time.Duration `json:"avg_remaining_ttl"`
}

// Manager is an in-memory TTL key-value store. Expired entries are evicted
// lazily on Get and in bulk by Cleanup.
type Manager struct {
	name       string
	defaultTTL time.Duration
	clock      clock.Clock
	metrics    *metrics.Metrics

	mu    sync.Mutex
	items map[string]entry
}

// Option customises a Manager.
type Option func(*Manager)

// WithClock replaces the wall clock, used by tests.
func WithClock(c clock.Clock) Option {
	return func(m *Manager) { m.clock = c }
}

// WithMetrics records hits and misses under the manager's name.
func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Manager) { m.metrics = mt }
}

// New creates a Manager whose Set calls without a TTL use defaultTTL.
func New(name string, defaultTTL time.Duration, opts ...Option) *Manager {
	m := &Manager{
		name:       name,
		defaultTTL: defaultTTL,
		clock:      clock.Real(),
		items:      make(map[string]entry),
	}
	for _, opt := range opts {
		opt(m)
	}
	logger.Debug("Cache %q initialized with default TTL %v", name, defaultTTL)
	return m
}

// Name returns the category name of the cache.
func (m *Manager) Name() string {
	return m.name
}

// DefaultTTL returns the TTL applied by SetDefault.
func (m *Manager) DefaultTTL() time.Duration {
	return m.defaultTTL
}

// Get returns the cached value, evicting it if it has expired.
func (m *Manager) Get(key string) (any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.items[key]
	if !ok {
		m.metrics.CacheLookup(m.name, false)
		return nil, false
	}
	if m.expired(e, m.clock.Now()) {
		delete(m.items, key)
		m.metrics.CacheLookup(m.name, false)
		return nil, false
	}
	m.metrics.CacheLookup(m.name, true)
	return e.value, true
}

// Set stores value under key for ttl. A non-positive ttl yields an entry that
// is already expired.
func (m *Manager) Set(key string, value any, ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[key] = entry{value: value, expiresAt: m.clock.Now().Add(ttl)}
}

// SetDefault stores value with the manager's default TTL.
func (m *Manager) SetDefault(key string, value any) {
	m.Set(key, value, m.defaultTTL)
}

// Delete removes key and reports whether it was present.
func (m *Manager) Delete(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.items[key]
	delete(m.items, key)
	return ok
}

// Clear drops every entry.
func (m *Manager) Clear() {
	m.mu.Lock()
	m.items = make(map[string]entry)
	m.mu.Unlock()
	logger.Info("Cache %q cleared", m.name)
}

// Cleanup evicts every expired entry and returns how many were removed.
func (m *Manager) Cleanup() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	removed := 0
	for key, e := range m.items {
		if m.expired(e, now) {
			delete(m.items, key)
			removed++
		}
	}
	if removed > 0 {
		logger.Debug("Cache %q cleaned up %d expired entries", m.name, removed)
	}
	return removed
}

// GetMultiple returns the live values among keys. Missing and expired keys
// are absent from the result.
func (m *Manager) GetMultiple(keys []string) map[string]any {
	result := make(map[string]any, len(keys))
	for _, key := range keys {
		if v, ok := m.Get(key); ok {
			result[key] = v
		}
	}
	return result
}

// SetMultiple stores every item independently. A zero ttl means the default.
func (m *Manager) SetMultiple(items map[string]any, ttl time.Duration) {
	if ttl == 0 {
		ttl = m.defaultTTL
	}
	for key, value := range items {
		m.Set(key, value, ttl)
	}
}

// Len returns the number of stored entries, expired or not.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

// Stats reports counts and the average remaining TTL of live entries.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	s := Stats{Name: m.name, TotalItems: len(m.items)}
	var remaining time.Duration
	for _, e := range m.items {
		if m.expired(e, now) {
			s.ExpiredItems++
			continue
		}
		s.ValidItems++
		remaining += e.expiresAt.Sub(now)
	}
	if s.ValidItems > 0 {
		s.AvgRemainingTTL = remaining / time.Duration(s.ValidItems)
	}
	return s
}

func (m *Manager) expired(e entry, now time.Time) bool {
	return !now.Before(e.expiresAt)
}

// GetAs returns the cached value for key if present and of type T.
func GetAs[T any](m *Manager, key string) (T, bool) {
	var zero T
	v, ok := m.Get(key)
	if !ok {
		return zero, false
	}
	t, ok := v.(T)
	if !ok {
		return zero, false
	}
	return t, true
}
