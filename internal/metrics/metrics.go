// Package metrics holds the Prometheus collectors of the bot.
//
// All recording methods are safe to call on a nil *Metrics so components can
// be constructed without instrumentation in tests.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics.
type Metrics struct {
	registry *prometheus.Registry

	schedulerTicks   prometheus.Counter
	taskRuns         *prometheus.CounterVec
	alertsTriggered  *prometheus.CounterVec
	priceFetches     *prometheus.CounterVec
	priceFetchTime   *prometheus.HistogramVec
	cacheRequests    *prometheus.CounterVec
	telegramMessages *prometheus.CounterVec
	registeredAlerts prometheus.Gauge
}

// New creates the collectors on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		schedulerTicks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "barzin_scheduler_ticks_total",
			Help: "Total number of scheduler ticks",
		}),
		taskRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "barzin_scheduler_task_runs_total",
			Help: "Periodic task executions by outcome",
		}, []string{"task", "status"}),
		alertsTriggered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "barzin_alerts_triggered_total",
			Help: "Price alerts that transitioned to triggered",
		}, []string{"symbol", "direction"}),
		priceFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "barzin_price_fetch_total",
			Help: "Upstream price lookups by provider and outcome",
		}, []string{"provider", "status"}),
		priceFetchTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "barzin_price_fetch_duration_seconds",
			Help:    "Upstream price lookup latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"provider"}),
		cacheRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "barzin_cache_requests_total",
			Help: "Cache lookups by cache name and result",
		}, []string{"cache", "result"}),
		telegramMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "barzin_telegram_messages_total",
			Help: "Telegram sends by outcome",
		}, []string{"status"}),
		registeredAlerts: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "barzin_alerts_registered",
			Help: "Number of registered price alerts",
		}),
	}

	m.registry.MustRegister(
		m.schedulerTicks,
		m.taskRuns,
		m.alertsTriggered,
		m.priceFetches,
		m.priceFetchTime,
		m.cacheRequests,
		m.telegramMessages,
		m.registeredAlerts,
		collectors.NewGoCollector(),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Tick() {
	if m == nil {
		return
	}
	m.schedulerTicks.Inc()
}

func (m *Metrics) TaskRun(task, status string) {
	if m == nil {
		return
	}
	m.taskRuns.WithLabelValues(task, status).Inc()
}

func (m *Metrics) AlertTriggered(symbol, direction string) {
	if m == nil {
		return
	}
	m.alertsTriggered.WithLabelValues(symbol, direction).Inc()
}

func (m *Metrics) PriceFetch(provider string, ok bool, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.priceFetches.WithLabelValues(provider, outcome(ok)).Inc()
	m.priceFetchTime.WithLabelValues(provider).Observe(elapsed.Seconds())
}

func (m *Metrics) CacheLookup(cache string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheRequests.WithLabelValues(cache, result).Inc()
}

func (m *Metrics) TelegramMessage(ok bool) {
	if m == nil {
		return
	}
	m.telegramMessages.WithLabelValues(outcome(ok)).Inc()
}

func (m *Metrics) RegisteredAlerts(n int) {
	if m == nil {
		return
	}
	m.registeredAlerts.Set(float64(n))
}

func outcome(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}
