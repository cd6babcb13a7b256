// Package scheduler runs the single background worker that checks price
// alerts every tick and publishes the periodic reports.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/hamidbarzin/cryptobarzin/internal/clock"
	"github.com/hamidbarzin/cryptobarzin/internal/logger"
	"github.com/hamidbarzin/cryptobarzin/internal/metrics"
	"github.com/hamidbarzin/cryptobarzin/internal/models"
)

var (
	ErrAlreadyRunning  = errors.New("scheduler is already running")
	ErrNotRunning      = errors.New("scheduler is not running")
	ErrInvalidSettings = errors.New("invalid scheduler settings")
)

// Reporter publishes the periodic messages.
type Reporter interface {
	Startup(ctx context.Context) error
	PriceReport(ctx context.Context) error
	SystemReport(ctx context.Context) error
	TechnicalAnalysis(ctx context.Context, symbol string) error
	TradingSignals(ctx context.Context) error
	NewsDigest(ctx context.Context) error
}

// AlertChecker evaluates the price alerts.
type AlertChecker interface {
	Check(ctx context.Context) []models.TriggeredEvent
}

// SettingsStore persists settings across restarts.
type SettingsStore interface {
	SaveSettings(ctx context.Context, s models.SchedulerSettings) error
	LoadSettings(ctx context.Context) (*models.SchedulerSettings, error)
}

// Config holds the static scheduler configuration.
type Config struct {
	Settings    models.SchedulerSettings
	Intervals   Intervals
	Coins       []string
	Location    *time.Location
	StopTimeout time.Duration
	TaskTimeout time.Duration
	SendStartup bool
}

// Option customises a Service.
type Option func(*Service)

func WithClock(c clock.Clock) Option            { return func(s *Service) { s.clock = c } }
func WithMetrics(m *metrics.Metrics) Option     { return func(s *Service) { s.metrics = m } }
func WithSettingsStore(st SettingsStore) Option { return func(s *Service) { s.store = st } }

// Service owns the worker goroutine and the tick counters.
type Service struct {
	reporter Reporter
	alerts   AlertChecker
	store    SettingsStore
	clock    clock.Clock
	metrics  *metrics.Metrics

	intervals   Intervals
	coins       []string
	location    *time.Location
	stopTimeout time.Duration
	taskTimeout time.Duration
	sendStartup bool

	mu        sync.Mutex
	settings  models.SchedulerSettings
	counters  map[Task]int
	coinIndex int
	running   bool
	cancel    context.CancelFunc
	done      chan struct{}
	startedAt time.Time
	lastTick  time.Time
	ticks     int64
}

// New creates a stopped Service. Settings saved in the store take precedence
// over cfg.Settings.
func New(cfg Config, reporter Reporter, alerts AlertChecker, opts ...Option) (*Service, error) {
	s := &Service{
		reporter:    reporter,
		alerts:      alerts,
		clock:       clock.Real(),
		intervals:   cfg.Intervals.withDefaults(),
		coins:       cfg.Coins,
		location:    cfg.Location,
		stopTimeout: cfg.StopTimeout,
		taskTimeout: cfg.TaskTimeout,
		sendStartup: cfg.SendStartup,
		settings:    cfg.Settings,
		counters:    make(map[Task]int, len(taskOrder)),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.location == nil {
		s.location = time.UTC
	}
	if s.stopTimeout <= 0 {
		s.stopTimeout = 10 * time.Second
	}
	if s.taskTimeout <= 0 {
		s.taskTimeout = 2 * time.Minute
	}
	if len(s.coins) == 0 {
		s.coins = DefaultCoins
	}
	if s.settings.Interval == 0 {
		s.settings.Interval = time.Minute
	}

	if s.store != nil {
		saved, err := s.store.LoadSettings(context.Background())
		if err != nil {
			return nil, fmt.Errorf("failed to load scheduler settings: %w", err)
		}
		if saved != nil {
			if err := saved.Validate(); err != nil {
				logger.Warn("Ignoring stored scheduler settings: %v", err)
			} else {
				s.settings = *saved
				logger.Info("Restored scheduler settings from storage")
			}
		}
	}
	if err := s.settings.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSettings, err)
	}
	return s, nil
}

// Start launches the worker. It fails with ErrAlreadyRunning while a worker
// is active or a stopped worker has not yet exited.
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrAlreadyRunning
	}
	if s.done != nil {
		select {
		case <-s.done:
		default:
			return ErrAlreadyRunning
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running = true
	s.startedAt = s.clock.Now()

	go s.run(ctx, s.done)
	logger.Info("Scheduler started (tick %v)", s.settings.Interval)
	return nil
}

// Stop signals the worker and waits up to the stop timeout for it to exit.
func (s *Service) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return ErrNotRunning
	}
	s.running = false
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	cancel()
	select {
	case <-done:
		logger.Info("Scheduler stopped")
	case <-time.After(s.stopTimeout):
		logger.Warn("Scheduler worker did not exit within %v", s.stopTimeout)
	}
	return nil
}

// Running reports whether the worker is active.
func (s *Service) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// AutoStart reports the persisted auto_start flag.
func (s *Service) AutoStart() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings.AutoStart
}

func (s *Service) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	if s.sendStartup {
		if s.gateOpen() {
			s.safeRun(ctx, "startup", s.reporter.Startup)
			s.safeRun(ctx, string(TaskPriceReport), s.reporter.PriceReport)
		} else {
			logger.Info("Startup messages skipped: outside active hours or sending disabled")
		}
	}

	for {
		s.mu.Lock()
		interval := s.settings.Interval
		s.mu.Unlock()

		select {
		case <-ctx.Done():
			return
		case <-s.clock.After(interval):
		}
		if ctx.Err() != nil {
			return
		}
		s.tick(ctx)
	}
}

// tick runs one scheduler step: the alert check, then every periodic task
// whose counter wrapped.
func (s *Service) tick(ctx context.Context) {
	s.metrics.Tick()

	s.safeRun(ctx, "alert_check", func(ctx context.Context) error {
		if events := s.alerts.Check(ctx); len(events) > 0 {
			logger.Info("Alert check triggered %d alert(s)", len(events))
		}
		return nil
	})

	now := s.clock.Now()
	s.mu.Lock()
	active := s.gateOpenLocked(now)
	var due []Task
	for _, t := range taskOrder {
		s.counters[t]++
		if s.counters[t] >= s.intervals.of(t) {
			s.counters[t] = 0
			due = append(due, t)
		}
	}
	s.ticks++
	s.lastTick = now
	s.mu.Unlock()

	for _, t := range due {
		if !active {
			logger.Info("Skipping %s: outside active hours or sending disabled", t)
			s.metrics.TaskRun(string(t), "skipped")
			continue
		}
		s.runTask(ctx, t)
	}
}

func (s *Service) runTask(ctx context.Context, t Task) {
	switch t {
	case TaskPriceReport:
		s.safeRun(ctx, string(t), s.reporter.PriceReport)
	case TaskSystemReport:
		s.safeRun(ctx, string(t), s.reporter.SystemReport)
	case TaskTechnical:
		coin := s.nextCoin()
		s.safeRun(ctx, string(t), func(ctx context.Context) error {
			return s.reporter.TechnicalAnalysis(ctx, coin)
		})
	case TaskSignals:
		s.safeRun(ctx, string(t), s.reporter.TradingSignals)
	case TaskNews:
		s.safeRun(ctx, string(t), s.reporter.NewsDigest)
	}
}

// safeRun executes fn with a timeout, recovering panics so the loop survives.
func (s *Service) safeRun(ctx context.Context, name string, fn func(context.Context) error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Task %s panicked: %v\n%s", name, r, debug.Stack())
			s.metrics.TaskRun(name, "panic")
		}
	}()

	tctx, cancel := context.WithTimeout(ctx, s.taskTimeout)
	defer cancel()

	if err := fn(tctx); err != nil {
		logger.Error("Task %s failed: %v", name, err)
		s.metrics.TaskRun(name, "failure")
		return
	}
	s.metrics.TaskRun(name, "success")
}

func (s *Service) nextCoin() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	coin := s.coins[s.coinIndex%len(s.coins)]
	s.coinIndex = (s.coinIndex + 1) % len(s.coins)
	return coin
}

func (s *Service) gateOpen() bool {
	now := s.clock.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gateOpenLocked(now)
}

func (s *Service) gateOpenLocked(now time.Time) bool {
	return s.settings.MessageSendingEnabled && s.settings.ActiveAt(now.In(s.location).Hour())
}
