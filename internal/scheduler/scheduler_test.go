package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hamidbarzin/cryptobarzin/internal/clock"
	"github.com/hamidbarzin/cryptobarzin/internal/models"
)

type fakeReporter struct {
	mu        sync.Mutex
	calls     map[string]int
	technical []string
	panicOn   string
	failOn    string
	block     chan struct{}
}

func newFakeReporter() *fakeReporter {
	return &fakeReporter{calls: map[string]int{}}
}

func (f *fakeReporter) record(name string) error {
	f.mu.Lock()
	f.calls[name]++
	panicOn, failOn := f.panicOn, f.failOn
	f.mu.Unlock()
	if name == panicOn {
		panic("boom in " + name)
	}
	if name == failOn {
		return errors.New("failed " + name)
	}
	return nil
}

func (f *fakeReporter) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeReporter) Startup(context.Context) error {
	if f.block != nil {
		<-f.block
	}
	return f.record("startup")
}
func (f *fakeReporter) PriceReport(context.Context) error  { return f.record("price") }
func (f *fakeReporter) SystemReport(context.Context) error { return f.record("system") }
func (f *fakeReporter) TradingSignals(context.Context) error {
	return f.record("signals")
}
func (f *fakeReporter) NewsDigest(context.Context) error { return f.record("news") }
func (f *fakeReporter) TechnicalAnalysis(_ context.Context, symbol string) error {
	f.mu.Lock()
	f.technical = append(f.technical, symbol)
	f.mu.Unlock()
	return f.record("technical")
}

type fakeAlerts struct {
	mu     sync.Mutex
	checks int
}

func (f *fakeAlerts) Check(context.Context) []models.TriggeredEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checks++
	return nil
}

func (f *fakeAlerts) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.checks
}

type memStore struct {
	mu    sync.Mutex
	saved *models.SchedulerSettings
}

func (m *memStore) SaveSettings(_ context.Context, s models.SchedulerSettings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved = &s
	return nil
}

func (m *memStore) LoadSettings(context.Context) (*models.SchedulerSettings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saved, nil
}

func toronto(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/Toronto")
	require.NoError(t, err)
	return loc
}

func testConfig(t *testing.T) Config {
	return Config{
		Settings: models.SchedulerSettings{
			ActiveHoursStart:      8,
			ActiveHoursEnd:        22,
			MessageSendingEnabled: true,
			Interval:              time.Minute,
		},
		Intervals:   Intervals{PriceReport: 2, SystemReport: 3, Technical: 1, Signals: 4, News: 5},
		Location:    toronto(t),
		StopTimeout: 200 * time.Millisecond,
	}
}

// noon in Toronto.
func newFakeClock() *clock.Fake {
	return clock.NewFake(time.Date(2025, 4, 1, 16, 0, 0, 0, time.UTC))
}

func newTestService(t *testing.T, cfg Config, opts ...Option) (*Service, *fakeReporter, *fakeAlerts, *clock.Fake) {
	t.Helper()
	rep := newFakeReporter()
	al := &fakeAlerts{}
	clk := newFakeClock()
	svc, err := New(cfg, rep, al, append([]Option{WithClock(clk)}, opts...)...)
	require.NoError(t, err)
	return svc, rep, al, clk
}

func TestStartStopSingleInstance(t *testing.T) {
	svc, _, _, _ := newTestService(t, testConfig(t))

	require.NoError(t, svc.Start())
	assert.ErrorIs(t, svc.Start(), ErrAlreadyRunning)
	assert.True(t, svc.Running())

	require.NoError(t, svc.Stop())
	assert.ErrorIs(t, svc.Stop(), ErrNotRunning)
	assert.False(t, svc.Running())

	require.NoError(t, svc.Start())
	require.NoError(t, svc.Stop())
}

func TestStartRejectedUntilPreviousWorkerExits(t *testing.T) {
	cfg := testConfig(t)
	cfg.SendStartup = true
	svc, rep, _, _ := newTestService(t, cfg)
	rep.block = make(chan struct{})

	require.NoError(t, svc.Start())
	require.NoError(t, svc.Stop(), "stop returns after the bounded wait")
	assert.ErrorIs(t, svc.Start(), ErrAlreadyRunning)

	close(rep.block)
	require.Eventually(t, func() bool { return svc.Start() == nil }, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, svc.Stop())
}

func TestCounterWraparound(t *testing.T) {
	svc, rep, al, _ := newTestService(t, testConfig(t))
	ctx := context.Background()

	for i := 0; i < 6; i++ {
		svc.tick(ctx)
	}

	assert.Equal(t, 6, al.count())
	assert.Equal(t, 3, rep.count("price"))
	assert.Equal(t, 2, rep.count("system"))
	assert.Equal(t, 6, rep.count("technical"))
	assert.Equal(t, 1, rep.count("signals"))
	assert.Equal(t, 1, rep.count("news"))

	st := svc.Status()
	assert.Equal(t, 0, st.Counters[TaskPriceReport])
	assert.Equal(t, 0, st.Counters[TaskSystemReport])
	assert.Equal(t, 2, st.Counters[TaskSignals])
	assert.Equal(t, 1, st.Counters[TaskNews])
	assert.Equal(t, int64(6), st.Ticks)
}

func TestAlertCheckRunsWhenSendingDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.Settings.MessageSendingEnabled = false
	svc, rep, al, _ := newTestService(t, cfg)

	for i := 0; i < 4; i++ {
		svc.tick(context.Background())
	}

	assert.Equal(t, 4, al.count())
	assert.Zero(t, rep.count("price"))
	assert.Zero(t, rep.count("technical"))
	assert.Equal(t, 0, svc.Status().Counters[TaskPriceReport], "counters still wrap while gated")
}

func TestActiveHoursGating(t *testing.T) {
	svc, rep, al, clk := newTestService(t, testConfig(t))
	ctx := context.Background()

	// 23:00 in Toronto.
	clk.Set(time.Date(2025, 4, 2, 3, 0, 0, 0, time.UTC))
	svc.tick(ctx)
	svc.tick(ctx)
	assert.Zero(t, rep.count("price"))
	assert.False(t, svc.Status().ActiveNow)

	// 09:00 in Toronto.
	clk.Set(time.Date(2025, 4, 2, 13, 0, 0, 0, time.UTC))
	svc.tick(ctx)
	svc.tick(ctx)
	assert.Equal(t, 1, rep.count("price"))
	assert.Equal(t, 4, al.count())
	assert.True(t, svc.Status().ActiveNow)
}

func TestTechnicalRoundRobin(t *testing.T) {
	svc, rep, _, _ := newTestService(t, testConfig(t))

	for i := 0; i < 7; i++ {
		svc.tick(context.Background())
	}

	want := []string{"BTC/USDT", "ETH/USDT", "BNB/USDT", "SOL/USDT", "XRP/USDT", "BTC/USDT", "ETH/USDT"}
	assert.Equal(t, want, rep.technical)
	assert.Equal(t, "BNB/USDT", svc.Status().NextCoin)
}

func TestTaskPanicDoesNotKillLoop(t *testing.T) {
	svc, rep, al, _ := newTestService(t, testConfig(t))
	rep.panicOn = "technical"
	rep.failOn = "price"

	assert.NotPanics(t, func() {
		for i := 0; i < 4; i++ {
			svc.tick(context.Background())
		}
	})
	assert.Equal(t, 4, al.count())
	assert.Equal(t, 4, rep.count("technical"))
	assert.Equal(t, 2, rep.count("price"))
	assert.Equal(t, 1, rep.count("signals"))
}

func TestWorkerLoopWithFakeClock(t *testing.T) {
	cfg := testConfig(t)
	cfg.SendStartup = true
	svc, rep, al, clk := newTestService(t, cfg)

	require.NoError(t, svc.Start())
	defer svc.Stop()

	require.Eventually(t, func() bool { return clk.Waiters() == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, 1, rep.count("startup"))
	assert.Equal(t, 1, rep.count("price"))

	for i := 1; i <= 3; i++ {
		clk.Advance(time.Minute)
		require.Eventually(t, func() bool { return clk.Waiters() == 1 && al.count() == i }, time.Second, time.Millisecond)
	}
	assert.Equal(t, 3, rep.count("technical"))
	assert.NotNil(t, svc.Status().LastTick)
}

func TestStartupSkippedOutsideActiveHours(t *testing.T) {
	cfg := testConfig(t)
	cfg.SendStartup = true
	svc, rep, _, clk := newTestService(t, cfg)
	clk.Set(time.Date(2025, 4, 2, 6, 0, 0, 0, time.UTC)) // 02:00 Toronto

	require.NoError(t, svc.Start())
	defer svc.Stop()
	require.Eventually(t, func() bool { return clk.Waiters() == 1 }, time.Second, time.Millisecond)
	assert.Zero(t, rep.count("startup"))
}

func intPtr(i int) *int                     { return &i }
func boolPtr(b bool) *bool                  { return &b }
func durPtr(d time.Duration) *time.Duration { return &d }

func TestUpdateSettingsAllOrNothing(t *testing.T) {
	store := &memStore{}
	svc, _, _, _ := newTestService(t, testConfig(t), WithSettingsStore(store))

	_, err := svc.UpdateSettings(context.Background(), SettingsPatch{
		MessageSendingEnabled: boolPtr(false),
		Interval:              durPtr(30 * time.Second),
	})
	assert.ErrorIs(t, err, ErrInvalidSettings)
	assert.True(t, svc.Status().Settings.MessageSendingEnabled)
	assert.Nil(t, store.saved)

	_, err = svc.UpdateSettings(context.Background(), SettingsPatch{ActiveHoursStart: intPtr(24)})
	assert.ErrorIs(t, err, ErrInvalidSettings)
	_, err = svc.UpdateSettings(context.Background(), SettingsPatch{ActiveHoursEnd: intPtr(0)})
	assert.ErrorIs(t, err, ErrInvalidSettings)

	st, err := svc.UpdateSettings(context.Background(), SettingsPatch{
		ActiveHoursStart: intPtr(9),
		ActiveHoursEnd:   intPtr(24),
		Interval:         durPtr(2 * time.Minute),
		AutoStart:        boolPtr(true),
	})
	require.NoError(t, err)
	assert.Equal(t, 9, st.Settings.ActiveHoursStart)
	assert.Equal(t, 24, st.Settings.ActiveHoursEnd)
	assert.Equal(t, 2*time.Minute, st.Settings.Interval)
	require.NotNil(t, store.saved)
	assert.True(t, store.saved.AutoStart)
}

func TestNewRestoresStoredSettings(t *testing.T) {
	store := &memStore{saved: &models.SchedulerSettings{
		ActiveHoursStart: 6, ActiveHoursEnd: 23, MessageSendingEnabled: true, Interval: 5 * time.Minute, AutoStart: true,
	}}
	svc, _, _, _ := newTestService(t, testConfig(t), WithSettingsStore(store))

	st := svc.Status()
	assert.Equal(t, 6, st.Settings.ActiveHoursStart)
	assert.Equal(t, 5*time.Minute, st.Settings.Interval)
	assert.True(t, svc.AutoStart())
}

func TestStatusNextRuns(t *testing.T) {
	svc, _, _, clk := newTestService(t, testConfig(t))
	svc.tick(context.Background())

	st := svc.Status()
	assert.Equal(t, "America/Toronto", st.Timezone)
	assert.True(t, st.NextRuns[TaskPriceReport].Equal(clk.Now().Add(time.Minute)))
	assert.True(t, st.NextRuns[TaskNews].Equal(clk.Now().Add(4*time.Minute)))
}

func TestNewRejectsInvalidSettings(t *testing.T) {
	cfg := testConfig(t)
	cfg.Settings.ActiveHoursEnd = 25
	_, err := New(cfg, newFakeReporter(), &fakeAlerts{})
	assert.ErrorIs(t, err, ErrInvalidSettings)
}
