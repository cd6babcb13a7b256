package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/hamidbarzin/cryptobarzin/internal/logger"
	"github.com/hamidbarzin/cryptobarzin/internal/models"
)

// Status is a snapshot of the scheduler for the control surface.
type Status struct {
	Running   bool                     `json:"running"`
	ActiveNow bool                     `json:"active_now"`
	Settings  models.SchedulerSettings `json:"settings"`
	Timezone  string                   `json:"timezone"`
	Ticks     int64                    `json:"ticks"`
	StartedAt *time.Time               `json:"started_at,omitempty"`
	LastTick  *time.Time               `json:"last_tick,omitempty"`
	Counters  map[Task]int             `json:"counters"`
	Intervals map[Task]int             `json:"intervals"`
	NextRuns  map[Task]time.Time       `json:"next_runs"`
	Coins     []string                 `json:"coins"`
	NextCoin  string                   `json:"next_coin"`
}

// Status returns the current state.
func (s *Service) Status() Status {
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{
		Running:   s.running,
		ActiveNow: s.gateOpenLocked(now),
		Settings:  s.settings,
		Timezone:  s.location.String(),
		Ticks:     s.ticks,
		Counters:  make(map[Task]int, len(taskOrder)),
		Intervals: make(map[Task]int, len(taskOrder)),
		NextRuns:  make(map[Task]time.Time, len(taskOrder)),
		Coins:     append([]string(nil), s.coins...),
		NextCoin:  s.coins[s.coinIndex%len(s.coins)],
	}
	if s.running {
		started := s.startedAt
		st.StartedAt = &started
	}
	base := now
	if !s.lastTick.IsZero() {
		last := s.lastTick
		st.LastTick = &last
		base = last
	}
	for _, t := range taskOrder {
		interval := s.intervals.of(t)
		st.Counters[t] = s.counters[t]
		st.Intervals[t] = interval
		st.NextRuns[t] = base.Add(time.Duration(interval-s.counters[t]) * s.settings.Interval).In(s.location)
	}
	return st
}

// SettingsPatch carries optional updates. Nil fields are left unchanged.
type SettingsPatch struct {
	ActiveHoursStart      *int           `json:"active_hours_start,omitempty"`
	ActiveHoursEnd        *int           `json:"active_hours_end,omitempty"`
	MessageSendingEnabled *bool          `json:"message_sending_enabled,omitempty"`
	Interval              *time.Duration `json:"interval,omitempty"`
	AutoStart             *bool          `json:"auto_start,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p SettingsPatch) Empty() bool {
	return p.ActiveHoursStart == nil && p.ActiveHoursEnd == nil &&
		p.MessageSendingEnabled == nil && p.Interval == nil && p.AutoStart == nil
}

// UpdateSettings validates the patched settings as a whole and applies them
// only if every field is valid. Accepted settings are persisted.
func (s *Service) UpdateSettings(ctx context.Context, patch SettingsPatch) (Status, error) {
	s.mu.Lock()
	next := s.settings
	if patch.ActiveHoursStart != nil {
		next.ActiveHoursStart = *patch.ActiveHoursStart
	}
	if patch.ActiveHoursEnd != nil {
		next.ActiveHoursEnd = *patch.ActiveHoursEnd
	}
	if patch.MessageSendingEnabled != nil {
		next.MessageSendingEnabled = *patch.MessageSendingEnabled
	}
	if patch.Interval != nil {
		next.Interval = *patch.Interval
	}
	if patch.AutoStart != nil {
		next.AutoStart = *patch.AutoStart
	}
	if err := next.Validate(); err != nil {
		s.mu.Unlock()
		return Status{}, fmt.Errorf("%w: %v", ErrInvalidSettings, err)
	}
	next.UpdatedAt = s.clock.Now()
	s.settings = next
	s.mu.Unlock()

	logger.Info("Scheduler settings updated: hours %d-%d, sending %v, tick %v",
		next.ActiveHoursStart, next.ActiveHoursEnd, next.MessageSendingEnabled, next.Interval)

	if s.store != nil {
		if err := s.store.SaveSettings(ctx, next); err != nil {
			logger.Error("Failed to persist scheduler settings: %v", err)
		}
	}
	return s.Status(), nil
}
