package models

import (
	"errors"
	"time"
)

// MinInterval is the shortest accepted scheduler tick.
const MinInterval = time.Minute

// SchedulerSettings are the user-tunable scheduler knobs. They survive
// restarts; the counters do not.
type SchedulerSettings struct {
	ActiveHoursStart      int           `json:"active_hours_start"`
	ActiveHoursEnd        int           `json:"active_hours_end"`
	MessageSendingEnabled bool          `json:"message_sending_enabled"`
	Interval              time.Duration `json:"interval"`
	AutoStart             bool          `json:"auto_start"`
	UpdatedAt             time.Time     `json:"updated_at"`
}

// Validate checks settings field constraints.
func (s *SchedulerSettings) Validate() error {
	if s.ActiveHoursStart < 0 || s.ActiveHoursStart > 23 {
		return errors.New("active hours start must be between 0 and 23")
	}
	if s.ActiveHoursEnd < 1 || s.ActiveHoursEnd > 24 {
		return errors.New("active hours end must be between 1 and 24")
	}
	if s.ActiveHoursStart == s.ActiveHoursEnd {
		return errors.New("active hours start and end must differ")
	}
	if s.Interval < MinInterval {
		return errors.New("interval must be at least 60 seconds")
	}
	return nil
}

// ActiveAt reports whether hour lies in [start, end). A window with
// start > end wraps past midnight.
func (s *SchedulerSettings) ActiveAt(hour int) bool {
	if s.ActiveHoursStart < s.ActiveHoursEnd {
		return hour >= s.ActiveHoursStart && hour < s.ActiveHoursEnd
	}
	return hour >= s.ActiveHoursStart || hour < s.ActiveHoursEnd
}
