package models

import (
	"testing"
	"time"
)

func TestPriceAlertValidate(t *testing.T) {
	tests := []struct {
		name    string
		alert   PriceAlert
		wantErr bool
	}{
		{
			name:    "valid alert",
			alert:   PriceAlert{Symbol: "BTC/USDT", TargetPrice: 82000, Direction: Above},
			wantErr: false,
		},
		{
			name:    "empty symbol",
			alert:   PriceAlert{Symbol: "  ", TargetPrice: 82000, Direction: Above},
			wantErr: true,
		},
		{
			name:    "zero price",
			alert:   PriceAlert{Symbol: "BTC/USDT", TargetPrice: 0, Direction: Below},
			wantErr: true,
		},
		{
			name:    "negative price",
			alert:   PriceAlert{Symbol: "BTC/USDT", TargetPrice: -5, Direction: Below},
			wantErr: true,
		},
		{
			name:    "unknown direction",
			alert:   PriceAlert{Symbol: "BTC/USDT", TargetPrice: 1, Direction: "sideways"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.alert.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("PriceAlert.Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseDirection(t *testing.T) {
	tests := []struct {
		in      string
		want    Direction
		wantErr bool
	}{
		{"above", Above, false},
		{" BELOW ", Below, false},
		{"up", "", true},
	}
	for _, tt := range tests {
		got, err := ParseDirection(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseDirection(%q) = %q, %v", tt.in, got, err)
		}
	}
}

func TestPriceAlertTransitions(t *testing.T) {
	above := PriceAlert{Symbol: "ETH/USDT", TargetPrice: 2000, Direction: Above}
	below := PriceAlert{Symbol: "ETH/USDT", TargetPrice: 2000, Direction: Below}

	tests := []struct {
		name  string
		alert PriceAlert
		price float64
		cross bool
		rearm bool
	}{
		{"above under target", above, 1999, false, false},
		{"above at target", above, 2000, true, false},
		{"above inside band", above, 1985, false, false},
		{"above past band", above, 1979, false, true},
		{"below over target", below, 2001, false, false},
		{"below at target", below, 2000, true, false},
		{"below inside band", below, 2015, false, false},
		{"below past band", below, 2021, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.alert.Crossed(tt.price); got != tt.cross {
				t.Errorf("Crossed(%v) = %v, want %v", tt.price, got, tt.cross)
			}
			if got := tt.alert.Rearmable(tt.price, 0.01); got != tt.rearm {
				t.Errorf("Rearmable(%v) = %v, want %v", tt.price, got, tt.rearm)
			}
		})
	}
}

func TestPriceAlertMatches(t *testing.T) {
	a := PriceAlert{Symbol: "BTC/USDT", TargetPrice: 82000, Direction: Above}
	if !a.Matches(82000.0005, Above) {
		t.Error("expected match within tolerance")
	}
	if a.Matches(82000.01, Above) {
		t.Error("expected no match outside tolerance")
	}
	if a.Matches(82000, Below) {
		t.Error("expected no match for other direction")
	}
}

func TestSchedulerSettingsValidate(t *testing.T) {
	valid := SchedulerSettings{ActiveHoursStart: 8, ActiveHoursEnd: 22, Interval: time.Minute}
	tests := []struct {
		name    string
		mutate  func(*SchedulerSettings)
		wantErr bool
	}{
		{"valid", func(*SchedulerSettings) {}, false},
		{"start too high", func(s *SchedulerSettings) { s.ActiveHoursStart = 24 }, true},
		{"negative start", func(s *SchedulerSettings) { s.ActiveHoursStart = -1 }, true},
		{"end zero", func(s *SchedulerSettings) { s.ActiveHoursEnd = 0 }, true},
		{"end 24", func(s *SchedulerSettings) { s.ActiveHoursEnd = 24 }, false},
		{"equal bounds", func(s *SchedulerSettings) { s.ActiveHoursEnd = 8 }, true},
		{"short interval", func(s *SchedulerSettings) { s.Interval = 59 * time.Second }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := valid
			tt.mutate(&s)
			if err := s.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSchedulerSettingsActiveAt(t *testing.T) {
	day := SchedulerSettings{ActiveHoursStart: 8, ActiveHoursEnd: 22}
	night := SchedulerSettings{ActiveHoursStart: 22, ActiveHoursEnd: 6}

	tests := []struct {
		s    SchedulerSettings
		hour int
		want bool
	}{
		{day, 7, false},
		{day, 8, true},
		{day, 21, true},
		{day, 22, false},
		{night, 23, true},
		{night, 3, true},
		{night, 6, false},
		{night, 12, false},
	}
	for _, tt := range tests {
		if got := tt.s.ActiveAt(tt.hour); got != tt.want {
			t.Errorf("ActiveAt(%d) with %d-%d = %v, want %v",
				tt.hour, tt.s.ActiveHoursStart, tt.s.ActiveHoursEnd, got, tt.want)
		}
	}
}
