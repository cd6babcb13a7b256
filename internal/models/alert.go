// Package models defines the core domain entities: price alerts, triggered
// events, quotes, indicator snapshots and news articles.
package models

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// Direction is the side of the target price an alert watches.
type Direction string

const (
	Above Direction = "above"
	Below Direction = "below"
)

// ParseDirection accepts "above"/"below" in any case.
func ParseDirection(s string) (Direction, error) {
	switch d := Direction(strings.ToLower(strings.TrimSpace(s))); d {
	case Above, Below:
		return d, nil
	default:
		return "", fmt.Errorf("invalid direction %q: must be %q or %q", s, Above, Below)
	}
}

// Valid reports whether d is one of the two known directions.
func (d Direction) Valid() bool {
	return d == Above || d == Below
}

// PriceTolerance is the distance under which two target prices are the same
// alert.
const PriceTolerance = 0.001

// PriceAlert is a one-shot price threshold. It is identified by the natural
// key (Symbol, TargetPrice within PriceTolerance, Direction).
type PriceAlert struct {
	Symbol      string     `json:"symbol"`
	TargetPrice float64    `json:"target_price"`
	Direction   Direction  `json:"direction"`
	Triggered   bool       `json:"triggered"`
	CreatedAt   time.Time  `json:"created_at"`
	TriggeredAt *time.Time `json:"triggered_at,omitempty"`
}

// Validate checks alert field constraints.
func (a *PriceAlert) Validate() error {
	if strings.TrimSpace(a.Symbol) == "" {
		return errors.New("symbol must not be empty")
	}
	if math.IsNaN(a.TargetPrice) || math.IsInf(a.TargetPrice, 0) || a.TargetPrice <= 0 {
		return errors.New("target price must be a positive number")
	}
	if !a.Direction.Valid() {
		return fmt.Errorf("invalid direction %q", a.Direction)
	}
	return nil
}

// Matches reports whether the alert has the given natural key.
func (a *PriceAlert) Matches(target float64, dir Direction) bool {
	return a.Direction == dir && math.Abs(a.TargetPrice-target) < PriceTolerance
}

// Crossed reports whether price satisfies the trigger condition.
func (a *PriceAlert) Crossed(price float64) bool {
	if a.Direction == Above {
		return price >= a.TargetPrice
	}
	return price <= a.TargetPrice
}

// Rearmable reports whether price has moved back past the hysteresis band on
// the opposite side of the target.
func (a *PriceAlert) Rearmable(price, hysteresis float64) bool {
	if a.Direction == Above {
		return price < a.TargetPrice*(1-hysteresis)
	}
	return price > a.TargetPrice*(1+hysteresis)
}

// TriggeredEvent records one armed-to-triggered transition.
type TriggeredEvent struct {
	ID           string    `json:"id"`
	Symbol       string    `json:"symbol"`
	Direction    Direction `json:"direction"`
	TargetPrice  float64   `json:"target_price"`
	CurrentPrice float64   `json:"current_price"`
	Source       string    `json:"source,omitempty"`
	TriggeredAt  time.Time `json:"triggered_at"`
	Delivered    bool      `json:"delivered"`
}
