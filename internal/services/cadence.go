// Package services provides business logic and orchestration services.
//
// This file implements the Strategy Pattern for stepping a recurring obligation
// from one occurrence to the next. Each frequency has its own cadence.

package services

import (
	"fmt"
	"maaser/internal/core"
)

// Cadence is the strategy interface for advancing an occurrence cursor.
type Cadence interface {
	// Next returns the occurrence that follows cursor.
	Next(cursor core.Date) (core.Date, error)
}

// DailyCadence steps one day.
type DailyCadence struct{}

func (DailyCadence) Next(cursor core.Date) (core.Date, error) {
	return cursor.AddDays(1)
}

// WeeklyCadence steps seven days.
type WeeklyCadence struct{}

func (WeeklyCadence) Next(cursor core.Date) (core.Date, error) {
	return cursor.AddDays(7)
}

// MonthlyCadence adds one calendar month to the cursor. When the cursor's day
// does not exist in the following month it is clamped to that month's last day,
// and the clamped day carries forward: Jan 31, Feb 29, Mar 29.
type MonthlyCadence struct{}

func (MonthlyCadence) Next(cursor core.Date) (core.Date, error) {
	return cursor.AddMonthsClamped(1)
}

// YearlyCadence adds one year; Feb 29 clamps to Feb 28.
type YearlyCadence struct{}

func (YearlyCadence) Next(cursor core.Date) (core.Date, error) {
	return cursor.AddYearsClamped(1)
}

// cadences maps frequencies to their stepping strategies.
var cadences = map[core.Frequency]Cadence{
	core.Daily:   DailyCadence{},
	core.Weekly:  WeeklyCadence{},
	core.Monthly: MonthlyCadence{},
	core.Yearly:  YearlyCadence{},
}

// GetCadence returns the cadence for a frequency.
// Returns core.ErrUnsupportedFrequency if none is registered.
func GetCadence(frequency core.Frequency) (Cadence, error) {
	c, ok := cadences[frequency]
	if !ok {
		return nil, fmt.Errorf("%w: %q", core.ErrUnsupportedFrequency, frequency)
	}
	return c, nil
}

// RegisterCadence registers a cadence for a new frequency.
func RegisterCadence(frequency core.Frequency, c Cadence) {
	cadences[frequency] = c
}
