package dates

import (
	"context"
	"time"
)

// HolidayChecker answers whether a given date is a holiday.
type HolidayChecker interface {
	IsHoliday(ctx context.Context, d Date) bool
}

// Validator is the single authority for "may a booking exist on this date".
// Every reconciliation path must go through IsValidBusinessDate; divergent
// reimplementations at call sites are treated as defects.
type Validator struct {
	loc        *time.Location
	futureDays int
	holidays   HolidayChecker
	now        func() time.Time
}

// NewValidator builds a Validator for the configured zone and booking window.
func NewValidator(loc *time.Location, futureDays int, holidays HolidayChecker) *Validator {
	if loc == nil {
		loc = time.UTC
	}
	return &Validator{
		loc:        loc,
		futureDays: futureDays,
		holidays:   holidays,
		now:        time.Now,
	}
}

// WithNow overrides the clock. Test hook.
func (v *Validator) WithNow(now func() time.Time) *Validator {
	v.now = now
	return v
}

// Today returns the current date in the configured zone.
func (v *Validator) Today() Date {
	return FromTime(v.now(), v.loc)
}

// BeforeToday reports whether d has already passed.
func (v *Validator) BeforeToday(d Date) bool {
	return d.Before(v.Today())
}

// BeyondWindow reports whether d lies past the future booking window.
func (v *Validator) BeyondWindow(d Date) bool {
	return d.After(v.Today().AddDays(v.futureDays))
}

// IsHoliday reports whether d is a holiday per the configured checker.
func (v *Validator) IsHoliday(ctx context.Context, d Date) bool {
	return v.holidays != nil && v.holidays.IsHoliday(ctx, d)
}

// IsValidBusinessDate reports whether a summary event (and bookings) may
// exist on d: not past, not a weekend, within the window, not a holiday.
func (v *Validator) IsValidBusinessDate(ctx context.Context, d Date) bool {
	if v.BeforeToday(d) || d.IsWeekend() || v.BeyondWindow(d) {
		return false
	}
	if v.holidays != nil && v.holidays.IsHoliday(ctx, d) {
		return false
	}
	return true
}

// FutureDays exposes the configured window length.
func (v *Validator) FutureDays() int {
	return v.futureDays
}
