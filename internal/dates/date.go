// Package dates provides the calendar-day value type and the business-date
// rules shared by the ledger, sync, and orchestration layers.
package dates

import (
	"fmt"
	"regexp"
	"time"
)

// Layout is the wire format for booking dates.
const Layout = "2006-01-02"

// Date is a calendar day with no time-of-day component. All bookings operate
// in a single configured zone, so Date carries no location.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// New builds a Date from its components.
func New(year int, month time.Month, day int) Date {
	return Date{Year: year, Month: month, Day: day}
}

// FromTime truncates t to a calendar day in loc.
func FromTime(t time.Time, loc *time.Location) Date {
	y, m, d := t.In(loc).Date()
	return Date{Year: y, Month: m, Day: d}
}

// Parse reads a Date in YYYY-MM-DD form.
func Parse(s string) (Date, error) {
	t, err := time.Parse(Layout, s)
	if err != nil {
		return Date{}, fmt.Errorf("dates: parse %q: %w", s, err)
	}
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}, nil
}

// String formats the date as YYYY-MM-DD.
func (d Date) String() string {
	return d.Time(time.UTC).Format(Layout)
}

// Time returns midnight of the date in loc.
func (d Date) Time(loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

// AddDays returns the date n days later (n may be negative).
func (d Date) AddDays(n int) Date {
	t := d.Time(time.UTC).AddDate(0, 0, n)
	y, m, day := t.Date()
	return Date{Year: y, Month: m, Day: day}
}

// Weekday reports the day of week.
func (d Date) Weekday() time.Weekday {
	return d.Time(time.UTC).Weekday()
}

// IsWeekend reports whether the date falls on Saturday or Sunday.
func (d Date) IsWeekend() bool {
	wd := d.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// Before reports whether d is earlier than o.
func (d Date) Before(o Date) bool {
	if d.Year != o.Year {
		return d.Year < o.Year
	}
	if d.Month != o.Month {
		return d.Month < o.Month
	}
	return d.Day < o.Day
}

// After reports whether d is later than o.
func (d Date) After(o Date) bool {
	return o.Before(d)
}

// IsZero reports whether d is the zero Date.
func (d Date) IsZero() bool {
	return d.Year == 0 && d.Month == 0 && d.Day == 0
}

// DisplayLabel renders the human-facing form used in choice lists and
// event descriptions, e.g. "January 2, 2006 (Monday)".
func (d Date) DisplayLabel() string {
	return d.Time(time.UTC).Format("January 2, 2006 (Monday)")
}

var embeddedDate = regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)

// ExtractDate pulls an embedded YYYY-MM-DD out of a larger label, as produced
// by the intake form's date selector.
func ExtractDate(label string) (Date, error) {
	match := embeddedDate.FindString(label)
	if match == "" {
		return Date{}, fmt.Errorf("dates: no date embedded in %q", label)
	}
	return Parse(match)
}

// Range returns every date from start through start+days inclusive.
func Range(start Date, days int) []Date {
	if days < 0 {
		return nil
	}
	out := make([]Date, 0, days+1)
	for i := 0; i <= days; i++ {
		out = append(out, start.AddDays(i))
	}
	return out
}
