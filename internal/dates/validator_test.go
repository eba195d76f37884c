package dates

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type stubHolidays struct {
	days map[string]bool
}

func (s *stubHolidays) IsHoliday(_ context.Context, d Date) bool {
	return s.days[d.String()]
}

func fixedValidator(futureDays int, holidays HolidayChecker) *Validator {
	// Friday 2026-08-28, 10:00 local.
	now := time.Date(2026, time.August, 28, 10, 0, 0, 0, time.UTC)
	return NewValidator(time.UTC, futureDays, holidays).WithNow(func() time.Time { return now })
}

func TestIsValidBusinessDate(t *testing.T) {
	holidays := &stubHolidays{days: map[string]bool{"2026-08-31": true}}
	v := fixedValidator(60, holidays)
	ctx := context.Background()

	tests := []struct {
		name string
		date string
		want bool
	}{
		{"today is valid", "2026-08-28", true},
		{"yesterday is past", "2026-08-27", false},
		{"saturday rejected", "2026-08-29", false},
		{"sunday rejected", "2026-08-30", false},
		{"holiday rejected", "2026-08-31", false},
		{"plain weekday valid", "2026-09-01", true},
		{"window edge valid", "2026-10-27", true},
		{"beyond window rejected", "2026-10-28", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := Parse(tt.date)
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			assert.Equal(t, tt.want, v.IsValidBusinessDate(ctx, d))
		})
	}
}

func TestValidatorNilHolidayChecker(t *testing.T) {
	v := fixedValidator(60, nil)
	d := New(2026, time.September, 1)
	assert.True(t, v.IsValidBusinessDate(context.Background(), d))
}

func TestToday(t *testing.T) {
	v := fixedValidator(60, nil)
	assert.Equal(t, "2026-08-28", v.Today().String())
}
