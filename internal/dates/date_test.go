package dates

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAndString(t *testing.T) {
	d, err := Parse("2026-09-01")
	require.NoError(t, err)
	assert.Equal(t, 2026, d.Year)
	assert.Equal(t, time.September, d.Month)
	assert.Equal(t, 1, d.Day)
	assert.Equal(t, "2026-09-01", d.String())

	_, err = Parse("09/01/2026")
	assert.Error(t, err)
}

func TestAddDaysCrossesMonthBoundary(t *testing.T) {
	d := New(2026, time.August, 30)
	assert.Equal(t, "2026-09-02", d.AddDays(3).String())
	assert.Equal(t, "2026-08-27", d.AddDays(-3).String())
}

func TestIsWeekend(t *testing.T) {
	assert.False(t, New(2026, time.August, 28).IsWeekend()) // Friday
	assert.True(t, New(2026, time.August, 29).IsWeekend())  // Saturday
	assert.True(t, New(2026, time.August, 30).IsWeekend())  // Sunday
	assert.False(t, New(2026, time.August, 31).IsWeekend()) // Monday
}

func TestBeforeAfter(t *testing.T) {
	a := New(2026, time.August, 28)
	b := New(2026, time.September, 1)
	assert.True(t, a.Before(b))
	assert.True(t, b.After(a))
	assert.False(t, a.Before(a))
}

func TestExtractDate(t *testing.T) {
	d, err := ExtractDate("September 1, 2026 (Tuesday) - 12 slots left [2026-09-01]")
	require.NoError(t, err)
	assert.Equal(t, "2026-09-01", d.String())

	_, err = ExtractDate("no date here")
	assert.Error(t, err)
}

func TestRange(t *testing.T) {
	got := Range(New(2026, time.August, 28), 2)
	require.Len(t, got, 3)
	assert.Equal(t, "2026-08-28", got[0].String())
	assert.Equal(t, "2026-08-30", got[2].String())

	assert.Nil(t, Range(New(2026, time.August, 28), -1))
}
